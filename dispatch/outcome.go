package dispatch

import (
	"time"

	"github.com/google/uuid"
	"github.com/mbland/mailmerge/email"
)

// Status is the result of processing one recipient.
type Status string

const (
	Sent   Status = "sent"
	Failed Status = "failed"
)

// Reasons recorded by the scheduler itself, alongside the transport's
// email.ReasonCode values.
const (
	InvalidRecipientAddress email.ReasonCode = "InvalidRecipientAddress"
	NotAttempted            email.ReasonCode = "NotAttempted"
)

// Outcome is the immutable record of one recipient's processing.
type Outcome struct {
	Row        int              `json:"row"`
	Address    string           `json:"address"`
	Status     Status           `json:"status"`
	Reason     email.ReasonCode `json:"reason,omitempty"`
	Detail     string           `json:"detail,omitempty"`
	Help       string           `json:"help,omitempty"`
	Unresolved []string         `json:"unresolved,omitempty"`
}

// RunStatus is the terminal state of a run.
type RunStatus string

const (
	RunCompleted RunStatus = "Completed"
	RunAborted   RunStatus = "Aborted"
)

// Report holds one Outcome per processed recipient, in table order.
//
// Sent + Failed always equals len(Outcomes). A run aborted by a precondition
// has no outcomes; a run aborted after it started has one per recipient.
type Report struct {
	RunId       uuid.UUID     `json:"runId"`
	Status      RunStatus     `json:"status"`
	AbortReason error         `json:"-"`
	Outcomes    []Outcome     `json:"outcomes"`
	Total       int           `json:"total"`
	Sent        int           `json:"sent"`
	Failed      int           `json:"failed"`
	Started     time.Time     `json:"started"`
	Elapsed     time.Duration `json:"elapsed"`
}

// AbortMessage returns the abort reason as a string, or "" if the run
// completed.
func (r *Report) AbortMessage() string {
	if r.AbortReason == nil {
		return ""
	}
	return r.AbortReason.Error()
}

// Help returns the first remediation hint among the outcomes or the abort
// reason, or "" if there isn't one.
func (r *Report) Help() string {
	if budgetErr := asBudgetError(r.AbortReason); budgetErr != nil {
		return budgetErr.Help
	}
	for _, o := range r.Outcomes {
		if o.Help != "" {
			return o.Help
		}
	}
	return ""
}

// Aggregator accumulates outcomes in the order they're added.
type Aggregator struct {
	runId   uuid.UUID
	total   int
	started time.Time
	now     func() time.Time
	report  Report
}

func NewAggregator(
	runId uuid.UUID, total int, now func() time.Time,
) *Aggregator {
	started := now()
	return &Aggregator{
		runId:   runId,
		total:   total,
		started: started,
		now:     now,
		report:  Report{Outcomes: make([]Outcome, 0, total)},
	}
}

func (a *Aggregator) Add(o Outcome) {
	a.report.Outcomes = append(a.report.Outcomes, o)
	if o.Status == Sent {
		a.report.Sent++
	} else {
		a.report.Failed++
	}
}

func (a *Aggregator) Len() int {
	return len(a.report.Outcomes)
}

// Finalize stamps the summary fields and returns the report. The Aggregator
// shouldn't be used afterwards.
func (a *Aggregator) Finalize(status RunStatus, abortReason error) *Report {
	rep := a.report
	rep.RunId = a.runId
	rep.Status = status
	rep.AbortReason = abortReason
	rep.Total = a.total
	rep.Started = a.started
	rep.Elapsed = a.now().Sub(a.started)
	return &rep
}
