package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mbland/mailmerge/email"
	"github.com/mbland/mailmerge/merge"
	"github.com/mbland/mailmerge/table"
)

// ProgressFunc is called after each outcome is recorded.
type ProgressFunc func(done, total int, outcome Outcome)

// Scheduler sends one message per recipient, strictly in table order, with a
// pause between recipients. A nil Pacer pauses for Config.PacingDelay, and a
// nil Log discards messages. A nil Validator fails every run's credential
// check.
type Scheduler struct {
	Transport email.Transport
	Validator email.Validator
	Pacer     Pacer
	Capacity  CapacityChecker
	Config    Config
	Log       *log.Logger
	Now       func() time.Time
	Progress  ProgressFunc

	state State
}

// NewScheduler returns a Scheduler using a FixedPacer and the wall clock.
func NewScheduler(
	transport email.Transport,
	validator email.Validator,
	config Config,
	logger *log.Logger,
) *Scheduler {
	return &Scheduler{
		Transport: transport,
		Validator: validator,
		Pacer:     &FixedPacer{Delay: config.PacingDelay},
		Config:    config,
		Log:       logger,
		Now:       time.Now,
	}
}

func (s *Scheduler) State() State {
	return s.state
}

// Run processes job and returns its report. It never returns nil.
//
// A failed precondition aborts the run before any send, leaving the report
// with no outcomes. Cancelling ctx, a pacer error, or a fatal transport error
// aborts the run after it starts, and every recipient not yet processed is
// recorded as failed with reason NotAttempted.
func (s *Scheduler) Run(ctx context.Context, job *Job) *Report {
	if s.Pacer == nil {
		s.Pacer = &FixedPacer{Delay: s.Config.PacingDelay}
	}
	if s.Log == nil {
		s.Log = log.New(io.Discard, "", 0)
	}
	runId := job.Id
	if runId == uuid.Nil {
		runId = uuid.New()
	}
	agg := NewAggregator(runId, len(job.Recipients), s.now)

	s.state = Idle
	s.transition(runId, Validating)
	tmpl, err := s.checkPreconditions(ctx, job)
	if err != nil {
		s.transition(runId, Aborted)
		s.Log.Printf("run %s: aborted: %s", runId, err)
		return agg.Finalize(RunAborted, err)
	}

	s.transition(runId, Running)
	if err = s.send(ctx, job, tmpl, agg); err != nil {
		s.transition(runId, Aborted)
		s.Log.Printf(
			"run %s: aborted after %d of %d recipients: %s",
			runId, agg.Len(), len(job.Recipients), err,
		)
		for _, rec := range job.Recipients[agg.Len():] {
			s.record(agg, Outcome{
				Row:     rec.Index,
				Address: s.address(rec),
				Status:  Failed,
				Reason:  NotAttempted,
				Detail:  err.Error(),
			})
		}
		return s.finalize(agg, RunAborted, err)
	}

	s.transition(runId, Completed)
	return s.finalize(agg, RunCompleted, nil)
}

func (s *Scheduler) finalize(
	agg *Aggregator, status RunStatus, err error,
) *Report {
	rep := agg.Finalize(status, err)
	s.Log.Printf(
		"run %s: %s: %d total, %d sent, %d failed, elapsed %s",
		rep.RunId, status, rep.Total, rep.Sent, rep.Failed, rep.Elapsed,
	)
	return rep
}

func (s *Scheduler) checkPreconditions(
	ctx context.Context, job *Job,
) (tmpl *merge.Template, err error) {
	creds := job.Credentials

	if strings.TrimSpace(creds.Address) == "" {
		err = &PreconditionError{
			MissingCredentials, errors.New("sender address is empty"),
		}
	} else if len(job.Recipients) == 0 {
		err = &PreconditionError{
			NoRecipients, errors.New("recipient list is empty"),
		}
	} else if err = ValidateBudget(
		job.Attachments, s.Config.PerFileCeiling, s.Config.AggregateCeiling,
	); err != nil {
		err = &PreconditionError{BudgetExceeded, err}
	} else if tmpl, err = merge.Compile(job.Subject, job.Body); err != nil {
		err = &PreconditionError{InvalidTemplate, err}
	} else if s.Validator == nil {
		err = &PreconditionError{
			TransportUnvalidated, errors.New("no credential validator"),
		}
	} else if v := s.Validator.ValidateCredentials(ctx, creds); !v.Valid {
		err = &PreconditionError{TransportUnvalidated, errors.New(v.Message)}
	} else if s.Capacity != nil {
		n := int64(len(job.Recipients))
		if err = s.Capacity.BulkCapacityAvailable(ctx, n); err != nil {
			err = &PreconditionError{InsufficientCapacity, err}
		}
	}
	if err != nil {
		tmpl = nil
	}
	return
}

func (s *Scheduler) send(
	ctx context.Context, job *Job, tmpl *merge.Template, agg *Aggregator,
) error {
	for i, rec := range job.Recipients {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("run canceled: %w", err)
		}
		if i != 0 {
			if err := s.Pacer.PauseBeforeNextSend(ctx); err != nil {
				return fmt.Errorf("pacing failed: %w", err)
			}
		}

		outcome := s.sendOne(ctx, job, tmpl, rec)
		s.record(agg, outcome)

		if outcome.Status == Failed && outcome.Reason.Fatal() {
			return fmt.Errorf(
				"fatal error sending to row %d: %s", rec.Index, outcome.Detail,
			)
		}
	}
	return nil
}

func (s *Scheduler) sendOne(
	ctx context.Context, job *Job, tmpl *merge.Template, rec table.Record,
) (outcome Outcome) {
	resolved := tmpl.Resolve(rec)
	outcome = Outcome{
		Row:        rec.Index,
		Address:    s.address(rec),
		Unresolved: resolved.Unresolved,
	}

	if !email.IsPlausibleAddress(outcome.Address) {
		outcome.Status = Failed
		outcome.Reason = InvalidRecipientAddress
		outcome.Detail = fmt.Sprintf(
			"%q is not a valid address", outcome.Address,
		)
		s.Log.Printf("row %d: %s", rec.Index, outcome.Detail)
		return
	}

	msg, err := newMessage(s.Config, job, outcome.Address, resolved)
	if err != nil {
		outcome.Status = Failed
		outcome.Reason = email.TransportFailure
		outcome.Detail = err.Error()
		return
	}

	// The run's cancellation is only checked between recipients, so a send
	// in progress runs to completion or its own timeout.
	timeout := s.Config.SendTimeout
	if timeout <= 0 {
		timeout = DefaultSendTimeout
	}
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	if err = s.Transport.Send(sendCtx, msg); err == nil {
		outcome.Status = Sent
		return
	}

	outcome.Status = Failed
	outcome.Reason = classify(sendCtx, err)
	outcome.Detail = err.Error()
	if outcome.Reason == email.SizeLimitExceeded {
		outcome.Help = email.SizeLimitHelpUrl
	}
	s.Log.Printf(
		"row %d: failed to send to %s: %s", rec.Index, outcome.Address, err,
	)
	return
}

func newMessage(
	cfg Config, job *Job, to string, resolved merge.Resolved,
) (*email.Message, error) {
	htmlBody := resolved.Body
	if cfg.Markdown {
		var err error
		if htmlBody, err = email.RenderMarkdown(resolved.Body); err != nil {
			return nil, fmt.Errorf("failed to render markdown: %w", err)
		}
	}
	return &email.Message{
		From:        job.Credentials.Address,
		FromName:    job.Credentials.Name,
		To:          to,
		Subject:     resolved.Subject,
		HtmlBody:    htmlBody,
		TextBody:    email.PlainText(htmlBody),
		Attachments: job.Attachments,
	}, nil
}

func classify(ctx context.Context, err error) email.ReasonCode {
	var te *email.TransportError
	if errors.As(err, &te) {
		return te.Code
	} else if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return email.Timeout
	}
	return email.TransportFailure
}

func (s *Scheduler) address(rec table.Record) string {
	return strings.TrimSpace(rec.Get(s.Config.AddressColumn))
}

func (s *Scheduler) record(agg *Aggregator, outcome Outcome) {
	agg.Add(outcome)
	if s.Progress != nil {
		s.Progress(agg.Len(), agg.total, outcome)
	}
}

func (s *Scheduler) transition(runId uuid.UUID, next State) {
	s.Log.Printf("run %s: %s -> %s", runId, s.state, next)
	s.state = next
}

func (s *Scheduler) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}
