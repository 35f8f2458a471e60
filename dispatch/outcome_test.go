//go:build small_tests || all_tests

package dispatch

import (
	"errors"
	"testing"
	"time"

	"github.com/mbland/mailmerge/email"
	"github.com/mbland/mailmerge/testdata"
	"gotest.tools/assert"
)

func TestAggregator(t *testing.T) {
	setup := func() (*Aggregator, *time.Time) {
		now := testdata.TestTimestamp
		clock := func() time.Time { return now }
		return NewAggregator(testdata.TestUid, 3, clock), &now
	}

	t.Run("KeepsOrderAndCounts", func(t *testing.T) {
		agg, now := setup()

		agg.Add(Outcome{Row: 0, Address: "a@foo.com", Status: Sent})
		agg.Add(Outcome{
			Row: 1, Status: Failed, Reason: InvalidRecipientAddress,
		})
		agg.Add(Outcome{Row: 2, Address: "c@foo.com", Status: Sent})
		*now = now.Add(3 * time.Second)
		rep := agg.Finalize(RunCompleted, nil)

		assert.Equal(t, testdata.TestUid, rep.RunId)
		assert.Equal(t, RunCompleted, rep.Status)
		assert.Equal(t, 3, rep.Total)
		assert.Equal(t, 2, rep.Sent)
		assert.Equal(t, 1, rep.Failed)
		assert.Equal(t, rep.Sent+rep.Failed, len(rep.Outcomes))
		assert.Equal(t, 3*time.Second, rep.Elapsed)
		assert.Assert(t, rep.Started.Equal(testdata.TestTimestamp))
		for i, o := range rep.Outcomes {
			assert.Equal(t, i, o.Row)
		}
		assert.Equal(t, "", rep.AbortMessage())
	})

	t.Run("FinalizesAbortedRunWithoutOutcomes", func(t *testing.T) {
		agg, _ := setup()
		reason := &PreconditionError{NoRecipients, errors.New("empty")}

		rep := agg.Finalize(RunAborted, reason)

		assert.Equal(t, RunAborted, rep.Status)
		assert.Equal(t, 0, len(rep.Outcomes))
		assert.Equal(t, "NoRecipients: empty", rep.AbortMessage())
	})
}

func TestReportHelp(t *testing.T) {
	t.Run("EmptyWithoutHints", func(t *testing.T) {
		rep := &Report{Outcomes: []Outcome{{Status: Sent}}}

		assert.Equal(t, "", rep.Help())
	})

	t.Run("FromSizeLimitOutcome", func(t *testing.T) {
		rep := &Report{Outcomes: []Outcome{
			{Status: Sent},
			{
				Status: Failed,
				Reason: email.SizeLimitExceeded,
				Help:   email.SizeLimitHelpUrl,
			},
		}}

		assert.Equal(t, email.SizeLimitHelpUrl, rep.Help())
	})

	t.Run("FromBudgetAbort", func(t *testing.T) {
		rep := &Report{AbortReason: &PreconditionError{
			BudgetExceeded, &BudgetError{Help: email.SizeLimitHelpUrl},
		}}

		assert.Equal(t, email.SizeLimitHelpUrl, rep.Help())
	})
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "Idle", Idle.String())
	assert.Equal(t, "Validating", Validating.String())
	assert.Equal(t, "Running", Running.String())
	assert.Equal(t, "Completed", Completed.String())
	assert.Equal(t, "Aborted", Aborted.String())
	assert.Equal(t, "State(-1)", State(-1).String())
}
