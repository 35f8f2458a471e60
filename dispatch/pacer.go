package dispatch

import (
	"context"
	"time"

	"github.com/mbland/mailmerge/email"
)

const DefaultPacingDelay = 500 * time.Millisecond

// Pacer blocks between recipients. An error aborts the rest of the run.
type Pacer interface {
	PauseBeforeNextSend(ctx context.Context) error
}

// CapacityChecker reports whether the transport can accept numToSend more
// messages. *email.SesThrottle implements both this and Pacer.
type CapacityChecker interface {
	BulkCapacityAvailable(ctx context.Context, numToSend int64) error
}

// FixedPacer waits Delay before each call returns, or until ctx is canceled.
type FixedPacer struct {
	Delay time.Duration
	Sleep func(context.Context, time.Duration) error
}

func (p *FixedPacer) PauseBeforeNextSend(ctx context.Context) error {
	if p.Delay <= 0 {
		return ctx.Err()
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = email.Sleep
	}
	return sleep(ctx, p.Delay)
}
