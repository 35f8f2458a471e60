package email

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/mbland/mailmerge/ops"
	"github.com/mbland/mailmerge/types"
)

const ErrExceededMax24HourSend = types.SentinelError(
	"Exceeded 24 hour maximum send quota",
)

const ErrBulkSendWouldExceedCapacity = types.SentinelError(
	"Sending items would exceed bulk capacity for 24 hour max send quota",
)

// SesThrottle paces sends to the account's maximum send rate, and no faster
// than MinInterval, and stops a run once the 24 hour quota is used up.
//
// Account limits are cached for RefreshInterval.
type SesThrottle struct {
	Client          SesV2Api
	Updated         time.Time
	PauseInterval   time.Duration
	MinInterval     time.Duration
	LastSend        time.Time
	Sleep           func(context.Context, time.Duration) error
	Now             func() time.Time
	RefreshInterval time.Duration
	Max24HourSend   int64
	SentLast24Hours int64
	MaxBulkCapacity types.Capacity
	MaxBulkSendable int64
}

func NewSesThrottle(
	ctx context.Context,
	client SesV2Api,
	maxCap types.Capacity,
	sleep func(context.Context, time.Duration) error,
	now func() time.Time,
	refreshInterval time.Duration,
) (t *SesThrottle, err error) {
	throttle := &SesThrottle{
		Client:          client,
		Sleep:           sleep,
		Now:             now,
		RefreshInterval: refreshInterval,
		MaxBulkCapacity: maxCap,
	}
	if err = throttle.refresh(ctx); err == nil {
		t = throttle
	}
	return
}

// BulkCapacityAvailable returns an error wrapping
// ErrBulkSendWouldExceedCapacity if sending numToSend more messages would
// exceed MaxBulkCapacity of the 24 hour quota.
func (t *SesThrottle) BulkCapacityAvailable(
	ctx context.Context, numToSend int64,
) (err error) {
	if err = t.refresh(ctx); err != nil || t.unlimited() {
		return
	} else if (t.MaxBulkSendable - t.SentLast24Hours) < numToSend {
		const errFmt = "%w: %d total send max, %s desired bulk capacity, " +
			"%d bulk sendable, %d sent last 24h, %d requested"
		err = fmt.Errorf(
			errFmt,
			ErrBulkSendWouldExceedCapacity,
			t.Max24HourSend,
			t.MaxBulkCapacity,
			t.MaxBulkSendable,
			t.SentLast24Hours,
			numToSend,
		)
	}
	return
}

func (t *SesThrottle) PauseBeforeNextSend(ctx context.Context) (err error) {
	if err = t.refresh(ctx); err != nil {
		return
	} else if !t.unlimited() && t.SentLast24Hours >= t.Max24HourSend {
		err = fmt.Errorf(
			"%w: %d max, %d sent",
			ErrExceededMax24HourSend,
			t.Max24HourSend,
			t.SentLast24Hours,
		)
		return
	}
	t.LastSend = t.LastSend.Add(max(t.PauseInterval, t.MinInterval))
	now := t.Now()

	if t.LastSend.Before(now) {
		t.LastSend = now
	} else if err = t.Sleep(ctx, t.LastSend.Sub(now)); err != nil {
		return
	}
	t.SentLast24Hours++
	return
}

// unlimited reports whether SES imposes no 24 hour quota, signalled by a
// Max24HourSend of -1.
func (t *SesThrottle) unlimited() bool {
	return t.Max24HourSend < 0
}

func (t *SesThrottle) refresh(ctx context.Context) (err error) {
	now := t.Now()

	if now.Sub(t.Updated) < t.RefreshInterval {
		return nil
	}

	input := &sesv2.GetAccountInput{}
	var output *sesv2.GetAccountOutput

	if output, err = t.Client.GetAccount(ctx, input); err != nil {
		return ops.AwsError("failed to get AWS account info", err)
	}
	quota := output.SendQuota

	t.PauseInterval = 0
	if quota.MaxSendRate > 0 {
		t.PauseInterval = time.Duration(float64(time.Second) / quota.MaxSendRate)
	}
	t.Max24HourSend = int64(quota.Max24HourSend)
	t.SentLast24Hours = int64(quota.SentLast24Hours)
	t.MaxBulkSendable = t.MaxBulkCapacity.MaxAvailable(t.Max24HourSend)
	t.Updated = now
	return
}

// Sleep pauses for d, returning early with ctx.Err() if ctx is canceled.
func Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
