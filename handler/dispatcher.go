package handler

import (
	"context"
	"io"
	"log"
	"time"

	"github.com/mbland/mailmerge/dispatch"
	"github.com/mbland/mailmerge/email"
)

// Runner executes one dispatch job. *Dispatcher implements it.
type Runner interface {
	Run(ctx context.Context, job *dispatch.Job) *dispatch.Report
}

// Dispatcher runs each job on a new Scheduler and a transport created for the
// job's credentials, closing the transport afterward if it's an io.Closer.
type Dispatcher struct {
	Transports TransportFactory
	Config     dispatch.Config
	Pacer      dispatch.Pacer
	Capacity   dispatch.CapacityChecker
	Progress   dispatch.ProgressFunc
	Log        *log.Logger
	Now        func() time.Time
}

// UseThrottle paces sends and checks capacity with throttle, if it isn't nil.
func (d *Dispatcher) UseThrottle(throttle *email.SesThrottle) {
	if throttle != nil {
		d.Pacer = throttle
		d.Capacity = throttle
	}
}

func (d *Dispatcher) Run(ctx context.Context, job *dispatch.Job) *dispatch.Report {
	transport := d.Transports.NewTransport(job.Credentials)
	if closer, ok := transport.(io.Closer); ok {
		defer func() {
			if err := closer.Close(); err != nil {
				d.Log.Printf("failed to close transport: %s", err)
			}
		}()
	}

	s := dispatch.NewScheduler(
		transport, d.Transports.NewValidator(), d.Config, d.Log,
	)
	if d.Pacer != nil {
		s.Pacer = d.Pacer
	}
	if d.Now != nil {
		s.Now = d.Now
	}
	s.Capacity = d.Capacity
	s.Progress = d.Progress
	return s.Run(ctx, job)
}
