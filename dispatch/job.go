// Package dispatch runs one bulk personalized email send: it validates the
// job, sends one message per recipient in table order, and reports the
// outcome of every row.
package dispatch

import (
	"time"

	"github.com/google/uuid"
	"github.com/mbland/mailmerge/email"
	"github.com/mbland/mailmerge/table"
	"github.com/mbland/mailmerge/types"
)

const DefaultAddressColumn = "Email"
const DefaultSendTimeout = 30 * time.Second

// Config holds the limits applied to every run.
type Config struct {
	AddressColumn    string
	PerFileCeiling   types.ByteSize
	AggregateCeiling types.ByteSize
	PacingDelay      time.Duration
	SendTimeout      time.Duration
	Markdown         bool
}

func DefaultConfig() Config {
	return Config{
		AddressColumn:    DefaultAddressColumn,
		PerFileCeiling:   DefaultPerFileCeiling,
		AggregateCeiling: DefaultAggregateCeiling,
		PacingDelay:      DefaultPacingDelay,
		SendTimeout:      DefaultSendTimeout,
	}
}

// Job is everything one run needs. The scheduler never modifies it. If Id is
// uuid.Nil, each run generates its own id for the report.
type Job struct {
	Id          uuid.UUID
	Subject     string
	Body        string
	Recipients  []table.Record
	Attachments []email.Attachment
	Credentials email.Credentials
}

// State is the scheduler's position in a run's life cycle.
//
//go:generate go run golang.org/x/tools/cmd/stringer -type=State
type State int

const (
	Idle State = iota
	Validating
	Running
	Completed
	Aborted
)
