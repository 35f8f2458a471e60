package dispatch

import "fmt"

// Precondition identifies which check stopped a run before any send.
type Precondition string

const (
	MissingCredentials   Precondition = "MissingCredentials"
	NoRecipients         Precondition = "NoRecipients"
	BudgetExceeded       Precondition = "BudgetExceeded"
	InvalidTemplate      Precondition = "InvalidTemplate"
	TransportUnvalidated Precondition = "TransportUnvalidated"
	InsufficientCapacity Precondition = "InsufficientCapacity"
)

// PreconditionError aborts a run before any recipient is processed.
type PreconditionError struct {
	Code Precondition
	Err  error
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Err)
}

func (e *PreconditionError) Unwrap() error {
	return e.Err
}
