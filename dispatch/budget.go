package dispatch

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/mbland/mailmerge/email"
	"github.com/mbland/mailmerge/types"
)

const DefaultPerFileCeiling = 25 * types.MiB
const DefaultAggregateCeiling = 25 * types.MiB

// CeilingKind identifies which attachment size limit a Violation exceeded.
type CeilingKind string

const (
	CeilingPerFile   CeilingKind = "per-file"
	CeilingAggregate CeilingKind = "aggregate"
)

// Violation describes one attachment, or for CeilingAggregate the whole set,
// that exceeds a ceiling.
type Violation struct {
	Kind    CeilingKind
	Name    string
	Size    types.ByteSize
	Ceiling types.ByteSize
}

func (v Violation) String() string {
	return fmt.Sprintf(
		"%s exceeds %s ceiling: %s > %s", v.Name, v.Kind, v.Size, v.Ceiling,
	)
}

// BudgetError lists every violation found by ValidateBudget.
type BudgetError struct {
	Violations []Violation
	Help       string
}

func (e *BudgetError) Error() string {
	msgs := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		msgs[i] = v.String()
	}
	return "attachments exceed size budget: " + strings.Join(msgs, "; ")
}

// ValidateBudget checks every attachment against perFile and the combined
// size of all attachments against aggregate.
//
// The result doesn't depend on the order of attachments: per-file violations
// are sorted by name and precede the single aggregate violation, which names
// every attachment.
func ValidateBudget(
	attachments []email.Attachment, perFile, aggregate types.ByteSize,
) error {
	var violations []Violation
	var total types.ByteSize
	names := make([]string, len(attachments))

	for i, att := range attachments {
		size := types.ByteSize(att.Size)
		total += size
		names[i] = att.Name

		if size > perFile {
			violations = append(violations, Violation{
				Kind: CeilingPerFile, Name: att.Name, Size: size, Ceiling: perFile,
			})
		}
	}

	sort.SliceStable(violations, func(i, j int) bool {
		lhs, rhs := violations[i], violations[j]
		return lhs.Name < rhs.Name || (lhs.Name == rhs.Name && lhs.Size < rhs.Size)
	})

	if total > aggregate {
		sort.Strings(names)
		violations = append(violations, Violation{
			Kind:    CeilingAggregate,
			Name:    strings.Join(names, ", "),
			Size:    total,
			Ceiling: aggregate,
		})
	}

	if len(violations) == 0 {
		return nil
	}
	return &BudgetError{Violations: violations, Help: email.SizeLimitHelpUrl}
}

func asBudgetError(err error) *BudgetError {
	var budgetErr *BudgetError
	if errors.As(err, &budgetErr) {
		return budgetErr
	}
	return nil
}
