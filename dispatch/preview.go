package dispatch

import (
	"fmt"
	"strings"

	"github.com/mbland/mailmerge/email"
	"github.com/mbland/mailmerge/merge"
	"github.com/mbland/mailmerge/types"
)

const ErrNoSuchRecipient = types.SentinelError("no such recipient")

// Preview builds the message a run of job would send to the recipient in
// row n, counting from one, without sending anything.
//
// The message is returned even if the recipient's address isn't plausible,
// so callers can show what's wrong with it.
func Preview(
	job *Job, cfg Config, n int,
) (msg *email.Message, resolved merge.Resolved, err error) {
	var tmpl *merge.Template

	if tmpl, err = merge.Compile(job.Subject, job.Body); err != nil {
		err = &PreconditionError{InvalidTemplate, err}
	} else if n < 1 || n > len(job.Recipients) {
		err = fmt.Errorf(
			"%w: row %d of %d", ErrNoSuchRecipient, n, len(job.Recipients),
		)
	} else {
		rec := job.Recipients[n-1]
		to := strings.TrimSpace(rec.Get(cfg.AddressColumn))
		resolved = tmpl.Resolve(rec)
		msg, err = newMessage(cfg, job, to, resolved)
	}
	return
}
