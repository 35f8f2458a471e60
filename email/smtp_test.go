//go:build small_tests || all_tests

package email

import (
	"context"
	"errors"
	"io"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/mbland/mailmerge/testutils"
	"gopkg.in/gomail.v2"
	"gotest.tools/assert"
	is "gotest.tools/assert/cmp"
)

type testSmtpSender struct {
	from    string
	to      []string
	content string
	sendErr error
	block   chan struct{}
	closed  bool
}

func (s *testSmtpSender) Send(
	from string, to []string, msg io.WriterTo,
) error {
	if s.block != nil {
		<-s.block
	}
	sb := &strings.Builder{}
	if _, err := msg.WriteTo(sb); err != nil {
		return err
	}
	s.from, s.to, s.content = from, to, sb.String()
	return s.sendErr
}

func (s *testSmtpSender) Close() error {
	s.closed = true
	return nil
}

type testSmtpDialer struct {
	senders []*testSmtpSender
	dialErr error
	dials   int
}

func (d *testSmtpDialer) Dial() (gomail.SendCloser, error) {
	d.dials++
	if d.dialErr != nil {
		return nil, d.dialErr
	}
	sender := &testSmtpSender{}
	if len(d.senders) != 0 {
		sender = d.senders[0]
		d.senders = d.senders[1:]
	}
	return sender, nil
}

func TestSmtpMailer(t *testing.T) {
	setup := func(
		senders ...*testSmtpSender,
	) (*testSmtpDialer, *SmtpMailer, *testutils.Logs) {
		logs, logger := testutils.NewLogs()
		dialer := &testSmtpDialer{senders: senders}
		return dialer, &SmtpMailer{Dialer: dialer, Log: logger}, logs
	}
	ctx := context.Background()

	t.Run("SendsOverOneSession", func(t *testing.T) {
		sender := &testSmtpSender{}
		dialer, mailer, _ := setup(sender)

		err := mailer.Send(ctx, newTestMessage())
		assert.NilError(t, err)
		err = mailer.Send(ctx, newTestMessage())
		assert.NilError(t, err)

		assert.Equal(t, 1, dialer.dials)
		assert.Equal(t, "foo@bar.com", sender.from)
		assert.DeepEqual(t, []string{"ana@example.com"}, sender.to)
		assert.Assert(t, is.Contains(sender.content, "Subject: Statement for Ana"))
	})

	t.Run("ClassifiesFailureAndRedialsNextTime", func(t *testing.T) {
		failing := &testSmtpSender{
			sendErr: &textproto.Error{Code: 552, Msg: "5.3.4 Message too big"},
		}
		next := &testSmtpSender{}
		dialer, mailer, _ := setup(failing, next)

		err := mailer.Send(ctx, newTestMessage())

		assert.Equal(t, SizeLimitExceeded, ReasonFor(err))
		assert.Assert(t, failing.closed)

		err = mailer.Send(ctx, newTestMessage())

		assert.NilError(t, err)
		assert.Equal(t, 2, dialer.dials)
		assert.Equal(t, "foo@bar.com", next.from)
	})

	t.Run("ClassifiesDialFailure", func(t *testing.T) {
		dialer, mailer, _ := setup()
		dialer.dialErr = &textproto.Error{
			Code: 535, Msg: "5.7.8 Username and Password not accepted",
		}

		err := mailer.Send(ctx, newTestMessage())

		assert.Equal(t, AuthFailure, ReasonFor(err))
		assert.ErrorContains(t, err, "failed to connect to SMTP server")
	})

	t.Run("TimesOutAndDiscardsSession", func(t *testing.T) {
		stuck := &testSmtpSender{block: make(chan struct{})}
		dialer, mailer, _ := setup(stuck, &testSmtpSender{})
		timeoutCtx, cancel := context.WithTimeout(ctx, time.Millisecond)
		defer cancel()

		err := mailer.Send(timeoutCtx, newTestMessage())
		close(stuck.block)

		assert.Equal(t, Timeout, ReasonFor(err))
		assert.Assert(t, testutils.ErrorIs(err, context.DeadlineExceeded))

		err = mailer.Send(ctx, newTestMessage())

		assert.NilError(t, err)
		assert.Equal(t, 2, dialer.dials)
	})

	t.Run("CloseEndsSession", func(t *testing.T) {
		sender := &testSmtpSender{}
		_, mailer, _ := setup(sender)
		assert.NilError(t, mailer.Send(ctx, newTestMessage()))

		assert.NilError(t, mailer.Close())

		assert.Assert(t, sender.closed)
		assert.NilError(t, mailer.Close())
	})
}

func TestSmtpValidator(t *testing.T) {
	setup := func() (*testSmtpDialer, *SmtpValidator) {
		dialer := &testSmtpDialer{}
		v := &SmtpValidator{
			NewDialer: func(_ string, _ int, _ Credentials) SmtpDialer {
				return dialer
			},
		}
		return dialer, v
	}
	ctx := context.Background()
	creds := Credentials{Address: "foo@bar.com", Password: "app-password"}

	t.Run("Succeeds", func(t *testing.T) {
		dialer, v := setup()

		result := v.ValidateCredentials(ctx, creds)

		assert.Assert(t, result.Valid)
		assert.Equal(t, 1, dialer.dials)
	})

	t.Run("RequiresAddressAndPassword", func(t *testing.T) {
		dialer, v := setup()

		result := v.ValidateCredentials(ctx, Credentials{Address: "foo@bar.com"})

		assert.Assert(t, !result.Valid)
		assert.Equal(t, "email address and password are required", result.Message)
		assert.Equal(t, 0, dialer.dials)
	})

	t.Run("ReportsAuthenticationFailure", func(t *testing.T) {
		dialer, v := setup()
		dialer.dialErr = &textproto.Error{
			Code: 535, Msg: "5.7.8 Username and Password not accepted",
		}

		result := v.ValidateCredentials(ctx, creds)

		assert.Assert(t, !result.Valid)
		assert.Assert(t, is.Contains(result.Message, "authentication failed"))
	})

	t.Run("ReportsConnectionFailure", func(t *testing.T) {
		dialer, v := setup()
		dialer.dialErr = errors.New("dial tcp: connection refused")

		result := v.ValidateCredentials(ctx, creds)

		assert.Assert(t, !result.Valid)
		assert.Assert(t, is.Contains(result.Message, "could not connect"))
	})
}

func TestNewSmtpDialerDefaultsToGmail(t *testing.T) {
	d := NewSmtpDialer("", 0, Credentials{Address: "foo@bar.com"})

	assert.Equal(t, DefaultSmtpHost, d.Host)
	assert.Equal(t, DefaultSmtpPort, d.Port)
	assert.Equal(t, "foo@bar.com", d.Username)
}
