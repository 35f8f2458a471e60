//go:build small_tests || all_tests

package email

import (
	"context"
	"errors"
	"testing"

	"github.com/resend/resend-go/v3"
	"gotest.tools/assert"
)

type testResendApi struct {
	req *resend.SendEmailRequest
	err error
}

func (api *testResendApi) SendWithContext(
	_ context.Context, req *resend.SendEmailRequest,
) (*resend.SendEmailResponse, error) {
	api.req = req
	if api.err != nil {
		return nil, api.err
	}
	return &resend.SendEmailResponse{Id: "re_123"}, nil
}

func TestResendMailer(t *testing.T) {
	setup := func() (*testResendApi, *ResendMailer) {
		api := &testResendApi{}
		return api, &ResendMailer{Client: api}
	}
	ctx := context.Background()

	t.Run("SendsMessageWithAttachments", func(t *testing.T) {
		api, mailer := setup()
		msg := newTestMessage()
		msg.Attachments = []Attachment{
			NewAttachment("statement.pdf", []byte("%PDF")),
		}

		err := mailer.Send(ctx, msg)

		assert.NilError(t, err)
		assert.Equal(t, `"Foo Bar" <foo@bar.com>`, api.req.From)
		assert.DeepEqual(t, []string{"ana@example.com"}, api.req.To)
		assert.Equal(t, msg.Subject, api.req.Subject)
		assert.Equal(t, msg.HtmlBody, api.req.Html)
		assert.Equal(t, msg.TextBody, api.req.Text)
		assert.Equal(t, 1, len(api.req.Attachments))
		assert.Equal(t, "statement.pdf", api.req.Attachments[0].Filename)
		assert.Equal(t, "application/pdf", api.req.Attachments[0].ContentType)
	})

	t.Run("ClassifiesErrors", func(t *testing.T) {
		api, mailer := setup()
		api.err = errors.New("[ERROR]: API key is invalid")

		err := mailer.Send(ctx, newTestMessage())

		assert.Equal(t, AuthFailure, ReasonFor(err))
		assert.ErrorContains(t, err, "resend: failed to send to ana@example.com")
	})

	t.Run("ClassifiesDeadline", func(t *testing.T) {
		api, mailer := setup()
		api.err = context.DeadlineExceeded

		err := mailer.Send(ctx, newTestMessage())

		assert.Equal(t, Timeout, ReasonFor(err))
	})
}

func TestResendValidator(t *testing.T) {
	ctx := context.Background()
	creds := Credentials{Address: "foo@bar.com"}

	t.Run("RequiresApiKey", func(t *testing.T) {
		result := (&ResendValidator{}).ValidateCredentials(ctx, creds)

		assert.Assert(t, !result.Valid)
		assert.Equal(t, "RESEND_API_KEY is not set", result.Message)
	})

	t.Run("SucceedsWithApiKey", func(t *testing.T) {
		v := &ResendValidator{ApiKey: "re_test"}

		assert.Assert(t, v.ValidateCredentials(ctx, creds).Valid)
	})
}
