package email

import (
	"context"
	"errors"
	"strings"

	"github.com/resend/resend-go/v3"
)

// ResendApi is the subset of resend.EmailsSvc used by ResendMailer.
type ResendApi interface {
	SendWithContext(
		ctx context.Context, params *resend.SendEmailRequest,
	) (*resend.SendEmailResponse, error)
}

// ResendMailer delivers messages through the Resend HTTP API.
type ResendMailer struct {
	Client ResendApi
}

// NewResendMailer creates a ResendMailer authenticated with apiKey.
func NewResendMailer(apiKey string) *ResendMailer {
	return &ResendMailer{Client: resend.NewClient(apiKey).Emails}
}

func (m *ResendMailer) Send(ctx context.Context, msg *Message) error {
	req := &resend.SendEmailRequest{
		From:    (&Credentials{Address: msg.From, Name: msg.FromName}).Sender(),
		To:      []string{msg.To},
		Subject: msg.Subject,
		Html:    msg.HtmlBody,
		Text:    msg.TextBody,
	}

	if len(msg.Attachments) != 0 {
		req.Attachments = make([]*resend.Attachment, len(msg.Attachments))
		for i, a := range msg.Attachments {
			req.Attachments[i] = &resend.Attachment{
				Filename:    a.Name,
				Content:     a.Content,
				ContentType: a.ContentType,
			}
		}
	}

	if _, err := m.Client.SendWithContext(ctx, req); err != nil {
		const msgPrefix = "resend: failed to send to "
		code := ClassifyText(err.Error())
		if errors.Is(err, context.DeadlineExceeded) {
			code = Timeout
		}
		return &TransportError{Code: code, Message: msgPrefix + msg.To, Err: err}
	}
	return nil
}

// ResendValidator only checks that an API key is configured; Resend offers
// no side-effect-free way to test one.
type ResendValidator struct {
	ApiKey string
}

func (v *ResendValidator) ValidateCredentials(
	_ context.Context, creds Credentials,
) Validation {
	if strings.TrimSpace(v.ApiKey) == "" {
		return Validation{Message: "RESEND_API_KEY is not set"}
	} else if !IsPlausibleAddress(creds.Address) {
		return Validation{Message: "invalid sender address: " + creds.Address}
	}
	return Validation{Valid: true, Message: "Resend API key configured"}
}
