package email

import (
	"context"
	"errors"
	"log"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	sestypes "github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/mbland/mailmerge/ops"
)

// SesMailer sends raw MIME messages through Amazon SES.
type SesMailer struct {
	Client    SesApi
	ConfigSet string
	Log       *log.Logger
}

func (mailer *SesMailer) Send(ctx context.Context, msg *Message) error {
	raw, err := msg.Bytes()
	if err != nil {
		return &TransportError{
			Code: TransportFailure, Message: "failed to build message", Err: err,
		}
	}

	sesMsg := &ses.SendRawEmailInput{
		Destinations: []string{msg.To},
		RawMessage:   &sestypes.RawMessage{Data: raw},
	}
	if mailer.ConfigSet != "" {
		sesMsg.ConfigurationSetName = aws.String(mailer.ConfigSet)
	}

	output, err := mailer.Client.SendRawEmail(ctx, sesMsg)
	if err != nil {
		return classifySes(ctx, "send to "+msg.To+" failed", err)
	}
	if mailer.Log != nil {
		mailer.Log.Printf(
			"sent message %s to %s", aws.ToString(output.MessageId), msg.To,
		)
	}
	return nil
}

var sesAuthCodes = map[string]bool{
	"AccessDenied":                       true,
	"AccessDeniedException":              true,
	"InvalidClientTokenId":               true,
	"SignatureDoesNotMatch":              true,
	"UnrecognizedClientException":        true,
	"ExpiredToken":                       true,
	"AccountSendingPausedException":      true,
	"MailFromDomainNotVerifiedException": true,
}

func classifySes(ctx context.Context, msg string, err error) *TransportError {
	wrapped := ops.AwsError(msg, err)
	code := ops.AwsErrorCode(err)

	switch {
	case errors.Is(err, context.DeadlineExceeded) ||
		ctx.Err() == context.DeadlineExceeded:
		return &TransportError{Code: Timeout, Message: msg, Err: wrapped}
	case sesAuthCodes[code]:
		return &TransportError{Code: AuthFailure, Message: msg, Err: wrapped}
	case code == "MessageRejected":
		reason := ClassifyText(err.Error())
		if reason == AuthFailure {
			reason = TransportFailure
		}
		return &TransportError{Code: reason, Message: msg, Err: wrapped}
	}
	return &TransportError{
		Code: ClassifyText(err.Error()), Message: msg, Err: wrapped,
	}
}

// SesValidator confirms the account may send, and that the sender address or
// its domain is a verified identity.
type SesValidator struct {
	Client SesV2Api
}

func (v *SesValidator) ValidateCredentials(
	ctx context.Context, creds Credentials,
) Validation {
	if !IsPlausibleAddress(creds.Address) {
		return Validation{Message: "invalid sender address: " + creds.Address}
	}

	account, err := v.Client.GetAccount(ctx, &sesv2.GetAccountInput{})
	if err != nil {
		err = ops.AwsError("failed to get AWS account info", err)
		return Validation{Message: err.Error()}
	} else if !account.SendingEnabled {
		return Validation{Message: "sending is disabled for this SES account"}
	}

	for _, identity := range []string{creds.Address, Domain(creds.Address)} {
		input := &sesv2.GetEmailIdentityInput{EmailIdentity: aws.String(identity)}
		output, err := v.Client.GetEmailIdentity(ctx, input)
		if err == nil && output.VerifiedForSendingStatus {
			return Validation{
				Valid: true, Message: "verified SES identity: " + identity,
			}
		}
	}
	return Validation{
		Message: "no verified SES identity for " + creds.Address,
	}
}
