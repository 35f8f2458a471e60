package email

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
)

type SesApi interface {
	SendRawEmail(
		context.Context, *ses.SendRawEmailInput, ...func(*ses.Options),
	) (*ses.SendRawEmailOutput, error)
}

type SesV2Api interface {
	GetAccount(
		context.Context, *sesv2.GetAccountInput, ...func(*sesv2.Options),
	) (*sesv2.GetAccountOutput, error)

	GetEmailIdentity(
		context.Context,
		*sesv2.GetEmailIdentityInput,
		...func(*sesv2.Options),
	) (*sesv2.GetEmailIdentityOutput, error)
}
