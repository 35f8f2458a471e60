package handler

import (
	"context"
	"log"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/mbland/mailmerge/config"
	"github.com/mbland/mailmerge/email"
	"github.com/mbland/mailmerge/types"
)

// SesQuotaRefreshInterval is how often an SesThrottle refreshes the account's
// send quota during a run.
const SesQuotaRefreshInterval = time.Minute

// TransportFactory creates the transport for a run and the validator for its
// credentials.
type TransportFactory interface {
	NewTransport(creds email.Credentials) email.Transport
	NewValidator() email.Validator
}

// Transports builds the transport selected by config.Options.Transport.
type Transports struct {
	Kind      string
	SmtpHost  string
	SmtpPort  int
	ConfigSet string
	ResendKey string
	Ses       email.SesApi
	SesV2     email.SesV2Api
	Log       *log.Logger
}

// NewTransports creates SES clients from awsCfg only if the options select
// SES, so awsCfg may be nil otherwise.
func NewTransports(
	opts *config.Options, awsCfg *aws.Config, logger *log.Logger,
) *Transports {
	t := &Transports{
		Kind:      opts.Transport,
		SmtpHost:  opts.Smtp.Host,
		SmtpPort:  opts.Smtp.Port,
		ConfigSet: opts.Ses.ConfigurationSet,
		ResendKey: opts.Resend.ApiKey,
		Log:       logger,
	}
	if opts.Transport == config.TransportSes && awsCfg != nil {
		t.Ses = ses.NewFromConfig(*awsCfg)
		t.SesV2 = sesv2.NewFromConfig(*awsCfg)
	}
	return t
}

func (t *Transports) NewTransport(creds email.Credentials) email.Transport {
	switch t.Kind {
	case config.TransportSes:
		return &email.SesMailer{
			Client: t.Ses, ConfigSet: t.ConfigSet, Log: t.Log,
		}
	case config.TransportResend:
		return email.NewResendMailer(t.ResendKey)
	}
	return &email.SmtpMailer{
		Dialer: email.NewSmtpDialer(t.SmtpHost, t.SmtpPort, creds),
		Log:    t.Log,
	}
}

func (t *Transports) NewValidator() email.Validator {
	switch t.Kind {
	case config.TransportSes:
		return &email.SesValidator{Client: t.SesV2}
	case config.TransportResend:
		return &email.ResendValidator{ApiKey: t.ResendKey}
	}
	return &email.SmtpValidator{Host: t.SmtpHost, Port: t.SmtpPort}
}

// NewThrottle returns nil unless the transport is SES. The throttle paces
// sends at the account's maximum rate and enforces maxCap of the daily quota.
func (t *Transports) NewThrottle(
	ctx context.Context, maxCap types.Capacity,
) (*email.SesThrottle, error) {
	if t.Kind != config.TransportSes {
		return nil, nil
	}
	return email.NewSesThrottle(
		ctx, t.SesV2, maxCap, email.Sleep, time.Now, SesQuotaRefreshInterval,
	)
}
