package testdoubles

import (
	"context"
	"sync"
	"testing"

	"github.com/mbland/mailmerge/email"
)

// Mailer is an email.Transport that records messages and returns errors
// configured per recipient.
type Mailer struct {
	RecipientMessages map[string][]*email.Message
	RecipientErrors   map[string]error
	BulkCapError      error
	Order             []string
	Block             chan struct{}
	mutex             sync.Mutex
}

func NewMailer() *Mailer {
	return &Mailer{
		RecipientMessages: make(map[string][]*email.Message, 10),
		RecipientErrors:   make(map[string]error, 10),
	}
}

func (m *Mailer) BulkCapacityAvailable(_ context.Context, _ int64) error {
	return m.BulkCapError
}

func (m *Mailer) Send(ctx context.Context, msg *email.Message) (err error) {
	if m.Block != nil {
		select {
		case <-m.Block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.Order = append(m.Order, msg.To)
	if err = m.RecipientErrors[msg.To]; err == nil {
		m.RecipientMessages[msg.To] = append(m.RecipientMessages[msg.To], msg)
	}
	return
}

func (m *Mailer) GetMessageTo(t *testing.T, recipient string) *email.Message {
	t.Helper()

	m.mutex.Lock()
	defer m.mutex.Unlock()

	msgs, ok := m.RecipientMessages[recipient]
	if !ok {
		t.Fatalf("did not receive a message to %s", recipient)
	}
	return msgs[len(msgs)-1]
}

func (m *Mailer) AssertNoMessageSent(t *testing.T, recipient string) {
	t.Helper()

	m.mutex.Lock()
	defer m.mutex.Unlock()

	if msgs, ok := m.RecipientMessages[recipient]; ok {
		t.Fatalf(
			"expected %s to receive no messages, got: %d", recipient, len(msgs),
		)
	}
}

// Validator returns Result and records the credentials it was given.
type Validator struct {
	Result      email.Validation
	Credentials []email.Credentials
}

func NewValidator() *Validator {
	return &Validator{Result: email.Validation{Valid: true}}
}

func (v *Validator) ValidateCredentials(
	_ context.Context, creds email.Credentials,
) email.Validation {
	v.Credentials = append(v.Credentials, creds)
	return v.Result
}

// Pacer counts pauses and fails with Errors[n] on the n-th call, if set.
type Pacer struct {
	Pauses  int
	Errors  map[int]error
	OnPause func(n int)
}

func (p *Pacer) PauseBeforeNextSend(ctx context.Context) error {
	p.Pauses++
	if p.OnPause != nil {
		p.OnPause(p.Pauses)
	}
	if err := p.Errors[p.Pauses]; err != nil {
		return err
	}
	return ctx.Err()
}

// Transports returns Mailer and Validator from every call, recording the
// credentials each transport was created with.
type Transports struct {
	Mailer      *Mailer
	Validator   *Validator
	Credentials []email.Credentials
}

func NewTransports() *Transports {
	return &Transports{Mailer: NewMailer(), Validator: NewValidator()}
}

func (t *Transports) NewTransport(creds email.Credentials) email.Transport {
	t.Credentials = append(t.Credentials, creds)
	return t.Mailer
}

func (t *Transports) NewValidator() email.Validator {
	return t.Validator
}
