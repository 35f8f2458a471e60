package email

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"sync"

	"gopkg.in/gomail.v2"
)

const DefaultSmtpHost = "smtp.gmail.com"
const DefaultSmtpPort = 587

// SmtpDialer opens an authenticated SMTP session. *gomail.Dialer implements
// it; tests substitute their own.
type SmtpDialer interface {
	Dial() (gomail.SendCloser, error)
}

// NewSmtpDialer returns a STARTTLS dialer for host and port, defaulting to
// smtp.gmail.com:587, authenticating with creds.
func NewSmtpDialer(host string, port int, creds Credentials) *gomail.Dialer {
	if host == "" {
		host = DefaultSmtpHost
	}
	if port == 0 {
		port = DefaultSmtpPort
	}
	return gomail.NewDialer(host, port, creds.Login(), creds.Password)
}

// SmtpMailer delivers messages over a single SMTP session that stays open
// for the whole run. The session is discarded after any failure and re-dialed
// on the next Send.
type SmtpMailer struct {
	Dialer SmtpDialer
	Log    *log.Logger

	mutex  sync.Mutex
	sender gomail.SendCloser
}

func (m *SmtpMailer) Send(ctx context.Context, msg *Message) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	sender, err := m.session()
	if err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() {
		done <- sender.Send(msg.From, []string{msg.To}, msg)
	}()

	select {
	case err = <-done:
		if err == nil {
			return nil
		}
		m.discard(sender)
		return classifySmtp("failed to send to "+msg.To, err)
	case <-ctx.Done():
		m.sender = nil
		go func() {
			<-done
			m.closeSender(sender)
		}()
		return &TransportError{
			Code:    Timeout,
			Message: "timed out sending to " + msg.To,
			Err:     ctx.Err(),
		}
	}
}

// Close ends the SMTP session, if one is open.
func (m *SmtpMailer) Close() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.sender == nil {
		return nil
	}
	err := m.sender.Close()
	m.sender = nil
	return err
}

func (m *SmtpMailer) session() (gomail.SendCloser, error) {
	if m.sender != nil {
		return m.sender, nil
	}
	sender, err := m.Dialer.Dial()
	if err != nil {
		return nil, classifySmtp("failed to connect to SMTP server", err)
	}
	m.sender = sender
	return sender, nil
}

func (m *SmtpMailer) discard(sender gomail.SendCloser) {
	m.sender = nil
	m.closeSender(sender)
}

func (m *SmtpMailer) closeSender(sender gomail.SendCloser) {
	if err := sender.Close(); err != nil && m.Log != nil {
		m.Log.Printf("error closing SMTP session: %s", err)
	}
}

func classifySmtp(msg string, err error) *TransportError {
	code := ClassifySmtpError(err)
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		code = Timeout
	}
	return &TransportError{Code: code, Message: msg, Err: err}
}

// SmtpValidator checks credentials by opening and closing an SMTP session.
type SmtpValidator struct {
	Host      string
	Port      int
	NewDialer func(host string, port int, creds Credentials) SmtpDialer
}

func (v *SmtpValidator) ValidateCredentials(
	_ context.Context, creds Credentials,
) Validation {
	if creds.Address == "" || creds.Password == "" {
		return Validation{Message: "email address and password are required"}
	}

	newDialer := v.NewDialer
	if newDialer == nil {
		newDialer = func(host string, port int, c Credentials) SmtpDialer {
			return NewSmtpDialer(host, port, c)
		}
	}

	sender, err := newDialer(v.Host, v.Port, creds).Dial()
	if err != nil {
		return Validation{Message: describeSmtpFailure(err)}
	}
	sender.Close()
	return Validation{Valid: true, Message: "SMTP credentials are valid"}
}

func describeSmtpFailure(err error) string {
	if ClassifySmtpError(err) == AuthFailure {
		return "authentication failed: check the address and app password: " +
			err.Error()
	}
	return fmt.Sprintf("could not connect to SMTP server: %s", err)
}

var _ io.WriterTo = &Message{}
