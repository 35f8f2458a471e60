package email

import (
	"errors"
	"fmt"
	"net/textproto"
	"regexp"
	"strconv"
	"strings"
)

// ReasonCode classifies why a message wasn't delivered.
type ReasonCode string

const (
	SizeLimitExceeded ReasonCode = "SIZE_LIMIT_EXCEEDED"
	InvalidRecipient  ReasonCode = "INVALID_RECIPIENT"
	AuthFailure       ReasonCode = "AUTH_FAILURE"
	Timeout           ReasonCode = "TIMEOUT"
	TransportFailure  ReasonCode = "TRANSPORT_ERROR"
)

// SizeLimitHelpUrl explains message size limits to operators.
const SizeLimitHelpUrl = "https://support.google.com/mail/?p=MaxSizeError"

// Fatal reports whether every later send will fail for the same reason.
func (c ReasonCode) Fatal() bool {
	return c == AuthFailure
}

// TransportError is a classified delivery failure.
type TransportError struct {
	Code    ReasonCode
	Message string
	Err     error
}

func (e *TransportError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Code, e.Message, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ReasonFor extracts the ReasonCode from err, or TransportFailure if err
// isn't a *TransportError.
func ReasonFor(err error) ReasonCode {
	var te *TransportError
	if errors.As(err, &te) {
		return te.Code
	}
	return TransportFailure
}

var smtpCodePattern = regexp.MustCompile(`\b([45][0-9][0-9])[ -]`)

var sizeLimitHints = []string{
	"5.2.3", "5.3.4", "too large", "size limit", "message size", "length is more",
}

var authHints = []string{
	"5.7.8", "authentication", "username and password", "invalid login",
	"api key", "unauthorized", "forbidden",
}

var recipientHints = []string{
	"5.1.1", "5.1.3", "invalid address", "invalid recipient", "no such user",
	"mailbox unavailable", "recipient address rejected",
}

// ClassifySmtpError maps an SMTP client error to a ReasonCode using the reply
// code when one is present and the reply text otherwise.
func ClassifySmtpError(err error) ReasonCode {
	code := smtpReplyCode(err)
	text := strings.ToLower(err.Error())

	switch {
	case code == 552 || containsAny(text, sizeLimitHints):
		return SizeLimitExceeded
	case code == 530 || code == 534 || code == 535 ||
		containsAny(text, authHints):
		return AuthFailure
	case code == 550 || code == 551 || code == 553 ||
		containsAny(text, recipientHints):
		if strings.Contains(text, "5.7.") {
			return TransportFailure
		}
		return InvalidRecipient
	}
	return TransportFailure
}

func smtpReplyCode(err error) int {
	var tpErr *textproto.Error
	if errors.As(err, &tpErr) {
		return tpErr.Code
	}
	if m := smtpCodePattern.FindStringSubmatch(err.Error()); m != nil {
		code, _ := strconv.Atoi(m[1])
		return code
	}
	return 0
}

// ClassifyText applies the size, authentication, and recipient hints to
// providers that report failures only as text.
func ClassifyText(text string) ReasonCode {
	text = strings.ToLower(text)
	switch {
	case containsAny(text, sizeLimitHints):
		return SizeLimitExceeded
	case containsAny(text, authHints):
		return AuthFailure
	case containsAny(text, recipientHints):
		return InvalidRecipient
	}
	return TransportFailure
}

func containsAny(s string, substrs []string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
