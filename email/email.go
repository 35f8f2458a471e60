// Package email defines the mail transport contract used by the dispatch
// engine and implements it for SMTP, Amazon SES, and Resend.
package email

import (
	"context"
	"mime"
	"net/http"
	"net/mail"
	"path/filepath"
)

// Credentials identify the sender. Password is unused by transports that
// authenticate some other way, such as SES with IAM credentials.
type Credentials struct {
	Address  string
	Name     string
	Username string
	Password string
}

// Login returns Username if set, otherwise Address.
func (c Credentials) Login() string {
	if c.Username != "" {
		return c.Username
	}
	return c.Address
}

// Sender formats the From header value, e.g. "Ana Lima <ana@foo.com>".
func (c Credentials) Sender() string {
	return (&mail.Address{Name: c.Name, Address: c.Address}).String()
}

// Attachment is a file shared by every message in a dispatch run.
type Attachment struct {
	Name        string
	ContentType string
	Size        int64
	Content     []byte
}

// NewAttachment sets Size from content and detects the content type from the
// file extension, falling back to sniffing the content.
func NewAttachment(name string, content []byte) Attachment {
	contentType := mime.TypeByExtension(filepath.Ext(name))
	if contentType == "" {
		contentType = http.DetectContentType(content)
	}
	return Attachment{
		Name:        name,
		ContentType: contentType,
		Size:        int64(len(content)),
		Content:     content,
	}
}

// Message is one fully resolved email ready for delivery.
type Message struct {
	From        string
	FromName    string
	To          string
	Subject     string
	TextBody    string
	HtmlBody    string
	Attachments []Attachment
}

// Transport delivers one message per call. Failures should be
// *TransportError values so the caller can classify them.
type Transport interface {
	Send(ctx context.Context, msg *Message) error
}

// Validation is the result of checking sender credentials.
type Validation struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message,omitempty"`
}

// Validator confirms that a transport will accept the given credentials.
type Validator interface {
	ValidateCredentials(ctx context.Context, creds Credentials) Validation
}
