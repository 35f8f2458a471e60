package email

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"net/textproto"
	"strings"
)

var charsetUtf8 = map[string]string{"charset": "utf-8"}
var textContentType = mime.FormatMediaType("text/plain", charsetUtf8)
var htmlContentType = mime.FormatMediaType("text/html", charsetUtf8)

// base64LineLength is the RFC 2045 limit for encoded lines.
const base64LineLength = 76

// WriteTo emits msg as a complete RFC 5322 message with CRLF line endings.
//
// A message with attachments is multipart/mixed wrapping a
// multipart/alternative body. Without attachments the body alone is the
// top-level entity, and a message without an HTML body is text/plain.
func (msg *Message) WriteTo(out io.Writer) (n int64, err error) {
	cw := &countingWriter{w: out}
	w := &writer{buf: cw}
	msg.emitHeaders(w)

	switch {
	case len(msg.Attachments) != 0:
		msg.emitMixed(w)
	case msg.HtmlBody != "":
		msg.emitAlternative(w, nil)
	default:
		msg.emitTextOnly(w)
	}
	return cw.n, w.err
}

// Bytes returns the output of WriteTo as a byte slice.
func (msg *Message) Bytes() ([]byte, error) {
	sb := &strings.Builder{}
	if _, err := msg.WriteTo(sb); err != nil {
		return nil, fmt.Errorf("failed to build message to %s: %w", msg.To, err)
	}
	return []byte(sb.String()), nil
}

func (msg *Message) emitHeaders(w *writer) {
	from := &mail.Address{Name: stripNewlines(msg.FromName), Address: msg.From}
	to := &mail.Address{Address: stripNewlines(msg.To)}
	subject := mime.QEncoding.Encode("utf-8", stripNewlines(msg.Subject))

	w.WriteLine("From: " + from.String())
	w.WriteLine("To: " + to.String())
	w.WriteLine("Subject: " + subject)
	w.WriteLine("MIME-Version: 1.0")
}

func (msg *Message) emitTextOnly(w *writer) {
	w.WriteLine("Content-Type: " + textContentType)
	w.WriteLine("Content-Transfer-Encoding: quoted-printable")
	w.WriteLine("")

	if w.err == nil {
		w.err = convertToQuotedPrintable(w, convertToCrlf(msg.TextBody))
	}
}

// emitAlternative writes the text and HTML parts. When parent is non-nil,
// the alternative entity becomes one of its parts instead of the top level.
func (msg *Message) emitAlternative(w *writer, parent *multipart.Writer) {
	boundary := multipart.NewWriter(io.Discard).Boundary()
	contentType := mime.FormatMediaType(
		"multipart/alternative", map[string]string{"boundary": boundary},
	)

	var body io.Writer = w
	if parent == nil {
		w.WriteLine("Content-Type: " + contentType)
		w.WriteLine("")
	} else if w.err == nil {
		h := textproto.MIMEHeader{}
		h.Set("Content-Type", contentType)
		body, w.err = parent.CreatePart(h)
	}
	if w.err != nil {
		return
	}

	mpw := multipart.NewWriter(body)
	if w.err = mpw.SetBoundary(boundary); w.err != nil {
		return
	}

	h := textproto.MIMEHeader{}
	h.Add("Content-Transfer-Encoding", "quoted-printable")

	if w.err == nil {
		w.err = emitPart(mpw, h, textContentType, msg.TextBody)
	}
	if w.err == nil {
		w.err = emitPart(mpw, h, htmlContentType, msg.HtmlBody)
	}
	if w.err == nil {
		w.err = mpw.Close()
	}
}

func (msg *Message) emitMixed(w *writer) {
	mpw := multipart.NewWriter(w)
	contentType := mime.FormatMediaType(
		"multipart/mixed", map[string]string{"boundary": mpw.Boundary()},
	)
	w.WriteLine("Content-Type: " + contentType)
	w.WriteLine("")

	if msg.HtmlBody != "" {
		msg.emitAlternative(w, mpw)
	} else if w.err == nil {
		h := textproto.MIMEHeader{}
		h.Add("Content-Transfer-Encoding", "quoted-printable")
		w.err = emitPart(mpw, h, textContentType, msg.TextBody)
	}

	for i := range msg.Attachments {
		if w.err != nil {
			return
		}
		w.err = emitAttachment(mpw, &msg.Attachments[i])
	}
	if w.err == nil {
		w.err = mpw.Close()
	}
}

func emitPart(
	w *multipart.Writer, h textproto.MIMEHeader, contentType, body string,
) error {
	h.Set("Content-Type", contentType)
	if pw, err := w.CreatePart(h); err != nil {
		return err
	} else {
		return convertToQuotedPrintable(pw, convertToCrlf(body))
	}
}

func emitAttachment(w *multipart.Writer, att *Attachment) error {
	mediaType, params, err := mime.ParseMediaType(att.ContentType)
	if err != nil {
		mediaType, params = "application/octet-stream", map[string]string{}
	}
	name := stripNewlines(att.Name)
	params["name"] = name

	h := textproto.MIMEHeader{}
	h.Set("Content-Type", mime.FormatMediaType(mediaType, params))
	h.Set("Content-Disposition", mime.FormatMediaType(
		"attachment", map[string]string{"filename": name},
	))
	h.Set("Content-Transfer-Encoding", "base64")

	pw, err := w.CreatePart(h)
	if err != nil {
		return fmt.Errorf("failed to add attachment %s: %w", att.Name, err)
	}
	return writeBase64Lines(pw, att.Content)
}

func writeBase64Lines(w io.Writer, content []byte) error {
	encoded := base64.StdEncoding.EncodeToString(content)
	lw := &writer{buf: w}

	for len(encoded) > base64LineLength {
		lw.WriteLine(encoded[:base64LineLength])
		encoded = encoded[base64LineLength:]
	}
	if len(encoded) != 0 {
		lw.WriteLine(encoded)
	}
	return lw.err
}

func convertToQuotedPrintable(w io.Writer, msg string) error {
	qpw := quotedprintable.NewWriter(w)
	_, err := qpw.Write([]byte(msg))
	return errors.Join(err, qpw.Close())
}

func stripNewlines(s string) string {
	return strings.NewReplacer("\r", "", "\n", "").Replace(s)
}

func convertToCrlf(s string) string {
	// Per 'man ascii':
	// - 0x0d == "\r"
	// - 0x0a == "\n"
	numLf := 0
	for i := range s {
		if s[i] == 0x0a {
			numLf++
		}
	}

	buf := make([]byte, len(s)+numLf)
	n := 0
	emitCr := true

	for i := range s {
		c := s[i]
		switch c {
		case 0x0a:
			if emitCr {
				buf[n] = 0x0d
				n++
			}
		default:
			emitCr = c != 0x0d
		}
		buf[n] = c
		n++
	}
	return string(buf[:n])
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (cw *countingWriter) Write(b []byte) (int, error) {
	n, err := cw.w.Write(b)
	cw.n += int64(n)
	return n, err
}
