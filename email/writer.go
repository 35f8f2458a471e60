package email

import (
	"io"
)

// writer records the first error from buf and ignores writes after that.
type writer struct {
	buf io.Writer
	err error
}

func (w *writer) WriteLine(s string) {
	if w.err == nil {
		_, w.err = w.buf.Write([]byte(s + "\r\n"))
	}
}

func (w *writer) Write(b []byte) (n int, err error) {
	if w.err == nil {
		n, err = w.buf.Write(b)
		w.err = err
	}
	return
}
