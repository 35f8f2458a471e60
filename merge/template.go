// Package merge compiles subject and body templates containing {Column}
// merge fields and resolves them against individual recipient records.
package merge

import (
	"fmt"
	"strings"
)

const (
	openDelim  = '{'
	closeDelim = '}'
)

// SegmentKind distinguishes literal text from merge field references.
type SegmentKind int

const (
	Literal SegmentKind = iota
	Placeholder
)

// Segment is either literal text or the name of a placeholder.
type Segment struct {
	Kind SegmentKind
	Text string
}

// Pattern is a compiled subject or body.
type Pattern []Segment

// Template is the compiled form of a subject and body pair. It is immutable
// once returned from Compile.
type Template struct {
	Subject Pattern
	Body    Pattern
}

// TemplateError reports a delimiter that was opened but never closed.
type TemplateError struct {
	Field  string
	Offset int
}

func (e *TemplateError) Error() string {
	const errFmt = "unclosed merge field in %s starting at offset %d"
	return fmt.Sprintf(errFmt, e.Field, e.Offset)
}

// Compile parses the subject and body into a Template.
//
// A placeholder is "{" followed by one or more characters other than "{" or
// "}", followed by "}". Any other delimiter character is literal text. The
// only error condition is a "{" with no "}" anywhere after it.
func Compile(subject, body string) (t *Template, err error) {
	var subj, b Pattern

	if subj, err = Parse("subject", subject); err != nil {
		return
	} else if b, err = Parse("body", body); err != nil {
		return
	}
	t = &Template{Subject: subj, Body: b}
	return
}

// Parse compiles a single string. field names the input in a TemplateError.
func Parse(field, input string) (Pattern, error) {
	p := Pattern{}
	literal := &strings.Builder{}

	flush := func() {
		if literal.Len() != 0 {
			p = append(p, Segment{Kind: Literal, Text: literal.String()})
			literal.Reset()
		}
	}

	for i := 0; i < len(input); {
		c := input[i]
		if c != openDelim {
			literal.WriteByte(c)
			i++
			continue
		}

		end := strings.IndexAny(input[i+1:], "{}")
		switch {
		case end == -1:
			return nil, &TemplateError{Field: field, Offset: i}
		case input[i+1+end] == openDelim:
			if strings.IndexByte(input[i+1:], closeDelim) == -1 {
				return nil, &TemplateError{Field: field, Offset: i}
			}
			literal.WriteByte(c)
			i++
		case end == 0:
			literal.WriteString("{}")
			i += 2
		default:
			flush()
			name := input[i+1 : i+1+end]
			p = append(p, Segment{Kind: Placeholder, Text: name})
			i += end + 2
		}
	}
	flush()
	return p, nil
}

// Placeholders returns the distinct placeholder names in the subject and then
// the body, in order of first appearance.
func (t *Template) Placeholders() []string {
	seen := map[string]bool{}
	names := []string{}

	for _, p := range []Pattern{t.Subject, t.Body} {
		for _, seg := range p {
			if seg.Kind == Placeholder && !seen[seg.Text] {
				seen[seg.Text] = true
				names = append(names, seg.Text)
			}
		}
	}
	return names
}

// String reassembles the original input.
func (p Pattern) String() string {
	sb := &strings.Builder{}
	for _, seg := range p {
		seg.writeTo(sb)
	}
	return sb.String()
}

func (seg Segment) writeTo(sb *strings.Builder) {
	if seg.Kind == Placeholder {
		sb.WriteByte(openDelim)
		sb.WriteString(seg.Text)
		sb.WriteByte(closeDelim)
	} else {
		sb.WriteString(seg.Text)
	}
}
