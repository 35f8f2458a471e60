package merge

import (
	"slices"
	"strings"
)

// Fields is the read-only view of a recipient record used for substitution.
type Fields interface {
	Lookup(name string) (value string, ok bool)
}

// Resolved is a template with one recipient's values substituted.
type Resolved struct {
	Subject string

	Body string

	// Unresolved lists placeholder names with no matching field, sorted. Each
	// remains in Subject or Body as its literal "{Name}" text.
	Unresolved []string
}

// Resolve substitutes the fields into the template. It never fails; missing
// fields are reported through Resolved.Unresolved.
func (t *Template) Resolve(fields Fields) Resolved {
	missing := map[string]bool{}
	r := Resolved{
		Subject: t.Subject.resolve(fields, missing),
		Body:    t.Body.resolve(fields, missing),
	}

	if len(missing) != 0 {
		r.Unresolved = make([]string, 0, len(missing))
		for name := range missing {
			r.Unresolved = append(r.Unresolved, name)
		}
		slices.Sort(r.Unresolved)
	}
	return r
}

func (p Pattern) resolve(fields Fields, missing map[string]bool) string {
	sb := &strings.Builder{}

	for _, seg := range p {
		if seg.Kind == Literal {
			sb.WriteString(seg.Text)
		} else if value, ok := fields.Lookup(seg.Text); ok {
			sb.WriteString(value)
		} else {
			missing[seg.Text] = true
			seg.writeTo(sb)
		}
	}
	return sb.String()
}

// MapFields adapts a plain map for previews and tests.
type MapFields map[string]string

func (m MapFields) Lookup(name string) (value string, ok bool) {
	value, ok = m[name]
	return
}
