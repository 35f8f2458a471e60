package email

import (
	"bytes"
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
)

var blockBreaks = regexp.MustCompile(
	`(?i)<br\s*/?>|</p\s*>|</div\s*>|</li\s*>|</h[1-6]\s*>|</tr\s*>`,
)
var blankLines = regexp.MustCompile(`\n{3,}`)

var strictPolicy = bluemonday.StrictPolicy()

// PlainText derives the text/plain alternative for an HTML body by removing
// all markup. Block-level closing tags and <br> become newlines.
func PlainText(htmlBody string) string {
	withBreaks := blockBreaks.ReplaceAllString(htmlBody, "$0\n")
	text := html.UnescapeString(strictPolicy.Sanitize(withBreaks))

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	text = strings.Join(lines, "\n")
	return strings.TrimSpace(blankLines.ReplaceAllString(text, "\n\n"))
}

// RenderMarkdown converts a markdown-authored body to HTML.
func RenderMarkdown(src string) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(src), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}
