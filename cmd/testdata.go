//go:build small_tests || all_tests

package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mbland/mailmerge/config"
	"github.com/mbland/mailmerge/testdata"
	"gotest.tools/assert"
)

const TestFunctionArn = "arn:aws:lambda:us-east-1:0123456789:function:" +
	"mailmerge-dev-Function-0123456789"

func NewTestOptions() *config.Options {
	opts := config.Defaults()
	opts.Sender.Address = testdata.TestEmail
	opts.Sender.Name = testdata.TestSenderName
	opts.Smtp.Password = testdata.TestPassword
	opts.PacingDelay = 0
	return &opts
}

// TestInputs are files for commands that read a recipient table, body
// template, and attachment.
type TestInputs struct {
	Dir        string
	Recipients string
	Body       string
	Attachment string
}

func NewTestInputs(t *testing.T) *TestInputs {
	t.Helper()
	dir := t.TempDir()
	inputs := &TestInputs{
		Dir:        dir,
		Recipients: filepath.Join(dir, "recipients.csv"),
		Body:       filepath.Join(dir, "body.html"),
		Attachment: filepath.Join(dir, "terms.txt"),
	}
	writeTestFile(t, inputs.Recipients, testdata.TestRecipientsCsv)
	writeTestFile(t, inputs.Body, testdata.TestBody)
	writeTestFile(t, inputs.Attachment, "Terms and conditions apply.\n")
	return inputs
}

func writeTestFile(t *testing.T, path, content string) {
	t.Helper()
	assert.NilError(t, os.WriteFile(path, []byte(content), 0600))
}
