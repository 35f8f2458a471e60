//go:build small_tests || all_tests

package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/mbland/mailmerge/config"
	"github.com/mbland/mailmerge/dispatch"
	"github.com/mbland/mailmerge/email"
	"github.com/mbland/mailmerge/events"
	"github.com/mbland/mailmerge/report"
	"github.com/mbland/mailmerge/testdata"
	"github.com/mbland/mailmerge/testdoubles"
	tu "github.com/mbland/mailmerge/testutils"
	"gotest.tools/assert"
	is "gotest.tools/assert/cmp"
)

type failingStore struct {
	*testdoubles.Store
}

func (s *failingStore) Put(context.Context, string, string, []byte) error {
	return errors.New("access denied")
}

func readReport(t *testing.T, reportPath string) []report.Row {
	t.Helper()
	f, err := os.Open(reportPath)
	assert.NilError(t, err)
	defer f.Close()

	rows, err := report.Read(f, report.FormatCsv)
	assert.NilError(t, err)
	return rows
}

func TestSendLocally(t *testing.T) {
	setup := func(t *testing.T) (
		f *CommandTestFixture, ts *TestServices, inputs *TestInputs,
	) {
		inputs = NewTestInputs(t)
		ts = NewTestServices()
		f = NewCommandTestFixture(newSendCmd(
			ts.LoadOptions, ts.NewDispatcher, ts.NewInputStore,
			ts.NewLambdaClient,
		))
		f.Cmd.SetArgs([]string{
			"-s", testdata.TestSubject,
			"-b", inputs.Body,
			"-a", inputs.Attachment,
			"--report", filepath.Join(inputs.Dir, "report.csv"),
			inputs.Recipients,
		})
		return
	}

	t.Run("SendsToEveryRecipientAndWritesReport", func(t *testing.T) {
		f, ts, inputs := setup(t)

		f.ExecuteAndAssertStdoutContains(t, "Sent 2 of 3 emails; 1 failed.\n")

		out := f.Stdout.String()
		assert.Assert(t, is.Contains(out, "[1/3] ana@example.com: sent\n"))
		assert.Assert(t, is.Contains(out, "[2/3] bo@example.com: sent\n"))
		assert.Assert(t, is.Contains(
			out, "[3/3] not-an-address: failed (InvalidRecipientAddress)",
		))
		reportPath := filepath.Join(inputs.Dir, "report.csv")
		assert.Assert(t, is.Contains(out, "Report: "+reportPath+"\n"))

		mailer := ts.Transports.Mailer
		assert.DeepEqual(
			t, []string{"ana@example.com", "bo@example.com"}, mailer.Order,
		)
		msg := mailer.GetMessageTo(t, "ana@example.com")
		assert.Equal(t, "Statement for Ana", msg.Subject)
		assert.Equal(t, testdata.TestEmail, msg.From)
		assert.Equal(t, 1, len(msg.Attachments))
		assert.Equal(t, "terms.txt", msg.Attachments[0].Name)

		rows := readReport(t, reportPath)
		assert.Equal(t, 3, len(rows))
		assert.Equal(t, "ana@example.com", rows[0].Address)
		assert.Equal(t, string(dispatch.Sent), rows[0].Status)
		assert.Equal(t, string(dispatch.InvalidRecipientAddress), rows[2].Reason)
	})

	t.Run("WritesDefaultReportInConfiguredFormat", func(t *testing.T) {
		f, ts, inputs := setup(t)
		t.Chdir(inputs.Dir)
		ts.Options.ReportFormat = "csv"
		f.Cmd.SetArgs([]string{
			"-s", testdata.TestSubject, "-b", inputs.Body, inputs.Recipients,
		})

		f.ExecuteAndAssertStdoutContains(t, "Report: email_report_")

		matches, err := filepath.Glob("email_report_*.csv")
		assert.NilError(t, err)
		assert.Equal(t, 1, len(matches))
		assert.Equal(t, 3, len(readReport(t, matches[0])))
	})

	t.Run("ReturnsErrorAndWritesReportIfAborted", func(t *testing.T) {
		f, ts, inputs := setup(t)
		ts.Transports.Mailer.RecipientErrors["ana@example.com"] =
			&email.TransportError{
				Code: email.AuthFailure, Message: "credentials revoked",
			}

		err := f.ExecuteAndAssertErrorContains(
			t, "aborted after sending 0 of 3 emails: ",
		)

		assert.Assert(t, is.Contains(err.Error(), "credentials revoked"))
		rows := readReport(t, filepath.Join(inputs.Dir, "report.csv"))
		assert.Equal(t, 3, len(rows))
		assert.Equal(t, string(dispatch.NotAttempted), rows[2].Reason)
	})

	t.Run("ReturnsPreconditionFailure", func(t *testing.T) {
		f, ts, _ := setup(t)
		ts.Transports.Validator.Result = email.Validation{
			Message: "bad password",
		}

		err := f.ExecuteAndAssertErrorContains(t, "bad password")

		var precondErr *dispatch.PreconditionError
		assert.Assert(t, errors.As(err, &precondErr))
		assert.Equal(t, dispatch.TransportUnvalidated, precondErr.Code)
		assert.Equal(t, 0, len(ts.Transports.Mailer.Order))
	})

	t.Run("FailsIfSecretsMissing", func(t *testing.T) {
		f, ts, _ := setup(t)
		ts.Options.Sender.Address = ""

		f.ExecuteAndAssertErrorContains(t, "MAILMERGE_SENDER_ADDRESS")
	})

	t.Run("FailsIfRecipientsMissing", func(t *testing.T) {
		f, _, inputs := setup(t)
		os.Remove(inputs.Recipients)

		f.ExecuteAndAssertErrorContains(t, "recipients.csv")
	})

	t.Run("FailsIfDispatcherFails", func(t *testing.T) {
		f, ts, _ := setup(t)
		ts.DispatcherError = errors.New("no dispatcher")

		f.ExecuteAndAssertErrorContains(t, "no dispatcher")
	})

	t.Run("FailsIfReportCannotBeCreated", func(t *testing.T) {
		f, _, inputs := setup(t)
		f.Cmd.SetArgs([]string{
			"-s", testdata.TestSubject,
			"-b", inputs.Body,
			"--report", filepath.Join(inputs.Dir, "nonexistent", "report.csv"),
			inputs.Recipients,
		})

		f.ExecuteAndAssertErrorContains(t, "failed to create report: ")
	})
}

func TestSendRemotely(t *testing.T) {
	setup := func(t *testing.T) (
		f *CommandTestFixture, ts *TestServices, inputs *TestInputs,
	) {
		inputs = NewTestInputs(t)
		ts = NewTestServices()
		ts.Store.Prefix = "mailmerge"
		ts.Lambda.InvokeOutput.StatusCode = http.StatusOK
		ts.Lambda.InvokeOutput.Payload = []byte(`{
			"Success": true, "RunId": "run-id", "Total": 3, "NumSent": 2,
			"NumFailed": 1, "ReportUrl": "https://test-bucket.local/report"
		}`)

		f = NewCommandTestFixture(newSendCmd(
			ts.LoadOptions, ts.NewDispatcher, ts.NewInputStore,
			ts.NewLambdaClient,
		))
		f.Cmd.SetArgs([]string{
			"-s", testdata.TestSubject,
			"-b", inputs.Body,
			"-a", inputs.Attachment,
			"--function", TestFunctionArn,
			inputs.Recipients,
		})
		return
	}

	invokedEvent := func(t *testing.T, ts *TestServices) *events.SendEvent {
		t.Helper()
		var evt events.CommandLineEvent
		err := json.Unmarshal(ts.Lambda.InvokeInput.Payload, &evt)
		assert.NilError(t, err)
		assert.Equal(t, events.CommandLineSendEvent, evt.MailMergeCommand)
		return evt.Send
	}

	t.Run("UploadsInputsAndInvokesFunction", func(t *testing.T) {
		f, ts, _ := setup(t)

		f.ExecuteAndAssertStdoutContains(
			t, "Run run-id: sent 2 of 3 emails; 1 failed.\n",
		)

		assert.Assert(t, is.Contains(
			f.Stdout.String(), "Report: https://test-bucket.local/report\n",
		))
		tu.AssertAwsStringEqual(
			t, TestFunctionArn, ts.Lambda.InvokeInput.FunctionName,
		)

		evt := invokedEvent(t, ts)
		assert.Equal(t, testdata.TestSubject, evt.Subject)
		assert.Equal(t, testdata.TestBody, evt.Body)
		assert.Equal(t, testdata.TestEmail, evt.From)
		assert.Equal(t, testdata.TestSenderName, evt.FromName)

		prefix := path.Join("mailmerge", InputsPrefix) + "/"
		assert.Assert(t, strings.HasPrefix(evt.RecipientsKey, prefix))
		assert.Equal(t, "recipients.csv", path.Base(evt.RecipientsKey))
		assert.Equal(
			t,
			testdata.TestRecipientsCsv,
			string(ts.Store.Objects[evt.RecipientsKey]),
		)

		assert.Equal(t, 1, len(evt.AttachmentKeys))
		attKey := evt.AttachmentKeys[0]
		assert.Equal(t, "terms.txt", path.Base(attKey))
		assert.Equal(
			t, "Terms and conditions apply.\n", string(ts.Store.Objects[attKey]),
		)
		assert.Assert(t, is.Contains(ts.Store.Types[attKey], "text/plain"))
		assert.Equal(t, 0, len(ts.Transports.Mailer.Order))
	})

	t.Run("FailsIfStoreUnavailable", func(t *testing.T) {
		f, ts, _ := setup(t)
		ts.StoreError = errors.New("no bucket")

		f.ExecuteAndAssertErrorContains(t, "no bucket")
	})

	t.Run("FailsIfLambdaClientUnavailable", func(t *testing.T) {
		f, ts, _ := setup(t)
		ts.LambdaError = errors.New("no credentials")

		f.ExecuteAndAssertErrorContains(t, "no credentials")
	})

	t.Run("FailsIfUploadFails", func(t *testing.T) {
		f, ts, inputs := setup(t)
		newStore := func(context.Context, *config.Options) (InputStore, error) {
			return &failingStore{ts.Store}, nil
		}
		f = NewCommandTestFixture(newSendCmd(
			ts.LoadOptions, ts.NewDispatcher, newStore, ts.NewLambdaClient,
		))
		f.Cmd.SetArgs([]string{
			"-s", testdata.TestSubject,
			"-b", inputs.Body,
			"--function", TestFunctionArn,
			inputs.Recipients,
		})

		f.ExecuteAndAssertErrorContains(
			t, "failed to upload recipients: access denied",
		)
		assert.Assert(t, ts.Lambda.InvokeInput == nil)
	})

	t.Run("FailsIfCannotInvokeLambda", func(t *testing.T) {
		f, ts, _ := setup(t)
		ts.Lambda.InvokeError = errors.New("invoke failed")

		const expectedErr = "error invoking Lambda function: invoke failed"
		f.ExecuteAndAssertErrorContains(t, expectedErr)
	})

	t.Run("FailsIfStatusCodeIsNotHttp200", func(t *testing.T) {
		f, ts, _ := setup(t)
		ts.Lambda.InvokeOutput.StatusCode = http.StatusBadRequest

		expectedErr := "received non-200 response: " +
			http.StatusText(http.StatusBadRequest)
		f.ExecuteAndAssertErrorContains(t, expectedErr)
	})

	t.Run("FailsIfLambdaReturnedError", func(t *testing.T) {
		f, ts, _ := setup(t)
		ts.Lambda.InvokeOutput.FunctionError = aws.String("Lambda error")
		ts.Lambda.InvokeOutput.Payload = []byte("something went wrong")

		const expectedErr = "error executing Lambda function: " +
			"Lambda error: something went wrong"
		f.ExecuteAndAssertErrorContains(t, expectedErr)
	})

	t.Run("FailsIfCannotUnmarshalPayload", func(t *testing.T) {
		f, ts, _ := setup(t)
		ts.Lambda.InvokeOutput.Payload = []byte("bogus, invalid payload")

		err := f.ExecuteAndAssertErrorContains(
			t, "failed to unmarshal Lambda response payload: ",
		)

		assert.Assert(t, is.Contains(err.Error(), "bogus, invalid payload"))
	})

	t.Run("FailsIfSendingFailed", func(t *testing.T) {
		f, ts, _ := setup(t)
		ts.Lambda.InvokeOutput.Payload = []byte(`{
			"Success": false, "NumSent": 9, "Details": "test failure",
			"Help": "https://example.com/help"
		}`)

		const expectedErr = "sending failed after sending to 9 recipients: " +
			"test failure"
		f.ExecuteAndAssertErrorContains(t, expectedErr)
		assert.Assert(t, is.Contains(
			f.Stdout.String(), "Help: https://example.com/help\n",
		))
	})
}
