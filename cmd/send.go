// Copyright © 2023 Mike Bland <mbland@acm.org>.
// See LICENSE.txt for details.

package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"os/signal"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	ltypes "github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"github.com/google/uuid"
	"github.com/mbland/mailmerge/config"
	"github.com/mbland/mailmerge/dispatch"
	"github.com/mbland/mailmerge/events"
	"github.com/mbland/mailmerge/report"
	"github.com/spf13/cobra"
)

const (
	FlagReport   = "report"
	FlagFunction = "function"
)

// InputsPrefix is where remote sends upload their recipient tables and
// attachments, under a directory unique to each invocation.
const InputsPrefix = "inputs"

func init() {
	rootCmd.AddCommand(
		newSendCmd(LoadOptions, NewDispatcher, NewInputStore, NewLambdaClient),
	)
}

func newSendCmd(
	loadOptions OptionsLoaderFunc,
	newDispatcher DispatcherFactoryFunc,
	newInputStore InputStoreFactoryFunc,
	newLambdaClient LambdaClientFactoryFunc,
) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send <recipients.csv|recipients.xlsx>",
		Short: "Send a personalized message to every recipient in a table",
		Long: `Sends one message per row of the recipient table, in order,
pausing between recipients. Every {Column} placeholder in the subject and body
is replaced with that row's value.

Afterward, writes a report of every recipient's outcome, by default to
email_report_YYYY-MM-DD.xlsx in the current directory.

With --function, uploads the recipient table and attachments to the
configured storage bucket, and has the named Lambda function send the
messages instead. The function uploads the report and returns a link to it.

Interrupting a local send stops it before the next recipient. The report
marks every remaining recipient as not attempted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			opts, err := loadOptions(cmd)
			if err != nil {
				return err
			}

			if function := getStringFlag(cmd, FlagFunction); function != "" {
				s := &remoteSend{
					function:        function,
					newInputStore:   newInputStore,
					newLambdaClient: newLambdaClient,
				}
				return s.send(cmd, opts, args[0])
			}
			return sendLocally(cmd, opts, newDispatcher, args[0])
		},
	}
	registerMessageFlags(cmd)
	cmd.Flags().String(
		FlagReport, "", "report file path; the extension selects the format",
	)
	cmd.Flags().String(
		FlagFunction, "", "name or ARN of a Lambda function to send with",
	)
	return cmd
}

func sendLocally(
	cmd *cobra.Command,
	opts *config.Options,
	newDispatcher DispatcherFactoryFunc,
	recipientsPath string,
) error {
	if err := opts.RequireSecrets(); err != nil {
		return err
	}

	job, err := readJob(cmd, opts.Credentials(), recipientsPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	d, err := newDispatcher(ctx, opts, newLogger(cmd))
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	d.Progress = func(done, total int, o dispatch.Outcome) {
		printProgress(out, done, total, o)
	}

	rep := d.Run(ctx, job)
	reportPath, err := writeReport(cmd, opts, rep)
	if err != nil {
		return err
	}

	fmt.Fprintf(
		out, "Sent %d of %d emails; %d failed.\nReport: %s\n",
		rep.Sent, rep.Total, rep.Failed, reportPath,
	)
	if help := rep.Help(); help != "" {
		fmt.Fprintf(out, "Help: %s\n", help)
	}
	if rep.Status == dispatch.RunAborted {
		return fmt.Errorf(
			"aborted after sending %d of %d emails: %w",
			rep.Sent, rep.Total, rep.AbortReason,
		)
	}
	return nil
}

func printProgress(out io.Writer, done, total int, o dispatch.Outcome) {
	line := fmt.Sprintf("[%d/%d] %s: %s", done, total, o.Address, o.Status)
	if o.Reason != "" {
		line += fmt.Sprintf(" (%s)", o.Reason)
	}
	if o.Detail != "" {
		line += ": " + o.Detail
	}
	fmt.Fprintln(out, line)
}

// writeReport writes to --report if given, in the format its extension names,
// or to the default report filename in the configured format.
func writeReport(
	cmd *cobra.Command, opts *config.Options, rep *dispatch.Report,
) (reportPath string, err error) {
	var format report.Format
	if format, err = opts.Format(); err != nil {
		return
	}

	reportPath = getStringFlag(cmd, FlagReport)
	if reportPath == "" {
		reportPath = report.Filename(rep.Started, format)
	} else {
		ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(reportPath), "."))
		switch f := report.Format(ext); f {
		case report.FormatCsv, report.FormatXlsx:
			format = f
		}
	}

	var f *os.File
	if f, err = os.Create(reportPath); err != nil {
		return "", fmt.Errorf("failed to create report: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); err == nil && closeErr != nil {
			err = fmt.Errorf("failed to write report: %w", closeErr)
		}
	}()
	err = report.Write(f, rep, format)
	return
}

type remoteSend struct {
	function        string
	newInputStore   InputStoreFactoryFunc
	newLambdaClient LambdaClientFactoryFunc
}

func (s *remoteSend) send(
	cmd *cobra.Command, opts *config.Options, recipientsPath string,
) (err error) {
	ctx := cmd.Context()
	var store InputStore
	var client LambdaClient
	var evt *events.SendEvent
	var payload []byte

	if store, err = s.newInputStore(ctx, opts); err != nil {
		return
	} else if client, err = s.newLambdaClient(ctx); err != nil {
		return
	} else if evt, err = uploadInputs(cmd, store, recipientsPath); err != nil {
		return
	}
	evt.From = opts.Sender.Address
	evt.FromName = opts.Sender.Name

	cmdEvent := &events.CommandLineEvent{
		MailMergeCommand: events.CommandLineSendEvent,
		Send:             evt,
	}
	if payload, err = json.Marshal(cmdEvent); err != nil {
		return fmt.Errorf("error creating Lambda payload: %s", err)
	}

	input := &lambda.InvokeInput{
		FunctionName: aws.String(s.function),
		LogType:      ltypes.LogTypeTail,
		Payload:      payload,
	}
	var output *lambda.InvokeOutput
	var response events.SendResponse

	if output, err = client.Invoke(ctx, input); err != nil {
		err = fmt.Errorf("error invoking Lambda function: %s", err)
	} else if output.StatusCode != http.StatusOK {
		const errFmt = "received non-200 response: %s"
		err = fmt.Errorf(errFmt, http.StatusText(int(output.StatusCode)))
	} else if output.FunctionError != nil {
		const errFmt = "error executing Lambda function: %s: %s"
		funcErr := aws.ToString(output.FunctionError)
		err = fmt.Errorf(errFmt, funcErr, string(output.Payload))
	} else if err = json.Unmarshal(output.Payload, &response); err != nil {
		const errFmt = "failed to unmarshal Lambda response payload: %s: %s"
		err = fmt.Errorf(errFmt, err, string(output.Payload))
	} else {
		err = printRemoteResponse(cmd.OutOrStdout(), &response)
	}
	return
}

func printRemoteResponse(out io.Writer, res *events.SendResponse) error {
	fmt.Fprintf(
		out, "Run %s: sent %d of %d emails; %d failed.\n",
		res.RunId, res.NumSent, res.Total, res.NumFailed,
	)
	if res.ReportUrl != "" {
		fmt.Fprintf(out, "Report: %s\n", res.ReportUrl)
	}
	if res.Help != "" {
		fmt.Fprintf(out, "Help: %s\n", res.Help)
	}
	if !res.Success {
		const errFmt = "sending failed after sending to %d recipients: %s"
		return fmt.Errorf(errFmt, res.NumSent, res.Details)
	}
	return nil
}

// uploadInputs stores the recipient table and every attachment under a new
// directory beneath InputsPrefix, and returns the event referring to them.
func uploadInputs(
	cmd *cobra.Command, store InputStore, recipientsPath string,
) (*events.SendEvent, error) {
	ctx := cmd.Context()
	dir := path.Join(InputsPrefix, uuid.NewString())

	recipients, err := os.ReadFile(recipientsPath)
	if err != nil {
		return nil, err
	}
	body, err := os.ReadFile(getStringFlag(cmd, FlagBody))
	if err != nil {
		return nil, fmt.Errorf("failed to read body template: %w", err)
	}

	name := filepath.Base(recipientsPath)
	evt := &events.SendEvent{
		Subject:       getStringFlag(cmd, FlagSubject),
		Body:          string(body),
		RecipientsKey: store.Key(path.Join(dir, name)),
	}
	err = store.Put(ctx, evt.RecipientsKey, contentType(name), recipients)
	if err != nil {
		return nil, fmt.Errorf("failed to upload recipients: %w", err)
	}

	for i, attPath := range getStringArrayFlag(cmd, FlagAttach) {
		data, err := os.ReadFile(attPath)
		if err != nil {
			return nil, fmt.Errorf(
				"failed to read attachment %s: %w", attPath, err,
			)
		}
		// The index keeps attachments with the same base name distinct.
		name := filepath.Base(attPath)
		key := store.Key(path.Join(dir, fmt.Sprintf("%d", i), name))
		if err := store.Put(ctx, key, contentType(name), data); err != nil {
			return nil, fmt.Errorf(
				"failed to upload attachment %s: %w", attPath, err,
			)
		}
		evt.AttachmentKeys = append(evt.AttachmentKeys, key)
	}
	return evt, nil
}

func contentType(name string) string {
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
