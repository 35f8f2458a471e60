// Copyright © 2023 Mike Bland <mbland@acm.org>.
// See LICENSE.txt for details.

package cmd

import (
	"fmt"
	"strings"

	"github.com/mbland/mailmerge/dispatch"
	"github.com/mbland/mailmerge/email"
	"github.com/spf13/cobra"
)

const FlagRow = "row"

func init() {
	rootCmd.AddCommand(newPreviewCmd(LoadOptions))
}

func newPreviewCmd(loadOptions OptionsLoaderFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preview <recipients.csv|recipients.xlsx>",
		Short: "Preview a raw email message without sending it",
		Long: `Merges the subject and body templates with one row of the
recipient table, then emits the raw email message that row's recipient would
receive to standard output.

Placeholders without a matching column, and recipient addresses that don't
look deliverable, are reported on standard error.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			return preview(cmd, loadOptions, args[0])
		},
	}
	registerMessageFlags(cmd)
	cmd.Flags().IntP(FlagRow, "r", 1, "recipient row to preview, from 1")
	return cmd
}

func preview(
	cmd *cobra.Command, loadOptions OptionsLoaderFunc, recipientsPath string,
) error {
	opts, err := loadOptions(cmd)
	if err != nil {
		return err
	}

	job, err := readJob(cmd, opts.Credentials(), recipientsPath)
	if err != nil {
		return err
	}

	row := getIntFlag(cmd, FlagRow)
	msg, resolved, err := dispatch.Preview(job, opts.DispatchConfig(), row)
	if err != nil {
		return err
	}

	warnings := cmd.ErrOrStderr()
	if len(resolved.Unresolved) != 0 {
		fmt.Fprintf(
			warnings, "row %d: unresolved placeholders: %s\n",
			row, strings.Join(resolved.Unresolved, ", "),
		)
	}
	if !email.IsPlausibleAddress(msg.To) {
		fmt.Fprintf(
			warnings, "row %d: not a plausible email address: %q\n",
			row, msg.To,
		)
	}
	_, err = msg.WriteTo(cmd.OutOrStdout())
	return err
}
