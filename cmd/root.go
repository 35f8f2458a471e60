// Copyright © 2023 Mike Bland <mbland@acm.org>.
// See LICENSE.txt for details.

package cmd

import (
	"github.com/mbland/mailmerge/config"
	"github.com/spf13/cobra"
)

const mailmergeDesc = "Bulk personalized email sender"
const mailmergeDescLong = mailmergeDesc + "\n\n" +
	`Sends one message per row of a CSV or XLSX recipient table, replacing
{Column} placeholders in the subject and body with that row's values.

To inspect a recipient table:
  mailmerge analyze recipients.xlsx

To preview the message for the second recipient:
  mailmerge preview -s "Statement for {Name}" -b body.html -r 2 recipients.xlsx

To check the configured sender credentials:
  mailmerge validate

To send, writing a report of every recipient's outcome:
  mailmerge send -s "Statement for {Name}" -b body.html \
    -a statement.pdf recipients.xlsx

To run the HTTP API:
  mailmerge serve

Settings come from ` + config.DefaultFilename + ` (or --config), then from
MAILMERGE_* environment variables, which may be set in a .env file. The SMTP
password and Resend API key are only read from SMTP_PASSWORD and
RESEND_API_KEY.
`

var rootCmd = &cobra.Command{
	Use:     "mailmerge",
	Version: "v0.1.0",
	Short:   mailmergeDesc,
	Long:    mailmergeDescLong,
}

func init() {
	registerGlobalFlags(rootCmd)
}

func Execute() error {
	return rootCmd.Execute()
}
