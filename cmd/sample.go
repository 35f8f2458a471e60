// Copyright © 2023 Mike Bland <mbland@acm.org>.
// See LICENSE.txt for details.

package cmd

import (
	"bytes"
	"fmt"
	"os"

	"github.com/mbland/mailmerge/table"
	"github.com/spf13/cobra"
)

const DefaultSampleFilename = "sample.xlsx"

func init() {
	rootCmd.AddCommand(newSampleCmd())
}

func newSampleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sample [file]",
		Short: "Write a sample recipient workbook",
		Long: `Writes an XLSX workbook with a header row of merge fields and a
few example recipients, to ` + DefaultSampleFilename + ` by default. Use "-"
to write the workbook to standard output.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			path := DefaultSampleFilename
			if len(args) != 0 {
				path = args[0]
			}
			return writeSample(cmd, path)
		},
	}
}

func writeSample(cmd *cobra.Command, path string) error {
	buf := &bytes.Buffer{}
	if err := table.WriteSample(buf); err != nil {
		return err
	}

	if path == "-" {
		_, err := cmd.OutOrStdout().Write(buf.Bytes())
		return err
	} else if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write sample: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote sample recipients to %s\n", path)
	return nil
}
