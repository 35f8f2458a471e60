// Copyright © 2023 Mike Bland <mbland@acm.org>.
// See LICENSE.txt for details.

package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/mbland/mailmerge/merge"
	"github.com/mbland/mailmerge/table"
	"github.com/spf13/cobra"
)

const FlagJson = "json"
const FlagRows = "rows"

// analysis adds the template's merge fields, if any, to a table.Summary.
type analysis struct {
	*table.Summary
	MergeFields []mergeField `json:"mergeFields,omitempty"`
}

type mergeField struct {
	Name    string `json:"name"`
	Present bool   `json:"present"`
}

func init() {
	rootCmd.AddCommand(newAnalyzeCmd())
}

func newAnalyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze <recipients.csv|recipients.xlsx>",
		Short: "Describe a recipient table without sending anything",
		Long: `Prints the columns, row count, and first rows of a recipient
table. Each column name may appear in templates as a {Column} placeholder.

Given --subject or --body, also lists the template's placeholders and whether
the table has a column for each.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			return analyze(cmd, args[0])
		},
	}
	flags := cmd.Flags()
	flags.Bool(FlagJson, false, "emit the summary as JSON")
	flags.IntP(
		FlagRows, "n", table.DefaultPreviewRows, "number of rows to preview",
	)
	flags.StringP(FlagSubject, "s", "", "subject template to check")
	flags.StringP(FlagBody, "b", "", "file containing a body template to check")
	return cmd
}

func analyze(cmd *cobra.Command, path string) error {
	tbl, err := readTable(path)
	if err != nil {
		return err
	}

	a := &analysis{Summary: table.Summarize(tbl, getIntFlag(cmd, FlagRows))}
	if a.MergeFields, err = mergeFields(cmd, tbl); err != nil {
		return err
	}

	if getBoolFlag(cmd, FlagJson) {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(a)
	}
	return writeAnalysis(cmd.OutOrStdout(), path, a)
}

func mergeFields(cmd *cobra.Command, tbl *table.Table) ([]mergeField, error) {
	subject := getStringFlag(cmd, FlagSubject)
	bodyPath := getStringFlag(cmd, FlagBody)
	if subject == "" && bodyPath == "" {
		return nil, nil
	}

	body := ""
	if bodyPath != "" {
		data, err := os.ReadFile(bodyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read body template: %w", err)
		}
		body = string(data)
	}

	tmpl, err := merge.Compile(subject, body)
	if err != nil {
		return nil, err
	}
	names := tmpl.Placeholders()
	fields := make([]mergeField, len(names))
	for i, name := range names {
		fields[i] = mergeField{Name: name, Present: tbl.HasColumn(name)}
	}
	return fields, nil
}

func writeAnalysis(out io.Writer, path string, a *analysis) error {
	fmt.Fprintf(out, "%s: %d recipients\n", path, a.RowCount)
	fmt.Fprintf(out, "Columns: %s\n", strings.Join(a.Columns, ", "))

	if len(a.MergeFields) != 0 {
		fields := make([]string, len(a.MergeFields))
		for i, f := range a.MergeFields {
			fields[i] = f.Name
			if !f.Present {
				fields[i] += " (no such column)"
			}
		}
		fmt.Fprintf(out, "Merge fields: %s\n", strings.Join(fields, ", "))
	}
	if len(a.Preview) == 0 {
		return nil
	}

	fmt.Fprintln(out)
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(a.Columns, "\t"))
	for _, row := range a.Preview {
		values := make([]string, len(a.Columns))
		for i, c := range a.Columns {
			values[i] = row[c]
		}
		fmt.Fprintln(tw, strings.Join(values, "\t"))
	}
	return tw.Flush()
}
