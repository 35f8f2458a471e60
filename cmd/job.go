package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/mbland/mailmerge/dispatch"
	"github.com/mbland/mailmerge/email"
	"github.com/mbland/mailmerge/table"
	"github.com/spf13/cobra"
)

func readFile(_ context.Context, name string) ([]byte, error) {
	return os.ReadFile(name)
}

func readTable(path string) (*table.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	tbl, err := table.DecodeFile(path, f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return tbl, nil
}

// readJob builds a job from the recipient table at recipientsPath and the
// --subject, --body, and --attach flags.
func readJob(
	cmd *cobra.Command, creds email.Credentials, recipientsPath string,
) (*dispatch.Job, error) {
	tbl, err := readTable(recipientsPath)
	if err != nil {
		return nil, err
	}

	bodyPath := getStringFlag(cmd, FlagBody)
	body, err := os.ReadFile(bodyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read body template: %w", err)
	}

	atts, err := email.LoadAttachments(
		cmd.Context(), getStringArrayFlag(cmd, FlagAttach), readFile,
	)
	if err != nil {
		return nil, err
	}

	return &dispatch.Job{
		Subject:     getStringFlag(cmd, FlagSubject),
		Body:        string(body),
		Recipients:  tbl.Records,
		Attachments: atts,
		Credentials: creds,
	}, nil
}
