//go:build small_tests || all_tests

package cmd

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mbland/mailmerge/config"
	"github.com/mbland/mailmerge/email"
	"github.com/mbland/mailmerge/testutils"
	"github.com/spf13/cobra"
	"gotest.tools/assert"
	is "gotest.tools/assert/cmp"
)

// unsetEnv unsets varname for the duration of the test.
func unsetEnv(t *testing.T, varname string) {
	t.Setenv(varname, "")
	os.Unsetenv(varname)
}

func TestLoadOptions(t *testing.T) {
	setup := func(t *testing.T, args ...string) *cobra.Command {
		t.Chdir(t.TempDir())
		unsetEnv(t, "MAILMERGE_ADDRESS_COLUMN")
		unsetEnv(t, "MAILMERGE_SENDER_ADDRESS")

		cmd := &cobra.Command{}
		registerGlobalFlags(cmd)
		assert.NilError(t, cmd.ParseFlags(args))
		return cmd
	}

	t.Run("ReturnsDefaultsWithoutFiles", func(t *testing.T) {
		cmd := setup(t)

		opts, err := LoadOptions(cmd)

		assert.NilError(t, err)
		assert.Equal(t, config.TransportSmtp, opts.Transport)
		assert.Equal(t, "Email", opts.AddressColumn)
	})

	t.Run("ReadsDefaultConfigFileAndEnvFile", func(t *testing.T) {
		cmd := setup(t)
		writeTestFile(t, config.DefaultFilename, "address_column: Mail\n")
		writeTestFile(t, ".env", "MAILMERGE_SENDER_ADDRESS=foo@bar.com\n")

		opts, err := LoadOptions(cmd)

		assert.NilError(t, err)
		assert.Equal(t, "Mail", opts.AddressColumn)
		assert.Equal(t, "foo@bar.com", opts.Sender.Address)
	})

	t.Run("PrefersConfigFlag", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "custom.yaml")
		cmd := setup(t, "--config", path)
		writeTestFile(t, config.DefaultFilename, "address_column: Mail\n")
		writeTestFile(t, path, "address_column: Correo\n")

		opts, err := LoadOptions(cmd)

		assert.NilError(t, err)
		assert.Equal(t, "Correo", opts.AddressColumn)
	})

	t.Run("FailsIfConfigInvalid", func(t *testing.T) {
		cmd := setup(t)
		writeTestFile(t, config.DefaultFilename, "transport: carrier-pigeon\n")

		_, err := LoadOptions(cmd)

		assert.ErrorContains(t, err, "transport must be one of")
		assert.Assert(t, testutils.ErrorIs(err, config.ErrInvalidOptions))
	})
}

func TestNewLogger(t *testing.T) {
	setup := func(args ...string) (*cobra.Command, *strings.Builder) {
		cmd := &cobra.Command{Use: "test-cmd"}
		registerGlobalFlags(cmd)
		stderr := &strings.Builder{}
		cmd.SetErr(stderr)
		assert.NilError(t, cmd.ParseFlags(args))
		return cmd, stderr
	}

	t.Run("WritesToStderr", func(t *testing.T) {
		cmd, stderr := setup()

		newLogger(cmd).Printf("hello from the logger")

		assert.Assert(t, is.Contains(stderr.String(), "hello from the logger"))
		assert.Assert(t, is.Contains(stderr.String(), "test-cmd"))
	})

	t.Run("DiscardsIfQuiet", func(t *testing.T) {
		cmd, stderr := setup("--quiet")

		newLogger(cmd).Printf("hello from the logger")

		assert.Equal(t, "", stderr.String())
	})
}

func TestNewDispatcher(t *testing.T) {
	ctx := context.Background()
	_, logger := testutils.NewLogs()

	t.Run("CreatesSmtpDispatcherWithoutThrottle", func(t *testing.T) {
		opts := NewTestOptions()

		d, err := NewDispatcher(ctx, opts, logger)

		assert.NilError(t, err)
		assert.Equal(t, opts.DispatchConfig(), d.Config)
		assert.Assert(t, d.Pacer == nil)
		assert.Assert(t, d.Capacity == nil)
		_, ok := d.Transports.NewValidator().(*email.SmtpValidator)
		assert.Assert(t, ok)
	})

	t.Run("FailsIfCapacityInvalid", func(t *testing.T) {
		opts := NewTestOptions()
		opts.Ses.Capacity = "lots"

		_, err := NewDispatcher(ctx, opts, logger)

		assert.Assert(t, err != nil)
	})
}
