package cmd

import (
	"context"
	"errors"
	"io"
	"io/fs"
	stdlog "log"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/charmbracelet/log"
	"github.com/mbland/mailmerge/config"
	"github.com/mbland/mailmerge/handler"
	"github.com/spf13/cobra"
)

type OptionsLoaderFunc func(cmd *cobra.Command) (*config.Options, error)

// LoadOptions loads the --env-file, then the --config file, falling back to
// config.DefaultFilename if it exists.
func LoadOptions(cmd *cobra.Command) (*config.Options, error) {
	if err := config.LoadDotEnv(getStringFlag(cmd, FlagEnvFile)); err != nil {
		return nil, err
	}

	path := getStringFlag(cmd, FlagConfig)
	if path == "" {
		_, err := os.Stat(config.DefaultFilename)
		if err == nil {
			path = config.DefaultFilename
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	return config.Load(path, os.Getenv)
}

// newLogger writes to the command's stderr unless --quiet is set.
func newLogger(cmd *cobra.Command) *stdlog.Logger {
	var w io.Writer = cmd.ErrOrStderr()
	if getBoolFlag(cmd, FlagQuiet) {
		w = io.Discard
	}
	logger := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		Prefix:          cmd.Name(),
	})
	return logger.StandardLog()
}

type DispatcherFactoryFunc func(
	ctx context.Context, opts *config.Options, logger *stdlog.Logger,
) (*handler.Dispatcher, error)

// NewDispatcher loads the AWS configuration only when opts selects SES, in
// which case the account's send quota paces the run.
func NewDispatcher(
	ctx context.Context, opts *config.Options, logger *stdlog.Logger,
) (d *handler.Dispatcher, err error) {
	var awsCfg *aws.Config
	if opts.Transport == config.TransportSes {
		if awsCfg, err = LoadAwsConfig(ctx); err != nil {
			return
		}
	}

	transports := handler.NewTransports(opts, awsCfg, logger)
	d = &handler.Dispatcher{
		Transports: transports,
		Config:     opts.DispatchConfig(),
		Log:        logger,
	}

	if capacity, err := opts.Capacity(); err != nil {
		return nil, err
	} else if throttle, err := transports.NewThrottle(ctx, capacity); err != nil {
		return nil, err
	} else {
		d.UseThrottle(throttle)
	}
	return
}
