// Copyright © 2023 Mike Bland <mbland@acm.org>.
// See LICENSE.txt for details.

package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mbland/mailmerge/handler"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const FlagListen = "listen"

const (
	ReadHeaderTimeout = 10 * time.Second
	ShutdownTimeout   = 30 * time.Second
)

func init() {
	rootCmd.AddCommand(newServeCmd(LoadOptions, NewDispatcher))
}

func newServeCmd(
	loadOptions OptionsLoaderFunc, newDispatcher DispatcherFactoryFunc,
) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Long: `Serves the HTTP API until interrupted:

  POST /api/analyze   describe an uploaded recipient table
  POST /api/validate  check sender credentials
  POST /api/send      send to every recipient in an uploaded table
  GET  /api/sample    download a sample recipient workbook

Requests to /api/validate and /api/send supply their own sender email, name,
and password form fields. If MAILMERGE_API_TOKEN is set, every request must
carry it as a bearer token, and the submitted fields become optional
overrides of the configured sender. Without a token, the SES and Resend
transports refuse to send, since they'd use the server's credentials.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.SilenceUsage = true

			opts, err := loadOptions(cmd)
			if err != nil {
				return err
			}
			if addr := getStringFlag(cmd, FlagListen); addr != "" {
				opts.Listen = addr
			}

			ctx, stop := signal.NotifyContext(
				cmd.Context(), os.Interrupt, syscall.SIGTERM,
			)
			defer stop()

			logger := newLogger(cmd)
			d, err := newDispatcher(ctx, opts, logger)
			if err != nil {
				return err
			}
			api := &handler.Api{
				Runner:            d,
				Validator:         d.Transports.NewValidator(),
				Config:            d.Config,
				Sender:            opts.Credentials(),
				Token:             opts.ApiToken,
				ServerCredentials: opts.ServerCredentials(),
				Log:               logger,
			}

			ln, err := net.Listen("tcp", opts.Listen)
			if err != nil {
				return fmt.Errorf("failed to listen on %s: %w", opts.Listen, err)
			}
			return serve(ctx, ln, api.Router(), logger)
		},
	}
	cmd.Flags().StringP(
		FlagListen, "l", "", "address to listen on (default from config)",
	)
	return cmd
}

// serve handles requests on ln until ctx is done, then waits up to
// ShutdownTimeout for active requests to finish.
func serve(
	ctx context.Context, ln net.Listener, h http.Handler, logger *log.Logger,
) error {
	srv := &http.Server{
		Handler:           h,
		ReadHeaderTimeout: ReadHeaderTimeout,
		ErrorLog:          logger,
	}
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Printf("listening on %s", ln.Addr())
		if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(
			context.Background(), ShutdownTimeout,
		)
		defer cancel()
		logger.Printf("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
