// Copyright © 2023 Mike Bland <mbland@acm.org>.
// See LICENSE.txt for details.

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newValidateCmd(LoadOptions, NewDispatcher))
}

func newValidateCmd(
	loadOptions OptionsLoaderFunc, newDispatcher DispatcherFactoryFunc,
) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the configured sender credentials",
		Long: `Connects to the configured transport and checks that it accepts
the sender's credentials, without sending anything.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.SilenceUsage = true

			opts, err := loadOptions(cmd)
			if err != nil {
				return err
			} else if err = opts.RequireSecrets(); err != nil {
				return err
			}

			logger := newLogger(cmd)
			d, err := newDispatcher(cmd.Context(), opts, logger)
			if err != nil {
				return err
			}

			creds := opts.Credentials()
			validator := d.Transports.NewValidator()
			result := validator.ValidateCredentials(cmd.Context(), creds)
			if !result.Valid {
				return fmt.Errorf(
					"%s credentials for %s are invalid: %s",
					opts.Transport, creds.Address, result.Message,
				)
			}
			fmt.Fprintf(
				cmd.OutOrStdout(),
				"The %s credentials for %s are valid.\n",
				opts.Transport, creds.Address,
			)
			return nil
		},
	}
}
