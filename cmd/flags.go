package cmd

import (
	"strconv"

	"github.com/mbland/mailmerge/config"
	"github.com/spf13/cobra"
)

const (
	FlagConfig  = "config"
	FlagEnvFile = "env-file"
	FlagQuiet   = "quiet"
	FlagSubject = "subject"
	FlagBody    = "body"
	FlagAttach  = "attach"
)

func registerGlobalFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.StringP(
		FlagConfig, "c", "",
		"YAML configuration file (default "+config.DefaultFilename+
			" if present)",
	)
	flags.String(
		FlagEnvFile, ".env", "file of environment variables to load first",
	)
	flags.BoolP(FlagQuiet, "q", false, "suppress progress and log messages")
}

func registerMessageFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringP(
		FlagSubject, "s", "", "subject template, e.g. \"Hello {Name}\"",
	)
	flags.StringP(
		FlagBody, "b", "", "file containing the HTML or markdown body template",
	)
	flags.StringArrayP(
		FlagAttach, "a", nil, "file to attach to every message (repeatable)",
	)
	cmd.MarkFlagRequired(FlagSubject)
	cmd.MarkFlagRequired(FlagBody)
}

func getStringFlag(cmd *cobra.Command, flagName string) (value string) {
	if f := cmd.Flag(flagName); f != nil {
		value = f.Value.String()
	}
	return
}

func getBoolFlag(cmd *cobra.Command, flagName string) (value bool) {
	if f := cmd.Flag(flagName); f != nil {
		value, _ = strconv.ParseBool(f.Value.String())
	}
	return
}

func getIntFlag(cmd *cobra.Command, flagName string) (value int) {
	if f := cmd.Flag(flagName); f != nil {
		value, _ = strconv.Atoi(f.Value.String())
	}
	return
}

func getStringArrayFlag(cmd *cobra.Command, flagName string) []string {
	value, _ := cmd.Flags().GetStringArray(flagName)
	return value
}
