package main

import (
	"fmt"
	"os"

	"codepad/internal/util"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var logLevel string

	rootCmd := &cobra.Command{
		Use:           "codepad",
		Short:         "Work with codepad project trees from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			util.InitializeLoggerTo(cmd.ErrOrStderr(), logLevel, "console")
		},
	}
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(newTreeCmd())
	rootCmd.AddCommand(newZipCmd())
	rootCmd.AddCommand(newPushCmd())
	return rootCmd
}
