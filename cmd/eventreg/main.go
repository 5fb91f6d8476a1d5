// Package main is the eventreg binary: the registry web server and an
// interactive organizer console over the same store.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const (
	Version = "0.1.0"
	appName = "eventreg"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:          appName,
		Short:        "Speed dating event registry",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Optional dotenv file loaded before the environment")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the web server (and the WhatsApp bot when enabled)",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runServe(cmd.Context(), envFile)
			},
		},
		&cobra.Command{
			Use:   "console",
			Short: "Interactive organizer console",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runConsole(cmd.Context(), envFile, cmd.InOrStdin(), cmd.OutOrStdout())
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", appName, Version)
			},
		},
	)

	return cmd
}
