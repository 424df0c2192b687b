package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// options holds the persistent flags shared by all subcommands.
type options struct {
	// format controls the output format (table, json, yaml).
	format string

	// configPath is the goike configuration file; empty means defaults
	// plus environment.
	configPath string
}

// NewRootCmd builds the ikectl command tree.
func NewRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "ikectl",
		Short: "Inspect and exercise the goike ISAKMP dispatch engine",
		Long: "ikectl prints the ISAKMP transition table, resolves which rule a " +
			"negotiation would match, and runs loopback negotiations between two " +
			"in-process peers.",
		// Silence cobra's built-in usage/error printing so we control it.
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&opts.format, "format", formatTable,
		"output format: table, json, yaml")
	root.PersistentFlags().StringVar(&opts.configPath, "config", "",
		"path to goike configuration file")

	root.AddCommand(tableCmd(opts))
	root.AddCommand(matchCmd(opts))
	root.AddCommand(simulateCmd(opts))
	root.AddCommand(versionCmd())
	root.AddCommand(shellCmd(root))

	return root
}

// Execute runs the root command and exits with code 1 on error. SIGINT and
// SIGTERM cancel a running simulation.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := NewRootCmd().ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
