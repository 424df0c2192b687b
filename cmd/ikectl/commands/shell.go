package commands

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

const shellPrompt = "ikectl> "

// shellCommands lists the available commands for the interactive shell help output.
//
//nolint:gochecknoglobals // static help table.
var shellCommands = []struct {
	name string
	desc string
}{
	{"table [--exchange <x>]", "Print the transition table"},
	{"match --state <s> [--fields <f>]", "Show the rule a negotiation would match"},
	{"simulate [--auth <a>] [--parallel <n>]", "Run loopback negotiations"},
	{"version", "Print build information"},
	{"help", "Show this help message"},
	{"exit / quit", "Leave the interactive shell"},
}

func shellCmd(root *cobra.Command) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Start an interactive ikectl shell",
		Long:  "Launches a simple REPL that accepts ikectl subcommands. Type 'help', 'exit', or 'quit'.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			errOut := cmd.ErrOrStderr()

			printShellBanner(out)
			scanner := bufio.NewScanner(cmd.InOrStdin())
			fmt.Fprint(out, shellPrompt)

			for scanner.Scan() {
				line := strings.TrimSpace(scanner.Text())
				args := strings.Fields(line)

				switch {
				case line == "exit" || line == "quit":
					return nil
				case line == "help" || line == "?":
					printShellHelp(out)
				case len(args) > 0 && args[0] == "shell":
					fmt.Fprintln(errOut, "Error: already in the shell")
				case line != "":
					root.SetArgs(args)

					if err := root.Execute(); err != nil {
						fmt.Fprintln(errOut, "Error:", err)
					}
				}

				fmt.Fprint(out, shellPrompt)
			}

			if err := scanner.Err(); err != nil {
				return fmt.Errorf("read stdin: %w", err)
			}

			return nil
		},
	}
}

// printShellBanner prints a welcome message when the shell starts.
func printShellBanner(w io.Writer) {
	fmt.Fprintln(w, "goike interactive shell. Type 'help' for available commands, 'exit' to quit.")
	fmt.Fprintln(w)
}

// printShellHelp prints a formatted list of available shell commands.
func printShellHelp(w io.Writer) {
	fmt.Fprintln(w, "Available commands:")
	fmt.Fprintln(w)

	for _, cmd := range shellCommands {
		fmt.Fprintf(w, "  %-40s %s\n", cmd.name, cmd.desc)
	}

	fmt.Fprintln(w)
}
