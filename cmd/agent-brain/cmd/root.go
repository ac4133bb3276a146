// Package cmd provides the CLI commands for agent-brain.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/agent-brain/brain/pkg/version"
)

// Exit codes, per spec.md section 6's CLI contract: 0 success, 1 the
// server/request reported a real failure or the server could not be
// reached, 2 the CLI invocation itself was malformed (bad flags).
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitUsage   = 2
)

var (
	flagJSON    bool
	flagBaseURL string
)

// NewRootCmd creates the root command for the agent-brain CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "agent-brain",
		Short:         "Retrieval-augmented knowledge service for coding agents",
		Long:          `agent-brain indexes a project's documents and code into a hybrid vector/lexical/graph store and serves queries and indexing jobs over HTTP.`,
		Version:       version.Short(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetVersionTemplate("agent-brain version {{.Version}}\n")

	root.PersistentFlags().BoolVar(&flagJSON, "json", false, "Output as JSON")
	root.PersistentFlags().StringVar(&flagBaseURL, "url", "", "Server base URL (overrides discovery; also AGENT_BRAIN_URL)")
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError("%v", err)
	})

	root.AddCommand(newInitCmd())
	root.AddCommand(newStartCmd())
	root.AddCommand(newStopCmd())
	root.AddCommand(newListCmd())
	root.AddCommand(newStatusCmd())
	root.AddCommand(newQueryCmd())
	root.AddCommand(newIndexCmd())
	root.AddCommand(newJobsCmd())
	root.AddCommand(newResetCmd())
	root.AddCommand(newVersionCmd())

	return root
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	root := NewRootCmd()
	if err := root.Execute(); err != nil {
		if ec, ok := err.(*exitCodeError); ok {
			if ec.message != "" {
				fmt.Fprintln(os.Stderr, "Error:", ec.message)
			}
			return ec.code
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		return ExitFailure
	}
	return ExitOK
}

// exitCodeError carries a specific process exit code through cobra's
// RunE error return, for the usage-vs-failure distinction the CLI
// contract requires.
type exitCodeError struct {
	code    int
	message string
}

func (e *exitCodeError) Error() string { return e.message }

func usageError(format string, args ...any) error {
	return &exitCodeError{code: ExitUsage, message: fmt.Sprintf(format, args...)}
}

func failureError(format string, args ...any) error {
	return &exitCodeError{code: ExitFailure, message: fmt.Sprintf(format, args...)}
}
