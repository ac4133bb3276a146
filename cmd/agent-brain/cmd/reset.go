package cmd

import (
	"github.com/spf13/cobra"

	"github.com/agent-brain/brain/internal/output"
)

func newResetCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Clear the entire index (vectors, lexical index, and graph)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return usageError("this deletes the entire index; re-run with --yes to confirm")
			}

			client := newAPIClient()
			var resp map[string]string
			if err := client.delete(cmd.Context(), "/index/", &resp); err != nil {
				return failureError("%v", err)
			}

			if flagJSON {
				return printJSON(cmd.OutOrStdout(), resp)
			}

			out := output.New(cmd.OutOrStdout())
			out.Success("index reset")
			return nil
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm the destructive reset")

	return cmd
}
