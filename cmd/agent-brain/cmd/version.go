package cmd

import (
	"github.com/spf13/cobra"

	"github.com/agent-brain/brain/pkg/version"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the agent-brain version",
		RunE: func(cmd *cobra.Command, args []string) error {
			if flagJSON {
				return printJSON(cmd.OutOrStdout(), version.GetInfo())
			}
			cmd.Println(version.String())
			return nil
		},
	}
}
