package cmd

import (
	"github.com/spf13/cobra"

	"github.com/agent-brain/brain/internal/output"
)

// healthStatusDTO mirrors internal/httpapi's healthStatusResponse; the CLI
// only needs a handful of its fields.
type healthStatusDTO struct {
	TotalDocuments int      `json:"total_documents"`
	TotalChunks    int      `json:"total_chunks"`
	IndexedFolders []string `json:"indexed_folders"`
	GraphEnabled   bool     `json:"graph_enabled"`
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List folders that have been indexed",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd)
		},
	}
}

func runList(cmd *cobra.Command) error {
	client := newAPIClient()
	var status healthStatusDTO
	if err := client.get(cmd.Context(), "/health/status", &status); err != nil {
		return failureError("%v", err)
	}

	if flagJSON {
		return printJSON(cmd.OutOrStdout(), status.IndexedFolders)
	}

	out := output.New(cmd.OutOrStdout())
	if len(status.IndexedFolders) == 0 {
		out.Status("", "no folders indexed yet")
		return nil
	}
	for _, f := range status.IndexedFolders {
		out.Status("", f)
	}
	return nil
}
