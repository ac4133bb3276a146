package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agent-brain/brain/internal/output"
)

// enqueueResponseDTO mirrors internal/httpapi's enqueueResponse.
type enqueueResponseDTO struct {
	JobID         string `json:"job_id"`
	Status        string `json:"status"`
	QueuePosition int    `json:"queue_position"`
	QueueLength   int    `json:"queue_length"`
	Message       string `json:"message,omitempty"`
	DedupeHit     bool   `json:"dedupe_hit,omitempty"`
}

func newIndexCmd() *cobra.Command {
	var (
		add                bool
		chunkSize          int
		chunkOverlap       int
		recursive          bool
		includeCode        bool
		codeChunkStrategy  string
		supportedLanguages []string
		includePatterns    []string
		excludePatterns    []string
		generateSummaries  bool
		force              bool
		allowExternal      bool
	)

	cmd := &cobra.Command{
		Use:   "index <folder>",
		Short: "Index a folder of documents and code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			operation := "/index/"
			if add {
				operation = "/index/add"
			}

			body := map[string]any{
				"folder_path":         args[0],
				"recursive":           recursive,
				"include_code":        includeCode,
				"code_chunk_strategy": codeChunkStrategy,
				"generate_summaries":  generateSummaries,
			}
			if chunkSize > 0 {
				body["chunk_size"] = chunkSize
			}
			if chunkOverlap > 0 {
				body["chunk_overlap"] = chunkOverlap
			}
			if len(supportedLanguages) > 0 {
				body["supported_languages"] = supportedLanguages
			}
			if len(includePatterns) > 0 {
				body["include_patterns"] = includePatterns
			}
			if len(excludePatterns) > 0 {
				body["exclude_patterns"] = excludePatterns
			}

			path := operation
			if force || allowExternal {
				path += "?"
				if force {
					path += "force=true&"
				}
				if allowExternal {
					path += "allow_external=true&"
				}
				path = path[:len(path)-1]
			}

			client := newAPIClient()
			var resp enqueueResponseDTO
			if err := client.post(cmd.Context(), path, body, &resp); err != nil {
				return failureError("%v", err)
			}

			if flagJSON {
				return printJSON(cmd.OutOrStdout(), resp)
			}

			out := output.New(cmd.OutOrStdout())
			out.Success(fmt.Sprintf("job %s queued (%s)", resp.JobID, resp.Status))
			if resp.DedupeHit {
				out.Status("", "matches an already-queued job, returning its ID")
			}
			if resp.QueueLength > 0 {
				out.Status("", fmt.Sprintf("position %d of %d in queue", resp.QueuePosition, resp.QueueLength))
			}
			out.Status("", "track progress with 'agent-brain jobs "+resp.JobID+"'")
			return nil
		},
	}

	cmd.Flags().BoolVar(&add, "add", false, "Add to an existing index instead of creating a new one")
	cmd.Flags().IntVar(&chunkSize, "chunk-size", 0, "Chunk size in tokens (128-2048, default 512)")
	cmd.Flags().IntVar(&chunkOverlap, "chunk-overlap", 0, "Chunk overlap in tokens (0-200, default 50)")
	cmd.Flags().BoolVar(&recursive, "recursive", true, "Recurse into subdirectories")
	cmd.Flags().BoolVar(&includeCode, "include-code", false, "Include source code files")
	cmd.Flags().StringVar(&codeChunkStrategy, "code-chunk-strategy", "text_based", "ast_aware or text_based")
	cmd.Flags().StringSliceVar(&supportedLanguages, "languages", nil, "Limit code indexing to these languages")
	cmd.Flags().StringSliceVar(&includePatterns, "include", nil, "Glob patterns to include")
	cmd.Flags().StringSliceVar(&excludePatterns, "exclude", nil, "Glob patterns to exclude")
	cmd.Flags().BoolVar(&generateSummaries, "summaries", false, "Generate chunk summaries")
	cmd.Flags().BoolVar(&force, "force", false, "Re-enqueue even if an identical job already exists")
	cmd.Flags().BoolVar(&allowExternal, "allow-external", false, "Allow indexing a folder outside the project root")

	return cmd
}
