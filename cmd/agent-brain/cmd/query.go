package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agent-brain/brain/internal/output"
)

type queryResultDTO struct {
	ChunkID string  `json:"chunk_id"`
	Text    string  `json:"text"`
	Score   float64 `json:"score"`
}

type queryResponseDTO struct {
	Results     []queryResultDTO `json:"results"`
	Mode        string           `json:"mode"`
	QueryTimeMS int64            `json:"query_time_ms"`
}

func newQueryCmd() *cobra.Command {
	var (
		mode  string
		topK  int
		alpha float64
	)

	cmd := &cobra.Command{
		Use:   "query <text>",
		Short: "Query the indexed knowledge base",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, strings.Join(args, " "), mode, topK, alpha)
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "hybrid", "Query mode: vector, bm25, graph, hybrid, multi")
	cmd.Flags().IntVar(&topK, "top-k", 0, "Number of results (0 uses the server default)")
	cmd.Flags().Float64Var(&alpha, "alpha", 0, "Vector/lexical fusion weight for hybrid mode (0 uses the server default)")

	return cmd
}

func runQuery(cmd *cobra.Command, text, mode string, topK int, alpha float64) error {
	client := newAPIClient()

	body := map[string]any{"query": text, "mode": mode}
	if topK > 0 {
		body["top_k"] = topK
	}
	if alpha > 0 {
		body["alpha"] = alpha
	}

	var resp queryResponseDTO
	if err := client.post(cmd.Context(), "/query/", body, &resp); err != nil {
		return failureError("%v", err)
	}

	if flagJSON {
		return printJSON(cmd.OutOrStdout(), resp)
	}

	out := output.New(cmd.OutOrStdout())
	if len(resp.Results) == 0 {
		out.Status("", "no results")
		return nil
	}
	for i, r := range resp.Results {
		out.Status("", fmt.Sprintf("%d. [%.3f] %s", i+1, r.Score, r.ChunkID))
		snippet := r.Text
		if len(snippet) > 200 {
			snippet = snippet[:200] + "..."
		}
		out.Status("", "   "+strings.ReplaceAll(snippet, "\n", " "))
	}
	out.Status("", fmt.Sprintf("(%s mode, %dms)", resp.Mode, resp.QueryTimeMS))
	return nil
}
