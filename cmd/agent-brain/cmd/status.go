package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agent-brain/brain/internal/output"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show server health, storage counts, and provider status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd)
		},
	}
}

type statusDTO struct {
	Health    healthDTO       `json:"health"`
	Detail    healthStatusDTO `json:"detail"`
	Providers providersDTO    `json:"providers"`
}

type healthDTO struct {
	Status string `json:"status"`
}

type providerDTO struct {
	Name       string `json:"name"`
	Configured bool   `json:"configured"`
	Healthy    bool   `json:"healthy"`
	Model      string `json:"model,omitempty"`
	Error      string `json:"error,omitempty"`
}

type providersDTO struct {
	Embedding     providerDTO `json:"embedding"`
	Summarization providerDTO `json:"summarization"`
}

func runStatus(cmd *cobra.Command) error {
	client := newAPIClient()
	ctx := cmd.Context()

	var result statusDTO
	if err := client.get(ctx, "/health/", &result.Health); err != nil {
		return failureError("%v", err)
	}
	if err := client.get(ctx, "/health/status", &result.Detail); err != nil {
		return failureError("%v", err)
	}
	if err := client.get(ctx, "/health/providers", &result.Providers); err != nil {
		return failureError("%v", err)
	}

	if flagJSON {
		return printJSON(cmd.OutOrStdout(), result)
	}

	out := output.New(cmd.OutOrStdout())
	out.Status("", fmt.Sprintf("status:        %s", result.Health.Status))
	out.Status("", fmt.Sprintf("chunks:        %d", result.Detail.TotalChunks))
	out.Status("", fmt.Sprintf("documents:     %d", result.Detail.TotalDocuments))
	out.Status("", fmt.Sprintf("graph enabled: %t", result.Detail.GraphEnabled))
	out.Status("", fmt.Sprintf("embedding:     %s (healthy=%t)", result.Providers.Embedding.Model, result.Providers.Embedding.Healthy))
	out.Status("", fmt.Sprintf("summarization: %s (healthy=%t)", result.Providers.Summarization.Model, result.Providers.Summarization.Healthy))
	return nil
}
