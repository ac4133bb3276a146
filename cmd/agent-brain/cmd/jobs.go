package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/agent-brain/brain/internal/output"
)

type jobSummaryDTO struct {
	ID         string `json:"id"`
	FolderPath string `json:"folder_path"`
	Operation  string `json:"operation"`
	Status     string `json:"status"`
	EnqueuedAt string `json:"enqueued_at"`
}

type jobsListResponseDTO struct {
	Jobs      []jobSummaryDTO `json:"jobs"`
	Total     int             `json:"total"`
	Pending   int             `json:"pending"`
	Running   int             `json:"running"`
	Completed int             `json:"completed"`
	Failed    int             `json:"failed"`
}

func newJobsCmd() *cobra.Command {
	var (
		cancel bool
		watch  bool
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "jobs [job-id]",
		Short: "List or inspect indexing jobs",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return runJobsList(cmd, limit)
			}
			id := args[0]
			if cancel {
				return runJobCancel(cmd, id)
			}
			return runJobGet(cmd, id, watch)
		},
	}

	cmd.Flags().BoolVar(&cancel, "cancel", false, "Cancel the given job instead of showing it")
	cmd.Flags().BoolVar(&watch, "watch", false, "Poll the job until it reaches a terminal status")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of jobs to list")

	return cmd
}

func runJobsList(cmd *cobra.Command, limit int) error {
	client := newAPIClient()
	var resp jobsListResponseDTO
	if err := client.get(cmd.Context(), fmt.Sprintf("/index/jobs/?limit=%d", limit), &resp); err != nil {
		return failureError("%v", err)
	}

	if flagJSON {
		return printJSON(cmd.OutOrStdout(), resp)
	}

	out := output.New(cmd.OutOrStdout())
	out.Status("", fmt.Sprintf("total=%d pending=%d running=%d completed=%d failed=%d", resp.Total, resp.Pending, resp.Running, resp.Completed, resp.Failed))
	for _, j := range resp.Jobs {
		out.Status("", fmt.Sprintf("%-36s %-8s %-10s %s", j.ID, j.Status, j.Operation, j.FolderPath))
	}
	return nil
}

func runJobGet(cmd *cobra.Command, id string, watch bool) error {
	client := newAPIClient()

	for {
		var job map[string]any
		if err := client.get(cmd.Context(), "/index/jobs/"+id, &job); err != nil {
			return failureError("%v", err)
		}

		if flagJSON {
			if err := printJSON(cmd.OutOrStdout(), job); err != nil {
				return err
			}
		} else {
			out := output.New(cmd.OutOrStdout())
			out.Status("", fmt.Sprintf("%v", job))
		}

		status, _ := job["status"].(string)
		if !watch || status == "done" || status == "failed" || status == "cancelled" {
			return nil
		}

		select {
		case <-cmd.Context().Done():
			return failureError("cancelled")
		case <-time.After(2 * time.Second):
		}
	}
}

func runJobCancel(cmd *cobra.Command, id string) error {
	client := newAPIClient()
	var resp map[string]string
	if err := client.delete(cmd.Context(), "/index/jobs/"+id, &resp); err != nil {
		return failureError("%v", err)
	}

	if flagJSON {
		return printJSON(cmd.OutOrStdout(), resp)
	}

	out := output.New(cmd.OutOrStdout())
	out.Success(fmt.Sprintf("job %s: %s", id, resp["status"]))
	return nil
}
