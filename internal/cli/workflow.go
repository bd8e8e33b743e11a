package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// NewWorkflowCmd создаёт группу команд для управления workflows.
func NewWorkflowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workflow",
		Short: "Inspect and control workflows",
	}

	cmd.AddCommand(
		newWorkflowListCmd(clientFn, outputFn),
		newWorkflowShowCmd(clientFn, outputFn),
		newWorkflowItemsCmd(clientFn, outputFn),
		newWorkflowSuspendCmd(clientFn, outputFn),
		newWorkflowResumeCmd(clientFn, outputFn),
	)

	return cmd
}

func newWorkflowListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var portalID string
	var kind string
	var status string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List workflows",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			workflows, err := client.ListWorkflows(ListWorkflowsOpts{
				PortalID: portalID,
				Kind:     kind,
				Status:   status,
				Limit:    limit,
			})
			if err != nil {
				return err
			}

			headers := []string{"ID", "KIND", "PHASE", "STATUS", "PROGRESS", "CREATED"}
			rows := make([][]string, len(workflows))
			for i, wf := range workflows {
				rows[i] = []string{wf.ID, wf.Kind, wf.CurrentPhase, wf.Status, strconv.Itoa(wf.Progress) + "%", wf.CreatedAt}
			}

			out.Print(headers, rows, workflows)
			return nil
		},
	}

	cmd.Flags().StringVar(&portalID, "portal-id", "", "Filter by portal ID")
	cmd.Flags().StringVar(&kind, "kind", "", "Filter by kind (DISCOVERY, SUBMISSION)")
	cmd.Flags().StringVar(&status, "status", "", "Filter by status (ACTIVE, SUSPENDED, COMPLETED, FAILED)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of results")

	return cmd
}

func newWorkflowShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show workflow details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			wf, err := client.GetWorkflow(args[0])
			if err != nil {
				return err
			}

			out.Print(
				[]string{"ID", "KIND", "PHASE", "STATUS", "PROGRESS", "ERROR", "SESSION_ID"},
				[][]string{{wf.ID, wf.Kind, wf.CurrentPhase, wf.Status, strconv.Itoa(wf.Progress) + "%", wf.Error, wf.SessionID}},
				wf,
			)
			return nil
		},
	}
}

func newWorkflowItemsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "items WORKFLOW_ID",
		Short: "List work items of a workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			items, err := client.ListWorkflowItems(args[0])
			if err != nil {
				return err
			}

			headers := []string{"ID", "TASK_TYPE", "STATUS", "ATTEMPT", "ERROR"}
			rows := make([][]string, len(items))
			for i, item := range items {
				rows[i] = []string{item.ID, item.TaskType, item.Status, strconv.Itoa(item.Attempt), item.Error}
			}

			out.Print(headers, rows, items)
			return nil
		},
	}
}

func newWorkflowSuspendCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "suspend ID",
		Short: "Suspend an active workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			wf, err := client.SuspendWorkflow(args[0])
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Workflow suspended: %s", wf.ID))
			return nil
		},
	}
}

func newWorkflowResumeCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "resume ID",
		Short: "Resume a suspended workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			wf, err := client.ResumeWorkflow(args[0])
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Workflow resumed: %s", wf.ID))
			return nil
		},
	}
}
