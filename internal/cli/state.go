package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewStateCmd создаёт группу команд для просмотра состояния системы.
func NewStateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Show aggregated system state",
	}

	cmd.AddCommand(
		newStateGlobalCmd(clientFn, outputFn),
		newStatePhasesCmd(clientFn, outputFn),
		newStateTransitionsCmd(clientFn, outputFn),
	)

	return cmd
}

func newStateGlobalCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "global",
		Short: "Show global workflow counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			state, err := clientFn().GlobalState()
			if err != nil {
				return err
			}

			outputFn().JSON(state)
			return nil
		},
	}
}

func newStatePhasesCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "phases",
		Short: "Show per-task-type execution statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			stats, err := client.PhaseStatistics()
			if err != nil {
				return err
			}

			headers := []string{"TASK_TYPE", "ACTIVE", "COMPLETED", "FAILED", "AVG_MS"}
			rows := make([][]string, len(stats))
			for i, s := range stats {
				rows[i] = []string{
					fmt.Sprintf("%v", s["task_type"]),
					fmt.Sprintf("%v", s["active"]),
					fmt.Sprintf("%v", s["completed"]),
					fmt.Sprintf("%v", s["failed"]),
					fmt.Sprintf("%.0f", toFloat(s["avg_duration_ms"])),
				}
			}

			out.Print(headers, rows, stats)
			return nil
		},
	}
}

func newStateTransitionsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "transitions",
		Short: "Show phase transition summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			summary, err := clientFn().TransitionSummary()
			if err != nil {
				return err
			}

			outputFn().JSON(summary)
			return nil
		},
	}
}

// toFloat приводит JSON-число к float64 для форматирования.
func toFloat(v any) float64 {
	f, _ := v.(float64)
	return f
}
