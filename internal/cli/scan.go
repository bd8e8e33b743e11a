package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// NewScanCmd создаёт группу команд для сканирования порталов.
func NewScanCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan portals for opportunities",
	}

	cmd.AddCommand(
		newScanStartCmd(clientFn, outputFn),
		newScanWatchCmd(clientFn, outputFn),
	)

	return cmd
}

func newScanStartCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var criteria []string
	var watch bool

	cmd := &cobra.Command{
		Use:   "start PORTAL_ID",
		Short: "Start a discovery scan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			req := StartScanRequest{}
			if len(criteria) > 0 {
				req.SearchCriteria = make(map[string]any)
				for _, kv := range criteria {
					parts := strings.SplitN(kv, "=", 2)
					if len(parts) != 2 {
						return fmt.Errorf("invalid criteria format %q, expected KEY=VALUE", kv)
					}
					req.SearchCriteria[parts[0]] = parts[1]
				}
			}

			started, err := client.StartScan(args[0], req)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Scan started: workflow %s, session %s", started.WorkflowID, started.SessionID))

			if !watch {
				out.Print(
					[]string{"WORKFLOW_ID", "SESSION_ID", "KIND"},
					[][]string{{started.WorkflowID, started.SessionID, started.Kind}},
					started,
				)
				return nil
			}

			return watchSession(client, out, started.SessionID)
		},
	}

	cmd.Flags().StringSliceVar(&criteria, "criteria", nil, "Search criteria as KEY=VALUE (repeatable)")
	cmd.Flags().BoolVar(&watch, "watch", false, "Stream progress events until the scan finishes")

	return cmd
}

func newScanWatchCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "watch SESSION_ID",
		Short: "Stream progress events of a scan session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return watchSession(clientFn(), outputFn(), args[0])
		},
	}
}

// watchSession печатает события SSE-стрима до закрытия сессии.
func watchSession(client *Client, out *Output, sessionID string) error {
	return client.WatchScan(sessionID, func(ev ScanEvent) {
		switch ev.Type {
		case "step_update", "progress", "initial_state":
			out.Success(fmt.Sprintf("[%v%%] %v", ev.Data["progress"], ev.Data["message"]))
		case "rfp_discovered":
			out.Success(fmt.Sprintf("  found: %v", ev.Data["title"]))
		case "scan_completed":
			out.Success("Scan completed")
		case "scan_failed":
			out.Success(fmt.Sprintf("Scan failed: %v", ev.Data["error"]))
		}
	})
}
