package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// NewRFPCmd создаёт группу команд для работы с RFP.
func NewRFPCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rfp",
		Short: "Browse discovered opportunities",
	}

	cmd.AddCommand(
		newRFPListCmd(clientFn, outputFn),
		newRFPShowCmd(clientFn, outputFn),
		newRFPSubmitCmd(clientFn, outputFn),
	)

	return cmd
}

func newRFPListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var portalID string
	var status string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List discovered RFPs",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			rfps, err := client.ListRFPs(ListRFPsOpts{
				PortalID: portalID,
				Status:   status,
				Limit:    limit,
			})
			if err != nil {
				return err
			}

			headers := []string{"ID", "EXTERNAL_ID", "TITLE", "AGENCY", "STATUS"}
			rows := make([][]string, len(rfps))
			for i, r := range rfps {
				rows[i] = []string{r.ID, r.ExternalID, truncate(r.Title, 50), r.Agency, r.Status}
			}

			out.Print(headers, rows, rfps)
			return nil
		},
	}

	cmd.Flags().StringVar(&portalID, "portal-id", "", "Filter by portal ID")
	cmd.Flags().StringVar(&status, "status", "", "Filter by status (DISCOVERED, EXTRACTED, MONITORED, SUBMITTED, CLOSED)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of results")

	return cmd
}

func newRFPShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show RFP details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			rfp, err := client.GetRFP(args[0])
			if err != nil {
				return err
			}

			out.Print(
				[]string{"ID", "EXTERNAL_ID", "TITLE", "AGENCY", "STATUS", "DEADLINE", "URL"},
				[][]string{{rfp.ID, rfp.ExternalID, rfp.Title, rfp.Agency, rfp.Status, rfp.Deadline, rfp.URL}},
				rfp,
			)
			return nil
		},
	}
}

func newRFPSubmitCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var formData []string
	var watch bool

	cmd := &cobra.Command{
		Use:   "submit RFP_ID",
		Short: "Start a submission workflow for an RFP",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			req := StartSubmissionRequest{}
			if len(formData) > 0 {
				req.FormData = make(map[string]any)
				for _, kv := range formData {
					parts := strings.SplitN(kv, "=", 2)
					if len(parts) != 2 {
						return fmt.Errorf("invalid form data format %q, expected KEY=VALUE", kv)
					}
					req.FormData[parts[0]] = parts[1]
				}
			}

			started, err := client.StartSubmission(args[0], req)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Submission started: workflow %s, session %s", started.WorkflowID, started.SessionID))

			if watch {
				return watchSession(client, out, started.SessionID)
			}

			out.Print(
				[]string{"WORKFLOW_ID", "SESSION_ID", "KIND"},
				[][]string{{started.WorkflowID, started.SessionID, started.Kind}},
				started,
			)
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&formData, "form", nil, "Form values as KEY=VALUE (repeatable)")
	cmd.Flags().BoolVar(&watch, "watch", false, "Stream progress events until the submission finishes")

	return cmd
}

// truncate обрезает строку для табличного вывода.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
