package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// NewPortalCmd создаёт группу команд для управления порталами.
func NewPortalCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "portal",
		Short: "Manage procurement portals",
	}

	cmd.AddCommand(
		newPortalListCmd(clientFn, outputFn),
		newPortalAddCmd(clientFn, outputFn),
		newPortalShowCmd(clientFn, outputFn),
	)

	return cmd
}

func newPortalListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered portals",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			portals, err := client.ListPortals()
			if err != nil {
				return err
			}

			headers := []string{"ID", "NAME", "ACTIVE", "RFPS", "CREATED"}
			rows := make([][]string, len(portals))
			for i, p := range portals {
				rows[i] = []string{p.ID, p.Name, strconv.FormatBool(p.IsActive), strconv.Itoa(p.RFPCount), p.CreatedAt}
			}

			out.Print(headers, rows, portals)
			return nil
		},
	}
}

func newPortalAddCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var baseURL string
	var authKind string

	cmd := &cobra.Command{
		Use:   "add NAME",
		Short: "Register a new portal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			portal, err := client.CreatePortal(CreatePortalRequest{
				Name:     args[0],
				BaseURL:  baseURL,
				AuthKind: authKind,
			})
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Portal registered: %s", portal.ID))
			out.Print(
				[]string{"ID", "NAME", "BASE_URL", "AUTH"},
				[][]string{{portal.ID, portal.Name, portal.BaseURL, portal.AuthKind}},
				portal,
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&baseURL, "base-url", "", "Portal base URL (required)")
	cmd.Flags().StringVar(&authKind, "auth", "credentials", "Auth kind (credentials, token, none)")
	cmd.MarkFlagRequired("base-url")

	return cmd
}

func newPortalShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show portal details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			portal, err := client.GetPortal(args[0])
			if err != nil {
				return err
			}

			out.Print(
				[]string{"ID", "NAME", "BASE_URL", "AUTH", "ACTIVE", "CREATED"},
				[][]string{{portal.ID, portal.Name, portal.BaseURL, portal.AuthKind, strconv.FormatBool(portal.IsActive), portal.CreatedAt}},
				portal,
			)
			return nil
		},
	}
}
