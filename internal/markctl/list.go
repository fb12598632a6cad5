package markctl

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/cmlabs-hris/attendance-ledger/internal/offline"
)

func newListCommand(root *RootOptions) *cobra.Command {
	var rejected bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show queued marks, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := root.openQueue()
			if err != nil {
				return err
			}
			defer q.Close()

			var items []offline.PendingMark
			if rejected {
				items, err = q.ListRejected(cmd.Context())
			} else {
				items, err = q.List(cmd.Context())
			}
			if err != nil {
				return err
			}

			if root.Format == "json" {
				if items == nil {
					items = []offline.PendingMark{}
				}
				return writeJSON(cmd.OutOrStdout(), items)
			}

			if len(items) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "queue is empty")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "LOCAL ID\tEVENT\tSITE\tCREATED\tATTEMPTS\tLAST ERROR")
			for _, item := range items {
				lastError := ""
				if item.LastError != nil {
					lastError = *item.LastError
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
					item.LocalID, item.Request.EventType, item.Request.SiteID,
					item.CreatedAt.Format(time.RFC3339), item.Attempts, lastError)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().BoolVar(&rejected, "rejected", false, "show marks the server refused instead")
	return cmd
}

func newDropCommand(root *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "drop LOCAL_ID",
		Short: "Remove a queued or rejected mark",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := root.openQueue()
			if err != nil {
				return err
			}
			defer q.Close()

			if err := q.Dequeue(cmd.Context(), args[0]); err != nil {
				return err
			}
			if root.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), map[string]string{"dropped": args[0]})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "dropped %s\n", args[0])
			return nil
		},
	}
}
