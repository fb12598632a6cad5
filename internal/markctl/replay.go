package markctl

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cmlabs-hris/attendance-ledger/internal/offline"
)

type replayOptions struct {
	*RootOptions
	Server       string
	Token        string
	DropRejected bool
}

func newReplayCommand(root *RootOptions) *cobra.Command {
	opts := &replayOptions{RootOptions: root}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Submit queued marks to the server, oldest first",
		Long: `Submit queued marks one at a time, oldest first.

Refused marks are kept as rejected (see "list --rejected") unless
--drop-rejected is set, and replay moves on. A network or server failure
stops the replay and leaves that mark and all later ones queued.

Exit codes:
  0 - queue drained
  1 - halted on a transient failure, run again later
  2 - command error`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Server == "" {
				return &ExitError{Code: ExitCommandError, Err: errors.New("--server is required")}
			}

			q, err := opts.openQueue()
			if err != nil {
				return err
			}
			defer q.Close()

			replayer := offline.NewReplayer(q, offline.NewHTTPSubmitter(opts.Server, opts.Token))
			replayer.DropRejected = opts.DropRejected

			report, replayErr := replayer.Replay(cmd.Context())
			if err := opts.print(cmd, report); err != nil {
				return err
			}
			if errors.Is(replayErr, offline.ErrReplayHalted) {
				return &ExitError{Code: ExitHalted, Err: replayErr}
			}
			return replayErr
		},
	}

	cmd.Flags().StringVar(&opts.Server, "server", envOr("MARKCTL_SERVER", ""), "API base URL")
	cmd.Flags().StringVar(&opts.Token, "token", envOr("MARKCTL_TOKEN", ""), "bearer token")
	cmd.Flags().BoolVar(&opts.DropRejected, "drop-rejected", false, "delete refused marks instead of keeping them")

	return cmd
}

func (o *replayOptions) print(cmd *cobra.Command, report offline.ReplayReport) error {
	if o.Format == "json" {
		return writeJSON(cmd.OutOrStdout(), report)
	}

	out := cmd.OutOrStdout()
	for _, a := range report.Accepted {
		fmt.Fprintf(out, "accepted %s -> %s (%s)\n", a.LocalID, a.Result.ID, a.Result.ReceiptReference)
	}
	for _, r := range report.Rejected {
		fmt.Fprintf(out, "rejected %s: %s %s\n", r.LocalID, r.Code, r.Reason)
	}
	if report.Remaining > 0 {
		fmt.Fprintf(out, "%d mark(s) still queued\n", report.Remaining)
	}
	return nil
}
