// Package markctl is the device-side command line for the offline mark queue.
package markctl

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/cmlabs-hris/attendance-ledger/internal/offline"
)

const (
	ExitSuccess      = 0
	ExitHalted       = 1 // replay stopped on a transient failure; run it again later
	ExitCommandError = 2
)

// ExitError carries the process exit code for a failed command.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string { return e.Err.Error() }

func (e *ExitError) Unwrap() error { return e.Err }

// ExitCode maps a command error to the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitCommandError
}

type RootOptions struct {
	Database string
	Format   string
}

var validFormats = []string{"text", "json"}

func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "markctl",
		Short: "Queue attendance marks offline and replay them later",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(validFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, validFormats)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.Database, "db", envOr("MARKCTL_DB", "markctl.db"), "path to the local queue database")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(newEnqueueCommand(opts))
	cmd.AddCommand(newListCommand(opts))
	cmd.AddCommand(newDropCommand(opts))
	cmd.AddCommand(newReplayCommand(opts))

	return cmd
}

func (o *RootOptions) openQueue() (*offline.Queue, error) {
	q, err := offline.Open(o.Database)
	if err != nil {
		return nil, &ExitError{Code: ExitCommandError, Err: err}
	}
	return q, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}
