package markctl

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/cmlabs-hris/attendance-ledger/internal/domain/mark"
	"github.com/cmlabs-hris/attendance-ledger/internal/pkg/geofence"
)

type enqueueOptions struct {
	*RootOptions
	Event    string
	Site     string
	Device   string
	Lat      float64
	Lng      float64
	Accuracy float64
	Note     string
	At       string
	Consent  bool
	Locate   string
	Timeout  time.Duration
}

func newEnqueueCommand(root *RootOptions) *cobra.Command {
	opts := &enqueueOptions{RootOptions: root}

	cmd := &cobra.Command{
		Use:   "enqueue",
		Short: "Store a mark locally until it can be replayed",
		Example: `  markctl enqueue --event IN --site site-1 --lat -33.4489 --lng -70.6693
  markctl enqueue --event OUT --site site-1 --note "colación"
  markctl enqueue --event IN --site site-1 --locate "gpspipe-fix" --consent`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := opts.request(cmd)
			if err != nil {
				return err
			}

			q, err := opts.openQueue()
			if err != nil {
				return err
			}
			defer q.Close()

			item, err := q.Enqueue(cmd.Context(), req)
			if err != nil {
				return err
			}

			if opts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), item)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "queued %s %s at %s\n", item.LocalID, item.Request.EventType, item.CreatedAt.Format(time.RFC3339))
			return nil
		},
	}

	hostname, _ := os.Hostname()
	cmd.Flags().StringVar(&opts.Event, "event", "", "IN or OUT (required)")
	cmd.Flags().StringVar(&opts.Site, "site", "", "site id (required)")
	cmd.Flags().StringVar(&opts.Device, "device", hostname, "device id")
	cmd.Flags().Float64Var(&opts.Lat, "lat", 0, "latitude")
	cmd.Flags().Float64Var(&opts.Lng, "lng", 0, "longitude")
	cmd.Flags().Float64Var(&opts.Accuracy, "accuracy", 0, "location accuracy in meters")
	cmd.Flags().StringVar(&opts.Note, "note", "", "free text note")
	cmd.Flags().StringVar(&opts.At, "at", "", "client timestamp (RFC 3339), defaults to now")
	cmd.Flags().BoolVar(&opts.Consent, "consent", false, "attach the location consent acknowledgment")
	cmd.Flags().StringVar(&opts.Locate, "locate", "", `command printing "lat,lng[,accuracy]" for the current position`)
	cmd.Flags().DurationVar(&opts.Timeout, "locate-timeout", geofence.DefaultAcquireTimeout, "how long to wait for --locate")
	_ = cmd.MarkFlagRequired("event")
	_ = cmd.MarkFlagRequired("site")
	cmd.MarkFlagsRequiredTogether("lat", "lng")
	cmd.MarkFlagsMutuallyExclusive("lat", "locate")

	return cmd
}

func (o *enqueueOptions) request(cmd *cobra.Command) (mark.SubmitRequest, error) {
	req := mark.SubmitRequest{
		EventType:       mark.EventType(strings.ToUpper(o.Event)),
		SiteID:          o.Site,
		DeviceID:        o.Device,
		ConsentAccepted: o.Consent,
	}

	if cmd.Flags().Changed("lat") {
		req.Geo = &geofence.Point{Latitude: o.Lat, Longitude: o.Lng}
		if cmd.Flags().Changed("accuracy") {
			acc := o.Accuracy
			req.Geo.Accuracy = &acc
		}
	} else if o.Locate != "" {
		// A failed or slow fix leaves Geo empty; the server decides what that means for the site.
		req.Geo = geofence.Acquire(cmd.Context(), commandLocator(o.Locate), o.Timeout)
		if req.Geo == nil {
			fmt.Fprintln(cmd.ErrOrStderr(), "warning: no location fix, queuing without position")
		}
	}
	if o.Note != "" {
		note := o.Note
		req.Note = &note
	}
	if o.At != "" {
		at, err := time.Parse(time.RFC3339, o.At)
		if err != nil {
			return mark.SubmitRequest{}, fmt.Errorf("invalid --at: %w", err)
		}
		req.ClientTimestamp = &at
	}
	return req, nil
}

// commandLocator runs a shell command and parses its "lat,lng[,accuracy]" output.
func commandLocator(command string) geofence.LocatorFunc {
	return func(ctx context.Context) (geofence.Point, error) {
		out, err := exec.CommandContext(ctx, "sh", "-c", command).Output()
		if err != nil {
			return geofence.Point{}, fmt.Errorf("run locator: %w", err)
		}
		return parseFix(strings.TrimSpace(string(out)))
	}
}

func parseFix(s string) (geofence.Point, error) {
	parts := strings.Split(s, ",")
	if len(parts) < 2 || len(parts) > 3 {
		return geofence.Point{}, fmt.Errorf("locator output %q is not lat,lng[,accuracy]", s)
	}

	var nums [3]float64
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return geofence.Point{}, fmt.Errorf("locator output %q: %w", s, err)
		}
		nums[i] = v
	}

	p := geofence.Point{Latitude: nums[0], Longitude: nums[1]}
	if len(parts) == 3 {
		acc := nums[2]
		p.Accuracy = &acc
	}
	return p, nil
}
