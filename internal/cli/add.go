package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/rendezvous/internal/location"
	"github.com/mesh-intelligence/rendezvous/internal/schedule"
	"github.com/mesh-intelligence/rendezvous/pkg/types"
)

func newAddCmd(a *app) *cobra.Command {
	var c types.Candidate

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record a new appointment",
		Long: `Add records an appointment and the number of minutes before it at which
location sharing should begin.

Time format: ` + schedule.FormatHint + `
Share offsets: 30, 60, 90, 120 or 150 minutes.

When a position is configured (location.latitude / location.longitude) it is
attached to the appointment.

Example:
  rendezvous add --title Lunch --location Cafe --time 2024-01-01T12:00 --share-offset 60`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := a.openSession(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			if pos, err := location.Acquire(ctx, a.locator()); err == nil {
				c.Coordinates = &pos
			} else {
				a.logger.Debug("creating appointment without position", "err", err)
			}

			created, err := s.store.Create(ctx, c)
			if err != nil {
				return classify(err)
			}

			// Accepted but unschedulable: the record is kept, the user is told.
			if _, err := s.sched.ComputeTriggerInstant(created); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v; location sharing will not be scheduled\n", err)
			}

			if a.flags.jsonMode {
				return printJSON(cmd.OutOrStdout(), created)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created appointment: %s\n", created.ID)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&c.Title, "title", "", "what the appointment is")
	f.StringVar(&c.Location, "location", "", "where the appointment is")
	f.StringVar(&c.Time, "time", "", "when the appointment starts")
	f.IntVar(&c.ShareOffsetMinutes, "share-offset", types.DefaultShareOffset, "minutes before the appointment to start sharing location")

	return cmd
}
