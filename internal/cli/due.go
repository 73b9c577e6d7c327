package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

// dueItem is one row of due output.
type dueItem struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Location    string `json:"location"`
	SharingFrom string `json:"sharing_from"`
	StartsAt    string `json:"starts_at"`
}

func newDueCmd(a *app) *cobra.Command {
	var nowText string

	cmd := &cobra.Command{
		Use:   "due",
		Short: "Show appointments whose location sharing should be active now",
		Long: "Due lists appointments whose sharing window has opened but which have not\n" +
			"started yet, earliest trigger first. --now evaluates at another instant.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			now := time.Now()
			if nowText != "" {
				if now, err = s.sched.ParseTime(nowText); err != nil {
					return userError(fmt.Errorf("--now: %w", err))
				}
			}

			ev := s.sched.Evaluate(now, s.store.Appointments())
			for _, ferr := range ev.Failures {
				a.logger.Warn("appointment not schedulable", "err", ferr)
			}

			items := make([]dueItem, 0, len(ev.Due))
			for _, tr := range ev.Due {
				items = append(items, dueItem{
					ID:          tr.Appointment.ID,
					Title:       tr.Appointment.Title,
					Location:    tr.Appointment.Location,
					SharingFrom: tr.At.Format(time.RFC3339),
					StartsAt:    tr.Start.Format(time.RFC3339),
				})
			}

			out := cmd.OutOrStdout()
			if a.flags.jsonMode {
				return printJSON(out, items)
			}
			if len(items) == 0 {
				fmt.Fprintln(out, "Nothing due")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTITLE\tLOCATION\tSHARING FROM\tSTARTS AT")
			for _, it := range items {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", it.ID, it.Title, it.Location, it.SharingFrom, it.StartsAt)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&nowText, "now", "", "evaluate at this instant instead of the current time")
	return cmd
}
