package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/rendezvous/pkg/types"
)

// listItem is one row of list output.
type listItem struct {
	types.Appointment
	SharingFrom string `json:"sharing_from,omitempty"`
	ParseError  string `json:"parse_error,omitempty"`
}

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List appointments in creation order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			appts := s.store.Appointments()
			items := make([]listItem, 0, len(appts))
			for _, appt := range appts {
				item := listItem{Appointment: appt}
				if at, err := s.sched.ComputeTriggerInstant(appt); err != nil {
					item.ParseError = err.Error()
				} else {
					item.SharingFrom = at.Format(time.RFC3339)
				}
				items = append(items, item)
			}

			out := cmd.OutOrStdout()
			if a.flags.jsonMode {
				return printJSON(out, items)
			}
			if len(items) == 0 {
				fmt.Fprintln(out, "No appointments")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTITLE\tLOCATION\tTIME\tOFFSET\tSHARING FROM")
			for _, item := range items {
				from := item.SharingFrom
				if from == "" {
					from = "(unparseable time)"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%dm\t%s\n",
					item.ID, item.Title, item.Location, item.Time, item.ShareOffsetMinutes, from)
			}
			return w.Flush()
		},
	}
}
