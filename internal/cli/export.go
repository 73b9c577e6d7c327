package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/rendezvous/internal/calendar"
)

func newExportCmd(a *app) *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write appointments as an iCalendar file",
		Long: "Export writes one event per appointment with a display alarm at the moment\n" +
			"location sharing begins. Appointments whose time cannot be parsed are skipped.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			ics, failures := calendar.Export(s.store.Appointments(), s.sched, time.Now())
			for _, ferr := range failures {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: skipped: %v\n", ferr)
			}

			if outPath == "" {
				fmt.Fprint(cmd.OutOrStdout(), ics)
				return nil
			}
			if err := os.WriteFile(outPath, []byte(ics), 0o644); err != nil {
				return sysError(fmt.Errorf("write %s: %w", outPath, err))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d appointment(s) to %s\n",
				len(s.store.Appointments())-len(failures), outPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outPath, "out", "o", "", "write to this file instead of stdout")
	return cmd
}
