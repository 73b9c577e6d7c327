package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

func newDeleteCmd(a *app) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Remove an appointment by ID",
		Long: "Delete removes the appointment and cancels its pending location sharing.\n" +
			"Asks for confirmation unless --yes is given. Deleting an unknown ID does nothing.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			s, err := a.openSession(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			appt, ok := s.store.Get(id)
			if !ok {
				fmt.Fprintf(out, "No appointment %s\n", id)
				return nil
			}

			if !yes {
				prompt := fmt.Sprintf("Delete %q at %s (%s)? [y/N]: ", appt.Title, appt.Location, appt.Time)
				if !confirm(cmd.InOrStdin(), out, prompt) {
					fmt.Fprintln(out, "Cancelled")
					return nil
				}
			}

			if err := s.store.Delete(ctx, id); err != nil {
				return classify(err)
			}
			fmt.Fprintf(out, "Deleted appointment: %s\n", id)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "delete without asking for confirmation")
	return cmd
}

// confirm writes prompt and reports whether the reply is yes. EOF is no.
func confirm(in io.Reader, out io.Writer, prompt string) bool {
	fmt.Fprint(out, prompt)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		fmt.Fprintln(out)
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}
