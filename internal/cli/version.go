package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

const modulePath = "github.com/mesh-intelligence/rendezvous"

// Version is the release version, overridden at build time with
// -ldflags "-X github.com/mesh-intelligence/rendezvous/internal/cli.Version=...".
var Version = "0.1.0"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the rendezvous version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "rendezvous v%s\nmodule: %s\n", Version, modulePath)
			return nil
		},
	}
}
