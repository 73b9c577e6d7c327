package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
)

func newInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize rendezvous storage",
		Long: "Create the configuration directory and a default config.yaml, then open\n" +
			"the configured storage backend once so its data directory exists.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openSession(cmd.Context())
			if err != nil {
				return err
			}
			if err := s.Close(); err != nil {
				return sysError(fmt.Errorf("finalize storage: %w", err))
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config: %s\n", filepath.Join(a.configDir, configFileExt))
			if s.cfg.DataDir != "" {
				fmt.Fprintf(out, "Data:   %s (%s)\n", s.cfg.DataDir, s.cfg.Backend)
			}
			fmt.Fprintln(out, "rendezvous initialized successfully")
			return nil
		},
	}
}
