// Package cli implements the rendezvous command-line interface.
package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mesh-intelligence/rendezvous/pkg/types"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// rootFlags holds global flag values accessible to all subcommands.
type rootFlags struct {
	configDir string
	dataDir   string
	backend   string
	logFormat string
	jsonMode  bool
}

// app is the state shared by one command tree: flags, loaded settings and
// the logger built from them.
type app struct {
	flags     rootFlags
	configDir string
	settings  *viper.Viper
	logger    *slog.Logger
}

// NewRootCmd creates the top-level "rendezvous" command with global flags
// and all subcommands registered.
func NewRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "rendezvous",
		Short: "Record appointments and when to start sharing your location",
		Long: "rendezvous keeps a list of appointments (title, place, time) and, for each,\n" +
			"how many minutes beforehand your live location should start being shared.",
		// Do not print usage on errors returned by subcommands.
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return a.loadSettings(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.configDir, "config-dir", "", "configuration directory (default: $XDG_CONFIG_HOME/rendezvous)")
	pf.StringVar(&a.flags.dataDir, "data-dir", "", "data directory (default: $XDG_DATA_HOME/rendezvous)")
	pf.StringVar(&a.flags.backend, "backend", "", "storage backend: file, sqlite, redis, memory (overrides config)")
	pf.StringVar(&a.flags.logFormat, "log-format", "", "log format: text or json (overrides config)")
	pf.BoolVar(&a.flags.jsonMode, "json", false, "output in JSON format")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newInitCmd(a))
	root.AddCommand(newAddCmd(a))
	root.AddCommand(newListCmd(a))
	root.AddCommand(newDeleteCmd(a))
	root.AddCommand(newDueCmd(a))
	root.AddCommand(newWatchCmd(a))
	root.AddCommand(newExportCmd(a))

	return root
}

// Execute runs the root command and exits with the appropriate code.
func Execute() {
	// A .env file is optional.
	_ = godotenv.Load()

	root := NewRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(exitCode(err))
	}
	os.Exit(exitSuccess)
}

// codedError carries the process exit code for err.
type codedError struct {
	code int
	err  error
}

func (e *codedError) Error() string { return e.err.Error() }
func (e *codedError) Unwrap() error { return e.err }

func userError(err error) error { return &codedError{code: exitUserError, err: err} }
func sysError(err error) error  { return &codedError{code: exitSysError, err: err} }

// classify assigns an exit code to an error from the core packages.
func classify(err error) error {
	var verr *types.ValidationError
	switch {
	case errors.As(err, &verr), errors.Is(err, types.ErrParseFailure):
		return userError(err)
	default:
		return sysError(err)
	}
}

// exitCode maps err to a process exit code. Errors without a code come
// from cobra itself (bad flags or arguments).
func exitCode(err error) int {
	var ce *codedError
	if errors.As(err, &ce) {
		return ce.code
	}
	return exitUserError
}
