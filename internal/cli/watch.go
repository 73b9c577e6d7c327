package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/rendezvous/internal/dispatch"
	"github.com/mesh-intelligence/rendezvous/internal/store"
	"github.com/mesh-intelligence/rendezvous/pkg/types"
)

// liveSource reloads the list from the backend on every tick so appointments
// added or deleted by other invocations are picked up. A failed reload keeps
// the previous list; an empty one would prune the fired set.
type liveSource struct {
	ctx    context.Context
	store  *store.Store
	logger *slog.Logger
	last   []types.Appointment
}

func (l *liveSource) Appointments() []types.Appointment {
	appts, err := l.store.Load(l.ctx)
	if err != nil {
		l.logger.Error("reloading appointments failed, keeping previous list", "err", err)
		return l.last
	}
	l.last = appts
	return appts
}

func newWatchCmd(a *app) *cobra.Command {
	var spec string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Start location sharing as appointments come due",
		Long: "Watch re-evaluates the appointment list on a cron schedule and announces\n" +
			"each disclosure once, including across restarts. Runs until interrupted.\n\n" +
			"The schedule is a cron spec such as \"@every 30s\" or \"*/1 * * * *\"\n" +
			"(default from watch.schedule in config.yaml).",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if spec == "" {
				spec = a.settings.GetString(cfgKeyWatchSchedule)
			}
			if err := dispatch.ValidateSchedule(spec); err != nil {
				return userError(err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			s, err := a.openSession(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			d := dispatch.New(dispatch.Config{
				Source:    &liveSource{ctx: ctx, store: s.store, logger: a.logger, last: s.store.Appointments()},
				Scheduler: s.sched,
				Locator:   a.locator(),
				Notifier:  dispatch.NewLogNotifier(a.logger),
				KV:        s.kv,
				Logger:    a.logger,
			})

			if err := d.Run(ctx, spec); err != nil {
				return sysError(fmt.Errorf("watch: %w", err))
			}
			a.logger.Info("watch stopped")
			return nil
		},
	}

	cmd.Flags().StringVar(&spec, "schedule", "", "cron spec for re-evaluation")
	return cmd
}
