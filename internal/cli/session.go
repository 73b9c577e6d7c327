package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/mesh-intelligence/rendezvous/internal/kv"
	"github.com/mesh-intelligence/rendezvous/internal/schedule"
	"github.com/mesh-intelligence/rendezvous/internal/store"
	"github.com/mesh-intelligence/rendezvous/pkg/types"
)

// session is an opened backend with the appointment list loaded.
type session struct {
	cfg   types.Config
	kv    types.KV
	store *store.Store
	sched *schedule.Scheduler
}

// openSession opens the configured backend and loads the appointment list.
// A corrupt list is logged and treated as empty; a list that cannot be read
// is a system error. The caller must Close.
func (a *app) openSession(ctx context.Context) (*session, error) {
	sched, err := a.scheduler()
	if err != nil {
		return nil, userError(err)
	}

	cfg, err := a.backendConfig()
	if err != nil {
		return nil, sysError(err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, userError(fmt.Errorf("backend %q: %w", cfg.Backend, err))
	}

	backend, err := kv.Open(ctx, cfg)
	if err != nil {
		return nil, sysError(fmt.Errorf("open %s backend: %w", cfg.Backend, err))
	}

	st := store.New(backend, store.WithLogger(a.logger.With("backend", cfg.Backend)))
	if _, err := st.LoadOrEmpty(ctx); err != nil {
		backend.Close()
		return nil, sysError(err)
	}

	return &session{cfg: cfg, kv: backend, store: st, sched: sched}, nil
}

func (s *session) Close() error {
	return s.kv.Close()
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return sysError(fmt.Errorf("marshal JSON: %w", err))
	}
	fmt.Fprintln(w, string(out))
	return nil
}
