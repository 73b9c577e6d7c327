// Package dispatch turns due disclosure triggers into notifications, each at
// most once per appointment. The scheduler decides what is due; this package
// remembers what has already been acted on.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/mesh-intelligence/rendezvous/internal/location"
	"github.com/mesh-intelligence/rendezvous/internal/schedule"
	"github.com/mesh-intelligence/rendezvous/pkg/types"
)

// FiredKey is the key the fired set is persisted under.
const FiredKey = "disclosures"

// DefaultSchedule is the cron spec used by Run when none is given.
const DefaultSchedule = "@every 30s"

// ErrNoSource is returned by Tick and Run when Config.Source was not set.
var ErrNoSource = errors.New("dispatcher has no appointment source")

// Source supplies the current appointment snapshot.
type Source interface {
	Appointments() []types.Appointment
}

// Disclosure is handed to a Notifier when sharing should begin.
type Disclosure struct {
	Appointment types.Appointment
	TriggerAt   time.Time
	Start       time.Time
	// Position is nil when permission was denied or no fix was available.
	Position *types.Coordinates
}

// Notifier delivers a disclosure to the user.
type Notifier interface {
	Notify(ctx context.Context, d Disclosure) error
}

// firedJSON is the persisted fired set.
type firedJSON struct {
	Version int      `json:"version"`
	Fired   []string `json:"fired"`
}

// Dispatcher fires due triggers exactly once, surviving restarts through the
// fired set kept in kv.
type Dispatcher struct {
	mu        sync.Mutex
	source    Source
	scheduler *schedule.Scheduler
	locator   types.LocationProvider
	notifier  Notifier
	kv        types.KV
	logger    *slog.Logger
	now       func() time.Time

	fired  map[string]bool
	loaded bool
}

// Config wires a Dispatcher's collaborators.
type Config struct {
	// Source is required.
	Source    Source
	Scheduler *schedule.Scheduler
	Locator   types.LocationProvider
	Notifier  Notifier
	KV        types.KV
	Logger    *slog.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

// New returns a Dispatcher. Locator defaults to location.Denied and Notifier
// to a LogNotifier on the same logger.
func New(cfg Config) *Dispatcher {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Scheduler == nil {
		cfg.Scheduler = schedule.New()
	}
	if cfg.Locator == nil {
		cfg.Locator = location.Denied{}
	}
	if cfg.Notifier == nil {
		cfg.Notifier = NewLogNotifier(cfg.Logger)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Dispatcher{
		source:    cfg.Source,
		scheduler: cfg.Scheduler,
		locator:   cfg.Locator,
		notifier:  cfg.Notifier,
		kv:        cfg.KV,
		logger:    cfg.Logger,
		now:       cfg.Now,
		fired:     make(map[string]bool),
	}
}

// Tick notifies every due appointment not yet fired and records it. Ids of
// appointments that no longer exist are dropped from the fired set. A
// notification failure leaves the appointment unfired so the next tick
// retries it.
func (d *Dispatcher) Tick(ctx context.Context, now time.Time) ([]Disclosure, error) {
	if d.source == nil {
		return nil, ErrNoSource
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.loadFired(ctx); err != nil {
		return nil, err
	}

	appts := d.source.Appointments()
	ev := d.scheduler.Evaluate(now, appts)
	for _, err := range ev.Failures {
		d.logger.Warn("appointment excluded from scheduling", "err", err)
	}

	changed := d.prune(appts)

	var sent []Disclosure
	for _, tr := range ev.Due {
		id := tr.Appointment.ID
		if d.fired[id] {
			continue
		}

		disc := Disclosure{
			Appointment: tr.Appointment,
			TriggerAt:   tr.At,
			Start:       tr.Start,
		}
		if pos, err := location.Acquire(ctx, d.locator); err != nil {
			d.logger.Info("disclosing without position", "id", id, "err", err)
		} else {
			disc.Position = &pos
		}

		if err := d.notifier.Notify(ctx, disc); err != nil {
			d.logger.Error("notify failed, will retry", "id", id, "err", err)
			continue
		}
		d.fired[id] = true
		changed = true
		sent = append(sent, disc)
	}

	if changed {
		if err := d.saveFired(ctx); err != nil {
			return sent, err
		}
	}
	return sent, nil
}

// Fired reports whether id has already been disclosed.
func (d *Dispatcher) Fired(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.fired[id]
}

// Run ticks immediately and then on spec (a cron expression or descriptor
// such as "@every 30s") until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context, spec string) error {
	if d.source == nil {
		return ErrNoSource
	}
	if spec == "" {
		spec = DefaultSchedule
	}
	if err := ValidateSchedule(spec); err != nil {
		return err
	}

	tick := func() {
		if _, err := d.Tick(ctx, d.now()); err != nil {
			d.logger.Error("dispatch tick failed", "err", err)
		}
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(spec, tick); err != nil {
		return fmt.Errorf("scheduling %q: %w", spec, err)
	}

	tick()
	c.Start()
	d.logger.Info("watching for due disclosures", "schedule", spec)

	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

// ValidateSchedule checks a cron spec without scheduling anything.
func ValidateSchedule(spec string) error {
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return nil
}

// prune drops fired ids that are no longer in appts. The caller must hold d.mu.
func (d *Dispatcher) prune(appts []types.Appointment) bool {
	live := make(map[string]bool, len(appts))
	for _, a := range appts {
		live[a.ID] = true
	}
	changed := false
	for id := range d.fired {
		if !live[id] {
			delete(d.fired, id)
			changed = true
		}
	}
	return changed
}

// loadFired reads the fired set once. A corrupt set is logged and replaced
// by an empty one. The caller must hold d.mu.
func (d *Dispatcher) loadFired(ctx context.Context) error {
	if d.loaded || d.kv == nil {
		d.loaded = true
		return nil
	}

	payload, err := d.kv.Get(ctx, FiredKey)
	if err != nil {
		if errors.Is(err, types.ErrKeyNotFound) {
			d.loaded = true
			return nil
		}
		return fmt.Errorf("loading fired set: %w", err)
	}

	var f firedJSON
	if err := json.Unmarshal([]byte(payload), &f); err != nil {
		d.logger.Error("fired set corrupt, starting empty", "err", err, "key", FiredKey)
	} else {
		for _, id := range f.Fired {
			d.fired[id] = true
		}
	}
	d.loaded = true
	return nil
}

// saveFired persists the fired set. The caller must hold d.mu.
func (d *Dispatcher) saveFired(ctx context.Context) error {
	if d.kv == nil {
		return nil
	}
	f := firedJSON{Version: 1, Fired: make([]string, 0, len(d.fired))}
	for id := range d.fired {
		f.Fired = append(f.Fired, id)
	}
	slices.Sort(f.Fired)

	b, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("%w: encoding fired set: %w", types.ErrPersistenceWrite, err)
	}
	if err := d.kv.Set(ctx, FiredKey, string(b)); err != nil {
		return fmt.Errorf("%w: %w", types.ErrPersistenceWrite, err)
	}
	return nil
}
