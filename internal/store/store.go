// Package store owns the canonical appointment list. Every read and write of
// the list goes through a Store, which keeps the in-memory snapshot and the
// durable payload identical after each successful mutation.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/mesh-intelligence/rendezvous/pkg/types"
)

// DefaultKey is the key the appointment list is persisted under.
const DefaultKey = "appointments"

// ErrUnread is returned by Create and Delete after a Load could not read the
// backend. Mutations resume once a Load succeeds.
var ErrUnread = errors.New("appointment list could not be read")

// Store is the single owner of the appointment list.
type Store struct {
	mu     sync.Mutex
	kv     types.KV
	key    string
	logger *slog.Logger
	newID  func() (string, error)
	appts  []types.Appointment
	// unread is set when the last Load failed to read the backend. The
	// snapshot then no longer reflects durable state and must not be written.
	unread bool
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for load failures.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithKey overrides DefaultKey.
func WithKey(key string) Option {
	return func(s *Store) { s.key = key }
}

// WithIDGenerator overrides UUID v7 id generation.
func WithIDGenerator(fn func() (string, error)) Option {
	return func(s *Store) { s.newID = fn }
}

// New returns a Store backed by kv. Call Load before reading.
func New(kv types.KV, opts ...Option) *Store {
	s := &Store{
		kv:    kv,
		key:   DefaultKey,
		newID: generateID,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// generateID returns a UUID v7, which sorts in creation order.
func generateID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generating UUID v7: %w", err)
	}
	return id.String(), nil
}

// Load reads the persisted list and replaces the in-memory snapshot with it.
// A missing key yields an empty list. A payload that cannot be parsed yields
// an error wrapping types.ErrPersistenceCorrupt and leaves the snapshot empty.
// Any other read error keeps the previous snapshot and blocks Create and
// Delete with ErrUnread until a later Load succeeds.
func (s *Store) Load(ctx context.Context) ([]types.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := s.kv.Get(ctx, s.key)
	if err != nil {
		if errors.Is(err, types.ErrKeyNotFound) {
			s.appts = nil
			s.unread = false
			return []types.Appointment{}, nil
		}
		s.unread = true
		return cloneList(s.appts), fmt.Errorf("loading %s: %w", s.key, err)
	}

	s.unread = false
	appts, err := decode(payload)
	if err != nil {
		s.appts = nil
		return []types.Appointment{}, err
	}
	s.appts = appts
	return cloneList(appts), nil
}

// LoadOrEmpty is Load with the startup policy applied: a corrupt payload is
// logged and the store continues with an empty list. Read errors are
// returned, since starting empty would let the next write erase the list.
func (s *Store) LoadOrEmpty(ctx context.Context) ([]types.Appointment, error) {
	appts, err := s.Load(ctx)
	if err != nil {
		if errors.Is(err, types.ErrPersistenceCorrupt) {
			s.logger.Error("appointments corrupt, starting empty", "err", err, "key", s.key)
			return []types.Appointment{}, nil
		}
		return nil, err
	}
	return appts, nil
}

// Create validates c, assigns a fresh id, appends the record and persists the
// full list. On a write failure the in-memory list is unchanged and the error
// wraps types.ErrPersistenceWrite.
func (s *Store) Create(ctx context.Context, c types.Candidate) (types.Appointment, error) {
	if err := c.Validate(); err != nil {
		return types.Appointment{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unread {
		return types.Appointment{}, fmt.Errorf("%w: %w", types.ErrPersistenceWrite, ErrUnread)
	}

	id, err := s.uniqueID()
	if err != nil {
		return types.Appointment{}, err
	}

	a := types.Appointment{
		ID:                 id,
		Title:              strings.TrimSpace(c.Title),
		Location:           strings.TrimSpace(c.Location),
		Time:               strings.TrimSpace(c.Time),
		ShareOffsetMinutes: c.ShareOffsetMinutes,
	}
	if c.Coordinates != nil {
		coords := *c.Coordinates
		a.Coordinates = &coords
	}

	next := append(cloneList(s.appts), a)
	if err := s.commit(ctx, next); err != nil {
		return types.Appointment{}, err
	}
	return cloneAppointment(a), nil
}

// Delete removes the appointment with id. Deleting an absent id is a no-op
// and does not touch durable storage. On a write failure the in-memory list
// is unchanged and the error wraps types.ErrPersistenceWrite.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unread {
		return fmt.Errorf("%w: %w", types.ErrPersistenceWrite, ErrUnread)
	}

	idx := s.indexOf(id)
	if idx < 0 {
		return nil
	}

	next := make([]types.Appointment, 0, len(s.appts)-1)
	next = append(next, s.appts[:idx]...)
	next = append(next, s.appts[idx+1:]...)
	return s.commit(ctx, next)
}

// Appointments returns a copy of the last committed list, in creation order.
func (s *Store) Appointments() []types.Appointment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneList(s.appts)
}

// Get returns the appointment with id, if present.
func (s *Store) Get(id string) (types.Appointment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexOf(id)
	if idx < 0 {
		return types.Appointment{}, false
	}
	return cloneAppointment(s.appts[idx]), true
}

// commit persists next and, only if that succeeds, adopts it in memory.
// The caller must hold s.mu.
func (s *Store) commit(ctx context.Context, next []types.Appointment) error {
	payload, err := encode(next)
	if err != nil {
		return fmt.Errorf("%w: encoding: %w", types.ErrPersistenceWrite, err)
	}
	if err := s.kv.Set(ctx, s.key, payload); err != nil {
		return fmt.Errorf("%w: %w", types.ErrPersistenceWrite, err)
	}
	s.appts = next
	return nil
}

// uniqueID draws ids until one is not in the current list.
// The caller must hold s.mu.
func (s *Store) uniqueID() (string, error) {
	for i := 0; i < 3; i++ {
		id, err := s.newID()
		if err != nil {
			return "", err
		}
		if id != "" && s.indexOf(id) < 0 {
			return id, nil
		}
	}
	return "", errors.New("could not generate a unique appointment id")
}

// indexOf returns the position of id, or -1. The caller must hold s.mu.
func (s *Store) indexOf(id string) int {
	for i, a := range s.appts {
		if a.ID == id {
			return i
		}
	}
	return -1
}

func cloneList(appts []types.Appointment) []types.Appointment {
	out := make([]types.Appointment, len(appts))
	for i, a := range appts {
		out[i] = cloneAppointment(a)
	}
	return out
}

func cloneAppointment(a types.Appointment) types.Appointment {
	if a.Coordinates != nil {
		coords := *a.Coordinates
		a.Coordinates = &coords
	}
	return a
}
