package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/rendezvous/internal/kv"
	"github.com/mesh-intelligence/rendezvous/pkg/types"
)

var errDiskFull = errors.New("disk full")

var errConnReset = errors.New("connection reset")

// flakyKV wraps a Memory backend and fails Set while failSet is true, and
// Get while failGet is true.
type flakyKV struct {
	*kv.Memory
	failSet bool
	failGet bool
	sets    int
}

func (f *flakyKV) Get(ctx context.Context, key string) (string, error) {
	if f.failGet {
		return "", errConnReset
	}
	return f.Memory.Get(ctx, key)
}

func newFlakyKV() *flakyKV {
	return &flakyKV{Memory: kv.NewMemory()}
}

func (f *flakyKV) Set(ctx context.Context, key, value string) error {
	f.sets++
	if f.failSet {
		return errDiskFull
	}
	return f.Memory.Set(ctx, key, value)
}

func lunch() types.Candidate {
	return types.Candidate{Title: "Lunch", Location: "Cafe", Time: "2024-01-01T12:00", ShareOffsetMinutes: 30}
}

func dinner() types.Candidate {
	return types.Candidate{Title: "Dinner", Location: "Bistro", Time: "2024-01-01T19:00", ShareOffsetMinutes: 60}
}

func newLoadedStore(t *testing.T, backend types.KV, opts ...Option) *Store {
	t.Helper()
	s := New(backend, opts...)
	_, err := s.Load(context.Background())
	require.NoError(t, err)
	return s
}

func TestLoad_MissingKeyIsEmpty(t *testing.T) {
	s := New(kv.NewMemory())
	appts, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, appts)
	assert.Empty(t, appts)
}

func TestCreate_ThenLoadFromFreshStore(t *testing.T) {
	ctx := context.Background()
	backend := kv.NewMemory()
	s := newLoadedStore(t, backend)

	created, err := s.Create(ctx, lunch())
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "Lunch", created.Title)
	assert.Equal(t, "Cafe", created.Location)
	assert.Equal(t, "2024-01-01T12:00", created.Time)
	assert.Equal(t, 30, created.ShareOffsetMinutes)

	fresh := New(backend)
	loaded, err := fresh.Load(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, created, loaded[0])
}

func TestCreate_TrimsFields(t *testing.T) {
	s := newLoadedStore(t, kv.NewMemory())
	c := types.Candidate{Title: "  Lunch ", Location: " Cafe", Time: "2024-01-01T12:00\n", ShareOffsetMinutes: 90}

	created, err := s.Create(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, "Lunch", created.Title)
	assert.Equal(t, "Cafe", created.Location)
	assert.Equal(t, "2024-01-01T12:00", created.Time)
}

func TestCreate_ValidationLeavesDurableStateUntouched(t *testing.T) {
	ctx := context.Background()
	backend := newFlakyKV()
	s := newLoadedStore(t, backend)

	c := lunch()
	c.Title = ""
	_, err := s.Create(ctx, c)

	var verr *types.ValidationError
	require.True(t, errors.As(err, &verr), "expected ValidationError, got %v", err)
	assert.Equal(t, []string{types.FieldTitle}, verr.Fields)
	assert.Contains(t, err.Error(), "title")

	assert.Equal(t, 0, backend.sets, "no write should be attempted")
	_, err = backend.Get(ctx, DefaultKey)
	assert.ErrorIs(t, err, types.ErrKeyNotFound)
	assert.Empty(t, s.Appointments())
}

func TestCreate_WriteFailureKeepsMemory(t *testing.T) {
	ctx := context.Background()
	backend := newFlakyKV()
	s := newLoadedStore(t, backend)

	first, err := s.Create(ctx, lunch())
	require.NoError(t, err)

	backend.failSet = true
	_, err = s.Create(ctx, dinner())
	assert.ErrorIs(t, err, types.ErrPersistenceWrite)
	assert.ErrorIs(t, err, errDiskFull)
	assert.Equal(t, []types.Appointment{first}, s.Appointments())

	backend.failSet = false
	second, err := s.Create(ctx, dinner())
	require.NoError(t, err, "retry after a failed write succeeds")
	assert.Equal(t, []types.Appointment{first, second}, s.Appointments())
}

func TestCreate_AssignsDistinctOrderedIDs(t *testing.T) {
	ctx := context.Background()
	s := newLoadedStore(t, kv.NewMemory())

	seen := make(map[string]bool)
	var prev string
	for i := 0; i < 20; i++ {
		a, err := s.Create(ctx, lunch())
		require.NoError(t, err)
		assert.False(t, seen[a.ID], "id %s reused", a.ID)
		seen[a.ID] = true
		assert.Greater(t, a.ID, prev, "UUID v7 ids sort in creation order")
		prev = a.ID
	}
}

func TestCreate_RetriesCollidingIDs(t *testing.T) {
	ctx := context.Background()
	ids := []string{"a", "a", "b"}
	next := 0
	gen := func() (string, error) {
		id := ids[next]
		next++
		return id, nil
	}
	s := newLoadedStore(t, kv.NewMemory(), WithIDGenerator(gen))

	first, err := s.Create(ctx, lunch())
	require.NoError(t, err)
	second, err := s.Create(ctx, dinner())
	require.NoError(t, err)
	assert.Equal(t, "a", first.ID)
	assert.Equal(t, "b", second.ID)
}

func TestDelete_RemovesAndPreservesOrder(t *testing.T) {
	ctx := context.Background()
	backend := kv.NewMemory()
	s := newLoadedStore(t, backend)

	var created []types.Appointment
	for _, c := range []types.Candidate{lunch(), dinner(), lunch(), dinner()} {
		a, err := s.Create(ctx, c)
		require.NoError(t, err)
		created = append(created, a)
	}

	require.NoError(t, s.Delete(ctx, created[1].ID))

	want := []types.Appointment{created[0], created[2], created[3]}
	assert.Equal(t, want, s.Appointments())

	loaded, err := New(backend).Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, loaded)
}

func TestDelete_FirstOfTwo(t *testing.T) {
	ctx := context.Background()
	backend := kv.NewMemory()
	s := newLoadedStore(t, backend)

	first, err := s.Create(ctx, lunch())
	require.NoError(t, err)
	second, err := s.Create(ctx, dinner())
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, first.ID))

	loaded, err := New(backend).Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []types.Appointment{second}, loaded)
}

func TestDelete_AbsentIDIsNoop(t *testing.T) {
	ctx := context.Background()
	backend := newFlakyKV()
	s := newLoadedStore(t, backend)

	a, err := s.Create(ctx, lunch())
	require.NoError(t, err)
	before, err := backend.Get(ctx, DefaultKey)
	require.NoError(t, err)
	sets := backend.sets

	require.NoError(t, s.Delete(ctx, "no-such-id"))
	require.NoError(t, s.Delete(ctx, ""))

	assert.Equal(t, sets, backend.sets, "no write for an absent id")
	assert.Equal(t, []types.Appointment{a}, s.Appointments())
	after, err := backend.Get(ctx, DefaultKey)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	require.NoError(t, s.Delete(ctx, a.ID))
	require.NoError(t, s.Delete(ctx, a.ID), "deleting twice is a no-op")
	assert.Empty(t, s.Appointments())
}

func TestDelete_WriteFailureKeepsMemory(t *testing.T) {
	ctx := context.Background()
	backend := newFlakyKV()
	s := newLoadedStore(t, backend)

	a, err := s.Create(ctx, lunch())
	require.NoError(t, err)

	backend.failSet = true
	err = s.Delete(ctx, a.ID)
	assert.ErrorIs(t, err, types.ErrPersistenceWrite)
	assert.Equal(t, []types.Appointment{a}, s.Appointments())

	got, ok := s.Get(a.ID)
	assert.True(t, ok)
	assert.Equal(t, a, got)
}

func TestDurablePayloadMatchesMemory(t *testing.T) {
	ctx := context.Background()
	backend := kv.NewMemory()
	s := newLoadedStore(t, backend)

	c := dinner()
	c.Coordinates = &types.Coordinates{Latitude: 37.5665, Longitude: 126.978}
	_, err := s.Create(ctx, c)
	require.NoError(t, err)
	_, err = s.Create(ctx, lunch())
	require.NoError(t, err)

	stored, err := backend.Get(ctx, DefaultKey)
	require.NoError(t, err)
	want, err := encode(s.Appointments())
	require.NoError(t, err)
	assert.Equal(t, want, stored)
	assert.Contains(t, stored, `"version":1`)
	assert.Contains(t, stored, `"shareOffset":"60"`)
}

func TestAppointmentsReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := newLoadedStore(t, kv.NewMemory())
	c := lunch()
	c.Coordinates = &types.Coordinates{Latitude: 1, Longitude: 2}
	_, err := s.Create(ctx, c)
	require.NoError(t, err)

	got := s.Appointments()
	got[0].Title = "mutated"
	got[0].Coordinates.Latitude = 99

	again := s.Appointments()
	assert.Equal(t, "Lunch", again[0].Title)
	assert.Equal(t, 1.0, again[0].Coordinates.Latitude)
}

func TestLoad_LegacyArray(t *testing.T) {
	ctx := context.Background()
	backend := kv.NewMemory()
	legacy := `[{"id":"1704067200000","title":"Lunch","location":"Cafe","time":"12:00","shareOffset":"30"},` +
		`{"id":"1704067300000","title":"Gym","location":"Club","time":"18:00","shareOffset":"150"}]`
	require.NoError(t, backend.Set(ctx, DefaultKey, legacy))

	s := New(backend)
	loaded, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, "1704067200000", loaded[0].ID)
	assert.Equal(t, 150, loaded[1].ShareOffsetMinutes)

	_, err = s.Create(ctx, dinner())
	require.NoError(t, err)
	stored, err := backend.Get(ctx, DefaultKey)
	require.NoError(t, err)
	assert.Contains(t, stored, `"version":1`, "next write upgrades the format")
}

func TestLoad_Corrupt(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"not json", "{{{"},
		{"missing version", `{"appointments":[]}`},
		{"future version", `{"version":2,"appointments":[]}`},
		{"non-numeric share offset", `{"version":1,"appointments":[{"id":"a","title":"t","location":"l","time":"x","shareOffset":"soon"}]}`},
		{"zero share offset", `{"version":1,"appointments":[{"id":"a","title":"t","location":"l","time":"x","shareOffset":"0"}]}`},
		{"share offset past a week", `{"version":1,"appointments":[{"id":"a","title":"t","location":"l","time":"x","shareOffset":"10081"}]}`},
		{"share offset overflowing a duration", `{"version":1,"appointments":[{"id":"a","title":"t","location":"l","time":"x","shareOffset":"200000000"}]}`},
		{"blank title", `{"version":1,"appointments":[{"id":"a","title":" ","location":"l","time":"x","shareOffset":"30"}]}`},
		{"missing id", `[{"title":"t","location":"l","time":"x","shareOffset":"30"}]`},
		{"duplicate ids", `[{"id":"a","title":"t","location":"l","time":"x","shareOffset":"30"},{"id":"a","title":"t","location":"l","time":"x","shareOffset":"30"}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			backend := kv.NewMemory()
			require.NoError(t, backend.Set(ctx, DefaultKey, tt.payload))

			s := New(backend)
			appts, err := s.Load(ctx)
			assert.ErrorIs(t, err, types.ErrPersistenceCorrupt)
			assert.Empty(t, appts)
			assert.Empty(t, s.Appointments())
		})
	}
}

func TestLoadOrEmpty_CorruptPayloadIsLogged(t *testing.T) {
	ctx := context.Background()
	backend := kv.NewMemory()
	require.NoError(t, backend.Set(ctx, DefaultKey, "not json at all"))

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	s := New(backend, WithLogger(logger))

	var appts []types.Appointment
	var err error
	require.NotPanics(t, func() { appts, err = s.LoadOrEmpty(ctx) })
	require.NoError(t, err)
	assert.Empty(t, appts)
	assert.Contains(t, buf.String(), types.ErrPersistenceCorrupt.Error())
	assert.Contains(t, buf.String(), "appointments corrupt")

	created, err := s.Create(ctx, lunch())
	require.NoError(t, err, "store stays usable after degrading to empty")
	assert.Equal(t, []types.Appointment{created}, s.Appointments())
}

func TestWithKey(t *testing.T) {
	ctx := context.Background()
	backend := kv.NewMemory()
	s := newLoadedStore(t, backend, WithKey("work"))

	_, err := s.Create(ctx, lunch())
	require.NoError(t, err)

	_, err = backend.Get(ctx, "work")
	assert.NoError(t, err)
	_, err = backend.Get(ctx, DefaultKey)
	assert.ErrorIs(t, err, types.ErrKeyNotFound)
}

func TestCreate_IDGeneratorError(t *testing.T) {
	boom := fmt.Errorf("entropy exhausted")
	s := newLoadedStore(t, kv.NewMemory(), WithIDGenerator(func() (string, error) { return "", boom }))

	_, err := s.Create(context.Background(), lunch())
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, s.Appointments())
}

func TestLoad_BlankPayloadIsEmpty(t *testing.T) {
	ctx := context.Background()
	backend := kv.NewMemory()
	require.NoError(t, backend.Set(ctx, DefaultKey, "  \n"))

	s := New(backend)
	appts, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, appts)
}

func TestLoad_LongestShareOffsetAccepted(t *testing.T) {
	ctx := context.Background()
	backend := kv.NewMemory()
	payload := fmt.Sprintf(`{"version":1,"appointments":[{"id":"a","title":"t","location":"l","time":"x","shareOffset":"%d"}]}`,
		types.MaxShareOffsetMinutes)
	require.NoError(t, backend.Set(ctx, DefaultKey, payload))

	appts, err := New(backend).Load(ctx)
	require.NoError(t, err)
	require.Len(t, appts, 1)
	assert.Equal(t, types.MaxShareOffsetMinutes, appts[0].ShareOffsetMinutes)
}

func TestReadErrorDoesNotEraseList(t *testing.T) {
	ctx := context.Background()
	backend := newFlakyKV()
	seed := newLoadedStore(t, backend)
	first, err := seed.Create(ctx, lunch())
	require.NoError(t, err)
	second, err := seed.Create(ctx, dinner())
	require.NoError(t, err)
	before, err := backend.Get(ctx, DefaultKey)
	require.NoError(t, err)

	backend.failGet = true
	s := New(backend)
	appts, err := s.LoadOrEmpty(ctx)
	require.ErrorIs(t, err, errConnReset)
	assert.NotErrorIs(t, err, types.ErrPersistenceCorrupt)
	assert.Nil(t, appts)

	sets := backend.sets
	_, err = s.Create(ctx, lunch())
	require.ErrorIs(t, err, ErrUnread)
	assert.ErrorIs(t, err, types.ErrPersistenceWrite)
	require.ErrorIs(t, s.Delete(ctx, first.ID), ErrUnread)
	assert.Equal(t, sets, backend.sets, "no write while the list is unread")

	backend.failGet = false
	after, err := backend.Get(ctx, DefaultKey)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	loaded, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []types.Appointment{first, second}, loaded)
	_, err = s.Create(ctx, lunch())
	require.NoError(t, err)
	assert.Len(t, s.Appointments(), 3)
}

func TestReadErrorKeepsLoadedSnapshot(t *testing.T) {
	ctx := context.Background()
	backend := newFlakyKV()
	s := newLoadedStore(t, backend)
	created, err := s.Create(ctx, lunch())
	require.NoError(t, err)

	backend.failGet = true
	appts, err := s.Load(ctx)
	require.ErrorIs(t, err, errConnReset)
	assert.Equal(t, []types.Appointment{created}, appts)
	assert.Equal(t, []types.Appointment{created}, s.Appointments())
}
