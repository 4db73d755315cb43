package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"karaoke-live/internal/status"
	"karaoke-live/models"
)

func seedInstance(t *testing.T, st *memStore, name, code, stat string, expiresAt time.Time) *models.Instance {
	t.Helper()

	inst := &models.Instance{
		Name:      name,
		Code:      code,
		Status:    stat,
		Owner:     "coord-" + code,
		ExpiresAt: expiresAt,
	}
	require.NoError(t, st.CreateInstance(context.Background(), inst))
	return inst
}

func TestRegistry_ResolveByCode(t *testing.T) {
	st := newMemStore()
	reg := NewRegistry(st)
	seedInstance(t, st, "Friday Night", "ABC123", models.InstanceStatusActive, time.Time{})

	inst, err := reg.ResolveByCode(context.Background(), "ABC123")
	require.NoError(t, err)
	assert.Equal(t, "Friday Night", inst.Name)

	// Join codes arrive hand-typed; case and whitespace are forgiven.
	inst, err = reg.ResolveByCode(context.Background(), "  abc123 ")
	require.NoError(t, err)
	assert.Equal(t, "Friday Night", inst.Name)

	_, err = reg.ResolveByCode(context.Background(), "NOPE99")
	assert.ErrorIs(t, err, status.ErrNotFound)

	_, err = reg.ResolveByCode(context.Background(), "")
	assert.ErrorIs(t, err, status.ErrNotFound)
}

func TestRegistry_HidesUnusableInstances(t *testing.T) {
	st := newMemStore()
	reg := NewRegistry(st)
	seedInstance(t, st, "Paused", "PAUSE1", models.InstanceStatusPaused, time.Time{})
	seedInstance(t, st, "Closed", "CLOSE1", models.InstanceStatusClosed, time.Time{})

	// Paused and closed instances read as nonexistent, never as a
	// distinct "forbidden" state.
	_, err := reg.ResolveByCode(context.Background(), "PAUSE1")
	assert.ErrorIs(t, err, status.ErrNotFound)

	_, err = reg.ResolveByCode(context.Background(), "CLOSE1")
	assert.ErrorIs(t, err, status.ErrNotFound)
}

func TestRegistry_HidesExpiredInstances(t *testing.T) {
	st := newMemStore()
	reg := NewRegistry(st)

	expiry := time.Date(2025, 6, 1, 23, 0, 0, 0, time.UTC)
	inst := seedInstance(t, st, "Birthday", "BDAY42", models.InstanceStatusActive, expiry)

	reg.now = func() time.Time { return expiry.Add(-time.Hour) }
	got, err := reg.ResolveByCode(context.Background(), "BDAY42")
	require.NoError(t, err)
	assert.Equal(t, inst.ID, got.ID)

	// One minute past expiry the same code stops resolving, with no
	// status write anywhere.
	reg.now = func() time.Time { return expiry.Add(time.Minute) }
	_, err = reg.ResolveByCode(context.Background(), "BDAY42")
	assert.ErrorIs(t, err, status.ErrNotFound)

	_, err = reg.ResolveByID(context.Background(), inst.ID)
	assert.ErrorIs(t, err, status.ErrNotFound)
}

func TestRegistry_ResolveByOwner(t *testing.T) {
	st := newMemStore()
	reg := NewRegistry(st)
	inst := seedInstance(t, st, "Friday Night", "ABC123", models.InstanceStatusActive, time.Time{})

	got, err := reg.ResolveByOwner(context.Background(), inst.Owner)
	require.NoError(t, err)
	assert.Equal(t, inst.ID, got.ID)

	_, err = reg.ResolveByOwner(context.Background(), "nobody")
	assert.ErrorIs(t, err, status.ErrNotFound)
}

func TestRegistry_OwnedSeesPausedInstance(t *testing.T) {
	st := newMemStore()
	reg := NewRegistry(st)
	inst := seedInstance(t, st, "Paused", "PAUSE1", models.InstanceStatusPaused, time.Time{})

	// The coordinator must still see their paused instance to be able
	// to reactivate it.
	got, err := reg.Owned(context.Background(), inst.Owner)
	require.NoError(t, err)
	assert.Equal(t, inst.ID, got.ID)

	_, err = reg.ResolveByOwner(context.Background(), inst.Owner)
	assert.ErrorIs(t, err, status.ErrNotFound)
}

func TestRegistry_Create(t *testing.T) {
	st := newMemStore()
	reg := NewRegistry(st)

	inst, err := reg.Create(context.Background(), "  Friday Night  ", "coord1", time.Time{}, 6)
	require.NoError(t, err)
	assert.Equal(t, "Friday Night", inst.Name)
	assert.Equal(t, models.InstanceStatusActive, inst.Status)
	assert.Len(t, inst.Code, 6)
	assert.NotEmpty(t, inst.ID)

	_, err = reg.Create(context.Background(), "   ", "coord1", time.Time{}, 6)
	assert.ErrorIs(t, err, status.ErrNameRequired)
}

// conflictingStore rejects the first N creates with a code conflict.
type conflictingStore struct {
	*memStore
	conflicts int
}

func (s *conflictingStore) CreateInstance(ctx context.Context, inst *models.Instance) error {
	if s.conflicts > 0 {
		s.conflicts--
		return status.ErrConflict
	}
	return s.memStore.CreateInstance(ctx, inst)
}

func TestRegistry_CreateRetriesCodeCollisions(t *testing.T) {
	st := &conflictingStore{memStore: newMemStore(), conflicts: 2}
	reg := NewRegistry(st)

	inst, err := reg.Create(context.Background(), "Friday Night", "coord1", time.Time{}, 6)
	require.NoError(t, err)
	assert.NotEmpty(t, inst.Code)

	st = &conflictingStore{memStore: newMemStore(), conflicts: 10}
	reg = NewRegistry(st)
	_, err = reg.Create(context.Background(), "Friday Night", "coord1", time.Time{}, 6)
	assert.ErrorIs(t, err, status.ErrUnavailable)
}

func TestRegistry_SetStatus(t *testing.T) {
	st := newMemStore()
	reg := NewRegistry(st)
	inst := seedInstance(t, st, "Friday Night", "ABC123", models.InstanceStatusActive, time.Time{})

	got, err := reg.SetStatus(context.Background(), inst.ID, models.InstanceStatusPaused)
	require.NoError(t, err)
	assert.Equal(t, models.InstanceStatusPaused, got.Status)

	_, err = reg.SetStatus(context.Background(), inst.ID, "archived")
	assert.ErrorIs(t, err, status.ErrInvalid)
}

func TestRegistry_WatchAppliesStatusFlips(t *testing.T) {
	st := newMemStore()
	reg := NewRegistry(st)
	inst := seedInstance(t, st, "Friday Night", "ABC123", models.InstanceStatusActive, time.Time{})

	// Prime the cache.
	_, err := reg.ResolveByCode(context.Background(), "ABC123")
	require.NoError(t, err)

	d := NewDispatcher(16, nil, false)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go reg.Watch(ctx, d.SubscribeAll())

	d.Publish(Change{
		Collection: "instances",
		Action:     ActionUpdate,
		RowID:      inst.ID,
		InstanceID: inst.ID,
		Record: map[string]any{
			"name":   inst.Name,
			"code":   inst.Code,
			"status": models.InstanceStatusPaused,
			"owner":  inst.Owner,
		},
		Timestamp: inst.UpdatedAt.Add(time.Second),
	})

	// The cached snapshot wins over the (still active) store row, so
	// the pause takes effect without a cache TTL.
	assert.Eventually(t, func() bool {
		_, err := reg.ResolveByCode(context.Background(), "ABC123")
		return err != nil
	}, time.Second, 5*time.Millisecond)
}

func TestRegistry_ApplyIgnoresStaleChanges(t *testing.T) {
	st := newMemStore()
	reg := NewRegistry(st)
	inst := seedInstance(t, st, "Friday Night", "ABC123", models.InstanceStatusActive, time.Time{})

	_, err := reg.ResolveByCode(context.Background(), "ABC123")
	require.NoError(t, err)

	// A notification older than the cached snapshot is discarded.
	reg.apply(Change{
		Collection: "instances",
		Action:     ActionUpdate,
		RowID:      inst.ID,
		Record: map[string]any{
			"code":   inst.Code,
			"status": models.InstanceStatusPaused,
		},
		Timestamp: inst.UpdatedAt.Add(-time.Hour),
	})

	got, err := reg.ResolveByCode(context.Background(), "ABC123")
	require.NoError(t, err)
	assert.Equal(t, models.InstanceStatusActive, got.Status)
}

func TestRegistry_ApplyCodeChangeEvictsOldCode(t *testing.T) {
	st := newMemStore()
	reg := NewRegistry(st)
	inst := seedInstance(t, st, "Friday Night", "ABC123", models.InstanceStatusActive, time.Time{})

	_, err := reg.ResolveByCode(context.Background(), "ABC123")
	require.NoError(t, err)

	reg.apply(Change{
		Collection: "instances",
		Action:     ActionUpdate,
		RowID:      inst.ID,
		Record: map[string]any{
			"name":   inst.Name,
			"code":   "XYZ789",
			"status": models.InstanceStatusActive,
			"owner":  inst.Owner,
		},
		Timestamp: inst.UpdatedAt.Add(time.Second),
	})

	// The row is cached under its new code only; the old key is gone.
	reg.mu.RLock()
	_, oldCached := reg.byCode["ABC123"]
	fresh, newCached := reg.byCode["XYZ789"]
	reg.mu.RUnlock()

	assert.False(t, oldCached)
	require.True(t, newCached)
	assert.Equal(t, inst.ID, fresh.ID)
}

func TestRegistry_ApplyDelete(t *testing.T) {
	st := newMemStore()
	reg := NewRegistry(st)
	inst := seedInstance(t, st, "Friday Night", "ABC123", models.InstanceStatusActive, time.Time{})

	_, err := reg.ResolveByCode(context.Background(), "ABC123")
	require.NoError(t, err)

	reg.apply(Change{
		Collection: "instances",
		Action:     ActionDelete,
		RowID:      inst.ID,
		Timestamp:  inst.UpdatedAt.Add(time.Second),
	})

	// The cache entry is gone; the store row is too in a real delete,
	// here the fake still has it so resolution falls back to it.
	reg.mu.RLock()
	_, cached := reg.byCode["ABC123"]
	reg.mu.RUnlock()
	assert.False(t, cached)
}
