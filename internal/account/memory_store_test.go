package account

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func newTestDefaults() Defaults {
	return Defaults{ProfileRef: DefaultProfileRef, PhotoURL: DefaultPhotoURL}
}

func TestMemoryStoreMergeUpsertCreates(t *testing.T) {
	ctx := context.Background()
	clock := &stepClock{now: time.Date(2025, 9, 12, 10, 0, 0, 0, time.UTC)}
	store := NewMemoryStore(clock)

	require.NoError(t, store.MergeUpsert(ctx, "u1", newTestDefaults().InitialFields("u1", "a@b.com", "")))

	rec, err := store.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", rec.UID)
	assert.Equal(t, "a@b.com", rec.Email)
	assert.Equal(t, DefaultProfileRef, rec.UserProfile)
	assert.Equal(t, DefaultPhotoURL, rec.Photo)
	assert.False(t, rec.IsActive)
	assert.False(t, rec.CreatedAt.IsZero())
	assert.Equal(t, rec.CreatedAt, rec.LastLogin)
}

func TestMemoryStoreMergeUpsertNeverOverwrites(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(&stepClock{now: time.Unix(0, 0)})
	fields := newTestDefaults().InitialFields("u1", "a@b.com", "")

	require.NoError(t, store.MergeUpsert(ctx, "u1", fields))
	first, err := store.Get(ctx, "u1")
	require.NoError(t, err)

	store.Put("u1", Fields{FieldFirstName: "Ana", FieldIsActive: true})
	require.NoError(t, store.MergeUpsert(ctx, "u1", fields))

	got, err := store.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Ana", got.FirstName)
	assert.True(t, got.IsActive)
	assert.Equal(t, first.CreatedAt, got.CreatedAt)
	assert.Equal(t, first.LastLogin, got.LastLogin)
}

func TestMemoryStoreMergeUpsertFillsMissingFields(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(nil)

	// A partial document, as left behind by an interrupted earlier write.
	store.Put("u1", Fields{FieldUID: "u1", FieldEmail: "old@b.com"})
	require.NoError(t, store.MergeUpsert(ctx, "u1", newTestDefaults().InitialFields("u1", "new@b.com", "")))

	rec, err := store.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "old@b.com", rec.Email)
	assert.Equal(t, DefaultPhotoURL, rec.Photo)
	assert.Equal(t, DefaultProfileRef, rec.UserProfile)
}

func TestMemoryStoreConcurrentDuplicateUpserts(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(&stepClock{now: time.Unix(0, 0)})
	fields := newTestDefaults().InitialFields("u1", "a@b.com", "")

	var g errgroup.Group
	for i := 0; i < 32; i++ {
		g.Go(func() error { return store.MergeUpsert(ctx, "u1", fields) })
	}
	require.NoError(t, g.Wait())

	rec, err := store.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, rec.CreatedAt, rec.LastLogin, "timestamps must come from a single write")
}

func TestMemoryStoreIsolatesKeys(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(nil)
	d := newTestDefaults()

	var g errgroup.Group
	for i := 0; i < 16; i++ {
		uid := fmt.Sprintf("u%d", i)
		g.Go(func() error {
			return store.MergeUpsert(ctx, uid, d.InitialFields(uid, uid+"@b.com", ""))
		})
	}
	require.NoError(t, g.Wait())

	for i := 0; i < 16; i++ {
		uid := fmt.Sprintf("u%d", i)
		rec, err := store.Get(ctx, uid)
		require.NoError(t, err)
		assert.Equal(t, uid, rec.UID)
		assert.Equal(t, uid+"@b.com", rec.Email)
	}
}

func TestMemoryStoreDeleteOutcomes(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(nil)
	require.NoError(t, store.MergeUpsert(ctx, "u1", newTestDefaults().InitialFields("u1", "", "")))

	outcome, err := store.Delete(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeRemoved, outcome)

	outcome, err = store.Delete(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyAbsent, outcome)

	_, err = store.Get(ctx, "u1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreArchive(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(nil)
	require.NoError(t, store.MergeUpsert(ctx, "u1", newTestDefaults().InitialFields("u1", "a@b.com", "")))

	outcome, err := store.Archive(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeArchived, outcome)

	_, err = store.Get(ctx, "u1")
	assert.ErrorIs(t, err, ErrNotFound)
	archived, ok := store.Archived("u1")
	require.True(t, ok)
	assert.Equal(t, "a@b.com", archived.Email)

	outcome, err = store.Archive(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyAbsent, outcome)
}

func TestMemoryStoreMarkDeleted(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(nil)
	store.Put("u1", Fields{FieldUID: "u1", FieldIsActive: true})

	outcome, err := store.MarkDeleted(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeSoftDeleted, outcome)

	rec, err := store.Get(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, rec.IsActive)
	require.NotNil(t, rec.DeletedAt)

	outcome, err = store.MarkDeleted(ctx, "missing")
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyAbsent, outcome)
}

func TestMemoryStoreRejectsEmptyUID(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(nil)

	assert.ErrorIs(t, store.MergeUpsert(ctx, "", Fields{}), ErrEmptyUID)
	_, err := store.Delete(ctx, "")
	assert.ErrorIs(t, err, ErrEmptyUID)
}

func TestMemoryStoreMarkDeletedKeepsFirstStamp(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(&stepClock{now: time.Unix(0, 0)})
	require.NoError(t, store.MergeUpsert(ctx, "u1", newTestDefaults().InitialFields("u1", "", "")))

	outcome, err := store.MarkDeleted(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeSoftDeleted, outcome)
	first, err := store.Get(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, first.DeletedAt)

	store.Put("u1", Fields{FieldIsActive: true})
	outcome, err = store.MarkDeleted(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadySoftDeleted, outcome)

	second, err := store.Get(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, second.DeletedAt)
	assert.Equal(t, *first.DeletedAt, *second.DeletedAt)
	assert.True(t, second.IsActive, "a repeated soft-delete must not touch the document")
}
