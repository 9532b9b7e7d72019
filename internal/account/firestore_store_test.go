package account

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestRelativePath(t *testing.T) {
	ref := &firestore.DocumentRef{
		ID: "admin",
		Parent: &firestore.CollectionRef{
			ID: "profiles",
			Parent: &firestore.DocumentRef{
				ID:     "acme",
				Parent: &firestore.CollectionRef{ID: "orgs"},
			},
		},
	}
	assert.Equal(t, "orgs/acme/profiles/admin", relativePath(ref))

	flat := &firestore.DocumentRef{ID: "profileUser", Parent: &firestore.CollectionRef{ID: "usersProfiles"}}
	assert.Equal(t, "usersProfiles/profileUser", relativePath(flat))
}

func TestFirestoreEncodeRejectsBadValues(t *testing.T) {
	s := &FirestoreStore{}

	_, err := s.encode(Fields{FieldCreatedAt: Sentinel("SOMETIME")})
	assert.ErrorContains(t, err, "unknown sentinel")

	_, err = s.encode(Fields{FieldUserProfile: DocRef("usersProfiles")})
	assert.ErrorContains(t, err, "invalid document reference")
}

// The remaining tests talk to the Firestore emulator:
//
//	gcloud emulators firestore start --host-port=localhost:8681
//	FIRESTORE_EMULATOR_HOST=localhost:8681 go test ./internal/account/...
func newEmulatorStore(t *testing.T) *FirestoreStore {
	t.Helper()
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}

	ctx := context.Background()
	client, err := firestore.NewClient(ctx, "provisioner-test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	suffix := fmt.Sprintf("%d", time.Now().UnixNano())
	return NewFirestoreStore(client, "usersAccounts_"+suffix, "usersAccountsArchive_"+suffix)
}

func TestFirestoreStoreMergeUpsertPreservesExistingFields(t *testing.T) {
	store := newEmulatorStore(t)
	ctx := context.Background()
	fields := newTestDefaults().InitialFields("u1", "a@b.com", "")

	require.NoError(t, store.MergeUpsert(ctx, "u1", fields))
	first, err := store.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, DefaultProfileRef, first.UserProfile)
	assert.False(t, first.CreatedAt.IsZero())

	_, err = store.doc("u1").Update(ctx, []firestore.Update{
		{Path: FieldFirstName, Value: "Ana"},
		{Path: FieldIsActive, Value: true},
	})
	require.NoError(t, err)

	require.NoError(t, store.MergeUpsert(ctx, "u1", fields))
	got, err := store.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Ana", got.FirstName)
	assert.True(t, got.IsActive)
	assert.True(t, first.CreatedAt.Equal(got.CreatedAt))
	assert.True(t, first.LastLogin.Equal(got.LastLogin))
}

func TestFirestoreStoreConcurrentDuplicateUpserts(t *testing.T) {
	store := newEmulatorStore(t)
	ctx := context.Background()
	fields := newTestDefaults().InitialFields("u2", "c@d.com", "")

	var g errgroup.Group
	for i := 0; i < 8; i++ {
		g.Go(func() error { return store.MergeUpsert(ctx, "u2", fields) })
	}
	require.NoError(t, g.Wait())

	rec, err := store.Get(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, "c@d.com", rec.Email)
}

func TestFirestoreStoreDeletionOutcomes(t *testing.T) {
	store := newEmulatorStore(t)
	ctx := context.Background()
	d := newTestDefaults()

	require.NoError(t, store.MergeUpsert(ctx, "del", d.InitialFields("del", "", "")))
	outcome, err := store.Delete(ctx, "del")
	require.NoError(t, err)
	assert.Equal(t, OutcomeRemoved, outcome)
	outcome, err = store.Delete(ctx, "del")
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyAbsent, outcome)

	require.NoError(t, store.MergeUpsert(ctx, "arc", d.InitialFields("arc", "", "")))
	outcome, err = store.Archive(ctx, "arc")
	require.NoError(t, err)
	assert.Equal(t, OutcomeArchived, outcome)
	_, err = store.Get(ctx, "arc")
	assert.ErrorIs(t, err, ErrNotFound)
	archived, err := store.client.Collection(store.archive).Doc("arc").Get(ctx)
	require.NoError(t, err)
	assert.Contains(t, archived.Data(), FieldArchivedAt)

	require.NoError(t, store.MergeUpsert(ctx, "soft", d.InitialFields("soft", "", "")))
	outcome, err = store.MarkDeleted(ctx, "soft")
	require.NoError(t, err)
	assert.Equal(t, OutcomeSoftDeleted, outcome)
	rec, err := store.Get(ctx, "soft")
	require.NoError(t, err)
	assert.NotNil(t, rec.DeletedAt)
	outcome, err = store.MarkDeleted(ctx, "nobody")
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyAbsent, outcome)
}

func TestFirestoreStoreMarkDeletedKeepsFirstStamp(t *testing.T) {
	store := newEmulatorStore(t)
	ctx := context.Background()
	require.NoError(t, store.MergeUpsert(ctx, "soft2", newTestDefaults().InitialFields("soft2", "", "")))

	outcome, err := store.MarkDeleted(ctx, "soft2")
	require.NoError(t, err)
	assert.Equal(t, OutcomeSoftDeleted, outcome)
	first, err := store.Get(ctx, "soft2")
	require.NoError(t, err)
	require.NotNil(t, first.DeletedAt)

	outcome, err = store.MarkDeleted(ctx, "soft2")
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadySoftDeleted, outcome)

	second, err := store.Get(ctx, "soft2")
	require.NoError(t, err)
	require.NotNil(t, second.DeletedAt)
	assert.True(t, first.DeletedAt.Equal(*second.DeletedAt))
}
