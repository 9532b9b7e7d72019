package account

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Collections used when none are configured.
const (
	DefaultCollection        = "usersAccounts"
	DefaultArchiveCollection = "usersAccountsArchive"
)

// Document field names of a user account record.
const (
	FieldUID         = "uid"
	FieldEmail       = "email"
	FieldFirstName   = "firstName"
	FieldLastName    = "lastName"
	FieldIsActive    = "isActive"
	FieldUserProfile = "userProfile"
	FieldPhoto       = "photo"
	FieldCreatedAt   = "createdAt"
	FieldLastLogin   = "lastLogin"
	FieldDeletedAt   = "deletedAt"
	FieldArchivedAt  = "archivedAt"
)

// Sentinel marks a field value the store resolves at write time.
type Sentinel string

// ServerTimestamp asks the store to stamp the field with its own clock.
const ServerTimestamp Sentinel = "REQUEST_TIME"

// DocRef is a slash separated document path such as "usersProfiles/profileUser".
type DocRef string

// Valid reports whether the path names a document: an even, non-zero number of non-empty segments.
func (r DocRef) Valid() bool {
	if r == "" {
		return false
	}
	parts := strings.Split(string(r), "/")
	if len(parts)%2 != 0 {
		return false
	}
	for _, p := range parts {
		if p == "" {
			return false
		}
	}
	return true
}

// Fields is a partial document. Values may be Sentinel or DocRef in addition to plain values.
type Fields map[string]any

// Record is the persisted user account document.
type Record struct {
	UID         string
	Email       string
	FirstName   string
	LastName    string
	IsActive    bool
	UserProfile DocRef
	Photo       string
	CreatedAt   time.Time
	LastLogin   time.Time
	DeletedAt   *time.Time
}

// DeleteOutcome tells how a removal request ended. AlreadyAbsent is an expected outcome, not a failure.
type DeleteOutcome string

const (
	OutcomeRemoved       DeleteOutcome = "removed"
	OutcomeArchived      DeleteOutcome = "archived"
	OutcomeSoftDeleted   DeleteOutcome = "soft_deleted"
	OutcomeAlreadyAbsent DeleteOutcome = "already_absent"

	// OutcomeAlreadySoftDeleted means deletedAt was already set; the original stamp is kept.
	OutcomeAlreadySoftDeleted DeleteOutcome = "already_soft_deleted"
)

// ErrNotFound indicates the requested account document does not exist.
var ErrNotFound = errors.New("account not found")

// ErrEmptyUID indicates an operation was attempted without a document key.
var ErrEmptyUID = errors.New("uid is required")

// Store is the document store holding one record per provider user, keyed by uid.
//
// MergeUpsert is a set-if-absent merge: it creates the document when missing and otherwise writes
// only the fields the document does not already carry. Existing values are never overwritten,
// including under concurrent or duplicate calls for the same uid.
type Store interface {
	MergeUpsert(ctx context.Context, uid string, fields Fields) error
	Delete(ctx context.Context, uid string) (DeleteOutcome, error)
	Archive(ctx context.Context, uid string) (DeleteOutcome, error)
	MarkDeleted(ctx context.Context, uid string) (DeleteOutcome, error)
	Get(ctx context.Context, uid string) (Record, error)
}

// Clock delivers the current time; extracted for deterministic testing.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

// NewSystemClock returns a Clock implementation backed by time.Now.
func NewSystemClock() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}
