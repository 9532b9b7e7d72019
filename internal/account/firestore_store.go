package account

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreStore keeps account documents in a Cloud Firestore collection.
type FirestoreStore struct {
	client     *firestore.Client
	collection string
	archive    string
}

// NewFirestoreStore creates a store over collection; archived documents go to archiveCollection.
func NewFirestoreStore(client *firestore.Client, collection, archiveCollection string) *FirestoreStore {
	if collection == "" {
		collection = DefaultCollection
	}
	if archiveCollection == "" {
		archiveCollection = DefaultArchiveCollection
	}
	return &FirestoreStore{client: client, collection: collection, archive: archiveCollection}
}

type firestoreRecord struct {
	UID         string                 `firestore:"uid"`
	Email       string                 `firestore:"email"`
	FirstName   string                 `firestore:"firstName"`
	LastName    string                 `firestore:"lastName"`
	IsActive    bool                   `firestore:"isActive"`
	UserProfile *firestore.DocumentRef `firestore:"userProfile"`
	Photo       string                 `firestore:"photo"`
	CreatedAt   time.Time              `firestore:"createdAt"`
	LastLogin   time.Time              `firestore:"lastLogin"`
	DeletedAt   *time.Time             `firestore:"deletedAt"`
}

func (s *FirestoreStore) doc(uid string) *firestore.DocumentRef {
	return s.client.Collection(s.collection).Doc(uid)
}

// MergeUpsert runs in a transaction so the presence check and the write see the same snapshot;
// Firestore retries the transaction when a concurrent writer touches the document.
func (s *FirestoreStore) MergeUpsert(ctx context.Context, uid string, fields Fields) error {
	if uid == "" {
		return ErrEmptyUID
	}
	data, err := s.encode(fields)
	if err != nil {
		return err
	}

	docRef := s.doc(uid)
	err = s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(docRef)
		if status.Code(err) == codes.NotFound {
			return tx.Create(docRef, data)
		}
		if err != nil {
			return err
		}

		existing := snap.Data()
		missing := make(map[string]any, len(data))
		for k, v := range data {
			if _, present := existing[k]; !present {
				missing[k] = v
			}
		}
		if len(missing) == 0 {
			return nil
		}
		return tx.Set(docRef, missing, firestore.MergeAll)
	})
	if err != nil {
		return fmt.Errorf("merge upsert %s/%s: %w", s.collection, uid, err)
	}
	return nil
}

func (s *FirestoreStore) Delete(ctx context.Context, uid string) (DeleteOutcome, error) {
	if uid == "" {
		return "", ErrEmptyUID
	}
	_, err := s.doc(uid).Delete(ctx, firestore.Exists)
	if status.Code(err) == codes.NotFound {
		return OutcomeAlreadyAbsent, nil
	}
	if err != nil {
		return "", fmt.Errorf("delete %s/%s: %w", s.collection, uid, err)
	}
	return OutcomeRemoved, nil
}

func (s *FirestoreStore) Archive(ctx context.Context, uid string) (DeleteOutcome, error) {
	if uid == "" {
		return "", ErrEmptyUID
	}

	docRef := s.doc(uid)
	archiveRef := s.client.Collection(s.archive).Doc(uid)
	var outcome DeleteOutcome
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(docRef)
		if status.Code(err) == codes.NotFound {
			outcome = OutcomeAlreadyAbsent
			return nil
		}
		if err != nil {
			return err
		}

		data := snap.Data()
		data[FieldArchivedAt] = firestore.ServerTimestamp
		if err := tx.Set(archiveRef, data); err != nil {
			return err
		}
		outcome = OutcomeArchived
		return tx.Delete(docRef)
	})
	if err != nil {
		return "", fmt.Errorf("archive %s/%s: %w", s.collection, uid, err)
	}
	return outcome, nil
}

// MarkDeleted keeps the first deletedAt stamp; redeliveries report OutcomeAlreadySoftDeleted.
func (s *FirestoreStore) MarkDeleted(ctx context.Context, uid string) (DeleteOutcome, error) {
	if uid == "" {
		return "", ErrEmptyUID
	}

	docRef := s.doc(uid)
	var outcome DeleteOutcome
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(docRef)
		if status.Code(err) == codes.NotFound {
			outcome = OutcomeAlreadyAbsent
			return nil
		}
		if err != nil {
			return err
		}

		if _, deleted := snap.Data()[FieldDeletedAt]; deleted {
			outcome = OutcomeAlreadySoftDeleted
			return nil
		}
		outcome = OutcomeSoftDeleted
		return tx.Update(docRef, []firestore.Update{
			{Path: FieldIsActive, Value: false},
			{Path: FieldDeletedAt, Value: firestore.ServerTimestamp},
		})
	})
	if err != nil {
		return "", fmt.Errorf("mark deleted %s/%s: %w", s.collection, uid, err)
	}
	return outcome, nil
}

func (s *FirestoreStore) Get(ctx context.Context, uid string) (Record, error) {
	if uid == "" {
		return Record{}, ErrEmptyUID
	}
	snap, err := s.doc(uid).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, err
	}

	var raw firestoreRecord
	if err := snap.DataTo(&raw); err != nil {
		return Record{}, fmt.Errorf("unmarshal account: %w", err)
	}

	rec := Record{
		UID:       raw.UID,
		Email:     raw.Email,
		FirstName: raw.FirstName,
		LastName:  raw.LastName,
		IsActive:  raw.IsActive,
		Photo:     raw.Photo,
		CreatedAt: raw.CreatedAt,
		LastLogin: raw.LastLogin,
		DeletedAt: raw.DeletedAt,
	}
	if raw.UserProfile != nil {
		rec.UserProfile = DocRef(relativePath(raw.UserProfile))
	}
	return rec, nil
}

// encode swaps domain sentinels and references for their Firestore equivalents.
func (s *FirestoreStore) encode(fields Fields) (map[string]any, error) {
	data := make(map[string]any, len(fields))
	for k, v := range fields {
		switch tv := v.(type) {
		case Sentinel:
			if tv != ServerTimestamp {
				return nil, fmt.Errorf("field %s: unknown sentinel %q", k, tv)
			}
			data[k] = firestore.ServerTimestamp
		case DocRef:
			if !tv.Valid() {
				return nil, fmt.Errorf("field %s: invalid document reference %q", k, tv)
			}
			data[k] = s.client.Doc(string(tv))
		default:
			data[k] = v
		}
	}
	return data, nil
}

// relativePath rebuilds "collection/doc[/collection/doc...]" from a reference.
func relativePath(ref *firestore.DocumentRef) string {
	path := ref.ID
	for parent := ref.Parent; parent != nil; {
		path = parent.ID + "/" + path
		if parent.Parent == nil {
			break
		}
		path = parent.Parent.ID + "/" + path
		parent = parent.Parent.Parent
	}
	return path
}
