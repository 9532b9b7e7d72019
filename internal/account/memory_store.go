package account

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore keeps documents in process memory. It honours the same set-if-absent contract as the
// Firestore store and is intended for local development and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	clock   Clock
	docs    map[string]map[string]any
	archive map[string]map[string]any
}

// NewMemoryStore returns an empty MemoryStore. A nil clock falls back to the system clock.
func NewMemoryStore(clock Clock) *MemoryStore {
	if clock == nil {
		clock = NewSystemClock()
	}
	return &MemoryStore{
		clock:   clock,
		docs:    make(map[string]map[string]any),
		archive: make(map[string]map[string]any),
	}
}

func (s *MemoryStore) MergeUpsert(_ context.Context, uid string, fields Fields) error {
	if uid == "" {
		return ErrEmptyUID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	doc, ok := s.docs[uid]
	if !ok {
		doc = make(map[string]any, len(fields))
		s.docs[uid] = doc
	}
	for k, v := range fields {
		if _, present := doc[k]; present {
			continue
		}
		doc[k] = resolve(v, now)
	}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, uid string) (DeleteOutcome, error) {
	if uid == "" {
		return "", ErrEmptyUID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[uid]; !ok {
		return OutcomeAlreadyAbsent, nil
	}
	delete(s.docs, uid)
	return OutcomeRemoved, nil
}

func (s *MemoryStore) Archive(_ context.Context, uid string) (DeleteOutcome, error) {
	if uid == "" {
		return "", ErrEmptyUID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[uid]
	if !ok {
		return OutcomeAlreadyAbsent, nil
	}
	doc[FieldArchivedAt] = s.clock.Now()
	s.archive[uid] = doc
	delete(s.docs, uid)
	return OutcomeArchived, nil
}

func (s *MemoryStore) MarkDeleted(_ context.Context, uid string) (DeleteOutcome, error) {
	if uid == "" {
		return "", ErrEmptyUID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[uid]
	if !ok {
		return OutcomeAlreadyAbsent, nil
	}
	if _, deleted := doc[FieldDeletedAt]; deleted {
		return OutcomeAlreadySoftDeleted, nil
	}
	doc[FieldIsActive] = false
	doc[FieldDeletedAt] = s.clock.Now()
	return OutcomeSoftDeleted, nil
}

func (s *MemoryStore) Get(_ context.Context, uid string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[uid]
	if !ok {
		return Record{}, ErrNotFound
	}
	return recordFromMap(doc)
}

// Put writes fields verbatim, overwriting existing values. It stands in for external editors such as a
// back-office tool.
func (s *MemoryStore) Put(uid string, fields Fields) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[uid]
	if !ok {
		doc = make(map[string]any, len(fields))
		s.docs[uid] = doc
	}
	now := s.clock.Now()
	for k, v := range fields {
		doc[k] = resolve(v, now)
	}
}

// Archived returns the archived copy of uid, if any.
func (s *MemoryStore) Archived(uid string) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.archive[uid]
	if !ok {
		return Record{}, false
	}
	rec, err := recordFromMap(doc)
	if err != nil {
		return Record{}, false
	}
	return rec, true
}

func resolve(v any, now time.Time) any {
	if sentinel, ok := v.(Sentinel); ok && sentinel == ServerTimestamp {
		return now
	}
	return v
}

func recordFromMap(doc map[string]any) (Record, error) {
	var rec Record
	var ok bool
	for k, v := range doc {
		switch k {
		case FieldUID:
			rec.UID, ok = v.(string)
		case FieldEmail:
			rec.Email, ok = v.(string)
		case FieldFirstName:
			rec.FirstName, ok = v.(string)
		case FieldLastName:
			rec.LastName, ok = v.(string)
		case FieldIsActive:
			rec.IsActive, ok = v.(bool)
		case FieldUserProfile:
			rec.UserProfile, ok = v.(DocRef)
		case FieldPhoto:
			rec.Photo, ok = v.(string)
		case FieldCreatedAt:
			rec.CreatedAt, ok = v.(time.Time)
		case FieldLastLogin:
			rec.LastLogin, ok = v.(time.Time)
		case FieldDeletedAt:
			var ts time.Time
			ts, ok = v.(time.Time)
			rec.DeletedAt = &ts
		default:
			ok = true
		}
		if !ok {
			return Record{}, fmt.Errorf("field %s has unexpected type %T", k, v)
		}
	}
	return rec, nil
}
