package store

import (
	"context"
	"errors"

	"content-calendar/internal/model"

	"github.com/google/uuid"
)

var (
	ErrNotFound     = errors.New("entry not found")
	ErrDuplicateKey = errors.New("keyword already exists")
	ErrConflict     = errors.New("entry changed concurrently, giving up")
)

// Store is the record store behind the calendar.
//
// ConditionalUpdate applies patch to every entry in ids whose status is in
// expected at write time and returns the updated entries in ids order.
// Entries that are missing or in another status are skipped without error.
type Store interface {
	Find(ctx context.Context, q Query) ([]model.Entry, int, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Entry, error)
	Insert(ctx context.Context, entry *model.Entry) error
	ConditionalUpdate(ctx context.Context, ids []uuid.UUID, expected []model.Status, patch model.Patch) ([]model.Entry, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Close()
}

func statusIn(s model.Status, set []model.Status) bool {
	for _, candidate := range set {
		if candidate == s {
			return true
		}
	}
	return false
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
