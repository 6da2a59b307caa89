package story

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Common errors
var (
	ErrNotFound    = errors.New("story not found")
	ErrInvalidID   = errors.New("invalid story ID")
	ErrStoreClosed = errors.New("story store is closed")
	ErrUnavailable = errors.New("story storage unavailable")
)

// Store defines the interface for the local story cache engine.
//
// Every write that updates an existing key keeps the stored IsFavorite value;
// the incoming value only counts for keys that are new.
type Store interface {
	// GetAll returns every record in storage order.
	GetAll(ctx context.Context) ([]Record, error)

	// Get retrieves a single record by ID.
	Get(ctx context.Context, id string) (Record, error)

	// Put upserts a record and returns it as stored.
	Put(ctx context.Context, record Record) (Record, error)

	// PutAll upserts a batch in a single transaction. Either every record is
	// written or none is.
	PutAll(ctx context.Context, records []Record) ([]Record, error)

	// Delete removes a record. Deleting a missing ID is not an error.
	Delete(ctx context.Context, id string) error

	// ToggleFavorite flips IsFavorite and returns the new value.
	ToggleFavorite(ctx context.Context, id string) (bool, error)

	// SetFavorite sets IsFavorite to an explicit value.
	SetFavorite(ctx context.Context, id string, favorite bool) error

	// Count returns the number of cached records.
	Count(ctx context.Context) (int64, error)

	// Clear removes all records.
	Clear(ctx context.Context) error

	// Close closes the store and releases resources.
	Close() error
}

// Predicate selects records in a scan.
type Predicate func(Record) bool

// Favorites selects records the user marked as favorite.
func Favorites(r Record) bool { return r.IsFavorite }

// PendingUploads selects records waiting to be submitted.
func PendingUploads(r Record) bool { return r.IsPendingUpload }

// Matching selects records whose name or description contains query,
// ignoring case and Unicode normalization form. The returned predicate is not
// safe for concurrent use.
func Matching(query string) Predicate {
	fold := cases.Fold()
	key := func(s string) string {
		return fold.String(norm.NFC.String(s))
	}
	q := key(query)
	return func(r Record) bool {
		return strings.Contains(key(r.Name), q) ||
			strings.Contains(key(r.Description), q)
	}
}

// Filter returns the records accepted by pred, keeping their order.
func Filter(records []Record, pred Predicate) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if pred(r) {
			out = append(out, r)
		}
	}
	return out
}
