package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/artpar/storyshare/internal/database"
	"github.com/artpar/storyshare/internal/story"
)

// Store implements story.Store using SQLite.
type Store struct {
	mu     sync.RWMutex
	db     *sql.DB
	closed bool
	shared bool
}

// New creates a new SQLite-based story store at dbPath.
func New(dbPath string) (*Store, error) {
	db, err := database.Open(dbPath)
	if err != nil {
		return nil, err
	}

	store := &Store{db: db}
	if err := store.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize story database: %w", err)
	}

	return store, nil
}

// NewWithDB creates a store using an existing database connection.
// Close leaves the shared connection open.
func NewWithDB(db *sql.DB) (*Store, error) {
	store := &Store{db: db, shared: true}
	if err := store.initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize story tables: %w", err)
	}
	return store, nil
}

// NewInMemory creates a new in-memory SQLite store (useful for testing).
func NewInMemory() (*Store, error) {
	db, err := database.OpenInMemory()
	if err != nil {
		return nil, err
	}

	store := &Store{db: db}
	if err := store.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return store, nil
}

// initialize creates the stories table. The schema is fixed; there are no
// migrations.
func (s *Store) initialize() error {
	schema := `
		CREATE TABLE IF NOT EXISTS stories (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			photo_url TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL DEFAULT '',
			lat REAL,
			lon REAL,
			is_favorite INTEGER NOT NULL DEFAULT 0,
			is_pending_upload INTEGER NOT NULL DEFAULT 0
		);

		CREATE INDEX IF NOT EXISTS idx_stories_pending ON stories(is_pending_upload);
	`

	_, err := s.db.Exec(schema)
	return err
}

const selectColumns = `id, name, description, photo_url, created_at, lat, lon, is_favorite, is_pending_upload`

// GetAll returns every record in storage order.
func (s *Store) GetAll(ctx context.Context) ([]story.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, story.ErrStoreClosed
	}

	rows, err := s.db.QueryContext(ctx, "SELECT "+selectColumns+" FROM stories ORDER BY rowid")
	if err != nil {
		return nil, fmt.Errorf("failed to list stories: %w", err)
	}
	defer rows.Close()

	records := []story.Record{}
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan story: %w", err)
		}
		records = append(records, record)
	}

	return records, rows.Err()
}

// Get retrieves a single record by ID.
func (s *Store) Get(ctx context.Context, id string) (story.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return story.Record{}, story.ErrStoreClosed
	}
	if id == "" {
		return story.Record{}, story.ErrInvalidID
	}

	row := s.db.QueryRowContext(ctx, "SELECT "+selectColumns+" FROM stories WHERE id = ?", id)
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return story.Record{}, story.ErrNotFound
	}
	if err != nil {
		return story.Record{}, fmt.Errorf("failed to get story: %w", err)
	}

	return record, nil
}

// Put upserts a record, keeping the stored favorite flag of an existing key.
func (s *Store) Put(ctx context.Context, record story.Record) (story.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return story.Record{}, story.ErrStoreClosed
	}

	var stored story.Record
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		stored, err = putTx(ctx, tx, record)
		return err
	})
	if err != nil {
		return story.Record{}, err
	}

	return stored, nil
}

// PutAll upserts a batch in one transaction.
func (s *Store) PutAll(ctx context.Context, records []story.Record) ([]story.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, story.ErrStoreClosed
	}

	stored := make([]story.Record, 0, len(records))
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, record := range records {
			r, err := putTx(ctx, tx, record)
			if err != nil {
				return err
			}
			stored = append(stored, r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return stored, nil
}

// Delete removes a record by ID.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return story.ErrStoreClosed
	}

	if _, err := s.db.ExecContext(ctx, "DELETE FROM stories WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete story: %w", err)
	}

	return nil
}

// ToggleFavorite flips the favorite flag and returns the new value.
func (s *Store) ToggleFavorite(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false, story.ErrStoreClosed
	}

	var value bool
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		current, err := favoriteTx(ctx, tx, id)
		if err != nil {
			return err
		}
		value = !current
		return setFavoriteTx(ctx, tx, id, value)
	})
	if err != nil {
		return false, err
	}

	return value, nil
}

// SetFavorite sets the favorite flag of an existing record.
func (s *Store) SetFavorite(ctx context.Context, id string, favorite bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return story.ErrStoreClosed
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := favoriteTx(ctx, tx, id); err != nil {
			return err
		}
		return setFavoriteTx(ctx, tx, id, favorite)
	})
}

// Count returns the number of cached records.
func (s *Store) Count(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, story.ErrStoreClosed
	}

	var count int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM stories").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count stories: %w", err)
	}

	return count, nil
}

// Clear removes all records.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return story.ErrStoreClosed
	}

	if _, err := s.db.ExecContext(ctx, "DELETE FROM stories"); err != nil {
		return fmt.Errorf("failed to clear stories: %w", err)
	}

	return nil
}

// Close closes the store.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	if s.shared {
		return nil
	}
	return s.db.Close()
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func putTx(ctx context.Context, tx *sql.Tx, record story.Record) (story.Record, error) {
	if record.ID == "" {
		return story.Record{}, story.ErrInvalidID
	}

	existing, err := favoriteTx(ctx, tx, record.ID)
	switch {
	case err == nil:
		record.IsFavorite = existing
	case !errors.Is(err, story.ErrNotFound):
		return story.Record{}, err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO stories (
			id, name, description, photo_url, created_at, lat, lon, is_favorite, is_pending_upload
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			photo_url = excluded.photo_url,
			created_at = excluded.created_at,
			lat = excluded.lat,
			lon = excluded.lon,
			is_favorite = excluded.is_favorite,
			is_pending_upload = excluded.is_pending_upload
	`,
		record.ID, record.Name, record.Description, record.PhotoURL,
		formatTime(record.CreatedAt), nullCoord(record.Lat), nullCoord(record.Lon),
		record.IsFavorite, record.IsPendingUpload,
	)
	if err != nil {
		return story.Record{}, fmt.Errorf("failed to save story %s: %w", record.ID, err)
	}

	return record, nil
}

func favoriteTx(ctx context.Context, tx *sql.Tx, id string) (bool, error) {
	var favorite bool
	err := tx.QueryRowContext(ctx, "SELECT is_favorite FROM stories WHERE id = ?", id).Scan(&favorite)
	if errors.Is(err, sql.ErrNoRows) {
		return false, story.ErrNotFound
	}
	if err != nil {
		return false, fmt.Errorf("failed to read favorite status: %w", err)
	}
	return favorite, nil
}

func setFavoriteTx(ctx context.Context, tx *sql.Tx, id string, favorite bool) error {
	if _, err := tx.ExecContext(ctx, "UPDATE stories SET is_favorite = ? WHERE id = ?", favorite, id); err != nil {
		return fmt.Errorf("failed to update favorite status: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (story.Record, error) {
	var (
		record    story.Record
		createdAt string
		lat, lon  sql.NullFloat64
	)

	err := row.Scan(
		&record.ID, &record.Name, &record.Description, &record.PhotoURL,
		&createdAt, &lat, &lon, &record.IsFavorite, &record.IsPendingUpload,
	)
	if err != nil {
		return story.Record{}, err
	}

	record.CreatedAt = parseTime(createdAt)
	if lat.Valid {
		record.Lat = story.Coord(lat.Float64)
	}
	if lon.Valid {
		record.Lon = story.Coord(lon.Float64)
	}

	return record, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullCoord(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
