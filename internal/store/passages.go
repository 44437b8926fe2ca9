package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	sifterrors "github.com/docsift/docsift/internal/errors"
)

// SQLitePassageStore implements PassageStore on SQLite.
// WAL mode allows a reader (search) to coexist with a writer (ingest)
// across processes.
type SQLitePassageStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool
}

// Verify interface implementation at compile time
var _ PassageStore = (*SQLitePassageStore)(nil)

// NewSQLitePassageStore opens (or creates) a passage store.
// If path is empty, creates an in-memory store for testing.
func NewSQLitePassageStore(path string) (*SQLitePassageStore, error) {
	var dsn string
	if path == "" {
		dsn = ":memory:"
	} else {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single writer to prevent lock contention
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// WAL mode must be set via PRAGMA for modernc.org/sqlite
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -16384", // 16MB cache (negative = KB)
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	s := &SQLitePassageStore{
		db:   db,
		path: path,
	}

	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return s, nil
}

// initSchema creates the passages and state tables.
func (s *SQLitePassageStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);

	-- seq preserves insertion order for All() and fusion tie-breaks
	CREATE TABLE IF NOT EXISTS passages (
		seq        INTEGER PRIMARY KEY AUTOINCREMENT,
		id         TEXT NOT NULL UNIQUE,
		text       TEXT NOT NULL,
		source     TEXT NOT NULL,
		page       INTEGER NOT NULL,
		created_at TIMESTAMP NOT NULL
	);

	-- Key-value state: fingerprint, embedding dimension/model
	CREATE TABLE IF NOT EXISTS state (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`

	_, err := s.db.Exec(schema)
	return err
}

// validatePassage checks the fields required at the ingestion boundary.
func validatePassage(p *Passage) error {
	if p == nil {
		return sifterrors.New(sifterrors.ErrCodeInvalidPassage, "passage is nil", nil)
	}
	if p.ID == "" {
		return sifterrors.New(sifterrors.ErrCodeInvalidPassage, "passage missing id", nil)
	}
	if p.Text == "" {
		return sifterrors.New(sifterrors.ErrCodeInvalidPassage,
			fmt.Sprintf("passage %s missing text", p.ID), nil)
	}
	if p.Source == "" {
		return sifterrors.New(sifterrors.ErrCodeInvalidPassage,
			fmt.Sprintf("passage %s missing source", p.ID), nil)
	}
	if p.Page < 0 {
		return sifterrors.New(sifterrors.ErrCodeInvalidPassage,
			fmt.Sprintf("passage %s has negative page %d", p.ID, p.Page), nil)
	}
	return nil
}

// Add appends passages, ignoring IDs already present, and advances the
// store fingerprint once per inserted passage. Returns the passages
// that were actually inserted, in input order.
func (s *SQLitePassageStore) Add(ctx context.Context, passages []*Passage) ([]*Passage, error) {
	if len(passages) == 0 {
		return nil, nil
	}

	for _, p := range passages {
		if err := validatePassage(p); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	fingerprint, err := getStateTx(ctx, tx, StateKeyFingerprint)
	if err != nil {
		return nil, err
	}

	insert, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO passages (id, text, source, page, created_at)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer func() { _ = insert.Close() }()

	var inserted []*Passage
	for _, p := range passages {
		createdAt := p.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}

		res, err := insert.ExecContext(ctx, p.ID, p.Text, p.Source, p.Page, createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to insert passage %s: %w", p.ID, err)
		}

		rows, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("failed to check insert result: %w", err)
		}
		if rows == 0 {
			// Duplicate ID, ingestion is idempotent
			continue
		}

		fingerprint = advanceFingerprint(fingerprint, p)
		inserted = append(inserted, p)
	}

	if len(inserted) > 0 {
		if err := setStateTx(ctx, tx, StateKeyFingerprint, fingerprint); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}

	return inserted, nil
}

// advanceFingerprint chains the store fingerprint with one passage.
// The chain is order-sensitive, so any insertion produces a new value.
func advanceFingerprint(prev string, p *Passage) string {
	textSum := sha256.Sum256([]byte(p.Text))

	h := sha256.New()
	h.Write([]byte(prev))
	h.Write([]byte(p.ID))
	h.Write(textSum[:])
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns a passage by ID, or nil if absent.
func (s *SQLitePassageStore) Get(ctx context.Context, id string) (*Passage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, text, source, page, created_at
		FROM passages WHERE id = ?`, id)

	p, err := scanPassage(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get passage %s: %w", id, err)
	}
	return p, nil
}

// GetBatch returns passages for the given IDs in the requested order,
// skipping IDs that are absent.
func (s *SQLitePassageStore) GetBatch(ctx context.Context, ids []string) ([]*Passage, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	// Build placeholders for the IN clause
	placeholders := make([]byte, 0, len(ids)*2)
	args := make([]any, 0, len(ids))
	for i, id := range ids {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
		args = append(args, id)
	}

	query := fmt.Sprintf(`
		SELECT id, text, source, page, created_at
		FROM passages WHERE id IN (%s)`, placeholders)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query passages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	byID := make(map[string]*Passage, len(ids))
	for rows.Next() {
		p, err := scanPassage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan passage: %w", err)
		}
		byID[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read passages: %w", err)
	}

	// Preserve requested order
	result := make([]*Passage, 0, len(byID))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			result = append(result, p)
		}
	}
	return result, nil
}

// All returns every passage in insertion order.
func (s *SQLitePassageStore) All(ctx context.Context) ([]*Passage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, text, source, page, created_at
		FROM passages ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("failed to query passages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []*Passage
	for rows.Next() {
		p, err := scanPassage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan passage: %w", err)
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read passages: %w", err)
	}

	return result, nil
}

// Count returns the number of stored passages.
func (s *SQLitePassageStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, fmt.Errorf("store is closed")
	}

	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM passages`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count passages: %w", err)
	}
	return count, nil
}

// Fingerprint returns the running content digest of the store.
// Empty string means the store has never had a passage.
func (s *SQLitePassageStore) Fingerprint(ctx context.Context) (string, error) {
	return s.GetState(ctx, StateKeyFingerprint)
}

// GetState returns a state value, or empty string if unset.
func (s *SQLitePassageStore) GetState(ctx context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return "", fmt.Errorf("store is closed")
	}

	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM state WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get state %s: %w", key, err)
	}
	return value, nil
}

// SetState stores a state value.
func (s *SQLitePassageStore) SetState(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO state (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set state %s: %w", key, err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLitePassageStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	return s.db.Close()
}

// rowScanner abstracts sql.Row and sql.Rows for scanPassage.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanPassage(row rowScanner) (*Passage, error) {
	var p Passage
	if err := row.Scan(&p.ID, &p.Text, &p.Source, &p.Page, &p.CreatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func getStateTx(ctx context.Context, tx *sql.Tx, key string) (string, error) {
	var value string
	err := tx.QueryRowContext(ctx, `SELECT value FROM state WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get state %s: %w", key, err)
	}
	return value, nil
}

func setStateTx(ctx context.Context, tx *sql.Tx, key, value string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO state (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set state %s: %w", key, err)
	}
	return nil
}
