// Package savestore persists codec-encoded game data in SQLite.
package savestore

import (
	"context"
	"database/sql"
	_ "embed"
	stderrors "errors"
	"path/filepath"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/wippyai/wasm-bridge/codec"
	"github.com/wippyai/wasm-bridge/errors"
)

//go:embed schema.sql
var schema string

// Entry describes one saved value.
type Entry struct {
	Key       string
	TypeName  string
	Universe  string
	Data      []byte
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store keeps saved values keyed by name.
type Store struct {
	db    *sql.DB
	codec *codec.Codec
	now   func() time.Time
}

// Open opens the database at path and applies the schema. ":memory:" opens a
// private in-memory database.
func Open(path string, c *codec.Codec) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.InvalidInput(errors.PhaseStore, "storage path is required")
	}
	if c == nil {
		c = codec.New()
	}
	dsn := path
	if path != ":memory:" {
		dsn = filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseStore, errors.KindInvalidState, err, "open sqlite db")
	}
	// one connection keeps an in-memory database alive and shared
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(errors.PhaseStore, errors.KindInvalidState, err, "ping sqlite db")
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(errors.PhaseStore, errors.KindInvalidState, err, "apply schema")
	}
	return &Store{db: db, codec: c, now: time.Now}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Codec returns the codec values are encoded with.
func (s *Store) Codec() *codec.Codec { return s.codec }

func (s *Store) encode(v any) (typeName, universe string, data []byte, err error) {
	if v == nil {
		return "", "", nil, errors.InvalidInput(errors.PhaseStore, "cannot save nil")
	}
	md, _ := s.codec.Cache().ForValue(v)
	data, err = s.codec.Marshal(v)
	if err != nil {
		return "", "", nil, err
	}
	return md.Name, md.Universe.String(), data, nil
}

// Save writes v under key, replacing any previous value.
func (s *Store) Save(ctx context.Context, key string, v any) error {
	if err := checkKey(key); err != nil {
		return err
	}
	typeName, universe, data, err := s.encode(v)
	if err != nil {
		return err
	}
	now := s.now().UTC().UnixMilli()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO saves (key, type_name, universe, data, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
		   type_name = excluded.type_name,
		   universe = excluded.universe,
		   data = excluded.data,
		   updated_at = excluded.updated_at`,
		key, typeName, universe, string(data), now, now)
	if err != nil {
		return errors.Wrap(errors.PhaseStore, errors.KindInvalidState, err, "save "+key)
	}
	return nil
}

// Create writes v under key and fails with KindConflict if key exists.
func (s *Store) Create(ctx context.Context, key string, v any) error {
	if err := checkKey(key); err != nil {
		return err
	}
	typeName, universe, data, err := s.encode(v)
	if err != nil {
		return err
	}
	now := s.now().UTC().UnixMilli()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO saves (key, type_name, universe, data, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		key, typeName, universe, string(data), now, now)
	if isUniqueViolation(err) {
		return errors.New(errors.PhaseStore, errors.KindConflict).
			Path(key).
			Detail("key already exists").
			Build()
	}
	if err != nil {
		return errors.Wrap(errors.PhaseStore, errors.KindInvalidState, err, "create "+key)
	}
	return nil
}

// Entry returns the raw row stored under key.
func (s *Store) Entry(ctx context.Context, key string) (Entry, error) {
	var (
		e                Entry
		data             string
		created, updated int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT key, type_name, universe, data, created_at, updated_at FROM saves WHERE key = ?`, key).
		Scan(&e.Key, &e.TypeName, &e.Universe, &data, &created, &updated)
	if stderrors.Is(err, sql.ErrNoRows) {
		return e, errors.NotFound(errors.PhaseStore, "save", key)
	}
	if err != nil {
		return e, errors.Wrap(errors.PhaseStore, errors.KindInvalidState, err, "read "+key)
	}
	e.Data = []byte(data)
	e.CreatedAt = time.UnixMilli(created).UTC()
	e.UpdatedAt = time.UnixMilli(updated).UTC()
	return e, nil
}

// Load decodes the value stored under key into target.
func (s *Store) Load(ctx context.Context, key string, target any) error {
	e, err := s.Entry(ctx, key)
	if err != nil {
		return err
	}
	return s.codec.UnmarshalContext(ctx, e.Data, target)
}

// LoadType creates an instance of the stored type name through the codec's
// type source and decodes into it. Module-typed saves need a loaded module
// that still defines the type.
func (s *Store) LoadType(ctx context.Context, key string) (any, error) {
	e, err := s.Entry(ctx, key)
	if err != nil {
		return nil, err
	}
	return s.codec.UnmarshalType(ctx, e.Data, e.TypeName)
}

// Delete removes key. Deleting a missing key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM saves WHERE key = ?`, key); err != nil {
		return errors.Wrap(errors.PhaseStore, errors.KindInvalidState, err, "delete "+key)
	}
	return nil
}

// Keys lists saved keys in order. A non-empty prefix filters them.
func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key FROM saves WHERE substr(key, 1, length(?)) = ? ORDER BY key`, prefix, prefix)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseStore, errors.KindInvalidState, err, "list keys")
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, errors.Wrap(errors.PhaseStore, errors.KindInvalidState, err, "scan key")
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.PhaseStore, errors.KindInvalidState, err, "list keys")
	}
	return keys, nil
}

func checkKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return errors.InvalidInput(errors.PhaseStore, "key is required")
	}
	return nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if stderrors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}
