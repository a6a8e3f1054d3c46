// Package sqlite provides a SQLite-backed contract document backend.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"github.com/gezibash/arc-contract/internal/contractstore/physical"
	"github.com/gezibash/arc-contract/internal/storage"
)

const (
	KeyPath        = "path"
	KeyJournalMode = "journal_mode"
	KeyBusyTimeout = "busy_timeout"
)

func init() {
	physical.Register("sqlite", NewFactory, Defaults)
}

// Defaults returns the default configuration for the SQLite backend.
func Defaults() map[string]string {
	return map[string]string{
		KeyPath:        "~/.arc-contract/contracts.db",
		KeyJournalMode: "wal",
		KeyBusyTimeout: "5000",
	}
}

const schema = `
CREATE TABLE IF NOT EXISTS contracts (
    id           TEXT PRIMARY KEY,
    version      INTEGER NOT NULL,
    status       TEXT NOT NULL,
    data         BLOB NOT NULL,
    members      TEXT NOT NULL DEFAULT '[]',
    participants TEXT NOT NULL DEFAULT '[]',
    offerings    TEXT NOT NULL DEFAULT '[]',
    updated_at   INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS contract_offerings (
    contract_id TEXT NOT NULL,
    offering    TEXT NOT NULL,
    PRIMARY KEY (contract_id, offering),
    FOREIGN KEY (contract_id) REFERENCES contracts(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_contracts_status ON contracts(status);
CREATE INDEX IF NOT EXISTS idx_contract_offerings_offering ON contract_offerings(offering);
`

// NewFactory opens a SQLite backend from a configuration map.
func NewFactory(_ context.Context, config storage.Config) (physical.Backend, error) {
	path := config.Path(KeyPath, "")
	if path == "" {
		return nil, storage.NewConfigError("sqlite", KeyPath, "cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, storage.NewConfigError("sqlite", KeyPath, "failed to create directory").WithCause(err)
	}

	journalMode := config.String(KeyJournalMode, "wal")
	busyTimeout, err := config.Int(KeyBusyTimeout, 5000)
	if err != nil {
		return nil, storage.Field("sqlite", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(%s)&_pragma=busy_timeout(%d)&_pragma=foreign_keys(1)",
		path, journalMode, busyTimeout)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, storage.NewConfigError("sqlite", KeyPath, "failed to open database").WithCause(err)
	}

	// One connection: writers are serialized.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, storage.NewConfigError("sqlite", KeyPath, "failed to initialize schema").WithCause(err)
	}

	slog.Info("sqlite contractstore initialized", "path", path, "journal_mode", journalMode)
	return NewWithDB(db), nil
}

// Backend is a SQLite implementation of physical.Backend.
type Backend struct {
	db     *sql.DB
	closed atomic.Bool
}

// NewWithDB wraps an open database whose schema is already applied.
func NewWithDB(db *sql.DB) *Backend {
	return &Backend{db: db}
}

const selectColumns = `SELECT id, version, status, data, members, participants, offerings, updated_at FROM contracts`

type scanner interface {
	Scan(dest ...any) error
}

func scanDoc(s scanner) (*physical.Document, error) {
	var doc physical.Document
	var members, participants, offerings string
	var updated int64
	if err := s.Scan(&doc.ID, &doc.Version, &doc.Index.Status, &doc.Data, &members, &participants, &offerings, &updated); err != nil {
		return nil, err
	}
	for _, f := range []struct {
		raw string
		dst *[]string
	}{
		{members, &doc.Index.Members},
		{participants, &doc.Index.Participants},
		{offerings, &doc.Index.Offerings},
	} {
		if err := json.Unmarshal([]byte(f.raw), f.dst); err != nil {
			return nil, fmt.Errorf("decode index of %s: %w", doc.ID, err)
		}
	}
	doc.UpdatedAt = time.Unix(0, updated).UTC()
	return &doc, nil
}

func encodeList(v []string) string {
	if v == nil {
		v = []string{}
	}
	b, _ := json.Marshal(v)
	return string(b)
}

// Get returns the document stored under id.
func (b *Backend) Get(ctx context.Context, id string) (*physical.Document, error) {
	if b.closed.Load() {
		return nil, physical.ErrClosed
	}

	doc, err := scanDoc(b.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, physical.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite get: %w", err)
	}
	return doc, nil
}

// Put writes doc if the stored version equals expectedVersion.
func (b *Backend) Put(ctx context.Context, doc *physical.Document, expectedVersion int64) error {
	if b.closed.Load() {
		return physical.ErrClosed
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite put: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	next := expectedVersion + 1
	args := []any{
		next, doc.Index.Status, doc.Data,
		encodeList(doc.Index.Members), encodeList(doc.Index.Participants), encodeList(doc.Index.Offerings),
		doc.UpdatedAt.UnixNano(),
	}

	var res sql.Result
	if expectedVersion == 0 {
		res, err = tx.ExecContext(ctx,
			`INSERT INTO contracts (version, status, data, members, participants, offerings, updated_at, id)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?) ON CONFLICT(id) DO NOTHING`,
			append(args, doc.ID)...)
	} else {
		res, err = tx.ExecContext(ctx,
			`UPDATE contracts SET version = ?, status = ?, data = ?, members = ?, participants = ?, offerings = ?, updated_at = ?
			 WHERE id = ? AND version = ?`,
			append(args, doc.ID, expectedVersion)...)
	}
	if err != nil {
		return fmt.Errorf("sqlite put: write: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("sqlite put: rows affected: %w", err)
	} else if n == 0 {
		return physical.ErrVersionConflict
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM contract_offerings WHERE contract_id = ?`, doc.ID); err != nil {
		return fmt.Errorf("sqlite put: clear offerings: %w", err)
	}
	for _, o := range doc.Index.Offerings {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO contract_offerings (contract_id, offering) VALUES (?, ?)`, doc.ID, o,
		); err != nil {
			return fmt.Errorf("sqlite put: insert offering: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite put: commit: %w", err)
	}
	doc.Version = next
	return nil
}

// Delete removes the document stored under id.
func (b *Backend) Delete(ctx context.Context, id string) error {
	if b.closed.Load() {
		return physical.ErrClosed
	}

	res, err := b.db.ExecContext(ctx, `DELETE FROM contracts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite delete: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return physical.ErrNotFound
	}
	return nil
}

// Find pushes status and offering filters into SQL and applies the
// participant filter on the decoded index.
func (b *Backend) Find(ctx context.Context, f *physical.Filter) ([]*physical.Document, error) {
	if b.closed.Load() {
		return nil, physical.ErrClosed
	}

	var (
		where []string
		args  []any
	)
	if f != nil {
		if f.Status != "" {
			where = append(where, "status = ?")
			args = append(args, f.Status)
		}
		if f.ExcludeStatus != "" {
			where = append(where, "status <> ?")
			args = append(args, f.ExcludeStatus)
		}
		if f.Offering != "" {
			where = append(where, "id IN (SELECT contract_id FROM contract_offerings WHERE offering = ?)")
			args = append(args, f.Offering)
		}
	}
	query := selectColumns
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id"

	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite find: %w", err)
	}
	defer rows.Close()

	var out []*physical.Document
	for rows.Next() {
		doc, err := scanDoc(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite find: scan: %w", err)
		}
		if physical.Matches(doc, f) {
			out = append(out, doc)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite find: %w", err)
	}
	return physical.Limit(out, f), nil
}

// Stats counts stored contracts.
func (b *Backend) Stats(ctx context.Context) (*physical.Stats, error) {
	if b.closed.Load() {
		return nil, physical.ErrClosed
	}

	var n int64
	if err := b.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM contracts`).Scan(&n); err != nil {
		return nil, fmt.Errorf("sqlite stats: %w", err)
	}
	return &physical.Stats{Documents: n, BackendType: "sqlite"}, nil
}

// Close closes the database. Subsequent calls are no-ops.
func (b *Backend) Close() error {
	if b.closed.Swap(true) {
		return nil
	}
	return b.db.Close()
}
