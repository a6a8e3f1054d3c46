// Package badger provides a BadgerDB-backed contract document backend.
package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"sync/atomic"

	"github.com/dgraph-io/badger/v4"

	"github.com/gezibash/arc-contract/internal/contractstore/physical"
	"github.com/gezibash/arc-contract/internal/storage"
)

const prefixContract = "contract/"

const (
	KeyPath             = "path"
	KeySyncWrites       = "sync_writes"
	KeyValueLogFileSize = "value_log_file_size"
	KeyMemTableSize     = "mem_table_size"
	KeyInMemory         = "in_memory"
)

func init() {
	physical.Register("badger", NewFactory, Defaults)
}

// Defaults returns the default configuration for the BadgerDB backend.
func Defaults() map[string]string {
	return map[string]string{
		KeyPath:             "~/.arc-contract/contracts",
		KeySyncWrites:       "true",
		KeyValueLogFileSize: strconv.FormatInt(256<<20, 10),
		KeyMemTableSize:     strconv.FormatInt(64<<20, 10),
		KeyInMemory:         "false",
	}
}

// NewFactory opens a BadgerDB backend from a configuration map.
func NewFactory(_ context.Context, config storage.Config) (physical.Backend, error) {
	inMemory, err := config.Bool(KeyInMemory, false)
	if err != nil {
		return nil, storage.Field("badger", err)
	}
	if inMemory {
		return newInMemory()
	}

	path := config.Path(KeyPath, "")
	if path == "" {
		return nil, storage.NewConfigError("badger", KeyPath, "cannot be empty")
	}
	if err := os.MkdirAll(path, 0o700); err != nil {
		return nil, storage.NewConfigError("badger", KeyPath, "failed to create directory").WithCause(err)
	}

	syncWrites, err := config.Bool(KeySyncWrites, true)
	if err != nil {
		return nil, storage.Field("badger", err)
	}
	valueLogFileSize, err := config.Int64(KeyValueLogFileSize, 256<<20)
	if err != nil {
		return nil, storage.Field("badger", err)
	}
	memTableSize, err := config.Int64(KeyMemTableSize, 64<<20)
	if err != nil {
		return nil, storage.Field("badger", err)
	}

	opts := badger.DefaultOptions(path).WithLogger(nil).WithSyncWrites(syncWrites)
	if valueLogFileSize > 0 {
		opts.ValueLogFileSize = valueLogFileSize
	}
	if memTableSize > 0 {
		opts.MemTableSize = memTableSize
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, storage.NewConfigError("badger", KeyPath, "failed to open database").WithCause(err)
	}

	slog.Info("badger contractstore initialized", "path", path, "sync_writes", syncWrites)
	return NewWithDB(db), nil
}

func newInMemory() (*Backend, error) {
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	if err != nil {
		return nil, storage.NewConfigError("badger", KeyInMemory, "failed to open in-memory database").WithCause(err)
	}
	slog.Info("badger contractstore initialized (in-memory)")
	return NewWithDB(db), nil
}

// Backend is a BadgerDB implementation of physical.Backend. Conditional
// writes rely on Badger's optimistic transactions: a concurrent commit that
// touched the same key makes the later one fail with badger.ErrConflict.
type Backend struct {
	db     *badger.DB
	closed atomic.Bool
}

// NewWithDB wraps an open BadgerDB instance. The backend owns db.
func NewWithDB(db *badger.DB) *Backend {
	return &Backend{db: db}
}

func key(id string) []byte { return []byte(prefixContract + id) }

func decode(item *badger.Item) (*physical.Document, error) {
	var doc physical.Document
	err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &doc)
	})
	if err != nil {
		return nil, fmt.Errorf("badger decode %s: %w", item.Key(), err)
	}
	return &doc, nil
}

// Get returns the document stored under id.
func (b *Backend) Get(_ context.Context, id string) (*physical.Document, error) {
	if b.closed.Load() {
		return nil, physical.ErrClosed
	}

	var doc *physical.Document
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return physical.ErrNotFound
		}
		if err != nil {
			return err
		}
		doc, err = decode(item)
		return err
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// Put writes doc if the stored version equals expectedVersion.
func (b *Backend) Put(_ context.Context, doc *physical.Document, expectedVersion int64) error {
	if b.closed.Load() {
		return physical.ErrClosed
	}

	next := doc.Clone()
	next.Version = expectedVersion + 1

	err := b.db.Update(func(txn *badger.Txn) error {
		var current int64
		item, err := txn.Get(key(doc.ID))
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
		case err != nil:
			return err
		default:
			stored, err := decode(item)
			if err != nil {
				return err
			}
			current = stored.Version
		}
		if current != expectedVersion {
			return physical.ErrVersionConflict
		}

		val, err := json.Marshal(next)
		if err != nil {
			return err
		}
		return txn.Set(key(doc.ID), val)
	})
	if errors.Is(err, badger.ErrConflict) {
		return physical.ErrVersionConflict
	}
	if err != nil {
		if errors.Is(err, physical.ErrVersionConflict) {
			return err
		}
		return fmt.Errorf("badger put %s: %w", doc.ID, err)
	}
	doc.Version = next.Version
	return nil
}

// Delete removes the document stored under id.
func (b *Backend) Delete(_ context.Context, id string) error {
	if b.closed.Load() {
		return physical.ErrClosed
	}

	return b.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key(id)); errors.Is(err, badger.ErrKeyNotFound) {
			return physical.ErrNotFound
		} else if err != nil {
			return err
		}
		return txn.Delete(key(id))
	})
}

// Find scans every contract and applies f. Keys are ordered by id.
func (b *Backend) Find(_ context.Context, f *physical.Filter) ([]*physical.Document, error) {
	if b.closed.Load() {
		return nil, physical.ErrClosed
	}

	var out []*physical.Document
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixContract)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			doc, err := decode(it.Item())
			if err != nil {
				return err
			}
			if !physical.Matches(doc, f) {
				continue
			}
			out = append(out, doc)
			if f != nil && f.Limit > 0 && len(out) >= f.Limit {
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("badger find: %w", err)
	}
	return out, nil
}

// Stats counts stored contracts.
func (b *Backend) Stats(_ context.Context) (*physical.Stats, error) {
	if b.closed.Load() {
		return nil, physical.ErrClosed
	}

	var n int64
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixContract)
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("badger stats: %w", err)
	}
	return &physical.Stats{Documents: n, BackendType: "badger"}, nil
}

// Close closes the database. Subsequent calls are no-ops.
func (b *Backend) Close() error {
	if b.closed.Swap(true) {
		return nil
	}
	return b.db.Close()
}
