// Package postgres provides a PostgreSQL contract document backend built on gorm.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/gezibash/arc-contract/internal/contractstore/physical"
	"github.com/gezibash/arc-contract/internal/storage"
)

const (
	KeyDSN             = "dsn"
	KeyMaxOpenConns    = "max_open_conns"
	KeyMaxIdleConns    = "max_idle_conns"
	KeyConnMaxLifetime = "conn_max_lifetime"
	KeyAutoMigrate     = "auto_migrate"
	KeyTable           = "table"
)

func init() {
	physical.Register("postgres", NewFactory, Defaults)
}

// Defaults returns the default configuration for the PostgreSQL backend.
func Defaults() map[string]string {
	return map[string]string{
		KeyDSN:             "",
		KeyMaxOpenConns:    "10",
		KeyMaxIdleConns:    "2",
		KeyConnMaxLifetime: "30m",
		KeyAutoMigrate:     "true",
		KeyTable:           "contracts",
	}
}

// row is the table layout. Data stays bytea so documents round-trip byte for byte.
type row struct {
	ID           string                      `gorm:"primaryKey;type:text"`
	Version      int64                       `gorm:"not null"`
	Status       string                      `gorm:"type:text;not null;index"`
	Data         []byte                      `gorm:"type:bytea;not null"`
	Members      datatypes.JSONSlice[string] `gorm:"type:jsonb;not null"`
	Participants datatypes.JSONSlice[string] `gorm:"type:jsonb;not null"`
	Offerings    datatypes.JSONSlice[string] `gorm:"type:jsonb;not null"`
	UpdatedAt    time.Time                   `gorm:"autoUpdateTime:false;not null"`
}

func toRow(doc *physical.Document, version int64) *row {
	return &row{
		ID:           doc.ID,
		Version:      version,
		Status:       doc.Index.Status,
		Data:         doc.Data,
		Members:      nonNil(doc.Index.Members),
		Participants: nonNil(doc.Index.Participants),
		Offerings:    nonNil(doc.Index.Offerings),
		UpdatedAt:    doc.UpdatedAt.UTC(),
	}
}

func nonNil(v []string) datatypes.JSONSlice[string] {
	if v == nil {
		return datatypes.JSONSlice[string]{}
	}
	return datatypes.JSONSlice[string](v)
}

func emptyToNil(v datatypes.JSONSlice[string]) []string {
	if len(v) == 0 {
		return nil
	}
	return []string(v)
}

func (r *row) document() *physical.Document {
	return &physical.Document{
		ID:      r.ID,
		Version: r.Version,
		Data:    r.Data,
		Index: physical.Index{
			Status:       r.Status,
			Members:      emptyToNil(r.Members),
			Participants: emptyToNil(r.Participants),
			Offerings:    emptyToNil(r.Offerings),
		},
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

// NewFactory connects to PostgreSQL and migrates the contracts table.
func NewFactory(ctx context.Context, config storage.Config) (physical.Backend, error) {
	dsn, err := config.Require("postgres", KeyDSN)
	if err != nil {
		return nil, err
	}
	maxOpen, err := config.Int(KeyMaxOpenConns, 10)
	if err != nil {
		return nil, storage.Field("postgres", err)
	}
	maxIdle, err := config.Int(KeyMaxIdleConns, 2)
	if err != nil {
		return nil, storage.Field("postgres", err)
	}
	lifetime, err := config.Duration(KeyConnMaxLifetime, 30*time.Minute)
	if err != nil {
		return nil, storage.Field("postgres", err)
	}
	migrate, err := config.Bool(KeyAutoMigrate, true)
	if err != nil {
		return nil, storage.Field("postgres", err)
	}
	table := config.String(KeyTable, "contracts")

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, storage.NewConfigError("postgres", KeyDSN, "failed to connect").WithCause(err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, storage.NewConfigError("postgres", KeyDSN, "failed to get connection pool").WithCause(err)
	}
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(maxIdle)
	sqlDB.SetConnMaxLifetime(lifetime)

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, storage.NewConfigError("postgres", KeyDSN, "failed to connect").WithCause(err)
	}

	b := NewWithDB(db, table)
	if migrate {
		if err := b.table(ctx).AutoMigrate(&row{}); err != nil {
			_ = sqlDB.Close()
			return nil, storage.NewConfigError("postgres", KeyAutoMigrate, "failed to migrate").WithCause(err)
		}
	}

	slog.Info("postgres contractstore initialized", "table", table, "max_open_conns", maxOpen)
	return b, nil
}

// Backend is a PostgreSQL implementation of physical.Backend. Versions are
// enforced with a conditional UPDATE on (id, version).
type Backend struct {
	db        *gorm.DB
	tableName string
	closed    atomic.Bool
}

// NewWithDB wraps an open gorm handle. The backend owns db.
func NewWithDB(db *gorm.DB, table string) *Backend {
	if table == "" {
		table = "contracts"
	}
	return &Backend{db: db, tableName: table}
}

func (b *Backend) table(ctx context.Context) *gorm.DB {
	return b.db.WithContext(ctx).Table(b.tableName)
}

// Get returns the document stored under id.
func (b *Backend) Get(ctx context.Context, id string) (*physical.Document, error) {
	if b.closed.Load() {
		return nil, physical.ErrClosed
	}

	var r row
	err := b.table(ctx).Where("id = ?", id).Take(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, physical.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres get: %w", err)
	}
	return r.document(), nil
}

// Put writes doc if the stored version equals expectedVersion.
func (b *Backend) Put(ctx context.Context, doc *physical.Document, expectedVersion int64) error {
	if b.closed.Load() {
		return physical.ErrClosed
	}

	next := expectedVersion + 1
	r := toRow(doc, next)

	var res *gorm.DB
	if expectedVersion == 0 {
		res = b.table(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(r)
	} else {
		res = b.table(ctx).
			Where("id = ? AND version = ?", doc.ID, expectedVersion).
			Updates(map[string]any{
				"version":      r.Version,
				"status":       r.Status,
				"data":         r.Data,
				"members":      r.Members,
				"participants": r.Participants,
				"offerings":    r.Offerings,
				"updated_at":   r.UpdatedAt,
			})
	}
	if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
		return physical.ErrVersionConflict
	}
	if res.Error != nil {
		return fmt.Errorf("postgres put: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return physical.ErrVersionConflict
	}
	doc.Version = next
	return nil
}

// Delete removes the document stored under id.
func (b *Backend) Delete(ctx context.Context, id string) error {
	if b.closed.Load() {
		return physical.ErrClosed
	}

	res := b.table(ctx).Where("id = ?", id).Delete(&row{})
	if res.Error != nil {
		return fmt.Errorf("postgres delete: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return physical.ErrNotFound
	}
	return nil
}

// Find pushes status and offering filters into SQL; offerings use jsonb
// containment. The participant filter runs on the decoded rows.
func (b *Backend) Find(ctx context.Context, f *physical.Filter) ([]*physical.Document, error) {
	if b.closed.Load() {
		return nil, physical.ErrClosed
	}

	q := b.table(ctx)
	if f != nil {
		if f.Status != "" {
			q = q.Where("status = ?", f.Status)
		}
		if f.ExcludeStatus != "" {
			q = q.Where("status <> ?", f.ExcludeStatus)
		}
		if f.Offering != "" {
			needle, err := json.Marshal([]string{f.Offering})
			if err != nil {
				return nil, fmt.Errorf("postgres find: %w", err)
			}
			q = q.Where("offerings @> ?::jsonb", string(needle))
		}
		if f.Participant == "" && f.Limit > 0 {
			q = q.Limit(f.Limit)
		}
	}

	var rows []row
	if err := q.Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("postgres find: %w", err)
	}

	out := make([]*physical.Document, 0, len(rows))
	for i := range rows {
		doc := rows[i].document()
		if physical.Matches(doc, f) {
			out = append(out, doc)
		}
	}
	return physical.Limit(out, f), nil
}

// Stats counts stored contracts.
func (b *Backend) Stats(ctx context.Context) (*physical.Stats, error) {
	if b.closed.Load() {
		return nil, physical.ErrClosed
	}

	var n int64
	if err := b.table(ctx).Count(&n).Error; err != nil {
		return nil, fmt.Errorf("postgres stats: %w", err)
	}
	return &physical.Stats{Documents: n, BackendType: "postgres"}, nil
}

// Close closes the underlying pool. Subsequent calls are no-ops.
func (b *Backend) Close() error {
	if b.closed.Swap(true) {
		return nil
	}
	sqlDB, err := b.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
