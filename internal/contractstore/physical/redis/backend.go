// Package redis provides a Redis-backed contract document backend.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gezibash/arc-contract/internal/contractstore/physical"
	"github.com/gezibash/arc-contract/internal/storage"
)

const (
	KeyAddr         = "addr"
	KeyPassword     = "password"
	KeyDB           = "db"
	KeyMaxRetries   = "max_retries"
	KeyDialTimeout  = "dial_timeout"
	KeyReadTimeout  = "read_timeout"
	KeyWriteTimeout = "write_timeout"
	KeyPoolSize     = "pool_size"
	KeyKeyPrefix    = "key_prefix"
)

func init() {
	physical.Register("redis", NewFactory, Defaults)
}

// Defaults returns the default configuration for the Redis backend.
func Defaults() map[string]string {
	return map[string]string{
		KeyAddr:         "localhost:6379",
		KeyPassword:     "",
		KeyDB:           "0",
		KeyMaxRetries:   "3",
		KeyDialTimeout:  "5s",
		KeyReadTimeout:  "3s",
		KeyWriteTimeout: "3s",
		KeyPoolSize:     "0",
		KeyKeyPrefix:    "arc-contract:",
	}
}

// NewFactory connects to Redis and verifies the connection with PING.
func NewFactory(ctx context.Context, config storage.Config) (physical.Backend, error) {
	addr, err := config.Require("redis", KeyAddr)
	if err != nil {
		return nil, err
	}

	db, err := config.Int(KeyDB, 0)
	if err != nil {
		return nil, storage.Field("redis", err)
	}
	if db < 0 {
		return nil, storage.NewConfigError("redis", KeyDB, "must be non-negative").WithValue(config[KeyDB])
	}
	maxRetries, err := config.Int(KeyMaxRetries, 3)
	if err != nil {
		return nil, storage.Field("redis", err)
	}
	dialTimeout, err := config.Duration(KeyDialTimeout, 5*time.Second)
	if err != nil {
		return nil, storage.Field("redis", err)
	}
	readTimeout, err := config.Duration(KeyReadTimeout, 3*time.Second)
	if err != nil {
		return nil, storage.Field("redis", err)
	}
	writeTimeout, err := config.Duration(KeyWriteTimeout, 3*time.Second)
	if err != nil {
		return nil, storage.Field("redis", err)
	}
	poolSize, err := config.Int(KeyPoolSize, 0)
	if err != nil {
		return nil, storage.Field("redis", err)
	}

	opts := &redis.Options{
		Addr:         addr,
		Password:     config.String(KeyPassword, ""),
		DB:           db,
		MaxRetries:   maxRetries,
		DialTimeout:  dialTimeout,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}
	if poolSize > 0 {
		opts.PoolSize = poolSize
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, storage.NewConfigError("redis", KeyAddr, "failed to connect").WithCause(err)
	}

	prefix := config.String(KeyKeyPrefix, "arc-contract:")
	slog.Info("redis contractstore initialized", "addr", addr, "db", db, "key_prefix", prefix)
	return NewWithClient(client, prefix), nil
}

// Backend is a Redis implementation of physical.Backend. Each contract is a
// JSON string key; secondary sets index ids by status and offering.
// Conditional writes use WATCH/MULTI on the document key.
type Backend struct {
	client *redis.Client
	prefix string
	closed atomic.Bool
}

// NewWithClient wraps an existing client. The backend owns client.
func NewWithClient(client *redis.Client, prefix string) *Backend {
	if prefix == "" {
		prefix = "arc-contract:"
	}
	return &Backend{client: client, prefix: prefix}
}

func (b *Backend) docKey(id string) string     { return b.prefix + "contract:" + id }
func (b *Backend) allKey() string              { return b.prefix + "contracts" }
func (b *Backend) statusKey(s string) string   { return b.prefix + "status:" + s }
func (b *Backend) offeringKey(o string) string { return b.prefix + "offering:" + o }

// getter is satisfied by both *redis.Client and *redis.Tx.
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (b *Backend) load(ctx context.Context, c getter, id string) (*physical.Document, error) {
	raw, err := c.Get(ctx, b.docKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, physical.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var doc physical.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", id, err)
	}
	return &doc, nil
}

// unindex removes old's secondary index entries inside pipe.
func (b *Backend) unindex(ctx context.Context, pipe redis.Pipeliner, old *physical.Document) {
	pipe.SRem(ctx, b.statusKey(old.Index.Status), old.ID)
	for _, o := range old.Index.Offerings {
		pipe.SRem(ctx, b.offeringKey(o), old.ID)
	}
}

// Get returns the document stored under id.
func (b *Backend) Get(ctx context.Context, id string) (*physical.Document, error) {
	if b.closed.Load() {
		return nil, physical.ErrClosed
	}
	doc, err := b.load(ctx, b.client, id)
	if err != nil && !errors.Is(err, physical.ErrNotFound) {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return doc, err
}

// Put writes doc if the stored version equals expectedVersion.
func (b *Backend) Put(ctx context.Context, doc *physical.Document, expectedVersion int64) error {
	if b.closed.Load() {
		return physical.ErrClosed
	}

	next := doc.Clone()
	next.Version = expectedVersion + 1
	data, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("redis put: encode: %w", err)
	}

	err = b.client.Watch(ctx, func(tx *redis.Tx) error {
		old, err := b.load(ctx, tx, doc.ID)
		var current int64
		switch {
		case errors.Is(err, physical.ErrNotFound):
		case err != nil:
			return err
		default:
			current = old.Version
		}
		if current != expectedVersion {
			return physical.ErrVersionConflict
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if old != nil {
				b.unindex(ctx, pipe, old)
			}
			pipe.Set(ctx, b.docKey(doc.ID), data, 0)
			pipe.SAdd(ctx, b.allKey(), doc.ID)
			pipe.SAdd(ctx, b.statusKey(next.Index.Status), doc.ID)
			for _, o := range next.Index.Offerings {
				pipe.SAdd(ctx, b.offeringKey(o), doc.ID)
			}
			return nil
		})
		return err
	}, b.docKey(doc.ID))

	switch {
	case err == nil:
		doc.Version = next.Version
		return nil
	case errors.Is(err, redis.TxFailedErr), errors.Is(err, physical.ErrVersionConflict):
		return physical.ErrVersionConflict
	default:
		return fmt.Errorf("redis put: %w", err)
	}
}

// Delete removes the document stored under id and its index entries.
func (b *Backend) Delete(ctx context.Context, id string) error {
	if b.closed.Load() {
		return physical.ErrClosed
	}

	err := b.client.Watch(ctx, func(tx *redis.Tx) error {
		old, err := b.load(ctx, tx, id)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			b.unindex(ctx, pipe, old)
			pipe.SRem(ctx, b.allKey(), id)
			pipe.Del(ctx, b.docKey(id))
			return nil
		})
		return err
	}, b.docKey(id))

	switch {
	case err == nil, errors.Is(err, physical.ErrNotFound):
		return err
	case errors.Is(err, redis.TxFailedErr):
		return physical.ErrVersionConflict
	default:
		return fmt.Errorf("redis delete: %w", err)
	}
}

// Find narrows candidates with the status or offering set, then applies
// the full filter on the decoded documents.
func (b *Backend) Find(ctx context.Context, f *physical.Filter) ([]*physical.Document, error) {
	if b.closed.Load() {
		return nil, physical.ErrClosed
	}

	set := b.allKey()
	switch {
	case f == nil:
	case f.Offering != "":
		set = b.offeringKey(f.Offering)
	case f.Status != "":
		set = b.statusKey(f.Status)
	}

	ids, err := b.client.SMembers(ctx, set).Result()
	if err != nil {
		return nil, fmt.Errorf("redis find: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = b.docKey(id)
	}
	vals, err := b.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis find: %w", err)
	}

	out := make([]*physical.Document, 0, len(vals))
	for _, v := range vals {
		s, ok := v.(string)
		if !ok {
			// Deleted between SMEMBERS and MGET.
			continue
		}
		var doc physical.Document
		if err := json.Unmarshal([]byte(s), &doc); err != nil {
			return nil, fmt.Errorf("redis find: decode: %w", err)
		}
		if physical.Matches(&doc, f) {
			out = append(out, &doc)
		}
	}
	physical.SortByID(out)
	return physical.Limit(out, f), nil
}

// Stats counts stored contracts.
func (b *Backend) Stats(ctx context.Context) (*physical.Stats, error) {
	if b.closed.Load() {
		return nil, physical.ErrClosed
	}
	n, err := b.client.SCard(ctx, b.allKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("redis stats: %w", err)
	}
	return &physical.Stats{Documents: n, BackendType: "redis"}, nil
}

// Close closes the client. Subsequent calls are no-ops.
func (b *Backend) Close() error {
	if b.closed.Swap(true) {
		return nil
	}
	return b.client.Close()
}
