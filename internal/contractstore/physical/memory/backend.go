// Package memory provides an in-memory contract backend for tests and
// single-process development.
package memory

import (
	"context"

	"github.com/gezibash/arc-contract/internal/contractstore/physical"
	"github.com/gezibash/arc-contract/internal/contractstore/physical/badger"
	"github.com/gezibash/arc-contract/internal/storage"
)

func init() {
	physical.Register("memory", NewFactory, Defaults)
}

// Defaults returns the default configuration for the memory backend.
func Defaults() map[string]string {
	return map[string]string{badger.KeyInMemory: "true"}
}

// NewFactory opens BadgerDB in in-memory mode regardless of config.
func NewFactory(ctx context.Context, config storage.Config) (physical.Backend, error) {
	config = storage.Merge(config, Defaults())
	return badger.NewFactory(ctx, config)
}
