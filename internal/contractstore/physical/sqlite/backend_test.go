package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/gezibash/arc-contract/internal/contractstore/physical"
	"github.com/gezibash/arc-contract/internal/contractstore/physical/backendtest"
	"github.com/gezibash/arc-contract/internal/storage"
)

func newTestBackend(t *testing.T) physical.Backend {
	t.Helper()
	b, err := NewFactory(context.Background(), storage.Merge(Defaults(), map[string]string{
		KeyPath: filepath.Join(t.TempDir(), "contracts.db"),
	}))
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestConformance(t *testing.T) {
	backendtest.Run(t, newTestBackend)
}

func TestOfferingIndexFollowsUpdates(t *testing.T) {
	b := newTestBackend(t)
	defer b.Close()
	ctx := context.Background()

	if err := b.Put(ctx, backendtest.Doc("c-1", "pending", nil, []string{"so1", "so2"}), 0); err != nil {
		t.Fatal(err)
	}
	if err := b.Put(ctx, backendtest.Doc("c-1", "pending", nil, []string{"so2"}), 1); err != nil {
		t.Fatal(err)
	}

	docs, err := b.Find(ctx, &physical.Filter{Offering: "so1"})
	if err != nil || len(docs) != 0 {
		t.Fatalf("so1 = %d, %v", len(docs), err)
	}
	docs, err = b.Find(ctx, &physical.Filter{Offering: "so2"})
	if err != nil || len(docs) != 1 {
		t.Fatalf("so2 = %d, %v", len(docs), err)
	}
}

func TestFactoryConfigErrors(t *testing.T) {
	var ce *storage.ConfigError
	if _, err := NewFactory(context.Background(), storage.Config{}); !errors.As(err, &ce) || ce.Field != KeyPath {
		t.Errorf("empty path: %v", err)
	}
	_, err := NewFactory(context.Background(), storage.Config{
		KeyPath:        filepath.Join(t.TempDir(), "x.db"),
		KeyBusyTimeout: "soon",
	})
	if !errors.As(err, &ce) || ce.Backend != "sqlite" {
		t.Errorf("bad busy timeout: %v", err)
	}
}
