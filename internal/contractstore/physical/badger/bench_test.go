package badger

import (
	"context"
	"testing"

	"github.com/gezibash/arc-contract/internal/contractstore/physical"
	"github.com/gezibash/arc-contract/internal/contractstore/physical/backendtest"
	"github.com/gezibash/arc-contract/internal/storage"
)

func newBenchBackend(b *testing.B) physical.Backend {
	be, err := NewFactory(context.Background(), storage.Merge(Defaults(), map[string]string{
		KeyPath:       b.TempDir(),
		KeySyncWrites: "false",
	}))
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { _ = be.Close() })
	return be
}

func BenchmarkPut(b *testing.B)    { backendtest.RunPut(b, newBenchBackend) }
func BenchmarkUpdate(b *testing.B) { backendtest.RunUpdate(b, newBenchBackend) }
func BenchmarkGet(b *testing.B)    { backendtest.RunGet(b, newBenchBackend) }
func BenchmarkFind(b *testing.B)   { backendtest.RunFind(b, newBenchBackend) }
