package backendtest

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/gezibash/arc-contract/internal/contractstore/physical"
)

// BenchSizes are the dataset sizes the Find and Get benchmarks seed.
var BenchSizes = []int{100, 1_000, 10_000}

var (
	benchStatuses = []string{"pending", "signed", "revoked"}
	benchUsers    = func() []string {
		u := make([]string, 100)
		for i := range u {
			u[i] = fmt.Sprintf("did:web:participant-%03d", i)
		}
		return u
	}()
	benchOfferings = func() []string {
		o := make([]string, 20)
		for i := range o {
			o[i] = fmt.Sprintf("so-%02d", i)
		}
		return o
	}()
)

// BenchID is the id of the i-th generated document.
func BenchID(i int) string { return fmt.Sprintf("contract-%08d", i) }

// BenchDoc creates a document with two random members and one random
// offering.
func BenchDoc(rng *rand.Rand, i int) *physical.Document {
	members := []string{
		benchUsers[rng.Intn(len(benchUsers))],
		benchUsers[rng.Intn(len(benchUsers))],
	}
	return Doc(BenchID(i), benchStatuses[rng.Intn(len(benchStatuses))],
		members, []string{benchOfferings[rng.Intn(len(benchOfferings))]})
}

// Seed creates n documents with a fixed random seed.
func Seed(b *testing.B, be physical.Backend, n int) {
	b.Helper()
	rng := rand.New(rand.NewSource(42))
	ctx := context.Background()
	for i := range n {
		if err := be.Put(ctx, BenchDoc(rng, i), 0); err != nil {
			b.Fatal(err)
		}
	}
}

// RunPut measures document creation.
func RunPut(b *testing.B, newBackend func(b *testing.B) physical.Backend) {
	be := newBackend(b)
	rng := rand.New(rand.NewSource(42))
	ctx := context.Background()

	b.ResetTimer()
	for i := range b.N {
		if err := be.Put(ctx, BenchDoc(rng, i), 0); err != nil {
			b.Fatal(err)
		}
	}
}

// RunUpdate measures compare-and-set rewrites of one document.
func RunUpdate(b *testing.B, newBackend func(b *testing.B) physical.Backend) {
	be := newBackend(b)
	ctx := context.Background()
	doc := Doc(BenchID(0), "pending", []string{"did:web:a"}, nil)
	if err := be.Put(ctx, doc, 0); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for range b.N {
		if err := be.Put(ctx, doc, doc.Version); err != nil {
			b.Fatal(err)
		}
	}
}

// RunGet measures point reads at each of BenchSizes.
func RunGet(b *testing.B, newBackend func(b *testing.B) physical.Backend) {
	for _, n := range BenchSizes {
		b.Run(fmt.Sprintf("n=%d", n), func(b *testing.B) {
			be := newBackend(b)
			Seed(b, be, n)
			rng := rand.New(rand.NewSource(99))
			ctx := context.Background()

			b.ResetTimer()
			for range b.N {
				if _, err := be.Get(ctx, BenchID(rng.Intn(n))); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// RunFind measures the filters the lifecycle issues: by status, by
// participant and by offering.
func RunFind(b *testing.B, newBackend func(b *testing.B) physical.Backend) {
	member := true
	filters := []struct {
		name string
		f    *physical.Filter
	}{
		{"status", &physical.Filter{Status: "signed"}},
		{"notRevoked", &physical.Filter{ExcludeStatus: "revoked", Limit: 50}},
		{"participant", &physical.Filter{Participant: benchUsers[7]}},
		{"member", &physical.Filter{Participant: benchUsers[7], Member: &member}},
		{"offering", &physical.Filter{Offering: benchOfferings[3]}},
	}
	for _, n := range BenchSizes {
		b.Run(fmt.Sprintf("n=%d", n), func(b *testing.B) {
			be := newBackend(b)
			Seed(b, be, n)
			ctx := context.Background()
			for _, tt := range filters {
				b.Run(tt.name, func(b *testing.B) {
					for range b.N {
						if _, err := be.Find(ctx, tt.f); err != nil {
							b.Fatal(err)
						}
					}
				})
			}
		})
	}
}
