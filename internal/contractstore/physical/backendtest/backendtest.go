// Package backendtest is the conformance suite every contractstore backend
// runs from its own tests.
package backendtest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/gezibash/arc-contract/internal/contractstore/physical"
)

// BaseTime is the UpdatedAt of generated documents. It has microsecond
// precision so SQL timestamp columns round-trip it.
var BaseTime = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// Doc builds a document with the given index fields.
func Doc(id, status string, members, offerings []string) *physical.Document {
	return &physical.Document{
		ID:   id,
		Data: []byte(fmt.Sprintf(`{"id":%q,"status":%q}`, id, status)),
		Index: physical.Index{
			Status:       status,
			Members:      members,
			Participants: members,
			Offerings:    offerings,
		},
		UpdatedAt: BaseTime,
	}
}

// Run executes the suite. newBackend must return a fresh, empty backend;
// the suite closes it.
func Run(t *testing.T, newBackend func(t *testing.T) physical.Backend) {
	t.Helper()

	tests := []struct {
		name string
		fn   func(*testing.T, physical.Backend)
	}{
		{"CreateAndGet", testCreateAndGet},
		{"CreateTwiceConflicts", testCreateTwice},
		{"UpdateRequiresVersion", testUpdateVersion},
		{"Delete", testDelete},
		{"FindFilters", testFindFilters},
		{"ConcurrentCompareAndSet", testConcurrentCAS},
		{"Stats", testStats},
		{"Closed", testClosed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBackend(t)
			t.Cleanup(func() { _ = b.Close() })
			tt.fn(t, b)
		})
	}
}

func mustPut(t *testing.T, b physical.Backend, doc *physical.Document, expected int64) {
	t.Helper()
	if err := b.Put(context.Background(), doc, expected); err != nil {
		t.Fatalf("Put(%s, %d): %v", doc.ID, expected, err)
	}
}

func testCreateAndGet(t *testing.T, b physical.Backend) {
	ctx := context.Background()
	doc := Doc("c-1", "pending", []string{"p1"}, []string{"so1"})
	mustPut(t, b, doc, 0)
	if doc.Version != 1 {
		t.Fatalf("version after create = %d, want 1", doc.Version)
	}

	got, err := b.Get(ctx, "c-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Version != 1 || !bytes.Equal(got.Data, doc.Data) {
		t.Fatalf("got %+v", got)
	}
	if got.Index.Status != "pending" || !slices.Equal(got.Index.Members, []string{"p1"}) || !slices.Equal(got.Index.Offerings, []string{"so1"}) {
		t.Fatalf("index = %+v", got.Index)
	}
	if !got.UpdatedAt.Equal(BaseTime) {
		t.Fatalf("updatedAt = %v", got.UpdatedAt)
	}

	if _, err := b.Get(ctx, "missing"); !errors.Is(err, physical.ErrNotFound) {
		t.Fatalf("Get missing: %v", err)
	}
}

func testCreateTwice(t *testing.T, b physical.Backend) {
	mustPut(t, b, Doc("c-1", "pending", nil, nil), 0)
	err := b.Put(context.Background(), Doc("c-1", "signed", nil, nil), 0)
	if !errors.Is(err, physical.ErrVersionConflict) {
		t.Fatalf("second create: %v", err)
	}
	got, _ := b.Get(context.Background(), "c-1")
	if got.Index.Status != "pending" {
		t.Fatal("losing create overwrote the document")
	}
}

func testUpdateVersion(t *testing.T, b physical.Backend) {
	ctx := context.Background()
	mustPut(t, b, Doc("c-1", "pending", nil, nil), 0)

	upd := Doc("c-1", "signed", []string{"p1", "p2"}, nil)
	mustPut(t, b, upd, 1)
	if upd.Version != 2 {
		t.Fatalf("version = %d, want 2", upd.Version)
	}

	stale := Doc("c-1", "revoked", nil, nil)
	if err := b.Put(ctx, stale, 1); !errors.Is(err, physical.ErrVersionConflict) {
		t.Fatalf("stale update: %v", err)
	}
	if err := b.Put(ctx, Doc("ghost", "pending", nil, nil), 3); !errors.Is(err, physical.ErrVersionConflict) {
		t.Fatalf("update of missing doc: %v", err)
	}

	got, err := b.Get(ctx, "c-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Version != 2 || got.Index.Status != "signed" {
		t.Fatalf("got %+v", got)
	}
}

func testDelete(t *testing.T, b physical.Backend) {
	ctx := context.Background()
	mustPut(t, b, Doc("c-1", "pending", nil, []string{"so1"}), 0)
	if err := b.Delete(ctx, "c-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := b.Get(ctx, "c-1"); !errors.Is(err, physical.ErrNotFound) {
		t.Fatalf("Get after delete: %v", err)
	}
	if err := b.Delete(ctx, "c-1"); !errors.Is(err, physical.ErrNotFound) {
		t.Fatalf("second delete: %v", err)
	}
	docs, err := b.Find(ctx, &physical.Filter{Offering: "so1"})
	if err != nil || len(docs) != 0 {
		t.Fatalf("Find after delete = %d, %v", len(docs), err)
	}
	// The id is free again.
	mustPut(t, b, Doc("c-1", "pending", nil, nil), 0)
}

func ids(docs []*physical.Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.ID
	}
	return out
}

func testFindFilters(t *testing.T, b physical.Backend) {
	ctx := context.Background()
	mustPut(t, b, Doc("c-3", "signed", []string{"alice", "bob"}, []string{"so1"}), 0)
	mustPut(t, b, Doc("c-1", "pending", []string{"alice"}, nil), 0)
	mustPut(t, b, Doc("c-2", "revoked", []string{"carol"}, []string{"so1", "so2"}), 0)

	revokedRef := Doc("c-4", "revoked", nil, nil)
	revokedRef.Index.Participants = []string{"bob"}
	mustPut(t, b, revokedRef, 0)

	yes, no := true, false
	cases := []struct {
		name   string
		filter *physical.Filter
		want   []string
	}{
		{"all", nil, []string{"c-1", "c-2", "c-3", "c-4"}},
		{"status", &physical.Filter{Status: "revoked"}, []string{"c-2", "c-4"}},
		{"exclude", &physical.Filter{ExcludeStatus: "revoked"}, []string{"c-1", "c-3"}},
		{"member", &physical.Filter{Participant: "alice", Member: &yes}, []string{"c-1", "c-3"}},
		{"not member", &physical.Filter{Participant: "alice", Member: &no}, []string{"c-2", "c-4"}},
		{"any reference", &physical.Filter{Participant: "bob"}, []string{"c-3", "c-4"}},
		{"offering", &physical.Filter{Offering: "so1"}, []string{"c-2", "c-3"}},
		{"combined", &physical.Filter{Offering: "so1", ExcludeStatus: "signed"}, []string{"c-2"}},
		{"limit", &physical.Filter{Limit: 2}, []string{"c-1", "c-2"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			docs, err := b.Find(ctx, tc.filter)
			if err != nil {
				t.Fatalf("Find: %v", err)
			}
			if got := ids(docs); !slices.Equal(got, tc.want) {
				t.Fatalf("ids = %v, want %v", got, tc.want)
			}
		})
	}
}

// testConcurrentCAS runs read-modify-write loops from several goroutines;
// every successful write must bump the version by exactly one.
func testConcurrentCAS(t *testing.T, b physical.Backend) {
	ctx := context.Background()
	mustPut(t, b, Doc("c-1", "pending", nil, nil), 0)

	const workers, perWorker = 4, 5
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for w := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; {
				cur, err := b.Get(ctx, "c-1")
				if err != nil {
					errs <- err
					return
				}
				next := Doc("c-1", fmt.Sprintf("w%d-%d", w, i), nil, nil)
				err = b.Put(ctx, next, cur.Version)
				switch {
				case err == nil:
					i++
				case errors.Is(err, physical.ErrVersionConflict):
				default:
					errs <- err
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("worker: %v", err)
	}

	got, err := b.Get(ctx, "c-1")
	if err != nil {
		t.Fatal(err)
	}
	if want := int64(1 + workers*perWorker); got.Version != want {
		t.Fatalf("version = %d, want %d", got.Version, want)
	}
}

func testStats(t *testing.T, b physical.Backend) {
	mustPut(t, b, Doc("c-1", "pending", nil, nil), 0)
	mustPut(t, b, Doc("c-2", "pending", nil, nil), 0)
	st, err := b.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st.Documents != 2 || st.BackendType == "" {
		t.Fatalf("stats = %+v", st)
	}
}

func testClosed(t *testing.T, b physical.Backend) {
	ctx := context.Background()
	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := b.Get(ctx, "c-1"); !errors.Is(err, physical.ErrClosed) {
		t.Errorf("Get: %v", err)
	}
	if err := b.Put(ctx, Doc("c-1", "pending", nil, nil), 0); !errors.Is(err, physical.ErrClosed) {
		t.Errorf("Put: %v", err)
	}
	if _, err := b.Find(ctx, nil); !errors.Is(err, physical.ErrClosed) {
		t.Errorf("Find: %v", err)
	}
}
