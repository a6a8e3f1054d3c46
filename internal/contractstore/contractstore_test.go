package contractstore

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/gezibash/arc-contract/internal/contract"
	"github.com/gezibash/arc-contract/internal/contractstore/physical"
	_ "github.com/gezibash/arc-contract/internal/contractstore/physical/memory"
	"github.com/gezibash/arc-contract/internal/observability"
	arcerrors "github.com/gezibash/arc-contract/pkg/errors"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	metrics := observability.NewMetrics()
	backend, err := physical.New(context.Background(), "memory", nil, metrics)
	if err != nil {
		t.Fatalf("create memory backend: %v", err)
	}
	s := New(backend, metrics)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newContract(t *testing.T, id string) *contract.Contract {
	t.Helper()
	c, err := contract.New(id, contract.Draft{Ecosystem: "eco", Orchestrator: "orch"}, t0)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestSaveAndLoad(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c := newContract(t, "c-1")
	if err := c.AddOrUpdateMember("orch", contract.RoleOrchestrator, "sig", t0); err != nil {
		t.Fatal(err)
	}
	if err := s.Save(ctx, c, 0); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if c.Version != 1 {
		t.Fatalf("version = %d, want 1", c.Version)
	}

	got, err := s.Load(ctx, "c-1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Version != 1 || got.Ecosystem != "eco" || len(got.Members) != 1 || got.Members[0].Participant != "orch" {
		t.Fatalf("loaded %+v", got)
	}
	if !got.CreatedAt.Equal(t0) {
		t.Fatalf("createdAt = %v", got.CreatedAt)
	}
}

func TestLoadMissing(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Load(context.Background(), "nope")
	if !errors.Is(err, contract.ErrContractNotFound) || !errors.Is(err, arcerrors.ErrNotFound) {
		t.Fatalf("Load = %v", err)
	}
}

func TestSaveStaleVersion(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c := newContract(t, "c-1")
	if err := s.Save(ctx, c, 0); err != nil {
		t.Fatal(err)
	}
	a, _ := s.Load(ctx, "c-1")
	b, _ := s.Load(ctx, "c-1")

	if err := s.Save(ctx, a, a.Version); err != nil {
		t.Fatalf("first writer: %v", err)
	}
	err := s.Save(ctx, b, b.Version)
	if !errors.Is(err, ErrVersionConflict) || !errors.Is(err, arcerrors.ErrConflict) {
		t.Fatalf("second writer = %v", err)
	}
	if b.Version != 1 {
		t.Fatalf("failed save changed version to %d", b.Version)
	}
}

func TestFindByIndex(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	signed := newContract(t, "c-1")
	_ = signed.AddOrUpdateMember("orch", contract.RoleOrchestrator, "s", t0)
	_ = signed.AddOrUpdateMember("alice", "provider", "s", t0)

	offering := newContract(t, "c-2")
	_ = offering.InjectOfferingPolicies("bob", "so1", nil)

	revoked := newContract(t, "c-3")
	_ = revoked.AddOrUpdateMember("alice", "provider", "s", t0)
	_ = revoked.RevokeMember("alice")

	for _, c := range []*contract.Contract{signed, offering, revoked} {
		if err := s.Save(ctx, c, 0); err != nil {
			t.Fatal(err)
		}
	}

	yes := true
	cases := []struct {
		name   string
		filter *Filter
		want   []string
	}{
		{"signed", &Filter{Status: "signed"}, []string{"c-1"}},
		{"alice member", &Filter{Participant: "alice", Member: &yes}, []string{"c-1"}},
		{"alice any", &Filter{Participant: "alice"}, []string{"c-1", "c-3"}},
		{"bob via offering", &Filter{Participant: "bob"}, []string{"c-2"}},
		{"offering", &Filter{Offering: "so1"}, []string{"c-2"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := s.Find(ctx, tc.filter)
			if err != nil {
				t.Fatal(err)
			}
			ids := make([]string, len(got))
			for i, c := range got {
				ids[i] = c.ID
			}
			if !slices.Equal(ids, tc.want) {
				t.Fatalf("ids = %v, want %v", ids, tc.want)
			}
		})
	}
}

func TestDeleteAndDeleteMany(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for _, id := range []string{"c-1", "c-2", "c-3"} {
		if err := s.Save(ctx, newContract(t, id), 0); err != nil {
			t.Fatal(err)
		}
	}

	if err := s.Delete(ctx, "c-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete(ctx, "c-1"); !errors.Is(err, contract.ErrContractNotFound) {
		t.Fatalf("second Delete = %v", err)
	}

	n, err := s.DeleteMany(ctx, nil)
	if err != nil || n != 2 {
		t.Fatalf("DeleteMany = %d, %v", n, err)
	}
	st, err := s.Stats(ctx)
	if err != nil || st.Documents != 0 {
		t.Fatalf("Stats = %+v, %v", st, err)
	}
}

func TestDeadlineMapsToTimeout(t *testing.T) {
	err := mapErr("load contract", context.DeadlineExceeded)
	if !errors.Is(err, ErrTimeout) || arcerrors.Kind(err) != "timeout" {
		t.Fatalf("mapErr = %v", err)
	}
}

func TestIndex(t *testing.T) {
	c := newContract(t, "c-1")
	_ = c.AddOrUpdateMember("alice", "provider", "s", t0)
	_ = c.AddOrUpdateMember("bob", "consumer", "s", t0)
	_ = c.RevokeMember("bob")
	_ = c.InjectOfferingPolicies("alice", "so1", nil)
	_ = c.InjectOfferingPolicies("carol", "so2", nil)

	ix := Index(c)
	if ix.Status != "revoked" {
		t.Errorf("status = %q", ix.Status)
	}
	if !slices.Equal(ix.Members, []string{"alice"}) {
		t.Errorf("members = %v", ix.Members)
	}
	if !slices.Equal(ix.Participants, []string{"alice", "bob", "carol"}) {
		t.Errorf("participants = %v", ix.Participants)
	}
	if !slices.Equal(ix.Offerings, []string{"so1", "so2"}) {
		t.Errorf("offerings = %v", ix.Offerings)
	}
}
