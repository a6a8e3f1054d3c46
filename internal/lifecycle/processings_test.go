package lifecycle

import (
	"context"
	"errors"
	"testing"

	"github.com/gezibash/arc-contract/internal/contract"
)

func infra(participants ...string) []contract.InfrastructureService {
	out := make([]contract.InfrastructureService, len(participants))
	for i, p := range participants {
		out[i] = contract.InfrastructureService{Participant: p, ServiceOffering: p + "-so"}
	}
	return out
}

func TestInsertProcessingsIsAllOrNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.create(t)

	_, err := f.m.InsertProcessings(ctx, c.ID, []contract.DataProcessing{
		{CatalogID: "cat-1", Provider: "alice", Consumer: "bob"},
		{CatalogID: "cat-1", Provider: "alice", Consumer: "carol"},
	})
	if !errors.Is(err, contract.ErrDuplicateCatalogID) {
		t.Fatalf("duplicate batch = %v", err)
	}
	recs, _ := f.m.Processings(ctx, c.ID)
	if len(recs) != 0 {
		t.Fatalf("partial batch stored: %+v", recs)
	}

	stored, err := f.m.InsertProcessings(ctx, c.ID, []contract.DataProcessing{
		{CatalogID: "cat-1", Provider: "alice", Consumer: "bob", InfrastructureServices: infra("dave")},
		{CatalogID: "cat-2", Provider: "alice", Consumer: "carol"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(stored) != 2 || stored[0].Status != contract.ProcessingActive || stored[0].ID == "" || stored[0].ID == stored[1].ID {
		t.Fatalf("stored = %+v", stored)
	}

	if _, err := f.m.InsertProcessings(ctx, c.ID, nil); !errors.Is(err, contract.ErrInvalidRequest) {
		t.Fatalf("empty batch = %v", err)
	}
}

func TestProcessingLedgerOperations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.create(t)

	stored, err := f.m.InsertProcessings(ctx, c.ID, []contract.DataProcessing{
		{CatalogID: "cat-1", Provider: "alice", Consumer: "bob", InfrastructureServices: infra("dave")},
	})
	if err != nil {
		t.Fatal(err)
	}
	first := stored[0]

	next, err := f.m.UpdateProcessing(ctx, c.ID, "cat-1", contract.DataProcessing{
		Provider: "alice", Consumer: "bob", InfrastructureServices: infra("erin"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if next.CatalogID != "cat-1" || next.ID == first.ID {
		t.Fatalf("update = %+v", next)
	}

	all, _ := f.m.Processings(ctx, c.ID)
	if len(all) != 2 || all[0].Status != contract.ProcessingInactive || all[1].Status != contract.ProcessingActive {
		t.Fatalf("ledger = %+v", all)
	}

	active, err := f.m.ProcessingsFor(ctx, c.ID, "dave", false)
	if err != nil || len(active) != 0 {
		t.Fatalf("dave active = %v, %v", active, err)
	}
	history, _ := f.m.ProcessingsFor(ctx, c.ID, "dave", true)
	if len(history) != 1 || history[0].ID != first.ID {
		t.Fatalf("dave history = %+v", history)
	}
	erin, _ := f.m.ProcessingsFor(ctx, c.ID, "erin", false)
	if len(erin) != 1 {
		t.Fatalf("erin = %+v", erin)
	}

	deactivated, err := f.m.DeactivateProcessing(ctx, c.ID, next.ID)
	if err != nil || deactivated.Status != contract.ProcessingInactive {
		t.Fatalf("deactivate = %+v, %v", deactivated, err)
	}
	if _, err := f.m.DeactivateProcessing(ctx, c.ID, next.ID); !errors.Is(err, contract.ErrProcessingNotFound) {
		t.Fatalf("second deactivate = %v", err)
	}
	if _, err := f.m.UpdateProcessing(ctx, c.ID, "cat-1", contract.DataProcessing{}); !errors.Is(err, contract.ErrProcessingNotFound) {
		t.Fatalf("update without active record = %v", err)
	}

	if err := f.m.DeleteProcessing(ctx, c.ID, "cat-1", infra("dave")); err != nil {
		t.Fatal(err)
	}
	all, _ = f.m.Processings(ctx, c.ID)
	if len(all) != 1 || all[0].ID != next.ID {
		t.Fatalf("after delete = %+v", all)
	}
	if err := f.m.DeleteProcessing(ctx, c.ID, "cat-1", infra("dave")); !errors.Is(err, contract.ErrProcessingNotFound) {
		t.Fatalf("second delete = %v", err)
	}

	if _, err := f.m.ProcessingsFor(ctx, c.ID, "", false); !errors.Is(err, contract.ErrInvalidRequest) {
		t.Fatalf("empty participant = %v", err)
	}
}
