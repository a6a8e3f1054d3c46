package contract

import (
	"errors"
	"testing"

	"github.com/gezibash/arc-contract/internal/contract"
	arcerrors "github.com/gezibash/arc-contract/pkg/errors"
)

func TestCreateSignRevoke(t *testing.T) {
	v := newTestViper(t)

	out, err := execute(t, v, "create", "--ecosystem", "eco", "--orchestrator", "orch")
	if err != nil {
		t.Fatal(err)
	}
	created := data[contract.Contract](t, out)
	if created.ID != "c-1" || created.Status != contract.StatusPending {
		t.Fatalf("created = %+v", created)
	}

	if _, err := execute(t, v, "sign", "c-1", "--participant", "orch", "--signature", "sig", "--role", contract.RoleOrchestrator); err != nil {
		t.Fatal(err)
	}
	out, err = execute(t, v, "sign", "c-1", "--participant", "alice", "--signature", "sig-a", "--role", "consumer")
	if err != nil {
		t.Fatal(err)
	}
	if got := data[contract.Contract](t, out); got.Status != contract.StatusSigned {
		t.Fatalf("after sign = %+v", got)
	}

	out, err = execute(t, v, "list", "--status", "signed")
	if err != nil {
		t.Fatal(err)
	}
	if rows := data[[]map[string]string](t, out); len(rows) != 1 || rows[0]["id"] != "c-1" {
		t.Fatalf("list = %+v", rows)
	}

	out, err = execute(t, v, "list", "--participant", "orch", "--signed", "true")
	if err != nil {
		t.Fatal(err)
	}
	if rows := data[[]map[string]string](t, out); len(rows) != 1 {
		t.Fatalf("list for = %+v", rows)
	}

	out, err = execute(t, v, "revoke", "c-1", "--participant", "alice")
	if err != nil {
		t.Fatal(err)
	}
	if got := data[contract.Contract](t, out); got.Status != contract.StatusRevoked {
		t.Fatalf("after revoke = %+v", got)
	}
}

func TestCreateFromDraftDocument(t *testing.T) {
	v := newTestViper(t)

	out, err := execute(t, v, "create", `{"ecosystem":"from-json","profile":"p"}`, "--orchestrator", "orch")
	if err != nil {
		t.Fatal(err)
	}
	got := data[contract.Contract](t, out)
	if got.Ecosystem != "from-json" || got.Orchestrator != "orch" || got.Profile != "p" {
		t.Fatalf("created = %+v", got)
	}
}

func TestGetUpdateDelete(t *testing.T) {
	v := newTestViper(t)
	if _, err := execute(t, v, "create", "--ecosystem", "eco"); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, v, "update", "c-1", "--profile", "gold")
	if err != nil {
		t.Fatal(err)
	}
	if got := data[contract.Contract](t, out); got.Profile != "gold" || got.Ecosystem != "eco" {
		t.Fatalf("updated = %+v", got)
	}

	if _, err := execute(t, v, "update", "c-1"); err == nil {
		t.Fatal("update without flags should fail")
	}

	out, err = execute(t, v, "delete", "c-1")
	if err != nil {
		t.Fatal(err)
	}
	if res := data[map[string]any](t, out); res["id"] != "c-1" {
		t.Fatalf("delete = %+v", res)
	}

	_, err = execute(t, v, "get", "c-1")
	if !errors.Is(err, arcerrors.ErrNotFound) {
		t.Fatalf("get deleted = %v", err)
	}
}

func TestODRL(t *testing.T) {
	v := newTestViper(t)
	if _, err := execute(t, v, "create", "--ecosystem", "eco", "--orchestrator", "orch"); err != nil {
		t.Fatal(err)
	}
	out, err := execute(t, v, "odrl", "c-1")
	if err != nil {
		t.Fatal(err)
	}
	doc := data[map[string]any](t, out)
	if doc["@type"] != "Agreement" || doc["uid"] != "c-1" || doc["assigner"] != "orch" {
		t.Fatalf("odrl = %+v", doc)
	}
}

func TestListSignedRequiresParticipant(t *testing.T) {
	v := newTestViper(t)
	if _, err := execute(t, v, "sign", "c-1", "--participant", "orch"); err == nil {
		t.Fatal("sign without signature and role should fail")
	}
	if _, err := execute(t, v, "list", "--signed", "true"); err == nil {
		t.Fatal("expected error")
	}
	if _, err := execute(t, v, "list", "--participant", "p", "--signed", "maybe"); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestPurge(t *testing.T) {
	v := newTestViper(t)
	for range 2 {
		if _, err := execute(t, v, "create", "--ecosystem", "eco"); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := execute(t, v, "sign", "c-1", "--participant", "alice", "--signature", "s", "--role", "consumer"); err != nil {
		t.Fatal(err)
	}
	if _, err := execute(t, v, "revoke", "c-1", "--participant", "alice"); err != nil {
		t.Fatal(err)
	}

	if _, err := execute(t, v, "purge"); err == nil {
		t.Fatal("purge without --status should fail")
	}
	out, err := execute(t, v, "purge", "--status", "revoked")
	if err != nil {
		t.Fatal(err)
	}
	if res := data[map[string]any](t, out); res["deleted"] != float64(1) || res["status"] != "revoked" {
		t.Fatalf("purge = %+v", res)
	}
	if _, err := execute(t, v, "get", "c-1"); !errors.Is(err, arcerrors.ErrNotFound) {
		t.Fatalf("get purged = %v", err)
	}
	if _, err := execute(t, v, "get", "c-2"); err != nil {
		t.Fatalf("get kept = %v", err)
	}
}
