package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gezibash/arc-contract/internal/contract"
	"github.com/gezibash/arc-contract/internal/httpapi/apitest"
	"github.com/gezibash/arc-contract/internal/lifecycle"
	"github.com/gezibash/arc-contract/internal/policy/compiler"
	"github.com/gezibash/arc-contract/internal/policy/pdp"
	arcerrors "github.com/gezibash/arc-contract/pkg/errors"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	srv := apitest.NewServer(t)
	c, err := New(srv.URL, WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestNewValidatesURL(t *testing.T) {
	for _, raw := range []string{"localhost:3000", "ftp://x", "::"} {
		if _, err := New(raw); err == nil {
			t.Errorf("New(%q) should fail", raw)
		}
	}
	if _, err := New("http://localhost:3000/"); err != nil {
		t.Errorf("New(valid) = %v", err)
	}
}

func TestContractRoundTrip(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	if err := c.Health(ctx); err != nil {
		t.Fatalf("Health: %v", err)
	}

	ct, err := c.Create(ctx, contract.Draft{Ecosystem: "eco", Orchestrator: "did:web:orch"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := c.Sign(ctx, ct.ID, "did:web:orch", "sig-o", contract.RoleOrchestrator); err != nil {
		t.Fatalf("Sign orch: %v", err)
	}
	signed, err := c.Sign(ctx, ct.ID, "did:web:alice/with/slashes", "sig-a", "consumer")
	if err != nil {
		t.Fatalf("Sign alice: %v", err)
	}
	if signed.Status != contract.StatusSigned {
		t.Fatalf("status = %s", signed.Status)
	}

	yes := true
	mine, err := c.ListFor(ctx, "did:web:alice/with/slashes", &yes)
	if err != nil || len(mine) != 1 {
		t.Fatalf("ListFor = %v, %v", mine, err)
	}
	all, err := c.List(ctx, "notRevoked", 0)
	if err != nil || len(all) != 1 {
		t.Fatalf("List = %v, %v", all, err)
	}

	revoked, err := c.Revoke(ctx, ct.ID, "did:web:alice/with/slashes")
	if err != nil || revoked.Status != contract.StatusRevoked {
		t.Fatalf("Revoke = %+v, %v", revoked, err)
	}

	if err := c.Delete(ctx, ct.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	_, err = c.Get(ctx, ct.ID)
	if !errors.Is(err, arcerrors.ErrNotFound) {
		t.Fatalf("Get deleted = %v", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusNotFound || apiErr.Code != "not_found" {
		t.Fatalf("api error = %#v", err)
	}
}

func TestErrorsMapToSentinels(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	if _, err := c.Create(ctx, contract.Draft{}); !errors.Is(err, arcerrors.ErrInvalidInput) {
		t.Fatalf("invalid create = %v", err)
	}
	if _, err := c.List(ctx, "archived", 0); !errors.Is(err, arcerrors.ErrInvalidInput) {
		t.Fatalf("invalid status = %v", err)
	}

	ct, _ := c.Create(ctx, contract.Draft{Ecosystem: "eco"})
	if _, err := c.Sign(ctx, ct.ID, "alice", "s", "consumer"); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Revoke(ctx, ct.ID, "alice"); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Sign(ctx, ct.ID, "alice", "s2", ""); !errors.Is(err, arcerrors.ErrAlreadyExists) {
		t.Fatalf("re-sign revoked = %v", err)
	}

	if _, err := c.Purge(ctx, ""); !errors.Is(err, arcerrors.ErrInvalidInput) {
		t.Fatalf("purge without status = %v", err)
	}
	if n, err := c.Purge(ctx, "revoked"); err != nil || n != 1 {
		t.Fatalf("Purge = %d, %v", n, err)
	}
	if _, err := c.Get(ctx, ct.ID); !errors.Is(err, arcerrors.ErrNotFound) {
		t.Fatalf("get purged = %v", err)
	}
}

func TestPoliciesAndCheck(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	ct, _ := c.Create(ctx, contract.Draft{Ecosystem: "eco"})

	if _, err := c.InjectPolicy(ctx, ct.ID, compiler.Injection{
		RuleID: "rule-access-1", Values: map[string]any{"target": "dataset"}, Role: "consumer",
	}); err != nil {
		t.Fatalf("InjectPolicy: %v", err)
	}
	if _, err := c.InjectPolicies(ctx, ct.ID, []lifecycle.RoleInjection{{
		Roles:      []string{"provider"},
		Injections: []compiler.Injection{{RuleID: "rule-prohibition-1", Values: map[string]any{"action": "use", "target": "dataset"}}},
	}}); err != nil {
		t.Fatalf("InjectPolicies: %v", err)
	}

	d, err := c.CheckExploitation(ctx, ct.ID, lifecycle.CheckRequest{Role: "consumer", Request: pdp.Request{Action: "use", Target: "dataset"}})
	if err != nil || !d.Authorized {
		t.Fatalf("consumer check = %+v, %v", d, err)
	}
	d, err = c.CheckExploitation(ctx, ct.ID, lifecycle.CheckRequest{Role: "provider", Request: pdp.Request{Action: "use", Target: "dataset"}})
	if err != nil || d.Authorized || d.Effect != pdp.EffectProhibit {
		t.Fatalf("provider check = %+v, %v", d, err)
	}

	if _, err := c.InjectOfferingPolicies(ctx, ct.ID, "alice", "so1", []compiler.Injection{
		{RuleID: "rule-access-1", Values: map[string]any{"target": "so1"}},
	}); err != nil {
		t.Fatalf("InjectOfferingPolicies: %v", err)
	}
	bundles, err := c.OfferingPolicies(ctx, ct.ID, "alice", "so1")
	if err != nil || len(bundles) != 1 {
		t.Fatalf("OfferingPolicies = %v, %v", bundles, err)
	}
	if _, err := c.ClearOfferingPolicies(ctx, ct.ID, "alice", "so1"); err != nil {
		t.Fatalf("ClearOfferingPolicies: %v", err)
	}
	n, err := c.RemoveOffering(ctx, "so1")
	if err != nil || n != 1 {
		t.Fatalf("RemoveOffering = %d, %v", n, err)
	}

	odrl, err := c.ODRL(ctx, ct.ID)
	if err != nil || odrl["uid"] != ct.ID {
		t.Fatalf("ODRL = %v, %v", odrl, err)
	}
	rules, err := c.Rules(ctx)
	if err != nil || len(rules.Rules) == 0 {
		t.Fatalf("Rules = %+v, %v", rules, err)
	}
}

func TestProcessings(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	ct, _ := c.Create(ctx, contract.Draft{Ecosystem: "eco"})
	infra := []contract.InfrastructureService{{Participant: "did:web:dave", ServiceOffering: "so-d"}}

	stored, err := c.InsertProcessings(ctx, ct.ID, []contract.DataProcessing{
		{CatalogID: "cat-1", Provider: "alice", Consumer: "bob", InfrastructureServices: infra},
	})
	if err != nil || len(stored) != 1 {
		t.Fatalf("InsertProcessings = %v, %v", stored, err)
	}
	next, err := c.UpdateProcessing(ctx, ct.ID, "cat-1", contract.DataProcessing{Provider: "alice", Consumer: "carol"})
	if err != nil {
		t.Fatalf("UpdateProcessing: %v", err)
	}
	hist, err := c.ProcessingsFor(ctx, ct.ID, "did:web:dave", true)
	if err != nil || len(hist) != 1 || hist[0].ID != stored[0].ID {
		t.Fatalf("ProcessingsFor = %v, %v", hist, err)
	}
	if _, err := c.DeactivateProcessing(ctx, ct.ID, next.ID); err != nil {
		t.Fatalf("DeactivateProcessing: %v", err)
	}
	if err := c.DeleteProcessing(ctx, ct.ID, "cat-1", infra); err != nil {
		t.Fatalf("DeleteProcessing: %v", err)
	}
	all, err := c.Processings(ctx, ct.ID)
	if err != nil || len(all) != 1 {
		t.Fatalf("Processings = %v, %v", all, err)
	}
}

func TestAPIErrorWithoutEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	err = c.Health(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusBadGateway || apiErr.Code != "" {
		t.Fatalf("err = %#v", err)
	}
	if errors.Unwrap(err) != nil {
		t.Fatalf("unclassified error unwraps to %v", errors.Unwrap(err))
	}
}
