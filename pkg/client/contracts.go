package client

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gezibash/arc-contract/internal/contract"
	"github.com/gezibash/arc-contract/internal/lifecycle"
	"github.com/gezibash/arc-contract/internal/policy/compiler"
	"github.com/gezibash/arc-contract/internal/policy/pdp"
)

func encodeParticipant(p string) string {
	return base64.URLEncoding.EncodeToString([]byte(p))
}

type contractList struct {
	Contracts []*contract.Contract `json:"contracts"`
}

// Rules describes the rule catalog.
type Rules struct {
	Rules     []string            `json:"rules"`
	Templates []compiler.Template `json:"templates"`
}

// Health calls /healthcheck.
func (c *Client) Health(ctx context.Context) error {
	_, err := c.do(ctx, request{method: http.MethodGet, path: "/healthcheck"})
	return err
}

// Rules lists the rule catalog.
func (c *Client) Rules(ctx context.Context) (*Rules, error) {
	var out Rules
	if _, err := c.do(ctx, request{method: http.MethodGet, path: "/rules", out: &out}); err != nil {
		return nil, err
	}
	return &out, nil
}

// List returns contracts, filtered by status ("signed", "notRevoked", ...).
func (c *Client) List(ctx context.Context, status string, limit int) ([]*contract.Contract, error) {
	q := url.Values{}
	if status != "" {
		q.Set("status", status)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var out contractList
	if _, err := c.do(ctx, request{method: http.MethodGet, path: "/contracts/all", query: q, out: &out}); err != nil {
		return nil, err
	}
	return out.Contracts, nil
}

// ListFor returns a participant's contracts. signed nil means any.
func (c *Client) ListFor(ctx context.Context, participant string, signed *bool) ([]*contract.Contract, error) {
	q := url.Values{}
	if signed != nil {
		q.Set("hasSigned", strconv.FormatBool(*signed))
	}
	var out contractList
	path := "/contracts/for/" + encodeParticipant(participant)
	if _, err := c.do(ctx, request{method: http.MethodGet, path: path, query: q, out: &out}); err != nil {
		return nil, err
	}
	return out.Contracts, nil
}

func (c *Client) contractCall(ctx context.Context, method, path string, body any) (*contract.Contract, error) {
	var out contract.Contract
	if _, err := c.do(ctx, request{method: method, path: path, body: body, out: &out}); err != nil {
		return nil, err
	}
	return &out, nil
}

// Create creates a pending contract.
func (c *Client) Create(ctx context.Context, d contract.Draft) (*contract.Contract, error) {
	return c.contractCall(ctx, http.MethodPost, "/contracts", d)
}

// Get returns one contract.
func (c *Client) Get(ctx context.Context, id string) (*contract.Contract, error) {
	return c.contractCall(ctx, http.MethodGet, "/contracts/"+url.PathEscape(id), nil)
}

// Update patches descriptive fields.
func (c *Client) Update(ctx context.Context, id string, p contract.Patch) (*contract.Contract, error) {
	return c.contractCall(ctx, http.MethodPut, "/contracts/"+url.PathEscape(id), p)
}

// Delete removes a contract.
func (c *Client) Delete(ctx context.Context, id string) error {
	_, err := c.do(ctx, request{method: http.MethodDelete, path: "/contracts/" + url.PathEscape(id)})
	return err
}

// Purge deletes every contract with the given status ("revoked", or a
// negated form such as "notSigned") and returns how many were deleted.
func (c *Client) Purge(ctx context.Context, status string) (int, error) {
	var out struct {
		Deleted int `json:"deleted"`
	}
	_, err := c.do(ctx, request{
		method: http.MethodDelete,
		path:   "/contracts/all",
		query:  url.Values{"status": {status}},
		out:    &out,
	})
	return out.Deleted, err
}

// ODRL returns the contract as an ODRL agreement.
func (c *Client) ODRL(ctx context.Context, id string) (map[string]any, error) {
	var out map[string]any
	if _, err := c.do(ctx, request{method: http.MethodGet, path: "/contracts/odrl/" + url.PathEscape(id), out: &out}); err != nil {
		return nil, err
	}
	return out, nil
}

// Sign records a participant's signature.
func (c *Client) Sign(ctx context.Context, id, participant, signature, role string) (*contract.Contract, error) {
	body := map[string]string{"participant": participant, "signature": signature, "role": role}
	return c.contractCall(ctx, http.MethodPut, "/contracts/sign/"+url.PathEscape(id), body)
}

// Revoke revokes a participant's signature.
func (c *Client) Revoke(ctx context.Context, id, participant string) (*contract.Contract, error) {
	path := "/contracts/sign/revoke/" + url.PathEscape(id) + "/" + encodeParticipant(participant)
	return c.contractCall(ctx, http.MethodDelete, path, nil)
}

// CheckExploitation evaluates an exploitation. A denial is a decision, not
// an error.
func (c *Client) CheckExploitation(ctx context.Context, id string, req lifecycle.CheckRequest) (*pdp.Decision, error) {
	var out pdp.Decision
	_, err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/contracts/check-exploitability/" + url.PathEscape(id),
		body:   req,
		out:    &out,
		accept: []int{http.StatusForbidden},
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}
