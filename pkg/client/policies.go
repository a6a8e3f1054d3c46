package client

import (
	"context"
	"net/http"
	"net/url"

	"github.com/gezibash/arc-contract/internal/contract"
	"github.com/gezibash/arc-contract/internal/lifecycle"
	"github.com/gezibash/arc-contract/internal/policy"
	"github.com/gezibash/arc-contract/internal/policy/compiler"
)

// InjectPolicy adds one injection under its own role.
func (c *Client) InjectPolicy(ctx context.Context, id string, inj compiler.Injection) (*contract.Contract, error) {
	return c.contractCall(ctx, http.MethodPost, "/contracts/policy/"+url.PathEscape(id), inj)
}

// InjectFlat adds injections that each name their role.
func (c *Client) InjectFlat(ctx context.Context, id string, injs []compiler.Injection) (*contract.Contract, error) {
	return c.contractCall(ctx, http.MethodPost, "/contracts/policies/"+url.PathEscape(id), injs)
}

// InjectPolicies applies injections to lists of roles.
func (c *Client) InjectPolicies(ctx context.Context, id string, entries []lifecycle.RoleInjection) (*contract.Contract, error) {
	return c.contractCall(ctx, http.MethodPost, "/contracts/policies/roles/"+url.PathEscape(id), entries)
}

// InjectOfferingPolicies adds policies to a participant's service offering.
func (c *Client) InjectOfferingPolicies(ctx context.Context, id, participant, offering string, injs []compiler.Injection) (*contract.Contract, error) {
	body := struct {
		Participant     string               `json:"participant"`
		ServiceOffering string               `json:"serviceOffering"`
		Policies        []compiler.Injection `json:"policies"`
	}{participant, offering, injs}
	return c.contractCall(ctx, http.MethodPost, "/contracts/policies/offering/"+url.PathEscape(id), body)
}

func offeringQuery(participant, offering string) url.Values {
	return url.Values{"participant": {encodeParticipant(participant)}, "serviceOffering": {offering}}
}

// ClearOfferingPolicies empties an offering's policies.
func (c *Client) ClearOfferingPolicies(ctx context.Context, id, participant, offering string) (*contract.Contract, error) {
	var out contract.Contract
	_, err := c.do(ctx, request{
		method: http.MethodDelete,
		path:   "/contracts/policies/offering/" + url.PathEscape(id),
		query:  offeringQuery(participant, offering),
		out:    &out,
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// OfferingPolicies returns the bundles stored for an offering.
func (c *Client) OfferingPolicies(ctx context.Context, id, participant, offering string) ([]policy.Bundle, error) {
	var out struct {
		Policies []policy.Bundle `json:"policies"`
	}
	_, err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/contracts/policies/offering/" + url.PathEscape(id),
		query:  offeringQuery(participant, offering),
		out:    &out,
	})
	if err != nil {
		return nil, err
	}
	return out.Policies, nil
}

// RemoveOffering drops an offering from every contract and returns how many
// changed.
func (c *Client) RemoveOffering(ctx context.Context, offering string) (int, error) {
	var out struct {
		Modified int `json:"modified"`
	}
	_, err := c.do(ctx, request{method: http.MethodDelete, path: "/contracts/offerings/" + url.PathEscape(offering), out: &out})
	return out.Modified, err
}
