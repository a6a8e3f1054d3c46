package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gezibash/arc-contract/internal/contract"
)

type processingList struct {
	Processings []contract.DataProcessing `json:"processings"`
}

func processingsPath(id string) string {
	return "/contracts/" + url.PathEscape(id) + "/processings"
}

// Processings lists a contract's ledger.
func (c *Client) Processings(ctx context.Context, id string) ([]contract.DataProcessing, error) {
	var out processingList
	if _, err := c.do(ctx, request{method: http.MethodGet, path: processingsPath(id), out: &out}); err != nil {
		return nil, err
	}
	return out.Processings, nil
}

// InsertProcessings appends records; either all are stored or none.
func (c *Client) InsertProcessings(ctx context.Context, id string, recs []contract.DataProcessing) ([]contract.DataProcessing, error) {
	var out processingList
	if _, err := c.do(ctx, request{method: http.MethodPost, path: processingsPath(id), body: recs, out: &out}); err != nil {
		return nil, err
	}
	return out.Processings, nil
}

// ProcessingsFor lists the records referencing a participant.
func (c *Client) ProcessingsFor(ctx context.Context, id, participant string, includeInactive bool) ([]contract.DataProcessing, error) {
	q := url.Values{
		"participant":     {encodeParticipant(participant)},
		"includeInactive": {strconv.FormatBool(includeInactive)},
	}
	var out processingList
	if _, err := c.do(ctx, request{method: http.MethodGet, path: processingsPath(id) + "/participant", query: q, out: &out}); err != nil {
		return nil, err
	}
	return out.Processings, nil
}

// UpdateProcessing supersedes the active record for catalogID.
func (c *Client) UpdateProcessing(ctx context.Context, id, catalogID string, rec contract.DataProcessing) (*contract.DataProcessing, error) {
	var out contract.DataProcessing
	path := processingsPath(id) + "/update/" + url.PathEscape(catalogID)
	if _, err := c.do(ctx, request{method: http.MethodPut, path: path, body: rec, out: &out}); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeactivateProcessing marks a record inactive.
func (c *Client) DeactivateProcessing(ctx context.Context, id, recordID string) (*contract.DataProcessing, error) {
	var out contract.DataProcessing
	path := processingsPath(id) + "/deactivate/" + url.PathEscape(recordID)
	if _, err := c.do(ctx, request{method: http.MethodPut, path: path, out: &out}); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteProcessing removes the records with catalogID and exactly infra.
func (c *Client) DeleteProcessing(ctx context.Context, id, catalogID string, infra []contract.InfrastructureService) error {
	body := struct {
		CatalogID              string                           `json:"catalogId"`
		InfrastructureServices []contract.InfrastructureService `json:"infrastructureServices"`
	}{catalogID, infra}
	_, err := c.do(ctx, request{method: http.MethodDelete, path: processingsPath(id), body: body})
	return err
}
