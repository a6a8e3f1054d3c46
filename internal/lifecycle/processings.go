package lifecycle

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gezibash/arc-contract/internal/contract"
	"github.com/gezibash/arc-contract/internal/observability"
)

// Processings returns every ledger record of a contract, active or not.
func (m *Manager) Processings(ctx context.Context, id string) (out []contract.DataProcessing, err error) {
	op, ctx := observability.StartOperation(ctx, m.metrics, "lifecycle.processings", observability.ContractID(id))
	defer func() { op.End(err) }()

	c, err := m.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return c.DataProcessings, nil
}

// InsertProcessings appends records in one save. If any record is rejected
// none are stored.
func (m *Manager) InsertProcessings(ctx context.Context, id string, recs []contract.DataProcessing) (out []contract.DataProcessing, err error) {
	op, ctx := observability.StartOperation(ctx, m.metrics, "lifecycle.insert_processings", observability.ContractID(id))
	defer func() { op.End(err) }()

	if len(recs) == 0 {
		return nil, fmt.Errorf("%w: no processings", contract.ErrInvalidRequest)
	}
	_, err = m.mutate(ctx, "lifecycle.insert_processings", id, func(c *contract.Contract) error {
		out = out[:0]
		at := m.now()
		for _, rec := range recs {
			stored, err := c.InsertProcessing(rec, m.opts.NewID(), at)
			if err != nil {
				return err
			}
			out = append(out, stored)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "processings inserted", "contract_id", id, "count", len(out))
	return out, nil
}

// UpdateProcessing supersedes the active record for catalogID with rec.
func (m *Manager) UpdateProcessing(ctx context.Context, id, catalogID string, rec contract.DataProcessing) (out contract.DataProcessing, err error) {
	op, ctx := observability.StartOperation(ctx, m.metrics, "lifecycle.update_processing", observability.ContractID(id))
	defer func() { op.End(err) }()

	_, err = m.mutate(ctx, "lifecycle.update_processing", id, func(c *contract.Contract) error {
		var err error
		out, err = c.UpdateProcessing(catalogID, rec, m.opts.NewID(), m.now())
		return err
	})
	if err != nil {
		return contract.DataProcessing{}, err
	}
	return out, nil
}

// DeactivateProcessing marks the active record recordID inactive and
// returns it.
func (m *Manager) DeactivateProcessing(ctx context.Context, id, recordID string) (out contract.DataProcessing, err error) {
	op, ctx := observability.StartOperation(ctx, m.metrics, "lifecycle.deactivate_processing", observability.ContractID(id))
	defer func() { op.End(err) }()

	c, err := m.mutate(ctx, "lifecycle.deactivate_processing", id, func(c *contract.Contract) error {
		return c.DeactivateProcessing(recordID)
	})
	if err != nil {
		return contract.DataProcessing{}, err
	}
	for _, d := range c.DataProcessings {
		if d.ID == recordID {
			return d, nil
		}
	}
	return contract.DataProcessing{}, fmt.Errorf("%w: %s", contract.ErrProcessingNotFound, recordID)
}

// DeleteProcessing hard-deletes records with catalogID and exactly the
// given infrastructure chain.
func (m *Manager) DeleteProcessing(ctx context.Context, id, catalogID string, infra []contract.InfrastructureService) (err error) {
	op, ctx := observability.StartOperation(ctx, m.metrics, "lifecycle.delete_processing", observability.ContractID(id))
	defer func() { op.End(err) }()

	_, err = m.mutate(ctx, "lifecycle.delete_processing", id, func(c *contract.Contract) error {
		return c.DeleteProcessing(catalogID, infra)
	})
	return err
}

// ProcessingsFor returns the records of a contract that reference participant.
func (m *Manager) ProcessingsFor(ctx context.Context, id, participant string, includeInactive bool) (out []contract.DataProcessing, err error) {
	op, ctx := observability.StartOperation(ctx, m.metrics, "lifecycle.processings_for",
		observability.ContractID(id), observability.Participant(participant))
	defer func() { op.End(err) }()

	if participant == "" {
		return nil, fmt.Errorf("%w: participant is required", contract.ErrInvalidRequest)
	}
	c, err := m.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return c.ProcessingsFor(participant, includeInactive), nil
}
