// Package contractstore persists contract aggregates on a physical backend.
// Documents are JSON encoded; the index fields backends filter on are
// derived from the aggregate at save time.
package contractstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/gezibash/arc-contract/internal/contract"
	"github.com/gezibash/arc-contract/internal/contractstore/physical"
	"github.com/gezibash/arc-contract/internal/observability"
	arcerrors "github.com/gezibash/arc-contract/pkg/errors"
)

var (
	// ErrVersionConflict indicates the contract changed since it was loaded.
	ErrVersionConflict = physical.ErrVersionConflict

	// ErrTimeout indicates the storage call ran past its deadline.
	ErrTimeout = arcerrors.New("storage timeout", arcerrors.ErrTimeout)
)

// Filter selects contracts. See physical.Filter.
type Filter = physical.Filter

// Store loads and saves contracts.
type Store struct {
	backend physical.Backend
	metrics *observability.Metrics
}

// New creates a Store on backend. metrics may be nil.
func New(backend physical.Backend, metrics *observability.Metrics) *Store {
	return &Store{backend: backend, metrics: metrics}
}

// Load returns the contract stored under id with Version set.
func (s *Store) Load(ctx context.Context, id string) (c *contract.Contract, err error) {
	op, ctx := observability.StartOperation(ctx, s.metrics, "contractstore.load", observability.ContractID(id))
	defer func() { op.End(err) }()

	doc, err := s.backend.Get(ctx, id)
	if errors.Is(err, physical.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", contract.ErrContractNotFound, id)
	}
	if err != nil {
		return nil, mapErr("load contract", err)
	}
	return decode(doc)
}

// Save writes c if the stored version equals expectedVersion (0 creates).
// On success c.Version holds the new version.
func (s *Store) Save(ctx context.Context, c *contract.Contract, expectedVersion int64) (err error) {
	op, ctx := observability.StartOperation(ctx, s.metrics, "contractstore.save", observability.ContractID(c.ID))
	defer func() { op.End(err) }()

	doc, err := encode(c, expectedVersion+1)
	if err != nil {
		return err
	}
	if err = s.backend.Put(ctx, doc, expectedVersion); err != nil {
		return mapErr("save contract", err)
	}
	c.Version = doc.Version

	slog.DebugContext(ctx, "contract saved", "contract_id", c.ID, "version", c.Version, "status", c.Status)
	return nil
}

// Find returns the contracts matching f, ordered by id.
func (s *Store) Find(ctx context.Context, f *Filter) (out []*contract.Contract, err error) {
	op, ctx := observability.StartOperation(ctx, s.metrics, "contractstore.find")
	defer func() { op.End(err) }()

	docs, err := s.backend.Find(ctx, f)
	if err != nil {
		return nil, mapErr("find contracts", err)
	}
	out = make([]*contract.Contract, 0, len(docs))
	for _, doc := range docs {
		c, err := decode(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// Delete removes the contract stored under id.
func (s *Store) Delete(ctx context.Context, id string) (err error) {
	op, ctx := observability.StartOperation(ctx, s.metrics, "contractstore.delete", observability.ContractID(id))
	defer func() { op.End(err) }()

	err = s.backend.Delete(ctx, id)
	if errors.Is(err, physical.ErrNotFound) {
		return fmt.Errorf("%w: %s", contract.ErrContractNotFound, id)
	}
	if err != nil {
		return mapErr("delete contract", err)
	}
	return nil
}

// DeleteMany removes every contract matching f and returns how many were
// deleted. Contracts removed concurrently are not counted.
func (s *Store) DeleteMany(ctx context.Context, f *Filter) (n int, err error) {
	op, ctx := observability.StartOperation(ctx, s.metrics, "contractstore.delete_many")
	defer func() { op.End(err) }()

	docs, err := s.backend.Find(ctx, f)
	if err != nil {
		return 0, mapErr("delete contracts", err)
	}
	for _, doc := range docs {
		err := s.backend.Delete(ctx, doc.ID)
		if errors.Is(err, physical.ErrNotFound) {
			continue
		}
		if err != nil {
			return n, mapErr("delete contracts", err)
		}
		n++
	}
	return n, nil
}

// Stats returns backend statistics.
func (s *Store) Stats(ctx context.Context) (stats *physical.Stats, err error) {
	op, ctx := observability.StartOperation(ctx, s.metrics, "contractstore.stats")
	defer func() { op.End(err) }()

	stats, err = s.backend.Stats(ctx)
	if err != nil {
		return nil, mapErr("contract stats", err)
	}
	return stats, nil
}

// Close releases the backend.
func (s *Store) Close() error {
	slog.Info("closing contractstore")
	return s.backend.Close()
}

func mapErr(what string, err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w", what, ErrTimeout)
	case errors.Is(err, physical.ErrVersionConflict):
		return ErrVersionConflict
	default:
		return fmt.Errorf("%s: %w", what, err)
	}
}

// Index derives the backend index fields from c.
func Index(c *contract.Contract) physical.Index {
	participants := c.ActiveParticipants()
	add := func(p string) {
		if !slices.Contains(participants, p) {
			participants = append(participants, p)
		}
	}
	for _, m := range c.RevokedMembers {
		add(m.Participant)
	}
	for _, so := range c.ServiceOfferings {
		add(so.Participant)
	}
	return physical.Index{
		Status:       string(c.Status),
		Members:      c.ActiveParticipants(),
		Participants: participants,
		Offerings:    c.OfferingIDs(),
	}
}

func encode(c *contract.Contract, version int64) (*physical.Document, error) {
	stored := *c
	stored.Version = version
	data, err := json.Marshal(&stored)
	if err != nil {
		return nil, fmt.Errorf("encode contract %s: %w", c.ID, err)
	}
	return &physical.Document{
		ID:        c.ID,
		Data:      data,
		Index:     Index(c),
		UpdatedAt: c.UpdatedAt,
	}, nil
}

func decode(doc *physical.Document) (*contract.Contract, error) {
	var c contract.Contract
	if err := json.Unmarshal(doc.Data, &c); err != nil {
		return nil, fmt.Errorf("decode contract %s: %w", doc.ID, err)
	}
	c.Version = doc.Version
	return &c, nil
}
