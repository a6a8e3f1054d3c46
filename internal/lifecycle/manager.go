// Package lifecycle applies contract operations against the store. Every
// mutation loads the contract, applies the change to a clone and saves it
// conditionally on the loaded version, retrying on conflicts; a failed
// operation persists nothing.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/gezibash/arc-contract/internal/contract"
	"github.com/gezibash/arc-contract/internal/contractstore"
	"github.com/gezibash/arc-contract/internal/observability"
	"github.com/gezibash/arc-contract/internal/policy"
	"github.com/gezibash/arc-contract/internal/policy/compiler"
	"github.com/gezibash/arc-contract/internal/policy/pdp"
	arcerrors "github.com/gezibash/arc-contract/pkg/errors"
)

var (
	// ErrConcurrentModification indicates the retry budget ran out while
	// other writers kept changing the contract.
	ErrConcurrentModification = arcerrors.New("concurrent modification", arcerrors.ErrConflict)

	// ErrTimeout indicates the operation ran past its deadline.
	ErrTimeout = arcerrors.New("operation timed out", arcerrors.ErrTimeout)
)

// errUnchanged lets a mutation report that nothing needs saving.
var errUnchanged = errors.New("unchanged")

// Store is the persistence the manager needs.
type Store interface {
	Load(ctx context.Context, id string) (*contract.Contract, error)
	Save(ctx context.Context, c *contract.Contract, expectedVersion int64) error
	Find(ctx context.Context, f *contractstore.Filter) ([]*contract.Contract, error)
	Delete(ctx context.Context, id string) error
	DeleteMany(ctx context.Context, f *contractstore.Filter) (int, error)
}

// Options tunes the manager.
type Options struct {
	// MaxRetries is how many times a mutation is retried after a version
	// conflict.
	MaxRetries int
	// OperationTimeout bounds each operation. Zero disables it.
	OperationTimeout time.Duration
	// Concurrency bounds the fan-out of multi-contract operations.
	Concurrency int

	Now   func() time.Time
	NewID func() string
}

// DefaultOptions returns the options used when none are configured.
func DefaultOptions() Options {
	return Options{
		MaxRetries:       5,
		OperationTimeout: 10 * time.Second,
		Concurrency:      8,
	}
}

// Manager runs contract operations.
type Manager struct {
	store     Store
	catalog   *compiler.Catalog
	evaluator *pdp.Evaluator
	metrics   *observability.Metrics
	opts      Options
}

// New creates a manager. metrics may be nil.
func New(store Store, catalog *compiler.Catalog, evaluator *pdp.Evaluator, metrics *observability.Metrics, opts Options) *Manager {
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	return &Manager{
		store:     store,
		catalog:   catalog,
		evaluator: evaluator,
		metrics:   metrics,
		opts:      opts,
	}
}

// Catalog returns the policy template catalog.
func (m *Manager) Catalog() *compiler.Catalog { return m.catalog }

func (m *Manager) now() time.Time { return m.opts.Now().UTC() }

func (m *Manager) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.opts.OperationTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, m.opts.OperationTimeout)
}

// timeoutErr classifies a deadline hit by the operation's own context.
func timeoutErr(ctx context.Context, err error) error {
	if err == nil || errors.Is(err, arcerrors.ErrTimeout) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return err
}

// mutate loads id, applies fn to a clone and saves it conditionally,
// retrying from the load on version conflicts. If fn returns errUnchanged
// the loaded contract is returned without saving.
func (m *Manager) mutate(ctx context.Context, name, id string, fn func(c *contract.Contract) error) (*contract.Contract, error) {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	for attempt := 0; ; attempt++ {
		cur, err := m.store.Load(ctx, id)
		if err != nil {
			return nil, timeoutErr(ctx, err)
		}

		next := cur.Clone()
		if err := fn(next); err != nil {
			if errors.Is(err, errUnchanged) {
				return cur, nil
			}
			return nil, err
		}
		next.UpdatedAt = m.now()

		err = m.store.Save(ctx, next, cur.Version)
		if err == nil {
			return next, nil
		}
		if !errors.Is(err, contractstore.ErrVersionConflict) {
			return nil, timeoutErr(ctx, err)
		}

		m.metrics.RecordConflict(name)
		if attempt >= m.opts.MaxRetries {
			return nil, fmt.Errorf("%w: contract %s after %d attempts", ErrConcurrentModification, id, attempt+1)
		}
		slog.DebugContext(ctx, "version conflict, retrying", "operation", name, "contract_id", id, "attempt", attempt+1)
	}
}

func (m *Manager) load(ctx context.Context, id string) (*contract.Contract, error) {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()
	c, err := m.store.Load(ctx, id)
	return c, timeoutErr(ctx, err)
}

func (m *Manager) find(ctx context.Context, f *contractstore.Filter) ([]*contract.Contract, error) {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()
	out, err := m.store.Find(ctx, f)
	return out, timeoutErr(ctx, err)
}

// Create stores a new pending contract built from d.
func (m *Manager) Create(ctx context.Context, d contract.Draft) (c *contract.Contract, err error) {
	op, ctx := observability.StartOperation(ctx, m.metrics, "lifecycle.create")
	defer func() { op.End(err) }()

	c, err = contract.New(m.opts.NewID(), d, m.now())
	if err != nil {
		return nil, err
	}

	ctx, cancel := m.withTimeout(ctx)
	defer cancel()
	if err = m.store.Save(ctx, c, 0); err != nil {
		return nil, timeoutErr(ctx, err)
	}

	slog.InfoContext(ctx, "contract created", "contract_id", c.ID, "ecosystem", c.Ecosystem)
	return c, nil
}

// Get returns one contract.
func (m *Manager) Get(ctx context.Context, id string) (c *contract.Contract, err error) {
	op, ctx := observability.StartOperation(ctx, m.metrics, "lifecycle.get", observability.ContractID(id))
	defer func() { op.End(err) }()

	return m.load(ctx, id)
}

// ListOptions filters List.
type ListOptions struct {
	// Status selects one status. A "not" prefix ("notSigned") excludes it
	// instead. Empty lists everything.
	Status string
	Limit  int
}

func (o ListOptions) filter() (*contractstore.Filter, error) {
	f := &contractstore.Filter{Limit: o.Limit}
	if o.Status == "" {
		return f, nil
	}
	s := strings.ToLower(o.Status)
	exclude := false
	if rest, ok := strings.CutPrefix(s, "not"); ok {
		s, exclude = rest, true
	}
	if !contract.Status(s).Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", contract.ErrInvalidRequest, o.Status)
	}
	if exclude {
		f.ExcludeStatus = s
	} else {
		f.Status = s
	}
	return f, nil
}

// List returns contracts ordered by id.
func (m *Manager) List(ctx context.Context, opts ListOptions) (out []*contract.Contract, err error) {
	op, ctx := observability.StartOperation(ctx, m.metrics, "lifecycle.list")
	defer func() { op.End(err) }()

	f, err := opts.filter()
	if err != nil {
		return nil, err
	}
	return m.find(ctx, f)
}

// ListFor returns the contracts of a participant. With signed set, only
// contracts where the participant is (true) or is not (false) an active
// member; with signed nil, every contract that references the participant.
func (m *Manager) ListFor(ctx context.Context, participant string, signed *bool) (out []*contract.Contract, err error) {
	op, ctx := observability.StartOperation(ctx, m.metrics, "lifecycle.list_for", observability.Participant(participant))
	defer func() { op.End(err) }()

	if participant == "" {
		return nil, fmt.Errorf("%w: participant is required", contract.ErrInvalidRequest)
	}
	return m.find(ctx, &contractstore.Filter{Participant: participant, Member: signed})
}

// Update changes descriptive fields.
func (m *Manager) Update(ctx context.Context, id string, p contract.Patch) (c *contract.Contract, err error) {
	op, ctx := observability.StartOperation(ctx, m.metrics, "lifecycle.update", observability.ContractID(id))
	defer func() { op.End(err) }()

	return m.mutate(ctx, "lifecycle.update", id, func(c *contract.Contract) error {
		return c.Apply(p)
	})
}

// Delete removes a contract.
func (m *Manager) Delete(ctx context.Context, id string) (err error) {
	op, ctx := observability.StartOperation(ctx, m.metrics, "lifecycle.delete", observability.ContractID(id))
	defer func() { op.End(err) }()

	ctx, cancel := m.withTimeout(ctx)
	defer cancel()
	if err = m.store.Delete(ctx, id); err != nil {
		return timeoutErr(ctx, err)
	}
	slog.InfoContext(ctx, "contract deleted", "contract_id", id)
	return nil
}

// Purge deletes every contract selected by status, which takes the same
// values as ListOptions.Status and must be set.
func (m *Manager) Purge(ctx context.Context, status string) (n int, err error) {
	op, ctx := observability.StartOperation(ctx, m.metrics, "lifecycle.purge")
	defer func() { op.End(err) }()

	if status == "" {
		return 0, fmt.Errorf("%w: status is required to purge", contract.ErrInvalidRequest)
	}
	f, err := ListOptions{Status: status}.filter()
	if err != nil {
		return 0, err
	}
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()
	if n, err = m.store.DeleteMany(ctx, f); err != nil {
		return n, timeoutErr(ctx, err)
	}
	slog.InfoContext(ctx, "contracts purged", "status", status, "count", n)
	return n, nil
}

// Sign records participant's signature. role is required for a new member
// and ignored when the participant already signed.
func (m *Manager) Sign(ctx context.Context, id, participant, signature, role string) (c *contract.Contract, err error) {
	op, ctx := observability.StartOperation(ctx, m.metrics, "lifecycle.sign",
		observability.ContractID(id), observability.Participant(participant))
	defer func() { op.End(err) }()

	c, err = m.mutate(ctx, "lifecycle.sign", id, func(c *contract.Contract) error {
		return c.AddOrUpdateMember(participant, role, signature, m.now())
	})
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "contract signed", "contract_id", id, "participant", participant, "status", c.Status)
	return c, nil
}

// Revoke moves participant to the revoked members.
func (m *Manager) Revoke(ctx context.Context, id, participant string) (c *contract.Contract, err error) {
	op, ctx := observability.StartOperation(ctx, m.metrics, "lifecycle.revoke",
		observability.ContractID(id), observability.Participant(participant))
	defer func() { op.End(err) }()

	c, err = m.mutate(ctx, "lifecycle.revoke", id, func(c *contract.Contract) error {
		return c.RevokeMember(participant)
	})
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "signature revoked", "contract_id", id, "participant", participant)
	return c, nil
}

// RoleInjection applies Injections to every role in Roles.
type RoleInjection struct {
	Roles      []string             `json:"roles"`
	Injections []compiler.Injection `json:"policies"`
}

type compiledInjection struct {
	roles   []string
	bundles []policy.Bundle
}

// InjectPolicies compiles every injection, then appends the bundles to each
// listed role in one save. A compile failure changes nothing.
func (m *Manager) InjectPolicies(ctx context.Context, id string, entries []RoleInjection) (c *contract.Contract, err error) {
	op, ctx := observability.StartOperation(ctx, m.metrics, "lifecycle.inject_policies", observability.ContractID(id))
	defer func() { op.End(err) }()

	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: no injections", contract.ErrInvalidRequest)
	}
	compiled := make([]compiledInjection, len(entries))
	for i, e := range entries {
		if len(e.Roles) == 0 {
			return nil, fmt.Errorf("%w: roles cannot be empty", contract.ErrInvalidRequest)
		}
		bundles, err := m.catalog.CompileAll(e.Injections)
		if err != nil {
			return nil, err
		}
		compiled[i] = compiledInjection{roles: e.Roles, bundles: bundles}
	}

	return m.mutate(ctx, "lifecycle.inject_policies", id, func(c *contract.Contract) error {
		for _, ci := range compiled {
			if err := c.InjectRolePolicies(ci.roles, ci.bundles); err != nil {
				return err
			}
		}
		return nil
	})
}

// InjectPolicy adds one injection under its own role.
func (m *Manager) InjectPolicy(ctx context.Context, id string, inj compiler.Injection) (*contract.Contract, error) {
	return m.InjectFlat(ctx, id, []compiler.Injection{inj})
}

// InjectFlat adds injections that each name their role.
func (m *Manager) InjectFlat(ctx context.Context, id string, injections []compiler.Injection) (*contract.Contract, error) {
	entries := make([]RoleInjection, 0, len(injections))
	for _, inj := range injections {
		if inj.Role == "" {
			return nil, fmt.Errorf("%w: role is required for rule %s", contract.ErrInvalidRequest, inj.RuleID)
		}
		entries = append(entries, RoleInjection{Roles: []string{inj.Role}, Injections: []compiler.Injection{inj}})
	}
	return m.InjectPolicies(ctx, id, entries)
}

// InjectOfferingPolicies appends compiled bundles to a participant's
// service offering entry.
func (m *Manager) InjectOfferingPolicies(ctx context.Context, id, participant, offering string, injections []compiler.Injection) (c *contract.Contract, err error) {
	op, ctx := observability.StartOperation(ctx, m.metrics, "lifecycle.inject_offering_policies",
		observability.ContractID(id), observability.Participant(participant))
	defer func() { op.End(err) }()

	bundles, err := m.catalog.CompileAll(injections)
	if err != nil {
		return nil, err
	}
	return m.mutate(ctx, "lifecycle.inject_offering_policies", id, func(c *contract.Contract) error {
		return c.InjectOfferingPolicies(participant, offering, bundles)
	})
}

// ClearOfferingPolicies empties an offering's policies. An absent offering
// leaves the contract untouched.
func (m *Manager) ClearOfferingPolicies(ctx context.Context, id, participant, offering string) (c *contract.Contract, err error) {
	op, ctx := observability.StartOperation(ctx, m.metrics, "lifecycle.clear_offering_policies",
		observability.ContractID(id), observability.Participant(participant))
	defer func() { op.End(err) }()

	return m.mutate(ctx, "lifecycle.clear_offering_policies", id, func(c *contract.Contract) error {
		if !c.ClearOfferingPolicies(participant, offering) {
			return errUnchanged
		}
		return nil
	})
}

// OfferingPolicies returns the bundles stored for an offering.
func (m *Manager) OfferingPolicies(ctx context.Context, id, participant, offering string) (out []policy.Bundle, err error) {
	op, ctx := observability.StartOperation(ctx, m.metrics, "lifecycle.offering_policies", observability.ContractID(id))
	defer func() { op.End(err) }()

	c, err := m.load(ctx, id)
	if err != nil {
		return nil, err
	}
	so, ok := c.Offering(participant, offering)
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", contract.ErrOfferingNotFound, participant, offering)
	}
	return so.Policies, nil
}

// RemoveOfferingEverywhere drops the offering from every contract that
// references it and returns how many contracts changed. Contracts are
// updated independently; the first failure is returned.
func (m *Manager) RemoveOfferingEverywhere(ctx context.Context, offering string) (n int, err error) {
	op, ctx := observability.StartOperation(ctx, m.metrics, "lifecycle.remove_offering")
	defer func() { op.End(err) }()

	if offering == "" {
		return 0, fmt.Errorf("%w: offering is required", contract.ErrInvalidRequest)
	}
	targets, err := m.find(ctx, &contractstore.Filter{Offering: offering})
	if err != nil {
		return 0, err
	}

	var changed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.opts.Concurrency)
	for _, t := range targets {
		g.Go(func() error {
			var removed bool
			_, err := m.mutate(gctx, "lifecycle.remove_offering", t.ID, func(c *contract.Contract) error {
				if removed = c.RemoveOffering(offering); !removed {
					return errUnchanged
				}
				return nil
			})
			switch {
			case errors.Is(err, contract.ErrContractNotFound):
				return nil
			case err != nil:
				return err
			}
			if removed {
				changed.Add(1)
			}
			return nil
		})
	}
	err = g.Wait()
	n = int(changed.Load())

	slog.InfoContext(ctx, "offering removed from contracts", "offering", offering, "contracts", n)
	return n, err
}

// OfferingRef names a participant's service offering.
type OfferingRef struct {
	Participant     string `json:"participant"`
	ServiceOffering string `json:"serviceOffering"`
}

// CheckRequest asks whether an exploitation is allowed under one scope of
// a contract. Policy adds ad-hoc rules to the contract's.
type CheckRequest struct {
	Role     string        `json:"role,omitempty"`
	Offering *OfferingRef  `json:"offering,omitempty"`
	Request  pdp.Request   `json:"request"`
	Policy   policy.Policy `json:"policy"`
}

func (r CheckRequest) scope() contract.Scope {
	if r.Offering == nil {
		return contract.RoleScope(r.Role)
	}
	s := contract.OfferingScope(r.Offering.Participant, r.Offering.ServiceOffering)
	s.Role = r.Role
	return s
}

// CheckExploitation evaluates req against the contract's policies for the
// requested scope merged with the request's own policy.
func (m *Manager) CheckExploitation(ctx context.Context, id string, req CheckRequest) (d pdp.Decision, err error) {
	op, ctx := observability.StartOperation(ctx, m.metrics, "lifecycle.check_exploitation", observability.ContractID(id))
	defer func() { op.End(err) }()

	scope := req.scope()
	if err = scope.Validate(); err != nil {
		return pdp.Decision{}, err
	}
	c, err := m.load(ctx, id)
	if err != nil {
		return pdp.Decision{}, err
	}

	p := c.ResolvePolicies(scope).Merge(req.Policy)
	d = m.evaluator.Evaluate(p, req.Request)
	m.metrics.RecordDecision(string(d.Effect))

	slog.DebugContext(ctx, "exploitation checked", "contract_id", id, "action", req.Request.Action,
		"target", req.Request.Target, "effect", d.Effect)
	return d, nil
}

// ODRL returns the contract as an ODRL agreement.
func (m *Manager) ODRL(ctx context.Context, id string) (out map[string]any, err error) {
	op, ctx := observability.StartOperation(ctx, m.metrics, "lifecycle.odrl", observability.ContractID(id))
	defer func() { op.End(err) }()

	c, err := m.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return Agreement(c), nil
}
