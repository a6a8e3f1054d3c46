// Package contract holds the ecosystem contract aggregate. Every mutation
// goes through a method on *Contract so the membership, status and ledger
// invariants hold after each call; the package performs no I/O.
package contract

import (
	"fmt"
	"slices"
	"time"

	"github.com/gezibash/arc-contract/internal/policy"
)

// Status is derived from membership and never set by clients.
type Status string

const (
	StatusPending Status = "pending"
	StatusSigned  Status = "signed"
	StatusRevoked Status = "revoked"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusSigned, StatusRevoked:
		return true
	}
	return false
}

// RoleOrchestrator is the member role required for a contract to be signed.
const RoleOrchestrator = "orchestrator"

// Member is a participant who signed the contract under a role.
type Member struct {
	Participant string    `json:"participant"`
	Role        string    `json:"role"`
	Signature   string    `json:"signature"`
	SignedAt    time.Time `json:"signedAt"`
}

// RoleBundle holds the policies injected for one role.
type RoleBundle struct {
	Role     string          `json:"role"`
	Policies []policy.Bundle `json:"policies"`
}

// ServiceOffering holds the policies injected for one participant's offering.
type ServiceOffering struct {
	Participant     string          `json:"participant"`
	ServiceOffering string          `json:"serviceOffering"`
	Policies        []policy.Bundle `json:"policies"`
}

// Contract is the aggregate root.
type Contract struct {
	ID                  string            `json:"id"`
	Ecosystem           string            `json:"ecosystem"`
	Orchestrator        string            `json:"orchestrator,omitempty"`
	Profile             string            `json:"profile,omitempty"`
	Members             []Member          `json:"members"`
	RevokedMembers      []Member          `json:"revokedMembers"`
	RolesAndObligations []RoleBundle      `json:"rolesAndObligations"`
	ServiceOfferings    []ServiceOffering `json:"serviceOfferings"`
	DataProcessings     []DataProcessing  `json:"dataProcessings"`
	Status              Status            `json:"status"`
	CreatedAt           time.Time         `json:"createdAt"`
	UpdatedAt           time.Time         `json:"updatedAt"`

	// Version is the storage revision the aggregate was loaded at.
	Version int64 `json:"version"`
}

// Draft is the input for a new contract. When Role is set, the permission
// and prohibition lists seed that role's first bundle.
type Draft struct {
	Ecosystem    string        `json:"ecosystem"`
	Orchestrator string        `json:"orchestrator,omitempty"`
	Profile      string        `json:"profile,omitempty"`
	Role         string        `json:"role,omitempty"`
	Permission   []policy.Rule `json:"permission,omitempty"`
	Prohibition  []policy.Rule `json:"prohibition,omitempty"`
}

// New builds a pending contract from a draft.
func New(id string, d Draft, now time.Time) (*Contract, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: id is required", ErrInvalidRequest)
	}
	if d.Ecosystem == "" {
		return nil, fmt.Errorf("%w: ecosystem is required", ErrInvalidRequest)
	}
	if d.Role == "" && (len(d.Permission) > 0 || len(d.Prohibition) > 0) {
		return nil, fmt.Errorf("%w: role is required when seeding policies", ErrInvalidRequest)
	}

	c := &Contract{
		ID:                  id,
		Ecosystem:           d.Ecosystem,
		Orchestrator:        d.Orchestrator,
		Profile:             d.Profile,
		Members:             []Member{},
		RevokedMembers:      []Member{},
		RolesAndObligations: []RoleBundle{},
		ServiceOfferings:    []ServiceOffering{},
		DataProcessings:     []DataProcessing{},
		Status:              StatusPending,
		CreatedAt:           now.UTC(),
		UpdatedAt:           now.UTC(),
	}
	if d.Role != "" {
		seed := policy.Bundle{
			Permission:  nonNil(d.Permission),
			Prohibition: nonNil(d.Prohibition),
		}
		b := c.RoleBucket(d.Role)
		b.Policies = append(b.Policies, seed.Clone())
	}
	return c, nil
}

func nonNil(r []policy.Rule) []policy.Rule {
	if r == nil {
		return []policy.Rule{}
	}
	return r
}

// AddOrUpdateMember records a signature. An existing member's signature is
// replaced in place and its role kept; otherwise the member is appended.
// Revoked participants cannot sign again.
func (c *Contract) AddOrUpdateMember(participant, role, signature string, at time.Time) error {
	if participant == "" {
		return fmt.Errorf("%w: participant is required", ErrInvalidRequest)
	}
	if signature == "" {
		return fmt.Errorf("%w: signature is required", ErrInvalidRequest)
	}
	if c.IsRevoked(participant) {
		return fmt.Errorf("%w: %s", ErrMemberRevoked, participant)
	}

	if i := c.memberIndex(participant); i >= 0 {
		c.Members[i].Signature = signature
		c.Members[i].SignedAt = at.UTC()
	} else {
		if role == "" {
			return fmt.Errorf("%w: role is required for a new member", ErrInvalidRequest)
		}
		c.Members = append(c.Members, Member{
			Participant: participant,
			Role:        role,
			Signature:   signature,
			SignedAt:    at.UTC(),
		})
	}
	c.RecomputeStatus()
	return nil
}

// RevokeMember moves a member to RevokedMembers and marks the contract revoked.
func (c *Contract) RevokeMember(participant string) error {
	i := c.memberIndex(participant)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrMemberNotFound, participant)
	}
	m := c.Members[i]
	c.Members = slices.Delete(c.Members, i, i+1)
	c.RevokedMembers = append(c.RevokedMembers, m)
	c.RecomputeStatus()
	return nil
}

// RecomputeStatus derives Status from membership. Revocation is terminal.
func (c *Contract) RecomputeStatus() {
	switch {
	case len(c.RevokedMembers) > 0:
		c.Status = StatusRevoked
	case len(c.Members) >= 2 && c.hasRole(RoleOrchestrator):
		c.Status = StatusSigned
	default:
		c.Status = StatusPending
	}
}

// HasMember reports whether participant is an active member.
func (c *Contract) HasMember(participant string) bool {
	return c.memberIndex(participant) >= 0
}

// IsRevoked reports whether participant's membership was revoked.
func (c *Contract) IsRevoked(participant string) bool {
	return slices.ContainsFunc(c.RevokedMembers, func(m Member) bool { return m.Participant == participant })
}

// ActiveParticipants returns the participants of active members in order.
func (c *Contract) ActiveParticipants() []string {
	out := make([]string, len(c.Members))
	for i, m := range c.Members {
		out[i] = m.Participant
	}
	return out
}

func (c *Contract) memberIndex(participant string) int {
	return slices.IndexFunc(c.Members, func(m Member) bool { return m.Participant == participant })
}

func (c *Contract) hasRole(role string) bool {
	return slices.ContainsFunc(c.Members, func(m Member) bool { return m.Role == role })
}

// Patch updates descriptive fields. Nil fields are left unchanged.
type Patch struct {
	Ecosystem    *string `json:"ecosystem,omitempty"`
	Orchestrator *string `json:"orchestrator,omitempty"`
	Profile      *string `json:"profile,omitempty"`
}

// Apply writes the patch onto the contract.
func (c *Contract) Apply(p Patch) error {
	if p.Ecosystem != nil {
		if *p.Ecosystem == "" {
			return fmt.Errorf("%w: ecosystem cannot be empty", ErrInvalidRequest)
		}
		c.Ecosystem = *p.Ecosystem
	}
	if p.Orchestrator != nil {
		c.Orchestrator = *p.Orchestrator
	}
	if p.Profile != nil {
		c.Profile = *p.Profile
	}
	return nil
}

// Clone returns a deep copy. Constraint values are shared, they are immutable.
func (c *Contract) Clone() *Contract {
	out := *c
	out.Members = slices.Clone(c.Members)
	out.RevokedMembers = slices.Clone(c.RevokedMembers)

	out.RolesAndObligations = make([]RoleBundle, len(c.RolesAndObligations))
	for i, rb := range c.RolesAndObligations {
		out.RolesAndObligations[i] = RoleBundle{Role: rb.Role, Policies: policy.CloneBundles(rb.Policies)}
	}

	out.ServiceOfferings = make([]ServiceOffering, len(c.ServiceOfferings))
	for i, so := range c.ServiceOfferings {
		so.Policies = policy.CloneBundles(so.Policies)
		out.ServiceOfferings[i] = so
	}

	out.DataProcessings = make([]DataProcessing, len(c.DataProcessings))
	for i, dp := range c.DataProcessings {
		out.DataProcessings[i] = dp.clone()
	}
	return &out
}
