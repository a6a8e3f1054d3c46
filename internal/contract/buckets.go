package contract

import (
	"fmt"
	"slices"

	"github.com/gezibash/arc-contract/internal/policy"
)

// RoleBucket returns the bundle list for role, creating it if absent.
// It is the only place role entries are created.
func (c *Contract) RoleBucket(role string) *RoleBundle {
	for i := range c.RolesAndObligations {
		if c.RolesAndObligations[i].Role == role {
			return &c.RolesAndObligations[i]
		}
	}
	c.RolesAndObligations = append(c.RolesAndObligations, RoleBundle{Role: role, Policies: []policy.Bundle{}})
	return &c.RolesAndObligations[len(c.RolesAndObligations)-1]
}

// OfferingBucket returns the entry for (participant, offering), creating it
// if absent. It is the only place offering entries are created.
func (c *Contract) OfferingBucket(participant, offering string) *ServiceOffering {
	if i := c.offeringIndex(participant, offering); i >= 0 {
		return &c.ServiceOfferings[i]
	}
	c.ServiceOfferings = append(c.ServiceOfferings, ServiceOffering{
		Participant:     participant,
		ServiceOffering: offering,
		Policies:        []policy.Bundle{},
	})
	return &c.ServiceOfferings[len(c.ServiceOfferings)-1]
}

// InjectRolePolicies appends bundles to each role in order.
func (c *Contract) InjectRolePolicies(roles []string, bundles []policy.Bundle) error {
	if len(roles) == 0 {
		return fmt.Errorf("%w: roles cannot be empty", ErrInvalidRequest)
	}
	for _, role := range roles {
		if role == "" {
			return fmt.Errorf("%w: role cannot be empty", ErrInvalidRequest)
		}
	}
	for _, role := range roles {
		b := c.RoleBucket(role)
		for _, bundle := range bundles {
			b.Policies = append(b.Policies, bundle.Clone())
		}
	}
	return nil
}

// InjectOfferingPolicies appends bundles to a service offering entry.
func (c *Contract) InjectOfferingPolicies(participant, offering string, bundles []policy.Bundle) error {
	if participant == "" || offering == "" {
		return fmt.Errorf("%w: participant and serviceOffering are required", ErrInvalidRequest)
	}
	b := c.OfferingBucket(participant, offering)
	for _, bundle := range bundles {
		b.Policies = append(b.Policies, bundle.Clone())
	}
	return nil
}

// ClearOfferingPolicies empties an offering's policies. It reports whether
// a matching entry existed.
func (c *Contract) ClearOfferingPolicies(participant, offering string) bool {
	i := c.offeringIndex(participant, offering)
	if i < 0 {
		return false
	}
	c.ServiceOfferings[i].Policies = []policy.Bundle{}
	return true
}

// RemoveOffering drops every entry for the offering id, whichever
// participant provides it. It reports whether anything was removed.
func (c *Contract) RemoveOffering(offering string) bool {
	before := len(c.ServiceOfferings)
	c.ServiceOfferings = slices.DeleteFunc(c.ServiceOfferings, func(so ServiceOffering) bool {
		return so.ServiceOffering == offering
	})
	return len(c.ServiceOfferings) != before
}

// OfferingIDs returns the distinct offering ids referenced by the contract.
func (c *Contract) OfferingIDs() []string {
	var out []string
	for _, so := range c.ServiceOfferings {
		if !slices.Contains(out, so.ServiceOffering) {
			out = append(out, so.ServiceOffering)
		}
	}
	return out
}

// Offering returns the entry for (participant, offering).
func (c *Contract) Offering(participant, offering string) (ServiceOffering, bool) {
	i := c.offeringIndex(participant, offering)
	if i < 0 {
		return ServiceOffering{}, false
	}
	return c.ServiceOfferings[i], true
}

func (c *Contract) offeringIndex(participant, offering string) int {
	return slices.IndexFunc(c.ServiceOfferings, func(so ServiceOffering) bool {
		return so.Participant == participant && so.ServiceOffering == offering
	})
}

// Scope selects the policies to resolve: a role, or a participant's offering.
type Scope struct {
	Role            string `json:"role,omitempty"`
	Participant     string `json:"participant,omitempty"`
	ServiceOffering string `json:"serviceOffering,omitempty"`
}

// RoleScope selects a role's policies.
func RoleScope(role string) Scope { return Scope{Role: role} }

// OfferingScope selects a service offering's policies.
func OfferingScope(participant, offering string) Scope {
	return Scope{Participant: participant, ServiceOffering: offering}
}

// Validate requires exactly one of role or offering.
func (s Scope) Validate() error {
	hasRole := s.Role != ""
	hasOffering := s.Participant != "" || s.ServiceOffering != ""
	switch {
	case hasRole && hasOffering:
		return fmt.Errorf("%w: scope must be a role or an offering, not both", ErrInvalidRequest)
	case hasRole:
		return nil
	case s.Participant == "" || s.ServiceOffering == "":
		return fmt.Errorf("%w: scope requires a role or a participant and serviceOffering", ErrInvalidRequest)
	default:
		return nil
	}
}

// ResolvePolicies concatenates every bundle under scope. An unknown scope
// resolves to an empty policy, which grants nothing.
func (c *Contract) ResolvePolicies(s Scope) policy.Policy {
	if s.Role != "" {
		for _, rb := range c.RolesAndObligations {
			if rb.Role == s.Role {
				return policy.Resolve(rb.Policies)
			}
		}
		return policy.Resolve(nil)
	}
	if so, ok := c.Offering(s.Participant, s.ServiceOffering); ok {
		return policy.Resolve(so.Policies)
	}
	return policy.Resolve(nil)
}

// AllPolicies merges every role and offering bundle, roles first.
func (c *Contract) AllPolicies() policy.Policy {
	out := policy.Resolve(nil)
	for _, rb := range c.RolesAndObligations {
		out = out.Merge(policy.Resolve(rb.Policies))
	}
	for _, so := range c.ServiceOfferings {
		out = out.Merge(policy.Resolve(so.Policies))
	}
	return out
}
