// Package policy defines the permission/prohibition rule model attached to
// contracts. Values are treated as immutable once built: callers copy slices
// before appending and never modify a Constraint in place.
package policy

import "slices"

// Wildcard matches any requested action or target.
const Wildcard = "*"

// Rule is a single permission or prohibition.
type Rule struct {
	Action      string       `json:"action"`
	Target      string       `json:"target"`
	Constraints []Constraint `json:"constraint,omitempty"`
}

// MatchesAction reports whether the rule applies to the requested action.
func (r Rule) MatchesAction(action string) bool {
	return r.Action == Wildcard || r.Action == action
}

// MatchesTarget reports whether the rule applies to the requested target.
func (r Rule) MatchesTarget(target string) bool {
	return r.Target == Wildcard || r.Target == target
}

// Clone returns a copy of the rule with its own constraint slice.
func (r Rule) Clone() Rule {
	r.Constraints = slices.Clone(r.Constraints)
	return r
}

// Policy is a flat permission/prohibition set, the input to evaluation.
type Policy struct {
	Permission  []Rule `json:"permission"`
	Prohibition []Rule `json:"prohibition"`
}

// Empty reports whether the policy grants and forbids nothing.
func (p Policy) Empty() bool {
	return len(p.Permission) == 0 && len(p.Prohibition) == 0
}

// Merge returns a new policy holding p's rules followed by other's.
func (p Policy) Merge(other Policy) Policy {
	out := Policy{
		Permission:  make([]Rule, 0, len(p.Permission)+len(other.Permission)),
		Prohibition: make([]Rule, 0, len(p.Prohibition)+len(other.Prohibition)),
	}
	out.Permission = append(append(out.Permission, p.Permission...), other.Permission...)
	out.Prohibition = append(append(out.Prohibition, p.Prohibition...), other.Prohibition...)
	return out
}

// Bundle is one injected unit of policy under a role or service offering.
type Bundle struct {
	Description string `json:"description,omitempty"`
	Permission  []Rule `json:"permission"`
	Prohibition []Rule `json:"prohibition"`
}

// Policy returns the bundle's rules as a Policy.
func (b Bundle) Policy() Policy {
	return Policy{Permission: b.Permission, Prohibition: b.Prohibition}
}

// Clone deep-copies the bundle's rule slices.
func (b Bundle) Clone() Bundle {
	return Bundle{
		Description: b.Description,
		Permission:  cloneRules(b.Permission),
		Prohibition: cloneRules(b.Prohibition),
	}
}

// Resolve concatenates bundles in order into a single policy.
func Resolve(bundles []Bundle) Policy {
	var out Policy
	for _, b := range bundles {
		out = out.Merge(b.Policy())
	}
	if out.Permission == nil {
		out.Permission = []Rule{}
	}
	if out.Prohibition == nil {
		out.Prohibition = []Rule{}
	}
	return out
}

// CloneBundles deep-copies a bundle list.
func CloneBundles(in []Bundle) []Bundle {
	if in == nil {
		return nil
	}
	out := make([]Bundle, len(in))
	for i, b := range in {
		out[i] = b.Clone()
	}
	return out
}

func cloneRules(in []Rule) []Rule {
	if in == nil {
		return nil
	}
	out := make([]Rule, len(in))
	for i, r := range in {
		out[i] = r.Clone()
	}
	return out
}
