// Package pdp decides whether a requested exploitation is allowed by a policy.
//
// Evaluation is deny-by-default. Prohibitions are checked first and any
// match denies immediately; otherwise the first matching permission allows.
// A rule matches when its action and target match the request and every one
// of its constraints is satisfied. Constraints the evaluator cannot interpret
// are never satisfied.
package pdp

import (
	"fmt"
	"strings"
	"sync"

	"github.com/gezibash/arc-contract/internal/policy"
)

// Effect describes which branch of evaluation produced a decision.
type Effect string

const (
	EffectPermit      Effect = "permit"
	EffectProhibit    Effect = "prohibit"
	EffectDefaultDeny Effect = "default-deny"
)

// Request is a proposed exploitation.
type Request struct {
	Action  string         `json:"action"`
	Target  string         `json:"target"`
	Context map[string]any `json:"context,omitempty"`
}

// Lookup returns the request value for a constraint's left operand. Dotted
// names descend into nested objects when no exact key exists.
func (r Request) Lookup(name string) (any, bool) {
	if v, ok := r.Context[name]; ok {
		return v, true
	}
	switch name {
	case "action":
		return r.Action, r.Action != ""
	case "target":
		return r.Target, r.Target != ""
	}
	if !strings.Contains(name, ".") {
		return nil, false
	}
	var cur any = r.Context
	for _, part := range strings.Split(name, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = m[part]; !ok {
			return nil, false
		}
	}
	return cur, true
}

// Decision is the outcome of an evaluation. Index is the position of the
// matched rule within its list, or -1 under default deny.
type Decision struct {
	Authorized bool         `json:"authorized"`
	Effect     Effect       `json:"effect"`
	Rule       *policy.Rule `json:"rule,omitempty"`
	Index      int          `json:"index"`
	Reason     string       `json:"reason,omitempty"`
}

// Extension evaluates constraints of one opaque type.
type Extension interface {
	Satisfied(c policy.Constraint, req Request) bool
}

// ExtensionFunc adapts a function to Extension.
type ExtensionFunc func(c policy.Constraint, req Request) bool

// Satisfied calls f.
func (f ExtensionFunc) Satisfied(c policy.Constraint, req Request) bool { return f(c, req) }

// Evaluator is safe for concurrent use.
type Evaluator struct {
	mu         sync.RWMutex
	extensions map[string]Extension
}

// New returns an evaluator with no extensions.
func New() *Evaluator {
	return &Evaluator{extensions: make(map[string]Extension)}
}

// NewDefault returns an evaluator with the built-in extensions registered.
func NewDefault() (*Evaluator, error) {
	e := New()
	celExt, err := NewCELExtension()
	if err != nil {
		return nil, err
	}
	e.Register(CELConstraintType, celExt)
	return e, nil
}

// Register installs an extension for an opaque constraint type, replacing
// any previous one.
func (e *Evaluator) Register(typ string, ext Extension) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.extensions[typ] = ext
}

// Extensions returns the registered constraint types.
func (e *Evaluator) Extensions() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]string, 0, len(e.extensions))
	for k := range e.extensions {
		out = append(out, k)
	}
	return out
}

// Evaluate decides req against p. It never mutates its inputs.
func (e *Evaluator) Evaluate(p policy.Policy, req Request) Decision {
	if p.Empty() {
		return Decision{Effect: EffectDefaultDeny, Index: -1, Reason: "no policies in scope"}
	}
	for i := range p.Prohibition {
		if e.ruleMatches(p.Prohibition[i], req) {
			r := p.Prohibition[i].Clone()
			return Decision{
				Authorized: false,
				Effect:     EffectProhibit,
				Rule:       &r,
				Index:      i,
				Reason:     fmt.Sprintf("prohibited by rule %d (%s on %s)", i, r.Action, r.Target),
			}
		}
	}
	for i := range p.Permission {
		if e.ruleMatches(p.Permission[i], req) {
			r := p.Permission[i].Clone()
			return Decision{
				Authorized: true,
				Effect:     EffectPermit,
				Rule:       &r,
				Index:      i,
				Reason:     fmt.Sprintf("permitted by rule %d (%s on %s)", i, r.Action, r.Target),
			}
		}
	}
	return Decision{
		Authorized: false,
		Effect:     EffectDefaultDeny,
		Index:      -1,
		Reason:     "no matching permission",
	}
}

func (e *Evaluator) ruleMatches(r policy.Rule, req Request) bool {
	if !r.MatchesAction(req.Action) || !r.MatchesTarget(req.Target) {
		return false
	}
	for _, c := range r.Constraints {
		if !e.satisfied(c, req) {
			return false
		}
	}
	return true
}

func (e *Evaluator) satisfied(c policy.Constraint, req Request) bool {
	if !c.Typed() {
		e.mu.RLock()
		ext, ok := e.extensions[c.Type]
		e.mu.RUnlock()
		return ok && ext.Satisfied(c, req)
	}
	left, ok := req.Lookup(c.LeftOperand)
	if !ok {
		return false
	}
	return Apply(c.Operator, left, c.RightOperand)
}
