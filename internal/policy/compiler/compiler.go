// Package compiler turns named rule injections into concrete policy bundles
// using a catalog of parameterised templates.
package compiler

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/gezibash/arc-contract/internal/policy"
	arcerrors "github.com/gezibash/arc-contract/pkg/errors"
)

var (
	// ErrUnknownRule indicates the injection names a rule with no template.
	ErrUnknownRule = arcerrors.New("unknown rule", arcerrors.ErrInvalidInput)

	// ErrInvalidParameters indicates missing or mis-shaped template values.
	ErrInvalidParameters = arcerrors.New("invalid rule parameters", arcerrors.ErrInvalidInput)
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Injection asks for one rule to be compiled with the given values. Role is
// only meaningful in flat injection lists where each entry names its role.
type Injection struct {
	RuleID string         `json:"ruleId"`
	Values map[string]any `json:"values,omitempty"`
	Role   string         `json:"role,omitempty"`
}

// Catalog holds templates keyed by rule id. Safe for concurrent use.
type Catalog struct {
	mu        sync.RWMutex
	templates map[string]Template
}

// NewCatalog creates a catalog from the given templates.
func NewCatalog(templates ...Template) (*Catalog, error) {
	c := &Catalog{templates: make(map[string]Template, len(templates))}
	for _, t := range templates {
		if err := c.Add(t); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Default returns a catalog holding the built-in templates.
func Default() (*Catalog, error) {
	templates, err := Parse(defaultCatalog)
	if err != nil {
		return nil, fmt.Errorf("embedded catalog: %w", err)
	}
	return NewCatalog(templates...)
}

// Load returns the built-in catalog extended (and overridden by id) with the
// templates in path. An empty path yields the built-in catalog.
func Load(path string) (*Catalog, error) {
	c, err := Default()
	if err != nil {
		return nil, err
	}
	if path == "" {
		return c, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	templates, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	for _, t := range templates {
		if err := c.Add(t); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Parse decodes a YAML document of the form {rules: [template...]}.
func Parse(data []byte) ([]Template, error) {
	var doc struct {
		Rules []Template `yaml:"rules"`
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return doc.Rules, nil
}

// Add registers or replaces a template.
func (c *Catalog) Add(t Template) error {
	if err := t.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.templates[t.ID] = t
	return nil
}

// Get returns the template for a rule id.
func (c *Catalog) Get(id string) (Template, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.templates[id]
	return t, ok
}

// List returns all templates sorted by id.
func (c *Catalog) List() []Template {
	c.mu.RLock()
	out := make([]Template, 0, len(c.templates))
	for _, t := range c.templates {
		out = append(out, t)
	}
	c.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Compile renders one injection into a bundle.
func (c *Catalog) Compile(inj Injection) (policy.Bundle, error) {
	t, ok := c.Get(inj.RuleID)
	if !ok {
		return policy.Bundle{}, fmt.Errorf("%w: %q", ErrUnknownRule, inj.RuleID)
	}

	for _, f := range t.RequestedFields {
		v, present := inj.Values[f.Name]
		if !present || v == nil {
			return policy.Bundle{}, fmt.Errorf("%w: %s: missing %q", ErrInvalidParameters, t.ID, f.Name)
		}
		if !checkShape(f.Type, v) {
			return policy.Bundle{}, fmt.Errorf("%w: %s: %q must be a %s", ErrInvalidParameters, t.ID, f.Name, f.Type)
		}
	}

	rendered := substitute(map[string]any(t.Policy), inj.Values)
	raw, err := json.Marshal(rendered)
	if err != nil {
		return policy.Bundle{}, fmt.Errorf("%w: %s: %v", ErrInvalidParameters, t.ID, err)
	}

	var b policy.Bundle
	if err := json.Unmarshal(raw, &b); err != nil {
		return policy.Bundle{}, fmt.Errorf("%w: %s: %v", ErrInvalidParameters, t.ID, err)
	}
	if b.Description == "" {
		b.Description = t.Description
	}
	if b.Permission == nil {
		b.Permission = []policy.Rule{}
	}
	if b.Prohibition == nil {
		b.Prohibition = []policy.Rule{}
	}
	return b, nil
}

// CompileAll compiles every injection, failing on the first error so callers
// can abort before mutating anything.
func (c *Catalog) CompileAll(injections []Injection) ([]policy.Bundle, error) {
	out := make([]policy.Bundle, 0, len(injections))
	for i, inj := range injections {
		b, err := c.Compile(inj)
		if err != nil {
			return nil, fmt.Errorf("injection %d: %w", i, err)
		}
		out = append(out, b)
	}
	return slices.Clip(out), nil
}
