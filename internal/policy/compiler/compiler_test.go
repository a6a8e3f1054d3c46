package compiler

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	arcerrors "github.com/gezibash/arc-contract/pkg/errors"
)

func newDefault(t *testing.T) *Catalog {
	t.Helper()
	c, err := Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	return c
}

func TestDefaultCatalogLoads(t *testing.T) {
	c := newDefault(t)
	list := c.List()
	if len(list) == 0 {
		t.Fatal("embedded catalog is empty")
	}
	for i := 1; i < len(list); i++ {
		if list[i-1].ID >= list[i].ID {
			t.Fatalf("List not sorted: %s before %s", list[i-1].ID, list[i].ID)
		}
	}
}

func TestCompileUnknownRule(t *testing.T) {
	c := newDefault(t)
	_, err := c.Compile(Injection{RuleID: "does-not-exist"})
	if !errors.Is(err, ErrUnknownRule) {
		t.Fatalf("err = %v, want ErrUnknownRule", err)
	}
	if !errors.Is(err, arcerrors.ErrInvalidInput) {
		t.Error("unknown rule should classify as invalid input")
	}
}

func TestCompileMissingParameter(t *testing.T) {
	c := newDefault(t)
	_, err := c.Compile(Injection{RuleID: "rule-access-2", Values: map[string]any{"target": "ds-1"}})
	if !errors.Is(err, ErrInvalidParameters) {
		t.Fatalf("err = %v, want ErrInvalidParameters", err)
	}
}

func TestCompileWrongShape(t *testing.T) {
	c := newDefault(t)
	tests := []struct {
		name   string
		rule   string
		values map[string]any
	}{
		{"number as string", "rule-access-3", map[string]any{"target": "x", "value": "ten"}},
		{"list as string", "rule-access-2", map[string]any{"target": "x", "participants": "p1"}},
		{"empty string", "rule-access-1", map[string]any{"target": ""}},
		{"nil value", "rule-access-1", map[string]any{"target": nil}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Compile(Injection{RuleID: tt.rule, Values: tt.values})
			if !errors.Is(err, ErrInvalidParameters) {
				t.Fatalf("err = %v, want ErrInvalidParameters", err)
			}
		})
	}
}

func TestCompilePreservesValueTypes(t *testing.T) {
	c := newDefault(t)
	b, err := c.Compile(Injection{RuleID: "rule-access-3", Values: map[string]any{"target": "ds-1", "value": 10}})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if len(b.Permission) != 1 {
		t.Fatalf("permissions = %d, want 1", len(b.Permission))
	}
	p := b.Permission[0]
	if p.Target != "ds-1" || p.Action != "use" {
		t.Errorf("rule = %+v", p)
	}
	if len(p.Constraints) != 1 || !p.Constraints[0].Typed() {
		t.Fatalf("constraints = %+v", p.Constraints)
	}
	if p.Constraints[0].RightOperand != int64(10) {
		t.Errorf("rightOperand = %#v, want int64(10)", p.Constraints[0].RightOperand)
	}
	if b.Description == "" {
		t.Error("description should default to the template's")
	}
	if b.Prohibition == nil {
		t.Error("prohibition should be an empty slice")
	}
}

func TestCompileListParameter(t *testing.T) {
	c := newDefault(t)
	b, err := c.Compile(Injection{RuleID: "rule-access-2", Values: map[string]any{
		"target":       "ds-1",
		"participants": []string{"p1", "p2"},
	}})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	right, ok := b.Permission[0].Constraints[0].RightOperand.([]any)
	if !ok || len(right) != 2 || right[0] != "p1" {
		t.Errorf("rightOperand = %#v", b.Permission[0].Constraints[0].RightOperand)
	}
}

func TestCompileKeepsUnknownConstraintOpaque(t *testing.T) {
	c := newDefault(t)
	b, err := c.Compile(Injection{RuleID: "rule-expression-1", Values: map[string]any{
		"target":     "ds-1",
		"expression": `ctx.purpose == "research"`,
	}})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	con := b.Permission[0].Constraints[0]
	if con.Typed() || con.Type != "cel" {
		t.Fatalf("constraint = %+v, want opaque cel", con)
	}
	if v, _ := con.Field("expression"); v != `ctx.purpose == "research"` {
		t.Errorf("expression = %v", v)
	}
}

func TestCompileEmbeddedPlaceholder(t *testing.T) {
	c, err := NewCatalog(Template{
		ID:              "prefixed",
		RequestedFields: []Field{{Name: "id", Type: FieldNumber}},
		Policy: map[string]any{
			"permission": []any{map[string]any{"action": "read", "target": "urn:ds:@{id}"}},
		},
	})
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	b, err := c.Compile(Injection{RuleID: "prefixed", Values: map[string]any{"id": 7}})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if got := b.Permission[0].Target; got != "urn:ds:7" {
		t.Errorf("target = %q, want urn:ds:7", got)
	}
}

func TestTemplateValidate(t *testing.T) {
	bad := Template{
		ID:     "bad",
		Policy: map[string]any{"permission": []any{map[string]any{"target": "@{missing}"}}},
	}
	if err := bad.Validate(); err == nil {
		t.Error("expected undeclared placeholder error")
	}
	if err := (Template{}).Validate(); err == nil {
		t.Error("expected missing id error")
	}
	if err := (Template{ID: "x", RequestedFields: []Field{{Name: "a", Type: "blob"}}}).Validate(); err == nil {
		t.Error("expected unknown field type error")
	}
}

func TestLoadOverridesBuiltins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	doc := `rules:
  - id: rule-access-1
    description: overridden
    requestedFields:
      - name: target
        type: string
    policy:
      prohibition:
        - action: use
          target: "@{target}"
  - id: custom-1
    description: custom
    policy:
      permission:
        - action: read
          target: "*"
`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}
	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	b, err := c.Compile(Injection{RuleID: "rule-access-1", Values: map[string]any{"target": "x"}})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if len(b.Prohibition) != 1 || len(b.Permission) != 0 {
		t.Errorf("override not applied: %+v", b)
	}
	if _, ok := c.Get("custom-1"); !ok {
		t.Error("custom template missing")
	}
	if _, ok := c.Get("rule-access-2"); !ok {
		t.Error("built-in templates should survive")
	}
}

func TestCompileAllAbortsOnFirstError(t *testing.T) {
	c := newDefault(t)
	_, err := c.CompileAll([]Injection{
		{RuleID: "rule-access-1", Values: map[string]any{"target": "x"}},
		{RuleID: "nope"},
	})
	if !errors.Is(err, ErrUnknownRule) {
		t.Fatalf("err = %v, want ErrUnknownRule", err)
	}
}
