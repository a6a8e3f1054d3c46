package policy

import (
	"encoding/json"
	"testing"
)

func TestConstraintTyped(t *testing.T) {
	var c Constraint
	if err := json.Unmarshal([]byte(`{"leftOperand":"age","operator":"gteq","rightOperand":18}`), &c); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !c.Typed() {
		t.Fatal("expected typed constraint")
	}
	if c.Type != DefaultConstraintType {
		t.Errorf("type = %q, want %q", c.Type, DefaultConstraintType)
	}
	if c.RightOperand != int64(18) {
		t.Errorf("rightOperand = %#v, want int64(18)", c.RightOperand)
	}
}

func TestConstraintOpaqueRoundTrip(t *testing.T) {
	in := `{"@type":"geo:Fence","polygon":[[1,2],[3,4]],"strict":true}`
	var c Constraint
	if err := json.Unmarshal([]byte(in), &c); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if c.Typed() {
		t.Fatal("expected opaque constraint")
	}
	if c.Type != "geo:Fence" {
		t.Errorf("type = %q", c.Type)
	}
	if v, ok := c.Field("strict"); !ok || v != true {
		t.Errorf("strict field = %v, %v", v, ok)
	}

	out, err := json.Marshal(c)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != in {
		t.Errorf("round trip changed payload:\n got %s\nwant %s", out, in)
	}
}

func TestConstraintUnknownTypeWithOperandsStaysOpaque(t *testing.T) {
	var c Constraint
	raw := `{"@type":"custom","leftOperand":"x","operator":"eq","rightOperand":1}`
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if c.Typed() {
		t.Fatal("custom-typed constraint should be opaque")
	}
}

func TestConstraintRejectsNonObject(t *testing.T) {
	for _, raw := range []string{`null`, `[]`, `"x"`} {
		var c Constraint
		if err := json.Unmarshal([]byte(raw), &c); err == nil {
			t.Errorf("%s: expected error", raw)
		}
	}
}

func TestNewOpaqueConstraint(t *testing.T) {
	c, err := NewOpaqueConstraint("cel", map[string]any{"expression": "ctx.x > 1"})
	if err != nil {
		t.Fatalf("NewOpaqueConstraint: %v", err)
	}
	if c.Typed() || c.Type != "cel" {
		t.Fatalf("unexpected constraint %+v", c)
	}
	if v, _ := c.Field("expression"); v != "ctx.x > 1" {
		t.Errorf("expression = %v", v)
	}
}

func TestPolicyMergePreservesOrder(t *testing.T) {
	a := Policy{Permission: []Rule{{Action: "read", Target: "a"}}}
	b := Policy{
		Permission:  []Rule{{Action: "read", Target: "b"}},
		Prohibition: []Rule{{Action: "write", Target: "b"}},
	}
	m := a.Merge(b)
	if len(m.Permission) != 2 || m.Permission[0].Target != "a" || m.Permission[1].Target != "b" {
		t.Errorf("permission order wrong: %+v", m.Permission)
	}
	if len(m.Prohibition) != 1 {
		t.Errorf("prohibitions = %d, want 1", len(m.Prohibition))
	}
	if len(a.Permission) != 1 {
		t.Error("merge mutated receiver")
	}
}

func TestResolveEmpty(t *testing.T) {
	p := Resolve(nil)
	if p.Permission == nil || p.Prohibition == nil {
		t.Fatal("resolved policy should use empty, non-nil slices")
	}
	if !p.Empty() {
		t.Error("expected empty policy")
	}
}

func TestRuleWildcard(t *testing.T) {
	r := Rule{Action: "use", Target: Wildcard}
	if !r.MatchesTarget("anything") {
		t.Error("wildcard target should match")
	}
	if r.MatchesAction("read") {
		t.Error("action use should not match read")
	}
}

func TestBundleCloneIsIndependent(t *testing.T) {
	b := Bundle{Permission: []Rule{{Action: "read", Target: "x", Constraints: []Constraint{NewConstraint("a", "eq", 1)}}}}
	c := b.Clone()
	c.Permission[0].Constraints[0] = NewConstraint("b", "eq", 2)
	c.Permission = append(c.Permission, Rule{Action: "write"})
	if b.Permission[0].Constraints[0].LeftOperand != "a" || len(b.Permission) != 1 {
		t.Error("clone shares state with original")
	}
}
