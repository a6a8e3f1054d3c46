package policy

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// DefaultConstraintType is assigned to typed constraints that omit @type.
const DefaultConstraintType = "Constraint"

// Constraint is either a typed {leftOperand, operator, rightOperand} triple
// or an opaque object kept verbatim for evaluator extensions.
type Constraint struct {
	Type         string
	LeftOperand  string
	Operator     string
	RightOperand any

	raw    json.RawMessage
	fields map[string]any
}

// NewConstraint builds a typed constraint.
func NewConstraint(left, operator string, right any) Constraint {
	return Constraint{
		Type:         DefaultConstraintType,
		LeftOperand:  left,
		Operator:     operator,
		RightOperand: right,
	}
}

// NewOpaqueConstraint builds an opaque constraint from arbitrary fields.
// The "@type" field names the extension that may evaluate it.
func NewOpaqueConstraint(typ string, fields map[string]any) (Constraint, error) {
	obj := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		obj[k] = v
	}
	obj["@type"] = typ
	raw, err := json.Marshal(obj)
	if err != nil {
		return Constraint{}, fmt.Errorf("encode constraint: %w", err)
	}
	var c Constraint
	if err := c.UnmarshalJSON(raw); err != nil {
		return Constraint{}, err
	}
	return c, nil
}

// Typed reports whether the constraint carries a left operand and operator.
func (c Constraint) Typed() bool {
	return c.raw == nil
}

// Raw returns the verbatim JSON of an opaque constraint, or nil.
func (c Constraint) Raw() json.RawMessage {
	return c.raw
}

// Field returns a top-level field of an opaque constraint.
func (c Constraint) Field(name string) (any, bool) {
	if c.fields == nil {
		return nil, false
	}
	v, ok := c.fields[name]
	return v, ok
}

type typedConstraint struct {
	Type         string `json:"@type,omitempty"`
	LeftOperand  string `json:"leftOperand"`
	Operator     string `json:"operator"`
	RightOperand any    `json:"rightOperand"`
}

// MarshalJSON writes typed constraints in canonical form and opaque ones verbatim.
func (c Constraint) MarshalJSON() ([]byte, error) {
	if c.raw != nil {
		return c.raw, nil
	}
	return json.Marshal(typedConstraint{
		Type:         c.Type,
		LeftOperand:  c.LeftOperand,
		Operator:     c.Operator,
		RightOperand: c.RightOperand,
	})
}

// UnmarshalJSON classifies the object as typed or opaque.
func (c *Constraint) UnmarshalJSON(data []byte) error {
	var fields map[string]any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&fields); err != nil {
		return fmt.Errorf("constraint must be an object: %w", err)
	}
	if fields == nil {
		return fmt.Errorf("constraint must be an object")
	}

	typ, _ := fields["@type"].(string)
	if typ == "" {
		typ, _ = fields["type"].(string)
	}

	left, hasLeft := fields["leftOperand"].(string)
	op, hasOp := fields["operator"].(string)
	if hasLeft && hasOp && isTypedKind(typ) {
		if typ == "" {
			typ = DefaultConstraintType
		}
		*c = Constraint{
			Type:         typ,
			LeftOperand:  left,
			Operator:     op,
			RightOperand: normalizeNumbers(fields["rightOperand"]),
		}
		return nil
	}

	*c = Constraint{
		Type:   typ,
		raw:    append(json.RawMessage(nil), bytes.TrimSpace(data)...),
		fields: normalizeNumbers(fields).(map[string]any),
	}
	return nil
}

// isTypedKind reports whether a constraint with the given @type is evaluated
// by the built-in operators rather than an extension.
func isTypedKind(typ string) bool {
	switch typ {
	case "", DefaultConstraintType, "odrl:Constraint":
		return true
	default:
		return false
	}
}

// normalizeNumbers converts json.Number values to int64 or float64.
func normalizeNumbers(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		f, _ := t.Float64()
		return f
	case map[string]any:
		for k, e := range t {
			t[k] = normalizeNumbers(e)
		}
		return t
	case []any:
		for i, e := range t {
			t[i] = normalizeNumbers(e)
		}
		return t
	default:
		return v
	}
}
