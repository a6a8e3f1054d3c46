package compiler

import (
	"fmt"
	"regexp"
	"slices"
)

// Field types a template may request.
const (
	FieldString = "string"
	FieldNumber = "number"
	FieldList   = "list"
	FieldAny    = "any"
)

var placeholderRe = regexp.MustCompile(`@\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Field is a parameter a template requires from the injection.
type Field struct {
	Name string `yaml:"name" json:"name"`
	Type string `yaml:"type" json:"type"`
}

// Template turns a set of parameter values into a policy bundle.
// String values anywhere under Policy may reference fields as @{name}.
type Template struct {
	ID              string         `yaml:"id" json:"id"`
	Description     string         `yaml:"description" json:"description"`
	RequestedFields []Field        `yaml:"requestedFields" json:"requestedFields"`
	Policy          map[string]any `yaml:"policy" json:"policy"`
}

// Validate checks the template is self-consistent: every placeholder refers
// to a requested field and every field has a known type.
func (t Template) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("template: id is required")
	}
	declared := make(map[string]bool, len(t.RequestedFields))
	for _, f := range t.RequestedFields {
		switch f.Type {
		case FieldString, FieldNumber, FieldList, FieldAny, "":
		default:
			return fmt.Errorf("template %s: field %s: unknown type %q", t.ID, f.Name, f.Type)
		}
		declared[f.Name] = true
	}
	for _, name := range placeholders(t.Policy) {
		if !declared[name] {
			return fmt.Errorf("template %s: placeholder @{%s} is not a requested field", t.ID, name)
		}
	}
	return nil
}

func placeholders(v any) []string {
	var out []string
	var walk func(any)
	walk = func(v any) {
		switch t := v.(type) {
		case string:
			for _, m := range placeholderRe.FindAllStringSubmatch(t, -1) {
				if !slices.Contains(out, m[1]) {
					out = append(out, m[1])
				}
			}
		case map[string]any:
			for _, e := range t {
				walk(e)
			}
		case []any:
			for _, e := range t {
				walk(e)
			}
		}
	}
	walk(v)
	return out
}

// substitute returns a copy of v with placeholders replaced. A string that is
// exactly one placeholder takes the value itself so numbers and lists keep
// their type; embedded placeholders are formatted into the string.
func substitute(v any, values map[string]any) any {
	switch t := v.(type) {
	case string:
		if m := placeholderRe.FindStringSubmatch(t); m != nil && m[0] == t {
			return values[m[1]]
		}
		return placeholderRe.ReplaceAllStringFunc(t, func(p string) string {
			name := placeholderRe.FindStringSubmatch(p)[1]
			return fmt.Sprint(values[name])
		})
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = substitute(e, values)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = substitute(e, values)
		}
		return out
	default:
		return v
	}
}

func checkShape(typ string, v any) bool {
	switch typ {
	case FieldString:
		s, ok := v.(string)
		return ok && s != ""
	case FieldNumber:
		switch v.(type) {
		case int, int32, int64, float32, float64:
			return true
		}
		return false
	case FieldList:
		switch v.(type) {
		case []any, []string:
			return true
		}
		return false
	default:
		return true
	}
}
