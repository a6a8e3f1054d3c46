package cli

import (
	"fmt"
	"io"
	"maps"
	"slices"
)

// Result is a single message with optional details, printed in key order.
type Result struct {
	out     *Output
	meta    Meta
	message string
	details map[string]any
}

// With adds a detail key-value pair.
func (r *Result) With(key string, value any) *Result {
	r.details[key] = value
	return r
}

// Render outputs the result in the configured format.
func (r *Result) Render() error { return r.out.Render(r) }

// Meta returns the metadata.
func (r *Result) Meta() Meta { return r.meta }

func (r *Result) keys() []string {
	return slices.Sorted(maps.Keys(r.details))
}

// RenderText writes the message and indented details.
func (r *Result) RenderText(w io.Writer, s Styles) error {
	if _, err := fmt.Fprintln(w, r.message); err != nil {
		return err
	}
	keys := r.keys()
	width := 0
	for _, k := range keys {
		width = max(width, len(k)+1)
	}
	for _, k := range keys {
		if _, err := fmt.Fprintf(w, "  %s  %v\n", s.Key(fmt.Sprintf("%-*s", width, k+":")), r.details[k]); err != nil {
			return err
		}
	}
	return nil
}

// RenderJSON returns message and details as one object.
func (r *Result) RenderJSON() any {
	out := make(map[string]any, len(r.details)+1)
	out["message"] = r.message
	for k, v := range r.details {
		out[toJSONKey(k)] = v
	}
	return out
}

// RenderMarkdown writes the message in bold and details as a list.
func (r *Result) RenderMarkdown(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "**%s**\n\n", r.message); err != nil {
		return err
	}
	for _, k := range r.keys() {
		if _, err := fmt.Fprintf(w, "- **%s:** %s\n", k, markdownValue(r.details[k])); err != nil {
			return err
		}
	}
	return nil
}
