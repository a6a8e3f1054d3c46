// Package cli provides output rendering and command plumbing for the
// arc-contract command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Format represents an output format.
type Format string

const (
	FormatText     Format = "text"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
)

// ParseFormat parses a format string, defaulting to text.
func ParseFormat(s string) Format {
	switch s {
	case "json":
		return FormatJSON
	case "markdown", "md":
		return FormatMarkdown
	default:
		return FormatText
	}
}

// Meta describes a rendered result in the JSON envelope and markdown
// frontmatter.
type Meta struct {
	Type      string    `json:"type" yaml:"type"`
	Version   string    `json:"version" yaml:"version"`
	Generated time.Time `json:"generated" yaml:"generated"`
	Count     int       `json:"count,omitempty" yaml:"count,omitempty"`
}

// NewMeta creates metadata with the given type and current timestamp.
func NewMeta(resultType string) Meta {
	return Meta{Type: resultType, Version: "v1", Generated: time.Now().UTC()}
}

// Renderable can render itself in every format.
type Renderable interface {
	Meta() Meta
	RenderText(w io.Writer, s Styles) error
	RenderJSON() any
	RenderMarkdown(w io.Writer) error
}

// Output renders results in one format.
type Output struct {
	format Format
	w      io.Writer
	styles Styles
}

// NewOutput creates an output renderer. Text output is styled only when w
// is a terminal.
func NewOutput(format Format, w io.Writer) *Output {
	return &Output{format: format, w: w, styles: NewStyles(IsTerminal(w))}
}

// ViperGetter is the subset of viper.Viper we need.
type ViperGetter interface {
	GetString(key string) string
}

// NewOutputFromViper reads the "output" key for the format and writes to
// stdout.
func NewOutputFromViper(v ViperGetter) *Output {
	return NewOutput(ParseFormat(v.GetString("output")), os.Stdout)
}

// Format returns the configured output format.
func (o *Output) Format() Format { return o.format }

// Table creates a table renderer.
func (o *Output) Table(resultType string, headers ...string) *Table {
	return &Table{out: o, meta: NewMeta(resultType), headers: headers}
}

// KV creates a key-value renderer.
func (o *Output) KV(resultType string) *KV {
	return &KV{out: o, meta: NewMeta(resultType)}
}

// Result creates a single-message renderer.
func (o *Output) Result(resultType, message string) *Result {
	return &Result{out: o, meta: NewMeta(resultType), message: message, details: map[string]any{}}
}

// Value creates a renderer for an arbitrary document, printed as indented
// JSON in text mode.
func (o *Output) Value(resultType string, v any) *Value {
	return &Value{out: o, meta: NewMeta(resultType), v: v}
}

// Render outputs r in the configured format.
func (o *Output) Render(r Renderable) error {
	switch o.format {
	case FormatJSON:
		return o.renderJSON(r)
	case FormatMarkdown:
		return o.renderMarkdown(r)
	default:
		return r.RenderText(o.w, o.styles)
	}
}

func (o *Output) renderJSON(r Renderable) error {
	envelope := struct {
		Meta Meta `json:"meta"`
		Data any  `json:"data"`
	}{Meta: r.Meta(), Data: r.RenderJSON()}

	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	return enc.Encode(envelope)
}

func (o *Output) renderMarkdown(r Renderable) error {
	if _, err := fmt.Fprintln(o.w, "---"); err != nil {
		return err
	}
	enc := yaml.NewEncoder(o.w)
	enc.SetIndent(2)
	if err := enc.Encode(r.Meta()); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	if _, err := fmt.Fprint(o.w, "---\n\n"); err != nil {
		return err
	}
	return r.RenderMarkdown(o.w)
}

// Value renders any JSON-encodable document.
type Value struct {
	out  *Output
	meta Meta
	v    any
}

func (v *Value) Render() error { return v.out.Render(v) }
func (v *Value) Meta() Meta    { return v.meta }
func (v *Value) RenderJSON() any {
	return v.v
}

func (v *Value) RenderText(w io.Writer, _ Styles) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v.v)
}

func (v *Value) RenderMarkdown(w io.Writer) error {
	b, err := json.MarshalIndent(v.v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "```json\n%s\n```\n", b)
	return err
}
