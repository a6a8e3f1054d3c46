package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
)

// KV renders ordered key-value pairs.
type KV struct {
	out   *Output
	meta  Meta
	pairs []kvPair
}

type kvPair struct {
	key   string
	value any
}

// Set adds a key-value pair.
func (k *KV) Set(key string, value any) *KV {
	k.pairs = append(k.pairs, kvPair{key: key, value: value})
	return k
}

// Render outputs the pairs in the configured format.
func (k *KV) Render() error { return k.out.Render(k) }

// Meta returns the metadata.
func (k *KV) Meta() Meta { return k.meta }

// RenderText writes aligned "key: value" lines. A "Status" value is colored.
func (k *KV) RenderText(w io.Writer, s Styles) error {
	if len(k.pairs) == 0 {
		return nil
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleLight)
	tw.Style().Options.DrawBorder = false
	tw.Style().Options.SeparateColumns = false
	tw.Style().Options.SeparateRows = false
	tw.Style().Options.SeparateHeader = false

	for _, p := range k.pairs {
		v := fmt.Sprintf("%v", p.value)
		if strings.EqualFold(p.key, "status") {
			v = s.Status(v)
		}
		tw.AppendRow(table.Row{s.Key(p.key + ":"), v})
	}
	_, err := io.WriteString(w, tw.Render()+"\n")
	return err
}

// RenderJSON returns the pairs as one object.
func (k *KV) RenderJSON() any {
	out := make(map[string]any, len(k.pairs))
	for _, p := range k.pairs {
		out[toJSONKey(p.key)] = p.value
	}
	return out
}

// RenderMarkdown writes bold keys, one pair per paragraph.
func (k *KV) RenderMarkdown(w io.Writer) error {
	for _, p := range k.pairs {
		if _, err := fmt.Fprintf(w, "**%s:** %s\n\n", p.key, markdownValue(p.value)); err != nil {
			return err
		}
	}
	return nil
}

// markdownValue wraps identifiers in backticks and joins lists.
func markdownValue(v any) string {
	switch x := v.(type) {
	case []string:
		if len(x) == 0 {
			return "_none_"
		}
		quoted := make([]string, len(x))
		for i, s := range x {
			quoted[i] = "`" + s + "`"
		}
		return strings.Join(quoted, ", ")
	case string:
		if x == "" {
			return "_none_"
		}
		if strings.ContainsAny(x, ":/") || !strings.Contains(x, " ") {
			return "`" + x + "`"
		}
		return x
	default:
		return fmt.Sprintf("%v", v)
	}
}
