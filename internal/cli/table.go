package cli

import (
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
)

// Table renders rows with go-pretty. A column headed "Status" is colored
// in text mode.
type Table struct {
	out     *Output
	meta    Meta
	headers []string
	rows    [][]string
}

// AddRow adds a row of values. Should match header count.
func (t *Table) AddRow(values ...string) *Table {
	t.rows = append(t.rows, values)
	return t
}

// Render outputs the table in the configured format.
func (t *Table) Render() error { return t.out.Render(t) }

// Meta returns the table metadata with the row count.
func (t *Table) Meta() Meta {
	m := t.meta
	m.Count = len(t.rows)
	return m
}

// RenderText writes a light-style table.
func (t *Table) RenderText(w io.Writer, s Styles) error {
	tw := t.writer(s)
	tw.SetStyle(table.StyleLight)
	_, err := io.WriteString(w, tw.Render()+"\n")
	return err
}

// RenderJSON returns one object per row keyed by header.
func (t *Table) RenderJSON() any {
	out := make([]map[string]string, 0, len(t.rows))
	for _, row := range t.rows {
		obj := make(map[string]string, len(t.headers))
		for i, h := range t.headers {
			if i < len(row) {
				obj[toJSONKey(h)] = row[i]
			}
		}
		out = append(out, obj)
	}
	return out
}

// RenderMarkdown writes a markdown table.
func (t *Table) RenderMarkdown(w io.Writer) error {
	_, err := io.WriteString(w, t.writer(Styles{}).RenderMarkdown()+"\n")
	return err
}

func (t *Table) writer(s Styles) table.Writer {
	tw := table.NewWriter()
	status := -1
	header := make(table.Row, len(t.headers))
	for i, h := range t.headers {
		header[i] = h
		if strings.EqualFold(h, "status") {
			status = i
		}
	}
	tw.AppendHeader(header)

	for _, row := range t.rows {
		r := make(table.Row, len(row))
		for i, cell := range row {
			if i == status {
				r[i] = s.Status(cell)
			} else {
				r[i] = cell
			}
		}
		tw.AppendRow(r)
	}
	return tw
}

// toJSONKey converts a header to a JSON key (lowercase, underscores).
func toJSONKey(s string) string {
	return strings.ToLower(strings.ReplaceAll(s, " ", "_"))
}
