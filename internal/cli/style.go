package cli

import (
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/muesli/reflow/wordwrap"
)

// Styles colors text output. The zero value renders plain text.
type Styles struct {
	enabled  bool
	pending  lipgloss.Style
	signed   lipgloss.Style
	revoked  lipgloss.Style
	inactive lipgloss.Style
	key      lipgloss.Style
}

// NewStyles returns colored styles when enabled, plain ones otherwise.
func NewStyles(enabled bool) Styles {
	if !enabled {
		return Styles{}
	}
	return Styles{
		enabled:  true,
		pending:  lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		signed:   lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true),
		revoked:  lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
		inactive: lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		key:      lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
	}
}

// Status colors contract and processing statuses.
func (s Styles) Status(v string) string {
	if !s.enabled {
		return v
	}
	switch strings.ToLower(v) {
	case "pending":
		return s.pending.Render(v)
	case "signed", "active", "permit":
		return s.signed.Render(v)
	case "revoked", "prohibit", "default-deny":
		return s.revoked.Render(v)
	case "inactive":
		return s.inactive.Render(v)
	}
	return v
}

// Key dims a key label.
func (s Styles) Key(v string) string {
	if !s.enabled {
		return v
	}
	return s.key.Render(v)
}

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// Wrap word-wraps long descriptions to width columns.
func Wrap(s string, width int) string {
	if width <= 0 {
		return s
	}
	return wordwrap.String(s, width)
}
