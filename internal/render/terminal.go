package render

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/pkg/errors"
)

// Terminal renders assistant replies for ANSI terminals. The terminal
// client uses it instead of the HTML pipeline.
type Terminal struct {
	r *glamour.TermRenderer
}

// NewTerminal creates a renderer with a glamour standard style ("dark",
// "light", "notty", ...) wrapping at width columns.
func NewTerminal(style string, width int) (*Terminal, error) {
	if style == "" {
		style = "dark"
	}
	if width <= 0 {
		width = 80
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil, errors.Wrap(err, "render: create terminal renderer")
	}
	return &Terminal{r: r}, nil
}

// Render falls back to the raw text when glamour fails.
func (t *Terminal) Render(text string) string {
	out, err := t.r.Render(text)
	if err != nil {
		return text
	}
	return strings.Trim(out, "\n")
}
