package format

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// RenderMarkdown styles md for the terminal wrapped at width. If the
// renderer cannot be built the raw markdown is returned.
func RenderMarkdown(md string, width int) string {
	if md == "" {
		return ""
	}
	if width <= 0 {
		width = 80
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return md
	}
	rendered, err := renderer.Render(md)
	if err != nil {
		return md
	}
	return strings.TrimRight(rendered, "\n ") + "\n"
}
