package tui

import (
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/issuetrackhq/tracker-tui/internal/logger"
)

// renderMarkdown renders an issue description as terminal markdown. It falls
// back to the raw text when rendering fails so the details pane never ends up
// empty.
func renderMarkdown(source string, width int, themeName string) string {
	if strings.TrimSpace(source) == "" {
		return ""
	}
	if width <= 0 {
		width = 80
	}

	style := "dark"
	if themeName == "light" {
		style = "light"
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		logger.ErrorWithErr(err, "tui.markdown: renderer init failed")
		return source
	}

	out, err := renderer.Render(source)
	if err != nil {
		logger.ErrorWithErr(err, "tui.markdown: render failed")
		return source
	}
	return strings.TrimRight(out, "\n")
}
