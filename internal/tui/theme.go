package tui

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
)

// Theme holds the colors used across the UI.
type Theme struct {
	Name          string
	Background    tcell.Color
	HeaderBg      tcell.Color
	Foreground    tcell.Color
	SecondaryText tcell.Color
	Accent        tcell.Color
	Border        tcell.Color
	BorderFocus   tcell.Color
	SelectionBg   tcell.Color
	SelectionText tcell.Color
	Success       tcell.Color
	Warning       tcell.Color
	Error         tcell.Color
}

// ThemeTags holds the tview dynamic-color tags for the theme, precomputed so
// render paths can concatenate strings without formatting colors each time.
type ThemeTags struct {
	Foreground    string
	SecondaryText string
	Accent        string
	Border        string
	Success       string
	Warning       string
	Error         string
}

// NewThemeTags builds the color tags for a theme.
func NewThemeTags(t Theme) ThemeTags {
	return ThemeTags{
		Foreground:    colorTag(t.Foreground),
		SecondaryText: colorTag(t.SecondaryText),
		Accent:        colorTag(t.Accent),
		Border:        colorTag(t.Border),
		Success:       colorTag(t.Success),
		Warning:       colorTag(t.Warning),
		Error:         colorTag(t.Error),
	}
}

func colorTag(c tcell.Color) string {
	return fmt.Sprintf("[#%06x]", c.Hex())
}

func darkTheme() Theme {
	return Theme{
		Name:          "dark",
		Background:    tcell.NewHexColor(0x1a1b26),
		HeaderBg:      tcell.NewHexColor(0x24283b),
		Foreground:    tcell.NewHexColor(0xc0caf5),
		SecondaryText: tcell.NewHexColor(0x565f89),
		Accent:        tcell.NewHexColor(0x7aa2f7),
		Border:        tcell.NewHexColor(0x3b4261),
		BorderFocus:   tcell.NewHexColor(0x7aa2f7),
		SelectionBg:   tcell.NewHexColor(0x283457),
		SelectionText: tcell.NewHexColor(0xc0caf5),
		Success:       tcell.NewHexColor(0x9ece6a),
		Warning:       tcell.NewHexColor(0xe0af68),
		Error:         tcell.NewHexColor(0xf7768e),
	}
}

func lightTheme() Theme {
	return Theme{
		Name:          "light",
		Background:    tcell.NewHexColor(0xe1e2e7),
		HeaderBg:      tcell.NewHexColor(0xd5d6db),
		Foreground:    tcell.NewHexColor(0x343b58),
		SecondaryText: tcell.NewHexColor(0x848cb5),
		Accent:        tcell.NewHexColor(0x2e7de9),
		Border:        tcell.NewHexColor(0xa8aecb),
		BorderFocus:   tcell.NewHexColor(0x2e7de9),
		SelectionBg:   tcell.NewHexColor(0xb7c1e3),
		SelectionText: tcell.NewHexColor(0x343b58),
		Success:       tcell.NewHexColor(0x587539),
		Warning:       tcell.NewHexColor(0x8c6c3e),
		Error:         tcell.NewHexColor(0xc64343),
	}
}

// ResolveTheme maps a theme name to a Theme, defaulting to dark.
func ResolveTheme(name string) Theme {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "light":
		return lightTheme()
	default:
		return darkTheme()
	}
}
