// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package styles provides the visual styling system for the chatdesk TUI.
package styles

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme names accepted by NewTheme.
const (
	ThemeAuto  = "auto"
	ThemeDark  = "dark"
	ThemeLight = "light"
)

// Theme holds all the styled components for the application.
type Theme struct {
	// Terminal capabilities
	Name         string
	IsDark       bool
	ColorProfile termenv.Profile

	// Layout
	App       lipgloss.Style
	Header    lipgloss.Style
	HeaderDim lipgloss.Style
	Divider   lipgloss.Style

	// Sidebar
	Sidebar         lipgloss.Style
	SidebarTitle    lipgloss.Style
	SidebarItem     lipgloss.Style
	SidebarSelected lipgloss.Style
	SidebarEmpty    lipgloss.Style

	// Messages
	UserLabel      lipgloss.Style
	AssistantLabel lipgloss.Style
	Timestamp      lipgloss.Style
	MessageBody    lipgloss.Style
	ErrorBody      lipgloss.Style
	Cursor         lipgloss.Style
	Attachment     lipgloss.Style

	// Input and status
	InputPrompt  lipgloss.Style
	SearchPrompt lipgloss.Style
	StatusBar    lipgloss.Style
	Streaming    lipgloss.Style
	ShortcutKey  lipgloss.Style
	ShortcutDesc lipgloss.Style
	Muted        lipgloss.Style

	// Toasts
	ToastSuccess lipgloss.Style
	ToastError   lipgloss.Style
	ToastWarning lipgloss.Style
	ToastInfo    lipgloss.Style
}

// NewTheme builds a theme. "auto" (or an unknown name) follows the
// terminal background; NO_COLOR and dumb terminals get an uncolored theme.
func NewTheme(name string) *Theme {
	return newTheme(name, termenv.EnvColorProfile(), termenv.HasDarkBackground)
}

func newTheme(name string, profile termenv.Profile, darkBackground func() bool) *Theme {
	name = strings.ToLower(strings.TrimSpace(name))
	var isDark bool
	switch name {
	case ThemeDark:
		isDark = true
	case ThemeLight:
		isDark = false
	default:
		name = ThemeAuto
		isDark = darkBackground()
	}

	t := &Theme{Name: name, IsDark: isDark, ColorProfile: profile}
	t.initStyles()
	return t
}

// Color resolves an adaptive color for this theme. An ASCII profile yields
// no color at all.
func (t *Theme) Color(c lipgloss.AdaptiveColor) lipgloss.TerminalColor {
	if t.ColorProfile == termenv.Ascii {
		return lipgloss.NoColor{}
	}
	if t.IsDark {
		return lipgloss.Color(c.Dark)
	}
	return lipgloss.Color(c.Light)
}

// MarkdownStyle names the glamour style matching this theme.
func (t *Theme) MarkdownStyle() string {
	switch {
	case t.ColorProfile == termenv.Ascii:
		return "notty"
	case t.IsDark:
		return ThemeDark
	default:
		return ThemeLight
	}
}

func (t *Theme) initStyles() {
	fg := func(c lipgloss.AdaptiveColor) lipgloss.Style {
		return lipgloss.NewStyle().Foreground(t.Color(c))
	}

	t.App = lipgloss.NewStyle()
	t.Header = fg(Cyan).Bold(true).Padding(0, 1)
	t.HeaderDim = fg(TextSecondary).Italic(true)
	t.Divider = fg(Overlay)

	t.Sidebar = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderRight(true).
		BorderForeground(t.Color(Overlay)).
		PaddingRight(1)
	t.SidebarTitle = fg(TextSecondary).Bold(true)
	t.SidebarItem = fg(TextPrimary)
	t.SidebarSelected = fg(TextPrimary).
		Background(t.Color(SelectionBg)).
		Bold(true)
	t.SidebarEmpty = fg(TextMuted).Italic(true)

	t.UserLabel = fg(Cyan).Bold(true)
	t.AssistantLabel = fg(Purple).Bold(true)
	t.Timestamp = fg(TextMuted)
	t.MessageBody = fg(TextPrimary)
	t.ErrorBody = fg(Rose)
	t.Cursor = fg(Amber).Bold(true)
	t.Attachment = fg(TextSecondary).Italic(true)

	t.InputPrompt = fg(Cyan).Bold(true)
	t.SearchPrompt = fg(Amber).Bold(true)
	t.StatusBar = fg(TextSecondary).Background(t.Color(SurfaceDim))
	t.Streaming = fg(Amber).Bold(true)
	t.ShortcutKey = fg(Cyan).Bold(true)
	t.ShortcutDesc = fg(TextMuted)
	t.Muted = fg(TextMuted)

	toast := func(c lipgloss.AdaptiveColor) lipgloss.Style {
		return lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(t.Color(c)).
			Foreground(t.Color(TextPrimary)).
			Padding(0, 1)
	}
	t.ToastSuccess = toast(Emerald)
	t.ToastError = toast(Rose)
	t.ToastWarning = toast(Amber)
	t.ToastInfo = toast(Cyan)
}
