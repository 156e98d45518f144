// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the visual styling system for the chatdesk TUI.

Colors are defined once as lipgloss.AdaptiveColor pairs (colors.go). A
Theme (theme.go) resolves every pair for a fixed light or dark background
and builds the lipgloss styles used by the components:

	theme := styles.NewTheme("dark")
	label := theme.UserLabel.Render("User")

The "auto" theme asks termenv whether the terminal background is dark.
When the environment disables color (NO_COLOR, TERM=dumb) the theme
renders without any color codes and markdown uses glamour's "notty" style.
*/
package styles
