// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the visual styling system for the parley terminal UI
and CLI output.

All colors use Lip Gloss AdaptiveColor. NewTheme pins the light/dark choice
from the ui.theme setting ("auto" asks the terminal through termenv), so the
same palette works on both backgrounds.

# Usage

	theme := styles.NewTheme(cfg.UI.Theme)
	line := theme.ErrorLine.Render("bad response: 502, upstream down")

	// CLI messages carry an ASCII marker as well as a color
	fmt.Println(styles.RenderSuccess("settings saved"))
*/
package styles
