package welcome

import (
	"charm.land/lipgloss/v2"

	"github.com/abhisek/studylm/internal/ui/theme"
)

const bannerArt = `
 ███████╗████████╗██╗   ██╗██████╗ ██╗   ██╗██╗     ███╗   ███╗
 ██╔════╝╚══██╔══╝██║   ██║██╔══██╗╚██╗ ██╔╝██║     ████╗ ████║
 ███████╗   ██║   ██║   ██║██║  ██║ ╚████╔╝ ██║     ██╔████╔██║
 ╚════██║   ██║   ██║   ██║██║  ██║  ╚██╔╝  ██║     ██║╚██╔╝██║
 ███████║   ██║   ╚██████╔╝██████╔╝   ██║   ███████╗██║ ╚═╝ ██║
 ╚══════╝   ╚═╝    ╚═════╝ ╚═════╝    ╚═╝   ╚══════╝╚═╝     ╚═╝`

const bannerCompact = "S T U D Y L M"

// bannerWidth is the widest line of bannerArt.
const bannerWidth = 65

// RenderBanner returns the banner styled in the primary color, falling back
// to a compact form on narrow terminals.
func RenderBanner(width int) string {
	style := lipgloss.NewStyle().
		Foreground(theme.Primary).
		Bold(true)

	if width < bannerWidth {
		return style.Render(bannerCompact)
	}
	return style.Render(bannerArt)
}
