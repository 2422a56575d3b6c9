package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// HeaderInfo contains information to display in the header.
type HeaderInfo struct {
	Version string // Version string (e.g., "v0.2.0")
	Tagline string // Optional tagline
	Target  string // Optional target identity (e.g., "alice@gpu01:22")
}

// HeaderWidth is the default width of the header divider
const HeaderWidth = 50

// RenderHeader renders a clean branded header: title line, optional tagline
// and target, then a divider.
func RenderHeader(info HeaderInfo) string {
	titleStyle := lipgloss.NewStyle().
		Foreground(ColorInfo).
		Bold(true)

	versionStyle := lipgloss.NewStyle().
		Foreground(ColorSecondary)

	taglineStyle := lipgloss.NewStyle().
		Foreground(ColorSecondary)

	dividerStyle := lipgloss.NewStyle().
		Foreground(ColorMuted)

	var output strings.Builder

	output.WriteString(titleStyle.Render("clusterkey"))
	output.WriteString(" ")
	output.WriteString(versionStyle.Render(info.Version))
	output.WriteString("\n")

	if info.Tagline != "" {
		output.WriteString(taglineStyle.Render(info.Tagline))
		output.WriteString("\n")
	}

	if info.Target != "" {
		targetStyle := lipgloss.NewStyle().Foreground(ColorMuted)
		output.WriteString(targetStyle.Render(info.Target))
		output.WriteString("\n")
	}

	output.WriteString(dividerStyle.Render(strings.Repeat("━", HeaderWidth)))
	output.WriteString("\n")

	return output.String()
}

// PrintHeader prints the styled header to stdout.
func PrintHeader(info HeaderInfo) {
	fmt.Print(RenderHeader(info))
}
