package report

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mhoffm/clusterkey/internal/ui"
	"github.com/mhoffm/clusterkey/internal/util"
)

// Render produces the styled multi-line report for a set of checks. One
// line per check, suggestions indented beneath their check, and a summary
// line at the end.
func Render(target string, checks []CheckResult) string {
	var b strings.Builder

	headerStyle := lipgloss.NewStyle().Foreground(ui.ColorInfo).Bold(true)
	mutedStyle := lipgloss.NewStyle().Foreground(ui.ColorMuted)

	b.WriteString(headerStyle.Render(fmt.Sprintf("Validating %s", target)))
	b.WriteString("\n\n")

	failed := 0
	warned := 0
	for _, c := range checks {
		b.WriteString("  ")
		b.WriteString(renderLine(c))
		b.WriteString("\n")
		if c.Suggestion != "" {
			b.WriteString("    ")
			b.WriteString(mutedStyle.Render(ui.SymbolArrow + " " + c.Suggestion))
			b.WriteString("\n")
		}
		switch c.Status {
		case StatusFail:
			failed++
		case StatusWarn:
			warned++
		}
	}

	b.WriteString("\n")
	b.WriteString(renderSummary(len(checks), failed, warned))
	b.WriteString("\n")
	return b.String()
}

func renderLine(c CheckResult) string {
	var symbol string
	var color lipgloss.Color
	switch c.Status {
	case StatusPass:
		symbol, color = ui.SymbolSuccess, ui.ColorSuccess
	case StatusWarn:
		symbol, color = ui.SymbolWarn, ui.ColorWarning
	default:
		symbol, color = ui.SymbolFail, ui.ColorError
	}

	symbolStyle := lipgloss.NewStyle().Foreground(color)
	return symbolStyle.Render(symbol) + " " + c.Message
}

func renderSummary(total, failed, warned int) string {
	if failed == 0 && warned == 0 {
		style := lipgloss.NewStyle().Foreground(ui.ColorSuccess).Bold(true)
		return style.Render(fmt.Sprintf("All %d %s passed", total, util.Pluralize(total, "check", "checks")))
	}
	if failed == 0 {
		style := lipgloss.NewStyle().Foreground(ui.ColorWarning).Bold(true)
		return style.Render(fmt.Sprintf("%d passed, %d %s", total-warned, warned, util.Pluralize(warned, "warning", "warnings")))
	}
	style := lipgloss.NewStyle().Foreground(ui.ColorError).Bold(true)
	return style.Render(fmt.Sprintf("%d of %d checks failed", failed, total))
}
