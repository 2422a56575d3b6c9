package ui

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderHeader(t *testing.T) {
	out := RenderHeader(HeaderInfo{
		Version: "v0.2.0",
		Tagline: "Passwordless SSH key setup",
		Target:  "alice@gpu01:22",
	})

	assert.Contains(t, out, "clusterkey")
	assert.Contains(t, out, "v0.2.0")
	assert.Contains(t, out, "Passwordless SSH key setup")
	assert.Contains(t, out, "alice@gpu01:22")
	assert.Contains(t, out, strings.Repeat("━", HeaderWidth))
}

func TestRenderHeaderOmitsEmptyLines(t *testing.T) {
	out := RenderHeader(HeaderInfo{Version: "dev"})

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	// Title plus divider only.
	assert.Len(t, lines, 2)
}

func TestColorsEnabledRespectsNoColor(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	assert.False(t, ColorsEnabled())
}

func TestStatusSymbolsDistinct(t *testing.T) {
	symbols := []string{SymbolSuccess, SymbolFail, SymbolWarn, SymbolPending, SymbolArrow}
	seen := make(map[string]bool)
	for _, s := range symbols {
		assert.NotEmpty(t, s)
		assert.False(t, seen[s], "symbol %q duplicated", s)
		seen[s] = true
	}
}
