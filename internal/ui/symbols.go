package ui

// Unicode symbols for status indicators.
const (
	SymbolSuccess = "✓" // Check passed
	SymbolFail    = "✗" // Check failed
	SymbolWarn    = "!" // Check passed with a caveat
	SymbolPending = "○" // Not yet run
	SymbolArrow   = "→" // Suggestion lead-in
)
