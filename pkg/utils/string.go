package utils

// Truncate shortens s to maxLen runes, appending an ellipsis when anything
// was cut. Chunk text can carry non-ASCII spreadsheet content, so the limit
// counts runes rather than bytes.
func Truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}
