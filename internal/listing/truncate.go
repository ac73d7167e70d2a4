package listing

const truncationSuffix = "..."

// Truncate shortens s to at most limit runes, counting the trailing "..."
// suffix against the budget. Strings within the budget pass through
// unchanged. The cut is a hard rune cut with no word-boundary logic; for
// limits smaller than the suffix itself the suffix is returned whole.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		limit = DefaultDescriptionLimit
	}

	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}

	keep := limit - len([]rune(truncationSuffix))
	if keep < 0 {
		keep = 0
	}
	return string(runes[:keep]) + truncationSuffix
}
