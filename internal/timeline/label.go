package timeline

import "strings"

// shortenPath trims the longest matching workspace root prefix from filepath,
// leaving a path relative to that root. Paths outside every root are returned
// unchanged.
func shortenPath(filepath string, roots []string) string {
	best := ""
	for _, root := range roots {
		if root == "" {
			continue
		}
		trimmed := strings.TrimSuffix(root, "/")
		if filepath == trimmed || strings.HasPrefix(filepath, trimmed+"/") {
			if len(trimmed) > len(best) {
				best = trimmed
			}
		}
	}
	if best == "" {
		return filepath
	}
	rel := strings.TrimPrefix(filepath, best)
	rel = strings.TrimPrefix(rel, "/")
	if rel == "" {
		return filepath
	}
	return rel
}
