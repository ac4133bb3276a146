package query

import "github.com/gobwas/glob"

// toStoreFilter builds the push-down filter passed to the backend's
// VectorSearch/KeywordSearch, per spec.md section 4.8's "filters are pushed
// down to the backend as where clauses ... to avoid over-fetching."
// file_paths has no backend-side representation and is applied afterward.
func matchesFilePaths(r Result, patterns []string) bool {
	if len(patterns) == 0 {
		return true
	}
	path, _ := r.Metadata["file_path"].(string)
	if path == "" {
		return false
	}
	for _, pattern := range patterns {
		g, err := glob.Compile(pattern)
		if err != nil {
			continue // malformed pattern matches nothing, never errors the query
		}
		if g.Match(path) {
			return true
		}
	}
	return false
}

// applyFilePathFilter removes results whose file_path metadata fails to
// match any of the given glob patterns. A nil/empty pattern list is a no-op.
func applyFilePathFilter(results []Result, patterns []string) []Result {
	if len(patterns) == 0 {
		return results
	}
	out := results[:0:0]
	for _, r := range results {
		if matchesFilePaths(r, patterns) {
			out = append(out, r)
		}
	}
	return out
}
