package store

import (
	"fmt"
	"sort"

	"github.com/agent-brain/brain/internal/errorsx"
)

// Metric identifies the native distance metric a vector backend reports in.
type Metric string

const (
	MetricCosine        Metric = "cosine"
	MetricL2            Metric = "l2"
	MetricInnerProduct  Metric = "inner_product"
)

// NormalizeDistance converts a backend-native distance into the uniform
// [0,1]-higher-is-better score space (spec.md section 4.3).
func NormalizeDistance(metric Metric, d float64) float64 {
	var score float64
	switch metric {
	case MetricL2:
		score = 1 / (1 + d)
	case MetricInnerProduct:
		score = -d
	default: // cosine
		score = 1 - d
	}
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return score
}

// NormalizeKeywordScores divides every raw score by the maximum in the set.
// If the maximum is zero, every score is reported as zero rather than
// excluding results (spec.md section 4.3, "Normalization rules").
func NormalizeKeywordScores(results []SearchResult) {
	if len(results) == 0 {
		return
	}
	max := 0.0
	for _, r := range results {
		if r.Score > max {
			max = r.Score
		}
	}
	if max == 0 {
		for i := range results {
			results[i].Score = 0
		}
		return
	}
	for i := range results {
		results[i].Score = results[i].Score / max
	}
}

// SortByScoreDesc orders results by descending score, breaking ties by
// ChunkID for determinism.
func SortByScoreDesc(results []SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ChunkID < results[j].ChunkID
	})
}

// MatchesFilter reports whether metadata satisfies a JSON-containment filter:
// every key in where must be present in metadata with an equal value.
func MatchesFilter(metadata map[string]any, where map[string]any) bool {
	for k, v := range where {
		mv, ok := metadata[k]
		if !ok {
			return false
		}
		if fmt.Sprint(mv) != fmt.Sprint(v) {
			return false
		}
	}
	return true
}

func dimensionMismatch(configured, stored EmbeddingFingerprint) error {
	return errorsx.Fingerprint(fmt.Sprintf(
		"embedding dimension mismatch: index was built with %s/%s (%d dims), configured provider is %s/%s (%d dims)",
		stored.Provider, stored.Model, stored.Dimensions,
		configured.Provider, configured.Model, configured.Dimensions,
	))
}
