package query

import "sort"

// DefaultRRFConstant is the standard RRF smoothing parameter (k=60),
// matching the teacher's internal/search.DefaultRRFConstant.
const DefaultRRFConstant = 60

// hybridFuse implements spec.md section 4.8's hybrid mode: each list is
// normalized by dividing by its own max score, then combined as
// alpha*normVector + (1-alpha)*normBM25, summed per chunk. The first-seen
// result object is kept as canonical and the missing individual score is
// filled in afterward.
func hybridFuse(vec, bm25 []Result, alpha float64, topK int) []Result {
	byID := make(map[string]*Result, len(vec)+len(bm25))
	order := make([]string, 0, len(vec)+len(bm25))

	vecMax := maxScore(vec)
	bm25Max := maxScore(bm25)

	record := func(id string) *Result {
		if r, ok := byID[id]; ok {
			return r
		}
		order = append(order, id)
		r := &Result{}
		byID[id] = r
		return r
	}

	for _, v := range vec {
		r := record(v.ChunkID)
		if r.ChunkID == "" {
			*r = v
		}
		r.VectorScore = v.Score
		norm := 0.0
		if vecMax > 0 {
			norm = v.Score / vecMax
		}
		r.Score += alpha * norm
	}

	for _, b := range bm25 {
		r := record(b.ChunkID)
		if r.ChunkID == "" {
			*r = b
		}
		r.BM25Score = b.Score
		norm := 0.0
		if bm25Max > 0 {
			norm = b.Score / bm25Max
		}
		r.Score += (1 - alpha) * norm
	}

	results := make([]Result, 0, len(order))
	for _, id := range order {
		results = append(results, *byID[id])
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ChunkID < results[j].ChunkID
	})
	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results
}

// weightedList is one ranked retrieval list contributing to a multi-mode
// Reciprocal Rank Fusion.
type weightedList struct {
	weight float64
	items  []Result
}

// multiFuse implements spec.md section 4.8's multi mode: RRF across however
// many lists are supplied (vector, bm25, and graph when enabled). A chunk
// present in more than one list has its graph-only fields merged onto the
// canonical (first-seen) result.
func multiFuse(k int, topK int, lists ...weightedList) []Result {
	if k <= 0 {
		k = DefaultRRFConstant
	}

	byID := make(map[string]*Result)
	rrf := make(map[string]float64)
	order := make([]string, 0)

	for _, l := range lists {
		for rank, item := range l.items {
			r, ok := byID[item.ChunkID]
			if !ok {
				cp := item
				cp.Score = 0
				byID[item.ChunkID] = &cp
				r = &cp
				order = append(order, item.ChunkID)
			} else {
				mergeGraphFields(r, item)
				mergeScoreFields(r, item)
			}
			rrf[item.ChunkID] += l.weight / float64(k+rank+1)
		}
	}

	results := make([]Result, 0, len(order))
	for _, id := range order {
		r := byID[id]
		r.Score = rrf[id]
		results = append(results, *r)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ChunkID < results[j].ChunkID
	})

	normalize(results)

	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results
}

func mergeGraphFields(dst *Result, src Result) {
	if dst.GraphScore == 0 && src.GraphScore != 0 {
		dst.GraphScore = src.GraphScore
	}
	if len(dst.RelatedEntities) == 0 && len(src.RelatedEntities) > 0 {
		dst.RelatedEntities = src.RelatedEntities
	}
	if dst.RelationshipPath == "" && src.RelationshipPath != "" {
		dst.RelationshipPath = src.RelationshipPath
	}
}

func mergeScoreFields(dst *Result, src Result) {
	if dst.VectorScore == 0 && src.VectorScore != 0 {
		dst.VectorScore = src.VectorScore
	}
	if dst.BM25Score == 0 && src.BM25Score != 0 {
		dst.BM25Score = src.BM25Score
	}
	if dst.Text == "" && src.Text != "" {
		dst.Text = src.Text
	}
	if dst.Metadata == nil && src.Metadata != nil {
		dst.Metadata = src.Metadata
	}
}

func maxScore(results []Result) float64 {
	max := 0.0
	for _, r := range results {
		if r.Score > max {
			max = r.Score
		}
	}
	return max
}

// normalize scales RRF scores to [0,1] against the top result, matching
// the teacher's fusion.normalize.
func normalize(results []Result) {
	if len(results) == 0 {
		return
	}
	max := results[0].Score
	if max == 0 {
		return
	}
	for i := range results {
		results[i].Score /= max
	}
}
