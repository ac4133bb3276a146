// Package lexical implements the inverted-index keyword search used by the
// columnar storage backend (store/columnar.go), built on Bleve v2.
package lexical

// Document is a unit of text handed to the index for BM25 scoring.
type Document struct {
	ID      string // chunk ID
	Content string
}

// BM25Result is a single keyword-search hit, score in Bleve's native
// (unnormalized) BM25 space. The columnar backend normalizes it into
// store.SearchResult via store.NormalizeKeywordScores.
type BM25Result struct {
	DocID        string
	Score        float64
	MatchedTerms []string
}

// IndexStats reports index-level statistics.
type IndexStats struct {
	DocumentCount int
}

// BM25Config is stored with the index. The registered Bleve analyzer always
// filters DefaultCodeStopWords and drops tokens shorter than 2 characters,
// so neither field changes how documents or queries are tokenized.
type BM25Config struct {
	StopWords      []string
	MinTokenLength int
}

// DefaultBM25Config returns the code-aware stop-word configuration.
func DefaultBM25Config() BM25Config {
	return BM25Config{
		StopWords:      DefaultCodeStopWords,
		MinTokenLength: 2,
	}
}

// DefaultCodeStopWords filters common programming keywords from the index.
var DefaultCodeStopWords = []string{
	"var", "let", "const", "func", "function", "def", "class",
	"return", "if", "else", "for", "while",
	"data", "result", "value", "item", "key", "err", "ctx", "tmp",
}
