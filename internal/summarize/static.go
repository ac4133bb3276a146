package summarize

import (
	"context"
	"strings"
)

// StaticSummarizer is the no-network fallback: it derives a crude
// summary from a code chunk's first non-blank line (usually a
// signature, declaration, or comment) rather than calling a model.
// Mirrors internal/embed.StaticEmbedder's role as the default when no
// provider is configured.
type StaticSummarizer struct {
	closed bool
}

var _ Summarizer = (*StaticSummarizer)(nil)

// NewStaticSummarizer creates a new static summarizer.
func NewStaticSummarizer() *StaticSummarizer {
	return &StaticSummarizer{}
}

// Summarize returns the first non-blank line of code, truncated, as a
// placeholder summary.
func (s *StaticSummarizer) Summarize(_ context.Context, code, _ string) (string, error) {
	for _, line := range strings.Split(code, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if len(trimmed) > 120 {
			trimmed = trimmed[:120]
		}
		return trimmed, nil
	}
	return "", nil
}

// ModelName identifies this as the static fallback, not a real model.
func (s *StaticSummarizer) ModelName() string {
	return "static"
}

// Available always reports true: no network dependency.
func (s *StaticSummarizer) Available(_ context.Context) bool {
	return true
}

// Close is a no-op.
func (s *StaticSummarizer) Close() error {
	s.closed = true
	return nil
}
