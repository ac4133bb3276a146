// Package summarize implements the summarization provider spec.md
// section 4.9 step 3 calls for: when an index request sets
// generate_summaries, each code chunk is sent to a Summarizer and the
// returned summary is attached to the chunk's metadata. Structurally
// grounded on internal/embed's Embedder/Provider split (a narrow
// interface for the worker pipeline, a Ping-style health probe for
// internal/httpapi's provider status endpoint).
package summarize

import (
	"context"
	"time"
)

// DefaultTimeout bounds a single summarization call.
const DefaultTimeout = 30 * time.Second

// MaxSourceChars caps how much of a chunk's content is sent to the
// provider, keeping prompts small for large code chunks.
const MaxSourceChars = 4000

// Summarizer produces a short natural-language summary of a code chunk.
type Summarizer interface {
	// Summarize returns a one-to-two sentence description of what code
	// does, given its content and language (language may be empty).
	Summarize(ctx context.Context, code, language string) (string, error)

	// ModelName returns the model identifier in use.
	ModelName() string

	// Available reports whether the provider is reachable and usable.
	Available(ctx context.Context) bool

	// Close releases any held resources.
	Close() error
}

// Provider is the narrow health-check surface internal/httpapi's
// /health/providers endpoint probes, mirroring embed.Provider.
type Provider interface {
	Ping(ctx context.Context) error
}
