package worker

import (
	"context"

	"github.com/agent-brain/brain/internal/chunk"
	"github.com/agent-brain/brain/internal/docloader"
	"github.com/agent-brain/brain/internal/embed"
	"github.com/agent-brain/brain/internal/errorsx"
	"github.com/agent-brain/brain/internal/scanner"
	"github.com/agent-brain/brain/internal/store"
	"github.com/agent-brain/brain/internal/summarize"
)

// embeddingBatchSize mirrors runner.go's fixed batch size for
// EmbedBatch calls.
const embeddingBatchSize = 32

// Pipeline is the concrete Indexer: load -> chunk -> summarize (code,
// optional) -> embed -> upsert against a store.Backend, grounded on
// internal/index.Runner's staged design but retargeted at the unified
// Backend interface (spec.md section 4.3) instead of the teacher's
// separate metadata/BM25/vector stores.
type Pipeline struct {
	backend    store.Backend
	embedder   embed.Embedder
	summarizer summarize.Summarizer
}

// NewPipeline builds a Pipeline over the given backend and embedder. A
// nil summarizer is fine: generate_summaries requests are then a no-op
// (the chunk is still indexed, just without a summary attached).
func NewPipeline(backend store.Backend, embedder embed.Embedder, summarizer summarize.Summarizer) *Pipeline {
	return &Pipeline{backend: backend, embedder: embedder, summarizer: summarizer}
}

// Count reports the backend's current chunk count, used for delta
// verification.
func (p *Pipeline) Count(ctx context.Context) (int, error) {
	return p.backend.GetCount(ctx, store.Filter{})
}

// Index scans folderPath, chunks every indexable file, embeds the
// chunks in batches, and upserts them into the backend. "index"
// operation resets the backend first (full replace); "add" upserts
// without clearing prior content, per the job queue's Open Question
// resolution that add is upsert-only.
func (p *Pipeline) Index(ctx context.Context, req IndexRequest, progress ProgressFunc) (IndexResult, error) {
	if req.Operation == "index" {
		if err := p.backend.Reset(ctx); err != nil {
			return IndexResult{}, errorsx.Storage(p.backend.Name(), "reset before full reindex", err)
		}
	}

	docs, err := docloader.Load(ctx, docloader.Options{
		RootDir:         req.FolderPath,
		Recursive:       req.Recursive,
		IncludeCode:     req.IncludeCode,
		IncludePatterns: req.IncludePatterns,
		ExcludePatterns: req.ExcludePatterns,
	})
	if err != nil {
		return IndexResult{}, errorsx.Wrap(errorsx.KindInternal, err)
	}

	codeChunker := chunk.NewCodeChunkerWithOptions(chunk.CodeChunkerOptions{
		MaxChunkTokens: req.ChunkSize,
		OverlapTokens:  req.ChunkOverlap,
	})
	mdChunker := chunk.NewMarkdownChunkerWithOptions(chunk.MarkdownChunkerOptions{
		MaxChunkTokens: req.ChunkSize,
		OverlapTokens:  req.ChunkOverlap,
	})
	defer codeChunker.Close()

	var allChunks []*chunk.Chunk
	total := len(docs)
	for i, doc := range docs {
		select {
		case <-ctx.Done():
			return IndexResult{}, ctx.Err()
		default:
		}

		var chunker chunk.Chunker
		switch doc.ContentType {
		case scanner.ContentTypeCode:
			chunker = codeChunker
		case scanner.ContentTypeMarkdown:
			chunker = mdChunker
		default:
			continue
		}

		chunks, chunkErr := chunker.Chunk(ctx, &chunk.FileInput{
			Path:     doc.Path,
			Content:  doc.Content,
			Language: doc.Language,
		})
		if chunkErr != nil {
			continue
		}

		if req.GenerateSummaries && doc.ContentType == scanner.ContentTypeCode && p.summarizer != nil {
			p.attachSummaries(ctx, chunks, doc.Language)
		}
		allChunks = append(allChunks, chunks...)

		if err := progress(i+1, total, doc.Path); err != nil {
			return IndexResult{}, err
		}
	}

	if len(allChunks) == 0 {
		return IndexResult{FilesProcessed: total}, nil
	}

	chunksCreated, err := p.embedAndUpsert(ctx, allChunks)
	if err != nil {
		return IndexResult{}, err
	}

	return IndexResult{
		FilesProcessed: total,
		ChunksCreated:  chunksCreated,
		Documents:      total,
	}, nil
}

// attachSummaries fills each chunk's "summary" metadata entry by calling
// the summarizer on its content. Errors are swallowed per-chunk (the
// chunk is still indexed without a summary) so a flaky summarization
// provider never fails an entire indexing job, matching the pipeline's
// existing graceful-degradation precedent for unreadable/unchunkable
// files.
func (p *Pipeline) attachSummaries(ctx context.Context, chunks []*chunk.Chunk, language string) {
	for _, c := range chunks {
		summary, err := p.summarizer.Summarize(ctx, c.Content, language)
		if err != nil || summary == "" {
			continue
		}
		if c.Metadata == nil {
			c.Metadata = make(map[string]string, 1)
		}
		c.Metadata["summary"] = summary
	}
}

// embedAndUpsert embeds chunks in fixed-size batches and upserts each
// batch into the backend as it completes, matching runner.go's
// generateEmbeddings/buildIndices stages collapsed into one step now
// that embeddings and storage share a single Backend.Upsert call.
func (p *Pipeline) embedAndUpsert(ctx context.Context, chunks []*chunk.Chunk) (int, error) {
	total := 0
	for start := 0; start < len(chunks); start += embeddingBatchSize {
		select {
		case <-ctx.Done():
			return total, ctx.Err()
		default:
		}

		end := start + embeddingBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]
		if end >= len(chunks) {
			p.embedder.SetFinalBatch(true)
		}

		texts := make([]string, len(batch))
		ids := make([]string, len(batch))
		metas := make([]map[string]any, len(batch))
		for i, c := range batch {
			texts[i] = c.Content
			ids[i] = c.ID
			metas[i] = chunkMetadata(c)
		}

		embeddings, err := p.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return total, errorsx.Wrap(errorsx.KindProvider, err)
		}

		n, err := p.backend.Upsert(ctx, ids, embeddings, texts, metas)
		if err != nil {
			return total, errorsx.Storage(p.backend.Name(), "upsert chunk batch", err)
		}
		total += n
	}
	return total, nil
}

func chunkMetadata(c *chunk.Chunk) map[string]any {
	m := map[string]any{
		"file_path":    c.FilePath,
		"content_type": string(c.ContentType),
		"language":     c.Language,
		"start_line":   c.StartLine,
		"end_line":     c.EndLine,
	}
	for k, v := range c.Metadata {
		m[k] = v
	}
	return m
}
