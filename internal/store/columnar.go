package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite" // pure-Go SQLite driver, no CGO

	"github.com/agent-brain/brain/internal/errorsx"
	"github.com/agent-brain/brain/internal/lexical"
)

// ColumnarBackend is the embedded storage backend (spec.md section 4.3): an
// HNSW vector index, a Bleve inverted index for keyword search, and a
// SQLite table holding chunk text/metadata and the embedding fingerprint.
// All three live under one data directory and are saved together.
type ColumnarBackend struct {
	mu sync.RWMutex

	dataDir string
	db      *sql.DB
	vector  *HNSWStore
	lexIdx  *lexical.Index

	dims int
}

const columnarSchema = `
CREATE TABLE IF NOT EXISTS chunks (
	id TEXT PRIMARY KEY,
	text TEXT NOT NULL,
	metadata TEXT NOT NULL,
	source_type TEXT NOT NULL,
	language TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS fingerprint (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	provider TEXT NOT NULL,
	model TEXT NOT NULL,
	dimensions INTEGER NOT NULL
);
`

// NewColumnarBackend opens (or creates) the embedded backend rooted at dataDir.
func NewColumnarBackend(dataDir string) (*ColumnarBackend, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, errorsx.Storage("columnar", "create data directory", err)
	}

	dsn := filepath.Join(dataDir, "metadata.db") + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errorsx.Storage("columnar", "open metadata db", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, errorsx.Storage("columnar", "configure sqlite pragma", err)
		}
	}
	if _, err := db.Exec(columnarSchema); err != nil {
		db.Close()
		return nil, errorsx.Storage("columnar", "create schema", err)
	}

	lexIdx, err := lexical.New(filepath.Join(dataDir, "lexical"), lexical.DefaultBM25Config())
	if err != nil {
		db.Close()
		return nil, errorsx.Storage("columnar", "open lexical index", err)
	}

	return &ColumnarBackend{dataDir: dataDir, db: db, lexIdx: lexIdx}, nil
}

func (c *ColumnarBackend) Name() string { return "columnar" }

// Initialize loads the persisted vector index (if any), validates the
// embedding fingerprint, and sets it if this is a fresh index.
func (c *ColumnarBackend) Initialize(ctx context.Context, fp EmbeddingFingerprint) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	stored, ok, err := c.getEmbeddingMetadataLocked()
	if err != nil {
		return err
	}
	if err := ValidateEmbeddingCompatibility(fp, stored, ok); err != nil {
		return err
	}

	vectorPath := filepath.Join(c.dataDir, "vectors.hnsw")
	dims, err := ReadHNSWStoreDimensions(vectorPath)
	if err != nil {
		return errorsx.Storage("columnar", "read vector index dimensions", err)
	}
	if dims == 0 {
		dims = fp.Dimensions
	}
	c.dims = dims

	vs, err := NewHNSWStore(DefaultVectorStoreConfig(dims))
	if err != nil {
		return errorsx.Storage("columnar", "create vector index", err)
	}
	if _, statErr := os.Stat(vectorPath); statErr == nil {
		if err := vs.Load(vectorPath); err != nil {
			return errorsx.Storage("columnar", "load vector index", err)
		}
	}
	c.vector = vs

	if !ok {
		if err := c.setEmbeddingMetadataLocked(fp); err != nil {
			return err
		}
	}
	return nil
}

// Upsert replaces existing chunk ids and inserts new ones across all three
// stores. The lexical index is rebuilt incrementally (delete-then-index),
// matching the teacher's Bleve batch semantics.
func (c *ColumnarBackend) Upsert(ctx context.Context, ids []string, embeddings [][]float32, texts []string, metadatas []map[string]any) (int, error) {
	if len(ids) != len(embeddings) || len(ids) != len(texts) || len(ids) != len(metadatas) {
		return 0, errorsx.Validation("upsert: ids/embeddings/texts/metadatas length mismatch")
	}
	if len(ids) == 0 {
		return 0, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.vector == nil {
		return 0, errorsx.New(errorsx.KindInternal, "columnar backend not initialized")
	}
	if err := c.vector.Add(ctx, ids, embeddings); err != nil {
		return 0, errorsx.Storage("columnar", "upsert vectors", err)
	}

	docs := make([]*lexical.Document, len(ids))
	for i, id := range ids {
		docs[i] = &lexical.Document{ID: id, Content: texts[i]}
	}
	if err := c.lexIdx.Delete(ctx, ids); err != nil {
		return 0, errorsx.Storage("columnar", "delete stale lexical entries", err)
	}
	if err := c.lexIdx.Index(ctx, docs); err != nil {
		return 0, errorsx.Storage("columnar", "index lexical entries", err)
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errorsx.Storage("columnar", "begin metadata transaction", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, text, metadata, source_type, language)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET text=excluded.text, metadata=excluded.metadata,
			source_type=excluded.source_type, language=excluded.language`)
	if err != nil {
		return 0, errorsx.Storage("columnar", "prepare upsert statement", err)
	}
	defer stmt.Close()

	for i, id := range ids {
		meta := metadatas[i]
		metaJSON, err := json.Marshal(meta)
		if err != nil {
			return 0, errorsx.Validation(fmt.Sprintf("metadata for %s is not JSON-serializable: %v", id, err))
		}
		sourceType, _ := meta["source_type"].(string)
		language, _ := meta["language"].(string)
		if _, err := stmt.ExecContext(ctx, id, texts[i], string(metaJSON), sourceType, language); err != nil {
			return 0, errorsx.Storage("columnar", "upsert chunk metadata", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, errorsx.Storage("columnar", "commit metadata transaction", err)
	}

	if err := c.vector.Save(filepath.Join(c.dataDir, "vectors.hnsw")); err != nil {
		slog.Warn("columnar backend failed to persist vector index", slog.String("error", err.Error()))
	}

	return len(ids), nil
}

func (c *ColumnarBackend) VectorSearch(ctx context.Context, queryVec []float32, topK int, threshold float64, filter Filter) ([]SearchResult, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.vector == nil {
		return nil, errorsx.New(errorsx.KindInternal, "columnar backend not initialized")
	}
	// Over-fetch to leave room for post-filtering by metadata/threshold.
	raw, err := c.vector.Search(ctx, queryVec, topK*4+topK)
	if err != nil {
		return nil, errorsx.Storage("columnar", "vector search", err)
	}

	results := make([]SearchResult, 0, len(raw))
	for _, r := range raw {
		if float64(r.Score) < threshold {
			continue
		}
		text, meta, ok, err := c.getByIDLocked(ctx, r.ID)
		if err != nil {
			return nil, err
		}
		if !ok || !matchesSearchFilter(meta, filter) {
			continue
		}
		results = append(results, SearchResult{ChunkID: r.ID, Text: text, Metadata: meta, Score: float64(r.Score)})
		if len(results) >= topK {
			break
		}
	}
	SortByScoreDesc(results)
	return results, nil
}

func (c *ColumnarBackend) KeywordSearch(ctx context.Context, queryText string, topK int, filter Filter) ([]SearchResult, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	raw, err := c.lexIdx.Search(ctx, queryText, topK*4+topK)
	if err != nil {
		return nil, errorsx.Storage("columnar", "keyword search", err)
	}

	results := make([]SearchResult, 0, len(raw))
	for _, r := range raw {
		text, meta, ok, err := c.getByIDLocked(ctx, r.DocID)
		if err != nil {
			return nil, err
		}
		if !ok || !matchesSearchFilter(meta, filter) {
			continue
		}
		results = append(results, SearchResult{ChunkID: r.DocID, Text: text, Metadata: meta, Score: r.Score})
		if len(results) >= topK {
			break
		}
	}
	NormalizeKeywordScores(results)
	SortByScoreDesc(results)
	return results, nil
}

func (c *ColumnarBackend) GetCount(ctx context.Context, filter Filter) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	rows, err := c.db.QueryContext(ctx, `SELECT id, metadata FROM chunks`)
	if err != nil {
		return 0, errorsx.Storage("columnar", "count chunks", err)
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		var id, metaJSON string
		if err := rows.Scan(&id, &metaJSON); err != nil {
			return 0, errorsx.Storage("columnar", "scan chunk row", err)
		}
		var meta map[string]any
		_ = json.Unmarshal([]byte(metaJSON), &meta)
		if matchesSearchFilter(meta, filter) {
			count++
		}
	}
	return count, rows.Err()
}

func (c *ColumnarBackend) GetByID(ctx context.Context, id string) (string, map[string]any, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.getByIDLocked(ctx, id)
}

func (c *ColumnarBackend) getByIDLocked(ctx context.Context, id string) (string, map[string]any, bool, error) {
	var text, metaJSON string
	err := c.db.QueryRowContext(ctx, `SELECT text, metadata FROM chunks WHERE id = ?`, id).Scan(&text, &metaJSON)
	if err == sql.ErrNoRows {
		return "", nil, false, nil
	}
	if err != nil {
		return "", nil, false, errorsx.Storage("columnar", "get chunk by id", err)
	}
	var meta map[string]any
	_ = json.Unmarshal([]byte(metaJSON), &meta)
	return text, meta, true, nil
}

func (c *ColumnarBackend) Reset(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.db.ExecContext(ctx, `DELETE FROM chunks`); err != nil {
		return errorsx.Storage("columnar", "reset chunks table", err)
	}
	if _, err := c.db.ExecContext(ctx, `DELETE FROM fingerprint`); err != nil {
		return errorsx.Storage("columnar", "reset fingerprint table", err)
	}
	if c.vector != nil {
		_ = c.vector.Close()
	}
	vs, err := NewHNSWStore(DefaultVectorStoreConfig(c.dims))
	if err != nil {
		return errorsx.Storage("columnar", "recreate vector index", err)
	}
	c.vector = vs
	_ = os.Remove(filepath.Join(c.dataDir, "vectors.hnsw"))
	_ = os.Remove(filepath.Join(c.dataDir, "vectors.hnsw.meta"))

	if err := c.lexIdx.Close(); err != nil {
		slog.Warn("columnar reset: failed to close lexical index", slog.String("error", err.Error()))
	}
	lexDir := filepath.Join(c.dataDir, "lexical")
	_ = os.RemoveAll(lexDir)
	lexIdx, err := lexical.New(lexDir, lexical.DefaultBM25Config())
	if err != nil {
		return errorsx.Storage("columnar", "recreate lexical index", err)
	}
	c.lexIdx = lexIdx
	return nil
}

func (c *ColumnarBackend) GetEmbeddingMetadata(ctx context.Context) (EmbeddingFingerprint, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.getEmbeddingMetadataLocked()
}

func (c *ColumnarBackend) getEmbeddingMetadataLocked() (EmbeddingFingerprint, bool, error) {
	var fp EmbeddingFingerprint
	err := c.db.QueryRow(`SELECT provider, model, dimensions FROM fingerprint WHERE id = 1`).
		Scan(&fp.Provider, &fp.Model, &fp.Dimensions)
	if err == sql.ErrNoRows {
		return EmbeddingFingerprint{}, false, nil
	}
	if err != nil {
		return EmbeddingFingerprint{}, false, errorsx.Storage("columnar", "get embedding fingerprint", err)
	}
	return fp, true, nil
}

func (c *ColumnarBackend) SetEmbeddingMetadata(ctx context.Context, fp EmbeddingFingerprint) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.setEmbeddingMetadataLocked(fp)
}

func (c *ColumnarBackend) setEmbeddingMetadataLocked(fp EmbeddingFingerprint) error {
	_, err := c.db.Exec(`
		INSERT INTO fingerprint (id, provider, model, dimensions) VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET provider=excluded.provider, model=excluded.model, dimensions=excluded.dimensions`,
		fp.Provider, fp.Model, fp.Dimensions)
	if err != nil {
		return errorsx.Storage("columnar", "set embedding fingerprint", err)
	}
	return nil
}

func (c *ColumnarBackend) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var firstErr error
	if c.vector != nil {
		if err := c.vector.Save(filepath.Join(c.dataDir, "vectors.hnsw")); err != nil {
			slog.Warn("columnar close: failed to persist vector index", slog.String("error", err.Error()))
		}
		if err := c.vector.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := c.lexIdx.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := c.db.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

func matchesSearchFilter(meta map[string]any, filter Filter) bool {
	if !MatchesFilter(meta, filter.Where) {
		return false
	}
	if len(filter.SourceTypes) > 0 {
		st, _ := meta["source_type"].(string)
		found := false
		for _, want := range filter.SourceTypes {
			if string(want) == st {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(filter.Languages) > 0 {
		lang, _ := meta["language"].(string)
		found := false
		for _, want := range filter.Languages {
			if want == lang {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

var _ Backend = (*ColumnarBackend)(nil)
