package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/agent-brain/brain/internal/errorsx"
)

// RelationalBackend is the Postgres+pgvector storage backend (spec.md
// section 4.3): one `documents` table per project, an HNSW index over
// `embedding`, and GIN indexes over `tsv`/`metadata` for keyword search and
// filtering. Unlike the columnar backend, `tsv` is maintained incrementally
// on every upsert rather than rebuilt from scratch.
type RelationalBackend struct {
	pool *pgxpool.Pool
}

// NewRelationalBackend connects to Postgres using connString (a standard
// libpq connection string or URL) and ensures the pgvector extension and
// documents table exist.
func NewRelationalBackend(ctx context.Context, connString string) (*RelationalBackend, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, errorsx.Storage("relational", "connect to postgres", err)
	}
	return &RelationalBackend{pool: pool}, nil
}

func (r *RelationalBackend) Name() string { return "relational" }

func (r *RelationalBackend) Initialize(ctx context.Context, fp EmbeddingFingerprint) error {
	if _, err := r.pool.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		return errorsx.Storage("relational", "create vector extension", err)
	}

	schema := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS documents (
	chunk_id TEXT PRIMARY KEY,
	text TEXT NOT NULL,
	metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
	embedding vector(%d),
	tsv tsvector,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS embedding_fingerprint (
	id INT PRIMARY KEY CHECK (id = 1),
	provider TEXT NOT NULL,
	model TEXT NOT NULL,
	dimensions INT NOT NULL
);
CREATE INDEX IF NOT EXISTS documents_embedding_hnsw_idx ON documents
	USING hnsw (embedding vector_cosine_ops) WITH (m = 16, ef_construction = 64);
CREATE INDEX IF NOT EXISTS documents_tsv_gin_idx ON documents USING gin (tsv);
CREATE INDEX IF NOT EXISTS documents_metadata_gin_idx ON documents USING gin (metadata);
`, fp.Dimensions)
	if _, err := r.pool.Exec(ctx, schema); err != nil {
		return errorsx.Storage("relational", "create schema", err)
	}

	stored, ok, err := r.GetEmbeddingMetadata(ctx)
	if err != nil {
		return err
	}
	if err := ValidateEmbeddingCompatibility(fp, stored, ok); err != nil {
		return err
	}
	if !ok {
		return r.SetEmbeddingMetadata(ctx, fp)
	}
	return nil
}

// tsvExpr builds the field-weighted tsvector assembly of spec.md section
// 4.3: title/filename get weight A, summary weight B, body weight D.
func tsvExpr() string {
	return `
		setweight(to_tsvector('english', coalesce($1->>'title', '') || ' ' || coalesce($1->>'file_path', '')), 'A') ||
		setweight(to_tsvector('english', coalesce($1->>'summary', '')), 'B') ||
		setweight(to_tsvector('english', $2), 'D')`
}

func (r *RelationalBackend) Upsert(ctx context.Context, ids []string, embeddings [][]float32, texts []string, metadatas []map[string]any) (int, error) {
	if len(ids) != len(embeddings) || len(ids) != len(texts) || len(ids) != len(metadatas) {
		return 0, errorsx.Validation("upsert: ids/embeddings/texts/metadatas length mismatch")
	}
	if len(ids) == 0 {
		return 0, nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, errorsx.Storage("relational", "begin upsert transaction", err)
	}
	defer tx.Rollback(ctx)

	stmt := fmt.Sprintf(`
		INSERT INTO documents (chunk_id, text, metadata, embedding, tsv, updated_at)
		VALUES ($3, $2, $1, $4, (%s), now())
		ON CONFLICT (chunk_id) DO UPDATE SET
			text = excluded.text, metadata = excluded.metadata,
			embedding = excluded.embedding, tsv = excluded.tsv, updated_at = now()`, tsvExpr())

	for i, id := range ids {
		metaJSON, err := json.Marshal(metadatas[i])
		if err != nil {
			return 0, errorsx.Validation(fmt.Sprintf("metadata for %s is not JSON-serializable: %v", id, err))
		}
		vec := pgvector.NewVector(embeddings[i])
		if _, err := tx.Exec(ctx, stmt, string(metaJSON), texts[i], id, vec); err != nil {
			return 0, errorsx.Storage("relational", "upsert document", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, errorsx.Storage("relational", "commit upsert transaction", err)
	}
	return len(ids), nil
}

func (r *RelationalBackend) VectorSearch(ctx context.Context, queryVec []float32, topK int, threshold float64, filter Filter) ([]SearchResult, error) {
	where, args := compileFilter(filter, 3)
	vec := pgvector.NewVector(queryVec)

	sqlStr := fmt.Sprintf(`
		SELECT chunk_id, text, metadata, 1 - (embedding <=> $1) AS score
		FROM documents
		WHERE 1 - (embedding <=> $1) >= $2 %s
		ORDER BY embedding <=> $1
		LIMIT %d`, where, topK)

	rows, err := r.pool.Query(ctx, sqlStr, append([]any{vec, threshold}, args...)...)
	if err != nil {
		return nil, errorsx.Storage("relational", "vector search", err)
	}
	defer rows.Close()
	return scanSearchResults(rows)
}

func (r *RelationalBackend) KeywordSearch(ctx context.Context, queryText string, topK int, filter Filter) ([]SearchResult, error) {
	where, args := compileFilter(filter, 3)

	sqlStr := fmt.Sprintf(`
		SELECT chunk_id, text, metadata, ts_rank_cd(tsv, websearch_to_tsquery('english', $1)) AS score
		FROM documents
		WHERE tsv @@ websearch_to_tsquery('english', $1) %s
		ORDER BY score DESC
		LIMIT %d`, where, topK)

	rows, err := r.pool.Query(ctx, sqlStr, append([]any{queryText}, args...)...)
	if err != nil {
		return nil, errorsx.Storage("relational", "keyword search", err)
	}
	defer rows.Close()
	results, err := scanSearchResults(rows)
	if err != nil {
		return nil, err
	}
	NormalizeKeywordScores(results)
	return results, nil
}

// compileFilter turns a Filter into a SQL fragment starting at placeholder
// index startArg, using JSONB containment for Where and array membership
// for SourceTypes/Languages (spec.md section 4.3: "metadata @> $filter::jsonb").
func compileFilter(filter Filter, startArg int) (string, []any) {
	var clauses []string
	var args []any
	argN := startArg

	if len(filter.Where) > 0 {
		whereJSON, _ := json.Marshal(filter.Where)
		clauses = append(clauses, fmt.Sprintf("AND metadata @> $%d::jsonb", argN))
		args = append(args, string(whereJSON))
		argN++
	}
	if len(filter.SourceTypes) > 0 {
		types := make([]string, len(filter.SourceTypes))
		for i, st := range filter.SourceTypes {
			types[i] = string(st)
		}
		clauses = append(clauses, fmt.Sprintf("AND metadata->>'source_type' = ANY($%d)", argN))
		args = append(args, types)
		argN++
	}
	if len(filter.Languages) > 0 {
		clauses = append(clauses, fmt.Sprintf("AND metadata->>'language' = ANY($%d)", argN))
		args = append(args, filter.Languages)
		argN++
	}

	frag := ""
	for _, c := range clauses {
		frag += " " + c
	}
	return frag, args
}

func scanSearchResults(rows pgx.Rows) ([]SearchResult, error) {
	var results []SearchResult
	for rows.Next() {
		var res SearchResult
		var metaJSON []byte
		if err := rows.Scan(&res.ChunkID, &res.Text, &metaJSON, &res.Score); err != nil {
			return nil, errorsx.Storage("relational", "scan search result", err)
		}
		_ = json.Unmarshal(metaJSON, &res.Metadata)
		results = append(results, res)
	}
	return results, rows.Err()
}

func (r *RelationalBackend) GetCount(ctx context.Context, filter Filter) (int, error) {
	where, args := compileFilter(filter, 1)
	var count int
	err := r.pool.QueryRow(ctx, fmt.Sprintf(`SELECT count(*) FROM documents WHERE true %s`, where), args...).Scan(&count)
	if err != nil {
		return 0, errorsx.Storage("relational", "count documents", err)
	}
	return count, nil
}

func (r *RelationalBackend) GetByID(ctx context.Context, id string) (string, map[string]any, bool, error) {
	var text string
	var metaJSON []byte
	err := r.pool.QueryRow(ctx, `SELECT text, metadata FROM documents WHERE chunk_id = $1`, id).Scan(&text, &metaJSON)
	if err == pgx.ErrNoRows {
		return "", nil, false, nil
	}
	if err != nil {
		return "", nil, false, errorsx.Storage("relational", "get document by id", err)
	}
	var meta map[string]any
	_ = json.Unmarshal(metaJSON, &meta)
	return text, meta, true, nil
}

func (r *RelationalBackend) Reset(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, `TRUNCATE documents`); err != nil {
		return errorsx.Storage("relational", "truncate documents", err)
	}
	if _, err := r.pool.Exec(ctx, `DELETE FROM embedding_fingerprint`); err != nil {
		return errorsx.Storage("relational", "reset fingerprint", err)
	}
	return nil
}

func (r *RelationalBackend) GetEmbeddingMetadata(ctx context.Context) (EmbeddingFingerprint, bool, error) {
	var fp EmbeddingFingerprint
	err := r.pool.QueryRow(ctx, `SELECT provider, model, dimensions FROM embedding_fingerprint WHERE id = 1`).
		Scan(&fp.Provider, &fp.Model, &fp.Dimensions)
	if err == pgx.ErrNoRows {
		return EmbeddingFingerprint{}, false, nil
	}
	if err != nil {
		return EmbeddingFingerprint{}, false, errorsx.Storage("relational", "get embedding fingerprint", err)
	}
	return fp, true, nil
}

func (r *RelationalBackend) SetEmbeddingMetadata(ctx context.Context, fp EmbeddingFingerprint) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO embedding_fingerprint (id, provider, model, dimensions) VALUES (1, $1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET provider=excluded.provider, model=excluded.model, dimensions=excluded.dimensions`,
		fp.Provider, fp.Model, fp.Dimensions)
	if err != nil {
		return errorsx.Storage("relational", "set embedding fingerprint", err)
	}
	return nil
}

func (r *RelationalBackend) Close() error {
	r.pool.Close()
	return nil
}

var _ Backend = (*RelationalBackend)(nil)
