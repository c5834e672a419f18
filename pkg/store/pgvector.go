package store

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/xhad/agrisaathi/internal/models"
	"github.com/xhad/agrisaathi/internal/types"
	"github.com/xhad/agrisaathi/pkg/logger"
)

type VectorStoreConfig struct {
	ConnString string
	TableName  string
	VectorDim  int
	BatchSize  int
	Embedder   types.Embedder
	Logger     logger.Logger
}

// VectorStore persists the knowledge corpus in Postgres with pgvector.
type VectorStore struct {
	config VectorStoreConfig
	pool   *pgxpool.Pool
	log    logger.Logger
}

func NewWithConfig(ctx context.Context, config VectorStoreConfig) (*VectorStore, error) {
	if config.Embedder == nil {
		return nil, errors.New("vector store requires an embedder")
	}
	if config.TableName == "" {
		config.TableName = "knowledge_documents"
	}
	if config.VectorDim == 0 {
		config.VectorDim = 384 // all-minilm
	}
	if config.BatchSize == 0 {
		config.BatchSize = 64
	}

	pool, err := pgxpool.New(ctx, config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	vs := &VectorStore{
		config: config,
		pool:   pool,
		log:    logger.Or(config.Logger).With("table", config.TableName),
	}

	if err := vs.initialize(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return vs, nil
}

func (vs *VectorStore) initialize(ctx context.Context) error {
	if _, err := vs.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			content TEXT NOT NULL,
			embedding vector(%d),
			metadata JSONB
		)`, vs.config.TableName, vs.config.VectorDim)
	if _, err := vs.pool.Exec(ctx, createTable); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	createIndex := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS %s_embedding_idx
		ON %s
		USING ivfflat (embedding vector_cosine_ops)
		WITH (lists = 100)`,
		vs.config.TableName, vs.config.TableName)
	if _, err := vs.pool.Exec(ctx, createIndex); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	return nil
}

func (vs *VectorStore) Persistent() bool { return true }

func (vs *VectorStore) Count(ctx context.Context) (int, error) {
	var n int
	err := vs.pool.QueryRow(ctx, fmt.Sprintf("SELECT count(*) FROM %s", vs.config.TableName)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return n, nil
}

// Store embeds and upserts docs in batches inside a single transaction.
func (vs *VectorStore) Store(ctx context.Context, docs []models.Document) error {
	return vs.write(ctx, docs, false)
}

// Replace embeds docs first and then truncates and inserts in one
// transaction, so a failed rebuild keeps the previous rows.
func (vs *VectorStore) Replace(ctx context.Context, docs []models.Document) error {
	return vs.write(ctx, docs, true)
}

func (vs *VectorStore) write(ctx context.Context, docs []models.Document, truncate bool) error {
	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = SanitizeUTF8(doc.Content)
	}

	vectors := make([][]float32, 0, len(docs))
	for start := 0; start < len(texts); start += vs.config.BatchSize {
		end := min(start+vs.config.BatchSize, len(texts))
		batch, err := vs.config.Embedder.EmbedDocuments(ctx, texts[start:end])
		if err != nil {
			return fmt.Errorf("failed to create embeddings: %w", err)
		}
		if len(batch) != end-start {
			return fmt.Errorf("embedder returned %d vectors for %d documents", len(batch), end-start)
		}
		vectors = append(vectors, batch...)
	}

	tx, err := vs.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if truncate {
		if _, err := tx.Exec(ctx, fmt.Sprintf("TRUNCATE %s", vs.config.TableName)); err != nil {
			return fmt.Errorf("failed to reset table: %w", err)
		}
	}

	stmt := fmt.Sprintf(`
		INSERT INTO %s (id, source, content, embedding, metadata)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			source = EXCLUDED.source,
			content = EXCLUDED.content,
			embedding = EXCLUDED.embedding,
			metadata = EXCLUDED.metadata`,
		vs.config.TableName)

	for start := 0; start < len(docs); start += vs.config.BatchSize {
		end := min(start+vs.config.BatchSize, len(docs))

		b := &pgx.Batch{}
		for i := start; i < end; i++ {
			doc := docs[i]
			id := doc.ID
			if id == "" {
				id = fmt.Sprintf("doc_%d", i)
			}
			b.Queue(stmt, id, sourceOr(doc.Source), texts[i], pgvector.NewVector(vectors[i]), doc.Metadata)
		}
		if err := tx.SendBatch(ctx, b).Close(); err != nil {
			return fmt.Errorf("failed to insert documents: %w", err)
		}
		vs.log.Debug("stored batch", "from", start, "to", end)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// SimilaritySearch returns the k nearest documents by cosine distance.
func (vs *VectorStore) SimilaritySearch(ctx context.Context, query string, k int) ([]any, error) {
	queryEmbedding, err := vs.config.Embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	q := fmt.Sprintf(`
		SELECT id, source, content, metadata
		FROM %s
		ORDER BY embedding <=> $1
		LIMIT $2`,
		vs.config.TableName)

	rows, err := vs.pool.Query(ctx, q, pgvector.NewVector(queryEmbedding), k)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	var items []any
	for rows.Next() {
		var doc models.Document
		if err := rows.Scan(&doc.ID, &doc.Source, &doc.Content, &doc.Metadata); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		items = append(items, doc)
	}
	return items, rows.Err()
}

func (vs *VectorStore) Close() {
	if vs.pool != nil {
		vs.pool.Close()
	}
}

func sourceOr(source string) string {
	if source == "" {
		return models.SourceUnknown
	}
	return source
}

// SanitizeUTF8 drops invalid bytes so the text can be stored and embedded.
func SanitizeUTF8(s string) string {
	if !utf8.ValidString(s) {
		v := make([]rune, 0, len(s))
		for i, r := range s {
			if r == utf8.RuneError {
				_, size := utf8.DecodeRuneInString(s[i:])
				if size == 1 {
					continue
				}
			}
			v = append(v, r)
		}
		return string(v)
	}
	return s
}
