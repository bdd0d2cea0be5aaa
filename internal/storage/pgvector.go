package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/easeaico/project-jobo/internal/memory"
	"github.com/easeaico/project-jobo/internal/types"
)

// PgVectorStore is a memory.SemanticStore backed by PostgreSQL with pgvector.
type PgVectorStore struct {
	pool       *pgxpool.Pool
	dimensions int
}

// NewPgVectorStore connects and creates the memory_records table when absent.
func NewPgVectorStore(ctx context.Context, databaseURL string, dimensions int) (*PgVectorStore, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("vector dimensions must be positive")
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &PgVectorStore{pool: pool, dimensions: dimensions}
	if err := store.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

func (s *PgVectorStore) initSchema(ctx context.Context) error {
	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS memory_records (
			user_id    TEXT NOT NULL,
			id         TEXT NOT NULL,
			content    TEXT NOT NULL,
			tags       JSONB NOT NULL DEFAULT '{}'::jsonb,
			embedding  vector(%d) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (user_id, id)
		)`, s.dimensions),
		`CREATE INDEX IF NOT EXISTS idx_memory_records_embedding
			ON memory_records USING hnsw (embedding vector_cosine_ops)`,
	}
	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to initialize memory_records: %w", err)
		}
	}
	return nil
}

func (s *PgVectorStore) Insert(ctx context.Context, identity, text string, vector []float32, tags map[string]string) (string, error) {
	if identity == "" {
		return "", types.ErrEmptyIdentity
	}
	if len(vector) != s.dimensions {
		return "", fmt.Errorf("embedding dimensions mismatch: got %d want %d", len(vector), s.dimensions)
	}
	if memory.CosineSimilarity(vector, vector) == 0 {
		return "", memory.ErrZeroVector
	}

	id := memory.RecordID(text, tags)
	rawTags, err := json.Marshal(tags)
	if err != nil {
		return "", fmt.Errorf("failed to encode tags: %w", err)
	}

	query := `
		INSERT INTO memory_records (user_id, id, content, tags, embedding, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, id) DO NOTHING
	`
	if _, err := s.pool.Exec(ctx, query, identity, id, text, string(rawTags), pgvector.NewVector(vector), time.Now().UTC()); err != nil {
		return "", fmt.Errorf("failed to insert memory record: %w", err)
	}
	return id, nil
}

func (s *PgVectorStore) Query(ctx context.Context, identity string, vector []float32, limit int) ([]types.RetrievedMemory, error) {
	if limit <= 0 {
		return []types.RetrievedMemory{}, nil
	}
	if len(vector) != s.dimensions {
		return nil, fmt.Errorf("embedding dimensions mismatch: got %d want %d", len(vector), s.dimensions)
	}

	query := `
		SELECT id, content, tags, embedding <=> $1 AS distance
		FROM memory_records
		WHERE user_id = $2
		ORDER BY embedding <=> $1
		LIMIT $3
	`
	rows, err := s.pool.Query(ctx, query, pgvector.NewVector(vector), identity, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search memory records: %w", err)
	}
	defer rows.Close()

	results := []types.RetrievedMemory{}
	for rows.Next() {
		var (
			mem     types.RetrievedMemory
			rawTags []byte
		)
		if err := rows.Scan(&mem.ID, &mem.Text, &rawTags, &mem.Distance); err != nil {
			return nil, fmt.Errorf("failed to scan memory record: %w", err)
		}
		if err := json.Unmarshal(rawTags, &mem.Tags); err != nil {
			return nil, fmt.Errorf("failed to decode tags: %w", err)
		}
		results = append(results, mem)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating memory records: %w", err)
	}
	return results, nil
}

// Close releases the connection pool.
func (s *PgVectorStore) Close() {
	s.pool.Close()
}
