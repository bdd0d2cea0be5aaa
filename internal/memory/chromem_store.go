package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"github.com/easeaico/project-jobo/internal/types"
)

// ChromemStore is an embedded SemanticStore with one collection per identity.
type ChromemStore struct {
	db          *chromem.DB
	collections map[string]*chromem.Collection
	mu          sync.RWMutex
}

// NewChromemStore opens an in-memory store, or a persistent one when dir is set.
func NewChromemStore(dir string) (*ChromemStore, error) {
	db := chromem.NewDB()
	if dir != "" {
		var err error
		db, err = chromem.NewPersistentDB(dir, false)
		if err != nil {
			return nil, fmt.Errorf("failed to open chromem db: %w", err)
		}
	}
	return &ChromemStore{
		db:          db,
		collections: make(map[string]*chromem.Collection),
	}, nil
}

func (s *ChromemStore) collection(identity string) (*chromem.Collection, error) {
	s.mu.RLock()
	col, ok := s.collections[identity]
	s.mu.RUnlock()
	if ok {
		return col, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if col, ok := s.collections[identity]; ok {
		return col, nil
	}
	// Embeddings are always supplied by the caller, so no embedding func.
	col, err := s.db.GetOrCreateCollection("user_"+identity, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create collection: %w", err)
	}
	s.collections[identity] = col
	return col, nil
}

func (s *ChromemStore) Insert(ctx context.Context, identity, text string, vector []float32, tags map[string]string) (string, error) {
	if identity == "" {
		return "", types.ErrEmptyIdentity
	}
	if len(vector) == 0 || isZeroVector(vector) {
		return "", ErrZeroVector
	}
	col, err := s.collection(identity)
	if err != nil {
		return "", err
	}

	id := RecordID(text, tags)
	metadata := make(map[string]string, len(tags))
	for k, v := range tags {
		metadata[k] = v
	}
	doc := chromem.Document{
		ID:        id,
		Content:   text,
		Embedding: vector,
		Metadata:  metadata,
	}
	if err := col.AddDocument(ctx, doc); err != nil {
		return "", fmt.Errorf("failed to add document: %w", err)
	}
	slog.Debug("semantic record stored", "user_id", identity, "record_id", id)
	return id, nil
}

func (s *ChromemStore) Query(ctx context.Context, identity string, vector []float32, limit int) ([]types.RetrievedMemory, error) {
	if limit <= 0 {
		return []types.RetrievedMemory{}, nil
	}
	if len(vector) == 0 || isZeroVector(vector) {
		return nil, ErrZeroVector
	}
	col, err := s.collection(identity)
	if err != nil {
		return nil, err
	}

	// chromem rejects nResults above the collection size.
	n := min(limit, col.Count())
	if n == 0 {
		return []types.RetrievedMemory{}, nil
	}
	results, err := col.QueryEmbedding(ctx, vector, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query collection: %w", err)
	}

	memories := make([]types.RetrievedMemory, 0, len(results))
	for _, r := range results {
		memories = append(memories, types.RetrievedMemory{
			ID:       r.ID,
			Text:     r.Content,
			Tags:     r.Metadata,
			Distance: 1 - float64(r.Similarity),
		})
	}
	return memories, nil
}
