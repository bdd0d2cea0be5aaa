package memory

import (
	"context"
	"fmt"

	"github.com/easeaico/project-jobo/internal/types"
)

// Retriever embeds a query and searches the semantic store.
type Retriever struct {
	embedder Embedder
	store    SemanticStore
	topK     int
}

// NewRetriever creates a new Retriever.
func NewRetriever(embedder Embedder, store SemanticStore, topK int) *Retriever {
	if topK <= 0 {
		topK = 3
	}
	return &Retriever{
		embedder: embedder,
		store:    store,
		topK:     topK,
	}
}

// Retrieve returns the top-k memories for a given query.
func (r *Retriever) Retrieve(ctx context.Context, identity, query string) ([]types.RetrievedMemory, error) {
	if query == "" {
		return nil, nil
	}
	if r.embedder == nil || r.store == nil {
		return nil, fmt.Errorf("retriever not properly configured")
	}

	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	return r.store.Query(ctx, identity, vec, r.topK)
}
