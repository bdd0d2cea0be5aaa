package memory

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"sort"

	"github.com/easeaico/project-jobo/internal/types"
)

// ErrZeroVector is returned when a vector has no direction.
var ErrZeroVector = errors.New("vector has zero norm")

// SemanticStore is a per-identity nearest-neighbour index over embedded text.
type SemanticStore interface {
	// Insert stores text under its content-derived ID and returns that ID.
	Insert(ctx context.Context, identity, text string, vector []float32, tags map[string]string) (string, error)
	// Query returns up to limit records ordered by ascending cosine distance.
	Query(ctx context.Context, identity string, vector []float32, limit int) ([]types.RetrievedMemory, error)
}

// RecordID derives the record identifier from text and tags. Tags are
// serialized in sorted key order so the ID is independent of map iteration.
func RecordID(text string, tags map[string]string) string {
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := md5.New()
	h.Write([]byte(text))
	for _, k := range keys {
		h.Write([]byte{0})
		h.Write([]byte(k))
		h.Write([]byte{'='})
		h.Write([]byte(tags[k]))
	}
	return hex.EncodeToString(h.Sum(nil))
}
