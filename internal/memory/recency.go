package memory

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto"

	"github.com/easeaico/project-jobo/internal/types"
)

// Recency buffer defaults.
const (
	DefaultRecencyCapacity = 50
	DefaultRecencyTTL      = 24 * time.Hour
)

// RecencyBuffer keeps the latest turns per identity, most recent first.
// An absent or expired buffer reads as empty.
type RecencyBuffer interface {
	Append(ctx context.Context, identity string, turn types.Turn) error
	Recent(ctx context.Context, identity string, k int) ([]types.Turn, error)
}

const lockStripes = 64

// CacheRecency is an in-process RecencyBuffer on a ristretto cache.
type CacheRecency struct {
	cache    *ristretto.Cache
	capacity int
	ttl      time.Duration
	locks    [lockStripes]sync.Mutex
}

// NewCacheRecency creates the buffer; non-positive values fall back to defaults.
func NewCacheRecency(capacity int, ttl time.Duration) (*CacheRecency, error) {
	if capacity <= 0 {
		capacity = DefaultRecencyCapacity
	}
	if ttl <= 0 {
		ttl = DefaultRecencyTTL
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters:        1e5,
		MaxCost:            1 << 16,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create recency cache: %w", err)
	}
	return &CacheRecency{cache: cache, capacity: capacity, ttl: ttl}, nil
}

// Close stops the cache's background goroutines.
func (r *CacheRecency) Close() {
	r.cache.Close()
}

func (r *CacheRecency) lock(identity string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(identity))
	return &r.locks[h.Sum32()%lockStripes]
}

func key(identity string) string {
	return "conversation:" + identity
}

// Append prepends the turn, trims to capacity and refreshes the TTL as one step.
func (r *CacheRecency) Append(ctx context.Context, identity string, turn types.Turn) error {
	if identity == "" {
		return types.ErrEmptyIdentity
	}
	mu := r.lock(identity)
	mu.Lock()
	defer mu.Unlock()

	current := r.load(identity)
	next := make([]types.Turn, 0, min(len(current)+1, r.capacity))
	next = append(next, turn)
	for _, t := range current {
		if len(next) == r.capacity {
			break
		}
		next = append(next, t)
	}

	// Cost 1 per identity; the stored slice is never mutated after Set.
	if !r.cache.SetWithTTL(key(identity), next, 1, r.ttl) {
		return fmt.Errorf("recency cache rejected write for %s", identity)
	}
	r.cache.Wait()
	return nil
}

func (r *CacheRecency) Recent(ctx context.Context, identity string, k int) ([]types.Turn, error) {
	turns := r.load(identity)
	if k < len(turns) {
		turns = turns[:max(k, 0)]
	}
	out := make([]types.Turn, len(turns))
	copy(out, turns)
	return out, nil
}

func (r *CacheRecency) load(identity string) []types.Turn {
	value, ok := r.cache.Get(key(identity))
	if !ok {
		return nil
	}
	turns, _ := value.([]types.Turn)
	return turns
}
