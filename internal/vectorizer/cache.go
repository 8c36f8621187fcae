package vectorizer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/spigell/cv-matcher/internal/talent"
)

const defaultCacheSize = 10000

// Cached memoizes another vectorizer. Entries are keyed by the wrapped version
// and a hash of the text; the least recently used one goes first once the limit is hit.
type Cached struct {
	next    Vectorizer
	entries *lru.Cache[string, []float64]
}

func NewCached(next Vectorizer, limit int) (*Cached, error) {
	if limit <= 0 {
		limit = defaultCacheSize
	}
	entries, err := lru.New[string, []float64](limit)
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}
	return &Cached{next: next, entries: entries}, nil
}

func (c *Cached) Version() string { return c.next.Version() }

func (c *Cached) Dimension() int { return c.next.Dimension() }

func (c *Cached) WarmUp(ctx context.Context) error { return c.next.WarmUp(ctx) }

func (c *Cached) Embed(ctx context.Context, text string) (talent.EmbeddingVector, error) {
	if err := checkText(text); err != nil {
		return talent.EmbeddingVector{}, err
	}

	key := c.key(text)
	if values, ok := c.entries.Get(key); ok {
		return talent.EmbeddingVector{Values: append([]float64(nil), values...), Version: c.Version()}, nil
	}

	vec, err := c.next.Embed(ctx, text)
	if err != nil {
		return talent.EmbeddingVector{}, err
	}

	c.entries.ContainsOrAdd(key, append([]float64(nil), vec.Values...))
	return vec, nil
}

// Len returns the number of cached vectors.
func (c *Cached) Len() int {
	return c.entries.Len()
}

func (c *Cached) key(text string) string {
	sum := sha256.Sum256([]byte(c.Version() + "\x00" + text))
	return hex.EncodeToString(sum[:])
}
