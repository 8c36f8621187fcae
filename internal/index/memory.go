package index

import (
	"context"
	"math"

	"github.com/spigell/cv-matcher/internal/talent"
)

type MemoryBuilder struct{}

func NewMemoryBuilder() *MemoryBuilder {
	return &MemoryBuilder{}
}

func (b *MemoryBuilder) Name() string { return "memory" }

// Build copies the entries into a brute-force index.
func (b *MemoryBuilder) Build(_ context.Context, entries []Entry) (Index, error) {
	ref, err := validate(entries)
	if err != nil {
		return nil, err
	}

	docs := make([]Entry, len(entries))
	for i, e := range entries {
		docs[i] = Entry{
			ID:     e.ID,
			Vector: talent.EmbeddingVector{Values: append([]float64(nil), e.Vector.Values...), Version: e.Vector.Version},
		}
	}

	return &memoryIndex{ref: ref, docs: docs}, nil
}

// memoryIndex is never mutated after Build.
type memoryIndex struct {
	ref  reference
	docs []Entry
}

func (m *memoryIndex) Len() int { return len(m.docs) }

func (m *memoryIndex) Close() error { return nil }

func (m *memoryIndex) Query(ctx context.Context, vec talent.EmbeddingVector, k int) ([]Hit, error) {
	if len(m.docs) == 0 {
		return []Hit{}, nil
	}
	if err := m.ref.check(vec, "query"); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	hits := make([]Hit, 0, len(m.docs))
	for _, doc := range m.docs {
		score := Cosine(vec.Values, doc.Vector.Values)
		if math.IsNaN(score) {
			score = 0
		}
		hits = append(hits, Hit{ID: doc.ID, Score: score})
	}

	SortHits(hits)
	return truncate(hits, k), nil
}
