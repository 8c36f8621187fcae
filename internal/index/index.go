package index

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/spigell/cv-matcher/internal/talent"
)

// TieTolerance is the width of the score buckets used for ordering. Scores in
// the same bucket count as equal and are ordered by ID instead.
const TieTolerance = 1e-6

// TieKey returns the bucket of score. Comparing keys instead of raw scores
// keeps the ordering total, whatever order the input arrives in.
func TieKey(score float64) float64 {
	return math.Round(score / TieTolerance)
}

// Entry is a single candidate vector handed to a Builder.
type Entry struct {
	ID     string
	Vector talent.EmbeddingVector
}

// Hit is a query result. Score is cosine similarity in [-1, 1].
type Hit struct {
	ID    string
	Score float64
}

// Index is an immutable set of vectors that answers nearest-neighbour queries.
// It is safe for concurrent queries.
type Index interface {
	// Query returns up to k hits ordered by score descending, then ID ascending.
	// k <= 0 returns every entry.
	Query(ctx context.Context, vec talent.EmbeddingVector, k int) ([]Hit, error)
	Len() int
	Close() error
}

// Builder creates a fresh Index from a complete set of entries.
type Builder interface {
	Name() string
	Build(ctx context.Context, entries []Entry) (Index, error)
}

// SortHits orders hits by score bucket descending, then ID ascending.
func SortHits(hits []Hit) {
	sort.Slice(hits, func(i, j int) bool {
		ki, kj := TieKey(hits[i].Score), TieKey(hits[j].Score)
		if ki != kj {
			return ki > kj
		}
		return hits[i].ID < hits[j].ID
	})
}

// Cosine returns the cosine similarity of a and b clamped to [-1, 1].
// Vectors of different length or with zero norm yield 0.
func Cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return math.Max(-1, math.Min(1, dot/(math.Sqrt(normA)*math.Sqrt(normB))))
}

// reference describes the version and dimension every vector of an index shares.
type reference struct {
	version string
	dim     int
}

func (r reference) vector() talent.EmbeddingVector {
	return talent.EmbeddingVector{Values: make([]float64, r.dim), Version: r.version}
}

func (r reference) check(vec talent.EmbeddingVector, id string) error {
	return talent.CheckCompatible(r.vector(), vec, id)
}

// validate checks that entries are mutually compatible and have unique IDs.
func validate(entries []Entry) (reference, error) {
	if len(entries) == 0 {
		return reference{}, nil
	}

	ref := reference{version: entries[0].Vector.Version, dim: entries[0].Vector.Dimension()}
	if ref.dim == 0 {
		return reference{}, fmt.Errorf("entry %q has an empty vector", entries[0].ID)
	}

	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if _, dup := seen[e.ID]; dup {
			return reference{}, fmt.Errorf("duplicate entry id %q", e.ID)
		}
		seen[e.ID] = struct{}{}

		if err := ref.check(e.Vector, e.ID); err != nil {
			return reference{}, err
		}
	}

	return ref, nil
}

func truncate(hits []Hit, k int) []Hit {
	if k > 0 && len(hits) > k {
		return hits[:k]
	}
	return hits
}
