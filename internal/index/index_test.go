package index

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"

	"github.com/spigell/cv-matcher/internal/talent"
)

func vec(version string, values ...float64) talent.EmbeddingVector {
	return talent.EmbeddingVector{Values: values, Version: version}
}

func TestCosine(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		a, b []float64
		want float64
	}{
		{name: "identical", a: []float64{1, 2, 3}, b: []float64{1, 2, 3}, want: 1},
		{name: "opposite", a: []float64{1, 0}, b: []float64{-1, 0}, want: -1},
		{name: "orthogonal", a: []float64{1, 0}, b: []float64{0, 1}, want: 0},
		{name: "length mismatch", a: []float64{1}, b: []float64{1, 0}, want: 0},
		{name: "zero norm", a: []float64{0, 0}, b: []float64{1, 0}, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Cosine(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-12 {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
			if got > 1 || got < -1 {
				t.Fatalf("cosine out of range: %v", got)
			}
		})
	}
}

func TestMemoryQueryOrdersByScoreThenID(t *testing.T) {
	entries := []Entry{
		{ID: "c", Vector: vec("v1", 1, 0)},
		{ID: "b", Vector: vec("v1", 0, 1)},
		{ID: "a", Vector: vec("v1", 2, 0)},
		{ID: "d", Vector: vec("v1", 1, 1)},
	}

	idx, err := NewMemoryBuilder().Build(context.Background(), entries)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	hits, err := idx.Query(context.Background(), vec("v1", 1, 0), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"a", "c", "d", "b"}
	if len(hits) != len(want) {
		t.Fatalf("expected %d hits, got %d", len(want), len(hits))
	}
	for i, id := range want {
		if hits[i].ID != id {
			t.Fatalf("position %d: expected %s, got %s (%+v)", i, id, hits[i].ID, hits)
		}
	}

	top, err := idx.Query(context.Background(), vec("v1", 1, 0), 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(top) != 2 || top[0].ID != "a" || top[1].ID != "c" {
		t.Fatalf("unexpected top-2: %+v", top)
	}
}

func TestSortHitsBreaksNearTiesByID(t *testing.T) {
	hits := []Hit{
		{ID: "z", Score: 0.5 + TieTolerance/4},
		{ID: "m", Score: 0.9},
		{ID: "a", Score: 0.5},
	}

	SortHits(hits)

	if hits[0].ID != "m" || hits[1].ID != "a" || hits[2].ID != "z" {
		t.Fatalf("unexpected order: %+v", hits)
	}
}

func TestSortHitsIsIndependentOfInputOrder(t *testing.T) {
	scores := map[string]float64{
		"z": 0.5000017,
		"m": 0.5000008,
		"a": 0.5,
		"b": 0.5000001,
	}
	want := []string{"z", "m", "a", "b"}

	orders := [][]string{
		{"z", "m", "a", "b"},
		{"a", "b", "m", "z"},
		{"m", "z", "b", "a"},
		{"b", "a", "z", "m"},
		{"a", "z", "m", "b"},
		{"m", "b", "a", "z"},
	}
	for _, order := range orders {
		hits := make([]Hit, 0, len(order))
		for _, id := range order {
			hits = append(hits, Hit{ID: id, Score: scores[id]})
		}

		SortHits(hits)

		for i, id := range want {
			if hits[i].ID != id {
				t.Fatalf("input %v: expected %v, got %+v", order, want, hits)
			}
		}
	}
}

func TestMemoryEmptyIndex(t *testing.T) {
	idx, err := NewMemoryBuilder().Build(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	hits, err := idx.Query(context.Background(), vec("anything", 1, 2, 3), 5)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(hits) != 0 || hits == nil {
		t.Fatalf("expected empty non-nil result, got %#v", hits)
	}
}

func TestMemoryRejectsIncompatibleVectors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		entries []Entry
		query   talent.EmbeddingVector
	}{
		{
			name:    "mixed versions at build",
			entries: []Entry{{ID: "a", Vector: vec("v1", 1, 0)}, {ID: "b", Vector: vec("v2", 1, 0)}},
		},
		{
			name:    "mixed dimensions at build",
			entries: []Entry{{ID: "a", Vector: vec("v1", 1, 0)}, {ID: "b", Vector: vec("v1", 1, 0, 0)}},
		},
		{
			name:    "query from other version",
			entries: []Entry{{ID: "a", Vector: vec("v1", 1, 0)}},
			query:   vec("v2", 1, 0),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			idx, err := NewMemoryBuilder().Build(context.Background(), tt.entries)
			if err == nil {
				_, err = idx.Query(context.Background(), tt.query, 0)
			}
			if !errors.Is(err, talent.ErrDimensionMismatch) {
				t.Fatalf("expected dimension mismatch, got %v", err)
			}
			var mismatch *talent.DimensionMismatchError
			if !errors.As(err, &mismatch) {
				t.Fatalf("expected *DimensionMismatchError, got %T", err)
			}
		})
	}
}

func TestMemoryRejectsDuplicateIDs(t *testing.T) {
	_, err := NewMemoryBuilder().Build(context.Background(), []Entry{
		{ID: "a", Vector: vec("v1", 1)},
		{ID: "a", Vector: vec("v1", 2)},
	})
	if err == nil {
		t.Fatal("expected duplicate id error")
	}
}

func TestMemoryBuildCopiesVectors(t *testing.T) {
	values := []float64{1, 0}
	idx, err := NewMemoryBuilder().Build(context.Background(), []Entry{{ID: "a", Vector: vec("v1", values...)}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	values[0], values[1] = 0, 1

	hits, _ := idx.Query(context.Background(), vec("v1", 1, 0), 1)
	if hits[0].Score != 1 {
		t.Fatalf("index observed caller mutation: %+v", hits)
	}
}

type fakeQdrant struct {
	mu          sync.Mutex
	collections map[string][]*qdrant.PointStruct
	deleted     []string
	lastLimit   uint64
}

func newFakeQdrant() *fakeQdrant {
	return &fakeQdrant{collections: make(map[string][]*qdrant.PointStruct)}
}

func (f *fakeQdrant) CreateCollection(_ context.Context, req *qdrant.CreateCollection) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.collections[req.CollectionName] = nil
	return nil
}

func (f *fakeQdrant) DeleteCollection(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.collections, name)
	f.deleted = append(f.deleted, name)
	return nil
}

func (f *fakeQdrant) Upsert(_ context.Context, req *qdrant.UpsertPoints) (*qdrant.UpdateResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.collections[req.CollectionName] = append(f.collections[req.CollectionName], req.Points...)
	return &qdrant.UpdateResult{}, nil
}

func (f *fakeQdrant) Query(_ context.Context, req *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastLimit = req.GetLimit()

	query := req.GetQuery().GetNearest().GetDense().GetData()
	var out []*qdrant.ScoredPoint
	for _, p := range f.collections[req.CollectionName] {
		data := p.GetVectors().GetVector().GetData()
		a := make([]float64, len(data))
		b := make([]float64, len(query))
		for i := range data {
			a[i] = float64(data[i])
		}
		for i := range query {
			b[i] = float64(query[i])
		}
		out = append(out, &qdrant.ScoredPoint{
			Id:      p.Id,
			Payload: p.Payload,
			Score:   float32(Cosine(a, b)),
		})
	}
	return out, nil
}

func TestQdrantBuildQueryAndClose(t *testing.T) {
	fake := newFakeQdrant()
	builder := newQdrantBuilder(fake, "", zap.NewNop())

	idx, err := builder.Build(context.Background(), []Entry{
		{ID: "b", Vector: vec("v1", 1, 0)},
		{ID: "a", Vector: vec("v1", 1, 0)},
		{ID: "c", Vector: vec("v1", 0, 1)},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if idx.Len() != 3 || len(fake.collections) != 1 {
		t.Fatalf("expected one collection with 3 points")
	}

	hits, err := idx.Query(context.Background(), vec("v1", 1, 0), 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hits) != 2 || hits[0].ID != "a" || hits[1].ID != "b" {
		t.Fatalf("expected tie broken by id, got %+v", hits)
	}
	if fake.lastLimit != 3 {
		t.Fatalf("expected limit capped at collection size, got %d", fake.lastLimit)
	}

	if _, err := idx.Query(context.Background(), vec("v2", 1, 0), 1); !errors.Is(err, talent.ErrDimensionMismatch) {
		t.Fatalf("expected dimension mismatch, got %v", err)
	}

	if err := idx.Close(); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}
	if len(fake.collections) != 0 || len(fake.deleted) != 1 {
		t.Fatalf("expected collection to be dropped")
	}
}

func TestQdrantEmptyBuildSkipsCollection(t *testing.T) {
	fake := newFakeQdrant()
	idx, err := newQdrantBuilder(fake, "pool", nil).Build(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	hits, err := idx.Query(context.Background(), vec("v1", 1), 3)
	if err != nil || len(hits) != 0 {
		t.Fatalf("expected empty result, got %v / %v", hits, err)
	}
	if len(fake.collections) != 0 {
		t.Fatalf("no collection expected for empty pool")
	}
}

func TestPointIDIsStable(t *testing.T) {
	if PointID("cand-1") != PointID("cand-1") {
		t.Fatal("point id must be deterministic")
	}
	if PointID("cand-1") == PointID("cand-2") {
		t.Fatal("distinct candidates must not share a point id")
	}
}
