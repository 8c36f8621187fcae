package index

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"

	"github.com/spigell/cv-matcher/internal/talent"
)

const (
	defaultQdrantPort  = 6334
	defaultPrefix      = "cv-matcher"
	upsertChunk        = 256
	candidateIDPayload = "candidate_id"
	closeTimeout       = 10 * time.Second
)

// tieSlack widens a remote query so that ties at the k boundary can be ordered locally.
const tieSlack = 16

type qdrantAPI interface {
	CreateCollection(ctx context.Context, request *qdrant.CreateCollection) error
	DeleteCollection(ctx context.Context, collectionName string) error
	Upsert(ctx context.Context, request *qdrant.UpsertPoints) (*qdrant.UpdateResult, error)
	Query(ctx context.Context, request *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error)
}

// QdrantBuilder stores every build in its own collection so that a rebuild
// never touches a collection that is still being queried.
type QdrantBuilder struct {
	client qdrantAPI
	prefix string
	logger *zap.Logger
}

// NewQdrantBuilder connects to the qdrant gRPC endpoint behind rawURL.
func NewQdrantBuilder(rawURL, apiKey, prefix string, logger *zap.Logger) (*QdrantBuilder, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid qdrant url: %w", err)
	}

	port := defaultQdrantPort
	if p := parsed.Port(); p != "" {
		if v, err := strconv.Atoi(p); err == nil {
			port = v
		}
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   parsed.Hostname(),
		Port:   port,
		APIKey: apiKey,
		UseTLS: parsed.Scheme == "https",
	})
	if err != nil {
		return nil, fmt.Errorf("create qdrant client: %w", err)
	}

	return newQdrantBuilder(client, prefix, logger), nil
}

func newQdrantBuilder(client qdrantAPI, prefix string, logger *zap.Logger) *QdrantBuilder {
	if prefix = strings.TrimSpace(prefix); prefix == "" {
		prefix = defaultPrefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QdrantBuilder{client: client, prefix: prefix, logger: logger}
}

func (b *QdrantBuilder) Name() string { return "qdrant" }

func (b *QdrantBuilder) Build(ctx context.Context, entries []Entry) (Index, error) {
	ref, err := validate(entries)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return &memoryIndex{}, nil
	}

	collection := fmt.Sprintf("%s-%s", b.prefix, uuid.NewString())
	err = b.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(ref.dim),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}

	if err := b.upsert(ctx, collection, entries); err != nil {
		b.drop(collection)
		return nil, err
	}

	b.logger.Debug("qdrant collection built",
		zap.String("collection", collection),
		zap.Int("points", len(entries)),
	)

	return &qdrantIndex{
		client:     b.client,
		collection: collection,
		ref:        ref,
		size:       len(entries),
		logger:     b.logger,
	}, nil
}

func (b *QdrantBuilder) upsert(ctx context.Context, collection string, entries []Entry) error {
	for start := 0; start < len(entries); start += upsertChunk {
		end := min(start+upsertChunk, len(entries))

		points := make([]*qdrant.PointStruct, 0, end-start)
		for _, e := range entries[start:end] {
			points = append(points, &qdrant.PointStruct{
				Id:      qdrant.NewIDUUID(PointID(e.ID)),
				Vectors: qdrant.NewVectors(toFloat32(e.Vector.Values)...),
				Payload: qdrant.NewValueMap(map[string]any{candidateIDPayload: e.ID}),
			})
		}

		_, err := b.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: collection,
			Wait:           qdrant.PtrOf(true),
			Points:         points,
		})
		if err != nil {
			return fmt.Errorf("upsert points: %w", err)
		}
	}
	return nil
}

func (b *QdrantBuilder) drop(collection string) {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	if err := b.client.DeleteCollection(ctx, collection); err != nil {
		b.logger.Warn("dropping qdrant collection", zap.String("collection", collection), zap.Error(err))
	}
}

// PointID maps an opaque candidate id onto the UUID space qdrant accepts.
func PointID(candidateID string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(candidateID)).String()
}

type qdrantIndex struct {
	client     qdrantAPI
	collection string
	ref        reference
	size       int
	logger     *zap.Logger
}

func (q *qdrantIndex) Len() int { return q.size }

func (q *qdrantIndex) Query(ctx context.Context, vec talent.EmbeddingVector, k int) ([]Hit, error) {
	if err := q.ref.check(vec, "query"); err != nil {
		return nil, err
	}

	limit := q.size
	if k > 0 && k+tieSlack < limit {
		limit = k + tieSlack
	}

	points, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQuery(toFloat32(vec.Values)...),
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("query collection %s: %w", q.collection, err)
	}

	hits := make([]Hit, 0, len(points))
	for _, p := range points {
		id := p.GetPayload()[candidateIDPayload].GetStringValue()
		if id == "" {
			q.logger.Warn("qdrant point without candidate id", zap.String("collection", q.collection))
			continue
		}
		hits = append(hits, Hit{ID: id, Score: float64(p.GetScore())})
	}

	SortHits(hits)
	return truncate(hits, k), nil
}

func (q *qdrantIndex) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	if err := q.client.DeleteCollection(ctx, q.collection); err != nil {
		return fmt.Errorf("delete collection %s: %w", q.collection, err)
	}
	return nil
}

func toFloat32(values []float64) []float32 {
	out := make([]float32, len(values))
	for i, v := range values {
		out[i] = float32(v)
	}
	return out
}
