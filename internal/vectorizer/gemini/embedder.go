package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/spigell/cv-matcher/internal/talent"
	"github.com/spigell/cv-matcher/internal/utils"
)

const (
	defaultModel      = "text-embedding-004"
	defaultDimension  = 768
	defaultMaxRetries = 3
	// maxEmbedRunes keeps a request under the model input limit.
	maxEmbedRunes = 10000
	maxQuotaDelay = 10 * time.Second
	baseBackoff   = 500 * time.Millisecond
	warmUpText    = "warm up"
)

var wait = utils.WaitFor

var retryAfterRe = regexp.MustCompile(`(?i)retry (?:after|in) ([0-9]+(?:\.[0-9]+)?) ?s`)

type embedClient interface {
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

// Embedder produces embeddings with the Gemini API. One instance is created per
// process and shared by every matching run.
type Embedder struct {
	client     embedClient
	model      string
	dim        int
	maxRetries int
	logger     *zap.Logger

	warmMu sync.Mutex
	warmed bool
}

// NewEmbedder creates an Embedder for the Gemini API backend.
func NewEmbedder(ctx context.Context, apiKey, model string, dim, maxRetries int, logger *zap.Logger) (*Embedder, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return newEmbedder(client.Models, model, dim, maxRetries, logger), nil
}

func newEmbedder(client embedClient, model string, dim, maxRetries int, logger *zap.Logger) *Embedder {
	if model = strings.TrimSpace(model); model == "" {
		model = defaultModel
	}
	if dim <= 0 {
		dim = defaultDimension
	}
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Embedder{
		client:     client,
		model:      model,
		dim:        dim,
		maxRetries: maxRetries,
		logger:     logger,
	}
}

func (e *Embedder) Version() string {
	return fmt.Sprintf("gemini-%s-d%d", e.model, e.dim)
}

func (e *Embedder) Dimension() int { return e.dim }

func (e *Embedder) Model() string { return e.model }

// WarmUp sends a probe request until one succeeds. After that it is a no-op.
func (e *Embedder) WarmUp(ctx context.Context) error {
	e.warmMu.Lock()
	defer e.warmMu.Unlock()

	if e.warmed {
		return nil
	}
	if _, err := e.Embed(ctx, warmUpText); err != nil {
		return fmt.Errorf("warm up: %w", err)
	}
	e.warmed = true
	return nil
}

func (e *Embedder) Embed(ctx context.Context, text string) (talent.EmbeddingVector, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return talent.EmbeddingVector{}, fmt.Errorf("%w: text is blank", talent.ErrEmptyInput)
	}
	if runes := []rune(text); len(runes) > maxEmbedRunes {
		text = string(runes[:maxEmbedRunes])
	}

	dim := int32(e.dim)
	cfg := &genai.EmbedContentConfig{
		TaskType:             "SEMANTIC_SIMILARITY",
		OutputDimensionality: &dim,
	}

	var lastErr error
	for attempt := 1; attempt <= e.maxRetries; attempt++ {
		resp, err := e.client.EmbedContent(ctx, e.model, genai.Text(text), cfg)
		if err == nil {
			return e.toVector(resp)
		}
		lastErr = err

		delay, retry := retryDelay(err, attempt)
		if !retry || attempt == e.maxRetries {
			break
		}

		e.logger.Warn("gemini embed request failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)

		if err := wait(ctx, delay); err != nil {
			return talent.EmbeddingVector{}, err
		}
	}

	return talent.EmbeddingVector{}, fmt.Errorf("embed content: %w", lastErr)
}

func (e *Embedder) toVector(resp *genai.EmbedContentResponse) (talent.EmbeddingVector, error) {
	if resp == nil || len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil {
		return talent.EmbeddingVector{}, errors.New("gemini api returned empty embedding")
	}

	raw := resp.Embeddings[0].Values
	if len(raw) != e.dim {
		return talent.EmbeddingVector{}, &talent.DimensionMismatchError{
			WantDimension: e.dim,
			GotDimension:  len(raw),
			WantVersion:   e.Version(),
			GotVersion:    e.model,
		}
	}

	values := make([]float64, len(raw))
	for i, v := range raw {
		values[i] = float64(v)
	}

	return talent.EmbeddingVector{Values: values, Version: e.Version()}, nil
}

// retryDelay decides whether err is worth another attempt and how long to wait.
func retryDelay(err error, attempt int) (time.Duration, bool) {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return 0, false
	}

	backoff := baseBackoff * time.Duration(1<<(attempt-1))

	switch apiErr.Code {
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return backoff, true
	case http.StatusTooManyRequests:
		m := retryAfterRe.FindStringSubmatch(apiErr.Message)
		if m == nil {
			return backoff, true
		}
		seconds, perr := strconv.ParseFloat(m[1], 64)
		if perr != nil {
			return backoff, true
		}
		delay := time.Duration(seconds * float64(time.Second))
		if delay > maxQuotaDelay {
			return 0, false
		}
		return delay, true
	default:
		return 0, false
	}
}
