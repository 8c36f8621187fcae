package vectorizer

import (
	"context"
	"fmt"
	"strings"

	"github.com/spigell/cv-matcher/internal/talent"
)

// Vectorizer turns text into a fixed-length vector. Implementations are shared
// across concurrent matching runs and must not change after construction.
type Vectorizer interface {
	Embed(ctx context.Context, text string) (talent.EmbeddingVector, error)
	Version() string
	Dimension() int
	// WarmUp loads lazy resources. Calling it more than once, or concurrently, is safe.
	WarmUp(ctx context.Context) error
}

// checkText rejects text that is empty after trimming.
func checkText(text string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("%w: text is blank", talent.ErrEmptyInput)
	}
	return nil
}
