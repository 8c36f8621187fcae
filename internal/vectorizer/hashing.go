package vectorizer

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/spigell/cv-matcher/internal/talent"
)

const (
	// DefaultDimension is used when the configured dimension is not positive.
	DefaultDimension = 512
	hashingVersion   = "hashing-v1"
	minTokenRunes    = 2
)

var stopWords = map[string]bool{
	"and": true, "the": true, "for": true, "with": true, "you": true,
	"are": true, "have": true, "will": true, "this": true, "that": true,
	"from": true, "our": true, "your": true, "their": true, "they": true,
	"about": true, "which": true, "what": true, "who": true, "how": true,
	"can": true, "not": true, "but": true, "all": true, "also": true,
	"more": true, "than": true, "into": true, "has": true, "its": true,
	"was": true, "were": true, "been": true, "each": true, "is": true,
	"in": true, "on": true, "at": true, "to": true, "of": true, "an": true,
	"or": true, "by": true, "as": true, "be": true, "we": true, "it": true,
}

// Hashing is a local feature-hashing vectorizer. It needs no model and is
// bit-for-bit deterministic for a given dimension.
type Hashing struct {
	dim     int
	version string
}

func NewHashing(dim int) *Hashing {
	if dim <= 0 {
		dim = DefaultDimension
	}
	return &Hashing{
		dim:     dim,
		version: fmt.Sprintf("%s-d%d", hashingVersion, dim),
	}
}

func (h *Hashing) Version() string { return h.version }

func (h *Hashing) Dimension() int { return h.dim }

func (h *Hashing) WarmUp(context.Context) error { return nil }

func (h *Hashing) Embed(_ context.Context, text string) (talent.EmbeddingVector, error) {
	if err := checkText(text); err != nil {
		return talent.EmbeddingVector{}, err
	}

	counts := Tokenize(text)
	if len(counts) == 0 {
		return talent.EmbeddingVector{}, fmt.Errorf("%w: no embeddable tokens", talent.ErrEmptyInput)
	}

	// Summation order is fixed by sorting so that the result does not depend on map iteration.
	tokens := make([]string, 0, len(counts))
	for tok := range counts {
		tokens = append(tokens, tok)
	}
	sort.Strings(tokens)

	values := make([]float64, h.dim)
	for _, tok := range tokens {
		hash := fnv.New64a()
		_, _ = hash.Write([]byte(tok))
		sum := hash.Sum64()

		sign := 1.0
		if sum>>63 == 1 {
			sign = -1.0
		}
		values[sum%uint64(h.dim)] += sign * (1 + math.Log(float64(counts[tok])))
	}

	var norm float64
	for _, v := range values {
		norm += v * v
	}
	if norm == 0 {
		return talent.EmbeddingVector{}, fmt.Errorf("%w: tokens cancel out", talent.ErrEmptyInput)
	}
	norm = math.Sqrt(norm)
	for i := range values {
		values[i] /= norm
	}

	return talent.EmbeddingVector{Values: values, Version: h.version}, nil
}

// Tokenize lowercases text and counts keywords. The characters + # . stay
// inside tokens so that "c++", "c#" and "node.js" survive.
func Tokenize(text string) map[string]int {
	counts := make(map[string]int)
	var word strings.Builder
	flush := func() {
		w := strings.TrimRight(word.String(), ".")
		word.Reset()
		if len([]rune(w)) >= minTokenRunes && !stopWords[w] {
			counts[w]++
		}
	}
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '+' || r == '#' || r == '.' {
			word.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return counts
}
