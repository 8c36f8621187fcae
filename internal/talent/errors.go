package talent

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyInput is returned for text that has nothing to embed.
	ErrEmptyInput = errors.New("empty input")
	// ErrDimensionMismatch is matched by every *DimensionMismatchError.
	ErrDimensionMismatch = errors.New("dimension mismatch")
	ErrUnsupportedFormat = errors.New("unsupported document format")
	ErrNotFound          = errors.New("not found")
)

// DimensionMismatchError reports vectors that cannot be compared with each other.
type DimensionMismatchError struct {
	WantDimension int
	GotDimension  int
	WantVersion   string
	GotVersion    string
	ID            string
}

func (e *DimensionMismatchError) Error() string {
	msg := fmt.Sprintf("dimension mismatch: want %d (%s), got %d (%s)",
		e.WantDimension, e.WantVersion, e.GotDimension, e.GotVersion)
	if e.ID != "" {
		msg += fmt.Sprintf(" [id=%s]", e.ID)
	}
	return msg
}

func (e *DimensionMismatchError) Is(target error) bool {
	return target == ErrDimensionMismatch
}

// CheckCompatible returns a *DimensionMismatchError when got cannot be compared with want.
func CheckCompatible(want, got EmbeddingVector, id string) error {
	if want.Version == got.Version && want.Dimension() == got.Dimension() {
		return nil
	}
	return &DimensionMismatchError{
		WantDimension: want.Dimension(),
		GotDimension:  got.Dimension(),
		WantVersion:   want.Version,
		GotVersion:    got.Version,
		ID:            id,
	}
}
