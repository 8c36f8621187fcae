package filtering

import (
	"context"
	"strings"

	"github.com/spigell/cv-matcher/internal/talent"
)

type emptyProfileFilter struct{}

// NewEmptyProfile removes candidates without extractable profile text. They
// are reported as exclusions, never scored as zero.
func NewEmptyProfile() Filter {
	return emptyProfileFilter{}
}

func (emptyProfileFilter) Name() string { return StageEmptyProfile }

func (emptyProfileFilter) Prepare(*Config) error { return nil }

func (f emptyProfileFilter) Apply(_ context.Context, deps Deps, pool []talent.CandidateRecord) ([]talent.CandidateRecord, Step, error) {
	kept, step := keep(pool, f.Name(), func(c talent.CandidateRecord) string {
		if strings.TrimSpace(c.ProfileText) == "" {
			return "no extractable profile text"
		}
		return ""
	})
	logExcluded(deps.Logger, "excluding candidate without profile text", step.Excluded)
	return kept, step, nil
}
