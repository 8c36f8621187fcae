package filtering

import (
	"context"
	"strings"

	"github.com/spigell/cv-matcher/internal/talent"
)

type duplicateIDFilter struct{}

// NewDuplicateID keeps the first record for every candidate ID and drops
// records without an ID.
func NewDuplicateID() Filter {
	return duplicateIDFilter{}
}

func (duplicateIDFilter) Name() string { return StageDuplicateID }

func (duplicateIDFilter) Prepare(*Config) error { return nil }

func (f duplicateIDFilter) Apply(_ context.Context, deps Deps, pool []talent.CandidateRecord) ([]talent.CandidateRecord, Step, error) {
	seen := make(map[string]struct{}, len(pool))
	kept, step := keep(pool, f.Name(), func(c talent.CandidateRecord) string {
		if strings.TrimSpace(c.ID) == "" {
			return "missing candidate id"
		}
		if _, dup := seen[c.ID]; dup {
			return "duplicate candidate id"
		}
		seen[c.ID] = struct{}{}
		return ""
	})
	logExcluded(deps.Logger, "excluding candidate record", step.Excluded)
	return kept, step, nil
}
