package storage

import (
	"context"
	"errors"
	"reflect"

	"github.com/spigell/cv-matcher/internal/skills"
	"github.com/spigell/cv-matcher/internal/talent"
)

// ErrConflict reports that the job parameters changed between reading and writing them.
var ErrConflict = errors.New("parameters were updated concurrently")

// Store persists candidates, jobs and match batches. Lookups of unknown
// records fail with talent.ErrNotFound.
type Store interface {
	// StoreCandidate inserts or fully replaces a candidate and returns its ID.
	// A record without an ID gets a fresh one.
	StoreCandidate(ctx context.Context, rec talent.CandidateRecord) (string, error)
	FetchAllCandidates(ctx context.Context) ([]talent.CandidateRecord, error)

	StoreJob(ctx context.Context, job talent.JobQuery) (string, error)
	FetchJob(ctx context.Context, id string) (*talent.JobQuery, error)

	// StoreMatchBatch persists a batch as is. Stored batches are never updated.
	StoreMatchBatch(ctx context.Context, batch *talent.Batch) (string, error)
	ListBatches(ctx context.Context, jobID string) ([]talent.Batch, error)

	// UpdateParameters replaces the job parameters and bumps their version.
	// It reports false when the parameters were already equal and fails with
	// ErrConflict when another writer bumped the version first.
	UpdateParameters(ctx context.Context, jobID string, params talent.MatchParameters) (bool, error)

	Close() error
}

// nextParameters returns the parameters to store after an update and whether anything changed.
func nextParameters(current, update talent.MatchParameters) (talent.MatchParameters, bool) {
	next := update.Clone()
	next.RequiredSkills = skills.Set(next.RequiredSkills)
	next.PreferredSkills = skills.Set(next.PreferredSkills)
	next.Version = current.Version

	prev := current.Clone()
	prev.RequiredSkills = skills.Set(prev.RequiredSkills)
	prev.PreferredSkills = skills.Set(prev.PreferredSkills)

	if reflect.DeepEqual(prev, next) {
		return current, false
	}

	next.Version = current.Version + 1
	return next, true
}

func cloneBatch(b *talent.Batch) talent.Batch {
	out := *b
	out.Parameters = b.Parameters.Clone()
	out.Results = make([]talent.MatchResult, len(b.Results))
	for i, r := range b.Results {
		r.MatchedSkills = append([]string(nil), r.MatchedSkills...)
		r.MissingRequired = append([]string(nil), r.MissingRequired...)
		r.MissingPreferred = append([]string(nil), r.MissingPreferred...)
		out.Results[i] = r
	}
	out.Excluded = append([]talent.Exclusion(nil), b.Excluded...)
	return out
}

func cloneCandidate(c talent.CandidateRecord) talent.CandidateRecord {
	c.Skills = append([]string(nil), c.Skills...)
	return c
}

func cloneJob(j talent.JobQuery) talent.JobQuery {
	j.Requirements = append([]string(nil), j.Requirements...)
	j.Parameters = j.Parameters.Clone()
	return j
}
