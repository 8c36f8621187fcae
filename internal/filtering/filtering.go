package filtering

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/cv-matcher/internal/logger"
	"github.com/spigell/cv-matcher/internal/talent"
)

const (
	StageDuplicateID  = "duplicate_id"
	StageEmptyProfile = "empty_profile"
	StageExcludeFile  = "exclude_file"
)

// Filter is one pre-screening step over the candidate pool. A Filter is
// used by a single run; Prepare is called once before Apply.
type Filter interface {
	Name() string
	Prepare(cfg *Config) error
	Apply(ctx context.Context, deps Deps, pool []talent.CandidateRecord) ([]talent.CandidateRecord, Step, error)
}

type Deps struct {
	Logger *zap.Logger
}

// Step is what a filter did to the pool.
type Step struct {
	Initial  int
	Dropped  int
	Left     int
	Excluded []talent.Exclusion
}

type Config struct {
	ExcludeFile string
	// Skip names steps left out of the chain.
	Skip []string
}

var constructors = map[string]func() Filter{
	StageDuplicateID:  NewDuplicateID,
	StageEmptyProfile: NewEmptyProfile,
	StageExcludeFile:  NewExcludeFile,
}

var order = []string{StageDuplicateID, StageEmptyProfile, StageExcludeFile}

// Chain returns fresh filters in their fixed order, without the skipped ones.
// duplicate_id always runs: the index cannot hold two vectors for one ID.
func Chain(cfg *Config) ([]Filter, error) {
	skip := map[string]bool{}
	if cfg != nil {
		for _, name := range cfg.Skip {
			name = strings.TrimSpace(name)
			if _, ok := constructors[name]; !ok {
				return nil, fmt.Errorf("unknown filter %q, expected one of %s", name, strings.Join(order, ", "))
			}
			if name == StageDuplicateID {
				return nil, fmt.Errorf("filter %s cannot be skipped", name)
			}
			skip[name] = true
		}
	}

	steps := make([]Filter, 0, len(order))
	for _, name := range order {
		if !skip[name] {
			steps = append(steps, constructors[name]())
		}
	}
	return steps, nil
}

// Names lists the filters Chain knows about.
func Names() []string {
	return slices.Clone(order)
}

// Run prepares every step, then applies them in order. The caller's slice is
// never modified.
func Run(ctx context.Context, cfg *Config, deps Deps, steps []Filter, pool []talent.CandidateRecord) ([]talent.CandidateRecord, []talent.Exclusion, error) {
	log := logger.WithFields(deps.Logger)
	deps.Logger = log

	for _, step := range steps {
		if err := step.Prepare(cfg); err != nil {
			return nil, nil, fmt.Errorf("%s: %w", step.Name(), err)
		}
	}

	current := slices.Clone(pool)
	var excluded []talent.Exclusion

	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		next, info, err := step.Apply(ctx, deps, current)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", step.Name(), err)
		}

		log.Info("filter step",
			zap.String("name", step.Name()),
			zap.Int("initial", info.Initial),
			zap.Int("dropped", info.Dropped),
			zap.Int("left", info.Left),
		)

		current = next
		excluded = append(excluded, info.Excluded...)
	}

	return current, excluded, nil
}

// keep splits pool by drop, recording an exclusion for every dropped candidate.
func keep(pool []talent.CandidateRecord, stage string, drop func(talent.CandidateRecord) string) ([]talent.CandidateRecord, Step) {
	step := Step{Initial: len(pool)}
	kept := pool[:0]
	for _, c := range pool {
		if reason := drop(c); reason != "" {
			step.Excluded = append(step.Excluded, talent.Exclusion{CandidateID: c.ID, Stage: stage, Reason: reason})
			continue
		}
		kept = append(kept, c)
	}
	step.Dropped = len(step.Excluded)
	step.Left = len(kept)
	return kept, step
}

func logExcluded(log *zap.Logger, msg string, excluded []talent.Exclusion) {
	for _, e := range excluded {
		log.Warn(msg, logger.Candidate(e.CandidateID), zap.String("reason", e.Reason))
	}
}
