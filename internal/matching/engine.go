package matching

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spigell/cv-matcher/internal/explain"
	"github.com/spigell/cv-matcher/internal/filtering"
	"github.com/spigell/cv-matcher/internal/index"
	"github.com/spigell/cv-matcher/internal/logger"
	"github.com/spigell/cv-matcher/internal/scoring"
	"github.com/spigell/cv-matcher/internal/skills"
	"github.com/spigell/cv-matcher/internal/talent"
	"github.com/spigell/cv-matcher/internal/utils"
	"github.com/spigell/cv-matcher/internal/vectorizer"
)

const (
	defaultWorkers = 4
	previewLength  = 120

	StageEmbedding = "embedding"
)

// Config tunes the engine. It is read once by New.
type Config struct {
	Workers     int               `mapstructure:"workers"`
	Synonyms    map[string]string `mapstructure:"synonyms"`
	ExcludeFile string            `mapstructure:"exclude-file"`
	SkipFilters []string          `mapstructure:"skip-filters"`
}

// Engine matches a job against a candidate pool. One Engine is meant to be
// shared by concurrent runs; it keeps the index of the last pool it saw.
type Engine struct {
	vectorizer vectorizer.Vectorizer
	builder    index.Builder
	synonyms   skills.Synonyms
	workers    int
	filterCfg  *filtering.Config
	logger     *zap.Logger

	now   func() time.Time
	newID func() string

	snapshots snapshots
}

func New(cfg Config, vec vectorizer.Vectorizer, builder index.Builder, log *zap.Logger) *Engine {
	workers := cfg.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	if builder == nil {
		builder = index.NewMemoryBuilder()
	}

	return &Engine{
		vectorizer: vec,
		builder:    builder,
		synonyms:   skills.NewSynonyms(cfg.Synonyms),
		workers:    workers,
		filterCfg:  &filtering.Config{ExcludeFile: cfg.ExcludeFile, Skip: cfg.SkipFilters},
		logger:     logger.WithFields(log),
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

// Match runs one job against candidates and returns a new immutable batch.
// An empty pool yields an empty batch. Candidates that cannot be embedded or
// scored are reported in Batch.Excluded instead of failing the run.
func (e *Engine) Match(ctx context.Context, job *talent.JobQuery, candidates []talent.CandidateRecord) (*talent.Batch, error) {
	if job == nil {
		return nil, errors.New("job is required")
	}

	runID := e.newID()
	log := logger.WithRun(e.logger, job.ID, runID, e.vectorizer.Version())

	batch := &talent.Batch{
		ID:                runID,
		JobID:             job.ID,
		CreatedAt:         e.now().UTC(),
		Parameters:        job.Parameters.Clone(),
		VectorizerVersion: e.vectorizer.Version(),
		Results:           []talent.MatchResult{},
	}

	if err := e.vectorizer.WarmUp(ctx); err != nil {
		return nil, fmt.Errorf("warming up vectorizer: %w", err)
	}

	steps, err := filtering.Chain(e.filterCfg)
	if err != nil {
		return nil, err
	}
	pool, excluded, err := filtering.Run(ctx, e.filterCfg, filtering.Deps{Logger: log}, steps, candidates)
	if err != nil {
		return nil, fmt.Errorf("pre-screening candidates: %w", err)
	}
	batch.Excluded = append(batch.Excluded, excluded...)

	log.Debug("embedding job", zap.String("text_preview", utils.TruncateForLog(job.Text(), previewLength)))
	jobVec, err := e.vectorizer.Embed(ctx, job.Text())
	if err != nil {
		return nil, fmt.Errorf("embedding job %s: %w", job.ID, err)
	}

	if len(pool) == 0 {
		log.Info("candidate pool is empty")
		return batch, nil
	}

	snap, err := e.snapshotFor(ctx, log, jobVec, pool)
	if err != nil {
		return nil, err
	}
	defer e.snapshots.release(snap, log)

	batch.Excluded = append(batch.Excluded, snap.excluded...)

	hits, err := snap.index.Query(ctx, jobVec, 0)
	if err != nil {
		return nil, fmt.Errorf("querying index: %w", err)
	}

	params := batch.Parameters
	required := e.synonyms.Canonicalize(params.RequiredSkills)
	preferred := e.synonyms.Canonicalize(params.PreferredSkills)

	gaps := make(map[string]skills.Gap, len(pool))
	for _, c := range pool {
		gaps[c.ID] = skills.Analyze(e.synonyms.Canonicalize(c.Skills), required, preferred)
	}

	scored := *job
	scored.Parameters = params
	results, rejected := scoring.Rank(&scored, hits, gaps)
	for _, x := range rejected {
		log.Warn("excluding candidate from ranking", logger.Candidate(x.CandidateID), zap.String("reason", x.Reason))
	}
	batch.Excluded = append(batch.Excluded, rejected...)

	for i := range results {
		results[i].Explanation = explain.Explain(&results[i], &scored)
	}
	batch.Results = results

	log.Info("matching run completed",
		zap.Int("candidates", len(candidates)),
		zap.Int("indexed", snap.index.Len()),
		zap.Int("ranked", len(results)),
		zap.Int("excluded", len(batch.Excluded)),
		zap.Float64("min_match_percentage", params.MinMatchPercentage),
	)

	return batch, nil
}

// Close releases the current index snapshot.
func (e *Engine) Close() error {
	return e.snapshots.reset()
}
