package matching

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spigell/cv-matcher/internal/index"
	"github.com/spigell/cv-matcher/internal/logger"
	"github.com/spigell/cv-matcher/internal/talent"
)

// embedPool embeds every profile on a bounded worker pool. It returns only after
// all workers finished. A cancelled context discards everything embedded so far.
func (e *Engine) embedPool(ctx context.Context, log *zap.Logger, jobVec talent.EmbeddingVector, pool []talent.CandidateRecord) ([]index.Entry, []talent.Exclusion, error) {
	vectors := make([]talent.EmbeddingVector, len(pool))
	failures := make([]error, len(pool))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	for i := range pool {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			vec, err := e.vectorizer.Embed(gctx, pool[i].ProfileText)
			switch {
			case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
				return err
			case err != nil:
				failures[i] = err
				return nil
			}

			if err := talent.CheckCompatible(jobVec, vec, pool[i].ID); err != nil {
				failures[i] = err
				return nil
			}

			vectors[i] = vec
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	entries := make([]index.Entry, 0, len(pool))
	var excluded []talent.Exclusion
	for i, c := range pool {
		if failures[i] != nil {
			log.Warn("excluding candidate that could not be embedded",
				logger.Candidate(c.ID),
				zap.String("reason", failures[i].Error()),
			)
			excluded = append(excluded, talent.Exclusion{
				CandidateID: c.ID,
				Stage:       StageEmbedding,
				Reason:      failures[i].Error(),
			})
			continue
		}
		entries = append(entries, index.Entry{ID: c.ID, Vector: vectors[i]})
	}

	return entries, excluded, nil
}
