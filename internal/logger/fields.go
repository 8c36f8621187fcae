package logger

import (
	"strings"

	"go.uber.org/zap"
)

const (
	FieldJobID       = "job_id"
	FieldRunID       = "run_id"
	FieldBatchID     = "batch_id"
	FieldCandidateID = "candidate_id"
	// FieldVectorizer carries the vectorizer version used in a run.
	FieldVectorizer = "vectorizer"
)

// WithFields attaches fields to logger. A nil logger becomes a no-op logger.
func WithFields(logger *zap.Logger, fields ...zap.Field) *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(fields) == 0 {
		return logger
	}
	return logger.With(fields...)
}

// RunFields identifies one matching run. Blank values are left out.
func RunFields(jobID, runID, vectorizer string) []zap.Field {
	fields := make([]zap.Field, 0, 3)
	for _, kv := range [][2]string{
		{FieldJobID, jobID},
		{FieldRunID, runID},
		{FieldVectorizer, vectorizer},
	} {
		if v := strings.TrimSpace(kv[1]); v != "" {
			fields = append(fields, zap.String(kv[0], v))
		}
	}
	return fields
}

func WithRun(logger *zap.Logger, jobID, runID, vectorizer string) *zap.Logger {
	return WithFields(logger, RunFields(jobID, runID, vectorizer)...)
}

func Candidate(id string) zap.Field {
	return zap.String(FieldCandidateID, id)
}

func Batch(id string) zap.Field {
	return zap.String(FieldBatchID, id)
}
