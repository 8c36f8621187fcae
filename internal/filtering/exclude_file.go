package filtering

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/cv-matcher/internal/talent"
)

const defaultExcludeReason = "listed in exclude file"

// ExcludedCandidates is the exclude file layout: candidates withdrawn by an operator.
type ExcludedCandidates struct {
	Items []ExcludedCandidate `json:"items"`
}

type ExcludedCandidate struct {
	ID     string `json:"id"`
	Reason string `json:"reason,omitempty"`
}

// LoadExcludedCandidates reads an exclude file. A blank file excludes nobody.
func LoadExcludedCandidates(path string) (*ExcludedCandidates, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	out := &ExcludedCandidates{}
	if strings.TrimSpace(string(data)) == "" {
		return out, nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return out, nil
}

// Reasons maps every listed ID to its reason.
func (e *ExcludedCandidates) Reasons() map[string]string {
	reasons := make(map[string]string, len(e.Items))
	for _, item := range e.Items {
		id := strings.TrimSpace(item.ID)
		if id == "" {
			continue
		}
		reason := strings.TrimSpace(item.Reason)
		if reason == "" {
			reason = defaultExcludeReason
		}
		reasons[id] = reason
	}
	return reasons
}

type excludeFileFilter struct {
	path    string
	reasons map[string]string
}

// NewExcludeFile removes candidates listed in Config.ExcludeFile. Without a
// configured file it keeps everyone.
func NewExcludeFile() Filter {
	return &excludeFileFilter{}
}

func (f *excludeFileFilter) Name() string { return StageExcludeFile }

// Prepare reads the file once per run so that every step sees the same list.
func (f *excludeFileFilter) Prepare(cfg *Config) error {
	f.path, f.reasons = "", nil
	if cfg == nil || strings.TrimSpace(cfg.ExcludeFile) == "" {
		return nil
	}

	f.path = strings.TrimSpace(cfg.ExcludeFile)
	excluded, err := LoadExcludedCandidates(f.path)
	if err != nil {
		return fmt.Errorf("getting excluded candidates from file: %w", err)
	}
	f.reasons = excluded.Reasons()
	return nil
}

func (f *excludeFileFilter) Apply(_ context.Context, deps Deps, pool []talent.CandidateRecord) ([]talent.CandidateRecord, Step, error) {
	kept, step := keep(pool, f.Name(), func(c talent.CandidateRecord) string {
		return f.reasons[c.ID]
	})

	if step.Dropped > 0 {
		deps.Logger.Info("excluding candidates based on exclude file",
			zap.String("path", f.path),
			zap.Int("excluded_candidates", step.Dropped),
			zap.Int("candidates_left", step.Left),
		)
	}

	return kept, step, nil
}
