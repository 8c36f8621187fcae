package scoring

import (
	"fmt"
	"math"
	"sort"

	"github.com/spigell/cv-matcher/internal/index"
	"github.com/spigell/cv-matcher/internal/skills"
	"github.com/spigell/cv-matcher/internal/talent"
)

// Weights of the combined score. Stored batches are compared over time, so
// changing any of these invalidates history.
const (
	SemanticWeight  = 0.6
	SkillWeight     = 0.4
	RequiredWeight  = 0.7
	PreferredWeight = 0.3
)

// StageScoring marks exclusions produced while scoring.
const StageScoring = "scoring"

// Breakdown holds the sub-scores behind a match percentage. All values are in [0, 100].
type Breakdown struct {
	Semantic float64
	Skill    float64
	Match    float64
}

// Score combines a cosine similarity with a skill gap.
func Score(cosine float64, gap skills.Gap) (Breakdown, error) {
	if math.IsNaN(cosine) || math.IsInf(cosine, 0) {
		return Breakdown{}, fmt.Errorf("invalid cosine similarity %v", cosine)
	}

	semantic := clamp((math.Max(-1, math.Min(1, cosine)) + 1) * 50)
	skill := skillScore(semantic, gap)

	return Breakdown{
		Semantic: semantic,
		Skill:    skill,
		Match:    clamp(SemanticWeight*semantic + SkillWeight*skill),
	}, nil
}

func skillScore(semantic float64, gap skills.Gap) float64 {
	required := len(gap.MatchedRequired) + len(gap.MissingRequired)
	preferred := len(gap.MatchedPreferred) + len(gap.MissingPreferred)

	wReq, wPref := RequiredWeight, PreferredWeight
	switch {
	case required == 0 && preferred == 0:
		return semantic
	case required == 0:
		wReq, wPref = 0, 1
	case preferred == 0:
		wReq, wPref = 1, 0
	}

	req := float64(len(gap.MatchedRequired)) / float64(max(1, required))
	pref := float64(len(gap.MatchedPreferred)) / float64(max(1, preferred))

	return clamp(100*req*wReq + 100*pref*wPref)
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}

// Rank scores every hit, keeps results at or above the job threshold and orders
// them by match percentage descending, then candidate ID ascending.
// A hit that cannot be scored is returned as an exclusion instead.
func Rank(job *talent.JobQuery, hits []index.Hit, gaps map[string]skills.Gap) ([]talent.MatchResult, []talent.Exclusion) {
	threshold := job.Parameters.MinMatchPercentage

	results := make([]talent.MatchResult, 0, len(hits))
	var excluded []talent.Exclusion

	for _, hit := range hits {
		gap, ok := gaps[hit.ID]
		if !ok {
			excluded = append(excluded, talent.Exclusion{
				CandidateID: hit.ID,
				Stage:       StageScoring,
				Reason:      "no skill analysis available",
			})
			continue
		}

		b, err := Score(hit.Score, gap)
		if err != nil {
			excluded = append(excluded, talent.Exclusion{
				CandidateID: hit.ID,
				Stage:       StageScoring,
				Reason:      err.Error(),
			})
			continue
		}

		if b.Match < threshold {
			continue
		}

		results = append(results, talent.MatchResult{
			CandidateID:      hit.ID,
			MatchPercentage:  b.Match,
			SemanticScore:    b.Semantic,
			SkillScore:       b.Skill,
			Cosine:           hit.Score,
			MatchedSkills:    gap.Matched,
			MissingRequired:  gap.MissingRequired,
			MissingPreferred: gap.MissingPreferred,
		})
	}

	Sort(results)
	return results, excluded
}

// Sort orders results by match percentage bucket descending (see index.TieKey),
// then candidate ID ascending.
func Sort(results []talent.MatchResult) {
	sort.Slice(results, func(i, j int) bool {
		a, b := results[i], results[j]
		ka, kb := index.TieKey(a.MatchPercentage), index.TieKey(b.MatchPercentage)
		if ka != kb {
			return ka > kb
		}
		return a.CandidateID < b.CandidateID
	})
}
