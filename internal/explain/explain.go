package explain

import (
	"fmt"
	"strings"

	"github.com/spigell/cv-matcher/internal/talent"
)

type Band string

const (
	BandStrong   Band = "strong"
	BandModerate Band = "moderate"
	BandWeak     Band = "weak"

	StrongThreshold   = 75.0
	ModerateThreshold = 60.0
)

// SemanticBand buckets a semantic sub-score.
func SemanticBand(semantic float64) Band {
	switch {
	case semantic >= StrongThreshold:
		return BandStrong
	case semantic >= ModerateThreshold:
		return BandModerate
	default:
		return BandWeak
	}
}

// Explain renders the signals already stored in result. It never recomputes a score.
func Explain(result *talent.MatchResult, job *talent.JobQuery) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s semantic fit", capitalize(string(SemanticBand(result.SemanticScore))))
	if job != nil && strings.TrimSpace(job.Title) != "" {
		fmt.Fprintf(&b, " for %q", strings.TrimSpace(job.Title))
	}
	fmt.Fprintf(&b, " (%.1f%% overall match).", result.MatchPercentage)

	switch {
	case len(result.MissingRequired) == 0 && len(result.MissingPreferred) == 0:
		if len(result.MatchedSkills) > 0 {
			b.WriteString(" Covers every listed skill.")
		}
	default:
		if len(result.MissingRequired) > 0 {
			fmt.Fprintf(&b, " Missing required skills: %s.", strings.Join(result.MissingRequired, ", "))
		}
		if len(result.MissingPreferred) > 0 {
			fmt.Fprintf(&b, " Missing preferred skills: %s.", strings.Join(result.MissingPreferred, ", "))
		}
	}

	return b.String()
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
