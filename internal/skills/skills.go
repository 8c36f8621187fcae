package skills

import (
	"sort"
	"strings"
)

// Gap is the outcome of comparing a candidate's skills with a job's skill lists.
// Every slice is sorted and holds normalized skill names.
type Gap struct {
	Matched          []string `json:"matched"`
	MatchedRequired  []string `json:"matched_required"`
	MatchedPreferred []string `json:"matched_preferred"`
	MissingRequired  []string `json:"missing_required"`
	MissingPreferred []string `json:"missing_preferred"`
}

// Normalize lowercases a skill and collapses its whitespace.
func Normalize(skill string) string {
	return strings.Join(strings.Fields(strings.ToLower(skill)), " ")
}

// Set returns the normalized, de-duplicated and sorted form of skills.
// Entries that normalize to an empty string are dropped.
func Set(skills []string) []string {
	seen := make(map[string]struct{}, len(skills))
	out := make([]string, 0, len(skills))
	for _, s := range skills {
		n := Normalize(s)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Analyze compares candidate skills with the required and preferred lists.
// A skill listed as both required and preferred counts as required only.
func Analyze(candidate, required, preferred []string) Gap {
	have := make(map[string]struct{}, len(candidate))
	for _, s := range Set(candidate) {
		have[s] = struct{}{}
	}

	req := Set(required)
	reqSet := make(map[string]struct{}, len(req))
	for _, s := range req {
		reqSet[s] = struct{}{}
	}

	gap := Gap{
		Matched:          []string{},
		MatchedRequired:  []string{},
		MatchedPreferred: []string{},
		MissingRequired:  []string{},
		MissingPreferred: []string{},
	}

	for _, s := range req {
		if _, ok := have[s]; ok {
			gap.MatchedRequired = append(gap.MatchedRequired, s)
		} else {
			gap.MissingRequired = append(gap.MissingRequired, s)
		}
	}

	for _, s := range Set(preferred) {
		if _, dup := reqSet[s]; dup {
			continue
		}
		if _, ok := have[s]; ok {
			gap.MatchedPreferred = append(gap.MatchedPreferred, s)
		} else {
			gap.MissingPreferred = append(gap.MissingPreferred, s)
		}
	}

	gap.Matched = append(gap.Matched, gap.MatchedRequired...)
	gap.Matched = append(gap.Matched, gap.MatchedPreferred...)
	sort.Strings(gap.Matched)

	return gap
}
