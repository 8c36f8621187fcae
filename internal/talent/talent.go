package talent

import (
	"strings"
	"time"
)

// DefaultMinMatchPercentage is applied when a job does not set its own threshold.
const DefaultMinMatchPercentage = 70.0

// CandidateRecord is a parsed CV. A re-parse replaces the whole record.
type CandidateRecord struct {
	ID          string   `json:"id" mapstructure:"id"`
	Name        string   `json:"name,omitempty" mapstructure:"name"`
	Email       string   `json:"email,omitempty" mapstructure:"email"`
	Phone       string   `json:"phone,omitempty" mapstructure:"phone"`
	ProfileText string   `json:"profile_text,omitempty" mapstructure:"profile-text"`
	Skills      []string `json:"skills,omitempty" mapstructure:"skills"`
}

// MatchParameters tunes a single job. Version grows with every stored update.
type MatchParameters struct {
	MinMatchPercentage float64  `json:"min_match_percentage" mapstructure:"min-match-percentage"`
	RequiredSkills     []string `json:"required_skills,omitempty" mapstructure:"required-skills"`
	PreferredSkills    []string `json:"preferred_skills,omitempty" mapstructure:"preferred-skills"`
	Version            int      `json:"version" mapstructure:"version"`
}

// DefaultParameters returns parameters with the default threshold and no skill lists.
func DefaultParameters() MatchParameters {
	return MatchParameters{MinMatchPercentage: DefaultMinMatchPercentage}
}

// Clone returns a deep copy so that callers can keep a snapshot per run.
func (p MatchParameters) Clone() MatchParameters {
	out := p
	out.RequiredSkills = append([]string(nil), p.RequiredSkills...)
	out.PreferredSkills = append([]string(nil), p.PreferredSkills...)
	return out
}

// JobQuery is a job posting together with the parameters it is matched with.
type JobQuery struct {
	ID           string          `json:"id" mapstructure:"id"`
	Title        string          `json:"title" mapstructure:"title"`
	Description  string          `json:"description" mapstructure:"description"`
	Requirements []string        `json:"requirements,omitempty" mapstructure:"requirements"`
	Parameters   MatchParameters `json:"parameters" mapstructure:"parameters"`
}

// Text is the string embedded for the job: title, description and every requirement line.
func (j *JobQuery) Text() string {
	parts := make([]string, 0, len(j.Requirements)+2)
	for _, p := range append([]string{j.Title, j.Description}, j.Requirements...) {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "\n")
}

// EmbeddingVector is only comparable to vectors with the same Version and length.
type EmbeddingVector struct {
	Values  []float64 `json:"values"`
	Version string    `json:"version"`
}

// Dimension is the number of components.
func (v EmbeddingVector) Dimension() int {
	return len(v.Values)
}

// MatchResult is immutable once a run has produced it.
type MatchResult struct {
	CandidateID      string   `json:"candidate_id"`
	MatchPercentage  float64  `json:"match_percentage"`
	SemanticScore    float64  `json:"semantic_score"`
	SkillScore       float64  `json:"skill_score"`
	Cosine           float64  `json:"cosine"`
	MatchedSkills    []string `json:"matched_skills,omitempty"`
	MissingRequired  []string `json:"missing_required,omitempty"`
	MissingPreferred []string `json:"missing_preferred,omitempty"`
	Explanation      string   `json:"explanation"`
}

// MissingSkills lists required misses first, then preferred misses.
func (r *MatchResult) MissingSkills() []string {
	out := make([]string, 0, len(r.MissingRequired)+len(r.MissingPreferred))
	out = append(out, r.MissingRequired...)
	return append(out, r.MissingPreferred...)
}

// Exclusion records why a candidate was left out of a run.
type Exclusion struct {
	CandidateID string `json:"candidate_id"`
	Stage       string `json:"stage"`
	Reason      string `json:"reason"`
}

// Batch is the immutable output of one matching run.
type Batch struct {
	ID                string          `json:"id"`
	JobID             string          `json:"job_id"`
	CreatedAt         time.Time       `json:"created_at"`
	Parameters        MatchParameters `json:"parameters"`
	VectorizerVersion string          `json:"vectorizer_version"`
	Results           []MatchResult   `json:"results"`
	Excluded          []Exclusion     `json:"excluded,omitempty"`
}

// Len returns the number of ranked results.
func (b *Batch) Len() int {
	return len(b.Results)
}

// CandidateIDs returns the ranked candidate identifiers in order.
func (b *Batch) CandidateIDs() []string {
	ids := make([]string, 0, len(b.Results))
	for _, r := range b.Results {
		ids = append(ids, r.CandidateID)
	}
	return ids
}
