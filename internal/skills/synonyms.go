package skills

// Synonyms maps skill aliases onto a canonical name, e.g. "js" -> "javascript".
// Keys and values are normalized on construction.
type Synonyms map[string]string

func NewSynonyms(aliases map[string]string) Synonyms {
	out := make(Synonyms, len(aliases))
	for alias, canonical := range aliases {
		a, c := Normalize(alias), Normalize(canonical)
		if a == "" || c == "" || a == c {
			continue
		}
		out[a] = c
	}
	return out
}

// Canonicalize rewrites every known alias in skills. Unknown skills pass through normalized.
// A nil or empty Synonyms only normalizes.
func (s Synonyms) Canonicalize(skills []string) []string {
	if len(skills) == 0 {
		return skills
	}
	out := make([]string, 0, len(skills))
	for _, skill := range skills {
		n := Normalize(skill)
		if c, ok := s[n]; ok {
			n = c
		}
		out = append(out, n)
	}
	return out
}
