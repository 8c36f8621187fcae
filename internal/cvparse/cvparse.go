package cvparse

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/spigell/cv-matcher/internal/talent"
)

var (
	emailRe = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
	phoneRe = regexp.MustCompile(`\+?\d{10,15}`)
	// phone numbers are matched after these separators are removed
	phoneSeparators = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", ".", "")
)

// DefaultSkills is the keyword list used when no custom list is configured.
var DefaultSkills = []string{
	"python", "java", "javascript", "typescript", "go", "golang", "rust", "react", "node.js",
	"docker", "kubernetes", "aws", "azure", "gcp", "terraform",
	"machine learning", "ai", "artificial intelligence", "data science", "big data", "nlp",
	"sql", "nosql", "mongodb", "postgresql", "mysql", "redis",
	"agile", "scrum", "devops", "ci/cd", "git", "linux",
}

// Parser extracts a candidate record from CV text. Extraction is best effort:
// a field that cannot be found is left empty.
type Parser struct {
	skillsRe *regexp.Regexp
}

// New builds a parser for the given skill keywords. An empty list uses DefaultSkills.
func New(keywords []string) *Parser {
	quoted := quoteKeywords(keywords)
	if len(quoted) == 0 {
		quoted = quoteKeywords(DefaultSkills)
	}
	// longest first so that "java" does not shadow "javascript"
	sort.Slice(quoted, func(i, j int) bool {
		if len(quoted[i]) != len(quoted[j]) {
			return len(quoted[i]) > len(quoted[j])
		}
		return quoted[i] < quoted[j]
	})

	return &Parser{skillsRe: regexp.MustCompile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`)}
}

func quoteKeywords(keywords []string) []string {
	quoted := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			quoted = append(quoted, regexp.QuoteMeta(k))
		}
	}
	return quoted
}

// Parse is New(nil).Parse.
func Parse(text string) talent.CandidateRecord {
	return New(nil).Parse(text)
}

func (p *Parser) Parse(text string) talent.CandidateRecord {
	email := Email(text)
	return talent.CandidateRecord{
		Name:        Name(text, email),
		Email:       email,
		Phone:       Phone(text),
		ProfileText: strings.TrimSpace(text),
		Skills:      p.Skills(text),
	}
}

func Email(text string) string {
	return emailRe.FindString(text)
}

func Phone(text string) string {
	for _, line := range strings.Split(text, "\n") {
		if m := phoneRe.FindString(phoneSeparators.Replace(line)); m != "" {
			return m
		}
	}
	return ""
}

// Name prefers the line right above the email address, then the first line
// that looks like a personal name.
func Name(text, email string) string {
	lines := strings.Split(text, "\n")

	if email != "" {
		for i, line := range lines {
			if !strings.Contains(line, email) {
				continue
			}
			for j := i - 1; j >= 0; j-- {
				prev := strings.TrimSpace(lines[j])
				if prev == "" {
					continue
				}
				if looksLikeName(prev) {
					return prev
				}
				break
			}
			break
		}
	}

	for _, line := range lines {
		if line = strings.TrimSpace(line); looksLikeName(line) {
			return line
		}
	}
	return ""
}

func looksLikeName(line string) bool {
	words := strings.Fields(line)
	if len(words) < 2 || len(words) > 4 {
		return false
	}
	for _, w := range words {
		r := []rune(w)
		if !unicode.IsUpper(r[0]) {
			return false
		}
		for _, c := range r {
			if !unicode.IsLetter(c) && c != '-' && c != '\'' && c != '.' {
				return false
			}
		}
	}
	return true
}

// Skills returns the sorted, lowercased keywords found in text.
func (p *Parser) Skills(text string) []string {
	seen := make(map[string]struct{})
	for _, m := range p.skillsRe.FindAllString(text, -1) {
		seen[strings.ToLower(m)] = struct{}{}
	}

	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
