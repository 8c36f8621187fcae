package cvparse

import (
	"reflect"
	"testing"
)

const sampleCV = `
Jane Marie Doe
jane.doe@example.com
+90 555 123-4567

Education
Example University, Computer Engineering

Experience
Backend developer at Acme, built services in Python and Go on Kubernetes.
Maintained PostgreSQL and Redis clusters, practised Agile and CI/CD.
`

func TestParse(t *testing.T) {
	rec := Parse(sampleCV)

	if rec.Name != "Jane Marie Doe" {
		t.Fatalf("unexpected name: %q", rec.Name)
	}
	if rec.Email != "jane.doe@example.com" {
		t.Fatalf("unexpected email: %q", rec.Email)
	}
	if rec.Phone != "+905551234567" {
		t.Fatalf("unexpected phone: %q", rec.Phone)
	}
	if rec.ID != "" {
		t.Fatalf("ids are assigned by storage, got %q", rec.ID)
	}

	want := []string{"agile", "ci/cd", "go", "kubernetes", "postgresql", "python", "redis"}
	if !reflect.DeepEqual(rec.Skills, want) {
		t.Fatalf("unexpected skills:\n got: %v\nwant: %v", rec.Skills, want)
	}
}

func TestParseIsBestEffort(t *testing.T) {
	rec := Parse("just some lowercase notes without contacts")

	if rec.Name != "" || rec.Email != "" || rec.Phone != "" {
		t.Fatalf("expected empty contact fields, got %+v", rec)
	}
	if len(rec.Skills) != 0 {
		t.Fatalf("expected no skills, got %v", rec.Skills)
	}
	if rec.ProfileText == "" {
		t.Fatal("profile text must be kept")
	}
}

func TestSkillsUseWordBoundaries(t *testing.T) {
	p := New(nil)

	got := p.Skills("Maintains JavaScript apps; no java here? Java yes. Said hello.")
	want := []string{"java", "javascript"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestCustomKeywords(t *testing.T) {
	p := New([]string{"Elixir", "  ", "Phoenix"})

	got := p.Skills("Elixir and phoenix, also python")
	if !reflect.DeepEqual(got, []string{"elixir", "phoenix"}) {
		t.Fatalf("unexpected skills: %v", got)
	}
}

func TestBlankKeywordsUseDefaults(t *testing.T) {
	p := New([]string{" ", ""})

	got := p.Skills("Go and docker")
	if !reflect.DeepEqual(got, []string{"docker", "go"}) {
		t.Fatalf("unexpected skills: %v", got)
	}
}

func TestNameFallsBackToFirstNameLikeLine(t *testing.T) {
	text := "Curriculum vitae\nJohn Smith\nSenior engineer\ncontact: js@example.org"
	if got := Name(text, Email(text)); got != "John Smith" {
		t.Fatalf("unexpected name: %q", got)
	}
}
