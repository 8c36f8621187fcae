package cmd

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/cv-matcher/internal/cvparse"
	"github.com/spigell/cv-matcher/internal/index"
	"github.com/spigell/cv-matcher/internal/storage"
	"github.com/spigell/cv-matcher/internal/talent"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func writeDocx(t *testing.T, dir, name string, paragraphs ...string) {
	t.Helper()
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatalf("zip entry: %v", err)
	}
	body := `<?xml version="1.0" encoding="UTF-8"?><w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`
	for _, p := range paragraphs {
		body += `<w:p><w:r><w:t>` + p + `</w:t></w:r></w:p>`
	}
	body += `</w:body></w:document>`
	if _, err := w.Write([]byte(body)); err != nil {
		t.Fatalf("zip write: %v", err)
	}
	rels, err := zw.Create("word/_rels/document.xml.rels")
	if err != nil {
		t.Fatalf("zip entry: %v", err)
	}
	if _, err := rels.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"></Relationships>`)); err != nil {
		t.Fatalf("zip write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
}

func TestLoadJobFile(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name     string
		file     string
		content  string
		minMatch float64
		wantID   string
		wantMin  float64
		wantReq  int
		wantErr  bool
	}{
		{
			name: "yaml with parameters",
			file: "backend.yaml",
			content: `id: job-1
title: Go Engineer
description: Build services
requirements:
  - Go
parameters:
  min-match-percentage: 55
  required-skills: [go, sql]
`,
			wantID:  "job-1",
			wantMin: 55,
			wantReq: 2,
		},
		{
			name:     "id from file name and configured threshold",
			file:     "data-eng.json",
			content:  `{"title": "Data Engineer"}`,
			minMatch: 65,
			wantID:   "data-eng",
			wantMin:  65,
		},
		{
			name:    "default threshold",
			file:    "plain.yaml",
			content: "title: Analyst\n",
			wantID:  "plain",
			wantMin: 70,
		},
		{
			name:    "unknown key",
			file:    "typo.yaml",
			content: "title: Analyst\nrequirement: [x]\n",
			wantErr: true,
		},
		{
			name:    "nothing to embed",
			file:    "empty.yaml",
			content: "id: empty\ntitle: '  '\n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, dir, tt.file, tt.content)

			job, err := loadJobFile(path, tt.minMatch)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", job)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if job.ID != tt.wantID || job.Parameters.MinMatchPercentage != tt.wantMin || len(job.Parameters.RequiredSkills) != tt.wantReq {
				t.Fatalf("unexpected job: %+v", job)
			}
		})
	}
}

func TestResolveJobBumpsVersionOnChangedFile(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	dir := t.TempDir()
	core, logs := observer.New(zap.WarnLevel)
	logger := zap.New(core)

	path := writeFile(t, dir, "job.yaml", "id: j1\ntitle: Go Engineer\nparameters:\n  required-skills: [go]\n")
	first, err := resolveJob(ctx, store, path, "", 0, logger)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	same, err := resolveJob(ctx, store, path, "", 0, logger)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if same.Parameters.Version != first.Parameters.Version {
		t.Fatalf("unchanged file must keep the version: %d -> %d", first.Parameters.Version, same.Parameters.Version)
	}
	if logs.Len() != 0 {
		t.Fatalf("unchanged file must not warn, got %v", logs.All())
	}

	writeFile(t, dir, "job.yaml", "id: j1\ntitle: Go Engineer\nparameters:\n  required-skills: [go, sql]\n")
	changed, err := resolveJob(ctx, store, path, "", 0, logger)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if changed.Parameters.Version != first.Parameters.Version+1 {
		t.Fatalf("expected version bump, got %d", changed.Parameters.Version)
	}

	byID, err := resolveJob(ctx, store, "", "j1", 0, logger)
	if err != nil || len(byID.Parameters.RequiredSkills) != 2 {
		t.Fatalf("unexpected stored job: %+v / %v", byID, err)
	}

	if _, err := resolveJob(ctx, store, "", "missing", 0, logger); err == nil {
		t.Fatal("expected error for unknown job id")
	}

	warned := logs.FilterMessage("job file overrides stored parameters").All()
	if len(warned) != 1 {
		t.Fatalf("expected one override warning, got %d", len(warned))
	}
	if got := warned[0].ContextMap()["stored_version"]; got != int64(first.Parameters.Version) {
		t.Fatalf("expected stored_version %d, got %v", first.Parameters.Version, got)
	}
}

func TestResolveJobWarnsWhenFileDropsParameters(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	dir := t.TempDir()
	core, logs := observer.New(zap.WarnLevel)
	logger := zap.New(core)

	path := writeFile(t, dir, "job.yaml", "id: j2\ntitle: Data Engineer\n")
	job, err := resolveJob(ctx, store, path, "", 0, logger)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tuned := job.Parameters
	tuned.MinMatchPercentage = 55
	tuned.RequiredSkills = []string{"spark"}
	if _, err := store.UpdateParameters(ctx, job.ID, tuned); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	again, err := resolveJob(ctx, store, path, "", 0, logger)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if again.Parameters.MinMatchPercentage != talent.DefaultMinMatchPercentage {
		t.Fatalf("expected file defaults to win, got %+v", again.Parameters)
	}
	if logs.FilterMessage("job file overrides stored parameters").Len() != 1 {
		t.Fatalf("expected override warning, got %v", logs.All())
	}
}

func TestNewVectorizerAndIndexBuilder(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")

	cfg := &Config{}
	cfg.defaults()

	vec, err := newVectorizer(context.Background(), cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vec.Version() == "" || vec.Dimension() == 0 {
		t.Fatalf("unexpected default vectorizer %s/%d", vec.Version(), vec.Dimension())
	}

	builder, err := newIndexBuilder(cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := builder.(*index.MemoryBuilder); !ok {
		t.Fatalf("expected memory builder, got %T", builder)
	}

	bad := []*Config{
		{Vectorizer: &VectorizerConfig{Provider: "word2vec"}},
		{Vectorizer: &VectorizerConfig{Provider: "gemini"}},
		{Index: &IndexConfig{Backend: "faiss"}},
		{Index: &IndexConfig{Backend: "qdrant"}},
	}
	for _, c := range bad {
		c.defaults()
		_, verr := newVectorizer(context.Background(), c, zap.NewNop())
		_, ierr := newIndexBuilder(c, zap.NewNop())
		if verr == nil && ierr == nil {
			t.Fatalf("expected an error for %+v %+v", c.Vectorizer, c.Index)
		}
	}
}

func TestNewNotifierRequiresAChannel(t *testing.T) {
	if _, err := newNotifier(&NotifyConfig{Enabled: true}, zap.NewNop()); err == nil {
		t.Fatal("expected error without smtp and twilio")
	}
}

func TestIngestDir(t *testing.T) {
	dir := t.TempDir()
	writeDocx(t, dir, "ada.docx", "Ada Lovelace", "ada@example.com", "Go and PostgreSQL on Kubernetes")
	writeFile(t, dir, "notes.txt", "ignored")
	writeFile(t, dir, "broken.pdf", "not a pdf")

	store := storage.NewMemory()
	if err := ingestDir(context.Background(), store, dir, cvparse.New(nil), zap.NewNop()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := store.FetchAllCandidates(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected only the docx to be stored, got %+v", got)
	}
	c := got[0]
	if c.ID != "ada" || c.Email != "ada@example.com" || c.Name != "Ada Lovelace" {
		t.Fatalf("unexpected candidate: %+v", c)
	}
	want := map[string]bool{"go": true, "postgresql": true, "kubernetes": true}
	for _, s := range c.Skills {
		delete(want, s)
	}
	if len(want) != 0 {
		t.Fatalf("missing skills %v in %v", want, c.Skills)
	}
}
