package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/spigell/cv-matcher/internal/talent"
)

// Memory is a Store kept in process memory.
type Memory struct {
	mu         sync.RWMutex
	candidates map[string]talent.CandidateRecord
	jobs       map[string]talent.JobQuery
	batches    map[string][]talent.Batch
}

func NewMemory() *Memory {
	return &Memory{
		candidates: make(map[string]talent.CandidateRecord),
		jobs:       make(map[string]talent.JobQuery),
		batches:    make(map[string][]talent.Batch),
	}
}

func (m *Memory) StoreCandidate(_ context.Context, rec talent.CandidateRecord) (string, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.candidates[rec.ID] = cloneCandidate(rec)
	return rec.ID, nil
}

// FetchAllCandidates returns candidates ordered by ID.
func (m *Memory) FetchAllCandidates(context.Context) ([]talent.CandidateRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]talent.CandidateRecord, 0, len(m.candidates))
	for _, c := range m.candidates {
		out = append(out, cloneCandidate(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) StoreJob(_ context.Context, job talent.JobQuery) (string, error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = cloneJob(job)
	return job.ID, nil
}

func (m *Memory) FetchJob(_ context.Context, id string) (*talent.JobQuery, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	job, ok := m.jobs[id]
	if !ok {
		return nil, fmt.Errorf("job %s: %w", id, talent.ErrNotFound)
	}
	out := cloneJob(job)
	return &out, nil
}

func (m *Memory) StoreMatchBatch(_ context.Context, batch *talent.Batch) (string, error) {
	stored := cloneBatch(batch)
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches[stored.JobID] = append(m.batches[stored.JobID], stored)
	return stored.ID, nil
}

// ListBatches returns the batches of a job, newest first.
func (m *Memory) ListBatches(_ context.Context, jobID string) ([]talent.Batch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stored := m.batches[jobID]
	out := make([]talent.Batch, 0, len(stored))
	for i := len(stored) - 1; i >= 0; i-- {
		out = append(out, cloneBatch(&stored[i]))
	}
	return out, nil
}

func (m *Memory) UpdateParameters(_ context.Context, jobID string, params talent.MatchParameters) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[jobID]
	if !ok {
		return false, fmt.Errorf("job %s: %w", jobID, talent.ErrNotFound)
	}

	next, modified := nextParameters(job.Parameters, params)
	if !modified {
		return false, nil
	}

	job.Parameters = next
	m.jobs[jobID] = job
	return true, nil
}

func (m *Memory) Close() error { return nil }
