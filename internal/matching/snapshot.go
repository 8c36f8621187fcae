package matching

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/spigell/cv-matcher/internal/index"
	"github.com/spigell/cv-matcher/internal/talent"
)

// snapshot is a built index over one candidate pool. It is never modified;
// a changed pool produces a new snapshot that replaces the old one.
type snapshot struct {
	fingerprint string
	index       index.Index
	excluded    []talent.Exclusion

	mu      sync.Mutex
	refs    int
	retired bool
}

func (s *snapshot) acquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.retired {
		return false
	}
	s.refs++
	return true
}

// done reports whether the caller dropped the last reference of a retired snapshot.
func (s *snapshot) done() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refs--
	return s.retired && s.refs == 0
}

func (s *snapshot) retire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retired = true
	return s.refs == 0
}

// snapshots tracks the current snapshot. build serializes rebuilds so that
// concurrent runs over the same new pool build it once.
type snapshots struct {
	current atomic.Pointer[snapshot]
	build   sync.Mutex
	builds  atomic.Int64
}

func (s *snapshots) lookup(fingerprint string) *snapshot {
	for {
		cur := s.current.Load()
		if cur == nil || cur.fingerprint != fingerprint {
			return nil
		}
		if cur.acquire() {
			return cur
		}
	}
}

// swap installs next and closes the previous snapshot once no run uses it.
func (s *snapshots) swap(next *snapshot, log *zap.Logger) {
	old := s.current.Swap(next)
	if old != nil && old.retire() {
		closeSnapshot(old, log)
	}
}

func (s *snapshots) release(snap *snapshot, log *zap.Logger) {
	if snap.done() {
		closeSnapshot(snap, log)
	}
}

func (s *snapshots) reset() error {
	old := s.current.Swap(nil)
	if old == nil || !old.retire() {
		return nil
	}
	return old.index.Close()
}

func closeSnapshot(snap *snapshot, log *zap.Logger) {
	if err := snap.index.Close(); err != nil {
		log.Warn("closing retired index", zap.Error(err))
	}
}

// snapshotFor returns an acquired snapshot over pool, reusing the current one
// when the pool is unchanged. The caller releases it.
func (e *Engine) snapshotFor(ctx context.Context, log *zap.Logger, jobVec talent.EmbeddingVector, pool []talent.CandidateRecord) (*snapshot, error) {
	fp := fingerprint(e.vectorizer.Version(), pool)

	if snap := e.snapshots.lookup(fp); snap != nil {
		log.Debug("reusing index snapshot", zap.Int("size", snap.index.Len()))
		return snap, nil
	}

	e.snapshots.build.Lock()
	defer e.snapshots.build.Unlock()

	if snap := e.snapshots.lookup(fp); snap != nil {
		return snap, nil
	}

	entries, excluded, err := e.embedPool(ctx, log, jobVec, pool)
	if err != nil {
		return nil, err
	}

	idx, err := e.builder.Build(ctx, entries)
	if err != nil {
		return nil, fmt.Errorf("building %s index: %w", e.builder.Name(), err)
	}
	if err := ctx.Err(); err != nil {
		_ = idx.Close()
		return nil, err
	}

	snap := &snapshot{fingerprint: fp, index: idx, excluded: excluded, refs: 1}
	e.snapshots.swap(snap, log)
	e.snapshots.builds.Add(1)

	log.Info("index snapshot built",
		zap.String("backend", e.builder.Name()),
		zap.Int("size", idx.Len()),
		zap.Int("excluded", len(excluded)),
	)

	return snap, nil
}

// fingerprint identifies a candidate pool for one vectorizer version.
func fingerprint(version string, pool []talent.CandidateRecord) string {
	order := make([]int, len(pool))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return pool[order[a]].ID < pool[order[b]].ID })

	h := sha256.New()
	h.Write([]byte(version))
	for _, i := range order {
		h.Write([]byte{0})
		h.Write([]byte(pool[i].ID))
		h.Write([]byte{0})
		h.Write([]byte(pool[i].ProfileText))
	}
	return hex.EncodeToString(h.Sum(nil))
}
