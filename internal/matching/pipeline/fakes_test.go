package pipeline

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	apperrors "match-workers/internal/common/errors"
	"match-workers/internal/models"
)

type memStore struct {
	mu         sync.Mutex
	candidates map[string]*models.CandidateProfile
	jobs       map[string]*models.JobPosting
	matches    map[models.PairID]*models.MatchRecord
	claimedAt  map[models.PairID]time.Time
	claimLease time.Duration

	listPages  int
	// honourCtx makes writes fail on a cancelled context like a SQL driver.
	honourCtx  bool
	upsertErr  error
	casErr     error
	confirmErr error
}

func newMemStore() *memStore {
	return &memStore{
		candidates: map[string]*models.CandidateProfile{},
		jobs:       map[string]*models.JobPosting{},
		matches:    map[models.PairID]*models.MatchRecord{},
		claimedAt:  map[models.PairID]time.Time{},
	}
}

func (s *memStore) putCandidate(c *models.CandidateProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.Active = true
	s.candidates[c.ID] = c
}

func (s *memStore) putJob(j *models.JobPosting) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j.Active = true
	s.jobs[j.ID] = j
}

func (s *memStore) record(candidateID, jobID string) *models.MatchRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.matches[models.PairID{CandidateID: candidateID, JobID: jobID}]
	if !ok {
		return nil
	}
	cp := *r
	return &cp
}

func (s *memStore) GetCandidate(_ context.Context, id string) (*models.CandidateProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.candidates[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("candidate", id)
	}
	cp := *c
	return &cp, nil
}

func (s *memStore) GetJob(_ context.Context, id string) (*models.JobPosting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("job", id)
	}
	cp := *j
	return &cp, nil
}

func (s *memStore) ListActiveCandidateIDs(_ context.Context, after string, limit int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listPages++
	var ids []string
	for id, c := range s.candidates {
		if c.Active && id > after {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (s *memStore) ListActiveJobIDs(context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id, j := range s.jobs {
		if j.Active {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *memStore) GetMatch(_ context.Context, candidateID, jobID string) (*models.MatchRecord, error) {
	return s.record(candidateID, jobID), nil
}

func (s *memStore) ctxErr(ctx context.Context) error {
	if s.honourCtx {
		return ctx.Err()
	}
	return nil
}

func (s *memStore) UpsertMatch(ctx context.Context, rec *models.MatchRecord) (*models.MatchRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ctxErr(ctx); err != nil {
		return nil, false, err
	}
	if s.upsertErr != nil {
		return nil, false, s.upsertErr
	}
	key := rec.Pair()
	now := time.Now().UTC()
	existing, ok := s.matches[key]
	if !ok {
		stored := *rec
		stored.IsNotified = false
		stored.CreatedAt, stored.UpdatedAt = now, now
		s.matches[key] = &stored
		cp := stored
		return &cp, true, nil
	}
	existing.Score = rec.Score
	existing.Criteria = rec.Criteria
	existing.UpdatedAt = now
	cp := *existing
	return &cp, false, nil
}

func (s *memStore) CompareAndSetNotified(_ context.Context, candidateID, jobID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.casErr != nil {
		return false, s.casErr
	}
	key := models.PairID{CandidateID: candidateID, JobID: jobID}
	r, ok := s.matches[key]
	if !ok {
		return false, nil
	}
	if r.IsNotified {
		expired := s.claimLease > 0 && r.NotifiedAt == nil && time.Since(s.claimedAt[key]) > s.claimLease
		if !expired {
			return false, nil
		}
	}
	r.IsNotified = true
	s.claimedAt[key] = time.Now()
	return true, nil
}

// ageClaim backdates a claim as if its holder stalled for d.
func (s *memStore) ageClaim(candidateID, jobID string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := models.PairID{CandidateID: candidateID, JobID: jobID}
	s.claimedAt[key] = s.claimedAt[key].Add(-d)
}

func (s *memStore) ConfirmNotified(ctx context.Context, candidateID, jobID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ctxErr(ctx); err != nil {
		return err
	}
	if s.confirmErr != nil {
		return s.confirmErr
	}
	if r, ok := s.matches[models.PairID{CandidateID: candidateID, JobID: jobID}]; ok && r.IsNotified {
		r.NotifiedAt = &at
	}
	return nil
}

func (s *memStore) ReleaseNotified(_ context.Context, candidateID, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := models.PairID{CandidateID: candidateID, JobID: jobID}
	if r, ok := s.matches[key]; ok && r.IsNotified && r.NotifiedAt == nil {
		r.IsNotified = false
		delete(s.claimedAt, key)
	}
	return nil
}

type fakeNotifier struct {
	calls  atomic.Int32
	delay  time.Duration
	failFn func(candidateID, jobID string) error
}

func (n *fakeNotifier) NotifyMatch(_ context.Context, candidateID, jobID string, _ int) error {
	if n.delay > 0 {
		time.Sleep(n.delay)
	}
	if n.failFn != nil {
		if err := n.failFn(candidateID, jobID); err != nil {
			return err
		}
	}
	n.calls.Add(1)
	return nil
}

type fakeIndexer struct {
	mu      sync.Mutex
	indexed []models.MatchRecord
	err     error
}

func (f *fakeIndexer) IndexMatch(_ context.Context, rec *models.MatchRecord, _ *models.JobPosting) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.indexed = append(f.indexed, *rec)
	return f.err
}
