// Package pipeline applies the scorer across candidate/job pairs, persists
// one match record per pair and dispatches at most one notification per pair
// over its lifetime.
//
// All state lives behind the store interfaces. The pipeline holds no locks and
// starts no goroutines; concurrent callers are kept consistent by the
// MatchStore's unique pair key and its compare-and-set on the notified flag.
package pipeline

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	apperrors "match-workers/internal/common/errors"
	"match-workers/internal/common/logger"
	"match-workers/internal/common/metrics"
	"match-workers/internal/matching/scorer"
	"match-workers/internal/models"
)

const DefaultPageSize = 500

// ProfileStore reads candidates and jobs. Missing entities are reported with
// an error that matches apperrors.ErrNotFound.
type ProfileStore interface {
	GetCandidate(ctx context.Context, id string) (*models.CandidateProfile, error)
	GetJob(ctx context.Context, id string) (*models.JobPosting, error)
	// ListActiveCandidateIDs returns up to limit ids greater than after, in ascending order.
	ListActiveCandidateIDs(ctx context.Context, after string, limit int) ([]string, error)
	ListActiveJobIDs(ctx context.Context) ([]string, error)
}

// MatchStore persists match records keyed by (candidate, job).
type MatchStore interface {
	// GetMatch returns nil, nil when the pair has never been scored.
	GetMatch(ctx context.Context, candidateID, jobID string) (*models.MatchRecord, error)
	// UpsertMatch writes score and criteria in one atomic step and never
	// touches the notified flag of an existing record. created is true when
	// the record did not exist before.
	UpsertMatch(ctx context.Context, record *models.MatchRecord) (stored *models.MatchRecord, created bool, err error)
	// CompareAndSetNotified flips is_notified false->true and reports whether
	// this caller made the flip.
	CompareAndSetNotified(ctx context.Context, candidateID, jobID string) (bool, error)
	// ConfirmNotified stamps a successful dispatch on a claimed record.
	ConfirmNotified(ctx context.Context, candidateID, jobID string, at time.Time) error
	// ReleaseNotified undoes a claim whose dispatch failed. A confirmed
	// record is left untouched.
	ReleaseNotified(ctx context.Context, candidateID, jobID string) error
}

type Notifier interface {
	NotifyMatch(ctx context.Context, candidateID, jobID string, score int) error
}

// MatchIndexer receives every stored record. Failures are logged only.
type MatchIndexer interface {
	IndexMatch(ctx context.Context, record *models.MatchRecord, job *models.JobPosting) error
}

type Pipeline struct {
	profiles ProfileStore
	matches  MatchStore
	notifier Notifier
	indexer  MatchIndexer
	scorer   *scorer.Scorer
	pageSize int
	metrics  metrics.Recorder
	tracer   trace.Tracer
	now      func() time.Time
	log      logger.Logger
}

type Option func(*Pipeline)

func WithScorer(s *scorer.Scorer) Option {
	return func(p *Pipeline) { p.scorer = s }
}

func WithIndexer(idx MatchIndexer) Option {
	return func(p *Pipeline) { p.indexer = idx }
}

func WithPageSize(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.pageSize = n
		}
	}
}

func WithRecorder(r metrics.Recorder) Option {
	return func(p *Pipeline) { p.metrics = r }
}

func WithTracer(t trace.Tracer) Option {
	return func(p *Pipeline) { p.tracer = t }
}

func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

func New(profiles ProfileStore, matches MatchStore, notifier Notifier, log logger.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		profiles: profiles,
		matches:  matches,
		notifier: notifier,
		scorer:   scorer.New(scorer.Options{}),
		pageSize: DefaultPageSize,
		metrics:  metrics.NopRecorder{},
		tracer:   noop.NewTracerProvider().Tracer("pipeline"),
		now:      time.Now,
		log:      log,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.log == nil {
		p.log = logger.NewNoOpLogger()
	}
	return p
}

// storeError keeps typed errors from the store and classifies anything else
// as a transient store failure.
func storeError(op string, err error, candidateID, jobID string) error {
	var stdErr *apperrors.StandardError
	if errors.As(err, &stdErr) {
		return stdErr.WithPair(candidateID, jobID)
	}
	return apperrors.NewTransientStoreError(op, err).WithPair(candidateID, jobID)
}

func notifyError(err error, candidateID, jobID string) error {
	var stdErr *apperrors.StandardError
	if errors.As(err, &stdErr) {
		return stdErr.WithPair(candidateID, jobID)
	}
	return apperrors.NewTransientNotifyError("notifier", err).WithPair(candidateID, jobID)
}

func (p *Pipeline) index(ctx context.Context, record *models.MatchRecord, job *models.JobPosting) {
	if p.indexer == nil {
		return
	}
	if err := p.indexer.IndexMatch(ctx, record, job); err != nil {
		p.log.WithError(err).Warn("Failed to index match record", logger.PairFields(record.CandidateID, record.JobID))
	}
}
