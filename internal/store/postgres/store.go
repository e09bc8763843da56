// Package postgres implements the profile and match stores on PostgreSQL.
//
// The matches table's primary key on (candidate_id, job_id) is the only guard
// against duplicate records, and the conditional UPDATE on is_notified is the
// compare-and-set that keeps notification at most once per pair.
package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	"match-workers/internal/common/logger"
	"match-workers/internal/models"
)

//go:embed schema.sql
var schemaSQL string

// DefaultClaimLease is how long an unconfirmed notification claim is honoured.
const DefaultClaimLease = 15 * time.Minute

// Store implements pipeline.ProfileStore and pipeline.MatchStore.
type Store struct {
	db               *sql.DB
	defaultThreshold int
	claimLease       time.Duration
	logger           logger.Logger
}

type Option func(*Store)

// WithDefaultThreshold is used for jobs stored without a match_threshold.
func WithDefaultThreshold(t int) Option {
	return func(s *Store) { s.defaultThreshold = t }
}

// WithClaimLease sets when an unconfirmed claim may be taken over. Zero or
// less keeps claims forever.
func WithClaimLease(d time.Duration) Option {
	return func(s *Store) {
		if d < 0 {
			d = 0
		}
		s.claimLease = d
	}
}

func New(db *sql.DB, log logger.Logger, opts ...Option) *Store {
	s := &Store{
		db:               db,
		defaultThreshold: models.DefaultMatchThreshold,
		claimLease:       DefaultClaimLease,
		logger:           log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Migrate applies the embedded schema. Every statement is idempotent.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
