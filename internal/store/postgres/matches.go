package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	apperrors "match-workers/internal/common/errors"
	"match-workers/internal/common/logger"
	"match-workers/internal/models"
)

const (
	selectMatch = `
		SELECT score, criteria, is_notified, notified_at, created_at, updated_at
		FROM matches WHERE candidate_id = $1 AND job_id = $2`

	// xmax is zero only on a row this statement inserted.
	upsertMatch = `
		INSERT INTO matches (candidate_id, job_id, score, criteria)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (candidate_id, job_id) DO UPDATE SET
			score = EXCLUDED.score,
			criteria = EXCLUDED.criteria,
			updated_at = NOW()
		RETURNING score, criteria, is_notified, notified_at, created_at, updated_at, (xmax = 0) AS inserted`

	// A claim left unconfirmed longer than the lease ($3 seconds, 0 = never)
	// belongs to a worker that died mid-dispatch and may be taken over.
	claimNotified = `
		UPDATE matches SET is_notified = TRUE, claimed_at = NOW(), updated_at = NOW()
		WHERE candidate_id = $1 AND job_id = $2
		  AND (is_notified = FALSE
		       OR ($3 > 0 AND notified_at IS NULL AND claimed_at < NOW() - make_interval(secs => $3)))`

	confirmNotified = `
		UPDATE matches SET notified_at = $3
		WHERE candidate_id = $1 AND job_id = $2 AND is_notified`

	releaseNotified = `
		UPDATE matches SET is_notified = FALSE, claimed_at = NULL, updated_at = NOW()
		WHERE candidate_id = $1 AND job_id = $2 AND is_notified AND notified_at IS NULL`
)

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMatch(row rowScanner, candidateID, jobID string, extra ...interface{}) (*models.MatchRecord, error) {
	rec := &models.MatchRecord{CandidateID: candidateID, JobID: jobID}
	var criteria []byte
	var notifiedAt sql.NullTime

	dest := append([]interface{}{&rec.Score, &criteria, &rec.IsNotified, &notifiedAt, &rec.CreatedAt, &rec.UpdatedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	if notifiedAt.Valid {
		t := notifiedAt.Time
		rec.NotifiedAt = &t
	}
	if len(criteria) > 0 {
		if err := json.Unmarshal(criteria, &rec.Criteria); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

func (s *Store) GetMatch(ctx context.Context, candidateID, jobID string) (*models.MatchRecord, error) {
	rec, err := scanMatch(s.db.QueryRowContext(ctx, selectMatch, candidateID, jobID), candidateID, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, apperrors.NewTransientStoreError("get match", err).WithPair(candidateID, jobID)
	}
	return rec, nil
}

func (s *Store) UpsertMatch(ctx context.Context, record *models.MatchRecord) (*models.MatchRecord, bool, error) {
	criteria, err := json.Marshal(record.Criteria)
	if err != nil {
		return nil, false, apperrors.NewInvalidInputError("unencodable criteria").WithPair(record.CandidateID, record.JobID)
	}
	if record.Criteria == nil {
		criteria = []byte("[]")
	}

	var inserted bool
	row := s.db.QueryRowContext(ctx, upsertMatch, record.CandidateID, record.JobID, record.Score, criteria)
	stored, err := scanMatch(row, record.CandidateID, record.JobID, &inserted)
	if err != nil {
		return nil, false, apperrors.NewTransientStoreError("upsert match", err).WithPair(record.CandidateID, record.JobID)
	}
	return stored, inserted, nil
}

func (s *Store) CompareAndSetNotified(ctx context.Context, candidateID, jobID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, claimNotified, candidateID, jobID, s.claimLease.Seconds())
	if err != nil {
		return false, apperrors.NewTransientStoreError("claim notified", err).WithPair(candidateID, jobID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, apperrors.NewTransientStoreError("claim notified", err).WithPair(candidateID, jobID)
	}
	return n == 1, nil
}

func (s *Store) ConfirmNotified(ctx context.Context, candidateID, jobID string, at time.Time) error {
	if _, err := s.db.ExecContext(ctx, confirmNotified, candidateID, jobID, at); err != nil {
		return apperrors.NewTransientStoreError("confirm notified", err).WithPair(candidateID, jobID)
	}
	return nil
}

func (s *Store) ReleaseNotified(ctx context.Context, candidateID, jobID string) error {
	res, err := s.db.ExecContext(ctx, releaseNotified, candidateID, jobID)
	if err != nil {
		return apperrors.NewTransientStoreError("release notified", err).WithPair(candidateID, jobID)
	}
	if n, _ := res.RowsAffected(); n == 0 && s.logger != nil {
		s.logger.Warn("No unconfirmed claim to release", logger.PairFields(candidateID, jobID))
	}
	return nil
}
