package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/lib/pq"

	apperrors "match-workers/internal/common/errors"
	"match-workers/internal/models"
)

const (
	selectCandidate = `
		SELECT id, name, titles, years_experience, experience_by_title, locations,
		       salary_min, salary_max, skills, qualifications, active
		FROM candidates WHERE id = $1`

	selectJob = `
		SELECT id, owner_id, title, min_years_experience, location, salary_min, salary_max,
		       required_skills, required_qualifications, COALESCE(match_threshold, $2), active
		FROM jobs WHERE id = $1`

	selectActiveCandidateIDs = `
		SELECT id FROM candidates
		WHERE active AND id > $1
		ORDER BY id
		LIMIT $2`

	selectActiveJobIDs = `SELECT id FROM jobs WHERE active ORDER BY id`

	upsertCandidate = `
		INSERT INTO candidates (
			id, name, titles, years_experience, experience_by_title, locations,
			salary_min, salary_max, skills, qualifications, active
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			titles = EXCLUDED.titles,
			years_experience = EXCLUDED.years_experience,
			experience_by_title = EXCLUDED.experience_by_title,
			locations = EXCLUDED.locations,
			salary_min = EXCLUDED.salary_min,
			salary_max = EXCLUDED.salary_max,
			skills = EXCLUDED.skills,
			qualifications = EXCLUDED.qualifications,
			active = EXCLUDED.active,
			updated_at = NOW()`

	upsertJob = `
		INSERT INTO jobs (
			id, owner_id, title, min_years_experience, location, salary_min, salary_max,
			required_skills, required_qualifications, match_threshold, active
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			owner_id = EXCLUDED.owner_id,
			title = EXCLUDED.title,
			min_years_experience = EXCLUDED.min_years_experience,
			location = EXCLUDED.location,
			salary_min = EXCLUDED.salary_min,
			salary_max = EXCLUDED.salary_max,
			required_skills = EXCLUDED.required_skills,
			required_qualifications = EXCLUDED.required_qualifications,
			match_threshold = EXCLUDED.match_threshold,
			active = EXCLUDED.active,
			updated_at = NOW()`

	upsertContact = `
		INSERT INTO contacts (user_id, name, email, phone)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''))
		ON CONFLICT (user_id) DO UPDATE SET
			name = EXCLUDED.name,
			email = EXCLUDED.email,
			phone = EXCLUDED.phone`
)

func (s *Store) GetCandidate(ctx context.Context, id string) (*models.CandidateProfile, error) {
	var c models.CandidateProfile
	var byTitle []byte
	err := s.db.QueryRowContext(ctx, selectCandidate, id).Scan(
		&c.ID, &c.Name, pq.Array(&c.Titles), &c.YearsExperience, &byTitle, pq.Array(&c.Locations),
		&c.Salary.Min, &c.Salary.Max, pq.Array(&c.Skills), pq.Array(&c.Qualifications), &c.Active,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("candidate", id)
		}
		return nil, apperrors.NewTransientStoreError("get candidate", err)
	}

	if len(byTitle) > 0 {
		if err := json.Unmarshal(byTitle, &c.ExperienceByTitle); err != nil {
			return nil, apperrors.NewInvalidInputError("candidate " + id + ": malformed experience_by_title")
		}
	}
	return &c, nil
}

func (s *Store) GetJob(ctx context.Context, id string) (*models.JobPosting, error) {
	var j models.JobPosting
	err := s.db.QueryRowContext(ctx, selectJob, id, s.defaultThreshold).Scan(
		&j.ID, &j.OwnerID, &j.Title, &j.MinYearsExperience, &j.Location, &j.Salary.Min, &j.Salary.Max,
		pq.Array(&j.RequiredSkills), pq.Array(&j.RequiredQualifications), &j.MatchThreshold, &j.Active,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("job", id)
		}
		return nil, apperrors.NewTransientStoreError("get job", err)
	}
	return &j, nil
}

func (s *Store) ListActiveCandidateIDs(ctx context.Context, after string, limit int) ([]string, error) {
	return s.listIDs(ctx, "list candidates", selectActiveCandidateIDs, after, limit)
}

func (s *Store) ListActiveJobIDs(ctx context.Context) ([]string, error) {
	return s.listIDs(ctx, "list jobs", selectActiveJobIDs)
}

func (s *Store) listIDs(ctx context.Context, op, query string, args ...interface{}) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewTransientStoreError(op, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, apperrors.NewTransientStoreError(op, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewTransientStoreError(op, err)
	}
	return ids, nil
}

// SaveCandidate inserts or replaces a candidate profile.
func (s *Store) SaveCandidate(ctx context.Context, c *models.CandidateProfile) error {
	byTitle := []byte("{}")
	if len(c.ExperienceByTitle) > 0 {
		var err error
		if byTitle, err = json.Marshal(c.ExperienceByTitle); err != nil {
			return err
		}
	}

	_, err := s.db.ExecContext(ctx, upsertCandidate,
		c.ID, c.Name, pq.Array(nonNil(c.Titles)), c.YearsExperience, byTitle, pq.Array(nonNil(c.Locations)),
		c.Salary.Min, c.Salary.Max, pq.Array(nonNil(c.Skills)), pq.Array(nonNil(c.Qualifications)), c.Active,
	)
	if err != nil {
		return apperrors.NewTransientStoreError("save candidate", err)
	}
	return nil
}

// SaveJob inserts or replaces a job posting.
func (s *Store) SaveJob(ctx context.Context, j *models.JobPosting) error {
	_, err := s.db.ExecContext(ctx, upsertJob,
		j.ID, j.OwnerID, j.Title, j.MinYearsExperience, j.Location, j.Salary.Min, j.Salary.Max,
		pq.Array(nonNil(j.RequiredSkills)), pq.Array(nonNil(j.RequiredQualifications)), j.MatchThreshold, j.Active,
	)
	if err != nil {
		return apperrors.NewTransientStoreError("save job", err)
	}
	return nil
}

// SaveContact inserts or replaces where a user's match alerts are delivered.
func (s *Store) SaveContact(ctx context.Context, c *models.Contact) error {
	if _, err := s.db.ExecContext(ctx, upsertContact, c.UserID, c.Name, c.Email, c.Phone); err != nil {
		return apperrors.NewTransientStoreError("save contact", err)
	}
	return nil
}

// nonNil keeps NOT NULL array columns from receiving SQL NULL.
func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
