package pipeline

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	apperrors "match-workers/internal/common/errors"
	"match-workers/internal/common/logger"
	"match-workers/internal/models"
)

// ScoreResult is the stored record plus the job it was scored against, so
// the caller can go straight to EvaluateAndNotify.
type ScoreResult struct {
	Record  *models.MatchRecord
	Job     *models.JobPosting
	Created bool
}

// ScoreAndRecord loads both entities, scores them and upserts the match
// record. It never dispatches a notification.
func (p *Pipeline) ScoreAndRecord(ctx context.Context, candidateID, jobID string) (*ScoreResult, error) {
	if candidateID == "" || jobID == "" {
		return nil, apperrors.NewInvalidInputError("candidateId and jobId are required").WithPair(candidateID, jobID)
	}

	ctx, span := p.tracer.Start(ctx, "pipeline.ScoreAndRecord", trace.WithAttributes(
		attribute.String("candidate.id", candidateID),
		attribute.String("job.id", jobID),
	))
	defer span.End()

	candidate, err := p.profiles.GetCandidate(ctx, candidateID)
	if err != nil {
		err = storeError("get candidate", err, candidateID, jobID)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	job, err := p.profiles.GetJob(ctx, jobID)
	if err != nil {
		err = storeError("get job", err, candidateID, jobID)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	res, err := p.record(ctx, candidate, job)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("match.score", res.Record.Score), attribute.Bool("match.created", res.Created))
	return res, nil
}

func (p *Pipeline) record(ctx context.Context, candidate *models.CandidateProfile, job *models.JobPosting) (*ScoreResult, error) {
	result, err := p.scorer.Score(candidate, job)
	if err != nil {
		return nil, err
	}

	stored, created, err := p.matches.UpsertMatch(ctx, &models.MatchRecord{
		CandidateID: candidate.ID,
		JobID:       job.ID,
		Score:       result.Score,
		Criteria:    result.Criteria,
	})
	if err != nil {
		return nil, storeError("upsert match", err, candidate.ID, job.ID)
	}

	p.metrics.PairScored(created, stored.Score)
	fields := logger.PairFields(candidate.ID, job.ID)
	fields["score"] = stored.Score
	fields["created"] = created
	p.log.Debug("Match recorded", fields)

	p.index(ctx, stored, job)
	return &ScoreResult{Record: stored, Job: job, Created: created}, nil
}

// Lookup returns the stored record for a pair (nil if never scored) and its state.
func (p *Pipeline) Lookup(ctx context.Context, candidateID, jobID string) (*models.MatchRecord, State, error) {
	job, err := p.profiles.GetJob(ctx, jobID)
	if err != nil {
		return nil, "", storeError("get job", err, candidateID, jobID)
	}
	record, err := p.matches.GetMatch(ctx, candidateID, jobID)
	if err != nil {
		return nil, "", storeError("get match", err, candidateID, jobID)
	}
	return record, StateOf(record, job), nil
}
