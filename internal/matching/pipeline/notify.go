package pipeline

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	apperrors "match-workers/internal/common/errors"
	"match-workers/internal/common/logger"
	"match-workers/internal/models"
)

type Outcome string

const (
	OutcomeDispatched             Outcome = "dispatched"
	OutcomeSkippedBelowThreshold  Outcome = "skippedBelowThreshold"
	OutcomeSkippedAlreadyNotified Outcome = "skippedAlreadyNotified"
)

// EvaluateAndNotify dispatches a notification when the record's score reaches
// the job's threshold and the pair has not been notified before.
//
// The notified flag is claimed in the store before the Notifier is called,
// so of any number of concurrent callers exactly one dispatches. A failed
// dispatch releases the claim and returns a TRANSIENT_NOTIFY error; calling
// again is safe.
func (p *Pipeline) EvaluateAndNotify(ctx context.Context, record *models.MatchRecord, job *models.JobPosting) (Outcome, error) {
	if record == nil || job == nil {
		return "", apperrors.NewInvalidInputError("record and job are required")
	}

	fields := logger.PairFields(record.CandidateID, record.JobID)
	fields["score"] = record.Score
	fields["threshold"] = job.MatchThreshold

	if record.Score < job.MatchThreshold {
		p.metrics.Outcome(string(OutcomeSkippedBelowThreshold))
		return OutcomeSkippedBelowThreshold, nil
	}
	// A flagged record without NotifiedAt is an unconfirmed claim; the store
	// decides whether its lease has run out.
	if record.IsNotified && record.NotifiedAt != nil {
		p.metrics.Outcome(string(OutcomeSkippedAlreadyNotified))
		return OutcomeSkippedAlreadyNotified, nil
	}

	ctx, span := p.tracer.Start(ctx, "pipeline.Notify", trace.WithAttributes(
		attribute.String("candidate.id", record.CandidateID),
		attribute.String("job.id", record.JobID),
		attribute.Int("match.score", record.Score),
	))
	defer span.End()

	won, err := p.matches.CompareAndSetNotified(ctx, record.CandidateID, record.JobID)
	if err != nil {
		return "", storeError("claim notified", err, record.CandidateID, record.JobID)
	}
	if !won {
		record.IsNotified = true
		p.log.Debug("Notification already claimed by another caller", fields)
		p.metrics.Outcome(string(OutcomeSkippedAlreadyNotified))
		return OutcomeSkippedAlreadyNotified, nil
	}

	if err := p.notifier.NotifyMatch(ctx, record.CandidateID, record.JobID, record.Score); err != nil {
		// The claim must be released even when ctx is already cancelled.
		if relErr := p.matches.ReleaseNotified(context.WithoutCancel(ctx), record.CandidateID, record.JobID); relErr != nil {
			p.log.WithError(relErr).Error("Failed to release notification claim", fields)
		}
		p.log.WithError(err).Warn("Notification dispatch failed", fields)
		return "", notifyError(err, record.CandidateID, record.JobID)
	}

	now := p.now().UTC()
	if err := p.matches.ConfirmNotified(ctx, record.CandidateID, record.JobID, now); err != nil {
		// Delivered but unconfirmed: the claim blocks other dispatches until its lease runs out.
		p.log.WithError(err).Warn("Failed to stamp notification time", fields)
	} else {
		record.NotifiedAt = &now
	}
	record.IsNotified = true

	p.log.Info("Match notification dispatched", fields)
	p.metrics.Outcome(string(OutcomeDispatched))
	p.index(ctx, record, job)
	return OutcomeDispatched, nil
}
