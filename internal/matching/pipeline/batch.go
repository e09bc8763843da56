package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	apperrors "match-workers/internal/common/errors"
	"match-workers/internal/common/logger"
	"match-workers/internal/models"
)

// BatchRequest restricts a sweep. Empty slices mean every active candidate
// or every active job.
type BatchRequest struct {
	CandidateIDs []string
	JobIDs       []string
}

// PairError is one failed pair in a batch.
type PairError struct {
	CandidateID string              `json:"candidateId"`
	JobID       string              `json:"jobId"`
	Kind        apperrors.ErrorCode `json:"kind"`
	Message     string              `json:"message"`
}

func (e PairError) Error() string {
	return fmt.Sprintf("pair (%s, %s): %s: %s", e.CandidateID, e.JobID, e.Kind, e.Message)
}

type BatchReport struct {
	Processed              int           `json:"processed"`
	Created                int           `json:"created"`
	Updated                int           `json:"updated"`
	Dispatched             int           `json:"dispatched"`
	SkippedBelowThreshold  int           `json:"skippedBelowThreshold"`
	SkippedAlreadyNotified int           `json:"skippedAlreadyNotified"`
	Errors                 []PairError   `json:"errors"`
	Cancelled              bool          `json:"cancelled"`
	Duration               time.Duration `json:"duration"`
}

func (r *BatchReport) addError(candidateID, jobID string, err error) {
	r.Errors = append(r.Errors, PairError{
		CandidateID: candidateID,
		JobID:       jobID,
		Kind:        apperrors.KindOf(err),
		Message:     err.Error(),
	})
}

type loadedJob struct {
	job *models.JobPosting
	err error
}

// RunBatch scores and evaluates every requested pair. A failing pair is
// recorded in the report and never stops the sweep. Cancellation is checked
// between pairs; on cancel the partial report is returned with ctx.Err().
// A non-nil error without cancellation means the id listing itself failed.
func (p *Pipeline) RunBatch(ctx context.Context, req BatchRequest) (*BatchReport, error) {
	started := p.now()
	report := &BatchReport{Errors: []PairError{}}

	ctx, span := p.tracer.Start(ctx, "pipeline.RunBatch", trace.WithAttributes(
		attribute.Int("batch.candidates.requested", len(req.CandidateIDs)),
		attribute.Int("batch.jobs.requested", len(req.JobIDs)),
	))
	defer span.End()

	p.metrics.BatchStarted()
	defer p.metrics.BatchFinished()

	finish := func(err error) (*BatchReport, error) {
		report.Duration = p.now().Sub(started)
		span.SetAttributes(
			attribute.Int("batch.processed", report.Processed),
			attribute.Int("batch.dispatched", report.Dispatched),
			attribute.Int("batch.errors", len(report.Errors)),
		)
		p.log.Info("Match batch finished", map[string]interface{}{
			"processed":  report.Processed,
			"created":    report.Created,
			"updated":    report.Updated,
			"dispatched": report.Dispatched,
			"errors":     len(report.Errors),
			"cancelled":  report.Cancelled,
			"durationMs": report.Duration.Milliseconds(),
		})
		return report, err
	}

	jobIDs := req.JobIDs
	if len(jobIDs) == 0 {
		ids, err := p.profiles.ListActiveJobIDs(ctx)
		if err != nil {
			return finish(storeError("list active jobs", err, "", ""))
		}
		jobIDs = ids
	}
	if len(jobIDs) == 0 {
		return finish(nil)
	}

	jobs := make(map[string]loadedJob, len(jobIDs))
	pages := p.candidatePages(req.CandidateIDs)

	for {
		candidateIDs, err := pages(ctx)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				report.Cancelled = true
				return finish(ctxErr)
			}
			return finish(storeError("list active candidates", err, "", ""))
		}
		if len(candidateIDs) == 0 {
			return finish(nil)
		}

		// A pair that has started runs to completion; cancellation only
		// stops the sweep before the next pair.
		pairCtx := context.WithoutCancel(ctx)

		for _, candidateID := range candidateIDs {
			var candidate *models.CandidateProfile
			var candidateErr error
			loaded := false

			for _, jobID := range jobIDs {
				if err := ctx.Err(); err != nil {
					report.Cancelled = true
					return finish(err)
				}

				if !loaded {
					candidate, candidateErr = p.profiles.GetCandidate(pairCtx, candidateID)
					loaded = true
				}
				p.processPair(pairCtx, report, jobs, candidateID, jobID, candidate, candidateErr)
			}
		}
	}
}

func (p *Pipeline) processPair(
	ctx context.Context,
	report *BatchReport,
	jobs map[string]loadedJob,
	candidateID, jobID string,
	candidate *models.CandidateProfile,
	candidateErr error,
) {
	report.Processed++

	fail := func(err error) {
		report.addError(candidateID, jobID, err)
		p.metrics.PairError(string(apperrors.KindOf(err)))
		fields := logger.PairFields(candidateID, jobID)
		fields["kind"] = apperrors.KindOf(err)
		p.log.WithError(err).Warn("Pair failed", fields)
	}

	if candidateErr != nil {
		fail(storeError("get candidate", candidateErr, candidateID, jobID))
		return
	}

	lj, ok := jobs[jobID]
	if !ok {
		job, err := p.profiles.GetJob(ctx, jobID)
		lj = loadedJob{job: job, err: err}
		jobs[jobID] = lj
	}
	if lj.err != nil {
		fail(storeError("get job", lj.err, candidateID, jobID))
		return
	}

	res, err := p.record(ctx, candidate, lj.job)
	if err != nil {
		fail(err)
		return
	}
	if res.Created {
		report.Created++
	} else {
		report.Updated++
	}

	outcome, err := p.EvaluateAndNotify(ctx, res.Record, lj.job)
	if err != nil {
		fail(err)
		return
	}
	switch outcome {
	case OutcomeDispatched:
		report.Dispatched++
	case OutcomeSkippedBelowThreshold:
		report.SkippedBelowThreshold++
	case OutcomeSkippedAlreadyNotified:
		report.SkippedAlreadyNotified++
	}
}

// candidatePages yields candidate ids one page at a time. Explicit ids form a
// single page; otherwise the store is paged by id until a short page.
func (p *Pipeline) candidatePages(explicit []string) func(context.Context) ([]string, error) {
	if len(explicit) > 0 {
		done := false
		return func(context.Context) ([]string, error) {
			if done {
				return nil, nil
			}
			done = true
			return explicit, nil
		}
	}

	after := ""
	exhausted := false
	return func(ctx context.Context) ([]string, error) {
		if exhausted {
			return nil, nil
		}
		ids, err := p.profiles.ListActiveCandidateIDs(ctx, after, p.pageSize)
		if err != nil {
			return nil, err
		}
		if len(ids) < p.pageSize {
			exhausted = true
		}
		if len(ids) > 0 {
			after = ids[len(ids)-1]
		}
		return ids, nil
	}
}
