// internal/workers/matching/run-match-batch/handler.go
package runmatchbatch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	apperrors "match-workers/internal/common/errors"
	"match-workers/internal/common/logger"
	"match-workers/internal/common/observability"
	"match-workers/internal/common/validation"
	"match-workers/internal/matching/pipeline"
)

const (
	TaskType = "run-match-batch"

	// completeTimeout bounds the completion call, which runs after the sweep's own deadline.
	completeTimeout = 10 * time.Second
)

var schema = validation.MustCompile(TaskType, inputSchema)

type BatchRunner interface {
	RunBatch(ctx context.Context, req pipeline.BatchRequest) (*pipeline.BatchReport, error)
}

type Handler struct {
	config     *Config
	runner     BatchRunner
	obs        *observability.Observability
	errHandler *apperrors.ErrorHandler
	logger     logger.Logger
}

func NewHandler(config *Config, runner BatchRunner, obs *observability.Observability, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:     config,
		runner:     runner,
		obs:        obs,
		errHandler: apperrors.NewErrorHandler(log),
		logger:     log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) error {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	if res := schema.ValidateJSON(job.Variables); !res.Valid {
		err := apperrors.NewInvalidJobVariablesError(res.String())
		h.errHandler.HandleJobError(ctx, client, job, err)
		return err
	}

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		stdErr := apperrors.NewInvalidJobVariablesError(fmt.Sprintf("parse input: %v", err))
		h.errHandler.HandleJobError(ctx, client, job, stdErr)
		return stdErr
	}

	output, err := h.Execute(ctx, &input)
	if err != nil {
		// ctx may have expired during the sweep.
		h.errHandler.HandleJobError(context.Background(), client, job, err)
		return err
	}

	completeCtx, cancelComplete := context.WithTimeout(context.Background(), completeTimeout)
	defer cancelComplete()
	return h.completeJob(completeCtx, client, job, output)
}

// Execute runs one sweep. Pair failures are part of the output; only a
// failed id listing or cancellation fails the job.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	report, err := h.runner.RunBatch(ctx, pipeline.BatchRequest{
		CandidateIDs: input.CandidateIDs,
		JobIDs:       input.JobIDs,
	})
	if report != nil {
		h.obs.RecordBatchPairs(ctx, report.Processed, "workflow")
	}
	if err != nil {
		if report != nil && report.Cancelled {
			h.logger.Warn("match batch cancelled", map[string]interface{}{
				"processed": report.Processed,
			})
			return nil, apperrors.NewBatchCancelledError(err)
		}
		return nil, err
	}

	return h.toOutput(report), nil
}

func (h *Handler) toOutput(report *pipeline.BatchReport) *Output {
	out := &Output{
		Processed:              report.Processed,
		Created:                report.Created,
		Updated:                report.Updated,
		Dispatched:             report.Dispatched,
		SkippedBelowThreshold:  report.SkippedBelowThreshold,
		SkippedAlreadyNotified: report.SkippedAlreadyNotified,
		ErrorCount:             len(report.Errors),
		Errors:                 report.Errors,
		DurationMs:             report.Duration.Milliseconds(),
	}
	if limit := h.config.MaxReportedErrors; limit > 0 && len(out.Errors) > limit {
		out.Errors = out.Errors[:limit]
		out.ErrorsTruncated = true
	}
	if out.Errors == nil {
		out.Errors = []pipeline.PairError{}
	}
	return out
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) error {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err.Error(),
		})
		return apperrors.NewInternalError("complete job", err)
	}

	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to complete job", map[string]interface{}{
			"error": err.Error(),
		})
		return apperrors.NewEngineUnavailableError("complete job", err)
	}
	return nil
}
