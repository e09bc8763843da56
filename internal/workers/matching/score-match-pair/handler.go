// internal/workers/matching/score-match-pair/handler.go
package scorematchpair

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	apperrors "match-workers/internal/common/errors"
	"match-workers/internal/common/logger"
	"match-workers/internal/common/validation"
	"match-workers/internal/matching/pipeline"
	"match-workers/internal/matching/scorer"
	"match-workers/internal/models"
)

const (
	TaskType = "score-match-pair"
)

var schema = validation.MustCompile(TaskType, inputSchema)

// Matcher is the part of the pipeline this worker drives.
type Matcher interface {
	ScoreAndRecord(ctx context.Context, candidateID, jobID string) (*pipeline.ScoreResult, error)
	EvaluateAndNotify(ctx context.Context, record *models.MatchRecord, job *models.JobPosting) (pipeline.Outcome, error)
}

type Handler struct {
	config     *Config
	matcher    Matcher
	errHandler *apperrors.ErrorHandler
	logger     logger.Logger
}

func NewHandler(config *Config, matcher Matcher, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:     config,
		matcher:    matcher,
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
		h.errHandler.HandleJobError(ctx, client, job, err)
		return err
	}

	return h.completeJob(ctx, client, job, output)
}

// Execute scores one pair, persists it and evaluates the notification. A
// notify failure is returned as-is; the job retry re-scores the pair and the
// notified flag keeps the alert at most once.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	res, err := h.matcher.ScoreAndRecord(ctx, input.CandidateID, input.JobID)
	if err != nil {
		return nil, err
	}

	outcome, err := h.matcher.EvaluateAndNotify(ctx, res.Record, res.Job)
	if err != nil {
		return nil, err
	}

	h.logger.Info("match pair processed", map[string]interface{}{
		"candidateId": input.CandidateID,
		"jobId":       input.JobID,
		"score":       res.Record.Score,
		"outcome":     string(outcome),
	})

	return &Output{
		MatchScore:  res.Record.Score,
		Criteria:    res.Record.Criteria,
		Explanation: scorer.Explain(scorer.Result{Score: res.Record.Score, Criteria: res.Record.Criteria}),
		Created:     res.Created,
		Outcome:     string(outcome),
		State:       string(pipeline.StateOf(res.Record, res.Job)),
		IsNotified:  res.Record.IsNotified,
	}, nil
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
