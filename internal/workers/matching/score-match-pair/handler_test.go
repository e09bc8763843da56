// internal/workers/matching/score-match-pair/handler_test.go
package scorematchpair

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"match-workers/internal/common/config"
	apperrors "match-workers/internal/common/errors"
	"match-workers/internal/common/logger"
	"match-workers/internal/matching/pipeline"
	"match-workers/internal/models"
)

// ==========================
// Mock Implementations
// ==========================

type MockMatcher struct {
	ScoreAndRecordFunc    func(ctx context.Context, candidateID, jobID string) (*pipeline.ScoreResult, error)
	EvaluateAndNotifyFunc func(ctx context.Context, record *models.MatchRecord, job *models.JobPosting) (pipeline.Outcome, error)
	evaluated             int
}

func (m *MockMatcher) ScoreAndRecord(ctx context.Context, candidateID, jobID string) (*pipeline.ScoreResult, error) {
	return m.ScoreAndRecordFunc(ctx, candidateID, jobID)
}

func (m *MockMatcher) EvaluateAndNotify(ctx context.Context, record *models.MatchRecord, job *models.JobPosting) (pipeline.Outcome, error) {
	m.evaluated++
	return m.EvaluateAndNotifyFunc(ctx, record, job)
}

// ==========================
// Test Helper Functions
// ==========================

func createTestHandler(t *testing.T, matcher Matcher) *Handler {
	return NewHandler(&Config{Timeout: 5 * time.Second}, matcher, logger.NewTestLogger(t))
}

func scored(score int, created bool) func(context.Context, string, string) (*pipeline.ScoreResult, error) {
	return func(_ context.Context, candidateID, jobID string) (*pipeline.ScoreResult, error) {
		return &pipeline.ScoreResult{
			Record: &models.MatchRecord{
				CandidateID: candidateID,
				JobID:       jobID,
				Score:       score,
				Criteria: []models.Criterion{
					{Name: "titleMatch", Matched: true},
					{Name: "experienceMatch", Matched: score == 100},
				},
			},
			Job:     &models.JobPosting{ID: jobID, MatchThreshold: 60},
			Created: created,
		}, nil
	}
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute(t *testing.T) {
	tests := []struct {
		name           string
		score          func(context.Context, string, string) (*pipeline.ScoreResult, error)
		evaluate       func(context.Context, *models.MatchRecord, *models.JobPosting) (pipeline.Outcome, error)
		validateOutput func(t *testing.T, output *Output)
	}{
		{
			name:  "above threshold dispatches",
			score: scored(100, true),
			evaluate: func(_ context.Context, rec *models.MatchRecord, _ *models.JobPosting) (pipeline.Outcome, error) {
				rec.IsNotified = true
				return pipeline.OutcomeDispatched, nil
			},
			validateOutput: func(t *testing.T, output *Output) {
				assert.Equal(t, 100, output.MatchScore)
				assert.True(t, output.Created)
				assert.True(t, output.IsNotified)
				assert.Equal(t, "dispatched", output.Outcome)
				assert.Equal(t, string(pipeline.StateAboveThresholdNotified), output.State)
				assert.Equal(t, "2 of 2 criteria met (job title, experience)", output.Explanation)
			},
		},
		{
			name:  "below threshold is skipped",
			score: scored(50, false),
			evaluate: func(context.Context, *models.MatchRecord, *models.JobPosting) (pipeline.Outcome, error) {
				return pipeline.OutcomeSkippedBelowThreshold, nil
			},
			validateOutput: func(t *testing.T, output *Output) {
				assert.Equal(t, 50, output.MatchScore)
				assert.False(t, output.Created)
				assert.False(t, output.IsNotified)
				assert.Equal(t, "skippedBelowThreshold", output.Outcome)
				assert.Equal(t, string(pipeline.StateBelowThreshold), output.State)
				assert.Len(t, output.Criteria, 2)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			matcher := &MockMatcher{ScoreAndRecordFunc: tt.score, EvaluateAndNotifyFunc: tt.evaluate}
			handler := createTestHandler(t, matcher)

			output, err := handler.Execute(context.Background(), &Input{CandidateID: "c1", JobID: "j1"})
			require.NoError(t, err)
			tt.validateOutput(t, output)
		})
	}
}

func TestHandler_Execute_Errors(t *testing.T) {
	t.Run("score failure skips evaluation", func(t *testing.T) {
		matcher := &MockMatcher{
			ScoreAndRecordFunc: func(context.Context, string, string) (*pipeline.ScoreResult, error) {
				return nil, apperrors.NewNotFoundError("candidate", "c1")
			},
		}
		handler := createTestHandler(t, matcher)

		_, err := handler.Execute(context.Background(), &Input{CandidateID: "c1", JobID: "j1"})
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeNotFound, apperrors.KindOf(err))
		assert.Equal(t, 0, matcher.evaluated)
	})

	t.Run("notify failure is retryable", func(t *testing.T) {
		matcher := &MockMatcher{
			ScoreAndRecordFunc: scored(90, true),
			EvaluateAndNotifyFunc: func(context.Context, *models.MatchRecord, *models.JobPosting) (pipeline.Outcome, error) {
				return "", apperrors.NewTransientNotifyError("aws", assert.AnError)
			},
		}
		handler := createTestHandler(t, matcher)

		_, err := handler.Execute(context.Background(), &Input{CandidateID: "c1", JobID: "j1"})
		require.Error(t, err)
		bpmn := apperrors.ConvertToBPMNError(apperrors.Normalize(err))
		assert.True(t, bpmn.Retryable)
		assert.Equal(t, "MATCH_NOTIFY_FAILED", bpmn.Code)
	})
}

// ==========================
// Input Validation Tests
// ==========================

func TestInputSchema(t *testing.T) {
	tests := []struct {
		name      string
		variables string
		wantValid bool
	}{
		{name: "valid", variables: `{"candidateId":"c1","jobId":"j1","processVar":1}`, wantValid: true},
		{name: "missing candidate", variables: `{"jobId":"j1"}`},
		{name: "empty job", variables: `{"candidateId":"c1","jobId":""}`},
		{name: "numeric id", variables: `{"candidateId":1,"jobId":"j1"}`},
		{name: "not json", variables: `candidate`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := schema.ValidateJSON(tt.variables)
			assert.Equal(t, tt.wantValid, res.Valid, res.String())
		})
	}
}

func TestLoadConfig(t *testing.T) {
	assert.Equal(t, 2*time.Second, LoadConfig(config.WorkerConfig{Timeout: 2000}).Timeout)
	assert.Equal(t, 15*time.Second, LoadConfig(config.WorkerConfig{}).Timeout)
}
