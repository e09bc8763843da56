package camunda

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"match-workers/internal/common/config"
	apperrors "match-workers/internal/common/errors"
	"match-workers/internal/common/logger"
	"match-workers/internal/common/metrics"
	"match-workers/internal/common/observability"
)

func testClient() *Client {
	return &Client{config: &ClientConfig{
		RetryConfig: &RetryConfig{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond},
	}}
}

func TestConfigFrom(t *testing.T) {
	cfg := ConfigFrom(config.CamundaConfig{BrokerAddress: "zeebe:26500", RequestTimeout: 1500})
	assert.Equal(t, "zeebe:26500", cfg.GatewayAddress)
	assert.Equal(t, 1500*time.Millisecond, cfg.RequestTimeout)
	assert.Equal(t, DefaultRetryConfig, cfg.RetryConfig)
}

func TestExecuteWithRetry(t *testing.T) {
	tests := []struct {
		name      string
		errs      []error
		wantCalls int
		wantCode  apperrors.ErrorCode
	}{
		{name: "first try", errs: []error{nil}, wantCalls: 1},
		{name: "transient then ok", errs: []error{errors.New("rpc error: code = Unavailable"), nil}, wantCalls: 2},
		{
			name:      "transient exhausted",
			errs:      []error{errors.New("connection refused"), errors.New("connection refused"), errors.New("deadline exceeded")},
			wantCalls: 3,
			wantCode:  apperrors.ErrCodeEngineUnavailable,
		},
		{name: "not found is terminal", errs: []error{errors.New("process not found")}, wantCalls: 1, wantCode: apperrors.ErrCodeNotFound},
		{name: "other is internal", errs: []error{errors.New("permission denied")}, wantCalls: 1, wantCode: apperrors.ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := testClient().ExecuteWithRetry(context.Background(), "op", func(context.Context) error {
				e := tt.errs[calls]
				calls++
				return e
			})
			assert.Equal(t, tt.wantCalls, calls)
			if tt.wantCode == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, apperrors.KindOf(err))
		})
	}
}

func TestExecuteWithRetry_ContextCancelled(t *testing.T) {
	c := testClient()
	c.config.RetryConfig.BaseDelay = time.Hour
	c.config.RetryConfig.MaxDelay = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	err := c.ExecuteWithRetry(ctx, "op", func(context.Context) error {
		cancel()
		return errors.New("timeout")
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeEngineUnavailable, apperrors.KindOf(err))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIsRetryableZeebeError(t *testing.T) {
	assert.True(t, isRetryableZeebeError(errors.New("Connection Reset by peer")))
	assert.True(t, isRetryableZeebeError(errors.New("broken pipe")))
	assert.False(t, isRetryableZeebeError(errors.New("invalid argument")))
}

func TestInstrument(t *testing.T) {
	log := logger.NewTestLogger(t)

	ok := Instrument("instrument-ok", JobHandlerFunc(func(worker.JobClient, entities.Job) error {
		return nil
	}), log, nil)
	ok(nil, entities.Job{})
	ok(nil, entities.Job{})
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.WorkerJobsCompleted.WithLabelValues("instrument-ok")))

	failing := Instrument("instrument-fail", JobHandlerFunc(func(worker.JobClient, entities.Job) error {
		return apperrors.NewNotFoundError("candidate", "c1")
	}), log, nil)
	failing(nil, entities.Job{})
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.WorkerJobsFailed.WithLabelValues("instrument-fail", "NOT_FOUND")))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.WorkerJobsCompleted.WithLabelValues("instrument-fail")))
}

func TestInstrument_SpanPerJob(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	obs := observability.New("instrument-test",
		observability.WithRegisterer(promclient.NewRegistry()),
		observability.WithSpanProcessor(recorder))
	defer obs.Shutdown()

	job := entities.Job{ActivatedJob: &pb.ActivatedJob{Key: 42, Type: "instrument-span"}}
	handler := Instrument("instrument-span", JobHandlerFunc(func(worker.JobClient, entities.Job) error {
		return apperrors.NewTransientStoreError("upsert match", errors.New("conn reset"))
	}), logger.NewTestLogger(t), obs)
	handler(nil, job)

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "job instrument-span", ended[0].Name())
	assert.Equal(t, codes.Error, ended[0].Status().Code)
	assert.Equal(t, "TRANSIENT_STORE", ended[0].Status().Description)
}
