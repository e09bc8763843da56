package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestPrometheusRecorder(t *testing.T) {
	r := NewPrometheusRecorder()

	created := testutil.ToFloat64(PairsScored.WithLabelValues("created"))
	updated := testutil.ToFloat64(PairsScored.WithLabelValues("updated"))
	dispatched := testutil.ToFloat64(NotifyOutcomes.WithLabelValues("dispatched"))
	notFound := testutil.ToFloat64(PairErrors.WithLabelValues("NOT_FOUND"))

	r.PairScored(true, 100)
	r.PairScored(false, 40)
	r.Outcome("dispatched")
	r.PairError("NOT_FOUND")

	assert.Equal(t, created+1, testutil.ToFloat64(PairsScored.WithLabelValues("created")))
	assert.Equal(t, updated+1, testutil.ToFloat64(PairsScored.WithLabelValues("updated")))
	assert.Equal(t, dispatched+1, testutil.ToFloat64(NotifyOutcomes.WithLabelValues("dispatched")))
	assert.Equal(t, notFound+1, testutil.ToFloat64(PairErrors.WithLabelValues("NOT_FOUND")))

	inFlight := testutil.ToFloat64(BatchesInFlight)
	r.BatchStarted()
	assert.Equal(t, inFlight+1, testutil.ToFloat64(BatchesInFlight))
	r.BatchFinished()
	assert.Equal(t, inFlight, testutil.ToFloat64(BatchesInFlight))
}
