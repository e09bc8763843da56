package notify

import (
	"context"

	"match-workers/internal/common/logger"
)

// LogNotifier records alerts in the log only. It is used when no delivery
// channel is enabled, e.g. in local runs and dry-run sweeps.
type LogNotifier struct {
	logger logger.Logger
}

func NewLogNotifier(log logger.Logger) *LogNotifier {
	return &LogNotifier{logger: log.WithFields(map[string]interface{}{"component": "log-notifier"})}
}

func (n *LogNotifier) NotifyMatch(_ context.Context, candidateID, jobID string, score int) error {
	fields := logger.PairFields(candidateID, jobID)
	fields["score"] = score
	n.logger.Info("match alert", fields)
	return nil
}
