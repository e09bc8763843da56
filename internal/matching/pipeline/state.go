package pipeline

import "match-workers/internal/models"

type State string

const (
	StateUnscored                 State = "Unscored"
	StateBelowThreshold           State = "Scored-BelowThreshold"
	StateAboveThresholdUnnotified State = "Scored-AboveThreshold-Unnotified"
	StateAboveThresholdNotified   State = "Scored-AboveThreshold-Notified"
)

// StateOf places a record in the per-pair lifecycle. A notified record stays
// in the notified state even if a later rescoring drops it below threshold.
func StateOf(record *models.MatchRecord, job *models.JobPosting) State {
	switch {
	case record == nil:
		return StateUnscored
	case record.IsNotified:
		return StateAboveThresholdNotified
	case job != nil && record.Score >= job.MatchThreshold:
		return StateAboveThresholdUnnotified
	default:
		return StateBelowThreshold
	}
}
