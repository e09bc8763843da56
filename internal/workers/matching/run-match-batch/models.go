// internal/workers/matching/run-match-batch/models.go
package runmatchbatch

import "match-workers/internal/matching/pipeline"

type Input struct {
	CandidateIDs []string `json:"candidateIds,omitempty"`
	JobIDs       []string `json:"jobIds,omitempty"`
}

type Output struct {
	Processed              int                  `json:"processed"`
	Created                int                  `json:"created"`
	Updated                int                  `json:"updated"`
	Dispatched             int                  `json:"dispatched"`
	SkippedBelowThreshold  int                  `json:"skippedBelowThreshold"`
	SkippedAlreadyNotified int                  `json:"skippedAlreadyNotified"`
	ErrorCount             int                  `json:"errorCount"`
	Errors                 []pipeline.PairError `json:"pairErrors"`
	ErrorsTruncated        bool                 `json:"pairErrorsTruncated"`
	DurationMs             int64                `json:"durationMs"`
}

const inputSchema = `{
	"type": "object",
	"properties": {
		"candidateIds": {
			"type": ["array", "null"],
			"items": {"type": "string", "minLength": 1},
			"uniqueItems": true
		},
		"jobIds": {
			"type": ["array", "null"],
			"items": {"type": "string", "minLength": 1},
			"uniqueItems": true
		}
	}
}`
