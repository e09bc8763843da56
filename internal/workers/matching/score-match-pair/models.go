// internal/workers/matching/score-match-pair/models.go
package scorematchpair

import "match-workers/internal/models"

type Input struct {
	CandidateID string `json:"candidateId"`
	JobID       string `json:"jobId"`
}

type Output struct {
	MatchScore  int                `json:"matchScore"`
	Criteria    []models.Criterion `json:"matchCriteria"`
	Explanation string             `json:"matchExplanation"`
	Created     bool               `json:"matchCreated"`
	Outcome     string             `json:"notifyOutcome"`
	State       string             `json:"matchState"`
	IsNotified  bool               `json:"isNotified"`
}

const inputSchema = `{
	"type": "object",
	"properties": {
		"candidateId": {"type": "string", "minLength": 1},
		"jobId": {"type": "string", "minLength": 1}
	},
	"required": ["candidateId", "jobId"]
}`
