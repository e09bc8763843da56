package models

import "time"

// Criterion is one line of a score breakdown.
type Criterion struct {
	Name    string `json:"name"`
	Matched bool   `json:"matched"`
}

// MatchRecord is the persisted outcome of scoring one (candidate, job) pair.
// IsNotified only ever moves from false to true.
type MatchRecord struct {
	CandidateID string      `json:"candidateId"`
	JobID       string      `json:"jobId"`
	Score       int         `json:"score"`
	Criteria    []Criterion `json:"criteria,omitempty"`
	IsNotified  bool        `json:"isNotified"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
	NotifiedAt  *time.Time  `json:"notifiedAt,omitempty"`
}

// PairID is the composite identity of a MatchRecord.
type PairID struct {
	CandidateID string `json:"candidateId"`
	JobID       string `json:"jobId"`
}

func (r *MatchRecord) Pair() PairID {
	return PairID{CandidateID: r.CandidateID, JobID: r.JobID}
}
