package models

// Contact is where a match alert for one user is delivered.
type Contact struct {
	UserID string `json:"userId"`
	Name   string `json:"name,omitempty"`
	Email  string `json:"email,omitempty"`
	Phone  string `json:"phone,omitempty"`
}

// MatchNotification records one dispatched match alert.
type MatchNotification struct {
	ID          string   `json:"id"`
	CandidateID string   `json:"candidateId"`
	JobID       string   `json:"jobId"`
	Score       int      `json:"score"`
	Channels    []string `json:"channels"`
	SentAt      string   `json:"sentAt"`
}

const (
	ChannelEmail = "email"
	ChannelSMS   = "sms"
)
