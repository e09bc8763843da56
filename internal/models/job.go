package models

const DefaultMatchThreshold = 60

// JobPosting holds one vacancy's requirements. OwnerID is the employer user
// alerted when a candidate crosses MatchThreshold.
type JobPosting struct {
	ID                     string      `json:"id"`
	OwnerID                string      `json:"ownerId"`
	Title                  string      `json:"title"`
	MinYearsExperience     int         `json:"minYearsExperience"`
	Location               string      `json:"location"`
	Salary                 SalaryRange `json:"salaryRange"`
	RequiredSkills         []string    `json:"requiredSkills,omitempty"`
	RequiredQualifications []string    `json:"requiredQualifications,omitempty"`
	MatchThreshold         int         `json:"matchThreshold"`
	Active                 bool        `json:"active"`
}
