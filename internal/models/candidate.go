package models

// SalaryRange is an inclusive (min, max) annual salary band.
type SalaryRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Overlaps reports whether two inclusive ranges share at least one value.
func (r SalaryRange) Overlaps(other SalaryRange) bool {
	return r.Min <= other.Max && r.Max >= other.Min
}

// CandidateProfile holds the search-relevant attributes of one job seeker.
// Titles are in preference order. An empty Locations set means no preference.
type CandidateProfile struct {
	ID                string         `json:"id"`
	Name              string         `json:"name,omitempty"`
	Titles            []string       `json:"titles"`
	YearsExperience   int            `json:"yearsExperience"`
	ExperienceByTitle map[string]int `json:"experienceByTitle,omitempty"`
	Locations         []string       `json:"locations"`
	Salary            SalaryRange    `json:"salaryRange"`
	Skills            []string       `json:"skills,omitempty"`
	Qualifications    []string       `json:"qualifications,omitempty"`
	Active            bool           `json:"active"`
}
