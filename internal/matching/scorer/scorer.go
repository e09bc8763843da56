// Package scorer computes the compatibility score between a candidate
// profile and a job posting. Every enabled criterion carries equal weight and
// the score is the rounded percentage of criteria met.
package scorer

import (
	"fmt"
	"strings"

	apperrors "match-workers/internal/common/errors"
	"match-workers/internal/models"
)

// Criterion names, in the order they appear in a breakdown.
const (
	CriterionTitle          = "titleMatch"
	CriterionExperience     = "experienceMatch"
	CriterionLocation       = "locationMatch"
	CriterionSalary         = "salaryOverlap"
	CriterionSkills         = "skillsMatch"
	CriterionQualifications = "qualificationsMatch"
)

// Options enables the optional criteria. The zero value scores on title,
// experience, location and salary only.
type Options struct {
	IncludeSkills         bool
	IncludeQualifications bool
}

// Result is a score in [0,100] plus the per-criterion breakdown behind it.
type Result struct {
	Score    int                `json:"score"`
	Criteria []models.Criterion `json:"criteria"`
}

// Matched reports whether the named criterion was met.
func (r Result) Matched(name string) bool {
	for _, c := range r.Criteria {
		if c.Name == name {
			return c.Matched
		}
	}
	return false
}

type criterion struct {
	name  string
	match func(c *models.CandidateProfile, j *models.JobPosting) bool
}

// Scorer is safe for concurrent use; it holds no mutable state.
type Scorer struct {
	criteria []criterion
}

func New(opts Options) *Scorer {
	criteria := []criterion{
		{CriterionTitle, titleMatch},
		{CriterionExperience, experienceMatch},
		{CriterionLocation, locationMatch},
		{CriterionSalary, salaryOverlap},
	}
	if opts.IncludeSkills {
		criteria = append(criteria, criterion{CriterionSkills, skillsMatch})
	}
	if opts.IncludeQualifications {
		criteria = append(criteria, criterion{CriterionQualifications, qualificationsMatch})
	}
	return &Scorer{criteria: criteria}
}

var defaultScorer = New(Options{})

// Score scores a pair with the default four criteria.
func Score(c *models.CandidateProfile, j *models.JobPosting) (Result, error) {
	return defaultScorer.Score(c, j)
}

// Score returns an InvalidInput error for malformed data; a zero score is not an error.
func (s *Scorer) Score(c *models.CandidateProfile, j *models.JobPosting) (Result, error) {
	if err := Validate(c, j); err != nil {
		return Result{}, err
	}

	breakdown := make([]models.Criterion, 0, len(s.criteria))
	matched := 0
	for _, cr := range s.criteria {
		ok := cr.match(c, j)
		if ok {
			matched++
		}
		breakdown = append(breakdown, models.Criterion{Name: cr.name, Matched: ok})
	}

	return Result{
		Score:    Percent(matched, len(s.criteria)),
		Criteria: breakdown,
	}, nil
}

// Percent is round-half-up(100 * matched / total) in integer arithmetic.
func Percent(matched, total int) int {
	if total <= 0 {
		return 0
	}
	return (200*matched + total) / (2 * total)
}

// Validate checks the data-quality rules the scorer depends on.
func Validate(c *models.CandidateProfile, j *models.JobPosting) error {
	if c == nil || j == nil {
		return apperrors.NewInvalidInputError("candidate and job are required")
	}
	problems := append(candidateProblems(c), jobProblems(j)...)
	if len(problems) > 0 {
		return apperrors.NewInvalidInputError(strings.Join(problems, "; ")).WithPair(c.ID, j.ID)
	}
	return nil
}

// ValidateCandidate applies the candidate half of Validate, e.g. before import.
func ValidateCandidate(c *models.CandidateProfile) error {
	if problems := candidateProblems(c); len(problems) > 0 {
		return apperrors.NewInvalidInputError(strings.Join(problems, "; ")).WithPair(c.ID, "")
	}
	return nil
}

func ValidateJob(j *models.JobPosting) error {
	if problems := jobProblems(j); len(problems) > 0 {
		return apperrors.NewInvalidInputError(strings.Join(problems, "; ")).WithPair("", j.ID)
	}
	return nil
}

func candidateProblems(c *models.CandidateProfile) []string {
	var problems []string
	if c.YearsExperience < 0 {
		problems = append(problems, fmt.Sprintf("candidate %s: negative yearsExperience %d", c.ID, c.YearsExperience))
	}
	for title, years := range c.ExperienceByTitle {
		if years < 0 {
			problems = append(problems, fmt.Sprintf("candidate %s: negative experience for %q", c.ID, title))
		}
	}
	if p := checkRange("candidate "+c.ID, c.Salary); p != "" {
		problems = append(problems, p)
	}
	return problems
}

func jobProblems(j *models.JobPosting) []string {
	var problems []string
	if j.MinYearsExperience < 0 {
		problems = append(problems, fmt.Sprintf("job %s: negative minYearsExperience %d", j.ID, j.MinYearsExperience))
	}
	if p := checkRange("job "+j.ID, j.Salary); p != "" {
		problems = append(problems, p)
	}
	if j.MatchThreshold < 0 || j.MatchThreshold > 100 {
		problems = append(problems, fmt.Sprintf("job %s: matchThreshold %d outside [0,100]", j.ID, j.MatchThreshold))
	}
	return problems
}

func checkRange(owner string, r models.SalaryRange) string {
	if r.Min < 0 || r.Max < 0 {
		return fmt.Sprintf("%s: negative salary range (%d, %d)", owner, r.Min, r.Max)
	}
	if r.Min > r.Max {
		return fmt.Sprintf("%s: inverted salary range (%d, %d)", owner, r.Min, r.Max)
	}
	return ""
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func containsFold(set []string, want string) bool {
	want = normalize(want)
	for _, s := range set {
		if normalize(s) == want {
			return true
		}
	}
	return false
}

func containsAllFold(have, required []string) bool {
	for _, r := range required {
		if !containsFold(have, r) {
			return false
		}
	}
	return true
}

func titleMatch(c *models.CandidateProfile, j *models.JobPosting) bool {
	return containsFold(c.Titles, j.Title)
}

// experienceMatch prefers the candidate's years for the job's title when recorded.
func experienceMatch(c *models.CandidateProfile, j *models.JobPosting) bool {
	if j.MinYearsExperience == 0 {
		return true
	}
	years, found := 0, false
	want := normalize(j.Title)
	for title, y := range c.ExperienceByTitle {
		if normalize(title) == want && (!found || y > years) {
			years, found = y, true
		}
	}
	if !found {
		years = c.YearsExperience
	}
	return years >= j.MinYearsExperience
}

func locationMatch(c *models.CandidateProfile, j *models.JobPosting) bool {
	if len(c.Locations) == 0 {
		return true
	}
	return containsFold(c.Locations, j.Location)
}

func salaryOverlap(c *models.CandidateProfile, j *models.JobPosting) bool {
	return c.Salary.Overlaps(j.Salary)
}

func skillsMatch(c *models.CandidateProfile, j *models.JobPosting) bool {
	return containsAllFold(c.Skills, j.RequiredSkills)
}

func qualificationsMatch(c *models.CandidateProfile, j *models.JobPosting) bool {
	return containsAllFold(c.Qualifications, j.RequiredQualifications)
}
