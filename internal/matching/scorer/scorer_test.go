package scorer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "match-workers/internal/common/errors"
	"match-workers/internal/models"
)

func createTestCandidate() *models.CandidateProfile {
	return &models.CandidateProfile{
		ID:              "cand-001",
		Titles:          []string{"Chef"},
		YearsExperience: 2,
		Locations:       []string{"BS1"},
		Salary:          models.SalaryRange{Min: 20000, Max: 25000},
	}
}

func createTestJob() *models.JobPosting {
	return &models.JobPosting{
		ID:                 "job-001",
		Title:              "Chef",
		MinYearsExperience: 1,
		Location:           "BS1",
		Salary:             models.SalaryRange{Min: 22000, Max: 28000},
		MatchThreshold:     60,
	}
}

func TestScore_Scenarios(t *testing.T) {
	tests := []struct {
		name          string
		mutateJob     func(j *models.JobPosting)
		mutateCand    func(c *models.CandidateProfile)
		expectedScore int
		expected      map[string]bool
	}{
		{
			name:          "all four criteria met",
			expectedScore: 100,
			expected: map[string]bool{
				CriterionTitle: true, CriterionExperience: true, CriterionLocation: true, CriterionSalary: true,
			},
		},
		{
			name:          "experience unmet",
			mutateJob:     func(j *models.JobPosting) { j.MinYearsExperience = 5 },
			expectedScore: 75,
			expected: map[string]bool{
				CriterionTitle: true, CriterionExperience: false, CriterionLocation: true, CriterionSalary: true,
			},
		},
		{
			name: "nothing met",
			mutateJob: func(j *models.JobPosting) {
				j.Title = "Waiter"
				j.MinYearsExperience = 5
				j.Location = "BS9"
				j.Salary = models.SalaryRange{Min: 40000, Max: 50000}
			},
			expectedScore: 0,
			expected: map[string]bool{
				CriterionTitle: false, CriterionExperience: false, CriterionLocation: false, CriterionSalary: false,
			},
		},
		{
			name:          "no location preference matches anywhere",
			mutateCand:    func(c *models.CandidateProfile) { c.Locations = nil },
			mutateJob:     func(j *models.JobPosting) { j.Location = "Anywhere" },
			expectedScore: 100,
			expected:      map[string]bool{CriterionLocation: true},
		},
		{
			name:          "title comparison ignores case and padding",
			mutateCand:    func(c *models.CandidateProfile) { c.Titles = []string{"Sous Chef", " CHEF "} },
			expectedScore: 100,
			expected:      map[string]bool{CriterionTitle: true},
		},
		{
			name:          "zero titles never match",
			mutateCand:    func(c *models.CandidateProfile) { c.Titles = nil },
			expectedScore: 75,
			expected:      map[string]bool{CriterionTitle: false},
		},
		{
			name: "no minimum experience always matches",
			mutateCand: func(c *models.CandidateProfile) {
				c.YearsExperience = 0
			},
			mutateJob:     func(j *models.JobPosting) { j.MinYearsExperience = 0 },
			expectedScore: 100,
			expected:      map[string]bool{CriterionExperience: true},
		},
		{
			name: "salary ranges touching at one value overlap",
			mutateJob: func(j *models.JobPosting) {
				j.Salary = models.SalaryRange{Min: 25000, Max: 30000}
			},
			expectedScore: 100,
			expected:      map[string]bool{CriterionSalary: true},
		},
		{
			name: "per-title experience overrides overall years",
			mutateCand: func(c *models.CandidateProfile) {
				c.YearsExperience = 10
				c.ExperienceByTitle = map[string]int{"chef": 1, "Waiter": 9}
			},
			mutateJob:     func(j *models.JobPosting) { j.MinYearsExperience = 3 },
			expectedScore: 75,
			expected:      map[string]bool{CriterionExperience: false},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, j := createTestCandidate(), createTestJob()
			if tt.mutateCand != nil {
				tt.mutateCand(c)
			}
			if tt.mutateJob != nil {
				tt.mutateJob(j)
			}

			result, err := Score(c, j)
			require.NoError(t, err)
			assert.Equal(t, tt.expectedScore, result.Score)
			for name, want := range tt.expected {
				assert.Equal(t, want, result.Matched(name), name)
			}
		})
	}
}

func TestScore_CriteriaOrder(t *testing.T) {
	result, err := Score(createTestCandidate(), createTestJob())
	require.NoError(t, err)

	names := make([]string, 0, len(result.Criteria))
	for _, c := range result.Criteria {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{CriterionTitle, CriterionExperience, CriterionLocation, CriterionSalary}, names)
}

func TestScore_Deterministic(t *testing.T) {
	c, j := createTestCandidate(), createTestJob()
	c.ExperienceByTitle = map[string]int{"Chef": 3, "CHEF": 0}
	j.MinYearsExperience = 2

	first, err := Score(c, j)
	require.NoError(t, err)
	for i := 0; i < 50; i++ {
		again, err := Score(c, j)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestScore_RangeAndMonotonicity(t *testing.T) {
	// flips[i] turns criterion i from false to true on a pair where nothing matches.
	flips := []func(c *models.CandidateProfile, j *models.JobPosting){
		func(c *models.CandidateProfile, j *models.JobPosting) { j.Title = "Chef" },
		func(c *models.CandidateProfile, j *models.JobPosting) { j.MinYearsExperience = 0 },
		func(c *models.CandidateProfile, j *models.JobPosting) { j.Location = "BS1" },
		func(c *models.CandidateProfile, j *models.JobPosting) { j.Salary = models.SalaryRange{Min: 20000, Max: 21000} },
	}

	for mask := 0; mask < 1<<len(flips); mask++ {
		c, j := createTestCandidate(), createTestJob()
		j.Title, j.MinYearsExperience, j.Location = "Waiter", 5, "BS9"
		j.Salary = models.SalaryRange{Min: 40000, Max: 50000}
		for i, flip := range flips {
			if mask&(1<<i) != 0 {
				flip(c, j)
			}
		}
		base, err := Score(c, j)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, base.Score, 0)
		assert.LessOrEqual(t, base.Score, 100)

		for i, flip := range flips {
			if mask&(1<<i) != 0 {
				continue
			}
			c2, j2 := *c, *j
			flip(&c2, &j2)
			flipped, err := Score(&c2, &j2)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, flipped.Score, base.Score, "mask %b flip %d", mask, i)
		}
	}
}

func TestPercent_RoundsHalfUp(t *testing.T) {
	tests := []struct{ matched, total, want int }{
		{0, 4, 0},
		{1, 4, 25},
		{2, 4, 50},
		{3, 4, 75},
		{4, 4, 100},
		{1, 3, 33},
		{2, 3, 67},
		{1, 6, 17},
		{5, 6, 83},
		{1, 8, 13},
		{1, 40, 3},
		{0, 0, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Percent(tt.matched, tt.total), "%d/%d", tt.matched, tt.total)
	}
}

func TestScore_InvalidInput(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *models.CandidateProfile, j *models.JobPosting)
	}{
		{"candidate salary inverted", func(c *models.CandidateProfile, j *models.JobPosting) {
			c.Salary = models.SalaryRange{Min: 30000, Max: 20000}
		}},
		{"job salary inverted", func(c *models.CandidateProfile, j *models.JobPosting) {
			j.Salary = models.SalaryRange{Min: 30000, Max: 20000}
		}},
		{"negative salary", func(c *models.CandidateProfile, j *models.JobPosting) {
			c.Salary = models.SalaryRange{Min: -1, Max: 20000}
		}},
		{"negative experience", func(c *models.CandidateProfile, j *models.JobPosting) {
			c.YearsExperience = -2
		}},
		{"negative job minimum", func(c *models.CandidateProfile, j *models.JobPosting) {
			j.MinYearsExperience = -1
		}},
		{"threshold above 100", func(c *models.CandidateProfile, j *models.JobPosting) {
			j.MatchThreshold = 101
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, j := createTestCandidate(), createTestJob()
			tt.mutate(c, j)

			_, err := Score(c, j)
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))

			var stdErr *apperrors.StandardError
			require.True(t, errors.As(err, &stdErr))
			assert.Equal(t, "cand-001", stdErr.Metadata["candidateId"])
			assert.Equal(t, "job-001", stdErr.Metadata["jobId"])
		})
	}

	_, err := Score(nil, createTestJob())
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
}

func TestScorer_OptionalCriteria(t *testing.T) {
	s := New(Options{IncludeSkills: true, IncludeQualifications: true})

	c, j := createTestCandidate(), createTestJob()
	c.Skills = []string{"Knife Work", "Pastry"}
	c.Qualifications = []string{"Food Hygiene L2"}
	j.RequiredSkills = []string{"pastry"}
	j.RequiredQualifications = []string{"food hygiene l2", "First Aid"}

	result, err := s.Score(c, j)
	require.NoError(t, err)
	assert.Len(t, result.Criteria, 6)
	assert.True(t, result.Matched(CriterionSkills))
	assert.False(t, result.Matched(CriterionQualifications))
	assert.Equal(t, 83, result.Score)

	j.RequiredSkills, j.RequiredQualifications = nil, nil
	result, err = s.Score(c, j)
	require.NoError(t, err)
	assert.Equal(t, 100, result.Score)
}

func TestExplain(t *testing.T) {
	c, j := createTestCandidate(), createTestJob()
	j.MinYearsExperience = 5

	result, err := Score(c, j)
	require.NoError(t, err)
	assert.Equal(t, "3 of 4 criteria met (job title, location, salary); missing: experience", Explain(result))

	assert.Equal(t, "0 of 0 criteria met", Explain(Result{}))
}

func TestValidateCandidateAndJob(t *testing.T) {
	assert.NoError(t, ValidateCandidate(createTestCandidate()))
	assert.NoError(t, ValidateJob(createTestJob()))

	c := createTestCandidate()
	c.ExperienceByTitle = map[string]int{"Chef": -1}
	err := ValidateCandidate(c)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeInvalidInput, apperrors.KindOf(err))
	assert.Contains(t, err.Error(), `negative experience for "Chef"`)

	j := createTestJob()
	j.MatchThreshold = 101
	err = ValidateJob(j)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "matchThreshold 101 outside [0,100]")
}
