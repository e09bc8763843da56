package scorer

import (
	"fmt"
	"strings"
)

var labels = map[string]string{
	CriterionTitle:          "job title",
	CriterionExperience:     "experience",
	CriterionLocation:       "location",
	CriterionSalary:         "salary",
	CriterionSkills:         "skills",
	CriterionQualifications: "qualifications",
}

func label(name string) string {
	if l, ok := labels[name]; ok {
		return l
	}
	return name
}

// Explain renders a breakdown as a one-line human summary, e.g.
// "3 of 4 criteria met (job title, location, salary); missing: experience".
func Explain(r Result) string {
	var met, missing []string
	for _, c := range r.Criteria {
		if c.Matched {
			met = append(met, label(c.Name))
		} else {
			missing = append(missing, label(c.Name))
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d of %d criteria met", len(met), len(r.Criteria))
	if len(met) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(met, ", "))
	}
	if len(missing) > 0 {
		fmt.Fprintf(&b, "; missing: %s", strings.Join(missing, ", "))
	}
	return b.String()
}
