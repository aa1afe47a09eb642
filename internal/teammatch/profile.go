package teammatch

import (
	"fmt"
	"strings"

	"github.com/jonathan/talent-sourcer/internal/types"
)

// CandidateText is the text embedded for a candidate.
func CandidateText(c *types.Candidate) string {
	var skills, experience, interests []string
	if e := c.Enrichment; e != nil {
		skills = e.Skills
		interests = e.Interests
		for _, x := range e.Experience {
			experience = append(experience, fmt.Sprintf("%s at %s (%s)", x.Title, x.Company, x.Duration))
		}
	}
	return fmt.Sprintf("Skills: %s\nExperience: %s\nInterests: %s",
		strings.Join(skills, ", "), strings.Join(experience, ", "), strings.Join(interests, ", "))
}

// TeamText is the text embedded for a team.
func TeamText(t *types.Team) string {
	return fmt.Sprintf("%s | Tech: %s\nNeeds: %s\nCulture: %s",
		t.Name, strings.Join(t.TechStack, ", "), strings.Join(t.CurrentNeeds, ", "), t.Culture)
}

// candidatePrompt describes the candidate for the reasoning model.
func candidatePrompt(c *types.Candidate) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Name: %s\n", c.Name)
	if c.Bio != "" {
		fmt.Fprintf(&sb, "Bio: %s\n", c.Bio)
	}
	if e := c.Enrichment; e != nil {
		if e.Headline != "" {
			fmt.Fprintf(&sb, "Headline: %s\n", e.Headline)
		}
		if e.YearsOfExperience > 0 {
			fmt.Fprintf(&sb, "Years of experience: %d\n", e.YearsOfExperience)
		}
	}
	sb.WriteString(CandidateText(c))
	return sb.String()
}
