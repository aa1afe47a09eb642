// Package notify composes plain-text notifications (team manager match alerts and take-home
// invitations) and hands them to a Dispatcher.
package notify

import (
	"embed"
	"fmt"
	"math"
	"strings"
	"sync"
	"text/template"

	"github.com/google/uuid"

	"github.com/jonathan/talent-sourcer/internal/types"
)

//go:embed templates/*.txt
var templateFiles embed.FS

// Message kinds.
const (
	KindTeamMatch = "team_match"
	KindTakehome  = "takehome"
)

// Body limits for the manager notification.
const (
	maxStrengths  = 5
	maxConcerns   = 3
	maxSkills     = 8
	maxExperience = 3
)

// Message is one outbound notification.
type Message struct {
	Kind        string
	To          string
	Recipient   string
	Subject     string
	Body        string
	CandidateID uuid.UUID
	JobID       uuid.UUID
	TeamID      uuid.UUID
}

var (
	parseOnce sync.Once
	parsed    *template.Template
	parseErr  error
)

func templates() (*template.Template, error) {
	parseOnce.Do(func() {
		parsed, parseErr = template.New("notify").Funcs(template.FuncMap{
			"percent": func(v float64) int { return int(math.Round(v * 100)) },
			"upper":   strings.ToUpper,
			"join":    strings.Join,
			"inc":     func(i int) int { return i + 1 },
		}).ParseFS(templateFiles, "templates/*.txt")
	})
	return parsed, parseErr
}

func render(name string, data any) (string, error) {
	tmpl, err := templates()
	if err != nil {
		return "", &TemplateError{Template: name, Cause: err}
	}
	var sb strings.Builder
	if err := tmpl.ExecuteTemplate(&sb, name, data); err != nil {
		return "", &TemplateError{Template: name, Cause: err}
	}
	return sb.String(), nil
}

// ManagerAddress returns the team's manager email, or first.last@company.com derived from the
// manager's name when none is set.
func ManagerAddress(team *types.Team) string {
	if team.ManagerEmail != "" {
		return team.ManagerEmail
	}
	name := team.ManagerName
	if name == "" {
		name = "Team Manager"
	}
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), " ", ".")) + "@company.com"
}

type managerData struct {
	ManagerName string
	TeamName    string
	Candidate   *types.Candidate
	Match       *types.TeamMatch
	Strengths   []string
	Concerns    []string
	Skills      []string
	Experience  []types.ExperienceEntry
}

// ManagerMatch composes the alert sent when a match passes the threshold.
func ManagerMatch(candidate *types.Candidate, team *types.Team, match *types.TeamMatch) (*Message, error) {
	data := managerData{
		ManagerName: team.ManagerName,
		TeamName:    team.Name,
		Candidate:   candidate,
		Match:       match,
		Strengths:   head(match.Strengths, maxStrengths),
		Concerns:    head(match.Concerns, maxConcerns),
	}
	if e := candidate.Enrichment; e != nil {
		data.Skills = head(e.Skills, maxSkills)
		data.Experience = head(e.Experience, maxExperience)
	}

	body, err := render("manager_match.txt", data)
	if err != nil {
		return nil, err
	}
	return &Message{
		Kind:        KindTeamMatch,
		To:          ManagerAddress(team),
		Recipient:   team.ManagerName,
		Subject:     fmt.Sprintf("Strong Candidate Match: %s for %s", candidate.Name, team.Name),
		Body:        body,
		CandidateID: candidate.ID,
		JobID:       match.JobID,
		TeamID:      team.ID,
	}, nil
}

// Takehome composes the take-home invitation for a candidate.
func Takehome(candidate *types.Candidate, job *types.Job) (*Message, error) {
	name := candidate.Name
	if name == "" {
		name = candidate.Handle
	}
	body, err := render("takehome.txt", map[string]any{
		"CandidateName": name,
		"JobTitle":      job.Title,
		"Requirements":  head(job.Requirements, 5),
	})
	if err != nil {
		return nil, err
	}
	to := candidate.Email
	if to == "" {
		to = "@" + candidate.Handle
	}
	return &Message{
		Kind:        KindTakehome,
		To:          to,
		Recipient:   name,
		Subject:     fmt.Sprintf("Take-home assignment: %s", job.Title),
		Body:        body,
		CandidateID: candidate.ID,
		JobID:       job.ID,
	}, nil
}

func head[T any](s []T, n int) []T {
	if len(s) > n {
		return s[:n]
	}
	return s
}
