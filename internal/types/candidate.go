package types

import (
	"time"

	"github.com/google/uuid"
)

// RoleType is the engineering role a classifier assigns to a discovered profile.
type RoleType string

// Role types returned by the classification adapter.
const (
	RoleMLEngineer RoleType = "ml_engineer"
	RoleBackend    RoleType = "backend"
	RoleFrontend   RoleType = "frontend"
	RoleInfra      RoleType = "infra"
	RoleSystems    RoleType = "systems"
	RoleFullstack  RoleType = "fullstack"
	RoleUnknown    RoleType = "unknown"
)

// ParseRoleType normalizes a role label, mapping anything unrecognized to RoleUnknown.
func ParseRoleType(s string) RoleType {
	switch r := RoleType(s); r {
	case RoleMLEngineer, RoleBackend, RoleFrontend, RoleInfra, RoleSystems, RoleFullstack:
		return r
	default:
		return RoleUnknown
	}
}

// Title returns the human job title for a role type.
func (r RoleType) Title() string {
	switch r {
	case RoleMLEngineer:
		return "ML Engineer"
	case RoleBackend:
		return "Backend Engineer"
	case RoleFrontend:
		return "Frontend Engineer"
	case RoleInfra:
		return "Infrastructure Engineer"
	case RoleSystems:
		return "Systems Engineer"
	case RoleFullstack:
		return "Full Stack Engineer"
	default:
		return "Software Engineer"
	}
}

// Candidate is a person discovered by the sourcing pipeline.
type Candidate struct {
	ID          uuid.UUID   `json:"id"`
	Name        string      `json:"name"`
	Handle      string      `json:"handle"`
	Bio         string      `json:"bio"`
	Email       string      `json:"email,omitempty"`
	HomepageURL string      `json:"homepage_url,omitempty"`
	Enrichment  *Enrichment `json:"enrichment,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// EnrichmentSource records where an enrichment profile came from.
type EnrichmentSource string

// Enrichment sources.
const (
	EnrichmentDirectory EnrichmentSource = "directory"
	EnrichmentSynthetic EnrichmentSource = "synthetic"
)

// Enrichment holds professional background attached to a candidate.
type Enrichment struct {
	Headline          string            `json:"headline" yaml:"headline"`
	Location          string            `json:"location,omitempty" yaml:"location"`
	Skills            []string          `json:"skills" yaml:"skills"`
	Interests         []string          `json:"interests,omitempty" yaml:"interests"`
	Experience        []ExperienceEntry `json:"experience" yaml:"experience"`
	YearsOfExperience int               `json:"years_of_experience" yaml:"years_of_experience"`
	Source            EnrichmentSource  `json:"source" yaml:"-"`
	HomepageText      string            `json:"homepage_text,omitempty" yaml:"-"`
}

// ExperienceEntry is one position in an enrichment profile.
type ExperienceEntry struct {
	Company     string `json:"company" yaml:"company"`
	Title       string `json:"title" yaml:"title"`
	Duration    string `json:"duration" yaml:"duration"`
	Description string `json:"description,omitempty" yaml:"description"`
}

// Signal is one piece of public activity attributed to a discovered profile.
type Signal struct {
	Kind       string    `json:"kind"`
	Text       string    `json:"text"`
	Query      string    `json:"query"`
	Likes      int       `json:"likes,omitempty"`
	Reposts    int       `json:"reposts,omitempty"`
	Replies    int       `json:"replies,omitempty"`
	PostedAt   time.Time `json:"posted_at,omitempty"`
	ExternalID string    `json:"external_id,omitempty"`
}

// DiscoveredProfile is a raw candidate signal returned by the discovery adapter.
type DiscoveredProfile struct {
	Handle      string   `json:"handle"`
	Name        string   `json:"name"`
	Bio         string   `json:"bio"`
	HomepageURL string   `json:"homepage_url,omitempty"`
	Followers   int      `json:"followers,omitempty"`
	Verified    bool     `json:"verified,omitempty"`
	Signals     []Signal `json:"signals"`
}

// SignalTexts returns up to limit signal texts, most recent discovery order first.
func (p *DiscoveredProfile) SignalTexts(limit int) []string {
	texts := make([]string, 0, min(limit, len(p.Signals)))
	for _, s := range p.Signals {
		if len(texts) >= limit {
			break
		}
		texts = append(texts, s.Text)
	}
	return texts
}

// Classification is the role-classification adapter's verdict on a discovered profile.
type Classification struct {
	IsDeveloper bool     `json:"is_developer"`
	RoleType    RoleType `json:"role_type"`
	Confidence  float64  `json:"confidence"`
	Reasoning   string   `json:"reasoning"`
	Signals     []string `json:"signals"`
	Stub        bool     `json:"stub,omitempty"`
}

// Topics is the topic-discovery adapter's output for a job.
type Topics struct {
	Topics        []string `json:"topics"`
	SearchQueries []string `json:"search_queries"`
	Stub          bool     `json:"stub,omitempty"`
}

// Compatibility is a scored fit between one candidate and one job.
type Compatibility struct {
	Score           float64  `json:"compatibility_score"`
	Strengths       []string `json:"strengths"`
	Weaknesses      []string `json:"weaknesses"`
	Reasoning       string   `json:"reasoning"`
	SkillMatch      float64  `json:"skill_match,omitempty"`
	ExperienceMatch float64  `json:"experience_match,omitempty"`
	DomainAlignment float64  `json:"domain_alignment,omitempty"`
}

// CandidateDistance is a candidate returned by a nearest-neighbour embedding search.
type CandidateDistance struct {
	Candidate Candidate `json:"candidate"`
	Distance  float64   `json:"distance"`
}
