// Package steps defines the sourcing pipeline's stages, their categories and dependencies, and
// dependency checks against recorded run steps.
package steps

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jonathan/talent-sourcer/internal/types"
)

// Stage names in execution order.
const (
	StepEmbed              = "embed"
	StepDiscoverTopics     = "discover_topics"
	StepDiscoverCandidates = "discover_candidates"
	StepVerifyRoles        = "verify_roles"
	StepEnrich             = "enrich"
	StepScore              = "score"
	StepRoute              = "route"
)

// Step categories
const (
	CategorySetup      = "setup"
	CategoryDiscovery  = "discovery"
	CategoryEvaluation = "evaluation"
	CategoryRouting    = "routing"
)

// StepDefinition defines metadata for a pipeline step
type StepDefinition struct {
	Name         string
	Category     string
	Description  string
	Dependencies []string
}

// StepRegistry holds all step definitions
var StepRegistry = map[string]StepDefinition{
	StepEmbed: {
		Name:        StepEmbed,
		Category:    CategorySetup,
		Description: "Embed the job description",
	},
	StepDiscoverTopics: {
		Name:         StepDiscoverTopics,
		Category:     CategoryDiscovery,
		Description:  "Derive topics and search queries from the job",
		Dependencies: []string{StepEmbed},
	},
	StepDiscoverCandidates: {
		Name:         StepDiscoverCandidates,
		Category:     CategoryDiscovery,
		Description:  "Search for profiles posting about the topics",
		Dependencies: []string{StepDiscoverTopics},
	},
	StepVerifyRoles: {
		Name:         StepVerifyRoles,
		Category:     CategoryEvaluation,
		Description:  "Keep profiles classified as developers",
		Dependencies: []string{StepDiscoverCandidates},
	},
	StepEnrich: {
		Name:         StepEnrich,
		Category:     CategoryEvaluation,
		Description:  "Attach skills and experience to verified profiles",
		Dependencies: []string{StepVerifyRoles},
	},
	StepScore: {
		Name:         StepScore,
		Category:     CategoryEvaluation,
		Description:  "Score each candidate against the job",
		Dependencies: []string{StepEnrich},
	},
	StepRoute: {
		Name:         StepRoute,
		Category:     CategoryRouting,
		Description:  "Route scored candidates into funnel stages",
		Dependencies: []string{StepScore},
	},
}

var order = []string{
	StepEmbed, StepDiscoverTopics, StepDiscoverCandidates,
	StepVerifyRoles, StepEnrich, StepScore, StepRoute,
}

// Ordered returns the step definitions in execution order.
func Ordered() []StepDefinition {
	defs := make([]StepDefinition, len(order))
	for i, name := range order {
		defs[i] = StepRegistry[name]
	}
	return defs
}

// Index returns the 1-based position of a step, or 0 when unknown.
func Index(name string) int {
	for i, n := range order {
		if n == name {
			return i + 1
		}
	}
	return 0
}

// Count is the number of pipeline steps.
func Count() int { return len(order) }

// StepReader lists the recorded steps of a run.
type StepReader interface {
	ListRunSteps(ctx context.Context, runID uuid.UUID) ([]types.RunStep, error)
}

// DependencyError represents a dependency validation error
type DependencyError struct {
	Step                string
	MissingDependencies []string
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("missing dependencies: %v", e.MissingDependencies)
}

func statuses(ctx context.Context, store StepReader, runID uuid.UUID) (map[string]string, error) {
	recorded, err := store.ListRunSteps(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list run steps: %w", err)
	}
	out := make(map[string]string, len(recorded))
	for _, s := range recorded {
		out[s.Step] = s.Status
	}
	return out, nil
}

func missing(def StepDefinition, status map[string]string) []string {
	var out []string
	for _, dep := range def.Dependencies {
		if status[dep] != types.StepStatusCompleted {
			out = append(out, dep)
		}
	}
	return out
}

// ValidateDependencies checks if all required dependencies for a step are completed
func ValidateDependencies(ctx context.Context, store StepReader, runID uuid.UUID, stepName string) error {
	def, ok := StepRegistry[stepName]
	if !ok {
		return fmt.Errorf("unknown step: %s", stepName)
	}
	status, err := statuses(ctx, store, runID)
	if err != nil {
		return err
	}
	if m := missing(def, status); len(m) > 0 {
		return &DependencyError{Step: stepName, MissingDependencies: m}
	}
	return nil
}

// GetAvailableSteps returns steps that can be executed (dependencies met), in execution order.
func GetAvailableSteps(ctx context.Context, store StepReader, runID uuid.UUID) ([]string, error) {
	status, err := statuses(ctx, store, runID)
	if err != nil {
		return nil, err
	}
	var available []string
	for _, def := range Ordered() {
		switch status[def.Name] {
		case types.StepStatusCompleted, types.StepStatusInProgress:
			continue
		}
		if len(missing(def, status)) == 0 {
			available = append(available, def.Name)
		}
	}
	return available, nil
}

// GetBlockedSteps returns steps that are blocked (dependencies not met), in execution order.
func GetBlockedSteps(ctx context.Context, store StepReader, runID uuid.UUID) ([]string, error) {
	status, err := statuses(ctx, store, runID)
	if err != nil {
		return nil, err
	}
	var blocked []string
	for _, def := range Ordered() {
		switch status[def.Name] {
		case types.StepStatusCompleted, types.StepStatusInProgress:
			continue
		}
		if len(missing(def, status)) > 0 {
			blocked = append(blocked, def.Name)
		}
	}
	return blocked, nil
}
