// Package seed loads team rosters, candidate profile directories and sample jobs from YAML files.
package seed

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jonathan/talent-sourcer/internal/types"
)

// Profile is a known professional profile keyed by social handle.
type Profile struct {
	Handle           string `yaml:"handle"`
	Name             string `yaml:"name"`
	types.Enrichment `yaml:",inline"`
}

// Job is a job definition in a seed file.
type Job struct {
	Title        string   `yaml:"title"`
	Description  string   `yaml:"description"`
	Requirements []string `yaml:"requirements"`
	URL          string   `yaml:"url"`
	// DescriptionFile is read for the description when it is empty, relative to the seed file.
	DescriptionFile string `yaml:"description_file"`
}

// File is the top-level seed document. Any section may be omitted.
type File struct {
	Teams    []types.Team `yaml:"teams"`
	Profiles []Profile    `yaml:"profiles"`
	Jobs     []Job        `yaml:"jobs"`
}

// Parse decodes and validates a seed document.
func Parse(data []byte) (*File, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("seed: payload is empty")
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("seed: decode: %w", err)
	}
	for i := range f.Teams {
		t := &f.Teams[i]
		if err := t.Validate(); err != nil {
			return nil, fmt.Errorf("seed: team %d (%q): %w", i, t.Name, err)
		}
	}
	for i := range f.Profiles {
		p := &f.Profiles[i]
		p.Handle = NormalizeHandle(p.Handle)
		if p.Handle == "" {
			return nil, fmt.Errorf("seed: profile %d has no handle", i)
		}
		p.Source = types.EnrichmentDirectory
	}
	for i, j := range f.Jobs {
		req := types.CreateJobRequest{Title: j.Title, Description: j.Description, URL: j.URL}
		if req.Description == "" && j.DescriptionFile != "" {
			req.Description = j.DescriptionFile
		}
		if err := req.Validate(); err != nil {
			return nil, fmt.Errorf("seed: job %d (%q): %w", i, j.Title, err)
		}
	}
	return &f, nil
}

// Load reads and parses a seed file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("seed: read %s: %w", path, err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// NormalizeHandle strips a leading @ and surrounding space.
func NormalizeHandle(h string) string {
	return strings.TrimPrefix(strings.TrimSpace(h), "@")
}
