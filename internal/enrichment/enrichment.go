// Package enrichment attaches professional background to verified developers, either from a
// directory of known profiles or synthesized from the role classification.
package enrichment

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/jonathan/talent-sourcer/internal/logging"
	"github.com/jonathan/talent-sourcer/internal/seed"
	"github.com/jonathan/talent-sourcer/internal/types"
)

// Synthetic profile constants.
const (
	syntheticCompany  = "Tech Company"
	syntheticDuration = "2020-Present"
	syntheticNote     = "Inferred from X activity"
	syntheticYears    = 3
	maxHomepageText   = 4000
)

// Directory looks up known profiles by handle, then by a shared name part.
type Directory struct {
	byHandle map[string]seed.Profile
	ordered  []seed.Profile
}

// NewDirectory indexes profiles. Later entries with a duplicate handle win.
func NewDirectory(profiles []seed.Profile) *Directory {
	d := &Directory{byHandle: make(map[string]seed.Profile, len(profiles))}
	for _, p := range profiles {
		key := strings.ToLower(seed.NormalizeHandle(p.Handle))
		if _, dup := d.byHandle[key]; !dup {
			d.ordered = append(d.ordered, p)
		}
		d.byHandle[key] = p
	}
	return d
}

// Len returns the number of indexed profiles.
func (d *Directory) Len() int {
	if d == nil {
		return 0
	}
	return len(d.byHandle)
}

// Lookup finds the profile for handle, falling back to the first profile whose name shares
// a word with name.
func (d *Directory) Lookup(handle, name string) (*seed.Profile, bool) {
	if d == nil {
		return nil, false
	}
	if p, ok := d.byHandle[strings.ToLower(seed.NormalizeHandle(handle))]; ok {
		return &p, true
	}

	parts := nameParts(name)
	if len(parts) == 0 {
		return nil, false
	}
	for i := range d.ordered {
		for _, part := range strings.Fields(strings.ToLower(d.ordered[i].Name)) {
			if _, ok := parts[part]; ok {
				p := d.byHandle[strings.ToLower(seed.NormalizeHandle(d.ordered[i].Handle))]
				return &p, true
			}
		}
	}
	return nil, false
}

func nameParts(name string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(name))
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

// Synthesize builds a conservative profile from the classification when no directory entry exists.
func Synthesize(cls types.Classification) *types.Enrichment {
	title := cls.RoleType.Title()
	return &types.Enrichment{
		Headline: title + " (X Profile)",
		Location: "Unknown",
		Skills:   append([]string(nil), cls.Signals...),
		Experience: []types.ExperienceEntry{{
			Company:     syntheticCompany,
			Title:       title,
			Duration:    syntheticDuration,
			Description: syntheticNote,
		}},
		YearsOfExperience: syntheticYears,
		Source:            types.EnrichmentSynthetic,
	}
}

// HomepageReader returns readable text for a URL.
type HomepageReader interface {
	Text(ctx context.Context, url string) (string, error)
}

// Enricher resolves an enrichment profile for each verified developer.
type Enricher struct {
	dir      *Directory
	homepage HomepageReader
	logger   *zap.Logger
}

// NewEnricher creates an Enricher. A nil homepage reader skips homepage text.
func NewEnricher(dir *Directory, homepage HomepageReader, logger *zap.Logger) *Enricher {
	return &Enricher{dir: dir, homepage: homepage, logger: logging.WithFields(logger)}
}

// Enrich returns the directory profile for the developer, or a synthetic one. Homepage fetch
// failures are logged and ignored.
func (e *Enricher) Enrich(ctx context.Context, profile *types.DiscoveredProfile, cls types.Classification) *types.Enrichment {
	var out *types.Enrichment
	if p, ok := e.dir.Lookup(profile.Handle, profile.Name); ok {
		enr := p.Enrichment
		enr.Skills = append([]string(nil), p.Skills...)
		enr.Interests = append([]string(nil), p.Interests...)
		enr.Experience = append([]types.ExperienceEntry(nil), p.Experience...)
		enr.Source = types.EnrichmentDirectory
		out = &enr
		e.logger.Debug("directory profile found", zap.String("handle", profile.Handle), zap.String("matched", p.Handle))
	} else {
		out = Synthesize(cls)
		e.logger.Debug("no directory profile, using synthetic", zap.String("handle", profile.Handle))
	}

	if e.homepage != nil && profile.HomepageURL != "" {
		text, err := e.homepage.Text(ctx, profile.HomepageURL)
		if err != nil {
			e.logger.Debug("homepage fetch failed", zap.String("url", profile.HomepageURL), zap.Error(err))
		} else {
			out.HomepageText = clip(text, maxHomepageText)
		}
	}
	return out
}

func clip(s string, limit int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= limit {
		return string(r)
	}
	return string(r[:limit])
}
