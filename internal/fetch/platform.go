package fetch

import (
	"net/url"
	"strings"
)

// Platform identifies the site a page comes from. Job boards and the places candidates publish
// about themselves need different extraction.
type Platform string

// Job boards.
const (
	PlatformGreenhouse Platform = "greenhouse"
	PlatformLever      Platform = "lever"
	PlatformWorkday    Platform = "workday"
	PlatformAshby      Platform = "ashby"
)

// Candidate homepages.
const (
	PlatformGitHub      Platform = "github"
	PlatformGitHubPages Platform = "github_pages"
	PlatformMedium      Platform = "medium"
	PlatformSubstack    Platform = "substack"
	PlatformDevTo       Platform = "devto"
)

// PlatformUnknown is any other site.
const PlatformUnknown Platform = "unknown"

type site struct {
	platform Platform
	jobBoard bool
	hosts    []string
	content  []string
	noise    []string
}

// sites is checked in order; the first host suffix match wins.
var sites = []site{
	{
		platform: PlatformGreenhouse,
		jobBoard: true,
		hosts:    []string{"greenhouse.io"},
		content:  []string{".job__description.body", ".job__description", "#content", ".job-post-container"},
		noise:    []string{".application--wrapper", ".voluntary-self-id-wrapper", "#usa_self_id_section", ".post-apply"},
	},
	{
		platform: PlatformLever,
		jobBoard: true,
		hosts:    []string{"lever.co"},
		content:  []string{".posting-page", ".posting-description", ".section-wrapper.page-full-width"},
		noise:    []string{".apply-section", ".lever-application-form", ".posting-apply"},
	},
	{
		platform: PlatformWorkday,
		jobBoard: true,
		hosts:    []string{"myworkdayjobs.com", "workday.com"},
		content:  []string{"[data-automation-id='jobPostingDescription']", "[data-automation-id='jobDescription']"},
		noise:    []string{"[data-automation-id='applyButton']", "[data-automation-id='similarJobs']"},
	},
	{
		platform: PlatformAshby,
		jobBoard: true,
		hosts:    []string{"ashbyhq.com"},
		content:  []string{"[class*='descriptionText']", "main"},
		noise:    []string{"[class*='applicationForm']", "[class*='ApplicationForm']"},
	},
	{
		platform: PlatformGitHubPages,
		hosts:    []string{"github.io"},
		content:  []string{"main", "article", "#about", ".about", ".content"},
		noise:    []string{".post-list", ".pagination"},
	},
	{
		platform: PlatformGitHub,
		hosts:    []string{"github.com"},
		content:  []string{".p-note.user-profile-bio", "article.markdown-body", ".vcard-details"},
		noise:    []string{".js-yearly-contributions", ".js-pinned-items-reorder-container", ".footer"},
	},
	{
		platform: PlatformMedium,
		hosts:    []string{"medium.com"},
		content:  []string{"article", "main"},
		noise:    []string{"[data-testid='headerSocialShareButton']", "[aria-label='responses']"},
	},
	{
		platform: PlatformSubstack,
		hosts:    []string{"substack.com"},
		content:  []string{".about-content", ".available-content", "article"},
		noise:    []string{".subscribe-widget", ".subscription-widget-wrap", ".post-footer"},
	},
	{
		platform: PlatformDevTo,
		hosts:    []string{"dev.to"},
		content:  []string{".profile-header__details", "#article-body", "main"},
		noise:    []string{".crayons-article-actions", "#comments"},
	},
}

// generic serves unrecognized sites, which may be either job postings or personal pages.
var generic = site{
	platform: PlatformUnknown,
	content: []string{
		"[data-testid='job-description']", "#job-description", ".job-description", ".posting-content",
		"main", "article", "#about", ".about", ".bio", "#content", ".content",
	},
}

// baseNoise is stripped from every page.
var baseNoise = []string{
	"form", ".application-form", ".apply-button-container",
	".eeo-statement", ".voluntary-disclosure", ".self-identification",
	".social-share", ".share-buttons",
	".cookie-banner", ".cookie-consent", ".gdpr-notice",
}

func lookup(p Platform) site {
	for _, s := range sites {
		if s.platform == p {
			return s
		}
	}
	return generic
}

// DetectPlatform identifies the site of rawURL from its host.
func DetectPlatform(rawURL string) Platform {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return PlatformUnknown
	}
	host := strings.ToLower(parsed.Hostname())
	for _, s := range sites {
		for _, h := range s.hosts {
			if host == h || strings.HasSuffix(host, "."+h) {
				return s.platform
			}
		}
	}
	return PlatformUnknown
}

// IsJobBoard reports whether p hosts job postings.
func (p Platform) IsJobBoard() bool {
	return lookup(p).jobBoard
}

// SelectorsFor returns the content and noise selectors used to extract text from p.
func SelectorsFor(p Platform) Selectors {
	s := lookup(p)
	content := s.content
	if p != PlatformUnknown {
		// Fall back to the generic selectors when a site redesign breaks ours.
		content = append(append([]string{}, s.content...), generic.content...)
	}
	noise := append(append([]string{}, baseNoise...), s.noise...)
	return Selectors{Content: content, Noise: noise}
}
