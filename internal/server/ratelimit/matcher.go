package ratelimit

import "strings"

// exempt routes are never counted.
var exempt = map[string]struct{}{
	"GET /health": {},
}

func isExempt(method, path string) bool {
	_, ok := exempt[method+" "+path]
	return ok
}

// ruleFor returns the most specific rule covering method and path. An exact path beats any
// prefix, and a longer prefix beats a shorter one.
func ruleFor(rules []Rule, method, path string) (Rule, bool) {
	best := -1
	for i, r := range rules {
		if !r.covers(method, path) {
			continue
		}
		if !strings.HasSuffix(r.Path, "/") {
			return r, true
		}
		if best < 0 || len(r.Path) > len(rules[best].Path) {
			best = i
		}
	}
	if best < 0 {
		return Rule{}, false
	}
	return rules[best], true
}
