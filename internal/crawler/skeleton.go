package crawler

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// SkeletonRule decides whether a headless fetch came back as a loading shell
// that deserves one fully rendered retry. The markup it keys on drifts with
// the site, so every field is configurable.
type SkeletonRule struct {
	// URLFragment limits the rule to matching request URLs. Empty matches all.
	URLFragment string
	// LoaderMarkers are substrings that indicate a loading placeholder.
	LoaderMarkers []string
	// ResultMarkers are substrings that indicate rendered results.
	ResultMarkers []string
	// ResultSelectors are CSS selectors that indicate rendered results.
	ResultSelectors []string
}

// DefaultSkeletonRule targets the advanced search shell.
func DefaultSkeletonRule() SkeletonRule {
	return SkeletonRule{
		URLFragment:     "/sales/search/people",
		LoaderMarkers:   []string{"initial-load-animation", "salesnav-image"},
		ResultMarkers:   []string{"/sales/lead/", `data-x-search-result="LEAD"`},
		ResultSelectors: []string{"div[data-x-search-result='LEAD']"},
	}
}

// Enabled reports whether the rule can ever match.
func (r SkeletonRule) Enabled() bool {
	return len(r.LoaderMarkers) > 0
}

// Matches reports whether body is a loader shell with no results.
func (r SkeletonRule) Matches(requestURL string, body []byte) bool {
	if !r.Enabled() || len(body) == 0 {
		return false
	}
	if r.URLFragment != "" && !strings.Contains(requestURL, r.URLFragment) {
		return false
	}
	return r.containsAny(body, r.LoaderMarkers) && !r.hasResults(body)
}

func (r SkeletonRule) containsAny(body []byte, markers []string) bool {
	for _, m := range markers {
		if m != "" && bytes.Contains(body, []byte(m)) {
			return true
		}
	}
	return false
}

func (r SkeletonRule) hasResults(body []byte) bool {
	if r.containsAny(body, r.ResultMarkers) {
		return true
	}
	if len(r.ResultSelectors) == 0 {
		return false
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return false
	}
	for _, sel := range r.ResultSelectors {
		if sel != "" && doc.Find(sel).Length() > 0 {
			return true
		}
	}
	return false
}
