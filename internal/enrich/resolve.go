package enrich

import (
	"context"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/linkedin-prospector/internal/crawler"
	"github.com/JakeFAU/linkedin-prospector/internal/lead"
)

const memberPrefix = "https://www.linkedin.com/in/"

var (
	vanityPattern = regexp.MustCompile(`(?i)/in/([^/?#]+)/?`)
	parenthetical = regexp.MustCompile(`\([^)]*\)`)
)

// profileLinkSelectors find member profile links on an advanced-search lead
// page.
var profileLinkSelectors = []string{"a[href*='/in/']", "a[data-anonymize='person-name'][href]"}

// Target is what is known about a lead before enrichment.
type Target struct {
	LeadID   int64
	URL      string
	FullName string
	Company  string
	Location string
}

// TargetFor builds a Target from a stored lead.
func TargetFor(l lead.Lead) Target {
	return Target{
		LeadID:   l.ID,
		URL:      lead.Value(l.ProfileURL),
		FullName: l.FullName,
		Company:  lead.Value(l.CurrentCompany),
		Location: lead.Value(l.Location),
	}
}

// MatchScore ranks how well a search result fits t. Name carries the most
// weight, then company, then location, plus a bonus for a member profile URL.
func MatchScore(candidate lead.Lead, t Target) int {
	score := nameScore(t.FullName, candidate.FullName) +
		companyScore(t.Company, lead.Value(candidate.CurrentCompany)) +
		locationScore(t.Location, lead.Value(candidate.Location))
	if strings.Contains(lead.Value(candidate.ProfileURL), "/in/") {
		score += 10
	}
	return score
}

// resolve finds the member profile URL for t. It returns "" when t has no URL
// or nothing could be found.
func (e *Enricher) resolve(ctx context.Context, t Target) string {
	raw := strings.TrimSpace(t.URL)
	if raw == "" {
		return ""
	}
	if normalized := lead.NormalizeProfileURL(raw); strings.HasPrefix(normalized, memberPrefix) {
		return normalized
	}
	if vanity := profileVanity(raw); vanity != "" {
		return memberPrefix + vanity
	}
	if !strings.Contains(raw, "/sales/") {
		return e.searchProfile(ctx, t)
	}

	doc, err := e.fetch(ctx, raw, crawler.PrepareScroll)
	if err != nil {
		e.logger.Debug("lead page fetch failed", zap.String("url", raw), zap.Error(err))
	} else {
		for _, sel := range profileLinkSelectors {
			for _, href := range doc.Find(sel).Map(attrHref) {
				if candidate := lead.NormalizeProfileURL(href); strings.Contains(candidate, "/in/") {
					return candidate
				}
			}
		}
	}
	return e.searchProfile(ctx, t)
}

// searchProfile runs people searches from the most to the least specific
// query and returns the best-ranked member profile of the first search that
// yields results.
func (e *Enricher) searchProfile(ctx context.Context, t Target) string {
	if strings.TrimSpace(t.FullName) == "" {
		return ""
	}
	for _, query := range searchQueries(t) {
		if ctx.Err() != nil {
			return ""
		}
		page, err := e.fetchPage(ctx, crawler.SearchURL(lead.SearchRequest{Keywords: query}, 1), crawler.PrepareScroll)
		if err != nil {
			e.logger.Debug("people search failed", zap.String("query", query), zap.Error(err))
			continue
		}
		candidates, err := e.extractor.Extract(page, crawler.Binding{Kind: lead.SourceSearch, Query: query})
		if err != nil || len(candidates) == 0 {
			continue
		}
		sort.SliceStable(candidates, func(i, j int) bool {
			return MatchScore(candidates[i], t) > MatchScore(candidates[j], t)
		})
		if best := lead.Value(candidates[0].ProfileURL); strings.Contains(best, "/in/") {
			return best
		}
		return ""
	}
	return ""
}

// searchQueries lists distinct people-search queries for t, with and without
// any parenthetical in the name.
func searchQueries(t Target) []string {
	full := strings.TrimSpace(t.FullName)
	clean := strings.TrimSpace(parenthetical.ReplaceAllString(full, ""))
	join := func(parts ...string) string {
		var kept []string
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				kept = append(kept, p)
			}
		}
		return strings.Join(kept, " ")
	}
	candidates := []string{
		join(full, t.Company, t.Location),
		join(clean, t.Company, t.Location),
		join(full, t.Company),
		join(clean, t.Company),
		join(full, t.Location),
		join(clean, t.Location),
		full,
		clean,
	}
	seen := make(map[string]struct{}, len(candidates))
	var out []string
	for _, q := range candidates {
		if q == "" {
			continue
		}
		if _, dup := seen[q]; dup {
			continue
		}
		seen[q] = struct{}{}
		out = append(out, q)
	}
	return out
}

func profileVanity(raw string) string {
	path := raw
	if u, err := url.Parse(raw); err == nil {
		path = u.Path
	}
	if unescaped, err := url.PathUnescape(path); err == nil {
		path = unescaped
	}
	m := vanityPattern.FindStringSubmatch(path)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

func tokens(s string) string {
	return strings.TrimSpace(strings.Join(strings.Fields(nonAlnum.ReplaceAllString(strings.ToLower(s), " ")), " "))
}

func overlap(a, b []string) int {
	set := make(map[string]struct{}, len(a))
	for _, w := range a {
		set[w] = struct{}{}
	}
	n := 0
	for _, w := range uniq(b) {
		if _, ok := set[w]; ok {
			n++
		}
	}
	return n
}

func uniq(words []string) []string {
	seen := make(map[string]struct{}, len(words))
	out := words[:0:0]
	for _, w := range words {
		if _, ok := seen[w]; !ok {
			seen[w] = struct{}{}
			out = append(out, w)
		}
	}
	return out
}

func nameScore(expected, actual string) int {
	left, right := tokens(expected), tokens(actual)
	switch {
	case left == "" || right == "":
		return 0
	case left == right:
		return 40
	}
	if n := overlap(strings.Fields(left), strings.Fields(right)); n > 0 {
		return min(25, n*10)
	}
	if strings.Contains(right, left) || strings.Contains(left, right) {
		return 10
	}
	return 0
}

func companyScore(expected, actual string) int {
	left, right := tokens(expected), tokens(actual)
	switch {
	case left == "" || right == "":
		return 0
	case left == right:
		return 20
	case strings.Contains(right, left) || strings.Contains(left, right):
		return 12
	}
	return min(8, overlap(strings.Fields(left), strings.Fields(right))*4)
}

// locationScore compares the expected city, taken from the raw text before
// its first comma, against the candidate's location.
func locationScore(expected, actual string) int {
	left, right := tokens(expected), tokens(actual)
	switch {
	case left == "" || right == "":
		return 0
	case left == right:
		return 8
	}
	city := tokens(strings.Split(expected, ",")[0])
	if !strings.Contains(expected, ",") {
		city = strings.Split(left, " ")[0]
	}
	if city != "" && strings.Contains(right, city) {
		return 6
	}
	return 0
}
