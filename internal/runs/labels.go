package runs

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/JakeFAU/linkedin-prospector/internal/lead"
)

// MaxLabelLen bounds run labels stored as scrape_runs.query_text.
const MaxLabelLen = 140

const maxSalesNavTerms = 5

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	salesNavTerm  = regexp.MustCompile(`text:([^,)]+)`)
)

func collapse(text string) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(text, " "))
}

// SummarizeText collapses whitespace and cuts text to MaxLabelLen runes,
// marking the cut with "...".
func SummarizeText(text string) string {
	value := collapse(text)
	runes := []rune(value)
	if len(runes) <= MaxLabelLen {
		return value
	}
	return strings.TrimRight(string(runes[:MaxLabelLen-1]), " ") + "..."
}

// unescape decodes percent escapes, leaving malformed input untouched.
func unescape(s string) string {
	out, err := url.PathUnescape(s)
	if err != nil {
		return s
	}
	return out
}

func dedupeFold(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		key := strings.ToLower(v)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	return out
}

// salesNavTerms pulls the text:<value> filters out of the encoded query
// payload of an advanced search URL.
func salesNavTerms(raw string, u *url.URL) []string {
	blob := unescape(unescape(raw))
	if q := u.Query().Get("query"); q != "" {
		blob = unescape(unescape(q))
	}
	var terms []string
	for _, m := range salesNavTerm.FindAllStringSubmatch(blob, -1) {
		if term := collapse(unescape(m[1])); term != "" {
			terms = append(terms, term)
		}
	}
	terms = dedupeFold(terms)
	if len(terms) > maxSalesNavTerms {
		terms = terms[:maxSalesNavTerms]
	}
	return terms
}

// SummarizeURL labels a pasted result URL. source may be empty.
func SummarizeURL(raw string, source lead.Source) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return SummarizeText(raw)
	}
	path := u.Path

	switch {
	case strings.Contains(path, "/sales/search/people") || source == lead.SourceSalesNavigator:
		if terms := salesNavTerms(raw, u); len(terms) > 0 {
			return SummarizeText("Sales Nav: " + strings.Join(terms, ", "))
		}
		return "Sales Nav URL search"
	case strings.Contains(path, "/search/results/people"):
		if kw := collapse(unescape(u.Query().Get("keywords"))); kw != "" {
			return SummarizeText("LinkedIn people: " + kw)
		}
		return "LinkedIn people search URL"
	case strings.Contains(path, "/company/") && strings.Contains(path, "/people"):
		_, rest, _ := strings.Cut(path, "/company/")
		slug, _, _ := strings.Cut(rest, "/")
		return SummarizeText("Company people: " + slug)
	}

	host := u.Host
	if host == "" {
		host = "linkedin.com"
	}
	return SummarizeText(host + path)
}

// SummarizeRequest labels a form search.
func SummarizeRequest(source lead.Source, req lead.SearchRequest) string {
	var bits []string
	add := func(prefix, value string) {
		if v := strings.TrimSpace(value); v != "" {
			bits = append(bits, prefix+v)
		}
	}
	add("", req.Keywords)
	add("title:", req.Title)
	add("location:", req.Location)
	add("company:", req.Company)
	add("industry:", req.Industry)

	base := "search"
	if len(bits) > 0 {
		base = strings.Join(bits, ", ")
	}
	switch source {
	case lead.SourceSalesNavigator:
		base = "Sales Nav query: " + base
	case lead.SourceCompany:
		base = "Company employees: " + base
	default:
		base = "LinkedIn search: " + base
	}
	return SummarizeText(base)
}
