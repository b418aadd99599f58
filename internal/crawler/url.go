package crawler

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/JakeFAU/linkedin-prospector/internal/lead"
)

// Result page endpoints for the three page families.
const (
	SearchBaseURL   = "https://www.linkedin.com/search/results/people/"
	SalesNavBaseURL = "https://www.linkedin.com/sales/search/people"
	CompanyBaseURL  = "https://www.linkedin.com/company/"
)

// volatileParams change between visits of the same search and are dropped
// from query labels.
var volatileParams = map[string]struct{}{
	"page":           {},
	"sessionId":      {},
	"_ntb":           {},
	"viewAllFilters": {},
}

var companySlugPattern = regexp.MustCompile(`/company/([^/]+)`)

// queryPair keeps a raw key=value fragment so rebuilt URLs preserve the
// caller's parameter order.
type queryPair struct {
	key string
	raw string
}

type orderedQuery []queryPair

func (q orderedQuery) add(key, value string) orderedQuery {
	if value == "" {
		return q
	}
	return append(q, queryPair{key: key, raw: url.QueryEscape(key) + "=" + url.QueryEscape(value)})
}

func (q orderedQuery) encode() string {
	parts := make([]string, len(q))
	for i, p := range q {
		parts[i] = p.raw
	}
	return strings.Join(parts, "&")
}

func parseOrderedQuery(raw string) orderedQuery {
	var out orderedQuery
	for _, part := range strings.Split(raw, "&") {
		if part == "" {
			continue
		}
		key, _, _ := strings.Cut(part, "=")
		if decoded, err := url.QueryUnescape(key); err == nil {
			key = decoded
		}
		out = append(out, queryPair{key: key, raw: part})
	}
	return out
}

func (q orderedQuery) without(drop map[string]struct{}) orderedQuery {
	out := make(orderedQuery, 0, len(q))
	for _, p := range q {
		if _, ok := drop[p.key]; ok {
			continue
		}
		out = append(out, p)
	}
	return out
}

// withPage replaces the page parameter in place, or appends it.
func (q orderedQuery) withPage(page int) orderedQuery {
	pair := queryPair{key: "page", raw: "page=" + strconv.Itoa(page)}
	out := make(orderedQuery, 0, len(q)+1)
	replaced := false
	for _, p := range q {
		if p.key == "page" {
			if !replaced {
				out = append(out, pair)
				replaced = true
			}
			continue
		}
		out = append(out, p)
	}
	if !replaced {
		out = append(out, pair)
	}
	return out
}

// SearchURL builds the keyword search URL for page.
func SearchURL(req lead.SearchRequest, page int) string {
	q := orderedQuery{}.
		add("page", strconv.Itoa(page)).
		add("keywords", req.Keywords).
		add("titleFreeText", req.Title).
		add("geoUrn", req.Location).
		add("company", req.Company)
	return SearchBaseURL + "?" + q.encode()
}

// SalesNavURL builds the advanced search URL for page.
func SalesNavURL(req lead.SearchRequest, page int) string {
	q := orderedQuery{}.
		add("page", strconv.Itoa(page)).
		add("query", req.Keywords).
		add("titleIncluded", req.Title).
		add("geoIncluded", req.Location).
		add("currentCompany", req.Company).
		add("industryIncluded", req.Industry)
	return SalesNavBaseURL + "?" + q.encode()
}

// CompanySlug reduces "acme", "/acme/" or "company/acme" to "acme".
func CompanySlug(company string) string {
	parts := strings.Split(strings.Trim(company, "/"), "/")
	return parts[len(parts)-1]
}

// CompanyURL builds the organization roster URL for page.
func CompanyURL(req lead.SearchRequest, page int) string {
	q := orderedQuery{}.
		add("page", strconv.Itoa(page)).
		add("keywords", req.Keywords)
	return CompanyBaseURL + CompanySlug(req.Company) + "/people/?" + q.encode()
}

// DetectSource picks the page family for an arbitrary result URL.
func DetectSource(raw string) lead.Source {
	switch {
	case strings.Contains(raw, "/sales/"):
		return lead.SourceSalesNavigator
	case strings.Contains(raw, "/company/") && strings.Contains(raw, "/people"):
		return lead.SourceCompany
	default:
		return lead.SourceSearch
	}
}

// CanonicalQueryURL drops the volatile parameters so repeated runs of the
// same search share a label.
func CanonicalQueryURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.RawQuery = parseOrderedQuery(u.RawQuery).without(volatileParams).encode()
	return u.String()
}

// PageURL sets the page parameter on raw, keeping every other parameter.
func PageURL(raw string, page int) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	u.RawQuery = parseOrderedQuery(u.RawQuery).withPage(page).encode()
	return u.String(), nil
}

// CompanyFromURL extracts the roster slug from a /company/{slug}/ URL.
func CompanyFromURL(raw string) string {
	m := companySlugPattern.FindStringSubmatch(raw)
	if m == nil {
		return ""
	}
	return m[1]
}

// ValidateResultURL rejects anything that is not a LinkedIn URL.
func ValidateResultURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return errors.New("url is required")
	}
	if !strings.Contains(raw, "linkedin.com") {
		return errors.New("url must be a linkedin.com URL")
	}
	if _, err := url.Parse(raw); err != nil {
		return fmt.Errorf("parse url: %w", err)
	}
	return nil
}
