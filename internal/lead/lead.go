// Package lead defines the profile record produced by crawls and persisted by
// the store, plus the normalization rules that give each record its identity.
package lead

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Source identifies which page family a lead was captured from.
type Source string

// Supported page families.
const (
	SourceSearch         Source = "linkedin_search"
	SourceSalesNavigator Source = "sales_navigator"
	SourceCompany        Source = "company_employees"
)

// Sources lists every supported Source in reporting order.
var Sources = []Source{SourceSearch, SourceSalesNavigator, SourceCompany}

// ParseSource validates a raw source name.
func ParseSource(raw string) (Source, error) {
	for _, src := range Sources {
		if string(src) == raw {
			return src, nil
		}
	}
	return "", fmt.Errorf("unknown lead source %q", raw)
}

// Lead is a captured profile record. Optional fields are pointers so that an
// upsert can tell "not observed" apart from an empty value.
type Lead struct {
	ID                int64     `db:"id" json:"id,omitempty"`
	DedupKey          string    `db:"dedup_key" json:"-"`
	ProfileURL        *string   `db:"linkedin_url" json:"linkedin_url"`
	FullName          string    `db:"full_name" json:"full_name"`
	Headline          *string   `db:"headline" json:"headline"`
	CurrentTitle      *string   `db:"current_title" json:"current_title"`
	CurrentCompany    *string   `db:"current_company" json:"current_company"`
	Location          *string   `db:"location" json:"location"`
	ConnectionDegree  *string   `db:"connection_degree" json:"connection_degree"`
	MutualConnections *int      `db:"mutual_connections" json:"mutual_connections"`
	Source            Source    `db:"source" json:"source"`
	SearchQuery       *string   `db:"search_query" json:"search_query"`
	ScrapedAt         time.Time `db:"scraped_at" json:"scraped_at"`
}

// Key returns the dedup key: the normalized profile URL when known, otherwise
// "name|company".
func (l Lead) Key() string {
	if url := Value(l.ProfileURL); url != "" {
		return url
	}
	return l.FullName + "|" + Value(l.CurrentCompany)
}

// Normalize canonicalizes the profile URL, derives the dedup key and stamps a
// capture time when missing.
func (l Lead) Normalize(now time.Time) Lead {
	if l.ProfileURL != nil {
		canonical := CanonicalURL(*l.ProfileURL)
		if canonical == "" {
			l.ProfileURL = nil
		} else {
			l.ProfileURL = &canonical
		}
	}
	if l.ScrapedAt.IsZero() {
		l.ScrapedAt = now
	}
	l.ScrapedAt = l.ScrapedAt.UTC()
	l.DedupKey = l.Key()
	return l
}

var linkedinHost = regexp.MustCompile(`(?i)^https?://(www\.)?linkedin\.com`)

var bareLinkedinHost = regexp.MustCompile(`(?i)^(?:www\.)?linkedin\.com`)

// CanonicalURL forces scheme and host to https://www.linkedin.com, strips the
// query string and any trailing slash. Relative and protocol-relative forms are
// resolved against the canonical host.
func CanonicalURL(raw string) string {
	url := strings.TrimSpace(raw)
	if url == "" {
		return ""
	}
	switch {
	case strings.HasPrefix(url, "//"):
		url = "https:" + url
	case strings.HasPrefix(url, "/"):
		url = "https://www.linkedin.com" + url
	case bareLinkedinHost.MatchString(url):
		url = "https://" + strings.TrimLeft(url, "/")
	}
	if idx := strings.Index(url, "?"); idx >= 0 {
		url = url[:idx]
	}
	url = strings.TrimRight(url, "/")
	return linkedinHost.ReplaceAllString(url, "https://www.linkedin.com")
}

// NormalizeProfileURL canonicalizes raw and returns "" unless it points at a
// member profile (/in/) or an advanced-search lead page (/sales/lead/).
func NormalizeProfileURL(raw string) string {
	url := CanonicalURL(raw)
	if !strings.Contains(url, "/in/") && !strings.Contains(url, "/sales/lead/") {
		return ""
	}
	return url
}

// StringPtr returns nil for empty strings.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Value dereferences an optional field, returning "" for nil.
func Value(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
