package crawler

import (
	"net/http"
	"strings"
	"time"
)

// Prepare names the page-preparation routine a fetcher runs after navigation
// and before capturing the DOM.
type Prepare string

// Preparation routines.
const (
	// PrepareNone captures the DOM as soon as the body is ready.
	PrepareNone Prepare = ""
	// PrepareScroll scrolls halfway down and back to trigger lazy rendering.
	PrepareScroll Prepare = "scroll"
	// PrepareWaitForLeads polls for advanced search result rows, scrolling
	// between polls, then returns to the top.
	PrepareWaitForLeads Prepare = "wait_for_leads"
	// PrepareExpand scrolls through a profile and clicks its visible
	// "show more" controls so collapsed sections are in the DOM.
	PrepareExpand Prepare = "expand"
)

// PrepareFor picks the preparation routine for a result URL.
func PrepareFor(rawURL string) Prepare {
	if strings.Contains(rawURL, "/sales/search/people") {
		return PrepareWaitForLeads
	}
	return PrepareScroll
}

// FetchRequest captures everything needed to fetch a URL.
type FetchRequest struct {
	URL      string
	Headless bool
	Prepare  Prepare
}

// Page is the result returned by a Fetcher implementation.
type Page struct {
	URL        string
	FinalURL   string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
	Headless   bool
}

// ContentLength reports the body size.
func (p Page) ContentLength() int {
	return len(p.Body)
}

// LandingURL is the URL the browser ended on, falling back to the request URL.
func (p Page) LandingURL() string {
	if p.FinalURL != "" {
		return p.FinalURL
	}
	return p.URL
}
