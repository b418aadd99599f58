// Package headless contains the browser-backed page fetcher.
package headless

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/JakeFAU/linkedin-prospector/internal/browser"
	"github.com/JakeFAU/linkedin-prospector/internal/crawler"
)

// leadRowSelector matches only mounted advanced-search rows. Loading
// skeletons reuse the generic list item classes, so those are not counted.
const leadRowSelector = `div[data-x-search-result='LEAD'], a[data-lead-search-result*='profile-link'], a[href*='/sales/lead/']`

// leadRowsScript counts rendered advanced-search rows.
const leadRowsScript = `document.querySelectorAll("` + leadRowSelector + `").length`

// Tuning for the wait_for_leads routine.
const (
	leadPollRounds   = 12
	leadPollInterval = time.Second
	settleDelay      = 500 * time.Millisecond
)

// Opener starts a browser session on the shared profile.
type Opener interface {
	Open(ctx context.Context, headless bool) (*browser.Session, error)
}

// Fetcher implements crawler.Fetcher by driving Chrome through chromedp. It
// opens a fresh session per request in the mode the request asks for.
type Fetcher struct {
	opener Opener
	logger *zap.Logger
}

// NewChromedp creates a fetcher backed by the launcher.
func NewChromedp(opener Opener, logger *zap.Logger) (*Fetcher, error) {
	if opener == nil {
		return nil, fmt.Errorf("browser opener is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{opener: opener, logger: logger.Named("fetcher")}, nil
}

// Fetch navigates, runs the requested preparation routine and returns the
// rendered DOM.
func (f *Fetcher) Fetch(ctx context.Context, request crawler.FetchRequest) (crawler.Page, error) {
	sess, err := f.opener.Open(ctx, request.Headless)
	if err != nil {
		return crawler.Page{}, err
	}
	defer sess.Close()

	meta := newResponseMeta()
	chromedp.ListenTarget(sess.Context(), meta.captureEvent)

	start := time.Now()
	var html, finalURL string
	actions := []chromedp.Action{
		chromedp.ActionFunc(func(ctx context.Context) error {
			if err := network.Enable().Do(ctx); err != nil {
				return fmt.Errorf("enable network domain: %w", err)
			}
			return nil
		}),
		chromedp.Navigate(request.URL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(settleDelay),
		prepareAction(request.Prepare),
		chromedp.Location(&finalURL),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	}
	if err := sess.Run(ctx, actions...); err != nil {
		return crawler.Page{}, fmt.Errorf("chromedp run: %w", err)
	}

	status, headers, _ := meta.snapshotWithFallbacks(request.URL, finalURL)
	if headers == nil {
		headers = http.Header{}
	}
	f.logger.Debug("page fetched",
		zap.String("url", request.URL),
		zap.String("final_url", finalURL),
		zap.Int("status", status),
		zap.Bool("headless", request.Headless),
		zap.Duration("duration", time.Since(start)),
	)
	return crawler.Page{
		URL:        request.URL,
		FinalURL:   finalURL,
		StatusCode: status,
		Headers:    headers,
		Body:       []byte(html),
		Duration:   time.Since(start),
		Headless:   request.Headless,
	}, nil
}

func prepareAction(p crawler.Prepare) chromedp.Action {
	switch p {
	case crawler.PrepareWaitForLeads:
		return chromedp.ActionFunc(waitForLeads)
	case crawler.PrepareScroll:
		return chromedp.ActionFunc(scrollHalfway)
	case crawler.PrepareExpand:
		return chromedp.ActionFunc(expandSections)
	default:
		return chromedp.ActionFunc(func(context.Context) error { return nil })
	}
}

// waitForLeads polls for result rows, nudging lazy rendering with a scroll
// between polls, then returns to the top.
func waitForLeads(ctx context.Context) error {
	for i := 0; i < leadPollRounds; i++ {
		var rows int
		if err := chromedp.Evaluate(leadRowsScript, &rows).Do(ctx); err != nil {
			return fmt.Errorf("count lead rows: %w", err)
		}
		if rows > 0 {
			break
		}
		if err := chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight * 0.55)`, nil).Do(ctx); err != nil {
			return fmt.Errorf("scroll: %w", err)
		}
		if err := chromedp.Sleep(leadPollInterval).Do(ctx); err != nil {
			return err
		}
	}
	if err := chromedp.Evaluate(`window.scrollTo(0, 0)`, nil).Do(ctx); err != nil {
		return fmt.Errorf("scroll to top: %w", err)
	}
	return chromedp.Sleep(settleDelay).Do(ctx)
}

func scrollHalfway(ctx context.Context) error {
	if err := chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight / 2)`, nil).Do(ctx); err != nil {
		return fmt.Errorf("scroll: %w", err)
	}
	if err := chromedp.Sleep(time.Second).Do(ctx); err != nil {
		return err
	}
	if err := chromedp.Evaluate(`window.scrollTo(0, 0)`, nil).Do(ctx); err != nil {
		return fmt.Errorf("scroll to top: %w", err)
	}
	return chromedp.Sleep(settleDelay).Do(ctx)
}

// expandScript clicks up to four visible controls per label and reports how
// many it clicked.
const expandScript = `(() => {
  const labels = ["show more", "see more", "show all activity", "show all experiences", "show all education"];
  let clicked = 0;
  for (const label of labels) {
    let n = 0;
    for (const el of document.querySelectorAll("button, a")) {
      if (n >= 4) break;
      const text = (el.innerText || "").trim().toLowerCase();
      if (!text.startsWith(label) || el.offsetParent === null) continue;
      if (el.tagName === "A" && el.href) continue;
      el.click();
      n++;
    }
    clicked += n;
  }
  return clicked;
})()`

// expandSections walks the page to mount lazy sections, then opens
// collapsed ones.
func expandSections(ctx context.Context) error {
	for _, js := range []string{
		`window.scrollTo(0, 260)`,
		`window.scrollTo(0, document.body.scrollHeight * 0.55)`,
		`window.scrollTo(0, 0)`,
	} {
		if err := chromedp.Evaluate(js, nil).Do(ctx); err != nil {
			return fmt.Errorf("scroll: %w", err)
		}
		if err := chromedp.Sleep(settleDelay).Do(ctx); err != nil {
			return err
		}
	}
	var clicked int
	if err := chromedp.Evaluate(expandScript, &clicked).Do(ctx); err != nil {
		return fmt.Errorf("expand sections: %w", err)
	}
	if clicked == 0 {
		return nil
	}
	return chromedp.Sleep(settleDelay).Do(ctx)
}

type responseMeta struct {
	mu      sync.RWMutex
	status  int
	headers http.Header
	url     string
}

func newResponseMeta() *responseMeta {
	return &responseMeta{
		headers: http.Header{},
	}
}

// capture keeps the most recent document response, so redirects end on the
// landing page's status.
func (m *responseMeta) capture(event *network.EventResponseReceived) {
	if event.Type != network.ResourceTypeDocument || event.Response == nil {
		return
	}
	headers := http.Header{}
	for key, value := range event.Response.Headers {
		switch v := value.(type) {
		case string:
			headers.Add(key, v)
		case []string:
			for _, entry := range v {
				headers.Add(key, entry)
			}
		case []interface{}:
			for _, entry := range v {
				headers.Add(key, fmt.Sprint(entry))
			}
		default:
			headers.Add(key, fmt.Sprint(v))
		}
	}
	m.mu.Lock()
	m.status = int(event.Response.Status)
	m.headers = headers
	m.url = event.Response.URL
	m.mu.Unlock()
}

func (m *responseMeta) snapshot() (int, http.Header, string) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status, cloneHeader(m.headers), m.url
}

func (m *responseMeta) captureEvent(ev any) {
	if resp, ok := ev.(*network.EventResponseReceived); ok {
		m.capture(resp)
	}
}

func (m *responseMeta) snapshotWithFallbacks(requestURL, finalURL string) (int, http.Header, string) {
	status, headers, url := m.snapshot()
	switch {
	case url != "":
	case finalURL != "":
		url = finalURL
	default:
		url = requestURL
	}

	if status == 0 {
		status = http.StatusOK
	}
	return status, headers, url
}

func cloneHeader(src http.Header) http.Header {
	if src == nil {
		return nil
	}
	dst := make(http.Header, len(src))
	for k, values := range src {
		for _, v := range values {
			dst.Add(k, v)
		}
	}
	return dst
}
