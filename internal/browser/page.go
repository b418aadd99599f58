package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/JakeFAU/linkedin-prospector/internal/connect"
)

// handleAttr tags located elements so later actions can find them again.
const handleAttr = "data-prospector-handle"

// findScript locates the first visible element for a connect.Locator. It
// always returns an object so a miss never decodes as JSON null.
const findScript = `(function(css, text, scope, handle) {
  const visible = (el) => {
    const r = el.getBoundingClientRect();
    const s = window.getComputedStyle(el);
    return r.width > 0 && r.height > 0 && s.visibility !== 'hidden' && s.display !== 'none';
  };
  let root = document;
  if (scope) {
    root = Array.from(document.querySelectorAll(scope)).find(visible);
    if (!root) return {found: false};
  }
  const want = text.toLowerCase();
  for (const el of root.querySelectorAll(css)) {
    if (!visible(el)) continue;
    const inner = (el.innerText || el.textContent || '').trim();
    if (want && !inner.toLowerCase().includes(want)) continue;
    el.setAttribute('` + handleAttr + `', handle);
    return {
      found: true,
      aria: el.getAttribute('aria-label') || '',
      text: inner,
      href: el.getAttribute('href') || '',
    };
  }
  return {found: false};
})(%s, %s, %s, %s)`

type findResult struct {
	Found bool   `json:"found"`
	Aria  string `json:"aria"`
	Text  string `json:"text"`
	Href  string `json:"href"`
}

// Snapshotter stores debug artifacts captured during interactive flows.
type Snapshotter interface {
	SaveHTML(ctx context.Context, name string, body []byte) (string, error)
	SaveScreenshot(ctx context.Context, name string, png []byte) (string, error)
}

// Page drives one open Session for the send flow. It implements
// connect.Driver.
type Page struct {
	sess      *Session
	snapshots Snapshotter
	logger    *zap.Logger
	seq       atomic.Int64
}

var _ connect.Driver = (*Page)(nil)

// NewPage wraps sess. snapshots may be nil.
func NewPage(sess *Session, snapshots Snapshotter, logger *zap.Logger) *Page {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Page{sess: sess, snapshots: snapshots, logger: logger.Named("page")}
}

// Navigate loads url and waits for the body.
func (p *Page) Navigate(ctx context.Context, url string) error {
	if err := p.sess.Run(ctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

// CurrentURL reports the location bar.
func (p *Page) CurrentURL(ctx context.Context) (string, error) {
	var loc string
	if err := p.sess.Run(ctx, chromedp.Location(&loc)); err != nil {
		return "", fmt.Errorf("read location: %w", err)
	}
	return loc, nil
}

// ScrollTo scrolls the window to vertical offset y.
func (p *Page) ScrollTo(ctx context.Context, y int) error {
	return p.sess.Run(ctx, chromedp.Evaluate(fmt.Sprintf("window.scrollTo(0, %d)", y), nil))
}

// Find evaluates loc in the page and tags the match for later actions.
func (p *Page) Find(ctx context.Context, loc connect.Locator) (connect.Element, bool, error) {
	handle := "h" + strconv.FormatInt(p.seq.Add(1), 10)
	script := fmt.Sprintf(findScript, jsString(loc.CSS), jsString(loc.Text), jsString(loc.Scope), jsString(handle))
	var res findResult
	if err := p.sess.Run(ctx, chromedp.Evaluate(script, &res)); err != nil {
		return connect.Element{}, false, fmt.Errorf("find %q: %w", loc.CSS, err)
	}
	if !res.Found {
		return connect.Element{}, false, nil
	}
	return connect.Element{Handle: handle, AriaLabel: res.Aria, Text: res.Text, Href: res.Href}, true, nil
}

// Click scrolls the element into view and clicks it.
func (p *Page) Click(ctx context.Context, el connect.Element) error {
	sel := handleSelector(el)
	if err := p.sess.Run(ctx,
		chromedp.ScrollIntoView(sel, chromedp.ByQuery),
		chromedp.Click(sel, chromedp.ByQuery, chromedp.NodeVisible),
	); err != nil {
		return fmt.Errorf("click %s: %w", el.Handle, err)
	}
	return nil
}

// Fill replaces the element's value with text, typed key by key.
func (p *Page) Fill(ctx context.Context, el connect.Element, text string) error {
	sel := handleSelector(el)
	if err := p.sess.Run(ctx,
		chromedp.Focus(sel, chromedp.ByQuery),
		chromedp.SetValue(sel, "", chromedp.ByQuery),
		chromedp.SendKeys(sel, text, chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("fill %s: %w", el.Handle, err)
	}
	return nil
}

// Capture saves a screenshot and the page HTML. Failures are logged only.
func (p *Page) Capture(ctx context.Context, name string) {
	if p.snapshots == nil {
		return
	}
	var (
		png  []byte
		html string
	)
	if err := p.sess.Run(ctx,
		chromedp.CaptureScreenshot(&png),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	); err != nil {
		p.logger.Debug("capture failed", zap.String("name", name), zap.Error(err))
		return
	}
	if _, err := p.snapshots.SaveScreenshot(ctx, name, png); err != nil {
		p.logger.Debug("save screenshot failed", zap.String("name", name), zap.Error(err))
	}
	if _, err := p.snapshots.SaveHTML(ctx, name, []byte(html)); err != nil {
		p.logger.Debug("save html failed", zap.String("name", name), zap.Error(err))
	}
}

// WaitForURL polls the location until match accepts it or timeout passes.
func (p *Page) WaitForURL(ctx context.Context, timeout, interval time.Duration, match func(string) bool) (string, bool, error) {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		current, err := p.CurrentURL(ctx)
		if err == nil && match(current) {
			return current, true, nil
		}
		if time.Now().After(deadline) {
			return current, false, nil
		}
		select {
		case <-ctx.Done():
			return current, false, fmt.Errorf("wait for url: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

func handleSelector(el connect.Element) string {
	return fmt.Sprintf("[%s=%q]", handleAttr, el.Handle)
}

func jsString(s string) string {
	b, err := json.Marshal(s)
	if err != nil {
		return `""`
	}
	return string(b)
}
