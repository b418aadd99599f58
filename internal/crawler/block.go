package crawler

import (
	"bytes"
	"errors"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ErrBlocked reports that every attempt at a page was judged an anti-automation
// response.
var ErrBlocked = errors.New("blocked by remote site")

const defaultBlockScanChars = 5000

// BlockDetector recognizes anti-automation responses by status code, landing
// URL and body text.
type BlockDetector struct {
	statuses     map[int]struct{}
	urlFragments []string
	phrases      []string
	scanChars    int
}

// NewBlockDetector returns the detector tuned for LinkedIn.
func NewBlockDetector() *BlockDetector {
	return &BlockDetector{
		statuses:     map[int]struct{}{429: {}, 999: {}, 403: {}},
		urlFragments: []string{"/login", "/checkpoint", "/challenge"},
		phrases: []string{
			"commercial use limit",
			"you've reached the commercial use limit",
			"we've restricted your access",
		},
		scanChars: defaultBlockScanChars,
	}
}

// Detect returns a short reason label and true when page looks blocked.
func (d *BlockDetector) Detect(page Page) (string, bool) {
	if d == nil {
		return "", false
	}
	if _, ok := d.statuses[page.StatusCode]; ok {
		return "status_" + strconv.Itoa(page.StatusCode), true
	}
	landing := page.LandingURL()
	for _, frag := range d.urlFragments {
		if strings.Contains(landing, frag) {
			return "redirect_" + strings.TrimPrefix(frag, "/"), true
		}
	}
	text := d.leadingText(page.Body)
	for _, phrase := range d.phrases {
		if strings.Contains(text, phrase) {
			return "block_text", true
		}
	}
	return "", false
}

// leadingText returns the lowercased first scanChars characters of the
// page's visible text, or of the raw body when it cannot be parsed.
func (d *BlockDetector) leadingText(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	text := string(body)
	if doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body)); err == nil {
		text = doc.Text()
	}
	text = strings.Join(strings.Fields(text), " ")
	if runes := []rune(text); len(runes) > d.scanChars {
		text = string(runes[:d.scanChars])
	}
	return strings.ToLower(strings.ReplaceAll(text, "’", "'"))
}
