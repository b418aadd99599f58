package crawler

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBlockDetector(t *testing.T) {
	t.Parallel()
	detector := NewBlockDetector()
	cases := []struct {
		name   string
		page   Page
		reason string
	}{
		{"rate limited", Page{StatusCode: 429}, "status_429"},
		{"custom status", Page{StatusCode: 999}, "status_999"},
		{"forbidden", Page{StatusCode: 403}, "status_403"},
		{"login redirect", Page{StatusCode: 200, FinalURL: "https://www.linkedin.com/login?session_redirect=x"}, "redirect_login"},
		{"checkpoint", Page{StatusCode: 200, URL: "https://www.linkedin.com/checkpoint/rp/request-password-reset"}, "redirect_checkpoint"},
		{"challenge", Page{StatusCode: 200, FinalURL: "https://www.linkedin.com/authwall/challenge/x"}, "redirect_challenge"},
		{"commercial limit", Page{StatusCode: 200, Body: []byte("<html><body><h1>You’ve reached the Commercial Use Limit</h1></body></html>")}, "block_text"},
		{"restricted", Page{StatusCode: 200, Body: []byte("<p>We've restricted your access for now</p>")}, "block_text"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			reason, blocked := detector.Detect(tc.page)
			assert.True(t, blocked)
			assert.Equal(t, tc.reason, reason)
		})
	}
}

func TestBlockDetectorPassesNormalPages(t *testing.T) {
	t.Parallel()
	detector := NewBlockDetector()
	_, blocked := detector.Detect(Page{StatusCode: 200, URL: "https://www.linkedin.com/search/results/people/", Body: []byte("<ul><li>Jane</li></ul>")})
	assert.False(t, blocked)
	_, blocked = detector.Detect(Page{StatusCode: 0})
	assert.False(t, blocked, "unknown status is not a block")
}

func TestBlockDetectorOnlyScansLeadingText(t *testing.T) {
	t.Parallel()
	detector := NewBlockDetector()
	body := "<html><body><p>" + strings.Repeat("x", 6000) + "</p><p>commercial use limit</p></body></html>"
	_, blocked := detector.Detect(Page{StatusCode: 200, Body: []byte(body)})
	assert.False(t, blocked, "phrases after the scan window are ignored")
}

func TestNilBlockDetector(t *testing.T) {
	t.Parallel()
	var detector *BlockDetector
	_, blocked := detector.Detect(Page{StatusCode: 429})
	assert.False(t, blocked)
}
