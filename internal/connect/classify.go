package connect

import (
	"net/url"
	"regexp"
	"strings"
)

// DirectInviteBase is the deep link that opens the invite page for a vanity name.
const DirectInviteBase = "https://www.linkedin.com/preload/custom-invite/?vanityName="

var (
	vanityPattern     = regexp.MustCompile(`(?i)/in/([^/?#]+)/?`)
	disallowedActions = []string{"pending", "follow", "unfollow", "message", "remove connection"}
)

// LooksLikeConnectAction decides from an element's aria-label, text and href
// whether it is a real connect affordance rather than a neighbouring action.
func LooksLikeConnectAction(ariaLabel, text, href string) bool {
	ariaLabel = strings.TrimSpace(ariaLabel)
	text = strings.TrimSpace(text)
	href = strings.TrimSpace(href)
	if strings.Contains(strings.ToLower(href), "/preload/custom-invite/") {
		return true
	}
	blob := strings.ToLower(ariaLabel + " " + text + " " + href)
	for _, token := range disallowedActions {
		if strings.Contains(blob, token) {
			return false
		}
	}
	if strings.Contains(blob, "invite") && strings.Contains(blob, "connect") {
		return true
	}
	if strings.EqualFold(text, "connect") {
		return true
	}
	if strings.Contains(blob, " connect") || strings.HasPrefix(blob, "connect") {
		return !strings.Contains(blob, "connection")
	}
	return false
}

// DirectInviteURL builds the invite deep link from a /in/{vanity} profile URL.
// It returns "" for any other URL shape.
func DirectInviteURL(profileURL string) string {
	u, err := url.Parse(profileURL)
	if err != nil {
		return ""
	}
	m := vanityPattern.FindStringSubmatch(u.Path)
	if m == nil {
		return ""
	}
	vanity := strings.TrimSpace(m[1])
	if vanity == "" {
		return ""
	}
	return DirectInviteBase + url.PathEscape(vanity)
}

// IsInvitePage reports whether the browser is on the standalone invite page.
func IsInvitePage(current string) bool {
	return strings.Contains(current, "/custom-invite") || strings.Contains(current, "/preload/")
}

// AbsoluteURL resolves a site-relative href.
func AbsoluteURL(href string) string {
	if strings.HasPrefix(href, "http") {
		return href
	}
	return "https://www.linkedin.com" + href
}
