package lead

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	zeroWidth      = regexp.MustCompile("[\u200b\u200c\u200d\ufeff]")
	whitespaceRun  = regexp.MustCompile(`\s+`)
	degreePattern  = regexp.MustCompile(`(\d+)(?:st|nd|rd|th)`)
	mutualPattern  = regexp.MustCompile(`(?i)(\d+)\s+(?:\w+\s+)?mutual\s*connection`)
	titleSeparator = []string{" at ", " @ ", " - ", " | "}
)

// CleanText removes zero-width characters, collapses whitespace runs and trims.
func CleanText(text string) string {
	if text == "" {
		return ""
	}
	text = zeroWidth.ReplaceAllString(text, "")
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(text, " "))
}

// ConnectionDegree extracts a degree label such as "2nd" from badge text.
func ConnectionDegree(text string) string {
	m := degreePattern.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return ""
	}
	suffix := "th"
	switch n {
	case 1:
		suffix = "st"
	case 2:
		suffix = "nd"
	case 3:
		suffix = "rd"
	}
	return strconv.Itoa(n) + suffix
}

// MutualCount extracts the number from text like "23 mutual connections".
func MutualCount(text string) (int, bool) {
	m := mutualPattern.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// SplitTitleCompany splits "Title at Company" style headlines. When no
// separator is present the whole headline is returned as the title.
func SplitTitleCompany(headline string) (title, company string) {
	if headline == "" {
		return "", ""
	}
	for _, sep := range titleSeparator {
		if before, after, ok := strings.Cut(headline, sep); ok {
			return CleanText(before), CleanText(after)
		}
	}
	return headline, ""
}
