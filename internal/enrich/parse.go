package enrich

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/JakeFAU/linkedin-prospector/internal/lead"
)

// Section names a profile block. Aliases are the headings LinkedIn has used
// for it.
type Section string

// Profile sections read from the main page.
const (
	SectionExperience     Section = "experience"
	SectionEducation      Section = "education"
	SectionCertifications Section = "certifications"
	SectionVolunteering   Section = "volunteering"
	SectionSkills         Section = "skills"
	SectionHonors         Section = "honors"
	SectionLanguages      Section = "languages"
)

var sectionAliases = map[Section][]string{
	SectionExperience:     {"experience"},
	SectionEducation:      {"education"},
	SectionCertifications: {"certifications", "certification", "licenses & certifications", "licenses and certifications"},
	SectionVolunteering:   {"volunteering", "volunteer experience", "volunteer"},
	SectionSkills:         {"skills"},
	SectionHonors:         {"honors & awards", "honors and awards", "awards"},
	SectionLanguages:      {"languages"},
}

const (
	maxAboutChars = 4000
	maxPostChars  = 1200
	minPostChars  = 20
)

var (
	nonAlnum       = regexp.MustCompile(`[^a-z0-9]+`)
	yearPattern    = regexp.MustCompile(`\b(19|20)\d{2}\b`)
	hashedClassRun = regexp.MustCompile(`(?:_[a-z0-9]{6,}\s+){4,}`)
	aboutPrefix    = regexp.MustCompile(`(?i)^about\s*`)

	noiseTokens = []string{
		"http://", "https://", "www.", "linkedin.com/", "urn:li:", "w3.org", "svg",
		"componentkey", "data-testid", "cachekey", "profile_", "class=", "<div ",
		"<span ", "<option ", "option value=", "object.entries(", "function(", "aria-",
		"linkedin corporation", "cookie", "privacy policy", "terms of use", "invite ",
		"follow ", "notifications", "skip to main content",
	}
	noisePrefixes  = []string{"show all", "see all", "add profile section", "in progress", "loading", "skip to"}
	navLabels      = []string{"home", "notifications", "messaging", "me"}
	itemSeparators = []string{" · ", " - ", " | ", " @ ", " at "}
)

// Summary is the top-of-profile card.
type Summary struct {
	Name     string `json:"name,omitempty"`
	Headline string `json:"headline,omitempty"`
	Location string `json:"location,omitempty"`
}

// Post is a post snippet. URL is empty when only text was found.
type Post struct {
	URL  string `json:"url,omitempty"`
	Text string `json:"text"`
}

// ParseSummary reads the name, headline and location.
func ParseSummary(doc *goquery.Document) Summary {
	return Summary{
		Name: lead.CleanText(doc.Find("h1").First().Text()),
		Headline: firstNonEmpty(doc,
			"main section div.text-body-medium",
			"main div.ph5 div.text-body-medium",
			"section div.text-body-medium",
		),
		Location: firstNonEmpty(doc,
			"main section span.text-body-small.inline.t-black--light.break-words",
			"main div.ph5 span.text-body-small",
			"section span.text-body-small",
		),
	}
}

// ParseAbout returns the About text, or "" when the profile has none.
func ParseAbout(doc *goquery.Document) string {
	for _, sel := range []string{
		"section:has(#about) div.inline-show-more-text",
		"section:has(#about) div[dir='ltr']",
		"section:has(#about) span[aria-hidden='true']",
	} {
		if text := fullText(doc.Find(sel).First()); len(text) > 20 {
			return truncate(text, maxAboutChars)
		}
	}
	var about string
	profileSections(doc).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := fullText(s)
		if len(text) < 25 {
			return true
		}
		lower := strings.ToLower(text)
		if !strings.HasPrefix(lower, "about") && !strings.Contains(head(lower, 120), " about ") {
			return true
		}
		about = strings.TrimSpace(aboutPrefix.ReplaceAllString(text, ""))
		return about == ""
	})
	return truncate(about, maxAboutChars)
}

// SectionItems lists entry rows of one section on the main profile page.
func SectionItems(doc *goquery.Document, section Section, limit int) []string {
	c := newCollector(section, limit)
	profileSections(doc).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if !sectionMatches(s, section) {
			return true
		}
		for _, sel := range []string{"li", "p", "span[aria-hidden='true']", "div[aria-hidden='true']", "a"} {
			s.Find(sel).EachWithBreak(func(_ int, n *goquery.Selection) bool {
				return c.push(fullText(n))
			})
			if c.full() {
				return false
			}
		}
		return true
	})
	return c.rows
}

// DetailItems lists rows of a /details/ subpage.
func DetailItems(doc *goquery.Document, section Section, limit int) []string {
	c := newCollector(section, limit)
	for _, sel := range []string{"li.pvs-list__paged-list-item", "main li.artdeco-list__item", "main li"} {
		doc.Find(sel).EachWithBreak(func(_ int, n *goquery.Selection) bool {
			return c.push(fullText(n))
		})
		if c.full() {
			break
		}
	}
	return c.rows
}

// FeaturedPosts reads the Featured block of the main profile page.
func FeaturedPosts(doc *goquery.Document, limit int) []Post {
	p := newPostCollector(limit, true)
	profileSections(doc).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if !strings.Contains(head(strings.ToLower(fullText(s)), 280), "featured") {
			return true
		}
		s.Find("a[href*='/feed/update/'], a[href*='/posts/']").EachWithBreak(func(_ int, a *goquery.Selection) bool {
			return p.push(a.AttrOr("href", ""), fullText(a))
		})
		s.Find("p").EachWithBreak(func(_ int, n *goquery.Selection) bool {
			return p.push("", fullText(n))
		})
		return !p.full()
	})
	return p.posts
}

// ActivityPosts reads the Activity block of the main profile page. Only the
// first block that mentions posts is used.
func ActivityPosts(doc *goquery.Document, limit int) []Post {
	p := newPostCollector(limit, true)
	profileSections(doc).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		lower := strings.ToLower(fullText(s))
		if !strings.Contains(head(lower, 220), "activity") || !strings.Contains(head(lower, 320), "posts") {
			return true
		}
		s.Find("a[href*='/feed/update/'], a[href*='/posts/']").EachWithBreak(func(_ int, a *goquery.Selection) bool {
			return p.push(a.AttrOr("href", ""), fullText(a))
		})
		return false
	})
	return p.posts
}

// RecentPosts reads post cards from the recent-activity subpage, falling back
// to bare update links.
func RecentPosts(doc *goquery.Document, limit int) []Post {
	p := newPostCollector(limit, false)
	for _, sel := range []string{"div.feed-shared-update-v2", "article", "main li"} {
		doc.Find(sel).EachWithBreak(func(_ int, card *goquery.Selection) bool {
			link := card.Find("a[href*='/feed/update/']").First()
			if link.Length() == 0 {
				link = card.Find("a[href*='/posts/']").First()
			}
			return p.push(link.AttrOr("href", ""), fullText(card))
		})
		if p.full() {
			return p.posts
		}
	}
	doc.Find("a[href*='/feed/update/'], a[href*='/posts/']").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		return p.push(a.AttrOr("href", ""), fullText(a))
	})
	return p.posts
}

type collector struct {
	section Section
	limit   int
	seen    map[string]struct{}
	rows    []string
}

func newCollector(section Section, limit int) *collector {
	return &collector{section: section, limit: limit, seen: make(map[string]struct{})}
}

// push records text when it reads like an entry. It reports false once the
// collector is full, so it can drive EachWithBreak directly.
func (c *collector) push(text string) bool {
	if c.full() {
		return false
	}
	if _, dup := c.seen[text]; dup || !looksLikeItem(text, c.section) {
		return true
	}
	c.seen[text] = struct{}{}
	c.rows = append(c.rows, text)
	return !c.full()
}

func (c *collector) full() bool { return c.limit > 0 && len(c.rows) >= c.limit }

type postCollector struct {
	limit     int
	postsOnly bool
	seen      map[string]struct{}
	posts     []Post
}

func newPostCollector(limit int, postsOnly bool) *postCollector {
	return &postCollector{limit: limit, postsOnly: postsOnly, seen: make(map[string]struct{})}
}

func (p *postCollector) push(href, text string) bool {
	if p.full() {
		return false
	}
	text = lead.CleanText(text)
	if len(text) < minPostChars {
		return true
	}
	url := absoluteURL(href)
	if url != "" {
		if p.postsOnly && !strings.Contains(url, "/feed/update/") && !strings.Contains(url, "/posts/") {
			return true
		}
		if _, dup := p.seen[url]; dup {
			return true
		}
		p.seen[url] = struct{}{}
	}
	p.posts = append(p.posts, Post{URL: url, Text: truncate(text, maxPostChars)})
	return !p.full()
}

func (p *postCollector) full() bool { return p.limit > 0 && len(p.posts) >= p.limit }

// looksLikeItem filters page chrome, markup leaks and fragments out of
// section text.
func looksLikeItem(text string, section Section) bool {
	if len(text) < 12 || len(text) > 500 {
		return false
	}
	lower := strings.ToLower(text)
	for _, tok := range noiseTokens {
		if strings.Contains(lower, tok) {
			return false
		}
	}
	if hashedClassRun.MatchString(text) || strings.ContainsAny(text, "{}[]") ||
		strings.Contains(text, "=>") || strings.Contains(text, "$L") {
		return false
	}
	for _, prefix := range noisePrefixes {
		if strings.HasPrefix(lower, prefix) {
			return false
		}
	}
	for _, label := range navLabels {
		if lower == label || strings.HasPrefix(lower, label+" ") {
			return false
		}
	}
	if strings.HasSuffix(text, " logo") || strings.IndexFunc(text, unicode.IsLetter) < 0 {
		return false
	}
	words := len(strings.Fields(text))
	if words > 85 {
		return false
	}
	if section != SectionExperience {
		return words >= 2
	}
	if words < 3 {
		return false
	}
	if yearPattern.MatchString(lower) {
		return true
	}
	for _, sep := range itemSeparators {
		if strings.Contains(text, sep) {
			return true
		}
	}
	return words >= 5
}

// sectionMatches tells whether s is the block for section, by anchor id,
// heading text or attribute values.
func sectionMatches(s *goquery.Selection, section Section) bool {
	aliases := sectionAliases[section]
	for _, alias := range aliases {
		id := strings.ReplaceAll(strings.ReplaceAll(alias, "&", "and"), " ", "-")
		if s.Find("#"+id).Length() > 0 {
			return true
		}
	}
	heading := " " + strings.TrimSpace(nonAlnum.ReplaceAllString(head(strings.ToLower(fullText(s)), 180), " ")) + " "
	for _, alias := range aliases {
		norm := strings.TrimSpace(nonAlnum.ReplaceAllString(alias, " "))
		if norm != "" && strings.Contains(heading, " "+norm+" ") {
			return true
		}
	}
	var attrs strings.Builder
	for _, n := range s.Nodes {
		for _, a := range n.Attr {
			attrs.WriteString(strings.ToLower(a.Val))
		}
	}
	flat := strings.ReplaceAll(attrs.String(), " ", "")
	for _, alias := range aliases {
		if strings.Contains(flat, strings.ReplaceAll(alias, " ", "")) {
			return true
		}
	}
	return false
}

func profileSections(doc *goquery.Document) *goquery.Selection {
	for _, sel := range []string{"div[role='main'] section", "main section"} {
		if found := doc.Find(sel); found.Length() > 0 {
			return found
		}
	}
	return doc.Find("section")
}

func firstNonEmpty(doc *goquery.Document, selectors ...string) string {
	for _, sel := range selectors {
		if text := lead.CleanText(doc.Find(sel).First().Text()); text != "" {
			return text
		}
	}
	return ""
}

// fullText joins the text nodes under s with spaces, so adjacent inline
// elements do not run together.
func fullText(s *goquery.Selection) string {
	var parts []string
	for _, n := range s.Nodes {
		var walk func(*html.Node)
		walk = func(n *html.Node) {
			switch n.Type {
			case html.TextNode:
				parts = append(parts, n.Data)
			case html.ElementNode:
				if n.Data == "script" || n.Data == "style" {
					return
				}
			}
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				walk(c)
			}
		}
		walk(n)
	}
	return lead.CleanText(strings.Join(parts, " "))
}

func absoluteURL(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}
	url := lead.CanonicalURL(raw)
	if !strings.HasPrefix(url, "https://www.linkedin.com") {
		return ""
	}
	return url
}

func head(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
