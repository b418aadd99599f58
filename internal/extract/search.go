package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"github.com/JakeFAU/linkedin-prospector/internal/crawler"
	"github.com/JakeFAU/linkedin-prospector/internal/lead"
)

var searchStrategies = []cardStrategy{
	{selector: "div[data-view-name='people-search-result']", name: "data-view-name"},
	{selector: "li.reusable-search__result-container", name: "legacy result container"},
	{selector: "div[class*='entity-result']", name: "legacy entity-result"},
	{selector: "div[role='list'] > div", name: "role=list > div"},
}

var degreeBadge = regexp.MustCompile(`•\s*\d+(?:st|nd|rd|th)`)

// parseSearchCard reads a keyword search card. Paragraphs after the name are,
// in order, the headline and the location; a "Current:" paragraph carries the
// present role and a "mutual connection" paragraph the shared count.
func parseSearchCard(e *colly.HTMLElement, _ crawler.Binding) (lead.Lead, bool) {
	titleLink := firstMatch(e, "a[data-view-name='search-result-lockup-title']")
	profileLink := firstMatch(e, "a[href*='/in/']")

	name := ""
	if titleLink != nil {
		name = lead.CleanText(titleLink.Text())
	}
	if name == "" {
		name = lead.CleanText(attr(firstMatch(e, "figure[aria-label]"), "aria-label"))
	}
	if name == "" && profileLink != nil {
		name = lead.CleanText(profileLink.Text())
	}
	if name == "" {
		return lead.Lead{}, false
	}

	link := profileLink
	if link == nil {
		link = titleLink
	}
	rec := lead.Lead{
		FullName:   name,
		ProfileURL: lead.StringPtr(lead.NormalizeProfileURL(attr(link, "href"))),
	}

	e.ForEach("span", func(_ int, span *colly.HTMLElement) {
		if rec.ConnectionDegree != nil {
			return
		}
		if txt := strings.TrimSpace(ownText(span.DOM)); degreeBadge.MatchString(txt) {
			rec.ConnectionDegree = lead.StringPtr(lead.ConnectionDegree(txt))
		}
	})

	var content []string
	var title, company string
	e.DOM.Find("p").Each(func(_ int, p *goquery.Selection) {
		txt := lead.CleanText(p.Text())
		switch {
		case txt == "":
		case strings.HasPrefix(txt, "Current:"):
			if current := lead.CleanText(strings.TrimPrefix(txt, "Current:")); current != "" {
				title, company = lead.SplitTitleCompany(current)
			}
		case strings.Contains(strings.ToLower(txt), "mutual connection"):
			rec.MutualConnections = intPtr(lead.MutualCount(txt))
		case !strings.Contains(txt, name) && txt != "Connect":
			content = append(content, txt)
		}
	})

	var headline string
	if len(content) >= 1 {
		headline = content[0]
	}
	if len(content) >= 2 {
		rec.Location = lead.StringPtr(content[1])
	}
	if title == "" && headline != "" {
		title, company = lead.SplitTitleCompany(headline)
	}
	rec.Headline = lead.StringPtr(headline)
	rec.CurrentTitle = lead.StringPtr(title)
	rec.CurrentCompany = lead.StringPtr(company)
	return rec, true
}
