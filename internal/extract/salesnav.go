package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"github.com/JakeFAU/linkedin-prospector/internal/crawler"
	"github.com/JakeFAU/linkedin-prospector/internal/lead"
)

var salesNavStrategies = []cardStrategy{
	{selector: "div[data-x-search-result='LEAD']", name: "lead result container"},
	{selector: "li[class*='artdeco-list__item']", name: "list rows"},
	{selector: "ol.search-results__result-list > li", name: "legacy result list"},
	{selector: "div[class*='search-results'] li[class*='result']", name: "broad"},
}

func parseSalesNavCard(e *colly.HTMLElement, _ crawler.Binding) (lead.Lead, bool) {
	link := firstMatch(e,
		"a[data-lead-search-result*='profile-link']",
		"a[href*='/sales/lead/']",
		"a[href*='/sales/people/']",
		"a[data-anonymize='person-name']",
	)
	name := firstText(e, "span[data-anonymize='person-name']", "a[data-anonymize='person-name']")
	if name == "" && link != nil {
		name = lead.CleanText(link.Text())
	}
	if name == "" {
		return lead.Lead{}, false
	}

	title := firstText(e, "span[data-anonymize='title']", "span[class*='result-lockup__highlight-keyword']")
	company := firstText(e, "a[data-anonymize='company-name']", "span[data-anonymize='company-name']")
	headline := title
	if title != "" && company != "" {
		headline = title + " at " + company
	}

	rec := lead.Lead{
		FullName:       name,
		ProfileURL:     lead.StringPtr(lead.NormalizeProfileURL(attr(link, "href"))),
		Headline:       lead.StringPtr(headline),
		CurrentTitle:   lead.StringPtr(title),
		CurrentCompany: lead.StringPtr(company),
		Location:       lead.StringPtr(firstText(e, "span[data-anonymize='location']", "span[class*='result-lockup__misc-item']")),
	}
	if degree := lead.ConnectionDegree(firstText(e, "span.artdeco-entity-lockup__degree", "span[class*='result-lockup__badge']")); degree != "" {
		rec.ConnectionDegree = &degree
	}

	rec.MutualConnections = intPtr(lead.MutualCount(firstText(e, "button[class*='result-lockup__common-connections']")))
	if rec.MutualConnections == nil {
		e.DOM.Find("button, span").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			txt := lead.CleanText(s.Text())
			if !strings.Contains(strings.ToLower(txt), "mutual connection") {
				return true
			}
			rec.MutualConnections = intPtr(lead.MutualCount(txt))
			return rec.MutualConnections == nil
		})
	}
	return rec, true
}
