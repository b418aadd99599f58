package extract

import (
	"github.com/gocolly/colly/v2"

	"github.com/JakeFAU/linkedin-prospector/internal/crawler"
	"github.com/JakeFAU/linkedin-prospector/internal/lead"
)

var companyStrategies = []cardStrategy{
	{selector: "li.org-people-profile-card__profile-card-spacing", name: "profile card"},
	{selector: "div[class*='org-people-profile-card']", name: "profile card partial"},
	{selector: "li.reusable-search__result-container", name: "search layout"},
	{selector: "div[class*='org-people'] li", name: "structural"},
}

// parseCompanyCard reads a roster card. The roster's own company fills in
// when the subtitle names none.
func parseCompanyCard(e *colly.HTMLElement, binding crawler.Binding) (lead.Lead, bool) {
	link := firstMatch(e, "a.app-aware-link[href*='/in/']", "a[href*='/in/']")
	name := firstText(e,
		"div.org-people-profile-card__profile-title",
		"div[class*='profile-card__profile-title']",
		"span[dir='ltr']",
	)
	if name == "" && link != nil {
		name = lead.CleanText(link.Text())
	}
	if name == "" {
		return lead.Lead{}, false
	}

	headline := firstText(e, "div.org-people-profile-card__subtitle", "div[class*='profile-card__subtitle']")
	title, company := lead.SplitTitleCompany(headline)
	if company == "" {
		company = binding.Company
	}

	rec := lead.Lead{
		FullName:       name,
		ProfileURL:     lead.StringPtr(lead.NormalizeProfileURL(attr(link, "href"))),
		Headline:       lead.StringPtr(headline),
		CurrentTitle:   lead.StringPtr(title),
		CurrentCompany: lead.StringPtr(company),
		Location:       lead.StringPtr(firstText(e, "div.org-people-profile-card__location", "div[class*='profile-card__location']")),
	}
	if degree := lead.ConnectionDegree(e.ChildText("span[class*='badge']")); degree != "" {
		rec.ConnectionDegree = &degree
	}
	return rec, true
}
