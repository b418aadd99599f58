// Package extract turns fetched result pages into lead records. Each page
// family has an ordered list of card selectors; the first that matches wins
// and every card is read through a colly HTMLElement.
package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/linkedin-prospector/internal/crawler"
	"github.com/JakeFAU/linkedin-prospector/internal/lead"
)

// cardStrategy is one way of locating result cards on a page.
type cardStrategy struct {
	selector string
	name     string
}

// cardParser reads one card. It reports false when no name could be found.
type cardParser func(e *colly.HTMLElement, binding crawler.Binding) (lead.Lead, bool)

type family struct {
	strategies []cardStrategy
	parse      cardParser
}

// Extractor implements crawler.Extractor for the three result page families.
type Extractor struct {
	families map[lead.Source]family
	logger   *zap.Logger
}

// New returns an Extractor.
func New(logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{
		families: map[lead.Source]family{
			lead.SourceSearch:         {strategies: searchStrategies, parse: parseSearchCard},
			lead.SourceSalesNavigator: {strategies: salesNavStrategies, parse: parseSalesNavCard},
			lead.SourceCompany:        {strategies: companyStrategies, parse: parseCompanyCard},
		},
		logger: logger.Named("extract"),
	}
}

// Extract parses page with the rules for binding.Kind. A page without any
// recognizable cards yields no leads and no error.
func (x *Extractor) Extract(page crawler.Page, binding crawler.Binding) ([]lead.Lead, error) {
	fam, ok := x.families[binding.Kind]
	if !ok {
		return nil, fmt.Errorf("no extractor for source %q", binding.Kind)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	resp := &colly.Response{StatusCode: page.StatusCode, Body: page.Body}

	cards, strategy := findCards(doc, fam.strategies)
	if cards == nil {
		links := doc.Find("a[href*='/in/']").Length()
		if links > 0 {
			x.logger.Warn("no result cards matched", zap.String("source", string(binding.Kind)), zap.Int("profile_links", links))
		} else {
			x.logger.Info("no result cards, likely end of results", zap.String("source", string(binding.Kind)))
		}
		return nil, nil
	}
	x.logger.Debug("matched result cards",
		zap.String("source", string(binding.Kind)),
		zap.String("strategy", strategy),
		zap.Int("cards", cards.Length()),
	)

	var out []lead.Lead
	cards.Each(func(i int, s *goquery.Selection) {
		e := colly.NewHTMLElementFromSelectionNode(resp, s, s.Nodes[0], i)
		rec, ok := fam.parse(e, binding)
		if !ok {
			x.logger.Debug("card skipped, no name", zap.Int("index", i))
			return
		}
		rec.Source = binding.Kind
		rec.SearchQuery = lead.StringPtr(binding.Query)
		out = append(out, rec)
	})
	return out, nil
}

func findCards(doc *goquery.Document, strategies []cardStrategy) (*goquery.Selection, string) {
	for _, st := range strategies {
		if sel := doc.Find(st.selector); sel.Length() > 0 {
			return sel, st.name
		}
	}
	return nil, ""
}

// firstMatch returns the first element matching any selector, in order.
func firstMatch(e *colly.HTMLElement, selectors ...string) *goquery.Selection {
	for _, sel := range selectors {
		if found := e.DOM.Find(sel).First(); found.Length() > 0 {
			return found
		}
	}
	return nil
}

// firstText is the cleaned text of the first element matching any selector.
func firstText(e *colly.HTMLElement, selectors ...string) string {
	found := firstMatch(e, selectors...)
	if found == nil {
		return ""
	}
	return lead.CleanText(found.Text())
}

// ownText concatenates the text nodes directly under s.
func ownText(s *goquery.Selection) string {
	return s.Contents().FilterFunction(func(_ int, c *goquery.Selection) bool {
		return goquery.NodeName(c) == "#text"
	}).Text()
}

func attr(s *goquery.Selection, name string) string {
	if s == nil {
		return ""
	}
	v, _ := s.Attr(name)
	return strings.TrimSpace(v)
}

func intPtr(n int, ok bool) *int {
	if !ok {
		return nil
	}
	return &n
}
