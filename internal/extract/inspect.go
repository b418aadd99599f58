package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/linkedin-prospector/internal/lead"
)

const maxCardTexts = 8

// Inspection summarizes a saved result page for selector debugging.
type Inspection struct {
	Bytes         int
	Cards         int
	ProfileLinks  int
	TitleElements int
	// CardTexts holds the first visible text fragments of every card.
	CardTexts [][]string
}

// Inspect counts the markers the keyword-search extractor relies on.
func Inspect(body []byte) (Inspection, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return Inspection{}, fmt.Errorf("parse html: %w", err)
	}
	out := Inspection{
		Bytes:         len(body),
		ProfileLinks:  doc.Find("a[href*='linkedin.com/in/']").Length(),
		TitleElements: doc.Find(`[data-view-name="search-result-lockup-title"]`).Length(),
	}
	cards := doc.Find(`[data-view-name="people-search-result"]`)
	out.Cards = cards.Length()
	cards.Each(func(_ int, card *goquery.Selection) {
		out.CardTexts = append(out.CardTexts, visibleTexts(card, maxCardTexts))
	})
	return out, nil
}

func visibleTexts(sel *goquery.Selection, limit int) []string {
	var texts []string
	sel.Find("*").Each(func(_ int, node *goquery.Selection) {
		if len(texts) >= limit || node.Children().Length() > 0 {
			return
		}
		text := lead.CleanText(node.Text())
		if len([]rune(text)) < 2 || strings.HasPrefix(text, "{") {
			return
		}
		texts = append(texts, text)
	})
	return texts
}
