package runs

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/JakeFAU/linkedin-prospector/internal/lead"
)

func TestSummarizeText(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "", SummarizeText("  \n "))
	assert.Equal(t, "a b c", SummarizeText(" a \n b\t c "))

	long := strings.Repeat("x", 200)
	got := SummarizeText(long)
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.Equal(t, MaxLabelLen-1+3, len(got))

	exact := strings.Repeat("é", MaxLabelLen)
	assert.Equal(t, exact, SummarizeText(exact))
}

func TestSummarizeURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		raw    string
		source lead.Source
		want   string
	}{
		{
			name: "sales nav terms",
			raw:  "https://www.linkedin.com/sales/search/people?query=(filters%3AList((type%3AREGION%2Cvalues%3AList((text%3ATexas%2CselectionType%3AINCLUDED)))%2C(type%3ATITLE%2Cvalues%3AList((text%3AVP%2520Sales)%2C(text%3Avp%2520sales)))))",
			want: "Sales Nav: Texas, VP Sales",
		},
		{
			name: "sales nav without terms",
			raw:  "https://www.linkedin.com/sales/search/people?savedSearchId=1",
			want: "Sales Nav URL search",
		},
		{
			name:   "source forces sales nav",
			raw:    "https://www.linkedin.com/sales/lists/people",
			source: lead.SourceSalesNavigator,
			want:   "Sales Nav URL search",
		},
		{
			name: "people search keywords",
			raw:  "https://www.linkedin.com/search/results/people/?keywords=data%20engineer&page=2",
			want: "LinkedIn people: data engineer",
		},
		{
			name: "people search without keywords",
			raw:  "https://www.linkedin.com/search/results/people/?network=%5B%22S%22%5D",
			want: "LinkedIn people search URL",
		},
		{
			name: "company roster",
			raw:  "https://www.linkedin.com/company/acme-corp/people/?keywords=sales",
			want: "Company people: acme-corp",
		},
		{
			name: "fallback host and path",
			raw:  "https://www.linkedin.com/mynetwork/grow/",
			want: "www.linkedin.com/mynetwork/grow/",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, SummarizeURL(tt.raw, tt.source))
		})
	}
}

func TestSalesNavTermsCapped(t *testing.T) {
	t.Parallel()

	raw := "https://www.linkedin.com/sales/search/people?query=" +
		"(text%3Aa%2Ctext%3Ab%2Ctext%3Ac%2Ctext%3Ad%2Ctext%3Ae%2Ctext%3Af)"
	assert.Equal(t, "Sales Nav: a, b, c, d, e", SummarizeURL(raw, ""))
}

func TestSummarizeRequest(t *testing.T) {
	t.Parallel()

	req := lead.SearchRequest{Keywords: " cto ", Title: "CTO", Location: "Austin", Company: "acme", Industry: "Software"}
	assert.Equal(t,
		"Sales Nav query: cto, title:CTO, location:Austin, company:acme, industry:Software",
		SummarizeRequest(lead.SourceSalesNavigator, req))
	assert.Equal(t, "Company employees: company:acme", SummarizeRequest(lead.SourceCompany, lead.SearchRequest{Company: "acme"}))
	assert.Equal(t, "LinkedIn search: search", SummarizeRequest(lead.SourceSearch, lead.SearchRequest{}))
}
