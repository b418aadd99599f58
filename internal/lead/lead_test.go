package lead

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCanonicalURL(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{"absolute with query", "https://linkedin.com/in/jane-doe/?miniProfile=abc", "https://www.linkedin.com/in/jane-doe"},
		{"protocol relative", "//www.linkedin.com/in/jane-doe/", "https://www.linkedin.com/in/jane-doe"},
		{"path only", "/in/jane-doe", "https://www.linkedin.com/in/jane-doe"},
		{"bare host", "linkedin.com/in/jane-doe", "https://www.linkedin.com/in/jane-doe"},
		{"http www", "http://www.linkedin.com/sales/lead/ACwAA,NAME", "https://www.linkedin.com/sales/lead/ACwAA,NAME"},
		{"whitespace", "  https://www.linkedin.com/in/x/  ", "https://www.linkedin.com/in/x"},
		{"empty", "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, CanonicalURL(tc.in))
		})
	}
}

func TestNormalizeProfileURLRejectsNonProfiles(t *testing.T) {
	t.Parallel()

	require.Equal(t, "", NormalizeProfileURL("https://www.linkedin.com/company/acme"))
	require.Equal(t, "https://www.linkedin.com/in/jane", NormalizeProfileURL("/in/jane/"))
	require.Equal(t, "https://www.linkedin.com/sales/lead/123", NormalizeProfileURL("/sales/lead/123?trk=x"))
}

func TestKeyPrefersProfileURL(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	withURL := Lead{
		ProfileURL:     StringPtr("linkedin.com/in/jane/?x=1"),
		FullName:       "Jane",
		CurrentCompany: StringPtr("Acme"),
	}.Normalize(now)
	require.Equal(t, "https://www.linkedin.com/in/jane", withURL.DedupKey)
	require.Equal(t, now, withURL.ScrapedAt)

	fallback := Lead{FullName: "John Doe", CurrentCompany: StringPtr("Acme Inc")}.Normalize(now)
	require.Equal(t, "John Doe|Acme Inc", fallback.DedupKey)

	noCompany := Lead{FullName: "John Doe"}.Normalize(now)
	require.Equal(t, "John Doe|", noCompany.DedupKey)
}

func TestParseSource(t *testing.T) {
	t.Parallel()

	src, err := ParseSource("sales_navigator")
	require.NoError(t, err)
	require.Equal(t, SourceSalesNavigator, src)

	_, err = ParseSource("twitter")
	require.Error(t, err)
}

func TestSearchRequestValidate(t *testing.T) {
	t.Parallel()

	req := SearchRequest{Keywords: "cfo"}.WithDefaults()
	require.Equal(t, DefaultPages, req.MaxPages)
	require.NoError(t, req.Validate(SourceSearch))
	require.Error(t, req.Validate(SourceCompany), "roster search needs a company slug")

	req.MaxPages = 101
	require.Error(t, req.Validate(SourceSearch))
}
