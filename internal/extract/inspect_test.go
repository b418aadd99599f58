package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInspectCountsSearchMarkers(t *testing.T) {
	t.Parallel()

	got, err := Inspect([]byte(searchPage))
	require.NoError(t, err)

	assert.Equal(t, len(searchPage), got.Bytes)
	assert.Equal(t, 3, got.Cards)
	assert.Equal(t, 2, got.ProfileLinks)
	assert.Equal(t, 1, got.TitleElements)
	require.Len(t, got.CardTexts, 3)
	assert.Equal(t, "Jane Doe", got.CardTexts[0][0])
	assert.Contains(t, got.CardTexts[0], "Head of Data at Acme Corp")
	assert.Equal(t, []string{"View profile", "Engineer - Initech", "Connect"}, got.CardTexts[1])
	assert.Equal(t, []string{"LinkedIn Member"}, got.CardTexts[2])
}

func TestInspectCapsCardTexts(t *testing.T) {
	t.Parallel()

	body := `<div data-view-name="people-search-result">` +
		`<p>aa</p><p>bb</p><p>cc</p><p>dd</p><p>ee</p><p>ff</p><p>gg</p><p>hh</p><p>ii</p><p>{json}</p></div>`
	got, err := Inspect([]byte(body))
	require.NoError(t, err)
	require.Len(t, got.CardTexts, 1)
	assert.Len(t, got.CardTexts[0], maxCardTexts)
	assert.Equal(t, 0, got.ProfileLinks)
}
