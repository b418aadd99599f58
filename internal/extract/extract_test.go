package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/linkedin-prospector/internal/crawler"
	"github.com/JakeFAU/linkedin-prospector/internal/lead"
)

const searchPage = `<html><body><div role="list">
<div data-view-name="people-search-result">
  <a data-view-name="search-result-lockup-title" href="https://www.linkedin.com/in/jane-doe?miniProfileUrn=1">Jane Doe</a>
  <p><a href="https://www.linkedin.com/in/jane-doe/">Jane Doe</a> <span>• 2nd</span></p>
  <p>Head of Data at Acme Corp</p>
  <p>Austin, Texas</p>
  <p>Current: Staff Engineer at Globex</p>
  <p>Bob and 12 other mutual connections</p>
</div>
<div data-view-name="people-search-result">
  <figure aria-label="John Roe"></figure>
  <a href="/in/john-roe/">View profile</a>
  <p>Engineer - Initech</p>
  <p>Connect</p>
</div>
<div data-view-name="people-search-result"><p>LinkedIn Member</p></div>
</div></body></html>`

const salesNavPage = `<html><body><ol>
<li><div data-x-search-result="LEAD">
  <a data-lead-search-result="profile-link-1" href="/sales/lead/ACwAA123,NAME_SEARCH,abc?_ntb=x"><span data-anonymize="person-name">Ann Lee</span></a>
  <span data-anonymize="title">VP Sales</span>
  <a data-anonymize="company-name" href="/sales/company/1">Acme</a>
  <span data-anonymize="location">Denver, Colorado</span>
  <span class="artdeco-entity-lockup__degree">· 3rd</span>
  <button class="result-lockup__common-connections">4 mutual connections</button>
</div></li>
<li><div data-x-search-result="LEAD">
  <a href="/sales/lead/ACwAA456,NAME_SEARCH,def">Ben Kim</a>
  <span>2 mutual connections</span>
</div></li>
</ol></body></html>`

const companyPage = `<html><body><ul>
<li class="org-people-profile-card__profile-card-spacing">
  <a class="app-aware-link" href="https://www.linkedin.com/in/sam-poe/"><div class="org-people-profile-card__profile-title">Sam Poe</div></a>
  <div class="org-people-profile-card__subtitle">Designer</div>
  <div class="org-people-profile-card__location">Berlin</div>
  <span class="artdeco-entity-lockup__badge">1st</span>
</li>
<li class="org-people-profile-card__profile-card-spacing">
  <a href="https://www.linkedin.com/in/kim-tan"><div class="org-people-profile-card__profile-title">Kim Tan</div></a>
  <div class="org-people-profile-card__subtitle">Recruiter at Acme Talent</div>
</li>
</ul></body></html>`

func str(s string) *string { return &s }

func TestExtractSearch(t *testing.T) {
	t.Parallel()
	x := New(nil)
	leads, err := x.Extract(crawler.Page{Body: []byte(searchPage)}, crawler.Binding{Kind: lead.SourceSearch, Query: "data"})
	require.NoError(t, err)
	require.Len(t, leads, 2, "cards without a name are skipped")

	jane := leads[0]
	assert.Equal(t, "Jane Doe", jane.FullName)
	assert.Equal(t, str("https://www.linkedin.com/in/jane-doe"), jane.ProfileURL)
	assert.Equal(t, str("Head of Data at Acme Corp"), jane.Headline)
	assert.Equal(t, str("Austin, Texas"), jane.Location)
	assert.Equal(t, str("Staff Engineer"), jane.CurrentTitle)
	assert.Equal(t, str("Globex"), jane.CurrentCompany)
	assert.Equal(t, str("2nd"), jane.ConnectionDegree)
	require.NotNil(t, jane.MutualConnections)
	assert.Equal(t, 12, *jane.MutualConnections)
	assert.Equal(t, lead.SourceSearch, jane.Source)
	assert.Equal(t, str("data"), jane.SearchQuery)

	john := leads[1]
	assert.Equal(t, "John Roe", john.FullName)
	assert.Equal(t, str("https://www.linkedin.com/in/john-roe"), john.ProfileURL)
	assert.Equal(t, str("Engineer"), john.CurrentTitle)
	assert.Equal(t, str("Initech"), john.CurrentCompany)
	assert.Nil(t, john.Location)
	assert.Nil(t, john.MutualConnections)
}

func TestExtractSalesNav(t *testing.T) {
	t.Parallel()
	x := New(nil)
	leads, err := x.Extract(crawler.Page{Body: []byte(salesNavPage)}, crawler.Binding{Kind: lead.SourceSalesNavigator, Query: "vp"})
	require.NoError(t, err)
	require.Len(t, leads, 2)

	ann := leads[0]
	assert.Equal(t, "Ann Lee", ann.FullName)
	assert.Equal(t, str("https://www.linkedin.com/sales/lead/ACwAA123,NAME_SEARCH,abc"), ann.ProfileURL)
	assert.Equal(t, str("VP Sales at Acme"), ann.Headline)
	assert.Equal(t, str("VP Sales"), ann.CurrentTitle)
	assert.Equal(t, str("Acme"), ann.CurrentCompany)
	assert.Equal(t, str("Denver, Colorado"), ann.Location)
	assert.Equal(t, str("3rd"), ann.ConnectionDegree)
	require.NotNil(t, ann.MutualConnections)
	assert.Equal(t, 4, *ann.MutualConnections)

	ben := leads[1]
	assert.Equal(t, "Ben Kim", ben.FullName)
	assert.Nil(t, ben.Headline)
	require.NotNil(t, ben.MutualConnections)
	assert.Equal(t, 2, *ben.MutualConnections)
}

func TestExtractCompany(t *testing.T) {
	t.Parallel()
	x := New(nil)
	binding := crawler.Binding{Kind: lead.SourceCompany, Query: "acme", Company: "acme"}
	leads, err := x.Extract(crawler.Page{Body: []byte(companyPage)}, binding)
	require.NoError(t, err)
	require.Len(t, leads, 2)

	assert.Equal(t, "Sam Poe", leads[0].FullName)
	assert.Equal(t, str("https://www.linkedin.com/in/sam-poe"), leads[0].ProfileURL)
	assert.Equal(t, str("Designer"), leads[0].CurrentTitle)
	assert.Equal(t, str("acme"), leads[0].CurrentCompany, "roster company fills the gap")
	assert.Equal(t, str("Berlin"), leads[0].Location)
	assert.Equal(t, str("1st"), leads[0].ConnectionDegree)

	assert.Equal(t, str("Recruiter"), leads[1].CurrentTitle)
	assert.Equal(t, str("Acme Talent"), leads[1].CurrentCompany)
	assert.Equal(t, lead.SourceCompany, leads[1].Source)
}

func TestExtractEmptyPage(t *testing.T) {
	t.Parallel()
	x := New(nil)
	for _, kind := range lead.Sources {
		leads, err := x.Extract(crawler.Page{Body: []byte(`<html><body><a href="/in/someone">x</a></body></html>`)}, crawler.Binding{Kind: kind})
		require.NoError(t, err)
		require.Empty(t, leads, kind)
	}
}

func TestExtractUnknownSource(t *testing.T) {
	t.Parallel()
	_, err := New(nil).Extract(crawler.Page{}, crawler.Binding{Kind: "nope"})
	require.Error(t, err)
}
