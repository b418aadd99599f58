package enrich

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const profilePage = `<html><body><main>
<section>
  <h1>Jane Doe</h1>
  <div class="text-body-medium">Head of Partnerships at Acme</div>
  <span class="text-body-small inline t-black--light break-words">Toronto, Ontario, Canada</span>
</section>
<section><div id="about"></div><h2>About</h2>
  <div class="inline-show-more-text">Builder-operator focused on scaling GTM teams globally.</div>
</section>
<section><div id="experience"></div><h2>Experience</h2><ul>
  <li>Head of Partnerships · Acme · 2020 - Present</li>
  <li>Show all 5 experiences</li>
</ul></section>
<section><div id="education"></div><h2>Education</h2><ul>
  <li>University of Toronto · BSc Computer Science</li>
</ul></section>
<section><h2>Skills</h2><ul><li>Channel Partnerships</li><li>Go</li></ul></section>
<section><h2>Activity</h2><p>512 followers</p><p>Posts</p>
  <a href="/feed/update/urn:li:activity:7/">Thrilled to announce our new partner program today.</a>
  <a href="https://www.linkedin.com/in/someone-else/">A long enough link text to a profile page</a>
</section>
</main></body></html>`

const experienceDetails = `<html><body><main><ul>
<li class="pvs-list__paged-list-item">Senior Director, Partnerships · Acme · 2021 - Present</li>
<li class="pvs-list__paged-list-item">Director, Partnerships · Acme · 2018 - 2021</li>
<li class="pvs-list__paged-list-item">Show all</li>
</ul></main></body></html>`

const activityPage = `<html><body><main>
<article>
  <a href="/feed/update/urn:li:activity:123">Post</a>
  <div>Excited to share our latest partnership launch.</div>
</article>
</main></body></html>`

func mustDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func TestParseSummary(t *testing.T) {
	t.Parallel()
	got := ParseSummary(mustDoc(t, profilePage))
	assert.Equal(t, Summary{
		Name:     "Jane Doe",
		Headline: "Head of Partnerships at Acme",
		Location: "Toronto, Ontario, Canada",
	}, got)
}

func TestParseAbout(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "Builder-operator focused on scaling GTM teams globally.", ParseAbout(mustDoc(t, profilePage)))

	fallback := mustDoc(t, `<main><section><h2>About</h2>
<div>Builder-operator focused on scaling GTM teams globally.</div></section></main>`)
	assert.Equal(t, "Builder-operator focused on scaling GTM teams globally.", ParseAbout(fallback))

	assert.Empty(t, ParseAbout(mustDoc(t, `<main><section><h2>Experience</h2></section></main>`)))
}

func TestSectionItems(t *testing.T) {
	t.Parallel()
	doc := mustDoc(t, profilePage)

	assert.Equal(t, []string{"Head of Partnerships · Acme · 2020 - Present"}, SectionItems(doc, SectionExperience, 12))
	assert.Equal(t, []string{"University of Toronto · BSc Computer Science"}, SectionItems(doc, SectionEducation, 10))
	assert.Equal(t, []string{"Channel Partnerships"}, SectionItems(doc, SectionSkills, 20))
	assert.Empty(t, SectionItems(doc, SectionLanguages, 10))
}

func TestDetailItems(t *testing.T) {
	t.Parallel()
	items := DetailItems(mustDoc(t, experienceDetails), SectionExperience, 12)
	require.Len(t, items, 2)
	assert.Contains(t, items[0], "Senior Director")

	assert.Len(t, DetailItems(mustDoc(t, experienceDetails), SectionExperience, 1), 1)
}

func TestPosts(t *testing.T) {
	t.Parallel()

	recent := RecentPosts(mustDoc(t, activityPage), 3)
	require.Len(t, recent, 1)
	assert.Equal(t, "https://www.linkedin.com/feed/update/urn:li:activity:123", recent[0].URL)
	assert.Contains(t, strings.ToLower(recent[0].Text), "latest partnership")

	activity := ActivityPosts(mustDoc(t, profilePage), 5)
	require.Len(t, activity, 1, "only post links count")
	assert.Equal(t, "https://www.linkedin.com/feed/update/urn:li:activity:7", activity[0].URL)

	assert.Empty(t, FeaturedPosts(mustDoc(t, profilePage), 5))
}

func TestLooksLikeItem(t *testing.T) {
	t.Parallel()
	tests := []struct {
		text    string
		section Section
		want    bool
	}{
		{"Head of Partnerships · Acme · 2020 - Present", SectionExperience, true},
		{"Built the partner team from zero to twelve", SectionExperience, true},
		{"Partner Manager role", SectionExperience, false},
		{"Channel Partnerships", SectionSkills, true},
		{"Show all 12 experiences", SectionExperience, false},
		{"Messaging and more items here", SectionExperience, false},
		{"Mechanical engineer at Acme since 2019", SectionExperience, true},
		{"Visit https://example.com for details", SectionExperience, false},
		{"{\"componentKey\": \"profile\"}", SectionSkills, false},
		{"Acme logo design work", SectionSkills, true},
		{"Acme Corporation logo", SectionSkills, false},
		{"Short", SectionSkills, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, looksLikeItem(tt.text, tt.section), tt.text)
	}
}
