package enrich

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/linkedin-prospector/internal/crawler"
	"github.com/JakeFAU/linkedin-prospector/internal/lead"
)

type fakeFetcher struct {
	mu       sync.Mutex
	pages    map[string]string
	blocked  map[string]bool
	requests []crawler.FetchRequest
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{pages: map[string]string{}, blocked: map[string]bool{}}
}

func (f *fakeFetcher) page(url, body string) *fakeFetcher {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages[url] = body
	return f
}

func (f *fakeFetcher) block(url string) *fakeFetcher {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blocked[url] = true
	return f
}

func (f *fakeFetcher) Fetch(_ context.Context, req crawler.FetchRequest) (crawler.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.blocked[req.URL] {
		return crawler.Page{URL: req.URL, StatusCode: 429}, nil
	}
	body, ok := f.pages[req.URL]
	if !ok {
		return crawler.Page{}, fmt.Errorf("no page for %s", req.URL)
	}
	return crawler.Page{URL: req.URL, StatusCode: 200, Body: []byte(body)}, nil
}

func (f *fakeFetcher) requested() []crawler.FetchRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]crawler.FetchRequest(nil), f.requests...)
}

func (f *fakeFetcher) urls() []string {
	var out []string
	for _, r := range f.requested() {
		out = append(out, r.URL)
	}
	return out
}

type fakeExtractor struct {
	mu       sync.Mutex
	byQuery  map[string][]lead.Lead
	bindings []crawler.Binding
}

func (x *fakeExtractor) Extract(_ crawler.Page, b crawler.Binding) ([]lead.Lead, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.bindings = append(x.bindings, b)
	return append([]lead.Lead(nil), x.byQuery[b.Query]...), nil
}

type fakeLocker struct {
	mu  sync.Mutex
	ops []string
	err error
}

func (l *fakeLocker) Do(ctx context.Context, op string, fn func(context.Context) error) error {
	l.mu.Lock()
	l.ops = append(l.ops, op)
	err := l.err
	l.mu.Unlock()
	if err != nil {
		return err
	}
	return fn(ctx)
}

func newTestEnricher(t *testing.T, f crawler.Fetcher, x crawler.Extractor, l crawler.Locker, opts ...Option) *Enricher {
	t.Helper()
	opts = append([]Option{WithLogger(zap.NewNop())}, opts...)
	e, err := New(f, x, l, opts...)
	require.NoError(t, err)
	return e
}

const memberURL = "https://www.linkedin.com/in/jane-doe"

func TestNewRequiresCollaborators(t *testing.T) {
	t.Parallel()
	_, err := New(nil, &fakeExtractor{}, &fakeLocker{})
	require.Error(t, err)
}

func TestEnrichSalesLeadResolvesMemberLink(t *testing.T) {
	t.Parallel()
	salesURL := "https://www.linkedin.com/sales/lead/ACwAAA,NAME_SEARCH,abc"
	f := newFakeFetcher().
		page(salesURL, `<html><body><a href="https://www.linkedin.com/in/jane-doe/?miniProfile=1">Jane Doe</a></body></html>`).
		page(memberURL, profilePage)
	locker := &fakeLocker{}
	e := newTestEnricher(t, f, &fakeExtractor{}, locker, WithDetails(false), WithHeadless(false))

	p, err := e.Enrich(context.Background(), Target{LeadID: 7, URL: salesURL, FullName: "Jane Doe"})
	require.NoError(t, err)

	assert.True(t, p.Enriched())
	assert.Equal(t, int64(7), p.LeadID)
	assert.Equal(t, memberURL, p.ProfileURL)
	assert.Equal(t, "Jane Doe", p.Summary.Name)
	assert.Equal(t, []string{"Head of Partnerships · Acme · 2020 - Present"}, p.Experience)
	assert.Len(t, p.ActivityPosts, 1)
	assert.Empty(t, p.Errors)
	assert.Equal(t, []string{Operation}, locker.ops)

	reqs := f.requested()
	require.Len(t, reqs, 2)
	assert.Equal(t, crawler.PrepareScroll, reqs[0].Prepare)
	assert.Equal(t, crawler.FetchRequest{URL: memberURL, Headless: false, Prepare: crawler.PrepareExpand}, reqs[1])
}

func TestEnrichFallsBackToPeopleSearch(t *testing.T) {
	t.Parallel()
	salesURL := "https://www.linkedin.com/sales/lead/XYZ"
	target := Target{LeadID: 2, URL: salesURL, FullName: "James Castle", Company: "Acme", Location: "Toronto, Ontario"}
	query := searchQueries(target)[0]
	best := "https://www.linkedin.com/in/jamescastleca"

	f := newFakeFetcher().
		page(salesURL, `<html><body><p>No member link here</p></body></html>`).
		page(crawler.SearchURL(lead.SearchRequest{Keywords: query}, 1), `<html><body></body></html>`).
		page(best, profilePage)
	x := &fakeExtractor{byQuery: map[string][]lead.Lead{
		query: {
			{FullName: "James C", ProfileURL: lead.StringPtr("https://www.linkedin.com/in/jc")},
			{
				FullName:       "James Castle",
				CurrentCompany: lead.StringPtr("Acme"),
				Location:       lead.StringPtr("Toronto, Ontario, Canada"),
				ProfileURL:     lead.StringPtr(best),
			},
		},
	}}
	e := newTestEnricher(t, f, x, &fakeLocker{}, WithDetails(false))

	p, err := e.Enrich(context.Background(), target)
	require.NoError(t, err)
	assert.Equal(t, best, p.ProfileURL)
	assert.True(t, p.Enriched())

	require.Len(t, x.bindings, 1)
	assert.Equal(t, crawler.Binding{Kind: lead.SourceSearch, Query: query}, x.bindings[0])
}

func TestEnrichTriesNarrowerSearchesUntilResults(t *testing.T) {
	t.Parallel()
	target := Target{URL: "https://example.com/people/jane", FullName: "Jane Doe", Location: "Toronto"}
	f := newFakeFetcher().
		page(crawler.SearchURL(lead.SearchRequest{Keywords: "Jane Doe Toronto"}, 1), `<html></html>`).
		page(crawler.SearchURL(lead.SearchRequest{Keywords: "Jane Doe"}, 1), `<html></html>`).
		page(memberURL, profilePage)
	x := &fakeExtractor{byQuery: map[string][]lead.Lead{
		"Jane Doe": {{FullName: "Jane Doe", ProfileURL: lead.StringPtr(memberURL)}},
	}}
	e := newTestEnricher(t, f, x, &fakeLocker{}, WithDetails(false))

	p, err := e.Enrich(context.Background(), target)
	require.NoError(t, err)
	assert.Equal(t, memberURL, p.ProfileURL)
	assert.Len(t, x.bindings, 2)
}

func TestEnrichUnresolved(t *testing.T) {
	t.Parallel()
	f := newFakeFetcher()
	e := newTestEnricher(t, f, &fakeExtractor{}, &fakeLocker{})

	p, err := e.Enrich(context.Background(), Target{LeadID: 3})
	require.NoError(t, err)
	assert.False(t, p.Enriched())
	assert.Equal(t, []string{ErrUnresolved}, p.Errors)
	assert.Empty(t, f.requested())
}

func TestEnrichBlockedProfile(t *testing.T) {
	t.Parallel()
	f := newFakeFetcher().block(memberURL)
	e := newTestEnricher(t, f, &fakeExtractor{}, &fakeLocker{})

	p, err := e.Enrich(context.Background(), Target{URL: memberURL})
	require.NoError(t, err)
	assert.Equal(t, memberURL, p.ProfileURL)
	assert.False(t, p.Enriched())
	assert.Equal(t, []string{ErrProfileFetch}, p.Errors)
	assert.Equal(t, []string{memberURL}, f.urls(), "subpages are skipped")

	_, err = e.fetchPage(context.Background(), memberURL, crawler.PrepareExpand)
	assert.ErrorIs(t, err, crawler.ErrBlocked)
}

func TestEnrichLockerError(t *testing.T) {
	t.Parallel()
	busy := errors.New("profile busy")
	f := newFakeFetcher().page(memberURL, profilePage)
	e := newTestEnricher(t, f, &fakeExtractor{}, &fakeLocker{err: busy})

	_, err := e.Enrich(context.Background(), Target{URL: memberURL})
	require.ErrorIs(t, err, busy)
	assert.Empty(t, f.requested())
}

func TestEnrichDetailSubpages(t *testing.T) {
	t.Parallel()
	f := newFakeFetcher().
		page(memberURL, profilePage).
		page(memberURL+"/details/experience/", experienceDetails).
		page(memberURL+"/recent-activity/all/", activityPage)
	e := newTestEnricher(t, f, &fakeExtractor{}, &fakeLocker{}, WithMaxPosts(2))

	p, err := e.Enrich(context.Background(), Target{URL: memberURL + "/"})
	require.NoError(t, err)

	assert.True(t, p.Enriched())
	require.Len(t, p.Experience, 2)
	assert.Contains(t, p.Experience[0], "Senior Director")
	assert.Equal(t, []string{"University of Toronto · BSc Computer Science"}, p.Education, "main page rows kept")
	require.Len(t, p.RecentPosts, 1)
	assert.Equal(t, []string{ErrEducationFetch}, p.Errors)

	assert.Equal(t, []string{
		memberURL,
		memberURL + "/details/experience/",
		memberURL + "/details/education/",
		memberURL + "/recent-activity/all/",
	}, f.urls())
	for _, r := range f.requested()[1:] {
		assert.Equal(t, crawler.PrepareScroll, r.Prepare)
		assert.True(t, r.Headless)
	}
}
