package headless

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/cdproto/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/linkedin-prospector/internal/browser"
	"github.com/JakeFAU/linkedin-prospector/internal/crawler"
)

type failingOpener struct {
	mu    sync.Mutex
	modes []bool
}

func (o *failingOpener) Open(_ context.Context, headless bool) (*browser.Session, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.modes = append(o.modes, headless)
	return nil, errors.New("chrome not installed")
}

func TestNewChromedpRequiresOpener(t *testing.T) {
	t.Parallel()
	_, err := NewChromedp(nil, nil)
	require.Error(t, err)
}

func TestFetchPropagatesLaunchFailure(t *testing.T) {
	t.Parallel()
	opener := &failingOpener{}
	f, err := NewChromedp(opener, nil)
	require.NoError(t, err)

	_, err = f.Fetch(context.Background(), crawler.FetchRequest{URL: "https://www.linkedin.com/feed/", Headless: false})

	require.ErrorContains(t, err, "chrome not installed")
	assert.Equal(t, []bool{false}, opener.modes)
}

func TestCloneHeader(t *testing.T) {
	t.Parallel()

	src := http.Header{"X-Test": {"a", "b"}}
	cloned := cloneHeader(src)
	cloned.Add("X-Test", "c")
	assert.Len(t, src["X-Test"], 2)
	assert.Nil(t, cloneHeader(nil))
}

func TestResponseMetaCaptureAndFallbacks(t *testing.T) {
	t.Parallel()

	meta := newResponseMeta()
	meta.captureEvent(&network.EventResponseReceived{
		Type: network.ResourceTypeDocument,
		Response: &network.Response{
			Status:  999,
			URL:     "https://www.linkedin.com/search/results/people/",
			Headers: network.Headers{"X-Li-Fabric": "prod"},
		},
	})
	meta.captureEvent(&network.EventResponseReceived{
		Type:     network.ResourceTypeImage,
		Response: &network.Response{Status: 200, URL: "https://static.licdn.com/x.png"},
	})
	status, headers, url := meta.snapshotWithFallbacks("https://req", "")
	assert.Equal(t, 999, status)
	assert.Equal(t, "prod", headers.Get("X-Li-Fabric"))
	assert.Equal(t, "https://www.linkedin.com/search/results/people/", url)

	meta = newResponseMeta()
	status, _, url = meta.snapshotWithFallbacks("https://req", "https://final")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "https://final", url)
}

func TestPrepareActionKnownRoutines(t *testing.T) {
	t.Parallel()
	for _, p := range []crawler.Prepare{crawler.PrepareNone, crawler.PrepareScroll, crawler.PrepareWaitForLeads, crawler.PrepareExpand} {
		assert.NotNil(t, prepareAction(p))
	}
}

func TestLeadRowSelectorIgnoresSkeletons(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		html string
		want int
	}{
		{
			name: "loading skeleton",
			html: `<ol><li class="artdeco-list__item"><div class="skeleton-lockup"></div></li><li class="artdeco-list__item"></li></ol>`,
			want: 0,
		},
		{
			name: "mounted rows",
			html: `<ol><li class="artdeco-list__item"><div data-x-search-result="LEAD">
<a data-lead-search-result="profile-link-0" href="/sales/lead/ACw1,NAME_SEARCH">Jane</a></div></li></ol>`,
			want: 2,
		},
		{
			name: "profile link only",
			html: `<li class="artdeco-list__item"><a data-lead-search-result="profile-link-3">Bo</a></li>`,
			want: 1,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			doc, err := goquery.NewDocumentFromReader(strings.NewReader(tc.html))
			require.NoError(t, err)
			assert.Equal(t, tc.want, doc.Find(leadRowSelector).Length())
		})
	}
}
