package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/linkedin-prospector/internal/crawler"
)

type fakeFetcher struct {
	mu       sync.Mutex
	page     crawler.Page
	err      error
	requests []crawler.FetchRequest
}

func (f *fakeFetcher) Fetch(_ context.Context, req crawler.FetchRequest) (crawler.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	return f.page, f.err
}

func (f *fakeFetcher) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

type fakeBrowser struct {
	mu       sync.Mutex
	landed   string
	ok       bool
	err      error
	resetErr error
	resets   int
	timeout  time.Duration
}

func (b *fakeBrowser) WaitForLogin(_ context.Context, startURL string, timeout time.Duration, match func(string) bool) (string, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.timeout = timeout
	if startURL != LoginURL {
		return "", false, errors.New("unexpected start url")
	}
	return b.landed, b.ok && match(b.landed), b.err
}

func (b *fakeBrowser) ResetProfile() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resets++
	return b.resetErr
}

type fakeLocker struct {
	mu  sync.Mutex
	ops []string
}

func (l *fakeLocker) Do(ctx context.Context, op string, fn func(context.Context) error) error {
	l.mu.Lock()
	l.ops = append(l.ops, op)
	l.mu.Unlock()
	return fn(ctx)
}

func TestCheckClassifiesLanding(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		page crawler.Page
		want Status
	}{
		{"feed", crawler.Page{URL: FeedURL, FinalURL: FeedURL, StatusCode: 200}, StatusConnected},
		{"login redirect", crawler.Page{URL: FeedURL, FinalURL: "https://www.linkedin.com/login?session_redirect=x", StatusCode: 200}, StatusExpired},
		{"checkpoint", crawler.Page{URL: FeedURL, FinalURL: "https://www.linkedin.com/checkpoint/challenge", StatusCode: 200}, StatusExpired},
		{"bad status", crawler.Page{URL: FeedURL, StatusCode: 999}, StatusExpired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			fetcher := &fakeFetcher{page: tt.page}
			locker := &fakeLocker{}
			m := NewManager(fetcher, &fakeBrowser{}, locker, 0, nil)

			res := m.Check(context.Background())

			assert.Equal(t, tt.want, res.Status)
			assert.Equal(t, res, m.Last())
			assert.Equal(t, []string{"session_check"}, locker.ops)
			require.Len(t, fetcher.requests, 1)
			assert.True(t, fetcher.requests[0].Headless)
			assert.Equal(t, FeedURL, fetcher.requests[0].URL)
		})
	}
}

func TestCheckErrorIsUnknown(t *testing.T) {
	t.Parallel()
	m := NewManager(&fakeFetcher{err: errors.New("chrome crashed")}, &fakeBrowser{}, &fakeLocker{}, 0, nil)

	res := m.Check(context.Background())

	assert.Equal(t, StatusUnknown, res.Status)
	assert.Contains(t, res.Detail, "chrome crashed")
}

func TestLoginOutcomes(t *testing.T) {
	t.Parallel()

	b := &fakeBrowser{landed: "https://www.linkedin.com/feed/", ok: true}
	m := NewManager(&fakeFetcher{}, b, &fakeLocker{}, 0, nil)
	assert.Equal(t, StatusConnected, m.Login(context.Background()).Status)
	assert.Equal(t, DefaultLoginTimeout, b.timeout)

	b = &fakeBrowser{landed: "https://www.linkedin.com/login"}
	m = NewManager(&fakeFetcher{}, b, &fakeLocker{}, time.Minute, nil)
	res := m.Login(context.Background())
	assert.Equal(t, StatusExpired, res.Status)
	assert.Contains(t, res.Detail, "timed out")
	assert.Equal(t, time.Minute, b.timeout)

	b = &fakeBrowser{err: errors.New("no display")}
	m = NewManager(&fakeFetcher{}, b, &fakeLocker{}, 0, nil)
	assert.Equal(t, StatusUnknown, m.Login(context.Background()).Status)
}

func TestLogoutResetsProfile(t *testing.T) {
	t.Parallel()
	b := &fakeBrowser{}
	locker := &fakeLocker{}
	m := NewManager(&fakeFetcher{}, b, locker, 0, nil)

	res, err := m.Logout(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusUnknown, res.Status)
	assert.Equal(t, 1, b.resets)
	assert.Equal(t, []string{"session_logout"}, locker.ops)

	b.resetErr = errors.New("permission denied")
	_, err = m.Logout(context.Background())
	require.ErrorContains(t, err, "permission denied")
}

func TestLoggedInURL(t *testing.T) {
	t.Parallel()
	assert.True(t, LoggedInURL("https://www.linkedin.com/feed/"))
	assert.True(t, LoggedInURL("https://www.linkedin.com/in/me/"))
	assert.True(t, LoggedInURL("https://www.linkedin.com/sales/home"))
	assert.False(t, LoggedInURL("https://www.linkedin.com/login"))
	assert.False(t, LoggedInURL("https://www.linkedin.com/checkpoint/lg/login-submit"))
}

func TestMonitorRunsScheduledCheck(t *testing.T) {
	t.Parallel()
	fetcher := &fakeFetcher{page: crawler.Page{URL: FeedURL, StatusCode: 200}}
	m := NewManager(fetcher, &fakeBrowser{}, &fakeLocker{}, 0, nil)
	mon := NewMonitor(m, "@every 1s", nil)

	var mu sync.Mutex
	swept := 0
	require.NoError(t, mon.AddJob("@every 1s", "sweep", func(context.Context) {
		mu.Lock()
		swept++
		mu.Unlock()
	}))
	require.NoError(t, mon.Start(context.Background()))
	defer mon.Stop()

	assert.Equal(t, 2, mon.Entries())
	require.Eventually(t, func() bool { return fetcher.calls() > 0 }, 3*time.Second, 20*time.Millisecond)
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return swept > 0
	}, 3*time.Second, 20*time.Millisecond)
	assert.Equal(t, StatusConnected, m.Last().Status)
}

func TestMonitorRejectsBadSchedule(t *testing.T) {
	t.Parallel()
	mon := NewMonitor(NewManager(&fakeFetcher{}, &fakeBrowser{}, &fakeLocker{}, 0, nil), "every now and then", nil)
	require.Error(t, mon.Start(context.Background()))
	require.Error(t, mon.AddJob("nope", "sweep", func(context.Context) {}))
}
