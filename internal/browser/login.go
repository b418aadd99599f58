package browser

import (
	"context"
	"fmt"
	"time"
)

// loginPoll is how often the location is checked during interactive login.
const loginPoll = time.Second

// WaitForLogin opens a visible browser on startURL and waits until match
// accepts the location or timeout passes. It reports the last location seen.
func (l *Launcher) WaitForLogin(ctx context.Context, startURL string, timeout time.Duration, match func(string) bool) (string, bool, error) {
	sess, err := l.Open(ctx, false)
	if err != nil {
		return "", false, err
	}
	defer sess.Close()

	page := NewPage(sess, nil, l.logger)
	if err := page.Navigate(ctx, startURL); err != nil {
		return "", false, fmt.Errorf("open login page: %w", err)
	}
	return page.WaitForURL(ctx, timeout, loginPoll, match)
}
