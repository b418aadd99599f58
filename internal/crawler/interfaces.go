package crawler

import (
	"context"
	"time"

	"github.com/JakeFAU/linkedin-prospector/internal/lead"
)

// Fetcher loads a page through the browser and returns the rendered DOM.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (Page, error)
}

// Extractor turns a fetched result page into zero or more lead records.
type Extractor interface {
	Extract(page Page, binding Binding) ([]lead.Lead, error)
}

// Locker grants exclusive use of the browser profile for the duration of fn.
type Locker interface {
	Do(ctx context.Context, operation string, fn func(context.Context) error) error
}

// Throttle spaces requests that share a key.
type Throttle interface {
	Wait(ctx context.Context, key string, interval time.Duration) error
}

// Snapshotter persists raw page HTML for selector debugging.
type Snapshotter interface {
	SaveHTML(ctx context.Context, name string, body []byte) (string, error)
}

// ProgressFunc receives the running record total after each productive page.
type ProgressFunc func(found, page int)
