package connect

import (
	"context"
	"time"
)

// Locator finds the first visible element matching CSS, optionally requiring
// its text to contain Text (case-insensitive) and optionally searching only
// inside the first visible element matching Scope.
type Locator struct {
	CSS   string
	Text  string
	Scope string
}

// Element is a located element. Handle is an opaque reference the Driver
// understands for later clicks or typing.
type Element struct {
	Handle    string
	AriaLabel string
	Text      string
	Href      string
}

// Driver is the interactive browser capability the send flow runs on. The
// caller holds the browser profile for the driver's whole lifetime.
type Driver interface {
	Navigate(ctx context.Context, url string) error
	CurrentURL(ctx context.Context) (string, error)
	ScrollTo(ctx context.Context, y int) error
	// Find returns the first visible match. A missing element is not an error.
	Find(ctx context.Context, loc Locator) (Element, bool, error)
	Click(ctx context.Context, el Element) error
	Fill(ctx context.Context, el Element, text string) error
	// Capture saves a screenshot and the page HTML under name, best-effort.
	Capture(ctx context.Context, name string)
}

// Pauser waits out a delay unless ctx ends first.
type Pauser interface {
	Pause(ctx context.Context, delay time.Duration) error
}
