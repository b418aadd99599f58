package crawler

import (
	"fmt"
	"time"

	"github.com/JakeFAU/linkedin-prospector/internal/lead"
)

// Default engine settings.
const (
	DefaultDelay         = 3 * time.Second
	DefaultSalesNavDelay = 4 * time.Second
	DefaultBlockWait     = 30 * time.Second
	DefaultMaxRetries    = 2
)

// Config holds the knobs that shape a crawl. It is decoupled from Viper so the
// engine can be configured directly in tests.
type Config struct {
	// Headless selects the fetch mode of the first attempt at each page.
	Headless      bool
	DefaultDelay  time.Duration
	SalesNavDelay time.Duration
	BlockWait     time.Duration
	MaxRetries    int
	Skeleton      SkeletonRule
}

// DefaultConfig returns the settings the tool ships with.
func DefaultConfig() Config {
	return Config{
		Headless:      true,
		DefaultDelay:  DefaultDelay,
		SalesNavDelay: DefaultSalesNavDelay,
		BlockWait:     DefaultBlockWait,
		MaxRetries:    DefaultMaxRetries,
		Skeleton:      DefaultSkeletonRule(),
	}
}

// Validate checks for obviously bad configuration combinations.
func (c Config) Validate() error {
	if c.MaxRetries < 1 {
		return fmt.Errorf("crawler.max_retries must be >= 1")
	}
	if c.DefaultDelay < 0 {
		return fmt.Errorf("crawler.default_delay_seconds must be >= 0")
	}
	if c.SalesNavDelay < 0 {
		return fmt.Errorf("crawler.sales_nav_delay_seconds must be >= 0")
	}
	if c.BlockWait < 0 {
		return fmt.Errorf("crawler.block_wait_seconds must be >= 0")
	}
	return nil
}

// DelayFor returns the throttle interval for a source.
func (c Config) DelayFor(src Source) time.Duration {
	if src.Delay > 0 {
		return src.Delay
	}
	if src.Kind == lead.SourceSalesNavigator {
		return c.SalesNavDelay
	}
	return c.DefaultDelay
}
