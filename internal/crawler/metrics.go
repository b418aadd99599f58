package crawler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BlockedResponses counts fetches judged to be anti-automation responses.
	BlockedResponses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "prospector_crawl_blocked_total",
		Help: "The total number of fetched pages judged blocked, by reason.",
	}, []string{"reason"})
	// HeadfulRetries counts fully rendered refetches of skeleton pages.
	HeadfulRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "prospector_crawl_headful_retries_total",
		Help: "The total number of headful refetches triggered by a loading skeleton.",
	})
	// FetchErrors counts fetches that produced no page at all.
	FetchErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "prospector_crawl_fetch_errors_total",
		Help: "The total number of page fetches that failed outright.",
	})
)
