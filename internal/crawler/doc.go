// Package crawler implements the paginating crawl engine: URL builders for
// the result page families, block and skeleton detection, cooldown retries,
// debug snapshots and the page loop that feeds extractors.
package crawler
