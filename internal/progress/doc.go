// Package progress carries crawl-run progress events from the runner to
// pluggable sinks. Emit never blocks; a background goroutine delivers events
// in order to sinks such as Prometheus, the run audit table or the
// log.
package progress
