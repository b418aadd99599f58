// Package sinks implements progress consumers: Prometheus collectors, the
// scrape_runs audit table and the structured log.
package sinks
