// Package api hosts the loopback ops HTTP server. Notable routes:
//   - GET /healthz and /readyz for liveness and database readiness.
//   - GET /metrics for Prometheus scraping.
//   - /v1/connect/... to inspect and steer the connect scheduler.
//   - GET /v1/session for the last session check, POST to re-check.
//   - /v1/runs/... for crawl runs: the active run, history, and starting
//     a search or URL scrape.
package api
