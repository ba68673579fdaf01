// Package api hosts the HTTP server, middleware, and REST handlers for
// operator access. Notable routes:
//   - GET /healthz and /readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /v1/complexes and /v1/complexes/{id}/areas for catalog management.
//   - /v1/jobs for saved job definitions: CRUD, pause/resume, and a run-now
//     trigger.
//   - POST /v1/runs to trigger an ad-hoc collection run over the catalog.
//   - GET /v1/complexes/{id}/valuations|transactions|listings for the
//     paginated data explorer, plus a CSV export of transactions.
package api
