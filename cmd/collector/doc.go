// Package main hosts the collector service entrypoint.
//
// Architecture overview:
//   - HTTP API: internal/api.Server exposes health, metrics, catalog management,
//     saved job definitions, run triggering, and data-explorer endpoints. Trigger
//     requests (ad hoc or from a job definition) are fanned out into
//     per-complex (and per-area for price jobs) tasks, persisted via the run store,
//     and enqueued for the worker pool.
//   - Queue & workers: tasks flow through the configured work queue (bounded
//     in-memory channel for a single process, Pub/Sub for split producer/consumer
//     replicas) into a fixed worker pool sized by config.Collector.Concurrency.
//     Context cancellation stops workers cleanly on shutdown.
//   - Fetch pipeline: each worker owns its own set of hybrid KB connectors. Calls
//     go direct
//     HTTP first; after the configured number of consecutive auth or network
//     failures a connector permanently escalates to a Chromedp browser session that
//     replays navigation and intercepts the portal's own API responses. Per-job-type
//     rate limiters pace upstream calls, and transient failures retry with
//     exponential backoff.
//   - Persistence & fanout: parsed valuations, transactions, and listings are
//     written to Postgres (or memory when no DSN is configured). The raw upstream
//     payload of every successful task is archived to the configured blob store
//     (noop/memory/local/GCS), and a compact completion event is published per run
//     when a Pub/Sub topic is configured.
//   - Configuration & plumbing: Viper populates config from file and KBC_* env
//     vars; zap provides structured logging; Prometheus metrics are exported via
//     the metrics middleware and the /metrics handler.
//
// Operational notes:
//   - Concurrency model: bounded queue + fixed worker pool; the browser session is
//     a single serialized Chrome instance shared by the connectors. Shutdown is
//     coordinated via context cancellation propagated from main through the queue
//     to workers.
//   - Pacing: per-job-type rate limiters enforce collector.requests_per_minute
//     against the portal. Rate-limit responses back off without counting toward
//     browser escalation.
//   - Run locally: go run ./cmd/collector -config config.yaml (or rely solely on
//     KBC_* env overrides).
package main
