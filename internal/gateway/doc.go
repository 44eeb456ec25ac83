// Package gateway orchestrates the ledger-gateway server components.
//
// # Overview
//
// The gateway owns the SQLite store, the ledger service, the HTTP API and
// the optional gRPC health server. It connects the ledger's post-commit
// hooks to the RabbitMQ event publisher and the Matrix budget alert notifier
// when those are enabled, and seeds the category and payment method
// registries from configuration on startup.
//
// # HTTP API
//
// All API routes live under /api and require an HS256 bearer token whose
// subject is the caller's principal:
//
//	GET  /api/me                         caller's registry entry
//	POST /api/invites/accept             join with an invite token
//	GET  /api/transactions               visible ledger, filtered by query
//	POST /api/transactions               record a transaction
//	GET  /api/summary/dashboard          combined aggregates
//
// Principals that are not registered (or were revoked) may only call
// /api/me, /api/invites/accept and the profile and notification PUTs, which
// answer invalidUser for them. A revoke by a non-admin is answered with the
// unauthorizedActivity outcome rather than 403. Admin-only routes are gated
// again inside the ledger, so the middleware is a fast path rather than the
// authority.
//
// # Responses
//
// Mutations answer 200 with a result envelope whatever the business outcome:
//
//	{"result": "success", "id": 42}
//	{"result": "invalidCategory"}
//
// Times are integer nanoseconds since the Unix epoch in both directions.
// Request bodies and query parameters also accept RFC 3339 strings and
// YYYY-MM-DD dates.
//
// Rejected callers get 401 (no valid token) or 403 (not registered, revoked,
// or missing the role), with {"error": "..."}. Malformed input is 400 and
// store faults are 500.
//
// # Idempotency
//
// When idempotency is enabled, a POST, PUT or DELETE carrying an
// Idempotency-Key header is recorded per principal, method, path and key.
// A retry within the TTL receives the first response with
// Idempotent-Replayed: true. A concurrent duplicate receives 409. 5xx
// responses are not recorded.
//
// # Health
//
//	GET /health         always 200 while the process is up
//	GET /health/ready   200 when the store answers a ping, else 503
//
// With server.grpc_addr set, grpc.health.v1 is served there (or on :50051
// of the tailnet node) and tracks the same store ping.
//
// # Tailscale
//
// With tailscale.enabled the gateway joins the tailnet through tsnet and
// listens on :80, on :443 with tailnet certificates (https), or on a public
// Funnel (funnel). server.http_addr is ignored in that mode.
package gateway
