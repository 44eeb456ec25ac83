// Package dedupe provides a replay cache for idempotent request handling.
// The first request for a key reserves it; once that request finishes its
// result is stored and returned to every retry within the TTL window.
package dedupe
