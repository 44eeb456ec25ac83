// ABOUTME: Package documentation for the ledger service
// ABOUTME: Describes the outcome model and the single commit point

// Package ledger implements the shared finance ledger: the identity registry
// and access control, invite redemption, the category and payment method
// registry, transactions, budgets and per-user profiles.
//
// Every operation resolves its caller from the auth.AuthContext in the
// request context. Callers that cannot be resolved are rejected with an
// error (ErrUnauthenticated, ErrNotRegistered, ErrAccessRevoked,
// ErrUnauthorized). Business results are returned as an Outcome, never as an
// error.
//
// Mutations are serialized by a single lock and each runs in one store
// transaction; anything other than Success rolls the transaction back.
// Events and budget pushes go out only after the commit.
package ledger
