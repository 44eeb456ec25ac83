// Package auth provides caller authentication for ledger-gateway.
//
// # Tokens
//
// API callers present an HS256 JWT in the Authorization header:
//
//	Authorization: Bearer <token>
//
// The token subject is the caller's principal, an opaque identity issued by
// the hosting authentication provider or by `ledger-gateway token`. Tokens
// must carry the "ledger-gateway" issuer; exp is optional.
//
//	v, err := auth.NewJWTVerifier(secret) // secret >= 32 bytes
//	token, err := v.Generate(principalID, 24*time.Hour)
//	principalID, err := v.Verify(token)
//
// CachingVerifier puts a ristretto cache in front of any TokenVerifier so a
// busy client does not pay for signature checks on every request.
//
// # Context
//
// HTTPAuthMiddleware verifies the token, looks the principal up in the
// registry and stores an AuthContext on the request context. Principals with
// no registry entry are let through so they can accept an invite; the
// RequireRegisteredHTTP and RequireAdminHTTP gates narrow a route further.
//
// The ledger reads only AuthContext.PrincipalID and re-resolves the role
// inside its own transaction, so the snapshot fields are advisory.
package auth
