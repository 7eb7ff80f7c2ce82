// Package auth provides authentication for investor-gateway.
//
// # Authentication Methods
//
// The package supports two investor login protocols plus an operator token
// scheme:
//
//   - Signed Events: Nostr identities authenticate by submitting a signed
//     event of kind 27235. The gateway verifies the BIP-340 Schnorr signature
//     over the canonical event serialization and checks the timestamp against
//     a freshness window.
//
//   - Challenge-Response: Stellar-style ed25519 identities first request a
//     server-signed challenge envelope, counter-sign it, and post it back.
//     Challenges are single-use, time-bounded, and keyed by the claimed
//     public key; issuing a new challenge replaces the previous one.
//
//   - JWT Tokens: Operators authenticate to the admin API surface with HS256
//     bearer tokens signed with the configured jwt_secret.
//
// # Sessions
//
// Successful investor logins produce a cookie-backed session persisted in the
// store. Sessions expire after a configurable duration; expired sessions are
// deleted on first observation and swept periodically.
//
// # Key Encodings
//
// Public keys in both namespaces are 64-character lowercase hex strings.
// Uppercase input is normalized; anything else is rejected as malformed.
//
// # Request Context
//
// The session middleware attaches an AuthContext to the request context:
//
//	auth := auth.FromContext(ctx)
//	if auth == nil { /* unauthenticated */ }
package auth
