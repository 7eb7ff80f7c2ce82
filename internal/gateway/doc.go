// Package gateway orchestrates the investor-gateway server components.
//
// # Overview
//
// The gateway package is the central coordinator of the investor-gateway
// server. It owns and manages all major components: HTTP server, SQLite
// store, session store, event verifier, challenge authenticator, operator
// token verifier, and the payout engine.
//
// # Gateway Struct
//
// The Gateway struct is the main entry point:
//
//	type Gateway struct {
//	    config        *config.Config
//	    store         store.Store
//	    sessions      *auth.SessionStore
//	    nostrVerifier *auth.EventVerifier
//	    challengeAuth *auth.ChallengeAuthenticator
//	    registry      *auth.ChallengeRegistry
//	    jwtVerifier   *auth.JWTVerifier
//	    engine        *payout.Engine
//	    httpServer    *http.Server
//	    logger        *slog.Logger
//	}
//
// # HTTP API
//
// Authentication endpoints (auth.go):
//
//   - POST /auth/nostr/login - Log in with a signed kind-27235 event
//   - POST /auth/stellar/challenge - Request a challenge envelope
//   - POST /auth/stellar/verify - Return the counter-signed envelope
//   - POST /auth/logout - Destroy the current session
//   - GET /auth/status - Report session state
//
// Investor endpoints, session cookie required (api.go):
//
//   - GET /api/investor/profile - Investor record with computed share
//   - GET /api/investor/dashboard - Payout totals and recent history
//   - GET /api/investor/payouts - Full payout history
//
// Operator endpoints, bearer token required (api.go):
//
//   - GET/POST /api/revenues - List periods / settle a month
//   - GET/POST /api/investors - List / register investors
//   - PATCH /api/investors/{id} - Update an investor
//   - POST /api/payouts/{id}/status - Advance payout status
//   - GET /health - Liveness check
//
// # Authentication
//
// Two investor login paths share one session model. Nostr clients submit a
// signed HTTP-auth event which is verified against freshness, identity, and
// signature rules. Stellar clients run a two-round challenge protocol: the
// server issues a signed envelope holding a single-use nonce, the client
// counter-signs it, and the server validates both signatures before
// consuming the nonce. Either path resolves the key to a registered
// investor and issues an opaque session cookie.
//
// Operators bypass sessions entirely and authenticate per-request with an
// HS256 bearer token.
//
// # Lifecycle
//
// Start the gateway:
//
//	gw, err := gateway.New(cfg, logger)
//	err = gw.Run(ctx)
//
// Run blocks until the context is canceled or the server fails, then drains
// in-flight requests and closes the session sweeper, challenge registry,
// and store.
//
// # Key Files
//
//   - gateway.go: Gateway struct, wiring, middleware, Run/Shutdown
//   - auth.go: Login, logout, and challenge handlers
//   - api.go: Investor and operator API handlers
package gateway
