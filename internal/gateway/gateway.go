// ABOUTME: Gateway orchestrator that wires the store, auth, and HTTP server
// ABOUTME: Manages route registration, middleware, and graceful shutdown

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/nostria/investor-gateway/internal/auth"
	"github.com/nostria/investor-gateway/internal/config"
	"github.com/nostria/investor-gateway/internal/payout"
	"github.com/nostria/investor-gateway/internal/store"
)

// SessionCookieName is the cookie carrying the investor session ID.
const SessionCookieName = "investor_session"

// Gateway orchestrates the investor-gateway server components.
type Gateway struct {
	config        *config.Config
	store         store.Store
	sessions      *auth.SessionStore
	nostrVerifier *auth.EventVerifier
	challengeAuth *auth.ChallengeAuthenticator
	registry      *auth.ChallengeRegistry
	jwtVerifier   *auth.JWTVerifier
	engine        *payout.Engine
	httpServer    *http.Server
	logger        *slog.Logger
}

// initStore creates a store based on config and environment.
func initStore(cfg *config.Config) (store.Store, error) {
	dbPath := cfg.Database.Path
	if envPath := os.Getenv("INVESTOR_DB_PATH"); envPath != "" {
		dbPath = envPath
	}

	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}
	return s, nil
}

// New creates a new Gateway instance with the given configuration.
func New(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	s, err := initStore(cfg)
	if err != nil {
		return nil, err
	}

	registry := auth.NewChallengeRegistry(cfg.Challenge.TTL)
	challengeAuth, err := auth.NewChallengeAuthenticator(
		cfg.Challenge.ServerSeed,
		cfg.Challenge.NetworkPassphrase,
		cfg.Challenge.HomeDomain,
		registry,
		nil,
	)
	if err != nil {
		registry.Close()
		return nil, fmt.Errorf("creating challenge authenticator: %w", err)
	}

	gw := &Gateway{
		config:        cfg,
		store:         s,
		sessions:      auth.NewSessionStore(s, cfg.Auth.SessionDuration),
		nostrVerifier: auth.NewEventVerifier(cfg.Auth.MaxEventAge),
		challengeAuth: challengeAuth,
		registry:      registry,
		jwtVerifier:   auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret)),
		logger:        logger.With("component", "gateway"),
	}
	gw.engine = payout.NewEngine(s)

	mux := http.NewServeMux()
	gw.registerRoutes(mux)

	gw.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return gw, nil
}

// registerRoutes registers all HTTP routes on the mux.
func (g *Gateway) registerRoutes(mux *http.ServeMux) {
	// Health endpoint - no auth required
	mux.HandleFunc("GET /health", g.handleHealth)

	// Login endpoints - establish sessions, no auth required
	mux.HandleFunc("POST /auth/nostr/login", g.handleNostrLogin)
	mux.HandleFunc("POST /auth/stellar/challenge", g.handleStellarChallenge)
	mux.HandleFunc("POST /auth/stellar/verify", g.handleStellarVerify)
	mux.HandleFunc("POST /auth/logout", g.handleLogout)
	mux.HandleFunc("GET /auth/status", g.handleAuthStatus)

	// Investor endpoints - session required
	mux.HandleFunc("GET /api/investor/profile", g.requireSession(g.handleProfile))
	mux.HandleFunc("GET /api/investor/dashboard", g.requireSession(g.handleDashboard))
	mux.HandleFunc("GET /api/investor/payouts", g.requireSession(g.handleInvestorPayouts))

	// Settled periods are public summary data
	mux.HandleFunc("GET /api/revenues", g.handleListRevenues)

	// Operator endpoints - bearer token required
	mux.HandleFunc("POST /api/revenues", g.requireOperator(g.handleSettleRevenue))
	mux.HandleFunc("GET /api/investors", g.requireOperator(g.handleListInvestors))
	mux.HandleFunc("POST /api/investors", g.requireOperator(g.handleCreateInvestor))
	mux.HandleFunc("PATCH /api/investors/{id}", g.requireOperator(g.handleUpdateInvestor))
	mux.HandleFunc("POST /api/payouts/{id}/status", g.requireOperator(g.handleUpdatePayoutStatus))
}

// requireSession wraps a handler with session cookie authentication.
// The resolved identity is attached to the request context.
func (g *Gateway) requireSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(SessionCookieName)
		if err != nil {
			g.sendJSONError(w, http.StatusUnauthorized, "authentication required")
			return
		}

		sess, err := g.sessions.Resolve(r.Context(), cookie.Value)
		if err != nil {
			if errors.Is(err, auth.ErrSessionNotFound) || errors.Is(err, auth.ErrSessionExpired) {
				g.clearSessionCookie(w)
				g.sendJSONError(w, http.StatusUnauthorized, "session invalid or expired")
				return
			}
			g.logger.Error("failed to resolve session", "error", err)
			g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
			return
		}

		ctx := auth.WithAuth(r.Context(), &auth.AuthContext{
			InvestorID: sess.InvestorID,
			AuthMethod: sess.AuthMethod,
			SessionID:  sess.ID,
		})
		next(w, r.WithContext(ctx))
	}
}

// requireOperator wraps a handler with bearer token authentication for the
// admin surface.
func (g *Gateway) requireOperator(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			g.sendJSONError(w, http.StatusUnauthorized, "bearer token required")
			return
		}

		operatorID, err := g.jwtVerifier.Verify(token)
		if err != nil {
			g.sendJSONError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		g.logger.Debug("operator authenticated", "operator_id", operatorID)
		next(w, r)
	}
}

// Run starts the HTTP server and blocks until the context is canceled.
// Returns nil on graceful shutdown, or an error if the server fails.
func (g *Gateway) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening on HTTP address: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		g.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := g.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		g.logger.Error("server error", "error", serverErr)
	}

	shutdownErr := g.gracefulShutdown()
	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
// Uses context.Background() intentionally since the original context is already canceled.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return g.Shutdown(ctx)
}

// Shutdown stops the HTTP server and releases resources.
func (g *Gateway) Shutdown(ctx context.Context) error {
	var firstErr error

	if g.httpServer != nil {
		if err := g.httpServer.Shutdown(ctx); err != nil {
			firstErr = fmt.Errorf("shutting down HTTP server: %w", err)
		}
	}

	g.sessions.Close()
	g.registry.Close()

	if err := g.store.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("closing store: %w", err)
	}

	g.logger.Info("gateway shut down")
	return firstErr
}

// handleHealth handles GET /health requests.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// sendJSONError writes a JSON error response.
func (g *Gateway) sendJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// sendJSON writes a JSON response with the given status.
func (g *Gateway) sendJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
