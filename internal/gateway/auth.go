// ABOUTME: HTTP handlers for investor login, logout, and session status
// ABOUTME: Maps both login protocols onto cookie-backed sessions

package gateway

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/nostria/investor-gateway/internal/auth"
	"github.com/nostria/investor-gateway/internal/store"
)

// NostrLoginRequest is the JSON request body for POST /auth/nostr/login.
type NostrLoginRequest struct {
	Event *auth.NostrEvent `json:"event"`
}

// ChallengeRequest is the JSON request body for POST /auth/stellar/challenge.
type ChallengeRequest struct {
	PublicKey string `json:"public_key"`
}

// ChallengeResponse is the JSON response for POST /auth/stellar/challenge.
// The network passphrase is part of the signing hash, so clients need it to
// counter-sign the transaction.
type ChallengeResponse struct {
	Transaction       string `json:"transaction"`
	NetworkPassphrase string `json:"network_passphrase"`
	ServerPubkey      string `json:"server_pubkey"`
	HomeDomain        string `json:"home_domain"`
}

// VerifyRequest is the JSON request body for POST /auth/stellar/verify.
type VerifyRequest struct {
	Transaction string `json:"transaction"`
}

// LoginResponse is the JSON response for successful logins.
type LoginResponse struct {
	InvestorID string `json:"investor_id"`
	Name       string `json:"name,omitempty"`
	AuthMethod string `json:"auth_method"`
	ExpiresAt  string `json:"expires_at"`
}

// StatusResponse is the JSON response for GET /auth/status.
type StatusResponse struct {
	Authenticated bool   `json:"authenticated"`
	InvestorID    string `json:"investor_id,omitempty"`
	AuthMethod    string `json:"auth_method,omitempty"`
}

// handleNostrLogin handles POST /auth/nostr/login.
// The signed kind-27235 event arrives either as `{"event": {...}}` in the
// JSON body or base64-encoded in an "Authorization: Nostr <event>" header.
// A valid signature from a registered investor key opens a session.
func (g *Gateway) handleNostrLogin(w http.ResponseWriter, r *http.Request) {
	var ev *auth.NostrEvent
	if encoded, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Nostr "); ok {
		raw, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			g.sendJSONError(w, http.StatusBadRequest, "invalid authorization header encoding")
			return
		}
		ev = &auth.NostrEvent{}
		if err := json.Unmarshal(raw, ev); err != nil {
			g.sendJSONError(w, http.StatusBadRequest, "invalid event in authorization header")
			return
		}
	} else {
		var req NostrLoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			g.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if req.Event == nil {
			g.sendJSONError(w, http.StatusBadRequest, "event is required")
			return
		}
		ev = req.Event
	}

	pubkey, err := g.nostrVerifier.Verify(ev)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrMalformedEvent):
			g.sendJSONError(w, http.StatusBadRequest, err.Error())
		default:
			// Wrong kind, stale timestamp, id mismatch, bad signature
			g.sendJSONError(w, http.StatusUnauthorized, "event verification failed")
		}
		return
	}

	g.openSession(w, r, store.KeyKindNostr, pubkey, auth.MethodNostr)
}

// handleStellarChallenge handles POST /auth/stellar/challenge.
// Issues a server-signed challenge for the claimed public key. The key does
// not need to belong to a registered investor yet; that check happens at
// verify time.
func (g *Gateway) handleStellarChallenge(w http.ResponseWriter, r *http.Request) {
	var req ChallengeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.PublicKey == "" {
		g.sendJSONError(w, http.StatusBadRequest, "public_key is required")
		return
	}

	wire, err := g.challengeAuth.BeginChallenge(req.PublicKey)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidClientKey) {
			g.sendJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		g.logger.Error("failed to issue challenge", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	g.sendJSON(w, http.StatusOK, ChallengeResponse{
		Transaction:       wire,
		NetworkPassphrase: g.config.Challenge.NetworkPassphrase,
		ServerPubkey:      g.challengeAuth.ServerPubkey(),
		HomeDomain:        g.config.Challenge.HomeDomain,
	})
}

// handleStellarVerify handles POST /auth/stellar/verify.
// Accepts the counter-signed challenge envelope and opens a session on
// success.
func (g *Gateway) handleStellarVerify(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Transaction == "" {
		g.sendJSONError(w, http.StatusBadRequest, "transaction is required")
		return
	}

	pubkey, err := g.challengeAuth.CompleteChallenge(req.Transaction)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrMalformedEnvelope), errors.Is(err, auth.ErrInvalidClientKey):
			g.sendJSONError(w, http.StatusBadRequest, err.Error())
		default:
			// Expired, unknown, replayed, or badly signed challenges all
			// look the same to the caller
			g.sendJSONError(w, http.StatusUnauthorized, "challenge verification failed")
		}
		return
	}

	g.openSession(w, r, store.KeyKindStellar, pubkey, auth.MethodStellar)
}

// openSession resolves the authenticated key to an investor, creates a
// session, and sets the cookie. A key that verified but belongs to no
// registered investor yields 404.
func (g *Gateway) openSession(w http.ResponseWriter, r *http.Request, kind store.KeyKind, pubkey, method string) {
	inv, err := g.store.GetInvestorByKey(r.Context(), kind, pubkey)
	if errors.Is(err, store.ErrNotFound) {
		g.sendJSONError(w, http.StatusNotFound, "no investor registered for this key")
		return
	}
	if err != nil {
		g.logger.Error("failed to look up investor", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	sess, err := g.sessions.Create(r.Context(), inv.ID, method)
	if err != nil {
		g.logger.Error("failed to create session", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	g.setSessionCookie(w, sess)
	g.sendJSON(w, http.StatusOK, LoginResponse{
		InvestorID: inv.ID,
		Name:       inv.Name,
		AuthMethod: method,
		ExpiresAt:  sess.ExpiresAt.Format(time.RFC3339),
	})
}

// handleLogout handles POST /auth/logout. Logout is idempotent: a missing or
// already-destroyed session still yields 200.
func (g *Gateway) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		if err := g.sessions.Destroy(r.Context(), cookie.Value); err != nil {
			g.logger.Warn("failed to destroy session", "error", err)
		}
	}

	g.clearSessionCookie(w)
	g.sendJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

// handleAuthStatus handles GET /auth/status. Never fails: an absent or
// invalid session reports unauthenticated.
func (g *Gateway) handleAuthStatus(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		g.sendJSON(w, http.StatusOK, StatusResponse{Authenticated: false})
		return
	}

	sess, err := g.sessions.Resolve(r.Context(), cookie.Value)
	if err != nil {
		g.clearSessionCookie(w)
		g.sendJSON(w, http.StatusOK, StatusResponse{Authenticated: false})
		return
	}

	g.sendJSON(w, http.StatusOK, StatusResponse{
		Authenticated: true,
		InvestorID:    sess.InvestorID,
		AuthMethod:    sess.AuthMethod,
	})
}

func (g *Gateway) setSessionCookie(w http.ResponseWriter, sess *store.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    sess.ID,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (g *Gateway) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
