// ABOUTME: Test harness and health/middleware tests for the gateway HTTP surface
// ABOUTME: Provides newTestGateway plus helpers for sessions and operator tokens

package gateway

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nostria/investor-gateway/internal/config"
	"github.com/nostria/investor-gateway/internal/store"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	seed := make([]byte, ed25519.SeedSize)
	_, err := rand.Read(seed)
	require.NoError(t, err)

	return &config.Config{
		Server:   config.ServerConfig{HTTPAddr: "127.0.0.1:0"},
		Database: config.DatabaseConfig{Path: filepath.Join(t.TempDir(), "test.db")},
		Auth: config.AuthConfig{
			JWTSecret:       "test-jwt-secret",
			SessionDuration: time.Hour,
			MaxEventAge:     5 * time.Minute,
		},
		Challenge: config.ChallengeConfig{
			ServerSeed:        hex.EncodeToString(seed),
			NetworkPassphrase: "Investor Gateway Test Network ; 2024",
			HomeDomain:        "invest.example.com",
			TTL:               5 * time.Minute,
		},
		Settlement: config.SettlementConfig{
			InvestmentPool:  400000,
			SharePercentage: 50,
		},
	}
}

// newTestGateway builds a gateway on a temp database and returns it with a
// running test HTTP server.
func newTestGateway(t *testing.T) (*Gateway, *httptest.Server) {
	t.Helper()

	gw, err := New(testConfig(t), slog.Default())
	require.NoError(t, err)

	srv := httptest.NewServer(gw.httpServer.Handler)
	t.Cleanup(func() {
		srv.Close()
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = gw.Shutdown(ctx)
	})
	return gw, srv
}

// createTestInvestor registers an investor directly in the store.
func createTestInvestor(t *testing.T, gw *Gateway, nostrKey, stellarKey string, amount float64) *store.Investor {
	t.Helper()

	now := time.Now().UTC().Truncate(time.Second)
	inv := &store.Investor{
		ID:               uuid.New().String(),
		NostrPubkey:      nostrKey,
		StellarPubkey:    stellarKey,
		Name:             "Test Investor",
		Email:            "test@example.com",
		InvestmentAmount: amount,
		InvestmentDate:   "2024-01-15",
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	require.NoError(t, gw.store.CreateInvestor(context.Background(), inv))
	return inv
}

// postJSON sends a JSON POST and returns the response.
func postJSON(t *testing.T, client *http.Client, url string, body any) *http.Response {
	t.Helper()

	data, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := client.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return resp
}

// decodeBody decodes a JSON response body into out and closes it.
func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

// operatorToken mints a bearer token accepted by the operator middleware.
func operatorToken(t *testing.T, gw *Gateway) string {
	t.Helper()
	token, err := gw.jwtVerifier.Generate("ops-test", time.Hour)
	require.NoError(t, err)
	return token
}

// doOperator performs a request with an operator bearer token.
func doOperator(t *testing.T, gw *Gateway, srv *httptest.Server, method, path string, body any) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, srv.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+operatorToken(t, gw))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	return resp
}

func TestHealth(t *testing.T) {
	_, srv := newTestGateway(t)

	resp, err := srv.Client().Get(srv.URL + "/health")
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	decodeBody(t, resp, &body)
	assert.Equal(t, "ok", body["status"])
}

func TestRequireSession_NoCookie(t *testing.T) {
	_, srv := newTestGateway(t)

	resp, err := srv.Client().Get(srv.URL + "/api/investor/profile")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRequireSession_BogusCookie(t *testing.T) {
	_, srv := newTestGateway(t)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/investor/profile", nil)
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "not-a-session"})

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRequireOperator_NoToken(t *testing.T) {
	_, srv := newTestGateway(t)

	resp, err := srv.Client().Get(srv.URL + "/api/investors")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRequireOperator_BadToken(t *testing.T) {
	_, srv := newTestGateway(t)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/investors", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer garbage")

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
