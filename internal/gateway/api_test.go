// ABOUTME: Tests for the investor and operator API handlers
// ABOUTME: Covers settlement, investor CRUD, payout status, and dashboard aggregation

package gateway

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func settleJanuary(t *testing.T, gw *Gateway, srv *httptest.Server) SettleRevenueResponse {
	t.Helper()

	resp := doOperator(t, gw, srv, http.MethodPost, "/api/revenues", SettleRevenueRequest{
		Month:        "January",
		Year:         2024,
		TotalRevenue: 100000,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var settled SettleRevenueResponse
	decodeBody(t, resp, &settled)
	return settled
}

func TestSettleRevenue(t *testing.T) {
	gw, srv := newTestGateway(t)

	createTestInvestor(t, gw, "", makeStellarKey(t), 50000)

	settled := settleJanuary(t, gw, srv)

	assert.Equal(t, "January", settled.Period.Month)
	assert.Equal(t, 2024, settled.Period.Year)
	assert.Equal(t, 50000.0, settled.Period.InvestorPayout)
	require.Len(t, settled.Payouts, 1)
	assert.Equal(t, 6250.0, settled.Payouts[0].Amount)
	assert.Equal(t, 12.5, settled.Payouts[0].SharePercentage)
	assert.Equal(t, "pending", settled.Payouts[0].Status)
}

func TestSettleRevenue_Duplicate(t *testing.T) {
	gw, srv := newTestGateway(t)

	createTestInvestor(t, gw, "", makeStellarKey(t), 50000)
	settleJanuary(t, gw, srv)

	resp := doOperator(t, gw, srv, http.MethodPost, "/api/revenues", SettleRevenueRequest{
		Month:        "January",
		Year:         2024,
		TotalRevenue: 200000,
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestSettleRevenue_Validation(t *testing.T) {
	gw, srv := newTestGateway(t)

	resp := doOperator(t, gw, srv, http.MethodPost, "/api/revenues", SettleRevenueRequest{
		Month:        "Icetember",
		Year:         2024,
		TotalRevenue: 100000,
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestListRevenues(t *testing.T) {
	gw, srv := newTestGateway(t)

	createTestInvestor(t, gw, "", makeStellarKey(t), 50000)
	settleJanuary(t, gw, srv)

	// Listing settled periods needs no operator token
	resp, err := http.Get(srv.URL + "/api/revenues")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var periods []RevenuePeriodResponse
	decodeBody(t, resp, &periods)
	require.Len(t, periods, 1)
	assert.Equal(t, "January", periods[0].Month)
	assert.Equal(t, 100000.0, periods[0].TotalRevenue)
}

func TestCreateInvestor(t *testing.T) {
	gw, srv := newTestGateway(t)

	resp := doOperator(t, gw, srv, http.MethodPost, "/api/investors", CreateInvestorRequest{
		NostrPubkey:      makeNostrKey(t),
		Name:             "New Investor",
		Email:            "new@example.com",
		InvestmentAmount: 80000,
		InvestmentDate:   "2024-03-01",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var inv InvestorResponse
	decodeBody(t, resp, &inv)
	assert.NotEmpty(t, inv.ID)
	assert.Equal(t, 80000.0, inv.InvestmentAmount)
	assert.Equal(t, 20.0, inv.SharePercentage)
}

func TestCreateInvestor_Validation(t *testing.T) {
	gw, srv := newTestGateway(t)

	tests := []struct {
		name string
		req  CreateInvestorRequest
	}{
		{
			name: "no keys",
			req:  CreateInvestorRequest{InvestmentAmount: 1000, InvestmentDate: "2024-01-01"},
		},
		{
			name: "zero amount",
			req:  CreateInvestorRequest{NostrPubkey: makeNostrKey(t), InvestmentDate: "2024-01-01"},
		},
		{
			name: "missing date",
			req:  CreateInvestorRequest{NostrPubkey: makeNostrKey(t), InvestmentAmount: 1000},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doOperator(t, gw, srv, http.MethodPost, "/api/investors", tt.req)
			defer resp.Body.Close()
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestCreateInvestor_DuplicateKey(t *testing.T) {
	gw, srv := newTestGateway(t)

	key := makeNostrKey(t)
	req := CreateInvestorRequest{
		NostrPubkey:      key,
		InvestmentAmount: 1000,
		InvestmentDate:   "2024-01-01",
	}

	resp := doOperator(t, gw, srv, http.MethodPost, "/api/investors", req)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = doOperator(t, gw, srv, http.MethodPost, "/api/investors", req)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestListInvestors(t *testing.T) {
	gw, srv := newTestGateway(t)

	createTestInvestor(t, gw, makeNostrKey(t), "", 50000)
	createTestInvestor(t, gw, "", makeStellarKey(t), 100000)

	resp := doOperator(t, gw, srv, http.MethodGet, "/api/investors", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var investors []InvestorResponse
	decodeBody(t, resp, &investors)
	assert.Len(t, investors, 2)
}

func TestUpdateInvestor(t *testing.T) {
	gw, srv := newTestGateway(t)

	inv := createTestInvestor(t, gw, makeNostrKey(t), "", 50000)

	name := "Renamed"
	amount := 100000.0
	resp := doOperator(t, gw, srv, http.MethodPatch, "/api/investors/"+inv.ID, UpdateInvestorRequest{
		Name:             &name,
		InvestmentAmount: &amount,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var updated InvestorResponse
	decodeBody(t, resp, &updated)
	assert.Equal(t, "Renamed", updated.Name)
	assert.Equal(t, 100000.0, updated.InvestmentAmount)
	assert.Equal(t, 25.0, updated.SharePercentage)
	// Untouched fields survive
	assert.Equal(t, "test@example.com", updated.Email)
}

func TestUpdateInvestor_NotFound(t *testing.T) {
	gw, srv := newTestGateway(t)

	name := "ghost"
	resp := doOperator(t, gw, srv, http.MethodPatch, "/api/investors/nonexistent", UpdateInvestorRequest{Name: &name})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUpdatePayoutStatus(t *testing.T) {
	gw, srv := newTestGateway(t)

	createTestInvestor(t, gw, "", makeStellarKey(t), 50000)
	settled := settleJanuary(t, gw, srv)
	payoutID := settled.Payouts[0].ID

	resp := doOperator(t, gw, srv, http.MethodPost,
		"/api/payouts/"+itoa(payoutID)+"/status",
		UpdatePayoutStatusRequest{Status: "completed", SettlementRef: "tx-xyz"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var updated PayoutSummary
	decodeBody(t, resp, &updated)
	assert.Equal(t, "completed", updated.Status)
}

func TestUpdatePayoutStatus_InvalidStatus(t *testing.T) {
	gw, srv := newTestGateway(t)

	createTestInvestor(t, gw, "", makeStellarKey(t), 50000)
	settled := settleJanuary(t, gw, srv)

	resp := doOperator(t, gw, srv, http.MethodPost,
		"/api/payouts/"+itoa(settled.Payouts[0].ID)+"/status",
		UpdatePayoutStatusRequest{Status: "teleported"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUpdatePayoutStatus_NotFound(t *testing.T) {
	gw, srv := newTestGateway(t)

	resp := doOperator(t, gw, srv, http.MethodPost, "/api/payouts/9999/status",
		UpdatePayoutStatusRequest{Status: "completed"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDashboard_Totals(t *testing.T) {
	gw, srv := newTestGateway(t)
	client := cookieClient(t)

	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	pubHex := hex.EncodeToString(schnorr.SerializePubKey(priv.PubKey()))
	createTestInvestor(t, gw, pubHex, "", 50000)

	settled := settleJanuary(t, gw, srv)
	require.Len(t, settled.Payouts, 1)

	// Mark the payout completed
	resp := doOperator(t, gw, srv, http.MethodPost,
		"/api/payouts/"+itoa(settled.Payouts[0].ID)+"/status",
		UpdatePayoutStatusRequest{Status: "completed", SettlementRef: "tx-1"})
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Settle a second period that stays pending
	resp = doOperator(t, gw, srv, http.MethodPost, "/api/revenues", SettleRevenueRequest{
		Month:        "February",
		Year:         2024,
		TotalRevenue: 80000,
	})
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// Log in and check the dashboard aggregation
	loginResp := postJSON(t, client, srv.URL+"/auth/nostr/login", NostrLoginRequest{Event: signLoginEvent(t, priv)})
	loginResp.Body.Close()
	require.Equal(t, http.StatusOK, loginResp.StatusCode)

	dashResp, err := client.Get(srv.URL + "/api/investor/dashboard")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, dashResp.StatusCode)

	var dash DashboardResponse
	decodeBody(t, dashResp, &dash)
	assert.Equal(t, 6250.0, dash.TotalReceived)
	assert.Equal(t, 5000.0, dash.PendingAmount) // 80000 * 50% * 12.5%
	assert.Equal(t, 2, dash.PayoutCount)
	assert.Len(t, dash.RecentPayouts, 2)

	// Payout listing shows the same two rows, most recent period first
	payoutsResp, err := client.Get(srv.URL + "/api/investor/payouts")
	require.NoError(t, err)

	var payouts []PayoutResponse
	decodeBody(t, payoutsResp, &payouts)
	require.Len(t, payouts, 2)
	assert.Equal(t, "February", payouts[0].Month)
	assert.Equal(t, "January", payouts[1].Month)
	assert.Equal(t, "tx-1", payouts[1].SettlementRef)
}

func makeNostrKey(t *testing.T) string {
	t.Helper()
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	return hex.EncodeToString(schnorr.SerializePubKey(priv.PubKey()))
}

func makeStellarKey(t *testing.T) string {
	t.Helper()
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return hex.EncodeToString(pub)
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
