// ABOUTME: HTTP API handlers for investor data and operator administration
// ABOUTME: Covers profile/dashboard/payout queries and revenue settlement endpoints

package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/nostria/investor-gateway/internal/auth"
	"github.com/nostria/investor-gateway/internal/payout"
	"github.com/nostria/investor-gateway/internal/store"
)

// InvestorResponse is the JSON shape of an investor record.
type InvestorResponse struct {
	ID               string  `json:"id"`
	NostrPubkey      string  `json:"nostr_pubkey,omitempty"`
	StellarPubkey    string  `json:"stellar_pubkey,omitempty"`
	Name             string  `json:"name,omitempty"`
	Email            string  `json:"email,omitempty"`
	InvestmentAmount float64 `json:"investment_amount"`
	InvestmentDate   string  `json:"investment_date"`
	SharePercentage  float64 `json:"share_percentage"`
	CreatedAt        string  `json:"created_at"`
}

// PayoutResponse is the JSON shape of a payout joined with its period.
type PayoutResponse struct {
	ID              int64   `json:"id"`
	Month           string  `json:"month"`
	Year            int     `json:"year"`
	Amount          float64 `json:"amount"`
	SharePercentage float64 `json:"share_percentage"`
	Status          string  `json:"status"`
	SettlementRef   string  `json:"settlement_ref,omitempty"`
	TotalRevenue    float64 `json:"total_revenue"`
	InvestorPayout  float64 `json:"investor_payout"`
	CreatedAt       string  `json:"created_at"`
}

// DashboardResponse is the JSON response for GET /api/investor/dashboard.
type DashboardResponse struct {
	Investor       InvestorResponse `json:"investor"`
	TotalReceived  float64          `json:"total_received"`
	PendingAmount  float64          `json:"pending_amount"`
	PayoutCount    int              `json:"payout_count"`
	RecentPayouts  []PayoutResponse `json:"recent_payouts"`
	InvestmentPool float64          `json:"investment_pool"`
}

// RevenuePeriodResponse is the JSON shape of a settled revenue period.
type RevenuePeriodResponse struct {
	ID              int64   `json:"id"`
	Month           string  `json:"month"`
	Year            int     `json:"year"`
	TotalRevenue    float64 `json:"total_revenue"`
	SharePercentage float64 `json:"share_percentage"`
	InvestorPayout  float64 `json:"investor_payout"`
	CreatedAt       string  `json:"created_at"`
}

// SettleRevenueRequest is the JSON request body for POST /api/revenues.
type SettleRevenueRequest struct {
	Month           string   `json:"month"`
	Year            int      `json:"year"`
	TotalRevenue    float64  `json:"total_revenue"`
	SharePercentage *float64 `json:"share_percentage,omitempty"`
}

// SettleRevenueResponse is the JSON response for POST /api/revenues.
type SettleRevenueResponse struct {
	Period  RevenuePeriodResponse `json:"period"`
	Payouts []PayoutSummary       `json:"payouts"`
}

// PayoutSummary is the per-investor slice of a settlement response.
type PayoutSummary struct {
	ID              int64   `json:"id"`
	InvestorID      string  `json:"investor_id"`
	Amount          float64 `json:"amount"`
	SharePercentage float64 `json:"share_percentage"`
	Status          string  `json:"status"`
}

// CreateInvestorRequest is the JSON request body for POST /api/investors.
type CreateInvestorRequest struct {
	NostrPubkey      string  `json:"nostr_pubkey,omitempty"`
	StellarPubkey    string  `json:"stellar_pubkey,omitempty"`
	Name             string  `json:"name,omitempty"`
	Email            string  `json:"email,omitempty"`
	InvestmentAmount float64 `json:"investment_amount"`
	InvestmentDate   string  `json:"investment_date"`
}

// UpdateInvestorRequest is the JSON request body for PATCH /api/investors/{id}.
// Absent fields are left untouched.
type UpdateInvestorRequest struct {
	Name             *string  `json:"name,omitempty"`
	Email            *string  `json:"email,omitempty"`
	InvestmentAmount *float64 `json:"investment_amount,omitempty"`
	InvestmentDate   *string  `json:"investment_date,omitempty"`
}

// UpdatePayoutStatusRequest is the JSON request body for POST /api/payouts/{id}/status.
type UpdatePayoutStatusRequest struct {
	Status        string `json:"status"`
	SettlementRef string `json:"settlement_ref,omitempty"`
}

func (g *Gateway) investorResponse(inv *store.Investor) InvestorResponse {
	return InvestorResponse{
		ID:               inv.ID,
		NostrPubkey:      inv.NostrPubkey,
		StellarPubkey:    inv.StellarPubkey,
		Name:             inv.Name,
		Email:            inv.Email,
		InvestmentAmount: inv.InvestmentAmount,
		InvestmentDate:   inv.InvestmentDate,
		SharePercentage:  inv.InvestmentAmount / g.config.Settlement.InvestmentPool * 100,
		CreatedAt:        inv.CreatedAt.Format(time.RFC3339),
	}
}

func payoutResponse(rec *store.PayoutRecord) PayoutResponse {
	return PayoutResponse{
		ID:              rec.ID,
		Month:           rec.Month,
		Year:            rec.Year,
		Amount:          rec.Amount,
		SharePercentage: rec.Payout.SharePercentage,
		Status:          rec.Status,
		SettlementRef:   rec.SettlementRef,
		TotalRevenue:    rec.TotalRevenue,
		InvestorPayout:  rec.InvestorPayout,
		CreatedAt:       rec.CreatedAt.Format(time.RFC3339),
	}
}

// handleProfile handles GET /api/investor/profile.
func (g *Gateway) handleProfile(w http.ResponseWriter, r *http.Request) {
	ac := auth.MustFromContext(r.Context())

	inv, err := g.store.GetInvestor(r.Context(), ac.InvestorID)
	if err != nil {
		g.logger.Error("failed to get investor", "error", err, "investor_id", ac.InvestorID)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	g.sendJSON(w, http.StatusOK, g.investorResponse(inv))
}

// handleDashboard handles GET /api/investor/dashboard.
// Aggregates the investor's profile with payout totals and recent history.
func (g *Gateway) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ac := auth.MustFromContext(r.Context())

	inv, err := g.store.GetInvestor(r.Context(), ac.InvestorID)
	if err != nil {
		g.logger.Error("failed to get investor", "error", err, "investor_id", ac.InvestorID)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	records, err := g.store.ListPayoutsForInvestor(r.Context(), inv.ID)
	if err != nil {
		g.logger.Error("failed to list payouts", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	var totalReceived, pendingAmount float64
	for _, rec := range records {
		switch rec.Status {
		case store.PayoutStatusCompleted:
			totalReceived += rec.Amount
		case store.PayoutStatusPending:
			pendingAmount += rec.Amount
		}
	}

	recent := records
	if len(recent) > 6 {
		recent = recent[:6]
	}
	recentPayouts := make([]PayoutResponse, len(recent))
	for i, rec := range recent {
		recentPayouts[i] = payoutResponse(rec)
	}

	g.sendJSON(w, http.StatusOK, DashboardResponse{
		Investor:       g.investorResponse(inv),
		TotalReceived:  totalReceived,
		PendingAmount:  pendingAmount,
		PayoutCount:    len(records),
		RecentPayouts:  recentPayouts,
		InvestmentPool: g.config.Settlement.InvestmentPool,
	})
}

// handleInvestorPayouts handles GET /api/investor/payouts.
func (g *Gateway) handleInvestorPayouts(w http.ResponseWriter, r *http.Request) {
	ac := auth.MustFromContext(r.Context())

	records, err := g.store.ListPayoutsForInvestor(r.Context(), ac.InvestorID)
	if err != nil {
		g.logger.Error("failed to list payouts", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	response := make([]PayoutResponse, len(records))
	for i, rec := range records {
		response[i] = payoutResponse(rec)
	}
	g.sendJSON(w, http.StatusOK, response)
}

// handleListRevenues handles GET /api/revenues.
func (g *Gateway) handleListRevenues(w http.ResponseWriter, r *http.Request) {
	periods, err := g.store.ListRevenuePeriods(r.Context())
	if err != nil {
		g.logger.Error("failed to list revenue periods", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	response := make([]RevenuePeriodResponse, len(periods))
	for i, p := range periods {
		response[i] = RevenuePeriodResponse{
			ID:              p.ID,
			Month:           p.Month,
			Year:            p.Year,
			TotalRevenue:    p.TotalRevenue,
			SharePercentage: p.SharePercentage,
			InvestorPayout:  p.InvestorPayout,
			CreatedAt:       p.CreatedAt.Format(time.RFC3339),
		}
	}
	g.sendJSON(w, http.StatusOK, response)
}

// handleSettleRevenue handles POST /api/revenues.
// Records one revenue period and fans out payouts to all registered
// investors in a single transaction.
func (g *Gateway) handleSettleRevenue(w http.ResponseWriter, r *http.Request) {
	var req SettleRevenueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	sharePct := g.config.Settlement.SharePercentage
	if req.SharePercentage != nil {
		sharePct = *req.SharePercentage
	}

	period, payouts, err := g.engine.Settle(r.Context(), payout.SettleRequest{
		Month:           req.Month,
		Year:            req.Year,
		TotalRevenue:    req.TotalRevenue,
		SharePercentage: sharePct,
		InvestmentPool:  g.config.Settlement.InvestmentPool,
	})
	if err != nil {
		switch {
		case errors.Is(err, payout.ErrValidation):
			g.sendJSONError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, store.ErrDuplicatePeriod):
			g.sendJSONError(w, http.StatusConflict, "revenue period already settled")
		default:
			g.logger.Error("failed to settle revenue", "error", err)
			g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	summaries := make([]PayoutSummary, len(payouts))
	for i, p := range payouts {
		summaries[i] = PayoutSummary{
			ID:              p.ID,
			InvestorID:      p.InvestorID,
			Amount:          p.Amount,
			SharePercentage: p.SharePercentage,
			Status:          p.Status,
		}
	}

	g.sendJSON(w, http.StatusCreated, SettleRevenueResponse{
		Period: RevenuePeriodResponse{
			ID:              period.ID,
			Month:           period.Month,
			Year:            period.Year,
			TotalRevenue:    period.TotalRevenue,
			SharePercentage: period.SharePercentage,
			InvestorPayout:  period.InvestorPayout,
			CreatedAt:       period.CreatedAt.Format(time.RFC3339),
		},
		Payouts: summaries,
	})
}

// handleListInvestors handles GET /api/investors.
func (g *Gateway) handleListInvestors(w http.ResponseWriter, r *http.Request) {
	investors, err := g.store.ListInvestors(r.Context())
	if err != nil {
		g.logger.Error("failed to list investors", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	response := make([]InvestorResponse, len(investors))
	for i, inv := range investors {
		response[i] = g.investorResponse(inv)
	}
	g.sendJSON(w, http.StatusOK, response)
}

// handleCreateInvestor handles POST /api/investors.
func (g *Gateway) handleCreateInvestor(w http.ResponseWriter, r *http.Request) {
	var req CreateInvestorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.NostrPubkey == "" && req.StellarPubkey == "" {
		g.sendJSONError(w, http.StatusBadRequest, "at least one public key is required")
		return
	}
	if req.InvestmentAmount <= 0 {
		g.sendJSONError(w, http.StatusBadRequest, "investment_amount must be positive")
		return
	}
	if req.InvestmentDate == "" {
		g.sendJSONError(w, http.StatusBadRequest, "investment_date is required")
		return
	}

	now := time.Now().UTC()
	inv := &store.Investor{
		ID:               uuid.New().String(),
		NostrPubkey:      req.NostrPubkey,
		StellarPubkey:    req.StellarPubkey,
		Name:             req.Name,
		Email:            req.Email,
		InvestmentAmount: req.InvestmentAmount,
		InvestmentDate:   req.InvestmentDate,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := g.store.CreateInvestor(r.Context(), inv); err != nil {
		if errors.Is(err, store.ErrDuplicateKey) {
			g.sendJSONError(w, http.StatusConflict, "public key already registered")
			return
		}
		g.logger.Error("failed to create investor", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	g.sendJSON(w, http.StatusCreated, g.investorResponse(inv))
}

// handleUpdateInvestor handles PATCH /api/investors/{id}.
func (g *Gateway) handleUpdateInvestor(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req UpdateInvestorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.InvestmentAmount != nil && *req.InvestmentAmount <= 0 {
		g.sendJSONError(w, http.StatusBadRequest, "investment_amount must be positive")
		return
	}

	upd := store.InvestorUpdate{
		Name:             req.Name,
		Email:            req.Email,
		InvestmentAmount: req.InvestmentAmount,
		InvestmentDate:   req.InvestmentDate,
	}

	if err := g.store.UpdateInvestor(r.Context(), id, upd); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			g.sendJSONError(w, http.StatusNotFound, "investor not found")
			return
		}
		g.logger.Error("failed to update investor", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	inv, err := g.store.GetInvestor(r.Context(), id)
	if err != nil {
		g.logger.Error("failed to get investor after update", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	g.sendJSON(w, http.StatusOK, g.investorResponse(inv))
}

// handleUpdatePayoutStatus handles POST /api/payouts/{id}/status.
// Records the outcome reported by the external settlement process.
func (g *Gateway) handleUpdatePayoutStatus(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "invalid payout id")
		return
	}

	var req UpdatePayoutStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	switch req.Status {
	case store.PayoutStatusPending, store.PayoutStatusCompleted, store.PayoutStatusFailed:
	default:
		g.sendJSONError(w, http.StatusBadRequest, "status must be pending, completed, or failed")
		return
	}

	if err := g.store.UpdatePayoutStatus(r.Context(), id, req.Status, req.SettlementRef); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			g.sendJSONError(w, http.StatusNotFound, "payout not found")
			return
		}
		g.logger.Error("failed to update payout status", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	p, err := g.store.GetPayout(r.Context(), id)
	if err != nil {
		g.logger.Error("failed to get payout after update", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	g.sendJSON(w, http.StatusOK, PayoutSummary{
		ID:              p.ID,
		InvestorID:      p.InvestorID,
		Amount:          p.Amount,
		SharePercentage: p.SharePercentage,
		Status:          p.Status,
	})
}
