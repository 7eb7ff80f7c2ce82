// ABOUTME: Revenue settlement engine computing per-investor payouts
// ABOUTME: Derives shares from investment amounts and records settlements atomically

package payout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nostria/investor-gateway/internal/store"
)

// ErrValidation is returned when a settlement request is rejected before any
// computation happens.
var ErrValidation = errors.New("invalid settlement request")

// validMonths is the accepted set of period month names.
var validMonths = map[string]bool{
	"January": true, "February": true, "March": true, "April": true,
	"May": true, "June": true, "July": true, "August": true,
	"September": true, "October": true, "November": true, "December": true,
}

// SettleRequest describes one revenue period to settle.
type SettleRequest struct {
	Month           string
	Year            int
	TotalRevenue    float64
	SharePercentage float64 // slice of revenue distributed to investors
	InvestmentPool  float64 // total pool investor shares are computed against
}

// Engine computes and records revenue settlements. Each settlement covers one
// (month, year) period; the store's unique index guarantees at most one
// settlement per period regardless of concurrent callers.
type Engine struct {
	store  store.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewEngine creates a settlement engine backed by the given store.
func NewEngine(s store.Store) *Engine {
	return &Engine{
		store:  s,
		logger: slog.Default().With("component", "payout"),
		now:    time.Now,
	}
}

// Settle computes the payout fan-out for one revenue period and records it.
//
// The investor pool receives TotalRevenue * SharePercentage / 100. Each
// investor's slice of that pool follows their share of the investment pool:
// an investor holding amount A of pool P gets (A/P*100)% of the pool payout.
//
// Returns store.ErrDuplicatePeriod if the period is already settled. A period
// with no registered investors still records, with an empty fan-out.
func (e *Engine) Settle(ctx context.Context, req SettleRequest) (*store.RevenuePeriod, []*store.Payout, error) {
	if err := validate(req); err != nil {
		return nil, nil, err
	}

	investors, err := e.store.ListInvestors(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("listing investors: %w", err)
	}

	now := e.now().UTC()
	poolPayout := req.TotalRevenue * req.SharePercentage / 100

	period := &store.RevenuePeriod{
		Month:           req.Month,
		Year:            req.Year,
		TotalRevenue:    req.TotalRevenue,
		SharePercentage: req.SharePercentage,
		InvestorPayout:  poolPayout,
		CreatedAt:       now,
	}

	payouts := make([]*store.Payout, 0, len(investors))
	for _, inv := range investors {
		sharePct := inv.InvestmentAmount / req.InvestmentPool * 100
		payouts = append(payouts, &store.Payout{
			InvestorID:      inv.ID,
			Amount:          poolPayout * sharePct / 100,
			SharePercentage: sharePct,
			Status:          store.PayoutStatusPending,
			CreatedAt:       now,
		})
	}

	if err := e.store.CreateSettlement(ctx, period, payouts); err != nil {
		return nil, nil, err
	}

	e.logger.Info("settled revenue period",
		"month", req.Month,
		"year", req.Year,
		"total_revenue", req.TotalRevenue,
		"pool_payout", poolPayout,
		"investors", len(payouts))
	return period, payouts, nil
}

func validate(req SettleRequest) error {
	if !validMonths[req.Month] {
		return fmt.Errorf("%w: unknown month %q", ErrValidation, req.Month)
	}
	if req.Year < 2000 || req.Year > 2200 {
		return fmt.Errorf("%w: year %d out of range", ErrValidation, req.Year)
	}
	if req.TotalRevenue < 0 {
		return fmt.Errorf("%w: total revenue must not be negative", ErrValidation)
	}
	if req.SharePercentage <= 0 || req.SharePercentage > 100 {
		return fmt.Errorf("%w: share percentage must be in (0, 100]", ErrValidation)
	}
	if req.InvestmentPool <= 0 {
		return fmt.Errorf("%w: investment pool must be positive", ErrValidation)
	}
	return nil
}
