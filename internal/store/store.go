// ABOUTME: Store interface and data types for investor-gateway persistence
// ABOUTME: Defines Investor, RevenuePeriod, Payout, Session and the Store interface

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrDuplicatePeriod is returned when a revenue period already exists for a (month, year) pair
var ErrDuplicatePeriod = errors.New("revenue period already exists")

// ErrDuplicateKey is returned when a public key is already registered to another investor
var ErrDuplicateKey = errors.New("public key already registered")

// KeyKind selects which public-key namespace to look an investor up by.
type KeyKind string

const (
	KeyKindNostr   KeyKind = "nostr"
	KeyKindStellar KeyKind = "stellar"
)

// Investor is the root identity record. At least one of the two public keys
// must be present; both may coexist. Investors are never deleted because
// payout history references them.
type Investor struct {
	ID               string
	NostrPubkey      string // 64 lowercase hex chars, empty if unset
	StellarPubkey    string // 64 lowercase hex chars, empty if unset
	Name             string
	Email            string
	InvestmentAmount float64
	InvestmentDate   string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// InvestorUpdate carries explicit field updates. Nil fields are left unchanged.
type InvestorUpdate struct {
	Name             *string
	Email            *string
	InvestmentAmount *float64
	InvestmentDate   *string
}

// RevenuePeriod is one settlement unit per (month, year) pair.
// Immutable once created.
type RevenuePeriod struct {
	ID              int64
	Month           string
	Year            int
	TotalRevenue    float64
	SharePercentage float64
	InvestorPayout  float64 // TotalRevenue * SharePercentage / 100
	CreatedAt       time.Time
}

// Payout status constants
const (
	PayoutStatusPending   = "pending"
	PayoutStatusCompleted = "completed"
	PayoutStatusFailed    = "failed"
)

// Payout is one record per (investor, revenue period) pair. Status and
// settlement reference are the only mutable fields; the external settlement
// process reports them through UpdatePayoutStatus.
type Payout struct {
	ID              int64
	InvestorID      string
	PeriodID        int64
	Amount          float64
	SharePercentage float64 // investor's pool share at settlement time
	Status          string
	SettlementRef   string
	CreatedAt       time.Time
}

// PayoutRecord is a payout joined with its revenue period for history views.
type PayoutRecord struct {
	Payout
	Month          string
	Year           int
	TotalRevenue   float64
	InvestorPayout float64
}

// Session is an authenticated session. It carries no investor attributes
// beyond the reference; callers re-resolve the Investor on every use.
type Session struct {
	ID         string
	InvestorID string
	AuthMethod string // "nostr" or "stellar"
	CreatedAt  time.Time
	ExpiresAt  time.Time
}

// Store defines the interface for investor, settlement, and session persistence.
// Each method is a single logical operation with no partial-failure semantics
// exposed to callers.
type Store interface {
	// Investors
	CreateInvestor(ctx context.Context, inv *Investor) error
	GetInvestor(ctx context.Context, id string) (*Investor, error)
	GetInvestorByKey(ctx context.Context, kind KeyKind, pubkey string) (*Investor, error)
	ListInvestors(ctx context.Context) ([]*Investor, error)
	UpdateInvestor(ctx context.Context, id string, upd InvestorUpdate) error

	// Settlement
	FindRevenuePeriod(ctx context.Context, month string, year int) (*RevenuePeriod, error)
	ListRevenuePeriods(ctx context.Context) ([]*RevenuePeriod, error)
	CreateSettlement(ctx context.Context, period *RevenuePeriod, payouts []*Payout) error
	ListPayoutsForInvestor(ctx context.Context, investorID string) ([]*PayoutRecord, error)
	ListPayoutsForPeriod(ctx context.Context, periodID int64) ([]*Payout, error)
	GetPayout(ctx context.Context, id int64) (*Payout, error)
	UpdatePayoutStatus(ctx context.Context, id int64, status string, settlementRef string) error

	// Sessions
	CreateSession(ctx context.Context, session *Session) error
	GetSession(ctx context.Context, id string) (*Session, error)
	DeleteSession(ctx context.Context, id string) error
	DeleteExpiredSessions(ctx context.Context) error

	// Close releases any resources held by the store
	Close() error
}
