// Package store provides persistent storage for the gateway using SQLite.
//
// # Architecture
//
// The package exposes a single narrow Store interface covering investors,
// revenue settlement, and sessions. SQLiteStore is the only implementation;
// handlers and services depend on the interface so tests can swap in a store
// rooted in a temp directory.
//
// # Data Models
//
//   - Investor: registered investor with up to two login keys (Nostr and
//     Stellar namespaces, each unique) and an investment position
//   - RevenuePeriod: one settled month of revenue, unique per (month, year)
//   - Payout: one investor's slice of a settled period, with a status
//     lifecycle (pending, completed, failed) and optional settlement ref
//   - PayoutRecord: Payout joined with its period for history views
//   - Session: investor browser session with expiry
//
// # Settlement Atomicity
//
// CreateSettlement inserts a revenue period and its payout fan-out in one
// transaction. The UNIQUE(month, year) index makes concurrent settlement of
// the same period settle exactly once; the loser observes
// ErrDuplicatePeriod and no partial rows survive.
//
// # SQLite Configuration
//
// The store uses SQLite with WAL mode for concurrent reads:
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA foreign_keys=ON;
//
// Timestamps are stored as RFC3339 UTC text.
//
// # Error Handling
//
// Common errors:
//
//   - ErrNotFound: requested entity does not exist
//   - ErrDuplicatePeriod: the (month, year) period is already settled
//   - ErrDuplicateKey: a public key is already registered to an investor
package store
