// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides investor/settlement/session persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS investors (
			id                TEXT PRIMARY KEY,
			nostr_pubkey      TEXT UNIQUE,
			stellar_pubkey    TEXT UNIQUE,
			name              TEXT,
			email             TEXT,
			investment_amount REAL NOT NULL,
			investment_date   TEXT NOT NULL,
			created_at        TEXT NOT NULL,
			updated_at        TEXT NOT NULL,

			CHECK (nostr_pubkey IS NOT NULL OR stellar_pubkey IS NOT NULL)
		);

		CREATE INDEX IF NOT EXISTS idx_investors_nostr ON investors(nostr_pubkey);
		CREATE INDEX IF NOT EXISTS idx_investors_stellar ON investors(stellar_pubkey);

		CREATE TABLE IF NOT EXISTS revenue_periods (
			id               INTEGER PRIMARY KEY AUTOINCREMENT,
			month            TEXT NOT NULL,
			year             INTEGER NOT NULL,
			total_revenue    REAL NOT NULL,
			share_percentage REAL NOT NULL,
			investor_payout  REAL NOT NULL,
			created_at       TEXT NOT NULL,

			UNIQUE(month, year)
		);

		CREATE TABLE IF NOT EXISTS payouts (
			id               INTEGER PRIMARY KEY AUTOINCREMENT,
			investor_id      TEXT NOT NULL REFERENCES investors(id),
			period_id        INTEGER NOT NULL REFERENCES revenue_periods(id),
			amount           REAL NOT NULL,
			share_percentage REAL NOT NULL,
			status           TEXT NOT NULL DEFAULT 'pending',
			settlement_ref   TEXT,
			created_at       TEXT NOT NULL,

			CHECK (status IN ('pending', 'completed', 'failed'))
		);

		CREATE INDEX IF NOT EXISTS idx_payouts_investor ON payouts(investor_id);
		CREATE INDEX IF NOT EXISTS idx_payouts_period ON payouts(period_id);

		CREATE TABLE IF NOT EXISTS sessions (
			id          TEXT PRIMARY KEY,
			investor_id TEXT NOT NULL REFERENCES investors(id),
			auth_method TEXT NOT NULL,
			created_at  TEXT NOT NULL,
			expires_at  TEXT NOT NULL,

			CHECK (auth_method IN ('nostr', 'stellar'))
		);

		CREATE INDEX IF NOT EXISTS idx_sessions_expires ON sessions(expires_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// isConstraintViolation checks if the error is a SQLite UNIQUE constraint violation
func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "UNIQUE constraint failed") ||
		strings.Contains(errStr, "constraint failed")
}

// CreateInvestor creates a new investor record.
// Returns ErrDuplicateKey if either public key is already registered.
func (s *SQLiteStore) CreateInvestor(ctx context.Context, inv *Investor) error {
	query := `
		INSERT INTO investors (id, nostr_pubkey, stellar_pubkey, name, email, investment_amount, investment_date, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		inv.ID,
		nullString(inv.NostrPubkey),
		nullString(inv.StellarPubkey),
		inv.Name,
		inv.Email,
		inv.InvestmentAmount,
		inv.InvestmentDate,
		inv.CreatedAt.UTC().Format(time.RFC3339),
		inv.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("inserting investor: %w", err)
	}

	s.logger.Debug("created investor", "id", inv.ID, "name", inv.Name)
	return nil
}

// nullString returns nil for empty strings, otherwise the string itself
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

const investorColumns = `id, nostr_pubkey, stellar_pubkey, name, email, investment_amount, investment_date, created_at, updated_at`

// scanInvestor scans one investor row from a *sql.Row or *sql.Rows.
func scanInvestor(scan func(dest ...any) error) (*Investor, error) {
	var inv Investor
	var nostrKey, stellarKey, name, email sql.NullString
	var createdAtStr, updatedAtStr string

	err := scan(
		&inv.ID,
		&nostrKey,
		&stellarKey,
		&name,
		&email,
		&inv.InvestmentAmount,
		&inv.InvestmentDate,
		&createdAtStr,
		&updatedAtStr,
	)
	if err != nil {
		return nil, err
	}

	inv.NostrPubkey = nostrKey.String
	inv.StellarPubkey = stellarKey.String
	inv.Name = name.String
	inv.Email = email.String

	inv.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	inv.UpdatedAt, err = time.Parse(time.RFC3339, updatedAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}

	return &inv, nil
}

// GetInvestor retrieves an investor by ID.
// Returns ErrNotFound if the investor doesn't exist.
func (s *SQLiteStore) GetInvestor(ctx context.Context, id string) (*Investor, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+investorColumns+` FROM investors WHERE id = ?`, id)

	inv, err := scanInvestor(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying investor: %w", err)
	}
	return inv, nil
}

// GetInvestorByKey retrieves an investor by one of its public keys.
// Returns ErrNotFound if no investor holds the key in the given namespace.
func (s *SQLiteStore) GetInvestorByKey(ctx context.Context, kind KeyKind, pubkey string) (*Investor, error) {
	var column string
	switch kind {
	case KeyKindNostr:
		column = "nostr_pubkey"
	case KeyKindStellar:
		column = "stellar_pubkey"
	default:
		return nil, fmt.Errorf("unknown key kind: %q", kind)
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+investorColumns+` FROM investors WHERE `+column+` = ?`, pubkey)

	inv, err := scanInvestor(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying investor by key: %w", err)
	}
	return inv, nil
}

// ListInvestors returns all investors ordered by creation time.
func (s *SQLiteStore) ListInvestors(ctx context.Context) ([]*Investor, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+investorColumns+` FROM investors ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("querying investors: %w", err)
	}
	defer rows.Close()

	var investors []*Investor
	for rows.Next() {
		inv, err := scanInvestor(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning investor row: %w", err)
		}
		investors = append(investors, inv)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating investor rows: %w", err)
	}
	return investors, nil
}

// UpdateInvestor applies explicit field updates to an investor.
// Returns ErrNotFound if the investor doesn't exist.
func (s *SQLiteStore) UpdateInvestor(ctx context.Context, id string, upd InvestorUpdate) error {
	sets := []string{"updated_at = ?"}
	args := []any{time.Now().UTC().Format(time.RFC3339)}

	if upd.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *upd.Name)
	}
	if upd.Email != nil {
		sets = append(sets, "email = ?")
		args = append(args, *upd.Email)
	}
	if upd.InvestmentAmount != nil {
		sets = append(sets, "investment_amount = ?")
		args = append(args, *upd.InvestmentAmount)
	}
	if upd.InvestmentDate != nil {
		sets = append(sets, "investment_date = ?")
		args = append(args, *upd.InvestmentDate)
	}

	args = append(args, id)
	query := `UPDATE investors SET ` + strings.Join(sets, ", ") + ` WHERE id = ?`

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating investor: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	s.logger.Debug("updated investor", "id", id)
	return nil
}

// FindRevenuePeriod retrieves a revenue period by (month, year).
// Returns ErrNotFound if no period exists for the pair.
func (s *SQLiteStore) FindRevenuePeriod(ctx context.Context, month string, year int) (*RevenuePeriod, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, month, year, total_revenue, share_percentage, investor_payout, created_at
		FROM revenue_periods
		WHERE month = ? AND year = ?
	`, month, year)

	period, err := scanRevenuePeriod(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying revenue period: %w", err)
	}
	return period, nil
}

func scanRevenuePeriod(scan func(dest ...any) error) (*RevenuePeriod, error) {
	var p RevenuePeriod
	var createdAtStr string

	err := scan(&p.ID, &p.Month, &p.Year, &p.TotalRevenue, &p.SharePercentage, &p.InvestorPayout, &createdAtStr)
	if err != nil {
		return nil, err
	}

	p.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	return &p, nil
}

// ListRevenuePeriods returns all revenue periods, most recent first.
func (s *SQLiteStore) ListRevenuePeriods(ctx context.Context) ([]*RevenuePeriod, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, month, year, total_revenue, share_percentage, investor_payout, created_at
		FROM revenue_periods
		ORDER BY year DESC, id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("querying revenue periods: %w", err)
	}
	defer rows.Close()

	var periods []*RevenuePeriod
	for rows.Next() {
		p, err := scanRevenuePeriod(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning revenue period row: %w", err)
		}
		periods = append(periods, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating revenue period rows: %w", err)
	}
	return periods, nil
}

// CreateSettlement creates a revenue period and its payout fan-out as a single
// transaction. A concurrent settlement for the same (month, year) either
// observes this one or fails with ErrDuplicatePeriod; the unique index decides.
// On success the period ID and payout IDs/PeriodIDs are filled in.
func (s *SQLiteStore) CreateSettlement(ctx context.Context, period *RevenuePeriod, payouts []*Payout) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning settlement transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		INSERT INTO revenue_periods (month, year, total_revenue, share_percentage, investor_payout, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		period.Month,
		period.Year,
		period.TotalRevenue,
		period.SharePercentage,
		period.InvestorPayout,
		period.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicatePeriod
		}
		return fmt.Errorf("inserting revenue period: %w", err)
	}

	periodID, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting period id: %w", err)
	}

	for _, p := range payouts {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO payouts (investor_id, period_id, amount, share_percentage, status, settlement_ref, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`,
			p.InvestorID,
			periodID,
			p.Amount,
			p.SharePercentage,
			p.Status,
			nullString(p.SettlementRef),
			p.CreatedAt.UTC().Format(time.RFC3339),
		)
		if err != nil {
			return fmt.Errorf("inserting payout for investor %s: %w", p.InvestorID, err)
		}
		p.ID, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("getting payout id: %w", err)
		}
		p.PeriodID = periodID
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing settlement: %w", err)
	}

	period.ID = periodID
	s.logger.Info("created settlement", "month", period.Month, "year", period.Year, "payouts", len(payouts))
	return nil
}

// ListPayoutsForInvestor returns an investor's payouts joined with their
// revenue periods, most recent period first.
func (s *SQLiteStore) ListPayoutsForInvestor(ctx context.Context, investorID string) ([]*PayoutRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.investor_id, p.period_id, p.amount, p.share_percentage, p.status, p.settlement_ref, p.created_at,
		       r.month, r.year, r.total_revenue, r.investor_payout
		FROM payouts p
		JOIN revenue_periods r ON p.period_id = r.id
		WHERE p.investor_id = ?
		ORDER BY r.year DESC, r.id DESC
	`, investorID)
	if err != nil {
		return nil, fmt.Errorf("querying payouts: %w", err)
	}
	defer rows.Close()

	var records []*PayoutRecord
	for rows.Next() {
		var rec PayoutRecord
		var ref sql.NullString
		var createdAtStr string

		if err := rows.Scan(
			&rec.ID, &rec.InvestorID, &rec.PeriodID, &rec.Amount, &rec.Payout.SharePercentage,
			&rec.Status, &ref, &createdAtStr,
			&rec.Month, &rec.Year, &rec.TotalRevenue, &rec.InvestorPayout,
		); err != nil {
			return nil, fmt.Errorf("scanning payout row: %w", err)
		}

		rec.SettlementRef = ref.String
		rec.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
		if err != nil {
			return nil, fmt.Errorf("parsing payout created_at: %w", err)
		}
		records = append(records, &rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating payout rows: %w", err)
	}
	return records, nil
}

// ListPayoutsForPeriod returns all payouts belonging to a revenue period.
func (s *SQLiteStore) ListPayoutsForPeriod(ctx context.Context, periodID int64) ([]*Payout, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, investor_id, period_id, amount, share_percentage, status, settlement_ref, created_at
		FROM payouts
		WHERE period_id = ?
		ORDER BY id
	`, periodID)
	if err != nil {
		return nil, fmt.Errorf("querying period payouts: %w", err)
	}
	defer rows.Close()

	var payouts []*Payout
	for rows.Next() {
		p, err := scanPayout(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning payout row: %w", err)
		}
		payouts = append(payouts, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating payout rows: %w", err)
	}
	return payouts, nil
}

func scanPayout(scan func(dest ...any) error) (*Payout, error) {
	var p Payout
	var ref sql.NullString
	var createdAtStr string

	err := scan(&p.ID, &p.InvestorID, &p.PeriodID, &p.Amount, &p.SharePercentage, &p.Status, &ref, &createdAtStr)
	if err != nil {
		return nil, err
	}

	p.SettlementRef = ref.String
	p.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	return &p, nil
}

// GetPayout retrieves a payout by ID.
// Returns ErrNotFound if the payout doesn't exist.
func (s *SQLiteStore) GetPayout(ctx context.Context, id int64) (*Payout, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, investor_id, period_id, amount, share_percentage, status, settlement_ref, created_at
		FROM payouts
		WHERE id = ?
	`, id)

	p, err := scanPayout(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying payout: %w", err)
	}
	return p, nil
}

// UpdatePayoutStatus records a status transition reported by the external
// settlement process, along with an optional settlement reference.
// Returns ErrNotFound if the payout doesn't exist.
func (s *SQLiteStore) UpdatePayoutStatus(ctx context.Context, id int64, status string, settlementRef string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE payouts SET status = ?, settlement_ref = ? WHERE id = ?
	`, status, nullString(settlementRef), id)
	if err != nil {
		return fmt.Errorf("updating payout status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	s.logger.Debug("updated payout status", "id", id, "status", status)
	return nil
}

// CreateSession persists a new authenticated session.
func (s *SQLiteStore) CreateSession(ctx context.Context, session *Session) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, investor_id, auth_method, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?)
	`,
		session.ID,
		session.InvestorID,
		session.AuthMethod,
		session.CreatedAt.UTC().Format(time.RFC3339),
		session.ExpiresAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting session: %w", err)
	}

	s.logger.Debug("created session", "investor_id", session.InvestorID, "method", session.AuthMethod)
	return nil
}

// GetSession retrieves a session by ID.
// Returns ErrNotFound if the session doesn't exist. Expiry is the caller's
// concern; an expired row is still returned.
func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, investor_id, auth_method, created_at, expires_at
		FROM sessions
		WHERE id = ?
	`, id)

	var sess Session
	var createdAtStr, expiresAtStr string

	err := row.Scan(&sess.ID, &sess.InvestorID, &sess.AuthMethod, &createdAtStr, &expiresAtStr)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying session: %w", err)
	}

	sess.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	sess.ExpiresAt, err = time.Parse(time.RFC3339, expiresAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing expires_at: %w", err)
	}

	return &sess, nil
}

// DeleteSession removes a session. Deleting a missing session is not an error.
func (s *SQLiteStore) DeleteSession(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// DeleteExpiredSessions removes all sessions past their expiry.
func (s *SQLiteStore) DeleteExpiredSessions(ctx context.Context) error {
	now := time.Now().UTC().Format(time.RFC3339)
	result, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, now)
	if err != nil {
		return fmt.Errorf("deleting expired sessions: %w", err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected > 0 {
		s.logger.Debug("deleted expired sessions", "count", rowsAffected)
	}
	return nil
}

// Ensure SQLiteStore implements Store interface
var _ Store = (*SQLiteStore)(nil)
