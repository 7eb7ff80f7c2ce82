// ABOUTME: Investor session lifecycle on top of the persistent store
// ABOUTME: Creates, resolves, and destroys cookie-backed sessions with lazy expiry

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nostria/investor-gateway/internal/store"
)

// DefaultSessionDuration is how long a session stays valid without renewal.
const DefaultSessionDuration = 24 * time.Hour

// Session errors
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")
)

// Auth methods recorded on sessions.
const (
	MethodNostr   = "nostr"
	MethodStellar = "stellar"
)

// SessionStore manages investor sessions persisted in the backing store.
// Expired sessions are deleted when first observed, and a background sweep
// removes the ones nobody comes back for.
type SessionStore struct {
	store    store.Store
	duration time.Duration
	logger   *slog.Logger
	now      func() time.Time
	cancel   context.CancelFunc
}

// NewSessionStore creates a session store. A zero duration uses
// DefaultSessionDuration. Call Close to stop the background sweep.
func NewSessionStore(s store.Store, duration time.Duration) *SessionStore {
	if duration <= 0 {
		duration = DefaultSessionDuration
	}

	ctx, cancel := context.WithCancel(context.Background())
	ss := &SessionStore{
		store:    s,
		duration: duration,
		logger:   slog.Default().With("component", "sessions"),
		now:      time.Now,
		cancel:   cancel,
	}
	go ss.sweepLoop(ctx)
	return ss
}

// Close stops the sweep goroutine.
func (s *SessionStore) Close() {
	if s.cancel != nil {
		s.cancel()
	}
}

// Create opens a new session for an investor authenticated via the given
// method and returns it.
func (s *SessionStore) Create(ctx context.Context, investorID, method string) (*store.Session, error) {
	now := s.now().UTC()
	sess := &store.Session{
		ID:         uuid.New().String(),
		InvestorID: investorID,
		AuthMethod: method,
		CreatedAt:  now,
		ExpiresAt:  now.Add(s.duration),
	}

	if err := s.store.CreateSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}

	s.logger.Info("session created", "investor_id", investorID, "method", method)
	return sess, nil
}

// Resolve looks up a session by ID. An expired session is deleted on sight
// and reported as ErrSessionExpired.
func (s *SessionStore) Resolve(ctx context.Context, id string) (*store.Session, error) {
	sess, err := s.store.GetSession(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("resolving session: %w", err)
	}

	if s.now().After(sess.ExpiresAt) {
		if err := s.store.DeleteSession(ctx, id); err != nil {
			s.logger.Warn("failed to delete expired session", "error", err)
		}
		return nil, ErrSessionExpired
	}

	return sess, nil
}

// Destroy removes a session. Destroying a missing session is not an error, so
// logout is idempotent.
func (s *SessionStore) Destroy(ctx context.Context, id string) error {
	if err := s.store.DeleteSession(ctx, id); err != nil {
		return fmt.Errorf("destroying session: %w", err)
	}
	return nil
}

func (s *SessionStore) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.store.DeleteExpiredSessions(ctx); err != nil {
				s.logger.Warn("session sweep failed", "error", err)
			}
		}
	}
}
