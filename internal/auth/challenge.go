// ABOUTME: In-memory registry of outstanding login challenges
// ABOUTME: Tracks one pending nonce per claimed public key with TTL expiry

package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"sync"
	"time"
)

const (
	// ChallengeNonceSize is the size of challenge nonces in bytes.
	ChallengeNonceSize = 32

	// ChallengeTTL is the default lifetime of an issued challenge.
	ChallengeTTL = 5 * time.Minute
)

// ErrChallengeNotFound is returned when no live challenge exists for a key.
// Expired and already-consumed challenges are indistinguishable from never
// having been issued.
var ErrChallengeNotFound = errors.New("challenge not found")

// pendingChallenge tracks one outstanding nonce for a claimed public key.
type pendingChallenge struct {
	nonce     []byte
	expiresAt time.Time
}

// ChallengeRegistry is an in-memory store of outstanding challenges, keyed by
// the claimed public key. Issuing a new challenge for a key replaces any
// previous one, so at most one challenge per key is live at a time.
type ChallengeRegistry struct {
	mu      sync.RWMutex
	pending map[string]*pendingChallenge // keyed by claimed pubkey
	ttl     time.Duration
	now     func() time.Time
	cancel  context.CancelFunc
}

// NewChallengeRegistry creates a registry with the given challenge lifetime.
// A zero ttl uses ChallengeTTL. A background goroutine sweeps expired
// entries; call Close to stop it.
func NewChallengeRegistry(ttl time.Duration) *ChallengeRegistry {
	if ttl <= 0 {
		ttl = ChallengeTTL
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &ChallengeRegistry{
		pending: make(map[string]*pendingChallenge),
		ttl:     ttl,
		now:     time.Now,
		cancel:  cancel,
	}
	go r.sweepLoop(ctx)
	return r
}

// Close stops the sweep goroutine.
func (r *ChallengeRegistry) Close() {
	if r.cancel != nil {
		r.cancel()
	}
}

// Issue creates a fresh random nonce for the given public key and stores it,
// replacing any previous challenge for the same key.
func (r *ChallengeRegistry) Issue(pubkey string) (nonce []byte, expiresAt time.Time, err error) {
	nonce = make([]byte, ChallengeNonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, time.Time{}, fmt.Errorf("generating nonce: %w", err)
	}

	expiresAt = r.now().Add(r.ttl)

	r.mu.Lock()
	r.pending[pubkey] = &pendingChallenge{
		nonce:     nonce,
		expiresAt: expiresAt,
	}
	r.mu.Unlock()

	return nonce, expiresAt, nil
}

// Consume removes and returns the live challenge nonce for the given public
// key. Returns ErrChallengeNotFound when no challenge exists or the one that
// did has expired. A consumed challenge cannot be consumed again.
func (r *ChallengeRegistry) Consume(pubkey string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.pending[pubkey]
	if !ok {
		return nil, ErrChallengeNotFound
	}
	delete(r.pending, pubkey)

	if r.now().After(c.expiresAt) {
		return nil, ErrChallengeNotFound
	}
	return c.nonce, nil
}

// Len reports the number of outstanding challenges.
func (r *ChallengeRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.pending)
}

func (r *ChallengeRegistry) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.mu.Lock()
			now := r.now()
			for k, v := range r.pending {
				if now.After(v.expiresAt) {
					delete(r.pending, k)
				}
			}
			r.mu.Unlock()
		}
	}
}
