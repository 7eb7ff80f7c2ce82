// ABOUTME: Signed-event authentication for Nostr identities
// ABOUTME: Verifies BIP-340 Schnorr signatures over the canonical event serialization

package auth

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcec/v2/schnorr"
)

const (
	// AuthEventKind is the event kind accepted for HTTP authentication.
	AuthEventKind = 27235

	// NostrAuthMaxAge is the default freshness window, applied in both
	// directions around server time.
	NostrAuthMaxAge = 5 * time.Minute
)

// Event verification errors
var (
	ErrMalformedEvent   = errors.New("malformed event")
	ErrWrongEventKind   = errors.New("wrong event kind")
	ErrStaleEvent       = errors.New("event timestamp outside freshness window")
	ErrEventIDMismatch  = errors.New("event id does not match serialized content")
	ErrInvalidSignature = errors.New("invalid event signature")
)

// NostrEvent is a signed event as submitted by a client for authentication.
type NostrEvent struct {
	ID        string     `json:"id"`
	Pubkey    string     `json:"pubkey"`
	CreatedAt int64      `json:"created_at"`
	Kind      int        `json:"kind"`
	Tags      [][]string `json:"tags"`
	Content   string     `json:"content"`
	Sig       string     `json:"sig"`
}

// EventVerifier verifies signed Nostr events for authentication.
type EventVerifier struct {
	maxAge time.Duration
	now    func() time.Time // injectable for tests
}

// NewEventVerifier creates an event verifier with the given freshness window.
// A zero maxAge uses NostrAuthMaxAge.
func NewEventVerifier(maxAge time.Duration) *EventVerifier {
	if maxAge <= 0 {
		maxAge = NostrAuthMaxAge
	}
	return &EventVerifier{
		maxAge: maxAge,
		now:    time.Now,
	}
}

// Verify checks the event's kind, freshness, id, and signature.
// On success it returns the event's pubkey in lowercase hex.
func (v *EventVerifier) Verify(ev *NostrEvent) (pubkey string, err error) {
	if ev == nil {
		return "", ErrMalformedEvent
	}

	pubkey = strings.ToLower(ev.Pubkey)
	if !isHexKey(pubkey) {
		return "", fmt.Errorf("%w: pubkey must be 64 hex characters", ErrMalformedEvent)
	}

	if ev.Kind != AuthEventKind {
		return "", fmt.Errorf("%w: got %d, want %d", ErrWrongEventKind, ev.Kind, AuthEventKind)
	}

	// Freshness is checked in both directions: stale events and events
	// claiming a future timestamp are both rejected.
	createdAt := time.Unix(ev.CreatedAt, 0)
	drift := v.now().Sub(createdAt)
	if drift > v.maxAge || drift < -v.maxAge {
		return "", fmt.Errorf("%w: drift %v exceeds %v", ErrStaleEvent, drift, v.maxAge)
	}

	hash, err := EventHash(ev)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	if strings.ToLower(ev.ID) != hex.EncodeToString(hash) {
		return "", ErrEventIDMismatch
	}

	pubkeyBytes, err := hex.DecodeString(pubkey)
	if err != nil {
		return "", fmt.Errorf("%w: decoding pubkey: %v", ErrMalformedEvent, err)
	}

	pk, err := schnorr.ParsePubKey(pubkeyBytes)
	if err != nil {
		return "", fmt.Errorf("%w: parsing pubkey: %v", ErrMalformedEvent, err)
	}

	sigBytes, err := hex.DecodeString(ev.Sig)
	if err != nil {
		return "", fmt.Errorf("%w: decoding signature: %v", ErrMalformedEvent, err)
	}

	sig, err := schnorr.ParseSignature(sigBytes)
	if err != nil {
		return "", fmt.Errorf("%w: parsing signature: %v", ErrMalformedEvent, err)
	}

	if !sig.Verify(hash, pk) {
		return "", ErrInvalidSignature
	}

	return pubkey, nil
}

// EventHash computes the sha256 digest of the canonical event serialization:
// a JSON array [0, pubkey, created_at, kind, tags, content].
// HTML escaping is disabled so the serialization matches what clients sign.
func EventHash(ev *NostrEvent) ([]byte, error) {
	tags := ev.Tags
	if tags == nil {
		tags = [][]string{}
	}

	canonical := []any{
		0,
		strings.ToLower(ev.Pubkey),
		ev.CreatedAt,
		ev.Kind,
		tags,
		ev.Content,
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(canonical); err != nil {
		return nil, fmt.Errorf("serializing event: %w", err)
	}

	// Encode appends a trailing newline
	data := bytes.TrimRight(buf.Bytes(), "\n")

	hash := sha256.Sum256(data)
	return hash[:], nil
}

// isHexKey reports whether s is a 64-character lowercase hex string.
func isHexKey(s string) bool {
	if len(s) != 64 {
		return false
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
