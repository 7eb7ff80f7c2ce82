package auth

import (
	"encoding/hex"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// signedEvent builds a fully-signed auth event with the given timestamp.
func signedEvent(t *testing.T, priv *btcec.PrivateKey, createdAt time.Time) *NostrEvent {
	t.Helper()

	ev := &NostrEvent{
		Pubkey:    hex.EncodeToString(schnorr.SerializePubKey(priv.PubKey())),
		CreatedAt: createdAt.Unix(),
		Kind:      AuthEventKind,
		Tags:      [][]string{{"u", "https://invest.example.com/auth/nostr/login"}, {"method", "POST"}},
		Content:   "",
	}

	hash, err := EventHash(ev)
	require.NoError(t, err)
	ev.ID = hex.EncodeToString(hash)

	sig, err := schnorr.Sign(priv, hash)
	require.NoError(t, err)
	ev.Sig = hex.EncodeToString(sig.Serialize())

	return ev
}

func newTestKey(t *testing.T) *btcec.PrivateKey {
	t.Helper()
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	return priv
}

func TestEventVerifier_Valid(t *testing.T) {
	priv := newTestKey(t)
	v := NewEventVerifier(0)

	ev := signedEvent(t, priv, time.Now())

	pubkey, err := v.Verify(ev)
	require.NoError(t, err)
	assert.Equal(t, hex.EncodeToString(schnorr.SerializePubKey(priv.PubKey())), pubkey)
}

func TestEventVerifier_UppercasePubkeyNormalized(t *testing.T) {
	priv := newTestKey(t)
	v := NewEventVerifier(0)

	ev := signedEvent(t, priv, time.Now())
	lower := ev.Pubkey

	// Uppercase hex is accepted and normalized to lowercase
	ev.Pubkey = upperHex(lower)

	pubkey, err := v.Verify(ev)
	require.NoError(t, err)
	assert.Equal(t, lower, pubkey)
}

func upperHex(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'f' {
			b[i] = c - 'a' + 'A'
		}
	}
	return string(b)
}

func TestEventVerifier_WrongKind(t *testing.T) {
	priv := newTestKey(t)
	v := NewEventVerifier(0)

	ev := signedEvent(t, priv, time.Now())
	ev.Kind = 1

	_, err := v.Verify(ev)
	assert.ErrorIs(t, err, ErrWrongEventKind)
}

func TestEventVerifier_StaleEvent(t *testing.T) {
	priv := newTestKey(t)
	v := NewEventVerifier(5 * time.Minute)

	ev := signedEvent(t, priv, time.Now().Add(-10*time.Minute))

	_, err := v.Verify(ev)
	assert.ErrorIs(t, err, ErrStaleEvent)
}

func TestEventVerifier_FutureEvent(t *testing.T) {
	priv := newTestKey(t)
	v := NewEventVerifier(5 * time.Minute)

	ev := signedEvent(t, priv, time.Now().Add(10*time.Minute))

	_, err := v.Verify(ev)
	assert.ErrorIs(t, err, ErrStaleEvent)
}

func TestEventVerifier_WithinWindow(t *testing.T) {
	priv := newTestKey(t)
	v := NewEventVerifier(5 * time.Minute)

	// Just inside the window on both sides
	for _, offset := range []time.Duration{-4 * time.Minute, 4 * time.Minute} {
		ev := signedEvent(t, priv, time.Now().Add(offset))
		_, err := v.Verify(ev)
		assert.NoError(t, err, "offset %v should be accepted", offset)
	}
}

func TestEventVerifier_IDMismatch(t *testing.T) {
	priv := newTestKey(t)
	v := NewEventVerifier(0)

	ev := signedEvent(t, priv, time.Now())
	ev.Content = "tampered after signing"

	_, err := v.Verify(ev)
	assert.ErrorIs(t, err, ErrEventIDMismatch)
}

func TestEventVerifier_ForgedSignature(t *testing.T) {
	priv := newTestKey(t)
	other := newTestKey(t)
	v := NewEventVerifier(0)

	// Sign with a different key but claim priv's pubkey
	ev := signedEvent(t, other, time.Now())
	ev.Pubkey = hex.EncodeToString(schnorr.SerializePubKey(priv.PubKey()))

	hash, err := EventHash(ev)
	require.NoError(t, err)
	ev.ID = hex.EncodeToString(hash)

	_, err = v.Verify(ev)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestEventVerifier_MalformedPubkey(t *testing.T) {
	v := NewEventVerifier(0)

	ev := &NostrEvent{
		Pubkey:    "not-a-key",
		CreatedAt: time.Now().Unix(),
		Kind:      AuthEventKind,
	}

	_, err := v.Verify(ev)
	assert.ErrorIs(t, err, ErrMalformedEvent)
}

func TestEventVerifier_NilEvent(t *testing.T) {
	v := NewEventVerifier(0)

	_, err := v.Verify(nil)
	assert.ErrorIs(t, err, ErrMalformedEvent)
}

func TestEventHash_NilTagsMatchesEmptyTags(t *testing.T) {
	ev1 := &NostrEvent{Pubkey: "ab", CreatedAt: 100, Kind: AuthEventKind, Tags: nil}
	ev2 := &NostrEvent{Pubkey: "ab", CreatedAt: 100, Kind: AuthEventKind, Tags: [][]string{}}

	h1, err := EventHash(ev1)
	require.NoError(t, err)
	h2, err := EventHash(ev2)
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
}
