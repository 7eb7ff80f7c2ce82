package auth

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testPassphrase = "Investor Gateway Test Network ; 2024"
	testHomeDomain = "invest.example.com"
)

func newTestAuthenticator(t *testing.T, ttl time.Duration) *ChallengeAuthenticator {
	t.Helper()

	seed := make([]byte, ed25519.SeedSize)
	_, err := rand.Read(seed)
	require.NoError(t, err)

	registry := NewChallengeRegistry(ttl)
	t.Cleanup(registry.Close)

	a, err := NewChallengeAuthenticator(hex.EncodeToString(seed), testPassphrase, testHomeDomain, registry, nil)
	require.NoError(t, err)
	return a
}

func newClientKey(t *testing.T) (ed25519.PrivateKey, string) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return priv, hex.EncodeToString(pub)
}

// counterSign decodes a challenge, signs it with the client key, and
// re-encodes it the way a client would.
func counterSign(t *testing.T, a *ChallengeAuthenticator, wire string, priv ed25519.PrivateKey) string {
	t.Helper()

	se, err := a.codec.Decode(wire)
	require.NoError(t, err)

	hash, err := EnvelopeHash(testPassphrase, &se.Envelope)
	require.NoError(t, err)

	se.ClientSig = hex.EncodeToString(ed25519.Sign(priv, hash))

	signed, err := a.codec.Encode(se)
	require.NoError(t, err)
	return signed
}

func TestChallengeAuthenticator_RoundTrip(t *testing.T) {
	a := newTestAuthenticator(t, 0)
	priv, pubHex := newClientKey(t)

	wire, err := a.BeginChallenge(pubHex)
	require.NoError(t, err)

	signed := counterSign(t, a, wire, priv)

	got, err := a.CompleteChallenge(signed)
	require.NoError(t, err)
	assert.Equal(t, pubHex, got)
}

func TestChallengeAuthenticator_SingleUse(t *testing.T) {
	a := newTestAuthenticator(t, 0)
	priv, pubHex := newClientKey(t)

	wire, err := a.BeginChallenge(pubHex)
	require.NoError(t, err)
	signed := counterSign(t, a, wire, priv)

	_, err = a.CompleteChallenge(signed)
	require.NoError(t, err)

	// Replaying the same signed envelope must fail
	_, err = a.CompleteChallenge(signed)
	assert.ErrorIs(t, err, ErrChallengeNotFound)
}

func TestChallengeAuthenticator_ReissueInvalidatesFirst(t *testing.T) {
	a := newTestAuthenticator(t, 0)
	priv, pubHex := newClientKey(t)

	first, err := a.BeginChallenge(pubHex)
	require.NoError(t, err)

	// A second challenge for the same key replaces the nonce
	_, err = a.BeginChallenge(pubHex)
	require.NoError(t, err)

	signed := counterSign(t, a, first, priv)
	_, err = a.CompleteChallenge(signed)
	assert.ErrorIs(t, err, ErrNonceMismatch)
}

func TestChallengeAuthenticator_MissingClientSig(t *testing.T) {
	a := newTestAuthenticator(t, 0)
	_, pubHex := newClientKey(t)

	wire, err := a.BeginChallenge(pubHex)
	require.NoError(t, err)

	_, err = a.CompleteChallenge(wire)
	assert.ErrorIs(t, err, ErrClientSigMissing)
}

func TestChallengeAuthenticator_WrongClientKey(t *testing.T) {
	a := newTestAuthenticator(t, 0)
	_, pubHex := newClientKey(t)
	otherPriv, _ := newClientKey(t)

	wire, err := a.BeginChallenge(pubHex)
	require.NoError(t, err)

	// Signed by a key other than the claimed one
	signed := counterSign(t, a, wire, otherPriv)
	_, err = a.CompleteChallenge(signed)
	assert.ErrorIs(t, err, ErrClientSigInvalid)
}

func TestChallengeAuthenticator_FailureLeavesChallengeLive(t *testing.T) {
	a := newTestAuthenticator(t, 0)
	priv, pubHex := newClientKey(t)
	otherPriv, _ := newClientKey(t)

	wire, err := a.BeginChallenge(pubHex)
	require.NoError(t, err)

	// A bad counter-signature does not consume the challenge
	_, err = a.CompleteChallenge(counterSign(t, a, wire, otherPriv))
	require.ErrorIs(t, err, ErrClientSigInvalid)

	got, err := a.CompleteChallenge(counterSign(t, a, wire, priv))
	require.NoError(t, err)
	assert.Equal(t, pubHex, got)
}

func TestChallengeAuthenticator_TamperedEnvelope(t *testing.T) {
	a := newTestAuthenticator(t, 0)
	priv, pubHex := newClientKey(t)

	wire, err := a.BeginChallenge(pubHex)
	require.NoError(t, err)

	se, err := a.codec.Decode(wire)
	require.NoError(t, err)

	// Stretch the expiry after the server signed
	se.Envelope.ExpiresAt += 3600

	hash, err := EnvelopeHash(testPassphrase, &se.Envelope)
	require.NoError(t, err)
	se.ClientSig = hex.EncodeToString(ed25519.Sign(priv, hash))

	tampered, err := a.codec.Encode(se)
	require.NoError(t, err)

	_, err = a.CompleteChallenge(tampered)
	assert.ErrorIs(t, err, ErrServerSigInvalid)
}

func TestChallengeAuthenticator_ForeignServerEnvelope(t *testing.T) {
	a := newTestAuthenticator(t, 0)
	b := newTestAuthenticator(t, 0)
	priv, pubHex := newClientKey(t)

	wire, err := b.BeginChallenge(pubHex)
	require.NoError(t, err)
	signed := counterSign(t, b, wire, priv)

	// An envelope issued by a different server is rejected outright
	_, err = a.CompleteChallenge(signed)
	assert.ErrorIs(t, err, ErrWrongServerKey)
}

func TestChallengeAuthenticator_ExpiredEnvelope(t *testing.T) {
	a := newTestAuthenticator(t, time.Minute)
	priv, pubHex := newClientKey(t)

	wire, err := a.BeginChallenge(pubHex)
	require.NoError(t, err)
	signed := counterSign(t, a, wire, priv)

	// Move the verifier clock past the envelope's expiry
	a.now = func() time.Time { return time.Now().Add(2 * time.Minute) }

	_, err = a.CompleteChallenge(signed)
	assert.ErrorIs(t, err, ErrChallengeExpired)
}

func TestChallengeAuthenticator_InvalidClientKey(t *testing.T) {
	a := newTestAuthenticator(t, 0)

	_, err := a.BeginChallenge("short")
	assert.ErrorIs(t, err, ErrInvalidClientKey)

	_, err = a.BeginChallenge("zz" + string(make([]byte, 62)))
	assert.ErrorIs(t, err, ErrInvalidClientKey)
}

func TestChallengeAuthenticator_MalformedWire(t *testing.T) {
	a := newTestAuthenticator(t, 0)

	_, err := a.CompleteChallenge("not base64!!!")
	assert.ErrorIs(t, err, ErrMalformedEnvelope)

	garbage := base64.StdEncoding.EncodeToString([]byte("{not json"))
	_, err = a.CompleteChallenge(garbage)
	assert.ErrorIs(t, err, ErrMalformedEnvelope)
}

func TestNewChallengeAuthenticator_BadSeed(t *testing.T) {
	registry := NewChallengeRegistry(0)
	defer registry.Close()

	_, err := NewChallengeAuthenticator("not-hex", testPassphrase, testHomeDomain, registry, nil)
	assert.Error(t, err)

	_, err = NewChallengeAuthenticator("abcd", testPassphrase, testHomeDomain, registry, nil)
	assert.Error(t, err)
}
