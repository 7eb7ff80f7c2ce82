// ABOUTME: Challenge-response authentication for Stellar-style ed25519 identities
// ABOUTME: Issues server-signed challenges and verifies counter-signed responses

package auth

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Challenge verification errors
var (
	ErrInvalidClientKey = errors.New("invalid client public key")
	ErrChallengeExpired = errors.New("challenge expired")
	ErrWrongServerKey   = errors.New("envelope not signed by this server")
	ErrServerSigInvalid = errors.New("server signature invalid")
	ErrClientSigInvalid = errors.New("client signature invalid")
	ErrClientSigMissing = errors.New("client signature missing")
	ErrNonceMismatch    = errors.New("nonce does not match outstanding challenge")
)

// ChallengeAuthenticator implements challenge-response login. A client asks
// for a challenge by claiming a public key, counter-signs the returned
// envelope, and posts it back. Both signatures must verify, the envelope must
// be inside its time bounds, and the nonce must match the single outstanding
// challenge for the claimed key.
type ChallengeAuthenticator struct {
	signingKey        ed25519.PrivateKey
	serverPubkeyHex   string
	networkPassphrase string
	homeDomain        string
	registry          *ChallengeRegistry
	codec             Codec
	now               func() time.Time
}

// NewChallengeAuthenticator creates an authenticator from a hex-encoded
// 32-byte ed25519 seed. The registry governs nonce lifetime and single-use
// semantics; a nil codec uses Base64JSONCodec.
func NewChallengeAuthenticator(seedHex, networkPassphrase, homeDomain string, registry *ChallengeRegistry, codec Codec) (*ChallengeAuthenticator, error) {
	seed, err := hex.DecodeString(seedHex)
	if err != nil {
		return nil, fmt.Errorf("decoding server seed: %w", err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("server seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}

	if codec == nil {
		codec = Base64JSONCodec{}
	}

	key := ed25519.NewKeyFromSeed(seed)
	return &ChallengeAuthenticator{
		signingKey:        key,
		serverPubkeyHex:   hex.EncodeToString(key.Public().(ed25519.PublicKey)),
		networkPassphrase: networkPassphrase,
		homeDomain:        homeDomain,
		registry:          registry,
		codec:             codec,
		now:               time.Now,
	}, nil
}

// ServerPubkey returns the server's hex-encoded verification key.
func (a *ChallengeAuthenticator) ServerPubkey() string {
	return a.serverPubkeyHex
}

// BeginChallenge issues a server-signed challenge envelope for the claimed
// client public key. The key is not required to belong to a known investor;
// binding to an identity happens at completion.
func (a *ChallengeAuthenticator) BeginChallenge(clientPubkey string) (string, error) {
	clientPubkey = strings.ToLower(clientPubkey)
	if !isHexKey(clientPubkey) {
		return "", fmt.Errorf("%w: must be 64 hex characters", ErrInvalidClientKey)
	}

	nonce, expiresAt, err := a.registry.Issue(clientPubkey)
	if err != nil {
		return "", fmt.Errorf("issuing challenge: %w", err)
	}

	env := ChallengeEnvelope{
		ServerPubkey: a.serverPubkeyHex,
		ClientPubkey: clientPubkey,
		Nonce:        base64.StdEncoding.EncodeToString(nonce),
		HomeDomain:   a.homeDomain,
		IssuedAt:     a.now().Unix(),
		ExpiresAt:    expiresAt.Unix(),
	}

	hash, err := EnvelopeHash(a.networkPassphrase, &env)
	if err != nil {
		return "", err
	}

	se := &SignedEnvelope{
		Envelope:  env,
		ServerSig: hex.EncodeToString(ed25519.Sign(a.signingKey, hash)),
	}

	return a.codec.Encode(se)
}

// CompleteChallenge verifies a counter-signed envelope and, on success,
// returns the client public key it authenticates. The outstanding challenge
// for that key is consumed only after both signatures check out, so a
// rejected envelope leaves the issued challenge redeemable until it expires.
func (a *ChallengeAuthenticator) CompleteChallenge(wire string) (clientPubkey string, err error) {
	se, err := a.codec.Decode(wire)
	if err != nil {
		return "", err
	}
	env := &se.Envelope

	if env.ServerPubkey != a.serverPubkeyHex {
		return "", ErrWrongServerKey
	}

	clientPubkey = strings.ToLower(env.ClientPubkey)
	if !isHexKey(clientPubkey) {
		return "", fmt.Errorf("%w: must be 64 hex characters", ErrInvalidClientKey)
	}

	now := a.now().Unix()
	if now > env.ExpiresAt || now < env.IssuedAt {
		return "", ErrChallengeExpired
	}

	hash, err := EnvelopeHash(a.networkPassphrase, env)
	if err != nil {
		return "", err
	}

	serverSig, err := hex.DecodeString(se.ServerSig)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	serverPub := a.signingKey.Public().(ed25519.PublicKey)
	if !ed25519.Verify(serverPub, hash, serverSig) {
		return "", ErrServerSigInvalid
	}

	if se.ClientSig == "" {
		return "", ErrClientSigMissing
	}
	clientSig, err := hex.DecodeString(se.ClientSig)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	clientPubBytes, err := hex.DecodeString(clientPubkey)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidClientKey, err)
	}
	if !ed25519.Verify(ed25519.PublicKey(clientPubBytes), hash, clientSig) {
		return "", ErrClientSigInvalid
	}

	// Consume the single outstanding challenge for this key. An envelope
	// whose nonce predates a reissued challenge fails here even though its
	// signatures verify.
	nonce, err := a.registry.Consume(clientPubkey)
	if err != nil {
		return "", err
	}

	envNonce, err := base64.StdEncoding.DecodeString(env.Nonce)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if !nonceEqual(nonce, envNonce) {
		return "", ErrNonceMismatch
	}

	return clientPubkey, nil
}

func nonceEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	var diff byte
	for i := range a {
		diff |= a[i] ^ b[i]
	}
	return diff == 0
}
