// ABOUTME: Challenge envelope format and wire codec
// ABOUTME: Defines the signed time-bounded payload exchanged during challenge login

package auth

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedEnvelope is returned when an envelope fails to decode.
var ErrMalformedEnvelope = errors.New("malformed challenge envelope")

// ChallengeEnvelope is the payload a client must counter-sign to prove key
// ownership. The server signs it at issue time; the nonce binds it to the
// registry entry for the claimed key.
type ChallengeEnvelope struct {
	ServerPubkey string `json:"server_pubkey"` // hex ed25519
	ClientPubkey string `json:"client_pubkey"` // hex ed25519, as claimed at issue time
	Nonce        string `json:"nonce"`         // base64
	HomeDomain   string `json:"home_domain"`
	IssuedAt     int64  `json:"issued_at"`  // unix seconds
	ExpiresAt    int64  `json:"expires_at"` // unix seconds
}

// SignedEnvelope carries an envelope with its accumulated signatures. The
// server signature is present from issue; the client signature is added
// before the envelope is returned for verification.
type SignedEnvelope struct {
	Envelope  ChallengeEnvelope `json:"envelope"`
	ServerSig string            `json:"server_sig"` // hex
	ClientSig string            `json:"client_sig,omitempty"`
}

// EnvelopeHash computes the signing digest for an envelope: the sha256 of the
// network passphrase concatenated with the canonical envelope JSON. The
// passphrase prefix keeps signatures from one deployment meaningless on
// another.
func EnvelopeHash(networkPassphrase string, env *ChallengeEnvelope) ([]byte, error) {
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("serializing envelope: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString(networkPassphrase)
	buf.Write(data)

	hash := sha256.Sum256(buf.Bytes())
	return hash[:], nil
}

// Codec translates signed envelopes to and from their wire form. The wire
// form is what clients receive from a challenge request and post back after
// counter-signing.
type Codec interface {
	Encode(se *SignedEnvelope) (string, error)
	Decode(wire string) (*SignedEnvelope, error)
}

// Base64JSONCodec encodes signed envelopes as base64-wrapped JSON.
type Base64JSONCodec struct{}

// Encode serializes the signed envelope to JSON and base64-encodes it.
func (Base64JSONCodec) Encode(se *SignedEnvelope) (string, error) {
	data, err := json.Marshal(se)
	if err != nil {
		return "", fmt.Errorf("serializing signed envelope: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// Decode reverses Encode. Returns ErrMalformedEnvelope on any decoding
// failure.
func (Base64JSONCodec) Decode(wire string) (*SignedEnvelope, error) {
	data, err := base64.StdEncoding.DecodeString(wire)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}

	var se SignedEnvelope
	if err := json.Unmarshal(data, &se); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	return &se, nil
}
