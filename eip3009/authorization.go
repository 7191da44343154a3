// Package eip3009 implements signed EIP-3009 TransferWithAuthorization
// payment permissions: construction and EIP-712 signing of single-use,
// time-bounded authorizations, and a per-payer FIFO cache that amortizes
// wallet-approval prompts across many payments.
package eip3009

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"time"
)

// Authorization is a signed, single-use payment permission. The nonce is a
// random 256-bit value unique per authorization, not a sequential account
// nonce, so authorizations can be redeemed out of order or in parallel.
type Authorization struct {
	From        string `json:"from"`
	To          string `json:"to"`
	Value       string `json:"value"`       // smallest token unit, decimal string
	ValidAfter  string `json:"validAfter"`  // unix timestamp, decimal string
	ValidBefore string `json:"validBefore"` // unix timestamp, decimal string
	Nonce       string `json:"nonce"`       // 32-byte hex, 0x-prefixed

	V uint8  `json:"v"`
	R string `json:"r"` // 32-byte hex, 0x-prefixed
	S string `json:"s"` // 32-byte hex, 0x-prefixed

	Used      bool      `json:"used"`
	CreatedAt time.Time `json:"createdAt"`
}

// Signature reassembles the 65-byte r||s||v signature as a hex string.
func (a *Authorization) Signature() string {
	return a.R + strings.TrimPrefix(a.S, "0x") + fmt.Sprintf("%02x", a.V)
}

// Expired reports whether the validity window has closed at the given time.
func (a *Authorization) Expired(now time.Time) bool {
	validBefore, ok := new(big.Int).SetString(a.ValidBefore, 10)
	if !ok {
		return true
	}
	return big.NewInt(now.Unix()).Cmp(validBefore) > 0
}

// NotYetValid reports whether the validity window has not opened yet.
func (a *Authorization) NotYetValid(now time.Time) bool {
	validAfter, ok := new(big.Int).SetString(a.ValidAfter, 10)
	if !ok {
		return true
	}
	return big.NewInt(now.Unix()).Cmp(validAfter) < 0
}

// payloadEnvelope is the wire form submitted to the facilitator as the
// opaque paymentPayload string.
type payloadEnvelope struct {
	Signature     string            `json:"signature"`
	Authorization payloadAuthFields `json:"authorization"`
}

type payloadAuthFields struct {
	From        string `json:"from"`
	To          string `json:"to"`
	Value       string `json:"value"`
	ValidAfter  string `json:"validAfter"`
	ValidBefore string `json:"validBefore"`
	Nonce       string `json:"nonce"`
}

// PayloadJSON serializes the authorization and its signature into the
// opaque string the facilitator API expects.
func (a *Authorization) PayloadJSON() (string, error) {
	env := payloadEnvelope{
		Signature: a.Signature(),
		Authorization: payloadAuthFields{
			From:        a.From,
			To:          a.To,
			Value:       a.Value,
			ValidAfter:  a.ValidAfter,
			ValidBefore: a.ValidBefore,
			Nonce:       a.Nonce,
		},
	}
	out, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("failed to marshal authorization payload: %w", err)
	}
	return string(out), nil
}

// NewNonce generates a random 32-byte nonce as a 0x-prefixed hex string.
func NewNonce() (string, error) {
	var nonce [32]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	return "0x" + hex.EncodeToString(nonce[:]), nil
}

// ValidityWindow returns [now, now+d] as unix-timestamp big integers.
func ValidityWindow(d time.Duration) (validAfter, validBefore *big.Int) {
	now := time.Now().Unix()
	return big.NewInt(now), big.NewInt(now + int64(d.Seconds()))
}

// SplitSignature decomposes a 65-byte r||s||v signature into its standard
// components. Accepts recovery ids in either the raw (0/1) or Ethereum
// (27/28) convention and normalizes to the latter.
func SplitSignature(sig []byte) (v uint8, r, s string, err error) {
	if len(sig) != 65 {
		return 0, "", "", fmt.Errorf("invalid signature length: %d", len(sig))
	}
	v = sig[64]
	if v < 27 {
		v += 27
	}
	return v, "0x" + hex.EncodeToString(sig[:32]), "0x" + hex.EncodeToString(sig[32:64]), nil
}
