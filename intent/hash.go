// Package intent builds, validates and canonically hashes trade intents.
// Hashing must stay bit-exact with the on-chain program's expectations: the
// digest is SHA-512 truncated to 32 bytes over a pipe-joined field sequence
// in a fixed order.
package intent

import (
	"bytes"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/unikron/intent-relay/common/types"
)

// HashSize is the digest length in bytes.
const HashSize = 32

var (
	hashPattern      = regexp.MustCompile(`^[0-9a-fA-F]{64}$`)
	signaturePattern = regexp.MustCompile(`^[0-9a-fA-F]{128}$`)
)

// HashIntent computes the canonical 32-byte digest of a trade intent,
// rendered as lowercase hex. The field order is a protocol constant.
func HashIntent(t *types.TradeIntent) string {
	fields := []string{
		t.User,
		t.TokenIn,
		t.TokenOut,
		strconv.FormatUint(t.AmountIn, 10),
		strconv.FormatUint(t.MinOut, 10),
		strconv.FormatInt(t.Expiry, 10),
		strconv.FormatUint(t.Nonce, 10),
		t.RouteHash,
		strconv.FormatUint(t.RelayerFee, 10),
		t.Relayer,
	}
	return HashData(strings.Join(fields, "|"))
}

// HashData computes the SHA-512/32 digest of a string as lowercase hex.
func HashData(data string) string {
	sum := sha512.Sum512([]byte(data))
	return hex.EncodeToString(sum[:HashSize])
}

// canonicalRoute is the fixed-structure document hashed for a route. Field
// order is load-bearing: encoding/json marshals struct fields in declaration
// order, which keeps the digest stable across calls.
type canonicalRoute struct {
	InputMint  string          `json:"inputMint"`
	OutputMint string          `json:"outputMint"`
	InAmount   string          `json:"inAmount"`
	OutAmount  string          `json:"outAmount"`
	SwapMode   string          `json:"swapMode"`
	RoutePlan  json.RawMessage `json:"routePlan"`
}

// HashRoute computes the canonical digest of the route subset {inputMint,
// outputMint, inAmount, outAmount, swapMode, routePlan}. The route plan is
// compacted so that incoming whitespace cannot change the digest.
func HashRoute(r *types.Route) (string, error) {
	plan := r.RoutePlan
	if len(plan) == 0 {
		plan = json.RawMessage("[]")
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, plan); err != nil {
		return "", errors.Wrap(err, "invalid route plan")
	}

	doc := canonicalRoute{
		InputMint:  r.InputMint,
		OutputMint: r.OutputMint,
		InAmount:   r.InAmount,
		OutAmount:  r.OutAmount,
		SwapMode:   r.SwapMode,
		RoutePlan:  json.RawMessage(compact.Bytes()),
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return "", errors.Wrap(err, "failed to serialize route")
	}
	return HashData(string(raw)), nil
}

// ValidHash reports whether s is a well-formed 64-character hex digest.
func ValidHash(s string) bool { return hashPattern.MatchString(s) }

// ValidSignature reports whether s is a well-formed 128-character hex
// Ed25519 signature.
func ValidSignature(s string) bool { return signaturePattern.MatchString(s) }

// DecodeHash parses a 64-character hex digest into its 32 raw bytes.
func DecodeHash(s string) ([HashSize]byte, error) {
	var out [HashSize]byte
	if !ValidHash(s) {
		return out, errors.Errorf("hash must be a 64-character hex string, got %d characters", len(s))
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return out, errors.Wrap(err, "failed to decode hash")
	}
	copy(out[:], raw)
	return out, nil
}

// DecodeSignature parses a 128-character hex string into 64 raw bytes.
func DecodeSignature(s string) ([64]byte, error) {
	var out [64]byte
	if !ValidSignature(s) {
		return out, errors.Errorf("signature must be a 128-character hex string, got %d characters", len(s))
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return out, errors.Wrap(err, "failed to decode signature")
	}
	copy(out[:], raw)
	return out, nil
}
