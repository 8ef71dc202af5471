package intent

import (
	"fmt"
	"time"

	sol "github.com/gagliardetto/solana-go"

	commonerrors "github.com/unikron/intent-relay/common/errors"
	"github.com/unikron/intent-relay/common/types"
)

// MaxExpiryHorizon bounds how far in the future an intent may expire.
const MaxExpiryHorizon = 7 * 24 * time.Hour

// TradeMeta carries the caller-supplied trade parameters from which an
// intent is built.
type TradeMeta struct {
	User       string `json:"user"`
	TokenIn    string `json:"tokenIn"`
	TokenOut   string `json:"tokenOut"`
	AmountIn   uint64 `json:"amountIn"`
	MinOut     uint64 `json:"minOut"`
	Expiry     int64  `json:"expiry"`
	Nonce      uint64 `json:"nonce"`
	RelayerFee uint64 `json:"relayerFee"`
	Relayer    string `json:"relayer"`
}

// Build validates that the route matches the trade metadata, derives the
// route hash and assembles a validated TradeIntent together with its
// canonical digest.
func Build(route *types.Route, meta *TradeMeta, now time.Time) (*types.TradeIntent, string, error) {
	var mismatches []string
	if route.InputMint != meta.TokenIn {
		mismatches = append(mismatches,
			fmt.Sprintf("route inputMint %s does not match tokenIn %s", route.InputMint, meta.TokenIn))
	}
	if route.OutputMint != meta.TokenOut {
		mismatches = append(mismatches,
			fmt.Sprintf("route outputMint %s does not match tokenOut %s", route.OutputMint, meta.TokenOut))
	}
	if len(mismatches) > 0 {
		return nil, "", commonerrors.NewRouteMismatch(mismatches...)
	}

	routeHash, err := HashRoute(route)
	if err != nil {
		return nil, "", commonerrors.NewValidation(err.Error())
	}

	ti := &types.TradeIntent{
		User:       meta.User,
		TokenIn:    meta.TokenIn,
		TokenOut:   meta.TokenOut,
		AmountIn:   meta.AmountIn,
		MinOut:     meta.MinOut,
		Expiry:     meta.Expiry,
		Nonce:      meta.Nonce,
		RouteHash:  routeHash,
		RelayerFee: meta.RelayerFee,
		Relayer:    meta.Relayer,
	}

	if violations := Validate(ti, now); len(violations) > 0 {
		return nil, "", commonerrors.NewValidation(violations...)
	}

	return ti, HashIntent(ti), nil
}

// Validate checks every intent field and returns the full list of violations
// rather than stopping at the first.
func Validate(t *types.TradeIntent, now time.Time) []string {
	var violations []string

	if _, err := sol.PublicKeyFromBase58(t.User); err != nil {
		violations = append(violations, fmt.Sprintf("invalid user address %q", t.User))
	}
	if _, err := sol.PublicKeyFromBase58(t.TokenIn); err != nil {
		violations = append(violations, fmt.Sprintf("invalid tokenIn address %q", t.TokenIn))
	}
	if _, err := sol.PublicKeyFromBase58(t.TokenOut); err != nil {
		violations = append(violations, fmt.Sprintf("invalid tokenOut address %q", t.TokenOut))
	}
	if _, err := sol.PublicKeyFromBase58(t.Relayer); err != nil {
		violations = append(violations, fmt.Sprintf("invalid relayer address %q", t.Relayer))
	}

	if t.AmountIn == 0 {
		violations = append(violations, "amountIn must be positive")
	}
	if t.MinOut == 0 {
		violations = append(violations, "minOut must be positive")
	}

	if t.Expiry <= now.Unix() {
		violations = append(violations, fmt.Sprintf("expiry %d must be in the future", t.Expiry))
	} else if t.Expiry > now.Add(MaxExpiryHorizon).Unix() {
		violations = append(violations, fmt.Sprintf("expiry %d is more than 7 days ahead", t.Expiry))
	}

	if !ValidHash(t.RouteHash) {
		violations = append(violations, "routeHash must be a 64-character hex string")
	}

	return violations
}
