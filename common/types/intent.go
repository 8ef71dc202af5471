package types

import (
	"encoding/json"
	"time"
)

// TradeIntent represents the economic terms of a swap before execution.
// All amounts are integers in the smallest token unit.
type TradeIntent struct {
	User       string `json:"user"`
	TokenIn    string `json:"tokenIn"`
	TokenOut   string `json:"tokenOut"`
	AmountIn   uint64 `json:"amountIn"`
	MinOut     uint64 `json:"minOut"`
	Expiry     int64  `json:"expiry"`
	Nonce      uint64 `json:"nonce"`
	RouteHash  string `json:"routeHash"`
	RelayerFee uint64 `json:"relayerFee"`
	Relayer    string `json:"relayer"`
}

// Expired reports whether the intent expiry has elapsed at the given time.
func (t *TradeIntent) Expired(now time.Time) bool {
	return t.Expiry <= now.Unix()
}

// TimeRemaining returns the number of seconds until expiry, floored at zero.
func (t *TradeIntent) TimeRemaining(now time.Time) int64 {
	remaining := t.Expiry - now.Unix()
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Route represents a quoted execution route from the aggregator.
type Route struct {
	InputMint            string          `json:"inputMint"`
	OutputMint           string          `json:"outputMint"`
	InAmount             string          `json:"inAmount"`
	OutAmount            string          `json:"outAmount"`
	OtherAmountThreshold string          `json:"otherAmountThreshold,omitempty"`
	SwapMode             string          `json:"swapMode"`
	PriceImpactPct       json.Number     `json:"priceImpactPct,omitempty"`
	SlippageBps          int             `json:"slippageBps,omitempty"`
	RoutePlan            json.RawMessage `json:"routePlan"`
}

// RevealResult holds the outcome of a reveal and execution.
type RevealResult struct {
	Transaction string `json:"transaction"`
	Success     bool   `json:"success"`
	AmountOut   uint64 `json:"amountOut"`
	ProtocolFee uint64 `json:"protocolFee"`
	RelayerFee  uint64 `json:"relayerFee"`
}

// FeeDistribution is the three-way split of a collected protocol fee.
// LiquidityStakers + Treasury + MevBounty always equals TotalFee; the
// integer-division remainder is absorbed by the MEV bounty pool.
type FeeDistribution struct {
	TotalFee         uint64 `json:"totalFee"`
	LiquidityStakers uint64 `json:"liquidityStakers"`
	Treasury         uint64 `json:"treasury"`
	MevBounty        uint64 `json:"mevBounty"`
}

// SessionSnapshot is the ephemeral {intent, hash, route} record kept for
// client-side recovery. It is never persisted durably.
type SessionSnapshot struct {
	Intent    *TradeIntent `json:"intent"`
	Hash      string       `json:"hash"`
	Route     *Route       `json:"route,omitempty"`
	CreatedAt time.Time    `json:"createdAt"`
	ExpiresAt time.Time    `json:"expiresAt"`
}
