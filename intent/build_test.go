package intent

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	commonerrors "github.com/unikron/intent-relay/common/errors"
	"github.com/unikron/intent-relay/common/types"
)

var buildNow = time.Unix(1_700_000_000, 0)

func sampleRoute() *types.Route {
	return &types.Route{
		InputMint:  "So11111111111111111111111111111111111111112",
		OutputMint: "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
		InAmount:   "100000000",
		OutAmount:  "95000000",
		SwapMode:   "ExactIn",
	}
}

func sampleMeta() *TradeMeta {
	return &TradeMeta{
		User:       "11111111111111111111111111111111",
		TokenIn:    "So11111111111111111111111111111111111111112",
		TokenOut:   "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
		AmountIn:   100_000_000,
		MinOut:     90_000_000,
		Expiry:     buildNow.Add(time.Hour).Unix(),
		Nonce:      7,
		RelayerFee: 5000,
		Relayer:    "11111111111111111111111111111111",
	}
}

func TestBuild_Succeeds(t *testing.T) {
	ti, hash, err := Build(sampleRoute(), sampleMeta(), buildNow)
	require.NoError(t, err)
	require.NotNil(t, ti)

	assert.Len(t, hash, 64)
	assert.Equal(t, HashIntent(ti), hash)
	assert.Len(t, ti.RouteHash, 64)
}

func TestBuild_RouteMismatch(t *testing.T) {
	route := sampleRoute()
	route.InputMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	route.OutputMint = "So11111111111111111111111111111111111111112"

	_, _, err := Build(route, sampleMeta(), buildNow)
	require.Error(t, err)

	var verr *commonerrors.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "ROUTE_MISMATCH", verr.Code)
	assert.Len(t, verr.Violations, 2)
}

func TestValidate_CollectsAllViolations(t *testing.T) {
	ti := &types.TradeIntent{
		User:      "not-a-key",
		TokenIn:   "also-not-a-key",
		TokenOut:  "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
		AmountIn:  0,
		MinOut:    0,
		Expiry:    buildNow.Add(-time.Minute).Unix(),
		RouteHash: "short",
		Relayer:   "bad",
	}

	violations := Validate(ti, buildNow)
	// user, tokenIn, relayer, amountIn, minOut, expiry, routeHash
	assert.Len(t, violations, 7)
}

func TestValidate_ExpiryBounds(t *testing.T) {
	ti, _, err := Build(sampleRoute(), sampleMeta(), buildNow)
	require.NoError(t, err)

	ti.Expiry = buildNow.Unix()
	violations := Validate(ti, buildNow)
	require.Len(t, violations, 1)
	assert.Contains(t, violations[0], "in the future")

	ti.Expiry = buildNow.Add(MaxExpiryHorizon + time.Second).Unix()
	violations = Validate(ti, buildNow)
	require.Len(t, violations, 1)
	assert.Contains(t, violations[0], "7 days")

	// Exactly at the horizon is allowed.
	ti.Expiry = buildNow.Add(MaxExpiryHorizon).Unix()
	assert.Empty(t, Validate(ti, buildNow))
}

func TestBuild_ZeroRelayerFeeAllowed(t *testing.T) {
	meta := sampleMeta()
	meta.RelayerFee = 0
	_, _, err := Build(sampleRoute(), meta, buildNow)
	assert.NoError(t, err)
}

func TestValidHelpers(t *testing.T) {
	assert.True(t, ValidHash(strings.Repeat("0f", 32)))
	assert.False(t, ValidHash(strings.Repeat("0f", 31)))
	assert.False(t, ValidHash(strings.Repeat("zz", 32)))
	assert.True(t, ValidSignature(strings.Repeat("0f", 64)))
	assert.False(t, ValidSignature(strings.Repeat("0f", 65)))
}
