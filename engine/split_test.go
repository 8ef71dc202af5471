package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitFee(t *testing.T) {
	cases := []struct {
		total     uint64
		liquidity uint64
		treasury  uint64
		bounty    uint64
	}{
		{total: 0, liquidity: 0, treasury: 0, bounty: 0},
		{total: 100, liquidity: 50, treasury: 30, bounty: 20},
		{total: 1000, liquidity: 500, treasury: 300, bounty: 200},
		// Remainders land in the bounty pool.
		{total: 1, liquidity: 0, treasury: 0, bounty: 1},
		{total: 7, liquidity: 3, treasury: 2, bounty: 2},
		{total: 999, liquidity: 499, treasury: 299, bounty: 201},
	}

	for _, tc := range cases {
		split := SplitFee(tc.total)
		assert.Equal(t, tc.total, split.TotalFee)
		assert.Equal(t, tc.liquidity, split.LiquidityStakers, "total %d", tc.total)
		assert.Equal(t, tc.treasury, split.Treasury, "total %d", tc.total)
		assert.Equal(t, tc.bounty, split.MevBounty, "total %d", tc.total)
	}
}

func TestSplitFee_PartsAlwaysSum(t *testing.T) {
	for total := uint64(0); total < 10_000; total++ {
		split := SplitFee(total)
		assert.Equal(t, total, split.LiquidityStakers+split.Treasury+split.MevBounty)
	}
}
