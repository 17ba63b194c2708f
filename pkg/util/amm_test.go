package util

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTickToSqrtPriceX96Monotonic(t *testing.T) {
	lower := TickToSqrtPriceX96(-252000)
	upper := TickToSqrtPriceX96(-250800)
	assert.Equal(t, -1, lower.Cmp(upper), "sqrt price must increase with tick")
}

func TestTickToSqrtPriceX96ZeroIsQ96(t *testing.T) {
	atZero := TickToSqrtPriceX96(0)
	q96 := new(big.Int).Lsh(big.NewInt(1), 96)
	diff := new(big.Int).Sub(atZero, q96)
	diff.Abs(diff)
	assert.Less(t, diff.Cmp(big.NewInt(1<<20)), 1, "tick 0 sqrt price should be within rounding of Q96")
}

func TestComputeAmounts(t *testing.T) {
	sqrtPriceX96, _ := big.NewInt(0).SetString("275467826341246019486853", 10)
	tick := -251400
	tickLower := -252000
	tickUpper := -250800
	amount0Max, _ := big.NewInt(0).SetString("99999309985252461722", 10)
	amount1Max, _ := big.NewInt(0).SetString("1208870000", 10)
	amount0, amount1, l := ComputeAmounts(sqrtPriceX96, tick, tickLower, tickUpper, amount0Max, amount1Max)

	assert.True(t, l.Sign() > 0, "liquidity should be > 0")
	assert.True(t, amount0.Sign() >= 0, "amount0 should be >= 0")
	assert.True(t, amount1.Sign() >= 0, "amount1 should be >= 0")
	assert.LessOrEqual(t, amount0.Cmp(amount0Max), 0, "amount0 should not exceed amount0Max")
	assert.LessOrEqual(t, amount1.Cmp(amount1Max), 0, "amount1 should not exceed amount1Max")
}

func TestCalculateTokenAmountsFromLiquidity(t *testing.T) {
	liquidity := big.NewInt(845179049218237)
	sqrtPriceX96, _ := big.NewInt(0).SetString("275467826341246019486853", 10)
	tickLower := -252000
	tickUpper := -240800
	amount0, amount1, err := CalculateTokenAmountsFromLiquidity(liquidity, sqrtPriceX96, int32(tickLower), int32(tickUpper))
	assert.NoError(t, err)
	assert.True(t, amount0.Sign() >= 0)
	assert.True(t, amount1.Sign() >= 0)
}

func TestCalculateTokenAmountsFromLiquidityRejectsBadRange(t *testing.T) {
	_, _, err := CalculateTokenAmountsFromLiquidity(big.NewInt(1), big.NewInt(1), 100, 100)
	assert.Error(t, err)
}
