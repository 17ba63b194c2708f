// Package util holds concentrated-liquidity AMM math shared by the chain-interaction
// layers: tick/sqrt-price conversion and the liquidity/amount relationships used to
// cross-check and estimate position sizing.
package util

import (
	"fmt"
	"math/big"
)

// q96 is 2^96, the fixed-point scale Uniswap-v3-style pools use for sqrtPriceX96.
var q96 = new(big.Int).Lsh(big.NewInt(1), 96)

const sqrtPricePrecisionBits = 256

// TickToSqrtPriceX96 computes the Q96 fixed-point sqrt price for a given tick:
// sqrtPriceX96 = sqrt(1.0001^tick) * 2^96.
func TickToSqrtPriceX96(tick int) *big.Int {
	base := new(big.Float).SetPrec(sqrtPricePrecisionBits).SetFloat64(1.0001)
	price := new(big.Float).SetPrec(sqrtPricePrecisionBits).SetInt64(1)

	exp := tick
	neg := exp < 0
	if neg {
		exp = -exp
	}
	b := new(big.Float).SetPrec(sqrtPricePrecisionBits).Copy(base)
	for exp > 0 {
		if exp&1 == 1 {
			price.Mul(price, b)
		}
		b.Mul(b, b)
		exp >>= 1
	}
	if neg {
		one := new(big.Float).SetPrec(sqrtPricePrecisionBits).SetInt64(1)
		price.Quo(one, price)
	}

	sqrtPrice := sqrtFloat(price)
	scale := new(big.Float).SetPrec(sqrtPricePrecisionBits).SetInt(q96)
	sqrtPrice.Mul(sqrtPrice, scale)

	result, _ := sqrtPrice.Int(nil)
	return result
}

// sqrtFloat computes a high-precision square root via Newton's method.
func sqrtFloat(x *big.Float) *big.Float {
	if x.Sign() == 0 {
		return new(big.Float).SetPrec(sqrtPricePrecisionBits)
	}
	z := new(big.Float).SetPrec(sqrtPricePrecisionBits).Copy(x)
	half := new(big.Float).SetPrec(sqrtPricePrecisionBits).SetFloat64(0.5)
	for i := 0; i < 64; i++ {
		xOverZ := new(big.Float).SetPrec(sqrtPricePrecisionBits).Quo(x, z)
		z.Add(z, xOverZ)
		z.Mul(z, half)
	}
	return z
}

// SqrtPriceToPrice converts a Q96 sqrt price into the underlying price ratio
// (token1 per token0) as a big.Float.
func SqrtPriceToPrice(sqrtPriceX96 *big.Int) *big.Float {
	sqrtPrice := new(big.Float).SetPrec(sqrtPricePrecisionBits).SetInt(sqrtPriceX96)
	scale := new(big.Float).SetPrec(sqrtPricePrecisionBits).SetInt(q96)
	ratio := new(big.Float).SetPrec(sqrtPricePrecisionBits).Quo(sqrtPrice, scale)
	return new(big.Float).SetPrec(sqrtPricePrecisionBits).Mul(ratio, ratio)
}

func liquidityForAmount0(sqrtA, sqrtB, amount0 *big.Int) *big.Int {
	if sqrtA.Cmp(sqrtB) > 0 {
		sqrtA, sqrtB = sqrtB, sqrtA
	}
	intermediate := new(big.Int).Mul(sqrtA, sqrtB)
	intermediate.Div(intermediate, q96)
	numerator := new(big.Int).Mul(amount0, intermediate)
	denom := new(big.Int).Sub(sqrtB, sqrtA)
	if denom.Sign() == 0 {
		return big.NewInt(0)
	}
	return new(big.Int).Div(numerator, denom)
}

func liquidityForAmount1(sqrtA, sqrtB, amount1 *big.Int) *big.Int {
	if sqrtA.Cmp(sqrtB) > 0 {
		sqrtA, sqrtB = sqrtB, sqrtA
	}
	denom := new(big.Int).Sub(sqrtB, sqrtA)
	if denom.Sign() == 0 {
		return big.NewInt(0)
	}
	numerator := new(big.Int).Mul(amount1, q96)
	return new(big.Int).Div(numerator, denom)
}

func amountsForLiquidity(sqrtPrice, sqrtA, sqrtB, liquidity *big.Int) (amount0, amount1 *big.Int) {
	if sqrtA.Cmp(sqrtB) > 0 {
		sqrtA, sqrtB = sqrtB, sqrtA
	}
	switch {
	case sqrtPrice.Cmp(sqrtA) <= 0:
		amount0 = amount0ForLiquidity(sqrtA, sqrtB, liquidity)
		amount1 = big.NewInt(0)
	case sqrtPrice.Cmp(sqrtB) >= 0:
		amount0 = big.NewInt(0)
		amount1 = amount1ForLiquidity(sqrtA, sqrtB, liquidity)
	default:
		amount0 = amount0ForLiquidity(sqrtPrice, sqrtB, liquidity)
		amount1 = amount1ForLiquidity(sqrtA, sqrtPrice, liquidity)
	}
	return amount0, amount1
}

func amount0ForLiquidity(sqrtA, sqrtB, liquidity *big.Int) *big.Int {
	diff := new(big.Int).Sub(sqrtB, sqrtA)
	numerator := new(big.Int).Mul(liquidity, q96)
	numerator.Mul(numerator, diff)
	denom := new(big.Int).Mul(sqrtA, sqrtB)
	if denom.Sign() == 0 {
		return big.NewInt(0)
	}
	return new(big.Int).Div(numerator, denom)
}

func amount1ForLiquidity(sqrtA, sqrtB, liquidity *big.Int) *big.Int {
	diff := new(big.Int).Sub(sqrtB, sqrtA)
	numerator := new(big.Int).Mul(liquidity, diff)
	return new(big.Int).Div(numerator, q96)
}

// ComputeAmounts estimates the liquidity obtainable from up to amount0Max/amount1Max
// over [tickLower, tickUpper] at the given pool state, and the amounts it would
// actually consume.
func ComputeAmounts(sqrtPriceX96 *big.Int, tick, tickLower, tickUpper int, amount0Max, amount1Max *big.Int) (*big.Int, *big.Int, *big.Int) {
	sqrtA := TickToSqrtPriceX96(tickLower)
	sqrtB := TickToSqrtPriceX96(tickUpper)

	var liquidity *big.Int
	switch {
	case tick < tickLower:
		liquidity = liquidityForAmount0(sqrtA, sqrtB, amount0Max)
	case tick >= tickUpper:
		liquidity = liquidityForAmount1(sqrtA, sqrtB, amount1Max)
	default:
		l0 := liquidityForAmount0(sqrtPriceX96, sqrtB, amount0Max)
		l1 := liquidityForAmount1(sqrtA, sqrtPriceX96, amount1Max)
		if l0.Cmp(l1) < 0 {
			liquidity = l0
		} else {
			liquidity = l1
		}
	}

	amount0, amount1 := amountsForLiquidity(sqrtPriceX96, sqrtA, sqrtB, liquidity)
	return amount0, amount1, liquidity
}

// CalculateTokenAmountsFromLiquidity returns the token0/token1 amounts a given
// liquidity value represents at sqrtPriceX96 over [tickLower, tickUpper].
func CalculateTokenAmountsFromLiquidity(liquidity *big.Int, sqrtPriceX96 *big.Int, tickLower, tickUpper int32) (*big.Int, *big.Int, error) {
	if liquidity == nil || sqrtPriceX96 == nil {
		return nil, nil, fmt.Errorf("util: liquidity and sqrtPriceX96 must not be nil")
	}
	if tickLower >= tickUpper {
		return nil, nil, fmt.Errorf("util: tickLower %d must be < tickUpper %d", tickLower, tickUpper)
	}
	sqrtA := TickToSqrtPriceX96(int(tickLower))
	sqrtB := TickToSqrtPriceX96(int(tickUpper))
	amount0, amount1 := amountsForLiquidity(sqrtPriceX96, sqrtA, sqrtB, liquidity)
	return amount0, amount1, nil
}
