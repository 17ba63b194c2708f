package pnl

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lilyjjo/ammreplay/internal/ledger"
	"github.com/lilyjjo/ammreplay/internal/logging"
)

// fakeOps is a deterministic stand-in for a *chainops.Client: every
// simulated swap prices 1 base = 2 quote, decrease-liquidity returns
// fixed amounts, and fee collection returns configurable amounts.
type fakeOps struct {
	feeGrowthBase  *big.Int
	sqrtPrice      *big.Int
	tick           int32
	decreaseBase   *big.Int
	decreaseQuote  *big.Int
	collectBase    *big.Int
	collectQuote   *big.Int
	sellRate       int64
}

func (f *fakeOps) SimExactInputBaseToQuote(ctx context.Context, amountIn *big.Int) (*big.Int, error) {
	rate := f.sellRate
	if rate == 0 {
		rate = 2
	}
	return new(big.Int).Mul(amountIn, big.NewInt(rate)), nil
}

func (f *fakeOps) SimDecreaseLiquidity(ctx context.Context, tokenID, liquidity *big.Int) (*big.Int, *big.Int, error) {
	return f.decreaseBase, f.decreaseQuote, nil
}

func (f *fakeOps) CollectMaxFees(ctx context.Context, tokenID *big.Int) (*big.Int, *big.Int, error) {
	return f.collectBase, f.collectQuote, nil
}

func (f *fakeOps) FeeGrowthGlobalBase(ctx context.Context) (*big.Int, error) {
	return f.feeGrowthBase, nil
}

func (f *fakeOps) Slot0(ctx context.Context) (*big.Int, int32, error) {
	return f.sqrtPrice, f.tick, nil
}

func newFakeOps() *fakeOps {
	return &fakeOps{
		feeGrowthBase: big.NewInt(1),
		sqrtPrice:     big.NewInt(79228162514264337593543950336),
		tick:          0,
		decreaseBase:  big.NewInt(0),
		decreaseQuote: big.NewInt(0),
		collectBase:   big.NewInt(0),
		collectQuote:  big.NewInt(0),
	}
}

func TestOpenSegmentSkipsSwapWhenFeeGrowthIsZero(t *testing.T) {
	ops := newFakeOps()
	ops.feeGrowthBase = big.NewInt(0)
	e := New(ops, logging.Nop())

	seg, err := e.OpenSegment(context.Background(), 100, -60, 60, big.NewInt(1000), big.NewInt(500), big.NewInt(999))
	require.NoError(t, err)

	startQuote, _ := seg.ApproxStartQuote.Float64()
	assert.Equal(t, float64(500), startQuote, "fee-growth-zero guard must skip the simulated sell entirely")
}

func TestOpenSegmentConvertsBaseWhenFeeGrowthIsNonZero(t *testing.T) {
	ops := newFakeOps()
	e := New(ops, logging.Nop())

	seg, err := e.OpenSegment(context.Background(), 100, -60, 60, big.NewInt(1000), big.NewInt(500), big.NewInt(999))
	require.NoError(t, err)

	// sellRate defaults to 2: 1000 base -> 2000 quote, plus 500 quote = 2500
	startQuote, _ := seg.ApproxStartQuote.Float64()
	assert.Equal(t, float64(2500), startQuote)
}

func TestCloseSegmentCaseAFullDecrease(t *testing.T) {
	ops := newFakeOps()
	ops.collectBase = big.NewInt(10)
	ops.collectQuote = big.NewInt(20)
	e := New(ops, logging.Nop())

	seg := &ledger.Segment{
		LiquidityIn:      big.NewInt(1000),
		BaseAmountIn:     big.NewInt(1000),
		QuoteAmountIn:    big.NewInt(500),
		ApproxStartQuote: big.NewFloat(2500),
	}
	decreaseAmounts := &DecreaseLiquidityResult{BaseOut: big.NewInt(800), QuoteOut: big.NewInt(300)}

	err := e.CloseSegment(context.Background(), seg, big.NewInt(1), 200, decreaseAmounts, big.NewInt(1000))
	require.NoError(t, err)

	assert.True(t, seg.Closed)
	assert.Equal(t, int64(800), seg.BaseAmountOut.Int64())
	assert.Equal(t, int64(300), seg.QuoteAmountOut.Int64())
	assert.Equal(t, int64(10), seg.FeesEarnedBase.Int64())
	assert.Equal(t, int64(20), seg.FeesEarnedQuote.Int64())
	// net quote gain = (300 - 500) + 20 = -180
	assert.Equal(t, int64(-180), seg.NetGainQuote.Int64())
}

func TestCloseSegmentCaseCNoDecreaseEvent(t *testing.T) {
	ops := newFakeOps()
	ops.decreaseBase = big.NewInt(1000)
	ops.decreaseQuote = big.NewInt(500)
	e := New(ops, logging.Nop())

	seg := &ledger.Segment{
		LiquidityIn:      big.NewInt(1000),
		BaseAmountIn:     big.NewInt(1000),
		QuoteAmountIn:    big.NewInt(500),
		ApproxStartQuote: big.NewFloat(2500),
	}

	err := e.CloseSegment(context.Background(), seg, big.NewInt(1), 200, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, int64(1000), seg.BaseAmountOut.Int64())
	assert.Equal(t, int64(500), seg.QuoteAmountOut.Int64())
}

func TestCollectPostDecreaseFullCloseReturnsTerminalSegment(t *testing.T) {
	ops := newFakeOps()
	e := New(ops, logging.Nop())

	current := &ledger.Segment{
		TickLower:        -60,
		TickUpper:        60,
		LiquidityIn:      big.NewInt(1000),
		BaseAmountIn:     big.NewInt(1000),
		QuoteAmountIn:    big.NewInt(500),
		ApproxStartQuote: big.NewFloat(2500),
	}

	next, err := e.CollectPostDecrease(context.Background(), current, big.NewInt(1), 200, big.NewInt(900), big.NewInt(400), big.NewInt(1000))
	require.NoError(t, err)
	assert.True(t, current.Closed)
	assert.Equal(t, ledger.ActionClosePosition, next.Action)
	assert.Equal(t, int64(0), next.LiquidityIn.Int64())
}

func TestCollectPostDecreasePartialOpensResidualSegment(t *testing.T) {
	ops := newFakeOps()
	e := New(ops, logging.Nop())

	current := &ledger.Segment{
		TickLower:        -60,
		TickUpper:        60,
		LiquidityIn:      big.NewInt(1000),
		BaseAmountIn:     big.NewInt(1000),
		QuoteAmountIn:    big.NewInt(500),
		ApproxStartQuote: big.NewFloat(2500),
	}

	next, err := e.CollectPostDecrease(context.Background(), current, big.NewInt(1), 200, big.NewInt(400), big.NewInt(200), big.NewInt(400))
	require.NoError(t, err)
	assert.True(t, current.Closed)
	assert.Equal(t, ledger.ActionDecreaseLiquidity, next.Action)
	assert.Equal(t, int64(600), next.LiquidityIn.Int64())
	assert.Equal(t, int64(600), next.BaseAmountIn.Int64())
	assert.Equal(t, int64(300), next.QuoteAmountIn.Int64())
}

func TestCollectPostIncreaseOpensSummedSegment(t *testing.T) {
	ops := newFakeOps()
	e := New(ops, logging.Nop())

	current := &ledger.Segment{
		TickLower:        -60,
		TickUpper:        60,
		LiquidityIn:      big.NewInt(1000),
		BaseAmountIn:     big.NewInt(1000),
		QuoteAmountIn:    big.NewInt(500),
		ApproxStartQuote: big.NewFloat(2500),
	}

	next, err := e.CollectPostIncrease(context.Background(), current, big.NewInt(1), 200, big.NewInt(200), big.NewInt(100), big.NewInt(150))
	require.NoError(t, err)
	assert.True(t, current.Closed)
	assert.Equal(t, ledger.ActionIncreaseLiquidity, next.Action)
	assert.Equal(t, int64(1150), next.LiquidityIn.Int64())
	assert.Equal(t, int64(1200), next.BaseAmountIn.Int64())
	assert.Equal(t, int64(600), next.QuoteAmountIn.Int64())
}
