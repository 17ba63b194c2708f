// Package pnl evaluates the profit-and-loss of a position segment: it
// collects accrued fees, determines what remains of the segment's
// liquidity, and approximates the segment's starting/ending value in the
// quote currency by simulating a sell of the base-currency side. This is a
// direct translation of this repository's grounding original's fee
// collection and position close-out routines into the pool/position-manager
// operation primitives this replay system exposes.
package pnl

import (
	"context"
	"math/big"

	"github.com/lilyjjo/ammreplay/internal/errs"
	"github.com/lilyjjo/ammreplay/internal/ledger"
	"github.com/lilyjjo/ammreplay/internal/logging"
)

// chainOps is the slice of *chainops.Client that the evaluator needs. It is
// declared here rather than imported as a concrete type so pnl's behavior
// can be exercised without a live fork connection.
type chainOps interface {
	SimExactInputBaseToQuote(ctx context.Context, amountIn *big.Int) (*big.Int, error)
	SimDecreaseLiquidity(ctx context.Context, tokenID, liquidity *big.Int) (base, quote *big.Int, err error)
	CollectMaxFees(ctx context.Context, tokenID *big.Int) (base, quote *big.Int, err error)
	FeeGrowthGlobalBase(ctx context.Context) (*big.Int, error)
	Slot0(ctx context.Context) (sqrtPriceX96 *big.Int, tick int32, err error)
}

// Evaluator wires the pool/position-manager operation primitives together to
// price and close out position segments.
type Evaluator struct {
	ops chainOps
	log logging.Logger
}

// New builds an Evaluator over ops.
func New(ops chainOps, log logging.Logger) *Evaluator {
	return &Evaluator{ops: ops, log: log}
}

// SimSellToQuote simulates selling baseAmount of the base token into the
// quote currency via a read-only exact-input-single call. Zero input
// short-circuits to zero, matching the grounding original (a zero-amount
// swap both wastes an RPC round trip and is undefined for some routers).
func (e *Evaluator) SimSellToQuote(ctx context.Context, baseAmount *big.Int, swapAccount interface{ Hex() string }) (*big.Int, error) {
	if baseAmount == nil || baseAmount.Sign() == 0 {
		return big.NewInt(0), nil
	}
	return e.ops.SimExactInputBaseToQuote(ctx, baseAmount)
}

// DecreaseLiquidityResult is the (baseOut, quoteOut) pair a simulated or real
// decrease-liquidity call produced, already reoriented to base/quote from
// whichever side is token0/token1 on-chain.
type DecreaseLiquidityResult struct {
	BaseOut  *big.Int
	QuoteOut *big.Int
}

// SimDecreaseLiquidity simulates fully draining `liquidity` worth of the
// position via a read-only decreaseLiquidity call.
func (e *Evaluator) SimDecreaseLiquidity(ctx context.Context, tokenID *big.Int, liquidity *big.Int) (DecreaseLiquidityResult, error) {
	base, quote, err := e.ops.SimDecreaseLiquidity(ctx, tokenID, liquidity)
	if err != nil {
		return DecreaseLiquidityResult{}, err
	}
	return DecreaseLiquidityResult{BaseOut: base, QuoteOut: quote}, nil
}

// CollectMaxFees drains the position's entire accrued fee balance and
// returns the (base, quote) amounts collected, retrying up to the
// primitive's bounded attempt budget.
func (e *Evaluator) CollectMaxFees(ctx context.Context, tokenID *big.Int) (baseFees, quoteFees *big.Int, err error) {
	return e.ops.CollectMaxFees(ctx, tokenID)
}

// OpenSegment builds the opening PositionSegment for a fresh mint, applying
// the fee-growth-zero starting guard: when the pool's base-side fee-growth
// global is zero (the very first mint against a freshly initialized pool),
// SimSellToQuote is skipped and treated as zero, since the pool has no
// counter-liquidity yet and the simulated swap would diverge. The guard is
// checked on the base-token side only, preserved exactly as the grounding
// original specifies it rather than symmetrized for the quote-is-token0 case.
func (e *Evaluator) OpenSegment(ctx context.Context, block uint64, tickLower, tickUpper int32, baseIn, quoteIn, liquidityIn *big.Int) (*ledger.Segment, error) {
	feeGrowthBase, err := e.ops.FeeGrowthGlobalBase(ctx)
	if err != nil {
		return nil, err
	}

	var tokenConverted *big.Int
	if baseIn.Sign() > 0 && feeGrowthBase.Sign() > 0 {
		tokenConverted, err = e.ops.SimExactInputBaseToQuote(ctx, baseIn)
		if err != nil {
			return nil, err
		}
	} else {
		tokenConverted = big.NewInt(0)
	}

	sqrtPrice, tick, err := e.ops.Slot0(ctx)
	if err != nil {
		return nil, err
	}

	approxStart := new(big.Float).Add(
		new(big.Float).SetInt(tokenConverted),
		new(big.Float).SetInt(quoteIn),
	)

	return &ledger.Segment{
		Action:           ledger.ActionOpen,
		TickLower:        tickLower,
		TickUpper:        tickUpper,
		OpenBlock:        block,
		BaseAmountIn:     baseIn,
		QuoteAmountIn:    quoteIn,
		SqrtPriceInX96:   sqrtPrice,
		TickIn:           tick,
		LiquidityIn:      liquidityIn,
		ApproxStartQuote: approxStart,
	}, nil
}

// CloseSegment closes seg in place: collects fees, reads the closing price,
// determines remaining base/quote per the three-case rule described in the
// grounding original, and computes gains. decreaseAmounts and
// decreaseLiquidity are nil for case C
// (no triggering decrease — end-of-stream finalization or a pure PnL
// snapshot on increase).
func (e *Evaluator) CloseSegment(ctx context.Context, seg *ledger.Segment, tokenID *big.Int, block uint64, decreaseAmounts *DecreaseLiquidityResult, decreaseLiquidity *big.Int) error {
	seg.Closed = true
	seg.CloseBlock = block
	e.log.Debug().Uint64(logging.FieldBlock, block).Str(logging.FieldTokenID, tokenID.String()).Msg("closing position segment")

	baseFees, quoteFees, err := e.CollectMaxFees(ctx, tokenID)
	if err != nil {
		return err
	}
	seg.FeesEarnedBase = baseFees
	seg.FeesEarnedQuote = quoteFees

	sqrtPrice, tick, err := e.ops.Slot0(ctx)
	if err != nil {
		return err
	}
	seg.SqrtPriceOutX96 = sqrtPrice
	seg.TickOut = tick

	var baseOut, quoteOut *big.Int
	switch {
	case decreaseAmounts != nil && decreaseLiquidity != nil && decreaseLiquidity.Cmp(seg.LiquidityIn) == 0:
		// case A: full close via the recorded decrease event
		baseOut = decreaseAmounts.BaseOut
		quoteOut = decreaseAmounts.QuoteOut
	case decreaseAmounts != nil && decreaseLiquidity != nil:
		// case B: partial decrease — simulate closing the residual liquidity
		residual := new(big.Int).Sub(seg.LiquidityIn, decreaseLiquidity)
		result, err := e.SimDecreaseLiquidity(ctx, tokenID, residual)
		if err != nil {
			return err
		}
		baseOut = new(big.Int).Add(result.BaseOut, decreaseAmounts.BaseOut)
		quoteOut = new(big.Int).Add(result.QuoteOut, decreaseAmounts.QuoteOut)
	default:
		// case C: no decrease event — simulate a full close for PnL accounting
		result, err := e.SimDecreaseLiquidity(ctx, tokenID, seg.LiquidityIn)
		if err != nil {
			return err
		}
		baseOut = result.BaseOut
		quoteOut = result.QuoteOut
	}
	seg.BaseAmountOut = baseOut
	seg.QuoteAmountOut = quoteOut

	baseToSell := new(big.Int).Add(baseOut, baseFees)
	converted, err := e.SimSellToQuote(ctx, baseToSell, zeroAddr{})
	if err != nil {
		return err
	}

	approxEnd := new(big.Float).Add(
		new(big.Float).SetInt(converted),
		new(big.Float).Add(new(big.Float).SetInt(quoteOut), new(big.Float).SetInt(quoteFees)),
	)
	seg.ApproxEndQuote = approxEnd

	seg.NetGainQuote = new(big.Int).Add(new(big.Int).Sub(quoteOut, seg.QuoteAmountIn), quoteFees)
	seg.NetGainBase = new(big.Int).Add(new(big.Int).Sub(baseOut, seg.BaseAmountIn), baseFees)
	if seg.ApproxStartQuote == nil {
		seg.ApproxStartQuote = big.NewFloat(0)
	}
	seg.NetPnLQuote = new(big.Float).Sub(approxEnd, seg.ApproxStartQuote)
	return nil
}

type zeroAddr struct{}

func (zeroAddr) Hex() string { return "0x0" }

// CollectPostIncrease closes the current segment (case C, no decrease) and
// opens a new one summing the increase amounts onto the prior starting
// values, following the post-increase-liquidity transition in the grounding
// original.
func (e *Evaluator) CollectPostIncrease(ctx context.Context, current *ledger.Segment, tokenID *big.Int, block uint64, increaseBase, increaseQuote, increaseLiquidity *big.Int) (*ledger.Segment, error) {
	if err := e.CloseSegment(ctx, current, tokenID, block, nil, nil); err != nil {
		return nil, err
	}

	baseStart := new(big.Int).Add(current.BaseAmountIn, increaseBase)
	quoteStart := new(big.Int).Add(current.QuoteAmountIn, increaseQuote)
	converted, err := e.SimSellToQuote(ctx, baseStart, zeroAddr{})
	if err != nil {
		return nil, err
	}
	startingQuote := new(big.Float).Add(new(big.Float).SetInt(converted), new(big.Float).SetInt(quoteStart))

	return &ledger.Segment{
		Action:           ledger.ActionIncreaseLiquidity,
		TickLower:        current.TickLower,
		TickUpper:        current.TickUpper,
		OpenBlock:        block,
		BaseAmountIn:     baseStart,
		QuoteAmountIn:    quoteStart,
		SqrtPriceInX96:   current.SqrtPriceOutX96,
		TickIn:           current.TickOut,
		LiquidityIn:      new(big.Int).Add(current.LiquidityIn, increaseLiquidity),
		ApproxStartQuote: startingQuote,
	}, nil
}

// CollectPostDecrease closes the current segment against the recorded
// decrease event and either finalizes a terminal, zero-valued ClosePosition
// segment (the decrease fully drained the position) or opens a
// DecreaseLiquidity segment carrying the residual liquidity and the prior
// starting amounts minus the decrease event's base/quote amounts.
func (e *Evaluator) CollectPostDecrease(ctx context.Context, current *ledger.Segment, tokenID *big.Int, block uint64, decreaseBase, decreaseQuote, decreaseLiquidity *big.Int) (*ledger.Segment, error) {
	amounts := DecreaseLiquidityResult{BaseOut: decreaseBase, QuoteOut: decreaseQuote}
	if err := e.CloseSegment(ctx, current, tokenID, block, &amounts, decreaseLiquidity); err != nil {
		return nil, err
	}

	if decreaseLiquidity.Cmp(current.LiquidityIn) == 0 {
		return &ledger.Segment{
			Action:           ledger.ActionClosePosition,
			TickLower:        current.TickLower,
			TickUpper:        current.TickUpper,
			Closed:           true,
			OpenBlock:        block,
			BaseAmountIn:     big.NewInt(0),
			QuoteAmountIn:    big.NewInt(0),
			LiquidityIn:      big.NewInt(0),
			ApproxStartQuote: big.NewFloat(0),
		}, nil
	}

	baseStart := new(big.Int).Sub(current.BaseAmountIn, decreaseBase)
	quoteStart := new(big.Int).Sub(current.QuoteAmountIn, decreaseQuote)
	if baseStart.Sign() < 0 || quoteStart.Sign() < 0 {
		return nil, errs.New(errs.LedgerInconsistency, "decrease amounts exceed segment starting amounts for token id %s", tokenID.String())
	}
	converted, err := e.SimSellToQuote(ctx, baseStart, zeroAddr{})
	if err != nil {
		return nil, err
	}
	startingQuote := new(big.Float).Add(new(big.Float).SetInt(converted), new(big.Float).SetInt(quoteStart))

	return &ledger.Segment{
		Action:           ledger.ActionDecreaseLiquidity,
		TickLower:        current.TickLower,
		TickUpper:        current.TickUpper,
		OpenBlock:        block,
		BaseAmountIn:     baseStart,
		QuoteAmountIn:    quoteStart,
		SqrtPriceInX96:   current.SqrtPriceOutX96,
		TickIn:           current.TickOut,
		LiquidityIn:      new(big.Int).Sub(current.LiquidityIn, decreaseLiquidity),
		ApproxStartQuote: startingQuote,
	}, nil
}

// CloseOutFinal closes a still-open segment at end-of-stream (case C), with
// no following action.
func (e *Evaluator) CloseOutFinal(ctx context.Context, seg *ledger.Segment, tokenID *big.Int, block uint64) error {
	return e.CloseSegment(ctx, seg, tokenID, block, nil, nil)
}
