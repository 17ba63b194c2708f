// Package replay implements the single-pass lookahead-automaton driver that
// consumes an ordered SimulationEvent stream, fuses the protocol's
// multi-event primitives into position-lifecycle actions, and dispatches
// each to the pool/position-manager operation primitives, the position
// ledger, and the PnL evaluator in turn.
package replay

import (
	"bytes"
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/lilyjjo/ammreplay/internal/bootstrap"
	"github.com/lilyjjo/ammreplay/internal/chainops"
	"github.com/lilyjjo/ammreplay/internal/errs"
	"github.com/lilyjjo/ammreplay/internal/event"
	"github.com/lilyjjo/ammreplay/internal/fork"
	"github.com/lilyjjo/ammreplay/internal/ledger"
	"github.com/lilyjjo/ammreplay/internal/logging"
	"github.com/lilyjjo/ammreplay/internal/pnl"
	ammutil "github.com/lilyjjo/ammreplay/pkg/util"
)

// Accounts names the three impersonated senders a replay run provisions:
// one to deploy the base-token surrogate and the pool, one to hold the
// surrogate's supply and send swaps, and one to hold minted positions.
type Accounts struct {
	Deployer common.Address
	Swap     common.Address
	Mint     common.Address
}

// Funding controls what Provision does for each account at pool bootstrap
// time, generalized from fork.ProvisionOptions for the three accounts this
// driver manages.
type Funding struct {
	// NativeAmount funds every account's gas balance.
	NativeAmount *big.Int
	// QuoteDeposit wraps this much native asset into the quote token for
	// the swap account only, through fork.ProvisionOptions.QuoteDeposit.
	QuoteDeposit *big.Int
}

// Surrogate supplies the creation bytecode and ABI-encoded constructor
// arguments for the base-token stand-in. The constructor is expected to
// mint its entire initial supply to Accounts.Swap, since the driver funds
// the mint account by transferring slices of that supply rather than
// minting directly to it.
type Surrogate struct {
	Bytecode        []byte
	ConstructorArgs []byte
}

// Contracts names the pool-independent contract addresses a replay run is
// configured against.
type Contracts struct {
	Factory         common.Address
	PositionManager common.Address
	Router          common.Address
	Quoter          common.Address
	QuoteToken      common.Address

	// ABIOverrides substitutes a configured ABI (e.g. loaded from a Hardhat
	// artifact) for any contract whose field is set; every other contract
	// falls back to the hardcoded internal/abiset fragment.
	ABIOverrides chainops.ABIOverrides
}

// Driver owns the ledger and per-pool operation clients for one replay run.
// It is built once per pool: the event stream it consumes is expected to
// carry exactly one PoolCreated event, matching the system's single-pool
// scope.
type Driver struct {
	session   *fork.Session
	contracts Contracts
	accounts  Accounts
	funding   Funding
	surrogate Surrogate
	log       logging.Logger

	ledger   *ledger.Ledger
	ops      *chainops.Client
	eval     *pnl.Evaluator
	pool     common.Address
	audit    auditSink
}

// auditSink is the subset of recorder.MySQLRecorder's behavior the driver
// depends on, kept as a local interface so tests can run without a
// database and so a nil recorder (the common case, when no audit section
// is configured) costs nothing beyond a nil check.
type auditSink interface {
	RecordAttempt(block, logIndex uint64, kind string, attempt int, succeeded bool, failureNote string)
	RecordSegment(seg *ledger.Segment)
}

// SetAuditSink wires a best-effort persistence sink into the driver. Passing
// nil (the default) disables auditing entirely.
func (d *Driver) SetAuditSink(sink auditSink) {
	d.audit = sink
}

func (d *Driver) recordAttempt(block, logIndex uint64, kind string, err error) {
	if d.audit == nil {
		return
	}
	failureNote := ""
	if err != nil {
		failureNote = err.Error()
	}
	d.audit.RecordAttempt(block, logIndex, kind, 1, err == nil, failureNote)
}

// New builds a Driver. bootstrapper.New's factory/deployer binding is
// constructed lazily in handlePoolCreated once the pool-independent
// addresses and accounts below are known.
func New(session *fork.Session, contracts Contracts, accounts Accounts, funding Funding, surrogate Surrogate, log logging.Logger) *Driver {
	return &Driver{
		session:   session,
		contracts: contracts,
		accounts:  accounts,
		funding:   funding,
		surrogate: surrogate,
		log:       log,
		ledger:    ledger.New(),
	}
}

// run carries the mutable cursor over one Run call's event slice; Driver
// itself stays reusable only in the sense that its ledger/ops/eval persist
// after Run returns, for callers that want to inspect them post-hoc.
type run struct {
	d      *Driver
	events []event.SimulationEvent
	pos    int
}

// Run consumes events in order, dispatching fused primitives to the
// operation/ledger/PnL layers, and returns every live-token-id's segment
// list once every still-open segment has been finalized at end-of-stream.
func (d *Driver) Run(ctx context.Context, events []event.SimulationEvent) (map[string][]*ledger.Segment, error) {
	if !event.Sorted(events) {
		return nil, errs.New(errs.OrderingViolation, "input event stream is not sorted by (block, log_index)")
	}
	r := &run{d: d, events: events}

	for r.pos < len(r.events) {
		cur := r.events[r.pos]
		switch cur.Payload.Type() {
		case event.TypePoolCreated:
			if err := r.handlePoolCreated(ctx); err != nil {
				return nil, err
			}
		case event.TypeInitialize:
			return nil, errs.New(errs.OrderingViolation, "Initialize at block %d log %d does not follow a PoolCreated", cur.Block, cur.LogIndex)
		case event.TypeMint:
			if err := r.handleMint(ctx); err != nil {
				return nil, err
			}
		case event.TypeBurn:
			if err := r.handleBurn(ctx); err != nil {
				return nil, err
			}
		case event.TypeSwap:
			if err := r.handleSwap(ctx); err != nil {
				return nil, err
			}
		case event.TypeIncreaseLiquidity:
			return nil, errs.New(errs.OrderingViolation, "IncreaseLiquidity at block %d log %d does not follow a Mint", cur.Block, cur.LogIndex)
		case event.TypeDecreaseLiquidity:
			return nil, errs.New(errs.OrderingViolation, "DecreaseLiquidity at block %d log %d does not follow a Burn", cur.Block, cur.LogIndex)
		case event.TypeCollectPool, event.TypeCollectNpm:
			r.pos++
		default:
			return nil, errs.New(errs.OrderingViolation, "unrecognized event type at block %d", cur.Block)
		}
	}

	if err := r.finalize(ctx); err != nil {
		return nil, err
	}
	return d.ledger.AllSegments(), nil
}

func (r *run) handlePoolCreated(ctx context.Context) error {
	d := r.d
	if d.ops != nil {
		return errs.New(errs.OrderingViolation, "a second PoolCreated event was encountered; one replay run handles exactly one pool")
	}

	created, err := event.AsPoolCreated(r.events[r.pos])
	if err != nil {
		return err
	}
	if r.pos+1 >= len(r.events) || r.events[r.pos+1].Payload.Type() != event.TypeInitialize {
		return errs.New(errs.OrderingViolation, "PoolCreated at block %d is not followed by Initialize", r.events[r.pos].Block)
	}
	init, err := event.AsInitialize(r.events[r.pos+1])
	if err != nil {
		return err
	}

	originalBase := created.Token0
	if created.Token0 == d.contracts.QuoteToken {
		originalBase = created.Token1
	} else if created.Token1 != d.contracts.QuoteToken {
		return errs.New(errs.InputIntegrity, "PoolCreated tokens (%s, %s) do not include the configured quote token %s", created.Token0.Hex(), created.Token1.Hex(), d.contracts.QuoteToken.Hex())
	}
	baseMustSortBefore := bytes.Compare(originalBase.Bytes(), d.contracts.QuoteToken.Bytes()) < 0

	if err := d.provisionAccounts(ctx); err != nil {
		return err
	}

	bootstrapper := bootstrap.New(d.session, d.contracts.Factory, d.accounts.Deployer, d.log)
	baseToken, err := bootstrapper.DeployUntilSorted(ctx, d.contracts.QuoteToken, baseMustSortBefore, d.surrogate.Bytecode, d.surrogate.ConstructorArgs)
	if err != nil {
		return err
	}
	if err := d.session.ApproveMax(ctx, d.accounts.Mint, baseToken, d.contracts.PositionManager); err != nil {
		return err
	}
	if err := d.session.ApproveMax(ctx, d.accounts.Swap, baseToken, d.contracts.Router); err != nil {
		return err
	}

	poolAddr, err := bootstrapper.CreatePool(ctx, baseToken, d.contracts.QuoteToken, created.Fee)
	if err != nil {
		return err
	}
	if err := bootstrapper.InitializePool(ctx, poolAddr, init.SqrtPriceX96); err != nil {
		return err
	}

	baseIsToken0 := bytes.Compare(baseToken.Bytes(), d.contracts.QuoteToken.Bytes()) < 0
	d.pool = poolAddr
	d.ops = chainops.NewClient(d.session.Eth, poolAddr, d.contracts.PositionManager, d.contracts.Router, d.contracts.Quoter,
		baseToken, d.contracts.QuoteToken, d.accounts.Mint, d.accounts.Swap, baseIsToken0, created.Fee, created.TickSpacing, d.contracts.ABIOverrides, d.log)
	d.eval = pnl.New(d.ops, d.log)

	d.log.Info().Str("pool", poolAddr.Hex()).Str(logging.FieldOp, "bootstrap").Msg("pool deployed and initialized")
	r.pos += 2
	return nil
}

// provisionAccounts funds and impersonates the deployer, swap, and mint
// accounts once the driver knows the quote token (a pool-independent
// address the caller already configured). Base-token approvals for the
// mint and swap accounts are granted separately in handlePoolCreated once
// the surrogate base token is deployed, since its address isn't known here.
func (d *Driver) provisionAccounts(ctx context.Context) error {
	if err := d.session.Provision(ctx, d.accounts.Deployer, d.funding.NativeAmount, fork.ProvisionOptions{}); err != nil {
		return err
	}
	if err := d.session.Provision(ctx, d.accounts.Mint, d.funding.NativeAmount, fork.ProvisionOptions{
		Approvals: []fork.Approval{{Token: d.contracts.QuoteToken, Spender: d.contracts.PositionManager}},
	}); err != nil {
		return err
	}
	if err := d.session.Provision(ctx, d.accounts.Swap, d.funding.NativeAmount, fork.ProvisionOptions{
		QuoteDeposit: d.funding.QuoteDeposit,
		Approvals:    []fork.Approval{{Token: d.contracts.QuoteToken, Spender: d.contracts.Router}},
	}); err != nil {
		return err
	}
	return nil
}

func (r *run) handleMint(ctx context.Context) error {
	d := r.d
	mint, err := event.AsMint(r.events[r.pos])
	if err != nil {
		return err
	}
	if r.pos+1 >= len(r.events) || r.events[r.pos+1].Payload.Type() != event.TypeIncreaseLiquidity {
		return errs.New(errs.OrderingViolation, "Mint at block %d is not followed by IncreaseLiquidity", r.events[r.pos].Block)
	}
	increase, err := event.AsIncreaseLiquidity(r.events[r.pos+1])
	if err != nil {
		return err
	}
	block := r.events[r.pos].Block

	baseDesired, quoteDesired := d.ops.ReorderToBaseQuote(increase.Amount0Desired, increase.Amount1Desired)
	if err := d.ops.TransferBase(ctx, d.accounts.Swap, d.accounts.Mint, baseDesired); err != nil {
		return err
	}

	if live, lookupErr := d.ledger.LiveTokenID(increase.RecordedTokenID); lookupErr == nil {
		if err := r.handleIncreaseOnExisting(ctx, live, block, increase, baseDesired, quoteDesired); err != nil {
			return err
		}
		r.pos += 2
		return nil
	}

	result, err := d.ops.Mint(ctx, mint.TickLower, mint.TickUpper, baseDesired, quoteDesired)
	d.recordAttempt(block, r.events[r.pos].LogIndex, "mint", err)
	if err != nil {
		return err
	}
	if err := verifyMint(mint, increase, result); err != nil {
		return err
	}
	recordedBase, recordedQuote := d.ops.ReorderToBaseQuote(mint.Amount0, mint.Amount1)
	if result.Base.Cmp(recordedBase) != 0 || result.Quote.Cmp(recordedQuote) != 0 {
		return errs.New(errs.ReplayMismatch, "mint token id %s produced (%s, %s), recorded (%s, %s)", result.TokenID.String(), result.Base.String(), result.Quote.String(), recordedBase.String(), recordedQuote.String())
	}
	d.sanityCheckAmounts(ctx, mint.TickLower, mint.TickUpper, result.Liquidity, result.Base, result.Quote)
	if err := d.ledger.RegisterTokenID(increase.RecordedTokenID, result.TokenID); err != nil {
		return err
	}

	seg, err := d.eval.OpenSegment(ctx, block, mint.TickLower, mint.TickUpper, result.Base, result.Quote, result.Liquidity)
	if err != nil {
		return err
	}
	seg.RecordedTokenID = new(big.Int).Set(increase.RecordedTokenID)
	if err := d.ledger.AppendSegment(result.TokenID, seg); err != nil {
		return err
	}
	if d.audit != nil {
		d.audit.RecordSegment(seg)
	}

	d.log.Info().Uint64(logging.FieldBlock, block).Str(logging.FieldTokenID, result.TokenID.String()).Str(logging.FieldOp, "mint").Msg("opened position")
	r.pos += 2
	return nil
}

func (r *run) handleIncreaseOnExisting(ctx context.Context, live *big.Int, block uint64, increase event.IncreaseLiquidity, baseDesired, quoteDesired *big.Int) error {
	d := r.d
	current, err := d.ledger.ActiveOpenSegment(live)
	if err != nil {
		return err
	}

	next, err := d.eval.CollectPostIncrease(ctx, current, live, block, baseDesired, quoteDesired, increase.Liquidity)
	if err != nil {
		return err
	}

	liquidity, base, quote, err := d.ops.IncreaseLiquidity(ctx, live, baseDesired, quoteDesired)
	d.recordAttempt(block, 0, "increase", err)
	if err != nil {
		return err
	}
	if liquidity.Cmp(increase.Liquidity) != 0 {
		return errs.New(errs.ReplayMismatch, "increaseLiquidity for token id %s produced liquidity %s, recorded %s", live.String(), liquidity.String(), increase.Liquidity.String())
	}
	recordedBase, recordedQuote := d.ops.ReorderToBaseQuote(increase.Amount0, increase.Amount1)
	if base.Cmp(recordedBase) != 0 || quote.Cmp(recordedQuote) != 0 {
		return errs.New(errs.ReplayMismatch, "increaseLiquidity for token id %s produced (%s, %s), recorded (%s, %s)", live.String(), base.String(), quote.String(), recordedBase.String(), recordedQuote.String())
	}
	d.sanityCheckAmounts(ctx, current.TickLower, current.TickUpper, liquidity, base, quote)

	next.RecordedTokenID = new(big.Int).Set(increase.RecordedTokenID)
	if err := d.ledger.AppendSegment(live, next); err != nil {
		return err
	}
	if d.audit != nil {
		d.audit.RecordSegment(next)
	}
	d.log.Info().Uint64(logging.FieldBlock, block).Str(logging.FieldTokenID, live.String()).Str(logging.FieldOp, "increaseLiquidity").Msg("increased position")
	return nil
}

// sanityCheckAmounts cross-checks the base/quote amounts a mint or increase
// actually consumed against the pure AMM math for the same liquidity, price,
// and tick range, logging a warning on material divergence. It never fails
// the replay: TickToSqrtPriceX96's Newton's-method approximation can drift
// slightly from the pool's exact integer math.
func (d *Driver) sanityCheckAmounts(ctx context.Context, tickLower, tickUpper int32, liquidity, base, quote *big.Int) {
	sqrtPrice, _, err := d.ops.Slot0(ctx)
	if err != nil {
		return
	}
	amount0, amount1, err := ammutil.CalculateTokenAmountsFromLiquidity(liquidity, sqrtPrice, tickLower, tickUpper)
	if err != nil {
		return
	}
	expectedBase, expectedQuote := d.ops.ReorderToBaseQuote(amount0, amount1)
	if !withinTolerance(base, expectedBase) || !withinTolerance(quote, expectedQuote) {
		d.log.Warn().
			Str("base", base.String()).Str("expected_base", expectedBase.String()).
			Str("quote", quote.String()).Str("expected_quote", expectedQuote.String()).
			Msg("replayed amounts diverge from AMM math estimate")
	}
}

// withinTolerance reports whether got is within roughly 1% of want, loose
// enough to absorb pkg/util's floating-point sqrt-price approximation.
func withinTolerance(got, want *big.Int) bool {
	if want.Sign() == 0 {
		return got.Sign() == 0
	}
	diff := new(big.Int).Sub(got, want)
	diff.Abs(diff)
	diff.Mul(diff, big.NewInt(100))
	threshold := new(big.Int).Abs(want)
	return diff.Cmp(threshold) <= 0
}

func verifyMint(mint event.Mint, increase event.IncreaseLiquidity, result *chainops.MintResult) error {
	if result.Liquidity.Cmp(mint.Amount) != 0 {
		return errs.New(errs.ReplayMismatch, "mint token id %s produced liquidity %s, recorded %s", result.TokenID.String(), result.Liquidity.String(), mint.Amount.String())
	}
	if increase.Liquidity.Cmp(mint.Amount) != 0 {
		return errs.New(errs.ReplayMismatch, "fused IncreaseLiquidity liquidity %s does not match Mint amount %s", increase.Liquidity.String(), mint.Amount.String())
	}
	return nil
}

func (r *run) handleBurn(ctx context.Context) error {
	d := r.d
	burn, err := event.AsBurn(r.events[r.pos])
	if err != nil {
		return err
	}
	block := r.events[r.pos].Block
	next := r.pos + 1

	if next < len(r.events) && r.events[next].Payload.Type() == event.TypeCollectPool {
		if cp, cpErr := event.AsCollectPool(r.events[next]); cpErr == nil && cp.Amount0.Sign() == 0 && cp.Amount1.Sign() == 0 {
			next++
		}
	}
	if next >= len(r.events) || r.events[next].Payload.Type() != event.TypeDecreaseLiquidity {
		return errs.New(errs.OrderingViolation, "Burn at block %d is not followed by DecreaseLiquidity", r.events[r.pos].Block)
	}
	decrease, err := event.AsDecreaseLiquidity(r.events[next])
	if err != nil {
		return err
	}

	live, err := d.ledger.LiveTokenID(decrease.RecordedTokenID)
	if err != nil {
		return err
	}
	current, err := d.ledger.ActiveOpenSegment(live)
	if err != nil {
		return err
	}

	base, quote, err := d.ops.DecreaseLiquidityNoRetry(ctx, live, decrease.Liquidity)
	d.recordAttempt(block, r.events[r.pos].LogIndex, "decrease", err)
	if err != nil {
		return err
	}
	recordedBase, recordedQuote := d.ops.ReorderToBaseQuote(decrease.Amount0, decrease.Amount1)
	if base.Cmp(recordedBase) != 0 || quote.Cmp(recordedQuote) != 0 {
		return errs.New(errs.ReplayMismatch, "decreaseLiquidity for token id %s produced (%s, %s), recorded (%s, %s)", live.String(), base.String(), quote.String(), recordedBase.String(), recordedQuote.String())
	}
	if decrease.Liquidity.Cmp(burn.Amount) != 0 {
		return errs.New(errs.ReplayMismatch, "fused DecreaseLiquidity liquidity %s does not match Burn amount %s", decrease.Liquidity.String(), burn.Amount.String())
	}

	followOn, err := d.eval.CollectPostDecrease(ctx, current, live, block, base, quote, decrease.Liquidity)
	if err != nil {
		return err
	}
	followOn.RecordedTokenID = new(big.Int).Set(decrease.RecordedTokenID)
	if err := d.ledger.AppendSegment(live, followOn); err != nil {
		return err
	}
	if d.audit != nil {
		d.audit.RecordSegment(followOn)
	}

	d.log.Info().Uint64(logging.FieldBlock, block).Str(logging.FieldTokenID, live.String()).Str(logging.FieldOp, "burn").Msg("closed or reduced position")
	r.pos = next + 1
	return nil
}

func (r *run) handleSwap(ctx context.Context) error {
	d := r.d
	swap, err := event.AsSwap(r.events[r.pos])
	if err != nil {
		return err
	}
	block := r.events[r.pos].Block

	amount0In := swap.Amount0.Sign() > 0
	var tokenIn, tokenOut common.Address
	var recordedIn, recordedOut *big.Int
	if amount0In {
		tokenIn, tokenOut = d.ops.Token0(), d.ops.Token1()
		recordedIn, recordedOut = swap.Amount0, new(big.Int).Neg(swap.Amount1)
	} else {
		tokenIn, tokenOut = d.ops.Token1(), d.ops.Token0()
		recordedIn, recordedOut = swap.Amount1, new(big.Int).Neg(swap.Amount0)
	}

	quoted, err := d.ops.Quote(ctx, tokenIn, tokenOut, recordedIn)
	if err != nil {
		return err
	}

	var gotOut, spentIn *big.Int
	if quoted.Cmp(recordedOut) == 0 {
		gotOut, err = d.ops.SwapExactInput(ctx, tokenIn, tokenOut, recordedIn)
		d.recordAttempt(block, r.events[r.pos].LogIndex, "swap_exact_in", err)
		if err != nil {
			return err
		}
		spentIn = recordedIn
	} else {
		spentIn, err = d.ops.SwapExactOutput(ctx, tokenIn, tokenOut, recordedOut, recordedIn)
		d.recordAttempt(block, r.events[r.pos].LogIndex, "swap_exact_out", err)
		if err != nil {
			return err
		}
		gotOut = recordedOut
	}

	if gotOut.Cmp(recordedOut) != 0 {
		return errs.New(errs.ReplayMismatch, "swap at block %d produced output %s, recorded %s", block, gotOut.String(), recordedOut.String())
	}
	if spentIn.Cmp(recordedIn) != 0 {
		return errs.New(errs.ReplayMismatch, "swap at block %d spent input %s, recorded %s", block, spentIn.String(), recordedIn.String())
	}

	sqrtPrice, tick, err := d.ops.Slot0(ctx)
	if err != nil {
		return err
	}
	if sqrtPrice.Cmp(swap.SqrtPriceX96) != 0 || tick != swap.Tick {
		return errs.New(errs.ReplayMismatch, "swap at block %d left pool at (sqrtPriceX96=%s, tick=%d), recorded (%s, %d)", block, sqrtPrice.String(), tick, swap.SqrtPriceX96.String(), swap.Tick)
	}

	liquidity, err := d.ops.Liquidity(ctx)
	if err != nil {
		return err
	}
	if swap.Liquidity != nil && liquidity.Cmp(swap.Liquidity) != 0 {
		return errs.New(errs.ReplayMismatch, "swap at block %d left pool at liquidity %s, recorded %s", block, liquidity.String(), swap.Liquidity.String())
	}

	d.log.Info().Uint64(logging.FieldBlock, block).Str(logging.FieldOp, "swap").Msg("replayed swap")
	r.pos++
	return nil
}

func (r *run) finalize(ctx context.Context) error {
	d := r.d
	if d.ops == nil {
		return nil
	}
	for _, live := range d.ledger.OpenLiveTokenIDs() {
		seg, err := d.ledger.ActiveOpenSegment(live)
		if err != nil {
			return err
		}
		if err := d.eval.CloseOutFinal(ctx, seg, live, seg.OpenBlock); err != nil {
			return err
		}
		if d.audit != nil {
			d.audit.RecordSegment(seg)
		}
	}
	return nil
}
