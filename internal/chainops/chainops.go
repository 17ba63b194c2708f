// Package chainops implements the operation primitives that drive a forked
// pool and its position manager during replay: minting, increasing and
// decreasing liquidity, swapping, and draining fees. Each primitive follows
// the retry and verification shape this repository's grounding original
// uses for the same on-chain call.
package chainops

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/lilyjjo/ammreplay/internal/abiset"
	"github.com/lilyjjo/ammreplay/internal/errs"
	"github.com/lilyjjo/ammreplay/internal/logging"
	"github.com/lilyjjo/ammreplay/pkg/contractclient"
	cctypes "github.com/lilyjjo/ammreplay/pkg/types"
	"github.com/lilyjjo/ammreplay/pkg/txlistener"
)

// ABIOverrides lets a caller substitute a contract's ABI (e.g. loaded from a
// Hardhat artifact by a configured path) for the hardcoded fragment in
// internal/abiset. Any nil field falls back to the abiset default.
type ABIOverrides struct {
	Pool            *abi.ABI
	PositionManager *abi.ABI
	Router          *abi.ABI
	Quoter          *abi.ABI
}

func (o ABIOverrides) poolABI() abi.ABI {
	if o.Pool != nil {
		return *o.Pool
	}
	return abiset.Pool()
}

func (o ABIOverrides) positionManagerABI() abi.ABI {
	if o.PositionManager != nil {
		return *o.PositionManager
	}
	return abiset.PositionManager()
}

func (o ABIOverrides) routerABI() abi.ABI {
	if o.Router != nil {
		return *o.Router
	}
	return abiset.SwapRouter()
}

func (o ABIOverrides) quoterABI() abi.ABI {
	if o.Quoter != nil {
		return *o.Quoter
	}
	return abiset.Quoter()
}

// farFutureDeadline is used for every live, state-changing call so a replay
// run is never blocked by a position-manager deadline check.
var farFutureDeadline = big.NewInt(8737924142)

// maxUint128 is used to request a full fee drain from collect.
var maxUint128 = func() *big.Int {
	v := new(big.Int).Lsh(big.NewInt(1), 128)
	return v.Sub(v, big.NewInt(1))
}()

// maxRetries bounds the attempt budget for mint, increaseLiquidity, collect,
// and swap. Burn's paired decreaseLiquidity call never retries.
const maxRetries = 4

// Client drives the pool/position-manager/router/quoter contracts that make
// up one replayed pool. Pool, position-manager and quoter calls are made
// from account; router swaps are sent from swapAccount. Both are
// provisioned impersonated senders.
type Client struct {
	eth             *ethclient.Client
	pool            contractclient.ContractClient
	positionManager contractclient.ContractClient
	router          contractclient.ContractClient
	quoter          contractclient.ContractClient
	base            common.Address
	quote           common.Address
	baseIsToken0    bool
	fee             uint32
	tickSpacing     int32
	account         common.Address
	swapAccount     common.Address
	log             logging.Logger
	listener        txlistener.TxListener
}

// NewClient builds a Client. baseIsToken0 must reflect the pool's actual
// token0/token1 ordering, determined once by the bootstrapper at pool
// creation time. account sends every position-manager/pool call (mint,
// increaseLiquidity, decreaseLiquidity, collect); swapAccount sends router
// swaps, kept distinct because the replay driver pre-funds one account with
// the base-token surrogate's supply and transfers slices of it to the
// minting account as positions are opened. overrides substitutes a
// configured ABI for any contract whose field is non-nil; the rest fall back
// to the hardcoded internal/abiset fragments.
func NewClient(eth *ethclient.Client, pool, positionManager, router, quoter, base, quote, account, swapAccount common.Address, baseIsToken0 bool, fee uint32, tickSpacing int32, overrides ABIOverrides, log logging.Logger) *Client {
	return &Client{
		eth:             eth,
		pool:            contractclient.NewContractClient(eth, pool, overrides.poolABI()),
		positionManager: contractclient.NewContractClient(eth, positionManager, overrides.positionManagerABI()),
		router:          contractclient.NewContractClient(eth, router, overrides.routerABI()),
		quoter:          contractclient.NewContractClient(eth, quoter, overrides.quoterABI()),
		base:            base,
		quote:           quote,
		baseIsToken0:    baseIsToken0,
		fee:             fee,
		tickSpacing:     tickSpacing,
		account:         account,
		swapAccount:     swapAccount,
		log:             log,
		listener:        txlistener.NewTxListener(eth),
	}
}

// PoolAddress returns the pool address this client operates on.
func (c *Client) PoolAddress() common.Address { return c.pool.ContractAddress() }

// SwapAccount returns the account router swaps are sent from.
func (c *Client) SwapAccount() common.Address { return c.swapAccount }

// MintAccount returns the account position-manager calls are sent from.
func (c *Client) MintAccount() common.Address { return c.account }

// reorderToBaseQuote reorders a (amount0, amount1) pair into (base, quote).
func (c *Client) reorderToBaseQuote(amount0, amount1 *big.Int) (base, quote *big.Int) {
	if c.baseIsToken0 {
		return amount0, amount1
	}
	return amount1, amount0
}

// reorderToToken01 reorders a (base, quote) pair into (amount0, amount1).
func (c *Client) reorderToToken01(base, quote *big.Int) (amount0, amount1 *big.Int) {
	if c.baseIsToken0 {
		return base, quote
	}
	return quote, base
}

// ReorderToBaseQuote is the exported form of reorderToBaseQuote, used by
// callers outside this package to reorient a recorded (amount0, amount1)
// pair for comparison against a primitive's (base, quote) result.
func (c *Client) ReorderToBaseQuote(amount0, amount1 *big.Int) (base, quote *big.Int) {
	return c.reorderToBaseQuote(amount0, amount1)
}

// ReorderToToken01 is the exported form of reorderToToken01.
func (c *Client) ReorderToToken01(base, quote *big.Int) (amount0, amount1 *big.Int) {
	return c.reorderToToken01(base, quote)
}

// Token0 returns whichever of base/quote sorts as the pool's token0.
func (c *Client) Token0() common.Address { return c.token0() }

// Token1 returns whichever of base/quote sorts as the pool's token1.
func (c *Client) Token1() common.Address { return c.token1() }

// Slot0 returns the pool's current sqrtPriceX96 and tick.
func (c *Client) Slot0(ctx context.Context) (*big.Int, int32, error) {
	out, err := c.pool.Call(&c.account, "slot0")
	if err != nil {
		return nil, 0, errs.Wrap(errs.RpcFailure, err, "slot0")
	}
	sqrtPrice := out[0].(*big.Int)
	tick := out[1].(*big.Int)
	return sqrtPrice, int32(tick.Int64()), nil
}

// Liquidity returns the pool's currently active in-range liquidity.
func (c *Client) Liquidity(ctx context.Context) (*big.Int, error) {
	out, err := c.pool.Call(&c.account, "liquidity")
	if err != nil {
		return nil, errs.Wrap(errs.RpcFailure, err, "liquidity")
	}
	return out[0].(*big.Int), nil
}

// TransferBase moves amount of the base token from one impersonated account
// to another, used to fund the account a mint will be sent from.
func (c *Client) TransferBase(ctx context.Context, from, to common.Address, amount *big.Int) error {
	baseToken := contractclient.NewContractClient(c.eth, c.base, abiset.ERC20())
	hash, err := baseToken.Send(cctypes.Impersonated, nil, &from, nil, "transfer", to, amount)
	if err != nil {
		return errs.Wrap(errs.RpcFailure, err, "transfer base token from %s to %s", from.Hex(), to.Hex())
	}
	receipt, err := c.listener.WaitForTransactionContext(ctx, hash)
	if err != nil {
		return err
	}
	if !receipt.Success() {
		return errs.New(errs.RpcFailure, "base token transfer from %s to %s reverted", from.Hex(), to.Hex())
	}
	return nil
}

// FeeGrowthGlobalBase returns the base-side feeGrowthGlobalX128 value,
// resolving which underlying token0/token1 accessor is the base side.
func (c *Client) FeeGrowthGlobalBase(ctx context.Context) (*big.Int, error) {
	method := "feeGrowthGlobal1X128"
	if c.baseIsToken0 {
		method = "feeGrowthGlobal0X128"
	}
	out, err := c.pool.Call(&c.account, method)
	if err != nil {
		return nil, errs.Wrap(errs.RpcFailure, err, method)
	}
	return out[0].(*big.Int), nil
}

// SimExactInputBaseToQuote simulates selling amountIn of the base token for
// the quote token via the quoter, with no price limit.
func (c *Client) SimExactInputBaseToQuote(ctx context.Context, amountIn *big.Int) (*big.Int, error) {
	return c.Quote(ctx, c.base, c.quote, amountIn)
}

// Quote simulates an exact-input-single swap for an arbitrary (tokenIn,
// tokenOut) pair at the pool's fee tier, used both for fee-to-quote
// conversion and swap-direction disambiguation.
func (c *Client) Quote(ctx context.Context, tokenIn, tokenOut common.Address, amountIn *big.Int) (*big.Int, error) {
	out, err := c.quoter.Call(&c.account, "quoteExactInputSingle", tokenIn, tokenOut, amountIn, new(big.Int).SetUint64(uint64(c.fee)), big.NewInt(0))
	if err != nil {
		return nil, errs.Wrap(errs.RpcFailure, err, "quoteExactInputSingle")
	}
	return out[0].(*big.Int), nil
}

// decreaseLiquidityParams mirrors the position manager's
// DecreaseLiquidityParams tuple.
type decreaseLiquidityParams struct {
	TokenId    *big.Int
	Liquidity  *big.Int
	Amount0Min *big.Int
	Amount1Min *big.Int
	Deadline   *big.Int
}

// SimDecreaseLiquidity simulates draining `liquidity` worth of tokenID via a
// read-only decreaseLiquidity call, returning (base, quote) amounts.
func (c *Client) SimDecreaseLiquidity(ctx context.Context, tokenID, liquidity *big.Int) (*big.Int, *big.Int, error) {
	params := decreaseLiquidityParams{
		TokenId:    tokenID,
		Liquidity:  liquidity,
		Amount0Min: big.NewInt(0),
		Amount1Min: big.NewInt(0),
		Deadline:   maxDeadline(),
	}
	out, err := c.positionManager.Call(&c.account, "decreaseLiquidity", params)
	if err != nil {
		return nil, nil, errs.Wrap(errs.RpcFailure, err, "simulate decreaseLiquidity for token id %s", tokenID.String())
	}
	base, quote := c.reorderToBaseQuote(out[0].(*big.Int), out[1].(*big.Int))
	return base, quote, nil
}

// collectParams mirrors the position manager's CollectParams tuple.
type collectParams struct {
	TokenId    *big.Int
	Recipient  common.Address
	Amount0Max *big.Int
	Amount1Max *big.Int
}

// CollectMaxFees drains tokenID's entire accrued fee balance with a
// uint128.Max request on both sides, retrying up to maxRetries on send
// failure or a reverted receipt.
func (c *Client) CollectMaxFees(ctx context.Context, tokenID *big.Int) (*big.Int, *big.Int, error) {
	params := collectParams{
		TokenId:    tokenID,
		Recipient:  c.account,
		Amount0Max: maxUint128,
		Amount1Max: maxUint128,
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		hash, err := c.positionManager.Send(cctypes.Impersonated, nil, &c.account, nil, "collect", params)
		if err != nil {
			lastErr = err
			continue
		}
		receipt, err := c.listener.WaitForTransactionContext(ctx, hash)
		if err != nil {
			lastErr = err
			continue
		}
		if !receipt.Success() {
			lastErr = fmt.Errorf("collect reverted for token id %s", tokenID.String())
			continue
		}
		amount0, amount1, err := decodeCollectAmounts(receipt, tokenID)
		if err != nil {
			lastErr = err
			continue
		}
		base, quote := c.reorderToBaseQuote(amount0, amount1)
		return base, quote, nil
	}
	return nil, nil, errs.Wrap(errs.RpcFailure, lastErr, "collect exhausted %d attempts for token id %s", maxRetries, tokenID.String())
}

func decodeCollectAmounts(receipt *cctypes.TxReceipt, tokenID *big.Int) (*big.Int, *big.Int, error) {
	collectEvent := abiset.PositionManager().Events["Collect"]
	for _, l := range receipt.Logs {
		if len(l.Topics) == 0 || l.Topics[0] != collectEvent.ID {
			continue
		}
		values := make(map[string]interface{})
		if err := collectEvent.Inputs.NonIndexed().UnpackIntoMap(values, l.Data); err != nil {
			continue
		}
		amount0, _ := values["amount0"].(*big.Int)
		amount1, _ := values["amount1"].(*big.Int)
		if amount0 == nil || amount1 == nil {
			continue
		}
		return amount0, amount1, nil
	}
	return nil, nil, fmt.Errorf("no Collect event found in receipt for token id %s", tokenID.String())
}

// mintParams mirrors the position manager's MintParams tuple.
type mintParams struct {
	Token0         common.Address
	Token1         common.Address
	Fee            *big.Int
	TickLower      *big.Int
	TickUpper      *big.Int
	Amount0Desired *big.Int
	Amount1Desired *big.Int
	Amount0Min     *big.Int
	Amount1Min     *big.Int
	Recipient      common.Address
	Deadline       *big.Int
}

// MintResult is the outcome of a simulate-then-send mint: the live token-id
// the forked node actually assigned, plus the liquidity and amounts minted.
type MintResult struct {
	TokenID   *big.Int
	Liquidity *big.Int
	Base      *big.Int
	Quote     *big.Int
	Receipt   *cctypes.TxReceipt
}

// Mint simulates the mint first (a read-only call) to capture the token-id
// the forked node will assign, then issues the real state-changing send and
// verifies it mined successfully. Simulate-then-send exists because the
// token-id assigned on a fresh fork never matches the id recorded against
// the original chain.
func (c *Client) Mint(ctx context.Context, tickLower, tickUpper int32, baseDesired, quoteDesired *big.Int) (*MintResult, error) {
	amount0Desired, amount1Desired := c.reorderToToken01(baseDesired, quoteDesired)
	params := mintParams{
		Token0:         c.token0(),
		Token1:         c.token1(),
		Fee:            new(big.Int).SetUint64(uint64(c.fee)),
		TickLower:      big.NewInt(int64(tickLower)),
		TickUpper:      big.NewInt(int64(tickUpper)),
		Amount0Desired: amount0Desired,
		Amount1Desired: amount1Desired,
		Amount0Min:     big.NewInt(0),
		Amount1Min:     big.NewInt(0),
		Recipient:      c.account,
		Deadline:       maxDeadline(),
	}

	simOut, err := c.positionManager.Call(&c.account, "mint", params)
	if err != nil {
		return nil, errs.Wrap(errs.RpcFailure, err, "simulate mint")
	}
	simTokenID := simOut[0].(*big.Int)

	params.Deadline = farFutureDeadline
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		hash, err := c.positionManager.Send(cctypes.Impersonated, nil, &c.account, nil, "mint", params)
		if err != nil {
			lastErr = err
			continue
		}
		receipt, err := c.listener.WaitForTransactionContext(ctx, hash)
		if err != nil {
			lastErr = err
			continue
		}
		if !receipt.Success() {
			lastErr = fmt.Errorf("mint reverted")
			continue
		}
		liquidity, amount0, amount1, err := decodeIncreaseLiquidity(receipt, simTokenID)
		if err != nil {
			lastErr = err
			continue
		}
		base, quote := c.reorderToBaseQuote(amount0, amount1)
		return &MintResult{TokenID: simTokenID, Liquidity: liquidity, Base: base, Quote: quote, Receipt: receipt}, nil
	}
	return nil, errs.Wrap(errs.RpcFailure, lastErr, "mint exhausted %d attempts", maxRetries)
}

// IncreaseLiquidity adds baseDesired/quoteDesired worth of liquidity to an
// existing position, retrying up to maxRetries.
func (c *Client) IncreaseLiquidity(ctx context.Context, tokenID *big.Int, baseDesired, quoteDesired *big.Int) (liquidity, base, quote *big.Int, err error) {
	amount0Desired, amount1Desired := c.reorderToToken01(baseDesired, quoteDesired)
	params := struct {
		TokenId        *big.Int
		Amount0Desired *big.Int
		Amount1Desired *big.Int
		Amount0Min     *big.Int
		Amount1Min     *big.Int
		Deadline       *big.Int
	}{tokenID, amount0Desired, amount1Desired, big.NewInt(0), big.NewInt(0), farFutureDeadline}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		hash, sendErr := c.positionManager.Send(cctypes.Impersonated, nil, &c.account, nil, "increaseLiquidity", params)
		if sendErr != nil {
			lastErr = sendErr
			continue
		}
		receipt, waitErr := c.listener.WaitForTransactionContext(ctx, hash)
		if waitErr != nil {
			lastErr = waitErr
			continue
		}
		if !receipt.Success() {
			lastErr = fmt.Errorf("increaseLiquidity reverted for token id %s", tokenID.String())
			continue
		}
		liq, amount0, amount1, decodeErr := decodeIncreaseLiquidity(receipt, tokenID)
		if decodeErr != nil {
			lastErr = decodeErr
			continue
		}
		b, q := c.reorderToBaseQuote(amount0, amount1)
		return liq, b, q, nil
	}
	return nil, nil, nil, errs.Wrap(errs.RpcFailure, lastErr, "increaseLiquidity exhausted %d attempts for token id %s", maxRetries, tokenID.String())
}

// DecreaseLiquidityNoRetry drains `liquidity` worth of tokenID, issuing
// exactly one attempt: this is the primitive the paired Burn+DecreaseLiquidity
// fused event drives, and a burn already observed on the original chain must
// not be retried against a divergent fork state.
func (c *Client) DecreaseLiquidityNoRetry(ctx context.Context, tokenID, liquidity *big.Int) (base, quote *big.Int, err error) {
	params := decreaseLiquidityParams{
		TokenId:    tokenID,
		Liquidity:  liquidity,
		Amount0Min: big.NewInt(0),
		Amount1Min: big.NewInt(0),
		Deadline:   farFutureDeadline,
	}
	hash, err := c.positionManager.Send(cctypes.Impersonated, nil, &c.account, nil, "decreaseLiquidity", params)
	if err != nil {
		return nil, nil, errs.Wrap(errs.RpcFailure, err, "decreaseLiquidity for token id %s", tokenID.String())
	}
	receipt, err := c.listener.WaitForTransactionContext(ctx, hash)
	if err != nil {
		return nil, nil, err
	}
	if !receipt.Success() {
		return nil, nil, errs.New(errs.ReplayMismatch, "decreaseLiquidity reverted for token id %s", tokenID.String())
	}
	events := abiset.PositionManager().Events["DecreaseLiquidity"]
	for _, l := range receipt.Logs {
		if len(l.Topics) == 0 || l.Topics[0] != events.ID {
			continue
		}
		values := make(map[string]interface{})
		if err := events.Inputs.NonIndexed().UnpackIntoMap(values, l.Data); err != nil {
			continue
		}
		amount0, _ := values["amount0"].(*big.Int)
		amount1, _ := values["amount1"].(*big.Int)
		if amount0 == nil || amount1 == nil {
			continue
		}
		b, q := c.reorderToBaseQuote(amount0, amount1)
		return b, q, nil
	}
	return nil, nil, errs.New(errs.ReplayMismatch, "no DecreaseLiquidity event found for token id %s", tokenID.String())
}

// swapExactInputParams mirrors the router's ExactInputSingleParams tuple.
type swapExactInputParams struct {
	TokenIn           common.Address
	TokenOut          common.Address
	Fee               *big.Int
	Recipient         common.Address
	Deadline          *big.Int
	AmountIn          *big.Int
	AmountOutMinimum  *big.Int
	SqrtPriceLimitX96 *big.Int
}

// SwapExactInput replays a recorded swap as exact-input-single for an
// arbitrary (tokenIn, tokenOut) pair, retrying up to maxRetries attempts.
// Callers resolve direction and exact-in vs exact-out before calling this
// (see Quote and SwapExactOutput).
func (c *Client) SwapExactInput(ctx context.Context, tokenIn, tokenOut common.Address, amountIn *big.Int) (amountOut *big.Int, err error) {
	params := swapExactInputParams{
		TokenIn:           tokenIn,
		TokenOut:          tokenOut,
		Fee:               new(big.Int).SetUint64(uint64(c.fee)),
		Recipient:         c.swapAccount,
		Deadline:          farFutureDeadline,
		AmountIn:          amountIn,
		AmountOutMinimum:  big.NewInt(0),
		SqrtPriceLimitX96: big.NewInt(0),
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		hash, sendErr := c.router.Send(cctypes.Impersonated, nil, &c.swapAccount, nil, "exactInputSingle", params)
		if sendErr != nil {
			lastErr = sendErr
			continue
		}
		receipt, waitErr := c.listener.WaitForTransactionContext(ctx, hash)
		if waitErr != nil {
			lastErr = waitErr
			continue
		}
		if !receipt.Success() {
			lastErr = fmt.Errorf("swap reverted")
			continue
		}
		return decodeSwapAmountOut(receipt, tokenOut)
	}
	return nil, errs.Wrap(errs.RpcFailure, lastErr, "swap exhausted %d attempts", maxRetries)
}

// swapExactOutputParams mirrors the router's ExactOutputSingleParams tuple.
type swapExactOutputParams struct {
	TokenIn           common.Address
	TokenOut          common.Address
	Fee               *big.Int
	Recipient         common.Address
	Deadline          *big.Int
	AmountOut         *big.Int
	AmountInMaximum   *big.Int
	SqrtPriceLimitX96 *big.Int
}

// SwapExactOutput replays a recorded swap whose quoted exact-in output did
// not match the recorded output: it requests exactly amountOut of tokenOut,
// capping spend at amountInMax of tokenIn, and returns the amount of tokenIn
// actually spent.
func (c *Client) SwapExactOutput(ctx context.Context, tokenIn, tokenOut common.Address, amountOut, amountInMax *big.Int) (amountIn *big.Int, err error) {
	params := swapExactOutputParams{
		TokenIn:           tokenIn,
		TokenOut:          tokenOut,
		Fee:               new(big.Int).SetUint64(uint64(c.fee)),
		Recipient:         c.swapAccount,
		Deadline:          farFutureDeadline,
		AmountOut:         amountOut,
		AmountInMaximum:   amountInMax,
		SqrtPriceLimitX96: big.NewInt(0),
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		hash, sendErr := c.router.Send(cctypes.Impersonated, nil, &c.swapAccount, nil, "exactOutputSingle", params)
		if sendErr != nil {
			lastErr = sendErr
			continue
		}
		receipt, waitErr := c.listener.WaitForTransactionContext(ctx, hash)
		if waitErr != nil {
			lastErr = waitErr
			continue
		}
		if !receipt.Success() {
			lastErr = fmt.Errorf("swap reverted")
			continue
		}
		return decodeSwapAmountIn(receipt, tokenIn, c.swapAccount)
	}
	return nil, errs.Wrap(errs.RpcFailure, lastErr, "swap exhausted %d attempts", maxRetries)
}

func decodeSwapAmountIn(receipt *cctypes.TxReceipt, tokenIn, from common.Address) (*big.Int, error) {
	transferEvent := abiset.ERC20().Events["Transfer"]
	for _, l := range receipt.Logs {
		if l.Address != tokenIn || len(l.Topics) < 2 || l.Topics[0] != transferEvent.ID {
			continue
		}
		if common.BytesToAddress(l.Topics[1].Bytes()) != from {
			continue
		}
		values := make(map[string]interface{})
		if err := transferEvent.Inputs.NonIndexed().UnpackIntoMap(values, l.Data); err != nil {
			continue
		}
		if v, ok := values["value"].(*big.Int); ok {
			return v, nil
		}
	}
	return nil, fmt.Errorf("no input transfer found for token %s", tokenIn.Hex())
}

func decodeSwapAmountOut(receipt *cctypes.TxReceipt, tokenOut common.Address) (*big.Int, error) {
	transferEvent := abiset.ERC20().Events["Transfer"]
	for i := len(receipt.Logs) - 1; i >= 0; i-- {
		l := receipt.Logs[i]
		if l.Address != tokenOut || len(l.Topics) == 0 || l.Topics[0] != transferEvent.ID {
			continue
		}
		values := make(map[string]interface{})
		if err := transferEvent.Inputs.NonIndexed().UnpackIntoMap(values, l.Data); err != nil {
			continue
		}
		if v, ok := values["value"].(*big.Int); ok {
			return v, nil
		}
	}
	return nil, fmt.Errorf("no output transfer found for token %s", tokenOut.Hex())
}

func decodeIncreaseLiquidity(receipt *cctypes.TxReceipt, tokenID *big.Int) (liquidity, amount0, amount1 *big.Int, err error) {
	event := abiset.PositionManager().Events["IncreaseLiquidity"]
	for _, l := range receipt.Logs {
		if len(l.Topics) == 0 || l.Topics[0] != event.ID {
			continue
		}
		values := make(map[string]interface{})
		if unpackErr := event.Inputs.NonIndexed().UnpackIntoMap(values, l.Data); unpackErr != nil {
			continue
		}
		liq, _ := values["liquidity"].(*big.Int)
		a0, _ := values["amount0"].(*big.Int)
		a1, _ := values["amount1"].(*big.Int)
		if liq == nil || a0 == nil || a1 == nil {
			continue
		}
		return liq, a0, a1, nil
	}
	return nil, nil, nil, fmt.Errorf("no IncreaseLiquidity event found for token id %s", tokenID.String())
}

func (c *Client) token0() common.Address {
	if c.baseIsToken0 {
		return c.base
	}
	return c.quote
}

func (c *Client) token1() common.Address {
	if c.baseIsToken0 {
		return c.quote
	}
	return c.base
}

func maxDeadline() *big.Int {
	return new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
}
