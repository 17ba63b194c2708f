// Package bootstrap deploys the base-token surrogate and the pool it trades
// against, repeating the token deployment until its address sorts on the
// correct side of the quote token so the replayed pool's token0/token1
// ordering matches the original chain's.
package bootstrap

import (
	"bytes"
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/lilyjjo/ammreplay/internal/abiset"
	"github.com/lilyjjo/ammreplay/internal/errs"
	"github.com/lilyjjo/ammreplay/internal/fork"
	"github.com/lilyjjo/ammreplay/internal/logging"
	"github.com/lilyjjo/ammreplay/pkg/contractclient"
	cctypes "github.com/lilyjjo/ammreplay/pkg/types"
)

// maxDeployAttempts bounds the deploy-until-sorts loop. The original system
// this is grounded on imposes no ceiling; one is kept here so a persistently
// misconfigured bytecode or RPC endpoint fails loudly instead of looping
// forever.
const maxDeployAttempts = 256

// warnEvery logs a progress warning at this attempt-count cadence so a long
// but eventually-successful run doesn't look silently stuck.
const warnEvery = 32

// Bootstrapper deploys the surrogate base token and creates/initializes the
// pool it trades against on a forked node.
type Bootstrapper struct {
	session  *fork.Session
	factory  contractclient.ContractClient
	deployer common.Address
	log      logging.Logger
}

// New builds a Bootstrapper bound to factory, issuing deployments from
// deployer (which must already be funded and impersonated on session).
func New(session *fork.Session, factory, deployer common.Address, log logging.Logger) *Bootstrapper {
	return &Bootstrapper{
		session:  session,
		factory:  contractclient.NewContractClient(session.Eth, factory, abiset.Factory()),
		deployer: deployer,
		log:      log,
	}
}

// DeployUntilSorted deploys the ERC-20 surrogate described by bytecode
// (constructorArgs appended, ABI-encoded, to the creation calldata) up to
// maxDeployAttempts times, returning the first deployed address that sorts
// on the required side of quoteToken.
func (b *Bootstrapper) DeployUntilSorted(ctx context.Context, quoteToken common.Address, baseMustSortBefore bool, bytecode []byte, constructorArgs []byte) (common.Address, error) {
	data := append(append([]byte{}, bytecode...), constructorArgs...)

	for attempt := 1; attempt <= maxDeployAttempts; attempt++ {
		addr, err := b.deployContract(ctx, data)
		if err != nil {
			return common.Address{}, errs.Wrap(errs.BootstrapFailure, err, "deploy surrogate token attempt %d", attempt)
		}
		sortsBefore := bytes.Compare(addr.Bytes(), quoteToken.Bytes()) < 0
		if sortsBefore == baseMustSortBefore {
			b.log.Info().Int("attempt", attempt).Str("address", addr.Hex()).Msg("surrogate token sorted correctly")
			return addr, nil
		}
		if attempt%warnEvery == 0 {
			b.log.Warn().Int("attempt", attempt).Msg("surrogate token still has not sorted to the required side")
		}
	}
	return common.Address{}, errs.New(errs.BootstrapFailure, "surrogate token never sorted to the required side of %s after %d deploys", quoteToken.Hex(), maxDeployAttempts)
}

func (b *Bootstrapper) deployContract(ctx context.Context, data []byte) (common.Address, error) {
	args := map[string]interface{}{
		"from": b.deployer,
		"data": fmt.Sprintf("0x%x", data),
	}
	var hash common.Hash
	if err := b.session.CallContext(ctx, &hash, "eth_sendTransaction", args); err != nil {
		return common.Address{}, fmt.Errorf("bootstrap: deploy: %w", err)
	}
	receipt, err := b.session.Eth.TransactionReceipt(ctx, hash)
	if err != nil {
		return common.Address{}, fmt.Errorf("bootstrap: fetch deploy receipt: %w", err)
	}
	if receipt.Status != 1 {
		return common.Address{}, fmt.Errorf("bootstrap: deploy transaction reverted")
	}
	if receipt.ContractAddress == (common.Address{}) {
		return common.Address{}, fmt.Errorf("bootstrap: deploy receipt carries no contract address")
	}
	return receipt.ContractAddress, nil
}

// CreatePool calls the factory's createPool for (tokenA, tokenB, fee) and
// returns the resulting pool address, falling back to getPool when the
// factory reports the pool already exists (createPool reverts in that case
// on most Uniswap-v3-style factories).
func (b *Bootstrapper) CreatePool(ctx context.Context, tokenA, tokenB common.Address, fee uint32) (common.Address, error) {
	feeArg := new(big.Int).SetUint64(uint64(fee))
	hash, err := b.factory.Send(cctypes.Impersonated, nil, &b.deployer, nil, "createPool", tokenA, tokenB, feeArg)
	if err != nil {
		out, callErr := b.factory.Call(&b.deployer, "getPool", tokenA, tokenB, feeArg)
		if callErr == nil {
			if addr, ok := out[0].(common.Address); ok && addr != (common.Address{}) {
				return addr, nil
			}
		}
		return common.Address{}, errs.Wrap(errs.BootstrapFailure, err, "createPool(%s, %s, %d)", tokenA.Hex(), tokenB.Hex(), fee)
	}

	receipt, err := b.session.Eth.TransactionReceipt(ctx, hash)
	if err != nil {
		return common.Address{}, errs.Wrap(errs.RpcFailure, err, "fetch createPool receipt")
	}
	if receipt.Status != 1 {
		return common.Address{}, errs.New(errs.BootstrapFailure, "createPool(%s, %s, %d) reverted", tokenA.Hex(), tokenB.Hex(), fee)
	}

	out, err := b.factory.Call(&b.deployer, "getPool", tokenA, tokenB, feeArg)
	if err != nil {
		return common.Address{}, errs.Wrap(errs.RpcFailure, err, "getPool after createPool")
	}
	addr, ok := out[0].(common.Address)
	if !ok || addr == (common.Address{}) {
		return common.Address{}, errs.New(errs.BootstrapFailure, "factory reported no pool for (%s, %s, %d) after createPool", tokenA.Hex(), tokenB.Hex(), fee)
	}
	return addr, nil
}

// InitializePool calls initialize(sqrtPriceX96) on pool and verifies the
// resulting Initialize log carries the same sqrt-price bit-for-bit.
func (b *Bootstrapper) InitializePool(ctx context.Context, pool common.Address, sqrtPriceX96 *big.Int) error {
	poolClient := contractclient.NewContractClient(b.session.Eth, pool, abiset.Pool())
	hash, err := poolClient.Send(cctypes.Impersonated, nil, &b.deployer, nil, "initialize", sqrtPriceX96)
	if err != nil {
		return errs.Wrap(errs.BootstrapFailure, err, "initialize(%s)", pool.Hex())
	}
	receipt, err := b.session.Eth.TransactionReceipt(ctx, hash)
	if err != nil {
		return errs.Wrap(errs.RpcFailure, err, "fetch initialize receipt")
	}
	if receipt.Status != 1 {
		return errs.New(errs.BootstrapFailure, "initialize(%s) reverted", pool.Hex())
	}

	initEvent := abiset.Pool().Events["Initialize"]
	for _, l := range receipt.Logs {
		if l.Address != pool || len(l.Topics) == 0 || l.Topics[0] != initEvent.ID {
			continue
		}
		values := make(map[string]interface{})
		if err := initEvent.Inputs.NonIndexed().UnpackIntoMap(values, l.Data); err != nil {
			continue
		}
		got, ok := values["sqrtPriceX96"].(*big.Int)
		if !ok {
			continue
		}
		if got.Cmp(sqrtPriceX96) != 0 {
			return errs.New(errs.ReplayMismatch, "pool %s Initialize log sqrtPriceX96 %s does not match recorded %s", pool.Hex(), got.String(), sqrtPriceX96.String())
		}
		return nil
	}
	return errs.New(errs.ReplayMismatch, "pool %s emitted no Initialize log to verify against the recorded sqrtPriceX96", pool.Hex())
}
