// Package fork opens a forked EVM node and provisions simulation accounts on
// it, generalized from the account-preparation routine in this repository's
// grounding original (register impersonation, fund native balance, wrap half
// into the quote token, approve spenders).
package fork

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/lilyjjo/ammreplay/internal/abiset"
	"github.com/lilyjjo/ammreplay/pkg/contractclient"
	cctypes "github.com/lilyjjo/ammreplay/pkg/types"
	"github.com/lilyjjo/ammreplay/pkg/txlistener"
)

// Session wraps a connection to a forked node and exposes the admin
// extensions (balance override, impersonation) that account provisioning
// needs, reached via raw JSON-RPC since go-ethereum's typed client exposes
// no vendor/admin methods.
type Session struct {
	Eth             *ethclient.Client
	rpc             *rpc.Client
	quote           contractclient.ContractClient
	Router          common.Address
	PositionManager common.Address
}

// Open dials endpoint. The node is expected to already be forked at the
// desired height (started externally, e.g. as `anvil --fork-url ... --fork-block-number ...`);
// Open does not itself request a fork, matching how the grounding original's
// anvil instance is launched once per run rather than per pool.
func Open(ctx context.Context, endpoint string, quoteToken, router, positionManager common.Address) (*Session, error) {
	eth, err := ethclient.DialContext(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("fork: dial %s: %w", endpoint, err)
	}
	return &Session{
		Eth:             eth,
		rpc:             eth.Client(),
		quote:           contractclient.NewContractClient(eth, quoteToken, abiset.WrappedNative()),
		Router:          router,
		PositionManager: positionManager,
	}, nil
}

// Close releases the underlying RPC connection.
func (s *Session) Close() {
	s.Eth.Close()
}

// CallContext exposes the session's raw JSON-RPC connection for callers
// outside this package that need a method go-ethereum's typed client
// doesn't wrap (e.g. contract-creation deploys with no fixed address).
func (s *Session) CallContext(ctx context.Context, result interface{}, method string, args ...interface{}) error {
	return s.rpc.CallContext(ctx, result, method, args...)
}

// SetBalance overrides account's native balance via anvil_setBalance.
func (s *Session) SetBalance(ctx context.Context, account common.Address, amount *big.Int) error {
	if err := s.rpc.CallContext(ctx, nil, "anvil_setBalance", account, hexBig(amount)); err != nil {
		return fmt.Errorf("fork: anvil_setBalance(%s): %w", account.Hex(), err)
	}
	return nil
}

// Impersonate enables impersonated sending for account via
// anvil_impersonateAccount.
func (s *Session) Impersonate(ctx context.Context, account common.Address) error {
	if err := s.rpc.CallContext(ctx, nil, "anvil_impersonateAccount", account); err != nil {
		return fmt.Errorf("fork: anvil_impersonateAccount(%s): %w", account.Hex(), err)
	}
	return nil
}

// StopImpersonating disables impersonation on account.
func (s *Session) StopImpersonating(ctx context.Context, account common.Address) error {
	if err := s.rpc.CallContext(ctx, nil, "anvil_stopImpersonatingAccount", account); err != nil {
		return fmt.Errorf("fork: anvil_stopImpersonatingAccount(%s): %w", account.Hex(), err)
	}
	return nil
}

// ProvisionOptions controls what Provision does for one account beyond
// balance override and impersonation, which always run.
type ProvisionOptions struct {
	// QuoteDeposit, if non-nil, is the amount of native asset to wrap into
	// the quote token. The grounding original always wraps exactly half of
	// the funded native balance.
	QuoteDeposit *big.Int
	// Approvals lists (token, spender) pairs to approve for max uint256.
	Approvals []Approval
}

// Approval names one token/spender pair to grant a maximum approval for.
type Approval struct {
	Token   common.Address
	Spender common.Address
}

var maxApproval = func() *big.Int {
	v := new(big.Int).Lsh(big.NewInt(1), 256)
	return v.Sub(v, big.NewInt(1))
}()

// Provision funds account with amount of native balance, enables
// impersonation, optionally wraps QuoteDeposit of it into the quote token,
// and issues maximum approvals for every (token, spender) pair requested.
// Every step is fatal on failure; no step retries, since every downstream
// primitive assumes the account is fully provisioned before it runs.
func (s *Session) Provision(ctx context.Context, account common.Address, nativeAmount *big.Int, opts ProvisionOptions) error {
	if err := s.SetBalance(ctx, account, nativeAmount); err != nil {
		return err
	}
	if err := s.Impersonate(ctx, account); err != nil {
		return err
	}

	if opts.QuoteDeposit != nil && opts.QuoteDeposit.Sign() > 0 {
		if err := s.depositQuote(ctx, account, opts.QuoteDeposit); err != nil {
			return err
		}
	}

	for _, approval := range opts.Approvals {
		if err := s.approveMax(ctx, account, approval.Token, approval.Spender); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) depositQuote(ctx context.Context, account common.Address, amount *big.Int) error {
	gas := uint64(120000)
	hash, err := s.sendValueTx(ctx, account, s.quote.ContractAddress(), amount, s.quote.Abi(), &gas)
	if err != nil {
		return fmt.Errorf("fork: wrap quote token for %s: %w", account.Hex(), err)
	}
	receipt, err := s.waitReceipt(ctx, hash)
	if err != nil {
		return err
	}
	if !receipt.Success() {
		return fmt.Errorf("fork: wrap quote token for %s: transaction reverted", account.Hex())
	}
	return nil
}

func (s *Session) sendValueTx(ctx context.Context, from, to common.Address, value *big.Int, contractABI abi.ABI, gas *uint64) (common.Hash, error) {
	input, err := contractABI.Pack("deposit")
	if err != nil {
		return common.Hash{}, fmt.Errorf("fork: pack deposit: %w", err)
	}
	args := map[string]interface{}{
		"from":  from,
		"to":    to,
		"value": hexBig(value),
		"data":  fmt.Sprintf("0x%x", input),
	}
	if gas != nil {
		args["gas"] = fmt.Sprintf("0x%x", *gas)
	}
	var hash common.Hash
	if err := s.rpc.CallContext(ctx, &hash, "eth_sendTransaction", args); err != nil {
		return common.Hash{}, fmt.Errorf("fork: eth_sendTransaction: %w", err)
	}
	return hash, nil
}

// ApproveMax issues a maximum-uint256 approval of token to spender, sent
// from owner (which must already be impersonated). Exported so callers can
// grant approvals for tokens whose address is only known after Provision
// runs, such as a surrogate base token deployed after its pool's accounts
// are funded.
func (s *Session) ApproveMax(ctx context.Context, owner, token, spender common.Address) error {
	return s.approveMax(ctx, owner, token, spender)
}

func (s *Session) approveMax(ctx context.Context, owner, token, spender common.Address) error {
	cc := contractclient.NewContractClient(s.Eth, token, abiset.ERC20())
	hash, err := cc.Send(cctypes.Impersonated, nil, &owner, nil, "approve", spender, maxApproval)
	if err != nil {
		return fmt.Errorf("fork: approve %s for %s from %s: %w", spender.Hex(), token.Hex(), owner.Hex(), err)
	}
	receipt, err := s.waitReceipt(ctx, hash)
	if err != nil {
		return err
	}
	if !receipt.Success() {
		return fmt.Errorf("fork: approve %s for %s from %s: transaction reverted", spender.Hex(), token.Hex(), owner.Hex())
	}
	return nil
}

func (s *Session) waitReceipt(ctx context.Context, hash common.Hash) (*cctypes.TxReceipt, error) {
	listener := txlistener.NewTxListener(s.Eth, txlistener.WithPollInterval(200*time.Millisecond), txlistener.WithTimeout(30*time.Second))
	return listener.WaitForTransactionContext(ctx, hash)
}

func hexBig(v *big.Int) string {
	if v == nil {
		return "0x0"
	}
	return fmt.Sprintf("0x%x", v)
}
