// Package txlistener polls a node for a transaction's receipt, the same
// wait-for-confirmation role the reference DEX-automation codebase's
// pkg/txlistener fills for its Blackhole client.
package txlistener

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	cctypes "github.com/lilyjjo/ammreplay/pkg/types"
)

const (
	defaultPollInterval = 2 * time.Second
	defaultTimeout      = 5 * time.Minute
)

// TxListener waits for transactions to be mined and reports their receipts.
type TxListener interface {
	WaitForTransaction(hash common.Hash) (*cctypes.TxReceipt, error)
	WaitForTransactionContext(ctx context.Context, hash common.Hash) (*cctypes.TxReceipt, error)
}

type listener struct {
	client       *ethclient.Client
	pollInterval time.Duration
	timeout      time.Duration
}

// Option configures a TxListener built by NewTxListener.
type Option func(*listener)

// WithPollInterval sets how often the listener re-checks a pending transaction.
func WithPollInterval(d time.Duration) Option {
	return func(l *listener) { l.pollInterval = d }
}

// WithTimeout bounds how long WaitForTransaction will wait before giving up.
func WithTimeout(d time.Duration) Option {
	return func(l *listener) { l.timeout = d }
}

// NewTxListener builds a TxListener over client, applying any options.
func NewTxListener(client *ethclient.Client, opts ...Option) TxListener {
	l := &listener{
		client:       client,
		pollInterval: defaultPollInterval,
		timeout:      defaultTimeout,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *listener) WaitForTransaction(hash common.Hash) (*cctypes.TxReceipt, error) {
	ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
	defer cancel()
	return l.WaitForTransactionContext(ctx, hash)
}

func (l *listener) WaitForTransactionContext(ctx context.Context, hash common.Hash) (*cctypes.TxReceipt, error) {
	ticker := time.NewTicker(l.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := l.client.TransactionReceipt(ctx, hash)
		switch {
		case err == nil:
			return toTxReceipt(receipt), nil
		case errors.Is(err, ethereum.NotFound):
			// not yet mined, keep polling
		default:
			return nil, fmt.Errorf("txlistener: fetch receipt %s: %w", hash.Hex(), err)
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("txlistener: timed out waiting for %s: %w", hash.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}

func toTxReceipt(r *types.Receipt) *cctypes.TxReceipt {
	status := "0x0"
	if r.Status == types.ReceiptStatusSuccessful {
		status = "0x1"
	}
	logs := make([]cctypes.Log, 0, len(r.Logs))
	for _, l := range r.Logs {
		logs = append(logs, cctypes.Log{
			Address: l.Address,
			Topics:  l.Topics,
			Data:    l.Data,
			Index:   l.Index,
		})
	}
	effectiveGasPrice := "0x0"
	if r.EffectiveGasPrice != nil {
		effectiveGasPrice = fmt.Sprintf("0x%x", r.EffectiveGasPrice)
	}
	blockNumber := "0x0"
	if r.BlockNumber != nil {
		blockNumber = fmt.Sprintf("0x%x", r.BlockNumber)
	}
	return &cctypes.TxReceipt{
		TxHash:            r.TxHash,
		BlockNumber:       blockNumber,
		GasUsed:           fmt.Sprintf("0x%x", r.GasUsed),
		EffectiveGasPrice: effectiveGasPrice,
		Status:            status,
		Logs:              logs,
	}
}
