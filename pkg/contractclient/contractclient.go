// Package contractclient wraps an ABI and an ethclient connection into a small
// call/send/decode surface, the same shape the reference DEX-automation codebase's
// pkg/contractclient exposes (only its call sites and tests were retrievable; this
// is a from-scratch implementation matching that observed shape).
package contractclient

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"math/big"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"

	cctypes "github.com/lilyjjo/ammreplay/pkg/types"
)

// ContractClient exposes read/write access to a single deployed contract
// through its ABI, plus receipt parsing and raw calldata decoding.
type ContractClient interface {
	ContractAddress() common.Address
	Abi() abi.ABI
	Call(from *common.Address, method string, args ...interface{}) ([]interface{}, error)
	Send(txType cctypes.TxType, gasLimit *uint64, from *common.Address, key *ecdsa.PrivateKey, method string, args ...interface{}) (common.Hash, error)
	TransactionData(hash common.Hash) ([]byte, error)
	DecodeTransaction(data []byte) (*DecodedCall, error)
	ParseReceipt(receipt *cctypes.TxReceipt) (string, error)
	WaitAndFetchReceipt(hash common.Hash) (*cctypes.TxReceipt, error)
}

// DecodedCall is the result of decoding raw calldata against the client's ABI.
type DecodedCall struct {
	MethodName string                 `json:"methodName"`
	Parameters map[string]interface{} `json:"parameters"`
}

type client struct {
	eth     *ethclient.Client
	rpc     *rpc.Client
	address common.Address
	abi     abi.ABI
	chainID *big.Int
}

// NewContractClient builds a ContractClient bound to address using abi over eth.
func NewContractClient(eth *ethclient.Client, address common.Address, contractABI abi.ABI) ContractClient {
	var rpcClient *rpc.Client
	if eth != nil {
		rpcClient = eth.Client()
	}
	return &client{
		eth:     eth,
		rpc:     rpcClient,
		address: address,
		abi:     contractABI,
	}
}

func (c *client) ContractAddress() common.Address { return c.address }

func (c *client) Abi() abi.ABI { return c.abi }

func (c *client) Call(from *common.Address, method string, args ...interface{}) ([]interface{}, error) {
	ctx := context.Background()
	input, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("contractclient: pack %s: %w", method, err)
	}

	msg := callMsg(from, &c.address, input)
	output, err := c.eth.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, fmt.Errorf("contractclient: call %s: %w", method, err)
	}

	results, err := c.abi.Unpack(method, output)
	if err != nil {
		return nil, fmt.Errorf("contractclient: unpack %s: %w", method, err)
	}
	return results, nil
}

func callMsg(from *common.Address, to *common.Address, data []byte) ethereum.CallMsg {
	var f common.Address
	if from != nil {
		f = *from
	}
	return ethereum.CallMsg{From: f, To: to, Data: data}
}

func (c *client) Send(txType cctypes.TxType, gasLimit *uint64, from *common.Address, key *ecdsa.PrivateKey, method string, args ...interface{}) (common.Hash, error) {
	ctx := context.Background()
	input, err := c.abi.Pack(method, args...)
	if err != nil {
		return common.Hash{}, fmt.Errorf("contractclient: pack %s: %w", method, err)
	}

	switch txType {
	case cctypes.Impersonated:
		if from == nil {
			return common.Hash{}, fmt.Errorf("contractclient: impersonated send requires a from address")
		}
		return c.sendImpersonated(ctx, *from, input, gasLimit)
	default:
		if key == nil || from == nil {
			return common.Hash{}, fmt.Errorf("contractclient: standard send requires a private key and from address")
		}
		return c.sendSigned(ctx, *from, key, input, gasLimit)
	}
}

// sendImpersonated submits via eth_sendTransaction, relying on node-side
// impersonation of from (e.g. Anvil's anvil_impersonateAccount). No local
// signing occurs; go-ethereum's typed client has no first-class method for
// this, so the call goes through the underlying rpc.Client directly.
func (c *client) sendImpersonated(ctx context.Context, from common.Address, data []byte, gasLimit *uint64) (common.Hash, error) {
	args := map[string]interface{}{
		"from": from,
		"to":   c.address,
		"data": hexBytes(data),
	}
	if gasLimit != nil {
		args["gas"] = hexUint64(*gasLimit)
	}
	var hash common.Hash
	if err := c.rpc.CallContext(ctx, &hash, "eth_sendTransaction", args); err != nil {
		return common.Hash{}, fmt.Errorf("contractclient: eth_sendTransaction: %w", err)
	}
	return hash, nil
}

func (c *client) sendSigned(ctx context.Context, from common.Address, key *ecdsa.PrivateKey, data []byte, gasLimit *uint64) (common.Hash, error) {
	nonce, err := c.eth.PendingNonceAt(ctx, from)
	if err != nil {
		return common.Hash{}, fmt.Errorf("contractclient: nonce: %w", err)
	}
	gasPrice, err := c.eth.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("contractclient: gas price: %w", err)
	}
	if c.chainID == nil {
		id, err := c.eth.ChainID(ctx)
		if err != nil {
			return common.Hash{}, fmt.Errorf("contractclient: chain id: %w", err)
		}
		c.chainID = id
	}

	gas := uint64(0)
	if gasLimit != nil {
		gas = *gasLimit
	} else {
		msg := ethereum.CallMsg{From: from, To: &c.address, Data: data}
		estimated, err := c.eth.EstimateGas(ctx, msg)
		if err != nil {
			return common.Hash{}, fmt.Errorf("contractclient: estimate gas: %w", err)
		}
		gas = estimated
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &c.address,
		Value:    big.NewInt(0),
		Gas:      gas,
		GasPrice: gasPrice,
		Data:     data,
	})

	signer := types.LatestSignerForChainID(c.chainID)
	signedTx, err := types.SignTx(tx, signer, key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("contractclient: sign: %w", err)
	}

	if err := c.eth.SendTransaction(ctx, signedTx); err != nil {
		return common.Hash{}, fmt.Errorf("contractclient: send: %w", err)
	}
	return signedTx.Hash(), nil
}

func (c *client) TransactionData(hash common.Hash) ([]byte, error) {
	tx, _, err := c.eth.TransactionByHash(context.Background(), hash)
	if err != nil {
		return nil, fmt.Errorf("contractclient: fetch tx %s: %w", hash.Hex(), err)
	}
	return tx.Data(), nil
}

func (c *client) DecodeTransaction(data []byte) (*DecodedCall, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("contractclient: calldata too short")
	}
	method, err := c.abi.MethodById(data[:4])
	if err != nil {
		return nil, fmt.Errorf("contractclient: unknown method selector: %w", err)
	}
	args := map[string]interface{}{}
	if err := method.Inputs.UnpackIntoMap(args, data[4:]); err != nil {
		return nil, fmt.Errorf("contractclient: unpack args for %s: %w", method.Name, err)
	}
	return &DecodedCall{MethodName: method.Name, Parameters: args}, nil
}

// ParseReceipt renders every log in receipt that matches an event in this
// client's ABI as a JSON array of {EventName, Parameter} objects, mirroring
// the reference codebase's MintNftTokenId helper's expected input shape.
func (c *client) ParseReceipt(receipt *cctypes.TxReceipt) (string, error) {
	type decodedEvent struct {
		EventName string                 `json:"EventName"`
		Parameter map[string]interface{} `json:"Parameter"`
	}
	events := []decodedEvent{}
	for _, l := range receipt.Logs {
		if len(l.Topics) == 0 {
			continue
		}
		ev, err := c.abi.EventByID(l.Topics[0])
		if err != nil {
			continue
		}
		params := map[string]interface{}{}
		if err := ev.Inputs.UnpackIntoMap(params, l.Data); err != nil {
			continue
		}
		topicIdx := 1
		for _, input := range ev.Inputs {
			if !input.Indexed {
				continue
			}
			if topicIdx < len(l.Topics) {
				params[input.Name] = topicToValue(input, l.Topics[topicIdx])
			}
			topicIdx++
		}
		events = append(events, decodedEvent{EventName: ev.Name, Parameter: params})
	}
	out, err := json.Marshal(events)
	if err != nil {
		return "", fmt.Errorf("contractclient: marshal parsed receipt: %w", err)
	}
	return string(out), nil
}

func topicToValue(arg abi.Argument, topic common.Hash) interface{} {
	switch arg.Type.T {
	case abi.AddressTy:
		return common.BytesToAddress(topic.Bytes()).Hex()
	default:
		return topic.Hex()
	}
}

func (c *client) WaitAndFetchReceipt(hash common.Hash) (*cctypes.TxReceipt, error) {
	raw, err := c.eth.TransactionReceipt(context.Background(), hash)
	if err != nil {
		return nil, fmt.Errorf("contractclient: receipt %s: %w", hash.Hex(), err)
	}
	return toTxReceipt(raw), nil
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
		effectiveGasPrice = hexBig(r.EffectiveGasPrice)
	}
	return &cctypes.TxReceipt{
		TxHash:            r.TxHash,
		BlockNumber:       hexBig(r.BlockNumber),
		GasUsed:           hexUint64(r.GasUsed),
		EffectiveGasPrice: effectiveGasPrice,
		Status:            status,
		Logs:              logs,
	}
}

func hexBig(v *big.Int) string {
	if v == nil {
		return "0x0"
	}
	return fmt.Sprintf("0x%x", v)
}

func hexUint64(v uint64) string {
	return fmt.Sprintf("0x%x", v)
}

func hexBytes(b []byte) string {
	return fmt.Sprintf("0x%x", b)
}
