// Package types holds the small value types shared between the contract-client
// and transaction-listener packages so neither needs to import the other.
package types

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// TxType selects how Send should authorize an outgoing call.
type TxType int

const (
	// Standard signs the transaction locally with a supplied private key.
	Standard TxType = iota
	// Impersonated submits via eth_sendTransaction with only a from address,
	// relying on the node having the sender under impersonation (e.g. Anvil's
	// anvil_impersonateAccount). No private key is needed or used.
	Impersonated
)

// Log is a single decoded-address/topics/data log entry, mirroring the shape
// a JSON-RPC transaction receipt reports logs in.
type Log struct {
	Address common.Address
	Topics  []common.Hash
	Data    []byte
	Index   uint
}

// TxReceipt is the transaction outcome surfaced to callers: string-encoded
// numeric fields (as they arrive over JSON-RPC) plus the raw log entries
// needed for event decoding and verification.
type TxReceipt struct {
	TxHash            common.Hash
	BlockNumber       string
	GasUsed           string
	EffectiveGasPrice string
	Status            string // "0x1" success, "0x0" failure
	Logs              []Log
}

// Success reports whether the receipt's status indicates the transaction
// executed without reverting.
func (r *TxReceipt) Success() bool {
	return r != nil && r.Status == "0x1"
}

// GasCost returns GasUsed * EffectiveGasPrice as a big.Int, or nil if either
// field fails to parse.
func (r *TxReceipt) GasCost() *big.Int {
	used, ok := new(big.Int).SetString(trimHexPrefix(r.GasUsed), hexOrDecBase(r.GasUsed))
	if !ok {
		return nil
	}
	price, ok := new(big.Int).SetString(trimHexPrefix(r.EffectiveGasPrice), hexOrDecBase(r.EffectiveGasPrice))
	if !ok {
		return nil
	}
	return new(big.Int).Mul(used, price)
}

func hexOrDecBase(s string) int {
	if len(s) > 1 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return 16
	}
	return 10
}

func trimHexPrefix(s string) string {
	if len(s) > 1 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}
