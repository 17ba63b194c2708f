package txlistener

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
)

func TestOptionsOverrideDefaults(t *testing.T) {
	l := NewTxListener(nil, WithPollInterval(250*time.Millisecond), WithTimeout(time.Second)).(*listener)
	assert.Equal(t, 250*time.Millisecond, l.pollInterval)
	assert.Equal(t, time.Second, l.timeout)
}

func TestDefaultsWithNoOptions(t *testing.T) {
	l := NewTxListener(nil).(*listener)
	assert.Equal(t, defaultPollInterval, l.pollInterval)
	assert.Equal(t, defaultTimeout, l.timeout)
}

func TestToTxReceiptSuccess(t *testing.T) {
	raw := &types.Receipt{
		TxHash:            common.HexToHash("0xabc"),
		BlockNumber:       big.NewInt(100),
		GasUsed:           21000,
		EffectiveGasPrice: big.NewInt(7),
		Status:            types.ReceiptStatusSuccessful,
		Logs: []*types.Log{{
			Address: common.HexToAddress("0x1"),
			Topics:  []common.Hash{common.HexToHash("0x2")},
			Data:    []byte{0x1, 0x2},
			Index:   3,
		}},
	}
	receipt := toTxReceipt(raw)
	assert.True(t, receipt.Success())
	assert.Equal(t, uint(3), receipt.Logs[0].Index)
	assert.NotNil(t, receipt.GasCost())
}

func TestToTxReceiptFailure(t *testing.T) {
	raw := &types.Receipt{
		TxHash: common.HexToHash("0xabc"),
		Status: types.ReceiptStatusFailed,
	}
	receipt := toTxReceipt(raw)
	assert.False(t, receipt.Success())
}
