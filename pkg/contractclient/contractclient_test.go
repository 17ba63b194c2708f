package contractclient

import (
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cctypes "github.com/lilyjjo/ammreplay/pkg/types"
)

const testABIJSON = `[
	{"type":"function","name":"transfer","inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}],"stateMutability":"nonpayable"},
	{"type":"event","name":"Transfer","inputs":[{"name":"from","type":"address","indexed":true},{"name":"to","type":"address","indexed":true},{"name":"value","type":"uint256","indexed":false}],"anonymous":false}
]`

func mustParseTestABI(t *testing.T) abi.ABI {
	t.Helper()
	parsed, err := abi.JSON(strings.NewReader(testABIJSON))
	require.NoError(t, err)
	return parsed
}

func TestDecodeTransaction(t *testing.T) {
	contractABI := mustParseTestABI(t)
	cc := NewContractClient(nil, common.HexToAddress("0x1111111111111111111111111111111111111111"), contractABI)

	to := common.HexToAddress("0x2222222222222222222222222222222222222222")
	data, err := contractABI.Pack("transfer", to, big.NewInt(1_000_000))
	require.NoError(t, err)

	decoded, err := cc.DecodeTransaction(data)
	require.NoError(t, err)
	assert.Equal(t, "transfer", decoded.MethodName)
	assert.Equal(t, to, decoded.Parameters["to"])
}

func TestDecodeTransactionRejectsShortCalldata(t *testing.T) {
	contractABI := mustParseTestABI(t)
	cc := NewContractClient(nil, common.Address{}, contractABI)

	_, err := cc.DecodeTransaction([]byte{0x01, 0x02})
	assert.Error(t, err)
}

func TestParseReceiptDecodesMatchingEvents(t *testing.T) {
	contractABI := mustParseTestABI(t)
	contractAddr := common.HexToAddress("0x1111111111111111111111111111111111111111")
	cc := NewContractClient(nil, contractAddr, contractABI)

	from := common.HexToAddress("0x3333333333333333333333333333333333333333")
	to := common.HexToAddress("0x4444444444444444444444444444444444444444")

	eventDef := contractABI.Events["Transfer"]
	data, err := eventDef.Inputs.NonIndexed().Pack(big.NewInt(42))
	require.NoError(t, err)

	receipt := &cctypes.TxReceipt{
		Status: "0x1",
		Logs: []cctypes.Log{{
			Address: contractAddr,
			Topics: []common.Hash{
				eventDef.ID,
				common.BytesToHash(from.Bytes()),
				common.BytesToHash(to.Bytes()),
			},
			Data: data,
		}},
	}

	out, err := cc.ParseReceipt(receipt)
	require.NoError(t, err)
	assert.Contains(t, out, "Transfer")
}

func TestParseReceiptSkipsUnknownTopics(t *testing.T) {
	contractABI := mustParseTestABI(t)
	cc := NewContractClient(nil, common.Address{}, contractABI)

	receipt := &cctypes.TxReceipt{
		Status: "0x1",
		Logs: []cctypes.Log{{
			Topics: []common.Hash{common.HexToHash("0xdeadbeef")},
		}},
	}

	out, err := cc.ParseReceipt(receipt)
	require.NoError(t, err)
	assert.Equal(t, "[]", out)
}
