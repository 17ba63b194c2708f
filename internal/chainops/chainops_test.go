package chainops

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"

	"github.com/lilyjjo/ammreplay/internal/logging"
)

func testClient(baseIsToken0 bool) *Client {
	base := common.HexToAddress("0x1111111111111111111111111111111111111111")
	quote := common.HexToAddress("0x2222222222222222222222222222222222222222")
	return NewClient(nil, common.Address{}, common.Address{}, common.Address{}, common.Address{}, base, quote, common.Address{}, common.Address{}, baseIsToken0, 3000, 60, ABIOverrides{}, logging.Nop())
}

func TestReorderToBaseQuoteWhenBaseIsToken0(t *testing.T) {
	c := testClient(true)
	base, quote := c.reorderToBaseQuote(big.NewInt(10), big.NewInt(20))
	assert.Equal(t, int64(10), base.Int64())
	assert.Equal(t, int64(20), quote.Int64())
}

func TestReorderToBaseQuoteWhenQuoteIsToken0(t *testing.T) {
	c := testClient(false)
	base, quote := c.reorderToBaseQuote(big.NewInt(10), big.NewInt(20))
	assert.Equal(t, int64(20), base.Int64())
	assert.Equal(t, int64(10), quote.Int64())
}

func TestReorderToToken01RoundTrips(t *testing.T) {
	c := testClient(false)
	amount0, amount1 := c.reorderToToken01(big.NewInt(5), big.NewInt(9))
	base, quote := c.reorderToBaseQuote(amount0, amount1)
	assert.Equal(t, int64(5), base.Int64())
	assert.Equal(t, int64(9), quote.Int64())
}

func TestToken0Token1MatchOrientation(t *testing.T) {
	c := testClient(true)
	assert.Equal(t, c.base, c.token0())
	assert.Equal(t, c.quote, c.token1())

	c2 := testClient(false)
	assert.Equal(t, c2.quote, c2.token0())
	assert.Equal(t, c2.base, c2.token1())
}

func TestMaxUint128(t *testing.T) {
	expected := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))
	assert.Equal(t, 0, expected.Cmp(maxUint128))
}

func TestMintAndSwapAccountsAreIndependent(t *testing.T) {
	mint := common.HexToAddress("0x3333333333333333333333333333333333333333")
	swap := common.HexToAddress("0x4444444444444444444444444444444444444444")
	c := NewClient(nil, common.Address{}, common.Address{}, common.Address{}, common.Address{}, common.Address{}, common.Address{}, mint, swap, true, 3000, 60, ABIOverrides{}, logging.Nop())
	assert.Equal(t, mint, c.MintAccount())
	assert.Equal(t, swap, c.SwapAccount())
}

func TestMaxDeadlineIsUint256Max(t *testing.T) {
	expected := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	assert.Equal(t, 0, expected.Cmp(maxDeadline()))
}
