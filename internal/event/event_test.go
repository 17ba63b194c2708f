package event

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleEvent(block, logIndex uint64, p Payload) SimulationEvent {
	return SimulationEvent{Block: block, LogIndex: logIndex, Payload: p}
}

func TestLessOrdersByBlockThenLogIndex(t *testing.T) {
	a := sampleEvent(10, 2, Mint{})
	b := sampleEvent(10, 3, Mint{})
	c := sampleEvent(11, 0, Mint{})

	assert.True(t, a.Less(b))
	assert.False(t, b.Less(a))
	assert.True(t, b.Less(c))
}

func TestSorted(t *testing.T) {
	events := []SimulationEvent{
		sampleEvent(1, 0, Mint{}),
		sampleEvent(1, 1, Burn{}),
		sampleEvent(2, 0, Swap{}),
	}
	assert.True(t, Sorted(events))

	events[1], events[2] = events[2], events[1]
	assert.False(t, Sorted(events))
}

func TestAsMintSucceeds(t *testing.T) {
	mint := Mint{TickLower: -100, TickUpper: 100, Amount: big.NewInt(5)}
	e := sampleEvent(1, 0, mint)

	got, err := AsMint(e)
	require.NoError(t, err)
	assert.Equal(t, mint, got)
}

func TestAsMintFailsOnMismatch(t *testing.T) {
	e := sampleEvent(1, 0, Burn{})

	_, err := AsMint(e)
	require.Error(t, err)

	var convErr *ConversionError
	require.ErrorAs(t, err, &convErr)
	assert.Equal(t, TypeMint, convErr.Want)
	assert.Equal(t, TypeBurn, convErr.Got)
}

func TestAsSwapAndAsCollectVariants(t *testing.T) {
	swap := Swap{SqrtPriceX96: big.NewInt(123), Tick: 5}
	e := sampleEvent(3, 1, swap)
	got, err := AsSwap(e)
	require.NoError(t, err)
	assert.Equal(t, swap, got)

	_, err = AsCollectPool(e)
	assert.Error(t, err)
}

func TestFindFirst(t *testing.T) {
	events := []SimulationEvent{
		sampleEvent(1, 0, PoolCreated{Pool: common.HexToAddress("0x1")}),
		sampleEvent(1, 1, Initialize{Tick: 10}),
		sampleEvent(2, 0, Mint{}),
	}

	found, ok := FindFirst(events, TypeInitialize)
	require.True(t, ok)
	init, err := AsInitialize(found)
	require.NoError(t, err)
	assert.Equal(t, int32(10), init.Tick)

	_, ok = FindFirst(events, TypeBurn)
	assert.False(t, ok)
}

func TestTypeString(t *testing.T) {
	assert.Equal(t, "Mint", TypeMint.String())
	assert.Equal(t, "DecreaseLiquidity", TypeDecreaseLiquidity.String())
}
