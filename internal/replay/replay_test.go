package replay

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lilyjjo/ammreplay/internal/errs"
	"github.com/lilyjjo/ammreplay/internal/event"
	"github.com/lilyjjo/ammreplay/internal/logging"
)

func envelope(block, logIndex uint64, payload event.Payload) event.SimulationEvent {
	return event.SimulationEvent{Block: block, LogIndex: logIndex, Payload: payload}
}

func newTestDriver() *Driver {
	return New(nil, Contracts{}, Accounts{}, Funding{}, Surrogate{}, logging.Nop())
}

func TestRunRejectsUnsortedInput(t *testing.T) {
	d := newTestDriver()
	events := []event.SimulationEvent{
		envelope(2, 0, event.Mint{Amount: big.NewInt(1)}),
		envelope(1, 0, event.Mint{Amount: big.NewInt(1)}),
	}
	_, err := d.Run(context.Background(), events)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.OrderingViolation))
}

func TestRunRejectsStandaloneInitialize(t *testing.T) {
	d := newTestDriver()
	events := []event.SimulationEvent{
		envelope(1, 0, event.Initialize{SqrtPriceX96: big.NewInt(1), Tick: 0}),
	}
	_, err := d.Run(context.Background(), events)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.OrderingViolation))
}

func TestRunRejectsStandaloneIncreaseLiquidity(t *testing.T) {
	d := newTestDriver()
	events := []event.SimulationEvent{
		envelope(1, 0, event.IncreaseLiquidity{RecordedTokenID: big.NewInt(1), Liquidity: big.NewInt(1)}),
	}
	_, err := d.Run(context.Background(), events)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.OrderingViolation))
}

func TestRunRejectsStandaloneDecreaseLiquidity(t *testing.T) {
	d := newTestDriver()
	events := []event.SimulationEvent{
		envelope(1, 0, event.DecreaseLiquidity{RecordedTokenID: big.NewInt(1), Liquidity: big.NewInt(1)}),
	}
	_, err := d.Run(context.Background(), events)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.OrderingViolation))
}

func TestRunIgnoresStandaloneCollectEvents(t *testing.T) {
	d := newTestDriver()
	events := []event.SimulationEvent{
		envelope(1, 0, event.CollectPool{Amount0: big.NewInt(0), Amount1: big.NewInt(0)}),
		envelope(2, 0, event.CollectNpm{RecordedTokenID: big.NewInt(1), Amount0: big.NewInt(0), Amount1: big.NewInt(0)}),
	}
	segments, err := d.Run(context.Background(), events)
	require.NoError(t, err)
	assert.Empty(t, segments)
}

func TestRunRejectsPoolCreatedNotFollowedByInitialize(t *testing.T) {
	d := newTestDriver()
	events := []event.SimulationEvent{
		envelope(1, 0, event.PoolCreated{Token0: common.HexToAddress("0x1"), Token1: common.HexToAddress("0x2"), Fee: 3000, TickSpacing: 60}),
		envelope(2, 0, event.Mint{Amount: big.NewInt(1)}),
	}
	_, err := d.Run(context.Background(), events)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.OrderingViolation))
}

func TestRunRejectsBurnNotFollowedByDecreaseLiquidity(t *testing.T) {
	// Burn's lookahead guard runs before any chain call, so this exercises
	// correctly without a live bootstrap.
	d := newTestDriver()
	events := []event.SimulationEvent{
		envelope(1, 0, event.Burn{Amount: big.NewInt(1)}),
		envelope(1, 1, event.Swap{Amount0: big.NewInt(1), Amount1: big.NewInt(-1)}),
	}
	_, err := d.Run(context.Background(), events)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.OrderingViolation))
}
