package abiset

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllFragmentsParse(t *testing.T) {
	assert.NotPanics(t, func() {
		Factory()
		Pool()
		PositionManager()
		SwapRouter()
		Quoter()
		ERC20()
		WrappedNative()
	})
}

func TestFactoryHasPoolCreatedEvent(t *testing.T) {
	f := Factory()
	_, ok := f.Events["PoolCreated"]
	assert.True(t, ok)
}

func TestPoolHasExpectedEvents(t *testing.T) {
	p := Pool()
	for _, name := range []string{"Initialize", "Mint", "Burn", "Swap", "Collect"} {
		_, ok := p.Events[name]
		assert.True(t, ok, "missing event %s", name)
	}
}

func TestPositionManagerHasExpectedMethods(t *testing.T) {
	pm := PositionManager()
	for _, name := range []string{"mint", "increaseLiquidity", "decreaseLiquidity", "collect", "positions"} {
		_, ok := pm.Methods[name]
		assert.True(t, ok, "missing method %s", name)
	}
}
