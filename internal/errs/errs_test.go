package errs

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewAndError(t *testing.T) {
	err := New(ReplayMismatch, "amount0 mismatch: want %d got %d", 1, 2)
	assert.Equal(t, "ReplayMismatch: amount0 mismatch: want 1 got 2", err.Error())
}

func TestWrapUnwraps(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap(RpcFailure, cause, "send failed")
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "boom")
}

func TestIs(t *testing.T) {
	err := New(BootstrapFailure, "never sorted")
	assert.True(t, Is(err, BootstrapFailure))
	assert.False(t, Is(err, InputIntegrity))
	assert.False(t, Is(errors.New("plain"), InputIntegrity))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "OrderingViolation", OrderingViolation.String())
	assert.Equal(t, "LedgerInconsistency", LedgerInconsistency.String())
}
