package bootstrap

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaxDeployAttemptsAndWarnCadence(t *testing.T) {
	assert.Equal(t, 256, maxDeployAttempts)
	assert.Equal(t, 32, warnEvery)
	assert.Equal(t, 0, maxDeployAttempts%warnEvery, "attempt ceiling should divide evenly by the warn cadence")
}
