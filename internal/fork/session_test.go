package fork

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaxApprovalIsUint256Max(t *testing.T) {
	expected := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	assert.Equal(t, 0, expected.Cmp(maxApproval))
}

func TestHexBig(t *testing.T) {
	assert.Equal(t, "0x0", hexBig(nil))
	assert.Equal(t, "0x64", hexBig(big.NewInt(100)))
}

func TestProvisionOptionsZeroValueSkipsDeposit(t *testing.T) {
	var opts ProvisionOptions
	assert.Nil(t, opts.QuoteDeposit)
	assert.Empty(t, opts.Approvals)
}
