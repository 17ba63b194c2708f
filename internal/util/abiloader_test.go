package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cctypes "github.com/lilyjjo/ammreplay/pkg/types"
)

const sampleABI = `[{"type":"function","name":"decimals","inputs":[],"outputs":[{"name":"","type":"uint8"}],"stateMutability":"view"}]`

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadABI(t *testing.T) {
	path := writeTempFile(t, "abi.json", sampleABI)
	parsed, err := LoadABI(path)
	require.NoError(t, err)
	_, ok := parsed.Methods["decimals"]
	assert.True(t, ok)
}

func TestLoadABIFromHardhatArtifact(t *testing.T) {
	artifact := `{"contractName":"Token","abi":` + sampleABI + `,"bytecode":"0x"}`
	path := writeTempFile(t, "artifact.json", artifact)
	parsed, err := LoadABIFromHardhatArtifact(path)
	require.NoError(t, err)
	_, ok := parsed.Methods["decimals"]
	assert.True(t, ok)
}

func TestHex2Bytes(t *testing.T) {
	assert.Equal(t, []byte{0xde, 0xad}, Hex2Bytes("0xdead"))
	assert.Equal(t, []byte{0xde, 0xad}, Hex2Bytes("dead"))
	assert.Nil(t, Hex2Bytes("not-hex"))
}

func TestExtractGasCost(t *testing.T) {
	receipt := &cctypes.TxReceipt{GasUsed: "0x5208", EffectiveGasPrice: "0x3b9aca00"}
	cost, err := ExtractGasCost(receipt)
	require.NoError(t, err)
	assert.Equal(t, "21000000000000", cost.String())
}

func TestExtractGasCostNilReceipt(t *testing.T) {
	_, err := ExtractGasCost(nil)
	assert.Error(t, err)
}
