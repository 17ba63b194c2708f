// Package util holds small file/encoding helpers shared by the ABI-loading
// and gas-accounting call sites, adapted from the reference DEX-automation
// codebase's internal/util package (only its call sites survived retrieval;
// this is a from-scratch implementation matching the observed signatures).
package util

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"

	cctypes "github.com/lilyjjo/ammreplay/pkg/types"
)

// LoadABI parses a bare ABI JSON array from path.
func LoadABI(path string) (abi.ABI, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return abi.ABI{}, fmt.Errorf("util: read abi file %s: %w", path, err)
	}
	parsed, err := abi.JSON(strings.NewReader(string(raw)))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("util: parse abi %s: %w", path, err)
	}
	return parsed, nil
}

// hardhatArtifact is the subset of a Hardhat compilation artifact this loader
// needs: the ABI array nested under the "abi" key.
type hardhatArtifact struct {
	ABI json.RawMessage `json:"abi"`
}

// LoadABIFromHardhatArtifact parses the "abi" field out of a Hardhat-style
// compiled-contract artifact JSON file.
func LoadABIFromHardhatArtifact(path string) (abi.ABI, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return abi.ABI{}, fmt.Errorf("util: read artifact %s: %w", path, err)
	}
	var artifact hardhatArtifact
	if err := json.Unmarshal(raw, &artifact); err != nil {
		return abi.ABI{}, fmt.Errorf("util: parse artifact %s: %w", path, err)
	}
	parsed, err := abi.JSON(strings.NewReader(string(artifact.ABI)))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("util: parse artifact abi %s: %w", path, err)
	}
	return parsed, nil
}

// Hex2Bytes decodes a hex string, tolerating an optional "0x" prefix.
func Hex2Bytes(s string) []byte {
	s = strings.TrimPrefix(s, "0x")
	s = strings.TrimPrefix(s, "0X")
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return nil
	}
	return decoded
}

// ExtractGasCost returns the gas cost (gasUsed * effectiveGasPrice) a receipt
// reports, or an error if the receipt is missing or its numeric fields are
// malformed.
func ExtractGasCost(receipt *cctypes.TxReceipt) (*big.Int, error) {
	if receipt == nil {
		return nil, fmt.Errorf("util: nil receipt")
	}
	cost := receipt.GasCost()
	if cost == nil {
		return nil, fmt.Errorf("util: receipt %s has unparsable gas fields", receipt.TxHash.Hex())
	}
	return cost, nil
}
