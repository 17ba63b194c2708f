// Package configs loads the YAML configuration a replay run is driven by,
// mirroring the reference codebase's LoadConfig/yaml.Unmarshal pattern and
// its ToBlackholeConfigs-style translation layer.
package configs

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/lilyjjo/ammreplay/internal/chainops"
	"github.com/lilyjjo/ammreplay/internal/replay"
	"github.com/lilyjjo/ammreplay/internal/tabular"
	"github.com/lilyjjo/ammreplay/internal/util"
)

// Config represents the entire configuration structure from config.yml.
type Config struct {
	RPC       RPCYAMLData                        `yaml:"rpc"`
	Contracts map[string]ContractClientYAMLData `yaml:"contracts"`
	Accounts  AccountsYAMLData                  `yaml:"accounts"`
	Funding   FundingYAMLData                   `yaml:"funding"`
	Surrogate SurrogateYAMLData                 `yaml:"surrogate"`
	Inputs    InputsYAMLData                    `yaml:"inputs"`
	Output    string                            `yaml:"output"`
	Audit     *AuditYAMLData                    `yaml:"audit"`
}

// RPCYAMLData names the forked node a replay run dials. ForkBlock is
// informational only: the node is expected to already be forked at that
// height by whatever launched it (e.g. `anvil --fork-block-number`), the
// same external-process convention the grounding original's test harness
// uses for its local chain.
type RPCYAMLData struct {
	Endpoint  string `yaml:"endpoint"`
	ForkBlock uint64 `yaml:"forkBlock"`
}

// ContractClientYAMLData represents a single contract configuration from
// YAML, matching the reference ContractClientYAMLData{Address, ABI} shape.
// ABI is an optional path to a Hardhat compiled-contract artifact; when
// empty, the hardcoded fragment in internal/abiset is used instead. It is
// read only for the pool, positionManager, router and quoter entries; an
// ABI path on any other entry is ignored.
type ContractClientYAMLData struct {
	Address string `yaml:"address"`
	ABI     string `yaml:"abi"`
}

// AccountsYAMLData names the three impersonated sender addresses a replay
// run provisions, matching replay.Accounts.
type AccountsYAMLData struct {
	Deployer string `yaml:"deployer"`
	Swap     string `yaml:"swap"`
	Mint     string `yaml:"mint"`
}

// FundingYAMLData controls native/quote funding for the provisioned
// accounts, matching replay.Funding. Amounts are decimal strings since they
// commonly exceed int64 range.
type FundingYAMLData struct {
	NativeAmount string `yaml:"nativeAmount"`
	QuoteDeposit string `yaml:"quoteDeposit"`
}

// SurrogateYAMLData names the on-disk artifacts for the base-token
// surrogate's creation bytecode and ABI-encoded constructor arguments, both
// stored hex-encoded the way a `forge inspect <Contract> bytecode`-style
// artifact would be.
type SurrogateYAMLData struct {
	BytecodeHex        string `yaml:"bytecodeHex"`
	ConstructorArgsHex string `yaml:"constructorArgsHex"`
}

// InputsYAMLData names the nine recorded-event CSV files a replay run
// reads, matching tabular.Paths minus Output.
type InputsYAMLData struct {
	PoolCreated       string `yaml:"poolCreated"`
	Initialize        string `yaml:"initialize"`
	Mint              string `yaml:"mint"`
	Burn              string `yaml:"burn"`
	Swap              string `yaml:"swap"`
	CollectPool       string `yaml:"collectPool"`
	CollectNpm        string `yaml:"collectNpm"`
	IncreaseLiquidity string `yaml:"increaseLiquidity"`
	DecreaseLiquidity string `yaml:"decreaseLiquidity"`
}

// AuditYAMLData enables C13's best-effort persistence layer when present.
type AuditYAMLData struct {
	DSN string `yaml:"dsn"`
}

// LoadConfig reads and parses path into a Config struct.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}

	return &config, nil
}

// LoadDotEnvOverrides loads a .env-style file of overrides into the
// process environment if it exists, matching the reference test suite's
// ".env.test.local before config.yml" convention. A missing file is not an
// error: local/test-only overrides are optional.
func LoadDotEnvOverrides(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	return godotenv.Load(path)
}

// ReplayConfig is the typed configuration the rest of the system consumes,
// translated from the YAML-shaped Config.
type ReplayConfig struct {
	RPCEndpoint string
	ForkBlock   uint64

	Contracts replay.Contracts
	Accounts  replay.Accounts
	Funding   replay.Funding
	Surrogate replay.Surrogate

	Paths tabular.Paths

	AuditDSN string // empty disables C13
}

// ToReplayConfig converts the YAML-shaped record into ReplayConfig, the
// translation layer named after configs.Config.ToBlackholeConfigs in the
// reference codebase.
func (c *Config) ToReplayConfig() (*ReplayConfig, error) {
	contracts, err := c.contracts()
	if err != nil {
		return nil, err
	}
	accounts, err := c.accounts()
	if err != nil {
		return nil, err
	}
	funding, err := c.funding()
	if err != nil {
		return nil, err
	}
	surrogate, err := c.surrogate()
	if err != nil {
		return nil, err
	}

	rc := &ReplayConfig{
		RPCEndpoint: c.RPC.Endpoint,
		ForkBlock:   c.RPC.ForkBlock,
		Contracts:   contracts,
		Accounts:    accounts,
		Funding:     funding,
		Surrogate:   surrogate,
		Paths: tabular.Paths{
			PoolCreated:       c.Inputs.PoolCreated,
			Initialize:        c.Inputs.Initialize,
			Mint:              c.Inputs.Mint,
			Burn:              c.Inputs.Burn,
			Swap:              c.Inputs.Swap,
			CollectPool:       c.Inputs.CollectPool,
			CollectNpm:        c.Inputs.CollectNpm,
			IncreaseLiquidity: c.Inputs.IncreaseLiquidity,
			DecreaseLiquidity: c.Inputs.DecreaseLiquidity,
			Output:            c.Output,
		},
	}
	if c.Audit != nil {
		rc.AuditDSN = c.Audit.DSN
	}
	return rc, nil
}

func (c *Config) contracts() (replay.Contracts, error) {
	addr := func(name string) (common.Address, error) {
		data, ok := c.Contracts[name]
		if !ok {
			return common.Address{}, fmt.Errorf("config: missing contracts.%s", name)
		}
		if !common.IsHexAddress(data.Address) {
			return common.Address{}, fmt.Errorf("config: contracts.%s has invalid address %q", name, data.Address)
		}
		return common.HexToAddress(data.Address), nil
	}

	factory, err := addr("factory")
	if err != nil {
		return replay.Contracts{}, err
	}
	positionManager, err := addr("positionManager")
	if err != nil {
		return replay.Contracts{}, err
	}
	router, err := addr("router")
	if err != nil {
		return replay.Contracts{}, err
	}
	quoter, err := addr("quoter")
	if err != nil {
		return replay.Contracts{}, err
	}
	quoteToken, err := addr("quoteToken")
	if err != nil {
		return replay.Contracts{}, err
	}

	overrides, err := c.abiOverrides()
	if err != nil {
		return replay.Contracts{}, err
	}

	return replay.Contracts{
		Factory:         factory,
		PositionManager: positionManager,
		Router:          router,
		Quoter:          quoter,
		QuoteToken:      quoteToken,
		ABIOverrides:    overrides,
	}, nil
}

// abiOverrides loads a chainops.ABIOverrides from every contracts.<name>.abi
// path that was configured, leaving the rest nil so NewClient falls back to
// the hardcoded abiset fragment for them.
func (c *Config) abiOverrides() (chainops.ABIOverrides, error) {
	load := func(name string) (*abi.ABI, error) {
		data, ok := c.Contracts[name]
		if !ok || data.ABI == "" {
			return nil, nil
		}
		parsed, err := util.LoadABIFromHardhatArtifact(data.ABI)
		if err != nil {
			return nil, fmt.Errorf("config: contracts.%s.abi: %w", name, err)
		}
		return &parsed, nil
	}

	pool, err := load("pool")
	if err != nil {
		return chainops.ABIOverrides{}, err
	}
	positionManager, err := load("positionManager")
	if err != nil {
		return chainops.ABIOverrides{}, err
	}
	router, err := load("router")
	if err != nil {
		return chainops.ABIOverrides{}, err
	}
	quoter, err := load("quoter")
	if err != nil {
		return chainops.ABIOverrides{}, err
	}

	return chainops.ABIOverrides{
		Pool:            pool,
		PositionManager: positionManager,
		Router:          router,
		Quoter:          quoter,
	}, nil
}

func (c *Config) accounts() (replay.Accounts, error) {
	fields := map[string]string{
		"deployer": c.Accounts.Deployer,
		"swap":     c.Accounts.Swap,
		"mint":     c.Accounts.Mint,
	}
	for name, value := range fields {
		if !common.IsHexAddress(value) {
			return replay.Accounts{}, fmt.Errorf("config: accounts.%s has invalid address %q", name, value)
		}
	}
	return replay.Accounts{
		Deployer: common.HexToAddress(c.Accounts.Deployer),
		Swap:     common.HexToAddress(c.Accounts.Swap),
		Mint:     common.HexToAddress(c.Accounts.Mint),
	}, nil
}

func (c *Config) funding() (replay.Funding, error) {
	native, ok := new(big.Int).SetString(c.Funding.NativeAmount, 10)
	if !ok {
		return replay.Funding{}, fmt.Errorf("config: funding.nativeAmount %q is not a base-10 integer", c.Funding.NativeAmount)
	}
	var quoteDeposit *big.Int
	if c.Funding.QuoteDeposit != "" {
		quoteDeposit, ok = new(big.Int).SetString(c.Funding.QuoteDeposit, 10)
		if !ok {
			return replay.Funding{}, fmt.Errorf("config: funding.quoteDeposit %q is not a base-10 integer", c.Funding.QuoteDeposit)
		}
	}
	return replay.Funding{NativeAmount: native, QuoteDeposit: quoteDeposit}, nil
}

func (c *Config) surrogate() (replay.Surrogate, error) {
	bytecode, err := hex.DecodeString(trimHexPrefix(c.Surrogate.BytecodeHex))
	if err != nil {
		return replay.Surrogate{}, fmt.Errorf("config: surrogate.bytecodeHex: %w", err)
	}
	var args []byte
	if c.Surrogate.ConstructorArgsHex != "" {
		args, err = hex.DecodeString(trimHexPrefix(c.Surrogate.ConstructorArgsHex))
		if err != nil {
			return replay.Surrogate{}, fmt.Errorf("config: surrogate.constructorArgsHex: %w", err)
		}
	}
	return replay.Surrogate{Bytecode: bytecode, ConstructorArgs: args}, nil
}

func trimHexPrefix(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}
