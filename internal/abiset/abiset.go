// Package abiset holds the minimal ABI fragments the replay driver needs for
// each contract role it talks to. Unlike the reference DEX-automation
// codebase, which loads ABIs from Hardhat build artifacts on disk, a replay
// run needs only the deployed addresses supplied in configuration, so the
// fragments are embedded directly, trimmed to the methods and events this
// system actually calls or decodes. Configuration may replace the pool,
// position-manager, router and quoter fragments with a Hardhat artifact's
// ABI (see chainops.ABIOverrides).
package abiset

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const factoryABIJSON = `[
	{"type":"function","name":"createPool","stateMutability":"nonpayable","inputs":[{"name":"tokenA","type":"address"},{"name":"tokenB","type":"address"},{"name":"fee","type":"uint24"}],"outputs":[{"name":"pool","type":"address"}]},
	{"type":"function","name":"getPool","stateMutability":"view","inputs":[{"name":"tokenA","type":"address"},{"name":"tokenB","type":"address"},{"name":"fee","type":"uint24"}],"outputs":[{"name":"pool","type":"address"}]},
	{"type":"event","name":"PoolCreated","anonymous":false,"inputs":[
		{"name":"token0","type":"address","indexed":true},
		{"name":"token1","type":"address","indexed":true},
		{"name":"fee","type":"uint24","indexed":true},
		{"name":"tickSpacing","type":"int24","indexed":false},
		{"name":"pool","type":"address","indexed":false}
	]}
]`

const poolABIJSON = `[
	{"type":"function","name":"initialize","stateMutability":"nonpayable","inputs":[{"name":"sqrtPriceX96","type":"uint160"}],"outputs":[]},
	{"type":"function","name":"slot0","stateMutability":"view","inputs":[],"outputs":[
		{"name":"sqrtPriceX96","type":"uint160"},
		{"name":"tick","type":"int24"},
		{"name":"observationIndex","type":"uint16"},
		{"name":"observationCardinality","type":"uint16"},
		{"name":"observationCardinalityNext","type":"uint16"},
		{"name":"feeProtocol","type":"uint8"},
		{"name":"unlocked","type":"bool"}
	]},
	{"type":"function","name":"liquidity","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint128"}]},
	{"type":"function","name":"feeGrowthGlobal0X128","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"feeGrowthGlobal1X128","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"tickSpacing","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"int24"}]},
	{"type":"function","name":"token0","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"token1","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
	{"type":"event","name":"Initialize","anonymous":false,"inputs":[
		{"name":"sqrtPriceX96","type":"uint160","indexed":false},
		{"name":"tick","type":"int24","indexed":false}
	]},
	{"type":"event","name":"Mint","anonymous":false,"inputs":[
		{"name":"sender","type":"address","indexed":false},
		{"name":"owner","type":"address","indexed":true},
		{"name":"tickLower","type":"int24","indexed":true},
		{"name":"tickUpper","type":"int24","indexed":true},
		{"name":"amount","type":"uint128","indexed":false},
		{"name":"amount0","type":"uint256","indexed":false},
		{"name":"amount1","type":"uint256","indexed":false}
	]},
	{"type":"event","name":"Burn","anonymous":false,"inputs":[
		{"name":"owner","type":"address","indexed":true},
		{"name":"tickLower","type":"int24","indexed":true},
		{"name":"tickUpper","type":"int24","indexed":true},
		{"name":"amount","type":"uint128","indexed":false},
		{"name":"amount0","type":"uint256","indexed":false},
		{"name":"amount1","type":"uint256","indexed":false}
	]},
	{"type":"event","name":"Swap","anonymous":false,"inputs":[
		{"name":"sender","type":"address","indexed":true},
		{"name":"recipient","type":"address","indexed":true},
		{"name":"amount0","type":"int256","indexed":false},
		{"name":"amount1","type":"int256","indexed":false},
		{"name":"sqrtPriceX96","type":"uint160","indexed":false},
		{"name":"liquidity","type":"uint128","indexed":false},
		{"name":"tick","type":"int24","indexed":false}
	]},
	{"type":"event","name":"Collect","anonymous":false,"inputs":[
		{"name":"owner","type":"address","indexed":true},
		{"name":"recipient","type":"address","indexed":false},
		{"name":"tickLower","type":"int24","indexed":true},
		{"name":"tickUpper","type":"int24","indexed":true},
		{"name":"amount0","type":"uint128","indexed":false},
		{"name":"amount1","type":"uint128","indexed":false}
	]}
]`

const positionManagerABIJSON = `[
	{"type":"function","name":"mint","stateMutability":"payable","inputs":[{"name":"params","type":"tuple","components":[
		{"name":"token0","type":"address"},
		{"name":"token1","type":"address"},
		{"name":"fee","type":"uint24"},
		{"name":"tickLower","type":"int24"},
		{"name":"tickUpper","type":"int24"},
		{"name":"amount0Desired","type":"uint256"},
		{"name":"amount1Desired","type":"uint256"},
		{"name":"amount0Min","type":"uint256"},
		{"name":"amount1Min","type":"uint256"},
		{"name":"recipient","type":"address"},
		{"name":"deadline","type":"uint256"}
	]}],"outputs":[
		{"name":"tokenId","type":"uint256"},
		{"name":"liquidity","type":"uint128"},
		{"name":"amount0","type":"uint256"},
		{"name":"amount1","type":"uint256"}
	]},
	{"type":"function","name":"increaseLiquidity","stateMutability":"payable","inputs":[{"name":"params","type":"tuple","components":[
		{"name":"tokenId","type":"uint256"},
		{"name":"amount0Desired","type":"uint256"},
		{"name":"amount1Desired","type":"uint256"},
		{"name":"amount0Min","type":"uint256"},
		{"name":"amount1Min","type":"uint256"},
		{"name":"deadline","type":"uint256"}
	]}],"outputs":[
		{"name":"liquidity","type":"uint128"},
		{"name":"amount0","type":"uint256"},
		{"name":"amount1","type":"uint256"}
	]},
	{"type":"function","name":"decreaseLiquidity","stateMutability":"payable","inputs":[{"name":"params","type":"tuple","components":[
		{"name":"tokenId","type":"uint256"},
		{"name":"liquidity","type":"uint128"},
		{"name":"amount0Min","type":"uint256"},
		{"name":"amount1Min","type":"uint256"},
		{"name":"deadline","type":"uint256"}
	]}],"outputs":[
		{"name":"amount0","type":"uint256"},
		{"name":"amount1","type":"uint256"}
	]},
	{"type":"function","name":"collect","stateMutability":"payable","inputs":[{"name":"params","type":"tuple","components":[
		{"name":"tokenId","type":"uint256"},
		{"name":"recipient","type":"address"},
		{"name":"amount0Max","type":"uint128"},
		{"name":"amount1Max","type":"uint128"}
	]}],"outputs":[
		{"name":"amount0","type":"uint256"},
		{"name":"amount1","type":"uint256"}
	]},
	{"type":"function","name":"positions","stateMutability":"view","inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[
		{"name":"nonce","type":"uint96"},
		{"name":"operator","type":"address"},
		{"name":"token0","type":"address"},
		{"name":"token1","type":"address"},
		{"name":"fee","type":"uint24"},
		{"name":"tickLower","type":"int24"},
		{"name":"tickUpper","type":"int24"},
		{"name":"liquidity","type":"uint128"},
		{"name":"feeGrowthInside0LastX128","type":"uint256"},
		{"name":"feeGrowthInside1LastX128","type":"uint256"},
		{"name":"tokensOwed0","type":"uint128"},
		{"name":"tokensOwed1","type":"uint128"}
	]},
	{"type":"event","name":"IncreaseLiquidity","anonymous":false,"inputs":[
		{"name":"tokenId","type":"uint256","indexed":true},
		{"name":"liquidity","type":"uint128","indexed":false},
		{"name":"amount0","type":"uint256","indexed":false},
		{"name":"amount1","type":"uint256","indexed":false}
	]},
	{"type":"event","name":"DecreaseLiquidity","anonymous":false,"inputs":[
		{"name":"tokenId","type":"uint256","indexed":true},
		{"name":"liquidity","type":"uint128","indexed":false},
		{"name":"amount0","type":"uint256","indexed":false},
		{"name":"amount1","type":"uint256","indexed":false}
	]},
	{"type":"event","name":"Collect","anonymous":false,"inputs":[
		{"name":"tokenId","type":"uint256","indexed":true},
		{"name":"recipient","type":"address","indexed":false},
		{"name":"amount0","type":"uint256","indexed":false},
		{"name":"amount1","type":"uint256","indexed":false}
	]}
]`

const swapRouterABIJSON = `[
	{"type":"function","name":"exactInputSingle","stateMutability":"payable","inputs":[{"name":"params","type":"tuple","components":[
		{"name":"tokenIn","type":"address"},
		{"name":"tokenOut","type":"address"},
		{"name":"fee","type":"uint24"},
		{"name":"recipient","type":"address"},
		{"name":"deadline","type":"uint256"},
		{"name":"amountIn","type":"uint256"},
		{"name":"amountOutMinimum","type":"uint256"},
		{"name":"sqrtPriceLimitX96","type":"uint160"}
	]}],"outputs":[{"name":"amountOut","type":"uint256"}]},
	{"type":"function","name":"exactOutputSingle","stateMutability":"payable","inputs":[{"name":"params","type":"tuple","components":[
		{"name":"tokenIn","type":"address"},
		{"name":"tokenOut","type":"address"},
		{"name":"fee","type":"uint24"},
		{"name":"recipient","type":"address"},
		{"name":"deadline","type":"uint256"},
		{"name":"amountOut","type":"uint256"},
		{"name":"amountInMaximum","type":"uint256"},
		{"name":"sqrtPriceLimitX96","type":"uint160"}
	]}],"outputs":[{"name":"amountIn","type":"uint256"}]}
]`

const quoterABIJSON = `[
	{"type":"function","name":"quoteExactInputSingle","stateMutability":"nonpayable","inputs":[
		{"name":"tokenIn","type":"address"},
		{"name":"tokenOut","type":"address"},
		{"name":"amountIn","type":"uint256"},
		{"name":"fee","type":"uint24"},
		{"name":"sqrtPriceLimitX96","type":"uint160"}
	],"outputs":[{"name":"amountOut","type":"uint256"}]}
]`

const erc20ABIJSON = `[
	{"type":"function","name":"approve","stateMutability":"nonpayable","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"transfer","stateMutability":"nonpayable","inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"event","name":"Transfer","anonymous":false,"inputs":[
		{"name":"from","type":"address","indexed":true},
		{"name":"to","type":"address","indexed":true},
		{"name":"value","type":"uint256","indexed":false}
	]}
]`

const wrappedNativeABIJSON = `[
	{"type":"function","name":"deposit","stateMutability":"payable","inputs":[],"outputs":[]},
	{"type":"function","name":"withdraw","stateMutability":"nonpayable","inputs":[{"name":"wad","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"approve","stateMutability":"nonpayable","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]}
]`

func mustParse(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic("abiset: embedded abi failed to parse: " + err.Error())
	}
	return parsed
}

// Factory returns the factory-contract ABI fragment (createPool, getPool,
// PoolCreated).
func Factory() abi.ABI { return mustParse(factoryABIJSON) }

// Pool returns the pool-contract ABI fragment (slot0, liquidity, fee-growth
// globals, Initialize/Mint/Burn/Swap/Collect events).
func Pool() abi.ABI { return mustParse(poolABIJSON) }

// PositionManager returns the position-manager ABI fragment (mint,
// increaseLiquidity, decreaseLiquidity, collect, positions, and their
// events).
func PositionManager() abi.ABI { return mustParse(positionManagerABIJSON) }

// SwapRouter returns the swap-router ABI fragment (exactInputSingle,
// exactOutputSingle).
func SwapRouter() abi.ABI { return mustParse(swapRouterABIJSON) }

// Quoter returns the quoter ABI fragment (quoteExactInputSingle).
func Quoter() abi.ABI { return mustParse(quoterABIJSON) }

// ERC20 returns a minimal ERC-20 ABI fragment (approve, balanceOf, transfer,
// Transfer), used for both the quote token and deployed surrogates.
func ERC20() abi.ABI { return mustParse(erc20ABIJSON) }

// WrappedNative returns the canonical wrapped-native-asset ABI fragment
// (deposit, withdraw, approve, balanceOf).
func WrappedNative() abi.ABI { return mustParse(wrappedNativeABIJSON) }
