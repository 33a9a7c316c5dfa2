package chain

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// PairABIJSON covers the UniswapV2 pair calls the registry needs.
const PairABIJSON = `[
 {"constant":true,"inputs":[],"name":"token0","outputs":[{"name":"","type":"address"}],"stateMutability":"view","type":"function"},
 {"constant":true,"inputs":[],"name":"token1","outputs":[{"name":"","type":"address"}],"stateMutability":"view","type":"function"},
 {"constant":true,"inputs":[],"name":"getReserves","outputs":[{"name":"reserve0","type":"uint112"},{"name":"reserve1","type":"uint112"},{"name":"blockTimestampLast","type":"uint32"}],"stateMutability":"view","type":"function"}
]`

// FactoryABIJSON is the UniswapV2 factory pair lookup.
const FactoryABIJSON = `[
 {"constant":true,"inputs":[{"name":"tokenA","type":"address"},{"name":"tokenB","type":"address"}],"name":"getPair","outputs":[{"name":"pair","type":"address"}],"stateMutability":"view","type":"function"}
]`

// ERC20ABIJSON is the metadata and balance subset of ERC20.
const ERC20ABIJSON = `[
 {"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"stateMutability":"view","type":"function"},
 {"constant":true,"inputs":[],"name":"symbol","outputs":[{"name":"","type":"string"}],"stateMutability":"view","type":"function"},
 {"constant":true,"inputs":[],"name":"name","outputs":[{"name":"","type":"string"}],"stateMutability":"view","type":"function"},
 {"constant":true,"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"}
]`

// bytes32SymbolABIJSON decodes legacy tokens (MKR, SAI) whose symbol and
// name return bytes32.
const bytes32SymbolABIJSON = `[
 {"constant":true,"inputs":[],"name":"symbol","outputs":[{"name":"","type":"bytes32"}],"stateMutability":"view","type":"function"},
 {"constant":true,"inputs":[],"name":"name","outputs":[{"name":"","type":"bytes32"}],"stateMutability":"view","type":"function"}
]`

// RouterABIJSON lists the UniswapV2 router swap functions.
const RouterABIJSON = `[
 {"inputs":[{"name":"amountIn","type":"uint256"},{"name":"amountOutMin","type":"uint256"},{"name":"path","type":"address[]"},{"name":"to","type":"address"},{"name":"deadline","type":"uint256"}],"name":"swapExactTokensForTokens","outputs":[{"name":"amounts","type":"uint256[]"}],"stateMutability":"nonpayable","type":"function"},
 {"inputs":[{"name":"amountOut","type":"uint256"},{"name":"amountInMax","type":"uint256"},{"name":"path","type":"address[]"},{"name":"to","type":"address"},{"name":"deadline","type":"uint256"}],"name":"swapTokensForExactTokens","outputs":[{"name":"amounts","type":"uint256[]"}],"stateMutability":"nonpayable","type":"function"},
 {"inputs":[{"name":"amountOutMin","type":"uint256"},{"name":"path","type":"address[]"},{"name":"to","type":"address"},{"name":"deadline","type":"uint256"}],"name":"swapExactETHForTokens","outputs":[{"name":"amounts","type":"uint256[]"}],"stateMutability":"payable","type":"function"},
 {"inputs":[{"name":"amountOut","type":"uint256"},{"name":"amountInMax","type":"uint256"},{"name":"path","type":"address[]"},{"name":"to","type":"address"},{"name":"deadline","type":"uint256"}],"name":"swapTokensForExactETH","outputs":[{"name":"amounts","type":"uint256[]"}],"stateMutability":"nonpayable","type":"function"},
 {"inputs":[{"name":"amountIn","type":"uint256"},{"name":"amountOutMin","type":"uint256"},{"name":"path","type":"address[]"},{"name":"to","type":"address"},{"name":"deadline","type":"uint256"}],"name":"swapExactTokensForETH","outputs":[{"name":"amounts","type":"uint256[]"}],"stateMutability":"nonpayable","type":"function"},
 {"inputs":[{"name":"amountOut","type":"uint256"},{"name":"path","type":"address[]"},{"name":"to","type":"address"},{"name":"deadline","type":"uint256"}],"name":"swapETHForExactTokens","outputs":[{"name":"amounts","type":"uint256[]"}],"stateMutability":"payable","type":"function"},
 {"inputs":[{"name":"amountIn","type":"uint256"},{"name":"amountOutMin","type":"uint256"},{"name":"path","type":"address[]"},{"name":"to","type":"address"},{"name":"deadline","type":"uint256"}],"name":"swapExactTokensForTokensSupportingFeeOnTransferTokens","outputs":[],"stateMutability":"nonpayable","type":"function"},
 {"inputs":[{"name":"amountOutMin","type":"uint256"},{"name":"path","type":"address[]"},{"name":"to","type":"address"},{"name":"deadline","type":"uint256"}],"name":"swapExactETHForTokensSupportingFeeOnTransferTokens","outputs":[],"stateMutability":"payable","type":"function"},
 {"inputs":[{"name":"amountIn","type":"uint256"},{"name":"amountOutMin","type":"uint256"},{"name":"path","type":"address[]"},{"name":"to","type":"address"},{"name":"deadline","type":"uint256"}],"name":"swapExactTokensForETHSupportingFeeOnTransferTokens","outputs":[],"stateMutability":"nonpayable","type":"function"}
]`

// SandwichABIJSON is the execution contract interface. The contract itself
// is deployed separately; only these signatures are relied on.
const SandwichABIJSON = `[
 {"inputs":[{"name":"pair","type":"address"},{"name":"tokenIn","type":"address"},{"name":"frontRunIn","type":"uint256"},{"name":"victimIn","type":"uint256"}],"name":"simulateSandwich","outputs":[{"name":"backRunOut","type":"uint256"},{"name":"profit","type":"int256"}],"stateMutability":"view","type":"function"},
 {"inputs":[{"name":"pair","type":"address"},{"name":"tokenIn","type":"address"},{"name":"tokenOut","type":"address"},{"name":"frontRunIn","type":"uint256"},{"name":"minBackRunOut","type":"uint256"},{"name":"victimTx","type":"bytes32"},{"name":"deadline","type":"uint256"}],"name":"executeSandwich","outputs":[],"stateMutability":"nonpayable","type":"function"},
 {"inputs":[{"name":"pair","type":"address"},{"name":"tokenOut","type":"address"},{"name":"minBackRunOut","type":"uint256"},{"name":"victimTx","type":"bytes32"},{"name":"deadline","type":"uint256"}],"name":"executeSandwichWithETH","outputs":[],"stateMutability":"payable","type":"function"},
 {"anonymous":false,"inputs":[{"indexed":true,"name":"victimTx","type":"bytes32"},{"indexed":true,"name":"pair","type":"address"},{"indexed":false,"name":"frontRunIn","type":"uint256"},{"indexed":false,"name":"backRunOut","type":"uint256"},{"indexed":false,"name":"profit","type":"int256"}],"name":"SandwichExecuted","type":"event"}
]`

// Parsed ABIs, ready for Pack/Unpack.
var (
	PairABI     = mustParse(PairABIJSON)
	FactoryABI  = mustParse(FactoryABIJSON)
	ERC20ABI    = mustParse(ERC20ABIJSON)
	RouterABI   = mustParse(RouterABIJSON)
	SandwichABI = mustParse(SandwichABIJSON)

	bytes32ERC20ABI = mustParse(bytes32SymbolABIJSON)
)

func mustParse(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic("chain: parse abi: " + err.Error())
	}
	return parsed
}
