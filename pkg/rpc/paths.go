package rpc

// Ethereum JSON-RPC methods used by the scanner.
const (
	blockNumberMethod   = "eth_blockNumber"
	blockByNumberMethod = "eth_getBlockByNumber"
	logsMethod          = "eth_getLogs"
)
