package snapshot

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// TransferEvent is one ERC-20 Transfer log as reported by the remote node.
// Amount is the raw integer value before decimal scaling.
type TransferEvent struct {
	From     common.Address
	To       common.Address
	Amount   *big.Int
	Height   uint64
	TxHash   common.Hash
	LogIndex uint
}
