package rpc

import (
	"context"
	"fmt"
	"math/big"

	"github.com/canopy-network/holderscan/pkg/db/models/snapshot"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// TransferTopic is topic0 of the ERC-20 Transfer(address,address,uint256) event.
var TransferTopic = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))

// Log is the subset of an eth_getLogs entry needed to decode a transfer.
type Log struct {
	Address     common.Address `json:"address"`
	Topics      []common.Hash  `json:"topics"`
	Data        hexutil.Bytes  `json:"data"`
	BlockNumber hexutil.Uint64 `json:"blockNumber"`
	TxHash      common.Hash    `json:"transactionHash"`
	LogIndex    hexutil.Uint   `json:"logIndex"`
	Removed     bool           `json:"removed"`
}

type logFilter struct {
	FromBlock string          `json:"fromBlock"`
	ToBlock   string          `json:"toBlock"`
	Address   common.Address  `json:"address"`
	Topics    [][]common.Hash `json:"topics"`
}

// ToTransferEvent decodes a Transfer log. The value is read from data, or from a
// fourth topic for tokens that index it.
func (l *Log) ToTransferEvent() (snapshot.TransferEvent, error) {
	if len(l.Topics) < 3 || l.Topics[0] != TransferTopic {
		return snapshot.TransferEvent{}, fmt.Errorf("log %s#%d is not a transfer", l.TxHash.Hex(), uint(l.LogIndex))
	}

	var amount *big.Int
	switch {
	case len(l.Topics) == 4:
		amount = new(big.Int).SetBytes(l.Topics[3].Bytes())
	case len(l.Data) >= common.HashLength:
		amount = new(big.Int).SetBytes(l.Data[:common.HashLength])
	default:
		return snapshot.TransferEvent{}, fmt.Errorf("log %s#%d has no transfer value", l.TxHash.Hex(), uint(l.LogIndex))
	}

	return snapshot.TransferEvent{
		From:     common.BytesToAddress(l.Topics[1].Bytes()),
		To:       common.BytesToAddress(l.Topics[2].Bytes()),
		Amount:   amount,
		Height:   uint64(l.BlockNumber),
		TxHash:   l.TxHash,
		LogIndex: uint(l.LogIndex),
	}, nil
}

// TransferEvents returns every Transfer emitted by asset in [from, to], both inclusive.
// Logs removed by a reorg are skipped.
func (c *HTTPClient) TransferEvents(ctx context.Context, asset common.Address, from, to uint64) ([]snapshot.TransferEvent, error) {
	filter := logFilter{
		FromBlock: hexutil.EncodeUint64(from),
		ToBlock:   hexutil.EncodeUint64(to),
		Address:   asset,
		Topics:    [][]common.Hash{{TransferTopic}},
	}

	var logs []Log
	if err := c.call(ctx, logsMethod, []any{filter}, &logs); err != nil {
		return nil, err
	}

	events := make([]snapshot.TransferEvent, 0, len(logs))
	for i := range logs {
		if logs[i].Removed {
			continue
		}
		ev, err := logs[i].ToTransferEvent()
		if err != nil {
			return nil, &Error{Method: logsMethod, Kind: KindFatal, Err: err}
		}
		events = append(events, ev)
	}
	return events, nil
}
