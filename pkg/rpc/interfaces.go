package rpc

import (
	"context"

	"github.com/canopy-network/holderscan/pkg/db/models/snapshot"
	"github.com/ethereum/go-ethereum/common"
)

// Client captures the remote ledger calls a snapshot run depends on.
// Failures are *Error values; use IsRetriable to tell timeouts from fatal errors.
type Client interface {
	ChainHead(ctx context.Context) (uint64, error)
	BlockByHeight(ctx context.Context, height uint64) (*snapshot.Block, error)
	TransferEvents(ctx context.Context, asset common.Address, from, to uint64) ([]snapshot.TransferEvent, error)
}

var _ Client = (*HTTPClient)(nil)
