package rpc

import (
	"context"
	"fmt"
	"time"

	"github.com/canopy-network/holderscan/pkg/db/models/snapshot"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// BlockHeader is the subset of the eth_getBlockByNumber response the scanner reads.
type BlockHeader struct {
	Number    hexutil.Uint64 `json:"number"`
	Timestamp hexutil.Uint64 `json:"timestamp"`
}

// ToBlockModel converts a BlockHeader to a snapshot Block.
func (h *BlockHeader) ToBlockModel() *snapshot.Block {
	return &snapshot.Block{
		Height: uint64(h.Number),
		Time:   time.Unix(int64(h.Timestamp), 0).UTC(),
	}
}

// ChainHead returns the height of the chain head.
func (c *HTTPClient) ChainHead(ctx context.Context) (uint64, error) {
	var head hexutil.Uint64
	if err := c.call(ctx, blockNumberMethod, nil, &head); err != nil {
		return 0, fmt.Errorf("cannot probe head: %w", err)
	}
	return uint64(head), nil
}

// BlockByHeight returns the block at the given height.
// A height the node does not know yet yields ErrBlockNotFound.
func (c *HTTPClient) BlockByHeight(ctx context.Context, h uint64) (*snapshot.Block, error) {
	var out *BlockHeader
	if err := c.call(ctx, blockByNumberMethod, []any{hexutil.EncodeUint64(h), false}, &out); err != nil {
		return nil, err
	}
	if out == nil {
		return nil, fmt.Errorf("%w: height %d", ErrBlockNotFound, h)
	}
	if uint64(out.Number) != h {
		return nil, fmt.Errorf("%w: asked for height %d, node returned %d", ErrBlockNotFound, h, uint64(out.Number))
	}
	return out.ToBlockModel(), nil
}
