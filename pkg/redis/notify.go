package redis

import (
	"context"
	"encoding/json"
	"time"

	snapshotmodels "github.com/canopy-network/holderscan/pkg/db/models/snapshot"
	"go.uber.org/zap"
)

// SnapshotCompleted is the summary published when a snapshot run finishes.
type SnapshotCompleted struct {
	RunID      string    `json:"runId"`
	Target     time.Time `json:"target"`
	Height     uint64    `json:"height"`
	Holders    int       `json:"holders"`
	Total      string    `json:"total"`
	File       string    `json:"file,omitempty"`
	FinishedAt time.Time `json:"finishedAt"`
}

// NewSnapshotCompleted summarises res; file is where the CSV was written, if anywhere.
func NewSnapshotCompleted(res *snapshotmodels.Result, file string) SnapshotCompleted {
	return SnapshotCompleted{
		RunID:      res.RunID.String(),
		Target:     res.Target.UTC(),
		Height:     res.Height,
		Holders:    res.Holders(),
		Total:      res.Total.String(),
		File:       file,
		FinishedAt: res.FinishedAt.UTC(),
	}
}

// StreamName is the stream every completed run is also appended to, for late readers.
func StreamName(channel string) string {
	return channel + ":stream"
}

// NotifySnapshot publishes msg on channel and appends it to the channel's stream.
// Both writes are best-effort.
func (c *Client) NotifySnapshot(ctx context.Context, channel string, msg SnapshotCompleted) {
	payload, err := json.Marshal(msg)
	if err != nil {
		c.logger.Warn("Failed to encode snapshot notification", zap.Error(err))
		return
	}
	c.Publish(ctx, channel, payload)
	c.XAdd(ctx, StreamName(channel), map[string]interface{}{
		"runId":  msg.RunID,
		"height": msg.Height,
		"data":   string(payload),
	})
}
