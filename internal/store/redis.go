package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/XavierBriggs/fortuna/services/live-sync/pkg/models"
	"github.com/redis/go-redis/v9"
)

// LatestSnapshotTTL bounds how long a mirrored snapshot outlives its feed
const LatestSnapshotTTL = 2 * time.Hour

// Mirror keeps the latest snapshot per sport in Redis and appends changed
// snapshots to a per-sport stream for downstream consumers.
type Mirror struct {
	client *redis.Client
}

// NewMirror creates a Redis snapshot mirror
func NewMirror(client *redis.Client) *Mirror {
	return &Mirror{client: client}
}

// WriteLatest stores the snapshot under odds:latest:<sport>
func (m *Mirror) WriteLatest(ctx context.Context, snap models.Snapshot) error {
	key := fmt.Sprintf("odds:latest:%s", snap.SportKey)

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshaling snapshot: %w", err)
	}

	return m.client.Set(ctx, key, data, LatestSnapshotTTL).Err()
}

// PublishStream appends the snapshot to the odds.live.<sport> stream
func (m *Mirror) PublishStream(ctx context.Context, snap models.Snapshot) error {
	streamKey := fmt.Sprintf("odds.live.%s", snap.SportKey)

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshaling snapshot: %w", err)
	}

	return m.client.XAdd(ctx, &redis.XAddArgs{
		Stream: streamKey,
		Values: map[string]interface{}{
			"data":       string(data),
			"sport_key":  snap.SportKey,
			"fetched_at": snap.FetchedAt.Format(time.RFC3339),
		},
	}).Err()
}
