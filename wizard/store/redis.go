package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// SnapshotKeyPrefix namespaces the per-client snapshot keys. The cleanup
// scanner matches on it as well.
const SnapshotKeyPrefix = "wizard:snapshot:"

// snapshotTTL bounds how long an abandoned wizard survives in Redis. It is
// deliberately much longer than the payment validity window.
const snapshotTTL = 7 * 24 * time.Hour

// RedisPersister stores snapshots as JSON under wizard:snapshot:<clientID>.
// Writes are synchronous single SETs, so concurrent tabs get last-write-wins
// on the whole snapshot rather than interleaved fields.
type RedisPersister struct {
	client *redis.Client
}

func NewRedisPersister(client *redis.Client) *RedisPersister {
	return &RedisPersister{client: client}
}

func snapshotKey(clientID uuid.UUID) string {
	return fmt.Sprintf("%s%s", SnapshotKeyPrefix, clientID)
}

func (p *RedisPersister) Save(ctx context.Context, clientID uuid.UUID, snap *Snapshot) error {
	data, err := snap.Serialize()
	if err != nil {
		return err
	}
	if err := p.client.Set(ctx, snapshotKey(clientID), data, snapshotTTL).Err(); err != nil {
		return fmt.Errorf("failed to write snapshot to redis: %w", err)
	}
	return nil
}

func (p *RedisPersister) Load(ctx context.Context, clientID uuid.UUID) (*Snapshot, error) {
	data, err := p.client.Get(ctx, snapshotKey(clientID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot from redis: %w", err)
	}
	return DeserializeSnapshot(data)
}

func (p *RedisPersister) Delete(ctx context.Context, clientID uuid.UUID) error {
	if err := p.client.Del(ctx, snapshotKey(clientID)).Err(); err != nil {
		return fmt.Errorf("failed to delete snapshot from redis: %w", err)
	}
	return nil
}
