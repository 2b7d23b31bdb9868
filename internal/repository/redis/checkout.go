package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spokeworks/bikeshop/internal/domain"
	apperrors "github.com/spokeworks/bikeshop/pkg/errors"
)

const snapshotKeyPrefix = "checkout:snapshot:"

// SnapshotRepository implements repository.SnapshotRepository using Redis.
// One snapshot per user; the TTL bounds how long an abandoned checkout
// lingers.
type SnapshotRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSnapshotRepository creates a Redis-backed checkout snapshot repository.
func NewSnapshotRepository(client *redis.Client, ttl time.Duration) *SnapshotRepository {
	return &SnapshotRepository{
		client: client,
		ttl:    ttl,
	}
}

// Put stores the snapshot, replacing any previous one for the user.
func (r *SnapshotRepository) Put(ctx context.Context, snapshot *domain.CheckoutSnapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal checkout snapshot: %w", err)
	}

	if err := r.client.Set(ctx, snapshotKeyPrefix+snapshot.UserID, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set checkout snapshot: %w", err)
	}

	return nil
}

// Get retrieves the snapshot without consuming it.
func (r *SnapshotRepository) Get(ctx context.Context, userID string) (*domain.CheckoutSnapshot, error) {
	data, err := r.client.Get(ctx, snapshotKeyPrefix+userID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperrors.NotFound("checkout snapshot", userID)
		}
		return nil, fmt.Errorf("redis get checkout snapshot: %w", err)
	}

	return unmarshalSnapshot(data)
}

// Take atomically retrieves and deletes the snapshot via GETDEL, so two
// concurrent placements cannot both consume it.
func (r *SnapshotRepository) Take(ctx context.Context, userID string) (*domain.CheckoutSnapshot, error) {
	data, err := r.client.GetDel(ctx, snapshotKeyPrefix+userID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperrors.NotFound("checkout snapshot", userID)
		}
		return nil, fmt.Errorf("redis getdel checkout snapshot: %w", err)
	}

	return unmarshalSnapshot(data)
}

// Delete discards the snapshot.
func (r *SnapshotRepository) Delete(ctx context.Context, userID string) error {
	if err := r.client.Del(ctx, snapshotKeyPrefix+userID).Err(); err != nil {
		return fmt.Errorf("redis del checkout snapshot: %w", err)
	}
	return nil
}

func unmarshalSnapshot(data []byte) (*domain.CheckoutSnapshot, error) {
	var snapshot domain.CheckoutSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("unmarshal checkout snapshot: %w", err)
	}
	return &snapshot, nil
}
