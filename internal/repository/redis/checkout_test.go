package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spokeworks/bikeshop/internal/domain"
	apperrors "github.com/spokeworks/bikeshop/pkg/errors"
)

func setupSnapshotRepo(t *testing.T) *SnapshotRepository {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewSnapshotRepository(client, 30*time.Minute)
}

func testSnapshot() *domain.CheckoutSnapshot {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &domain.CheckoutSnapshot{
		ID:            "snap-001",
		UserID:        "user-001",
		Subtotal:      10000,
		Discount:      1000,
		CouponID:      "c-1",
		CouponCode:    "SAVE10",
		Shipping:      0,
		ShippingState: domain.SnapshotShippingFree,
		Total:         9000,
		Currency:      "GBP",
		CreatedAt:     now,
		ExpiresAt:     now.Add(30 * time.Minute),
	}
}

func TestSnapshotRepository_PutGet(t *testing.T) {
	repo := setupSnapshotRepo(t)
	ctx := context.Background()

	snap := testSnapshot()
	require.NoError(t, repo.Put(ctx, snap))

	got, err := repo.Get(ctx, snap.UserID)
	require.NoError(t, err)
	assert.Equal(t, snap.Total, got.Total)
	assert.Equal(t, snap.CouponCode, got.CouponCode)
	assert.Equal(t, domain.SnapshotShippingFree, got.ShippingState)

	// Get does not consume; a second read still succeeds.
	_, err = repo.Get(ctx, snap.UserID)
	assert.NoError(t, err)
}

func TestSnapshotRepository_Get_Missing(t *testing.T) {
	repo := setupSnapshotRepo(t)

	_, err := repo.Get(context.Background(), "user-404")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestSnapshotRepository_Take_ConsumesExactlyOnce(t *testing.T) {
	repo := setupSnapshotRepo(t)
	ctx := context.Background()

	snap := testSnapshot()
	require.NoError(t, repo.Put(ctx, snap))

	got, err := repo.Take(ctx, snap.UserID)
	require.NoError(t, err)
	assert.Equal(t, snap.Total, got.Total)

	// Second take fails: the snapshot is single-use.
	_, err = repo.Take(ctx, snap.UserID)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))

	_, err = repo.Get(ctx, snap.UserID)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestSnapshotRepository_Put_ReplacesPrevious(t *testing.T) {
	repo := setupSnapshotRepo(t)
	ctx := context.Background()

	first := testSnapshot()
	require.NoError(t, repo.Put(ctx, first))

	second := testSnapshot()
	second.ID = "snap-002"
	second.Subtotal = 4000
	second.Discount = 0
	second.CouponID = ""
	second.CouponCode = ""
	second.Shipping = 500
	second.ShippingState = domain.SnapshotShippingCharged
	second.Total = 4500
	require.NoError(t, repo.Put(ctx, second))

	got, err := repo.Get(ctx, first.UserID)
	require.NoError(t, err)
	assert.Equal(t, "snap-002", got.ID)
	assert.Equal(t, int64(4500), got.Total)
}

func TestSnapshotRepository_Delete(t *testing.T) {
	repo := setupSnapshotRepo(t)
	ctx := context.Background()

	snap := testSnapshot()
	require.NoError(t, repo.Put(ctx, snap))
	require.NoError(t, repo.Delete(ctx, snap.UserID))

	_, err := repo.Get(ctx, snap.UserID)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}
