package redis

import (
	"context"
	"encoding/json"
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

func setupCartRepo(t *testing.T) (*CartRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewCartRepository(client, 24*time.Hour), mr
}

func testCart() *domain.Cart {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &domain.Cart{
		ID:     "cart-001",
		UserID: "user-001",
		Items: []domain.CartItem{
			{ProductID: "prod-1", Name: "Inner tube", SKU: "TUBE-700C", Price: 600, Quantity: 2},
		},
		Currency:  "GBP",
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(24 * time.Hour),
	}
}

// ---------------------------------------------------------------------------
// Get
// ---------------------------------------------------------------------------

func TestCartRepository_Get_Success(t *testing.T) {
	repo, mr := setupCartRepo(t)

	cart := testCart()
	data, err := json.Marshal(cart)
	require.NoError(t, err)
	require.NoError(t, mr.Set("cart:"+cart.UserID, string(data)))

	got, err := repo.Get(context.Background(), cart.UserID)
	require.NoError(t, err)
	assert.Equal(t, cart.ID, got.ID)
	assert.Equal(t, cart.UserID, got.UserID)
	assert.Equal(t, cart.Version, got.Version)
	assert.Len(t, got.Items, 1)
}

func TestCartRepository_Get_NotFound(t *testing.T) {
	repo, _ := setupCartRepo(t)

	_, err := repo.Get(context.Background(), "missing-user")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

// ---------------------------------------------------------------------------
// Save
// ---------------------------------------------------------------------------

func TestCartRepository_Save_RoundTrip(t *testing.T) {
	repo, mr := setupCartRepo(t)

	cart := testCart()
	require.NoError(t, repo.Save(context.Background(), cart))

	got, err := repo.Get(context.Background(), cart.UserID)
	require.NoError(t, err)
	assert.Equal(t, cart.TotalAmount(), got.TotalAmount())

	// TTL was applied.
	ttl := mr.TTL("cart:" + cart.UserID)
	assert.Greater(t, ttl, time.Duration(0))
}

// ---------------------------------------------------------------------------
// SaveIfVersion
// ---------------------------------------------------------------------------

func TestCartRepository_SaveIfVersion_Matches(t *testing.T) {
	repo, _ := setupCartRepo(t)
	ctx := context.Background()

	cart := testCart()
	require.NoError(t, repo.Save(ctx, cart))

	updated := testCart()
	updated.Version = 2
	updated.Items = append(updated.Items, domain.CartItem{ProductID: "prod-2", Name: "Bike pump", Price: 2800, Quantity: 1})

	saved, err := repo.SaveIfVersion(ctx, updated, 1)
	require.NoError(t, err)
	assert.True(t, saved)

	got, err := repo.Get(ctx, cart.UserID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Version)
	assert.Len(t, got.Items, 2)
}

func TestCartRepository_SaveIfVersion_StaleVersion(t *testing.T) {
	repo, _ := setupCartRepo(t)
	ctx := context.Background()

	cart := testCart()
	cart.Version = 5
	require.NoError(t, repo.Save(ctx, cart))

	stale := testCart()
	stale.Version = 3
	saved, err := repo.SaveIfVersion(ctx, stale, 2)
	require.NoError(t, err)
	assert.False(t, saved)

	// The stored cart was not touched.
	got, err := repo.Get(ctx, cart.UserID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.Version)
}

func TestCartRepository_SaveIfVersion_MissingCartFreshVersion(t *testing.T) {
	repo, _ := setupCartRepo(t)
	ctx := context.Background()

	cart := testCart()
	saved, err := repo.SaveIfVersion(ctx, cart, 0)
	require.NoError(t, err)
	assert.True(t, saved)

	got, err := repo.Get(ctx, cart.UserID)
	require.NoError(t, err)
	assert.Equal(t, cart.ID, got.ID)
}

func TestCartRepository_SaveIfVersion_MissingCartNonzeroVersion(t *testing.T) {
	repo, _ := setupCartRepo(t)

	cart := testCart()
	saved, err := repo.SaveIfVersion(context.Background(), cart, 4)
	require.NoError(t, err)
	assert.False(t, saved)
}

// ---------------------------------------------------------------------------
// Delete
// ---------------------------------------------------------------------------

func TestCartRepository_Delete(t *testing.T) {
	repo, _ := setupCartRepo(t)
	ctx := context.Background()

	cart := testCart()
	require.NoError(t, repo.Save(ctx, cart))
	require.NoError(t, repo.Delete(ctx, cart.UserID))

	_, err := repo.Get(ctx, cart.UserID)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestCartRepository_Delete_MissingIsNoop(t *testing.T) {
	repo, _ := setupCartRepo(t)
	assert.NoError(t, repo.Delete(context.Background(), "missing-user"))
}
