package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/spokeworks/bikeshop/internal/pricing"
	apperrors "github.com/spokeworks/bikeshop/pkg/errors"
)

func newTestShippingService(repo *mockShippingSettingsRepository, cacheTTL time.Duration) *ShippingService {
	return NewShippingService(repo, newTestLogger(), cacheTTL)
}

func TestShippingQuote_BelowThreshold(t *testing.T) {
	repo := new(mockShippingSettingsRepository)
	svc := newTestShippingService(repo, time.Minute)
	ctx := context.Background()

	repo.On("Get", ctx).Return(standardShipping(), nil)

	quote, err := svc.Quote(ctx, 4000)

	require.NoError(t, err)
	assert.Equal(t, pricing.QuoteCharged, quote.State)
	assert.Equal(t, int64(500), quote.Cost)
}

func TestShippingQuote_AtThreshold(t *testing.T) {
	repo := new(mockShippingSettingsRepository)
	svc := newTestShippingService(repo, time.Minute)
	ctx := context.Background()

	repo.On("Get", ctx).Return(standardShipping(), nil)

	quote, err := svc.Quote(ctx, 5000)

	require.NoError(t, err)
	assert.Equal(t, pricing.QuoteFree, quote.State)
	assert.Equal(t, int64(0), quote.Cost)
}

func TestShippingQuote_NoSettingsIsUnknownNotFree(t *testing.T) {
	repo := new(mockShippingSettingsRepository)
	svc := newTestShippingService(repo, time.Minute)
	ctx := context.Background()

	repo.On("Get", ctx).Return(nil, apperrors.NotFound("shipping settings", "1"))

	quote, err := svc.Quote(ctx, 100000)

	require.NoError(t, err)
	assert.Equal(t, pricing.QuoteUnknown, quote.State)
	assert.False(t, quote.Known())
}

func TestAmountNeededForFreeShipping(t *testing.T) {
	repo := new(mockShippingSettingsRepository)
	svc := newTestShippingService(repo, time.Minute)
	ctx := context.Background()

	repo.On("Get", ctx).Return(standardShipping(), nil)

	// £40 against a £50 threshold: £10 to go.
	needed, err := svc.AmountNeededForFreeShipping(ctx, 4000)

	require.NoError(t, err)
	assert.Equal(t, int64(1000), needed)
}

func TestShippingSettings_CachedWithinTTL(t *testing.T) {
	repo := new(mockShippingSettingsRepository)
	svc := newTestShippingService(repo, time.Minute)
	ctx := context.Background()

	repo.On("Get", ctx).Return(standardShipping(), nil).Once()

	_, err := svc.Quote(ctx, 4000)
	require.NoError(t, err)
	_, err = svc.Quote(ctx, 6000)
	require.NoError(t, err)

	repo.AssertExpectations(t)
}

func TestUpsertSettings_InvalidatesCache(t *testing.T) {
	repo := new(mockShippingSettingsRepository)
	svc := newTestShippingService(repo, time.Minute)
	ctx := context.Background()

	repo.On("Upsert", ctx, mock.AnythingOfType("*domain.ShippingSettings")).Return(nil)

	settings, err := svc.UpsertSettings(ctx, UpsertShippingSettingsInput{
		ShippingCharge:        700,
		FreeShippingThreshold: 8000,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(700), settings.ShippingCharge)

	// The fresh settings are served from cache without touching the repo.
	quote, err := svc.Quote(ctx, 4000)
	require.NoError(t, err)
	assert.Equal(t, int64(700), quote.Cost)

	repo.AssertNotCalled(t, "Get")
}

func TestUpsertSettings_RejectsNegativeValues(t *testing.T) {
	repo := new(mockShippingSettingsRepository)
	svc := newTestShippingService(repo, time.Minute)
	ctx := context.Background()

	_, err := svc.UpsertSettings(ctx, UpsertShippingSettingsInput{ShippingCharge: -1})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = svc.UpsertSettings(ctx, UpsertShippingSettingsInput{FreeShippingThreshold: -1})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}
