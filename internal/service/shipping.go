package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/spokeworks/bikeshop/internal/domain"
	"github.com/spokeworks/bikeshop/internal/pricing"
	"github.com/spokeworks/bikeshop/internal/repository"
	apperrors "github.com/spokeworks/bikeshop/pkg/errors"
)

// UpsertShippingSettingsInput holds the admin-configurable shipping values.
type UpsertShippingSettingsInput struct {
	ShippingCharge        int64 `json:"shipping_charge" validate:"gte=0"`
	FreeShippingThreshold int64 `json:"free_shipping_threshold" validate:"gte=0"`
}

// ShippingService serves shipping settings and quotes. Settings are cached
// in-process with a short TTL since every storefront page needs them.
type ShippingService struct {
	repo   repository.ShippingSettingsRepository
	logger *slog.Logger

	mu       sync.RWMutex
	cached   *domain.ShippingSettings
	cachedAt time.Time
	cacheTTL time.Duration
}

// NewShippingService creates a shipping service.
func NewShippingService(repo repository.ShippingSettingsRepository, logger *slog.Logger, cacheTTL time.Duration) *ShippingService {
	return &ShippingService{
		repo:     repo,
		logger:   logger,
		cacheTTL: cacheTTL,
	}
}

// Settings returns the current shipping settings, or nil when none are
// configured yet. Callers must treat nil as "unknown", never as free.
func (s *ShippingService) Settings(ctx context.Context) (*pricing.Settings, error) {
	stored, err := s.load(ctx)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load shipping settings: %w", err)
	}
	return &pricing.Settings{
		ShippingCharge:        stored.ShippingCharge,
		FreeShippingThreshold: stored.FreeShippingThreshold,
	}, nil
}

// Quote evaluates the shipping cost for an effective order amount.
// Settings that have not loaded yield an unknown quote.
func (s *ShippingService) Quote(ctx context.Context, effectiveAmount int64) (pricing.ShippingQuote, error) {
	if effectiveAmount < 0 {
		return pricing.ShippingQuote{}, apperrors.InvalidInput("amount must not be negative")
	}
	settings, err := s.Settings(ctx)
	if err != nil {
		return pricing.ShippingQuote{}, err
	}
	return pricing.QuoteShipping(effectiveAmount, settings), nil
}

// AmountNeededForFreeShipping returns how much more the shopper needs to add
// for free shipping. Zero means already qualified or settings are unknown.
func (s *ShippingService) AmountNeededForFreeShipping(ctx context.Context, effectiveAmount int64) (int64, error) {
	settings, err := s.Settings(ctx)
	if err != nil {
		return 0, err
	}
	return pricing.AmountNeededForFreeShipping(effectiveAmount, settings), nil
}

// GetSettings returns the stored settings row for the admin surface.
func (s *ShippingService) GetSettings(ctx context.Context) (*domain.ShippingSettings, error) {
	return s.load(ctx)
}

// UpsertSettings stores new shipping settings and invalidates the cache.
func (s *ShippingService) UpsertSettings(ctx context.Context, input UpsertShippingSettingsInput) (*domain.ShippingSettings, error) {
	if input.ShippingCharge < 0 {
		return nil, apperrors.InvalidInput("shipping charge must not be negative")
	}
	if input.FreeShippingThreshold < 0 {
		return nil, apperrors.InvalidInput("free shipping threshold must not be negative")
	}

	settings := &domain.ShippingSettings{
		ShippingCharge:        input.ShippingCharge,
		FreeShippingThreshold: input.FreeShippingThreshold,
		UpdatedAt:             time.Now().UTC(),
	}
	if err := s.repo.Upsert(ctx, settings); err != nil {
		return nil, fmt.Errorf("upsert shipping settings: %w", err)
	}

	s.mu.Lock()
	s.cached = settings
	s.cachedAt = time.Now()
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "shipping settings updated",
		slog.Int64("shipping_charge", settings.ShippingCharge),
		slog.Int64("free_shipping_threshold", settings.FreeShippingThreshold),
	)

	return settings, nil
}

func (s *ShippingService) load(ctx context.Context) (*domain.ShippingSettings, error) {
	s.mu.RLock()
	if s.cached != nil && time.Since(s.cachedAt) < s.cacheTTL {
		cached := s.cached
		s.mu.RUnlock()
		return cached, nil
	}
	s.mu.RUnlock()

	settings, err := s.repo.Get(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cached = settings
	s.cachedAt = time.Now()
	s.mu.Unlock()

	return settings, nil
}
