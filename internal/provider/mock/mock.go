package mock

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/spokeworks/bikeshop/internal/provider"
	apperrors "github.com/spokeworks/bikeshop/pkg/errors"
)

// Provider is an in-memory payment provider for development and tests.
// Created intents are captured immediately unless FailNext is armed.
type Provider struct {
	mu       sync.Mutex
	intents  map[string]*provider.Intent
	failNext bool
}

// NewProvider creates a mock payment provider.
func NewProvider() *Provider {
	return &Provider{
		intents: make(map[string]*provider.Intent),
	}
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "mock"
}

// FailNext makes the next CreateIntent produce a failed intent. Test hook.
func (p *Provider) FailNext() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failNext = true
}

// CreateIntent registers an intent and captures it immediately.
func (p *Provider) CreateIntent(_ context.Context, input *provider.CreateIntentInput) (*provider.Intent, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	intent := &provider.Intent{
		ProviderRef:  "mock_pi_" + uuid.New().String(),
		ClientSecret: "mock_secret_" + uuid.New().String(),
		Status:       provider.IntentStatusCaptured,
		Amount:       input.Amount,
		Currency:     input.Currency,
	}

	if p.failNext {
		p.failNext = false
		intent.Status = provider.IntentStatusFailed
		intent.FailureReason = "card declined"
	}

	p.intents[intent.ProviderRef] = intent
	return intent, nil
}

// RetrieveIntent returns a previously created intent.
func (p *Provider) RetrieveIntent(_ context.Context, providerRef string) (*provider.Intent, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	intent, ok := p.intents[providerRef]
	if !ok {
		return nil, apperrors.NotFound("payment intent", providerRef)
	}
	cpy := *intent
	return &cpy, nil
}

// Refund marks a captured intent as refunded.
func (p *Provider) Refund(_ context.Context, input *provider.RefundInput) (*provider.RefundResult, error) {
	return &provider.RefundResult{
		ProviderRefundID: "mock_re_" + uuid.New().String(),
		Status:           "succeeded",
	}, nil
}
