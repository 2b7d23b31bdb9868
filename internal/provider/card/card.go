// Package card is the HTTP client for the real card payment provider. Calls
// run through a circuit breaker so a struggling provider degrades checkout
// gracefully instead of piling up timeouts.
package card

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/spokeworks/bikeshop/internal/provider"
	"github.com/spokeworks/bikeshop/pkg/httpclient"
)

// Config holds the card provider connection settings.
type Config struct {
	BaseURL string
	APIKey  string
}

// Provider talks to the card payment provider's REST API.
type Provider struct {
	client *httpclient.CircuitBreakerClient
	cfg    Config
	logger *slog.Logger
}

// New creates a card provider client with circuit breaker protection.
func New(cfg Config, client *httpclient.CircuitBreakerClient, logger *slog.Logger) *Provider {
	return &Provider{
		client: client,
		cfg:    cfg,
		logger: logger,
	}
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "cardprovider"
}

type intentRequest struct {
	Amount      int64             `json:"amount"`
	Currency    string            `json:"currency"`
	Description string            `json:"description,omitempty"`
	Reference   string            `json:"reference,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type intentResponse struct {
	ID            string `json:"id"`
	ClientSecret  string `json:"client_secret"`
	Status        string `json:"status"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
	FailureReason string `json:"failure_reason,omitempty"`
}

type refundRequest struct {
	IntentID string `json:"intent_id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Reason   string `json:"reason,omitempty"`
}

type refundResponse struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	FailureReason string `json:"failure_reason,omitempty"`
}

// CreateIntent registers a payment intent with the provider.
func (p *Provider) CreateIntent(ctx context.Context, input *provider.CreateIntentInput) (*provider.Intent, error) {
	body, err := json.Marshal(intentRequest{
		Amount:      input.Amount,
		Currency:    input.Currency,
		Description: input.Description,
		Reference:   input.Reference,
		Metadata:    input.Metadata,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal intent request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/v1/intents", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create intent request: %w", err)
	}
	p.setHeaders(req)

	resp, err := p.client.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("card provider create intent: %w", err)
	}

	return p.decodeIntent(resp)
}

// RetrieveIntent fetches the current state of an intent from the provider.
func (p *Provider) RetrieveIntent(ctx context.Context, providerRef string) (*provider.Intent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.BaseURL+"/v1/intents/"+providerRef, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create retrieve request: %w", err)
	}
	p.setHeaders(req)

	resp, err := p.client.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("card provider retrieve intent: %w", err)
	}

	return p.decodeIntent(resp)
}

// Refund refunds a captured intent.
func (p *Provider) Refund(ctx context.Context, input *provider.RefundInput) (*provider.RefundResult, error) {
	body, err := json.Marshal(refundRequest{
		IntentID: input.ProviderRef,
		Amount:   input.Amount,
		Currency: input.Currency,
		Reason:   input.Reason,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal refund request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/v1/refunds", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create refund request: %w", err)
	}
	p.setHeaders(req)

	resp, err := p.client.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("card provider refund: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, httpclient.ParseResponseError(resp, "cardprovider")
	}

	var rr refundResponse
	if err := json.NewDecoder(resp.Body).Decode(&rr); err != nil {
		return nil, fmt.Errorf("decode refund response: %w", err)
	}

	return &provider.RefundResult{
		ProviderRefundID: rr.ID,
		Status:           rr.Status,
		FailureReason:    rr.FailureReason,
	}, nil
}

func (p *Provider) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
}

func (p *Provider) decodeIntent(resp *http.Response) (*provider.Intent, error) {
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, httpclient.ParseResponseError(resp, "cardprovider")
	}
	defer func() { _ = resp.Body.Close() }()

	var ir intentResponse
	if err := json.NewDecoder(resp.Body).Decode(&ir); err != nil {
		return nil, fmt.Errorf("decode intent response: %w", err)
	}

	return &provider.Intent{
		ProviderRef:   ir.ID,
		ClientSecret:  ir.ClientSecret,
		Status:        ir.Status,
		Amount:        ir.Amount,
		Currency:      ir.Currency,
		FailureReason: ir.FailureReason,
	}, nil
}
