// Package provider abstracts the card payment provider behind an interface so
// the order service can run against the real HTTP provider in production and
// a mock in development and tests.
package provider

import "context"

// Intent statuses as reported by the provider.
const (
	IntentStatusPending  = "pending"
	IntentStatusCaptured = "captured"
	IntentStatusFailed   = "failed"
)

// CreateIntentInput holds the parameters for creating a payment intent.
type CreateIntentInput struct {
	Amount      int64
	Currency    string
	Description string
	Reference   string
	Metadata    map[string]string
}

// Intent is the provider's view of a payment intent.
type Intent struct {
	// ProviderRef is the provider's identifier for the intent.
	ProviderRef string
	// ClientSecret is handed to the storefront so the card form can
	// complete the charge directly with the provider.
	ClientSecret  string
	Status        string
	Amount        int64
	Currency      string
	FailureReason string
}

// RefundInput holds the parameters for refunding a captured intent.
type RefundInput struct {
	ProviderRef string
	Amount      int64
	Currency    string
	Reason      string
}

// RefundResult holds the outcome of a refund.
type RefundResult struct {
	ProviderRefundID string
	Status           string
	FailureReason    string
}

// Provider is the card payment provider integration.
type Provider interface {
	// Name returns the provider name (e.g. "mock", "cardprovider").
	Name() string

	// CreateIntent registers a payment intent for the given amount. The
	// amount is always the checkout snapshot total; no recomputation.
	CreateIntent(ctx context.Context, input *CreateIntentInput) (*Intent, error)

	// RetrieveIntent fetches the current state of an intent, used to
	// verify the charge was captured before confirming the order.
	RetrieveIntent(ctx context.Context, providerRef string) (*Intent, error)

	// Refund refunds a captured intent.
	Refund(ctx context.Context, input *RefundInput) (*RefundResult, error)
}
