package domain

import "time"

// Payment intent status constants.
const (
	PaymentStatusPending  = "pending"
	PaymentStatusCaptured = "captured"
	PaymentStatusFailed   = "failed"
	PaymentStatusCanceled = "canceled"
	PaymentStatusRefunded = "refunded"
	// PaymentStatusCapturedUnreconciled marks the severe case: the provider
	// captured the charge but the order record could not be written. The
	// customer must contact support, never retry payment.
	PaymentStatusCapturedUnreconciled = "captured_unreconciled"
)

// PaymentIntent tracks a card charge through the two-phase placement flow:
// create intent for the snapshot total, provider captures, then the order is
// confirmed against the captured intent.
type PaymentIntent struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	SnapshotID    string    `json:"snapshot_id"`
	OrderID       string    `json:"order_id,omitempty"`
	Amount        int64     `json:"amount"`
	Currency      string    `json:"currency"`
	Status        string    `json:"status"`
	ProviderName  string    `json:"provider_name"`
	ProviderRef   string    `json:"provider_ref,omitempty"`
	ClientSecret  string    `json:"client_secret,omitempty"`
	FailureReason string    `json:"failure_reason,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ValidPaymentStatuses returns all valid payment intent statuses.
func ValidPaymentStatuses() []string {
	return []string{
		PaymentStatusPending,
		PaymentStatusCaptured,
		PaymentStatusFailed,
		PaymentStatusCanceled,
		PaymentStatusRefunded,
		PaymentStatusCapturedUnreconciled,
	}
}

// IsValidPaymentStatus checks whether the given status is valid.
func IsValidPaymentStatus(status string) bool {
	for _, s := range ValidPaymentStatuses() {
		if s == status {
			return true
		}
	}
	return false
}

// IsCaptured reports whether money has actually been taken for this intent.
func (p *PaymentIntent) IsCaptured() bool {
	return p.Status == PaymentStatusCaptured || p.Status == PaymentStatusCapturedUnreconciled
}
