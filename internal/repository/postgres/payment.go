package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spokeworks/bikeshop/internal/domain"
	"github.com/spokeworks/bikeshop/pkg/database"
	apperrors "github.com/spokeworks/bikeshop/pkg/errors"
)

// PaymentRepository implements repository.PaymentRepository using PostgreSQL.
type PaymentRepository struct {
	db database.DBTX
}

// NewPaymentRepository creates a PostgreSQL-backed payment intent repository.
func NewPaymentRepository(db database.DBTX) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// Create inserts a new payment intent.
func (r *PaymentRepository) Create(ctx context.Context, p *domain.PaymentIntent) error {
	query := `
		INSERT INTO payment_intents (
			id, user_id, snapshot_id, order_id, amount, currency, status,
			provider_name, provider_ref, failure_reason, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := r.db.Exec(ctx, query,
		p.ID,
		p.UserID,
		p.SnapshotID,
		p.OrderID,
		p.Amount,
		p.Currency,
		p.Status,
		p.ProviderName,
		p.ProviderRef,
		p.FailureReason,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert payment intent: %w", err)
	}

	return nil
}

// GetByID retrieves a payment intent by its ID.
func (r *PaymentRepository) GetByID(ctx context.Context, id string) (*domain.PaymentIntent, error) {
	query := `
		SELECT id, user_id, snapshot_id, order_id, amount, currency, status,
		       provider_name, provider_ref, failure_reason, created_at, updated_at
		FROM payment_intents
		WHERE id = $1`

	var p domain.PaymentIntent
	err := r.db.QueryRow(ctx, query, id).Scan(
		&p.ID,
		&p.UserID,
		&p.SnapshotID,
		&p.OrderID,
		&p.Amount,
		&p.Currency,
		&p.Status,
		&p.ProviderName,
		&p.ProviderRef,
		&p.FailureReason,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("payment intent", id)
		}
		return nil, fmt.Errorf("scan payment intent: %w", err)
	}

	return &p, nil
}

// UpdateStatus transitions the intent, persisting the provider reference,
// linked order, and failure reason alongside the new status.
func (r *PaymentRepository) UpdateStatus(ctx context.Context, p *domain.PaymentIntent) error {
	p.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE payment_intents
		SET status = $1, provider_ref = $2, order_id = $3, failure_reason = $4, updated_at = $5
		WHERE id = $6`

	ct, err := r.db.Exec(ctx, query,
		p.Status,
		p.ProviderRef,
		p.OrderID,
		p.FailureReason,
		p.UpdatedAt,
		p.ID,
	)
	if err != nil {
		return fmt.Errorf("update payment intent: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("payment intent", p.ID)
	}

	return nil
}
