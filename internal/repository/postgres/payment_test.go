package postgres

import (
	"context"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spokeworks/bikeshop/internal/domain"
	"github.com/spokeworks/bikeshop/pkg/database"
	apperrors "github.com/spokeworks/bikeshop/pkg/errors"
)

func setupPaymentRepo(t *testing.T) (*PaymentRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	return NewPaymentRepository(mock), mock
}

func samplePaymentIntent() *domain.PaymentIntent {
	now := time.Date(2026, 8, 20, 9, 30, 0, 0, time.UTC)
	return &domain.PaymentIntent{
		ID:           "pay-001",
		UserID:       "user-001",
		SnapshotID:   "snap-001",
		Amount:       9000,
		Currency:     "GBP",
		Status:       domain.PaymentStatusPending,
		ProviderName: "cardprovider",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestPaymentRepository_Create(t *testing.T) {
	repo, mock := setupPaymentRepo(t)
	defer mock.Close()

	p := samplePaymentIntent()
	mock.ExpectExec("INSERT INTO payment_intents").
		WithArgs(
			p.ID, p.UserID, p.SnapshotID, p.OrderID, p.Amount, p.Currency, p.Status,
			p.ProviderName, p.ProviderRef, p.FailureReason, p.CreatedAt, p.UpdatedAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	assert.NoError(t, repo.Create(context.Background(), p))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepository_GetByID(t *testing.T) {
	repo, mock := setupPaymentRepo(t)
	defer mock.Close()

	p := samplePaymentIntent()
	rows := pgxmock.NewRows([]string{
		"id", "user_id", "snapshot_id", "order_id", "amount", "currency", "status",
		"provider_name", "provider_ref", "failure_reason", "created_at", "updated_at",
	}).AddRow(
		p.ID, p.UserID, p.SnapshotID, p.OrderID, p.Amount, p.Currency, p.Status,
		p.ProviderName, p.ProviderRef, p.FailureReason, p.CreatedAt, p.UpdatedAt,
	)

	mock.ExpectQuery("SELECT .+ FROM payment_intents").
		WithArgs(p.ID).
		WillReturnRows(rows)

	got, err := repo.GetByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.Amount, got.Amount)
	assert.Equal(t, domain.PaymentStatusPending, got.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepository_GetByID_NotFound(t *testing.T) {
	repo, mock := setupPaymentRepo(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT .+ FROM payment_intents").
		WithArgs("missing").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "user_id", "snapshot_id", "order_id", "amount", "currency", "status",
			"provider_name", "provider_ref", "failure_reason", "created_at", "updated_at",
		}))

	_, err := repo.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepository_UpdateStatus_CapturedUnreconciled(t *testing.T) {
	repo, mock := setupPaymentRepo(t)
	defer mock.Close()

	p := samplePaymentIntent()
	p.Status = domain.PaymentStatusCapturedUnreconciled
	p.ProviderRef = "ch_abc123"
	p.FailureReason = "order confirmation failed after capture"

	mock.ExpectExec("UPDATE payment_intents").
		WithArgs(p.Status, p.ProviderRef, p.OrderID, p.FailureReason, pgxmock.AnyArg(), p.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	assert.NoError(t, repo.UpdateStatus(context.Background(), p))
	assert.NoError(t, mock.ExpectationsWereMet())
}
