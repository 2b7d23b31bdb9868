package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spokeworks/bikeshop/internal/domain"
	"github.com/spokeworks/bikeshop/internal/repository"
	"github.com/spokeworks/bikeshop/pkg/database"
	apperrors "github.com/spokeworks/bikeshop/pkg/errors"
)

// CouponRepository implements repository.CouponRepository using PostgreSQL.
type CouponRepository struct {
	db database.DBTX
}

// NewCouponRepository creates a PostgreSQL-backed coupon repository.
func NewCouponRepository(db database.DBTX) *CouponRepository {
	return &CouponRepository{db: db}
}

const couponColumns = `id, code, description, discount_type, discount_value,
	   min_order_amount, max_discount_amount, status, max_usage_count,
	   current_usage_count, start_date, end_date, created_at, updated_at`

// Create inserts a new coupon.
func (r *CouponRepository) Create(ctx context.Context, c *domain.Coupon) error {
	query := `
		INSERT INTO coupons (
			id, code, description, discount_type, discount_value,
			min_order_amount, max_discount_amount, status, max_usage_count,
			current_usage_count, start_date, end_date, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := r.db.Exec(ctx, query,
		c.ID,
		c.Code,
		c.Description,
		c.DiscountType,
		c.DiscountValue,
		c.MinOrderAmount,
		c.MaxDiscountAmount,
		c.Status,
		c.MaxUsageCount,
		c.CurrentUsageCount,
		c.StartDate,
		c.EndDate,
		c.CreatedAt,
		c.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("coupon", "code", c.Code)
		}
		return fmt.Errorf("insert coupon: %w", err)
	}

	return nil
}

// GetByID retrieves a coupon by its ID.
func (r *CouponRepository) GetByID(ctx context.Context, id string) (*domain.Coupon, error) {
	query := fmt.Sprintf(`SELECT %s FROM coupons WHERE id = $1`, couponColumns)
	return r.scanCoupon(ctx, query, id)
}

// GetByCode retrieves a coupon by its code.
func (r *CouponRepository) GetByCode(ctx context.Context, code string) (*domain.Coupon, error) {
	query := fmt.Sprintf(`SELECT %s FROM coupons WHERE code = $1`, couponColumns)
	return r.scanCoupon(ctx, query, code)
}

// List returns coupons matching the filter with the total count.
func (r *CouponRepository) List(ctx context.Context, filter repository.CouponFilter) ([]domain.Coupon, int, error) {
	var (
		conditions []string
		args       []any
		argIndex   = 1
	)

	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIndex))
		args = append(args, *filter.Status)
		argIndex++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf(`
		SELECT %s, count(*) OVER() AS total_count
		FROM coupons
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`,
		couponColumns, whereClause, argIndex, argIndex+1,
	)

	limit := filter.PerPage
	if limit <= 0 {
		limit = 20
	}
	offset := 0
	if filter.Page > 1 {
		offset = (filter.Page - 1) * limit
	}
	args = append(args, limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list coupons: %w", err)
	}
	defer rows.Close()

	var (
		coupons    []domain.Coupon
		totalCount int
	)

	for rows.Next() {
		var c domain.Coupon
		if err := rows.Scan(
			&c.ID,
			&c.Code,
			&c.Description,
			&c.DiscountType,
			&c.DiscountValue,
			&c.MinOrderAmount,
			&c.MaxDiscountAmount,
			&c.Status,
			&c.MaxUsageCount,
			&c.CurrentUsageCount,
			&c.StartDate,
			&c.EndDate,
			&c.CreatedAt,
			&c.UpdatedAt,
			&totalCount,
		); err != nil {
			return nil, 0, fmt.Errorf("scan coupon row: %w", err)
		}
		coupons = append(coupons, c)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate coupon rows: %w", err)
	}

	if coupons == nil {
		coupons = []domain.Coupon{}
	}

	return coupons, totalCount, nil
}

// Update modifies an existing coupon.
func (r *CouponRepository) Update(ctx context.Context, c *domain.Coupon) error {
	c.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE coupons
		SET code = $1, description = $2, discount_type = $3, discount_value = $4,
		    min_order_amount = $5, max_discount_amount = $6, status = $7,
		    max_usage_count = $8, start_date = $9, end_date = $10, updated_at = $11
		WHERE id = $12`

	ct, err := r.db.Exec(ctx, query,
		c.Code,
		c.Description,
		c.DiscountType,
		c.DiscountValue,
		c.MinOrderAmount,
		c.MaxDiscountAmount,
		c.Status,
		c.MaxUsageCount,
		c.StartDate,
		c.EndDate,
		c.UpdatedAt,
		c.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("coupon", "code", c.Code)
		}
		return fmt.Errorf("update coupon: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("coupon", c.ID)
	}

	return nil
}

// Delete archives a coupon. Coupons referenced by past orders are never
// removed physically.
func (r *CouponRepository) Delete(ctx context.Context, id string) error {
	query := `
		UPDATE coupons
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status != $1`

	ct, err := r.db.Exec(ctx, query, domain.CouponStatusArchived, id)
	if err != nil {
		return fmt.Errorf("archive coupon: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("coupon", id)
	}

	return nil
}

// IncrementUsage atomically increments the coupon's usage counter.
func (r *CouponRepository) IncrementUsage(ctx context.Context, id string) error {
	query := `
		UPDATE coupons
		SET current_usage_count = current_usage_count + 1, updated_at = NOW()
		WHERE id = $1`

	ct, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("increment coupon usage: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("coupon", id)
	}

	return nil
}

// RecordUsage stores a redemption record.
func (r *CouponRepository) RecordUsage(ctx context.Context, usage *domain.CouponUsage) error {
	query := `
		INSERT INTO coupon_usages (id, coupon_id, user_id, order_id, discount_applied, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.db.Exec(ctx, query,
		usage.ID,
		usage.CouponID,
		usage.UserID,
		usage.OrderID,
		usage.DiscountApplied,
		usage.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("record coupon usage: %w", err)
	}

	return nil
}

// scanCoupon executes a query expected to return a single coupon row.
func (r *CouponRepository) scanCoupon(ctx context.Context, query string, args ...any) (*domain.Coupon, error) {
	var c domain.Coupon
	err := r.db.QueryRow(ctx, query, args...).Scan(
		&c.ID,
		&c.Code,
		&c.Description,
		&c.DiscountType,
		&c.DiscountValue,
		&c.MinOrderAmount,
		&c.MaxDiscountAmount,
		&c.Status,
		&c.MaxUsageCount,
		&c.CurrentUsageCount,
		&c.StartDate,
		&c.EndDate,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan coupon: %w", err)
	}

	return &c, nil
}

// isUniqueViolation checks for a PostgreSQL unique constraint violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "23505")
}
