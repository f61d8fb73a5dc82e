package reservations

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

const insertIfAvailable = `
INSERT INTO stock_reservations (variant_id, quantity, expires_at, checkout_session_ref, created_at)
SELECT v.id, ?, ?, ?, ?
FROM product_variants v
WHERE v.id = ?
  AND v.stock - COALESCE((
    SELECT SUM(r.quantity) FROM stock_reservations r
    WHERE r.variant_id = v.id AND r.expires_at > ?
  ), 0) >= ?`

// Repository persists stock reservations.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// LockVariants takes row locks on the variants in id order and returns them.
func (r *Repository) LockVariants(ctx context.Context, ids []int64) ([]models.ProductVariant, error) {
	var rows []models.ProductVariant
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", ids).
		Order("id ASC").
		Find(&rows).Error
	return rows, err
}

// InsertIfAvailable inserts a reservation only when stock net of active
// reservations covers qty. It reports whether the row was written.
func (r *Repository) InsertIfAvailable(ctx context.Context, ref string, variantID int64, qty int, expiresAt, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Exec(insertIfAvailable,
		qty, expiresAt.UTC(), ref, now.UTC(),
		variantID,
		now.UTC(), qty,
	)
	return res.RowsAffected > 0, res.Error
}

// ReservedQuantities sums active reservations per variant.
func (r *Repository) ReservedQuantities(ctx context.Context, variantIDs []int64, now time.Time) (map[int64]int, error) {
	type row struct {
		VariantID int64 `gorm:"column:variant_id"`
		Reserved  int   `gorm:"column:reserved"`
	}
	var rows []row
	err := r.db.WithContext(ctx).Model(&models.StockReservation{}).
		Select("variant_id, SUM(quantity) AS reserved").
		Where("variant_id IN ? AND expires_at > ?", variantIDs, now.UTC()).
		Group("variant_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[int64]int, len(rows))
	for _, rr := range rows {
		out[rr.VariantID] = rr.Reserved
	}
	return out, nil
}

// Stocks returns the stock column per variant.
func (r *Repository) Stocks(ctx context.Context, variantIDs []int64) (map[int64]int, error) {
	var rows []models.ProductVariant
	if err := r.db.WithContext(ctx).Select("id", "stock").Where("id IN ?", variantIDs).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[int64]int, len(rows))
	for _, v := range rows {
		out[v.ID] = v.Stock
	}
	return out, nil
}

// DeleteByRef removes every reservation for ref.
func (r *Repository) DeleteByRef(ctx context.Context, ref string) (int64, error) {
	res := r.db.WithContext(ctx).Where("checkout_session_ref = ?", ref).Delete(&models.StockReservation{})
	return res.RowsAffected, res.Error
}

// DeleteExpired removes reservations whose expiry is before now.
func (r *Repository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("expires_at < ?", now.UTC()).Delete(&models.StockReservation{})
	return res.RowsAffected, res.Error
}
