package inventory

import (
	"context"

	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Repository applies stock mutations to product variants.
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

// VariantIDsForProducts expands product ids into their variant ids.
func (r *Repository) VariantIDsForProducts(ctx context.Context, productIDs []int64) ([]int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).Model(&models.ProductVariant{}).
		Where("product_id IN ?", productIDs).
		Order("id ASC").
		Pluck("id", &ids).Error
	return ids, err
}

// stockExpr builds the relative update for op. Decrement clamps at zero.
func stockExpr(op enums.InventoryOperation, value int) any {
	switch op {
	case enums.InventoryOperationIncrement:
		return gorm.Expr("stock + ?", value)
	case enums.InventoryOperationDecrement:
		return gorm.Expr("CASE WHEN stock > ? THEN stock - ? ELSE 0 END", value, value)
	default:
		return value
	}
}

// Apply runs op against every listed variant and returns the affected row count.
func (r *Repository) Apply(ctx context.Context, variantIDs []int64, op enums.InventoryOperation, value int) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.ProductVariant{}).
		Where("id IN ?", variantIDs).
		Update("stock", stockExpr(op, value))
	return res.RowsAffected, res.Error
}

// SetStock overwrites one variant's stock, reporting whether the variant exists.
func (r *Repository) SetStock(ctx context.Context, variantID int64, stock int) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.ProductVariant{}).
		Where("id = ?", variantID).
		Update("stock", stock)
	return res.RowsAffected > 0, res.Error
}

// FindVariant loads a variant by id.
func (r *Repository) FindVariant(ctx context.Context, id int64) (*models.ProductVariant, error) {
	var rows []models.ProductVariant
	if err := r.db.WithContext(ctx).Where("id = ?", id).Limit(1).Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// LowStockRow is a variant at or below its threshold joined with its product name.
type LowStockRow struct {
	VariantID         int64   `gorm:"column:variant_id"`
	ProductID         int64   `gorm:"column:product_id"`
	ProductName       string  `gorm:"column:product_name"`
	ProductSlug       string  `gorm:"column:product_slug"`
	VariantName       string  `gorm:"column:variant_name"`
	SKU               *string `gorm:"column:sku"`
	Stock             int     `gorm:"column:stock"`
	LowStockThreshold int     `gorm:"column:low_stock_threshold"`
}

// ListLowStock returns variants with stock <= low_stock_threshold, emptiest first.
func (r *Repository) ListLowStock(ctx context.Context, limit int) ([]LowStockRow, error) {
	var rows []LowStockRow
	err := r.db.WithContext(ctx).
		Table("product_variants AS v").
		Select(`v.id AS variant_id, v.product_id, p.name AS product_name, p.slug AS product_slug,
			v.name AS variant_name, v.sku, v.stock, v.low_stock_threshold`).
		Joins("JOIN products p ON p.id = v.product_id").
		Where("v.stock <= v.low_stock_threshold").
		Order("v.stock ASC, v.id ASC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}
