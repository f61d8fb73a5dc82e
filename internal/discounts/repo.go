package discounts

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

// Repository persists discount codes.
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

// FindActiveByCode returns the active code or nil.
func (r *Repository) FindActiveByCode(ctx context.Context, code string) (*models.DiscountCode, error) {
	var row models.DiscountCode
	err := r.db.WithContext(ctx).Where("code = ? AND active = ?", code, true).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// FindByID returns the code or nil.
func (r *Repository) FindByID(ctx context.Context, id int64) (*models.DiscountCode, error) {
	var row models.DiscountCode
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// List returns every code, newest first.
func (r *Repository) List(ctx context.Context) ([]models.DiscountCode, error) {
	var rows []models.DiscountCode
	if err := r.db.WithContext(ctx).Order("created_at DESC").Order("id DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Create inserts a code. The active column defaults to true, so an inactive
// code is written in a second statement.
func (r *Repository) Create(ctx context.Context, row *models.DiscountCode) error {
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return err
	}
	if row.Active {
		return nil
	}
	return r.db.WithContext(ctx).Model(row).Update("active", false).Error
}

// Save writes every column of row.
func (r *Repository) Save(ctx context.Context, row *models.DiscountCode) error {
	return r.db.WithContext(ctx).Save(row).Error
}

// Delete removes the code and reports whether it existed.
func (r *Repository) Delete(ctx context.Context, id int64) (bool, error) {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.DiscountCode{})
	return res.RowsAffected > 0, res.Error
}

// IncrementUses bumps uses_count relative to its stored value.
func (r *Repository) IncrementUses(ctx context.Context, code string) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.DiscountCode{}).
		Where("code = ?", code).
		Update("uses_count", gorm.Expr("uses_count + ?", 1))
	return res.RowsAffected, res.Error
}
