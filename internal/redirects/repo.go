package redirects

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

// Repository persists path redirects.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// FindActive returns the active redirect for fromPath or nil.
func (r *Repository) FindActive(ctx context.Context, fromPath string) (*models.Redirect, error) {
	var row models.Redirect
	err := r.db.WithContext(ctx).Where("from_path = ? AND active = ?", fromPath, true).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// IncrementHits bumps the hit counter with a relative update.
func (r *Repository) IncrementHits(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Model(&models.Redirect{}).
		Where("id = ?", id).
		UpdateColumn("hits", gorm.Expr("hits + 1")).Error
}

func (r *Repository) List(ctx context.Context) ([]models.Redirect, error) {
	var rows []models.Redirect
	if err := r.db.WithContext(ctx).Order("from_path ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Create inserts a redirect. The active column defaults to true, so an
// inactive redirect is written in a second statement.
func (r *Repository) Create(ctx context.Context, row *models.Redirect) error {
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return err
	}
	if row.Active {
		return nil
	}
	return r.db.WithContext(ctx).Model(&models.Redirect{}).Where("id = ?", row.ID).Update("active", false).Error
}

// Delete removes a redirect and reports whether it existed.
func (r *Repository) Delete(ctx context.Context, id int64) (bool, error) {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Redirect{})
	return res.RowsAffected > 0, res.Error
}
