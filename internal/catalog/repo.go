package catalog

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

// Repository persists products, variants, images and categories.
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

func preloadListing(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Variants", func(tx *gorm.DB) *gorm.DB { return tx.Order("id ASC") }).
		Preload("Images", func(tx *gorm.DB) *gorm.DB { return tx.Order("position ASC, id ASC") })
}

// ListProducts returns one cursor page (plus one lookahead row) ordered newest first.
func (r *Repository) ListProducts(ctx context.Context, filter ListFilter, cursor *pagination.Cursor) ([]models.Product, error) {
	q := preloadListing(r.db.WithContext(ctx)).Model(&models.Product{})
	if !filter.IncludeInactive {
		q = q.Where("products.status = ?", enums.ProductStatusActive)
	}
	if filter.Featured != nil {
		q = q.Where("products.featured = ?", *filter.Featured)
	}
	if slug := strings.TrimSpace(filter.CategorySlug); slug != "" {
		sub := r.db.Model(&models.Category{}).Select("id").
			Where("slug = ? OR parent_id IN (?)", slug, r.db.Model(&models.Category{}).Select("id").Where("slug = ?", slug))
		q = q.Where("products.category_id IN (?)", sub)
	}
	var rows []models.Product
	err := q.Scopes(pagination.Keyset("products", cursor, filter.Limit)).Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// FindBySlug loads a product with variants, images and category. Returns nil when absent.
func (r *Repository) FindBySlug(ctx context.Context, slug string) (*models.Product, error) {
	return r.findOne(ctx, "slug = ?", slug)
}

// FindByID loads a product with its associations. Returns nil when absent.
func (r *Repository) FindByID(ctx context.Context, id int64) (*models.Product, error) {
	return r.findOne(ctx, "id = ?", id)
}

func (r *Repository) findOne(ctx context.Context, query string, arg any) (*models.Product, error) {
	var product models.Product
	err := preloadListing(r.db.WithContext(ctx)).Preload("Category").Where(query, arg).Take(&product).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// Search matches active products by name, description or variant name.
func (r *Repository) Search(ctx context.Context, term string, limit int) ([]models.Product, error) {
	pattern := "%" + escapeLike(strings.ToLower(term)) + "%"
	variantMatch := r.db.Model(&models.ProductVariant{}).Select("1").
		Where("product_variants.product_id = products.id AND LOWER(product_variants.name) LIKE ? ESCAPE '\\'", pattern)

	var rows []models.Product
	err := preloadListing(r.db.WithContext(ctx)).
		Where("products.status = ?", enums.ProductStatusActive).
		Where(
			r.db.Where("LOWER(products.name) LIKE ? ESCAPE '\\'", pattern).
				Or("LOWER(products.description) LIKE ? ESCAPE '\\'", pattern).
				Or("EXISTS (?)", variantMatch),
		).
		Order("products.featured DESC").Order("products.name ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func escapeLike(term string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(term)
}

// CreateProduct inserts the product together with its variants and images.
func (r *Repository) CreateProduct(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Create(product).Error
}

// UpdateProductFields writes the scalar product columns.
func (r *Repository) UpdateProductFields(ctx context.Context, id int64, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&models.Product{}).Where("id = ?", id).Updates(fields).Error
}

// ReplaceVariants updates listed variants, inserts new ones and removes the rest.
// Existing stock is never touched here.
func (r *Repository) ReplaceVariants(ctx context.Context, productID int64, variants []models.ProductVariant) error {
	tx := r.db.WithContext(ctx)
	keep := make([]int64, 0, len(variants))
	for i := range variants {
		v := &variants[i]
		v.ProductID = productID
		if v.ID == 0 {
			if err := tx.Create(v).Error; err != nil {
				return err
			}
			keep = append(keep, v.ID)
			continue
		}
		res := tx.Model(&models.ProductVariant{}).
			Where("id = ? AND product_id = ?", v.ID, productID).
			Updates(map[string]any{
				"name":                v.Name,
				"sku":                 v.SKU,
				"price":               v.Price,
				"weight_grams":        v.WeightGrams,
				"low_stock_threshold": v.LowStockThreshold,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errVariantNotOwned
		}
		keep = append(keep, v.ID)
	}
	return tx.Where("product_id = ? AND id NOT IN ?", productID, keep).Delete(&models.ProductVariant{}).Error
}

// ReplaceImages swaps the product's image set.
func (r *Repository) ReplaceImages(ctx context.Context, productID int64, images []models.ProductImage) error {
	tx := r.db.WithContext(ctx)
	if err := tx.Where("product_id = ?", productID).Delete(&models.ProductImage{}).Error; err != nil {
		return err
	}
	if len(images) == 0 {
		return nil
	}
	for i := range images {
		images[i].ProductID = productID
	}
	return tx.Create(&images).Error
}

// DeleteProduct removes the product and its owned rows. Returns false when absent.
func (r *Repository) DeleteProduct(ctx context.Context, id int64) (bool, error) {
	tx := r.db.WithContext(ctx)
	if err := tx.Where("product_id = ?", id).Delete(&models.ProductImage{}).Error; err != nil {
		return false, err
	}
	if err := tx.Where("product_id = ?", id).Delete(&models.ProductVariant{}).Error; err != nil {
		return false, err
	}
	res := tx.Where("id = ?", id).Delete(&models.Product{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// SetFeatured flags the given products and returns how many rows changed.
func (r *Repository) SetFeatured(ctx context.Context, ids []int64, featured bool, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Product{}).
		Where("id IN ?", ids).
		Updates(map[string]any{"featured": featured, "updated_at": now})
	return res.RowsAffected, res.Error
}

// ListCategories returns categories ordered for tree building.
func (r *Repository) ListCategories(ctx context.Context, includeHidden bool) ([]models.Category, error) {
	q := r.db.WithContext(ctx).Model(&models.Category{})
	if !includeHidden {
		q = q.Where("status = ?", enums.CategoryStatusActive)
	}
	var rows []models.Category
	if err := q.Order("position ASC").Order("name ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// FindCategory loads a category by id. Returns nil when absent.
func (r *Repository) FindCategory(ctx context.Context, id int64) (*models.Category, error) {
	var category models.Category
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&category).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &category, nil
}

// CreateCategory inserts a category row.
func (r *Repository) CreateCategory(ctx context.Context, category *models.Category) error {
	return r.db.WithContext(ctx).Create(category).Error
}
