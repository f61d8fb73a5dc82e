package catalog

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

const (
	DefaultSearchLimit = 10
	MaxSearchLimit     = 50
	defaultLowStock    = 5
)

var (
	slugPattern        = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)
	slugSanitizer      = regexp.MustCompile(`[^a-z0-9]+`)
	errVariantNotOwned = errors.New("variant does not belong to product")
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// AvailabilityReader reports sellable stock net of active reservations.
type AvailabilityReader interface {
	Available(ctx context.Context, variantIDs []int64, now time.Time) (map[int64]int, error)
}

// ServiceParams wires the catalog service.
type ServiceParams struct {
	Repo         *Repository
	Tx           txRunner
	Availability AvailabilityReader
	Logger       *logger.Logger
	Now          func() time.Time
}

// Service serves storefront catalog reads and admin catalog writes.
type Service struct {
	repo         *Repository
	tx           txRunner
	availability AvailabilityReader
	logg         *logger.Logger
	now          func() time.Time
}

// NewService validates params and builds a Service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		repo:         params.Repo,
		tx:           params.Tx,
		availability: params.Availability,
		logg:         params.Logger,
		now:          now,
	}, nil
}

// ListProducts returns a page of products for the storefront (or admin when
// IncludeInactive is set).
func (s *Service) ListProducts(ctx context.Context, filter ListFilter) (pagination.Page[ProductSummary], error) {
	cursor, err := pagination.ParseCursor(filter.Cursor)
	if err != nil {
		return pagination.Page[ProductSummary]{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.ListProducts(ctx, filter, cursor)
	if err != nil {
		return pagination.Page[ProductSummary]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}
	summaries := make([]ProductSummary, 0, len(rows))
	for _, row := range rows {
		summaries = append(summaries, toSummary(row))
	}
	return pagination.Trim(summaries, filter.Limit, func(p ProductSummary) pagination.Cursor {
		return pagination.Cursor{CreatedAt: p.CreatedAt, ID: p.ID}
	}), nil
}

// GetBySlug returns the product page for an active product.
func (s *Service) GetBySlug(ctx context.Context, slug string) (*ProductDetail, error) {
	product, err := s.repo.FindBySlug(ctx, strings.ToLower(strings.TrimSpace(slug)))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if product == nil || product.Status != enums.ProductStatusActive {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return s.detail(ctx, product)
}

// GetByID returns any product regardless of status (admin).
func (s *Service) GetByID(ctx context.Context, id int64) (*ProductDetail, error) {
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if product == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return s.detail(ctx, product)
}

func (s *Service) detail(ctx context.Context, product *models.Product) (*ProductDetail, error) {
	available := map[int64]int{}
	if s.availability != nil && len(product.Variants) > 0 {
		ids := make([]int64, 0, len(product.Variants))
		for _, v := range product.Variants {
			ids = append(ids, v.ID)
		}
		var err error
		available, err = s.availability.Available(ctx, ids, s.now().UTC())
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load availability")
		}
	}
	detail := toDetail(*product, available)
	return &detail, nil
}

// Search matches active products. Empty terms return an empty list.
func (s *Service) Search(ctx context.Context, term string, limit int) ([]ProductSummary, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return []ProductSummary{}, nil
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	if limit > MaxSearchLimit {
		limit = MaxSearchLimit
	}
	rows, err := s.repo.Search(ctx, term, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "search products")
	}
	out := make([]ProductSummary, 0, len(rows))
	for _, row := range rows {
		out = append(out, toSummary(row))
	}
	return out, nil
}

// Categories returns the category tree. Hidden categories are only included for admins.
func (s *Service) Categories(ctx context.Context, includeHidden bool) ([]CategoryNode, error) {
	rows, err := s.repo.ListCategories(ctx, includeHidden)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list categories")
	}
	return toCategoryTree(rows), nil
}

// CreateCategory adds a category. Categories nest one level deep.
func (s *Service) CreateCategory(ctx context.Context, input CreateCategoryInput) (*models.Category, error) {
	slug, err := normalizeSlug(input.Slug, input.Name)
	if err != nil {
		return nil, err
	}
	if input.ParentID != nil {
		parent, err := s.repo.FindCategory(ctx, *input.ParentID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load parent category")
		}
		if parent == nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "parent category not found")
		}
		if parent.ParentID != nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "parent category must be top level")
		}
	}
	status := enums.CategoryStatusActive
	if input.Hidden {
		status = enums.CategoryStatusHidden
	}
	category := &models.Category{
		Slug:     slug,
		Name:     strings.TrimSpace(input.Name),
		ParentID: input.ParentID,
		Position: input.Position,
		Status:   status,
	}
	if err := s.repo.CreateCategory(ctx, category); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "category slug already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create category")
	}
	return category, nil
}

// CreateProduct inserts a product with its variants and images.
func (s *Service) CreateProduct(ctx context.Context, input CreateProductInput) (*ProductDetail, error) {
	slug, err := normalizeSlug(input.Slug, input.Name)
	if err != nil {
		return nil, err
	}
	status := input.Status
	if status == "" {
		status = enums.ProductStatusDraft
	}
	if !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid product status")
	}
	if err := validateMoney("basePrice", input.BasePrice); err != nil {
		return nil, err
	}
	if err := s.checkCategory(ctx, input.CategoryID); err != nil {
		return nil, err
	}
	variants, err := toVariantModels(input.Variants, true)
	if err != nil {
		return nil, err
	}

	product := &models.Product{
		Slug:        slug,
		Name:        strings.TrimSpace(input.Name),
		Description: input.Description,
		BasePrice:   input.BasePrice.Round(2),
		Status:      status,
		Featured:    input.Featured,
		CategoryID:  input.CategoryID,
		Variants:    variants,
		Images:      toImageModels(input.Images),
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.repo.WithTx(tx).CreateProduct(ctx, product)
	})
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "product slug or sku already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create product")
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{"op": "catalog.create_product", "product_id": product.ID})
	s.logg.Info(logCtx, "product created")
	return s.GetByID(ctx, product.ID)
}

// UpdateProduct applies a partial update to a product.
func (s *Service) UpdateProduct(ctx context.Context, id int64, input UpdateProductInput) (*ProductDetail, error) {
	fields := map[string]any{}
	if input.Slug != nil {
		slug, err := normalizeSlug(*input.Slug, "")
		if err != nil {
			return nil, err
		}
		fields["slug"] = slug
	}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "name must not be empty")
		}
		fields["name"] = name
	}
	if input.Description != nil {
		fields["description"] = *input.Description
	}
	if input.BasePrice != nil {
		if err := validateMoney("basePrice", *input.BasePrice); err != nil {
			return nil, err
		}
		fields["base_price"] = input.BasePrice.Round(2)
	}
	if input.Status != nil {
		if !input.Status.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid product status")
		}
		fields["status"] = *input.Status
	}
	if input.Featured != nil {
		fields["featured"] = *input.Featured
	}
	if input.CategoryID != nil {
		if err := s.checkCategory(ctx, input.CategoryID); err != nil {
			return nil, err
		}
		fields["category_id"] = *input.CategoryID
	}
	var variants []models.ProductVariant
	if input.Variants != nil {
		var err error
		if variants, err = toVariantModels(*input.Variants, false); err != nil {
			return nil, err
		}
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		existing, err := repo.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if existing == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		if err := repo.UpdateProductFields(ctx, id, fields); err != nil {
			return err
		}
		if input.Variants != nil {
			if err := repo.ReplaceVariants(ctx, id, variants); err != nil {
				return err
			}
		}
		if input.Images != nil {
			if err := repo.ReplaceImages(ctx, id, toImageModels(*input.Images)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		switch {
		case pkgerrors.As(err) != nil:
			return nil, err
		case errors.Is(err, errVariantNotOwned):
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unknown variant id")
		case db.IsUniqueViolation(err, ""):
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "product slug or sku already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update product")
	}
	return s.GetByID(ctx, id)
}

// DeleteProduct removes a product with its variants and images.
func (s *Service) DeleteProduct(ctx context.Context, id int64) error {
	var found bool
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		found, err = s.repo.WithTx(tx).DeleteProduct(ctx, id)
		return err
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete product")
	}
	if !found {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return nil
}

// BulkFeature sets the featured flag on many products and returns the updated count.
func (s *Service) BulkFeature(ctx context.Context, ids []int64, featured bool) (int64, error) {
	if len(ids) == 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "productIds must not be empty")
	}
	count, err := s.repo.SetFeatured(ctx, ids, featured, s.now().UTC())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update featured products")
	}
	return count, nil
}

func (s *Service) checkCategory(ctx context.Context, id *int64) error {
	if id == nil {
		return nil
	}
	category, err := s.repo.FindCategory(ctx, *id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load category")
	}
	if category == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "category not found")
	}
	return nil
}

func toVariantModels(inputs []VariantInput, creating bool) ([]models.ProductVariant, error) {
	out := make([]models.ProductVariant, 0, len(inputs))
	for i, in := range inputs {
		name := strings.TrimSpace(in.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "variant name is required").
				WithDetails(map[string]any{"index": i})
		}
		if err := validateMoney(fmt.Sprintf("variants[%d].price", i), in.Price); err != nil {
			return nil, err
		}
		if in.Stock < 0 || in.WeightGrams < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "variant stock and weight must not be negative").
				WithDetails(map[string]any{"index": i})
		}
		if creating && in.ID != 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "new products cannot reference variant ids")
		}
		threshold := defaultLowStock
		if in.LowStockThreshold != nil {
			threshold = *in.LowStockThreshold
		}
		var sku *string
		if in.SKU != nil && strings.TrimSpace(*in.SKU) != "" {
			trimmed := strings.TrimSpace(*in.SKU)
			sku = &trimmed
		}
		out = append(out, models.ProductVariant{
			ID:                in.ID,
			Name:              name,
			SKU:               sku,
			Price:             in.Price.Round(2),
			Stock:             in.Stock,
			WeightGrams:       in.WeightGrams,
			LowStockThreshold: threshold,
		})
	}
	return out, nil
}

func toImageModels(inputs []ImageInput) []models.ProductImage {
	out := make([]models.ProductImage, 0, len(inputs))
	for i, in := range inputs {
		out = append(out, models.ProductImage{URL: strings.TrimSpace(in.URL), Alt: in.Alt, Position: i})
	}
	return out
}

func validateMoney(field string, value decimal.Decimal) error {
	if value.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount must not be negative").
			WithDetails(map[string]any{"field": field})
	}
	return nil
}

// normalizeSlug validates an explicit slug or derives one from fallback.
func normalizeSlug(slug, fallback string) (string, error) {
	slug = strings.ToLower(strings.TrimSpace(slug))
	if slug == "" {
		slug = strings.Trim(slugSanitizer.ReplaceAllString(strings.ToLower(fallback), "-"), "-")
	}
	if !slugPattern.MatchString(slug) {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "slug must be lowercase letters, digits and dashes").
			WithDetails(map[string]any{"slug": slug})
	}
	return slug, nil
}
