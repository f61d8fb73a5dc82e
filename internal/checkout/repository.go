package checkout

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Repository persists checkout sessions and reads the variants being bought.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	LoadVariants(ctx context.Context, ids []int64) ([]PricedVariant, error)
	Create(ctx context.Context, session *models.CheckoutSession) error
	FindByRef(ctx context.Context, ref string, forUpdate bool) (*models.CheckoutSession, error)
	TransitionStatus(ctx context.Context, ref string, from, to enums.CheckoutSessionStatus) (bool, error)
	SetPayment(ctx context.Context, ref, sessionID, url string) error
	ListStaleOpen(ctx context.Context, now time.Time, limit int) ([]models.CheckoutSession, error)
}

// PricedVariant is a variant joined with the product fields checkout needs.
type PricedVariant struct {
	models.ProductVariant
	ProductName   string              `gorm:"column:product_name"`
	ProductStatus enums.ProductStatus `gorm:"column:product_status"`
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a checkout repository backed by the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) LoadVariants(ctx context.Context, ids []int64) ([]PricedVariant, error) {
	var rows []PricedVariant
	err := r.db.WithContext(ctx).
		Table("product_variants").
		Select("product_variants.*, products.name AS product_name, products.status AS product_status").
		Joins("JOIN products ON products.id = product_variants.product_id").
		Where("product_variants.id IN ?", ids).
		Order("product_variants.id ASC").
		Scan(&rows).Error
	return rows, err
}

func (r *repository) Create(ctx context.Context, session *models.CheckoutSession) error {
	return r.db.WithContext(ctx).Create(session).Error
}

func (r *repository) FindByRef(ctx context.Context, ref string, forUpdate bool) (*models.CheckoutSession, error) {
	q := r.db.WithContext(ctx)
	if forUpdate {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var session models.CheckoutSession
	err := q.Where("ref = ?", ref).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// TransitionStatus moves ref from one status to another only if it is still in
// from, reporting whether this call made the change.
func (r *repository) TransitionStatus(ctx context.Context, ref string, from, to enums.CheckoutSessionStatus) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.CheckoutSession{}).
		Where("ref = ? AND status = ?", ref, from).
		Update("status", to)
	return res.RowsAffected > 0, res.Error
}

func (r *repository) SetPayment(ctx context.Context, ref, sessionID, url string) error {
	return r.db.WithContext(ctx).Model(&models.CheckoutSession{}).
		Where("ref = ?", ref).
		Updates(map[string]any{"payment_session_id": sessionID, "payment_url": url}).Error
}

func (r *repository) ListStaleOpen(ctx context.Context, now time.Time, limit int) ([]models.CheckoutSession, error) {
	var rows []models.CheckoutSession
	err := r.db.WithContext(ctx).
		Where("status = ? AND expires_at < ?", enums.CheckoutSessionStatusOpen, now).
		Order("expires_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
