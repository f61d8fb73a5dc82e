package discounts

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// CreateInput is the admin payload for a new discount code.
type CreateInput struct {
	Code          string             `json:"code" validate:"required,max=40"`
	Type          enums.DiscountType `json:"type" validate:"required"`
	Value         decimal.Decimal    `json:"value" validate:"money"`
	MinOrderValue *decimal.Decimal   `json:"minOrderValue,omitempty"`
	MaxUses       *int               `json:"maxUses,omitempty" validate:"omitempty,min=1"`
	StartsAt      *time.Time         `json:"startsAt,omitempty"`
	ExpiresAt     *time.Time         `json:"expiresAt,omitempty"`
	Active        *bool              `json:"active,omitempty"`
}

// UpdateInput patches mutable fields of a code. The code string and type are fixed.
type UpdateInput struct {
	Value         *decimal.Decimal `json:"value,omitempty"`
	MinOrderValue *decimal.Decimal `json:"minOrderValue,omitempty"`
	MaxUses       *int             `json:"maxUses,omitempty" validate:"omitempty,min=1"`
	StartsAt      *time.Time       `json:"startsAt,omitempty"`
	ExpiresAt     *time.Time       `json:"expiresAt,omitempty"`
	Active        *bool            `json:"active,omitempty"`
}

// Service implements admin CRUD over discount codes.
type Service struct {
	repo *Repository
	logg *logger.Logger
}

// NewService builds a Service.
func NewService(repo *Repository, logg *logger.Logger) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("discount repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Service{repo: repo, logg: logg}, nil
}

// List returns every code.
func (s *Service) List(ctx context.Context) ([]models.DiscountCode, error) {
	rows, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list discount codes")
	}
	return rows, nil
}

// Create validates and stores a new code.
func (s *Service) Create(ctx context.Context, input CreateInput) (*models.DiscountCode, error) {
	code := NormalizeCode(input.Code)
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "code is required")
	}
	if !input.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "type must be percentage or fixed")
	}
	active := true
	if input.Active != nil {
		active = *input.Active
	}
	row := &models.DiscountCode{
		Code:          code,
		Type:          input.Type,
		Value:         input.Value.Round(2),
		MinOrderValue: input.MinOrderValue,
		MaxUses:       input.MaxUses,
		StartsAt:      utcPtr(input.StartsAt),
		ExpiresAt:     utcPtr(input.ExpiresAt),
		Active:        active,
	}
	if err := validateRow(row); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, row); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "discount code already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create discount code")
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{"op": "discounts.create", "discount_code": code})
	s.logg.Info(logCtx, "discount code created")
	return row, nil
}

// Update applies a patch to an existing code.
func (s *Service) Update(ctx context.Context, id int64, input UpdateInput) (*models.DiscountCode, error) {
	row, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load discount code")
	}
	if row == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "discount code not found")
	}
	if input.Value != nil {
		row.Value = input.Value.Round(2)
	}
	if input.MinOrderValue != nil {
		row.MinOrderValue = input.MinOrderValue
	}
	if input.MaxUses != nil {
		row.MaxUses = input.MaxUses
	}
	if input.StartsAt != nil {
		row.StartsAt = utcPtr(input.StartsAt)
	}
	if input.ExpiresAt != nil {
		row.ExpiresAt = utcPtr(input.ExpiresAt)
	}
	if input.Active != nil {
		row.Active = *input.Active
	}
	if err := validateRow(row); err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, row); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update discount code")
	}
	return row, nil
}

// Delete removes a code.
func (s *Service) Delete(ctx context.Context, id int64) error {
	found, err := s.repo.Delete(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete discount code")
	}
	if !found {
		return pkgerrors.New(pkgerrors.CodeNotFound, "discount code not found")
	}
	return nil
}

func validateRow(row *models.DiscountCode) error {
	invalid := func(msg string) error {
		return pkgerrors.New(pkgerrors.CodeValidation, msg)
	}
	switch row.Type {
	case enums.DiscountTypePercentage:
		if !row.Value.IsPositive() || row.Value.GreaterThan(hundred) {
			return invalid("percentage value must be greater than 0 and at most 100")
		}
	case enums.DiscountTypeFixed:
		if !row.Value.IsPositive() {
			return invalid("fixed value must be greater than 0")
		}
	}
	if row.MinOrderValue != nil && row.MinOrderValue.IsNegative() {
		return invalid("minOrderValue must not be negative")
	}
	if row.StartsAt != nil && row.ExpiresAt != nil && !row.StartsAt.Before(*row.ExpiresAt) {
		return invalid("startsAt must be before expiresAt")
	}
	return nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
