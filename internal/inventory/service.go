package inventory

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const (
	DefaultLowStockLimit = 50
	MaxLowStockLimit     = 200
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// BulkInput targets either products (all their variants) or variants directly.
type BulkInput struct {
	ProductIDs []int64                  `json:"productIds,omitempty" validate:"omitempty,dive,gt=0"`
	VariantIDs []int64                  `json:"variantIds,omitempty" validate:"omitempty,dive,gt=0"`
	Operation  enums.InventoryOperation `json:"operation" validate:"required"`
	Value      int                      `json:"value"`
}

// SetStockInput is the single-variant admin payload.
type SetStockInput struct {
	VariantID int64 `json:"variantId" validate:"required,gt=0"`
	Stock     int   `json:"stock"`
}

// LowStockItem is the admin view of a variant running low.
type LowStockItem struct {
	VariantID         int64   `json:"variantId"`
	ProductID         int64   `json:"productId"`
	ProductName       string  `json:"productName"`
	ProductSlug       string  `json:"productSlug"`
	VariantName       string  `json:"variantName"`
	SKU               *string `json:"sku,omitempty"`
	Stock             int     `json:"stock"`
	LowStockThreshold int     `json:"lowStockThreshold"`
}

// AdjustResult reports how many variants a bulk adjustment touched.
type AdjustResult struct {
	Updated int64 `json:"updated"`
}

// ServiceParams wires the inventory service.
type ServiceParams struct {
	Repo   *Repository
	Tx     txRunner
	Logger *logger.Logger
}

// Service mutates variant stock. Every path keeps stock >= 0.
type Service struct {
	repo *Repository
	tx   txRunner
	logg *logger.Logger
}

// NewService validates params and builds a Service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Service{repo: params.Repo, tx: params.Tx, logg: params.Logger}, nil
}

func validateOp(op enums.InventoryOperation, value int) error {
	if !op.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "operation must be increment, decrement or set")
	}
	if value < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "value must not be negative").
			WithDetails(map[string]any{"value": value})
	}
	return nil
}

func errNoTargets() error {
	return pkgerrors.New(pkgerrors.CodeValidation, "no variants selected")
}

// Adjust applies op with value to every listed variant in one transaction.
func (s *Service) Adjust(ctx context.Context, variantIDs []int64, op enums.InventoryOperation, value int) (int64, error) {
	if err := validateOp(op, value); err != nil {
		return 0, err
	}
	if len(variantIDs) == 0 {
		return 0, errNoTargets()
	}
	var updated int64
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		updated, err = s.repo.WithTx(tx).Apply(ctx, variantIDs, op, value)
		return err
	})
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "adjust inventory")
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"op":        "inventory.adjust",
		"operation": string(op),
		"value":     value,
		"targets":   len(variantIDs),
		"updated":   updated,
	})
	s.logg.Info(logCtx, "inventory adjusted")
	return updated, nil
}

// Bulk resolves product ids to variants, merges them with explicit variant ids,
// and applies the adjustment atomically.
func (s *Service) Bulk(ctx context.Context, input BulkInput) (*AdjustResult, error) {
	if err := validateOp(input.Operation, input.Value); err != nil {
		return nil, err
	}
	if len(input.ProductIDs) == 0 && len(input.VariantIDs) == 0 {
		return nil, errNoTargets()
	}
	var updated int64
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		targets := dedupe(input.VariantIDs)
		if len(input.ProductIDs) > 0 {
			expanded, err := repo.VariantIDsForProducts(ctx, input.ProductIDs)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "expand product variants")
			}
			targets = dedupe(append(targets, expanded...))
		}
		if len(targets) == 0 {
			return errNoTargets()
		}
		var err error
		updated, err = repo.Apply(ctx, targets, input.Operation, input.Value)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "adjust inventory")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"op":        "inventory.bulk",
		"operation": string(input.Operation),
		"value":     input.Value,
		"updated":   updated,
	})
	s.logg.Info(logCtx, "inventory bulk adjusted")
	return &AdjustResult{Updated: updated}, nil
}

// SetStock overwrites a single variant's stock.
func (s *Service) SetStock(ctx context.Context, variantID int64, stock int) error {
	if stock < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "stock must not be negative")
	}
	var previous int
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		variant, err := repo.FindVariant(ctx, variantID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load variant")
		}
		if variant == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "variant not found")
		}
		previous = variant.Stock
		if _, err := repo.SetStock(ctx, variantID, stock); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "set stock")
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"op":             "inventory.set_stock",
		"variant_id":     variantID,
		"previous_stock": previous,
		"stock":          stock,
	}), "stock overwritten")
	return nil
}

// Decrement lowers a variant's stock by qty inside the caller's transaction, clamping at zero.
func (s *Service) Decrement(ctx context.Context, tx *gorm.DB, variantID int64, qty int) error {
	if qty <= 0 {
		return nil
	}
	if _, err := s.repo.WithTx(tx).Apply(ctx, []int64{variantID}, enums.InventoryOperationDecrement, qty); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decrement stock")
	}
	return nil
}

// ListLowStock lists variants at or below their low-stock threshold.
func (s *Service) ListLowStock(ctx context.Context, limit int) ([]LowStockItem, error) {
	if limit <= 0 {
		limit = DefaultLowStockLimit
	}
	if limit > MaxLowStockLimit {
		limit = MaxLowStockLimit
	}
	rows, err := s.repo.ListLowStock(ctx, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list low stock")
	}
	items := make([]LowStockItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, LowStockItem(row))
	}
	return items, nil
}

func dedupe(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
