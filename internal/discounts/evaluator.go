package discounts

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// Reason is the machine-readable cause of a rejected discount code.
type Reason string

const (
	ReasonNotFound       Reason = "not_found"
	ReasonExpired        Reason = "expired"
	ReasonNotYetActive   Reason = "not_yet_active"
	ReasonBelowMinimum   Reason = "below_minimum"
	ReasonUsageExhausted Reason = "usage_exhausted"
)

var reasonMessages = map[Reason]string{
	ReasonNotFound:       "discount code not found",
	ReasonExpired:        "discount code has expired",
	ReasonNotYetActive:   "discount code is not active yet",
	ReasonBelowMinimum:   "order does not meet the minimum value for this code",
	ReasonUsageExhausted: "discount code has reached its usage limit",
}

var hundred = decimal.NewFromInt(100)

// Result is a successful evaluation.
type Result struct {
	Code   string             `json:"code"`
	Type   enums.DiscountType `json:"type"`
	Value  decimal.Decimal    `json:"value"`
	Amount decimal.Decimal    `json:"amount"`
}

func rejection(reason Reason, extra map[string]any) error {
	details := map[string]any{"reason": string(reason)}
	for k, v := range extra {
		details[k] = v
	}
	return pkgerrors.New(pkgerrors.CodeValidation, reasonMessages[reason]).WithDetails(details)
}

// RejectionReason extracts the reason from an Evaluate error, if any.
func RejectionReason(err error) (Reason, bool) {
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		return "", false
	}
	details, ok := typed.Details().(map[string]any)
	if !ok {
		return "", false
	}
	reason, ok := details["reason"].(string)
	return Reason(reason), ok
}

// NormalizeCode upper-cases and trims a code for lookup.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Evaluator checks discount codes against an order subtotal. It never mutates state.
type Evaluator struct {
	repo *Repository
	logg *logger.Logger
}

// NewEvaluator builds an Evaluator.
func NewEvaluator(repo *Repository, logg *logger.Logger) (*Evaluator, error) {
	if repo == nil {
		return nil, fmt.Errorf("discount repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Evaluator{repo: repo, logg: logg}, nil
}

// Evaluate returns the discount amount for code at subtotal, or a validation error
// carrying a Reason.
func (e *Evaluator) Evaluate(ctx context.Context, code string, subtotal decimal.Decimal, now time.Time) (*Result, error) {
	normalized := NormalizeCode(code)
	if normalized == "" {
		return nil, rejection(ReasonNotFound, nil)
	}
	row, err := e.repo.FindActiveByCode(ctx, normalized)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load discount code")
	}
	if row == nil {
		return nil, rejection(ReasonNotFound, nil)
	}
	return evaluate(row, subtotal, now)
}

func evaluate(row *models.DiscountCode, subtotal decimal.Decimal, now time.Time) (*Result, error) {
	if row.ExpiresAt != nil && row.ExpiresAt.Before(now) {
		return nil, rejection(ReasonExpired, nil)
	}
	if row.StartsAt != nil && row.StartsAt.After(now) {
		return nil, rejection(ReasonNotYetActive, nil)
	}
	if row.MinOrderValue != nil && subtotal.LessThan(*row.MinOrderValue) {
		return nil, rejection(ReasonBelowMinimum, map[string]any{"minOrderValue": row.MinOrderValue.StringFixed(2)})
	}
	if row.MaxUses != nil && row.UsesCount >= *row.MaxUses {
		return nil, rejection(ReasonUsageExhausted, nil)
	}

	var amount decimal.Decimal
	switch row.Type {
	case enums.DiscountTypePercentage:
		amount = subtotal.Mul(row.Value).Div(hundred)
	case enums.DiscountTypeFixed:
		amount = decimal.Min(row.Value, subtotal)
	default:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "unknown discount type")
	}
	if amount.IsNegative() {
		amount = decimal.Zero
	}
	return &Result{
		Code:   row.Code,
		Type:   row.Type,
		Value:  row.Value,
		Amount: amount.Round(2),
	}, nil
}

// IncrementUses counts one redemption of code inside the caller's transaction.
func (e *Evaluator) IncrementUses(ctx context.Context, tx *gorm.DB, code string) error {
	normalized := NormalizeCode(code)
	if normalized == "" {
		return nil
	}
	if _, err := e.repo.WithTx(tx).IncrementUses(ctx, normalized); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "increment discount uses")
	}
	return nil
}
