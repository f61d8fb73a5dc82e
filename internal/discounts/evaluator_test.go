package discounts

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"gorm.io/gorm"
)

func d(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func intPtr(v int) *int { return &v }

func newTestEvaluator(t *testing.T) (*Evaluator, *Repository, *gorm.DB) {
	t.Helper()
	client := dbtest.Open(t)
	repo := NewRepository(client.DB())
	eval, err := NewEvaluator(repo, logger.New(logger.Options{ServiceName: "discounts-test"}))
	require.NoError(t, err)
	return eval, repo, client.DB()
}

func seed(t *testing.T, conn *gorm.DB, row models.DiscountCode) models.DiscountCode {
	t.Helper()
	require.NoError(t, conn.Create(&row).Error)
	return row
}

func TestEvaluateAmounts(t *testing.T) {
	eval, _, conn := newTestEvaluator(t)
	ctx := context.Background()
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	seed(t, conn, models.DiscountCode{Code: "TENOFF", Type: enums.DiscountTypePercentage, Value: d("10"), Active: true})
	seed(t, conn, models.DiscountCode{Code: "FIFTEEN", Type: enums.DiscountTypeFixed, Value: d("15"), Active: true})
	seed(t, conn, models.DiscountCode{Code: "THIRD", Type: enums.DiscountTypePercentage, Value: d("33.33"), Active: true})

	res, err := eval.Evaluate(ctx, " tenoff ", d("100.00"), now)
	require.NoError(t, err)
	assert.True(t, res.Amount.Equal(d("10.00")), res.Amount.String())

	res, err = eval.Evaluate(ctx, "FIFTEEN", d("10.00"), now)
	require.NoError(t, err)
	assert.True(t, res.Amount.Equal(d("10.00")), res.Amount.String())

	res, err = eval.Evaluate(ctx, "third", d("10.01"), now)
	require.NoError(t, err)
	assert.True(t, res.Amount.Equal(d("3.34")), res.Amount.String())
}

func TestEvaluateRejections(t *testing.T) {
	eval, _, conn := newTestEvaluator(t)
	ctx := context.Background()
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)
	minimum := d("50")

	seed(t, conn, models.DiscountCode{Code: "OLD", Type: enums.DiscountTypeFixed, Value: d("5"), ExpiresAt: &past, Active: true})
	seed(t, conn, models.DiscountCode{Code: "SOON", Type: enums.DiscountTypeFixed, Value: d("5"), StartsAt: &future, Active: true})
	seed(t, conn, models.DiscountCode{Code: "BIG", Type: enums.DiscountTypeFixed, Value: d("5"), MinOrderValue: &minimum, Active: true})
	seed(t, conn, models.DiscountCode{Code: "USED", Type: enums.DiscountTypeFixed, Value: d("5"), MaxUses: intPtr(2), UsesCount: 2, Active: true})
	off := seed(t, conn, models.DiscountCode{Code: "OFF", Type: enums.DiscountTypeFixed, Value: d("5"), Active: true})
	require.NoError(t, conn.Model(&off).Update("active", false).Error)

	cases := map[string]Reason{
		"OLD":     ReasonExpired,
		"SOON":    ReasonNotYetActive,
		"BIG":     ReasonBelowMinimum,
		"USED":    ReasonUsageExhausted,
		"OFF":     ReasonNotFound,
		"MISSING": ReasonNotFound,
		"":        ReasonNotFound,
	}
	for code, want := range cases {
		_, err := eval.Evaluate(ctx, code, d("20"), now)
		require.Error(t, err, code)
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), code)
		reason, ok := RejectionReason(err)
		require.True(t, ok, code)
		assert.Equal(t, want, reason, code)
	}

	res, err := eval.Evaluate(ctx, "BIG", d("50"), now)
	require.NoError(t, err)
	assert.True(t, res.Amount.Equal(d("5")))
}

func TestEvaluateIsSideEffectFree(t *testing.T) {
	eval, repo, conn := newTestEvaluator(t)
	ctx := context.Background()
	seed(t, conn, models.DiscountCode{Code: "ONCE", Type: enums.DiscountTypeFixed, Value: d("5"), MaxUses: intPtr(1), Active: true})

	for i := 0; i < 3; i++ {
		res, err := eval.Evaluate(ctx, "ONCE", d("20"), time.Now())
		require.NoError(t, err)
		assert.True(t, res.Amount.Equal(d("5")))
	}
	row, err := repo.FindActiveByCode(ctx, "ONCE")
	require.NoError(t, err)
	assert.Equal(t, 0, row.UsesCount)

	require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
		return eval.IncrementUses(ctx, tx, "once")
	}))
	row, err = repo.FindActiveByCode(ctx, "ONCE")
	require.NoError(t, err)
	assert.Equal(t, 1, row.UsesCount)

	_, err = eval.Evaluate(ctx, "ONCE", d("20"), time.Now())
	reason, _ := RejectionReason(err)
	assert.Equal(t, ReasonUsageExhausted, reason)
}
