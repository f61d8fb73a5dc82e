package reservations

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type countingRecorder struct {
	bySource map[string]int64
}

func (c *countingRecorder) AddReservationsSwept(source string, n int64) {
	if c.bySource == nil {
		c.bySource = map[string]int64{}
	}
	c.bySource[source] += n
}

var baseNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*Service, *gorm.DB, *countingRecorder) {
	t.Helper()
	client := dbtest.Open(t)
	rec := &countingRecorder{}
	svc, err := NewService(ServiceParams{
		Repo:    NewRepository(client.DB()),
		Logger:  logger.New(logger.Options{ServiceName: "reservations-test"}),
		Metrics: rec,
	})
	require.NoError(t, err)
	return svc, client.DB(), rec
}

func reserve(t *testing.T, svc *Service, conn *gorm.DB, ref string, lines []Line, expiresAt time.Time) error {
	t.Helper()
	return conn.Transaction(func(tx *gorm.DB) error {
		return svc.Reserve(context.Background(), tx, ref, lines, expiresAt, baseNow)
	})
}

func TestReserveHoldsStockAgainstLaterSessions(t *testing.T) {
	svc, conn, _ := newTestService(t)
	p := dbtest.SeedProduct(t, conn, "lamp", 5)
	id := p.Variants[0].ID
	exp := baseNow.Add(30 * time.Minute)

	require.NoError(t, reserve(t, svc, conn, "ref-a", []Line{{VariantID: id, Quantity: 2}, {VariantID: id, Quantity: 1}}, exp))

	err := reserve(t, svc, conn, "ref-b", []Line{{VariantID: id, Quantity: 3}}, exp)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
	details := pkgerrors.As(err).Details().(map[string]any)
	assert.Equal(t, id, details["variantId"])

	require.NoError(t, reserve(t, svc, conn, "ref-c", []Line{{VariantID: id, Quantity: 2}}, exp))

	avail, err := svc.Available(context.Background(), []int64{id}, baseNow)
	require.NoError(t, err)
	assert.Equal(t, 0, avail[id])
	assert.Equal(t, 5, dbtest.Stock(t, conn, id))
}

func TestReserveIsAllOrNothing(t *testing.T) {
	svc, conn, _ := newTestService(t)
	p := dbtest.SeedProduct(t, conn, "desk", 10, 1)
	a, b := p.Variants[0].ID, p.Variants[1].ID

	err := reserve(t, svc, conn, "ref-a", []Line{{VariantID: a, Quantity: 4}, {VariantID: b, Quantity: 2}}, baseNow.Add(time.Hour))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	var count int64
	require.NoError(t, conn.Model(&models.StockReservation{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestReserveValidation(t *testing.T) {
	svc, conn, _ := newTestService(t)
	p := dbtest.SeedProduct(t, conn, "rug", 3)
	id := p.Variants[0].ID
	exp := baseNow.Add(time.Hour)

	cases := []struct {
		name  string
		ref   string
		lines []Line
		exp   time.Time
	}{
		{"empty ref", "", []Line{{VariantID: id, Quantity: 1}}, exp},
		{"no lines", "r", nil, exp},
		{"zero qty", "r", []Line{{VariantID: id, Quantity: 0}}, exp},
		{"past expiry", "r", []Line{{VariantID: id, Quantity: 1}}, baseNow},
		{"unknown variant", "r", []Line{{VariantID: 999, Quantity: 1}}, exp},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := reserve(t, svc, conn, tc.ref, tc.lines, tc.exp)
			assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "%v", err)
		})
	}
}

func TestExpiredReservationsDoNotCount(t *testing.T) {
	svc, conn, _ := newTestService(t)
	p := dbtest.SeedProduct(t, conn, "vase", 2)
	id := p.Variants[0].ID

	require.NoError(t, conn.Create(&models.StockReservation{
		VariantID: id, Quantity: 2, ExpiresAt: baseNow.Add(-time.Minute), CheckoutSessionRef: "stale",
	}).Error)

	require.NoError(t, reserve(t, svc, conn, "fresh", []Line{{VariantID: id, Quantity: 2}}, baseNow.Add(time.Hour)))
}

func TestSweepRemovesExpiredExactlyOnce(t *testing.T) {
	svc, conn, rec := newTestService(t)
	ctx := context.Background()
	p := dbtest.SeedProduct(t, conn, "chair", 10)
	id := p.Variants[0].ID

	require.NoError(t, conn.Create(&[]models.StockReservation{
		{VariantID: id, Quantity: 1, ExpiresAt: baseNow.Add(-time.Hour), CheckoutSessionRef: "old"},
		{VariantID: id, Quantity: 1, ExpiresAt: baseNow.Add(time.Hour), CheckoutSessionRef: "live"},
	}).Error)

	n, err := svc.Sweep(ctx, baseNow, SourceCron)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = svc.Sweep(ctx, baseNow, SourceHTTP)
	require.NoError(t, err)
	assert.Zero(t, n)

	assert.Equal(t, int64(1), rec.bySource[SourceCron])
	assert.Zero(t, rec.bySource[SourceHTTP])

	var remaining []models.StockReservation
	require.NoError(t, conn.Find(&remaining).Error)
	require.Len(t, remaining, 1)
	assert.Equal(t, "live", remaining[0].CheckoutSessionRef)
}

func TestConsumeAndReleaseAreIdempotent(t *testing.T) {
	svc, conn, _ := newTestService(t)
	ctx := context.Background()
	p := dbtest.SeedProduct(t, conn, "stool", 4)
	id := p.Variants[0].ID
	require.NoError(t, reserve(t, svc, conn, "paid", []Line{{VariantID: id, Quantity: 1}}, baseNow.Add(time.Hour)))
	require.NoError(t, reserve(t, svc, conn, "gone", []Line{{VariantID: id, Quantity: 1}}, baseNow.Add(time.Hour)))

	n, err := svc.Consume(ctx, conn, "paid")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	n, err = svc.Consume(ctx, conn, "paid")
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = svc.Release(ctx, conn, "gone")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	n, err = svc.Release(ctx, conn, "gone")
	require.NoError(t, err)
	assert.Zero(t, n)

	avail, err := svc.Available(ctx, []int64{id, 12345}, baseNow)
	require.NoError(t, err)
	assert.Equal(t, map[int64]int{id: 4}, avail)
}
