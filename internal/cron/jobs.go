package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/storefront-backend/internal/inventory"
	"github.com/angelmondragon/storefront-backend/internal/reservations"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// Job names, also used as the job label on cron metrics.
const (
	ReservationSweepJobName = "reservation-sweep"
	CheckoutExpiryJobName   = "checkout-expiry"
	LowStockReportJobName   = "low-stock-report"
)

type reservationSweeper interface {
	Sweep(ctx context.Context, now time.Time, source string) (int64, error)
}

// NewReservationSweepJob deletes reservations whose checkout window has passed.
func NewReservationSweepJob(sweeper reservationSweeper, logg *logger.Logger) (Job, error) {
	if sweeper == nil {
		return nil, fmt.Errorf("reservation sweeper required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &reservationSweepJob{sweeper: sweeper, logg: logg, now: time.Now}, nil
}

type reservationSweepJob struct {
	sweeper reservationSweeper
	logg    *logger.Logger
	now     func() time.Time
}

func (j *reservationSweepJob) Name() string { return ReservationSweepJobName }

func (j *reservationSweepJob) Run(ctx context.Context) error {
	deleted, err := j.sweeper.Sweep(ctx, j.now().UTC(), reservations.SourceCron)
	if err != nil {
		return fmt.Errorf("reservation sweep: %w", err)
	}
	j.logg.Info(j.logg.WithField(ctx, "rows_deleted", deleted), "reservation sweep complete")
	return nil
}

type staleCheckoutExpirer interface {
	ExpireStale(ctx context.Context) (int, error)
}

// NewCheckoutExpiryJob closes open checkout sessions past their window.
func NewCheckoutExpiryJob(expirer staleCheckoutExpirer, logg *logger.Logger) (Job, error) {
	if expirer == nil {
		return nil, fmt.Errorf("checkout expirer required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &checkoutExpiryJob{expirer: expirer, logg: logg}, nil
}

type checkoutExpiryJob struct {
	expirer staleCheckoutExpirer
	logg    *logger.Logger
}

func (j *checkoutExpiryJob) Name() string { return CheckoutExpiryJobName }

func (j *checkoutExpiryJob) Run(ctx context.Context) error {
	expired, err := j.expirer.ExpireStale(ctx)
	if err != nil {
		return fmt.Errorf("checkout expiry: %w", err)
	}
	j.logg.Info(j.logg.WithField(ctx, "sessions_expired", expired), "checkout expiry complete")
	return nil
}

type lowStockReader interface {
	ListLowStock(ctx context.Context, limit int) ([]inventory.LowStockItem, error)
}

// NewLowStockReportJob logs variants at or below their low stock threshold.
func NewLowStockReportJob(reader lowStockReader, logg *logger.Logger) (Job, error) {
	if reader == nil {
		return nil, fmt.Errorf("low stock reader required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &lowStockReportJob{reader: reader, logg: logg}, nil
}

type lowStockReportJob struct {
	reader lowStockReader
	logg   *logger.Logger
}

func (j *lowStockReportJob) Name() string { return LowStockReportJobName }

func (j *lowStockReportJob) Run(ctx context.Context) error {
	items, err := j.reader.ListLowStock(ctx, 0)
	if err != nil {
		return fmt.Errorf("low stock report: %w", err)
	}
	if len(items) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.VariantID)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{"low_stock_count": len(items), "variant_ids": ids})
	j.logg.Warn(logCtx, "variants at or below low stock threshold")
	return nil
}
