package reservations

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// Sweep sources label the reservations_swept_total metric.
const (
	SourceCron = "cron"
	SourceHTTP = "http"
)

// Line requests qty units of a variant.
type Line struct {
	VariantID int64
	Quantity  int
}

type sweepRecorder interface {
	AddReservationsSwept(source string, n int64)
}

// ServiceParams wires the reservation manager.
type ServiceParams struct {
	Repo    *Repository
	Logger  *logger.Logger
	Metrics sweepRecorder
}

// Service holds stock for open checkout sessions. A reservation is active until
// its expiry, then it is ignored by availability and removed by Sweep.
type Service struct {
	repo    *Repository
	logg    *logger.Logger
	metrics sweepRecorder
}

// NewService validates params and builds a Service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("reservation repository required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Service{repo: params.Repo, logg: params.Logger, metrics: params.Metrics}, nil
}

// Reserve holds stock for every line under ref. Either every line is reserved
// or the returned error aborts the caller's transaction.
func (s *Service) Reserve(ctx context.Context, tx *gorm.DB, ref string, lines []Line, expiresAt, now time.Time) error {
	if strings.TrimSpace(ref) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "reservation ref is required")
	}
	merged, err := mergeLines(lines)
	if err != nil {
		return err
	}
	if !expiresAt.After(now) {
		return pkgerrors.New(pkgerrors.CodeValidation, "reservation expiry must be in the future")
	}

	repo := s.repo.WithTx(tx)
	ids := make([]int64, 0, len(merged))
	for _, line := range merged {
		ids = append(ids, line.VariantID)
	}
	locked, err := repo.LockVariants(ctx, ids)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock variants")
	}
	if len(locked) != len(ids) {
		found := make(map[int64]struct{}, len(locked))
		for _, v := range locked {
			found[v.ID] = struct{}{}
		}
		var missing []int64
		for _, id := range ids {
			if _, ok := found[id]; !ok {
				missing = append(missing, id)
			}
		}
		return pkgerrors.New(pkgerrors.CodeValidation, "variant not found").
			WithDetails(map[string]any{"variantIds": missing})
	}

	for _, line := range merged {
		ok, err := repo.InsertIfAvailable(ctx, ref, line.VariantID, line.Quantity, expiresAt, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert reservation")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "insufficient stock").
				WithDetails(map[string]any{"variantId": line.VariantID, "requested": line.Quantity})
		}
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"op":         "reservations.reserve",
		"ref":        ref,
		"lines":      len(merged),
		"expires_at": expiresAt.UTC(),
	})
	s.logg.Info(logCtx, "stock reserved")
	return nil
}

// Consume drops the reservations of a paid session. Calling it twice is harmless.
func (s *Service) Consume(ctx context.Context, tx *gorm.DB, ref string) (int64, error) {
	n, err := s.repo.WithTx(tx).DeleteByRef(ctx, ref)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "consume reservations")
	}
	return n, nil
}

// Release drops the reservations of an abandoned session.
func (s *Service) Release(ctx context.Context, tx *gorm.DB, ref string) (int64, error) {
	n, err := s.repo.WithTx(tx).DeleteByRef(ctx, ref)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "release reservations")
	}
	if n > 0 {
		logCtx := s.logg.WithFields(ctx, map[string]any{"op": "reservations.release", "ref": ref, "released": n})
		s.logg.Info(logCtx, "reservations released")
	}
	return n, nil
}

// Sweep deletes every reservation that expired before now and returns the count.
func (s *Service) Sweep(ctx context.Context, now time.Time, source string) (int64, error) {
	n, err := s.repo.DeleteExpired(ctx, now)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sweep reservations")
	}
	if s.metrics != nil {
		s.metrics.AddReservationsSwept(source, n)
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{"op": "reservations.sweep", "source": source, "deleted": n})
	s.logg.Info(logCtx, "expired reservations swept")
	return n, nil
}

// Available returns stock minus active reservations, floored at zero, for each
// known variant.
func (s *Service) Available(ctx context.Context, variantIDs []int64, now time.Time) (map[int64]int, error) {
	if len(variantIDs) == 0 {
		return map[int64]int{}, nil
	}
	stocks, err := s.repo.Stocks(ctx, variantIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load stock")
	}
	reserved, err := s.repo.ReservedQuantities(ctx, variantIDs, now)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load reservations")
	}
	out := make(map[int64]int, len(stocks))
	for id, stock := range stocks {
		avail := stock - reserved[id]
		if avail < 0 {
			avail = 0
		}
		out[id] = avail
	}
	return out, nil
}

func mergeLines(lines []Line) ([]Line, error) {
	if len(lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one line is required")
	}
	totals := make(map[int64]int, len(lines))
	for _, line := range lines {
		if line.VariantID <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "variant id is required")
		}
		if line.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive").
				WithDetails(map[string]any{"variantId": line.VariantID})
		}
		totals[line.VariantID] += line.Quantity
	}
	merged := make([]Line, 0, len(totals))
	for id, qty := range totals {
		merged = append(merged, Line{VariantID: id, Quantity: qty})
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].VariantID < merged[j].VariantID })
	return merged, nil
}
