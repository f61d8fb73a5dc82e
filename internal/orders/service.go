package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ServiceParams wires the order lifecycle service.
type ServiceParams struct {
	Repo           Repository
	Tx             txRunner
	Notifier       Notifier
	Logger         *logger.Logger
	TrackingWindow time.Duration
	Now            func() time.Time
}

type service struct {
	repo           Repository
	tx             txRunner
	notifier       Notifier
	logg           *logger.Logger
	trackingWindow time.Duration
	now            func() time.Time
}

// NewService builds the order service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
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
	return &service{
		repo:           params.Repo,
		tx:             params.Tx,
		notifier:       params.Notifier,
		logg:           params.Logger,
		trackingWindow: params.TrackingWindow,
		now:            now,
	}, nil
}

// NewOrderNumber returns a human-friendly unique order number.
func NewOrderNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("SO-%s-%s", now.UTC().Format("060102"), suffix)
}

func eventPayload(v any) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return raw
}

func (s *service) Create(ctx context.Context, tx *gorm.DB, input CreateInput) (*models.Order, error) {
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order requires at least one item")
	}
	if strings.TrimSpace(input.Email) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order email is required")
	}
	now := s.now().UTC()
	order := &models.Order{
		OrderNumber:     NewOrderNumber(now),
		CustomerID:      input.CustomerID,
		Email:           strings.TrimSpace(input.Email),
		Status:          enums.OrderStatusProcessing,
		PaymentStatus:   enums.PaymentStatusPaid,
		Subtotal:        input.Subtotal,
		ShippingTotal:   input.ShippingTotal,
		DiscountTotal:   input.DiscountTotal,
		TaxTotal:        input.TaxTotal,
		Total:           input.Total,
		DiscountCode:    input.DiscountCode,
		ShippingCountry: input.ShippingCountry,
	}
	if ref := strings.TrimSpace(input.CheckoutSessionRef); ref != "" {
		order.CheckoutSessionRef = &ref
	}
	for _, item := range input.Items {
		order.Items = append(order.Items, models.OrderItem{
			VariantID: item.VariantID,
			Name:      item.Name,
			SKU:       item.SKU,
			Quantity:  item.Quantity,
			Price:     item.Price,
		})
	}

	repo := s.repo.WithTx(tx)
	if err := repo.Create(ctx, order); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
	}
	events := []models.OrderEvent{
		{
			OrderID: order.ID,
			Kind:    enums.OrderEventKindCreated,
			Payload: eventPayload(map[string]any{"checkoutSessionRef": input.CheckoutSessionRef}),
		},
		{
			OrderID: order.ID,
			Kind:    enums.OrderEventKindPaymentReceived,
			Payload: eventPayload(map[string]any{
				"paymentSessionId": input.PaymentSessionID,
				"amount":           input.Total.StringFixed(2),
			}),
		},
		{
			OrderID: order.ID,
			Kind:    enums.OrderEventKindStatusChanged,
			Payload: eventPayload(statusChangePayload{From: enums.OrderStatusPending, To: enums.OrderStatusProcessing, Actor: "system"}),
		},
	}
	if err := repo.AppendEvents(ctx, events); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append order events")
	}
	order.Events = events

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"op":           "orders.create",
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
	})
	s.logg.Info(logCtx, "order created")
	return order, nil
}

func (s *service) FindByCheckoutRef(ctx context.Context, tx *gorm.DB, ref string) (*models.Order, error) {
	order, err := s.repo.WithTx(tx).FindByCheckoutRef(ctx, ref)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order by checkout ref")
	}
	return order, nil
}

func (s *service) Get(ctx context.Context, id int64) (*OrderDetail, error) {
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return toDetail(*order), nil
}

func (s *service) List(ctx context.Context, filter ListFilter) (pagination.Page[OrderSummary], error) {
	if filter.Status != nil && !filter.Status.IsValid() {
		return pagination.Page[OrderSummary]{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter")
	}
	cursor, err := pagination.ParseCursor(filter.Cursor)
	if err != nil {
		return pagination.Page[OrderSummary]{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.List(ctx, filter, cursor, filter.Limit)
	if err != nil {
		return pagination.Page[OrderSummary]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	summaries := make([]OrderSummary, 0, len(rows))
	for _, row := range rows {
		summaries = append(summaries, toSummary(row))
	}
	return pagination.Trim(summaries, filter.Limit, func(o OrderSummary) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	}), nil
}

// transitionPlan is the write set for one order moving to a new status.
type transitionPlan struct {
	order   models.Order
	updates map[string]any
	event   models.OrderEvent
}

func planTransition(order models.Order, to enums.OrderStatus, actor string, now time.Time) (*transitionPlan, error) {
	if order.Status == to {
		return nil, nil
	}
	if !CanTransition(order.Status, to) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "illegal order status transition").
			WithDetails(map[string]any{"orderId": order.ID, "from": order.Status, "to": to})
	}
	updates := map[string]any{"status": to}
	switch to {
	case enums.OrderStatusShipped:
		if order.ShippedAt == nil {
			updates["shipped_at"] = now
			order.ShippedAt = &now
		}
	case enums.OrderStatusDelivered:
		if order.DeliveredAt == nil {
			updates["delivered_at"] = now
			order.DeliveredAt = &now
		}
	case enums.OrderStatusRefunded:
		updates["payment_status"] = enums.PaymentStatusRefunded
		order.PaymentStatus = enums.PaymentStatusRefunded
	}
	from := order.Status
	order.Status = to
	return &transitionPlan{
		order:   order,
		updates: updates,
		event: models.OrderEvent{
			OrderID: order.ID,
			Kind:    enums.OrderEventKindStatusChanged,
			Payload: eventPayload(statusChangePayload{From: from, To: to, Actor: actor}),
		},
	}, nil
}

func (s *service) Transition(ctx context.Context, id int64, to enums.OrderStatus, actor string) (*OrderDetail, error) {
	if _, err := s.BulkTransition(ctx, []int64{id}, to, actor); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *service) BulkTransition(ctx context.Context, ids []int64, to enums.OrderStatus, actor string) (*BulkResult, error) {
	if !to.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status")
	}
	ids = dedupe(ids)
	if len(ids) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "orderIds is required")
	}
	now := s.now().UTC()
	result := &BulkResult{Updated: []int64{}, Unchanged: []int64{}}
	var shipped []models.Order

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		orders, err := repo.FindByIDsForUpdate(ctx, ids)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load orders")
		}
		if missing := missingIDs(ids, orders); len(missing) > 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "orders not found: "+joinIDs(missing))
		}

		plans := make([]*transitionPlan, 0, len(orders))
		for _, order := range orders {
			plan, err := planTransition(order, to, actor, now)
			if err != nil {
				return err
			}
			if plan == nil {
				result.Unchanged = append(result.Unchanged, order.ID)
				continue
			}
			plans = append(plans, plan)
		}

		events := make([]models.OrderEvent, 0, len(plans))
		for _, plan := range plans {
			if err := repo.UpdateFields(ctx, plan.order.ID, plan.updates); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
			}
			events = append(events, plan.event)
			result.Updated = append(result.Updated, plan.order.ID)
			if to == enums.OrderStatusShipped {
				shipped = append(shipped, plan.order)
			}
		}
		if err := repo.AppendEvents(ctx, events); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append order events")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"op":        "orders.transition",
		"status":    string(to),
		"actor":     actor,
		"updated":   len(result.Updated),
		"unchanged": len(result.Unchanged),
	})
	s.logg.Info(logCtx, "order status updated")

	if s.notifier != nil {
		for _, order := range shipped {
			s.notifier.NotifyOrderShipped(ctx, order)
		}
	}
	return result, nil
}

func (s *service) AddNote(ctx context.Context, id int64, note, actor string) (*OrderDetail, error) {
	note = strings.TrimSpace(note)
	if note == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "note is required")
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return repo.AppendEvents(ctx, []models.OrderEvent{{
			OrderID: id,
			Kind:    enums.OrderEventKindNoteAdded,
			Payload: eventPayload(map[string]any{"note": note, "actor": actor}),
		}})
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "add order note")
	}
	return s.Get(ctx, id)
}

func (s *service) Track(ctx context.Context, orderNumber, email string) (*TrackingView, error) {
	orderNumber = strings.ToUpper(strings.TrimSpace(orderNumber))
	email = strings.TrimSpace(email)
	if orderNumber == "" || email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "orderNumber and email are required")
	}
	notFound := pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	order, err := s.repo.FindByNumber(ctx, orderNumber)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order == nil || !strings.EqualFold(order.Email, email) {
		return nil, notFound
	}
	if s.trackingWindow > 0 && s.now().Sub(order.CreatedAt) > s.trackingWindow {
		return nil, notFound
	}
	return toTracking(*order), nil
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

func missingIDs(ids []int64, orders []models.Order) []int64 {
	found := make(map[int64]struct{}, len(orders))
	for _, o := range orders {
		found[o.ID] = struct{}{}
	}
	var missing []int64
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			missing = append(missing, id)
		}
	}
	sort.Slice(missing, func(i, j int) bool { return missing[i] < missing[j] })
	return missing
}

func joinIDs(ids []int64) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, fmt.Sprint(id))
	}
	return strings.Join(parts, ", ")
}
