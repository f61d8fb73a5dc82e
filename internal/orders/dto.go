package orders

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// ListFilter describes the admin order list inputs.
type ListFilter struct {
	Status *enums.OrderStatus
	Email  string
	Limit  int
	Cursor string
}

// ItemInput snapshots one purchased line at confirmation time.
type ItemInput struct {
	VariantID *int64
	Name      string
	SKU       string
	Quantity  int
	Price     decimal.Decimal
}

// CreateInput carries a confirmed checkout into an order.
type CreateInput struct {
	CheckoutSessionRef string
	CustomerID         *string
	Email              string
	Subtotal           decimal.Decimal
	ShippingTotal      decimal.Decimal
	DiscountTotal      decimal.Decimal
	TaxTotal           decimal.Decimal
	Total              decimal.Decimal
	DiscountCode       *string
	ShippingCountry    string
	PaymentSessionID   string
	Items              []ItemInput
}

// TransitionInput is the admin status change payload.
type TransitionInput struct {
	Status enums.OrderStatus `json:"status" validate:"required"`
}

// BulkTransitionInput moves several orders to one status atomically.
type BulkTransitionInput struct {
	OrderIDs []int64          `json:"orderIds" validate:"required,min=1,max=200,dive,gt=0"`
	Status   enums.OrderStatus `json:"status" validate:"required"`
}

// NoteInput appends an operator note to the order log.
type NoteInput struct {
	Note string `json:"note" validate:"required,max=2000"`
}

// OrderSummary is one row of the admin list.
type OrderSummary struct {
	ID            int64               `json:"id"`
	OrderNumber   string              `json:"orderNumber"`
	Email         string              `json:"email"`
	Status        enums.OrderStatus   `json:"status"`
	PaymentStatus enums.PaymentStatus `json:"paymentStatus"`
	Total         decimal.Decimal     `json:"total"`
	ItemCount     int                 `json:"itemCount"`
	CreatedAt     time.Time           `json:"createdAt"`
}

// ItemView is a purchased line.
type ItemView struct {
	ID        int64           `json:"id"`
	VariantID *int64          `json:"variantId,omitempty"`
	Name      string          `json:"name"`
	SKU       string          `json:"sku,omitempty"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// EventView is one audit log entry.
type EventView struct {
	ID        int64                `json:"id"`
	Kind      enums.OrderEventKind `json:"kind"`
	Payload   json.RawMessage      `json:"payload,omitempty"`
	CreatedAt time.Time            `json:"createdAt"`
}

// OrderDetail is the admin order page.
type OrderDetail struct {
	ID                 int64               `json:"id"`
	OrderNumber        string              `json:"orderNumber"`
	CheckoutSessionRef *string             `json:"checkoutSessionRef,omitempty"`
	CustomerID         *string             `json:"customerId,omitempty"`
	Email              string              `json:"email"`
	Status             enums.OrderStatus   `json:"status"`
	PaymentStatus      enums.PaymentStatus `json:"paymentStatus"`
	Subtotal           decimal.Decimal     `json:"subtotal"`
	ShippingTotal      decimal.Decimal     `json:"shippingTotal"`
	DiscountTotal      decimal.Decimal     `json:"discountTotal"`
	TaxTotal           decimal.Decimal     `json:"taxTotal"`
	Total              decimal.Decimal     `json:"total"`
	DiscountCode       *string             `json:"discountCode,omitempty"`
	ShippingCountry    string              `json:"shippingCountry"`
	ShippedAt          *time.Time          `json:"shippedAt,omitempty"`
	DeliveredAt        *time.Time          `json:"deliveredAt,omitempty"`
	Items              []ItemView          `json:"items"`
	Events             []EventView         `json:"events"`
	CreatedAt          time.Time           `json:"createdAt"`
	UpdatedAt          time.Time           `json:"updatedAt"`
}

// TrackingView is the public order status page. It omits internal identifiers.
type TrackingView struct {
	OrderNumber   string              `json:"orderNumber"`
	Status        enums.OrderStatus   `json:"status"`
	PaymentStatus enums.PaymentStatus `json:"paymentStatus"`
	Total         decimal.Decimal     `json:"total"`
	Items         []ItemView          `json:"items"`
	ShippedAt     *time.Time          `json:"shippedAt,omitempty"`
	DeliveredAt   *time.Time          `json:"deliveredAt,omitempty"`
	History       []StatusChange      `json:"history"`
	CreatedAt     time.Time           `json:"createdAt"`
}

// StatusChange is a public projection of a status_changed event.
type StatusChange struct {
	Status enums.OrderStatus `json:"status"`
	At     time.Time         `json:"at"`
}

// BulkResult reports which orders changed status.
type BulkResult struct {
	Updated   []int64 `json:"updated"`
	Unchanged []int64 `json:"unchanged"`
}

type statusChangePayload struct {
	From  enums.OrderStatus `json:"from"`
	To    enums.OrderStatus `json:"to"`
	Actor string            `json:"actor,omitempty"`
}

func toItemViews(items []models.OrderItem) []ItemView {
	out := make([]ItemView, 0, len(items))
	for _, item := range items {
		out = append(out, ItemView{
			ID:        item.ID,
			VariantID: item.VariantID,
			Name:      item.Name,
			SKU:       item.SKU,
			Quantity:  item.Quantity,
			Price:     item.Price,
		})
	}
	return out
}

func toSummary(order models.Order) OrderSummary {
	count := 0
	for _, item := range order.Items {
		count += item.Quantity
	}
	return OrderSummary{
		ID:            order.ID,
		OrderNumber:   order.OrderNumber,
		Email:         order.Email,
		Status:        order.Status,
		PaymentStatus: order.PaymentStatus,
		Total:         order.Total,
		ItemCount:     count,
		CreatedAt:     order.CreatedAt,
	}
}

func toDetail(order models.Order) *OrderDetail {
	events := make([]EventView, 0, len(order.Events))
	for _, ev := range order.Events {
		events = append(events, EventView{ID: ev.ID, Kind: ev.Kind, Payload: ev.Payload, CreatedAt: ev.CreatedAt})
	}
	return &OrderDetail{
		ID:                 order.ID,
		OrderNumber:        order.OrderNumber,
		CheckoutSessionRef: order.CheckoutSessionRef,
		CustomerID:         order.CustomerID,
		Email:              order.Email,
		Status:             order.Status,
		PaymentStatus:      order.PaymentStatus,
		Subtotal:           order.Subtotal,
		ShippingTotal:      order.ShippingTotal,
		DiscountTotal:      order.DiscountTotal,
		TaxTotal:           order.TaxTotal,
		Total:              order.Total,
		DiscountCode:       order.DiscountCode,
		ShippingCountry:    order.ShippingCountry,
		ShippedAt:          order.ShippedAt,
		DeliveredAt:        order.DeliveredAt,
		Items:              toItemViews(order.Items),
		Events:             events,
		CreatedAt:          order.CreatedAt,
		UpdatedAt:          order.UpdatedAt,
	}
}

func toTracking(order models.Order) *TrackingView {
	history := []StatusChange{{Status: enums.OrderStatusPending, At: order.CreatedAt}}
	for _, ev := range order.Events {
		if ev.Kind != enums.OrderEventKindStatusChanged {
			continue
		}
		var payload statusChangePayload
		if err := json.Unmarshal(ev.Payload, &payload); err != nil {
			continue
		}
		history = append(history, StatusChange{Status: payload.To, At: ev.CreatedAt})
	}
	return &TrackingView{
		OrderNumber:   order.OrderNumber,
		Status:        order.Status,
		PaymentStatus: order.PaymentStatus,
		Total:         order.Total,
		Items:         toItemViews(order.Items),
		ShippedAt:     order.ShippedAt,
		DeliveredAt:   order.DeliveredAt,
		History:       history,
		CreatedAt:     order.CreatedAt,
	}
}
