package checkout

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/internal/discounts"
	"github.com/angelmondragon/storefront-backend/internal/shipping"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// LineInput is one cart line.
type LineInput struct {
	VariantID int64 `json:"variantId" validate:"required,gt=0"`
	Quantity  int   `json:"quantity" validate:"required,gt=0,lte=100"`
}

// QuoteInput prices a cart for a destination.
type QuoteInput struct {
	Lines        []LineInput `json:"lines" validate:"required,min=1,max=50,dive"`
	DiscountCode string      `json:"discountCode,omitempty" validate:"max=40"`
	Country      string      `json:"country" validate:"required,len=2"`
}

// OpenInput starts a checkout session for a cart.
type OpenInput struct {
	QuoteInput
	Email      string  `json:"email" validate:"required,email,max=254"`
	CustomerID *string `json:"-"`
}

// Quote is the full price breakdown of a cart.
type Quote struct {
	Lines         []models.CheckoutLine `json:"lines"`
	WeightGrams   int                   `json:"weightGrams"`
	Subtotal      decimal.Decimal       `json:"subtotal"`
	Discount      *discounts.Result     `json:"discount,omitempty"`
	DiscountTotal decimal.Decimal       `json:"discountTotal"`
	Shipping      *shipping.RateQuote   `json:"shipping,omitempty"`
	FreeShipping  bool                  `json:"freeShipping"`
	ShippingTotal decimal.Decimal       `json:"shippingTotal"`
	TaxTotal      decimal.Decimal       `json:"taxTotal"`
	Total         decimal.Decimal       `json:"total"`
	Country       string                `json:"country"`
}

// SessionView is returned to the storefront after a session opens.
type SessionView struct {
	Ref        string                      `json:"ref"`
	Status     enums.CheckoutSessionStatus `json:"status"`
	PaymentURL string                      `json:"paymentUrl,omitempty"`
	ExpiresAt  time.Time                   `json:"expiresAt"`
	Quote      *Quote                      `json:"quote,omitempty"`
}

// StatusView is the public status of a session, including the order once paid.
type StatusView struct {
	Ref         string                      `json:"ref"`
	Status      enums.CheckoutSessionStatus `json:"status"`
	Total       decimal.Decimal             `json:"total"`
	ExpiresAt   time.Time                   `json:"expiresAt"`
	OrderNumber string                      `json:"orderNumber,omitempty"`
}
