package checkout

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	pkgstripe "github.com/angelmondragon/storefront-backend/pkg/stripe"
)

// Stripe rejects Checkout Session expiries closer than 30 minutes.
const minProcessorExpiry = 31 * time.Minute

// PaymentRequest describes the hosted payment page to open for a checkout.
type PaymentRequest struct {
	Ref         string
	Email       string
	Amount      decimal.Decimal
	Currency    string
	Description string
	SuccessURL  string
	CancelURL   string
	ExpiresAt   time.Time
}

// PaymentSession is the processor's handle for a hosted payment page.
type PaymentSession struct {
	ID  string
	URL string
}

// PaymentGateway opens and cancels hosted payment sessions.
type PaymentGateway interface {
	CreateSession(ctx context.Context, req PaymentRequest) (*PaymentSession, error)
	ExpireSession(ctx context.Context, id string) error
}

type stripeSessionAPI interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	Expire(id string, params *stripe.CheckoutSessionExpireParams) (*stripe.CheckoutSession, error)
}

type stripeGateway struct {
	api stripeSessionAPI
	now func() time.Time
}

// NewStripeGateway wraps Stripe Checkout. A nil client yields a gateway that
// reports payments as not configured.
func NewStripeGateway(client *pkgstripe.Client) PaymentGateway {
	if client == nil {
		return disabledGateway{}
	}
	return &stripeGateway{api: client.CheckoutSessions(), now: time.Now}
}

// AmountToMinorUnits converts a decimal amount to the processor's integer minor units.
func AmountToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Round(2).Shift(2).IntPart()
}

func (g *stripeGateway) CreateSession(ctx context.Context, req PaymentRequest) (*PaymentSession, error) {
	expiresAt := req.ExpiresAt
	if floor := g.now().Add(minProcessorExpiry); expiresAt.Before(floor) {
		expiresAt = floor
	}
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		ClientReferenceID: stripe.String(req.Ref),
		CustomerEmail:     stripe.String(req.Email),
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		ExpiresAt:         stripe.Int64(expiresAt.Unix()),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Quantity: stripe.Int64(1),
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(strings.ToLower(req.Currency)),
					UnitAmount: stripe.Int64(AmountToMinorUnits(req.Amount)),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(req.Description),
					},
				},
			},
		},
	}
	params.Context = ctx
	params.AddMetadata("checkout_ref", req.Ref)

	sess, err := g.api.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe checkout session: %w", err)
	}
	return &PaymentSession{ID: sess.ID, URL: sess.URL}, nil
}

func (g *stripeGateway) ExpireSession(ctx context.Context, id string) error {
	params := &stripe.CheckoutSessionExpireParams{}
	params.Context = ctx
	if _, err := g.api.Expire(id, params); err != nil {
		return fmt.Errorf("stripe expire session: %w", err)
	}
	return nil
}

type disabledGateway struct{}

func (disabledGateway) CreateSession(context.Context, PaymentRequest) (*PaymentSession, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotConfigured, "payments are not configured")
}

func (disabledGateway) ExpireSession(context.Context, string) error {
	return nil
}
