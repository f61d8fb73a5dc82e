package checkout

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

type fakeSessionAPI struct {
	params  *stripe.CheckoutSessionParams
	expired string
	err     error
}

func (f *fakeSessionAPI) New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	f.params = params
	if f.err != nil {
		return nil, f.err
	}
	return &stripe.CheckoutSession{ID: "cs_test_123", URL: "https://checkout.stripe.com/c/pay/cs_test_123"}, nil
}

func (f *fakeSessionAPI) Expire(id string, _ *stripe.CheckoutSessionExpireParams) (*stripe.CheckoutSession, error) {
	f.expired = id
	return &stripe.CheckoutSession{ID: id}, f.err
}

func TestAmountToMinorUnits(t *testing.T) {
	assert.Equal(t, int64(1235), AmountToMinorUnits(decimal.RequireFromString("12.345")))
	assert.Equal(t, int64(1000), AmountToMinorUnits(decimal.RequireFromString("10")))
	assert.Equal(t, int64(1), AmountToMinorUnits(decimal.RequireFromString("0.01")))
}

func TestStripeGatewayBuildsSingleLineSession(t *testing.T) {
	now := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	api := &fakeSessionAPI{}
	gw := &stripeGateway{api: api, now: func() time.Time { return now }}

	sess, err := gw.CreateSession(context.Background(), PaymentRequest{
		Ref:         "ref-1",
		Email:       "buyer@example.com",
		Amount:      decimal.RequireFromString("34.70"),
		Currency:    "USD",
		Description: "Order of 3 items",
		SuccessURL:  "https://shop.example.com/checkout/success?ref=ref-1",
		CancelURL:   "https://shop.example.com/cart",
		ExpiresAt:   now.Add(30 * time.Minute),
	})
	require.NoError(t, err)
	assert.Equal(t, "cs_test_123", sess.ID)

	p := api.params
	require.NotNil(t, p)
	assert.Equal(t, "ref-1", *p.ClientReferenceID)
	assert.Equal(t, "ref-1", p.Metadata["checkout_ref"])
	assert.Equal(t, now.Add(minProcessorExpiry).Unix(), *p.ExpiresAt)
	require.Len(t, p.LineItems, 1)
	assert.Equal(t, int64(1), *p.LineItems[0].Quantity)
	assert.Equal(t, int64(3470), *p.LineItems[0].PriceData.UnitAmount)
	assert.Equal(t, "usd", *p.LineItems[0].PriceData.Currency)
}

func TestStripeGatewayKeepsLaterExpiry(t *testing.T) {
	now := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	api := &fakeSessionAPI{}
	gw := &stripeGateway{api: api, now: func() time.Time { return now }}

	_, err := gw.CreateSession(context.Background(), PaymentRequest{Ref: "r", Amount: decimal.NewFromInt(1), Currency: "eur", ExpiresAt: now.Add(2 * time.Hour)})
	require.NoError(t, err)
	assert.Equal(t, now.Add(2*time.Hour).Unix(), *api.params.ExpiresAt)

	require.NoError(t, gw.ExpireSession(context.Background(), "cs_old"))
	assert.Equal(t, "cs_old", api.expired)

	api.err = errors.New("boom")
	_, err = gw.CreateSession(context.Background(), PaymentRequest{Ref: "r", Amount: decimal.NewFromInt(1), Currency: "eur"})
	assert.ErrorContains(t, err, "boom")
}

func TestDisabledGatewayReportsNotConfigured(t *testing.T) {
	gw := NewStripeGateway(nil)
	_, err := gw.CreateSession(context.Background(), PaymentRequest{Ref: "r"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotConfigured))
}
