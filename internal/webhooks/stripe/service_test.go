package stripewebhook

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type stubCheckout struct {
	confirmed []string
	expired   []string
	err       error
}

func (s *stubCheckout) Confirm(_ context.Context, ref, paymentSessionID string) (*models.Order, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.confirmed = append(s.confirmed, ref+"|"+paymentSessionID)
	return &models.Order{OrderNumber: "SO-260101-ABCDEFGH"}, nil
}

func (s *stubCheckout) Expire(_ context.Context, ref string) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	s.expired = append(s.expired, ref)
	return true, nil
}

func newTestService(t *testing.T, checkout *stubCheckout) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{Checkout: checkout, Logger: logger.New(logger.Options{ServiceName: "webhook-test"})})
	require.NoError(t, err)
	return svc
}

func sessionEvent(t *testing.T, typ stripe.EventType, sess stripe.CheckoutSession) *stripe.Event {
	t.Helper()
	raw, err := json.Marshal(sess)
	require.NoError(t, err)
	return &stripe.Event{ID: "evt_test", Type: typ, Data: &stripe.EventData{Raw: raw}}
}

func TestCompletedSessionConfirmsCheckout(t *testing.T) {
	checkout := &stubCheckout{}
	svc := newTestService(t, checkout)

	err := svc.HandleEvent(context.Background(), sessionEvent(t, stripe.EventTypeCheckoutSessionCompleted, stripe.CheckoutSession{
		ID:                "cs_test_1",
		ClientReferenceID: "ref-1",
		PaymentStatus:     stripe.CheckoutSessionPaymentStatusPaid,
	}))
	require.NoError(t, err)
	assert.Equal(t, []string{"ref-1|cs_test_1"}, checkout.confirmed)
}

func TestCompletedSessionFallsBackToMetadataRef(t *testing.T) {
	checkout := &stubCheckout{}
	svc := newTestService(t, checkout)

	err := svc.HandleEvent(context.Background(), sessionEvent(t, stripe.EventTypeCheckoutSessionCompleted, stripe.CheckoutSession{
		ID:            "cs_test_2",
		Metadata:      map[string]string{"checkout_ref": "ref-2"},
		PaymentStatus: stripe.CheckoutSessionPaymentStatusPaid,
	}))
	require.NoError(t, err)
	assert.Equal(t, []string{"ref-2|cs_test_2"}, checkout.confirmed)
}

func TestUnpaidCompletionWaitsForAsyncResult(t *testing.T) {
	checkout := &stubCheckout{}
	svc := newTestService(t, checkout)

	err := svc.HandleEvent(context.Background(), sessionEvent(t, stripe.EventTypeCheckoutSessionCompleted, stripe.CheckoutSession{
		ID:                "cs_test_3",
		ClientReferenceID: "ref-3",
		PaymentStatus:     stripe.CheckoutSessionPaymentStatusUnpaid,
	}))
	require.NoError(t, err)
	assert.Empty(t, checkout.confirmed)
}

func TestExpiredSessionReleasesCheckout(t *testing.T) {
	checkout := &stubCheckout{}
	svc := newTestService(t, checkout)

	err := svc.HandleEvent(context.Background(), sessionEvent(t, stripe.EventTypeCheckoutSessionExpired, stripe.CheckoutSession{
		ID:                "cs_test_4",
		ClientReferenceID: "ref-4",
	}))
	require.NoError(t, err)
	assert.Equal(t, []string{"ref-4"}, checkout.expired)
}

func TestUnknownSessionIsAcknowledged(t *testing.T) {
	checkout := &stubCheckout{err: pkgerrors.New(pkgerrors.CodeNotFound, "checkout session not found")}
	svc := newTestService(t, checkout)

	err := svc.HandleEvent(context.Background(), sessionEvent(t, stripe.EventTypeCheckoutSessionCompleted, stripe.CheckoutSession{
		ID:                "cs_other",
		ClientReferenceID: "foreign",
		PaymentStatus:     stripe.CheckoutSessionPaymentStatusPaid,
	}))
	assert.NoError(t, err)
}

func TestConfirmFailuresPropagateForRetry(t *testing.T) {
	checkout := &stubCheckout{err: pkgerrors.New(pkgerrors.CodeDependency, "db down")}
	svc := newTestService(t, checkout)

	err := svc.HandleEvent(context.Background(), sessionEvent(t, stripe.EventTypeCheckoutSessionCompleted, stripe.CheckoutSession{
		ID:                "cs_test_5",
		ClientReferenceID: "ref-5",
		PaymentStatus:     stripe.CheckoutSessionPaymentStatusPaid,
	}))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
}

func TestUnconfirmablePaidSessionIsAcknowledged(t *testing.T) {
	checkout := &stubCheckout{err: pkgerrors.New(pkgerrors.CodeStateConflict, "checkout session already expired")}
	svc := newTestService(t, checkout)

	err := svc.HandleEvent(context.Background(), sessionEvent(t, stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded, stripe.CheckoutSession{
		ID:                "cs_test_8",
		ClientReferenceID: "ref-8",
		PaymentStatus:     stripe.CheckoutSessionPaymentStatusPaid,
	}))
	assert.NoError(t, err)
}

func TestMissingRefAndDataAreRejected(t *testing.T) {
	svc := newTestService(t, &stubCheckout{})

	err := svc.HandleEvent(context.Background(), sessionEvent(t, stripe.EventTypeCheckoutSessionExpired, stripe.CheckoutSession{ID: "cs_test_6"}))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	err = svc.HandleEvent(context.Background(), &stripe.Event{Type: stripe.EventTypeCheckoutSessionCompleted})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestOtherEventsAreIgnored(t *testing.T) {
	checkout := &stubCheckout{}
	svc := newTestService(t, checkout)
	err := svc.HandleEvent(context.Background(), &stripe.Event{Type: stripe.EventTypeInvoicePaid, Data: &stripe.EventData{Raw: []byte(`{}`)}})
	require.NoError(t, err)
	assert.Empty(t, checkout.confirmed)
	assert.Empty(t, checkout.expired)
}
