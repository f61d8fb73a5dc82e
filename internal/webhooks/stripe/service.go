package stripewebhook

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type checkoutService interface {
	Confirm(ctx context.Context, ref, paymentSessionID string) (*models.Order, error)
	Expire(ctx context.Context, ref string) (bool, error)
}

type ServiceParams struct {
	Checkout checkoutService
	Logger   *logger.Logger
}

// Service applies Stripe Checkout events to local checkout sessions.
type Service struct {
	checkout checkoutService
	logg     *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Checkout == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "checkout service required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{checkout: params.Checkout, logg: params.Logger}, nil
}

func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted,
		stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded:
		sess, err := decodeSession(event)
		if err != nil {
			return err
		}
		if sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid &&
			sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusNoPaymentRequired {
			s.logg.Info(s.sessionContext(ctx, event, sess), "checkout session completed without payment; awaiting async result")
			return nil
		}
		ref := checkoutRef(sess)
		if ref == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "checkout reference missing")
		}
		order, err := s.checkout.Confirm(ctx, ref, sess.ID)
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			s.logg.Warn(s.sessionContext(ctx, event, sess), "checkout session unknown; event ignored")
			return nil
		}
		if pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
			// Retrying cannot change the outcome; the payment needs manual review.
			s.logg.Error(s.logg.WithField(s.sessionContext(ctx, event, sess), "op", "stripe.confirm_conflict"), "paid checkout session could not be confirmed", err)
			return nil
		}
		if err != nil {
			return err
		}
		s.logg.Info(s.logg.WithField(s.sessionContext(ctx, event, sess), "order_number", order.OrderNumber), "checkout session confirmed")
		return nil
	case stripe.EventTypeCheckoutSessionExpired,
		stripe.EventTypeCheckoutSessionAsyncPaymentFailed:
		sess, err := decodeSession(event)
		if err != nil {
			return err
		}
		ref := checkoutRef(sess)
		if ref == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "checkout reference missing")
		}
		if _, err := s.checkout.Expire(ctx, ref); err != nil {
			if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
				s.logg.Warn(s.sessionContext(ctx, event, sess), "checkout session unknown; event ignored")
				return nil
			}
			return err
		}
		return nil
	default:
		return nil
	}
}

func (s *Service) sessionContext(ctx context.Context, event *stripe.Event, sess *stripe.CheckoutSession) context.Context {
	return s.logg.WithFields(ctx, map[string]any{
		"stripe_event_id":    event.ID,
		"stripe_event_type":  string(event.Type),
		"payment_session_id": sess.ID,
		"ref":                checkoutRef(sess),
	})
}

func decodeSession(event *stripe.Event) (*stripe.CheckoutSession, error) {
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode checkout session event")
	}
	return &sess, nil
}

func checkoutRef(sess *stripe.CheckoutSession) string {
	if ref := strings.TrimSpace(sess.ClientReferenceID); ref != "" {
		return ref
	}
	return strings.TrimSpace(sess.Metadata["checkout_ref"])
}
