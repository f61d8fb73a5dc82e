package checkout

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/discounts"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/reservations"
	"github.com/angelmondragon/storefront-backend/internal/settings"
	"github.com/angelmondragon/storefront-backend/internal/shipping"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const (
	defaultWindow   = 30 * time.Minute
	staleBatchLimit = 200
)

var hundred = decimal.NewFromInt(100)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type discountEvaluator interface {
	Evaluate(ctx context.Context, code string, subtotal decimal.Decimal, now time.Time) (*discounts.Result, error)
	IncrementUses(ctx context.Context, tx *gorm.DB, code string) error
}

type rateResolver interface {
	Resolve(ctx context.Context, country string, weightGrams int) (*shipping.RateQuote, error)
}

type freeShippingReader interface {
	FreeShipping(ctx context.Context) (settings.FreeShipping, error)
}

type reservationManager interface {
	Reserve(ctx context.Context, tx *gorm.DB, ref string, lines []reservations.Line, expiresAt, now time.Time) error
	Consume(ctx context.Context, tx *gorm.DB, ref string) (int64, error)
	Release(ctx context.Context, tx *gorm.DB, ref string) (int64, error)
}

type stockDecrementer interface {
	Decrement(ctx context.Context, tx *gorm.DB, variantID int64, qty int) error
}

type orderCreator interface {
	Create(ctx context.Context, tx *gorm.DB, input orders.CreateInput) (*models.Order, error)
	FindByCheckoutRef(ctx context.Context, tx *gorm.DB, ref string) (*models.Order, error)
}

type confirmationNotifier interface {
	NotifyOrderConfirmed(ctx context.Context, order models.Order)
}

type confirmationRecorder interface {
	IncOrdersConfirmed()
}

// ServiceParams wires the checkout orchestrator.
type ServiceParams struct {
	Repo         Repository
	Tx           txRunner
	Discounts    discountEvaluator
	Shipping     rateResolver
	Settings     freeShippingReader
	Reservations reservationManager
	Inventory    stockDecrementer
	Orders       orderCreator
	Gateway      PaymentGateway
	Notifier     confirmationNotifier
	Metrics      confirmationRecorder
	Logger       *logger.Logger

	Window     time.Duration
	TaxRate    decimal.Decimal
	Currency   string
	PublicURL  string
	SuccessURL string
	CancelURL  string
	Now        func() time.Time
}

// Service prices carts, opens checkout sessions and turns paid sessions into orders.
type Service struct {
	repo         Repository
	tx           txRunner
	discounts    discountEvaluator
	shipping     rateResolver
	settings     freeShippingReader
	reservations reservationManager
	inventory    stockDecrementer
	orders       orderCreator
	gateway      PaymentGateway
	notifier     confirmationNotifier
	metrics      confirmationRecorder
	logg         *logger.Logger

	window     time.Duration
	taxRate    decimal.Decimal
	currency   string
	successURL string
	cancelURL  string
	now        func() time.Time
}

// NewService validates params and builds a Service.
func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Repo == nil:
		return nil, fmt.Errorf("checkout repository required")
	case params.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	case params.Discounts == nil:
		return nil, fmt.Errorf("discount evaluator required")
	case params.Shipping == nil:
		return nil, fmt.Errorf("shipping resolver required")
	case params.Settings == nil:
		return nil, fmt.Errorf("settings reader required")
	case params.Reservations == nil:
		return nil, fmt.Errorf("reservation manager required")
	case params.Inventory == nil:
		return nil, fmt.Errorf("inventory required")
	case params.Orders == nil:
		return nil, fmt.Errorf("orders service required")
	case params.Gateway == nil:
		return nil, fmt.Errorf("payment gateway required")
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	}
	if params.TaxRate.IsNegative() {
		return nil, fmt.Errorf("tax rate must not be negative")
	}
	window := params.Window
	if window <= 0 {
		window = defaultWindow
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	currency := strings.ToLower(strings.TrimSpace(params.Currency))
	if currency == "" {
		currency = "eur"
	}
	return &Service{
		repo:         params.Repo,
		tx:           params.Tx,
		discounts:    params.Discounts,
		shipping:     params.Shipping,
		settings:     params.Settings,
		reservations: params.Reservations,
		inventory:    params.Inventory,
		orders:       params.Orders,
		gateway:      params.Gateway,
		notifier:     params.Notifier,
		metrics:      params.Metrics,
		logg:         params.Logger,
		window:       window,
		taxRate:      params.TaxRate,
		currency:     currency,
		successURL:   resolveURL(params.PublicURL, params.SuccessURL, "/checkout/success"),
		cancelURL:    resolveURL(params.PublicURL, params.CancelURL, "/cart"),
		now:          now,
	}, nil
}

// ParseTaxRate reads a percentage such as "8.25" from configuration.
func ParseTaxRate(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, nil
	}
	rate, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid tax rate %q: %w", raw, err)
	}
	if rate.IsNegative() || rate.GreaterThan(hundred) {
		return decimal.Zero, fmt.Errorf("tax rate %q must be between 0 and 100", raw)
	}
	return rate, nil
}

func resolveURL(base, path, fallback string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if strings.TrimSpace(path) == "" {
		path = fallback
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}

func mergeLines(lines []LineInput) ([]LineInput, error) {
	if len(lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}
	totals := map[int64]int{}
	for _, line := range lines {
		if line.VariantID <= 0 || line.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "each line needs a variant and a positive quantity")
		}
		totals[line.VariantID] += line.Quantity
	}
	merged := make([]LineInput, 0, len(totals))
	for id, qty := range totals {
		merged = append(merged, LineInput{VariantID: id, Quantity: qty})
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].VariantID < merged[j].VariantID })
	return merged, nil
}

// Quote prices a cart: subtotal, discount, shipping (or the free shipping
// override), tax and total.
func (s *Service) Quote(ctx context.Context, input QuoteInput) (*Quote, error) {
	lines, err := mergeLines(input.Lines)
	if err != nil {
		return nil, err
	}
	country := shipping.NormalizeCountry(input.Country)
	if len(country) != 2 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "country must be an ISO 3166-1 alpha-2 code")
	}

	ids := make([]int64, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.VariantID)
	}
	variants, err := s.repo.LoadVariants(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load variants")
	}
	byID := make(map[int64]PricedVariant, len(variants))
	for _, v := range variants {
		if v.ProductStatus == enums.ProductStatusActive {
			byID[v.ID] = v
		}
	}

	quote := &Quote{Country: country, Subtotal: decimal.Zero}
	var unavailable []int64
	for _, line := range lines {
		v, ok := byID[line.VariantID]
		if !ok {
			unavailable = append(unavailable, line.VariantID)
			continue
		}
		sku := ""
		if v.SKU != nil {
			sku = *v.SKU
		}
		quote.Lines = append(quote.Lines, models.CheckoutLine{
			VariantID:   v.ID,
			ProductName: v.ProductName,
			VariantName: v.Name,
			SKU:         sku,
			Quantity:    line.Quantity,
			UnitPrice:   v.Price,
			WeightGrams: v.WeightGrams,
		})
		quote.Subtotal = quote.Subtotal.Add(v.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
		quote.WeightGrams += v.WeightGrams * line.Quantity
	}
	if len(unavailable) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "some items are unavailable").
			WithDetails(map[string]any{"variantIds": unavailable})
	}
	quote.Subtotal = quote.Subtotal.Round(2)

	now := s.now().UTC()
	quote.DiscountTotal = decimal.Zero
	if code := strings.TrimSpace(input.DiscountCode); code != "" {
		result, err := s.discounts.Evaluate(ctx, code, quote.Subtotal, now)
		if err != nil {
			return nil, err
		}
		quote.Discount = result
		quote.DiscountTotal = result.Amount
	}
	discounted := quote.Subtotal.Sub(quote.DiscountTotal)

	free, err := s.settings.FreeShipping(ctx)
	if err != nil {
		return nil, err
	}
	quote.ShippingTotal = decimal.Zero
	if free.Applies(discounted) {
		quote.FreeShipping = true
	} else {
		rate, err := s.shipping.Resolve(ctx, country, quote.WeightGrams)
		if err != nil {
			return nil, err
		}
		quote.Shipping = rate
		quote.ShippingTotal = rate.Price
	}

	quote.TaxTotal = discounted.Mul(s.taxRate).Div(hundred).Round(2)
	quote.Total = discounted.Add(quote.ShippingTotal).Add(quote.TaxTotal).Round(2)
	return quote, nil
}

// Open prices the cart, reserves stock under a new session ref and opens a
// hosted payment page for it.
func (s *Service) Open(ctx context.Context, input OpenInput) (*SessionView, error) {
	email := strings.TrimSpace(input.Email)
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	quote, err := s.Quote(ctx, input.QuoteInput)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	ref := uuid.NewString()
	session := &models.CheckoutSession{
		Ref:             ref,
		Email:           email,
		CustomerID:      input.CustomerID,
		Status:          enums.CheckoutSessionStatusOpen,
		Lines:           quote.Lines,
		ShippingCountry: quote.Country,
		Subtotal:        quote.Subtotal,
		ShippingTotal:   quote.ShippingTotal,
		DiscountTotal:   quote.DiscountTotal,
		TaxTotal:        quote.TaxTotal,
		Total:           quote.Total,
		ExpiresAt:       now.Add(s.window),
	}
	if quote.Discount != nil {
		code := quote.Discount.Code
		session.DiscountCode = &code
	}
	held := make([]reservations.Line, 0, len(quote.Lines))
	for _, line := range quote.Lines {
		held = append(held, reservations.Line{VariantID: line.VariantID, Quantity: line.Quantity})
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{"op": "checkout.open", "ref": ref})
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, session); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create checkout session")
		}
		return s.reservations.Reserve(ctx, tx, ref, held, session.ExpiresAt, now)
	})
	if err != nil {
		return nil, err
	}

	payment, err := s.gateway.CreateSession(ctx, PaymentRequest{
		Ref:         ref,
		Email:       email,
		Amount:      quote.Total,
		Currency:    s.currency,
		Description: describe(quote),
		SuccessURL:  s.successURL + "?ref=" + url.QueryEscape(ref),
		CancelURL:   s.cancelURL,
		ExpiresAt:   session.ExpiresAt,
	})
	if err != nil {
		s.logg.Error(logCtx, "payment session creation failed", err)
		if _, rerr := s.Expire(ctx, ref); rerr != nil {
			s.logg.Error(logCtx, "release after payment failure", rerr)
		}
		if typed := pkgerrors.As(err); typed != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "payment provider unavailable")
	}
	if err := s.repo.SetPayment(ctx, ref, payment.ID, payment.URL); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store payment session")
	}

	s.logg.Info(s.logg.WithField(logCtx, "payment_session_id", payment.ID), "checkout session opened")
	return &SessionView{
		Ref:        ref,
		Status:     enums.CheckoutSessionStatusOpen,
		PaymentURL: payment.URL,
		ExpiresAt:  session.ExpiresAt,
		Quote:      quote,
	}, nil
}

func describe(q *Quote) string {
	units := 0
	for _, line := range q.Lines {
		units += line.Quantity
	}
	if len(q.Lines) == 1 {
		return fmt.Sprintf("%s / %s x%d", q.Lines[0].ProductName, q.Lines[0].VariantName, units)
	}
	return fmt.Sprintf("Order of %d items", units)
}

// Confirm turns a paid session into an order. It applies its side effects
// exactly once: repeated calls for the same ref return the existing order.
// An expired session is still confirmed when the payment belongs to the
// processor session it opened.
func (s *Service) Confirm(ctx context.Context, ref, paymentSessionID string) (*models.Order, error) {
	logCtx := s.logg.WithFields(ctx, map[string]any{"op": "checkout.confirm", "ref": ref})
	var (
		order   *models.Order
		created bool
		late    bool
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		session, err := repo.FindByRef(ctx, ref, true)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load checkout session")
		}
		if session == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "checkout session not found")
		}

		moved, err := repo.TransitionStatus(ctx, ref, enums.CheckoutSessionStatusOpen, enums.CheckoutSessionStatusCompleted)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "complete checkout session")
		}
		if !moved && session.Status == enums.CheckoutSessionStatusExpired {
			// Async payment methods can settle after the hosted page lapsed.
			// The charge is captured, so the order is still recorded; its
			// reservations are gone and the stock decrement clamps at zero.
			if !samePaymentSession(session, paymentSessionID) {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "checkout session already expired").
					WithDetails(map[string]any{"ref": ref})
			}
			moved, err = repo.TransitionStatus(ctx, ref, enums.CheckoutSessionStatusExpired, enums.CheckoutSessionStatusCompleted)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "complete expired checkout session")
			}
			late = moved
		}
		if !moved {
			order, err = s.orders.FindByCheckoutRef(ctx, tx, ref)
			if err != nil {
				return err
			}
			if order == nil {
				return pkgerrors.New(pkgerrors.CodeInternal, "completed checkout session has no order")
			}
			return nil
		}

		items := make([]orders.ItemInput, 0, len(session.Lines))
		for _, line := range session.Lines {
			variantID := line.VariantID
			name := line.ProductName
			if line.VariantName != "" {
				name += " / " + line.VariantName
			}
			items = append(items, orders.ItemInput{
				VariantID: &variantID,
				Name:      name,
				SKU:       line.SKU,
				Quantity:  line.Quantity,
				Price:     line.UnitPrice,
			})
		}
		order, err = s.orders.Create(ctx, tx, orders.CreateInput{
			CheckoutSessionRef: ref,
			CustomerID:         session.CustomerID,
			Email:              session.Email,
			Subtotal:           session.Subtotal,
			ShippingTotal:      session.ShippingTotal,
			DiscountTotal:      session.DiscountTotal,
			TaxTotal:           session.TaxTotal,
			Total:              session.Total,
			DiscountCode:       session.DiscountCode,
			ShippingCountry:    session.ShippingCountry,
			PaymentSessionID:   paymentSessionID,
			Items:              items,
		})
		if err != nil {
			return err
		}
		for _, line := range session.Lines {
			if err := s.inventory.Decrement(ctx, tx, line.VariantID, line.Quantity); err != nil {
				return err
			}
		}
		if _, err := s.reservations.Consume(ctx, tx, ref); err != nil {
			return err
		}
		if session.DiscountCode != nil {
			if err := s.discounts.IncrementUses(ctx, tx, *session.DiscountCode); err != nil {
				return err
			}
		}
		created = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !created {
		s.logg.Info(s.logg.WithField(logCtx, "order_id", order.ID), "checkout already confirmed")
		return order, nil
	}
	if late {
		s.logg.Warn(s.logg.WithField(logCtx, "order_id", order.ID), "payment settled after checkout expired; order recorded without reservation")
	}
	if s.metrics != nil {
		s.metrics.IncOrdersConfirmed()
	}
	s.logg.Info(s.logg.WithFields(logCtx, map[string]any{"order_id": order.ID, "order_number": order.OrderNumber}), "checkout confirmed")
	if s.notifier != nil {
		s.notifier.NotifyOrderConfirmed(ctx, *order)
	}
	return order, nil
}

func samePaymentSession(session *models.CheckoutSession, paymentSessionID string) bool {
	paymentSessionID = strings.TrimSpace(paymentSessionID)
	return paymentSessionID != "" && session.PaymentSessionID != nil && *session.PaymentSessionID == paymentSessionID
}

// Expire closes an open session and releases its reservations. It reports
// whether this call performed the transition.
func (s *Service) Expire(ctx context.Context, ref string) (bool, error) {
	var expired bool
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		session, err := repo.FindByRef(ctx, ref, true)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load checkout session")
		}
		if session == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "checkout session not found")
		}
		expired, err = repo.TransitionStatus(ctx, ref, enums.CheckoutSessionStatusOpen, enums.CheckoutSessionStatusExpired)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "expire checkout session")
		}
		if !expired {
			return nil
		}
		_, err = s.reservations.Release(ctx, tx, ref)
		return err
	})
	if err != nil {
		return false, err
	}
	if expired {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{"op": "checkout.expire", "ref": ref}), "checkout session expired")
	}
	return expired, nil
}

// ExpireStale closes open sessions whose window has passed and asks the
// processor to cancel their hosted payment pages.
func (s *Service) ExpireStale(ctx context.Context) (int, error) {
	stale, err := s.repo.ListStaleOpen(ctx, s.now().UTC(), staleBatchLimit)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list stale checkout sessions")
	}
	expired := 0
	for _, session := range stale {
		moved, err := s.Expire(ctx, session.Ref)
		if err != nil {
			return expired, err
		}
		if !moved {
			continue
		}
		expired++
		if session.PaymentSessionID == nil {
			continue
		}
		if err := s.gateway.ExpireSession(ctx, *session.PaymentSessionID); err != nil {
			s.logg.Warn(s.logg.WithFields(ctx, map[string]any{"ref": session.Ref, "payment_session_id": *session.PaymentSessionID, "error": err.Error()}), "processor session expiry failed")
		}
	}
	return expired, nil
}

// Status reports a session's state and, once paid, its order number.
func (s *Service) Status(ctx context.Context, ref string) (*StatusView, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "ref is required")
	}
	session, err := s.repo.FindByRef(ctx, ref, false)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load checkout session")
	}
	if session == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "checkout session not found")
	}
	view := &StatusView{
		Ref:       session.Ref,
		Status:    session.Status,
		Total:     session.Total,
		ExpiresAt: session.ExpiresAt,
	}
	if session.Status == enums.CheckoutSessionStatusCompleted {
		order, err := s.orders.FindByCheckoutRef(ctx, nil, ref)
		if err != nil {
			return nil, err
		}
		if order != nil {
			view.OrderNumber = order.OrderNumber
		}
	}
	return view, nil
}
