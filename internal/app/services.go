// Package app assembles the storefront services shared by the api and cron binaries.
package app

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/storefront-backend/internal/catalog"
	"github.com/angelmondragon/storefront-backend/internal/checkout"
	"github.com/angelmondragon/storefront-backend/internal/discounts"
	"github.com/angelmondragon/storefront-backend/internal/inventory"
	"github.com/angelmondragon/storefront-backend/internal/notifications"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/redirects"
	"github.com/angelmondragon/storefront-backend/internal/reservations"
	"github.com/angelmondragon/storefront-backend/internal/settings"
	"github.com/angelmondragon/storefront-backend/internal/shipping"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/email"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/stripe"
)

// Services holds every domain service over one database client.
type Services struct {
	Metrics      *metrics.StorefrontMetrics
	Dispatcher   *notifications.Dispatcher
	Stripe       *stripe.Client
	Settings     *settings.Service
	Catalog      *catalog.Service
	Discounts    *discounts.Service
	Evaluator    *discounts.Evaluator
	Shipping     *shipping.Service
	Inventory    *inventory.Service
	Reservations *reservations.Service
	Orders       orders.Service
	Checkout     *checkout.Service
	Redirects    *redirects.Service
}

// Build wires the services. A missing Stripe configuration is not fatal: checkout
// then answers NOT_CONFIGURED when a session is opened.
func Build(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client, reg prometheus.Registerer) (*Services, error) {
	conn := client.DB()
	s := &Services{Metrics: metrics.NewStorefrontMetrics(reg)}

	sender, err := email.NewSender(ctx, cfg.Email, logg)
	if err != nil {
		return nil, fmt.Errorf("email sender: %w", err)
	}
	s.Dispatcher, err = notifications.NewDispatcher(notifications.DispatcherParams{
		Sender:      sender,
		Logger:      logg,
		Metrics:     s.Metrics,
		Workers:     cfg.Notify.Workers,
		QueueSize:   cfg.Notify.QueueSize,
		SendTimeout: cfg.Notify.SendTimeout,
		PublicURL:   cfg.App.PublicURL,
	})
	if err != nil {
		return nil, fmt.Errorf("notification dispatcher: %w", err)
	}

	if cfg.Stripe.Enabled() {
		s.Stripe, err = stripe.NewClient(ctx, cfg.Stripe, logg)
		if err != nil {
			return nil, fmt.Errorf("stripe client: %w", err)
		}
	} else {
		logg.Warn(ctx, "stripe not configured; checkout sessions cannot be opened")
	}

	if s.Settings, err = settings.NewService(settings.ServiceParams{
		Repo:   settings.NewRepository(conn),
		Logger: logg,
	}); err != nil {
		return nil, err
	}
	if s.Reservations, err = reservations.NewService(reservations.ServiceParams{
		Repo:    reservations.NewRepository(conn),
		Logger:  logg,
		Metrics: s.Metrics,
	}); err != nil {
		return nil, err
	}
	if s.Catalog, err = catalog.NewService(catalog.ServiceParams{
		Repo:         catalog.NewRepository(conn),
		Tx:           client,
		Availability: s.Reservations,
		Logger:       logg,
	}); err != nil {
		return nil, err
	}
	discountRepo := discounts.NewRepository(conn)
	if s.Discounts, err = discounts.NewService(discountRepo, logg); err != nil {
		return nil, err
	}
	if s.Evaluator, err = discounts.NewEvaluator(discountRepo, logg); err != nil {
		return nil, err
	}
	if s.Shipping, err = shipping.NewService(shipping.ServiceParams{
		Repo:   shipping.NewRepository(conn),
		Tx:     client,
		Logger: logg,
	}); err != nil {
		return nil, err
	}
	if s.Inventory, err = inventory.NewService(inventory.ServiceParams{
		Repo:   inventory.NewRepository(conn),
		Tx:     client,
		Logger: logg,
	}); err != nil {
		return nil, err
	}
	if s.Orders, err = orders.NewService(orders.ServiceParams{
		Repo:           orders.NewRepository(conn),
		Tx:             client,
		Notifier:       s.Dispatcher,
		Logger:         logg,
		TrackingWindow: cfg.Checkout.TrackingTokenTTL,
	}); err != nil {
		return nil, err
	}
	if s.Redirects, err = redirects.NewService(redirects.NewRepository(conn), logg); err != nil {
		return nil, err
	}

	taxRate, err := checkout.ParseTaxRate(cfg.Checkout.TaxRatePercent)
	if err != nil {
		return nil, fmt.Errorf("checkout tax rate: %w", err)
	}
	if s.Checkout, err = checkout.NewService(checkout.ServiceParams{
		Repo:         checkout.NewRepository(conn),
		Tx:           client,
		Discounts:    s.Evaluator,
		Shipping:     s.Shipping,
		Settings:     s.Settings,
		Reservations: s.Reservations,
		Inventory:    s.Inventory,
		Orders:       s.Orders,
		Gateway:      checkout.NewStripeGateway(s.Stripe),
		Notifier:     s.Dispatcher,
		Metrics:      s.Metrics,
		Logger:       logg,
		Window:       cfg.Checkout.ReservationWindow,
		TaxRate:      taxRate,
		Currency:     cfg.Checkout.Currency,
		PublicURL:    cfg.App.PublicURL,
		SuccessURL:   cfg.Checkout.SuccessPath,
		CancelURL:    cfg.Checkout.CancelPath,
	}); err != nil {
		return nil, err
	}
	return s, nil
}

// Close drains queued notifications.
func (s *Services) Close(ctx context.Context) error {
	if s == nil || s.Dispatcher == nil {
		return nil
	}
	return s.Dispatcher.Close(ctx)
}
