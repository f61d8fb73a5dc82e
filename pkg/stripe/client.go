package stripe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/checkout/session"
	"github.com/stripe/stripe-go/v84/webhook"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const (
	testEnv = "test"
	liveEnv = "live"
)

var (
	errAPIKeyRequired   = errors.New("stripe api key is required")
	errInvalidStripeEnv = fmt.Errorf("stripe environment must be %q or %q", testEnv, liveEnv)

	// ErrWebhookNotConfigured is returned by VerifyEvent when no signing secret is set.
	ErrWebhookNotConfigured = errors.New("stripe webhook signing secret is not configured")
)

// Client carries the storefront's Stripe credentials: the secret key used to
// open Checkout Sessions and the signing secret used to verify webhooks.
type Client struct {
	api           *stripe.Client
	environment   string
	signingSecret string
}

// NewClient validates the key against the configured environment. A missing
// signing secret is allowed; webhooks then answer NOT_CONFIGURED.
func NewClient(ctx context.Context, cfg config.StripeConfig, logg *logger.Logger) (*Client, error) {
	env, err := normalizeEnv(cfg.Environment())
	if err != nil {
		return nil, err
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}
	if err := validateAPIKey(env, apiKey); err != nil {
		return nil, err
	}

	// The checkout/session helpers read the package-level key.
	stripe.Key = apiKey
	client := &Client{
		api:           stripe.NewClient(apiKey),
		environment:   env,
		signingSecret: strings.TrimSpace(cfg.Secret),
	}

	if logg != nil {
		logCtx := logg.WithFields(ctx, map[string]any{"stripe_env": env, "webhooks": client.WebhookConfigured()})
		logg.Info(logCtx, "stripe client initialized")
		if !client.WebhookConfigured() {
			logg.Warn(logCtx, "stripe signing secret missing; webhook endpoint will reject events")
		}
	}
	return client, nil
}

// API returns the underlying Stripe API client.
func (c *Client) API() *stripe.Client {
	if c == nil {
		return nil
	}
	return c.api
}

// Environment reports the normalized Stripe environment in use.
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// WebhookConfigured reports whether events can be verified.
func (c *Client) WebhookConfigured() bool {
	return c != nil && c.signingSecret != ""
}

// VerifyEvent checks the Stripe-Signature header against the raw payload and
// decodes the event.
func (c *Client) VerifyEvent(payload []byte, signature string) (stripe.Event, error) {
	if !c.WebhookConfigured() {
		return stripe.Event{}, ErrWebhookNotConfigured
	}
	return webhook.ConstructEvent(payload, signature, c.signingSecret)
}

// CheckoutSessions exposes the hosted Checkout Session endpoints used by
// storefront checkout.
func (c *Client) CheckoutSessions() CheckoutSessions {
	return CheckoutSessions{}
}

// CheckoutSessions opens and expires Stripe Checkout Sessions.
type CheckoutSessions struct{}

// New creates a Checkout Session.
func (CheckoutSessions) New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	return session.New(params)
}

// Expire closes an open Checkout Session so it can no longer be paid.
func (CheckoutSessions) Expire(id string, params *stripe.CheckoutSessionExpireParams) (*stripe.CheckoutSession, error) {
	return session.Expire(id, params)
}

func normalizeEnv(raw string) (string, error) {
	switch env := strings.TrimSpace(strings.ToLower(raw)); env {
	case "", testEnv:
		return testEnv, nil
	case liveEnv:
		return liveEnv, nil
	default:
		return "", errInvalidStripeEnv
	}
}

// Restricted keys (rk_) are accepted alongside secret keys (sk_).
func validateAPIKey(env, key string) error {
	for _, prefix := range []string{"sk_" + env + "_", "rk_" + env + "_"} {
		if strings.HasPrefix(key, prefix) {
			return nil
		}
	}
	return fmt.Errorf("stripe environment %q requires an sk_%s_ or rk_%s_ key", env, env, env)
}
