package stripewebhook

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/redis"
)

const (
	dedupeScope       = "stripe-event"
	defaultDedupeTTL  = 72 * time.Hour
	stripeEventPrefix = "evt_"
)

var errEventID = errors.New("stripe event id is required")

// Deduper tracks which Stripe event ids have been claimed for processing.
// Stripe retries deliveries for up to three days, so claims outlive that by
// default.
type Deduper struct {
	store redis.IdempotencyStore
	ttl   time.Duration
}

func NewDeduper(store redis.IdempotencyStore, ttl time.Duration) (*Deduper, error) {
	if store == nil {
		return nil, errors.New("dedupe store is required")
	}
	if ttl <= 0 {
		ttl = defaultDedupeTTL
	}
	return &Deduper{store: store, ttl: ttl}, nil
}

// Claim returns true for the first delivery of eventID and false for repeats.
func (d *Deduper) Claim(ctx context.Context, eventID string) (bool, error) {
	key, err := d.key(eventID)
	if err != nil {
		return false, err
	}
	first, err := d.store.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), d.ttl)
	if err != nil {
		return false, fmt.Errorf("claim %s: %w", eventID, err)
	}
	return first, nil
}

// Release drops a claim so Stripe's next retry of a failed event is applied.
func (d *Deduper) Release(ctx context.Context, eventID string) error {
	key, err := d.key(eventID)
	if err != nil {
		return err
	}
	if err := d.store.Del(ctx, key); err != nil {
		return fmt.Errorf("release %s: %w", eventID, err)
	}
	return nil
}

func (d *Deduper) key(eventID string) (string, error) {
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return "", errEventID
	}
	if !strings.HasPrefix(eventID, stripeEventPrefix) {
		return "", fmt.Errorf("unexpected stripe event id %q", eventID)
	}
	return d.store.IdempotencyKey(dedupeScope, eventID), nil
}
