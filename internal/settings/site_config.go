package settings

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// Known setting keys.
const (
	KeyStoreName             = "store_name"
	KeyContactEmail          = "contact_email"
	KeyAnnouncementText      = "announcement_text"
	KeyHomepageSlides        = "homepage_slides"
	KeyFreeShippingEnabled   = "free_shipping_enabled"
	KeyFreeShippingThreshold = "free_shipping_threshold"

	policyKeyPrefix = "policy_"
)

// Policy slugs exposed under /policies/{slug}.
const (
	PolicyTerms    = "terms"
	PolicyPrivacy  = "privacy"
	PolicyShipping = "shipping"
	PolicyReturns  = "returns"
)

var policySlugs = []string{PolicyTerms, PolicyPrivacy, PolicyShipping, PolicyReturns}

type valueKind int

const (
	kindText valueKind = iota
	kindPolicy
	kindSlides
	kindBool
	kindDecimal
)

var knownKinds = map[string]valueKind{
	KeyStoreName:             kindText,
	KeyContactEmail:          kindText,
	KeyAnnouncementText:      kindText,
	KeyHomepageSlides:        kindSlides,
	KeyFreeShippingEnabled:   kindBool,
	KeyFreeShippingThreshold: kindDecimal,
}

func init() {
	for _, slug := range policySlugs {
		knownKinds[PolicyKey(slug)] = kindPolicy
	}
}

// PolicyKey returns the storage key for a policy slug.
func PolicyKey(slug string) string {
	return policyKeyPrefix + slug
}

// IsPolicySlug reports whether slug names a supported policy page.
func IsPolicySlug(slug string) bool {
	for _, s := range policySlugs {
		if s == slug {
			return true
		}
	}
	return false
}

func kindOf(key string) valueKind {
	if kind, ok := knownKinds[key]; ok {
		return kind
	}
	return kindText
}

// Policy is a legal/content page body stored as JSON.
type Policy struct {
	Body      string     `json:"body"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

// Slide is one homepage hero entry.
type Slide struct {
	ImageURL string `json:"imageUrl"`
	Title    string `json:"title,omitempty"`
	Subtitle string `json:"subtitle,omitempty"`
	LinkURL  string `json:"linkUrl,omitempty"`
}

// FreeShipping is the checkout-level shipping override.
type FreeShipping struct {
	Enabled   bool            `json:"enabled"`
	Threshold decimal.Decimal `json:"threshold"`
}

// Applies reports whether an order worth amount ships for free.
func (f FreeShipping) Applies(amount decimal.Decimal) bool {
	return f.Enabled && f.Threshold.IsPositive() && amount.GreaterThanOrEqual(f.Threshold)
}

// SiteConfig is the typed view of the settings table served to the storefront.
type SiteConfig struct {
	StoreName        string            `json:"storeName"`
	ContactEmail     string            `json:"contactEmail"`
	AnnouncementText string            `json:"announcementText"`
	HomepageSlides   []Slide           `json:"homepageSlides"`
	Policies         map[string]Policy `json:"policies"`
	FreeShipping     FreeShipping      `json:"freeShipping"`
}

// DecodeSiteConfig folds rows into a SiteConfig. Malformed values are logged and
// leave the corresponding field at its zero value.
func DecodeSiteConfig(ctx context.Context, rows []models.SiteSetting, logg *logger.Logger) SiteConfig {
	cfg := SiteConfig{
		HomepageSlides: []Slide{},
		Policies:       map[string]Policy{},
	}
	for _, row := range rows {
		if err := cfg.apply(row.Key, row.Value); err != nil && logg != nil {
			logCtx := logg.WithFields(ctx, map[string]any{"setting_key": row.Key})
			logg.Warn(logCtx, "settings.decode_failed: "+err.Error())
		}
	}
	return cfg
}

func (c *SiteConfig) apply(key, raw string) error {
	switch kindOf(key) {
	case kindPolicy:
		policy, err := decodePolicy(raw)
		if err != nil {
			return err
		}
		c.Policies[strings.TrimPrefix(key, policyKeyPrefix)] = policy
	case kindSlides:
		slides, err := decodeSlides(raw)
		if err != nil {
			return err
		}
		c.HomepageSlides = slides
	case kindBool:
		enabled, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			return err
		}
		c.FreeShipping.Enabled = enabled
	case kindDecimal:
		threshold, err := decimal.NewFromString(strings.TrimSpace(raw))
		if err != nil {
			return err
		}
		c.FreeShipping.Threshold = threshold
	default:
		switch key {
		case KeyStoreName:
			c.StoreName = raw
		case KeyContactEmail:
			c.ContactEmail = raw
		case KeyAnnouncementText:
			c.AnnouncementText = raw
		}
	}
	return nil
}

func decodePolicy(raw string) (Policy, error) {
	var policy Policy
	if err := json.Unmarshal([]byte(raw), &policy); err != nil {
		return Policy{}, err
	}
	return policy, nil
}

func decodeSlides(raw string) ([]Slide, error) {
	slides := []Slide{}
	if strings.TrimSpace(raw) == "" {
		return slides, nil
	}
	if err := json.Unmarshal([]byte(raw), &slides); err != nil {
		return []Slide{}, err
	}
	return slides, nil
}

// validateValue checks raw against the kind registered for key.
func validateValue(key, raw string) error {
	var err error
	switch kindOf(key) {
	case kindPolicy:
		_, err = decodePolicy(raw)
	case kindSlides:
		_, err = decodeSlides(raw)
	case kindBool:
		_, err = strconv.ParseBool(strings.TrimSpace(raw))
	case kindDecimal:
		var d decimal.Decimal
		d, err = decimal.NewFromString(strings.TrimSpace(raw))
		if err == nil && d.IsNegative() {
			err = errNegativeDecimal
		}
	}
	return err
}
