package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

var (
	keyPattern         = regexp.MustCompile(`^[a-z0-9_]{1,64}$`)
	errNegativeDecimal = errors.New("value must not be negative")
)

type repository interface {
	Get(ctx context.Context, key string) (*models.SiteSetting, error)
	List(ctx context.Context) ([]models.SiteSetting, error)
	Upsert(ctx context.Context, key, value string, now time.Time) (*models.SiteSetting, error)
}

// ServiceParams wires the settings service.
type ServiceParams struct {
	Repo   repository
	Logger *logger.Logger
	Now    func() time.Time
}

// Service reads and writes the site settings table.
type Service struct {
	repo repository
	logg *logger.Logger
	now  func() time.Time
}

// NewService validates params and builds a Service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("settings repository required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{repo: params.Repo, logg: params.Logger, now: now}, nil
}

// Get returns the raw value stored under key.
func (s *Service) Get(ctx context.Context, key string) (string, bool, error) {
	row, err := s.repo.Get(ctx, key)
	if err != nil {
		return "", false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load setting")
	}
	if row == nil {
		return "", false, nil
	}
	return row.Value, true, nil
}

// All returns every stored key/value pair.
func (s *Service) All(ctx context.Context) (map[string]string, error) {
	rows, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list settings")
	}
	out := make(map[string]string, len(rows))
	for _, row := range rows {
		out[row.Key] = row.Value
	}
	return out, nil
}

// Set stores value under key after checking it decodes as the key's kind.
func (s *Service) Set(ctx context.Context, key, value string) (*models.SiteSetting, error) {
	key = strings.ToLower(strings.TrimSpace(key))
	if !keyPattern.MatchString(key) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid setting key").
			WithDetails(map[string]any{"key": key})
	}
	if err := validateValue(key, value); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid setting value").
			WithDetails(map[string]any{"key": key, "reason": err.Error()})
	}
	row, err := s.repo.Upsert(ctx, key, value, s.now().UTC())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save setting")
	}
	ctx = s.logg.WithFields(ctx, map[string]any{"op": "settings.set", "setting_key": key})
	s.logg.Info(ctx, "setting updated")
	return row, nil
}

// SiteConfig decodes the whole table into its typed form.
func (s *Service) SiteConfig(ctx context.Context) (SiteConfig, error) {
	rows, err := s.repo.List(ctx)
	if err != nil {
		return SiteConfig{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list settings")
	}
	return DecodeSiteConfig(ctx, rows, s.logg), nil
}

// FreeShipping returns the free-shipping override; malformed values disable it.
func (s *Service) FreeShipping(ctx context.Context) (FreeShipping, error) {
	rows := make([]models.SiteSetting, 0, 2)
	for _, key := range []string{KeyFreeShippingEnabled, KeyFreeShippingThreshold} {
		row, err := s.repo.Get(ctx, key)
		if err != nil {
			return FreeShipping{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load free shipping settings")
		}
		if row != nil {
			rows = append(rows, *row)
		}
	}
	return DecodeSiteConfig(ctx, rows, s.logg).FreeShipping, nil
}

// Policy returns the policy page for slug.
func (s *Service) Policy(ctx context.Context, slug string) (*Policy, error) {
	if !IsPolicySlug(slug) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "policy not found")
	}
	row, err := s.repo.Get(ctx, PolicyKey(slug))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load policy")
	}
	if row == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "policy not found")
	}
	policy, err := decodePolicy(row.Value)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode policy")
	}
	return &policy, nil
}

// SetPolicy replaces the body of a policy page and stamps its update time.
func (s *Service) SetPolicy(ctx context.Context, slug, body string) (*Policy, error) {
	if !IsPolicySlug(slug) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "policy not found")
	}
	if strings.TrimSpace(body) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "policy body is required")
	}
	now := s.now().UTC()
	policy := Policy{Body: body, UpdatedAt: &now}
	raw, err := json.Marshal(policy)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode policy")
	}
	if _, err := s.repo.Upsert(ctx, PolicyKey(slug), string(raw), now); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save policy")
	}
	return &policy, nil
}
