package shipping

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const (
	ReasonNoZoneForCountry = "no_zone_for_country"
	ReasonNoRateForWeight  = "no_rate_for_weight"
)

var countryPattern = regexp.MustCompile(`^[A-Z]{2}$`)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// RateQuote is the resolved shipping price for one destination and weight.
type RateQuote struct {
	ZoneID   int64           `json:"zoneId"`
	ZoneName string          `json:"zoneName"`
	RateID   int64           `json:"rateId"`
	RateName string          `json:"rateName"`
	Price    decimal.Decimal `json:"price"`
}

// RateInput describes one weight band.
type RateInput struct {
	Name           string          `json:"name" validate:"required,max=80"`
	MinWeightGrams int             `json:"minWeightGrams" validate:"min=0"`
	MaxWeightGrams *int            `json:"maxWeightGrams,omitempty" validate:"omitempty,min=0"`
	Price          decimal.Decimal `json:"price" validate:"money"`
}

// ZoneInput is the admin payload for creating or replacing a zone.
type ZoneInput struct {
	Name      string      `json:"name" validate:"required,max=80"`
	Countries []string    `json:"countries" validate:"required,min=1,dive,required"`
	Rates     []RateInput `json:"rates" validate:"required,min=1,dive"`
}

// ServiceParams wires the shipping service.
type ServiceParams struct {
	Repo   *Repository
	Tx     txRunner
	Logger *logger.Logger
}

// Service resolves shipping rates and manages the zone table.
type Service struct {
	repo *Repository
	tx   txRunner
	logg *logger.Logger
}

// NewService validates params and builds a Service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("shipping repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Service{repo: params.Repo, tx: params.Tx, logg: params.Logger}, nil
}

// NormalizeCountry upper-cases and trims an ISO2 code.
func NormalizeCountry(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Resolve picks the zone that lists country and the band containing weightGrams.
func (s *Service) Resolve(ctx context.Context, country string, weightGrams int) (*RateQuote, error) {
	country = NormalizeCountry(country)
	if weightGrams < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "weightGrams must not be negative")
	}
	zones, err := s.repo.ListZones(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load shipping zones")
	}

	var matched []models.ShippingZone
	for _, zone := range zones {
		if containsCountry(zone.Countries, country) {
			matched = append(matched, zone)
		}
	}
	switch len(matched) {
	case 0:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no shipping zone for country").
			WithDetails(map[string]any{"reason": ReasonNoZoneForCountry, "country": country})
	case 1:
	default:
		logCtx := s.logg.WithFields(ctx, map[string]any{"op": "shipping.resolve", "country": country, "zones": len(matched)})
		s.logg.Warn(logCtx, "country assigned to multiple shipping zones")
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "shipping configuration lists country in multiple zones")
	}

	zone := matched[0]
	for _, rate := range zone.Rates {
		if weightGrams < rate.MinWeightGrams {
			continue
		}
		if rate.MaxWeightGrams != nil && weightGrams > *rate.MaxWeightGrams {
			continue
		}
		return &RateQuote{
			ZoneID:   zone.ID,
			ZoneName: zone.Name,
			RateID:   rate.ID,
			RateName: rate.Name,
			Price:    rate.Price.Round(2),
		}, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeValidation, "no shipping rate for weight").
		WithDetails(map[string]any{"reason": ReasonNoRateForWeight, "country": country, "weightGrams": weightGrams})
}

// ListZones returns the zone table.
func (s *Service) ListZones(ctx context.Context) ([]models.ShippingZone, error) {
	zones, err := s.repo.ListZones(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list shipping zones")
	}
	return zones, nil
}

// CreateZone validates and stores a zone.
func (s *Service) CreateZone(ctx context.Context, input ZoneInput) (*models.ShippingZone, error) {
	zone, err := buildZone(input)
	if err != nil {
		return nil, err
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := ensureCountriesFree(ctx, repo, zone.Countries, 0); err != nil {
			return err
		}
		if err := repo.CreateZone(ctx, zone); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create shipping zone")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{"op": "shipping.create_zone", "zone_id": zone.ID})
	s.logg.Info(logCtx, "shipping zone created")
	return zone, nil
}

// UpdateZone replaces an existing zone's name, countries and rates.
func (s *Service) UpdateZone(ctx context.Context, id int64, input ZoneInput) (*models.ShippingZone, error) {
	zone, err := buildZone(input)
	if err != nil {
		return nil, err
	}
	zone.ID = id
	var out *models.ShippingZone
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		existing, err := repo.FindZone(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load shipping zone")
		}
		if existing == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "shipping zone not found")
		}
		if err := ensureCountriesFree(ctx, repo, zone.Countries, id); err != nil {
			return err
		}
		if err := repo.ReplaceZone(ctx, zone); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update shipping zone")
		}
		out, err = repo.FindZone(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload shipping zone")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteZone removes a zone and its rates.
func (s *Service) DeleteZone(ctx context.Context, id int64) error {
	var found bool
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		found, err = s.repo.WithTx(tx).DeleteZone(ctx, id)
		return err
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete shipping zone")
	}
	if !found {
		return pkgerrors.New(pkgerrors.CodeNotFound, "shipping zone not found")
	}
	return nil
}

// Seed installs DefaultZones when the table is empty.
func (s *Service) Seed(ctx context.Context) ([]models.ShippingZone, error) {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		n, err := repo.CountZones(ctx)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count shipping zones")
		}
		if n > 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "shipping zones already exist")
		}
		for _, input := range DefaultZones() {
			zone, err := buildZone(input)
			if err != nil {
				return err
			}
			if err := repo.CreateZone(ctx, zone); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "seed shipping zone")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithField(ctx, "op", "shipping.seed"), "default shipping zones seeded")
	return s.ListZones(ctx)
}

// DefaultZones is the starter rate table installed by Seed.
func DefaultZones() []ZoneInput {
	band := func(v int) *int { return &v }
	return []ZoneInput{
		{
			Name:      "Domestic",
			Countries: []string{"US"},
			Rates: []RateInput{
				{Name: "Standard", MinWeightGrams: 0, MaxWeightGrams: band(999), Price: decimal.RequireFromString("5.99")},
				{Name: "Standard", MinWeightGrams: 1000, MaxWeightGrams: band(4999), Price: decimal.RequireFromString("9.99")},
				{Name: "Heavy", MinWeightGrams: 5000, Price: decimal.RequireFromString("19.99")},
			},
		},
		{
			Name:      "North America",
			Countries: []string{"CA", "MX"},
			Rates: []RateInput{
				{Name: "International", MinWeightGrams: 0, MaxWeightGrams: band(1999), Price: decimal.RequireFromString("14.99")},
				{Name: "International Heavy", MinWeightGrams: 2000, Price: decimal.RequireFromString("29.99")},
			},
		},
		{
			Name:      "Europe",
			Countries: []string{"GB", "IE", "FR", "DE", "NL", "BE", "ES", "IT"},
			Rates: []RateInput{
				{Name: "International", MinWeightGrams: 0, MaxWeightGrams: band(1999), Price: decimal.RequireFromString("19.99")},
				{Name: "International Heavy", MinWeightGrams: 2000, Price: decimal.RequireFromString("39.99")},
			},
		},
	}
}

func buildZone(input ZoneInput) (*models.ShippingZone, error) {
	invalid := func(msg string, details map[string]any) error {
		err := pkgerrors.New(pkgerrors.CodeValidation, msg)
		if details != nil {
			err = err.WithDetails(details)
		}
		return err
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, invalid("zone name is required", nil)
	}
	if len(input.Countries) == 0 {
		return nil, invalid("at least one country is required", nil)
	}
	seen := make(map[string]struct{}, len(input.Countries))
	countries := make([]string, 0, len(input.Countries))
	for _, raw := range input.Countries {
		code := NormalizeCountry(raw)
		if !countryPattern.MatchString(code) {
			return nil, invalid("countries must be ISO 3166-1 alpha-2 codes", map[string]any{"country": raw})
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		countries = append(countries, code)
	}
	if len(input.Rates) == 0 {
		return nil, invalid("at least one rate is required", nil)
	}

	rates := make([]models.ShippingRate, 0, len(input.Rates))
	for _, in := range input.Rates {
		if in.MinWeightGrams < 0 {
			return nil, invalid("minWeightGrams must not be negative", nil)
		}
		if in.MaxWeightGrams != nil && *in.MaxWeightGrams < in.MinWeightGrams {
			return nil, invalid("maxWeightGrams must not be below minWeightGrams", map[string]any{"rate": in.Name})
		}
		if in.Price.IsNegative() {
			return nil, invalid("rate price must not be negative", map[string]any{"rate": in.Name})
		}
		rates = append(rates, models.ShippingRate{
			Name:           strings.TrimSpace(in.Name),
			MinWeightGrams: in.MinWeightGrams,
			MaxWeightGrams: in.MaxWeightGrams,
			Price:          in.Price.Round(2),
		})
	}
	sort.SliceStable(rates, func(i, j int) bool { return rates[i].MinWeightGrams < rates[j].MinWeightGrams })
	for i := 1; i < len(rates); i++ {
		prev := rates[i-1]
		if prev.MaxWeightGrams == nil || *prev.MaxWeightGrams >= rates[i].MinWeightGrams {
			return nil, invalid("rate weight bands overlap", map[string]any{"rates": []string{prev.Name, rates[i].Name}})
		}
	}
	return &models.ShippingZone{Name: name, Countries: countries, Rates: rates}, nil
}

func ensureCountriesFree(ctx context.Context, repo *Repository, countries []string, selfID int64) error {
	zones, err := repo.ListZones(ctx)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load shipping zones")
	}
	var taken []string
	for _, zone := range zones {
		if zone.ID == selfID {
			continue
		}
		for _, c := range countries {
			if containsCountry(zone.Countries, c) {
				taken = append(taken, c)
			}
		}
	}
	if len(taken) > 0 {
		return pkgerrors.New(pkgerrors.CodeConflict, "country already assigned to another shipping zone: "+strings.Join(taken, ", "))
	}
	return nil
}

func containsCountry(countries []string, code string) bool {
	for _, c := range countries {
		if strings.EqualFold(c, code) {
			return true
		}
	}
	return false
}
