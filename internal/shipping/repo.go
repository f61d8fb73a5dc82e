package shipping

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

// Repository persists shipping zones and their rate bands.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

func withRates(db *gorm.DB) *gorm.DB {
	return db.Preload("Rates", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("min_weight_grams ASC, id ASC")
	})
}

// ListZones returns every zone with its rates ordered by weight.
func (r *Repository) ListZones(ctx context.Context) ([]models.ShippingZone, error) {
	var zones []models.ShippingZone
	if err := withRates(r.db.WithContext(ctx)).Order("id ASC").Find(&zones).Error; err != nil {
		return nil, err
	}
	return zones, nil
}

// FindZone loads a zone by id.
func (r *Repository) FindZone(ctx context.Context, id int64) (*models.ShippingZone, error) {
	var zone models.ShippingZone
	err := withRates(r.db.WithContext(ctx)).Where("id = ?", id).First(&zone).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &zone, nil
}

// CountZones reports how many zones exist.
func (r *Repository) CountZones(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.ShippingZone{}).Count(&n).Error
	return n, err
}

// CreateZone inserts a zone together with its rates.
func (r *Repository) CreateZone(ctx context.Context, zone *models.ShippingZone) error {
	return r.db.WithContext(ctx).Create(zone).Error
}

// ReplaceZone rewrites name, countries and the full rate table of an existing zone.
func (r *Repository) ReplaceZone(ctx context.Context, zone *models.ShippingZone) error {
	db := r.db.WithContext(ctx)
	if err := db.Model(&models.ShippingZone{ID: zone.ID}).
		Select("name", "countries").
		Updates(&models.ShippingZone{Name: zone.Name, Countries: zone.Countries}).Error; err != nil {
		return err
	}
	if err := db.Where("zone_id = ?", zone.ID).Delete(&models.ShippingRate{}).Error; err != nil {
		return err
	}
	if len(zone.Rates) == 0 {
		return nil
	}
	for i := range zone.Rates {
		zone.Rates[i].ID = 0
		zone.Rates[i].ZoneID = zone.ID
	}
	return db.Create(&zone.Rates).Error
}

// DeleteZone removes a zone and its rates, reporting whether it existed.
func (r *Repository) DeleteZone(ctx context.Context, id int64) (bool, error) {
	db := r.db.WithContext(ctx)
	if err := db.Where("zone_id = ?", id).Delete(&models.ShippingRate{}).Error; err != nil {
		return false, err
	}
	res := db.Where("id = ?", id).Delete(&models.ShippingZone{})
	return res.RowsAffected > 0, res.Error
}
