// Package dbtest opens throwaway sqlite databases carrying the storefront schema.
package dbtest

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Open returns a client over a fresh in-memory database with every model migrated.
// The pool is pinned to one connection so transactions behave like a single session.
func Open(t testing.TB) *db.Client {
	t.Helper()
	dsn := "file:storefront_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		NowFunc:                func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := conn.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}
	return db.Wrap(conn)
}

// SeedProduct inserts an active product with one variant per stock value.
// Variants are priced at 10.00 and weigh 100g each.
func SeedProduct(t testing.TB, conn *gorm.DB, slug string, stocks ...int) models.Product {
	t.Helper()
	product := models.Product{
		Slug:      slug,
		Name:      slug,
		BasePrice: decimal.NewFromInt(10),
		Status:    enums.ProductStatusActive,
	}
	for i, stock := range stocks {
		product.Variants = append(product.Variants, models.ProductVariant{
			Name:              fmt.Sprintf("%s-%d", slug, i+1),
			Price:             decimal.NewFromInt(10),
			Stock:             stock,
			WeightGrams:       100,
			LowStockThreshold: 5,
		})
	}
	if err := conn.Create(&product).Error; err != nil {
		t.Fatalf("seed product %s: %v", slug, err)
	}
	return product
}

// Stock reads a variant's stock column.
func Stock(t testing.TB, conn *gorm.DB, variantID int64) int {
	t.Helper()
	var stock int
	if err := conn.Raw("SELECT stock FROM product_variants WHERE id = ?", variantID).Scan(&stock).Error; err != nil {
		t.Fatalf("read stock: %v", err)
	}
	return stock
}
