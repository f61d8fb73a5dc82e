package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type fakeAvailability struct {
	values map[int64]int
}

func (f fakeAvailability) Available(_ context.Context, ids []int64, _ time.Time) (map[int64]int, error) {
	out := map[int64]int{}
	for _, id := range ids {
		if v, ok := f.values[id]; ok {
			out[id] = v
		}
	}
	return out, nil
}

func newTestService(t *testing.T, avail AvailabilityReader) *Service {
	t.Helper()
	client := dbtest.Open(t)
	svc, err := NewService(ServiceParams{
		Repo:         NewRepository(client.DB()),
		Tx:           client,
		Availability: avail,
		Logger:       logger.New(logger.Options{ServiceName: "catalog-test"}),
	})
	require.NoError(t, err)
	return svc
}

func money(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func mustCreateProduct(t *testing.T, svc *Service, name string, status enums.ProductStatus, stock int) *ProductDetail {
	t.Helper()
	detail, err := svc.CreateProduct(context.Background(), CreateProductInput{
		Name:      name,
		BasePrice: money("19.90"),
		Status:    status,
		Variants: []VariantInput{
			{Name: "Default", Price: money("19.90"), Stock: stock, WeightGrams: 250},
		},
		Images: []ImageInput{{URL: "https://cdn.example.com/" + name + ".jpg", Alt: name}},
	})
	require.NoError(t, err)
	return detail
}

func TestCreateProductDerivesSlugAndDefaults(t *testing.T) {
	svc := newTestService(t, nil)
	detail := mustCreateProduct(t, svc, "Linen Tote Bag", "", 3)

	assert.Equal(t, "linen-tote-bag", detail.Slug)
	assert.Equal(t, string(enums.ProductStatusDraft), detail.Status)
	require.Len(t, detail.Variants, 1)
	assert.Equal(t, 3, detail.Variants[0].Available)
	require.Len(t, detail.Images, 1)
	assert.True(t, detail.InStock)

	_, err := svc.CreateProduct(context.Background(), CreateProductInput{
		Name:      "Linen Tote Bag",
		BasePrice: money("1"),
		Variants:  []VariantInput{{Name: "Default", Price: money("1")}},
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
}

func TestCreateProductValidation(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	_, err := svc.CreateProduct(ctx, CreateProductInput{Name: "x", Slug: "Not A Slug!", Variants: []VariantInput{{Name: "v"}}})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.CreateProduct(ctx, CreateProductInput{Name: "x", BasePrice: money("-1"), Variants: []VariantInput{{Name: "v"}}})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	missing := int64(999)
	_, err = svc.CreateProduct(ctx, CreateProductInput{Name: "x", CategoryID: &missing, Variants: []VariantInput{{Name: "v"}}})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestGetBySlugHidesInactiveProducts(t *testing.T) {
	svc := newTestService(t, fakeAvailability{})
	ctx := context.Background()
	mustCreateProduct(t, svc, "draft-mug", enums.ProductStatusDraft, 1)
	active := mustCreateProduct(t, svc, "active-mug", enums.ProductStatusActive, 1)

	_, err := svc.GetBySlug(ctx, "draft-mug")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = svc.GetBySlug(ctx, "nope")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	detail, err := svc.GetBySlug(ctx, " Active-Mug ")
	require.NoError(t, err)
	assert.Equal(t, active.ID, detail.ID)
}

func TestGetBySlugReportsAvailability(t *testing.T) {
	client := dbtest.Open(t)
	repo := NewRepository(client.DB())
	logg := logger.New(logger.Options{ServiceName: "catalog-test"})
	base, err := NewService(ServiceParams{Repo: repo, Tx: client, Logger: logg})
	require.NoError(t, err)
	created := mustCreateProduct(t, base, "candle", enums.ProductStatusActive, 10)

	svc, err := NewService(ServiceParams{
		Repo:         repo,
		Tx:           client,
		Logger:       logg,
		Availability: fakeAvailability{values: map[int64]int{created.Variants[0].ID: 4}},
	})
	require.NoError(t, err)

	detail, err := svc.GetBySlug(context.Background(), "candle")
	require.NoError(t, err)
	assert.Equal(t, 10, detail.Variants[0].Stock)
	assert.Equal(t, 4, detail.Variants[0].Available)
}

func TestListProductsPaginatesActiveOnly(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()
	for _, name := range []string{"a-one", "a-two", "a-three"} {
		mustCreateProduct(t, svc, name, enums.ProductStatusActive, 1)
	}
	mustCreateProduct(t, svc, "hidden-draft", enums.ProductStatusDraft, 1)

	first, err := svc.ListProducts(ctx, ListFilter{Limit: 2})
	require.NoError(t, err)
	require.Len(t, first.Items, 2)
	require.NotEmpty(t, first.NextCursor)

	second, err := svc.ListProducts(ctx, ListFilter{Limit: 2, Cursor: first.NextCursor})
	require.NoError(t, err)
	require.Len(t, second.Items, 1)
	assert.Empty(t, second.NextCursor)

	seen := map[string]bool{}
	for _, p := range append(first.Items, second.Items...) {
		seen[p.Slug] = true
	}
	assert.Len(t, seen, 3)
	assert.False(t, seen["hidden-draft"])

	all, err := svc.ListProducts(ctx, ListFilter{Limit: 10, IncludeInactive: true})
	require.NoError(t, err)
	assert.Len(t, all.Items, 4)

	_, err = svc.ListProducts(ctx, ListFilter{Cursor: "%%%"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestListProductsByCategoryIncludesChildren(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()
	home, err := svc.CreateCategory(ctx, CreateCategoryInput{Name: "Home"})
	require.NoError(t, err)
	kitchen, err := svc.CreateCategory(ctx, CreateCategoryInput{Name: "Kitchen", ParentID: &home.ID})
	require.NoError(t, err)

	_, err = svc.CreateProduct(ctx, CreateProductInput{
		Name: "Bread Knife", BasePrice: money("12"), Status: enums.ProductStatusActive, CategoryID: &kitchen.ID,
		Variants: []VariantInput{{Name: "Default", Price: money("12"), Stock: 1}},
	})
	require.NoError(t, err)
	mustCreateProduct(t, svc, "uncategorised", enums.ProductStatusActive, 1)

	page, err := svc.ListProducts(ctx, ListFilter{CategorySlug: "home"})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "bread-knife", page.Items[0].Slug)
}

func TestCreateCategoryAllowsOneNestingLevel(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()
	root, err := svc.CreateCategory(ctx, CreateCategoryInput{Name: "Clothing"})
	require.NoError(t, err)
	child, err := svc.CreateCategory(ctx, CreateCategoryInput{Name: "Shirts", ParentID: &root.ID})
	require.NoError(t, err)

	_, err = svc.CreateCategory(ctx, CreateCategoryInput{Name: "Linen Shirts", ParentID: &child.ID})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.CreateCategory(ctx, CreateCategoryInput{Name: "Clothing"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))

	_, err = svc.CreateCategory(ctx, CreateCategoryInput{Name: "Secret", Hidden: true})
	require.NoError(t, err)

	public, err := svc.Categories(ctx, false)
	require.NoError(t, err)
	require.Len(t, public, 1)
	assert.Equal(t, "clothing", public[0].Slug)
	require.Len(t, public[0].Children, 1)
	assert.Equal(t, "shirts", public[0].Children[0].Slug)

	admin, err := svc.Categories(ctx, true)
	require.NoError(t, err)
	assert.Len(t, admin, 2)
}

func TestSearch(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()
	_, err := svc.CreateProduct(ctx, CreateProductInput{
		Name: "Ceramic Vase", Description: "Hand thrown", BasePrice: money("40"), Status: enums.ProductStatusActive,
		Variants: []VariantInput{{Name: "Sage green", Price: money("40"), Stock: 2}},
	})
	require.NoError(t, err)
	mustCreateProduct(t, svc, "draft-vase", enums.ProductStatusDraft, 1)

	results, err := svc.Search(ctx, "VASE", 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "ceramic-vase", results[0].Slug)

	results, err = svc.Search(ctx, "sage", 5)
	require.NoError(t, err)
	assert.Len(t, results, 1)

	results, err = svc.Search(ctx, "thrown", 5)
	require.NoError(t, err)
	assert.Len(t, results, 1)

	results, err = svc.Search(ctx, "100%", 5)
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = svc.Search(ctx, "   ", 5)
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestUpdateProductReplacesVariantsKeepingStock(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()
	created := mustCreateProduct(t, svc, "scarf", enums.ProductStatusActive, 7)
	keepID := created.Variants[0].ID

	newName := "Wool Scarf"
	variants := []VariantInput{
		{ID: keepID, Name: "Grey", Price: money("25"), Stock: 0},
		{Name: "Navy", Price: money("27.5"), Stock: 4},
	}
	updated, err := svc.UpdateProduct(ctx, created.ID, UpdateProductInput{Name: &newName, Variants: &variants})
	require.NoError(t, err)
	assert.Equal(t, "Wool Scarf", updated.Name)
	require.Len(t, updated.Variants, 2)
	assert.Equal(t, "Grey", updated.Variants[0].Name)
	assert.Equal(t, 7, updated.Variants[0].Stock)
	assert.True(t, updated.Variants[1].Price.Equal(money("27.50")))

	only := []VariantInput{{ID: updated.Variants[1].ID, Name: "Navy", Price: money("27.5")}}
	updated, err = svc.UpdateProduct(ctx, created.ID, UpdateProductInput{Variants: &only})
	require.NoError(t, err)
	assert.Len(t, updated.Variants, 1)

	foreign := []VariantInput{{ID: 9999, Name: "x", Price: money("1")}}
	_, err = svc.UpdateProduct(ctx, created.ID, UpdateProductInput{Variants: &foreign})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.UpdateProduct(ctx, 4242, UpdateProductInput{Name: &newName})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestDeleteAndBulkFeature(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()
	a := mustCreateProduct(t, svc, "prod-a", enums.ProductStatusActive, 1)
	b := mustCreateProduct(t, svc, "prod-b", enums.ProductStatusActive, 1)

	count, err := svc.BulkFeature(ctx, []int64{a.ID, b.ID, 777}, true)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	featured := true
	page, err := svc.ListProducts(ctx, ListFilter{Featured: &featured})
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)

	_, err = svc.BulkFeature(ctx, nil, true)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	require.NoError(t, svc.DeleteProduct(ctx, a.ID))
	assert.True(t, pkgerrors.IsCode(svc.DeleteProduct(ctx, a.ID), pkgerrors.CodeNotFound))
	_, err = svc.GetByID(ctx, a.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}
