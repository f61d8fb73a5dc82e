package catalog

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// ListFilter narrows the storefront product listing.
type ListFilter struct {
	CategorySlug string
	Featured     *bool
	Limit        int
	Cursor       string
	// IncludeInactive lists drafts and archived products too (admin view).
	IncludeInactive bool
}

// VariantInput describes a variant in an admin create/update payload. A zero ID creates
// a new variant.
type VariantInput struct {
	ID                int64           `json:"id,omitempty"`
	Name              string          `json:"name" validate:"required,max=120"`
	SKU               *string         `json:"sku,omitempty" validate:"omitempty,max=64"`
	Price             decimal.Decimal `json:"price" validate:"money"`
	Stock             int             `json:"stock" validate:"min=0"`
	WeightGrams       int             `json:"weightGrams" validate:"min=0"`
	LowStockThreshold *int            `json:"lowStockThreshold,omitempty" validate:"omitempty,min=0"`
}

// ImageInput describes a product image in an admin payload.
type ImageInput struct {
	URL string `json:"url" validate:"required,url"`
	Alt string `json:"alt" validate:"max=200"`
}

// CreateProductInput is the admin payload for a new product.
type CreateProductInput struct {
	Slug        string              `json:"slug" validate:"omitempty,max=120"`
	Name        string              `json:"name" validate:"required,max=200"`
	Description string              `json:"description"`
	BasePrice   decimal.Decimal     `json:"basePrice" validate:"money"`
	Status      enums.ProductStatus `json:"status"`
	Featured    bool                `json:"featured"`
	CategoryID  *int64              `json:"categoryId,omitempty"`
	Variants    []VariantInput      `json:"variants" validate:"required,min=1,dive"`
	Images      []ImageInput        `json:"images" validate:"dive"`
}

// UpdateProductInput is the admin patch payload. Nil fields are left unchanged; a
// non-nil Variants list replaces the variant set (stock of existing variants is kept).
type UpdateProductInput struct {
	Slug        *string              `json:"slug,omitempty" validate:"omitempty,max=120"`
	Name        *string              `json:"name,omitempty" validate:"omitempty,max=200"`
	Description *string              `json:"description,omitempty"`
	BasePrice   *decimal.Decimal     `json:"basePrice,omitempty"`
	Status      *enums.ProductStatus `json:"status,omitempty"`
	Featured    *bool                `json:"featured,omitempty"`
	CategoryID  *int64               `json:"categoryId,omitempty"`
	Variants    *[]VariantInput      `json:"variants,omitempty" validate:"omitempty,min=1,dive"`
	Images      *[]ImageInput        `json:"images,omitempty" validate:"omitempty,dive"`
}

// CreateCategoryInput is the admin payload for a category.
type CreateCategoryInput struct {
	Slug     string `json:"slug" validate:"omitempty,max=120"`
	Name     string `json:"name" validate:"required,max=120"`
	ParentID *int64 `json:"parentId,omitempty"`
	Position int    `json:"position"`
	Hidden   bool   `json:"hidden"`
}

// ProductSummary is the listing representation of a product.
type ProductSummary struct {
	ID         int64           `json:"id"`
	Slug       string          `json:"slug"`
	Name       string          `json:"name"`
	BasePrice  decimal.Decimal `json:"basePrice"`
	Featured   bool            `json:"featured"`
	Status     string          `json:"status"`
	CategoryID *int64          `json:"categoryId,omitempty"`
	ImageURL   string          `json:"imageUrl,omitempty"`
	InStock    bool            `json:"inStock"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// VariantView is a variant as shown on the product page.
type VariantView struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	SKU         *string         `json:"sku,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Available   int             `json:"available"`
	WeightGrams int             `json:"weightGrams"`
}

// ImageView is a product image.
type ImageView struct {
	URL      string `json:"url"`
	Alt      string `json:"alt"`
	Position int    `json:"position"`
}

// ProductDetail is the full product page representation.
type ProductDetail struct {
	ProductSummary
	Description  string        `json:"description"`
	CategorySlug string        `json:"categorySlug,omitempty"`
	Variants     []VariantView `json:"variants"`
	Images       []ImageView   `json:"images"`
}

// CategoryNode is one entry of the category tree.
type CategoryNode struct {
	ID       int64          `json:"id"`
	Slug     string         `json:"slug"`
	Name     string         `json:"name"`
	Position int            `json:"position"`
	Hidden   bool           `json:"hidden,omitempty"`
	Children []CategoryNode `json:"children"`
}

func toSummary(p models.Product) ProductSummary {
	summary := ProductSummary{
		ID:         p.ID,
		Slug:       p.Slug,
		Name:       p.Name,
		BasePrice:  p.BasePrice,
		Featured:   p.Featured,
		Status:     string(p.Status),
		CategoryID: p.CategoryID,
		CreatedAt:  p.CreatedAt,
	}
	if len(p.Images) > 0 {
		summary.ImageURL = p.Images[0].URL
	}
	for _, v := range p.Variants {
		if v.Stock > 0 {
			summary.InStock = true
			break
		}
	}
	return summary
}

func toDetail(p models.Product, available map[int64]int) ProductDetail {
	detail := ProductDetail{
		ProductSummary: toSummary(p),
		Description:    p.Description,
		Variants:       make([]VariantView, 0, len(p.Variants)),
		Images:         make([]ImageView, 0, len(p.Images)),
	}
	if p.Category != nil {
		detail.CategorySlug = p.Category.Slug
	}
	for _, v := range p.Variants {
		avail, ok := available[v.ID]
		if !ok {
			avail = v.Stock
		}
		detail.Variants = append(detail.Variants, VariantView{
			ID:          v.ID,
			Name:        v.Name,
			SKU:         v.SKU,
			Price:       v.Price,
			Stock:       v.Stock,
			Available:   avail,
			WeightGrams: v.WeightGrams,
		})
	}
	for _, img := range p.Images {
		detail.Images = append(detail.Images, ImageView{URL: img.URL, Alt: img.Alt, Position: img.Position})
	}
	return detail
}

func toCategoryTree(rows []models.Category) []CategoryNode {
	children := map[int64][]models.Category{}
	roots := []models.Category{}
	for _, c := range rows {
		if c.ParentID == nil {
			roots = append(roots, c)
			continue
		}
		children[*c.ParentID] = append(children[*c.ParentID], c)
	}
	out := make([]CategoryNode, 0, len(roots))
	for _, root := range roots {
		node := categoryNode(root)
		for _, child := range children[root.ID] {
			node.Children = append(node.Children, categoryNode(child))
		}
		out = append(out, node)
	}
	return out
}

func categoryNode(c models.Category) CategoryNode {
	return CategoryNode{
		ID:       c.ID,
		Slug:     c.Slug,
		Name:     c.Name,
		Position: c.Position,
		Hidden:   c.Status == enums.CategoryStatusHidden,
		Children: []CategoryNode{},
	}
}
