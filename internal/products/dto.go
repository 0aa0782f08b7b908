package products

import (
	"time"

	"github.com/angelmondragon/fashionstore-backend/pkg/db/models"
	"github.com/angelmondragon/fashionstore-backend/pkg/pagination"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductDTO is the catalog representation returned to clients. Prices are
// rendered as decimal strings.
type ProductDTO struct {
	ID          uuid.UUID       `json:"id"`
	CategoryID  *uuid.UUID      `json:"category_id,omitempty"`
	Name        string          `json:"name"`
	Slug        string          `json:"slug"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	ImageURL    *string         `json:"image_url,omitempty"`
	IsActive    bool            `json:"is_active"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// ListInput narrows the catalog listing.
type ListInput struct {
	CategoryID      *uuid.UUID
	Query           string
	Pagination      pagination.Params
	IncludeInactive bool
}

// ListResult is one cursor page of products.
type ListResult struct {
	Products   []ProductDTO `json:"products"`
	NextCursor string       `json:"next_cursor,omitempty"`
}

// CreateInput is the admin payload for a new product.
type CreateInput struct {
	CategoryID  *uuid.UUID      `json:"category_id,omitempty"`
	Name        string          `json:"name" validate:"required,min=1,max=200"`
	Slug        string          `json:"slug,omitempty" validate:"omitempty,max=200"`
	Description string          `json:"description,omitempty" validate:"max=5000"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock" validate:"gte=0"`
	ImageURL    *string         `json:"image_url,omitempty" validate:"omitempty,url"`
}

// UpdateInput applies a partial update. Nil fields are left untouched.
type UpdateInput struct {
	CategoryID    *uuid.UUID       `json:"category_id,omitempty"`
	ClearCategory bool             `json:"clear_category,omitempty"`
	Name          *string          `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Description   *string          `json:"description,omitempty" validate:"omitempty,max=5000"`
	Price         *decimal.Decimal `json:"price,omitempty"`
	Stock         *int             `json:"stock,omitempty" validate:"omitempty,gte=0"`
	ImageURL      *string          `json:"image_url,omitempty" validate:"omitempty,url"`
	IsActive      *bool            `json:"is_active,omitempty"`
}

func toDTO(p *models.Product) *ProductDTO {
	if p == nil {
		return nil
	}
	return &ProductDTO{
		ID:          p.ID,
		CategoryID:  p.CategoryID,
		Name:        p.Name,
		Slug:        p.Slug,
		Description: p.Description,
		Price:       p.Price,
		Stock:       p.Stock,
		ImageURL:    p.ImageURL,
		IsActive:    p.IsActive,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}
