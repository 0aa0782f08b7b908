package cart

import (
	"github.com/angelmondragon/fashionstore-backend/pkg/db/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductSnapshot is the slice of catalog data rendered on a cart line.
type ProductSnapshot struct {
	ID       uuid.UUID       `json:"id"`
	Name     string          `json:"name"`
	Slug     string          `json:"slug"`
	Price    decimal.Decimal `json:"price"`
	Stock    int             `json:"stock"`
	ImageURL *string         `json:"image_url,omitempty"`
	IsActive bool            `json:"is_active"`
}

// ItemDTO is one cart line.
type ItemDTO struct {
	ID        uuid.UUID        `json:"id"`
	ProductID uuid.UUID        `json:"product_id"`
	Product   *ProductSnapshot `json:"product,omitempty"`
	Quantity  int              `json:"quantity"`
	Size      string           `json:"size"`
	Color     string           `json:"color"`
	LineTotal decimal.Decimal  `json:"line_total"`
}

// CartDTO is the full cart with its running subtotal. Lines whose product is
// gone or inactive are returned but excluded from the subtotal.
type CartDTO struct {
	Items     []ItemDTO       `json:"items"`
	ItemCount int             `json:"item_count"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// AddInput is the payload for POST /cart.
type AddInput struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,gte=1,lte=999"`
	Size      string    `json:"size,omitempty" validate:"max=20"`
	Color     string    `json:"color,omitempty" validate:"max=40"`
}

// UpdateInput is the payload for PUT /cart/{id}.
type UpdateInput struct {
	Quantity int `json:"quantity" validate:"required,gte=1,lte=999"`
}

func toItemDTO(item models.CartItem) ItemDTO {
	out := ItemDTO{
		ID:        item.ID,
		ProductID: item.ProductID,
		Quantity:  item.Quantity,
		Size:      item.Size,
		Color:     item.Color,
		LineTotal: decimal.Zero,
	}
	if p := item.Product; p != nil {
		out.Product = &ProductSnapshot{
			ID:       p.ID,
			Name:     p.Name,
			Slug:     p.Slug,
			Price:    p.Price,
			Stock:    p.Stock,
			ImageURL: p.ImageURL,
			IsActive: p.IsActive,
		}
		if p.IsActive {
			out.LineTotal = p.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
		}
	}
	return out
}

func buildCart(items []models.CartItem) *CartDTO {
	cart := &CartDTO{Items: make([]ItemDTO, 0, len(items)), Subtotal: decimal.Zero}
	for _, item := range items {
		line := toItemDTO(item)
		cart.Items = append(cart.Items, line)
		cart.ItemCount += item.Quantity
		cart.Subtotal = cart.Subtotal.Add(line.LineTotal)
	}
	return cart
}
