package orders

import (
	"time"

	"github.com/angelmondragon/fashionstore-backend/internal/wallets"
	"github.com/angelmondragon/fashionstore-backend/pkg/db/models"
	"github.com/angelmondragon/fashionstore-backend/pkg/enums"
	"github.com/angelmondragon/fashionstore-backend/pkg/pagination"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CheckoutItem is one requested line. Prices always come from the catalog.
type CheckoutItem struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,gte=1,lte=999"`
	Size      string    `json:"size,omitempty" validate:"max=20"`
	Color     string    `json:"color,omitempty" validate:"max=40"`
}

// ShippingInfo is the structured address form sent by the checkout page.
type ShippingInfo struct {
	Name    string `json:"name" validate:"required,max=100"`
	Phone   string `json:"phone" validate:"required,max=20"`
	Address string `json:"address" validate:"required,max=500"`
	Note    string `json:"note,omitempty" validate:"max=500"`
}

// CheckoutInput places an order. When Items is empty the shopper's cart is
// used and cleared on success.
type CheckoutInput struct {
	Items           []CheckoutItem      `json:"items,omitempty" validate:"omitempty,dive"`
	PaymentMethod   enums.PaymentMethod `json:"payment_method" validate:"required"`
	Shipping        *ShippingInfo       `json:"shipping,omitempty"`
	ShippingAddress string              `json:"shipping_address,omitempty" validate:"max=1000"`
	Notes           string              `json:"notes,omitempty" validate:"max=1000"`
}

// ItemDTO is one order line with its price snapshot.
type ItemDTO struct {
	ID        uuid.UUID       `json:"id"`
	ProductID uuid.UUID       `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Size      string          `json:"size"`
	Color     string          `json:"color"`
	LineTotal decimal.Decimal `json:"line_total"`
}

// OrderDTO is the order representation returned by every endpoint.
type OrderDTO struct {
	ID              uuid.UUID           `json:"id"`
	UserID          uuid.UUID           `json:"user_id"`
	Status          enums.OrderStatus   `json:"status"`
	PaymentMethod   enums.PaymentMethod `json:"payment_method"`
	PaymentStatus   enums.PaymentStatus `json:"payment_status"`
	Subtotal        decimal.Decimal     `json:"subtotal"`
	ShippingFee     decimal.Decimal     `json:"shipping_fee"`
	Total           decimal.Decimal     `json:"total"`
	ShippingAddress string              `json:"shipping_address"`
	Notes           string              `json:"notes"`
	Items           []ItemDTO           `json:"items"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

// OrderPage is an offset page of orders.
type OrderPage struct {
	Orders     []OrderDTO      `json:"orders"`
	Pagination pagination.Meta `json:"pagination"`
}

// ListFilter narrows the admin listing.
type ListFilter struct {
	Status *enums.OrderStatus
	UserID *uuid.UUID
}

// PaymentResult pairs the paid order with the wallet ledger entry.
type PaymentResult struct {
	Order       *OrderDTO               `json:"order"`
	Wallet      wallets.WalletDTO       `json:"wallet"`
	Transaction wallets.TransactionDTO `json:"transaction"`
}

func toItemDTO(item models.OrderItem) ItemDTO {
	return ItemDTO{
		ID:        item.ID,
		ProductID: item.ProductID,
		Quantity:  item.Quantity,
		Price:     item.Price,
		Size:      item.Size,
		Color:     item.Color,
		LineTotal: item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))),
	}
}

func toOrderDTO(o *models.Order) *OrderDTO {
	items := make([]ItemDTO, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, toItemDTO(item))
	}
	return &OrderDTO{
		ID:              o.ID,
		UserID:          o.UserID,
		Status:          o.Status,
		PaymentMethod:   o.PaymentMethod,
		PaymentStatus:   o.PaymentStatus,
		Subtotal:        o.Subtotal,
		ShippingFee:     o.ShippingFee,
		Total:           o.Total,
		ShippingAddress: o.ShippingAddress,
		Notes:           o.Notes,
		Items:           items,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}
