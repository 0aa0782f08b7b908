package models

import (
	"time"

	"github.com/angelmondragon/fashionstore-backend/pkg/enums"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Order is a checked-out cart. Total is subtotal plus the flat shipping fee.
type Order struct {
	ID              uuid.UUID           `gorm:"type:uuid;primaryKey"`
	UserID          uuid.UUID           `gorm:"column:user_id;type:uuid;not null"`
	Status          enums.OrderStatus   `gorm:"column:status;type:text;not null;default:'pending'"`
	PaymentMethod   enums.PaymentMethod `gorm:"column:payment_method;type:text;not null"`
	PaymentStatus   enums.PaymentStatus `gorm:"column:payment_status;type:text;not null;default:'unpaid'"`
	Subtotal        decimal.Decimal     `gorm:"column:subtotal;type:numeric(14,2);not null"`
	ShippingFee     decimal.Decimal     `gorm:"column:shipping_fee;type:numeric(14,2);not null"`
	Total           decimal.Decimal     `gorm:"column:total;type:numeric(14,2);not null"`
	ShippingAddress string              `gorm:"column:shipping_address;not null"`
	Notes           string              `gorm:"column:notes;not null;default:''"`
	CreatedAt       time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time           `gorm:"column:updated_at;autoUpdateTime"`

	Items []OrderItem `gorm:"foreignKey:OrderID"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	ensureID(&o.ID)
	return nil
}
