package models

import (
	"time"

	"github.com/angelmondragon/fashionstore-backend/pkg/enums"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// WalletTransaction is an append-only ledger entry. Sequence equals the wallet
// version produced by the mutation that wrote it.
type WalletTransaction struct {
	ID           uuid.UUID               `gorm:"type:uuid;primaryKey"`
	WalletID     uuid.UUID               `gorm:"column:wallet_id;type:uuid;not null"`
	Type         enums.TransactionType   `gorm:"column:type;type:text;not null"`
	Amount       decimal.Decimal         `gorm:"column:amount;type:numeric(14,2);not null"`
	Status       enums.TransactionStatus `gorm:"column:status;type:text;not null"`
	OrderID      *uuid.UUID              `gorm:"column:order_id;type:uuid"`
	Description  string                  `gorm:"column:description;not null;default:''"`
	BalanceAfter decimal.Decimal         `gorm:"column:balance_after;type:numeric(14,2);not null"`
	Sequence     int64                   `gorm:"column:sequence;not null"`
	CreatedAt    time.Time               `gorm:"column:created_at;autoCreateTime"`
}

func (WalletTransaction) TableName() string {
	return "wallet_transactions"
}

func (t *WalletTransaction) BeforeCreate(*gorm.DB) error {
	ensureID(&t.ID)
	return nil
}
