package models

import (
	"time"

	"github.com/angelmondragon/fashionstore-backend/pkg/enums"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Wallet is the stored-value account owned by exactly one user. Version is
// bumped on every balance mutation and doubles as the ledger sequence.
type Wallet struct {
	ID        uuid.UUID          `gorm:"type:uuid;primaryKey"`
	UserID    uuid.UUID          `gorm:"column:user_id;type:uuid;not null;uniqueIndex"`
	Balance   decimal.Decimal    `gorm:"column:balance;type:numeric(14,2);not null;default:0"`
	Status    enums.WalletStatus `gorm:"column:status;type:text;not null;default:'active'"`
	Version   int64              `gorm:"column:version;not null;default:0"`
	CreatedAt time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

func (w *Wallet) BeforeCreate(*gorm.DB) error {
	ensureID(&w.ID)
	return nil
}
