package models

import (
	"time"

	"github.com/angelmondragon/fashionstore-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User represents a storefront account, shopper or administrator.
type User struct {
	ID           uuid.UUID        `gorm:"type:uuid;primaryKey"`
	Name         string           `gorm:"column:name;not null"`
	Email        string           `gorm:"type:text;not null;uniqueIndex"`
	PasswordHash string           `gorm:"column:password_hash;not null"`
	Phone        *string          `gorm:"column:phone"`
	Role         enums.UserRole   `gorm:"column:role;type:text;not null;default:'user'"`
	Status       enums.UserStatus `gorm:"column:status;type:text;not null;default:'active'"`
	LastLoginAt  *time.Time       `gorm:"column:last_login_at"`
	CreatedAt    time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (u *User) BeforeCreate(*gorm.DB) error {
	ensureID(&u.ID)
	return nil
}
