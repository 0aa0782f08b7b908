package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Category is a node in the gender -> product type -> detail hierarchy.
type Category struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey"`
	Name        string     `gorm:"column:name;not null"`
	Description string     `gorm:"column:description;not null;default:''"`
	ParentID    *uuid.UUID `gorm:"column:parent_id;type:uuid"`
	ImageURL    *string    `gorm:"column:image_url"`
	Level       int        `gorm:"column:level;not null;default:1"`
	Slug        string     `gorm:"column:slug;not null;uniqueIndex"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *Category) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	return nil
}
