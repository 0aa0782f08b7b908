package categories

import (
	"github.com/angelmondragon/fashionstore-backend/pkg/db/models"
	"github.com/google/uuid"
)

// CategoryDTO is the public category shape.
type CategoryDTO struct {
	ID          uuid.UUID  `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	ParentID    *uuid.UUID `json:"parent_id"`
	ImageURL    *string    `json:"image_url"`
	Level       int        `json:"level"`
	Slug        string     `json:"slug"`
}

// Input is the writable part of a category. Level is always derived.
type Input struct {
	Name        string
	Description string
	ParentID    *uuid.UUID
	ImageURL    *string
	Slug        string
}

func toDTO(c models.Category) CategoryDTO {
	return CategoryDTO{
		ID:          c.ID,
		Name:        c.Name,
		Description: c.Description,
		ParentID:    c.ParentID,
		ImageURL:    c.ImageURL,
		Level:       c.Level,
		Slug:        c.Slug,
	}
}

func toDTOs(rows []models.Category) []CategoryDTO {
	out := make([]CategoryDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDTO(row))
	}
	return out
}
