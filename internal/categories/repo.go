package categories

import (
	"context"
	"strings"
	"time"

	"github.com/angelmondragon/fashionstore-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository persists categories.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	List(ctx context.Context) ([]models.Category, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Category, error)
	Create(ctx context.Context, category *models.Category) error
	Save(ctx context.Context, category *models.Category) error
	Delete(ctx context.Context, id uuid.UUID) (int64, error)
	NameTaken(ctx context.Context, parentID *uuid.UUID, name string, exclude uuid.UUID) (bool, error)
	SlugTaken(ctx context.Context, slug string, exclude uuid.UUID) (bool, error)
	UpdateLevel(ctx context.Context, id uuid.UUID, level int) error
	DetachChildren(ctx context.Context, parentID uuid.UUID) error
	DetachProducts(ctx context.Context, categoryID uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// List returns categories ordered parents-first, then by name.
func (r *repository) List(ctx context.Context) ([]models.Category, error) {
	var rows []models.Category
	if err := r.db.WithContext(ctx).Order("level ASC, name ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	var category models.Category
	if err := r.db.WithContext(ctx).First(&category, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &category, nil
}

func (r *repository) Create(ctx context.Context, category *models.Category) error {
	return r.db.WithContext(ctx).Create(category).Error
}

func (r *repository) Save(ctx context.Context, category *models.Category) error {
	return r.db.WithContext(ctx).
		Model(&models.Category{}).
		Where("id = ?", category.ID).
		Updates(map[string]any{
			"name":        category.Name,
			"description": category.Description,
			"parent_id":   category.ParentID,
			"image_url":   category.ImageURL,
			"level":       category.Level,
			"slug":        category.Slug,
			"updated_at":  time.Now().UTC(),
		}).Error
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).Delete(&models.Category{}, "id = ?", id)
	return res.RowsAffected, res.Error
}

// NameTaken matches names case-insensitively within one parent scope.
func (r *repository) NameTaken(ctx context.Context, parentID *uuid.UUID, name string, exclude uuid.UUID) (bool, error) {
	q := r.db.WithContext(ctx).
		Model(&models.Category{}).
		Where("LOWER(name) = ?", strings.ToLower(strings.TrimSpace(name))).
		Where("id <> ?", exclude)
	if parentID == nil {
		q = q.Where("parent_id IS NULL")
	} else {
		q = q.Where("parent_id = ?", *parentID)
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) SlugTaken(ctx context.Context, slug string, exclude uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Category{}).
		Where("slug = ? AND id <> ?", slug, exclude).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) UpdateLevel(ctx context.Context, id uuid.UUID, level int) error {
	return r.db.WithContext(ctx).
		Model(&models.Category{}).
		Where("id = ?", id).
		Updates(map[string]any{"level": level, "updated_at": time.Now().UTC()}).Error
}

// DetachChildren turns the direct children of parentID into roots.
func (r *repository) DetachChildren(ctx context.Context, parentID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Category{}).
		Where("parent_id = ?", parentID).
		Updates(map[string]any{"parent_id": nil, "updated_at": time.Now().UTC()}).Error
}

func (r *repository) DetachProducts(ctx context.Context, categoryID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("category_id = ?", categoryID).
		Updates(map[string]any{"category_id": nil, "updated_at": time.Now().UTC()}).Error
}
