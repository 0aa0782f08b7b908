package products

import (
	"context"
	"strings"

	"github.com/angelmondragon/fashionstore-backend/pkg/db/models"
	"github.com/angelmondragon/fashionstore-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository persists catalog rows.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
	List(ctx context.Context, query listQuery) ([]models.Product, error)
	Create(ctx context.Context, product *models.Product) error
	Update(ctx context.Context, id uuid.UUID, fields map[string]any) (int64, error)
	SlugTaken(ctx context.Context, slug string) (bool, error)
	AdjustStock(ctx context.Context, id uuid.UUID, delta int) (bool, error)
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

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *repository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []models.Product
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

type listQuery struct {
	CategoryIDs     []uuid.UUID
	Search          string
	Cursor          *pagination.Cursor
	Limit           int
	IncludeInactive bool
}

// List returns up to query.Limit rows, newest first, keyed on (created_at, id).
func (r *repository) List(ctx context.Context, query listQuery) ([]models.Product, error) {
	qb := r.db.WithContext(ctx).Model(&models.Product{})
	if !query.IncludeInactive {
		qb = qb.Where("is_active = ?", true)
	}
	if len(query.CategoryIDs) > 0 {
		qb = qb.Where("category_id IN ?", query.CategoryIDs)
	}
	if search := strings.TrimSpace(query.Search); search != "" {
		qb = qb.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(search)+"%")
	}
	if query.Cursor != nil {
		qb = qb.Where("(created_at < ?) OR (created_at = ? AND id < ?)", query.Cursor.CreatedAt, query.Cursor.CreatedAt, query.Cursor.ID)
	}

	var rows []models.Product
	err := qb.Order("created_at DESC").Order("id DESC").Limit(query.Limit).Find(&rows).Error
	return rows, err
}

func (r *repository) Create(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Create(product).Error
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, fields map[string]any) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Product{}).Where("id = ?", id).Updates(fields)
	return res.RowsAffected, res.Error
}

func (r *repository) SlugTaken(ctx context.Context, slug string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Product{}).Where("slug = ?", slug).Count(&count).Error
	return count > 0, err
}

// AdjustStock applies delta only when the resulting stock stays non-negative.
func (r *repository) AdjustStock(ctx context.Context, id uuid.UUID, delta int) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ? AND stock + ? >= 0", id, delta).
		Update("stock", gorm.Expr("stock + ?", delta))
	return res.RowsAffected == 1, res.Error
}
