package orders

import (
	"context"
	"time"

	"github.com/angelmondragon/fashionstore-backend/pkg/db/models"
	"github.com/angelmondragon/fashionstore-backend/pkg/enums"
	"github.com/angelmondragon/fashionstore-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository defines persistence operations for orders and their items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	LockByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	List(ctx context.Context, filter ListFilter, page pagination.Page) ([]models.Order, int64, error)
	Update(ctx context.Context, id uuid.UUID, expected enums.OrderStatus, fields map[string]any) (int64, error)
	ListExpirable(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Create inserts the order and its items.
func (r *repository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// LockByID reads the order row FOR UPDATE. SQLite serializes writers on its
// own and has no row locks.
func (r *repository) LockByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	q := r.db.WithContext(ctx)
	if q.Dialector.Name() != "sqlite" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	if err := q.Where("id = ?", id).First(&order).Error; err != nil {
		return nil, err
	}
	var items []models.OrderItem
	if err := r.db.WithContext(ctx).Where("order_id = ?", id).Find(&items).Error; err != nil {
		return nil, err
	}
	order.Items = items
	return &order, nil
}

func (r *repository) List(ctx context.Context, filter ListFilter, page pagination.Page) ([]models.Order, int64, error) {
	scoped := func() *gorm.DB {
		qb := r.db.WithContext(ctx).Model(&models.Order{})
		if filter.Status != nil {
			qb = qb.Where("status = ?", *filter.Status)
		}
		if filter.UserID != nil {
			qb = qb.Where("user_id = ?", *filter.UserID)
		}
		return qb
	}

	var total int64
	if err := scoped().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.Order
	err := scoped().
		Preload("Items").
		Order("created_at DESC").
		Order("id DESC").
		Offset(page.Offset()).
		Limit(page.Limit).
		Find(&rows).Error
	return rows, total, err
}

// Update applies fields only while the order still has the expected status.
func (r *repository) Update(ctx context.Context, id uuid.UUID, expected enums.OrderStatus, fields map[string]any) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", id, expected).
		Updates(fields)
	return res.RowsAffected, res.Error
}

// ListExpirable returns pending, unpaid wallet orders created before cutoff.
func (r *repository) ListExpirable(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("status = ? AND payment_method = ? AND payment_status = ? AND created_at < ?",
			enums.OrderStatusPending, enums.PaymentMethodWallet, enums.PaymentStatusUnpaid, cutoff).
		Order("created_at ASC").
		Limit(limit).
		Pluck("id", &ids).Error
	return ids, err
}
