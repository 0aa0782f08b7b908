package wallets

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/fashionstore-backend/pkg/db/models"
	"github.com/angelmondragon/fashionstore-backend/pkg/enums"
	"github.com/angelmondragon/fashionstore-backend/pkg/pagination"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository persists wallets and their ledger.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, wallet *models.Wallet) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Wallet, error)
	FindByUserID(ctx context.Context, userID uuid.UUID) (*models.Wallet, error)
	LockByID(ctx context.Context, id uuid.UUID) (*models.Wallet, error)
	CompareAndSetBalance(ctx context.Context, id uuid.UUID, expectedVersion int64, balance decimal.Decimal) (bool, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status enums.WalletStatus) (int64, error)
	AppendTransaction(ctx context.Context, entry *models.WalletTransaction) error
	LedgerUpTo(ctx context.Context, walletID uuid.UUID, version int64) ([]models.WalletTransaction, error)
	ListWallets(ctx context.Context, page pagination.Page, search string) ([]walletRow, int64, error)
	ListTransactions(ctx context.Context, filter TransactionFilter, page pagination.Page) ([]transactionRow, int64, error)
	ListWalletIDsAfter(ctx context.Context, after uuid.UUID, limit int) ([]uuid.UUID, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a wallet repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

type walletRow struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Balance   decimal.Decimal
	Status    enums.WalletStatus
	CreatedAt time.Time
	UserName  string
	UserEmail string
}

type transactionRow struct {
	ID           uuid.UUID
	WalletID     uuid.UUID
	Type         enums.TransactionType
	Amount       decimal.Decimal
	Status       enums.TransactionStatus
	OrderID      *uuid.UUID
	Description  string
	BalanceAfter decimal.Decimal
	CreatedAt    time.Time
	UserID       uuid.UUID
	UserName     string
	UserEmail    string
}

func (r *repository) Create(ctx context.Context, wallet *models.Wallet) error {
	return r.db.WithContext(ctx).Create(wallet).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Wallet, error) {
	var wallet models.Wallet
	if err := r.db.WithContext(ctx).First(&wallet, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &wallet, nil
}

func (r *repository) FindByUserID(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	var wallet models.Wallet
	if err := r.db.WithContext(ctx).First(&wallet, "user_id = ?", userID).Error; err != nil {
		return nil, err
	}
	return &wallet, nil
}

// LockByID reads the wallet with SELECT ... FOR UPDATE. SQLite has no row
// locks and serialises writers on its own.
func (r *repository) LockByID(ctx context.Context, id uuid.UUID) (*models.Wallet, error) {
	var wallet models.Wallet
	q := r.db.WithContext(ctx)
	if q.Dialector.Name() != "sqlite" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	if err := q.First(&wallet, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &wallet, nil
}

// CompareAndSetBalance writes balance only if the row still carries
// expectedVersion, bumping the version on success.
func (r *repository) CompareAndSetBalance(ctx context.Context, id uuid.UUID, expectedVersion int64, balance decimal.Decimal) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Wallet{}).
		Where("id = ? AND version = ?", id, expectedVersion).
		Updates(map[string]any{
			"balance":    balance,
			"version":    gorm.Expr("version + 1"),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.WalletStatus) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Wallet{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": status, "updated_at": time.Now().UTC()})
	return res.RowsAffected, res.Error
}

// AppendTransaction inserts a settled ledger entry. The repository has no
// status update, so a settled entry can never be reversed in place.
func (r *repository) AppendTransaction(ctx context.Context, entry *models.WalletTransaction) error {
	if !entry.Status.IsTerminal() {
		return fmt.Errorf("ledger entry status %q is not settled", entry.Status)
	}
	return r.db.WithContext(ctx).Create(entry).Error
}

// LedgerUpTo returns completed entries with sequence <= version in commit order.
func (r *repository) LedgerUpTo(ctx context.Context, walletID uuid.UUID, version int64) ([]models.WalletTransaction, error) {
	var entries []models.WalletTransaction
	err := r.db.WithContext(ctx).
		Where("wallet_id = ? AND sequence <= ? AND status = ?", walletID, version, enums.TransactionStatusCompleted).
		Order("sequence ASC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repository) ListWallets(ctx context.Context, page pagination.Page, search string) ([]walletRow, int64, error) {
	filter := func(db *gorm.DB) *gorm.DB {
		db = db.Table("wallets AS w").Joins("JOIN users u ON u.id = w.user_id")
		if term := strings.ToLower(strings.TrimSpace(search)); term != "" {
			like := "%" + term + "%"
			db = db.Where("LOWER(u.name) LIKE ? OR LOWER(u.email) LIKE ?", like, like)
		}
		return db
	}

	var total int64
	if err := r.db.WithContext(ctx).Scopes(filter).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []walletRow
	err := r.db.WithContext(ctx).
		Scopes(filter).
		Select("w.id, w.user_id, w.balance, w.status, w.created_at, u.name AS user_name, u.email AS user_email").
		Order("w.created_at DESC, w.id DESC").
		Offset(page.Offset()).
		Limit(page.Limit).
		Scan(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func (r *repository) ListTransactions(ctx context.Context, filter TransactionFilter, page pagination.Page) ([]transactionRow, int64, error) {
	scope := func(db *gorm.DB) *gorm.DB {
		db = db.Table("wallet_transactions AS t").
			Joins("JOIN wallets w ON w.id = t.wallet_id").
			Joins("JOIN users u ON u.id = w.user_id")
		if filter.Type != nil {
			db = db.Where("t.type = ?", *filter.Type)
		}
		if filter.Status != nil {
			db = db.Where("t.status = ?", *filter.Status)
		}
		if filter.UserID != nil {
			db = db.Where("w.user_id = ?", *filter.UserID)
		}
		return db
	}

	var total int64
	if err := r.db.WithContext(ctx).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []transactionRow
	err := r.db.WithContext(ctx).
		Scopes(scope).
		Select(`t.id, t.wallet_id, t.type, t.amount, t.status, t.order_id, t.description,
			t.balance_after, t.created_at, w.user_id, u.name AS user_name, u.email AS user_email`).
		Order("t.created_at DESC, t.sequence DESC").
		Offset(page.Offset()).
		Limit(page.Limit).
		Scan(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// ListWalletIDsAfter pages through wallet ids in key order.
func (r *repository) ListWalletIDsAfter(ctx context.Context, after uuid.UUID, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.Wallet{}).
		Where("id > ?", after).
		Order("id ASC").
		Limit(limit).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}
