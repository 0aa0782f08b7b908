package wallets

import (
	"time"

	"github.com/angelmondragon/fashionstore-backend/pkg/db/models"
	"github.com/angelmondragon/fashionstore-backend/pkg/enums"
	"github.com/angelmondragon/fashionstore-backend/pkg/pagination"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// WalletDTO is the public wallet shape.
type WalletDTO struct {
	ID        uuid.UUID          `json:"id"`
	UserID    uuid.UUID          `json:"user_id"`
	Balance   decimal.Decimal    `json:"balance"`
	Status    enums.WalletStatus `json:"status"`
	CreatedAt time.Time          `json:"created_at"`
}

// TransactionDTO is the public ledger entry shape.
type TransactionDTO struct {
	ID           uuid.UUID               `json:"id"`
	WalletID     uuid.UUID               `json:"wallet_id"`
	Type         enums.TransactionType   `json:"type"`
	Amount       decimal.Decimal         `json:"amount"`
	Status       enums.TransactionStatus `json:"status"`
	OrderID      *uuid.UUID              `json:"order_id,omitempty"`
	Description  string                  `json:"description"`
	BalanceAfter decimal.Decimal         `json:"balance_after"`
	CreatedAt    time.Time               `json:"created_at"`
}

// UserRef identifies the wallet owner in admin listings.
type UserRef struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
}

// WalletSummary is a wallet row in the admin console.
type WalletSummary struct {
	WalletDTO
	User UserRef `json:"user"`
}

// TransactionSummary is a ledger row in the admin console.
type TransactionSummary struct {
	TransactionDTO
	User UserRef `json:"user"`
}

// OperationResult is returned by every balance mutation.
type OperationResult struct {
	Wallet      WalletDTO      `json:"wallet"`
	Transaction TransactionDTO `json:"transaction"`
}

type WalletPage struct {
	Wallets    []WalletSummary `json:"wallets"`
	Pagination pagination.Meta `json:"pagination"`
}

type TransactionPage struct {
	Transactions []TransactionSummary `json:"transactions"`
	Pagination   pagination.Meta      `json:"pagination"`
}

// TransactionFilter narrows the admin transaction listing.
type TransactionFilter struct {
	Type   *enums.TransactionType
	Status *enums.TransactionStatus
	UserID *uuid.UUID
}

// Reconciliation compares a wallet balance with the replay of its ledger.
type Reconciliation struct {
	WalletID         uuid.UUID       `json:"wallet_id"`
	Expected         decimal.Decimal `json:"expected"`
	Actual           decimal.Decimal `json:"actual"`
	Drift            decimal.Decimal `json:"drift"`
	Entries          int             `json:"entries"`
	LastBalanceAfter decimal.Decimal `json:"last_balance_after"`
	BrokenSnapshots  []int64         `json:"broken_snapshots,omitempty"`
}

// Consistent reports whether the ledger replays to the stored balance and
// every balance_after snapshot agrees with the running sum.
func (r Reconciliation) Consistent() bool {
	return r.Drift.IsZero() && len(r.BrokenSnapshots) == 0
}

func toWalletDTO(w models.Wallet) WalletDTO {
	return WalletDTO{
		ID:        w.ID,
		UserID:    w.UserID,
		Balance:   w.Balance,
		Status:    w.Status,
		CreatedAt: w.CreatedAt,
	}
}

func toTransactionDTO(t models.WalletTransaction) TransactionDTO {
	return TransactionDTO{
		ID:           t.ID,
		WalletID:     t.WalletID,
		Type:         t.Type,
		Amount:       t.Amount,
		Status:       t.Status,
		OrderID:      t.OrderID,
		Description:  t.Description,
		BalanceAfter: t.BalanceAfter,
		CreatedAt:    t.CreatedAt,
	}
}
