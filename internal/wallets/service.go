package wallets

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/angelmondragon/fashionstore-backend/pkg/db"
	"github.com/angelmondragon/fashionstore-backend/pkg/db/models"
	"github.com/angelmondragon/fashionstore-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/fashionstore-backend/pkg/errors"
	"github.com/angelmondragon/fashionstore-backend/pkg/logger"
	"github.com/angelmondragon/fashionstore-backend/pkg/metrics"
	"github.com/angelmondragon/fashionstore-backend/pkg/pagination"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const sequenceConstraint = "wallet_transactions_wallet_sequence_key"

// Service exposes wallet balance operations and the admin views over them.
type Service interface {
	CreateForUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*WalletDTO, error)
	GetByID(ctx context.Context, walletID uuid.UUID) (*WalletDTO, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*WalletDTO, error)

	Deposit(ctx context.Context, walletID uuid.UUID, amount decimal.Decimal, description string) (*OperationResult, error)
	DepositForUser(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, description string) (*OperationResult, error)
	PayForOrder(ctx context.Context, walletID, orderID uuid.UUID, amount decimal.Decimal) (*OperationResult, error)
	Refund(ctx context.Context, walletID, orderID uuid.UUID, amount decimal.Decimal) (*OperationResult, error)
	SetStatus(ctx context.Context, walletID uuid.UUID, status enums.WalletStatus) (*WalletDTO, error)

	// Tx variants join a transaction owned by the caller.
	PayForOrderTx(ctx context.Context, tx *gorm.DB, walletID, orderID uuid.UUID, amount decimal.Decimal) (*OperationResult, error)
	RefundTx(ctx context.Context, tx *gorm.DB, walletID, orderID uuid.UUID, amount decimal.Decimal) (*OperationResult, error)
	FindByUserIDTx(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*WalletDTO, error)

	ListWallets(ctx context.Context, page pagination.Page, search string) (*WalletPage, error)
	ListTransactions(ctx context.Context, filter TransactionFilter, page pagination.Page) (*TransactionPage, error)
	ListUserTransactions(ctx context.Context, userID uuid.UUID, page pagination.Page) (*TransactionPage, error)

	Reconcile(ctx context.Context, walletID uuid.UUID) (*Reconciliation, error)
	WalletIDsAfter(ctx context.Context, after uuid.UUID, limit int) ([]uuid.UUID, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type service struct {
	repo    Repository
	tx      txRunner
	logg    *logger.Logger
	metrics *metrics.WalletMetrics
}

// NewService wires the wallet service. metrics may be nil.
func NewService(repo Repository, tx txRunner, logg *logger.Logger, m *metrics.WalletMetrics) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("wallet repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, tx: tx, logg: logg, metrics: m}, nil
}

type mutation struct {
	walletID    uuid.UUID
	kind        enums.TransactionType
	amount      decimal.Decimal
	orderID     *uuid.UUID
	description string
}

func (s *service) CreateForUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*WalletDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	wallet := &models.Wallet{
		UserID:  userID,
		Balance: decimal.Zero,
		Status:  enums.WalletStatusActive,
	}
	if err := s.repo.WithTx(tx).Create(ctx, wallet); err != nil {
		if db.IsUniqueViolation(err, "wallets_user_id_key") || db.IsUniqueViolation(err, "wallets.user_id") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "user already has a wallet")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create wallet")
	}
	dto := toWalletDTO(*wallet)
	return &dto, nil
}

func (s *service) GetByID(ctx context.Context, walletID uuid.UUID) (*WalletDTO, error) {
	wallet, err := s.repo.FindByID(ctx, walletID)
	if err != nil {
		return nil, mapLookupError(err)
	}
	dto := toWalletDTO(*wallet)
	return &dto, nil
}

func (s *service) GetByUserID(ctx context.Context, userID uuid.UUID) (*WalletDTO, error) {
	return s.FindByUserIDTx(ctx, nil, userID)
}

func (s *service) FindByUserIDTx(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*WalletDTO, error) {
	wallet, err := s.repo.WithTx(tx).FindByUserID(ctx, userID)
	if err != nil {
		return nil, mapLookupError(err)
	}
	dto := toWalletDTO(*wallet)
	return &dto, nil
}

func (s *service) Deposit(ctx context.Context, walletID uuid.UUID, amount decimal.Decimal, description string) (*OperationResult, error) {
	if strings.TrimSpace(description) == "" {
		description = "Deposit"
	}
	return s.run(ctx, mutation{
		walletID:    walletID,
		kind:        enums.TransactionTypeDeposit,
		amount:      amount,
		description: strings.TrimSpace(description),
	})
}

func (s *service) DepositForUser(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, description string) (*OperationResult, error) {
	wallet, err := s.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.Deposit(ctx, wallet.ID, amount, description)
}

func (s *service) PayForOrder(ctx context.Context, walletID, orderID uuid.UUID, amount decimal.Decimal) (*OperationResult, error) {
	return s.run(ctx, paymentMutation(walletID, orderID, amount))
}

func (s *service) Refund(ctx context.Context, walletID, orderID uuid.UUID, amount decimal.Decimal) (*OperationResult, error) {
	return s.run(ctx, refundMutation(walletID, orderID, amount))
}

func (s *service) PayForOrderTx(ctx context.Context, tx *gorm.DB, walletID, orderID uuid.UUID, amount decimal.Decimal) (*OperationResult, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction required")
	}
	m := paymentMutation(walletID, orderID, amount)
	res, err := s.apply(ctx, tx, m)
	s.observe(ctx, m, res, err)
	return res, err
}

func (s *service) RefundTx(ctx context.Context, tx *gorm.DB, walletID, orderID uuid.UUID, amount decimal.Decimal) (*OperationResult, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction required")
	}
	m := refundMutation(walletID, orderID, amount)
	res, err := s.apply(ctx, tx, m)
	s.observe(ctx, m, res, err)
	return res, err
}

func paymentMutation(walletID, orderID uuid.UUID, amount decimal.Decimal) mutation {
	return mutation{
		walletID:    walletID,
		kind:        enums.TransactionTypePayment,
		amount:      amount,
		orderID:     &orderID,
		description: fmt.Sprintf("Payment for order %s", orderID),
	}
}

func refundMutation(walletID, orderID uuid.UUID, amount decimal.Decimal) mutation {
	return mutation{
		walletID:    walletID,
		kind:        enums.TransactionTypeRefund,
		amount:      amount,
		orderID:     &orderID,
		description: fmt.Sprintf("Refund for order %s", orderID),
	}
}

func (s *service) run(ctx context.Context, m mutation) (*OperationResult, error) {
	var res *OperationResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		res, err = s.apply(ctx, tx, m)
		return err
	})
	if err != nil {
		res = nil
	}
	s.observe(ctx, m, res, err)
	return res, err
}

// apply locks the wallet row, checks the mutation against the locked snapshot,
// writes the balance with a version compare-and-set and appends the ledger entry.
func (s *service) apply(ctx context.Context, tx *gorm.DB, m mutation) (*OperationResult, error) {
	if err := validateAmount(m.amount); err != nil {
		return nil, err
	}
	repo := s.repo.WithTx(tx)

	wallet, err := repo.LockByID(ctx, m.walletID)
	if err != nil {
		return nil, mapLookupError(err)
	}
	if wallet.Status != enums.WalletStatusActive {
		return nil, walletInactive()
	}

	delta := m.amount
	if m.kind.Sign() < 0 {
		delta = delta.Neg()
	}
	next := wallet.Balance.Add(delta)
	if next.IsNegative() {
		return nil, insufficientFunds(wallet.Balance, m.amount)
	}
	if next.GreaterThan(maxAmount) {
		return nil, invalidAmount(m.amount, "resulting balance exceeds the maximum supported value")
	}

	ok, err := repo.CompareAndSetBalance(ctx, wallet.ID, wallet.Version, next)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update wallet balance")
	}
	if !ok {
		return nil, concurrentUpdate()
	}

	entry := &models.WalletTransaction{
		WalletID:     wallet.ID,
		Type:         m.kind,
		Amount:       m.amount,
		Status:       enums.TransactionStatusCompleted,
		OrderID:      m.orderID,
		Description:  m.description,
		BalanceAfter: next,
		Sequence:     wallet.Version + 1,
	}
	if err := repo.AppendTransaction(ctx, entry); err != nil {
		if db.IsUniqueViolation(err, sequenceConstraint) || db.IsUniqueViolation(err, "wallet_transactions.sequence") {
			return nil, concurrentUpdate()
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "append wallet transaction")
	}

	wallet.Balance = next
	wallet.Version = entry.Sequence
	return &OperationResult{
		Wallet:      toWalletDTO(*wallet),
		Transaction: toTransactionDTO(*entry),
	}, nil
}

func (s *service) observe(ctx context.Context, m mutation, res *OperationResult, err error) {
	kind := m.kind.String()
	if err != nil {
		outcome := metrics.OutcomeError
		if isRejection(err) {
			outcome = metrics.OutcomeRejected
		}
		s.metrics.ObserveOperation(kind, outcome)

		ctx = s.logg.WithFields(ctx, map[string]any{
			"wallet_id": m.walletID.String(),
			"amount":    m.amount.String(),
			"type":      kind,
		})
		if outcome == metrics.OutcomeRejected {
			s.logg.Warn(ctx, "wallet."+eventName(m.kind)+".rejected")
		} else {
			s.logg.Error(ctx, "wallet."+eventName(m.kind)+".failed", err)
		}
		return
	}

	s.metrics.ObserveOperation(kind, metrics.OutcomeSuccess)
	fields := map[string]any{
		"wallet_id":      res.Wallet.ID.String(),
		"transaction_id": res.Transaction.ID.String(),
		"amount":         m.amount.String(),
		"balance_after":  res.Transaction.BalanceAfter.String(),
	}
	if m.orderID != nil {
		fields["order_id"] = m.orderID.String()
	}
	s.logg.Info(s.logg.WithFields(ctx, fields), "wallet."+eventName(m.kind))
}

func eventName(kind enums.TransactionType) string {
	if kind == enums.TransactionTypeDeposit {
		return "deposit"
	}
	if kind == enums.TransactionTypeRefund {
		return "refund"
	}
	return "payment"
}

func isRejection(err error) bool {
	return errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrWalletInactive) ||
		errors.Is(err, ErrWalletNotFound) ||
		errors.Is(err, ErrConcurrentUpdate)
}

func (s *service) SetStatus(ctx context.Context, walletID uuid.UUID, status enums.WalletStatus) (*WalletDTO, error) {
	if !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid wallet status %q", status))
	}
	var updated *models.Wallet
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		rows, err := repo.UpdateStatus(ctx, walletID, status)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update wallet status")
		}
		if rows == 0 {
			return walletNotFound()
		}
		updated, err = repo.FindByID(ctx, walletID)
		if err != nil {
			return mapLookupError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"wallet_id": walletID.String(),
		"status":    status.String(),
	}), "wallet.status")

	dto := toWalletDTO(*updated)
	return &dto, nil
}

func (s *service) ListWallets(ctx context.Context, page pagination.Page, search string) (*WalletPage, error) {
	rows, total, err := s.repo.ListWallets(ctx, page, search)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list wallets")
	}
	out := &WalletPage{
		Wallets:    make([]WalletSummary, 0, len(rows)),
		Pagination: pagination.MetaFor(page, total),
	}
	for _, row := range rows {
		out.Wallets = append(out.Wallets, WalletSummary{
			WalletDTO: WalletDTO{
				ID:        row.ID,
				UserID:    row.UserID,
				Balance:   row.Balance,
				Status:    row.Status,
				CreatedAt: row.CreatedAt,
			},
			User: UserRef{ID: row.UserID, Name: row.UserName, Email: row.UserEmail},
		})
	}
	return out, nil
}

func (s *service) ListTransactions(ctx context.Context, filter TransactionFilter, page pagination.Page) (*TransactionPage, error) {
	if filter.Type != nil && !filter.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid transaction type %q", *filter.Type))
	}
	if filter.Status != nil && !filter.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid transaction status %q", *filter.Status))
	}

	rows, total, err := s.repo.ListTransactions(ctx, filter, page)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list wallet transactions")
	}
	out := &TransactionPage{
		Transactions: make([]TransactionSummary, 0, len(rows)),
		Pagination:   pagination.MetaFor(page, total),
	}
	for _, row := range rows {
		out.Transactions = append(out.Transactions, TransactionSummary{
			TransactionDTO: TransactionDTO{
				ID:           row.ID,
				WalletID:     row.WalletID,
				Type:         row.Type,
				Amount:       row.Amount,
				Status:       row.Status,
				OrderID:      row.OrderID,
				Description:  row.Description,
				BalanceAfter: row.BalanceAfter,
				CreatedAt:    row.CreatedAt,
			},
			User: UserRef{ID: row.UserID, Name: row.UserName, Email: row.UserEmail},
		})
	}
	return out, nil
}

func (s *service) ListUserTransactions(ctx context.Context, userID uuid.UUID, page pagination.Page) (*TransactionPage, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	return s.ListTransactions(ctx, TransactionFilter{UserID: &userID}, page)
}

// Reconcile replays the completed ledger up to the wallet's current version.
// It takes no locks; entries committed after the wallet read carry a higher
// sequence and are excluded.
func (s *service) Reconcile(ctx context.Context, walletID uuid.UUID) (*Reconciliation, error) {
	wallet, err := s.repo.FindByID(ctx, walletID)
	if err != nil {
		return nil, mapLookupError(err)
	}
	entries, err := s.repo.LedgerUpTo(ctx, wallet.ID, wallet.Version)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load wallet ledger")
	}

	expected := decimal.Zero
	report := &Reconciliation{
		WalletID: wallet.ID,
		Actual:   wallet.Balance,
		Entries:  len(entries),
	}
	for _, entry := range entries {
		expected = expected.Add(entry.Amount.Mul(decimal.NewFromInt(int64(entry.Type.Sign()))))
		if !entry.BalanceAfter.Equal(expected) {
			report.BrokenSnapshots = append(report.BrokenSnapshots, entry.Sequence)
		}
		report.LastBalanceAfter = entry.BalanceAfter
	}
	report.Expected = expected
	report.Drift = wallet.Balance.Sub(expected)
	return report, nil
}

func (s *service) WalletIDsAfter(ctx context.Context, after uuid.UUID, limit int) ([]uuid.UUID, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive")
	}
	ids, err := s.repo.ListWalletIDsAfter(ctx, after, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list wallet ids")
	}
	return ids, nil
}

func mapLookupError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return walletNotFound()
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load wallet")
}
