package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/fashionstore-backend/internal/cart"
	"github.com/angelmondragon/fashionstore-backend/internal/products"
	"github.com/angelmondragon/fashionstore-backend/internal/wallets"
	"github.com/angelmondragon/fashionstore-backend/pkg/db/models"
	"github.com/angelmondragon/fashionstore-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/fashionstore-backend/pkg/errors"
	"github.com/angelmondragon/fashionstore-backend/pkg/logger"
	"github.com/angelmondragon/fashionstore-backend/pkg/pagination"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// walletLedger is the slice of the wallet service the order flow needs. Every
// call runs inside the caller's transaction.
type walletLedger interface {
	FindByUserIDTx(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*wallets.WalletDTO, error)
	PayForOrderTx(ctx context.Context, tx *gorm.DB, walletID, orderID uuid.UUID, amount decimal.Decimal) (*wallets.OperationResult, error)
	RefundTx(ctx context.Context, tx *gorm.DB, walletID, orderID uuid.UUID, amount decimal.Decimal) (*wallets.OperationResult, error)
}

// Service defines checkout and the order lifecycle.
type Service interface {
	Checkout(ctx context.Context, userID uuid.UUID, input CheckoutInput) (*OrderDTO, error)
	PayWithWallet(ctx context.Context, userID, orderID uuid.UUID) (*PaymentResult, error)
	Cancel(ctx context.Context, userID, orderID uuid.UUID) (*OrderDTO, error)
	ListMine(ctx context.Context, userID uuid.UUID, page pagination.Page) (*OrderPage, error)
	Get(ctx context.Context, userID, orderID uuid.UUID) (*OrderDTO, error)
	ListAll(ctx context.Context, filter ListFilter, page pagination.Page) (*OrderPage, error)
	GetAny(ctx context.Context, orderID uuid.UUID) (*OrderDTO, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus) (*OrderDTO, error)
	ExpireUnpaid(ctx context.Context, cutoff time.Time, limit int) (int, error)
}

// ServiceParams bundles the order service dependencies.
type ServiceParams struct {
	Repo        Repository
	Products    products.Repository
	Cart        cart.Repository
	Wallets     walletLedger
	DB          txRunner
	ShippingFee decimal.Decimal
	Logger      *logger.Logger
}

type service struct {
	repo        Repository
	products    products.Repository
	cart        cart.Repository
	wallets     walletLedger
	tx          txRunner
	shippingFee decimal.Decimal
	logg        *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Repo == nil:
		return nil, fmt.Errorf("order repository required")
	case params.Products == nil:
		return nil, fmt.Errorf("product repository required")
	case params.Cart == nil:
		return nil, fmt.Errorf("cart repository required")
	case params.Wallets == nil:
		return nil, fmt.Errorf("wallet service required")
	case params.DB == nil:
		return nil, fmt.Errorf("transaction runner required")
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	case params.ShippingFee.IsNegative():
		return nil, fmt.Errorf("shipping fee must not be negative")
	}
	return &service{
		repo:        params.Repo,
		products:    params.Products,
		cart:        params.Cart,
		wallets:     params.Wallets,
		tx:          params.DB,
		shippingFee: params.ShippingFee,
		logg:        params.Logger,
	}, nil
}

func (s *service) Checkout(ctx context.Context, userID uuid.UUID, input CheckoutInput) (*OrderDTO, error) {
	if !input.PaymentMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment_method must be wallet or cod")
	}
	address := composeAddress(input.Shipping, input.ShippingAddress)
	if address == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipping address is required")
	}
	for _, item := range input.Items {
		if item.Quantity < 1 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
		}
	}

	var order *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		items := input.Items
		fromCart := len(items) == 0
		if fromCart {
			lines, err := s.cart.WithTx(tx).ListByUser(ctx, userID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
			}
			for _, line := range lines {
				items = append(items, CheckoutItem{ProductID: line.ProductID, Quantity: line.Quantity, Size: line.Size, Color: line.Color})
			}
		}
		if len(items) == 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
		}

		priced, subtotal, err := s.priceItems(ctx, tx, items)
		if err != nil {
			return err
		}

		order = &models.Order{
			UserID:          userID,
			Status:          enums.OrderStatusPending,
			PaymentMethod:   input.PaymentMethod,
			PaymentStatus:   enums.PaymentStatusUnpaid,
			Subtotal:        subtotal,
			ShippingFee:     s.shippingFee,
			Total:           subtotal.Add(s.shippingFee),
			ShippingAddress: address,
			Notes:           strings.TrimSpace(input.Notes),
			Items:           priced,
		}
		if err := s.repo.WithTx(tx).Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create order")
		}

		if fromCart {
			if err := s.cart.WithTx(tx).Clear(ctx, userID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clear cart")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"order_id":       order.ID.String(),
		"payment_method": order.PaymentMethod.String(),
		"total":          order.Total.StringFixed(2),
	}), "orders.checkout")
	return toOrderDTO(order), nil
}

// priceItems snapshots catalog prices and reserves stock for every line.
func (s *service) priceItems(ctx context.Context, tx *gorm.DB, items []CheckoutItem) ([]models.OrderItem, decimal.Decimal, error) {
	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}
	repo := s.products.WithTx(tx)
	rows, err := repo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load products")
	}
	byID := make(map[uuid.UUID]models.Product, len(rows))
	for _, row := range rows {
		byID[row.ID] = row
	}

	subtotal := decimal.Zero
	out := make([]models.OrderItem, 0, len(items))
	for _, item := range items {
		product, ok := byID[item.ProductID]
		if !ok || !product.IsActive {
			return nil, decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "product is not available").
				WithDetails(map[string]any{"product_id": item.ProductID})
		}
		reserved, err := repo.AdjustStock(ctx, product.ID, -item.Quantity)
		if err != nil {
			return nil, decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reserve stock")
		}
		if !reserved {
			return nil, decimal.Zero, pkgerrors.New(pkgerrors.CodeStateConflict, "insufficient stock").
				WithDetails(map[string]any{"product_id": product.ID, "product": product.Name})
		}
		out = append(out, models.OrderItem{
			ProductID: product.ID,
			Quantity:  item.Quantity,
			Price:     product.Price,
			Size:      strings.TrimSpace(item.Size),
			Color:     strings.TrimSpace(item.Color),
		})
		subtotal = subtotal.Add(product.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return out, subtotal, nil
}

// PayWithWallet debits the shopper's wallet and marks the order paid in one
// transaction. Either both happen or neither does.
func (s *service) PayWithWallet(ctx context.Context, userID, orderID uuid.UUID) (*PaymentResult, error) {
	var result PaymentResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.lockOwned(ctx, repo, userID, orderID)
		if err != nil {
			return err
		}
		if order.PaymentMethod != enums.PaymentMethodWallet {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order is not a wallet order")
		}
		if order.Status != enums.OrderStatusPending || order.PaymentStatus != enums.PaymentStatusUnpaid {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order is not awaiting payment").
				WithDetails(map[string]any{"status": order.Status, "payment_status": order.PaymentStatus})
		}

		wallet, err := s.wallets.FindByUserIDTx(ctx, tx, userID)
		if err != nil {
			return err
		}
		op, err := s.wallets.PayForOrderTx(ctx, tx, wallet.ID, order.ID, order.Total)
		if err != nil {
			return err
		}

		if err := s.transition(ctx, repo, order, enums.OrderStatusPaid, enums.PaymentStatusPaid); err != nil {
			return err
		}
		result.Order = toOrderDTO(order)
		result.Wallet = op.Wallet
		result.Transaction = op.Transaction
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *service) Cancel(ctx context.Context, userID, orderID uuid.UUID) (*OrderDTO, error) {
	var out *OrderDTO
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.lockOwned(ctx, repo, userID, orderID)
		if err != nil {
			return err
		}
		if order.Status != enums.OrderStatusPending && order.Status != enums.OrderStatusPaid {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order can no longer be cancelled").
				WithDetails(map[string]any{"status": order.Status})
		}
		if err := s.cancelLocked(ctx, tx, order); err != nil {
			return err
		}
		out = toOrderDTO(order)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// cancelLocked refunds a paid wallet order, puts the stock back and marks the
// order cancelled. The caller holds the row lock. Shoppers may only cancel
// pending or paid orders; admins can also cancel processing ones.
func (s *service) cancelLocked(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	if !order.Status.CanTransitionTo(enums.OrderStatusCancelled) {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order can no longer be cancelled").
			WithDetails(map[string]any{"status": order.Status})
	}

	payment := order.PaymentStatus
	if order.PaymentMethod == enums.PaymentMethodWallet && order.PaymentStatus == enums.PaymentStatusPaid {
		wallet, err := s.wallets.FindByUserIDTx(ctx, tx, order.UserID)
		if err != nil {
			return err
		}
		if _, err := s.wallets.RefundTx(ctx, tx, wallet.ID, order.ID, order.Total); err != nil {
			return err
		}
		payment = enums.PaymentStatusRefunded
	}

	productRepo := s.products.WithTx(tx)
	for _, item := range order.Items {
		if _, err := productRepo.AdjustStock(ctx, item.ProductID, item.Quantity); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "restore stock")
		}
	}

	if err := s.transition(ctx, s.repo.WithTx(tx), order, enums.OrderStatusCancelled, payment); err != nil {
		return err
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"order_id":       order.ID.String(),
		"payment_status": payment.String(),
	}), "orders.cancelled")
	return nil
}

func (s *service) ListMine(ctx context.Context, userID uuid.UUID, page pagination.Page) (*OrderPage, error) {
	return s.ListAll(ctx, ListFilter{UserID: &userID}, page)
}

func (s *service) Get(ctx context.Context, userID, orderID uuid.UUID) (*OrderDTO, error) {
	order, err := s.find(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, orderNotFound()
	}
	return toOrderDTO(order), nil
}

func (s *service) GetAny(ctx context.Context, orderID uuid.UUID) (*OrderDTO, error) {
	order, err := s.find(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return toOrderDTO(order), nil
}

func (s *service) ListAll(ctx context.Context, filter ListFilter, page pagination.Page) (*OrderPage, error) {
	if filter.Status != nil && !filter.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status")
	}
	rows, total, err := s.repo.List(ctx, filter, page)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list orders")
	}
	out := make([]OrderDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *toOrderDTO(&rows[i]))
	}
	return &OrderPage{Orders: out, Pagination: pagination.MetaFor(page, total)}, nil
}

// UpdateStatus moves an order forward. Cancelling goes through the same
// refund path as a shopper cancel; a wallet order can only become paid via
// PayWithWallet.
func (s *service) UpdateStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus) (*OrderDTO, error) {
	if !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status")
	}

	var out *OrderDTO
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.LockByID(ctx, orderID)
		if err != nil {
			return mapLookupError(err)
		}
		if !order.Status.CanTransitionTo(status) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("cannot move order from %s to %s", order.Status, status))
		}

		switch {
		case status == enums.OrderStatusCancelled:
			if err := s.cancelLocked(ctx, tx, order); err != nil {
				return err
			}
		case order.PaymentMethod == enums.PaymentMethodWallet && order.PaymentStatus != enums.PaymentStatusPaid:
			return pkgerrors.New(pkgerrors.CodeStateConflict, "wallet orders are paid by the customer").
				WithDetails(map[string]any{"status": order.Status, "payment_status": order.PaymentStatus})
		default:
			payment := order.PaymentStatus
			if order.PaymentMethod == enums.PaymentMethodCOD && (status == enums.OrderStatusPaid || status == enums.OrderStatusDelivered) {
				payment = enums.PaymentStatusPaid
			}
			if err := s.transition(ctx, repo, order, status, payment); err != nil {
				return err
			}
		}
		out = toOrderDTO(order)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{"order_id": orderID.String(), "status": status.String()}), "orders.status_updated")
	return out, nil
}

// ExpireUnpaid cancels pending wallet orders that were never paid. Each order
// is handled in its own transaction; failures are collected and the sweep
// continues.
func (s *service) ExpireUnpaid(ctx context.Context, cutoff time.Time, limit int) (int, error) {
	if limit <= 0 {
		limit = pagination.MaxLimit
	}
	ids, err := s.repo.ListExpirable(ctx, cutoff, limit)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list expirable orders")
	}

	expired := 0
	var errs error
	for _, id := range ids {
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			order, err := s.repo.WithTx(tx).LockByID(ctx, id)
			if err != nil {
				return err
			}
			if order.Status != enums.OrderStatusPending || order.PaymentStatus != enums.PaymentStatusUnpaid {
				return errSkip
			}
			return s.cancelLocked(ctx, tx, order)
		})
		switch {
		case err == nil:
			expired++
		case errors.Is(err, errSkip):
		default:
			errs = multierr.Append(errs, fmt.Errorf("expire order %s: %w", id, err))
		}
	}
	return expired, errs
}

var errSkip = errors.New("order no longer expirable")

func (s *service) find(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapLookupError(err)
	}
	return order, nil
}

func (s *service) lockOwned(ctx context.Context, repo Repository, userID, orderID uuid.UUID) (*models.Order, error) {
	order, err := repo.LockByID(ctx, orderID)
	if err != nil {
		return nil, mapLookupError(err)
	}
	if order.UserID != userID {
		return nil, orderNotFound()
	}
	return order, nil
}

func (s *service) transition(ctx context.Context, repo Repository, order *models.Order, status enums.OrderStatus, payment enums.PaymentStatus) error {
	affected, err := repo.Update(ctx, order.ID, order.Status, map[string]any{
		"status":         status,
		"payment_status": payment,
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update order status")
	}
	if affected == 0 {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order was modified concurrently")
	}
	order.Status = status
	order.PaymentStatus = payment
	return nil
}

func mapLookupError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return orderNotFound()
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
}

func orderNotFound() error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
}

// composeAddress renders the structured checkout form as
// "name - phone - address[ - Ghi chú: note]", falling back to the raw string.
func composeAddress(info *ShippingInfo, raw string) string {
	if info == nil {
		return strings.TrimSpace(raw)
	}
	parts := []string{}
	for _, part := range []string{info.Name, info.Phone, info.Address} {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	if len(parts) == 0 {
		return strings.TrimSpace(raw)
	}
	if note := strings.TrimSpace(info.Note); note != "" {
		parts = append(parts, "Ghi chú: "+note)
	}
	return strings.Join(parts, " - ")
}
