package orders

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/angelmondragon/fashionstore-backend/internal/cart"
	"github.com/angelmondragon/fashionstore-backend/internal/products"
	"github.com/angelmondragon/fashionstore-backend/internal/wallets"
	"github.com/angelmondragon/fashionstore-backend/pkg/db/dbtest"
	"github.com/angelmondragon/fashionstore-backend/pkg/db/models"
	"github.com/angelmondragon/fashionstore-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/fashionstore-backend/pkg/errors"
	"github.com/angelmondragon/fashionstore-backend/pkg/logger"
	"github.com/angelmondragon/fashionstore-backend/pkg/pagination"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fixture struct {
	db      *gorm.DB
	svc     Service
	wallets wallets.Service
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	conn, client := dbtest.OpenClient(t)
	logg := logger.New(logger.Options{ServiceName: "orders-test", Output: io.Discard})
	walletSvc, err := wallets.NewService(wallets.NewRepository(conn), client, logg, nil)
	require.NoError(t, err)
	svc, err := NewService(ServiceParams{
		Repo:        NewRepository(conn),
		Products:    products.NewRepository(conn),
		Cart:        cart.NewRepository(conn),
		Wallets:     walletSvc,
		DB:          client,
		ShippingFee: decimal.NewFromInt(30000),
		Logger:      logg,
	})
	require.NoError(t, err)
	return fixture{db: conn, svc: svc, wallets: walletSvc}
}

// shopper creates a user with a wallet funded with balance.
func (f fixture) shopper(t *testing.T, balance string) uuid.UUID {
	t.Helper()
	user := &models.User{
		Name:         "Shopper",
		Email:        uuid.NewString() + "@example.com",
		PasswordHash: "x",
		Role:         enums.UserRoleUser,
		Status:       enums.UserStatusActive,
	}
	require.NoError(t, f.db.Create(user).Error)
	wallet, err := f.wallets.CreateForUser(context.Background(), f.db, user.ID)
	require.NoError(t, err)
	if amount := decimal.RequireFromString(balance); amount.IsPositive() {
		_, err := f.wallets.Deposit(context.Background(), wallet.ID, amount, "")
		require.NoError(t, err)
	}
	return user.ID
}

func (f fixture) product(t *testing.T, name, price string, stock int) models.Product {
	t.Helper()
	p := models.Product{
		Name:     name,
		Slug:     uuid.NewString(),
		Price:    decimal.RequireFromString(price),
		Stock:    stock,
		IsActive: true,
	}
	require.NoError(t, f.db.Create(&p).Error)
	return p
}

func (f fixture) stock(t *testing.T, id uuid.UUID) int {
	t.Helper()
	var p models.Product
	require.NoError(t, f.db.First(&p, "id = ?", id).Error)
	return p.Stock
}

func (f fixture) balance(t *testing.T, userID uuid.UUID) decimal.Decimal {
	t.Helper()
	wallet, err := f.wallets.GetByUserID(context.Background(), userID)
	require.NoError(t, err)
	return wallet.Balance
}

func (f fixture) walletOrder(t *testing.T, userID uuid.UUID, p models.Product, qty int) *OrderDTO {
	t.Helper()
	order, err := f.svc.Checkout(context.Background(), userID, CheckoutInput{
		Items:           []CheckoutItem{{ProductID: p.ID, Quantity: qty}},
		PaymentMethod:   enums.PaymentMethodWallet,
		ShippingAddress: "1 Le Loi, District 1",
	})
	require.NoError(t, err)
	return order
}

func assertAmount(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.Truef(t, decimal.RequireFromString(want).Equal(got), "expected %s, got %s", want, got.String())
}

func TestCheckoutFromCart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.shopper(t, "0")
	dress := f.product(t, "Dress", "250000", 5)
	belt := f.product(t, "Belt", "80000.50", 5)

	require.NoError(t, f.db.Create(&models.CartItem{UserID: user, ProductID: dress.ID, Quantity: 2, Size: "M"}).Error)
	require.NoError(t, f.db.Create(&models.CartItem{UserID: user, ProductID: belt.ID, Quantity: 1}).Error)

	order, err := f.svc.Checkout(ctx, user, CheckoutInput{
		PaymentMethod: enums.PaymentMethodCOD,
		Shipping:      &ShippingInfo{Name: "Lan", Phone: "0901234567", Address: "1 Le Loi", Note: "call first"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Lan - 0901234567 - 1 Le Loi - Ghi chú: call first", order.ShippingAddress)
	assertAmount(t, "580000.5", order.Subtotal)
	assertAmount(t, "30000", order.ShippingFee)
	assertAmount(t, "610000.5", order.Total)
	assert.Equal(t, enums.OrderStatusPending, order.Status)
	assert.Equal(t, enums.PaymentStatusUnpaid, order.PaymentStatus)
	assert.Len(t, order.Items, 2)

	var remaining int64
	require.NoError(t, f.db.Model(&models.CartItem{}).Where("user_id = ?", user).Count(&remaining).Error)
	assert.Zero(t, remaining)
	assert.Equal(t, 3, f.stock(t, dress.ID))
	assert.Equal(t, 4, f.stock(t, belt.ID))
}

func TestCheckoutValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.shopper(t, "0")
	shirt := f.product(t, "Shirt", "100000", 1)
	gone := f.product(t, "Gone", "100000", 10)
	require.NoError(t, f.db.Model(&models.Product{}).Where("id = ?", gone.ID).Update("is_active", false).Error)

	valid := func(items ...CheckoutItem) CheckoutInput {
		return CheckoutInput{Items: items, PaymentMethod: enums.PaymentMethodCOD, ShippingAddress: "addr"}
	}

	_, err := f.svc.Checkout(ctx, user, valid())
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation), "empty cart: %v", err)

	_, err = f.svc.Checkout(ctx, user, CheckoutInput{Items: []CheckoutItem{{ProductID: shirt.ID, Quantity: 1}}, PaymentMethod: "card", ShippingAddress: "addr"})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	_, err = f.svc.Checkout(ctx, user, CheckoutInput{Items: []CheckoutItem{{ProductID: shirt.ID, Quantity: 1}}, PaymentMethod: enums.PaymentMethodCOD})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	_, err = f.svc.Checkout(ctx, user, valid(CheckoutItem{ProductID: shirt.ID, Quantity: 0}))
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	_, err = f.svc.Checkout(ctx, user, valid(CheckoutItem{ProductID: gone.ID, Quantity: 1}))
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	_, err = f.svc.Checkout(ctx, user, valid(CheckoutItem{ProductID: uuid.New(), Quantity: 1}))
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

func TestCheckoutInsufficientStockRollsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.shopper(t, "0")
	plenty := f.product(t, "Socks", "20000", 10)
	scarce := f.product(t, "Coat", "900000", 1)

	_, err := f.svc.Checkout(ctx, user, CheckoutInput{
		Items: []CheckoutItem{
			{ProductID: plenty.ID, Quantity: 3},
			{ProductID: scarce.ID, Quantity: 2},
		},
		PaymentMethod:   enums.PaymentMethodCOD,
		ShippingAddress: "addr",
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeStateConflict))

	assert.Equal(t, 10, f.stock(t, plenty.ID))
	assert.Equal(t, 1, f.stock(t, scarce.ID))
	var count int64
	require.NoError(t, f.db.Model(&models.Order{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestPayWithWallet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.shopper(t, "500000")
	dress := f.product(t, "Dress", "250000", 5)
	order := f.walletOrder(t, user, dress, 1)
	assertAmount(t, "280000", order.Total)

	res, err := f.svc.PayWithWallet(ctx, user, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPaid, res.Order.Status)
	assert.Equal(t, enums.PaymentStatusPaid, res.Order.PaymentStatus)
	assertAmount(t, "220000", res.Wallet.Balance)
	assert.Equal(t, enums.TransactionTypePayment, res.Transaction.Type)
	require.NotNil(t, res.Transaction.OrderID)
	assert.Equal(t, order.ID, *res.Transaction.OrderID)

	_, err = f.svc.PayWithWallet(ctx, user, order.ID)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeStateConflict))
	assertAmount(t, "220000", f.balance(t, user))
}

func TestPayWithWalletInsufficientLeavesOrderPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.shopper(t, "100000")
	dress := f.product(t, "Dress", "250000", 5)
	order := f.walletOrder(t, user, dress, 1)

	_, err := f.svc.PayWithWallet(ctx, user, order.ID)
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeInsufficient))

	stored, err := f.svc.Get(ctx, user, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPending, stored.Status)
	assert.Equal(t, enums.PaymentStatusUnpaid, stored.PaymentStatus)
	assertAmount(t, "100000", f.balance(t, user))
}

func TestPayWithWalletRejectsForeignAndCODOrders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.shopper(t, "500000")
	stranger := f.shopper(t, "500000")
	shoe := f.product(t, "Shoe", "100000", 5)

	order := f.walletOrder(t, owner, shoe, 1)
	_, err := f.svc.PayWithWallet(ctx, stranger, order.ID)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
	_, err = f.svc.Get(ctx, stranger, order.ID)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))

	cod, err := f.svc.Checkout(ctx, owner, CheckoutInput{
		Items:           []CheckoutItem{{ProductID: shoe.ID, Quantity: 1}},
		PaymentMethod:   enums.PaymentMethodCOD,
		ShippingAddress: "addr",
	})
	require.NoError(t, err)
	_, err = f.svc.PayWithWallet(ctx, owner, cod.ID)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeStateConflict))

	_, err = f.svc.PayWithWallet(ctx, owner, uuid.New())
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
}

func TestCancelPaidOrderRefunds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.shopper(t, "500000")
	dress := f.product(t, "Dress", "250000", 5)
	order := f.walletOrder(t, user, dress, 1)
	_, err := f.svc.PayWithWallet(ctx, user, order.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, f.stock(t, dress.ID))

	cancelled, err := f.svc.Cancel(ctx, user, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCancelled, cancelled.Status)
	assert.Equal(t, enums.PaymentStatusRefunded, cancelled.PaymentStatus)
	assertAmount(t, "500000", f.balance(t, user))
	assert.Equal(t, 5, f.stock(t, dress.ID))

	_, err = f.svc.Cancel(ctx, user, order.ID)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeStateConflict))

	wallet, err := f.wallets.GetByUserID(ctx, user)
	require.NoError(t, err)
	rec, err := f.wallets.Reconcile(ctx, wallet.ID)
	require.NoError(t, err)
	assert.True(t, rec.Consistent())
}

func TestCancelUnpaidOrderKeepsPaymentStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.shopper(t, "0")
	hat := f.product(t, "Hat", "50000", 2)
	order := f.walletOrder(t, user, hat, 2)

	cancelled, err := f.svc.Cancel(ctx, user, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusUnpaid, cancelled.PaymentStatus)
	assert.Equal(t, 2, f.stock(t, hat.ID))
}

func TestAdminUpdateStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.shopper(t, "500000")
	bag := f.product(t, "Bag", "100000", 10)

	cod, err := f.svc.Checkout(ctx, user, CheckoutInput{
		Items:           []CheckoutItem{{ProductID: bag.ID, Quantity: 1}},
		PaymentMethod:   enums.PaymentMethodCOD,
		ShippingAddress: "addr",
	})
	require.NoError(t, err)

	for _, next := range []enums.OrderStatus{enums.OrderStatusProcessing, enums.OrderStatusShipped} {
		updated, err := f.svc.UpdateStatus(ctx, cod.ID, next)
		require.NoError(t, err)
		assert.Equal(t, next, updated.Status)
		assert.Equal(t, enums.PaymentStatusUnpaid, updated.PaymentStatus)
	}
	delivered, err := f.svc.UpdateStatus(ctx, cod.ID, enums.OrderStatusDelivered)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusPaid, delivered.PaymentStatus)

	_, err = f.svc.UpdateStatus(ctx, cod.ID, enums.OrderStatusCancelled)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeStateConflict))
	_, err = f.svc.UpdateStatus(ctx, cod.ID, "lost")
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	wallet := f.walletOrder(t, user, bag, 1)
	for _, next := range []enums.OrderStatus{enums.OrderStatusPaid, enums.OrderStatusProcessing} {
		_, err = f.svc.UpdateStatus(ctx, wallet.ID, next)
		assert.Truef(t, pkgerrors.Is(err, pkgerrors.CodeStateConflict), "unpaid wallet order moved to %s", next)
	}
	unpaid, err := f.svc.GetAny(ctx, wallet.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPending, unpaid.Status)
	assert.Equal(t, enums.PaymentStatusUnpaid, unpaid.PaymentStatus)

	_, err = f.svc.PayWithWallet(ctx, user, wallet.ID)
	require.NoError(t, err)
	assertAmount(t, "370000", f.balance(t, user))
	cancelled, err := f.svc.UpdateStatus(ctx, wallet.ID, enums.OrderStatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusRefunded, cancelled.PaymentStatus)
	assertAmount(t, "500000", f.balance(t, user))
}

func TestAdminCancelProcessingOrderRefunds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.shopper(t, "500000")
	coat := f.product(t, "Coat", "200000", 3)

	order := f.walletOrder(t, user, coat, 1)
	_, err := f.svc.PayWithWallet(ctx, user, order.ID)
	require.NoError(t, err)
	assertAmount(t, "270000", f.balance(t, user))
	assert.Equal(t, 2, f.stock(t, coat.ID))

	processing, err := f.svc.UpdateStatus(ctx, order.ID, enums.OrderStatusProcessing)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusProcessing, processing.Status)

	_, err = f.svc.Cancel(ctx, user, order.ID)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeStateConflict), "shoppers cannot cancel once processing starts")

	cancelled, err := f.svc.UpdateStatus(ctx, order.ID, enums.OrderStatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCancelled, cancelled.Status)
	assert.Equal(t, enums.PaymentStatusRefunded, cancelled.PaymentStatus)
	assertAmount(t, "500000", f.balance(t, user))
	assert.Equal(t, 3, f.stock(t, coat.ID))

	cod, err := f.svc.Checkout(ctx, user, CheckoutInput{
		Items:           []CheckoutItem{{ProductID: coat.ID, Quantity: 1}},
		PaymentMethod:   enums.PaymentMethodCOD,
		ShippingAddress: "addr",
	})
	require.NoError(t, err)
	_, err = f.svc.UpdateStatus(ctx, cod.ID, enums.OrderStatusProcessing)
	require.NoError(t, err)
	_, err = f.svc.UpdateStatus(ctx, cod.ID, enums.OrderStatusShipped)
	require.NoError(t, err)
	_, err = f.svc.UpdateStatus(ctx, cod.ID, enums.OrderStatusCancelled)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeStateConflict), "shipped orders are past cancellation")
}

func TestExpireUnpaid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.shopper(t, "1000000")
	tee := f.product(t, "Tee", "100000", 10)

	stale := f.walletOrder(t, user, tee, 1)
	fresh := f.walletOrder(t, user, tee, 1)
	paid := f.walletOrder(t, user, tee, 1)
	_, err := f.svc.PayWithWallet(ctx, user, paid.ID)
	require.NoError(t, err)

	old := time.Now().UTC().Add(-48 * time.Hour)
	require.NoError(t, f.db.Model(&models.Order{}).Where("id IN ?", []uuid.UUID{stale.ID, paid.ID}).Update("created_at", old).Error)

	expired, err := f.svc.ExpireUnpaid(ctx, time.Now().UTC().Add(-24*time.Hour), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, expired)

	got, err := f.svc.Get(ctx, user, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCancelled, got.Status)
	got, err = f.svc.Get(ctx, user, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPending, got.Status)
	got, err = f.svc.Get(ctx, user, paid.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPaid, got.Status)
	assert.Equal(t, 8, f.stock(t, tee.ID))
}

func TestListings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.shopper(t, "0")
	bob := f.shopper(t, "0")
	tie := f.product(t, "Tie", "10000", 50)

	for i := 0; i < 3; i++ {
		f.walletOrder(t, alice, tie, 1)
	}
	bobs := f.walletOrder(t, bob, tie, 1)
	_, err := f.svc.Cancel(ctx, bob, bobs.ID)
	require.NoError(t, err)

	mine, err := f.svc.ListMine(ctx, alice, pagination.NewPage(1, 2))
	require.NoError(t, err)
	assert.Len(t, mine.Orders, 2)
	assert.Equal(t, int64(3), mine.Pagination.Total)
	assert.Equal(t, 2, mine.Pagination.TotalPages)

	all, err := f.svc.ListAll(ctx, ListFilter{}, pagination.NewPage(1, 10))
	require.NoError(t, err)
	assert.Len(t, all.Orders, 4)

	status := enums.OrderStatusCancelled
	cancelled, err := f.svc.ListAll(ctx, ListFilter{Status: &status}, pagination.NewPage(1, 10))
	require.NoError(t, err)
	require.Len(t, cancelled.Orders, 1)
	assert.Equal(t, bobs.ID, cancelled.Orders[0].ID)

	bad := enums.OrderStatus("lost")
	_, err = f.svc.ListAll(ctx, ListFilter{Status: &bad}, pagination.NewPage(1, 10))
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	got, err := f.svc.GetAny(ctx, bobs.ID)
	require.NoError(t, err)
	assert.Len(t, got.Items, 1)
}

func TestComposeAddress(t *testing.T) {
	assert.Equal(t, "raw", composeAddress(nil, " raw "))
	assert.Equal(t, "A - 09 - Street", composeAddress(&ShippingInfo{Name: "A", Phone: "09", Address: "Street"}, ""))
	assert.Equal(t, "fallback", composeAddress(&ShippingInfo{}, "fallback"))
}
