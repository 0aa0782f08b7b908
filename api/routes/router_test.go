package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/fashionstore-backend/internal/auth"
	"github.com/angelmondragon/fashionstore-backend/internal/cart"
	"github.com/angelmondragon/fashionstore-backend/internal/categories"
	"github.com/angelmondragon/fashionstore-backend/internal/orders"
	"github.com/angelmondragon/fashionstore-backend/internal/products"
	"github.com/angelmondragon/fashionstore-backend/internal/users"
	"github.com/angelmondragon/fashionstore-backend/internal/wallets"
	"github.com/angelmondragon/fashionstore-backend/pkg/auth/session"
	"github.com/angelmondragon/fashionstore-backend/pkg/config"
	"github.com/angelmondragon/fashionstore-backend/pkg/db/dbtest"
	"github.com/angelmondragon/fashionstore-backend/pkg/db/models"
	"github.com/angelmondragon/fashionstore-backend/pkg/enums"
	"github.com/angelmondragon/fashionstore-backend/pkg/logger"
	"github.com/angelmondragon/fashionstore-backend/pkg/metrics"
	"github.com/angelmondragon/fashionstore-backend/pkg/security"
)

var testPasswords = config.PasswordConfig{
	ArgonMemoryKB:    64,
	ArgonTime:        1,
	ArgonParallelism: 1,
	ArgonSaltLen:     16,
	ArgonKeyLen:      32,
}

type memorySessions struct {
	mu       sync.Mutex
	sessions map[string]memorySession
}

type memorySession struct {
	userID uuid.UUID
	token  string
}

func newMemorySessions() *memorySessions {
	return &memorySessions{sessions: map[string]memorySession{}}
}

func (m *memorySessions) Generate(_ context.Context, accessID string, userID uuid.UUID) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	token := "refresh-" + uuid.NewString()
	m.sessions[accessID] = memorySession{userID: userID, token: token}
	return token, nil
}

func (m *memorySessions) Rotate(_ context.Context, oldAccessID, provided string) (session.Rotation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.sessions[oldAccessID]
	if !ok || rec.token != provided {
		return session.Rotation{}, session.ErrInvalidRefreshToken
	}
	delete(m.sessions, oldAccessID)
	next := session.NewAccessID()
	token := "refresh-" + uuid.NewString()
	m.sessions[next] = memorySession{userID: rec.userID, token: token}
	return session.Rotation{AccessID: next, RefreshToken: token, UserID: rec.userID}, nil
}

func (m *memorySessions) Revoke(_ context.Context, accessID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, accessID)
	return nil
}

func (m *memorySessions) HasSession(_ context.Context, accessID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[accessID]
	return ok, nil
}

type storefront struct {
	handler http.Handler
	admin   *models.User
}

func newStorefront(t *testing.T) storefront {
	t.Helper()
	conn, client := dbtest.OpenClient(t)
	logg := logger.New(logger.Options{ServiceName: "router-test", Output: io.Discard})
	cfg := &config.Config{
		App: config.AppConfig{Env: "test", CORSOrigins: "http://localhost:3000"},
		JWT: config.JWTConfig{Secret: "router-secret", Issuer: "fashionstore", ExpirationMinutes: 15},
	}
	sessions := newMemorySessions()
	userRepo := users.NewRepository(conn)

	walletSvc, err := wallets.NewService(wallets.NewRepository(conn), client, logg, nil)
	require.NoError(t, err)
	authSvc, err := auth.NewService(auth.ServiceParams{
		UserRepo:       userRepo,
		Wallets:        walletSvc,
		DB:             client,
		SessionManager: sessions,
		JWTConfig:      cfg.JWT,
		PasswordConfig: testPasswords,
		Logger:         logg,
	})
	require.NoError(t, err)
	categorySvc, err := categories.NewService(categories.NewRepository(conn), client, logg)
	require.NoError(t, err)
	productSvc, err := products.NewService(products.NewRepository(conn), categorySvc, logg)
	require.NoError(t, err)
	cartSvc, err := cart.NewService(cart.NewRepository(conn), products.NewRepository(conn), client, logg)
	require.NoError(t, err)
	orderSvc, err := orders.NewService(orders.ServiceParams{
		Repo:        orders.NewRepository(conn),
		Products:    products.NewRepository(conn),
		Cart:        cart.NewRepository(conn),
		Wallets:     walletSvc,
		DB:          client,
		ShippingFee: decimal.NewFromInt(30000),
		Logger:      logg,
	})
	require.NoError(t, err)

	hash, err := security.HashPassword("admin-pass", testPasswords)
	require.NoError(t, err)
	admin := &models.User{
		Name:         "Store Admin",
		Email:        "admin@fashionstore.test",
		PasswordHash: hash,
		Role:         enums.UserRoleAdmin,
		Status:       enums.UserStatusActive,
	}
	require.NoError(t, conn.Create(admin).Error)
	_, err = walletSvc.CreateForUser(context.Background(), conn, admin.ID)
	require.NoError(t, err)

	handler := NewRouter(cfg, logg, client, nil, sessions, userRepo, metrics.NewRegistry(),
		authSvc, categorySvc, productSvc, cartSvc, orderSvc, walletSvc)
	return storefront{handler: handler, admin: admin}
}

func (s storefront) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	envelope := struct {
		Data json.RawMessage `json:"data"`
	}{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.NoError(t, json.Unmarshal(envelope.Data, out))
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	envelope := struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope.Error.Code
}

func TestHealthEndpoints(t *testing.T) {
	s := newStorefront(t)

	live := s.do(t, http.MethodGet, "/health/live", "", nil)
	require.Equal(t, http.StatusOK, live.Code)
	assert.Equal(t, "test", live.Header().Get("X-Fashionstore-Env"))

	ready := s.do(t, http.MethodGet, "/health/ready", "", nil)
	require.Equal(t, http.StatusOK, ready.Code, ready.Body.String())
	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	decodeData(t, ready, &body)
	assert.Equal(t, "ready", body.Status)
	assert.Equal(t, "ok", body.Checks["database"])
	_, hasRedis := body.Checks["redis"]
	assert.False(t, hasRedis)
}

func TestProtectedRoutesRequireAuthentication(t *testing.T) {
	s := newStorefront(t)

	rec := s.do(t, http.MethodGet, "/api/v1/wallet", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/admin/v1/wallets", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestShopperCannotReachAdminRoutes(t *testing.T) {
	s := newStorefront(t)

	var registered auth.TokenResponse
	rec := s.do(t, http.MethodPost, "/api/v1/auth/register", "", auth.RegisterRequest{
		Name: "Lan", Email: "lan@example.com", Password: "secret-pass",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	decodeData(t, rec, &registered)

	rec = s.do(t, http.MethodPost, "/api/admin/v1/categories", registered.AccessToken, map[string]string{"name": "Women"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "Admin only")
}

func TestCheckoutAndWalletPaymentFlow(t *testing.T) {
	s := newStorefront(t)

	var shopper auth.TokenResponse
	rec := s.do(t, http.MethodPost, "/api/v1/auth/register", "", auth.RegisterRequest{
		Name: "Minh Anh", Email: "minh@example.com", Password: "secret-pass",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	decodeData(t, rec, &shopper)

	var me users.UserDTO
	rec = s.do(t, http.MethodGet, "/api/v1/auth/me", shopper.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decodeData(t, rec, &me)
	assert.Equal(t, "minh@example.com", me.Email)

	var admin auth.TokenResponse
	rec = s.do(t, http.MethodPost, "/api/v1/auth/login", "", auth.LoginRequest{Email: s.admin.Email, Password: "admin-pass"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decodeData(t, rec, &admin)

	var category categories.CategoryDTO
	rec = s.do(t, http.MethodPost, "/api/admin/v1/categories", admin.AccessToken, map[string]string{"name": "Women"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	decodeData(t, rec, &category)
	assert.Equal(t, 1, category.Level)

	var product products.ProductDTO
	rec = s.do(t, http.MethodPost, "/api/admin/v1/products", admin.AccessToken, map[string]any{
		"name":        "Linen shirt",
		"price":       "250000",
		"stock":       5,
		"category_id": category.ID,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	decodeData(t, rec, &product)

	rec = s.do(t, http.MethodGet, "/api/v1/products/"+product.ID.String(), "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var basket cart.CartDTO
	rec = s.do(t, http.MethodPost, "/api/v1/cart", shopper.AccessToken, cart.AddInput{ProductID: product.ID, Quantity: 2, Size: "M"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	decodeData(t, rec, &basket)
	require.Len(t, basket.Items, 1)
	assert.True(t, decimal.NewFromInt(500000).Equal(basket.Subtotal))

	var order orders.OrderDTO
	rec = s.do(t, http.MethodPost, "/api/v1/orders", shopper.AccessToken, map[string]any{
		"payment_method":   "wallet",
		"shipping_address": "12 Le Loi, District 1, Ho Chi Minh City",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	decodeData(t, rec, &order)
	assert.Equal(t, enums.OrderStatusPending, order.Status)
	assert.True(t, decimal.NewFromInt(530000).Equal(order.Total))

	rec = s.do(t, http.MethodPost, "/api/v1/wallet/pay/"+order.ID.String(), shopper.AccessToken, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
	assert.Equal(t, "INSUFFICIENT_FUNDS", errorCode(t, rec))

	rec = s.do(t, http.MethodPost, "/api/admin/v1/wallets/deposit", admin.AccessToken, map[string]any{
		"user_id":     me.ID,
		"amount":      "1000000",
		"description": "Top up",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var paid orders.PaymentResult
	rec = s.do(t, http.MethodPost, "/api/v1/wallet/pay/"+order.ID.String(), shopper.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decodeData(t, rec, &paid)
	require.NotNil(t, paid.Order)
	assert.Equal(t, enums.OrderStatusPaid, paid.Order.Status)
	assert.Equal(t, enums.PaymentStatusPaid, paid.Order.PaymentStatus)
	assert.True(t, decimal.NewFromInt(470000).Equal(paid.Wallet.Balance))

	var wallet wallets.WalletDTO
	rec = s.do(t, http.MethodGet, "/api/v1/wallet", shopper.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decodeData(t, rec, &wallet)
	assert.True(t, decimal.NewFromInt(470000).Equal(wallet.Balance))

	var mine orders.OrderPage
	rec = s.do(t, http.MethodGet, "/api/v1/orders", shopper.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decodeData(t, rec, &mine)
	require.Len(t, mine.Orders, 1)
	assert.Equal(t, order.ID, mine.Orders[0].ID)

	rec = s.do(t, http.MethodGet, "/api/v1/cart", shopper.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeData(t, rec, &basket)
	assert.Empty(t, basket.Items)

	rec = s.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "fashionstore_http_requests_total"))
}

func TestLogoutRevokesSession(t *testing.T) {
	s := newStorefront(t)

	var tokens auth.TokenResponse
	rec := s.do(t, http.MethodPost, "/api/v1/auth/login", "", auth.LoginRequest{Email: s.admin.Email, Password: "admin-pass"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decodeData(t, rec, &tokens)

	rec = s.do(t, http.MethodGet, "/api/v1/auth/me", tokens.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/auth/logout", tokens.AccessToken, nil)
	require.Less(t, rec.Code, 300, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/api/v1/auth/me", tokens.AccessToken, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
