package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"storefront/internal/auth"
	"storefront/internal/events"
	"storefront/internal/models"
	"storefront/internal/remote"
	"storefront/internal/service"
	"storefront/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type testServer struct {
	router *gin.Engine
}

func setup(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	kv := store.NewMemoryStore()
	bus := events.NewBus()
	policy := service.DefaultPolicy()

	catalog := service.NewCatalogService(kv, nil, remote.Noop{}, bus, policy)
	inventory := service.NewInventoryService(catalog, kv, bus, policy)
	carts := service.NewCartService(catalog, kv, policy)
	orders := service.NewOrderService(kv, remote.Noop{}, inventory, carts, bus, policy)

	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	sessions := auth.NewSessionManager(kv, auth.NewPasswordProvider("admin@example.com", string(hash)), 24*time.Hour)

	router := gin.New()
	NewHandler(Services{
		Catalog:   catalog,
		Carts:     carts,
		Orders:    orders,
		Inventory: inventory,
		Sessions:  sessions,
	}).SetupRoutes(router, nil)

	return &testServer{router: router}
}

func doJSON(t *testing.T, s *testServer, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func login(t *testing.T, s *testServer) map[string]string {
	t.Helper()
	w := doJSON(t, s, http.MethodPost, "/api/v1/admin/login", map[string]any{
		"email": "admin@example.com", "password": "s3cret",
	}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	session := decode[models.AdminSession](t, w)
	return map[string]string{"Authorization": "Bearer " + session.Token}
}

func createProduct(t *testing.T, s *testServer, admin map[string]string, price float64, stock int) models.Product {
	t.Helper()
	w := doJSON(t, s, http.MethodPost, "/api/v1/admin/products", map[string]any{
		"name": "Monitor", "category": "electronics", "retail_price": price, "stock": stock,
	}, admin)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[models.Product](t, w)
}

func TestHealth(t *testing.T) {
	s := setup(t)

	w := doJSON(t, s, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = doJSON(t, s, http.MethodGet, "/ready", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAdminRoutesRequireSession(t *testing.T) {
	s := setup(t)

	w := doJSON(t, s, http.MethodGet, "/api/v1/admin/orders", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(t, s, http.MethodGet, "/api/v1/admin/orders", nil, map[string]string{"Authorization": "Bearer nope"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(t, s, http.MethodPost, "/api/v1/admin/login", map[string]any{
		"email": "admin@example.com", "password": "wrong",
	}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	admin := login(t, s)
	w = doJSON(t, s, http.MethodGet, "/api/v1/admin/orders", nil, admin)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, s, http.MethodPost, "/api/v1/admin/logout", nil, admin)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = doJSON(t, s, http.MethodGet, "/api/v1/admin/orders", nil, admin)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCheckoutAndShipFlow(t *testing.T) {
	s := setup(t)
	admin := login(t, s)
	product := createProduct(t, s, admin, 600, 5)

	w := doJSON(t, s, http.MethodPost, "/api/v1/cart/items", map[string]any{
		"product_id": product.ID, "quantity": 1,
	}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	cart := map[string]string{cartHeader: w.Header().Get(cartHeader)}
	require.NotEmpty(t, cart[cartHeader])

	summary := decode[service.CartSummary](t, w)
	assert.Equal(t, 650.0, summary.Totals.TotalAmount)

	w = doJSON(t, s, http.MethodPost, "/api/v1/checkout", map[string]any{
		"name": "Grace Hopper", "email": "grace@example.com", "phone": "+1 555 0100", "address": "1 Navy Way",
	}, cart)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	order := decode[models.Order](t, w)
	assert.Equal(t, 600.0, order.Subtotal)
	assert.Equal(t, 50.0, order.ShippingCost)
	assert.Equal(t, 650.0, order.TotalAmount)
	assert.Equal(t, models.OrderStatusPending, order.Status)

	w = doJSON(t, s, http.MethodGet, "/api/v1/cart", nil, cart)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[service.CartSummary](t, w).Cart.Items)

	w = doJSON(t, s, http.MethodPost, "/api/v1/admin/orders/"+order.ID+"/ship", nil, admin)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, models.OrderStatusShipped, decode[models.Order](t, w).Status)

	w = doJSON(t, s, http.MethodGet, "/api/v1/products/"+product.ID, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 4, decode[models.Product](t, w).Stock)

	w = doJSON(t, s, http.MethodPatch, "/api/v1/admin/orders/"+order.ID+"/status", map[string]any{
		"status": "pending",
	}, admin)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(t, s, http.MethodGet, "/api/v1/admin/inventory/transactions?limit=10", nil, admin)
	require.Equal(t, http.StatusOK, w.Code)
	txns := decode[struct {
		Transactions []models.InventoryTransaction `json:"transactions"`
	}](t, w)
	require.Len(t, txns.Transactions, 1)
	assert.Equal(t, "admin@example.com", txns.Transactions[0].PerformedBy)
	assert.Equal(t, order.ID, txns.Transactions[0].ReferenceID)

	w = doJSON(t, s, http.MethodGet, "/api/v1/orders/"+order.ID+"?email=Grace@Example.com", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, order.ID, decode[models.Order](t, w).ID)
}

func TestOrderLookupRequiresCheckoutEmail(t *testing.T) {
	s := setup(t)
	admin := login(t, s)
	product := createProduct(t, s, admin, 20, 5)

	w := doJSON(t, s, http.MethodPost, "/api/v1/cart/items", map[string]any{
		"product_id": product.ID, "quantity": 1,
	}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	cart := map[string]string{cartHeader: w.Header().Get(cartHeader)}

	w = doJSON(t, s, http.MethodPost, "/api/v1/checkout", map[string]any{
		"name": "Ada Lovelace", "email": "ada@example.com", "phone": "+44 20 7946 0000", "address": "12 Analytical St",
	}, cart)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	order := decode[models.Order](t, w)

	w = doJSON(t, s, http.MethodGet, "/api/v1/orders/"+order.ID, nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.NotContains(t, w.Body.String(), "ada@example.com")

	w = doJSON(t, s, http.MethodGet, "/api/v1/orders/"+order.ID+"?email=eve@example.com", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.NotContains(t, w.Body.String(), "12 Analytical St")

	w = doJSON(t, s, http.MethodGet, "/api/v1/orders/"+order.ID+"?email=ada@example.com", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "12 Analytical St", decode[models.Order](t, w).ShippingAddress)
}

func TestErrorMapping(t *testing.T) {
	s := setup(t)
	admin := login(t, s)
	product := createProduct(t, s, admin, 10, 1)

	w := doJSON(t, s, http.MethodPost, "/api/v1/cart/items", map[string]any{
		"product_id": product.ID, "quantity": 2,
	}, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	body := decode[map[string]any](t, w)
	assert.Equal(t, float64(1), body["available"])

	w = doJSON(t, s, http.MethodPost, "/api/v1/cart/items", map[string]any{
		"product_id": "missing", "quantity": 1,
	}, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, s, http.MethodPost, "/api/v1/cart/items", map[string]any{"quantity": 1}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, s, http.MethodPost, "/api/v1/checkout", map[string]any{
		"name": "A", "email": "a@example.com", "phone": "1234567", "address": "x",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code, "empty cart")

	w = doJSON(t, s, http.MethodPut, "/api/v1/admin/products/"+product.ID+"/discount", map[string]any{
		"discount_percent": 150,
	}, admin)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, s, http.MethodPost, "/api/v1/admin/products/"+product.ID+"/stock", map[string]any{
		"quantity": -5, "reason": "damage",
	}, admin)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(t, s, http.MethodPost, "/api/v1/admin/products/"+product.ID+"/hard-delete", map[string]any{
		"confirmation": "yes",
	}, admin)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(t, s, http.MethodPost, "/api/v1/admin/products/"+product.ID+"/hard-delete", map[string]any{
		"confirmation": "DELETE PERMANENTLY",
	}, admin)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(t, s, http.MethodGet, "/api/v1/products/"+product.ID, nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, s, http.MethodGet, "/api/v1/admin/orders?status=lost", nil, admin)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdminProductManagement(t *testing.T) {
	s := setup(t)
	admin := login(t, s)
	product := createProduct(t, s, admin, 200, 3)

	w := doJSON(t, s, http.MethodPut, "/api/v1/admin/products/"+product.ID+"/discount", map[string]any{
		"discount_percent": 25,
	}, admin)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 150.0, decode[models.Product](t, w).CurrentPrice)

	w = doJSON(t, s, http.MethodPost, "/api/v1/admin/products/"+product.ID+"/stock", map[string]any{
		"quantity": 7, "reason": "restock", "notes": "weekly delivery",
	}, admin)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "restock", decode[models.InventoryTransaction](t, w).Type)

	w = doJSON(t, s, http.MethodDelete, "/api/v1/admin/products/"+product.ID, nil, admin)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, s, http.MethodGet, "/api/v1/products", nil, nil)
	assert.Equal(t, float64(0), decode[map[string]any](t, w)["count"])
	w = doJSON(t, s, http.MethodGet, "/api/v1/admin/products", nil, admin)
	assert.Equal(t, float64(1), decode[map[string]any](t, w)["count"])

	w = doJSON(t, s, http.MethodGet, "/api/v1/admin/inventory/report", nil, admin)
	require.Equal(t, http.StatusOK, w.Code)
	report := decode[models.InventoryReport](t, w)
	assert.Equal(t, 0, report.Products)
}
