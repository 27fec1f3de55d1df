package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "storefront/docs"
	"storefront/pkg/catalog"
	"storefront/pkg/idempotency"
	"storefront/pkg/logger"
	"storefront/pkg/order"
	"storefront/pkg/store/memory"
)

type testEnvelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func setup(t *testing.T, baseRoute string) (http.Handler, *memory.Store) {
	t.Helper()
	store := memory.New()
	log := logger.New(io.Discard, logger.LevelError, "test", nil)
	h := NewRouter(Config{
		BaseRoute:   baseRoute,
		ServiceName: "test",
		Log:         log,
		Catalog:     catalog.NewService(store, log),
		Orders:      order.NewService(store, log),
		Idempotency: idempotency.NewMemoryStore(time.Minute),
	})
	return h, store
}

func do(t *testing.T, h http.Handler, method, target, body string, headers ...string) (*httptest.ResponseRecorder, testEnvelope) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	var env testEnvelope
	if strings.HasPrefix(rr.Header().Get("Content-Type"), "application/json") {
		_ = json.Unmarshal(rr.Body.Bytes(), &env)
	}
	return rr, env
}

func createProduct(t *testing.T, h http.Handler, name string, price string, qty int) string {
	t.Helper()
	body := `{"name":"` + name + `","price":` + price + `,"quantity":` + itoa(qty) + `}`
	rr, env := do(t, h, http.MethodPost, "/create", body)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var data struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	return data.ID
}

func itoa(n int) string {
	b, _ := json.Marshal(n)
	return string(b)
}

func TestHealthz(t *testing.T) {
	h, _ := setup(t, "")
	rr, _ := do(t, h, http.MethodGet, "/public/healthz", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `"OK"`, rr.Body.String())
	assert.NotEmpty(t, rr.Header().Get(requestIDHeader))
}

func TestBaseRoute(t *testing.T) {
	h, _ := setup(t, "/api/v1")
	rr, _ := do(t, h, http.MethodGet, "/api/v1/public/healthz", "")
	assert.Equal(t, http.StatusOK, rr.Code)

	rr, _ = do(t, h, http.MethodGet, "/public/healthz", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestSwaggerServed(t *testing.T) {
	h, _ := setup(t, "")
	rr, _ := do(t, h, http.MethodGet, "/docs/doc.json", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "/order")
}

func TestCreateProduct(t *testing.T) {
	h, _ := setup(t, "")

	rr, env := do(t, h, http.MethodPost, "/create", `{"name":"Widget","price":9.5,"quantity":3}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	assert.True(t, env.Success)
	assert.Equal(t, "document inserted successfully", env.Message)

	rr, env = do(t, h, http.MethodPost, "/create", `{"name":"widget","price":1,"quantity":1}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.False(t, env.Success)
	assert.Equal(t, "product with same name already exists", env.Message)
}

func TestCreateProductBadRequests(t *testing.T) {
	h, _ := setup(t, "")
	for _, body := range []string{
		`{"name":"a","price":1`,
		`{"name":"a","quantity":1}`,
		`{"name":"a","price":1}`,
		`{"name":"","price":1,"quantity":1}`,
		`{"name":"a","price":-1,"quantity":1}`,
	} {
		rr, env := do(t, h, http.MethodPost, "/create", body)
		assert.Equal(t, http.StatusBadRequest, rr.Code, body)
		assert.False(t, env.Success, body)
	}
}

func TestListProducts(t *testing.T) {
	h, _ := setup(t, "")
	for i := 0; i < 12; i++ {
		createProduct(t, h, "item"+itoa(10+i), itoa(8+2*i), 1) // prices 8..30
	}

	rr, env := do(t, h, http.MethodGet, "/products?min_price=10&max_price=20&limit=5&page_number=2", "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.True(t, env.Success)

	var page catalog.Page
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.Equal(t, 6, page.Page.Total)
	assert.Equal(t, 5, page.Page.Limit)
	require.NotNil(t, page.Page.PrevOffset)
	assert.Equal(t, 5, *page.Page.PrevOffset)
	assert.Nil(t, page.Page.NextOffset)
	assert.Len(t, page.Data, 1)

	rr, env = do(t, h, http.MethodGet, "/products?name=nothing", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"data":[],"page":{"limit":10,"nextOffset":null,"prevOffset":null,"total":0}}`, string(env.Data))
}

func TestListProductsBadQuery(t *testing.T) {
	h, _ := setup(t, "")
	for _, q := range []string{
		"limit=ten",
		"offset=-1",
		"min_price=cheap",
		"min_price=30&max_price=20",
		"page_number=0",
		"page_number=922337203685477580&limit=10",
	} {
		rr, env := do(t, h, http.MethodGet, "/products?"+q, "")
		assert.Equal(t, http.StatusBadRequest, rr.Code, q)
		assert.False(t, env.Success, q)
	}
}

func orderBody(items string) string {
	return `{"items":` + items + `,"city":"Oslo","country":"NO","zipcode":"0150"}`
}

func TestPlaceOrder(t *testing.T) {
	h, store := setup(t, "")
	a := createProduct(t, h, "anvil", "12.25", 5)
	b := createProduct(t, h, "bolt", "0.5", 10)

	body := orderBody(`[{"product_id":"` + a + `","bought_quantity":2},{"product_id":"` + b + `","bought_quantity":3}]`)
	rr, env := do(t, h, http.MethodPost, "/order", body)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Equal(t, "order created successfully", env.Message)

	var receipt struct {
		OrderID string          `json:"order_id"`
		Total   decimal.Decimal `json:"total_bill_amount"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &receipt))
	assert.True(t, receipt.Total.Equal(decimal.RequireFromString("26")), receipt.Total.String())
	assert.Contains(t, string(env.Data), `"total_bill_amount":26`, "amount is a JSON number")

	rr, env = do(t, h, http.MethodGet, "/orders/"+receipt.OrderID, "")
	require.Equal(t, http.StatusOK, rr.Code)
	var saved order.Order
	require.NoError(t, json.Unmarshal(env.Data, &saved))
	assert.Equal(t, "Oslo", saved.Address.City)
	assert.Len(t, saved.Items, 2)

	for _, p := range store.Products() {
		switch p.ID {
		case a:
			assert.Equal(t, 3, p.Quantity)
		case b:
			assert.Equal(t, 7, p.Quantity)
		}
	}
}

func TestPlaceOrderFailures(t *testing.T) {
	h, store := setup(t, "")
	a := createProduct(t, h, "anvil", "1", 1)

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"malformed", `{"items":`, http.StatusBadRequest},
		{"no items", orderBody(`[]`), http.StatusBadRequest},
		{"zero quantity", orderBody(`[{"product_id":"` + a + `","bought_quantity":0}]`), http.StatusBadRequest},
		{"missing address", `{"items":[{"product_id":"` + a + `","bought_quantity":1}]}`, http.StatusBadRequest},
		{"unknown product", orderBody(`[{"product_id":"nope","bought_quantity":1}]`), http.StatusNotFound},
		{"insufficient stock", orderBody(`[{"product_id":"` + a + `","bought_quantity":2}]`), http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr, env := do(t, h, http.MethodPost, "/order", tt.body)
			assert.Equal(t, tt.status, rr.Code, rr.Body.String())
			assert.False(t, env.Success)
			assert.NotEmpty(t, env.Message)
		})
	}
	assert.Empty(t, store.Orders())

	rr, _ := do(t, h, http.MethodGet, "/orders/unknown", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestPlaceOrderIdempotencyKey(t *testing.T) {
	h, store := setup(t, "")
	a := createProduct(t, h, "anvil", "4", 5)
	body := orderBody(`[{"product_id":"` + a + `","bought_quantity":2}]`)

	first, _ := do(t, h, http.MethodPost, "/order", body, idempotency.Header, "key-1")
	require.Equal(t, http.StatusCreated, first.Code)

	second, _ := do(t, h, http.MethodPost, "/order", body, idempotency.Header, "key-1")
	require.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
	assert.Equal(t, first.Body.String(), second.Body.String())

	assert.Len(t, store.Orders(), 1)
	assert.Equal(t, 3, store.Products()[0].Quantity)

	third, _ := do(t, h, http.MethodPost, "/order", body, idempotency.Header, "key-2")
	require.Equal(t, http.StatusCreated, third.Code)
	assert.Len(t, store.Orders(), 2)
}

func TestPlaceOrderIdempotencyReleasedOnFailure(t *testing.T) {
	h, store := setup(t, "")
	a := createProduct(t, h, "anvil", "4", 1)

	tooMany := orderBody(`[{"product_id":"` + a + `","bought_quantity":2}]`)
	rr, _ := do(t, h, http.MethodPost, "/order", tooMany, idempotency.Header, "retry-me")
	require.Equal(t, http.StatusConflict, rr.Code)

	fixed := orderBody(`[{"product_id":"` + a + `","bought_quantity":1}]`)
	rr, _ = do(t, h, http.MethodPost, "/order", fixed, idempotency.Header, "retry-me")
	require.Equal(t, http.StatusCreated, rr.Code)
	assert.Len(t, store.Orders(), 1)
}

func TestPlaceOrderIdempotencyKeyBoundToBody(t *testing.T) {
	h, store := setup(t, "")
	a := createProduct(t, h, "anvil", "4", 5)

	first := orderBody(`[{"product_id":"` + a + `","bought_quantity":1}]`)
	rr, _ := do(t, h, http.MethodPost, "/order", first, idempotency.Header, "shared")
	require.Equal(t, http.StatusCreated, rr.Code)

	other := orderBody(`[{"product_id":"` + a + `","bought_quantity":3}]`)
	rr, env := do(t, h, http.MethodPost, "/order", other, idempotency.Header, "shared")
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.False(t, env.Success)
	assert.Empty(t, rr.Header().Get("Idempotent-Replayed"))

	assert.Len(t, store.Orders(), 1)
	assert.Equal(t, 4, store.Products()[0].Quantity)
}

type failingIdem struct{ idempotency.Store }

func (failingIdem) Claim(context.Context, string, string) (idempotency.Response, bool, error) {
	return idempotency.Response{}, false, idempotency.ErrInProgress
}

func TestIdempotencyInProgressIsConflict(t *testing.T) {
	store := memory.New()
	log := logger.New(io.Discard, logger.LevelError, "test", nil)
	h := NewRouter(Config{
		Log:         log,
		Catalog:     catalog.NewService(store, log),
		Orders:      order.NewService(store, log),
		Idempotency: failingIdem{},
	})

	req := httptest.NewRequest(http.MethodPost, "/order", bytes.NewBufferString(orderBody(`[]`)))
	req.Header.Set(idempotency.Header, "busy")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusConflict, rr.Code)
}
