// Package api exposes the catalog and order services over HTTP.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"

	"storefront/pkg/catalog"
	"storefront/pkg/idempotency"
	"storefront/pkg/logger"
	"storefront/pkg/order"
	"storefront/pkg/otel"
)

func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

// Config carries the dependencies of the HTTP layer.
type Config struct {
	BaseRoute   string
	ServiceName string
	Log         *logger.Logger
	Tracer      trace.Tracer
	Catalog     *catalog.Service
	Orders      *order.Service
	// Idempotency is optional; without it the Idempotency-Key header is
	// ignored.
	Idempotency idempotency.Store
}

type handlers struct {
	log     *logger.Logger
	tracer  trace.Tracer
	catalog *catalog.Service
	orders  *order.Service
	idem    idempotency.Store
}

// NewRouter registers the routes under cfg.BaseRoute.
func NewRouter(cfg Config) http.Handler {
	h := &handlers{
		log:     cfg.Log,
		tracer:  cfg.Tracer,
		catalog: cfg.Catalog,
		orders:  cfg.Orders,
		idem:    cfg.Idempotency,
	}

	r := mux.NewRouter()
	r.Use(requestID, h.traceMiddleware, h.logging)

	base := r
	if cfg.BaseRoute != "" {
		base = r.PathPrefix(cfg.BaseRoute).Subrouter()
	}
	base.HandleFunc("/public/healthz", h.healthHandler).Methods(http.MethodGet)
	base.HandleFunc("/create", h.createProductHandler).Methods(http.MethodPost)
	base.HandleFunc("/products", h.listProductsHandler).Methods(http.MethodGet)
	base.Handle("/order", h.idempotent(http.HandlerFunc(h.placeOrderHandler))).Methods(http.MethodPost)
	base.HandleFunc("/orders/{id}", h.getOrderHandler).Methods(http.MethodGet)
	base.PathPrefix("/docs/").Handler(httpSwagger.WrapHandler)

	return otelhttp.NewHandler(r, cfg.ServiceName)
}

// healthHandler reports liveness.
// @Summary Health check
// @Produce json
// @Success 200 {string} string "OK"
// @Router /public/healthz [get]
func (h *handlers) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, "OK")
}

// createProductRequest is the body of POST /create.
type createProductRequest struct {
	Name     string           `json:"name"`
	Price    *decimal.Decimal `json:"price"`
	Quantity *int             `json:"quantity"`
}

// createProductHandler creates a product.
// @Summary Create product
// @Accept json
// @Produce json
// @Param product body createProductRequest true "Product"
// @Success 201 {object} envelope
// @Failure 400 {object} envelope
// @Failure 500 {object} envelope
// @Router /create [post]
func (h *handlers) createProductHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "createProductHandler")
	defer span.End()

	var req createProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	switch {
	case req.Price == nil:
		respondError(w, fmt.Errorf("%w: price is required", errBadRequest))
		return
	case req.Quantity == nil:
		respondError(w, fmt.Errorf("%w: quantity is required", errBadRequest))
		return
	}

	p, err := h.catalog.Create(ctx, catalog.CreateRequest{Name: req.Name, Price: *req.Price, Quantity: *req.Quantity})
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusCreated, "document inserted successfully", map[string]string{"id": p.ID})
}

// listProductsHandler lists products.
// @Summary List products
// @Produce json
// @Param id query string false "Product ID"
// @Param name query string false "Exact name, case-insensitive"
// @Param min_price query number false "Minimum price, inclusive"
// @Param max_price query number false "Maximum price, inclusive"
// @Param offset query int false "Explicit offset"
// @Param page_number query int false "1-based page number"
// @Param limit query int false "Page size"
// @Success 200 {object} envelope{data=catalog.Page}
// @Failure 400 {object} envelope
// @Failure 500 {object} envelope
// @Router /products [get]
func (h *handlers) listProductsHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "listProductsHandler")
	defer span.End()

	f, err := parseFilter(r.URL.Query())
	if err != nil {
		respondError(w, err)
		return
	}
	page, err := h.catalog.List(ctx, f)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, "documents fetched successfully", page)
}

func parseFilter(q url.Values) (catalog.Filter, error) {
	f := catalog.Filter{ID: q.Get("id"), Name: q.Get("name")}

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return catalog.Filter{}, fmt.Errorf("%w: limit must be an integer", catalog.ErrInvalidFilter)
		}
		f.Limit = n
	}
	optional := []struct {
		key string
		dst **int
	}{
		{"page_number", &f.PageNumber},
		{"offset", &f.Offset},
	}
	for _, p := range optional {
		if v := q.Get(p.key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return catalog.Filter{}, fmt.Errorf("%w: %s must be an integer", catalog.ErrInvalidFilter, p.key)
			}
			*p.dst = &n
		}
	}

	prices := []struct {
		key string
		dst *decimal.NullDecimal
	}{
		{"min_price", &f.MinPrice},
		{"max_price", &f.MaxPrice},
	}
	for _, p := range prices {
		if v := q.Get(p.key); v != "" {
			d, err := decimal.NewFromString(v)
			if err != nil {
				return catalog.Filter{}, fmt.Errorf("%w: %s must be a number", catalog.ErrInvalidFilter, p.key)
			}
			*p.dst = decimal.NewNullDecimal(d)
		}
	}
	return f, nil
}

// placeOrderRequest is the body of POST /order.
type placeOrderRequest struct {
	Items   []order.Item `json:"items"`
	City    string       `json:"city"`
	Country string       `json:"country"`
	Zipcode string       `json:"zipcode"`
}

// placeOrderHandler places an order and decrements stock.
// @Summary Place order
// @Accept json
// @Produce json
// @Param Idempotency-Key header string false "Replays the first response for a repeated key"
// @Param order body placeOrderRequest true "Order"
// @Success 201 {object} envelope{data=order.Receipt}
// @Failure 400 {object} envelope
// @Failure 404 {object} envelope
// @Failure 409 {object} envelope
// @Failure 422 {object} envelope
// @Failure 500 {object} envelope
// @Router /order [post]
func (h *handlers) placeOrderHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "placeOrderHandler")
	defer span.End()

	var req placeOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}

	receipt, err := h.orders.Place(ctx, order.PlaceRequest{
		Items:   req.Items,
		Address: order.Address{City: req.City, Country: req.Country, Zipcode: req.Zipcode},
	})
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusCreated, "order created successfully", receipt)
}

// getOrderHandler retrieves an order by ID.
// @Summary Get order
// @Produce json
// @Param id path string true "Order ID"
// @Success 200 {object} envelope{data=order.Order}
// @Failure 404 {object} envelope
// @Router /orders/{id} [get]
func (h *handlers) getOrderHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "getOrderHandler")
	defer span.End()

	o, err := h.orders.Get(ctx, mux.Vars(r)["id"])
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, "order fetched successfully", o)
}
