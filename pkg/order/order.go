package order

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"storefront/pkg/catalog"
)

// Item is one requested line of an order.
type Item struct {
	ProductID      string `json:"product_id"`
	BoughtQuantity int    `json:"bought_quantity"`
}

// Address is where an order ships to.
type Address struct {
	City    string `json:"city"`
	Country string `json:"country"`
	Zipcode string `json:"zipcode"`
}

// Order represents a placed customer order. Items is the request as submitted.
type Order struct {
	ID          string          `json:"id"`
	Items       []Item          `json:"items"`
	CreatedOn   time.Time       `json:"created_on"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Address     Address         `json:"user_address"`
}

// PlaceRequest is a validated-on-entry order submission.
type PlaceRequest struct {
	Items   []Item
	Address Address
}

// Receipt is returned for a successfully placed order.
type Receipt struct {
	OrderID     string          `json:"order_id"`
	TotalAmount decimal.Decimal `json:"total_bill_amount"`
}

// Repository defines the storage operations order placement relies on.
type Repository interface {
	// ProductsByIDs returns the products that exist among ids. Unknown ids
	// are omitted.
	ProductsByIDs(ctx context.Context, ids []string) ([]catalog.Product, error)
	// InTx runs fn in a single store transaction. The transaction commits
	// only when fn returns nil.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	// Get returns ErrNotFound for unknown ids.
	Get(ctx context.Context, id string) (Order, error)
}

// Tx is the set of writes performed while placing an order.
type Tx interface {
	InsertOrder(ctx context.Context, o Order) error
	// DecrementStock subtracts quantity from the product's stock only if the
	// current stock covers it, and reports whether it did.
	DecrementStock(ctx context.Context, productID string, quantity int) (bool, error)
}

// Publisher is notified about committed orders.
type Publisher interface {
	OrderPlaced(ctx context.Context, o Order) error
}

var (
	// ErrNotFound indicates the requested order does not exist.
	ErrNotFound = errors.New("order not found")
	// ErrInvalidOrder indicates a malformed order request.
	ErrInvalidOrder = errors.New("invalid order")
	// ErrProductNotFound indicates an order referenced unknown products.
	ErrProductNotFound = errors.New("product not found")
	// ErrInsufficientStock indicates a product could not cover the order.
	ErrInsufficientStock = errors.New("insufficient stock")
)

// MissingProductsError lists the product ids an order referenced that do not
// exist.
type MissingProductsError struct {
	IDs []string
}

func (e *MissingProductsError) Error() string {
	return fmt.Sprintf("products not found: %s", strings.Join(e.IDs, ", "))
}

func (e *MissingProductsError) Is(target error) bool { return target == ErrProductNotFound }

// InsufficientStockError names the product whose stock could not cover the
// requested quantity.
type InsufficientStockError struct {
	ProductID string
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d", e.ProductID, e.Requested)
}

func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }

// Validate checks the request shape.
func (r PlaceRequest) Validate() error {
	if len(r.Items) == 0 {
		return fmt.Errorf("%w: at least one item is required", ErrInvalidOrder)
	}
	for i, it := range r.Items {
		if strings.TrimSpace(it.ProductID) == "" {
			return fmt.Errorf("%w: items[%d].product_id is required", ErrInvalidOrder, i)
		}
		if it.BoughtQuantity <= 0 {
			return fmt.Errorf("%w: items[%d].bought_quantity must be positive", ErrInvalidOrder, i)
		}
	}
	switch {
	case strings.TrimSpace(r.Address.City) == "":
		return fmt.Errorf("%w: city is required", ErrInvalidOrder)
	case strings.TrimSpace(r.Address.Country) == "":
		return fmt.Errorf("%w: country is required", ErrInvalidOrder)
	case strings.TrimSpace(r.Address.Zipcode) == "":
		return fmt.Errorf("%w: zipcode is required", ErrInvalidOrder)
	}
	return nil
}

// Quantities collapses items into product id -> total quantity. Repeated ids
// are summed.
func Quantities(items []Item) map[string]int {
	out := make(map[string]int, len(items))
	for _, it := range items {
		out[it.ProductID] += it.BoughtQuantity
	}
	return out
}

// Total prices the resolved products against the requested quantities.
func Total(products []catalog.Product, quantities map[string]int) decimal.Decimal {
	total := decimal.Zero
	for _, p := range products {
		total = total.Add(p.Price.Mul(decimal.NewFromInt(int64(quantities[p.ID]))))
	}
	return total
}

func sortedIDs(quantities map[string]int) []string {
	ids := make([]string, 0, len(quantities))
	for id := range quantities {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
