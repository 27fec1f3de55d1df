// Package catalog holds the product model, the paginated catalog query and
// product creation.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// PageSize is the default number of products returned per page.
const PageSize = 10

// Product is a sellable item with its current stock.
type Product struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
}

// Filter is a catalog listing request. Zero values and nil pointers mean
// "not supplied".
type Filter struct {
	ID         string
	Name       string
	MinPrice   decimal.NullDecimal
	MaxPrice   decimal.NullDecimal
	Offset     *int
	PageNumber *int
	Limit      int
}

// Query is a Filter resolved to concrete bounds, as executed by a Repository.
type Query struct {
	ID       string
	Name     string
	MinPrice decimal.NullDecimal
	MaxPrice decimal.NullDecimal
	Offset   int
	Limit    int
}

// PageInfo describes where a page sits in the full result set.
type PageInfo struct {
	Limit      int  `json:"limit"`
	NextOffset *int `json:"nextOffset"`
	PrevOffset *int `json:"prevOffset"`
	Total      int  `json:"total"`
}

// Page is one slice of a catalog listing.
type Page struct {
	Data []Product `json:"data"`
	Page PageInfo  `json:"page"`
}

// Repository is the product storage the catalog needs.
type Repository interface {
	// FindByName returns ErrNotFound when no product has the name.
	FindByName(ctx context.Context, name string) (Product, error)
	// Insert returns ErrNameTaken when the name is already used.
	Insert(ctx context.Context, p Product) error
	// Query returns the requested slice and the number of products matching
	// the filter before paging, in one round trip.
	Query(ctx context.Context, q Query) ([]Product, int, error)
}

var (
	// ErrNotFound indicates the requested product does not exist.
	ErrNotFound = errors.New("product not found")
	// ErrNameTaken indicates a product with the same normalized name exists.
	ErrNameTaken = errors.New("product with same name already exists")
	// ErrInvalidProduct indicates a malformed create request.
	ErrInvalidProduct = errors.New("invalid product")
	// ErrInvalidFilter indicates a malformed listing request.
	ErrInvalidFilter = errors.New("invalid filter")
)

// NormalizeName returns the canonical, case-insensitive form of a name.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Query resolves the filter's paging defaults. A zero min or max price is
// treated as absent.
func (f Filter) Query() (Query, error) {
	if f.Limit < 0 {
		return Query{}, errInvalidFilter("limit must not be negative")
	}
	if f.PageNumber != nil && *f.PageNumber < 1 {
		return Query{}, errInvalidFilter("page_number must be at least 1")
	}
	if f.Offset != nil && *f.Offset < 0 {
		return Query{}, errInvalidFilter("offset must not be negative")
	}

	q := Query{
		ID:       strings.TrimSpace(f.ID),
		Name:     NormalizeName(f.Name),
		MinPrice: nonZero(f.MinPrice),
		MaxPrice: nonZero(f.MaxPrice),
		Limit:    f.Limit,
	}
	if q.MinPrice.Valid && q.MinPrice.Decimal.IsNegative() {
		return Query{}, errInvalidFilter("min_price must not be negative")
	}
	if q.MaxPrice.Valid && q.MaxPrice.Decimal.IsNegative() {
		return Query{}, errInvalidFilter("max_price must not be negative")
	}
	if q.MinPrice.Valid && q.MaxPrice.Valid && q.MinPrice.Decimal.GreaterThan(q.MaxPrice.Decimal) {
		return Query{}, errInvalidFilter("min_price must not exceed max_price")
	}

	if q.Limit == 0 {
		q.Limit = PageSize
	}

	switch {
	case f.Offset != nil:
		q.Offset = *f.Offset
	case f.PageNumber != nil:
		skipped := *f.PageNumber - 1
		if skipped > math.MaxInt/q.Limit {
			return Query{}, errInvalidFilter("page_number is out of range")
		}
		q.Offset = skipped * q.Limit
	}

	return q, nil
}

// NewPageInfo computes the offsets surrounding a page.
func NewPageInfo(total, offset, limit int) PageInfo {
	info := PageInfo{Limit: limit, Total: total}
	if remaining := total - offset; remaining > limit {
		next := remaining - limit
		info.NextOffset = &next
	}
	if offset > 0 {
		prev := offset
		info.PrevOffset = &prev
	}
	return info
}

func nonZero(d decimal.NullDecimal) decimal.NullDecimal {
	if d.Valid && d.Decimal.IsZero() {
		return decimal.NullDecimal{}
	}
	return d
}

func errInvalidFilter(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidFilter, msg)
}
