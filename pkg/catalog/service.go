package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	"storefront/pkg/logger"
	"storefront/pkg/otel"
)

// CreateRequest is the input for creating a product.
type CreateRequest struct {
	Name     string
	Price    decimal.Decimal
	Quantity int
}

// Service implements catalog listing and product creation.
type Service struct {
	repo Repository
	log  *logger.Logger
}

// NewService returns a catalog service backed by repo.
func NewService(repo Repository, log *logger.Logger) *Service {
	return &Service{repo: repo, log: log}
}

// Create stores a new product under its normalized name. The existence check
// is advisory; the repository enforces uniqueness.
func (s *Service) Create(ctx context.Context, req CreateRequest) (Product, error) {
	ctx, span := otel.AddSpan(ctx, "catalog.create")
	defer span.End()

	p := Product{
		Name:     NormalizeName(req.Name),
		Price:    req.Price,
		Quantity: req.Quantity,
	}
	switch {
	case p.Name == "":
		return Product{}, fmt.Errorf("%w: name is required", ErrInvalidProduct)
	case p.Price.IsNegative():
		return Product{}, fmt.Errorf("%w: price must not be negative", ErrInvalidProduct)
	case p.Quantity < 0:
		return Product{}, fmt.Errorf("%w: quantity must not be negative", ErrInvalidProduct)
	}

	_, err := s.repo.FindByName(ctx, p.Name)
	switch {
	case err == nil:
		return Product{}, ErrNameTaken
	case !errors.Is(err, ErrNotFound):
		s.log.Error(ctx, "find product by name", "name", p.Name, "error", err)
		return Product{}, fmt.Errorf("find product by name: %w", err)
	}

	p.ID = uuid.NewString()
	if err := s.repo.Insert(ctx, p); err != nil {
		if errors.Is(err, ErrNameTaken) {
			return Product{}, ErrNameTaken
		}
		s.log.Error(ctx, "insert product", "name", p.Name, "error", err)
		return Product{}, fmt.Errorf("insert product: %w", err)
	}

	span.SetAttributes(attribute.String("product.id", p.ID))
	s.log.Info(ctx, "product created", "product_id", p.ID, "name", p.Name)
	return p, nil
}

// List returns one page of products matching f together with the paging
// metadata.
func (s *Service) List(ctx context.Context, f Filter) (Page, error) {
	ctx, span := otel.AddSpan(ctx, "catalog.list")
	defer span.End()

	q, err := f.Query()
	if err != nil {
		return Page{}, err
	}

	products, total, err := s.repo.Query(ctx, q)
	if err != nil {
		s.log.Error(ctx, "query products", "error", err)
		return Page{}, fmt.Errorf("query products: %w", err)
	}
	if products == nil {
		products = []Product{}
	}

	span.SetAttributes(
		attribute.Int("catalog.offset", q.Offset),
		attribute.Int("catalog.limit", q.Limit),
		attribute.Int("catalog.total", total),
	)
	return Page{Data: products, Page: NewPageInfo(total, q.Offset, q.Limit)}, nil
}
