package order

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"storefront/pkg/catalog"
	"storefront/pkg/logger"
	"storefront/pkg/otel"
)

// Service places orders against the product stock.
type Service struct {
	repo      Repository
	publisher Publisher
	log       *logger.Logger
	now       func() time.Time
}

// Option customises a Service.
type Option func(*Service)

// WithPublisher sets the publisher notified after an order commits.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithClock overrides the order timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService returns an order service backed by repo.
func NewService(repo Repository, log *logger.Logger, opts ...Option) *Service {
	s := &Service{repo: repo, log: log, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Place resolves the requested products, prices the order, and persists it
// together with the stock decrements in one transaction. Either the order and
// every decrement are committed, or nothing is.
func (s *Service) Place(ctx context.Context, req PlaceRequest) (Receipt, error) {
	ctx, span := otel.AddSpan(ctx, "order.place", attribute.Int("order.lines", len(req.Items)))
	defer span.End()

	receipt, err := s.place(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Receipt{}, err
	}
	span.SetAttributes(attribute.String("order.id", receipt.OrderID))
	return receipt, nil
}

func (s *Service) place(ctx context.Context, req PlaceRequest) (Receipt, error) {
	if err := req.Validate(); err != nil {
		return Receipt{}, err
	}

	quantities := Quantities(req.Items)
	ids := sortedIDs(quantities)

	s.log.Debug(ctx, "resolving products", "products", len(ids))
	products, err := s.repo.ProductsByIDs(ctx, ids)
	if err != nil {
		s.log.Error(ctx, "resolve products", "error", err)
		return Receipt{}, fmt.Errorf("resolve products: %w", err)
	}

	resolved := make(map[string]catalog.Product, len(products))
	for _, p := range products {
		resolved[p.ID] = p
	}
	var missing []string
	for _, id := range ids {
		if _, ok := resolved[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return Receipt{}, &MissingProductsError{IDs: missing}
	}
	// Fail fast on stock read above; the guarded decrement stays authoritative.
	for _, id := range ids {
		if resolved[id].Quantity < quantities[id] {
			return Receipt{}, &InsufficientStockError{ProductID: id, Requested: quantities[id]}
		}
	}

	o := Order{
		ID:          uuid.NewString(),
		Items:       slices.Clone(req.Items),
		CreatedOn:   s.now().UTC(),
		TotalAmount: Total(products, quantities),
		Address:     req.Address,
	}

	err = s.repo.InTx(ctx, func(ctx context.Context, tx Tx) error {
		if err := tx.InsertOrder(ctx, o); err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
		for _, id := range ids {
			ok, err := tx.DecrementStock(ctx, id, quantities[id])
			if err != nil {
				return fmt.Errorf("decrement stock for product %s: %w", id, err)
			}
			if !ok {
				return &InsufficientStockError{ProductID: id, Requested: quantities[id]}
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrInsufficientStock) {
			s.log.Warn(ctx, "order rejected", "order_id", o.ID, "error", err)
		} else {
			s.log.Error(ctx, "persist order", "order_id", o.ID, "error", err)
		}
		return Receipt{}, err
	}

	s.log.Info(ctx, "order placed", "order_id", o.ID, "total_amount", o.TotalAmount.String())

	if s.publisher != nil {
		if err := s.publisher.OrderPlaced(ctx, o); err != nil {
			s.log.Error(ctx, "publish order placed", "order_id", o.ID, "error", err)
		}
	}

	return Receipt{OrderID: o.ID, TotalAmount: o.TotalAmount}, nil
}

// Get retrieves a placed order by id.
func (s *Service) Get(ctx context.Context, id string) (Order, error) {
	ctx, span := otel.AddSpan(ctx, "order.get", attribute.String("order.id", id))
	defer span.End()

	o, err := s.repo.Get(ctx, id)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.log.Error(ctx, "get order", "order_id", id, "error", err)
		}
		return Order{}, err
	}
	return o, nil
}
