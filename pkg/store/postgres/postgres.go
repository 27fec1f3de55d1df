// Package postgres persists products and orders in PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"storefront/pkg/catalog"
	"storefront/pkg/order"
)

const uniqueViolation = "23505"

const schema = `
CREATE TABLE IF NOT EXISTS products (
	id       TEXT PRIMARY KEY,
	name     TEXT NOT NULL UNIQUE,
	price    NUMERIC NOT NULL CHECK (price >= 0),
	quantity INT NOT NULL CHECK (quantity >= 0)
);
CREATE TABLE IF NOT EXISTS orders (
	id           TEXT PRIMARY KEY,
	items        JSONB NOT NULL,
	created_on   TIMESTAMPTZ NOT NULL,
	total_amount NUMERIC NOT NULL,
	city         TEXT NOT NULL,
	country      TEXT NOT NULL,
	zipcode      TEXT NOT NULL
);`

// Repository persists products and orders in PostgreSQL.
type Repository struct {
	db *sql.DB
}

// New creates a PostgreSQL repository.
func New(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Migrate creates the tables if they do not exist.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// FindByName retrieves a product by its normalized name.
func (r *Repository) FindByName(ctx context.Context, name string) (catalog.Product, error) {
	var p catalog.Product
	err := r.db.QueryRowContext(ctx,
		"SELECT id,name,price,quantity FROM products WHERE name=$1", name,
	).Scan(&p.ID, &p.Name, &p.Price, &p.Quantity)
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.Product{}, catalog.ErrNotFound
	}
	return p, err
}

// Insert creates a new product. The unique index on name turns a concurrent
// duplicate into catalog.ErrNameTaken.
func (r *Repository) Insert(ctx context.Context, p catalog.Product) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO products (id,name,price,quantity) VALUES ($1,$2,$3,$4)",
		p.ID, p.Name, p.Price, p.Quantity,
	)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return catalog.ErrNameTaken
	}
	return err
}

// Query runs the filtered, paged listing. The window count returns the total
// alongside the page rows.
func (r *Repository) Query(ctx context.Context, q catalog.Query) ([]catalog.Product, int, error) {
	where, args := whereClause(q)

	stmt := fmt.Sprintf(
		"SELECT id,name,price,quantity,COUNT(*) OVER () FROM products%s ORDER BY name,id OFFSET $%d LIMIT $%d",
		where, len(args)+1, len(args)+2,
	)
	rows, err := r.db.QueryContext(ctx, stmt, append(args, q.Offset, q.Limit)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var (
		products []catalog.Product
		total    int
	)
	for rows.Next() {
		var p catalog.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.Quantity, &total); err != nil {
			return nil, 0, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	// An offset past the last row yields no rows and therefore no count.
	if len(products) == 0 && q.Offset > 0 {
		if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM products"+where, args...).Scan(&total); err != nil {
			return nil, 0, err
		}
	}
	return products, total, nil
}

func whereClause(q catalog.Query) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if q.ID != "" {
		add("id=$%d", q.ID)
	}
	if q.Name != "" {
		add("name=$%d", q.Name)
	}
	if q.MinPrice.Valid {
		add("price>=$%d", q.MinPrice.Decimal)
	}
	if q.MaxPrice.Valid {
		add("price<=$%d", q.MaxPrice.Decimal)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// ProductsByIDs fetches the existing products among ids in one query.
func (r *Repository) ProductsByIDs(ctx context.Context, ids []string) ([]catalog.Product, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id,name,price,quantity FROM products WHERE id = ANY($1)", pq.Array(ids),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var products []catalog.Product
	for rows.Next() {
		var p catalog.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.Quantity); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// Get retrieves an order by ID.
func (r *Repository) Get(ctx context.Context, id string) (order.Order, error) {
	var (
		o     order.Order
		items []byte
	)
	err := r.db.QueryRowContext(ctx,
		"SELECT id,items,created_on,total_amount,city,country,zipcode FROM orders WHERE id=$1", id,
	).Scan(&o.ID, &items, &o.CreatedOn, &o.TotalAmount, &o.Address.City, &o.Address.Country, &o.Address.Zipcode)
	if errors.Is(err, sql.ErrNoRows) {
		return order.Order{}, order.ErrNotFound
	}
	if err != nil {
		return order.Order{}, err
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return order.Order{}, fmt.Errorf("decode order items: %w", err)
	}
	o.CreatedOn = o.CreatedOn.UTC()
	return o, nil
}

// InTx runs fn inside a database transaction, committing only when fn
// returns nil.
func (r *Repository) InTx(ctx context.Context, fn func(ctx context.Context, tx order.Tx) error) (err error) {
	sqlTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				err = errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
			}
		}
	}()

	if err = fn(ctx, &tx{tx: sqlTx}); err != nil {
		return err
	}
	if err = sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

type tx struct {
	tx *sql.Tx
}

func (t *tx) InsertOrder(ctx context.Context, o order.Order) error {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("encode order items: %w", err)
	}
	_, err = t.tx.ExecContext(ctx,
		"INSERT INTO orders (id,items,created_on,total_amount,city,country,zipcode) VALUES ($1,$2,$3,$4,$5,$6,$7)",
		o.ID, items, o.CreatedOn, o.TotalAmount, o.Address.City, o.Address.Country, o.Address.Zipcode,
	)
	return err
}

// DecrementStock applies the guarded decrement; the row lock it takes is held
// until the transaction ends.
func (t *tx) DecrementStock(ctx context.Context, productID string, quantity int) (bool, error) {
	res, err := t.tx.ExecContext(ctx,
		"UPDATE products SET quantity=quantity-$2 WHERE id=$1 AND quantity>=$2", productID, quantity,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
