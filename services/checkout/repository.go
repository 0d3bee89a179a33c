package main

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrOrderNotFound is returned when an order id matches nothing.
var ErrOrderNotFound = errors.New("order not found")

// Repository defines the order persistence used by checkout and
// reconciliation. CompareAndSetStatus is the atomic status transition the
// reconciler's idempotency rests on.
type Repository interface {
	CreateOrder(ctx context.Context, order *Order) error
	GetOrder(ctx context.Context, orderID string) (*Order, error)
	CompareAndSetStatus(ctx context.Context, orderID, expected, next string) (bool, error)
	ListOrders(ctx context.Context) ([]*Order, error)
}

// OrderRepository implements Repository on PostgreSQL.
type OrderRepository struct {
	db *pgxpool.Pool
}

func NewOrderRepository(db *pgxpool.Pool) Repository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) CreateOrder(ctx context.Context, order *Order) error {
	cartJSON, err := json.Marshal(order.Cart)
	if err != nil {
		return fmt.Errorf("failed to encode cart snapshot: %w", err)
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO orders (id, cart, total_amount, currency, status, provider,
			customer_name, customer_email, customer_phone, session_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, order.ID, cartJSON, order.TotalAmount, order.Currency, order.Status, string(order.Provider),
		order.CustomerName, order.CustomerEmail, order.CustomerPhone, order.SessionID,
		order.CreatedAt, order.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert order %s: %w", order.ID, err)
	}
	return nil
}

func (r *OrderRepository) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, cart, total_amount, currency, status, provider,
			customer_name, customer_email, customer_phone, session_id, created_at, updated_at
		FROM orders WHERE id = $1
	`, orderID)

	order, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load order %s: %w", orderID, err)
	}
	return order, nil
}

// CompareAndSetStatus transitions the order's status only if it still has
// the expected one. Returns false when another reconciliation (or an admin)
// got there first; concurrent callers for the same order serialize on the
// row, so at most one of them sees true.
func (r *OrderRepository) CompareAndSetStatus(ctx context.Context, orderID, expected, next string) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE orders SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3
	`, next, orderID, expected)
	if err != nil {
		return false, fmt.Errorf("failed to update order %s status: %w", orderID, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *OrderRepository) ListOrders(ctx context.Context) ([]*Order, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, cart, total_amount, currency, status, provider,
			customer_name, customer_email, customer_phone, session_id, created_at, updated_at
		FROM orders ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	var orders []*Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order row: %w", err)
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

func scanOrder(row pgx.Row) (*Order, error) {
	var order Order
	var cartJSON []byte
	var provider string
	err := row.Scan(&order.ID, &cartJSON, &order.TotalAmount, &order.Currency, &order.Status,
		&provider, &order.CustomerName, &order.CustomerEmail, &order.CustomerPhone,
		&order.SessionID, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return nil, err
	}
	order.Provider = ProviderID(provider)
	if err := json.Unmarshal(cartJSON, &order.Cart); err != nil {
		return nil, fmt.Errorf("corrupt cart snapshot on order %s: %w", order.ID, err)
	}
	return &order, nil
}

// runMigrations applies the embedded schema migrations before the service
// starts taking traffic.
func runMigrations(databaseURL string) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("could not load embedded migrations: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, migrateDSN(databaseURL))
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}
	return nil
}

// migrateDSN rewrites the pool URL for golang-migrate: the pgx/v5 driver
// registers under the pgx5 scheme, and the service keeps its own migrations
// table so sharing a database with the catalog service cannot conflate the
// two version counters.
func migrateDSN(databaseURL string) string {
	dsn := strings.Replace(databaseURL, "postgres://", "pgx5://", 1)
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "x-migrations-table=orders_schema_migrations"
}
