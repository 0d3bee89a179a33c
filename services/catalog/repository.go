package main

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Repository defines catalog persistence.
type Repository interface {
	ListProducts(ctx context.Context) ([]*Product, error)
	Prices(ctx context.Context, productIDs []string) (map[string]float64, error)
}

// ProductRepository implements Repository on PostgreSQL.
type ProductRepository struct {
	db *pgxpool.Pool
}

func NewProductRepository(db *pgxpool.Pool) Repository {
	return &ProductRepository{db: db}
}

func (r *ProductRepository) ListProducts(ctx context.Context) ([]*Product, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, name, description, price, category, image, rating, in_stock, created_at
		FROM products ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	var products []*Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Category,
			&p.Image, &p.Rating, &p.InStock, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan product row: %w", err)
		}
		products = append(products, &p)
	}
	return products, rows.Err()
}

// Prices returns unit prices for the requested product ids. Unknown ids are
// simply absent from the result; the caller decides what that means.
func (r *ProductRepository) Prices(ctx context.Context, productIDs []string) (map[string]float64, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, price FROM products WHERE id = ANY($1)
	`, productIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to look up prices: %w", err)
	}
	defer rows.Close()

	prices := make(map[string]float64, len(productIDs))
	for rows.Next() {
		var id string
		var price float64
		if err := rows.Scan(&id, &price); err != nil {
			return nil, fmt.Errorf("failed to scan price row: %w", err)
		}
		prices[id] = price
	}
	return prices, rows.Err()
}

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
// table so sharing a database with the checkout service cannot conflate the
// two version counters.
func migrateDSN(databaseURL string) string {
	dsn := strings.Replace(databaseURL, "postgres://", "pgx5://", 1)
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "x-migrations-table=products_schema_migrations"
}
