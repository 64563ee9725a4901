package store

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"furniture-backoffice/internal/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

//go:embed schema.sql
var schema string

const productColumns = `id, name, price, category, subcategory, stock, low_stock_threshold, barcode, updated_at`

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the connection for readiness probes
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Migrate creates the tables if they do not exist
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// LoadProducts returns the catalog in creation order
func (s *Store) LoadProducts(ctx context.Context) ([]models.Product, error) {
	products := []models.Product{}
	err := s.db.SelectContext(ctx, &products,
		"SELECT "+productColumns+" FROM products ORDER BY created_at, id")
	return products, err
}

// LoadMovements returns the movement log newest first
func (s *Store) LoadMovements(ctx context.Context) ([]models.Movement, error) {
	movements := []models.Movement{}
	err := s.db.SelectContext(ctx, &movements,
		"SELECT * FROM stock_movements ORDER BY performed_at DESC, id DESC")
	return movements, err
}

// Commit upserts products and appends movements in one transaction
func (s *Store) Commit(ctx context.Context, products []models.Product, movements []models.Movement) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for i := range products {
		_, err := tx.NamedExecContext(ctx, `
			INSERT INTO products (`+productColumns+`)
			VALUES (:id, :name, :price, :category, :subcategory, :stock, :low_stock_threshold, :barcode, :updated_at)
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name,
				price = EXCLUDED.price,
				category = EXCLUDED.category,
				subcategory = EXCLUDED.subcategory,
				stock = EXCLUDED.stock,
				low_stock_threshold = EXCLUDED.low_stock_threshold,
				barcode = EXCLUDED.barcode,
				updated_at = EXCLUDED.updated_at`, &products[i])
		if err != nil {
			return fmt.Errorf("failed to upsert product %s: %w", products[i].ID, err)
		}
	}

	for i := range movements {
		_, err := tx.NamedExecContext(ctx, `
			INSERT INTO stock_movements
				(id, product_id, previous_stock, new_stock, quantity, kind, reason, performed_by, performed_at)
			VALUES
				(:id, :product_id, :previous_stock, :new_stock, :quantity, :kind, :reason, :performed_by, :performed_at)`,
			&movements[i])
		if err != nil {
			return fmt.Errorf("failed to insert movement %s: %w", movements[i].ID, err)
		}
	}

	return tx.Commit()
}

// IsEventProcessed checks if an event has been processed
func (s *Store) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = $1)", eventID)
	return exists, err
}

// MarkEventProcessed marks an event as processed
func (s *Store) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO processed_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING",
		eventID, eventType)
	return err
}
