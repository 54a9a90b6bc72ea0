package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"stock-dashboard/src/helpers"
	"stock-dashboard/src/logger"
	"stock-dashboard/src/models"

	"github.com/lib/pq"
)

// pgUniqueViolation is the SQLSTATE for a duplicate key.
const pgUniqueViolation = "23505"

// -----------------------------------------------------------------------------

type PostgresWishlistStore struct {
	Config *models.MConfig
	DB     *sql.DB
	Schema string
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewPostgresWishlistStore(cfg *models.MConfig, log *logger.Logger) (*PostgresWishlistStore, error) {
	if cfg.Storage.DBConnectionString == "" {
		return nil, fmt.Errorf("postgres store requires a db_connection_string")
	}
	schema := cfg.Storage.DBSchema
	if schema == "" {
		schema = "public"
	}
	return &PostgresWishlistStore{
		Config: cfg,
		Schema: schema,
		Logger: log,
	}, nil
}

// -----------------------------------------------------------------------------

func (d *PostgresWishlistStore) Initialize() error {
	db, err := sql.Open("postgres", d.Config.Storage.DBConnectionString)
	if err != nil {
		return err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return err
	}

	d.DB = db

	if _, err := d.DB.Exec(fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %s`, pq.QuoteIdentifier(d.Schema))); err != nil {
		return fmt.Errorf("failed to create schema %s: %w", d.Schema, err)
	}

	if err := d.createTables(); err != nil {
		return err
	}

	d.Logger.Info("PostgresWishlistStore initialized successfully (Schema: %s)", d.Schema)
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresWishlistStore) table() string {
	return pq.QuoteIdentifier(d.Schema) + ".wishlist"
}

// -----------------------------------------------------------------------------

func (d *PostgresWishlistStore) createTables() error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id BIGSERIAL PRIMARY KEY,
			user_id TEXT NOT NULL,
			ticker_symbol TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (user_id, ticker_symbol)
		);
	`, d.table())
	if _, err := d.DB.Exec(query); err != nil {
		return fmt.Errorf("failed to create wishlist: %w", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresWishlistStore) List(ctx context.Context, userID string) ([]models.MWishlistEntry, error) {
	rows, err := d.DB.QueryContext(ctx, fmt.Sprintf(
		`SELECT id, user_id, ticker_symbol, created_at FROM %s WHERE user_id = $1 ORDER BY created_at, id`, d.table()),
		userID)
	if err != nil {
		return nil, &helpers.DatabaseError{DashboardError: helpers.DashboardError{Message: "list wishlist", Cause: err}}
	}
	defer rows.Close()

	entries := []models.MWishlistEntry{}
	for rows.Next() {
		var e models.MWishlistEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.TickerSymbol, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// -----------------------------------------------------------------------------

func (d *PostgresWishlistStore) Add(ctx context.Context, userID, ticker string) (*models.MWishlistEntry, error) {
	entry := &models.MWishlistEntry{
		UserID:       userID,
		TickerSymbol: strings.ToUpper(strings.TrimSpace(ticker)),
	}

	err := d.DB.QueryRowContext(ctx, fmt.Sprintf(
		`INSERT INTO %s (user_id, ticker_symbol) VALUES ($1, $2) RETURNING id, created_at`, d.table()),
		entry.UserID, entry.TickerSymbol).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == pgUniqueViolation {
			return nil, helpers.ErrDuplicate
		}
		return nil, &helpers.DatabaseError{DashboardError: helpers.DashboardError{Message: "add to wishlist", Cause: err}}
	}
	return entry, nil
}

// -----------------------------------------------------------------------------

func (d *PostgresWishlistStore) Remove(ctx context.Context, userID, ticker string) error {
	_, err := d.DB.ExecContext(ctx, fmt.Sprintf(
		`DELETE FROM %s WHERE user_id = $1 AND ticker_symbol = $2`, d.table()),
		userID, strings.ToUpper(strings.TrimSpace(ticker)))
	if err != nil {
		return &helpers.DatabaseError{DashboardError: helpers.DashboardError{Message: "remove from wishlist", Cause: err}}
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresWishlistStore) Ping(ctx context.Context) error {
	if d.DB == nil {
		return fmt.Errorf("postgres store not initialized")
	}
	return d.DB.PingContext(ctx)
}

// -----------------------------------------------------------------------------

func (d *PostgresWishlistStore) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
