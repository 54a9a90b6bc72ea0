package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"stock-dashboard/src/helpers"
	"stock-dashboard/src/logger"
	"stock-dashboard/src/models"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// -----------------------------------------------------------------------------

// SQLiteWishlistStore keeps wishlists in a local SQLite file. created_at is
// stored as unix milliseconds.
type SQLiteWishlistStore struct {
	Config *models.MConfig
	DB     *sql.DB
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewSQLiteWishlistStore(cfg *models.MConfig, log *logger.Logger) (*SQLiteWishlistStore, error) {
	if cfg.Storage.DBPath == "" {
		return nil, fmt.Errorf("sqlite store requires a db_path")
	}
	return &SQLiteWishlistStore{
		Config: cfg,
		Logger: log,
	}, nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteWishlistStore) Initialize() error {
	path := d.Config.Storage.DBPath
	if path != ":memory:" && !strings.HasPrefix(path, "file:") {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("failed to create database dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return err
	}
	// A single writer avoids SQLITE_BUSY under concurrent requests.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return err
	}

	d.DB = db

	// PRAGMA optimizations
	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		d.Logger.Warning("Failed to set WAL mode: %v", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL;"); err != nil {
		d.Logger.Warning("Failed to set synchronous mode: %v", err)
	}

	return d.createTables()
}

// -----------------------------------------------------------------------------

func (d *SQLiteWishlistStore) createTables() error {
	query := `
		CREATE TABLE IF NOT EXISTS wishlist (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL,
			ticker_symbol TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			UNIQUE (user_id, ticker_symbol)
		);
	`
	if _, err := d.DB.Exec(query); err != nil {
		return fmt.Errorf("failed to create wishlist: %w", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteWishlistStore) List(ctx context.Context, userID string) ([]models.MWishlistEntry, error) {
	rows, err := d.DB.QueryContext(ctx,
		`SELECT id, user_id, ticker_symbol, created_at FROM wishlist WHERE user_id = ? ORDER BY created_at, id`,
		userID)
	if err != nil {
		return nil, &helpers.DatabaseError{DashboardError: helpers.DashboardError{Message: "list wishlist", Cause: err}}
	}
	defer rows.Close()

	entries := []models.MWishlistEntry{}
	for rows.Next() {
		var e models.MWishlistEntry
		var createdMs int64
		if err := rows.Scan(&e.ID, &e.UserID, &e.TickerSymbol, &createdMs); err != nil {
			return nil, err
		}
		e.CreatedAt = time.UnixMilli(createdMs).UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// -----------------------------------------------------------------------------

func (d *SQLiteWishlistStore) Add(ctx context.Context, userID, ticker string) (*models.MWishlistEntry, error) {
	entry := &models.MWishlistEntry{
		UserID:       userID,
		TickerSymbol: strings.ToUpper(strings.TrimSpace(ticker)),
		CreatedAt:    time.Now().UTC().Truncate(time.Millisecond),
	}

	res, err := d.DB.ExecContext(ctx,
		`INSERT INTO wishlist (user_id, ticker_symbol, created_at) VALUES (?, ?, ?)`,
		entry.UserID, entry.TickerSymbol, entry.CreatedAt.UnixMilli())
	if err != nil {
		if isSQLiteUniqueViolation(err) {
			return nil, helpers.ErrDuplicate
		}
		return nil, &helpers.DatabaseError{DashboardError: helpers.DashboardError{Message: "add to wishlist", Cause: err}}
	}

	if entry.ID, err = res.LastInsertId(); err != nil {
		return nil, err
	}
	return entry, nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteWishlistStore) Remove(ctx context.Context, userID, ticker string) error {
	_, err := d.DB.ExecContext(ctx,
		`DELETE FROM wishlist WHERE user_id = ? AND ticker_symbol = ?`,
		userID, strings.ToUpper(strings.TrimSpace(ticker)))
	if err != nil {
		return &helpers.DatabaseError{DashboardError: helpers.DashboardError{Message: "remove from wishlist", Cause: err}}
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteWishlistStore) Ping(ctx context.Context) error {
	if d.DB == nil {
		return fmt.Errorf("sqlite store not initialized")
	}
	return d.DB.PingContext(ctx)
}

// -----------------------------------------------------------------------------

func (d *SQLiteWishlistStore) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}

// -----------------------------------------------------------------------------

func isSQLiteUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE || se.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}
