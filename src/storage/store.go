package storage

import (
	"fmt"

	"stock-dashboard/src/interfaces"
	"stock-dashboard/src/logger"
	"stock-dashboard/src/models"
)

// NewWishlistStore picks the backend named by storage.db_type.
func NewWishlistStore(cfg *models.MConfig, log *logger.Logger) (interfaces.IWishlistStore, error) {
	switch cfg.Storage.DBType {
	case "postgres":
		store, err := NewPostgresWishlistStore(cfg, log)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "sqlite", "":
		store, err := NewSQLiteWishlistStore(cfg, log)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported database type '%s'", cfg.Storage.DBType)
	}
}
