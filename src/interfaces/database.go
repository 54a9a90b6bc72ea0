package interfaces

import (
	"context"

	"stock-dashboard/src/models"
)

// -----------------------------------------------------------------------------
// IWishlistStore defines the contract for wishlist persistence.
// -----------------------------------------------------------------------------

type IWishlistStore interface {

	// Initialize opens the connection and creates the schema.
	Initialize() error

	// List returns the user's entries, oldest first.
	List(ctx context.Context, userID string) ([]models.MWishlistEntry, error)

	// Add inserts a ticker. helpers.ErrDuplicate is returned when it already exists.
	Add(ctx context.Context, userID, ticker string) (*models.MWishlistEntry, error)

	// Remove deletes a ticker. Removing an absent ticker is not an error.
	Remove(ctx context.Context, userID, ticker string) error

	// Ping checks the connection is alive.
	Ping(ctx context.Context) error

	// Close the database connection
	Close() error
}
