package interfaces

import (
	"context"

	"stock-dashboard/src/models"
)

// IMarketAPI is the read side of the dashboard API as seen by the client.
type IMarketAPI interface {
	Search(ctx context.Context, query string) ([]models.MSearchCandidate, error)
	Profile(ctx context.Context, symbol string) (*models.MCompanyProfile, error)
	Quote(ctx context.Context, symbol string) (*models.MQuote, error)
	Candles(ctx context.Context, symbol string) ([]models.MCandle, error)
}

// IUserStore is the managed auth/database backend: the signed-in session and
// the wishlist rows that belong to it.
type IUserStore interface {
	GetSession(ctx context.Context) (*models.MSession, error)
	ListWishlist(ctx context.Context) ([]models.MWishlistEntry, error)
	AddWishlist(ctx context.Context, symbol string) (*models.MWishlistEntry, error)
	RemoveWishlist(ctx context.Context, symbol string) error
}
