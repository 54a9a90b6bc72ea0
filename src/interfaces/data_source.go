package interfaces

import (
	"context"
	"encoding/json"

	"stock-dashboard/src/models"
)

// -----------------------------------------------------------------------------
// ISymbolSource serves symbol lookup, company fundamentals and news (Finnhub).
// -----------------------------------------------------------------------------

type ISymbolSource interface {
	Search(ctx context.Context, query string) ([]models.MSearchCandidate, error)

	// Profile and Quote return the upstream JSON untouched so the proxy can
	// pass fields through that the dashboard does not model.
	Profile(ctx context.Context, symbol string) (json.RawMessage, error)
	Quote(ctx context.Context, symbol string) (json.RawMessage, error)

	News(ctx context.Context, category string) ([]models.MNewsItem, error)
}

// -----------------------------------------------------------------------------
// IChartSource serves price history and index snapshots (Yahoo Finance).
// -----------------------------------------------------------------------------

type IChartSource interface {
	// Candles returns the configured range of daily bars, oldest first.
	Candles(ctx context.Context, symbol string) ([]models.MCandle, error)

	IndexSnapshot(ctx context.Context, symbol string) (*models.MIndexSnapshot, error)
}
