package finnhub

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"stock-dashboard/src/helpers"
	"stock-dashboard/src/interfaces"
	"stock-dashboard/src/logger"
	"stock-dashboard/src/models"
)

// FinnhubSource proxies the Finnhub REST API. The API key stays server side.
type FinnhubSource struct {
	Config  *models.MConfig
	Network interfaces.INetworkManager
	Logger  *logger.Logger
}

// -----------------------------------------------------------------------------

func NewFinnhubSource(cfg *models.MConfig, netMgr interfaces.INetworkManager, log *logger.Logger) *FinnhubSource {
	return &FinnhubSource{
		Config:  cfg,
		Network: netMgr,
		Logger:  log,
	}
}

// -----------------------------------------------------------------------------

func (s *FinnhubSource) get(ctx context.Context, path string, params map[string]string) ([]byte, error) {
	params["token"] = s.Config.DataSource.FinnhubAPIKey
	url := strings.TrimRight(s.Config.DataSource.FinnhubBaseURL, "/") + path
	return s.Network.Get(ctx, url, params, nil)
}

// -----------------------------------------------------------------------------

// Search looks a query up against Finnhub's symbol search.
func (s *FinnhubSource) Search(ctx context.Context, query string) ([]models.MSearchCandidate, error) {
	body, err := s.get(ctx, "/search", map[string]string{"q": query})
	if err != nil {
		return nil, fmt.Errorf("finnhub search %q: %w", query, err)
	}

	var resp models.MSearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("finnhub search %q: json unmarshal failed: %w", query, err)
	}
	if resp.Result == nil {
		resp.Result = []models.MSearchCandidate{}
	}
	return resp.Result, nil
}

// -----------------------------------------------------------------------------

func (s *FinnhubSource) Profile(ctx context.Context, symbol string) (json.RawMessage, error) {
	return s.raw(ctx, "/stock/profile2", symbol)
}

// -----------------------------------------------------------------------------

func (s *FinnhubSource) Quote(ctx context.Context, symbol string) (json.RawMessage, error) {
	return s.raw(ctx, "/quote", symbol)
}

// -----------------------------------------------------------------------------

func (s *FinnhubSource) raw(ctx context.Context, path, symbol string) (json.RawMessage, error) {
	body, err := s.get(ctx, path, map[string]string{"symbol": symbol})
	if err != nil {
		return nil, fmt.Errorf("finnhub %s %s: %w", path, symbol, err)
	}
	if !json.Valid(body) {
		return nil, helpers.NewTransportError(strings.TrimPrefix(path, "/"), 0, fmt.Errorf("finnhub %s %s: invalid json", path, symbol))
	}
	return json.RawMessage(body), nil
}

// -----------------------------------------------------------------------------

// News returns the latest market news for a Finnhub category ("general", "forex", ...).
func (s *FinnhubSource) News(ctx context.Context, category string) ([]models.MNewsItem, error) {
	body, err := s.get(ctx, "/news", map[string]string{"category": category})
	if err != nil {
		return nil, fmt.Errorf("finnhub news %s: %w", category, err)
	}

	var items []models.MNewsItem
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, fmt.Errorf("finnhub news %s: json unmarshal failed: %w", category, err)
	}
	return items, nil
}
