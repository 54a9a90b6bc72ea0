package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"stock-dashboard/src/helpers"
	"stock-dashboard/src/logger"
	"stock-dashboard/src/models"
)

// maxBodyBytes bounds every decoded response.
const maxBodyBytes = 4 << 20

// -----------------------------------------------------------------------------

// Client talks to the dashboard server's /api routes. It serves the terminal
// dashboard as both its market API and its wishlist store.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Logger  *logger.Logger

	mu      sync.RWMutex
	session *models.MSession
}

// -----------------------------------------------------------------------------

func NewClient(cfg *models.MConfig, log *logger.Logger) *Client {
	timeout := time.Duration(cfg.Network.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		BaseURL: strings.TrimRight(cfg.Client.APIURL, "/"),
		HTTP:    &http.Client{Timeout: timeout},
		Logger:  log,
	}
}

// -----------------------------------------------------------------------------

// SetSession replaces the credentials sent with wishlist requests.
func (c *Client) SetSession(s *models.MSession) {
	c.mu.Lock()
	c.session = s
	c.mu.Unlock()
}

// GetSession returns the current session, or nil when signed out.
func (c *Client) GetSession(_ context.Context) (*models.MSession, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session, nil
}

func (c *Client) token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil {
		return ""
	}
	return c.session.AccessToken
}

// -----------------------------------------------------------------------------
// Request plumbing
// -----------------------------------------------------------------------------

// do sends one request and decodes a 2xx JSON body into out. Non-2xx
// responses become a TransportError for dataset carrying the status code and
// the server's error text; 409 additionally wraps helpers.ErrDuplicate.
func (c *Client) do(ctx context.Context, dataset, method, path string, query url.Values, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	target := c.BaseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return helpers.NewTransportError(dataset, 0, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return helpers.NewTransportError(dataset, resp.StatusCode, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		cause := errors.New(errorMessage(data))
		if resp.StatusCode == http.StatusConflict {
			cause = fmt.Errorf("%w: %v", helpers.ErrDuplicate, cause)
		}
		return helpers.NewTransportError(dataset, resp.StatusCode, cause)
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("%s: json unmarshal failed: %w", dataset, err)
		}
	}
	return nil
}

// -----------------------------------------------------------------------------

func errorMessage(data []byte) string {
	var body models.MErrorResponse
	if json.Unmarshal(data, &body) == nil && body.Error != "" {
		return body.Error
	}
	if msg := strings.TrimSpace(string(data)); msg != "" {
		return msg
	}
	return "empty response"
}

// -----------------------------------------------------------------------------
// Market data
// -----------------------------------------------------------------------------

func (c *Client) Search(ctx context.Context, query string) ([]models.MSearchCandidate, error) {
	var resp models.MSearchResponse
	if err := c.do(ctx, "search", http.MethodGet, "/api/search", url.Values{"q": {query}}, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Result == nil {
		return []models.MSearchCandidate{}, nil
	}
	return resp.Result, nil
}

// -----------------------------------------------------------------------------

func (c *Client) Profile(ctx context.Context, symbol string) (*models.MCompanyProfile, error) {
	var profile models.MCompanyProfile
	if err := c.do(ctx, "profile", http.MethodGet, "/api/profile", url.Values{"symbol": {symbol}}, nil, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// -----------------------------------------------------------------------------

func (c *Client) Quote(ctx context.Context, symbol string) (*models.MQuote, error) {
	var quote models.MQuote
	if err := c.do(ctx, "quote", http.MethodGet, "/api/quote", url.Values{"symbol": {symbol}}, nil, &quote); err != nil {
		return nil, err
	}
	return &quote, nil
}

// -----------------------------------------------------------------------------

func (c *Client) Candles(ctx context.Context, symbol string) ([]models.MCandle, error) {
	var candles []models.MCandle
	if err := c.do(ctx, "candles", http.MethodGet, "/api/candles", url.Values{"symbol": {symbol}}, nil, &candles); err != nil {
		return nil, err
	}
	if candles == nil {
		candles = []models.MCandle{}
	}
	return candles, nil
}

// -----------------------------------------------------------------------------

// Market returns the latest index snapshot held by the server.
func (c *Client) Market(ctx context.Context) (*models.MMarketSnapshot, error) {
	var snap models.MMarketSnapshot
	if err := c.do(ctx, "market", http.MethodGet, "/api/market", nil, nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// -----------------------------------------------------------------------------

func (c *Client) News(ctx context.Context) ([]models.MNewsItem, error) {
	var items []models.MNewsItem
	if err := c.do(ctx, "news", http.MethodGet, "/api/news", nil, nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// -----------------------------------------------------------------------------

// LogoURL routes a remote logo through the server's image proxy. Empty input
// stays empty.
func (c *Client) LogoURL(raw string) string {
	if raw == "" {
		return ""
	}
	return c.BaseURL + "/api/logo?" + url.Values{"url": {raw}}.Encode()
}

// -----------------------------------------------------------------------------
// Wishlist
// -----------------------------------------------------------------------------

func (c *Client) ListWishlist(ctx context.Context) ([]models.MWishlistEntry, error) {
	var entries []models.MWishlistEntry
	if err := c.do(ctx, "wishlist", http.MethodGet, "/api/wishlist", nil, nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// -----------------------------------------------------------------------------

func (c *Client) AddWishlist(ctx context.Context, symbol string) (*models.MWishlistEntry, error) {
	var resp models.MWishlistAddResponse
	req := models.MWishlistRequest{Ticker: symbol}
	if err := c.do(ctx, "wishlist", http.MethodPost, "/api/wishlist", nil, req, &resp); err != nil {
		return nil, err
	}
	if resp.Data.TickerSymbol == "" {
		resp.Data.TickerSymbol = strings.ToUpper(symbol)
	}
	return &resp.Data, nil
}

// -----------------------------------------------------------------------------

func (c *Client) RemoveWishlist(ctx context.Context, symbol string) error {
	req := models.MWishlistRequest{Ticker: symbol}
	return c.do(ctx, "wishlist", http.MethodDelete, "/api/wishlist", nil, req, nil)
}
