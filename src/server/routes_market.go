package server

import (
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"stock-dashboard/src/helpers"
	"stock-dashboard/src/models"

	"github.com/gin-gonic/gin"
)

// maxLogoBytes bounds proxied images.
const maxLogoBytes = 5 << 20

// -----------------------------------------------------------------------------

func (s *DashboardServer) getSearch(c *gin.Context) {
	c.Header("Cache-Control", "no-store")

	q := strings.TrimSpace(c.Query("q"))
	if len([]rune(q)) < 2 {
		c.JSON(http.StatusOK, models.MSearchResponse{Result: []models.MSearchCandidate{}})
		return
	}

	results, err := s.deps.Symbols.Search(c.Request.Context(), q)
	if err != nil {
		if helpers.IsCancellation(err) {
			return
		}
		s.Logger.Error("Search for %q failed [%s]: %v", q, c.GetString(headerRequestID), err)
		c.JSON(http.StatusInternalServerError, models.MSearchResponse{Result: []models.MSearchCandidate{}, Error: "Server error"})
		return
	}

	c.JSON(http.StatusOK, models.MSearchResponse{Count: len(results), Result: results})
}

// -----------------------------------------------------------------------------

func (s *DashboardServer) getProfile(c *gin.Context) {
	symbol, ok := requireSymbol(c)
	if !ok {
		return
	}
	raw, err := s.deps.Symbols.Profile(c.Request.Context(), symbol)
	if err != nil {
		s.upstreamError(c, "profile", symbol, err)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", raw)
}

// -----------------------------------------------------------------------------

func (s *DashboardServer) getQuote(c *gin.Context) {
	symbol, ok := requireSymbol(c)
	if !ok {
		return
	}
	raw, err := s.deps.Symbols.Quote(c.Request.Context(), symbol)
	if err != nil {
		s.upstreamError(c, "quote", symbol, err)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", raw)
}

// -----------------------------------------------------------------------------

func (s *DashboardServer) getCandles(c *gin.Context) {
	symbol, ok := requireSymbol(c)
	if !ok {
		return
	}
	candles, err := s.deps.Charts.Candles(c.Request.Context(), symbol)
	if err != nil {
		if errors.Is(err, helpers.ErrNotFound) {
			c.JSON(http.StatusNotFound, models.MErrorResponse{Error: "No candle data"})
			return
		}
		s.upstreamError(c, "candles", symbol, err)
		return
	}
	if candles == nil {
		candles = []models.MCandle{}
	}
	c.JSON(http.StatusOK, candles)
}

// -----------------------------------------------------------------------------

// getLogo streams a remote company logo so the browser never hits the CDN
// with the page's origin.
func (s *DashboardServer) getLogo(c *gin.Context) {
	raw := c.Query("url")
	if raw == "" {
		c.JSON(http.StatusBadRequest, models.MErrorResponse{Error: "Missing url"})
		return
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		c.JSON(http.StatusBadRequest, models.MErrorResponse{Error: "Invalid url"})
		return
	}

	resp, err := s.deps.Network.Open(c.Request.Context(), u.String())
	if err != nil {
		if !helpers.IsCancellation(err) {
			s.Logger.Warning("Logo fetch failed for %s: %v", u.Host, err)
		}
		c.JSON(http.StatusInternalServerError, models.MErrorResponse{Error: "Error fetching image."})
		return
	}
	defer resp.Body.Close()

	if resp.ContentLength > maxLogoBytes {
		c.JSON(http.StatusBadGateway, models.MErrorResponse{Error: "Image too large."})
		return
	}

	// Chunked responses carry no length, so the cap is enforced on the read.
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxLogoBytes+1))
	if err != nil {
		s.Logger.Warning("Logo read failed for %s: %v", u.Host, err)
		c.JSON(http.StatusInternalServerError, models.MErrorResponse{Error: "Error fetching image."})
		return
	}
	if len(data) > maxLogoBytes {
		s.Logger.Warning("Logo from %s exceeds %d bytes", u.Host, maxLogoBytes)
		c.JSON(http.StatusBadGateway, models.MErrorResponse{Error: "Image too large."})
		return
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	if !strings.HasPrefix(strings.ToLower(contentType), "image/") {
		s.Logger.Warning("Logo from %s is %s, not an image", u.Host, contentType)
		c.JSON(http.StatusBadGateway, models.MErrorResponse{Error: "Not an image."})
		return
	}

	c.Header("Cache-Control", "public, max-age=86400")
	c.Data(http.StatusOK, contentType, data)
}

// -----------------------------------------------------------------------------

func (s *DashboardServer) getMarket(c *gin.Context) {
	c.JSON(http.StatusOK, s.deps.Market.Snapshot(c.Request.Context()))
}

// -----------------------------------------------------------------------------

func (s *DashboardServer) getNews(c *gin.Context) {
	items, err := s.deps.Market.News(c.Request.Context())
	if err != nil && items == nil {
		s.Logger.Error("News unavailable [%s]: %v", c.GetString(headerRequestID), err)
		c.JSON(http.StatusBadGateway, models.MErrorResponse{Error: "Failed to fetch news"})
		return
	}
	c.JSON(http.StatusOK, items)
}

// -----------------------------------------------------------------------------

func (s *DashboardServer) getHealth(c *gin.Context) {
	s.stateMutex.RLock()
	connections := len(s.clients)
	var timestamp int64
	if s.latestState != nil {
		timestamp = s.latestState.Timestamp
	}
	s.stateMutex.RUnlock()

	storeStatus := "ok"
	if err := s.deps.Store.Ping(c.Request.Context()); err != nil {
		storeStatus = "unavailable"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":        "ok",
		"store":         storeStatus,
		"connections":   connections,
		"latest_update": timestamp,
	})
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

func requireSymbol(c *gin.Context) (string, bool) {
	symbol := strings.ToUpper(strings.TrimSpace(c.Query("symbol")))
	if symbol == "" {
		c.JSON(http.StatusBadRequest, models.MErrorResponse{Error: "Missing symbol"})
		return "", false
	}
	return symbol, true
}

// -----------------------------------------------------------------------------

// upstreamError maps a data-source failure to a response. Upstream 404 and
// 429 keep their meaning; everything else is a bad gateway.
func (s *DashboardServer) upstreamError(c *gin.Context, dataset, symbol string, err error) {
	if helpers.IsCancellation(err) {
		c.Abort()
		return
	}
	s.Logger.Error("Fetching %s for %s failed [%s]: %v", dataset, symbol, c.GetString(headerRequestID), err)

	status := http.StatusBadGateway
	switch helpers.StatusCode(err) {
	case http.StatusNotFound:
		status = http.StatusNotFound
	case http.StatusTooManyRequests:
		status = http.StatusTooManyRequests
	}
	if errors.Is(err, helpers.ErrNotFound) {
		status = http.StatusNotFound
	}
	c.JSON(status, models.MErrorResponse{Error: "Failed to fetch " + dataset})
}
