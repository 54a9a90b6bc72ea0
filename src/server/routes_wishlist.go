package server

import (
	"errors"
	"net/http"
	"regexp"
	"strings"

	"stock-dashboard/src/helpers"
	"stock-dashboard/src/models"

	"github.com/gin-gonic/gin"
)

// tickerPattern accepts exchange tickers such as AAPL, BRK.B, ^GSPC or RDS-A.
var tickerPattern = regexp.MustCompile(`^[A-Za-z0-9.\-^=]{1,20}$`)

// -----------------------------------------------------------------------------

func (s *DashboardServer) getWishlist(c *gin.Context) {
	user := currentUser(c)
	entries, err := s.deps.Store.List(c.Request.Context(), user.ID)
	if err != nil {
		s.Logger.Error("Listing wishlist for %s failed: %v", user.ID, err)
		c.JSON(http.StatusInternalServerError, models.MErrorResponse{Error: "Failed to fetch wishlist."})
		return
	}
	c.JSON(http.StatusOK, entries)
}

// -----------------------------------------------------------------------------

func (s *DashboardServer) postWishlist(c *gin.Context) {
	user := currentUser(c)
	ticker, ok := bindTicker(c)
	if !ok {
		return
	}

	entry, err := s.deps.Store.Add(c.Request.Context(), user.ID, ticker)
	if err != nil {
		if errors.Is(err, helpers.ErrDuplicate) {
			c.JSON(http.StatusConflict, models.MErrorResponse{Error: "Ticker already in wishlist."})
			return
		}
		s.Logger.Error("Adding %s to wishlist for %s failed: %v", ticker, user.ID, err)
		c.JSON(http.StatusInternalServerError, models.MErrorResponse{Error: "Failed to add ticker to wishlist."})
		return
	}

	c.JSON(http.StatusCreated, models.MWishlistAddResponse{Message: "Ticker added to wishlist!", Data: *entry})
}

// -----------------------------------------------------------------------------

func (s *DashboardServer) deleteWishlist(c *gin.Context) {
	user := currentUser(c)
	ticker, ok := bindTicker(c)
	if !ok {
		return
	}

	if err := s.deps.Store.Remove(c.Request.Context(), user.ID, ticker); err != nil {
		s.Logger.Error("Removing %s from wishlist for %s failed: %v", ticker, user.ID, err)
		c.JSON(http.StatusInternalServerError, models.MErrorResponse{Error: "Failed to remove ticker from wishlist."})
		return
	}

	c.JSON(http.StatusOK, models.MMessageResponse{Message: "Ticker removed from wishlist."})
}

// -----------------------------------------------------------------------------

// bindTicker reads {"ticker": "..."} from the body, falling back to the
// ticker query parameter for clients that cannot send a DELETE body.
func bindTicker(c *gin.Context) (string, bool) {
	var req models.MWishlistRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.MErrorResponse{Error: "Invalid request body."})
			return "", false
		}
	}
	ticker := strings.TrimSpace(req.Ticker)
	if ticker == "" {
		ticker = strings.TrimSpace(c.Query("ticker"))
	}
	if ticker == "" {
		c.JSON(http.StatusBadRequest, models.MErrorResponse{Error: "Ticker symbol is required."})
		return "", false
	}
	if !tickerPattern.MatchString(ticker) {
		c.JSON(http.StatusBadRequest, models.MErrorResponse{Error: "Invalid ticker symbol."})
		return "", false
	}
	return strings.ToUpper(ticker), true
}
