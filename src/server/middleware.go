package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"stock-dashboard/src/auth"
	"stock-dashboard/src/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	headerRequestID = "X-Request-ID"
	ctxUserKey      = "user"
)

// -----------------------------------------------------------------------------

// requestID tags every request so log lines and error bodies can be correlated.
func (s *DashboardServer) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(headerRequestID)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		c.Set(headerRequestID, id)
		c.Header(headerRequestID, id)
		c.Next()
	}
}

// -----------------------------------------------------------------------------

func (s *DashboardServer) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		// Query strings are left out: logo URLs can be long and carry tokens.
		s.Logger.Debug("%s %s %d %v [%s]", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start), c.GetString(headerRequestID))
	}
}

// -----------------------------------------------------------------------------

// cors allows the configured origins. A "*" entry allows any origin without credentials.
func (s *DashboardServer) cors() gin.HandlerFunc {
	allowAll := false
	allowed := make(map[string]bool, len(s.Config.CorsOrigins))
	for _, o := range s.Config.CorsOrigins {
		if o == "*" {
			allowAll = true
		}
		allowed[strings.TrimRight(o, "/")] = true
	}

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		switch {
		case allowAll:
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		case origin != "" && allowed[origin]:
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
			c.Writer.Header().Add("Vary", "Origin")
		}
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// -----------------------------------------------------------------------------

// requireUser resolves the bearer token to a user or rejects the request with 401.
func (s *DashboardServer) requireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token := ""
		if strings.HasPrefix(header, "Bearer ") {
			token = strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.MErrorResponse{Error: "No token provided. You must be logged in."})
			return
		}

		user, err := s.deps.Verifier.Verify(c.Request.Context(), token)
		if err != nil || user == nil {
			if err != nil && !errors.Is(err, auth.ErrInvalidToken) {
				s.Logger.Warning("Token verification failed [%s]: %v", c.GetString(headerRequestID), err)
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.MErrorResponse{Error: "Invalid or expired token."})
			return
		}

		c.Set(ctxUserKey, user)
		c.Next()
	}
}

// -----------------------------------------------------------------------------

func currentUser(c *gin.Context) *models.MUser {
	if v, ok := c.Get(ctxUserKey); ok {
		if u, ok := v.(*models.MUser); ok {
			return u
		}
	}
	return nil
}
