package models

import "time"

// MWishlistEntry is one stored wishlist row.
type MWishlistEntry struct {
	ID           int64     `json:"id"`
	UserID       string    `json:"-"`
	TickerSymbol string    `json:"ticker_symbol"`
	CreatedAt    time.Time `json:"created_at"`
}

type MWishlistRequest struct {
	Ticker string `json:"ticker"`
}

type MWishlistAddResponse struct {
	Message string         `json:"message"`
	Data    MWishlistEntry `json:"data"`
}

// MUser is the identity resolved from a bearer token.
type MUser struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username,omitempty"`
}

// MSession is what the auth service hands back after sign in.
type MSession struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         MUser     `json:"user"`
}

// Expired reports whether the access token is past its expiry. A zero expiry never expires.
func (s *MSession) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// MErrorResponse is the JSON error body used by every API route.
type MErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type MMessageResponse struct {
	Message string `json:"message"`
}
