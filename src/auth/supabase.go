package auth

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
	"time"

	"stock-dashboard/src/helpers"
	"stock-dashboard/src/logger"
	"stock-dashboard/src/models"
)

// ErrInvalidToken is returned when the auth service rejects a token.
var ErrInvalidToken = errors.New("invalid or expired token")

// ErrInvalidCredentials is returned when sign in fails.
var ErrInvalidCredentials = errors.New("invalid login credentials")

// -----------------------------------------------------------------------------

// SupabaseClient talks to the GoTrue and PostgREST endpoints of a Supabase
// project with the project's anon key.
type SupabaseClient struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
	Logger  *logger.Logger
}

// -----------------------------------------------------------------------------

func NewSupabaseClient(cfg *models.MConfig, log *logger.Logger) *SupabaseClient {
	timeout := time.Duration(cfg.Network.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &SupabaseClient{
		BaseURL: strings.TrimRight(cfg.Auth.SupabaseURL, "/"),
		APIKey:  cfg.Auth.SupabaseKey,
		Client:  &http.Client{Timeout: timeout},
		Logger:  log,
	}
}

// -----------------------------------------------------------------------------

type supabaseUser struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	UserMetadata struct {
		Username string `json:"username"`
	} `json:"user_metadata"`
}

func (u supabaseUser) toModel() models.MUser {
	return models.MUser{ID: u.ID, Email: u.Email, Username: u.UserMetadata.Username}
}

type supabaseSession struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	ExpiresIn    int64        `json:"expires_in"`
	User         supabaseUser `json:"user"`
}

// -----------------------------------------------------------------------------

func (c *SupabaseClient) do(ctx context.Context, method, path, bearer string, body interface{}, out interface{}) (int, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return 0, err
	}
	req.Header.Set("apikey", c.APIKey)
	if bearer == "" {
		bearer = c.APIKey
	}
	req.Header.Set("Authorization", "Bearer "+bearer)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return 0, helpers.NewTransportError("auth", 0, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, helpers.NewTransportError("auth", resp.StatusCode, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, helpers.NewTransportError("auth", resp.StatusCode, errors.New(authErrorMessage(data)))
	}
	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return resp.StatusCode, fmt.Errorf("auth: json unmarshal failed: %w", err)
		}
	}
	return resp.StatusCode, nil
}

// -----------------------------------------------------------------------------

// authErrorMessage pulls the human readable message out of a GoTrue error body.
func authErrorMessage(data []byte) string {
	var body struct {
		Msg              string `json:"msg"`
		Message          string `json:"message"`
		ErrorDescription string `json:"error_description"`
	}
	if json.Unmarshal(data, &body) == nil {
		for _, m := range []string{body.ErrorDescription, body.Msg, body.Message} {
			if m != "" {
				return m
			}
		}
	}
	return strings.TrimSpace(string(data))
}

// -----------------------------------------------------------------------------

// Verify resolves an access token to its user.
func (c *SupabaseClient) Verify(ctx context.Context, token string) (*models.MUser, error) {
	var user supabaseUser
	status, err := c.do(ctx, http.MethodGet, "/auth/v1/user", token, nil, &user)
	if err != nil {
		if status == http.StatusUnauthorized || status == http.StatusForbidden {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	if user.ID == "" {
		return nil, ErrInvalidToken
	}
	u := user.toModel()
	return &u, nil
}

// -----------------------------------------------------------------------------

// SignIn accepts an email or a username. Usernames are resolved to the email
// stored in the profiles table first.
func (c *SupabaseClient) SignIn(ctx context.Context, identifier, password string) (*models.MSession, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return nil, helpers.NewValidationError("Please enter your email/username and password.")
	}

	email := identifier
	if !strings.Contains(identifier, "@") {
		found, err := c.LookupEmail(ctx, identifier)
		if err != nil {
			return nil, err
		}
		email = found
	}

	var sess supabaseSession
	status, err := c.do(ctx, http.MethodPost, "/auth/v1/token?grant_type=password", "",
		map[string]string{"email": email, "password": password}, &sess)
	if err != nil {
		if status == http.StatusBadRequest || status == http.StatusUnauthorized {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	return sess.toModel(time.Now()), nil
}

// -----------------------------------------------------------------------------

func (s supabaseSession) toModel(now time.Time) *models.MSession {
	out := &models.MSession{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		User:         s.User.toModel(),
	}
	if s.ExpiresIn > 0 {
		out.ExpiresAt = now.Add(time.Duration(s.ExpiresIn) * time.Second)
	}
	return out
}

// -----------------------------------------------------------------------------

// LookupEmail finds the email registered for a username.
func (c *SupabaseClient) LookupEmail(ctx context.Context, username string) (string, error) {
	path := "/rest/v1/profiles?select=email&username=eq." + url.QueryEscape(username)
	var rows []struct {
		Email string `json:"email"`
	}
	if _, err := c.do(ctx, http.MethodGet, path, "", nil, &rows); err != nil {
		return "", err
	}
	if len(rows) == 0 || rows[0].Email == "" {
		return "", ErrInvalidCredentials
	}
	return rows[0].Email, nil
}

// -----------------------------------------------------------------------------

// SignUp registers a new account with the username stored as user metadata.
// A session is returned only when the project does not require email confirmation.
func (c *SupabaseClient) SignUp(ctx context.Context, username, email, password string) (*models.MSession, error) {
	if err := ValidateSignUp(username, email, password); err != nil {
		return nil, err
	}

	var sess supabaseSession
	_, err := c.do(ctx, http.MethodPost, "/auth/v1/signup", "", map[string]interface{}{
		"email":    strings.TrimSpace(email),
		"password": password,
		"data":     map[string]string{"username": strings.TrimSpace(username)},
	}, &sess)
	if err != nil {
		return nil, err
	}
	if sess.AccessToken == "" {
		return nil, nil
	}
	return sess.toModel(time.Now()), nil
}

// -----------------------------------------------------------------------------

func (c *SupabaseClient) SignOut(ctx context.Context, token string) error {
	_, err := c.do(ctx, http.MethodPost, "/auth/v1/logout", token, nil, nil)
	return err
}

// -----------------------------------------------------------------------------

// ValidateSignUp applies the sign-up form rules: a username of at least three
// characters, an email, and a password that is at least eight characters long
// or contains a special character.
func ValidateSignUp(username, email, password string) error {
	if len([]rune(strings.TrimSpace(username))) < 3 {
		return helpers.NewValidationError("Username must be at least 3 characters long.")
	}
	if !strings.Contains(email, "@") {
		return helpers.NewValidationError("Please enter a valid email address.")
	}
	if len(password) < 8 && !strings.ContainsAny(password, specialChars) {
		return helpers.NewValidationError("Password must be at least 8 characters long or contain a special character.")
	}
	return nil
}

const specialChars = "!@#$%^&*(),.?\":{}|<>"
