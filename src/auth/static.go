package auth

import (
	"context"
	"crypto/subtle"
	"fmt"

	"stock-dashboard/src/interfaces"
	"stock-dashboard/src/logger"
	"stock-dashboard/src/models"
)

// StaticVerifier accepts a fixed set of tokens from the config. It is meant
// for local development and tests where no Supabase project is available.
type StaticVerifier struct {
	tokens map[string]string
}

// -----------------------------------------------------------------------------

func NewStaticVerifier(tokens map[string]string) *StaticVerifier {
	copied := make(map[string]string, len(tokens))
	for token, userID := range tokens {
		copied[token] = userID
	}
	return &StaticVerifier{tokens: copied}
}

// -----------------------------------------------------------------------------

func (v *StaticVerifier) Verify(_ context.Context, token string) (*models.MUser, error) {
	for known, userID := range v.tokens {
		if subtle.ConstantTimeCompare([]byte(known), []byte(token)) == 1 {
			return &models.MUser{ID: userID}, nil
		}
	}
	return nil, ErrInvalidToken
}

// -----------------------------------------------------------------------------

// NewVerifier builds the verifier named by auth.provider.
func NewVerifier(cfg *models.MConfig, log *logger.Logger) (interfaces.IAuthVerifier, error) {
	switch cfg.Auth.Provider {
	case "static":
		log.Warning("Using static bearer tokens; do not expose this server publicly")
		return NewStaticVerifier(cfg.Auth.StaticTokens), nil
	case "supabase", "":
		return NewSupabaseClient(cfg, log), nil
	default:
		return nil, fmt.Errorf("unsupported auth provider '%s'", cfg.Auth.Provider)
	}
}
