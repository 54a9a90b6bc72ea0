package interfaces

import (
	"context"

	"stock-dashboard/src/models"
)

// IAuthVerifier resolves a bearer token to the user it was issued for.
type IAuthVerifier interface {
	Verify(ctx context.Context, token string) (*models.MUser, error)
}
