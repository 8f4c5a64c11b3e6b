package validation

import (
	"context"
	"errors"
	"fmt"

	"flowtechs/internal/logger"
	"flowtechs/internal/models"
	"flowtechs/internal/services/shopify"
)

var (
	// ErrUnreadableCredentials means the stored blob lacks a shop or token.
	ErrUnreadableCredentials = errors.New("credentials missing shop or access token")
	// ErrRejected means Shopify refused the stored token.
	ErrRejected = errors.New("credentials rejected by shopify")
)

// Validator checks that a source's stored credentials still work.
type Validator struct {
	oauth  *shopify.OAuthService
	logger *logger.Logger
}

func New(oauth *shopify.OAuthService, logger *logger.Logger) *Validator {
	return &Validator{
		oauth:  oauth,
		logger: logger,
	}
}

// ValidateSource calls the Admin API with the source's token. A 401 or 403
// is reported as ErrRejected; transport failures are returned as they are.
func (v *Validator) ValidateSource(ctx context.Context, source *models.Source) (*shopify.Shop, error) {
	creds, ok := models.ShopifyCredentialsFromMap(source.Credentials)
	if !ok {
		return nil, ErrUnreadableCredentials
	}

	v.logger.Debug("Validating credentials of source %s for %s", source.ID, creds.Shop)

	shop, err := v.oauth.NewClient(creds.Shop, creds.AccessToken).GetShopInfo(ctx)
	if err != nil {
		if shopify.IsUnauthorized(err) {
			return nil, fmt.Errorf("%w: %v", ErrRejected, err)
		}
		return nil, err
	}
	return shop, nil
}
