package sources

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"flowtechs/internal/events"
	"flowtechs/internal/logger"
	"flowtechs/internal/metrics"
	"flowtechs/internal/models"
	"flowtechs/internal/repository"
	"flowtechs/internal/services/shopify"
)

// Service owns the source lifecycle: the Shopify connection flow, the
// connect-form duplicate check and plain CRUD. Every call is scoped to a user.
type Service struct {
	repo      *repository.SourceRepository
	oauth     *shopify.OAuthService
	publisher events.Publisher
	metrics   *metrics.Metrics
	logger    *logger.Logger
	now       func() time.Time
}

func NewService(
	repo *repository.SourceRepository,
	oauth *shopify.OAuthService,
	publisher events.Publisher,
	m *metrics.Metrics,
	logger *logger.Logger,
) *Service {
	return &Service{
		repo:      repo,
		oauth:     oauth,
		publisher: publisher,
		metrics:   m,
		logger:    logger,
		now:       time.Now,
	}
}

// OAuthCallback carries the verified callback parameters. UserID is empty when
// no session resolved.
type OAuthCallback struct {
	Shop   string
	Code   string
	UserID string
}

type ConnectInput struct {
	UserID      string
	Shop        string
	AccessToken string
	ShopName    string
}

type ConnectResult struct {
	Source  *models.Source
	Created bool
}

// CompleteOAuth runs the callback steps in order: token exchange, shop
// details, session check, upsert. Each failure is a *ConnectError.
func (s *Service) CompleteOAuth(ctx context.Context, cb OAuthCallback) (*ConnectResult, error) {
	if cb.Shop == "" || cb.Code == "" {
		return nil, &ConnectError{Code: CodeMissingParams}
	}
	if err := shopify.ValidateShopDomain(cb.Shop); err != nil {
		return nil, &ConnectError{Code: CodeInvalidShop, Err: err}
	}

	token, err := s.oauth.ExchangeCodeForToken(ctx, cb.Shop, cb.Code)
	if err != nil {
		if errors.Is(err, shopify.ErrNoAccessToken) {
			return nil, &ConnectError{Code: CodeNoAccessToken, Err: err}
		}
		return nil, &ConnectError{Code: CodeTokenExchange, Err: err}
	}

	shop, err := s.oauth.NewClient(cb.Shop, token.AccessToken).GetShopInfo(ctx)
	if err != nil {
		return nil, &ConnectError{Code: CodeShopInfo, Err: err}
	}

	if cb.UserID == "" {
		return nil, &ConnectError{Code: CodeUnauthenticated}
	}

	return s.ConnectShopify(ctx, ConnectInput{
		UserID:      cb.UserID,
		Shop:        cb.Shop,
		AccessToken: token.AccessToken,
		ShopName:    shop.Name,
	})
}

// ConnectShopify inserts the source, or on a unique violation replaces the
// credentials of the existing row and marks it active.
func (s *Service) ConnectShopify(ctx context.Context, in ConnectInput) (*ConnectResult, error) {
	now := s.now()
	name := in.ShopName
	if name == "" {
		name = strings.ToLower(in.Shop)
	}
	// Shop domains are case-insensitive; the unique index is not.
	shop := strings.ToLower(in.Shop)
	creds := models.ShopifyCredentials{Shop: shop, AccessToken: in.AccessToken}.ToMap()

	// A row deleted between the failed insert and the update is retried once.
	for attempt := 0; attempt < 2; attempt++ {
		source := &models.Source{
			Name:             name,
			SourceType:       models.SourceTypeShopify,
			Credentials:      creds,
			ConnectionStatus: models.ConnectionStatusActive,
			UserID:           in.UserID,
			ShopDomain:       &shop,
			CreatedAt:        now,
			UpdatedAt:        now,
		}

		err := s.repo.Create(ctx, source)
		if err == nil {
			s.logger.Info("Created Shopify source %s for %s", source.ID, shop)
			s.recordUpsert("created")
			s.publish(ctx, events.SourceConnected, source, true)
			return &ConnectResult{Source: source, Created: true}, nil
		}
		if !errors.Is(err, repository.ErrDuplicateShop) {
			return nil, &ConnectError{Code: CodeInsertFailed, Err: err}
		}

		updated, err := s.repo.UpdateByShop(ctx, in.UserID, models.SourceTypeShopify, shop, &models.Source{
			Name:             name,
			Credentials:      creds,
			ConnectionStatus: models.ConnectionStatusActive,
			UpdatedAt:        now,
		}, "name", "credentials", "connection_status", "updated_at")
		if err == nil {
			s.logger.Info("Reconnected Shopify source %s for %s", updated.ID, shop)
			s.recordUpsert("updated")
			s.publish(ctx, events.SourceConnected, updated, false)
			return &ConnectResult{Source: updated, Created: false}, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, &ConnectError{Code: CodeUpdateFailed, Err: err}
		}
	}

	return nil, &ConnectError{Code: CodeUnexpected, Err: errors.New("source changed concurrently")}
}

// CheckExisting normalizes and validates raw form input and looks up the
// user's source for that shop. existing is nil when there is none.
func (s *Service) CheckExisting(ctx context.Context, userID, rawShop string) (string, *models.Source, error) {
	shop := shopify.NormalizeShopDomain(rawShop)
	if err := shopify.ValidateShopDomain(shop); err != nil {
		return shop, nil, err
	}

	existing, err := s.repo.FindByShop(ctx, userID, models.SourceTypeShopify, shop)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return shop, nil, nil
		}
		return shop, nil, err
	}
	return shop, existing, nil
}

// ConnectIntent tells the connect form where to go next.
type ConnectIntent struct {
	Shop              string         `json:"shop"`
	RedirectURL       string         `json:"redirectUrl,omitempty"`
	Existing          *models.Source `json:"source,omitempty"`
	NeedsConfirmation bool           `json:"needsConfirmation"`
}

// PrepareConnect is the server side of the connect form. An existing source
// needs explicit confirmation before the OAuth redirect is handed out. The
// lookup is advisory; the unique index decides at callback time.
func (s *Service) PrepareConnect(ctx context.Context, userID, rawShop string, confirmReconnect bool) (*ConnectIntent, error) {
	shop, existing, err := s.CheckExisting(ctx, userID, rawShop)
	if err != nil {
		return nil, err
	}

	intent := &ConnectIntent{Shop: shop}
	if existing != nil {
		redacted := existing.Redacted()
		intent.Existing = &redacted
		if !confirmReconnect {
			intent.NeedsConfirmation = true
			return intent, nil
		}
	}
	intent.RedirectURL = "/api/shopify/auth?shop=" + url.QueryEscape(shop)
	return intent, nil
}

// UpdateShopifyCredentials replaces the credentials of a Shopify source and
// marks it connected.
func (s *Service) UpdateShopifyCredentials(ctx context.Context, userID, sourceID string, creds map[string]interface{}) error {
	source, err := s.repo.FindByID(ctx, userID, sourceID)
	if err != nil {
		return err
	}
	if source.SourceType != models.SourceTypeShopify {
		return ErrNotShopify
	}

	values := &models.Source{
		Credentials:      creds,
		ConnectionStatus: models.ConnectionStatusConnected,
		UpdatedAt:        s.now(),
	}
	columns := []string{"credentials", "connection_status", "updated_at"}

	if shop, ok := creds["shop"].(string); ok && shop != "" {
		if err := shopify.ValidateShopDomain(shop); err != nil {
			return err
		}
		shop = strings.ToLower(shop)
		creds = withShop(creds, shop)
		values.Credentials = creds
		values.ShopDomain = &shop
		columns = append(columns, "shop_domain")
	}

	if err := s.repo.Update(ctx, userID, sourceID, values, columns...); err != nil {
		return err
	}

	source.Credentials = creds
	s.publish(ctx, events.SourceCredentialsUpdated, source, false)
	return nil
}

// Create adds a source of any type. Shopify sources also record their shop
// domain so the uniqueness rule applies to them.
func (s *Service) Create(ctx context.Context, userID, name string, sourceType models.SourceType, creds map[string]interface{}) (*models.Source, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNameRequired
	}
	if !sourceType.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSourceType, sourceType)
	}

	now := s.now()
	source := &models.Source{
		Name:             name,
		SourceType:       sourceType,
		Credentials:      creds,
		ConnectionStatus: models.ConnectionStatusInactive,
		UserID:           userID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if sourceType == models.SourceTypeShopify {
		c, ok := models.ShopifyCredentialsFromMap(creds)
		if !ok {
			return nil, shopify.ErrMissingShop
		}
		if err := shopify.ValidateShopDomain(c.Shop); err != nil {
			return nil, err
		}
		shop := strings.ToLower(c.Shop)
		source.Credentials = withShop(creds, shop)
		source.ShopDomain = &shop
	}

	if err := s.repo.Create(ctx, source); err != nil {
		return nil, err
	}
	return source, nil
}

func (s *Service) Rename(ctx context.Context, userID, id, name string) (*models.Source, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNameRequired
	}
	if err := s.repo.Update(ctx, userID, id, &models.Source{Name: name, UpdatedAt: s.now()}, "name", "updated_at"); err != nil {
		return nil, err
	}

	source, err := s.repo.FindByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.SourceRenamed, source, false)
	return source, nil
}

func (s *Service) Get(ctx context.Context, userID, id string) (*models.Source, error) {
	return s.repo.FindByID(ctx, userID, id)
}

// List returns the user's sources, newest first.
func (s *Service) List(ctx context.Context, userID string) ([]models.Source, error) {
	return s.repo.ListByUser(ctx, userID)
}

func (s *Service) Delete(ctx context.Context, userID, id string) error {
	source, err := s.repo.FindByID(ctx, userID, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, userID, id); err != nil {
		return err
	}
	s.publish(ctx, events.SourceDeleted, source, false)
	return nil
}

// MarkStatus sets the connection status without an owner check. Only the
// worker calls it.
func (s *Service) MarkStatus(ctx context.Context, id string, status models.ConnectionStatus) error {
	return s.repo.SetStatus(ctx, id, status, s.now())
}

// SourceForEvent loads the source an event refers to, ignoring ownership.
func (s *Service) SourceForEvent(ctx context.Context, id string) (*models.Source, error) {
	return s.repo.FindByIDUnscoped(ctx, id)
}

// publish never fails the caller; the write has already happened.
func (s *Service) publish(ctx context.Context, eventType events.Type, source *models.Source, created bool) {
	event := events.Event{
		Type:      eventType,
		SourceID:  source.ID,
		UserID:    source.UserID,
		Created:   created,
		Timestamp: s.now().UTC(),
	}
	if source.ShopDomain != nil {
		event.Shop = *source.ShopDomain
	}

	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("Failed to publish %s for source %s: %v", eventType, source.ID, err)
		if s.metrics != nil {
			s.metrics.PublishFailures.Inc()
		}
	}
}

// withShop copies creds with the shop replaced so the caller's map is untouched.
func withShop(creds map[string]interface{}, shop string) map[string]interface{} {
	out := make(map[string]interface{}, len(creds))
	for k, v := range creds {
		out[k] = v
	}
	out["shop"] = shop
	return out
}

func (s *Service) recordUpsert(result string) {
	if s.metrics != nil {
		s.metrics.SourceUpserts.WithLabelValues(result).Inc()
	}
}
