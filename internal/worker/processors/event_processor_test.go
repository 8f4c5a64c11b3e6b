package processors

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"flowtechs/internal/config"
	"flowtechs/internal/events"
	"flowtechs/internal/logger"
	"flowtechs/internal/metrics"
	"flowtechs/internal/models"
	"flowtechs/internal/repository"
	"flowtechs/internal/services/shopify"
	"flowtechs/internal/services/shopify/shopifytest"
	"flowtechs/internal/worker/processors/validation"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	sources  map[string]*models.Source
	statuses map[string]models.ConnectionStatus
	loadErr  error
}

func (s *fakeStore) SourceForEvent(_ context.Context, id string) (*models.Source, error) {
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	src, ok := s.sources[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return src, nil
}

func (s *fakeStore) MarkStatus(_ context.Context, id string, status models.ConnectionStatus) error {
	s.statuses[id] = status
	return nil
}

func newTestProcessor(t *testing.T, store *fakeStore) (*EventProcessor, *shopifytest.Server, *metrics.Metrics) {
	t.Helper()

	server := shopifytest.NewServer()
	t.Cleanup(server.Close)

	cfg := &config.Config{ShopifyAPIKey: "key", ShopifyAPISecret: "secret", AppURL: "http://localhost:3000"}
	oauth := shopify.NewOAuthService(cfg, logger.NewNop(), shopify.WithShopURL(server.ShopURL))
	m := metrics.New()

	return NewEventProcessor(store, validation.New(oauth, logger.NewNop()), m, logger.NewNop()), server, m
}

func newStore(sources ...*models.Source) *fakeStore {
	store := &fakeStore{
		sources:  make(map[string]*models.Source),
		statuses: make(map[string]models.ConnectionStatus),
	}
	for _, s := range sources {
		store.sources[s.ID] = s
	}
	return store
}

func shopifySource(id, token string) *models.Source {
	return &models.Source{
		ID:               id,
		SourceType:       models.SourceTypeShopify,
		Credentials:      models.ShopifyCredentials{Shop: "a.myshopify.com", AccessToken: token}.ToMap(),
		ConnectionStatus: models.ConnectionStatusActive,
	}
}

func TestProcess_VerifiedTokenKeepsStatus(t *testing.T) {
	store := newStore(shopifySource("s1", "good"))
	ep, server, m := newTestProcessor(t, store)

	err := ep.Process(context.Background(), events.Event{Type: events.SourceConnected, SourceID: "s1"})
	require.NoError(t, err)

	assert.Empty(t, store.statuses)
	assert.Equal(t, "good", server.LastShopHeader)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.WorkerEvents.WithLabelValues("source.connected", "verified")))
}

func TestProcess_RejectedTokenDeactivates(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		store := newStore(shopifySource("s1", "revoked"))
		ep, server, m := newTestProcessor(t, store)
		server.ShopStatus = status

		err := ep.Process(context.Background(), events.Event{Type: events.SourceCredentialsUpdated, SourceID: "s1"})
		require.NoError(t, err)

		assert.Equal(t, models.ConnectionStatusInactive, store.statuses["s1"])
		assert.Equal(t, float64(1), testutil.ToFloat64(m.CredentialFailures))
		assert.Equal(t, float64(1), testutil.ToFloat64(m.WorkerEvents.WithLabelValues("source.credentials_updated", "deactivated")))
	}
}

func TestProcess_ServerErrorLeavesStatus(t *testing.T) {
	store := newStore(shopifySource("s1", "tok"))
	ep, server, m := newTestProcessor(t, store)
	server.ShopStatus = http.StatusInternalServerError

	err := ep.Process(context.Background(), events.Event{Type: events.SourceConnected, SourceID: "s1"})
	require.Error(t, err)

	assert.Empty(t, store.statuses)
	assert.Equal(t, float64(0), testutil.ToFloat64(m.CredentialFailures))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.WorkerEvents.WithLabelValues("source.connected", "error")))
}

func TestProcess_UnreadableCredentialsDeactivate(t *testing.T) {
	src := shopifySource("s1", "")
	store := newStore(src)
	ep, server, _ := newTestProcessor(t, store)

	require.NoError(t, ep.Process(context.Background(), events.Event{Type: events.SourceConnected, SourceID: "s1"}))

	assert.Equal(t, models.ConnectionStatusInactive, store.statuses["s1"])
	_, shopRequests := server.Counts()
	assert.Zero(t, shopRequests)
}

func TestProcess_SkipsAndLogs(t *testing.T) {
	custom := &models.Source{ID: "c1", SourceType: models.SourceTypeCustom}
	store := newStore(custom)
	ep, server, m := newTestProcessor(t, store)

	ctx := context.Background()
	require.NoError(t, ep.Process(ctx, events.Event{Type: events.SourceConnected, SourceID: "missing"}))
	require.NoError(t, ep.Process(ctx, events.Event{Type: events.SourceConnected, SourceID: "c1"}))
	require.NoError(t, ep.Process(ctx, events.Event{Type: events.SourceDeleted, SourceID: "s1", Shop: "a.myshopify.com"}))
	require.NoError(t, ep.Process(ctx, events.Event{Type: "source.unknown", SourceID: "s1"}))

	_, shopRequests := server.Counts()
	assert.Zero(t, shopRequests)
	assert.Empty(t, store.statuses)
	assert.Equal(t, float64(2), testutil.ToFloat64(m.WorkerEvents.WithLabelValues("source.connected", "skipped")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.WorkerEvents.WithLabelValues("source.deleted", "logged")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.WorkerEvents.WithLabelValues("source.unknown", "ignored")))
}

func TestProcess_LoadFailure(t *testing.T) {
	store := newStore()
	store.loadErr = errors.New("connection refused")
	ep, _, _ := newTestProcessor(t, store)

	err := ep.Process(context.Background(), events.Event{Type: events.SourceConnected, SourceID: "s1"})
	assert.ErrorContains(t, err, "connection refused")
}
