package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"flowtechs/internal/database"
	"flowtechs/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSourceRepository(t *testing.T) *SourceRepository {
	t.Helper()
	db, err := database.NewInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewSourceRepository(db.DB)
}

func shopifySource(userID, shop string, createdAt time.Time) *models.Source {
	return &models.Source{
		Name:             shop,
		SourceType:       models.SourceTypeShopify,
		Credentials:      models.ShopifyCredentials{Shop: shop, AccessToken: "tok"}.ToMap(),
		ConnectionStatus: models.ConnectionStatusActive,
		UserID:           userID,
		ShopDomain:       &shop,
		CreatedAt:        createdAt,
		UpdatedAt:        createdAt,
	}
}

func TestSourceRepository_CreateDuplicateShop(t *testing.T) {
	repo := newTestSourceRepository(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, repo.Create(ctx, shopifySource("u1", "a.myshopify.com", now)))

	err := repo.Create(ctx, shopifySource("u1", "a.myshopify.com", now))
	assert.True(t, errors.Is(err, ErrDuplicateShop))
}

func TestSourceRepository_FindByShopAndCredentialsRoundTrip(t *testing.T) {
	repo := newTestSourceRepository(t)
	ctx := context.Background()

	src := shopifySource("u1", "a.myshopify.com", time.Now())
	require.NoError(t, repo.Create(ctx, src))
	require.NotEmpty(t, src.ID)

	found, err := repo.FindByShop(ctx, "u1", models.SourceTypeShopify, "a.myshopify.com")
	require.NoError(t, err)
	assert.Equal(t, src.ID, found.ID)

	creds, ok := models.ShopifyCredentialsFromMap(found.Credentials)
	require.True(t, ok)
	assert.Equal(t, "tok", creds.AccessToken)

	_, err = repo.FindByShop(ctx, "u2", models.SourceTypeShopify, "a.myshopify.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSourceRepository_ListByUserNewestFirst(t *testing.T) {
	repo := newTestSourceRepository(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	require.NoError(t, repo.Create(ctx, shopifySource("u1", "old.myshopify.com", base)))
	require.NoError(t, repo.Create(ctx, shopifySource("u1", "new.myshopify.com", base.Add(time.Minute))))
	require.NoError(t, repo.Create(ctx, shopifySource("u2", "other.myshopify.com", base)))

	sources, err := repo.ListByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, sources, 2)
	assert.Equal(t, "new.myshopify.com", *sources[0].ShopDomain)
	assert.Equal(t, "old.myshopify.com", *sources[1].ShopDomain)
}

func TestSourceRepository_UpdateScopedToOwner(t *testing.T) {
	repo := newTestSourceRepository(t)
	ctx := context.Background()

	src := shopifySource("u1", "a.myshopify.com", time.Now())
	require.NoError(t, repo.Create(ctx, src))

	err := repo.Update(ctx, "u2", src.ID, &models.Source{Name: "stolen"}, "name")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, repo.Update(ctx, "u1", src.ID, &models.Source{Name: "Renamed"}, "name"))
	found, err := repo.FindByID(ctx, "u1", src.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", found.Name)
	assert.Equal(t, "a.myshopify.com", *found.ShopDomain)
}

func TestSourceRepository_UpdateByShopReplacesCredentials(t *testing.T) {
	repo := newTestSourceRepository(t)
	ctx := context.Background()

	src := shopifySource("u1", "a.myshopify.com", time.Now())
	src.ConnectionStatus = models.ConnectionStatusInactive
	require.NoError(t, repo.Create(ctx, src))

	updated, err := repo.UpdateByShop(ctx, "u1", models.SourceTypeShopify, "a.myshopify.com", &models.Source{
		Name:             "Store A",
		Credentials:      models.ShopifyCredentials{Shop: "a.myshopify.com", AccessToken: "new-token"}.ToMap(),
		ConnectionStatus: models.ConnectionStatusActive,
		UpdatedAt:        time.Now(),
	}, "name", "credentials", "connection_status", "updated_at")
	require.NoError(t, err)

	assert.Equal(t, src.ID, updated.ID)
	assert.Equal(t, models.ConnectionStatusActive, updated.ConnectionStatus)
	assert.Equal(t, "new-token", updated.Credentials["accessToken"])

	_, err = repo.UpdateByShop(ctx, "u1", models.SourceTypeShopify, "missing.myshopify.com", &models.Source{Name: "x"}, "name")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSourceRepository_SetStatusAndDelete(t *testing.T) {
	repo := newTestSourceRepository(t)
	ctx := context.Background()

	src := shopifySource("u1", "a.myshopify.com", time.Now())
	require.NoError(t, repo.Create(ctx, src))

	require.NoError(t, repo.SetStatus(ctx, src.ID, models.ConnectionStatusInactive, time.Now()))
	found, err := repo.FindByIDUnscoped(ctx, src.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ConnectionStatusInactive, found.ConnectionStatus)

	assert.ErrorIs(t, repo.Delete(ctx, "u2", src.ID), ErrNotFound)
	require.NoError(t, repo.Delete(ctx, "u1", src.ID))
	_, err = repo.FindByID(ctx, "u1", src.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestIsUniqueViolation(t *testing.T) {
	assert.False(t, IsUniqueViolation(nil))
	assert.True(t, IsUniqueViolation(errors.New("UNIQUE constraint failed: sources.user_id")))
	assert.True(t, IsUniqueViolation(errors.New(`ERROR: duplicate key value violates unique constraint "idx_sources_owner_shop" (SQLSTATE 23505)`)))
	assert.False(t, IsUniqueViolation(errors.New("connection refused")))
}
