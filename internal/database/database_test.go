package database

import (
	"testing"

	"flowtechs/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsSQLite(t *testing.T) {
	assert.True(t, IsSQLite("sqlite://dev.db"))
	assert.False(t, IsSQLite("postgresql://localhost:5432/flowtechs"))
}

func TestNewInMemory_EnforcesShopUniqueness(t *testing.T) {
	db, err := NewInMemory()
	require.NoError(t, err)
	defer db.Close()

	shop := "a.myshopify.com"
	first := &models.Source{Name: "A", SourceType: models.SourceTypeShopify, UserID: "u1", ShopDomain: &shop}
	require.NoError(t, db.DB.Create(first).Error)

	dup := &models.Source{Name: "A again", SourceType: models.SourceTypeShopify, UserID: "u1", ShopDomain: &shop}
	assert.Error(t, db.DB.Create(dup).Error)

	otherUser := &models.Source{Name: "A", SourceType: models.SourceTypeShopify, UserID: "u2", ShopDomain: &shop}
	assert.NoError(t, db.DB.Create(otherUser).Error)
}

func TestNewInMemory_NullShopsDoNotCollide(t *testing.T) {
	db, err := NewInMemory()
	require.NoError(t, err)
	defer db.Close()

	for i := 0; i < 2; i++ {
		src := &models.Source{Name: "GA", SourceType: models.SourceTypeGoogleAnalytics, UserID: "u1"}
		require.NoError(t, db.DB.Create(src).Error)
	}
}
