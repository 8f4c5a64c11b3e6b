package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSource_RedactedMasksAccessToken(t *testing.T) {
	src := Source{
		Name:        "Test Store",
		Credentials: ShopifyCredentials{Shop: "a.myshopify.com", AccessToken: "shpat_1234567890"}.ToMap(),
	}

	out := src.Redacted()

	assert.Equal(t, "shpa********", out.Credentials["accessToken"])
	assert.Equal(t, "a.myshopify.com", out.Credentials["shop"])
	assert.Equal(t, "shpat_1234567890", src.Credentials["accessToken"], "original must not be mutated")
}

func TestSource_RedactedShortToken(t *testing.T) {
	src := Source{Credentials: map[string]interface{}{"accessToken": "abc"}}
	assert.Equal(t, "********", src.Redacted().Credentials["accessToken"])
}

func TestShopifyCredentialsFromMap(t *testing.T) {
	creds, ok := ShopifyCredentialsFromMap(map[string]interface{}{"shop": "a.myshopify.com", "accessToken": "tok"})
	assert.True(t, ok)
	assert.Equal(t, ShopifyCredentials{Shop: "a.myshopify.com", AccessToken: "tok"}, creds)

	_, ok = ShopifyCredentialsFromMap(map[string]interface{}{"shop": "a.myshopify.com"})
	assert.False(t, ok)

	_, ok = ShopifyCredentialsFromMap(map[string]interface{}{"shop": 42, "accessToken": "tok"})
	assert.False(t, ok)
}

func TestConnectionStatus_Valid(t *testing.T) {
	assert.True(t, ConnectionStatusActive.Valid())
	assert.True(t, ConnectionStatusConnected.Valid())
	assert.False(t, ConnectionStatus("ACTIVE").Valid())
}
