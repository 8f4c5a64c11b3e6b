package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Source is a configured connection to an external data platform owned by a user.
// At most one row exists per (user_id, source_type, shop_domain); shop_domain is
// NULL for platforms without a shop, so those rows never collide.
type Source struct {
	ID               string                 `json:"id" gorm:"type:uuid;primaryKey"`
	Name             string                 `json:"name" gorm:"not null"`
	SourceType       SourceType             `json:"source_type" gorm:"not null;uniqueIndex:idx_sources_owner_shop,priority:2"`
	Credentials      map[string]interface{} `json:"credentials" gorm:"type:text;serializer:json"`
	ConnectionStatus ConnectionStatus       `json:"connection_status" gorm:"not null;default:inactive"`
	UserID           string                 `json:"user_id" gorm:"not null;index;uniqueIndex:idx_sources_owner_shop,priority:1"`
	ShopDomain       *string                `json:"shop_domain,omitempty" gorm:"uniqueIndex:idx_sources_owner_shop,priority:3"`
	CreatedAt        time.Time              `json:"created_at"`
	UpdatedAt        time.Time              `json:"updated_at"`
}

type SourceType string

const (
	SourceTypeShopify         SourceType = "shopify"
	SourceTypeGoogleAnalytics SourceType = "google_analytics"
	SourceTypeCustom          SourceType = "custom"
)

func (t SourceType) Valid() bool {
	switch t {
	case SourceTypeShopify, SourceTypeGoogleAnalytics, SourceTypeCustom:
		return true
	}
	return false
}

// ConnectionStatus keeps every value written by the different call sites.
// active/inactive come from the OAuth flow and credential checks,
// connected/disconnected from manual credential updates. They are not
// treated as interchangeable.
type ConnectionStatus string

const (
	ConnectionStatusActive       ConnectionStatus = "active"
	ConnectionStatusInactive     ConnectionStatus = "inactive"
	ConnectionStatusConnected    ConnectionStatus = "connected"
	ConnectionStatusDisconnected ConnectionStatus = "disconnected"
)

func (s ConnectionStatus) Valid() bool {
	switch s {
	case ConnectionStatusActive, ConnectionStatusInactive, ConnectionStatusConnected, ConnectionStatusDisconnected:
		return true
	}
	return false
}

func (Source) TableName() string {
	return "sources"
}

func (s *Source) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	return nil
}

// Redacted returns a copy safe to send to clients: the access token is masked.
func (s Source) Redacted() Source {
	out := s
	if s.Credentials == nil {
		return out
	}
	out.Credentials = make(map[string]interface{}, len(s.Credentials))
	for k, v := range s.Credentials {
		if k == credentialAccessToken {
			if token, ok := v.(string); ok && token != "" {
				out.Credentials[k] = maskSecret(token)
				continue
			}
		}
		out.Credentials[k] = v
	}
	return out
}

func maskSecret(secret string) string {
	if len(secret) <= 8 {
		return "********"
	}
	return secret[:4] + "********"
}

const (
	credentialShop        = "shop"
	credentialAccessToken = "accessToken"
)

// ShopifyCredentials is the credentials blob of a Shopify source.
type ShopifyCredentials struct {
	Shop        string `json:"shop"`
	AccessToken string `json:"accessToken"`
}

func (c ShopifyCredentials) ToMap() map[string]interface{} {
	return map[string]interface{}{
		credentialShop:        c.Shop,
		credentialAccessToken: c.AccessToken,
	}
}

// ShopifyCredentialsFromMap reads the shop and token out of a credentials blob.
// ok is false when either is missing or not a string.
func ShopifyCredentialsFromMap(m map[string]interface{}) (ShopifyCredentials, bool) {
	shop, shopOK := m[credentialShop].(string)
	token, tokenOK := m[credentialAccessToken].(string)
	if !shopOK || !tokenOK || shop == "" || token == "" {
		return ShopifyCredentials{}, false
	}
	return ShopifyCredentials{Shop: shop, AccessToken: token}, true
}

// ConnectionDetails is serialized into the shopify_connection_details cookie.
type ConnectionDetails struct {
	ShopName  string    `json:"shopName"`
	Shop      string    `json:"shop"`
	SourceID  string    `json:"sourceId"`
	Timestamp time.Time `json:"timestamp"`
}
