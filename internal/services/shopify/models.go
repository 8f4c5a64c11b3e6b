package shopify

import (
	"time"
)

// Shop represents shop information
type Shop struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	Email           string    `json:"email"`
	Domain          string    `json:"domain"`
	MyshopifyDomain string    `json:"myshopify_domain"`
	Country         string    `json:"country"`
	Currency        string    `json:"currency"`
	IanaTimezone    string    `json:"iana_timezone"`
	ShopOwner       string    `json:"shop_owner"`
	PlanName        string    `json:"plan_name"`
	PlanDisplayName string    `json:"plan_display_name"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	Scope       string `json:"scope"`
}
