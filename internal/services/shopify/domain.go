package shopify

import (
	"errors"
	"regexp"
	"strings"
)

var (
	ErrMissingShop       = errors.New("missing shop parameter")
	ErrInvalidShopDomain = errors.New("invalid shop URL format, must be a .myshopify.com domain")
)

const shopSuffix = ".myshopify.com"

var (
	shopDomainPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9-]*\.myshopify\.com$`)
	schemePrefix      = regexp.MustCompile(`(?i)^(https?://)?(www\.)?`)
)

// NormalizeShopDomain turns free-form input ("My-Store", "https://www.my-store.myshopify.com/admin")
// into a lowercase myshopify domain. It is idempotent.
func NormalizeShopDomain(input string) string {
	shop := strings.TrimSpace(input)
	shop = schemePrefix.ReplaceAllString(shop, "")
	if i := strings.IndexAny(shop, "/?#"); i >= 0 {
		shop = shop[:i]
	}
	shop = strings.ToLower(shop)
	if shop != "" && !strings.Contains(shop, shopSuffix) {
		shop += shopSuffix
	}
	return shop
}

// ValidateShopDomain checks an already normalized shop domain.
func ValidateShopDomain(shop string) error {
	if shop == "" {
		return ErrMissingShop
	}
	if !shopDomainPattern.MatchString(shop) {
		return ErrInvalidShopDomain
	}
	return nil
}
