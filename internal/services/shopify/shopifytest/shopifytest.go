// Package shopifytest provides a fake Shopify Admin API and callback signing
// helpers for tests.
package shopifytest

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
)

// Server fakes the OAuth token endpoint and shop.json for any shop.
type Server struct {
	*httptest.Server

	mu             sync.Mutex
	TokenStatus    int
	AccessToken    string
	ShopStatus     int
	ShopName       string
	TokenRequests  int
	ShopRequests   int
	LastTokenCode  string
	LastShopHeader string
}

func NewServer() *Server {
	s := &Server{
		TokenStatus: http.StatusOK,
		AccessToken: "shpat_test_token",
		ShopStatus:  http.StatusOK,
		ShopName:    "Test Store",
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/admin/oauth/access_token", s.handleToken)
	mux.HandleFunc("/admin/api/", s.handleShop)
	s.Server = httptest.NewServer(mux)
	return s
}

// ShopURL maps every shop onto this server.
func (s *Server) ShopURL(string) string {
	return s.URL
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.TokenRequests++

	var body struct {
		Code string `json:"code"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	s.LastTokenCode = body.Code

	if s.TokenStatus != http.StatusOK {
		http.Error(w, `{"error":"invalid_request"}`, s.TokenStatus)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"access_token": s.AccessToken,
		"scope":        "read_products,read_orders",
	})
}

func (s *Server) handleShop(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ShopRequests++
	s.LastShopHeader = r.Header.Get("X-Shopify-Access-Token")

	if s.ShopStatus != http.StatusOK {
		http.Error(w, `{"errors":"[API] Invalid API key or access token"}`, s.ShopStatus)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"shop": map[string]interface{}{
			"id":               1,
			"name":             s.ShopName,
			"myshopify_domain": "test-store.myshopify.com",
			"currency":         "USD",
		},
	})
}

func (s *Server) Counts() (token, shop int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.TokenRequests, s.ShopRequests
}

// Sign adds the hmac parameter Shopify would compute for params.
func Sign(params url.Values, secret string) url.Values {
	signed := url.Values{}
	for k, v := range params {
		if k == "hmac" || k == "signature" {
			continue
		}
		signed[k] = append([]string(nil), v...)
	}
	message, _ := url.QueryUnescape(signed.Encode())
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(message))
	signed.Set("hmac", hex.EncodeToString(mac.Sum(nil)))
	return signed
}
