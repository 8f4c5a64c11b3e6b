package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("SHOPIFY_API_KEY", "key")
	t.Setenv("SHOPIFY_API_SECRET", "secret")
	t.Setenv("SUPABASE_URL", "https://project.supabase.co/")
	t.Setenv("SUPABASE_ANON_KEY", "anon")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)
	t.Setenv("APP_URL", "")
	t.Setenv("KAFKA_BROKERS", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.APIPort)
	assert.Empty(t, cfg.KafkaBrokers, "local runs work without Kafka")
	assert.Equal(t, "source-events", cfg.SourceEventsTopic)
	assert.Equal(t, "http://localhost:3000/api/shopify/callback", cfg.RedirectURI())
	assert.Equal(t, "https://project.supabase.co", cfg.SupabaseURL)
	assert.Equal(t, time.Second, cfg.RealtimeInitialBackoff)
	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.IsProduction())
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("APP_URL", "https://app.flowtechs.io/")
	t.Setenv("REALTIME_MAX_ATTEMPTS", "3")
	t.Setenv("REALTIME_MAX_BACKOFF", "5s")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("ENV", "production")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://app.flowtechs.io/api/shopify/callback", cfg.RedirectURI())
	assert.Equal(t, 3, cfg.RealtimeMaxAttempts)
	assert.Equal(t, 5*time.Second, cfg.RealtimeMaxBackoff)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
	assert.True(t, cfg.IsProduction())
}

func TestLoad_MissingRequired(t *testing.T) {
	t.Setenv("SHOPIFY_API_KEY", "")
	t.Setenv("SHOPIFY_API_SECRET", "")
	t.Setenv("SUPABASE_URL", "https://project.supabase.co")
	t.Setenv("SUPABASE_ANON_KEY", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHOPIFY_API_KEY")
	assert.Contains(t, err.Error(), "SHOPIFY_API_SECRET")
	assert.Contains(t, err.Error(), "SUPABASE_ANON_KEY")
	assert.NotContains(t, err.Error(), "SUPABASE_URL")
}
