package cfg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Chdir(t.TempDir())
	t.Setenv("APP_ENV", "development")
	t.Setenv("CIVIC_CLIENT_ID", "abc-123")
	t.Setenv("CIVIC_REDIRECT_URL", "https://app.test/cb")
	for _, key := range []string{
		"CIVIC_AUTH_ENDPOINT", "CIVIC_ALLOWED_SCHEMES", "CIVIC_LOGIN_TIMEOUT_SECONDS",
		"CIVIC_MAX_RETRIES", "CIVIC_INSPECT_TOKENS", "CIVIC_VIEW", "BROWSER_HEADLESS",
		"REDIS_HOST", "REQUEST_CACHE_TTL_MINUTES", "SNOWFLAKE_NODE_ID", "OTEL_SERVICE_NAME",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	c, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", c.AppEnv)
	assert.Equal(t, "abc-123", c.Civic.ClientID)
	assert.Equal(t, "https://auth.civic.com/oauth/authorize", c.Civic.AuthEndpoint)
	assert.Equal(t, []string{"https", "http", "civic-auth-demo"}, c.Civic.AllowedSchemes)
	assert.Equal(t, 300, c.Civic.TimeoutSeconds)
	assert.Equal(t, ViewRod, c.Browser.View)
	assert.True(t, c.Browser.Headless)
	assert.Equal(t, 5, c.RequestCacheTTLMinutes)
	assert.Empty(t, c.RedisConfig.Addr())
	assert.Equal(t, "civicauth", c.Otel.ServiceName)
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("CIVIC_ALLOWED_SCHEMES", "https, myapp ,")
	t.Setenv("CIVIC_VIEW", "loopback")
	t.Setenv("CIVIC_INSPECT_TOKENS", "true")
	t.Setenv("CIVIC_MAX_RETRIES", "2")
	t.Setenv("BROWSER_HEADLESS", "false")
	t.Setenv("REDIS_HOST", "localhost")

	c, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"https", "myapp"}, c.Civic.AllowedSchemes)
	assert.Equal(t, ViewLoopback, c.Browser.View)
	assert.True(t, c.Civic.InspectTokens)
	assert.Equal(t, 2, c.Civic.MaxRetries)
	assert.False(t, c.Browser.Headless)
	assert.Equal(t, "localhost:6379", c.RedisConfig.Addr())
}

func TestLoad_CollectsErrors(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("APP_ENV", "")
	t.Setenv("CIVIC_CLIENT_ID", "")
	t.Setenv("CIVIC_REDIRECT_URL", "")
	t.Setenv("CIVIC_LOGIN_TIMEOUT_SECONDS", "soon")
	t.Setenv("CIVIC_VIEW", "webkit")

	_, err := Load()
	require.Error(t, err)
	for _, want := range []string{
		"missing env: APP_ENV",
		"missing env: CIVIC_CLIENT_ID",
		"missing env: CIVIC_REDIRECT_URL",
		"conversion failed env: CIVIC_LOGIN_TIMEOUT_SECONDS",
		"CIVIC_VIEW",
	} {
		assert.Contains(t, err.Error(), want)
	}
}
