package cfg

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	ViewRod      = "rod"
	ViewLoopback = "loopback"
)

type RedisConfig struct {
	Host     string
	Port     string
	Password string
}

// Addr is empty when no Redis host is configured.
func (r RedisConfig) Addr() string {
	if r.Host == "" {
		return ""
	}
	return r.Host + ":" + r.Port
}

type CivicConfig struct {
	ClientID       string
	RedirectURL    string
	Nonce          string
	DisplayMode    string
	Scope          string
	AuthEndpoint   string
	IssuerURL      string
	AllowedSchemes []string
	TimeoutSeconds int
	InspectTokens  bool
	MaxRetries     int
}

type BrowserConfig struct {
	View     string
	Headless bool
	Bin      string
}

type OtelConfig struct {
	Endpoint    string
	ServiceName string
}

type Config struct {
	AppEnv                 string
	Civic                  CivicConfig
	Browser                BrowserConfig
	RedisConfig            RedisConfig
	RequestCacheTTLMinutes int
	SnowflakeNodeID        int64
	Otel                   OtelConfig
}

func Load() (*Config, error) {
	var errs []error

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, errors.New("failed load cfg: " + err.Error())
	}

	appEnv := mustEnv("APP_ENV", &errs)
	clientID := mustEnv("CIVIC_CLIENT_ID", &errs)
	redirectURL := mustEnv("CIVIC_REDIRECT_URL", &errs)

	timeoutSeconds := intEnv("CIVIC_LOGIN_TIMEOUT_SECONDS", 300, &errs)
	maxRetries := intEnv("CIVIC_MAX_RETRIES", 0, &errs)
	inspectTokens := boolEnv("CIVIC_INSPECT_TOKENS", false, &errs)
	headless := boolEnv("BROWSER_HEADLESS", true, &errs)
	cacheTTLMinutes := intEnv("REQUEST_CACHE_TTL_MINUTES", 5, &errs)
	nodeID := intEnv("SNOWFLAKE_NODE_ID", 1, &errs)

	view := envOr("CIVIC_VIEW", ViewRod)
	if view != ViewRod && view != ViewLoopback {
		errs = append(errs, fmt.Errorf("invalid env: CIVIC_VIEW must be %s or %s", ViewRod, ViewLoopback))
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	return &Config{
		AppEnv: appEnv,
		Civic: CivicConfig{
			ClientID:       clientID,
			RedirectURL:    redirectURL,
			Nonce:          os.Getenv("CIVIC_NONCE"),
			DisplayMode:    os.Getenv("CIVIC_DISPLAY_MODE"),
			Scope:          os.Getenv("CIVIC_SCOPE"),
			AuthEndpoint:   envOr("CIVIC_AUTH_ENDPOINT", "https://auth.civic.com/oauth/authorize"),
			IssuerURL:      os.Getenv("CIVIC_ISSUER_URL"),
			AllowedSchemes: listEnv("CIVIC_ALLOWED_SCHEMES", []string{"https", "http", "civic-auth-demo"}),
			TimeoutSeconds: timeoutSeconds,
			InspectTokens:  inspectTokens,
			MaxRetries:     maxRetries,
		},
		Browser: BrowserConfig{
			View:     view,
			Headless: headless,
			Bin:      os.Getenv("BROWSER_BIN"),
		},
		RedisConfig: RedisConfig{
			Host:     os.Getenv("REDIS_HOST"),
			Port:     envOr("REDIS_PORT", "6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
		},
		RequestCacheTTLMinutes: cacheTTLMinutes,
		SnowflakeNodeID:        int64(nodeID),
		Otel: OtelConfig{
			Endpoint:    os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
			ServiceName: envOr("OTEL_SERVICE_NAME", "civicauth"),
		},
	}, nil
}

func mustEnv(key string, errs *[]error) string {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		*errs = append(*errs, errors.New("missing env: "+key))
	}
	return value
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func intEnv(key string, fallback int, errs *[]error) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		*errs = append(*errs, errors.New("conversion failed env: "+key))
		return fallback
	}
	return n
}

func boolEnv(key string, fallback bool, errs *[]error) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		*errs = append(*errs, errors.New("conversion failed env: "+key))
		return fallback
	}
	return b
}

func listEnv(key string, fallback []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
