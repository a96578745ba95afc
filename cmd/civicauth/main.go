package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"civicauth/cfg"
	"civicauth/internal/civic"
	"civicauth/internal/security"
	"civicauth/internal/webview/loopback"
	"civicauth/internal/webview/rodview"
	"civicauth/pkg/cache"
	"civicauth/pkg/idgen"
	"civicauth/pkg/logger"
	"civicauth/pkg/telemetry"
)

type output struct {
	Result   civic.AuthResult `json:"result"`
	Error    *civic.ErrorInfo `json:"errorInfo,omitempty"`
	Security *security.Report `json:"security,omitempty"`
	Runtime  civic.Report     `json:"runtime"`
}

func main() {
	os.Exit(run())
}

func run() int {
	// ============
	// config
	// ============
	config, errCfg := cfg.Load()
	if errCfg != nil {
		log.Fatal(errCfg)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ============
	// logger
	// ============
	zlogger := logger.NewZeroLog(config.AppEnv)
	fatal := func(err error) int {
		zlogger.Error("civicauth failed", logger.Field{Key: "error", Value: err})
		return 1
	}

	// ============
	// OpenTelemetry
	// ============
	shutdown, err := telemetry.Init(ctx, telemetry.Config{
		OTLPEndpoint: config.Otel.Endpoint,
		ServiceName:  config.Otel.ServiceName,
		Environment:  config.AppEnv,
	}, zlogger)
	if err != nil {
		return fatal(fmt.Errorf("initialize OpenTelemetry: %w", err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			zlogger.Error("telemetry shutdown failed", logger.Field{Key: "error", Value: err})
		}
	}()

	// ============
	// Cache
	// ============
	var store cache.Cache
	if addr := config.RedisConfig.Addr(); addr != "" {
		rc, err := cache.NewRedisCache(ctx, addr, config.RedisConfig.Password)
		if err != nil {
			zlogger.Warn("redis unavailable, using in-memory request cache", logger.Field{Key: "error", Value: err})
			rc = cache.NewMemoryCache(time.Minute)
		}
		store = rc
	} else {
		store = cache.NewMemoryCache(time.Minute)
	}
	defer store.Close()

	// ============
	// Runtime
	// ============
	ids, err := idgen.NewSnowflakeGenerator(config.SnowflakeNodeID)
	if err != nil {
		return fatal(err)
	}
	rt, err := civic.NewRuntime(civic.RuntimeConfig{
		Cache:      store,
		RequestTTL: time.Duration(config.RequestCacheTTLMinutes) * time.Minute,
		Logger:     zlogger,
	})
	if err != nil {
		return fatal(err)
	}
	defer rt.Dispose()

	// ============
	// Web view
	// ============
	var factory civic.WebViewFactory
	switch config.Browser.View {
	case cfg.ViewLoopback:
		lf, err := loopback.NewFactory(loopback.Config{RedirectURL: config.Civic.RedirectURL}, zlogger)
		if err != nil {
			return fatal(err)
		}
		factory = lf
	default:
		rf := rodview.NewFactory(rodview.Config{
			Headless: config.Browser.Headless,
			Bin:      config.Browser.Bin,
			Stealth:  true,
		}, zlogger)
		defer rf.Close()
		factory = rf
	}

	// ============
	// Civic client
	// ============
	authEndpoint := config.Civic.AuthEndpoint
	if config.Civic.IssuerURL != "" {
		endpoint, err := civic.DiscoverEndpoint(ctx, config.Civic.IssuerURL)
		if err != nil {
			return fatal(err)
		}
		authEndpoint = endpoint.AuthURL
	}

	client, err := civic.NewClient(
		civic.WithWebViewFactory(factory),
		civic.WithRuntime(rt),
		civic.WithIDGenerator(ids),
		civic.WithLogger(zlogger),
		civic.WithAllowedSchemes(config.Civic.AllowedSchemes...),
		civic.WithAuthEndpoint(authEndpoint),
		civic.WithTimeout(time.Duration(config.Civic.TimeoutSeconds)*time.Second),
		civic.WithTokenInspection(config.Civic.InspectTokens),
	)
	if err != nil {
		return fatal(err)
	}

	opts := civic.LoginOptions{
		ClientID:    config.Civic.ClientID,
		RedirectURL: config.Civic.RedirectURL,
		Nonce:       config.Civic.Nonce,
		DisplayMode: config.Civic.DisplayMode,
		Scope:       config.Civic.Scope,
	}
	if opts.Nonce == "" {
		if opts.Nonce, err = civic.GenerateNonce(); err != nil {
			return fatal(err)
		}
	}

	// ============
	// Login
	// ============
	var res civic.AuthResult
	if config.Civic.MaxRetries > 0 {
		res, err = client.LoginWithRetry(ctx, opts, uint(config.Civic.MaxRetries))
	} else {
		res, err = client.LoginWithCivic(ctx, opts)
	}
	if errors.Is(err, civic.ErrNoWebView) {
		return fatal(err)
	}

	out := output{Result: res, Runtime: rt.Report()}
	if !res.Success {
		info := civic.Classify(res)
		out.Error = &info
	} else if config.Civic.InspectTokens {
		report := security.Assess(security.Input{
			ClientID:    opts.ClientID,
			RedirectURL: opts.RedirectURL,
			Nonce:       opts.Nonce,
			IDToken:     res.IDToken,
			AccessToken: res.AccessToken,
		})
		out.Security = &report
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fatal(err)
	}

	if !res.Success {
		return 1
	}
	return 0
}
