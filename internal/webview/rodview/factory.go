// Package rodview opens login web views in a Chromium browser driven
// over the DevTools protocol.
package rodview

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"civicauth/internal/civic"
	"civicauth/pkg/logger"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

type Config struct {
	Headless bool
	// Bin is the browser executable. Empty lets the launcher find or
	// download one.
	Bin string
	// ControlURL attaches to an already running browser instead of
	// launching one.
	ControlURL string
	Stealth    bool
}

// Factory shares one browser between the views it creates. Each view is
// its own page.
type Factory struct {
	cfg Config
	log logger.Logger

	mu       sync.Mutex
	launcher *launcher.Launcher
	browser  *rod.Browser
}

func NewFactory(cfg Config, log logger.Logger) *Factory {
	if log == nil {
		log = logger.NewNop()
	}
	return &Factory{cfg: cfg, log: log}
}

func (f *Factory) NewWebView(ctx context.Context, listener civic.NavigationListener) (civic.WebView, error) {
	browser, err := f.connect()
	if err != nil {
		return nil, err
	}

	var page *rod.Page
	if f.cfg.Stealth {
		page, err = stealth.Page(browser)
	} else {
		page, err = browser.Page(proto.TargetCreateTarget{})
	}
	if err != nil {
		return nil, fmt.Errorf("opening browser page: %w", err)
	}

	return newView(ctx, page, listener, f.log)
}

func (f *Factory) connect() (*rod.Browser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.browser != nil {
		return f.browser, nil
	}

	controlURL := f.cfg.ControlURL
	if controlURL == "" {
		l := launcher.New().Headless(f.cfg.Headless)
		if f.cfg.Bin != "" {
			l = l.Bin(f.cfg.Bin)
		}
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("launching browser: %w", err)
		}
		f.launcher = l
		controlURL = u
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		if f.launcher != nil {
			f.launcher.Kill()
			f.launcher = nil
		}
		return nil, fmt.Errorf("connecting to browser: %w", err)
	}

	f.log.Info("browser connected",
		logger.Field{Key: "headless", Value: f.cfg.Headless},
		logger.Field{Key: "attached", Value: f.cfg.ControlURL != ""},
	)
	f.browser = browser
	return browser, nil
}

// Close shuts the browser down and removes the launcher's profile.
func (f *Factory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var errs []error
	if f.browser != nil {
		if err := f.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing browser: %w", err))
		}
		f.browser = nil
	}
	if f.launcher != nil {
		f.launcher.Cleanup()
		f.launcher = nil
	}
	return errors.Join(errs...)
}
