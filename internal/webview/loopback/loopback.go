// Package loopback implements the external-browser login: the user opens
// the authorization URL in any browser and the redirect lands on a local
// HTTP server.
package loopback

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"civicauth/internal/civic"
	"civicauth/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const (
	serverErrorCode = -1
	shutdownTimeout = 5 * time.Second
	serviceName     = "civicauth-loopback"
)

const completedPage = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"/><title>Civic Auth</title></head>
<body><p>Login complete. You can close this window.</p></body>
</html>`

// OpenFunc hands the authorization URL to the user or their browser.
type OpenFunc func(ctx context.Context, authURL string) error

type Config struct {
	// RedirectURL must be an http URL on this machine; its path is served.
	RedirectURL string
	// ListenAddr overrides the host:port taken from RedirectURL.
	ListenAddr string
	Open       OpenFunc
}

type Factory struct {
	cfg      Config
	redirect *url.URL
	log      logger.Logger
}

func NewFactory(cfg Config, log logger.Logger) (*Factory, error) {
	if log == nil {
		log = logger.NewNop()
	}
	u, err := url.Parse(cfg.RedirectURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redirect url: %w", err)
	}
	if u.Scheme != "http" || u.Host == "" {
		return nil, fmt.Errorf("loopback redirect must be an http URL with a host, got %q", cfg.RedirectURL)
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = u.Host
	}
	if cfg.Open == nil {
		cfg.Open = logOpener(log)
	}
	return &Factory{cfg: cfg, redirect: u, log: log}, nil
}

func (f *Factory) NewWebView(_ context.Context, listener civic.NavigationListener) (civic.WebView, error) {
	ln, err := net.Listen("tcp", f.cfg.ListenAddr)
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", f.cfg.ListenAddr, err)
	}

	v := &View{
		listener: listener,
		redirect: f.redirect,
		open:     f.cfg.Open,
		log:      f.log,
		addr:     ln.Addr().String(),
	}
	v.engine = v.newEngine()
	v.srv = &http.Server{
		Handler:           v.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go v.serve(ln)
	return v, nil
}

// View is one loopback server waiting for one redirect.
type View struct {
	listener civic.NavigationListener
	redirect *url.URL
	open     OpenFunc
	log      logger.Logger
	addr     string

	engine *gin.Engine
	srv    *http.Server

	once       sync.Once
	disposeErr error
}

// Addr is the address the server actually listens on.
func (v *View) Addr() string {
	return v.addr
}

func (v *View) Handler() http.Handler {
	return v.engine
}

func (v *View) newEngine() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(serviceName))

	path := v.redirect.Path
	if path == "" {
		path = "/"
	}
	r.GET(path, CallbackHandler(v.redirect, v.listener))
	return r
}

func (v *View) serve(ln net.Listener) {
	v.log.Debug("loopback server listening", logger.Field{Key: "addr", Value: v.addr})
	if err := v.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		v.listener.OnError(serverErrorCode, err.Error(), v.redirect.String())
	}
}

func (v *View) Load(ctx context.Context, authURL string) error {
	return v.open(ctx, authURL)
}

func (v *View) Dispose() error {
	v.once.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := v.srv.Shutdown(ctx); err != nil {
			v.disposeErr = fmt.Errorf("shutting down loopback server: %w", err)
		}
	})
	return v.disposeErr
}

// CallbackHandler reports the redirect to the listener, rebuilt on the
// configured redirect URL so prefix matching sees the exact URL.
func CallbackHandler(redirect *url.URL, listener civic.NavigationListener) gin.HandlerFunc {
	return func(c *gin.Context) {
		observed := *redirect
		observed.RawQuery = c.Request.URL.RawQuery
		observed.Fragment = ""

		if !listener.OnShouldInterceptNavigation(observed.String()) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "redirect carried no result"})
			return
		}
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(completedPage))
	}
}

func logOpener(log logger.Logger) OpenFunc {
	return func(_ context.Context, authURL string) error {
		log.Info("open the authorization URL in a browser to continue",
			logger.Field{Key: "url", Value: authURL},
		)
		return nil
	}
}
