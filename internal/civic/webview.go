package civic

import (
	"context"
	"net/url"
)

// WebView is the narrow capability a platform browser offers to a login
// attempt. Implementations report what happens through the
// NavigationListener they were created with.
type WebView interface {
	// Load starts loading url. It may return before the page finishes.
	Load(ctx context.Context, url string) error
	Dispose() error
}

// NavigationListener receives web view events in navigation order.
type NavigationListener interface {
	OnPageFinished(url string)
	// OnShouldInterceptNavigation returns true when the navigation was
	// handled and the view must not load url.
	OnShouldInterceptNavigation(url string) bool
	OnError(code int, description, failingURL string)
}

// WebViewFactory opens one web view per login attempt.
type WebViewFactory interface {
	NewWebView(ctx context.Context, listener NavigationListener) (WebView, error)
}

type WebViewFactoryFunc func(ctx context.Context, listener NavigationListener) (WebView, error)

func (f WebViewFactoryFunc) NewWebView(ctx context.Context, listener NavigationListener) (WebView, error) {
	return f(ctx, listener)
}

// redactURL drops the query and fragment so tokens never reach the logs.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<unparseable>"
	}
	u.RawQuery = ""
	u.Fragment = ""
	u.User = nil
	return u.String()
}
