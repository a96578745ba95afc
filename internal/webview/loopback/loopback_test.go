package loopback

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"civicauth/internal/civic"
	"civicauth/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// MockListener is a mock implementation of civic.NavigationListener
type MockListener struct {
	mock.Mock
}

func (m *MockListener) OnPageFinished(url string) {
	m.Called(url)
}

func (m *MockListener) OnShouldInterceptNavigation(url string) bool {
	args := m.Called(url)
	return args.Bool(0)
}

func (m *MockListener) OnError(code int, description, failingURL string) {
	m.Called(code, description, failingURL)
}

func TestCallbackHandler(t *testing.T) {
	redirect, err := url.Parse("http://127.0.0.1:8765/callback")
	require.NoError(t, err)

	l := new(MockListener)
	l.On("OnShouldInterceptNavigation", "http://127.0.0.1:8765/callback?code=abc").Return(true)
	l.On("OnShouldInterceptNavigation", "http://127.0.0.1:8765/callback").Return(false)

	r := gin.New()
	r.GET("/callback", CallbackHandler(redirect, l))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "http://localhost:9999/callback?code=abc", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Login complete")

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/callback", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	l.AssertExpectations(t)
}

func TestNewFactory_RejectsNonLoopbackRedirect(t *testing.T) {
	_, err := NewFactory(Config{RedirectURL: "civic-auth-demo://callback"}, nil)
	assert.Error(t, err)

	_, err = NewFactory(Config{RedirectURL: "https://app.test/cb"}, nil)
	assert.Error(t, err)
}

func TestLoopbackLogin(t *testing.T) {
	const redirect = "http://127.0.0.1:8765/callback"

	var view *View
	f, err := NewFactory(Config{
		RedirectURL: redirect,
		ListenAddr:  "127.0.0.1:0",
		Open: func(ctx context.Context, authURL string) error {
			// Plays the browser: the provider redirects straight back.
			go func() {
				req, _ := http.NewRequestWithContext(ctx, http.MethodGet,
					"http://"+view.Addr()+"/callback?code=LOOP&state=s", nil)
				resp, err := http.DefaultClient.Do(req)
				if err == nil {
					_, _ = io.Copy(io.Discard, resp.Body)
					_ = resp.Body.Close()
				}
			}()
			return nil
		},
	}, logger.NewNop())
	require.NoError(t, err)

	factory := civic.WebViewFactoryFunc(func(ctx context.Context, l civic.NavigationListener) (civic.WebView, error) {
		wv, err := f.NewWebView(ctx, l)
		if err == nil {
			view = wv.(*View)
		}
		return wv, err
	})

	c, err := civic.NewClient(
		civic.WithWebViewFactory(factory),
		civic.WithTimeout(10*time.Second),
	)
	require.NoError(t, err)
	defer c.Close()

	res, err := c.LoginWithCivic(context.Background(), civic.LoginOptions{
		ClientID:    "loopback-test",
		RedirectURL: redirect,
	})
	require.NoError(t, err)
	assert.True(t, res.Success, "result: %+v", res)
	assert.Equal(t, "LOOP", res.AuthorizationCode)

	assert.NoError(t, view.Dispose(), "second dispose is a no-op")
}

func TestLoopbackListenFailure(t *testing.T) {
	f, err := NewFactory(Config{
		RedirectURL: "http://127.0.0.1:8765/callback",
		ListenAddr:  "256.0.0.1:0",
	}, nil)
	require.NoError(t, err)

	_, err = f.NewWebView(context.Background(), new(MockListener))
	assert.Error(t, err)
}
