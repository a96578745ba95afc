package civic

import (
	"github.com/coreos/go-oidc/v3/oidc"
)

const (
	// DefaultAuthEndpoint is Civic's authorization endpoint.
	DefaultAuthEndpoint = "https://auth.civic.com/oauth/authorize"
	DefaultScope        = oidc.ScopeOpenID + " profile email"
)

type DisplayMode string

const (
	DisplayPopup    DisplayMode = "popup"
	DisplayRedirect DisplayMode = "redirect"
)

// LoginOptions is the raw, unvalidated input of a login call.
type LoginOptions struct {
	ClientID    string `json:"clientId"`
	RedirectURL string `json:"redirectUrl"`
	Nonce       string `json:"nonce,omitempty"`
	DisplayMode string `json:"displayMode,omitempty"`
	Scope       string `json:"scope,omitempty"`
}

// LoginRequest is a validated LoginOptions. Only Validate produces one.
type LoginRequest struct {
	ClientID    string      `json:"clientId"`
	RedirectURL string      `json:"redirectUrl"`
	Nonce       string      `json:"nonce,omitempty"`
	DisplayMode DisplayMode `json:"displayMode,omitempty"`
	Scope       string      `json:"scope,omitempty"`
}

// CallbackEvent is one URL observed by the web view. IsFinalNavigation is
// set when the page finished loading rather than being about to load.
type CallbackEvent struct {
	URL               string
	IsFinalNavigation bool
}

// AuthInfo describes what the Civic integration accepts and returns.
type AuthInfo struct {
	AuthURL         string   `json:"authUrl"`
	Documentation   string   `json:"documentation"`
	SupportedTokens []string `json:"supportedTokens"`
	RequiredParams  []string `json:"requiredParams"`
	OptionalParams  []string `json:"optionalParams"`
}

func Info() AuthInfo {
	return AuthInfo{
		AuthURL:         "https://auth.civic.com",
		Documentation:   "https://docs.civic.com/",
		SupportedTokens: []string{"idToken", "accessToken", "refreshToken"},
		RequiredParams:  []string{"clientId", "redirectUrl"},
		OptionalParams:  []string{"nonce", "displayMode", "scope"},
	}
}
