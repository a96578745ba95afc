package civic

import (
	"net/url"
	"strings"
)

// BuildAuthURL composes the authorization URL for req. Parameters are
// always emitted in the same order: client_id, redirect_uri,
// response_type, scope, nonce, display.
func BuildAuthURL(endpoint string, req LoginRequest) string {
	if endpoint == "" {
		endpoint = DefaultAuthEndpoint
	}

	scope := req.Scope
	if scope == "" {
		scope = DefaultScope
	}

	params := []string{
		"client_id=" + queryEscape(req.ClientID),
		"redirect_uri=" + queryEscape(req.RedirectURL),
		"response_type=code",
		"scope=" + queryEscape(scope),
	}
	if req.Nonce != "" {
		params = append(params, "nonce="+queryEscape(req.Nonce))
	}
	if req.DisplayMode != "" {
		params = append(params, "display="+queryEscape(string(req.DisplayMode)))
	}

	sep := "?"
	if strings.Contains(endpoint, "?") {
		sep = "&"
	}
	return endpoint + sep + strings.Join(params, "&")
}

// queryEscape percent-encodes s, spaces included as %20.
func queryEscape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
