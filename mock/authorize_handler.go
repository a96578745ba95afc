package main

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"time"
)

var consentPage = template.Must(template.New("consent").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"/><title>Civic Auth (mock)</title></head>
<body>
  <h1>Sign in to {{.ClientID}}</h1>
  <p>Scopes: {{.Scope}}</p>
  <a id="approve" href="/oauth/approve?{{.Query}}">Approve</a>
  <a id="approve-tokens" href="/oauth/approve?{{.Query}}&amp;tokens=1">Approve (implicit tokens)</a>
  <a id="deny" href="/oauth/deny?{{.Query}}">Deny</a>
</body>
</html>`))

type consentData struct {
	ClientID string
	Scope    string
	Query    template.URL
}

func DiscoveryHandler(issuer string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"issuer":                   issuer,
			"authorization_endpoint":   issuer + "/oauth/authorize",
			"token_endpoint":           issuer + "/oauth/token",
			"jwks_uri":                 issuer + "/jwks",
			"response_types_supported": []string{"code"},
			"scopes_supported":         []string{"openid", "profile", "email"},
		})
	}
}

func AuthorizeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	if q.Get("client_id") == "" || q.Get("redirect_uri") == "" {
		http.Error(w, "client_id and redirect_uri are required", http.StatusBadRequest)
		return
	}
	if q.Get("response_type") != "code" {
		http.Error(w, "unsupported response_type", http.StatusBadRequest)
		return
	}

	forward := url.Values{
		"redirect_uri": {q.Get("redirect_uri")},
		"nonce":        {q.Get("nonce")},
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	consentPage.Execute(w, consentData{
		ClientID: q.Get("client_id"),
		Scope:    q.Get("scope"),
		Query:    template.URL(forward.Encode()),
	})
}

func ApproveHandler(issuer string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		target, ok := redirectTarget(w, r)
		if !ok {
			return
		}

		params := url.Values{}
		if r.URL.Query().Get("tokens") == "1" {
			params.Set("access_token", randomHex(24))
			params.Set("id_token", mockIDToken(issuer, r.URL.Query().Get("nonce")))
			params.Set("user_id", "mock-user-1")
		} else {
			params.Set("code", randomHex(16))
		}
		target.RawQuery = params.Encode()
		http.Redirect(w, r, target.String(), http.StatusFound)
	}
}

func DenyHandler(w http.ResponseWriter, r *http.Request) {
	target, ok := redirectTarget(w, r)
	if !ok {
		return
	}
	target.RawQuery = url.Values{
		"error":             {"access_denied"},
		"error_description": {"The user denied the request"},
	}.Encode()
	http.Redirect(w, r, target.String(), http.StatusFound)
}

func redirectTarget(w http.ResponseWriter, r *http.Request) (*url.URL, bool) {
	target, err := url.Parse(r.URL.Query().Get("redirect_uri"))
	if err != nil || target.Scheme == "" {
		http.Error(w, "invalid redirect_uri", http.StatusBadRequest)
		return nil, false
	}
	return target, true
}

func randomHex(n int) string {
	b := make([]byte, n)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// mockIDToken is an HS256-shaped token with a dummy signature; clients
// only ever inspect it.
func mockIDToken(issuer, nonce string) string {
	enc := base64.RawURLEncoding
	header, _ := json.Marshal(map[string]string{"alg": "HS256", "typ": "JWT"})
	now := time.Now()
	claims, _ := json.Marshal(map[string]any{
		"iss":   issuer,
		"sub":   "mock-user-1",
		"name":  "Mock User",
		"email": "mock.user@example.com",
		"nonce": nonce,
		"iat":   now.Unix(),
		"exp":   now.Add(time.Hour).Unix(),
	})
	return fmt.Sprintf("%s.%s.%s", enc.EncodeToString(header), enc.EncodeToString(claims), enc.EncodeToString([]byte(randomHex(16))))
}
