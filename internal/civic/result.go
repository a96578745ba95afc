package civic

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

// AuthResult is the outcome of one login attempt. Success results carry
// whichever of the token and user fields the redirect delivered; failure
// results carry ErrorKind and Error.
type AuthResult struct {
	Success bool `json:"success"`

	IDToken           string `json:"idToken,omitempty"`
	AccessToken       string `json:"accessToken,omitempty"`
	RefreshToken      string `json:"refreshToken,omitempty"`
	UserID            string `json:"userId,omitempty"`
	Email             string `json:"email,omitempty"`
	Name              string `json:"name,omitempty"`
	AuthorizationCode string `json:"authorizationCode,omitempty"`

	ErrorKind ErrorCode `json:"errorKind,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// ResultSummary counts what a successful result carries.
type ResultSummary struct {
	Success       bool `json:"success"`
	HasTokens     bool `json:"hasTokens"`
	HasUserInfo   bool `json:"hasUserInfo"`
	TokenCount    int  `json:"tokenCount"`
	UserInfoCount int  `json:"userInfoCount"`
}

// Failure builds a failed AuthResult.
func Failure(kind ErrorCode, msg string) AuthResult {
	return AuthResult{Success: false, ErrorKind: kind, Error: msg}
}

// Assemble turns the fields extracted from a callback URL into a
// successful AuthResult. An id_token that decodes as a JWT contributes
// the name claim, and sub/email when the redirect did not carry them.
func Assemble(fields map[string]string) AuthResult {
	res := AuthResult{
		Success:           true,
		IDToken:           fields[FieldIDToken],
		AccessToken:       fields[FieldAccessToken],
		RefreshToken:      fields[FieldRefreshToken],
		UserID:            fields[FieldUserID],
		Email:             fields[FieldEmail],
		AuthorizationCode: fields[FieldCode],
	}
	if res.IDToken != "" {
		res.enrichFromClaims()
	}
	return res
}

func (r *AuthResult) enrichFromClaims() {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(r.IDToken, claims); err != nil && !errors.Is(err, jwt.ErrTokenUnverifiable) {
		return
	}
	if name, ok := claims["name"].(string); ok {
		r.Name = name
	}
	if r.UserID == "" {
		if sub, err := claims.GetSubject(); err == nil {
			r.UserID = sub
		}
	}
	if r.Email == "" {
		if email, ok := claims["email"].(string); ok {
			r.Email = email
		}
	}
}

func (r AuthResult) HasTokens() bool {
	return r.IDToken != "" || r.AccessToken != "" || r.RefreshToken != ""
}

func (r AuthResult) HasUserInfo() bool {
	return r.UserID != "" || r.Email != "" || r.Name != ""
}

func (r AuthResult) Summary() ResultSummary {
	s := ResultSummary{
		Success:     r.Success,
		HasTokens:   r.HasTokens(),
		HasUserInfo: r.HasUserInfo(),
	}
	for _, v := range []string{r.IDToken, r.AccessToken, r.RefreshToken} {
		if v != "" {
			s.TokenCount++
		}
	}
	for _, v := range []string{r.UserID, r.Email, r.Name} {
		if v != "" {
			s.UserInfoCount++
		}
	}
	return s
}

// Token converts a successful result into an oauth2 token. The id_token is
// available through Extra("id_token"). It returns nil when no access token
// was delivered.
func (r AuthResult) Token() *oauth2.Token {
	if !r.Success || r.AccessToken == "" {
		return nil
	}
	tok := &oauth2.Token{
		AccessToken:  r.AccessToken,
		TokenType:    "Bearer",
		RefreshToken: r.RefreshToken,
	}
	if r.IDToken != "" {
		tok = tok.WithExtra(map[string]any{FieldIDToken: r.IDToken})
	}
	return tok
}

func (r AuthResult) failureMessage() string {
	switch {
	case r.Success:
		return "no error"
	case r.ErrorKind == "" && r.Error == "":
		return "Unknown error"
	case r.ErrorKind == "":
		return r.Error
	case r.Error == "":
		return string(r.ErrorKind)
	default:
		return fmt.Sprintf("%s: %s", r.ErrorKind, r.Error)
	}
}
