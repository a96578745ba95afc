package civic

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
)

const (
	minClientIDLength = 3
	minNonceLength    = 10
)

var (
	clientIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	nonceStrip      = regexp.MustCompile(`[^A-Za-z0-9_-]`)

	// DefaultAllowedSchemes are the redirect URL schemes accepted when a
	// Validator is built without an explicit list.
	DefaultAllowedSchemes = []string{"https", "http", "civic-auth-demo"}

	allowedScopes = map[string]bool{
		oidc.ScopeOpenID: true,
		"profile":        true,
		"email":          true,
	}

	injectionMarkers = []string{"javascript:", "data:"}
)

// Validator checks LoginOptions before anything is loaded in a web view.
type Validator struct {
	schemes map[string]bool
}

func NewValidator(allowedSchemes []string) *Validator {
	if len(allowedSchemes) == 0 {
		allowedSchemes = DefaultAllowedSchemes
	}
	schemes := make(map[string]bool, len(allowedSchemes))
	for _, s := range allowedSchemes {
		schemes[strings.ToLower(strings.TrimSuffix(strings.TrimSpace(s), ":"))] = true
	}
	return &Validator{schemes: schemes}
}

// Validate runs every check and returns all violations together as a
// *ValidationError.
func (v *Validator) Validate(opts LoginOptions) (LoginRequest, error) {
	var violations []Violation
	req := LoginRequest{}

	switch {
	case opts.ClientID == "":
		violations = append(violations, violation(ErrorCodeMissingClientID, "clientId",
			"clientId is required for Civic Auth", ErrMissingClientID))
	case len(opts.ClientID) < minClientIDLength || !clientIDPattern.MatchString(opts.ClientID):
		violations = append(violations, violation(ErrorCodeInvalidClientID, "clientId",
			fmt.Sprintf("clientId must be at least %d characters of [A-Za-z0-9-_]", minClientIDLength), ErrInvalidClientID))
	default:
		req.ClientID = opts.ClientID
	}

	if opts.RedirectURL == "" {
		violations = append(violations, violation(ErrorCodeMissingRedirectURL, "redirectUrl",
			"redirectUrl is required for Civic Auth", ErrMissingRedirectURL))
	} else if reason := v.checkRedirectURL(opts.RedirectURL); reason != "" {
		violations = append(violations, violation(ErrorCodeInvalidRedirectURL, "redirectUrl",
			reason, ErrInvalidRedirectURL))
	} else {
		req.RedirectURL = opts.RedirectURL
	}

	if opts.Nonce != "" {
		nonce := nonceStrip.ReplaceAllString(opts.Nonce, "")
		if len(nonce) < minNonceLength {
			violations = append(violations, violation(ErrorCodeWeakNonce, "nonce",
				fmt.Sprintf("nonce must be at least %d characters after sanitizing", minNonceLength), ErrWeakNonce))
		} else {
			req.Nonce = nonce
		}
	}

	if opts.DisplayMode != "" {
		mode := DisplayMode(opts.DisplayMode)
		if mode != DisplayPopup && mode != DisplayRedirect {
			violations = append(violations, violation(ErrorCodeInvalidDisplayMode, "displayMode",
				fmt.Sprintf("displayMode %q is not one of popup, redirect", opts.DisplayMode), ErrInvalidDisplayMode))
		} else {
			req.DisplayMode = mode
		}
	}

	if opts.Scope != "" {
		var invalid []string
		for _, s := range strings.Fields(opts.Scope) {
			if !allowedScopes[s] {
				invalid = append(invalid, s)
			}
		}
		if len(invalid) > 0 {
			violations = append(violations, violation(ErrorCodeInvalidScope, "scope",
				"invalid scopes: "+strings.Join(invalid, ", "), ErrInvalidScope))
		} else {
			req.Scope = strings.Join(strings.Fields(opts.Scope), " ")
		}
	}

	if len(violations) > 0 {
		return LoginRequest{}, &ValidationError{Violations: violations}
	}
	return req, nil
}

// checkRedirectURL returns the rejection reason, or "" when the URL is usable.
func (v *Validator) checkRedirectURL(raw string) string {
	lower := strings.ToLower(raw)
	for _, marker := range injectionMarkers {
		if strings.Contains(lower, marker) {
			return "redirectUrl contains a forbidden " + marker + " pattern"
		}
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "redirectUrl is not a valid URL"
	}
	if u.Scheme == "" {
		return "redirectUrl must be an absolute URL"
	}
	if !v.schemes[strings.ToLower(u.Scheme)] {
		return fmt.Sprintf("redirectUrl scheme %q is not allowed", u.Scheme)
	}
	if (u.Scheme == "https" || u.Scheme == "http") && u.Host == "" {
		return "redirectUrl must include a host"
	}
	return ""
}

func violation(code ErrorCode, field, msg string, err error) Violation {
	return Violation{Code: code, Field: field, Message: msg, err: err}
}
