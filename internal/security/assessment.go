// Package security scores login options and delivered tokens with simple
// heuristics. Nothing here verifies signatures.
package security

import (
	"errors"
	"math"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"

	validThreshold = 70
)

var (
	accessTokenPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+$`)
	strongNoncePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{20,}$`)
	testClientPattern  = regexp.MustCompile(`^(test|demo|dev)`)
)

// Assessment is the outcome of one check. Score runs from 0 to 100.
type Assessment struct {
	IsValid         bool      `json:"isValid"`
	Score           int       `json:"score"`
	Vulnerabilities []string  `json:"vulnerabilities"`
	Recommendations []string  `json:"recommendations"`
	RiskLevel       RiskLevel `json:"riskLevel"`
}

type assessment struct {
	score           int
	vulnerabilities []string
	recommendations []string
}

func newAssessment() *assessment {
	return &assessment{
		score:           100,
		vulnerabilities: []string{},
		recommendations: []string{},
	}
}

func (a *assessment) deduct(points int, vulnerability string) {
	a.score -= points
	a.vulnerabilities = append(a.vulnerabilities, vulnerability)
}

func (a *assessment) recommendIfDeducted(recs ...string) {
	if a.score < 100 {
		a.recommendations = append(a.recommendations, recs...)
	}
}

func (a *assessment) result() Assessment {
	return Assessment{
		IsValid:         a.score >= validThreshold,
		Score:           max(a.score, 0),
		Vulnerabilities: a.vulnerabilities,
		Recommendations: a.recommendations,
		RiskLevel:       riskLevel(a.score),
	}
}

func riskLevel(score int) RiskLevel {
	switch {
	case score >= 90:
		return RiskLow
	case score >= 70:
		return RiskMedium
	case score >= 50:
		return RiskHigh
	default:
		return RiskCritical
	}
}

// InspectJWT checks the structure and time claims of token as of now.
func InspectJWT(token string) Assessment {
	return InspectJWTAt(token, time.Now())
}

func InspectJWTAt(token string, now time.Time) Assessment {
	a := newAssessment()

	if token == "" {
		a.deduct(30, "Invalid token format")
	}
	if strings.Count(token, ".") != 2 {
		a.deduct(25, "Invalid JWT structure")
	}

	claims := jwt.MapClaims{}
	parsed, _, err := jwt.NewParser().ParseUnverified(token, claims)
	if err != nil && (parsed == nil || !errors.Is(err, jwt.ErrTokenUnverifiable)) {
		a.deduct(50, "Token parsing failed")
		a.recommendations = append(a.recommendations, "Ensure token is properly formatted")
		return a.result()
	}

	alg, _ := parsed.Header["alg"].(string)
	switch alg {
	case "":
		a.deduct(15, "Missing algorithm in JWT header")
	case jwt.SigningMethodNone.Alg():
		a.deduct(40, "Unsafe algorithm (none) detected")
	}

	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil && exp.Before(now) {
		a.deduct(20, "Token has expired")
	}
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil && iat.After(now) {
		a.deduct(15, "Token issued in the future")
	}
	if nbf, err := claims.GetNotBefore(); err == nil && nbf != nil && nbf.After(now) {
		a.deduct(10, "Token not yet valid")
	}

	a.recommendIfDeducted(
		"Consider implementing token refresh mechanism",
		"Validate token expiration before use",
		"Use secure algorithms (RS256, ES256)",
	)
	return a.result()
}

// InspectAccessToken checks length, charset and test markers.
func InspectAccessToken(token string) Assessment {
	a := newAssessment()

	if len(token) < 20 {
		a.deduct(20, "Access token too short")
	}
	if len(token) > 1000 {
		a.deduct(15, "Access token suspiciously long")
	}
	if strings.Contains(token, "test") || strings.Contains(token, "demo") {
		a.deduct(10, "Token contains test/demo patterns")
	}
	if !accessTokenPattern.MatchString(token) {
		a.deduct(15, "Token contains invalid characters")
	}

	a.recommendIfDeducted(
		"Use cryptographically secure tokens",
		"Implement proper token validation",
		"Store tokens securely",
	)
	return a.result()
}

// ScanOptions looks for weak login configuration.
func ScanOptions(clientID, redirectURL, nonce string) Assessment {
	a := newAssessment()

	if clientID != "" && len(clientID) < 10 {
		a.deduct(10, "Client ID is too short")
	}
	if testClientPattern.MatchString(clientID) {
		a.deduct(15, "Client ID contains test/demo patterns")
	}

	if redirectURL != "" {
		u, err := url.Parse(redirectURL)
		switch {
		case err != nil || u.Scheme == "":
			a.deduct(15, "Invalid redirect URL format")
		case u.Scheme == "http":
			a.deduct(20, "Redirect URL uses insecure HTTP protocol")
		}
	}

	switch {
	case nonce == "":
		a.deduct(15, "Missing nonce for CSRF protection")
	default:
		if len(nonce) < 20 {
			a.deduct(10, "Nonce value is too short")
		}
		if !strongNoncePattern.MatchString(nonce) {
			a.deduct(10, "Nonce contains invalid characters")
		}
	}

	a.recommendIfDeducted(
		"Use HTTPS for all redirect URLs",
		"Implement proper CSRF protection",
		"Use cryptographically secure nonce values",
		"Validate all input parameters",
	)
	return a.result()
}

// Input is what Assess looks at. Empty tokens are skipped.
type Input struct {
	ClientID    string
	RedirectURL string
	Nonce       string
	IDToken     string
	AccessToken string
}

type Report struct {
	OptionScan      Assessment   `json:"vulnerabilityScan"`
	TokenSecurity   []Assessment `json:"tokenSecurity"`
	OverallScore    int          `json:"overallScore"`
	Recommendations []string     `json:"recommendations"`
}

// Assess combines the option scan with an inspection of each token. The
// overall score is the rounded mean of the individual scores.
func Assess(in Input) Report {
	report := Report{
		OptionScan:    ScanOptions(in.ClientID, in.RedirectURL, in.Nonce),
		TokenSecurity: []Assessment{},
	}
	if in.IDToken != "" {
		report.TokenSecurity = append(report.TokenSecurity, InspectJWT(in.IDToken))
	}
	if in.AccessToken != "" {
		report.TokenSecurity = append(report.TokenSecurity, InspectAccessToken(in.AccessToken))
	}

	all := append([]Assessment{report.OptionScan}, report.TokenSecurity...)
	total := 0
	seen := make(map[string]bool)
	for _, a := range all {
		total += a.Score
		for _, rec := range a.Recommendations {
			if !seen[rec] {
				seen[rec] = true
				report.Recommendations = append(report.Recommendations, rec)
			}
		}
	}
	report.OverallScore = int(math.Round(float64(total) / float64(len(all))))
	return report
}
