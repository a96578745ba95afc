package civic

import (
	"errors"
	"fmt"
	"strings"
)

type ErrorCode string

const (
	ErrorCodeMissingClientID    ErrorCode = "MISSING_CLIENT_ID"
	ErrorCodeMissingRedirectURL ErrorCode = "MISSING_REDIRECT_URL"
	ErrorCodeInvalidClientID    ErrorCode = "INVALID_CLIENT_ID"
	ErrorCodeInvalidRedirectURL ErrorCode = "INVALID_REDIRECT_URL"
	ErrorCodeWeakNonce          ErrorCode = "WEAK_NONCE"
	ErrorCodeInvalidScope       ErrorCode = "INVALID_SCOPE"
	ErrorCodeInvalidDisplayMode ErrorCode = "INVALID_DISPLAY_MODE"
	ErrorCodeNetwork            ErrorCode = "NETWORK_ERROR"
	ErrorCodeTimeout            ErrorCode = "TIMEOUT"
	ErrorCodeUserCancelled      ErrorCode = "USER_CANCELLED"
	ErrorCodeInvalidToken       ErrorCode = "INVALID_TOKEN"
	ErrorCodeUnknown            ErrorCode = "UNKNOWN_ERROR"
)

type ErrorCategory string

const (
	CategoryNetwork        ErrorCategory = "NETWORK"
	CategoryAuthentication ErrorCategory = "AUTHENTICATION"
	CategoryConfiguration  ErrorCategory = "CONFIGURATION"
	CategoryUserAction     ErrorCategory = "USER_ACTION"
	CategorySystem         ErrorCategory = "SYSTEM"
)

var (
	ErrMissingClientID    = errors.New("clientId is required")
	ErrMissingRedirectURL = errors.New("redirectUrl is required")
	ErrInvalidClientID    = errors.New("invalid clientId")
	ErrInvalidRedirectURL = errors.New("invalid redirectUrl")
	ErrWeakNonce          = errors.New("weak nonce")
	ErrInvalidScope       = errors.New("invalid scope")
	ErrInvalidDisplayMode = errors.New("invalid displayMode")

	// ErrNoWebView is returned when a Client has no way to open a web view.
	ErrNoWebView = errors.New("no web view factory configured")
)

// Violation is one failed check on a LoginOptions field.
type Violation struct {
	Code    ErrorCode `json:"code"`
	Field   string    `json:"field"`
	Message string    `json:"message"`
	err     error
}

func (v Violation) Error() string {
	return fmt.Sprintf("%s: %s", v.Code, v.Message)
}

func (v Violation) Unwrap() error {
	return v.err
}

// ValidationError carries every violation found in one pass over the options.
type ValidationError struct {
	Violations []Violation `json:"violations"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, v.Error())
	}
	return strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() []error {
	errs := make([]error, 0, len(e.Violations))
	for _, v := range e.Violations {
		errs = append(errs, v)
	}
	return errs
}

// Code reports the first violation's code.
func (e *ValidationError) Code() ErrorCode {
	if len(e.Violations) == 0 {
		return ErrorCodeUnknown
	}
	return e.Violations[0].Code
}

func (e *ValidationError) Has(code ErrorCode) bool {
	for _, v := range e.Violations {
		if v.Code == code {
			return true
		}
	}
	return false
}

// ErrorInfo is the user-facing description of a failure.
type ErrorInfo struct {
	Category         ErrorCategory `json:"category"`
	Code             ErrorCode     `json:"code"`
	Message          string        `json:"message"`
	UserMessage      string        `json:"userMessage"`
	TechnicalDetails string        `json:"technicalDetails,omitempty"`
	SuggestedAction  string        `json:"suggestedAction"`
	Retryable        bool          `json:"retryable"`
}

// Title is the heading a UI shows above the message.
func (i ErrorInfo) Title() string {
	return string(i.Category) + " Error"
}

// errorCatalogue is matched in order; the first code found in the raw
// message wins.
var errorCatalogue = []ErrorInfo{
	{
		Category:        CategoryConfiguration,
		Code:            ErrorCodeMissingClientID,
		Message:         "Client ID is required for Civic Auth",
		UserMessage:     "Configuration error: Client ID is missing. Please check your setup.",
		SuggestedAction: "Verify that clientId is properly configured in your authentication options.",
	},
	{
		Category:        CategoryConfiguration,
		Code:            ErrorCodeMissingRedirectURL,
		Message:         "Redirect URL is required for Civic Auth",
		UserMessage:     "Configuration error: Redirect URL is missing. Please check your setup.",
		SuggestedAction: "Verify that redirectUrl is properly configured in your authentication options.",
	},
	{
		Category:        CategoryNetwork,
		Code:            ErrorCodeNetwork,
		Message:         "Network connection error",
		UserMessage:     "Network error: Unable to connect to Civic Auth servers.",
		SuggestedAction: "Check your internet connection and try again.",
	},
	{
		Category:        CategoryUserAction,
		Code:            ErrorCodeUserCancelled,
		Message:         "User cancelled the authentication process",
		UserMessage:     "Authentication was cancelled by the user.",
		SuggestedAction: "Try logging in again when you are ready.",
	},
	{
		Category:        CategoryNetwork,
		Code:            ErrorCodeTimeout,
		Message:         "Authentication request timed out",
		UserMessage:     "Request timed out: The authentication process took too long.",
		SuggestedAction: "Check your internet connection and try again.",
	},
	{
		Category:        CategoryAuthentication,
		Code:            ErrorCodeInvalidToken,
		Message:         "Invalid or expired authentication token",
		UserMessage:     "Authentication error: The provided token is invalid or has expired.",
		SuggestedAction: "Try logging in again to get a fresh token.",
	},
	{
		Category:        CategoryConfiguration,
		Code:            ErrorCodeInvalidClientID,
		Message:         "Client ID has an invalid format",
		UserMessage:     "Configuration error: Client ID is not valid.",
		SuggestedAction: "Use the project ID shown in the Civic dashboard (letters, digits, '-' and '_').",
	},
	{
		Category:        CategoryConfiguration,
		Code:            ErrorCodeInvalidRedirectURL,
		Message:         "Redirect URL is not allowed",
		UserMessage:     "Configuration error: Redirect URL is not valid.",
		SuggestedAction: "Use an absolute https URL or a registered app scheme.",
	},
	{
		Category:        CategoryConfiguration,
		Code:            ErrorCodeWeakNonce,
		Message:         "Nonce is too weak",
		UserMessage:     "Configuration error: The nonce is too short.",
		SuggestedAction: "Generate a random nonce of at least 10 characters for every login.",
	},
	{
		Category:        CategoryConfiguration,
		Code:            ErrorCodeInvalidScope,
		Message:         "Scope contains unsupported values",
		UserMessage:     "Configuration error: Unsupported scope requested.",
		SuggestedAction: "Request only openid, profile and email.",
	},
	{
		Category:        CategoryConfiguration,
		Code:            ErrorCodeInvalidDisplayMode,
		Message:         "Display mode is not supported",
		UserMessage:     "Configuration error: Unsupported display mode.",
		SuggestedAction: "Use popup or redirect.",
	},
}

var unknownError = ErrorInfo{
	Category:        CategorySystem,
	Code:            ErrorCodeUnknown,
	UserMessage:     "An unexpected error occurred during authentication.",
	SuggestedAction: "Please try again. If the problem persists, contact support.",
}

// Classify maps any raw failure signal (error, string, failed AuthResult)
// onto the fixed error taxonomy.
func Classify(raw any) ErrorInfo {
	msg := rawMessage(raw)

	var info ErrorInfo
	if code, ok := knownCode(raw); ok {
		info, _ = lookupCode(code)
	} else {
		info = matchMessage(msg)
	}

	if info.Code == ErrorCodeUnknown {
		info.Message = msg
	}
	info.TechnicalDetails = msg
	info.Retryable = isRetryable(info)
	return info
}

func matchMessage(msg string) ErrorInfo {
	for _, entry := range errorCatalogue {
		if strings.Contains(msg, string(entry.Code)) {
			return entry
		}
	}
	return unknownError
}

func lookupCode(code ErrorCode) (ErrorInfo, bool) {
	for _, entry := range errorCatalogue {
		if entry.Code == code {
			return entry, true
		}
	}
	return unknownError, code == ErrorCodeUnknown
}

func knownCode(raw any) (ErrorCode, bool) {
	switch v := raw.(type) {
	case AuthResult:
		return v.ErrorKind, v.ErrorKind != ""
	case *AuthResult:
		if v != nil {
			return v.ErrorKind, v.ErrorKind != ""
		}
	case *ValidationError:
		if v != nil && len(v.Violations) > 0 {
			return v.Code(), true
		}
	}
	return "", false
}

func rawMessage(raw any) string {
	switch v := raw.(type) {
	case nil:
		return "Unknown error"
	case AuthResult:
		return v.failureMessage()
	case *AuthResult:
		if v == nil {
			return "Unknown error"
		}
		return v.failureMessage()
	case error:
		return v.Error()
	case string:
		if v == "" {
			return "Unknown error"
		}
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

func isRetryable(info ErrorInfo) bool {
	return info.Category == CategoryNetwork ||
		info.Code == ErrorCodeTimeout ||
		info.Code == ErrorCodeUnknown
}
