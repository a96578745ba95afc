package civic

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify_Messages(t *testing.T) {
	tests := []struct {
		name      string
		raw       any
		code      ErrorCode
		category  ErrorCategory
		retryable bool
	}{
		{"timeout text", "Request TIMEOUT after 30s", ErrorCodeTimeout, CategoryNetwork, true},
		{"network error", errors.New("NETWORK_ERROR: dns"), ErrorCodeNetwork, CategoryNetwork, true},
		{"missing client", fmt.Errorf("login: %w", errors.New("MISSING_CLIENT_ID")), ErrorCodeMissingClientID, CategoryConfiguration, false},
		{"cancelled", "USER_CANCELLED", ErrorCodeUserCancelled, CategoryUserAction, false},
		{"invalid token", "INVALID_TOKEN expired", ErrorCodeInvalidToken, CategoryAuthentication, false},
		{"unknown", "something odd", ErrorCodeUnknown, CategorySystem, true},
		{"nil", nil, ErrorCodeUnknown, CategorySystem, true},
		{"first match wins", "NETWORK_ERROR then TIMEOUT", ErrorCodeNetwork, CategoryNetwork, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := Classify(tt.raw)
			assert.Equal(t, tt.code, info.Code)
			assert.Equal(t, tt.category, info.Category)
			assert.Equal(t, tt.retryable, info.Retryable)
			assert.NotEmpty(t, info.UserMessage)
			assert.NotEmpty(t, info.SuggestedAction)
		})
	}
}

func TestClassify_CatalogueOrder(t *testing.T) {
	// MISSING_REDIRECT_URL is listed before TIMEOUT.
	info := Classify("TIMEOUT while MISSING_REDIRECT_URL")
	assert.Equal(t, ErrorCodeMissingRedirectURL, info.Code)
}

func TestClassify_AuthResult(t *testing.T) {
	info := Classify(Failure(ErrorCodeWeakNonce, "nonce too short"))

	assert.Equal(t, ErrorCodeWeakNonce, info.Code)
	assert.Equal(t, CategoryConfiguration, info.Category)
	assert.False(t, info.Retryable)
	assert.Equal(t, "WEAK_NONCE: nonce too short", info.TechnicalDetails)
	assert.Equal(t, "CONFIGURATION Error", info.Title())
}

func TestClassify_ValidationError(t *testing.T) {
	_, err := NewValidator(nil).Validate(LoginOptions{ClientID: "abc"})

	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
	info := Classify(verr)
	assert.Equal(t, ErrorCodeMissingRedirectURL, info.Code)
}

func TestClassify_UnknownKeepsMessage(t *testing.T) {
	info := Classify(Failure(ErrorCodeUnknown, "server_error: boom"))

	assert.Equal(t, ErrorCodeUnknown, info.Code)
	assert.Equal(t, "UNKNOWN_ERROR: server_error: boom", info.Message)
	assert.True(t, info.Retryable)
}
