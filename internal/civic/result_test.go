package civic

import (
	"encoding/json"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedIDToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return tok
}

func TestAssemble_CodeOnly(t *testing.T) {
	res := Assemble(map[string]string{FieldCode: "C1"})

	assert.True(t, res.Success)
	assert.Equal(t, "C1", res.AuthorizationCode)
	assert.False(t, res.HasTokens())
	assert.Nil(t, res.Token())
}

func TestAssemble_ClaimsEnrichment(t *testing.T) {
	idToken := signedIDToken(t, jwt.MapClaims{
		"sub":   "user-42",
		"email": "claims@civic.test",
		"name":  "Ada",
	})

	res := Assemble(map[string]string{
		FieldIDToken: idToken,
		FieldEmail:   "url@civic.test",
	})

	assert.Equal(t, "Ada", res.Name)
	assert.Equal(t, "user-42", res.UserID)
	assert.Equal(t, "url@civic.test", res.Email, "redirect value wins over claims")
}

func TestAssemble_OpaqueIDToken(t *testing.T) {
	res := Assemble(map[string]string{FieldIDToken: "opaque"})

	assert.True(t, res.Success)
	assert.Equal(t, "opaque", res.IDToken)
	assert.Empty(t, res.Name)
}

func TestAuthResult_Token(t *testing.T) {
	res := Assemble(map[string]string{
		FieldAccessToken:  "AT",
		FieldRefreshToken: "RT",
		FieldIDToken:      "IT",
	})

	tok := res.Token()
	require.NotNil(t, tok)
	assert.Equal(t, "AT", tok.AccessToken)
	assert.Equal(t, "RT", tok.RefreshToken)
	assert.Equal(t, "Bearer", tok.Type())
	assert.Equal(t, "IT", tok.Extra(FieldIDToken))

	assert.Nil(t, Failure(ErrorCodeTimeout, "late").Token())
}

func TestAuthResult_Summary(t *testing.T) {
	res := AuthResult{Success: true, IDToken: "a", AccessToken: "b", Email: "e@x.test"}

	assert.Equal(t, ResultSummary{
		Success:       true,
		HasTokens:     true,
		HasUserInfo:   true,
		TokenCount:    2,
		UserInfoCount: 1,
	}, res.Summary())
}

func TestAuthResult_JSONShape(t *testing.T) {
	raw, err := json.Marshal(AuthResult{Success: true, IDToken: "i", UserID: "u", AuthorizationCode: "c"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":true,"idToken":"i","userId":"u","authorizationCode":"c"}`, string(raw))

	raw, err = json.Marshal(Failure(ErrorCodeNetwork, "down"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":false,"errorKind":"NETWORK_ERROR","error":"down"}`, string(raw))
}

func TestAuthResult_FailureMessage(t *testing.T) {
	assert.Equal(t, "TIMEOUT: late", Failure(ErrorCodeTimeout, "late").failureMessage())
	assert.Equal(t, "TIMEOUT", Failure(ErrorCodeTimeout, "").failureMessage())
	assert.Equal(t, "boom", AuthResult{Error: "boom"}.failureMessage())
	assert.Equal(t, "Unknown error", AuthResult{}.failureMessage())
}
