package civic

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const testRedirect = "https://app.test/cb"

func TestClassifier_ResolvesOnceOnCallback(t *testing.T) {
	c := NewClassifier(testRedirect)

	events := []CallbackEvent{
		{URL: "https://auth.civic.com/oauth/authorize?client_id=abc&response_type=code"},
		{URL: "https://auth.civic.com/login", IsFinalNavigation: true},
		{URL: testRedirect + "?code=C1&state=s"},
		{URL: testRedirect + "?access_token=late"},
	}

	var transitions []int
	for i, ev := range events {
		if c.Observe(ev) {
			transitions = append(transitions, i)
		}
	}

	assert.Equal(t, []int{2}, transitions)
	assert.Equal(t, StateSucceeded, c.State())
	res := c.Result()
	assert.True(t, res.Success)
	assert.Equal(t, "C1", res.AuthorizationCode)
	assert.Empty(t, res.AccessToken)
}

func TestClassifier_TokenAnywhereSucceeds(t *testing.T) {
	c := NewClassifier(testRedirect)

	assert.True(t, c.Observe(CallbackEvent{URL: "https://elsewhere.test/done?access_token=AAA"}))
	assert.Equal(t, "AAA", c.Result().AccessToken)
}

func TestClassifier_RedirectWithFieldsSucceeds(t *testing.T) {
	c := NewClassifier(testRedirect)

	assert.True(t, c.Observe(CallbackEvent{URL: testRedirect + "?id_token=T&email=a%40b.test"}))
	res := c.Result()
	assert.True(t, res.Success)
	assert.Equal(t, "T", res.IDToken)
	assert.Equal(t, "a@b.test", res.Email)
}

func TestClassifier_BareRedirectStaysPending(t *testing.T) {
	c := NewClassifier(testRedirect)

	assert.False(t, c.Observe(CallbackEvent{URL: testRedirect}))
	assert.False(t, c.Observe(CallbackEvent{URL: testRedirect + "?state=s", IsFinalNavigation: true}))
	assert.Equal(t, StatePending, c.State())
	assert.False(t, c.Resolved())
}

func TestClassifier_OAuthErrorRedirect(t *testing.T) {
	c := NewClassifier(testRedirect)
	assert.True(t, c.Observe(CallbackEvent{URL: testRedirect + "?error=access_denied"}))
	assert.Equal(t, StateFailed, c.State())
	assert.Equal(t, ErrorCodeUserCancelled, c.Result().ErrorKind)

	c = NewClassifier(testRedirect)
	assert.True(t, c.Observe(CallbackEvent{URL: testRedirect + "?error=server_error&error_description=boom"}))
	res := c.Result()
	assert.Equal(t, ErrorCodeUnknown, res.ErrorKind)
	assert.Equal(t, "server_error: boom", res.Error)
}

func TestClassifier_ErrorOutsideRedirectIgnored(t *testing.T) {
	c := NewClassifier(testRedirect)

	assert.False(t, c.Observe(CallbackEvent{URL: "https://auth.civic.com/login?error=invalid_password"}))
	assert.Equal(t, StatePending, c.State())
}

func TestClassifier_PlatformError(t *testing.T) {
	c := NewClassifier(testRedirect)

	assert.True(t, c.PlatformError(-2, "net::ERR_NAME_NOT_RESOLVED", "https://auth.civic.com/oauth/authorize"))
	res := c.Result()
	assert.False(t, res.Success)
	assert.Equal(t, ErrorCodeNetwork, res.ErrorKind)
	assert.Contains(t, res.Error, "ERR_NAME_NOT_RESOLVED")

	assert.False(t, c.Observe(CallbackEvent{URL: testRedirect + "?code=late"}))
	assert.False(t, c.Fail(ErrorCodeTimeout, "late"))
	assert.Equal(t, ErrorCodeNetwork, c.Result().ErrorKind)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "pending", StatePending.String())
	assert.Equal(t, "succeeded", StateSucceeded.String())
	assert.Equal(t, "failed", StateFailed.String())
	assert.Equal(t, "State(7)", State(7).String())
}
