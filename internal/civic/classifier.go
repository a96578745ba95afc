package civic

import (
	"fmt"
	"strings"
)

type State int

const (
	StatePending State = iota
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Classifier decides from observed URLs when a login attempt is over.
// The first terminal transition wins; later input is ignored.
type Classifier struct {
	redirectURL string
	state       State
	result      AuthResult
}

func NewClassifier(redirectURL string) *Classifier {
	return &Classifier{redirectURL: redirectURL}
}

func (c *Classifier) State() State {
	return c.state
}

func (c *Classifier) Resolved() bool {
	return c.state != StatePending
}

// Result is only meaningful once Resolved reports true.
func (c *Classifier) Result() AuthResult {
	return c.result
}

// Observe feeds one navigation to the classifier and reports whether it
// resolved the attempt.
func (c *Classifier) Observe(ev CallbackEvent) bool {
	if c.Resolved() {
		return false
	}

	fields := ExtractFields(ev.URL)
	if fields[FieldCode] != "" || fields[FieldAccessToken] != "" {
		c.resolve(Assemble(fields))
		return true
	}

	if c.redirectURL == "" || !strings.HasPrefix(ev.URL, c.redirectURL) {
		return false
	}
	if len(fields) > 0 {
		c.resolve(Assemble(fields))
		return true
	}

	errCode, desc := oauthError(ev.URL)
	if errCode == "" {
		return false
	}
	if errCode == "access_denied" {
		if desc == "" {
			desc = "user denied the authorization request"
		}
		c.resolve(Failure(ErrorCodeUserCancelled, desc))
		return true
	}
	msg := errCode
	if desc != "" {
		msg = errCode + ": " + desc
	}
	c.resolve(Failure(ErrorCodeUnknown, msg))
	return true
}

// Fail forces a failed resolution, unless the attempt already resolved.
func (c *Classifier) Fail(kind ErrorCode, msg string) bool {
	if c.Resolved() {
		return false
	}
	c.resolve(Failure(kind, msg))
	return true
}

// PlatformError resolves the attempt with a network failure for a web
// view load error.
func (c *Classifier) PlatformError(code int, desc, failingURL string) bool {
	return c.Fail(ErrorCodeNetwork, fmt.Sprintf("WebView error %d: %s (%s)", code, desc, failingURL))
}

func (c *Classifier) resolve(res AuthResult) {
	c.result = res
	if res.Success {
		c.state = StateSucceeded
	} else {
		c.state = StateFailed
	}
}
