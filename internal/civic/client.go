package civic

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"civicauth/internal/security"
	"civicauth/pkg/idgen"
	"civicauth/pkg/logger"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	DefaultLoginTimeout = 5 * time.Minute

	retryInitialInterval = time.Second
	retryMultiplier      = 2
	retryJitter          = 0.1
	retryMaxInterval     = 30 * time.Second
)

var errRetryable = errors.New("retryable login failure")

// Client runs Civic logins through web views produced by its factory.
type Client struct {
	factory       WebViewFactory
	runtime       *Runtime
	ownsRuntime   bool
	validator     *Validator
	ids           idgen.Generator
	log           logger.Logger
	authEndpoint  string
	timeout       time.Duration
	inspectTokens bool
	retryBackOff  func() backoff.BackOff
}

type Option func(*Client)

func WithWebViewFactory(f WebViewFactory) Option {
	return func(c *Client) { c.factory = f }
}

// WithRuntime shares rt between clients. The caller keeps ownership.
func WithRuntime(rt *Runtime) Option {
	return func(c *Client) { c.runtime = rt }
}

func WithAllowedSchemes(schemes ...string) Option {
	return func(c *Client) { c.validator = NewValidator(schemes) }
}

func WithIDGenerator(g idgen.Generator) Option {
	return func(c *Client) { c.ids = g }
}

func WithLogger(l logger.Logger) Option {
	return func(c *Client) { c.log = l }
}

func WithAuthEndpoint(endpoint string) Option {
	return func(c *Client) { c.authEndpoint = endpoint }
}

// WithTimeout bounds each attempt. Zero leaves only the caller's context.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithTokenInspection turns a success whose id_token fails inspection
// into an INVALID_TOKEN failure.
func WithTokenInspection(enabled bool) Option {
	return func(c *Client) { c.inspectTokens = enabled }
}

func NewClient(opts ...Option) (*Client, error) {
	c := &Client{
		validator:    NewValidator(nil),
		authEndpoint: DefaultAuthEndpoint,
		timeout:      DefaultLoginTimeout,
		retryBackOff: defaultRetryBackOff,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.log == nil {
		c.log = logger.NewNop()
	}
	if c.ids == nil {
		gen, err := idgen.NewSnowflakeGenerator(0)
		if err != nil {
			return nil, err
		}
		c.ids = gen
	}
	if c.runtime == nil {
		rt, err := NewRuntime(RuntimeConfig{Logger: c.log})
		if err != nil {
			return nil, fmt.Errorf("creating runtime: %w", err)
		}
		c.runtime = rt
		c.ownsRuntime = true
	}
	return c, nil
}

func (c *Client) Runtime() *Runtime {
	return c.runtime
}

// Close disposes the runtime when the client created it.
func (c *Client) Close() error {
	if !c.ownsRuntime {
		return nil
	}
	return c.runtime.Dispose()
}

// LoginWithCivic runs one login attempt. Every runtime failure is reported
// in the returned AuthResult; the error is non-nil only when the client
// cannot open a web view at all.
func (c *Client) LoginWithCivic(ctx context.Context, opts LoginOptions) (AuthResult, error) {
	if c.factory == nil {
		return AuthResult{}, ErrNoWebView
	}

	req, res, ok := c.prepare(ctx, opts, false)
	if !ok {
		return res, nil
	}
	return c.login(ctx, req), nil
}

// LoginWithRetry is LoginWithCivic retried up to maxRetries more times
// while the failure is retryable, backing off between attempts. The
// validated request is cached and reused across attempts.
func (c *Client) LoginWithRetry(ctx context.Context, opts LoginOptions, maxRetries uint) (AuthResult, error) {
	if c.factory == nil {
		return AuthResult{}, ErrNoWebView
	}

	attempt := 0
	var lastKind ErrorCode
	operation := func() (AuthResult, error) {
		attempt++
		req, res, ok := c.prepare(ctx, opts, attempt > 1)
		if !ok {
			return res, backoff.Permanent(errors.New(res.Error))
		}

		res = c.login(ctx, req)
		lastKind = res.ErrorKind
		switch {
		case res.Success:
			return res, nil
		case !Classify(res).Retryable:
			return res, backoff.Permanent(errors.New(res.Error))
		default:
			return res, errRetryable
		}
	}

	// The last attempt's result is returned whatever Retry reports.
	res, _ := backoff.Retry(ctx, operation,
		backoff.WithBackOff(c.retryBackOff()),
		backoff.WithMaxTries(maxRetries+1),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(_ error, next time.Duration) {
			c.log.Info("retrying civic login",
				logger.Field{Key: "attempt", Value: attempt},
				logger.Field{Key: "error_kind", Value: string(lastKind)},
				logger.Field{Key: "next_in", Value: next.String()},
			)
		}),
	)
	return res, nil
}

// prepare validates opts, or takes the cached request when useCache is
// set and one exists. ok is false when validation failed; res then holds
// the failure to report.
func (c *Client) prepare(ctx context.Context, opts LoginOptions, useCache bool) (req LoginRequest, res AuthResult, ok bool) {
	if useCache {
		if cached, hit := c.runtime.Requests.Get(ctx, opts); hit {
			return cached, AuthResult{}, true
		}
	}

	req, err := c.validator.Validate(opts)
	if err != nil {
		var verr *ValidationError
		if !errors.As(err, &verr) {
			return LoginRequest{}, Failure(ErrorCodeUnknown, err.Error()), false
		}
		c.log.Warn("civic login options rejected",
			logger.Field{Key: "violations", Value: err.Error()},
		)
		return LoginRequest{}, Failure(verr.Code(), verr.Error()), false
	}

	if err := c.runtime.Requests.Put(ctx, opts, req); err != nil {
		c.log.Warn("login request not cached", logger.Field{Key: "error", Value: err})
	}
	return req, AuthResult{}, true
}

func (c *Client) login(ctx context.Context, req LoginRequest) AuthResult {
	id := c.ids.NextID()
	log := c.log.With(logger.Field{Key: "attempt_id", Value: id})

	ctx, span := c.runtime.Monitor.Start(ctx, id)
	defer span.End()

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	started := time.Now()
	authURL := BuildAuthURL(c.authEndpoint, req)
	log.Info("starting civic login",
		logger.Field{Key: "auth_endpoint", Value: redactURL(authURL)},
		logger.Field{Key: "display_mode", Value: string(req.DisplayMode)},
	)

	interceptor := NewInterceptor(req.RedirectURL, log)
	var res AuthResult
	view, err := c.factory.NewWebView(ctx, interceptor)
	if err != nil {
		res = Failure(ErrorCodeNetwork, fmt.Sprintf("opening web view: %v", err))
	} else {
		c.runtime.Views.Register(id, view)
		res = interceptor.Run(ctx, view, authURL)
		c.runtime.Views.Release(id)
	}

	if res.Success && c.inspectTokens {
		res = inspectResult(res)
	}

	elapsed := time.Since(started)
	c.runtime.Monitor.Record(context.WithoutCancel(ctx), Attempt{
		ID:        id,
		Success:   res.Success,
		ErrorKind: res.ErrorKind,
		StartedAt: started,
		Duration:  elapsed,
	})

	span.SetAttributes(
		attribute.Bool("civic.success", res.Success),
		attribute.Int64("civic.duration_ms", elapsed.Milliseconds()),
	)
	if !res.Success {
		span.SetStatus(codes.Error, string(res.ErrorKind))
		log.Warn("civic login failed",
			logger.Field{Key: "error_kind", Value: string(res.ErrorKind)},
			logger.Field{Key: "error", Value: res.Error},
		)
	} else {
		summary := res.Summary()
		log.Info("civic login succeeded",
			logger.Field{Key: "token_count", Value: summary.TokenCount},
			logger.Field{Key: "has_code", Value: res.AuthorizationCode != ""},
		)
	}
	return res
}

func inspectResult(res AuthResult) AuthResult {
	if res.IDToken == "" {
		return res
	}
	a := security.InspectJWT(res.IDToken)
	if a.IsValid {
		return res
	}
	return Failure(ErrorCodeInvalidToken,
		fmt.Sprintf("id token failed inspection (score %d): %s", a.Score, strings.Join(a.Vulnerabilities, ", ")))
}

func defaultRetryBackOff() backoff.BackOff {
	return &backoff.ExponentialBackOff{
		InitialInterval:     retryInitialInterval,
		RandomizationFactor: retryJitter,
		Multiplier:          retryMultiplier,
		MaxInterval:         retryMaxInterval,
	}
}
