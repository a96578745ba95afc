package civic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"civicauth/pkg/cache"
	"civicauth/pkg/logger"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultMaxViews   = 3
	DefaultRequestTTL = 5 * time.Minute

	viewMemoryEstimate = 10 * 1024 * 1024
	maxAttempts        = 100
	recentAttempts     = 10
	requestKeyPrefix   = "civic:request:"
	instrumentation    = "civicauth/internal/civic"
)

// RuntimeConfig configures NewRuntime. Zero values select the defaults; a
// nil Cache gives the runtime its own in-memory store.
type RuntimeConfig struct {
	Cache      cache.Cache
	RequestTTL time.Duration
	MaxViews   int
	Logger     logger.Logger
}

// Runtime is the state shared by the login attempts of one Client: live
// web views, cached requests and attempt statistics. The caller creates
// it and must Dispose it.
type Runtime struct {
	Views    *ViewRegistry
	Requests *RequestCache
	Monitor  *Monitor

	ownedCache  cache.Cache
	disposeOnce sync.Once
	disposeErr  error
}

func NewRuntime(cfg RuntimeConfig) (*Runtime, error) {
	log := cfg.Logger
	if log == nil {
		log = logger.NewNop()
	}
	ttl := cfg.RequestTTL
	if ttl <= 0 {
		ttl = DefaultRequestTTL
	}
	maxViews := cfg.MaxViews
	if maxViews <= 0 {
		maxViews = DefaultMaxViews
	}

	rt := &Runtime{}
	store := cfg.Cache
	if store == nil {
		mem := cache.NewMemoryCache(time.Minute)
		rt.ownedCache = mem
		store = mem
	}

	monitor, err := NewMonitor()
	if err != nil {
		if rt.ownedCache != nil {
			_ = rt.ownedCache.Close()
		}
		return nil, err
	}

	rt.Views = NewViewRegistry(maxViews, log)
	rt.Requests = NewRequestCache(store, ttl)
	rt.Monitor = monitor
	return rt, nil
}

// Report is a snapshot of the runtime for diagnostics.
type Report struct {
	Views       ViewStats  `json:"webView"`
	Performance Statistics `json:"performance"`
}

func (r *Runtime) Report() Report {
	return Report{
		Views:       r.Views.Stats(),
		Performance: r.Monitor.Statistics(),
	}
}

// Dispose force-cleans every live web view and closes the cache the
// runtime created itself. It is safe to call more than once.
func (r *Runtime) Dispose() error {
	r.disposeOnce.Do(func() {
		var errs []error
		if err := r.Views.DisposeAll(); err != nil {
			errs = append(errs, err)
		}
		if r.ownedCache != nil {
			if err := r.ownedCache.Close(); err != nil {
				errs = append(errs, fmt.Errorf("closing request cache: %w", err))
			}
		}
		r.disposeErr = errors.Join(errs...)
	})
	return r.disposeErr
}

// ============================================================================
// Web view registry
// ============================================================================

type ViewStats struct {
	ActiveCount    int   `json:"activeCount"`
	Limit          int   `json:"limit"`
	EstimatedBytes int64 `json:"totalMemory"`
}

// ViewRegistry tracks the web views of in-flight attempts. Exceeding the
// limit is only reported; views belong to their attempts until released.
type ViewRegistry struct {
	mu    sync.Mutex
	views map[string]WebView
	limit int
	log   logger.Logger
}

func NewViewRegistry(limit int, log logger.Logger) *ViewRegistry {
	return &ViewRegistry{
		views: make(map[string]WebView),
		limit: limit,
		log:   log,
	}
}

func (r *ViewRegistry) Register(id string, view WebView) {
	r.mu.Lock()
	r.views[id] = view
	active := len(r.views)
	r.mu.Unlock()

	if active > r.limit {
		r.log.Warn("too many active web views",
			logger.Field{Key: "active", Value: active},
			logger.Field{Key: "limit", Value: r.limit},
		)
	}
}

// Release forgets a view. Disposing it stays with its owner.
func (r *ViewRegistry) Release(id string) {
	r.mu.Lock()
	delete(r.views, id)
	r.mu.Unlock()
}

func (r *ViewRegistry) Stats() ViewStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return ViewStats{
		ActiveCount:    len(r.views),
		Limit:          r.limit,
		EstimatedBytes: int64(len(r.views)) * viewMemoryEstimate,
	}
}

// DisposeAll disposes and forgets every tracked view.
func (r *ViewRegistry) DisposeAll() error {
	r.mu.Lock()
	views := r.views
	r.views = make(map[string]WebView)
	r.mu.Unlock()

	var errs []error
	for id, view := range views {
		if err := view.Dispose(); err != nil {
			errs = append(errs, fmt.Errorf("disposing web view %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

// ============================================================================
// Request cache
// ============================================================================

// RequestCache keeps validated requests so retries skip validation.
type RequestCache struct {
	store cache.Cache
	ttl   time.Duration
}

func NewRequestCache(store cache.Cache, ttl time.Duration) *RequestCache {
	return &RequestCache{store: store, ttl: ttl}
}

// RequestKey is the cache key of opts. Display mode and scope are appended
// only when set, so logins differing in either never share a cached request.
func RequestKey(opts LoginOptions) string {
	nonce := opts.Nonce
	if nonce == "" {
		nonce = "default"
	}
	key := fmt.Sprintf("%s%s-%s-%s", requestKeyPrefix, opts.ClientID, opts.RedirectURL, nonce)

	scope := strings.Join(strings.Fields(opts.Scope), " ")
	if opts.DisplayMode == "" && scope == "" {
		return key
	}
	mode := opts.DisplayMode
	if mode == "" {
		mode = "default"
	}
	if scope == "" {
		scope = "default"
	}
	return fmt.Sprintf("%s-%s-%s", key, mode, scope)
}

func (c *RequestCache) Put(ctx context.Context, opts LoginOptions, req LoginRequest) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encoding login request: %w", err)
	}
	if err := c.store.Set(ctx, RequestKey(opts), string(payload), c.ttl); err != nil {
		return fmt.Errorf("caching login request: %w", err)
	}
	return nil
}

// Get reports false on a miss or when the cached value is unusable.
func (c *RequestCache) Get(ctx context.Context, opts LoginOptions) (LoginRequest, bool) {
	raw, err := c.store.Get(ctx, RequestKey(opts))
	if err != nil {
		return LoginRequest{}, false
	}
	var req LoginRequest
	if err := json.Unmarshal([]byte(raw), &req); err != nil {
		return LoginRequest{}, false
	}
	return req, true
}

func (c *RequestCache) Invalidate(ctx context.Context, opts LoginOptions) error {
	return c.store.Del(ctx, RequestKey(opts))
}

// ============================================================================
// Monitor
// ============================================================================

type Attempt struct {
	ID        string        `json:"id"`
	Success   bool          `json:"success"`
	ErrorKind ErrorCode     `json:"errorKind,omitempty"`
	StartedAt time.Time     `json:"startedAt"`
	Duration  time.Duration `json:"duration"`
}

type Statistics struct {
	TotalOperations int           `json:"totalOperations"`
	AverageDuration time.Duration `json:"averageDuration"`
	SuccessRate     float64       `json:"successRate"`
	Recent          []Attempt     `json:"recentMetrics"`
}

// Monitor records finished attempts in otel instruments and keeps the
// last hundred in memory.
type Monitor struct {
	tracer   trace.Tracer
	attempts metric.Int64Counter
	duration metric.Float64Histogram

	mu      sync.Mutex
	history []Attempt
}

func NewMonitor() (*Monitor, error) {
	meter := otel.Meter(instrumentation)

	attempts, err := meter.Int64Counter("civic.login.attempts",
		metric.WithDescription("Login attempts by outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating attempts counter: %w", err)
	}

	duration, err := meter.Float64Histogram("civic.login.duration",
		metric.WithDescription("Login attempt duration"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating duration histogram: %w", err)
	}

	return &Monitor{
		tracer:   otel.Tracer(instrumentation),
		attempts: attempts,
		duration: duration,
	}, nil
}

// Start opens the span covering one attempt.
func (m *Monitor) Start(ctx context.Context, attemptID string) (context.Context, trace.Span) {
	return m.tracer.Start(ctx, "civic.login",
		trace.WithAttributes(attribute.String("civic.attempt_id", attemptID)),
	)
}

func (m *Monitor) Record(ctx context.Context, a Attempt) {
	outcome := "success"
	if !a.Success {
		outcome = "failure"
	}
	attrs := metric.WithAttributes(
		attribute.String("outcome", outcome),
		attribute.String("error_kind", string(a.ErrorKind)),
	)
	m.attempts.Add(ctx, 1, attrs)
	m.duration.Record(ctx, float64(a.Duration.Milliseconds()), attrs)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = append(m.history, a)
	if len(m.history) > maxAttempts {
		m.history = append([]Attempt(nil), m.history[len(m.history)-maxAttempts:]...)
	}
}

func (m *Monitor) Statistics() Statistics {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := Statistics{TotalOperations: len(m.history)}
	if len(m.history) == 0 {
		stats.Recent = []Attempt{}
		return stats
	}

	var total time.Duration
	var succeeded int
	for _, a := range m.history {
		total += a.Duration
		if a.Success {
			succeeded++
		}
	}
	stats.AverageDuration = total / time.Duration(len(m.history))
	stats.SuccessRate = float64(succeeded) / float64(len(m.history))

	from := max(len(m.history)-recentAttempts, 0)
	stats.Recent = append([]Attempt(nil), m.history[from:]...)
	return stats
}

func (m *Monitor) Reset() {
	m.mu.Lock()
	m.history = nil
	m.mu.Unlock()
}
