package civic

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"civicauth/pkg/logger"
)

type eventKind int

const (
	eventPageFinished eventKind = iota
	eventNavigation
	eventLoadError
)

func (k eventKind) String() string {
	switch k {
	case eventPageFinished:
		return "page_finished"
	case eventNavigation:
		return "navigation"
	default:
		return "load_error"
	}
}

type viewEvent struct {
	kind  eventKind
	url   string
	code  int
	desc  string
	reply chan bool
}

// Interceptor owns one web view for the length of one login attempt. It
// implements NavigationListener; events are queued to the loop in Run and
// classified there one at a time.
type Interceptor struct {
	classifier *Classifier
	log        logger.Logger

	events chan viewEvent
	done   chan struct{}

	mu          sync.Mutex
	view        WebView
	disposeOnce sync.Once
	disposeErr  error
}

func NewInterceptor(redirectURL string, log logger.Logger) *Interceptor {
	if log == nil {
		log = logger.NewNop()
	}
	return &Interceptor{
		classifier: NewClassifier(redirectURL),
		log:        log,
		events:     make(chan viewEvent),
		done:       make(chan struct{}),
	}
}

func (i *Interceptor) OnPageFinished(url string) {
	i.send(viewEvent{kind: eventPageFinished, url: url})
}

func (i *Interceptor) OnShouldInterceptNavigation(url string) bool {
	reply := make(chan bool, 1)
	if !i.send(viewEvent{kind: eventNavigation, url: url, reply: reply}) {
		return true
	}
	select {
	case handled := <-reply:
		return handled
	case <-i.done:
		return true
	}
}

func (i *Interceptor) OnError(code int, description, failingURL string) {
	i.send(viewEvent{kind: eventLoadError, url: failingURL, code: code, desc: description})
}

// send reports false when the attempt is already over.
func (i *Interceptor) send(ev viewEvent) bool {
	select {
	case i.events <- ev:
		return true
	case <-i.done:
		return false
	}
}

// Run loads authURL in view and blocks until the attempt resolves or ctx
// ends. The view is disposed before Run returns.
func (i *Interceptor) Run(ctx context.Context, view WebView, authURL string) AuthResult {
	i.mu.Lock()
	i.view = view
	i.mu.Unlock()

	defer func() {
		if err := i.Dispose(); err != nil {
			i.log.Warn("web view dispose failed", logger.Field{Key: "error", Value: err})
		}
	}()
	defer close(i.done)

	loadErr := make(chan error, 1)
	go func() {
		loadErr <- view.Load(ctx, authURL)
	}()

	for {
		select {
		case <-ctx.Done():
			i.cancel(ctx.Err())
			return i.classifier.Result()

		case err := <-loadErr:
			loadErr = nil
			if err == nil {
				continue
			}
			if ctx.Err() != nil {
				i.cancel(ctx.Err())
			} else {
				i.classifier.Fail(ErrorCodeNetwork, fmt.Sprintf("loading authorization page: %v", err))
			}
			return i.classifier.Result()

		case ev := <-i.events:
			if i.handle(ev) {
				i.log.Info("login attempt resolved",
					logger.Field{Key: "outcome", Value: i.classifier.State().String()},
					logger.Field{Key: "error_kind", Value: string(i.classifier.Result().ErrorKind)},
				)
				return i.classifier.Result()
			}
		}
	}
}

func (i *Interceptor) handle(ev viewEvent) bool {
	i.log.Debug("web view event",
		logger.Field{Key: "kind", Value: ev.kind.String()},
		logger.Field{Key: "url", Value: redactURL(ev.url)},
	)

	var resolved bool
	switch ev.kind {
	case eventLoadError:
		resolved = i.classifier.PlatformError(ev.code, ev.desc, redactURL(ev.url))
	default:
		resolved = i.classifier.Observe(CallbackEvent{
			URL:               ev.url,
			IsFinalNavigation: ev.kind == eventPageFinished,
		})
	}

	if ev.reply != nil {
		ev.reply <- resolved
	}
	return resolved
}

func (i *Interceptor) cancel(err error) {
	if errors.Is(err, context.DeadlineExceeded) {
		i.classifier.Fail(ErrorCodeTimeout, "login did not complete before the deadline")
		return
	}
	i.classifier.Fail(ErrorCodeUserCancelled, "login cancelled")
}

// Dispose releases the web view. Only the first call has any effect.
func (i *Interceptor) Dispose() error {
	i.mu.Lock()
	view := i.view
	i.mu.Unlock()
	if view == nil {
		return nil
	}

	i.disposeOnce.Do(func() {
		i.log.Debug("disposing web view")
		i.disposeErr = view.Dispose()
	})
	return i.disposeErr
}
