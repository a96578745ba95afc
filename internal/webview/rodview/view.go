package rodview

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"civicauth/internal/civic"
	"civicauth/pkg/logger"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// netErrorCode is reported to the listener for every failed document
// load; Chromium's numeric net error is not part of the event.
const netErrorCode = -1

type view struct {
	page      *rod.Page
	mainFrame proto.PageFrameID
	listener  civic.NavigationListener
	log       logger.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	lastURL  string
	requests map[proto.NetworkRequestID]string

	once       sync.Once
	disposeErr error
}

func newView(ctx context.Context, page *rod.Page, l civic.NavigationListener, log logger.Logger) (*view, error) {
	viewCtx, cancel := context.WithCancel(ctx)
	v := &view{
		page:      page,
		mainFrame: page.FrameID,
		listener:  l,
		log:       log,
		ctx:       viewCtx,
		cancel:    cancel,
		requests:  make(map[proto.NetworkRequestID]string),
	}

	p := page.Context(viewCtx)

	// Pause document requests only. Enabling Fetch before EachEvent keeps
	// these patterns in place.
	enable := proto.FetchEnable{Patterns: []*proto.FetchRequestPattern{{
		URLPattern:   "*",
		ResourceType: proto.NetworkResourceTypeDocument,
		RequestStage: proto.FetchRequestStageRequest,
	}}}
	if err := enable.Call(p); err != nil {
		cancel()
		_ = page.Close()
		return nil, fmt.Errorf("intercepting navigations: %w", err)
	}

	go p.EachEvent(
		v.onRequestPaused,
		v.onRequestWillBeSent,
		v.onFrameNavigated,
		v.onLoadEventFired,
		v.onLoadingFailed,
	)()

	return v, nil
}

func (v *view) Load(_ context.Context, url string) error {
	if err := v.page.Context(v.ctx).Navigate(url); err != nil {
		return fmt.Errorf("navigating to authorization page: %w", err)
	}
	return nil
}

func (v *view) onRequestPaused(e *proto.FetchRequestPaused) {
	go func() {
		p := v.page.Context(v.ctx)
		var err error
		if v.shouldAbort(e) {
			err = proto.FetchFailRequest{RequestID: e.RequestID, ErrorReason: proto.NetworkErrorReasonAborted}.Call(p)
		} else {
			err = proto.FetchContinueRequest{RequestID: e.RequestID}.Call(p)
		}
		if err != nil && v.ctx.Err() == nil {
			v.log.Debug("resuming paused request", logger.Field{Key: "error", Value: err})
		}
	}()
}

// shouldAbort asks the listener about main-frame documents only; iframes
// on the login page load untouched.
func (v *view) shouldAbort(e *proto.FetchRequestPaused) bool {
	if e.Request == nil || e.ResourceType != proto.NetworkResourceTypeDocument || !v.isMainFrame(e.FrameID) {
		return false
	}
	return v.listener.OnShouldInterceptNavigation(e.Request.URL)
}

func (v *view) isMainFrame(id proto.PageFrameID) bool {
	return v.mainFrame == "" || id == v.mainFrame
}

func (v *view) onRequestWillBeSent(e *proto.NetworkRequestWillBeSent) {
	if e.Type != proto.NetworkResourceTypeDocument || e.Request == nil || !v.isMainFrame(e.FrameID) {
		return
	}
	v.mu.Lock()
	v.requests[e.RequestID] = e.Request.URL
	v.mu.Unlock()
}

func (v *view) onFrameNavigated(e *proto.PageFrameNavigated) {
	if e.Frame == nil || e.Frame.ParentID != "" {
		return
	}
	v.mu.Lock()
	v.lastURL = e.Frame.URL
	v.mu.Unlock()
}

func (v *view) onLoadEventFired(_ *proto.PageLoadEventFired) {
	v.mu.Lock()
	url := v.lastURL
	v.mu.Unlock()
	if url != "" {
		v.listener.OnPageFinished(url)
	}
}

func (v *view) onLoadingFailed(e *proto.NetworkLoadingFailed) {
	if e.Type != proto.NetworkResourceTypeDocument || e.Canceled {
		return
	}

	v.mu.Lock()
	url, ok := v.requests[e.RequestID]
	delete(v.requests, e.RequestID)
	v.mu.Unlock()
	if !ok {
		return
	}

	// Custom-scheme callbacks never reach the network, so the failed load
	// is the only sign of the redirect.
	if v.listener.OnShouldInterceptNavigation(url) {
		return
	}
	v.listener.OnError(netErrorCode, e.ErrorText, url)
}

func (v *view) Dispose() error {
	v.once.Do(func() {
		var errs []error
		if err := (proto.FetchDisable{}).Call(v.page); err != nil && !errors.Is(err, context.Canceled) {
			v.log.Debug("stopping request interception", logger.Field{Key: "error", Value: err})
		}
		v.cancel()
		if err := v.page.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing page: %w", err))
		}
		v.disposeErr = errors.Join(errs...)
	})
	return v.disposeErr
}
