package gateway

import (
	"context"
	"errors"
	"sync"
)

// ErrNoOpenWidget signals a delivered event with no registered widget, e.g. a
// stale browser callback for a session that already resolved.
var ErrNoOpenWidget = errors.New("no open widget for session")

// CommandPublisher pushes a widget-open command toward the browser, which
// renders the actual widget surface.
type CommandPublisher interface {
	PublishWidgetOpen(req OpenRequest) error
}

// Bridge implements Widget for a browser-rendered runtime: Open publishes a
// command over the realtime channel and parks the hooks until the browser
// posts the widget's event back.
type Bridge struct {
	loader    *Loader
	publisher CommandPublisher

	mu    sync.Mutex
	hooks map[string]Hooks
}

// NewBridge constructs a Bridge.
func NewBridge(loader *Loader, publisher CommandPublisher) *Bridge {
	return &Bridge{
		loader:    loader,
		publisher: publisher,
		hooks:     make(map[string]Hooks),
	}
}

// Open waits for the widget runtime, registers the hooks, and publishes the
// open command. A duplicate open for the same session is rejected.
func (b *Bridge) Open(ctx context.Context, req OpenRequest, hooks Hooks) error {
	if err := b.loader.Load(ctx); err != nil {
		return err
	}

	b.mu.Lock()
	if _, ok := b.hooks[req.SessionID]; ok {
		b.mu.Unlock()
		return errors.New("widget already open for session")
	}
	b.hooks[req.SessionID] = hooks
	b.mu.Unlock()

	if err := b.publisher.PublishWidgetOpen(req); err != nil {
		b.mu.Lock()
		delete(b.hooks, req.SessionID)
		b.mu.Unlock()
		return err
	}
	return nil
}

// Cancel withdraws the hooks parked for a session, if any. Browser events for
// the session delivered afterwards resolve to ErrNoOpenWidget.
func (b *Bridge) Cancel(sessionID string) {
	b.mu.Lock()
	delete(b.hooks, sessionID)
	b.mu.Unlock()
}

// DeliverSuccess routes the widget's success callback to the session's hook.
// Any delivered event closes the widget: the hooks are consumed.
func (b *Bridge) DeliverSuccess(ctx context.Context, sessionID string, payload SuccessPayload) error {
	hooks, err := b.take(sessionID)
	if err != nil {
		return err
	}
	if hooks.OnSuccess != nil {
		hooks.OnSuccess(ctx, payload)
	}
	return nil
}

// DeliverFailure routes the widget's failure event to the session's hook.
func (b *Bridge) DeliverFailure(ctx context.Context, sessionID, reason string) error {
	hooks, err := b.take(sessionID)
	if err != nil {
		return err
	}
	if hooks.OnFailure != nil {
		hooks.OnFailure(ctx, reason)
	}
	return nil
}

// DeliverDismiss routes the user-dismiss event to the session's hook.
func (b *Bridge) DeliverDismiss(ctx context.Context, sessionID string) error {
	hooks, err := b.take(sessionID)
	if err != nil {
		return err
	}
	if hooks.OnDismiss != nil {
		hooks.OnDismiss(ctx)
	}
	return nil
}

func (b *Bridge) take(sessionID string) (Hooks, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	hooks, ok := b.hooks[sessionID]
	if !ok {
		return Hooks{}, ErrNoOpenWidget
	}
	delete(b.hooks, sessionID)
	return hooks, nil
}
