package view

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/danghamo/satwatch/internal/domain/satellite"
	"github.com/danghamo/satwatch/internal/tracking"
	"github.com/danghamo/satwatch/pkg/logger"
)

// Tracker is the controller surface the view depends on
type Tracker interface {
	Subscribe(fn func(satellite.Snapshot)) (unsubscribe func())
	OnStateChange(fn func(tracking.State)) (unsubscribe func())
	Snapshot() satellite.Snapshot
	State() tracking.State
	Toggle() (tracking.State, error)
}

// Renderer draws a panel somewhere: a terminal, an event bus
type Renderer interface {
	Render(ctx context.Context, p Panel) error
}

// RendererFunc adapts a function to Renderer
type RendererFunc func(ctx context.Context, p Panel) error

func (f RendererFunc) Render(ctx context.Context, p Panel) error { return f(ctx, p) }

// Adapter keeps the latest snapshot and redraws on its own goroutine.
// Redraws coalesce: when several snapshots arrive during one render only the
// newest is drawn next. The tracking flag is read from the tracker at render
// time, so the panel never disagrees with what a toggle would do.
type Adapter struct {
	tracker   Tracker
	renderers []Renderer
	logger    *logger.Logger
	title     string

	mu          sync.Mutex
	latest      satellite.Snapshot
	unsubscribe []func()

	dirty chan struct{}
}

// NewAdapter creates an adapter drawing to renderers
func NewAdapter(tracker Tracker, log *logger.Logger, renderers ...Renderer) *Adapter {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &Adapter{
		tracker:   tracker,
		renderers: renderers,
		logger:    log.WithComponent("view-adapter"),
		title:     defaultTitle,
		dirty:     make(chan struct{}, 1),
	}
}

// SetTitle changes the panel title
func (a *Adapter) SetTitle(title string) {
	a.mu.Lock()
	a.title = title
	a.mu.Unlock()
	a.invalidate()
}

// Attach subscribes to the tracker and schedules an initial draw
func (a *Adapter) Attach() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.unsubscribe != nil {
		return
	}

	// subscribe first so nothing published in between is missed
	a.unsubscribe = []func(){
		a.tracker.Subscribe(a.onSnapshot),
		a.tracker.OnStateChange(a.onStateChange),
	}
	a.latest = a.tracker.Snapshot()
	a.invalidate()
}

// Detach stops receiving snapshots
func (a *Adapter) Detach() {
	a.mu.Lock()
	unsubscribe := a.unsubscribe
	a.unsubscribe = nil
	a.mu.Unlock()

	for _, fn := range unsubscribe {
		fn()
	}
}

// Run attaches and redraws until ctx is done
func (a *Adapter) Run(ctx context.Context) error {
	a.Attach()
	defer a.Detach()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-a.dirty:
			a.render(ctx)
		}
	}
}

// Toggle flips tracking through the controller and redraws
func (a *Adapter) Toggle() (tracking.State, error) {
	state, err := a.tracker.Toggle()
	if err != nil {
		a.logger.Warn("Toggle failed", zap.Error(err))
		return state, err
	}

	a.invalidate()

	a.logger.Info("Tracking toggled", zap.Stringer("state", state))
	return state, nil
}

// Panel returns the panel for the latest known state
func (a *Adapter) Panel() Panel {
	a.mu.Lock()
	defer a.mu.Unlock()
	return BuildPanel(a.title, a.latest, a.tracker.State() == tracking.Running)
}

// onSnapshot runs on the controller goroutine and only records the value
func (a *Adapter) onSnapshot(s satellite.Snapshot) {
	a.mu.Lock()
	a.latest = s
	a.mu.Unlock()
	a.invalidate()
}

// onStateChange runs on the controller goroutine; the state itself is read
// back at render time
func (a *Adapter) onStateChange(tracking.State) {
	a.invalidate()
}

func (a *Adapter) invalidate() {
	select {
	case a.dirty <- struct{}{}:
	default:
	}
}

func (a *Adapter) render(ctx context.Context) {
	panel := a.Panel()
	for _, r := range a.renderers {
		if err := r.Render(ctx, panel); err != nil {
			a.logger.Warn("Render failed", zap.Error(err))
		}
	}
}
