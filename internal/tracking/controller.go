package tracking

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/danghamo/satwatch/internal/domain/satellite"
	"github.com/danghamo/satwatch/internal/domain/shared"
	"github.com/danghamo/satwatch/pkg/logger"
)

// ErrClosed is returned by commands issued after Run has returned
var ErrClosed = errors.New("tracking controller closed")

// ErrAlreadyRunning is returned by a second concurrent call to Run
var ErrAlreadyRunning = errors.New("tracking controller already running")

type commandKind int

const (
	cmdStart commandKind = iota
	cmdStop
	cmdToggle
)

type command struct {
	kind  commandKind
	reply chan State
}

type fetchResult struct {
	generation uint64
	cycle      uint64
	started    time.Time
	sample     satellite.PositionSample
	err        error
}

type locateResult struct {
	generation uint64
	cycle      uint64
	started    time.Time
	sample     satellite.PositionSample
	place      satellite.PlaceInfo
	err        error
}

// session is owned by the loop goroutine
type session struct {
	active     bool
	ticker     Ticker
	generation uint64
	ctx        context.Context
	cancel     context.CancelFunc
}

// Controller owns the tracking session and the published snapshot. All
// state transitions happen on the goroutine running Run; the exported
// methods are safe for concurrent use.
type Controller struct {
	cfg       Config
	fetcher   PositionFetcher
	locator   GeoLocator
	logger    *logger.Logger
	recorder  Recorder
	newTicker TickerFactory
	tracer    trace.Tracer
	now       func() time.Time

	commands chan command
	results  chan any
	done     chan struct{}
	running  atomic.Bool

	state      atomic.Int32
	generation atomic.Uint64
	snapshot   atomic.Pointer[satellite.Snapshot]

	subsMu    sync.Mutex
	subs      map[uint64]func(satellite.Snapshot)
	stateSubs map[uint64]func(State)
	nextSub   uint64

	// loop-owned
	runCtx        context.Context
	session       session
	cycle         uint64
	lastPublished uint64
	failures      int
}

// Option configures a Controller
type Option func(*Controller)

// WithTickerFactory replaces time.Ticker, mainly for tests
func WithTickerFactory(f TickerFactory) Option {
	return func(c *Controller) {
		if f != nil {
			c.newTicker = f
		}
	}
}

// WithRecorder attaches a cycle observer such as the metrics collector
func WithRecorder(r Recorder) Option {
	return func(c *Controller) {
		if r != nil {
			c.recorder = r
		}
	}
}

// WithTracer overrides the global tracer
func WithTracer(t trace.Tracer) Option {
	return func(c *Controller) {
		if t != nil {
			c.tracer = t
		}
	}
}

// WithClock overrides time.Now for snapshot timestamps
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

// NewController creates a stopped controller. Nothing happens until Run.
func NewController(cfg Config, fetcher PositionFetcher, locator GeoLocator, log *logger.Logger, opts ...Option) *Controller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	if log == nil {
		log = logger.GetGlobalLogger()
	}

	c := &Controller{
		cfg:       cfg,
		fetcher:   fetcher,
		locator:   locator,
		logger:    log.WithComponent("tracking-controller"),
		recorder:  nopRecorder{},
		newTicker: NewRealTicker,
		tracer:    otel.Tracer("github.com/danghamo/satwatch/internal/tracking"),
		now:       time.Now,
		commands:  make(chan command),
		results:   make(chan any),
		done:      make(chan struct{}),
		subs:      make(map[uint64]func(satellite.Snapshot)),
		stateSubs: make(map[uint64]func(State)),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.snapshot.Store(&satellite.Snapshot{})
	return c
}

// Start begins tracking. No-op when already running. Commands block until
// Run is processing them.
func (c *Controller) Start() error {
	_, err := c.send(cmdStart)
	return err
}

// Stop ends tracking. Results of in-flight requests are discarded.
func (c *Controller) Stop() error {
	_, err := c.send(cmdStop)
	return err
}

// Toggle stops a running session or starts a stopped one and returns the
// resulting state
func (c *Controller) Toggle() (State, error) {
	return c.send(cmdToggle)
}

// State returns the current session state
func (c *Controller) State() State {
	return State(c.state.Load())
}

// Generation returns the current session generation
func (c *Controller) Generation() uint64 {
	return c.generation.Load()
}

// Snapshot returns the latest published snapshot
func (c *Controller) Snapshot() satellite.Snapshot {
	return *c.snapshot.Load()
}

// Subscribe registers fn to receive every published snapshot. fn runs on
// the controller goroutine: it must return quickly and must not issue
// controller commands.
func (c *Controller) Subscribe(fn func(satellite.Snapshot)) (unsubscribe func()) {
	c.subsMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.subsMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.subsMu.Lock()
			delete(c.subs, id)
			c.subsMu.Unlock()
		})
	}
}

// OnStateChange registers fn to receive every transition between Running
// and Stopped, including auto-start and shutdown. It carries no position:
// stopping never publishes a snapshot. fn runs on the controller goroutine
// with the same restrictions as Subscribe.
func (c *Controller) OnStateChange(fn func(State)) (unsubscribe func()) {
	c.subsMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.stateSubs[id] = fn
	c.subsMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.subsMu.Lock()
			delete(c.stateSubs, id)
			c.subsMu.Unlock()
		})
	}
}

// Run processes commands, ticks and request results until ctx is done.
// On return the ticker is stopped and in-flight requests are cancelled.
func (c *Controller) Run(ctx context.Context) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	if !c.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	c.runCtx = ctx
	defer c.shutdown()

	c.logger.Info("Tracking controller started",
		zap.Duration("interval", c.cfg.Interval),
		zap.Bool("auto_start", c.cfg.AutoStart),
		zap.Int("failure_threshold", c.cfg.FailureThreshold))

	if c.cfg.AutoStart {
		c.start()
	}

	for {
		var tick <-chan time.Time
		if c.session.ticker != nil {
			tick = c.session.ticker.C()
		}

		select {
		case <-ctx.Done():
			return nil
		case cmd := <-c.commands:
			cmd.reply <- c.handleCommand(cmd.kind)
		case <-tick:
			c.beginCycle()
		case msg := <-c.results:
			switch r := msg.(type) {
			case fetchResult:
				c.handleFetch(r)
			case locateResult:
				c.handleLocate(r)
			}
		}
	}
}

func (c *Controller) send(kind commandKind) (State, error) {
	reply := make(chan State, 1)
	select {
	case c.commands <- command{kind: kind, reply: reply}:
	case <-c.done:
		return c.State(), ErrClosed
	}
	// the loop replies before it can observe shutdown
	return <-reply, nil
}

func (c *Controller) handleCommand(kind commandKind) State {
	switch kind {
	case cmdStart:
		c.start()
	case cmdStop:
		c.stop()
	case cmdToggle:
		if c.session.active {
			c.stop()
		} else {
			c.start()
		}
	}
	return c.State()
}

func (c *Controller) start() {
	if c.session.active {
		c.logger.Debug("Start ignored, already running", zap.Uint64("generation", c.session.generation))
		return
	}

	c.session.generation++
	c.session.active = true
	c.session.ctx, c.session.cancel = context.WithCancel(c.runCtx)
	c.session.ticker = c.newTicker(c.cfg.Interval)
	c.failures = 0
	c.publishState(Running)

	c.logger.Info("Tracking started", zap.Uint64("generation", c.session.generation))
	c.beginCycle()
}

func (c *Controller) stop() {
	if !c.session.active {
		c.logger.Debug("Stop ignored, already stopped", zap.Uint64("generation", c.session.generation))
		return
	}

	c.session.ticker.Stop()
	c.session.ticker = nil
	c.session.active = false
	c.session.generation++
	c.session.cancel()
	c.failures = 0
	c.recorder.ObserveFailures(0)
	c.publishState(Stopped)

	c.logger.Info("Tracking stopped", zap.Uint64("generation", c.session.generation))
}

func (c *Controller) shutdown() {
	if c.session.ticker != nil {
		c.session.ticker.Stop()
		c.session.ticker = nil
	}
	if c.session.cancel != nil {
		c.session.cancel()
	}
	c.session.active = false
	if c.State() != Stopped {
		c.state.Store(int32(Stopped))
		c.notifyState(Stopped)
	}
	close(c.done)
	c.logger.Info("Tracking controller stopped")
}

func (c *Controller) publishState(s State) {
	c.state.Store(int32(s))
	c.generation.Store(c.session.generation)
	c.recorder.ObserveState(s, c.session.generation)
	c.notifyState(s)
}

// notifyState runs after the state is stored so listeners reading State see it
func (c *Controller) notifyState(s State) {
	c.subsMu.Lock()
	listeners := make([]func(State), 0, len(c.stateSubs))
	for _, fn := range c.stateSubs {
		listeners = append(listeners, fn)
	}
	c.subsMu.Unlock()

	for _, fn := range listeners {
		c.safely(func() { fn(s) })
	}
}

// post delivers a result to the loop unless it has exited
func (c *Controller) post(msg any) {
	select {
	case c.results <- msg:
	case <-c.done:
	}
}

func (c *Controller) requestContext(parent context.Context) (context.Context, context.CancelFunc) {
	if c.cfg.RequestTimeout > 0 {
		return context.WithTimeout(parent, c.cfg.RequestTimeout)
	}
	return context.WithCancel(parent)
}

func (c *Controller) beginCycle() {
	c.cycle++
	gen, cycle, started := c.session.generation, c.cycle, c.now()
	sessionCtx := c.session.ctx

	go func() {
		ctx, cancel := c.requestContext(sessionCtx)
		defer cancel()

		ctx, span := c.tracer.Start(ctx, "position.fetch", trace.WithAttributes(
			attribute.Int64("tracking.generation", int64(gen)),
			attribute.Int64("tracking.cycle", int64(cycle))))
		sample, err := c.fetcher.FetchPosition(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, shared.Kind(err))
		}
		span.End()

		c.post(fetchResult{generation: gen, cycle: cycle, started: started, sample: sample, err: err})
	}()
}

func (c *Controller) superseded(generation, cycle uint64) bool {
	return generation != c.session.generation || cycle < c.lastPublished
}

func (c *Controller) handleFetch(r fetchResult) {
	if c.superseded(r.generation, r.cycle) {
		c.logger.Debug("Discarding position result",
			zap.Uint64("generation", r.generation),
			zap.Uint64("current_generation", c.session.generation),
			zap.Uint64("cycle", r.cycle),
			zap.Bool("failed", r.err != nil))
		c.recorder.ObserveCycle(OutcomeDiscarded, c.now().Sub(r.started))
		return
	}

	if r.err != nil {
		c.failures++
		c.logger.Warn("Position fetch failed, keeping previous position",
			zap.Uint64("cycle", r.cycle),
			zap.String("kind", shared.Kind(r.err)),
			zap.Int("consecutive_failures", c.failures),
			zap.Error(r.err))
		c.recorder.ObserveFailures(c.failures)
		c.publishStale(r.cycle)
		c.recorder.ObserveCycle(OutcomeFetchFailed, c.now().Sub(r.started))
		return
	}

	if c.failures > 0 {
		c.failures = 0
		c.recorder.ObserveFailures(0)
	}

	gen, cycle, started, sample := r.generation, r.cycle, r.started, r.sample
	sessionCtx := c.session.ctx

	go func() {
		ctx, cancel := c.requestContext(sessionCtx)
		defer cancel()

		ctx, span := c.tracer.Start(ctx, "geocode.locate", trace.WithAttributes(
			attribute.Int64("tracking.generation", int64(gen)),
			attribute.Int64("tracking.cycle", int64(cycle)),
			attribute.Float64("position.latitude", sample.Latitude),
			attribute.Float64("position.longitude", sample.Longitude)))
		place, err := c.locator.Locate(ctx, sample.Latitude, sample.Longitude)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, shared.Kind(err))
		}
		span.End()

		c.post(locateResult{generation: gen, cycle: cycle, started: started, sample: sample, place: place, err: err})
	}()
}

func (c *Controller) handleLocate(r locateResult) {
	if c.superseded(r.generation, r.cycle) {
		c.logger.Debug("Discarding located result",
			zap.Uint64("generation", r.generation),
			zap.Uint64("current_generation", c.session.generation),
			zap.Uint64("cycle", r.cycle))
		c.recorder.ObserveCycle(OutcomeDiscarded, c.now().Sub(r.started))
		return
	}

	outcome := OutcomePublished
	place := r.place
	if r.err != nil {
		c.logger.Warn("Reverse geocode failed, publishing unknown place",
			zap.Uint64("cycle", r.cycle),
			zap.String("kind", shared.Kind(r.err)),
			zap.Error(r.err))
		place = satellite.UnknownPlace()
		outcome = OutcomeDegraded
	}

	sample := r.sample
	c.publish(satellite.Snapshot{
		Position:    &sample,
		Place:       &place,
		Tracking:    c.session.active,
		Generation:  r.generation,
		Cycle:       r.cycle,
		PublishedAt: c.now(),
	})
	c.lastPublished = r.cycle
	c.recorder.ObserveCycle(outcome, c.now().Sub(r.started))
}

// publishStale republishes the last position marked stale once the failure
// threshold is reached
func (c *Controller) publishStale(cycle uint64) {
	if c.cfg.FailureThreshold <= 0 || c.failures < c.cfg.FailureThreshold {
		return
	}
	last := c.Snapshot()
	if !last.HasPosition() {
		return
	}

	last.Stale = true
	last.ConsecutiveFailures = c.failures
	last.Tracking = c.session.active
	last.Cycle = cycle
	last.PublishedAt = c.now()
	c.publish(last)
}

// publish stores the snapshot, then delivers it to every subscriber
func (c *Controller) publish(s satellite.Snapshot) {
	c.snapshot.Store(&s)

	c.subsMu.Lock()
	subs := make([]func(satellite.Snapshot), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.subsMu.Unlock()

	for _, fn := range subs {
		c.safely(func() { fn(s) })
	}
}

// safely runs a subscriber callback, logging a panic instead of crashing the loop
func (c *Controller) safely(call func()) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Subscriber panicked", zap.Any("panic", r))
		}
	}()
	call()
}
