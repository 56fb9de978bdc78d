package view

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/danghamo/satwatch/internal/domain/satellite"
	"github.com/danghamo/satwatch/internal/tracking"
	"github.com/danghamo/satwatch/pkg/logger"
)

// MockTracker records the subscriptions so tests can publish by hand
type MockTracker struct {
	mock.Mock

	mu       sync.Mutex
	sub      func(satellite.Snapshot)
	stateSub func(tracking.State)
}

func (m *MockTracker) Subscribe(fn func(satellite.Snapshot)) func() {
	m.mu.Lock()
	m.sub = fn
	m.mu.Unlock()
	m.Called()
	return func() {
		m.mu.Lock()
		m.sub = nil
		m.mu.Unlock()
	}
}

func (m *MockTracker) OnStateChange(fn func(tracking.State)) func() {
	m.mu.Lock()
	m.stateSub = fn
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		m.stateSub = nil
		m.mu.Unlock()
	}
}

func (m *MockTracker) Snapshot() satellite.Snapshot {
	args := m.Called()
	return args.Get(0).(satellite.Snapshot)
}

func (m *MockTracker) State() tracking.State {
	args := m.Called()
	return args.Get(0).(tracking.State)
}

func (m *MockTracker) Toggle() (tracking.State, error) {
	args := m.Called()
	return args.Get(0).(tracking.State), args.Error(1)
}

func (m *MockTracker) publish(s satellite.Snapshot) {
	m.mu.Lock()
	fn := m.sub
	m.mu.Unlock()
	if fn != nil {
		fn(s)
	}
}

// panelRecorder captures rendered panels
type panelRecorder struct {
	panels chan Panel
}

func newPanelRecorder() *panelRecorder {
	return &panelRecorder{panels: make(chan Panel, 32)}
}

func (r *panelRecorder) Render(_ context.Context, p Panel) error {
	r.panels <- p
	return nil
}

func (r *panelRecorder) next(t *testing.T) Panel {
	t.Helper()
	select {
	case p := <-r.panels:
		return p
	case <-time.After(2 * time.Second):
		t.Fatal("expected a render")
		return Panel{}
	}
}

func londonSnapshot() satellite.Snapshot {
	pos, _ := satellite.NewPositionSample(51.5, -0.12, 420.3, 27560.1, time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC))
	place := satellite.NewPlaceInfo("United Kingdom", "England")
	return satellite.Snapshot{Position: &pos, Place: &place, Tracking: true, Generation: 1, Cycle: 1}
}

func TestBuildPanel_Placeholders(t *testing.T) {
	loading := BuildPanel("", satellite.Snapshot{}, true)
	assert.Equal(t, "ISS Tracker", loading.Title)
	assert.Equal(t, Loading, loading.Latitude)
	assert.Equal(t, Loading, loading.Country)
	assert.Equal(t, "Tracking", loading.Status)
	assert.Equal(t, "Stop tracking", loading.ToggleLabel)
	assert.Nil(t, loading.Marker)

	stopped := BuildPanel("", satellite.Snapshot{}, false)
	assert.Equal(t, NotAvailable, stopped.Latitude)
	assert.Equal(t, NotAvailable, stopped.Region)
	assert.Equal(t, "Stopped", stopped.Status)
	assert.Equal(t, "Start tracking", stopped.ToggleLabel)
}

func TestBuildPanel_Formatting(t *testing.T) {
	p := BuildPanel("ISS", londonSnapshot(), true)

	assert.Equal(t, "51.50", p.Latitude)
	assert.Equal(t, "-0.12", p.Longitude)
	assert.Equal(t, "420.30 km", p.Altitude)
	assert.Equal(t, "27560.10 km/h", p.Velocity)
	assert.Equal(t, "United Kingdom", p.Country)
	assert.Equal(t, "England", p.Region)
	assert.Equal(t, "2026-10-19T12:00:00Z", p.UpdatedAt)
	require.NotNil(t, p.Marker)
	assert.Equal(t, Marker{Latitude: 51.5, Longitude: -0.12, Label: "ISS"}, *p.Marker)
}

func TestBuildPanel_MissingPlaceAndStale(t *testing.T) {
	s := londonSnapshot()
	s.Place = nil
	p := BuildPanel("", s, true)
	assert.Equal(t, NotAvailable, p.Country)
	assert.Equal(t, NotAvailable, p.Region)

	s = londonSnapshot()
	s.Stale = true
	s.ConsecutiveFailures = 3
	p = BuildPanel("", s, true)
	assert.True(t, p.Stale)
	assert.Equal(t, "Tracking (stale after 3 failed updates)", p.Status)

	p = BuildPanel("", s, false)
	assert.False(t, p.Stale)
	assert.Equal(t, "Stopped", p.Status)
	assert.Equal(t, "51.50", p.Latitude)
}

func TestAdapter_RendersPublishedSnapshots(t *testing.T) {
	tracker := &MockTracker{}
	tracker.On("Subscribe").Return()
	tracker.On("Snapshot").Return(satellite.Snapshot{})
	tracker.On("State").Return(tracking.Running)

	rec := newPanelRecorder()
	a := NewAdapter(tracker, logger.NewNop(), rec)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = a.Run(ctx)
	}()

	initial := rec.next(t)
	assert.Equal(t, Loading, initial.Latitude)

	require.Eventually(t, func() bool {
		tracker.mu.Lock()
		defer tracker.mu.Unlock()
		return tracker.sub != nil
	}, time.Second, 5*time.Millisecond)

	tracker.publish(londonSnapshot())
	p := rec.next(t)
	assert.Equal(t, "51.50", p.Latitude)
	assert.Equal(t, "England", p.Region)

	cancel()
	<-done
	tracker.AssertExpectations(t)
}

func TestAdapter_ToggleDelegates(t *testing.T) {
	tracker := &MockTracker{}
	tracker.On("Subscribe").Return()
	tracker.On("Snapshot").Return(londonSnapshot())
	tracker.On("State").Return(tracking.Stopped)
	tracker.On("Toggle").Return(tracking.Stopped, nil).Once()

	a := NewAdapter(tracker, logger.NewNop())
	a.Attach()

	state, err := a.Toggle()
	require.NoError(t, err)
	assert.Equal(t, tracking.Stopped, state)

	p := a.Panel()
	assert.False(t, p.Tracking)
	assert.Equal(t, "Stopped", p.Status)
	assert.Equal(t, "51.50", p.Latitude, "last position stays visible while stopped")
	tracker.AssertNumberOfCalls(t, "Toggle", 1)
}

func TestAdapter_ToggleError(t *testing.T) {
	tracker := &MockTracker{}
	tracker.On("Toggle").Return(tracking.Stopped, tracking.ErrClosed)

	a := NewAdapter(tracker, logger.NewNop())
	_, err := a.Toggle()
	assert.ErrorIs(t, err, tracking.ErrClosed)
}

func TestAdapter_CoalescesRedraws(t *testing.T) {
	tracker := &MockTracker{}
	tracker.On("Subscribe").Return()
	tracker.On("Snapshot").Return(satellite.Snapshot{})
	tracker.On("State").Return(tracking.Running)

	a := NewAdapter(tracker, logger.NewNop())
	a.Attach()

	for i := 0; i < 10; i++ {
		s := londonSnapshot()
		s.Cycle = uint64(i + 1)
		tracker.publish(s)
	}

	assert.Len(t, a.dirty, 1)
	assert.Equal(t, "Tracking", a.Panel().Status)

	a.Detach()
	tracker.mu.Lock()
	defer tracker.mu.Unlock()
	assert.Nil(t, tracker.sub)
	assert.Nil(t, tracker.stateSub)
}

func TestAdapter_PanelFollowsTrackerState(t *testing.T) {
	tracker := &MockTracker{}
	tracker.On("Subscribe").Return()
	tracker.On("Snapshot").Return(londonSnapshot())
	tracker.On("State").Return(tracking.Stopped).Once()
	tracker.On("State").Return(tracking.Running)

	a := NewAdapter(tracker, logger.NewNop())
	a.Attach()
	<-a.dirty

	// the snapshot still says tracking but the tracker has stopped
	p := a.Panel()
	assert.Equal(t, "Stopped", p.Status)
	assert.Equal(t, "Start tracking", p.ToggleLabel)

	tracker.mu.Lock()
	notify := tracker.stateSub
	tracker.mu.Unlock()
	require.NotNil(t, notify)
	notify(tracking.Running)

	assert.Len(t, a.dirty, 1, "a state change schedules a redraw")
	assert.Equal(t, "Stop tracking", a.Panel().ToggleLabel)
}

func TestAdapter_RenderErrorsAreLogged(t *testing.T) {
	tracker := &MockTracker{}
	tracker.On("Subscribe").Return()
	tracker.On("Snapshot").Return(satellite.Snapshot{})
	tracker.On("State").Return(tracking.Stopped)

	calls := make(chan struct{}, 4)
	failing := RendererFunc(func(context.Context, Panel) error {
		calls <- struct{}{}
		return errors.New("write failed")
	})
	rec := newPanelRecorder()

	a := NewAdapter(tracker, logger.NewNop(), failing, rec)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go a.Run(ctx)

	rec.next(t)
	assert.Len(t, calls, 1)
}

func TestConsoleRenderer(t *testing.T) {
	var buf bytes.Buffer
	r := NewConsoleRenderer(&buf)

	require.NoError(t, r.Render(context.Background(), BuildPanel("", londonSnapshot(), true)))

	out := buf.String()
	assert.Contains(t, out, "ISS Tracker [Tracking]")
	assert.Contains(t, out, "Latitude:  51.50")
	assert.Contains(t, out, "Velocity:  27560.10 km/h")
	assert.Contains(t, out, "Country:   United Kingdom")
	assert.Contains(t, out, "[t] Stop tracking")
}
