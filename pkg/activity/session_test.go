package activity

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingReporter struct {
	mu      sync.Mutex
	reports []Status
	paths   []string
	beacons []Status
	// block, when set, holds each Report until a value is received.
	block   chan struct{}
	entered chan struct{}
}

func (r *recordingReporter) Report(ctx context.Context, status Status, pagePath string) {
	if r.entered != nil {
		r.entered <- struct{}{}
	}
	if r.block != nil {
		select {
		case <-r.block:
		case <-ctx.Done():
			return
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, status)
	r.paths = append(r.paths, pagePath)
}

func (r *recordingReporter) Beacon(status Status, pagePath string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.beacons = append(r.beacons, status)
}

func (r *recordingReporter) Reports() []Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Status(nil), r.reports...)
}

func newTestSession(rep Reporter, clock *manualClock, heartbeat time.Duration) *Session {
	return NewSession(rep, Options{
		AwayAfter:      3 * time.Minute,
		HeartbeatEvery: heartbeat,
		PagePath:       func() string { return "/dashboard" },
		Clock:          clock,
		OutboxSize:     1024,
	})
}

func TestSession_InactivityAndInput(t *testing.T) {
	rep := &recordingReporter{}
	clock := &manualClock{}
	s := newTestSession(rep, clock, time.Hour)

	stop := s.Start()
	assert.Equal(t, StatusOnline, s.Status())

	clock.Advance(3*time.Minute - time.Second)
	assert.Equal(t, StatusOnline, s.Status())

	clock.Advance(time.Second)
	assert.Equal(t, StatusAway, s.Status())

	s.Input(KeyDown)
	assert.Equal(t, StatusOnline, s.Status())

	stop()
	assert.Equal(t, []Status{StatusOnline, StatusAway, StatusOnline}, rep.Reports())
	assert.Equal(t, []string{"/dashboard", "/dashboard", "/dashboard"}, rep.paths)
}

func TestSession_InputWhileOnlineRearmsTimerWithoutReporting(t *testing.T) {
	rep := &recordingReporter{}
	clock := &manualClock{}
	s := newTestSession(rep, clock, time.Hour)
	s.Start()

	clock.Advance(2 * time.Minute)
	s.Input(PointerDown)
	clock.Advance(3*time.Minute - time.Second)
	assert.Equal(t, StatusOnline, s.Status(), "input re-armed the inactivity timer")

	clock.Advance(time.Second)
	assert.Equal(t, StatusAway, s.Status())

	s.Stop()
	assert.Equal(t, []Status{StatusOnline, StatusAway}, rep.Reports())
}

func TestSession_Visibility(t *testing.T) {
	rep := &recordingReporter{}
	clock := &manualClock{}
	s := newTestSession(rep, clock, time.Hour)
	s.Start()

	s.VisibilityChanged(false)
	assert.Equal(t, StatusAway, s.Status())
	s.VisibilityChanged(false)

	// The inactivity timer firing while hidden changes nothing.
	clock.Advance(5 * time.Minute)

	s.VisibilityChanged(true)
	assert.Equal(t, StatusOnline, s.Status())

	s.Stop()
	assert.Equal(t, []Status{StatusOnline, StatusAway, StatusOnline}, rep.Reports())
}

func TestSession_Heartbeat(t *testing.T) {
	rep := &recordingReporter{}
	clock := &manualClock{}
	s := newTestSession(rep, clock, time.Minute)
	s.Start()

	clock.Advance(3 * time.Minute)
	s.Stop()

	// At 3m the inactivity timer (armed first) fires before the heartbeat.
	assert.Equal(t, []Status{
		StatusOnline,
		StatusOnline,
		StatusOnline,
		StatusAway,
		StatusAway,
	}, rep.Reports())
}

func TestSession_UnloadSendsBeaconAndStops(t *testing.T) {
	rep := &recordingReporter{}
	clock := &manualClock{}
	s := newTestSession(rep, clock, time.Minute)
	s.Start()

	s.Unload()
	assert.Equal(t, StatusOffline, s.Status())
	assert.Equal(t, []Status{StatusOffline}, rep.beacons)

	reportsAtUnload := len(rep.Reports())
	clock.Advance(time.Hour)
	s.Input(KeyDown)
	s.VisibilityChanged(true)
	s.Unload()
	s.Stop()

	assert.Equal(t, StatusOffline, s.Status())
	assert.Len(t, rep.Reports(), reportsAtUnload, "no reports after unload")
	assert.Len(t, rep.beacons, 1)
}

func TestSession_StartIsIdempotentAndRestartable(t *testing.T) {
	rep := &recordingReporter{}
	clock := &manualClock{}
	s := newTestSession(rep, clock, time.Hour)

	stop := s.Start()
	s.Start()
	stop()
	stop()

	s.Start()
	s.Stop()

	assert.Equal(t, []Status{StatusOnline, StatusOnline}, rep.Reports())
}

func TestSession_FullOutboxKeepsNewestState(t *testing.T) {
	rep := &recordingReporter{block: make(chan struct{}), entered: make(chan struct{}, 8)}
	clock := &manualClock{}
	s := NewSession(rep, Options{Clock: clock, OutboxSize: 1, HeartbeatEvery: time.Hour})

	s.Start()
	<-rep.entered // the initial online report is in flight

	s.VisibilityChanged(false) // away queued
	s.VisibilityChanged(true)  // online replaces the queued away

	close(rep.block)
	s.Stop()

	assert.Equal(t, []Status{StatusOnline, StatusOnline}, rep.Reports())
}

func TestSession_CallsDoNotBlockOnSlowReporter(t *testing.T) {
	rep := &recordingReporter{block: make(chan struct{})}
	clock := &manualClock{}
	s := newTestSession(rep, clock, time.Hour)
	s.Start()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			s.VisibilityChanged(i%2 == 0)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("session calls blocked on the reporter")
	}

	// Unload cancels the in-flight report instead of waiting for it.
	s.Unload()
	assert.Equal(t, []Status{StatusOffline}, rep.beacons)
}

type action struct {
	kind int
	step time.Duration
}

func applyAction(s *Session, clock *manualClock, a action) {
	switch a.kind {
	case 0:
		s.Input(PointerDown)
	case 1:
		s.Input(Scroll)
	case 2:
		s.VisibilityChanged(false)
	case 3:
		s.VisibilityChanged(true)
	default:
		clock.Advance(a.step)
	}
}

func genActions() gopter.Gen {
	return gen.SliceOf(gopter.CombineGens(
		gen.IntRange(0, 5),
		gen.Int64Range(1, 300),
	).Map(func(v []interface{}) action {
		return action{kind: v[0].(int), step: time.Duration(v[1].(int64)) * time.Second}
	}))
}

// Without heartbeats, no two consecutive reports carry the same state, and the
// last report always matches the session state.
func TestProperty_NoConsecutiveDuplicateTransitions(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("reports alternate between distinct states", prop.ForAll(
		func(actions []action) bool {
			rep := &recordingReporter{}
			clock := &manualClock{}
			s := newTestSession(rep, clock, 1000*time.Hour)
			s.Start()
			for _, a := range actions {
				applyAction(s, clock, a)
			}
			final := s.Status()
			s.Stop()

			reports := rep.Reports()
			if len(reports) == 0 || reports[0] != StatusOnline {
				return false
			}
			for i := 1; i < len(reports); i++ {
				if reports[i] == reports[i-1] {
					return false
				}
			}
			return reports[len(reports)-1] == final
		},
		genActions(),
	))

	properties.TestingRun(t)
}

// With heartbeats enabled, every report beyond the transitions is a heartbeat:
// the number of reports equals transitions plus elapsed heartbeat ticks.
func TestProperty_HeartbeatsAccountForRepeats(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("repeated states are explained by heartbeat ticks", prop.ForAll(
		func(actions []action) bool {
			rep := &recordingReporter{}
			clock := &manualClock{}
			s := newTestSession(rep, clock, time.Minute)
			s.Start()

			var elapsed time.Duration
			for _, a := range actions {
				if a.kind > 3 {
					elapsed += a.step
				}
				applyAction(s, clock, a)
			}
			s.Stop()

			reports := rep.Reports()
			repeats := 0
			for i := 1; i < len(reports); i++ {
				if reports[i] == reports[i-1] {
					repeats++
				}
			}
			ticks := int(elapsed / time.Minute)
			return repeats <= ticks
		},
		genActions(),
	))

	properties.TestingRun(t)
}

func TestNewSession_Defaults(t *testing.T) {
	s := NewSession(&recordingReporter{}, Options{})
	require.NotNil(t, s.opts.Clock)
	assert.Equal(t, DefaultAwayAfter, s.opts.AwayAfter)
	assert.Equal(t, DefaultHeartbeatEvery, s.opts.HeartbeatEvery)
	assert.Equal(t, "", s.opts.PagePath())
	assert.Equal(t, StatusOnline, s.Status())
}
