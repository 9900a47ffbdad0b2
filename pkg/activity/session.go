// Package activity classifies a client session as online, away or offline and
// reports the state to the presence service.
//
// A Session is driven by the host: it forwards input events, visibility changes
// and the unload signal. Transitions and periodic heartbeats are handed to a
// Reporter through an ordered outbox, so the host never blocks on the network.
package activity

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

type Status string

const (
	StatusOnline  Status = "online"
	StatusAway    Status = "away"
	StatusOffline Status = "offline"
)

// Input is a qualifying user interaction.
type Input int

const (
	PointerDown Input = iota
	KeyDown
	Scroll
	TouchStart
)

const (
	DefaultAwayAfter      = 3 * time.Minute
	DefaultHeartbeatEvery = 60 * time.Second
	defaultOutboxSize     = 16
)

// Reporter delivers states to the backend. Report is called from the session's
// outbox goroutine; Beacon must return immediately.
type Reporter interface {
	Report(ctx context.Context, status Status, pagePath string)
	Beacon(status Status, pagePath string)
}

// Timer is a cancellable one-shot timer.
type Timer interface {
	Stop() bool
}

// Clock schedules callbacks. Tests substitute a manual clock.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

type Options struct {
	AwayAfter      time.Duration
	HeartbeatEvery time.Duration
	// PagePath returns the current route; it is sampled when a report is queued.
	PagePath   func() string
	Clock      Clock
	Logger     *zap.Logger
	OutboxSize int
}

type report struct {
	status   Status
	pagePath string
}

type Session struct {
	reporter Reporter
	opts     Options

	mu        sync.Mutex
	status    Status
	running   bool
	idle      Timer
	idleGen   uint64
	heartbeat Timer
	beatGen   uint64

	outbox chan report
	done   chan struct{}
	wg     sync.WaitGroup
}

func NewSession(reporter Reporter, opts Options) *Session {
	if opts.AwayAfter <= 0 {
		opts.AwayAfter = DefaultAwayAfter
	}
	if opts.HeartbeatEvery <= 0 {
		opts.HeartbeatEvery = DefaultHeartbeatEvery
	}
	if opts.PagePath == nil {
		opts.PagePath = func() string { return "" }
	}
	if opts.Clock == nil {
		opts.Clock = realClock{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.OutboxSize <= 0 {
		opts.OutboxSize = defaultOutboxSize
	}
	return &Session{
		reporter: reporter,
		opts:     opts,
		status:   StatusOnline,
	}
}

// Start reports Online, arms the timers and returns a disposer equivalent to Stop.
// Starting a running session is a no-op.
func (s *Session) Start() func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return s.Stop
	}
	s.running = true
	s.status = StatusOnline
	s.outbox = make(chan report, s.opts.OutboxSize)
	s.done = make(chan struct{})

	s.wg.Add(1)
	go s.dispatch(s.outbox, s.done)

	s.enqueueLocked()
	s.armIdleLocked()
	s.armHeartbeatLocked()
	return s.Stop
}

// Stop releases the timers and waits until queued reports have been delivered.
// It does not report Offline; use Unload for that.
func (s *Session) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.shutdownLocked()
	close(s.outbox)
	s.mu.Unlock()

	s.wg.Wait()
}

// Unload moves the session to Offline through the beacon path and stops it.
// Reports still queued are discarded; the beacon supersedes them.
func (s *Session) Unload() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.shutdownLocked()
	close(s.done)
	s.status = StatusOffline
	path := s.opts.PagePath()
	s.mu.Unlock()

	s.reporter.Beacon(StatusOffline, path)
	s.wg.Wait()
}

// Input records a qualifying interaction: it re-arms the inactivity timer and
// moves the session back to Online.
func (s *Session) Input(Input) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.armIdleLocked()
	s.transitionLocked(StatusOnline)
}

// VisibilityChanged moves the session to Away when hidden and Online when visible.
func (s *Session) VisibilityChanged(visible bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	if visible {
		s.armIdleLocked()
		s.transitionLocked(StatusOnline)
		return
	}
	s.transitionLocked(StatusAway)
}

func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Session) transitionLocked(to Status) {
	if s.status == to {
		return
	}
	s.opts.Logger.Debug("Presence transition",
		zap.String("from", string(s.status)),
		zap.String("to", string(to)),
	)
	s.status = to
	s.enqueueLocked()
}

// enqueueLocked queues the current state without blocking. When the outbox is
// full the oldest report is dropped, since a newer state supersedes it.
func (s *Session) enqueueLocked() {
	r := report{status: s.status, pagePath: s.opts.PagePath()}
	for {
		select {
		case s.outbox <- r:
			return
		default:
		}
		select {
		case dropped := <-s.outbox:
			s.opts.Logger.Warn("Presence outbox full, dropping report", zap.String("status", string(dropped.status)))
		default:
		}
	}
}

func (s *Session) armIdleLocked() {
	if s.idle != nil {
		s.idle.Stop()
	}
	s.idleGen++
	gen := s.idleGen
	s.idle = s.opts.Clock.AfterFunc(s.opts.AwayAfter, func() { s.onIdle(gen) })
}

func (s *Session) onIdle(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running || gen != s.idleGen {
		return
	}
	if s.status == StatusOnline {
		s.transitionLocked(StatusAway)
	}
}

func (s *Session) armHeartbeatLocked() {
	s.beatGen++
	gen := s.beatGen
	s.heartbeat = s.opts.Clock.AfterFunc(s.opts.HeartbeatEvery, func() { s.onHeartbeat(gen) })
}

func (s *Session) onHeartbeat(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running || gen != s.beatGen {
		return
	}
	s.enqueueLocked()
	s.armHeartbeatLocked()
}

func (s *Session) shutdownLocked() {
	s.running = false
	s.idleGen++
	s.beatGen++
	if s.idle != nil {
		s.idle.Stop()
		s.idle = nil
	}
	if s.heartbeat != nil {
		s.heartbeat.Stop()
		s.heartbeat = nil
	}
}

// dispatch delivers reports in order until the outbox is closed (drain) or done
// is closed (discard).
func (s *Session) dispatch(outbox <-chan report, done <-chan struct{}) {
	defer s.wg.Done()
	for {
		select {
		case <-done:
			return
		case r, ok := <-outbox:
			if !ok {
				return
			}
			select {
			case <-done:
				return
			default:
			}
			s.deliver(r, done)
		}
	}
}

func (s *Session) deliver(r report, done <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	finished := make(chan struct{})
	defer close(finished)
	go func() {
		select {
		case <-done:
			cancel()
		case <-finished:
		}
	}()

	s.reporter.Report(ctx, r.status, r.pagePath)
}
