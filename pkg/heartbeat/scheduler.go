package heartbeat

import (
	"context"
	"runtime/debug"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/crystal-mush/gotinymud/pkg/events"
)

const (
	// DefaultPulse is the wall-clock interval between heartbeat passes.
	DefaultPulse = 1500 * time.Millisecond
	// DefaultYield bounds how long the loop waits for I/O callbacks before
	// checking the heartbeat again.
	DefaultYield = 10 * time.Millisecond

	inboxSize = 1024
)

// Observer receives per-iteration statistics (metrics).
type Observer interface {
	HeartbeatPass(d time.Duration, handlers, failures int)
	EventsDrained(ran, dropped int)
}

// Scheduler is the cooperative game loop. Game state is only mutated by
// callbacks running on the goroutine that calls Run (or Step): network
// goroutines hand work over with Post.
type Scheduler struct {
	Pulse time.Duration
	Yield time.Duration
	Clock clock.Clock

	Beats *Registry
	Queue *events.Queue
	Log   *zap.SugaredLogger
	Stats Observer

	// OnCountdown is called on every heartbeat pass while a shutdown is
	// pending, with the passes left.
	OnCountdown func(remaining int)
	// OnShutdown is called once when the countdown reaches zero, after the
	// final drain.
	OnShutdown func()

	inbox    chan func()
	done     chan struct{}
	lastBeat time.Time
	passes   uint64

	shutdownPending bool
	countdown       int
}

// NewScheduler creates a scheduler with default timing and a real clock.
func NewScheduler(beats *Registry, queue *events.Queue, log *zap.SugaredLogger) *Scheduler {
	clk := clock.New()
	return &Scheduler{
		Pulse:    DefaultPulse,
		Yield:    DefaultYield,
		Clock:    clk,
		Beats:    beats,
		Queue:    queue,
		Log:      log,
		inbox:    make(chan func(), inboxSize),
		done:     make(chan struct{}),
		lastBeat: clk.Now(),
	}
}

// SetClock swaps the time source and restarts the heartbeat interval from
// the new clock's current time.
func (s *Scheduler) SetClock(c clock.Clock) {
	s.Clock = c
	s.lastBeat = c.Now()
}

// Post hands fn to the scheduler goroutine. It is safe to call from any
// goroutine. Returns false if the scheduler has stopped; fn is not run.
func (s *Scheduler) Post(fn func()) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.inbox <- fn:
		return true
	case <-s.done:
		return false
	}
}

// Passes returns the number of heartbeat passes fired so far.
func (s *Scheduler) Passes() uint64 {
	return s.passes
}

// StartShutdown begins a countdown of n heartbeat passes. Values below one
// are treated as one.
func (s *Scheduler) StartShutdown(n int) {
	if n < 1 {
		n = 1
	}
	s.shutdownPending = true
	s.countdown = n
	s.Log.Infof("Shutdown countdown started: %d heartbeats", n)
}

// CancelShutdown aborts a pending countdown. Returns false if none was pending.
func (s *Scheduler) CancelShutdown() bool {
	if !s.shutdownPending {
		return false
	}
	s.shutdownPending = false
	s.countdown = 0
	s.Log.Infof("Shutdown countdown cancelled")
	return true
}

// ShutdownRemaining returns the passes left and whether a countdown is active.
func (s *Scheduler) ShutdownRemaining() (int, bool) {
	return s.countdown, s.shutdownPending
}

// Run loops until the shutdown countdown completes (returns nil) or ctx is
// cancelled (returns ctx.Err()).
func (s *Scheduler) Run(ctx context.Context) error {
	defer s.stop()

	ticker := s.Clock.Ticker(s.Yield)
	defer ticker.Stop()

	s.Log.Infof("Scheduler running: pulse=%s yield=%s", s.Pulse, s.Yield)
	for {
		select {
		case <-ctx.Done():
			s.Log.Infof("Scheduler stopped: %v", ctx.Err())
			return ctx.Err()
		case fn := <-s.inbox:
			fn()
		case <-ticker.C:
		}
		if s.Step() {
			return nil
		}
	}
}

// Step runs one loop iteration: ready callbacks, a heartbeat pass if one is
// due, then one drain of the event queue. It returns true when a shutdown
// countdown has just completed; OnShutdown has been called by then.
func (s *Scheduler) Step() bool {
	s.runReady()

	now := s.Clock.Now()
	if now.Sub(s.lastBeat) >= s.Pulse {
		s.lastBeat = now
		if s.Beat() {
			s.drain()
			s.Log.Infof("Shutdown countdown complete")
			if s.OnShutdown != nil {
				s.OnShutdown()
			}
			return true
		}
	}

	s.drain()
	return false
}

// Beat fires one heartbeat pass over every registered handler and advances
// the shutdown countdown. It returns true when the countdown reaches zero.
func (s *Scheduler) Beat() bool {
	start := s.Clock.Now()
	handles := s.Beats.Handles()
	failures := 0
	for _, h := range handles {
		// Handlers may unregister others during the pass.
		b, ok := s.Beats.Get(h)
		if !ok {
			continue
		}
		if !s.safeBeat(b) {
			failures++
		}
	}
	s.passes++
	if s.Stats != nil {
		s.Stats.HeartbeatPass(s.Clock.Since(start), len(handles), failures)
	}

	if !s.shutdownPending {
		return false
	}
	s.countdown--
	if s.OnCountdown != nil {
		s.OnCountdown(s.countdown)
	}
	return s.countdown <= 0
}

// safeBeat runs one handler and recovers a panic so the pass continues.
func (s *Scheduler) safeBeat(b Beater) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			s.Log.Errorw("heartbeat handler panicked",
				"handler", b, "panic", r, "stack", string(debug.Stack()))
			ok = false
		}
	}()
	b.Heartbeat()
	return true
}

// runReady runs posted callbacks that are already waiting, without blocking.
func (s *Scheduler) runReady() {
	for {
		select {
		case fn := <-s.inbox:
			fn()
		default:
			return
		}
	}
}

func (s *Scheduler) drain() {
	ran, dropped := s.Queue.Drain()
	if s.Stats != nil && ran+dropped > 0 {
		s.Stats.EventsDrained(ran, dropped)
	}
}

func (s *Scheduler) stop() {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
}
