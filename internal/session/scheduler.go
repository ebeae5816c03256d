package session

import (
	"sync"
	"time"
)

// Clock reports the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns time.Now.
func (SystemClock) Now() time.Time { return time.Now() }

// Scheduler drives the recurring one-second tick of a running attempt.
// Stop may be called from inside the tick callback.
type Scheduler interface {
	Start(fn func())
	Stop()
}

// TickerScheduler fires fn on a time.Ticker in its own goroutine.
type TickerScheduler struct {
	Interval time.Duration

	mu   sync.Mutex
	stop chan struct{}
}

// NewTickerScheduler returns a scheduler ticking once per second.
func NewTickerScheduler() *TickerScheduler {
	return &TickerScheduler{Interval: time.Second}
}

// Start begins ticking. A previous run is stopped first.
func (s *TickerScheduler) Start(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		close(s.stop)
	}
	interval := s.Interval
	if interval <= 0 {
		interval = time.Second
	}
	stop := make(chan struct{})
	s.stop = stop
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				select {
				case <-stop:
					return
				default:
				}
				fn()
			}
		}
	}()
}

// Stop halts ticking without waiting for an in-flight callback. Controller
// tags each callback with its attempt, so a late one is dropped.
func (s *TickerScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		close(s.stop)
		s.stop = nil
	}
}

// ManualScheduler records the tick callback and fires it only when asked.
// Event loops that own their own timer (and tests) drive it with Fire.
type ManualScheduler struct {
	mu sync.Mutex
	fn func()
}

// Start arms the scheduler with fn.
func (s *ManualScheduler) Start(fn func()) {
	s.mu.Lock()
	s.fn = fn
	s.mu.Unlock()
}

// Stop disarms the scheduler.
func (s *ManualScheduler) Stop() {
	s.mu.Lock()
	s.fn = nil
	s.mu.Unlock()
}

// Active reports whether a callback is armed.
func (s *ManualScheduler) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fn != nil
}

// Fire invokes the armed callback once. It reports false when disarmed.
func (s *ManualScheduler) Fire() bool {
	s.mu.Lock()
	fn := s.fn
	s.mu.Unlock()
	if fn == nil {
		return false
	}
	fn()
	return true
}
