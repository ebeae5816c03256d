// Package session implements the lifecycle of a single timed typing attempt.
//
// A Controller moves through Idle, Running and Ended. Time is read from an
// injected Clock and the countdown is advanced by an injected Scheduler, so
// callers can drive an attempt deterministically.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/verte-zerg/swifttype/internal/model"
	"github.com/verte-zerg/swifttype/internal/stats"
)

var (
	// ErrAlreadyActive is returned by Start while an attempt is running.
	ErrAlreadyActive = errors.New("session: attempt already active")
	// ErrNotActive is returned by OnInput when no attempt is running.
	ErrNotActive = errors.New("session: no active attempt")
	// ErrNotEnded is returned by Score before the attempt has ended.
	ErrNotEnded = errors.New("session: attempt has not ended")
)

// DefaultDuration is used when Config.Duration is not positive.
const DefaultDuration = 60 * time.Second

// State is the controller's lifecycle state.
type State int

const (
	Idle State = iota
	Running
	Ended
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Ended:
		return "ended"
	default:
		return "unknown"
	}
}

// Config configures a Controller.
type Config struct {
	Duration time.Duration
	// StartOnInput starts the attempt on the first OnInput received while idle.
	StartOnInput bool
	Clock        Clock
	Scheduler    Scheduler
	// OnTick runs after every scheduler tick, outside the controller lock.
	OnTick func(Snapshot)
	// OnEnd runs once per attempt when it ends, outside the controller lock.
	OnEnd func(Snapshot)
}

// Attempt is a copy of the transient attempt record.
type Attempt struct {
	ReferenceText string
	Input         string
	StartedAt     *time.Time
	EndedAt       *time.Time
}

// Snapshot is the state needed for live display.
type Snapshot struct {
	State     State
	Remaining int
	Elapsed   time.Duration
	Metrics   stats.Metrics
}

// Controller owns one attempt at a time.
type Controller struct {
	mu sync.Mutex

	total        int
	startOnInput bool
	clock        Clock
	sched        Scheduler
	onTick       func(Snapshot)
	onEnd        func(Snapshot)

	state     State
	run       uint64
	reference string
	input     string
	startedAt time.Time
	endedAt   time.Time
	remaining int
	final     stats.Metrics
}

// New builds an idle controller loaded with reference.
func New(cfg Config, reference string) *Controller {
	duration := cfg.Duration
	if duration <= 0 {
		duration = DefaultDuration
	}
	clock := cfg.Clock
	if clock == nil {
		clock = SystemClock{}
	}
	sched := cfg.Scheduler
	if sched == nil {
		sched = NewTickerScheduler()
	}
	total := int(duration / time.Second)
	if total <= 0 {
		total = 1
	}
	return &Controller{
		total:        total,
		startOnInput: cfg.StartOnInput,
		clock:        clock,
		sched:        sched,
		onTick:       cfg.OnTick,
		onEnd:        cfg.OnEnd,
		reference:    reference,
		remaining:    total,
	}
}

// DurationSeconds is the configured countdown length.
func (c *Controller) DurationSeconds() int {
	return c.total
}

// Start begins a new attempt against reference.
func (c *Controller) Start(reference string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Running {
		return ErrAlreadyActive
	}
	c.reference = reference
	c.startLocked()
	return nil
}

func (c *Controller) startLocked() {
	c.state = Running
	c.input = ""
	c.startedAt = c.clock.Now()
	c.endedAt = time.Time{}
	c.remaining = c.total
	c.final = stats.Metrics{}
	c.run++
	run := c.run
	c.sched.Start(func() { c.tick(run) })
}

// OnInput replaces the input buffer and returns live metrics.
func (c *Controller) OnInput(buffer string) (stats.Metrics, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Idle && c.startOnInput {
		c.startLocked()
	}
	if c.state != Running || c.remaining <= 0 {
		return stats.Metrics{}, ErrNotActive
	}
	c.input = buffer
	return stats.Compute(c.input, c.reference, c.clock.Now().Sub(c.startedAt)), nil
}

// Tick advances the countdown by one second and ends the attempt at zero.
// Ticks outside the running state are ignored.
func (c *Controller) Tick() {
	c.tick(0)
}

// tick only counts for the attempt numbered run; zero matches any run.
func (c *Controller) tick(run uint64) {
	c.mu.Lock()
	if c.state != Running || (run != 0 && run != c.run) {
		c.mu.Unlock()
		return
	}
	c.remaining--
	ended := false
	if c.remaining <= 0 {
		c.remaining = 0
		c.endLocked()
		ended = true
	}
	snap := c.snapshotLocked()
	onTick, onEnd := c.onTick, c.onEnd
	c.mu.Unlock()

	if onTick != nil {
		onTick(snap)
	}
	if ended && onEnd != nil {
		onEnd(snap)
	}
}

// End finishes the running attempt and returns final metrics. Repeated calls
// return the same metrics; calling it while idle does nothing.
func (c *Controller) End() stats.Metrics {
	c.mu.Lock()
	switch c.state {
	case Idle:
		c.mu.Unlock()
		return stats.Metrics{}
	case Ended:
		final := c.final
		c.mu.Unlock()
		return final
	}
	c.endLocked()
	snap := c.snapshotLocked()
	onEnd := c.onEnd
	c.mu.Unlock()

	if onEnd != nil {
		onEnd(snap)
	}
	return snap.Metrics
}

func (c *Controller) endLocked() {
	c.sched.Stop()
	c.endedAt = c.clock.Now()
	if c.endedAt.Before(c.startedAt) {
		c.endedAt = c.startedAt
	}
	c.state = Ended
	c.final = stats.Compute(c.input, c.reference, c.endedAt.Sub(c.startedAt))
}

// Reset discards the current attempt and loads reference. It is always allowed.
func (c *Controller) Reset(reference string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sched.Stop()
	c.state = Idle
	c.reference = reference
	c.input = ""
	c.startedAt = time.Time{}
	c.endedAt = time.Time{}
	c.remaining = c.total
	c.final = stats.Metrics{}
}

// Snapshot returns the current display state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	snap := Snapshot{State: c.state, Remaining: c.remaining}
	switch c.state {
	case Running:
		snap.Elapsed = c.clock.Now().Sub(c.startedAt)
		snap.Metrics = stats.Compute(c.input, c.reference, snap.Elapsed)
	case Ended:
		snap.Elapsed = c.endedAt.Sub(c.startedAt)
		snap.Metrics = c.final
	}
	return snap
}

// Attempt returns a copy of the attempt record.
func (c *Controller) Attempt() Attempt {
	c.mu.Lock()
	defer c.mu.Unlock()
	a := Attempt{ReferenceText: c.reference, Input: c.input}
	if c.state != Idle {
		started := c.startedAt
		a.StartedAt = &started
	}
	if c.state == Ended {
		ended := c.endedAt
		a.EndedAt = &ended
	}
	return a
}

// Score converts the ended attempt into a score for userID. The duration
// bucket is the configured countdown, regardless of early termination.
func (c *Controller) Score(userID string) (model.Score, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Ended {
		return model.Score{}, ErrNotEnded
	}
	return model.Score{
		UserID:    userID,
		WPM:       c.final.WPM,
		Accuracy:  c.final.Accuracy,
		Duration:  c.total,
		CreatedAt: c.endedAt.UTC(),
	}, nil
}
