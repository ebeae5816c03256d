package session

import (
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func newTestController(duration time.Duration) (*Controller, *fakeClock, *ManualScheduler) {
	clock := newFakeClock()
	sched := &ManualScheduler{}
	c := New(Config{Duration: duration, Clock: clock, Scheduler: sched}, "cat")
	return c, clock, sched
}

// tick advances the fake clock by one second and fires the scheduler.
func tick(clock *fakeClock, sched *ManualScheduler) bool {
	clock.Advance(time.Second)
	return sched.Fire()
}

func TestStartRejectsWhileRunning(t *testing.T) {
	c, _, _ := newTestController(30 * time.Second)
	if err := c.Start("cat"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := c.Start("dog"); !errors.Is(err, ErrAlreadyActive) {
		t.Fatalf("expected ErrAlreadyActive, got %v", err)
	}
	if got := c.Attempt().ReferenceText; got != "cat" {
		t.Fatalf("reference should be unchanged, got %q", got)
	}
}

func TestOnInputRequiresRunning(t *testing.T) {
	c, _, _ := newTestController(30 * time.Second)
	if _, err := c.OnInput("c"); !errors.Is(err, ErrNotActive) {
		t.Fatalf("expected ErrNotActive in idle, got %v", err)
	}
	if err := c.Start("cat"); err != nil {
		t.Fatalf("start: %v", err)
	}
	c.End()
	if _, err := c.OnInput("cat"); !errors.Is(err, ErrNotActive) {
		t.Fatalf("expected ErrNotActive after end, got %v", err)
	}
	if got := c.Attempt().Input; got != "" {
		t.Fatalf("frozen buffer mutated: %q", got)
	}
}

func TestLiveMetrics(t *testing.T) {
	c, clock, _ := newTestController(30 * time.Second)
	if err := c.Start("cat"); err != nil {
		t.Fatalf("start: %v", err)
	}
	clock.Advance(30 * time.Second)
	m, err := c.OnInput("cbt")
	if err != nil {
		t.Fatalf("input: %v", err)
	}
	if m.Accuracy != 67 || m.WPM != 2 {
		t.Fatalf("expected accuracy 67 and wpm 2, got %+v", m)
	}
}

func TestTickExpiresAttempt(t *testing.T) {
	c, clock, sched := newTestController(3 * time.Second)
	var ends int
	c.onEnd = func(Snapshot) { ends++ }
	if err := c.Start("cat"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := c.OnInput("cat"); err != nil {
		t.Fatalf("input: %v", err)
	}
	for i := 0; i < 2; i++ {
		tick(clock, sched)
	}
	if snap := c.Snapshot(); snap.State != Running || snap.Remaining != 1 {
		t.Fatalf("expected running with 1s left, got %+v", snap)
	}
	tick(clock, sched)
	snap := c.Snapshot()
	if snap.State != Ended || snap.Remaining != 0 {
		t.Fatalf("expected ended at zero, got %+v", snap)
	}
	if sched.Active() {
		t.Fatalf("scheduler should be stopped after expiry")
	}
	if ends != 1 {
		t.Fatalf("expected one end callback, got %d", ends)
	}
	// 1 word over 3 seconds.
	if snap.Metrics.WPM != 20 {
		t.Fatalf("expected wpm 20, got %d", snap.Metrics.WPM)
	}
	if tick(clock, sched) {
		t.Fatalf("expected no further ticks")
	}
}

func TestEndIsIdempotent(t *testing.T) {
	c, clock, _ := newTestController(60 * time.Second)
	if err := c.Start("the quick fox"); err != nil {
		t.Fatalf("start: %v", err)
	}
	clock.Advance(15 * time.Second)
	if _, err := c.OnInput("the quick"); err != nil {
		t.Fatalf("input: %v", err)
	}
	first := c.End()
	clock.Advance(10 * time.Second)
	second := c.End()
	if first != second {
		t.Fatalf("expected identical metrics, got %+v and %+v", first, second)
	}
	a := c.Attempt()
	if a.EndedAt == nil || !a.EndedAt.Equal(a.StartedAt.Add(15*time.Second)) {
		t.Fatalf("endedAt changed on second end: %+v", a)
	}
}

func TestEarlyEndUsesWallClock(t *testing.T) {
	c, clock, _ := newTestController(60 * time.Second)
	if err := c.Start("one two three"); err != nil {
		t.Fatalf("start: %v", err)
	}
	clock.Advance(6 * time.Second)
	if _, err := c.OnInput("one two"); err != nil {
		t.Fatalf("input: %v", err)
	}
	m := c.End()
	// 2 words over 0.1 minutes, not over the nominal minute.
	if m.WPM != 20 {
		t.Fatalf("expected wpm 20, got %d", m.WPM)
	}
}

func TestEndInIdleIsNoop(t *testing.T) {
	c, _, _ := newTestController(30 * time.Second)
	if m := c.End(); m.WPM != 0 || m.Accuracy != 0 {
		t.Fatalf("expected zero metrics, got %+v", m)
	}
	if c.Snapshot().State != Idle {
		t.Fatalf("expected idle")
	}
	if a := c.Attempt(); a.StartedAt != nil || a.EndedAt != nil {
		t.Fatalf("expected unset timestamps, got %+v", a)
	}
}

func TestStartAfterEnd(t *testing.T) {
	c, clock, _ := newTestController(30 * time.Second)
	if err := c.Start("cat"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := c.OnInput("ca"); err != nil {
		t.Fatalf("input: %v", err)
	}
	c.End()
	clock.Advance(time.Second)
	if err := c.Start("dog"); err != nil {
		t.Fatalf("restart: %v", err)
	}
	a := c.Attempt()
	if a.Input != "" || a.ReferenceText != "dog" || a.EndedAt != nil {
		t.Fatalf("expected fresh attempt, got %+v", a)
	}
}

func TestReset(t *testing.T) {
	c, clock, sched := newTestController(30 * time.Second)
	if err := c.Start("cat"); err != nil {
		t.Fatalf("start: %v", err)
	}
	tick(clock, sched)
	if _, err := c.OnInput("c"); err != nil {
		t.Fatalf("input: %v", err)
	}
	c.Reset("bird")
	snap := c.Snapshot()
	if snap.State != Idle || snap.Remaining != 30 {
		t.Fatalf("expected idle with full countdown, got %+v", snap)
	}
	if sched.Active() {
		t.Fatalf("reset should stop the scheduler")
	}
	a := c.Attempt()
	if a.ReferenceText != "bird" || a.Input != "" || a.StartedAt != nil {
		t.Fatalf("unexpected attempt after reset: %+v", a)
	}
}

func TestStartOnInput(t *testing.T) {
	clock := newFakeClock()
	sched := &ManualScheduler{}
	c := New(Config{Duration: 30 * time.Second, StartOnInput: true, Clock: clock, Scheduler: sched}, "cat")
	m, err := c.OnInput("c")
	if err != nil {
		t.Fatalf("input should start attempt: %v", err)
	}
	if m.Accuracy != 33 {
		t.Fatalf("expected accuracy 33, got %d", m.Accuracy)
	}
	if c.Snapshot().State != Running || !sched.Active() {
		t.Fatalf("expected running attempt with armed scheduler")
	}
}

func TestScore(t *testing.T) {
	c, clock, _ := newTestController(30 * time.Second)
	if _, err := c.Score("u1"); !errors.Is(err, ErrNotEnded) {
		t.Fatalf("expected ErrNotEnded, got %v", err)
	}
	if err := c.Start("cat"); err != nil {
		t.Fatalf("start: %v", err)
	}
	clock.Advance(30 * time.Second)
	if _, err := c.OnInput("cbt"); err != nil {
		t.Fatalf("input: %v", err)
	}
	c.End()
	score, err := c.Score("u1")
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if score.UserID != "u1" || score.WPM != 2 || score.Accuracy != 67 || score.Duration != 30 {
		t.Fatalf("unexpected score %+v", score)
	}
}

func TestDefaultDuration(t *testing.T) {
	c := New(Config{Scheduler: &ManualScheduler{}}, "x")
	if c.DurationSeconds() != 60 {
		t.Fatalf("expected 60s default, got %d", c.DurationSeconds())
	}
}

func TestTickerSchedulerStopsFromCallback(t *testing.T) {
	sched := &TickerScheduler{Interval: time.Millisecond}
	c := New(Config{Duration: 2 * time.Second, Scheduler: sched}, "cat")
	done := make(chan struct{})
	c.onEnd = func(Snapshot) { close(done) }
	if err := c.Start("cat"); err != nil {
		t.Fatalf("start: %v", err)
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("attempt did not expire")
	}
	if c.Snapshot().State != Ended {
		t.Fatalf("expected ended state")
	}
}

// capturingScheduler keeps every callback it was started with.
type capturingScheduler struct {
	fns []func()
}

func (s *capturingScheduler) Start(fn func()) { s.fns = append(s.fns, fn) }
func (s *capturingScheduler) Stop()          {}

func TestLateTickFromPreviousAttemptIsDropped(t *testing.T) {
	sched := &capturingScheduler{}
	c := New(Config{Duration: 30 * time.Second, Clock: newFakeClock(), Scheduler: sched}, "cat")
	if err := c.Start("cat"); err != nil {
		t.Fatalf("start: %v", err)
	}
	c.Reset("dog")
	if err := c.Start("dog"); err != nil {
		t.Fatalf("restart: %v", err)
	}
	if len(sched.fns) != 2 {
		t.Fatalf("expected 2 scheduler starts, got %d", len(sched.fns))
	}

	sched.fns[0]()
	if got := c.Snapshot().Remaining; got != 30 {
		t.Fatalf("late tick changed remaining to %d", got)
	}
	sched.fns[1]()
	if got := c.Snapshot().Remaining; got != 29 {
		t.Fatalf("expected current tick to count, got remaining %d", got)
	}
}

func TestStateString(t *testing.T) {
	cases := map[State]string{Idle: "idle", Running: "running", Ended: "ended", State(9): "unknown"}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Fatalf("state %d: expected %q, got %q", state, want, got)
		}
	}
}
