package engine

import "time"

// Scheduler is the pluggable clock that paces the engine at tick
// granularity (spec.md §4.F). A nil Scheduler on Engine means "run as
// fast as possible", used for export.
type Scheduler interface {
	// Start records a wall-clock start moment and returns it.
	Start() time.Time
	// WaitForTick blocks until the next tick boundary is due. tempoBPM
	// and ticksPerLine are read fresh every call since the score can
	// change them mid-run. justChanged signals a realtime backend that
	// the tempo/TPL changed and it should resync rather than trust its
	// running average.
	WaitForTick(tempoBPM, ticksPerLine int, justChanged bool)
	// Stop releases any resources the scheduler holds.
	Stop()
	// Name identifies the scheduler for diagnostics.
	Name() string
}

// WallClockScheduler paces ticks against real time using
// tempo/ticks-per-line to compute the tick interval, following the
// teacher's queueManagerLoop/midiOutputLoop pacing idiom
// (time.NewTicker/time.NewTimer against a wall-clock target instead of a
// fixed-rate ticker, so tempo changes take effect on the next tick).
type WallClockScheduler struct {
	start    time.Time
	nextTick time.Time
	stopped  bool
}

// NewWallClockScheduler returns a scheduler that has not yet started.
func NewWallClockScheduler() *WallClockScheduler {
	return &WallClockScheduler{}
}

func (w *WallClockScheduler) Name() string { return "wallclock" }

func (w *WallClockScheduler) Start() time.Time {
	w.start = time.Now()
	w.nextTick = w.start
	w.stopped = false
	return w.start
}

func (w *WallClockScheduler) Stop() {
	w.stopped = true
}

// WaitForTick sleeps until the next tick boundary, recomputing the
// interval from the current tempo/TPL every call so a mid-run tempo
// change is reflected on the very next tick.
func (w *WallClockScheduler) WaitForTick(tempoBPM, ticksPerLine int, justChanged bool) {
	if tempoBPM < 1 {
		tempoBPM = 1
	}
	if ticksPerLine < 1 {
		ticksPerLine = 1
	}
	// One line lasts one beat's worth of the tracker's own convention
	// (60/tempo seconds), divided across ticksPerLine ticks.
	interval := time.Duration(float64(time.Minute) / float64(tempoBPM) / float64(ticksPerLine))

	if justChanged || w.nextTick.IsZero() {
		w.nextTick = time.Now().Add(interval)
	} else {
		w.nextTick = w.nextTick.Add(interval)
	}

	now := time.Now()
	if w.nextTick.After(now) {
		time.Sleep(w.nextTick.Sub(now))
	}
}

// NoneScheduler runs the engine as fast as possible: WaitForTick returns
// immediately. Used for headless SMF export (spec.md §4.F).
type NoneScheduler struct{}

func (NoneScheduler) Name() string                      { return "none" }
func (NoneScheduler) Start() time.Time                  { return time.Now() }
func (NoneScheduler) Stop()                             {}
func (NoneScheduler) WaitForTick(_, _ int, _ bool)      {}

var (
	_ Scheduler = (*WallClockScheduler)(nil)
	_ Scheduler = NoneScheduler{}
)
