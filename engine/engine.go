// Package engine implements the tracker playback engine: a tick-driven
// state machine that walks a score.Score and drives one or more
// midiout.Sink outputs, following spec.md's §4 component design.
package engine

import (
	"sync"
	"time"

	"github.com/gseamans/trackplay/enginelog"
	"github.com/gseamans/trackplay/midiout"
	"github.com/gseamans/trackplay/score"
)

// Mode is the engine's coarse playback state (spec.md §3 "Engine state").
type Mode int

const (
	Idle Mode = iota
	PlaySong
	PlayBlock
)

// ExternalSyncMode selects how the engine is paced (spec.md §3, §4.I).
type ExternalSyncMode int

const (
	SyncOff ExternalSyncMode = iota
	SyncExternalClockPerTick
	SyncJackStartOnly
)

// postponedNote is a note-on queued mid-tick and flushed after every
// track has been processed (spec.md §4.H step 7).
type postponedNote struct {
	iface, channel, note, velocity int
}

// Engine is the tick-driven playback state machine. The zero value is not
// usable; construct with New.
type Engine struct {
	mu   sync.Mutex
	cond *sync.Cond

	sc        *score.Score
	outputs   *midiout.OutputSet
	scheduler Scheduler
	cache     *controllerCache
	trackVol  *rampOrigin

	tracks []*trackStatus

	events chan Event
	seq    uint64

	mode Mode

	section, playseq, position, block, line, tick int
	ticksSoFar                                    int64

	postCommand uint8
	postValue   uint8
	hasPost     bool

	kill           bool
	killWhenLooped bool
	looped         bool

	externalSyncMode  ExternalSyncMode
	externalSyncTicks int
	syncJustChanged   bool

	playingStarted time.Time
	playedSoFar    time.Duration

	wg sync.WaitGroup
}

// New constructs an idle engine over sc, driving outputs, paced by
// scheduler (nil means "run as fast as possible", used for export).
func New(sc *score.Score, outputs *midiout.OutputSet, scheduler Scheduler) *Engine {
	e := &Engine{
		sc:        sc,
		outputs:   outputs,
		scheduler: scheduler,
		cache:     newControllerCache(),
		trackVol:  newRampOrigin(),
		events:    make(chan Event, 64),
	}
	e.cond = sync.NewCond(&e.mu)
	e.growTracksLocked(sc.MaxTracks())
	return e
}

func (e *Engine) growTracksLocked(n int) {
	for len(e.tracks) < n {
		e.tracks = append(e.tracks, newTrackStatus())
	}
}

// Mode returns the engine's current playback mode.
func (e *Engine) Mode() Mode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mode
}

// Play starts (or restarts) playback in mode. If cont is false, the
// section/position/line cursor resets to zero; otherwise playback resumes
// from wherever the cursor was left. Play is idempotent via an internal
// Stop at entry (spec.md §5 "play() is idempotent via an internal stop()
// at entry").
func (e *Engine) Play(mode Mode, cont bool) {
	e.Stop()

	e.mu.Lock()
	if !cont {
		e.section, e.playseq, e.position, e.block, e.line = 0, 0, 0, 0, 0
		e.recomputeCursorLocked()
	}
	e.tick = 0
	e.ticksSoFar = 0
	e.mode = mode
	e.kill = false
	e.looped = false
	e.syncJustChanged = true
	e.playingStarted = time.Now()
	syncOn := e.sc.SendSync()
	e.mu.Unlock()

	e.notify(ModeChanged, int(mode))

	if syncOn {
		for _, s := range e.outputs.All() {
			if cont {
				s.Continue()
			} else {
				s.Start()
			}
		}
	}

	if e.scheduler != nil {
		e.scheduler.Start()
	}

	e.wg.Add(1)
	go e.run()
}

// SetKillWhenLooped configures whether the engine terminates the first
// time the position/line cursor overflows the current block or playseq —
// the flag export runs set to make a run terminate exactly once through
// (spec.md §4.I "Export mode").
func (e *Engine) SetKillWhenLooped(v bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.killWhenLooped = v
}

// Stop synchronously terminates any running playback loop: it sets the
// kill flag, wakes any blocked external-sync waiter with zero credits,
// and joins the engine thread (spec.md §4.I, §5 "Cancellation").
func (e *Engine) Stop() {
	e.mu.Lock()
	if e.mode == Idle {
		e.mu.Unlock()
		return
	}
	e.kill = true
	syncOn := e.sc.SendSync()
	e.cond.Broadcast()
	e.mu.Unlock()

	e.wg.Wait()

	if syncOn {
		for _, s := range e.outputs.All() {
			s.Stop()
		}
	}
}

// ExternalSync adds n tick credits and wakes the waiter; a no-op while
// Idle (spec.md §4.I).
func (e *Engine) ExternalSync(n int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.mode == Idle {
		return
	}
	e.externalSyncTicks += n
	e.cond.Broadcast()
}

// SetExternalSyncMode changes the pacing source. A transition to Off
// wakes the waiter so it re-evaluates against the scheduler instead
// (spec.md §4.I).
func (e *Engine) SetExternalSyncMode(mode ExternalSyncMode) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.externalSyncMode = mode
	e.syncJustChanged = true
	if mode == SyncOff {
		e.cond.Broadcast()
	}
}

// run is the engine's dedicated thread: it owns the tick loop for the
// entire duration of one Play call, stopping only via kill or
// kill-when-looped (spec.md §4.H, §5 "Scheduling model").
func (e *Engine) run() {
	defer e.wg.Done()

	for {
		e.mu.Lock()
		if e.kill {
			e.mu.Unlock()
			break
		}

		if e.externalSyncMode != SyncOff {
			for e.externalSyncTicks <= 0 && !e.kill && e.externalSyncMode != SyncOff {
				e.cond.Wait()
			}
			if e.kill {
				e.mu.Unlock()
				break
			}
			if e.externalSyncMode == SyncOff {
				// switched to Off while waiting: pace by the scheduler instead
				e.mu.Unlock()
				continue
			}
			e.externalSyncTicks--
		} else if e.scheduler != nil {
			tempo, tpl := e.sc.Tempo(), e.sc.TicksPerLine()
			justChanged := e.syncJustChanged
			e.syncJustChanged = false
			e.mu.Unlock()
			e.scheduler.WaitForTick(tempo, tpl, justChanged)
			e.mu.Lock()
			if e.kill {
				e.mu.Unlock()
				break
			}
		}

		e.sc.Lock()
		looped := e.stepTick()
		e.sc.Unlock()

		kill := e.kill
		killWhenLooped := e.killWhenLooped
		e.mu.Unlock()

		if kill || (killWhenLooped && looped) {
			break
		}
	}

	e.epilogue()
}

// stepTick runs one full tick (spec.md §4.H steps 3-9), assuming the
// engine mutex and score lock are both held. It returns whether the
// position/line cursor overflowed the current block/playseq this tick.
func (e *Engine) stepTick() bool {
	for _, s := range e.outputs.All() {
		s.SetTick(e.ticksSoFar)
	}
	if e.sc.SendSync() {
		for _, s := range e.outputs.All() {
			s.Clock()
		}
	}

	block := e.sc.Block(e.block)
	if block == nil {
		return false
	}
	e.line = mod(e.line, block.Length())

	maxTracks := block.Tracks()
	if maxTracks > len(e.tracks) {
		e.growTracksLocked(maxTracks)
	}
	anySolo := e.sc.AnySolo()

	var postponed []postponedNote
	tpl := e.sc.TicksPerLine()

	for t := 0; t < maxTracks; t++ {
		track := e.sc.Track(t)
		if track.Muted || (anySolo && !track.Solo) {
			continue
		}
		ts := e.tracks[t]
		if ps := e.processTrack(block, t, ts, track, tpl); ps != nil {
			postponed = append(postponed, *ps)
		}
	}

	for _, n := range postponed {
		e.outputs.At(n.iface).NoteOn(uint8(n.channel), uint8(n.note), uint8(n.velocity))
	}

	for t := 0; t < len(e.tracks); t++ {
		ts := e.tracks[t]
		if !ts.sounding() || ts.hold < 0 {
			continue
		}
		ts.hold--
		if ts.hold < 0 {
			e.emitNoteOff(ts.midiInterface, ts.midiChannel, ts)
		}
	}

	return e.advance()
}

// processTrack executes spec.md §4.H step 6 for a single track and
// returns a queued note-on if the tick's gate fired one.
func (e *Engine) processTrack(block *score.Block, t int, ts *trackStatus, track *score.Track, tpl int) *postponedNote {
	mainCell := block.Cell(e.line, t, 0)

	if mainCell.Note != 0 && e.tick == 0 {
		ts.arpeggioLine = 0
	}

	effInstrIdx := ts.instrument
	if mainCell.Instrument != 0 {
		effInstrIdx = int(mainCell.Instrument) - 1
	}
	var inst *score.Instrument
	if effInstrIdx >= 0 {
		inst = e.sc.Instrument(effInstrIdx)
	}

	iface, channel := 0, 0
	if inst != nil {
		channel = inst.MidiChannel
		if inst.MidiInterface >= 0 {
			iface = inst.MidiInterface
		} else {
			enginelog.Log(enginelog.UnknownMidiInterface, "track %d instrument %d has no resolved interface, routing to null output", t, effInstrIdx)
		}
	}

	// candidate note for this tick, before gating: arpeggio offset when
	// active, else the line's own note field taken at face value. The
	// arpeggio offset is resolved against this cell's own note (when it
	// carries one) rather than the still-stale ts.baseNote, which is only
	// updated below after commands are interpreted.
	baseNote := ts.baseNote
	if mainCell.Note != 0 {
		baseNote = mainCell.Note - 1
	}
	note := -1
	if inst != nil && inst.Arpeggio != nil && ts.arpeggioLine >= 0 {
		arpCell := inst.Arpeggio.Cell(ts.arpeggioLine, 0, 0)
		if arpCell.Note != 0 {
			note = int(baseNote) + (int(arpCell.Note) - inst.ArpeggioBaseNote)
		} else {
			note = -1
		}
	} else if mainCell.Note != 0 {
		note = int(mainCell.Note) - 1
	}

	pages := block.Pages()
	resolvedMain := make([]resolvedCommand, pages)
	delay, repeat := 0, 0
	for p := 0; p < pages; p++ {
		rc := resolveCommand(ts, block.Cell(e.line, t, p))
		resolvedMain[p] = rc
		if d, r, ok := retriggerDelayParams(rc); ok {
			delay, repeat = d, r
		}
	}
	gating := gateFires(delay, repeat, e.tick)
	if gating && ts.sounding() {
		e.emitNoteOff(ts.midiInterface, ts.midiChannel, ts)
	}

	ctx := newTickCtx(e.sc, e.outputs, e.cache, t, e.tick, tpl, iface, channel, inst, mainCell.Note != 0)

	if inst != nil && inst.Arpeggio != nil && ts.arpeggioLine >= 0 {
		for p := 0; p < inst.Arpeggio.Pages(); p++ {
			rc := resolveCommand(ts, inst.Arpeggio.Cell(ts.arpeggioLine, 0, p))
			interpretResolved(ctx, ts, e.trackVol, rc)
		}
	}
	for p := 0; p < pages; p++ {
		interpretResolved(ctx, ts, e.trackVol, resolvedMain[p])
	}
	if ctx.hasPost() {
		e.postCommand, e.postValue, e.hasPost = ctx.postCommand, ctx.postValue, true
	}

	if mainCell.Note != 0 {
		ts.baseNote = mainCell.Note - 1
	}
	if mainCell.Instrument != 0 {
		ts.instrument = int(mainCell.Instrument) - 1
	}

	var result *postponedNote
	if gating && note >= 0 && inst != nil {
		pitched := note + inst.Transpose
		if pitched < 0 {
			pitched = 0
		}
		if pitched > 127 {
			pitched = 127
		}
		vel := inst.DefaultVelocity * ctx.cellVolume / 127 * track.Volume / 127 * e.sc.MasterVolume() / 127
		if vel < 0 {
			vel = 127
		}
		if vel > 127 {
			vel = 127
		}
		ts.note = pitched
		ts.midiChannel = channel
		ts.midiInterface = iface
		hold := inst.Hold
		if ctx.holdOverride >= 0 {
			hold = ctx.holdOverride
		}
		if hold == 0 {
			hold = -1
		}
		ts.hold = hold
		result = &postponedNote{iface: iface, channel: channel, note: pitched, velocity: vel}
	} else if e.tick == 0 && mainCell.Instrument != 0 && ts.sounding() && ts.midiInterface == iface {
		if inst != nil {
			ts.hold += inst.Hold
		}
	}
	return result
}

// hasPost reports whether interpretResolved latched a post-command this
// tick, small enough to inline at the call site above.
func (c *tickCtx) hasPost() bool { return c.postCommand != 0 }

// emitNoteOff sends a note-off for a track's currently sounding note and
// clears it.
func (e *Engine) emitNoteOff(iface, channel int, ts *trackStatus) {
	if !ts.sounding() {
		return
	}
	e.outputs.At(iface).NoteOff(uint8(channel), uint8(ts.note), 127)
	ts.note = -1
}

// advance implements spec.md §4.H step 9: tick wrap, line/position/section
// advance, post-command consumption and cursor recomputation. It returns
// whether the block or playseq overflowed this tick (the "looped" flag).
func (e *Engine) advance() bool {
	e.ticksSoFar++
	tpl := e.sc.TicksPerLine()
	e.tick++
	if e.tick < tpl {
		return false
	}
	e.tick = 0
	e.line++

	for _, ts := range e.tracks {
		if ts.arpeggioLine < 0 {
			continue
		}
		if inst := e.instrumentForTrackLocked(ts); inst != nil && inst.Arpeggio != nil && inst.Arpeggio.Length() > 0 {
			ts.arpeggioLine = (ts.arpeggioLine + 1) % inst.Arpeggio.Length()
		}
	}

	looped := false
	jumped := false
	if e.hasPost {
		cmd, val := e.postCommand, e.postValue
		e.postCommand, e.postValue, e.hasPost = 0, 0, false
		switch cmd {
		case CmdEndBlock:
			e.line = int(val)
			looped = e.advancePosition()
			jumped = true
		case CmdPlayseqPosition:
			e.line = 0
			e.position = int(val)
			ps := e.sc.Playseq(e.playseq)
			if e.position >= ps.Len() {
				e.position = 0
				e.section++
				if e.section >= e.sc.SectionCount() {
					e.section = 0
				}
				e.playseq = e.sc.Section(e.section)
				e.notify(SectionChanged, e.section)
				e.notify(PlayseqChanged, e.playseq)
			} else {
				e.notify(PositionChanged, e.position)
			}
			looped = true
			jumped = true
		case CmdTicksPerLine, CmdTempo:
			e.kill = true
		}
	}

	if !jumped {
		block := e.sc.Block(e.block)
		if block != nil && e.line >= block.Length() {
			e.line = 0
			looped = e.advancePosition() || looped
		}
	}

	e.recomputeCursorLocked()
	e.looped = looped
	return looped
}

// advancePosition steps the playseq position (PlaySong) or wraps to the
// block's start (PlayBlock), returning whether it overflowed.
func (e *Engine) advancePosition() bool {
	if e.mode == PlayBlock {
		return true
	}
	ps := e.sc.Playseq(e.playseq)
	e.position++
	if e.position >= ps.Len() {
		e.position = 0
		e.section++
		if e.section >= e.sc.SectionCount() {
			e.section = 0
		}
		e.playseq = e.sc.Section(e.section)
		e.notify(SectionChanged, e.section)
		e.notify(PlayseqChanged, e.playseq)
		return true
	}
	e.notify(PositionChanged, e.position)
	return false
}

// recomputeCursorLocked derives block from (playseq, position), emits
// blockChanged when the block moved, and emits lineChanged on every call.
func (e *Engine) recomputeCursorLocked() {
	ps := e.sc.Playseq(e.playseq)
	newBlock := ps.At(e.position)
	if newBlock != e.block {
		e.block = newBlock
		e.notify(BlockChanged, e.block)
	}
	e.notify(LineChanged, e.line)
}

// instrumentForTrackLocked resolves the instrument currently remembered
// by a track's status, for arpeggio cursor advancement outside the main
// per-cell resolution path.
func (e *Engine) instrumentForTrackLocked(ts *trackStatus) *score.Instrument {
	if ts.instrument < 0 {
		return nil
	}
	return e.sc.Instrument(ts.instrument)
}

// epilogue runs spec.md §4.H's "Termination epilogue": elapsed time
// bookkeeping, scheduler stop, note-offs for every sounding track.
func (e *Engine) epilogue() {
	e.mu.Lock()
	if !e.playingStarted.IsZero() {
		e.playedSoFar += time.Since(e.playingStarted)
	}
	e.mode = Idle
	lineMoved := e.line
	e.mu.Unlock()

	if e.scheduler != nil {
		e.scheduler.Stop()
	}

	e.mu.Lock()
	e.sc.Lock()
	for _, ts := range e.tracks {
		if ts.sounding() {
			e.emitNoteOff(ts.midiInterface, ts.midiChannel, ts)
		}
	}
	e.sc.Unlock()
	e.mu.Unlock()

	e.notify(LineChanged, lineMoved)
	e.notify(ModeChanged, int(Idle))
}

func mod(a, m int) int {
	if m <= 0 {
		return 0
	}
	r := a % m
	if r < 0 {
		r += m
	}
	return r
}
