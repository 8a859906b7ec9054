package engine

import "github.com/gseamans/trackplay/midiout"

// setClamped stores a clamped cursor value under the engine mutex and
// notifies iff the value actually changed (spec.md §4.I: "each holds the
// engine mutex while writing and emits its *Changed signal iff the stored
// value changed").
func (e *Engine) setClamped(cur *int, v, lo, hi int, kind EventKind) {
	if v < lo {
		v = lo
	}
	if v > hi {
		v = hi
	}
	e.mu.Lock()
	changed := *cur != v
	*cur = v
	e.mu.Unlock()
	if changed {
		e.notify(kind, v)
	}
}

// SetSection moves the section cursor, clamped to the song's section
// count.
func (e *Engine) SetSection(i int) {
	hi := e.sc.SectionCount() - 1
	if hi < 0 {
		hi = 0
	}
	e.setClamped(&e.section, i, 0, hi, SectionChanged)
}

// SetPlayseq moves the playseq cursor directly, clamped to the song's
// playseq count.
func (e *Engine) SetPlayseq(i int) {
	hi := e.sc.PlayseqCount() - 1
	if hi < 0 {
		hi = 0
	}
	e.setClamped(&e.playseq, i, 0, hi, PlayseqChanged)
}

// SetPosition moves the position cursor within the current playseq.
func (e *Engine) SetPosition(i int) {
	ps := e.sc.Playseq(e.playseq)
	hi := ps.Len() - 1
	if hi < 0 {
		hi = 0
	}
	e.setClamped(&e.position, i, 0, hi, PositionChanged)
}

// SetBlock moves the block cursor directly, clamped to the song's block
// count.
func (e *Engine) SetBlock(i int) {
	hi := e.sc.BlockCount() - 1
	if hi < 0 {
		hi = 0
	}
	e.setClamped(&e.block, i, 0, hi, BlockChanged)
}

// SetLine moves the line cursor within the current block.
func (e *Engine) SetLine(i int) {
	block := e.sc.Block(e.block)
	hi := 0
	if block != nil {
		hi = block.Length() - 1
	}
	e.setClamped(&e.line, i, 0, hi, LineChanged)
}

// SetTick moves the sub-line tick cursor.
func (e *Engine) SetTick(i int) {
	hi := e.sc.TicksPerLine() - 1
	if hi < 0 {
		hi = 0
	}
	e.setClamped(&e.tick, i, 0, hi, TimeChanged)
}

// StopAllNotes emits a note-off for every (interface, channel, note)
// triple across every resolved output (spec.md §4.I).
func (e *Engine) StopAllNotes() {
	for _, s := range e.outputs.All() {
		for ch := uint8(0); ch < 16; ch++ {
			for n := 0; n < 128; n++ {
				s.NoteOff(ch, uint8(n), 0)
			}
		}
	}
	e.mu.Lock()
	for _, ts := range e.tracks {
		ts.note = -1
	}
	e.mu.Unlock()
}

// ResetPitch emits pitch-wheel center (64) on every channel of every
// output (spec.md §4.I).
func (e *Engine) ResetPitch() {
	for _, s := range e.outputs.All() {
		for ch := uint8(0); ch < 16; ch++ {
			s.PitchWheel(ch, 64)
		}
	}
}

// RemapMidiOutputs swaps in a freshly resolved output set: every
// instrument's saved interface name is re-resolved against it, and the
// controller cache is resized to match (spec.md §4.I
// "remap_midi_outputs").
func (e *Engine) RemapMidiOutputs(outputs *midiout.OutputSet) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.sc.Lock()
	for i := 0; i < e.sc.InstrumentCount(); i++ {
		inst := e.sc.Instrument(i)
		if inst == nil {
			continue
		}
		inst.MidiInterface = midiout.RemapByName(outputs, inst.InterfaceName)
	}
	e.sc.Unlock()

	e.outputs = outputs
	e.cache.Resize(outputs.Len())
}
