package engine

import (
	"github.com/gseamans/trackplay/midiout"
	"github.com/gseamans/trackplay/score"
)

// Command byte values (spec.md §4.G) — a stable wire format.
const (
	CmdNoOp                  uint8 = 0x00
	CmdPreviousCommandValue  uint8 = 0x01
	CmdPitchWheel            uint8 = 0x02
	CmdProgramChange         uint8 = 0x03
	CmdEndBlock              uint8 = 0x04
	CmdPlayseqPosition       uint8 = 0x05
	CmdSendMessage           uint8 = 0x06
	CmdHold                  uint8 = 0x07
	CmdRetrigger             uint8 = 0x08
	CmdDelay                 uint8 = 0x09
	CmdVelocityAftertouch    uint8 = 0x0A
	CmdChannelPressure       uint8 = 0x0B
	CmdTicksPerLine          uint8 = 0x0C
	CmdTempo                 uint8 = 0x0D
	CmdTrackVolume           uint8 = 0x0E
	CmdInstrumentVolume      uint8 = 0x0F
	cmdMidiControllerBase    uint8 = 0x10
)

// resolvedCommand is a cell's command after previous-command chaining has
// been resolved against the track's running previousCommand state.
type resolvedCommand struct {
	Command uint8
	Value   uint8
}

// resolveCommand applies spec.md §4.G's previous-command chaining: a
// 0x01 cell with a non-zero value re-invokes the track's last non-zero
// command with this cell's value; any other non-zero command becomes the
// new "last non-zero command".
func resolveCommand(ts *trackStatus, cell score.Cell) resolvedCommand {
	if cell.Command == CmdPreviousCommandValue && cell.Value != 0 {
		return resolvedCommand{Command: ts.previousCommand, Value: cell.Value}
	}
	if cell.Command != 0 {
		ts.previousCommand = cell.Command
	}
	return resolvedCommand{Command: cell.Command, Value: cell.Value}
}

// gateFires reports whether a note actually fires on sub-line tick t,
// given a retrigger/delay's delay and repeat (spec.md §4.G).
func gateFires(delay, repeat, t int) bool {
	if t == delay {
		return true
	}
	if repeat == 0 {
		return t == 0
	}
	return t >= delay && (t-delay)%repeat == 0
}

// retriggerDelayParams extracts delay/repeat from a resolved Retrigger or
// Delay command; 0x08's high nibble is delay, low nibble is repeat, while
// 0x09 carries only a delay with an implicit repeat of 0.
func retriggerDelayParams(rc resolvedCommand) (delay, repeat int, ok bool) {
	switch rc.Command {
	case CmdRetrigger:
		return int(rc.Value >> 4), int(rc.Value & 0x0F), true
	case CmdDelay:
		return int(rc.Value), 0, true
	}
	return 0, 0, false
}

// tickCtx carries the per-track, per-tick scratch state that command
// interpretation reads and writes, in addition to the persistent
// trackStatus and controllerCache.
type tickCtx struct {
	sc      *score.Score
	outputs *midiout.OutputSet
	cache   *controllerCache

	trackIndex int
	tick       int
	tpl        int

	iface   int
	channel int

	// inst is the cell's resolved instrument for this tick, or nil if
	// unresolved. CmdInstrumentVolume mutates inst.DefaultVelocity
	// directly through this pointer.
	inst *score.Instrument
	// hasNote reports whether this line's own cell (not an arpeggio
	// sub-cell) carries a note, which decides which of
	// CmdVelocityAftertouch's two arms fires.
	hasNote bool

	// holdOverride is -1 unless a Hold command was seen this tick, in
	// which case it is the number of ticks to hold a note that gates
	// this tick, overriding the instrument's own Hold.
	holdOverride int
	// cellVolume is Velocity's (0x0A) running value for this tick, set
	// only when the triggering cell carries a note, folded into the
	// note's velocity as the §4.H formula's cell_volume factor. Starts
	// at 127 (no attenuation) each tick.
	cellVolume int
	// postCommand / postValue are latched by post-commands (EndBlock,
	// PlayseqPosition, zero-valued TicksPerLine/Tempo), consumed at tick
	// wrap (spec.md §4.G "Post commands").
	postCommand uint8
	postValue   uint8
}

func newTickCtx(sc *score.Score, outputs *midiout.OutputSet, cache *controllerCache, trackIndex, tick, tpl, iface, channel int, inst *score.Instrument, hasNote bool) *tickCtx {
	return &tickCtx{
		sc: sc, outputs: outputs, cache: cache,
		trackIndex: trackIndex, tick: tick, tpl: tpl,
		iface: iface, channel: channel,
		inst: inst, hasNote: hasNote,
		holdOverride: -1,
		cellVolume:   127,
	}
}

func (c *tickCtx) sink() midiout.Sink { return c.outputs.At(c.iface) }

// applyRamp implements the "continuous knob" value convention shared by
// PitchWheel, Velocity/Aftertouch, ChannelPressure, TrackVolume and
// MidiController: values < 0x80 apply immediately (only on tick 0);
// values >= 0x80 interpolate from the cache's last value to value-0x80
// across the remaining sub-line ticks, landing on the exact target on
// the line's last tick and updating the cache there.
func (c *tickCtx) applyRamp(slot int, raw uint8, emit func(v int)) {
	if raw < 0x80 {
		if c.tick != 0 {
			return
		}
		v := int(raw)
		emit(v)
		c.cache.Set(c.iface, c.channel, slot, v)
		return
	}
	target := int(raw) - 0x80
	origin := c.cache.Get(c.iface, c.channel, slot)
	if c.tick == c.tpl-1 {
		emit(target)
		c.cache.Set(c.iface, c.channel, slot, target)
		return
	}
	v := origin + (c.tick+1)*(target-origin)/c.tpl
	emit(v)
}

// applyRampTrackVolume is applyRamp specialised to a per-track volume
// fader instead of a (interface, channel, slot) MIDI controller: the ramp
// writes score.Track.Volume directly and leaves it at its final value
// once the ramp completes. The origin is the track's last recorded value
// in rampOrigin, or its current volume when none has been recorded.
func (c *tickCtx) applyRampTrackVolume(track *score.Track, origin *rampOrigin, raw uint8) {
	if raw < 0x80 {
		if c.tick != 0 {
			return
		}
		track.Volume = int(raw)
		origin.set(c.trackIndex, track.Volume)
		return
	}
	target := int(raw) - 0x80
	o := origin.get(c.trackIndex, track.Volume)
	if c.tick == c.tpl-1 {
		track.Volume = target
		origin.set(c.trackIndex, target)
		return
	}
	track.Volume = o + (c.tick+1)*(target-o)/c.tpl
}

// rampOrigin is a small per-track scratch store used only by
// TrackVolume's ramp, kept apart from the (interface,channel) controller
// cache since a track's volume fader isn't tied to any MIDI channel.
type rampOrigin struct {
	vals map[int]int
}

func newRampOrigin() *rampOrigin { return &rampOrigin{vals: make(map[int]int)} }

func (r *rampOrigin) get(track, fallback int) int {
	if v, ok := r.vals[track]; ok {
		return v
	}
	return fallback
}

func (r *rampOrigin) set(track, v int) { r.vals[track] = v }

// interpretResolved applies a single resolved command's side effects:
// MIDI emission via the sink and updates to ctx/trackStatus. Retrigger
// and Delay are consumed earlier by the gate pre-scan and are no-ops
// here.
func interpretResolved(c *tickCtx, ts *trackStatus, trackOrigin *rampOrigin, rc resolvedCommand) {
	switch {
	case rc.Command == CmdNoOp, rc.Command == CmdPreviousCommandValue:
	case rc.Command == CmdPitchWheel:
		c.applyRamp(slotPitchWheel, rc.Value, func(v int) { c.sink().PitchWheel(uint8(c.channel), v) })
	case rc.Command == CmdProgramChange:
		if c.tick == 0 {
			c.sink().ProgramChange(uint8(c.channel), rc.Value)
		}
	case rc.Command == CmdEndBlock:
		if c.tick == c.tpl-1 {
			c.postCommand, c.postValue = CmdEndBlock, rc.Value
		}
	case rc.Command == CmdPlayseqPosition:
		if c.tick == c.tpl-1 {
			c.postCommand, c.postValue = CmdPlayseqPosition, rc.Value
		}
	case rc.Command == CmdSendMessage:
		if c.tick == 0 {
			c.sink().WriteRaw(c.sc.Message(int(rc.Value)))
		}
	case rc.Command == CmdHold:
		c.holdOverride = int(rc.Value)
	case rc.Command == CmdRetrigger, rc.Command == CmdDelay:
		// consumed by the gate pre-scan
	case rc.Command == CmdVelocityAftertouch:
		if c.hasNote {
			// The cell carries a note this line: 0x0A sets that note's play
			// velocity (the cell_volume factor of the velocity formula)
			// rather than driving aftertouch.
			if c.tick == 0 {
				c.cellVolume = int(rc.Value)
			}
			return
		}
		c.applyRamp(slotAftertouch, rc.Value, func(v int) {
			if ts.note < 0 {
				return
			}
			if v <= 0 {
				c.sink().NoteOff(uint8(c.channel), uint8(ts.note), 0)
				ts.note = -1
				return
			}
			c.sink().Aftertouch(uint8(c.channel), uint8(ts.note), uint8(v))
		})
	case rc.Command == CmdChannelPressure:
		c.applyRamp(slotChannelPressure, rc.Value, func(v int) { c.sink().ChannelPressure(uint8(c.channel), uint8(v)) })
	case rc.Command == CmdTicksPerLine:
		if c.tick == c.tpl-1 {
			if rc.Value == 0 {
				c.postCommand, c.postValue = CmdTicksPerLine, 0
			} else {
				c.sc.SetTicksPerLine(int(rc.Value))
			}
		}
	case rc.Command == CmdTempo:
		if c.tick == c.tpl-1 {
			if rc.Value == 0 {
				c.postCommand, c.postValue = CmdTempo, 0
			} else {
				bpm := int(rc.Value)
				c.sc.SetTempo(bpm)
				c.sink().Tempo(bpm)
			}
		}
	case rc.Command == CmdTrackVolume:
		track := c.sc.Track(c.trackIndex)
		c.applyRampTrackVolume(track, trackOrigin, rc.Value)
	case rc.Command == CmdInstrumentVolume:
		// Open question preserved as documented behaviour (spec.md §9):
		// the interpolation origin is the *current* track volume, read
		// fresh every tick rather than snapshotted, not a dedicated
		// cache slot. Unlike Velocity (0x0A), this writes a persistent
		// change to the instrument's own default velocity, not the
		// transient per-tick cell_volume.
		if c.inst == nil {
			return
		}
		track := c.sc.Track(c.trackIndex)
		if rc.Value < 0x80 {
			if c.tick == 0 {
				c.inst.DefaultVelocity = int(rc.Value)
			}
		} else {
			target := int(rc.Value) - 0x80
			origin := track.Volume
			if c.tick == c.tpl-1 {
				c.inst.DefaultVelocity = target
			} else {
				c.inst.DefaultVelocity = origin + (c.tick+1)*(target-origin)/c.tpl
			}
		}
	case rc.Command >= cmdMidiControllerBase:
		num := rc.Command - cmdMidiControllerBase
		c.applyRamp(int(num), rc.Value, func(v int) { c.sink().Controller(uint8(c.channel), num, uint8(v)) })
	}
}
