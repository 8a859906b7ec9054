package engine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gseamans/trackplay/engine"
	"github.com/gseamans/trackplay/score"
)

// TestS2RetriggerFires covers spec.md's S2 seed scenario: a Retrigger
// 0x23 (delay=2, repeat=3) on an 8-tick line fires on ticks {2, 5}, each
// firing preceded by a note-off of the previous one.
func TestS2RetriggerFires(t *testing.T) {
	sc := score.New(120, 8, 127)
	b := score.NewBlock("main", 1, 1, 1)
	b.SetCell(0, 0, 0, score.Cell{Note: 62, Instrument: 1, Command: engine.CmdRetrigger, Value: 0x23})
	sc.AddBlock(b)
	sc.AddPlayseq(score.Playseq{0})
	sc.AddSection(0)
	sc.SetTrackCount(1)

	inst := score.NewInstrument("lead")
	inst.MidiInterface = 0
	inst.DefaultVelocity = 100
	inst.Hold = 1
	sc.AddInstrument(inst)

	sink := &recordingSink{}
	set := midioutSetWith(sink)
	e := engine.New(sc, set, engine.NoneScheduler{})
	e.SetKillWhenLooped(true)
	e.Play(engine.PlayBlock, false)
	waitIdle(t, e)

	notes := noteEvents(sink.snapshot())
	require.GreaterOrEqual(t, len(notes), 3)
	assert.Equal(t, "on(0,61,100)", notes[0])
	assert.Equal(t, "off(0,61,127)", notes[1])
	assert.Equal(t, "on(0,61,100)", notes[2])
}

// TestS4EndBlockJump covers spec.md's S4 seed scenario: an EndBlock
// command on the last tick of a line schedules a post-command that, at
// the next tick wrap, advances the playseq position and sets the line
// cursor to the command's value, emitting positionChanged/blockChanged.
func TestS4EndBlockJump(t *testing.T) {
	sc := score.New(120, 1, 127)

	first := score.NewBlock("first", 4, 1, 1)
	first.SetCell(2, 0, 0, score.Cell{Command: engine.CmdEndBlock, Value: 1})
	sc.AddBlock(first)

	second := score.NewBlock("second", 4, 1, 1)
	sc.AddBlock(second)

	sc.AddPlayseq(score.Playseq{0, 1})
	sc.AddSection(0)
	sc.SetTrackCount(1)

	inst := score.NewInstrument("lead")
	inst.MidiInterface = 0
	sc.AddInstrument(inst)

	sink := &recordingSink{}
	set := midioutSetWith(sink)
	e := engine.New(sc, set, engine.NoneScheduler{})
	e.SetKillWhenLooped(true)

	e.Play(engine.PlaySong, false)
	waitIdle(t, e)

	var sawPositionChanged, sawBlockChanged bool
drain:
	for {
		select {
		case ev := <-e.Events():
			if ev.Kind == engine.PositionChanged {
				sawPositionChanged = true
			}
			if ev.Kind == engine.BlockChanged {
				sawBlockChanged = true
			}
		default:
			break drain
		}
	}

	assert.True(t, sawPositionChanged)
	assert.True(t, sawBlockChanged)
}

// TestS6EngineExportRoundTrip drives the engine end-to-end in the export
// configuration (NoneScheduler, kill-when-looped) over the S1 score and
// checks the note-on/note-off pair it emits, using a recording sink. The
// byte encoding of those events, tempo meta-event included, is covered by
// midiout's TestS6ExportOfSingleNote.
func TestS6EngineExportRoundTrip(t *testing.T) {
	sc := buildS1()

	sink := &recordingSink{}
	set := midioutSetWith(sink)
	e := engine.New(sc, set, engine.NoneScheduler{})
	e.SetKillWhenLooped(true)
	e.Play(engine.PlayBlock, false)
	waitIdle(t, e)

	notes := noteEvents(sink.snapshot())
	require.GreaterOrEqual(t, len(notes), 2)
	assert.Equal(t, "on(0,48,100)", notes[0])
	assert.Equal(t, "off(0,48,127)", notes[1])
}
