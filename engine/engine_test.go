package engine_test

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gseamans/trackplay/engine"
	"github.com/gseamans/trackplay/midiout"
	"github.com/gseamans/trackplay/score"
)

// recordingSink is a midiout.Sink that records every call as a string,
// used to assert exact MIDI event ordering against spec.md's seed
// scenarios without a real MIDI backend. The engine calls it from its own
// goroutine, so appends are guarded by a mutex.
type recordingSink struct {
	mu    sync.Mutex
	calls []string
}

func (r *recordingSink) record(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, s)
}

func (r *recordingSink) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.calls))
	copy(out, r.calls)
	return out
}

func (r *recordingSink) NoteOn(ch, note, vel uint8) {
	r.record(fmt.Sprintf("on(%d,%d,%d)", ch, note, vel))
}
func (r *recordingSink) NoteOff(ch, note, vel uint8) {
	r.record(fmt.Sprintf("off(%d,%d,%d)", ch, note, vel))
}
func (r *recordingSink) Controller(ch, num, val uint8) {
	r.record(fmt.Sprintf("cc(%d,%d,%d)", ch, num, val))
}
func (r *recordingSink) PitchWheel(ch uint8, val14 int) {
	r.record(fmt.Sprintf("pw(%d,%d)", ch, val14))
}
func (r *recordingSink) ChannelPressure(ch, val uint8) {
	r.record(fmt.Sprintf("cp(%d,%d)", ch, val))
}
func (r *recordingSink) Aftertouch(ch, note, val uint8) {
	r.record(fmt.Sprintf("at(%d,%d,%d)", ch, note, val))
}
func (r *recordingSink) ProgramChange(ch, prog uint8) {
	r.record(fmt.Sprintf("pc(%d,%d)", ch, prog))
}
func (r *recordingSink) WriteRaw(data []byte)  { r.record(fmt.Sprintf("raw(%x)", data)) }
func (r *recordingSink) Clock()                { r.record("clock") }
func (r *recordingSink) Start()                { r.record("start") }
func (r *recordingSink) Continue()             { r.record("cont") }
func (r *recordingSink) Stop()                 { r.record("stop") }
func (r *recordingSink) Tempo(bpm int)         { r.record(fmt.Sprintf("tempo(%d)", bpm)) }
func (r *recordingSink) SetTick(t int64)       { r.record(fmt.Sprintf("tick(%d)", t)) }
func (r *recordingSink) Name() string          { return "rec" }
func (r *recordingSink) IsEnabled() bool       { return true }

func noteEvents(calls []string) []string {
	var out []string
	for _, c := range calls {
		if strings.HasPrefix(c, "on(") || strings.HasPrefix(c, "off(") {
			out = append(out, c)
		}
	}
	return out
}

// buildS1 constructs spec.md's S1 seed scenario: one block, one track, one
// note, default timing.
func buildS1() *score.Score {
	sc := score.New(120, 6, 127)
	b := score.NewBlock("main", 1, 1, 1)
	b.SetCell(0, 0, 0, score.Cell{Note: 49, Instrument: 1})
	sc.AddBlock(b)
	sc.AddPlayseq(score.Playseq{0})
	sc.AddSection(0)
	sc.SetTrackCount(1)

	inst := score.NewInstrument("lead")
	inst.MidiChannel = 0
	inst.MidiInterface = 0
	inst.DefaultVelocity = 100
	inst.Hold = 1
	sc.AddInstrument(inst)

	return sc
}

func TestS1SingleNoteDefaultTiming(t *testing.T) {
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

func TestS3PitchWheelInterpolation(t *testing.T) {
	sc := score.New(120, 4, 127)
	b := score.NewBlock("main", 1, 1, 1)
	b.SetCell(0, 0, 0, score.Cell{Command: engine.CmdPitchWheel, Value: 0xC0})
	sc.AddBlock(b)
	sc.AddPlayseq(score.Playseq{0})
	sc.AddSection(0)
	sc.SetTrackCount(1)
	inst := score.NewInstrument("lead")
	inst.MidiInterface = 0
	sc.AddInstrument(inst)

	sink := &recordingSink{}
	set := midioutSetWith(sink)
	e := engine.New(sc, set, engine.NoneScheduler{})
	e.SetKillWhenLooped(true)
	e.Play(engine.PlayBlock, false)
	waitIdle(t, e)

	var pw []string
	for _, c := range sink.snapshot() {
		if strings.HasPrefix(c, "pw(") {
			pw = append(pw, c)
		}
	}
	require.Len(t, pw, 4)
	assert.Equal(t, "pw(0,16)", pw[0])
	assert.Equal(t, "pw(0,32)", pw[1])
	assert.Equal(t, "pw(0,48)", pw[2])
	assert.Equal(t, "pw(0,64)", pw[3])
}

func TestS5ExternalSyncCredits(t *testing.T) {
	sc := score.New(120, 4, 127)
	b := score.NewBlock("main", 4, 1, 1)
	sc.AddBlock(b)
	sc.AddPlayseq(score.Playseq{0})
	sc.AddSection(0)
	sc.SetTrackCount(1)

	sink := &recordingSink{}
	set := midioutSetWith(sink)
	e := engine.New(sc, set, nil)
	e.SetExternalSyncMode(engine.SyncExternalClockPerTick)
	e.Play(engine.PlayBlock, false)
	defer e.Stop()

	time.Sleep(20 * time.Millisecond)
	before := len(sink.snapshot())

	e.ExternalSync(1)
	e.ExternalSync(1)
	e.ExternalSync(1)
	time.Sleep(20 * time.Millisecond)

	after := len(sink.snapshot())
	assert.Greater(t, after, before)
}

func midioutSetWith(s midiout.Sink) *midiout.OutputSet {
	return midiout.ExportOutputsFromSink(s)
}

func waitIdle(t *testing.T, e *engine.Engine) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for e.Mode() != engine.Idle {
		if time.Now().After(deadline) {
			t.Fatal("engine did not reach Idle before deadline")
		}
		time.Sleep(time.Millisecond)
	}
}
