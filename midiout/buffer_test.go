package midiout_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gseamans/trackplay/midiout"
)

// TestS6ExportOfSingleNote mirrors spec.md's S6 seed scenario: a single
// note at tempo 120 (500000 microseconds per beat), held one tick.
func TestS6ExportOfSingleNote(t *testing.T) {
	b := midiout.NewBufferSink("export")

	b.SetTick(0)
	b.Tempo(120)
	b.NoteOn(0, 48, 100)

	b.SetTick(1)
	b.NoteOff(0, 48, 0x7F)

	want := []byte{
		0xFF, 0x51, 0x03, 0x07, 0xA1, 0x20, // tempo meta-event, 500000us
		0x00, 0x90, 0x30, 0x64, // delta 0, note-on ch0 note 48 vel 100
		0x01, 0x80, 0x30, 0x7F, // delta 1, note-off ch0 note 48 vel 127
	}
	assert.Equal(t, want, b.Bytes())
}

func TestVariableLengthQuantityEncoding(t *testing.T) {
	cases := []struct {
		tick int64
		want []byte
	}{
		{0, []byte{0x00}},
		{127, []byte{0x7F}},
		{128, []byte{0x81, 0x00}},
		{200, []byte{0x81, 0x48}},
		{2097151, []byte{0xFF, 0xFF, 0x7F}},
	}
	for _, c := range cases {
		b := midiout.NewBufferSink("t")
		b.SetTick(0)
		b.NoteOn(0, 1, 1) // first event, delta 0
		b.SetTick(c.tick)
		b.NoteOn(0, 2, 1) // second event, delta = c.tick
		got := b.Bytes()
		// second event's delta bytes are everything before the trailing
		// 3-byte note-on message.
		delta := got[len(got)-3-len(c.want) : len(got)-3]
		assert.Equal(t, c.want, delta, "tick=%d", c.tick)
	}
}

func TestSysExPayloadLengthIsInserted(t *testing.T) {
	b := midiout.NewBufferSink("t")
	b.SetTick(0)
	payload := []byte{0xF0, 0x00, 0x20, 0x29, 0x02, 0x0C, 0x00, 0x7F, 0xF7}
	b.WriteRaw(payload)

	got := b.Bytes()
	// delta(0x00), 0xF0, length(8 bytes of payload after 0xF0), then payload
	assert.Equal(t, byte(0x00), got[0])
	assert.Equal(t, byte(0xF0), got[1])
	assert.Equal(t, byte(len(payload)-1), got[2])
	assert.Equal(t, payload[1:], got[3:])
}

func TestNonSysExRawIsWrittenVerbatim(t *testing.T) {
	b := midiout.NewBufferSink("t")
	b.SetTick(0)
	b.WriteRaw([]byte{0xB0, 0x07, 0x40})
	assert.Equal(t, []byte{0x00, 0xB0, 0x07, 0x40}, b.Bytes())
}

func TestNullSinkIsAlwaysDisabled(t *testing.T) {
	var s midiout.NullSink
	assert.False(t, s.IsEnabled())
	assert.Equal(t, "null", s.Name())
}

func TestOutputSetFallsBackToNullOutput(t *testing.T) {
	set := midiout.NewOutputSet()
	assert.Equal(t, 1, set.Len())
	assert.False(t, set.At(5).IsEnabled(), "out-of-range index falls back to the null output")
	assert.Equal(t, -1, set.IndexByName("nonexistent"))
}
