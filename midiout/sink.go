// Package midiout defines the MIDI output capability the engine drives,
// and two implementations: a live sink backed by a real MIDI port, and a
// buffer sink that serialises events for Standard MIDI File export.
package midiout

// Sink is the abstract MIDI output capability. The engine treats every
// sink as fire-and-forget: a Sink implementation logs and swallows its
// own errors rather than returning them, so a failing output never stalls
// or aborts a tick (spec's SinkFailure error kind).
type Sink interface {
	NoteOn(channel, note, velocity uint8)
	NoteOff(channel, note, velocity uint8)
	Controller(channel, num, val uint8)
	PitchWheel(channel uint8, val14 int)
	ChannelPressure(channel, val uint8)
	Aftertouch(channel, note, val uint8)
	ProgramChange(channel, prog uint8)
	WriteRaw(data []byte)

	Clock()
	Start()
	Continue()
	Stop()

	Tempo(bpm int)
	SetTick(tick int64)

	Name() string
	IsEnabled() bool
}
