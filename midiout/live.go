package midiout

import (
	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"

	"github.com/gseamans/trackplay/enginelog"
)

// LiveSink adapts a real MIDI output port to the Sink interface. It
// follows the teacher's lazy-open, cached-sender idiom
// (sequencer/manager.go's getSender): the port is opened once, on
// construction, and every subsequent call reuses the same send func.
type LiveSink struct {
	name    string
	send    func(gomidi.Message) error
	enabled bool
}

// NewLiveSink opens port for output and wraps it as a Sink. If the port
// cannot be opened, NewLiveSink still returns a usable (but disabled)
// sink: per spec.md §7 UnknownMidiInterface/SinkFailure, an unavailable
// output is never fatal, it just never transmits.
func NewLiveSink(port drivers.Out) *LiveSink {
	s := &LiveSink{name: port.String()}
	send, err := gomidi.SendTo(port)
	if err != nil {
		enginelog.Log(enginelog.SinkFailure, "open output %q failed: %v", s.name, err)
		return s
	}
	s.send = send
	s.enabled = true
	return s
}

func (s *LiveSink) Name() string    { return s.name }
func (s *LiveSink) IsEnabled() bool { return s.enabled }

func (s *LiveSink) emit(msg gomidi.Message) {
	if !s.enabled {
		return
	}
	if err := s.send(msg); err != nil {
		enginelog.Log(enginelog.SinkFailure, "%s: send failed: %v", s.name, err)
	}
}

func (s *LiveSink) NoteOn(channel, note, velocity uint8) {
	s.emit(gomidi.NoteOn(channel, note, velocity))
}

func (s *LiveSink) NoteOff(channel, note, velocity uint8) {
	s.emit(gomidi.NoteOffVelocity(channel, note, velocity))
}

func (s *LiveSink) Controller(channel, num, val uint8) {
	s.emit(gomidi.ControlChange(channel, num, val))
}

func (s *LiveSink) PitchWheel(channel uint8, val14 int) {
	// gomidi's Pitchbend takes a signed offset from center (0), while the
	// engine works in absolute 0..16383 units; rebase to match.
	s.emit(gomidi.Pitchbend(channel, int16(val14-0x2000)))
}

func (s *LiveSink) ChannelPressure(channel, val uint8) {
	s.emit(gomidi.AfterTouch(channel, val))
}

func (s *LiveSink) Aftertouch(channel, note, val uint8) {
	s.emit(gomidi.PolyAfterTouch(channel, note, val))
}

func (s *LiveSink) ProgramChange(channel, prog uint8) {
	s.emit(gomidi.ProgramChange(channel, prog))
}

func (s *LiveSink) WriteRaw(data []byte) {
	if len(data) == 0 {
		return
	}
	if data[0] == 0xF0 {
		s.emit(gomidi.SysEx(data[1:]))
		return
	}
	s.emit(gomidi.Message(data))
}

// Realtime status bytes carry no channel/data payload; they are built as
// raw single-byte messages rather than via named constructors, since the
// wire format is fixed by the MIDI spec itself.
var (
	rtClock    = gomidi.Message{0xF8}
	rtStart    = gomidi.Message{0xFA}
	rtContinue = gomidi.Message{0xFB}
	rtStop     = gomidi.Message{0xFC}
)

func (s *LiveSink) Clock()    { s.emit(rtClock) }
func (s *LiveSink) Start()    { s.emit(rtStart) }
func (s *LiveSink) Continue() { s.emit(rtContinue) }
func (s *LiveSink) Stop()     { s.emit(rtStop) }

// Tempo has no direct MIDI wire representation on a live port (tempo is
// an SMF meta-event, meaningless outside a file); a live sink logs it for
// diagnostics and otherwise ignores it.
func (s *LiveSink) Tempo(bpm int) {
	enginelog.Log("sink", "%s: tempo %d bpm (no-op on live output)", s.name, bpm)
}

// SetTick has no wire representation on a live port; only BufferSink uses
// it to compute delta-times.
func (s *LiveSink) SetTick(tick int64) {}

// NullSink is the always-present, always-disabled output used when an
// instrument's interface cannot be resolved (spec.md §4.G "route to
// output 0, the null output index").
type NullSink struct{}

func (NullSink) Name() string             { return "null" }
func (NullSink) IsEnabled() bool          { return false }
func (NullSink) NoteOn(_, _, _ uint8)     {}
func (NullSink) NoteOff(_, _, _ uint8)    {}
func (NullSink) Controller(_, _, _ uint8) {}
func (NullSink) PitchWheel(_ uint8, _ int) {}
func (NullSink) ChannelPressure(_, _ uint8) {}
func (NullSink) Aftertouch(_, _, _ uint8)   {}
func (NullSink) ProgramChange(_, _ uint8)   {}
func (NullSink) WriteRaw(_ []byte)          {}
func (NullSink) Clock()                     {}
func (NullSink) Start()                     {}
func (NullSink) Continue()                  {}
func (NullSink) Stop()                      {}
func (NullSink) Tempo(_ int)                {}
func (NullSink) SetTick(_ int64)            {}

var _ Sink = NullSink{}
var _ Sink = (*LiveSink)(nil)
var _ Sink = (*BufferSink)(nil)
