// Package midiin is the MIDI-input control surface (spec.md §6): incoming
// realtime status bytes are routed to engine control-surface calls.
package midiin

import (
	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"

	"github.com/gseamans/trackplay/engine"
	"github.com/gseamans/trackplay/enginelog"
)

// Listener owns one open input port, grounded on the teacher's
// KeyboardController (gomidi.ListenTo callback registration, a stop
// function stashed for Close), dispatching on realtime status bytes
// instead of note-on events.
type Listener struct {
	port     drivers.In
	stopFunc func()
}

// Listen opens port and routes Start/Continue/Stop/Clock messages to the
// engine's control surface for as long as the listener is open.
func Listen(port drivers.In, e *engine.Engine) (*Listener, error) {
	l := &Listener{port: port}

	stop, err := gomidi.ListenTo(port, func(msg gomidi.Message, _ int32) {
		l.dispatch(msg, e)
	})
	if err != nil {
		return nil, err
	}
	l.stopFunc = stop
	return l, nil
}

func (l *Listener) dispatch(msg gomidi.Message, e *engine.Engine) {
	raw := msg.Bytes()
	if len(raw) == 0 {
		return
	}

	switch raw[0] {
	case 0xFA: // Start
		e.Play(engine.PlaySong, false)
	case 0xFB: // Continue
		e.Play(engine.PlaySong, true)
	case 0xFC: // Stop
		e.Stop()
	case 0xF8: // Timing clock
		e.ExternalSync(1)
	default:
		enginelog.LogEvery(64, enginelog.SchedulerFailure, "midiin: ignoring status byte %#x", raw[0])
	}
}

// Close stops listening and releases the port.
func (l *Listener) Close() {
	if l.stopFunc != nil {
		l.stopFunc()
	}
}
