package score

// Instrument binds a track's notes to a MIDI channel/interface and
// carries the per-note defaults the command interpreter applies when it
// triggers a note.
type Instrument struct {
	Name string

	MidiChannel      int // 0..15
	MidiInterface    int // resolved output index, -1 if unresolved
	InterfaceName    string
	MidiPreset       int // program number, loaded and saved only; the engine does not send it
	DefaultVelocity  int // 0..127
	Transpose        int // signed, applied to the sounding note
	Hold             int // default hold ticks
	ArpeggioBaseNote int // 1..128

	// Arpeggio is a one-column block whose notes on successive lines are
	// added as offsets to the sounding note. Nil means no arpeggio.
	Arpeggio *Block
}

// NewInstrument returns an instrument with sane defaults: velocity 100,
// no transpose, one tick of hold, channel 0, unresolved interface.
func NewInstrument(name string) *Instrument {
	return &Instrument{
		Name:             name,
		MidiChannel:      0,
		MidiInterface:    -1,
		DefaultVelocity:  100,
		Hold:             1,
		ArpeggioBaseNote: 1,
	}
}
