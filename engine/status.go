package engine

// trackStatus is the per-track running state the engine mutates every
// tick: which note/instrument/interface is currently sounding, how long
// it has to run, and the arpeggio cursor advancing beneath it. Sentinel
// fields follow the data model's -1-means-none convention throughout.
type trackStatus struct {
	instrument       int // -1 = none
	arpeggioLine     int // -1 = halted
	previousCommand  uint8
	note             int // -1 = silent
	midiChannel      int
	midiInterface    int
	volume           int
	hold             int // -1 = not held, else ticks remaining
	baseNote         uint8
}

// newTrackStatus returns a track status in its reset state.
func newTrackStatus() *trackStatus {
	t := &trackStatus{}
	t.reset()
	return t
}

// reset restores the track status to its post-stop/muted/recreated
// baseline (spec.md §4.D).
func (t *trackStatus) reset() {
	t.instrument = -1
	t.arpeggioLine = -1
	t.previousCommand = 0
	t.note = -1
	t.midiChannel = -1
	t.midiInterface = -1
	t.volume = -1
	t.hold = -1
}

// sounding reports whether the track currently has an active note.
func (t *trackStatus) sounding() bool {
	return t.note >= 0
}
