package score

// Track holds a column's mixer state: mute/solo and a 0..127 output
// volume folded into every note's velocity by the command interpreter.
type Track struct {
	Muted  bool
	Solo   bool
	Volume int
}
