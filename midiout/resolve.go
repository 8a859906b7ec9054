package midiout

import (
	"strings"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"

	"github.com/gseamans/trackplay/enginelog"
)

// OutputSet is a resolved, ordered collection of output sinks, indexed
// exactly as instruments' MidiInterface fields expect. In sets built by
// NewOutputSet and ResolveLiveOutputs index 0 is the null output
// (spec.md §4.G "route to output 0, the null output index"); export sets
// built by ExportOutputsFromSink hold their single sink at index 0.
type OutputSet struct {
	sinks []Sink
	names []string
}

// NewOutputSet returns a set containing only the null output.
func NewOutputSet() *OutputSet {
	return &OutputSet{sinks: []Sink{NullSink{}}, names: []string{"null"}}
}

// Len returns the number of resolved outputs, including the null output.
func (o *OutputSet) Len() int { return len(o.sinks) }

// At returns the sink at index i, falling back to index 0 when i is out
// of range, per spec.md §4.G's fallback rule.
func (o *OutputSet) At(i int) Sink {
	if i < 0 || i >= len(o.sinks) {
		return o.sinks[0]
	}
	return o.sinks[i]
}

// IndexByName returns the index of the output whose Name() equals name,
// or -1 if none matches.
func (o *OutputSet) IndexByName(name string) int {
	for i, n := range o.names {
		if n == name {
			return i
		}
	}
	return -1
}

// All returns every resolved sink, including the null output.
func (o *OutputSet) All() []Sink { return o.sinks }

// ResolveLiveOutputs opens a LiveSink for every MIDI output port whose
// name is currently visible to the driver, keeping the null output as
// index 0. It is grounded on the teacher's midi.DeviceManager.scan
// (enumerate ports, match by name, diff against the previous set), here
// applied to output ports rather than input controllers.
func ResolveLiveOutputs() *OutputSet {
	set := NewOutputSet()
	for _, port := range gomidi.GetOutPorts() {
		set.sinks = append(set.sinks, NewLiveSink(port))
		set.names = append(set.names, port.String())
	}
	return set
}

// ExportOutputs returns a single-element set with buf at index 0, matching
// spec.md §4.I "every instrument's MIDI interface forced to 0" for export
// runs.
func ExportOutputs(buf *BufferSink) *OutputSet {
	return ExportOutputsFromSink(buf)
}

// ExportOutputsFromSink wraps an arbitrary sink as a single-element output
// set at index 0. Used by export (with a BufferSink) and by tests that
// need a fully-observable single output (with a recording fake).
func ExportOutputsFromSink(s Sink) *OutputSet {
	return &OutputSet{sinks: []Sink{s}, names: []string{s.Name()}}
}

// RemapByName re-resolves interfaceName against a freshly scanned output
// set and returns its index, or -1 if unresolved (spec.md §4.I
// remap_midi_outputs: "rebinds each instrument's interface index from its
// saved interface-name string, -1 if unresolved").
func RemapByName(set *OutputSet, interfaceName string) int {
	if interfaceName == "" {
		return -1
	}
	idx := set.IndexByName(interfaceName)
	if idx < 0 {
		enginelog.Log(enginelog.UnknownMidiInterface, "output %q not found, instrument left unresolved", interfaceName)
	}
	return idx
}

// findPortByName does a case-insensitive substring match, mirroring the
// teacher's isLaunchpad name-matching idiom, applied to arbitrary output
// port names instead of a fixed "launchpad" substring.
func findPortByName(ports []drivers.Out, name string) drivers.Out {
	lower := strings.ToLower(name)
	for _, p := range ports {
		if strings.Contains(strings.ToLower(p.String()), lower) {
			return p
		}
	}
	return nil
}

// ResolveOrAppendByName looks up name in set first by exact match, then,
// if unresolved, does a case-insensitive substring scan of the live
// output ports and appends a newly opened sink for the first match. This
// lets an instrument's saved interface name survive a port being renamed
// slightly by the OS (e.g. a suffixed device index) instead of falling
// back to the null output outright.
func ResolveOrAppendByName(set *OutputSet, name string) int {
	if idx := set.IndexByName(name); idx >= 0 {
		return idx
	}
	port := findPortByName(gomidi.GetOutPorts(), name)
	if port == nil {
		return -1
	}
	set.sinks = append(set.sinks, NewLiveSink(port))
	set.names = append(set.names, port.String())
	return len(set.sinks) - 1
}
