// Command trackplay is the CLI entry point for the playback engine:
// list MIDI ports, play a score live, or export it to a Standard MIDI
// File. Grounded on the teacher's cmd/miditest/main.go os.Args[1]
// subcommand switch.
package main

import (
	"encoding/binary"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"github.com/gseamans/trackplay/config"
	"github.com/gseamans/trackplay/engine"
	"github.com/gseamans/trackplay/enginelog"
	"github.com/gseamans/trackplay/midiin"
	"github.com/gseamans/trackplay/midiout"
	"github.com/gseamans/trackplay/scoreio"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}

	enginelog.Enable()
	defer enginelog.Disable()

	switch os.Args[1] {
	case "ports":
		listPorts()
	case "play":
		if len(os.Args) < 3 {
			fmt.Println("usage: trackplay play <score.xml> [output-port-name]")
			return
		}
		runPlay(os.Args[2], argOr(3, ""))
	case "export":
		if len(os.Args) < 4 {
			fmt.Println("usage: trackplay export <score.xml> <out.mid>")
			return
		}
		runExport(os.Args[2], os.Args[3])
	default:
		usage()
	}
}

func argOr(i int, fallback string) string {
	if i < len(os.Args) {
		return os.Args[i]
	}
	return fallback
}

func usage() {
	fmt.Println("trackplay - tracker playback engine")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  ports                        list MIDI input/output ports")
	fmt.Println("  play <score.xml> [port]      play a score against a live MIDI output")
	fmt.Println("  export <score.xml> <out.mid> render a score to a Standard MIDI File")
}

func listPorts() {
	fmt.Println("=== MIDI Input Ports ===")
	for i, p := range gomidi.GetInPorts() {
		fmt.Printf("  %d: %s\n", i, p.String())
	}
	fmt.Println("=== MIDI Output Ports ===")
	for i, p := range gomidi.GetOutPorts() {
		fmt.Printf("  %d: %s\n", i, p.String())
	}
}

func runPlay(scorePath, portName string) {
	sc, err := scoreio.Load(scorePath)
	if err != nil {
		fmt.Printf("load %s: %v\n", scorePath, err)
		return
	}

	cfg, _ := config.Load()
	if portName == "" {
		portName = cfg.DefaultOutputPort
	}
	syncProfile, _ := config.LoadSyncProfile()

	outputs := midiout.ResolveLiveOutputs()
	portIdx := -1
	if portName != "" {
		if portIdx = midiout.ResolveOrAppendByName(outputs, portName); portIdx < 0 {
			fmt.Printf("output port %q not found, using null output\n", portName)
		}
	}
	for i := 0; i < sc.InstrumentCount(); i++ {
		inst := sc.Instrument(i)
		if inst == nil {
			continue
		}
		if portName != "" {
			inst.InterfaceName = portName
		}
		if portIdx >= 0 {
			inst.MidiInterface = portIdx
		} else {
			inst.MidiInterface = midiout.RemapByName(outputs, inst.InterfaceName)
		}
	}

	e := engine.New(sc, outputs, engine.NewWallClockScheduler())
	switch syncProfile.Mode {
	case "clock":
		e.SetExternalSyncMode(engine.SyncExternalClockPerTick)
	case "jack-start":
		e.SetExternalSyncMode(engine.SyncJackStartOnly)
	}

	var listener *midiin.Listener
	for _, p := range gomidi.GetInPorts() {
		l, err := midiin.Listen(p, e)
		if err == nil {
			listener = l
			break
		}
	}
	if listener != nil {
		defer listener.Close()
	}

	e.Play(engine.PlaySong, false)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	<-sigs

	e.Stop()
}

func runExport(scorePath, outPath string) {
	sc, err := scoreio.Load(scorePath)
	if err != nil {
		fmt.Printf("load %s: %v\n", scorePath, err)
		return
	}

	buf := midiout.NewBufferSink("export")
	outputs := midiout.ExportOutputs(buf)

	for i := 0; i < sc.InstrumentCount(); i++ {
		if inst := sc.Instrument(i); inst != nil {
			inst.MidiInterface = 0
		}
	}

	buf.Tempo(sc.Tempo())

	e := engine.New(sc, outputs, engine.NoneScheduler{})
	e.SetKillWhenLooped(true)
	e.Play(engine.PlaySong, false)

	deadline := time.Now().Add(30 * time.Second)
	for e.Mode() != engine.Idle {
		if time.Now().After(deadline) {
			e.Stop()
			break
		}
		time.Sleep(time.Millisecond)
	}

	if err := writeSMF(outPath, sc.TicksPerLine()*4, buf.Bytes()); err != nil {
		fmt.Printf("write %s: %v\n", outPath, err)
		return
	}
	fmt.Printf("wrote %s (%d bytes of track data)\n", outPath, len(buf.Bytes()))
}

// writeSMF wraps an already-encoded track body (produced by
// midiout.BufferSink) in the outer SMF header/track-chunk framing that
// spec.md §6 leaves to the caller of the export run.
func writeSMF(path string, division int, trackBody []byte) error {
	body := append(trackBody, 0x00, 0xFF, 0x2F, 0x00) // end-of-track meta event

	var out []byte
	out = append(out, []byte("MThd")...)
	out = binary.BigEndian.AppendUint32(out, 6)
	out = binary.BigEndian.AppendUint16(out, 0) // format 0: single track
	out = binary.BigEndian.AppendUint16(out, 1) // one track
	if division < 1 {
		division = 24
	}
	out = binary.BigEndian.AppendUint16(out, uint16(division))

	out = append(out, []byte("MTrk")...)
	out = binary.BigEndian.AppendUint32(out, uint32(len(body)))
	out = append(out, body...)

	return os.WriteFile(path, out, 0644)
}
