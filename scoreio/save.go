package scoreio

import (
	"encoding/xml"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/gseamans/trackplay/score"
)

// Save serializes sc back to the XML shape Load reads, at path.
func Save(sc *score.Score, path string) error {
	doc := xmlSong{
		Name:         sc.Name(),
		Tempo:        sc.Tempo(),
		TicksPerLine: sc.TicksPerLine(),
		MasterVolume: sc.MasterVolume(),
		SendSync:     sc.SendSync(),
	}

	for i := 0; i < sc.BlockCount(); i++ {
		doc.Blocks.Block = append(doc.Blocks.Block, encodeBlock(i, sc.Block(i)))
	}

	for i := 0; i < sc.PlayseqCount(); i++ {
		doc.Playseqs.Playseq = append(doc.Playseqs.Playseq, xmlPlayseq{
			Number: i,
			Value:  encodePlayseq(sc.Playseq(i)),
		})
	}

	for i := 0; i < sc.SectionCount(); i++ {
		doc.Sections.Section = append(doc.Sections.Section, xmlSection{Number: i, Value: sc.Section(i)})
	}

	for i := 0; i < sc.InstrumentCount(); i++ {
		doc.Instruments.Instrument = append(doc.Instruments.Instrument, encodeInstrument(i, sc.Instrument(i)))
	}

	for i := 0; i < sc.MaxTracks(); i++ {
		t := sc.Track(i)
		doc.Tracks.Track = append(doc.Tracks.Track, xmlTrack{
			Number: i,
			Volume: t.Volume,
			Mute:   t.Muted,
			Solo:   t.Solo,
		})
	}

	for i := 0; i < sc.MessageCount(); i++ {
		doc.Messages.Message = append(doc.Messages.Message, string(sc.Message(i)))
	}

	data, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, append([]byte(xml.Header), data...), 0644)
}

func encodeBlock(number int, b *score.Block) xmlBlock {
	xb := xmlBlock{
		Number:       number,
		Name:         b.Name,
		CommandPages: b.Pages(),
		Tracks:       b.Tracks(),
		Length:       b.Length(),
	}

	var sb strings.Builder
	for line := 0; line < b.Length(); line++ {
		for track := 0; track < b.Tracks(); track++ {
			for page := 0; page < b.Pages(); page++ {
				c := b.Cell(line, track, page)
				fmt.Fprintf(&sb, "%d,%d,%d,%d ", c.Note, c.Instrument, c.Command, c.Value)
			}
		}
	}
	xb.CDATA = strings.TrimSpace(sb.String())
	return xb
}

func encodePlayseq(p score.Playseq) string {
	parts := make([]string, p.Len())
	for i := range parts {
		parts[i] = strconv.Itoa(p.At(i))
	}
	return strings.Join(parts, " ")
}

func encodeInstrument(number int, inst *score.Instrument) xmlInstrument {
	xi := xmlInstrument{
		Number:          number,
		Name:            inst.Name,
		MidiInterface:   inst.InterfaceName,
		MidiPreset:      inst.MidiPreset,
		MidiChannel:     inst.MidiChannel,
		DefaultVelocity: inst.DefaultVelocity,
		Transpose:       inst.Transpose,
		Hold:            inst.Hold,
	}
	if inst.Arpeggio != nil {
		var sb strings.Builder
		for line := 0; line < inst.Arpeggio.Length(); line++ {
			c := inst.Arpeggio.Cell(line, 0, 0)
			fmt.Fprintf(&sb, "%d,%d,%d,%d ", c.Note, c.Instrument, c.Command, c.Value)
		}
		xi.Arpeggio = &xmlArpeggio{
			BaseNote: inst.ArpeggioBaseNote,
			CDATA:    strings.TrimSpace(sb.String()),
		}
	}
	return xi
}
