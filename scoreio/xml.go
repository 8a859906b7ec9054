// Package scoreio reads and writes the engine's XML score documents
// (spec.md §6). Score persistence itself is out of the engine's own
// scope, but a real reader/writer gives the engine an exercised score
// source instead of only in-memory test fixtures.
package scoreio

import (
	"encoding/xml"
	"errors"
	"os"

	"github.com/gseamans/trackplay/enginelog"
	"github.com/gseamans/trackplay/score"
)

// ErrUnsupportedLegacyFormat is returned by Load when the file sniffs as
// an OctaMED module; decoding that grammar is out of scope (spec.md §1),
// so callers get a named error instead of a silent empty score.
var ErrUnsupportedLegacyFormat = errors.New("scoreio: legacy OctaMED modules are not supported")

// SniffLegacy reports whether data begins with the OctaMED magic bytes
// 'M','M','D',{'0','1','2'} (spec.md §6 "Legacy module import").
func SniffLegacy(data []byte) bool {
	if len(data) < 4 {
		return false
	}
	if data[0] != 'M' || data[1] != 'M' || data[2] != 'D' {
		return false
	}
	switch data[3] {
	case '0', '1', '2':
		return true
	default:
		return false
	}
}

type xmlSong struct {
	XMLName      xml.Name        `xml:"song"`
	Name         string          `xml:"name,attr"`
	Tempo        int             `xml:"tempo,attr"`
	TicksPerLine int             `xml:"ticksperline,attr"`
	MasterVolume int             `xml:"mastervolume,attr"`
	SendSync     bool            `xml:"sendsync,attr"`
	Blocks       xmlBlocks       `xml:"blocks"`
	Sections     xmlSections     `xml:"sections"`
	Playseqs     xmlPlayseqs     `xml:"playingsequences"`
	Instruments  xmlInstruments  `xml:"instruments"`
	Tracks       xmlTracks       `xml:"tracks"`
	TrackVolumes *xmlTracks      `xml:"trackvolumes"`
	Messages     xmlMessages     `xml:"messages"`
}

type xmlBlocks struct {
	Block []xmlBlock `xml:"block"`
}

type xmlBlock struct {
	Number       int    `xml:"number,attr"`
	Name         string `xml:"name,attr"`
	CommandPages int    `xml:"commandpages,attr"`
	Tracks       int    `xml:"tracks,attr"`
	Length       int    `xml:"length,attr"`
	CDATA        string `xml:",chardata"`
}

type xmlSections struct {
	Section []xmlSection `xml:"section"`
}

type xmlSection struct {
	Number int `xml:"number,attr"`
	Value  int `xml:",chardata"`
}

type xmlPlayseqs struct {
	Playseq []xmlPlayseq `xml:"playingsequence"`
}

type xmlPlayseq struct {
	Number int    `xml:"number,attr"`
	Value  string `xml:",chardata"`
}

type xmlInstruments struct {
	Instrument []xmlInstrument `xml:"instrument"`
}

type xmlInstrument struct {
	Number          int          `xml:"number,attr"`
	Name            string       `xml:"name,attr"`
	MidiInterface   string       `xml:"midiinterface,attr"`
	MidiPreset      int          `xml:"midipreset,attr"`
	MidiChannel     int          `xml:"midichannel,attr"`
	DefaultVelocity int          `xml:"defaultvelocity,attr"`
	Transpose       int          `xml:"transpose,attr"`
	Hold            int          `xml:"hold,attr"`
	Arpeggio        *xmlArpeggio `xml:"arpeggio"`
}

type xmlArpeggio struct {
	BaseNote int    `xml:"basenote,attr"`
	CDATA    string `xml:",chardata"`
}

type xmlTracks struct {
	Track []xmlTrack `xml:"track"`
}

type xmlTrack struct {
	Number int    `xml:"number,attr"`
	Volume int    `xml:"volume,attr"`
	Mute   bool   `xml:"mute,attr"`
	Solo   bool   `xml:"solo,attr"`
	Name   string `xml:",chardata"`
}

type xmlMessages struct {
	Message []string `xml:"message"`
}

// Load reads and parses an XML score document into a *score.Score.
// Malformed elements are logged (enginelog.MalformedScore) and skipped
// rather than aborting the whole load, per spec.md §7.
func Load(path string) (*score.Score, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if SniffLegacy(data) {
		return nil, ErrUnsupportedLegacyFormat
	}

	var doc xmlSong
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	sc := score.New(doc.Tempo, doc.TicksPerLine, doc.MasterVolume)
	sc.SetName(doc.Name)
	sc.SetSendSync(doc.SendSync)

	for _, xb := range doc.Blocks.Block {
		b := decodeBlock(xb)
		sc.AddBlock(b)
	}

	for _, xp := range doc.Playseqs.Playseq {
		sc.AddPlayseq(decodePlayseq(xp.Value))
	}

	for _, xs := range doc.Sections.Section {
		sc.AddSection(xs.Value)
	}

	for _, xi := range doc.Instruments.Instrument {
		sc.AddInstrument(decodeInstrument(xi))
	}

	tracks := doc.Tracks
	if len(tracks.Track) == 0 && doc.TrackVolumes != nil {
		tracks = *doc.TrackVolumes
	}
	sc.SetTrackCount(len(tracks.Track))
	for i, xt := range tracks.Track {
		t := sc.Track(i)
		t.Volume = xt.Volume & 0x7F
		t.Muted = xt.Mute || xt.Volume&0x80 != 0 // legacy trackvolumes high bit
		t.Solo = xt.Solo
	}

	for _, m := range doc.Messages.Message {
		sc.AddMessage([]byte(m))
	}

	return sc, nil
}

func decodeBlock(xb xmlBlock) *score.Block {
	pages := xb.CommandPages
	if pages < 1 {
		pages = 1
	}
	b := score.NewBlock(xb.Name, xb.Length, xb.Tracks, pages)
	cells := decodeCells(xb.CDATA)
	line, track, page := 0, 0, 0
	for _, c := range cells {
		if line >= xb.Length {
			break
		}
		b.SetCell(line, track, page, c)
		page++
		if page >= pages {
			page = 0
			track++
			if track >= xb.Tracks {
				track = 0
				line++
			}
		}
	}
	return b
}

// decodeCells parses a whitespace-separated list of "note,instrument,command,value"
// quads, tolerating short or malformed entries per spec.md §7 MalformedScore.
func decodeCells(cdata string) []score.Cell {
	var cells []score.Cell
	var quad [4]int
	field := 0
	num := 0
	haveDigit := false
	flush := func() {
		if haveDigit {
			quad[field] = num
		}
		field++
		num = 0
		haveDigit = false
	}
	commit := func() {
		cells = append(cells, score.Cell{
			Note:       uint8(quad[0]),
			Instrument: uint8(quad[1]),
			Command:    uint8(quad[2]),
			Value:      uint8(quad[3]),
		})
		quad = [4]int{}
		field = 0
	}

	for _, r := range cdata {
		switch {
		case r >= '0' && r <= '9':
			num = num*10 + int(r-'0')
			haveDigit = true
		case r == ',':
			if field < 3 {
				flush()
			}
		case r == ' ' || r == '\n' || r == '\t' || r == '\r':
			if field > 0 || haveDigit {
				flush()
				if field != 4 {
					enginelog.Log(enginelog.MalformedScore, "cell quad had %d fields, want 4", field)
				}
				commit()
			}
		}
	}
	if field > 0 || haveDigit {
		flush()
		commit()
	}

	return cells
}

func decodePlayseq(cdata string) score.Playseq {
	var ps score.Playseq
	num := 0
	haveDigit := false
	for _, r := range cdata {
		switch {
		case r >= '0' && r <= '9':
			num = num*10 + int(r-'0')
			haveDigit = true
		default:
			if haveDigit {
				ps = append(ps, num)
				num = 0
				haveDigit = false
			}
		}
	}
	if haveDigit {
		ps = append(ps, num)
	}
	return ps
}

func decodeInstrument(xi xmlInstrument) *score.Instrument {
	inst := score.NewInstrument(xi.Name)
	inst.InterfaceName = xi.MidiInterface
	inst.MidiPreset = xi.MidiPreset
	inst.MidiChannel = xi.MidiChannel
	inst.DefaultVelocity = xi.DefaultVelocity
	inst.Transpose = xi.Transpose
	inst.Hold = xi.Hold
	if xi.Arpeggio != nil {
		inst.ArpeggioBaseNote = xi.Arpeggio.BaseNote
		cells := decodeCells(xi.Arpeggio.CDATA)
		b := score.NewBlock("arpeggio", len(cells), 1, 1)
		for i, c := range cells {
			b.SetCell(i, 0, 0, c)
		}
		inst.Arpeggio = b
	}
	return inst
}
