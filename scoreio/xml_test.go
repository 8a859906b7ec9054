package scoreio_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gseamans/trackplay/score"
	"github.com/gseamans/trackplay/scoreio"
)

const sampleXML = `<?xml version="1.0"?>
<song name="demo" tempo="120" ticksperline="6" mastervolume="127" sendsync="false">
  <blocks>
    <block number="0" name="main" commandpages="1" tracks="1" length="2">1,1,0,0 0,0,0,0 </block>
  </blocks>
  <sections><section number="0">0</section></sections>
  <playingsequences><playingsequence number="0">0</playingsequence></playingsequences>
  <instruments>
    <instrument number="0" name="lead" midiinterface="synth" midichannel="0" defaultvelocity="100" transpose="0" hold="1"/>
  </instruments>
  <tracks><track number="0" volume="127" mute="false" solo="false">lead track</track></tracks>
</song>`

func TestLoadParsesSongAttributes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "song.xml")
	require.NoError(t, os.WriteFile(path, []byte(sampleXML), 0644))

	sc, err := scoreio.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "demo", sc.Name())
	assert.Equal(t, 120, sc.Tempo())
	assert.Equal(t, 6, sc.TicksPerLine())
	require.Equal(t, 1, sc.BlockCount())

	b := sc.Block(0)
	require.NotNil(t, b)
	assert.Equal(t, 2, b.Length())
	assert.Equal(t, uint8(1), b.Cell(0, 0, 0).Note)
	assert.True(t, b.Cell(1, 0, 0).Empty())

	require.Equal(t, 1, sc.InstrumentCount())
	inst := sc.Instrument(0)
	assert.Equal(t, "synth", inst.InterfaceName)
	assert.Equal(t, 100, inst.DefaultVelocity)
}

func TestSniffLegacyDetectsMagic(t *testing.T) {
	assert.True(t, scoreio.SniffLegacy([]byte("MMD0rest-of-file")))
	assert.True(t, scoreio.SniffLegacy([]byte("MMD2")))
	assert.False(t, scoreio.SniffLegacy([]byte("MMD9")))
	assert.False(t, scoreio.SniffLegacy([]byte("<?xml")))
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	sc := score.New(140, 4, 100)
	sc.SetName("roundtrip")
	b := score.NewBlock("verse", 1, 1, 1)
	b.SetCell(0, 0, 0, score.Cell{Note: 40, Instrument: 1})
	sc.AddBlock(b)
	sc.AddPlayseq(score.Playseq{0})
	sc.AddSection(0)
	sc.SetTrackCount(1)
	inst := score.NewInstrument("bass")
	inst.InterfaceName = "out1"
	sc.AddInstrument(inst)

	dir := t.TempDir()
	path := filepath.Join(dir, "out.xml")
	require.NoError(t, scoreio.Save(sc, path))

	loaded, err := scoreio.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "roundtrip", loaded.Name())
	assert.Equal(t, 140, loaded.Tempo())
	require.Equal(t, 1, loaded.BlockCount())
	assert.Equal(t, uint8(40), loaded.Block(0).Cell(0, 0, 0).Note)
	assert.Equal(t, "out1", loaded.Instrument(0).InterfaceName)
}
