package score_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gseamans/trackplay/score"
)

func TestOutOfRangeReferencesClampToLastElement(t *testing.T) {
	s := score.New(120, 6, 127)
	b0 := score.NewBlock("a", 4, 1, 1)
	b1 := score.NewBlock("b", 8, 1, 1)
	s.AddBlock(b0)
	s.AddBlock(b1)

	assert.Same(t, b1, s.Block(5), "out-of-range block index clamps to the last block")
	assert.Same(t, b0, s.Block(0))

	i0 := score.NewInstrument("lead")
	s.AddInstrument(i0)
	assert.Same(t, i0, s.Instrument(99))
}

func TestEmptyScoreAccessorsDoNotPanic(t *testing.T) {
	s := score.New(120, 6, 127)
	assert.Nil(t, s.Block(0))
	assert.Nil(t, s.Instrument(0))
	assert.Nil(t, s.Playseq(0))
	assert.Equal(t, 0, s.Section(0))
	assert.NotNil(t, s.Track(0))
	assert.Nil(t, s.Message(0))
}

func TestBlockCellClampsLineModuloLength(t *testing.T) {
	b := score.NewBlock("x", 4, 2, 1)
	b.SetCell(0, 0, 0, score.Cell{Note: 60})
	// line=4 wraps to line=0 on a 4-line block.
	assert.Equal(t, uint8(60), b.Cell(4, 0, 0).Note)
	assert.Equal(t, uint8(60), b.Cell(8, 0, 0).Note)
}

func TestPlayseqAtClampsPosition(t *testing.T) {
	p := score.Playseq{2, 4, 6}
	assert.Equal(t, 2, p.At(0))
	assert.Equal(t, 6, p.At(2))
	assert.Equal(t, 6, p.At(99))
	assert.Equal(t, 2, p.At(-1))
}

func TestAnySoloReflectsAnyTrack(t *testing.T) {
	s := score.New(120, 6, 127)
	s.SetTrackCount(3)
	assert.False(t, s.AnySolo())
	s.Track(1).Solo = true
	assert.True(t, s.AnySolo())
}
