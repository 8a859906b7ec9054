package score

// Cell is one (note, instrument, command, value) slot in a block. A zero
// value in any field means "empty" per the data model.
type Cell struct {
	Note       uint8
	Instrument uint8
	Command    uint8
	Value      uint8
}

// Empty reports whether the cell carries no information at all.
func (c Cell) Empty() bool {
	return c == Cell{}
}

// Block is a length x tracks grid of cells, with one or more parallel
// command pages per cell. Page 0 is the block's own commands; instruments
// additionally carry an Arpeggio block whose own command pages apply
// while the arpeggio is sounding (see engine's command interpreter).
type Block struct {
	Name string

	length int
	tracks int
	pages  int

	// cells[page][line*tracks+track]
	cells [][]Cell
}

// NewBlock allocates a block of the given length (lines), track count
// (columns) and command page count. All cells start empty.
func NewBlock(name string, length, tracks, pages int) *Block {
	if length < 1 {
		length = 1
	}
	if tracks < 1 {
		tracks = 1
	}
	if pages < 1 {
		pages = 1
	}
	b := &Block{Name: name, length: length, tracks: tracks, pages: pages}
	b.cells = make([][]Cell, pages)
	for p := range b.cells {
		b.cells[p] = make([]Cell, length*tracks)
	}
	return b
}

// Length returns the block's line count.
func (b *Block) Length() int { return b.length }

// Tracks returns the block's track (column) count.
func (b *Block) Tracks() int { return b.tracks }

// Pages returns the number of parallel command pages.
func (b *Block) Pages() int { return b.pages }

// Cell returns the cell at (line, track, page), clamping line modulo the
// block length and track/page to their valid range, per the invariant
// that a shrunk block never lets a stale cursor read out of bounds.
func (b *Block) Cell(line, track, page int) Cell {
	if b.length == 0 || b.tracks == 0 || b.pages == 0 {
		return Cell{}
	}
	line = mod(line, b.length)
	if track < 0 {
		track = 0
	}
	if track >= b.tracks {
		track = b.tracks - 1
	}
	if page < 0 {
		page = 0
	}
	if page >= b.pages {
		page = b.pages - 1
	}
	return b.cells[page][line*b.tracks+track]
}

// SetCell writes the cell at (line, track, page). Out-of-range
// coordinates are ignored (an editor-side no-op, not a panic).
func (b *Block) SetCell(line, track, page int, c Cell) {
	if line < 0 || line >= b.length {
		return
	}
	if track < 0 || track >= b.tracks {
		return
	}
	if page < 0 || page >= b.pages {
		return
	}
	b.cells[page][line*b.tracks+track] = c
}

func mod(a, m int) int {
	if m <= 0 {
		return 0
	}
	r := a % m
	if r < 0 {
		r += m
	}
	return r
}

// Playseq is an ordered list of block indices.
type Playseq []int

// At returns the block index at position p, clamped to the last position,
// or 0 if the playseq is empty.
func (p Playseq) At(pos int) int {
	if len(p) == 0 {
		return 0
	}
	if pos < 0 {
		pos = 0
	}
	if pos >= len(p) {
		pos = len(p) - 1
	}
	return p[pos]
}

// Len returns the number of positions in the playseq.
func (p Playseq) Len() int { return len(p) }
