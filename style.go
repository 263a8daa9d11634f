package sheetcalc

// Style is {font, fill, border, alignment, number_format, protection}.
// Two styles compare equal iff all six sub-records compare equal
// structurally; this equality drives pool deduplication.
type Style struct {
	Font       Font
	Fill       Fill
	Border     Border
	Alignment  Alignment
	NumberFmt  NumberFormat
	Protection Protection
}

// key returns a canonical string encoding Style's structural identity.
func (s Style) key() string {
	return s.Font.key() + "#" + s.Fill.key() + "#" + s.Border.key() + "#" +
		s.Alignment.key() + "#" + s.NumberFmt.key() + "#" + s.Protection.key()
}

// DefaultStyle is the zero-value style; style id 0 always denotes it.
var DefaultStyle = Style{}

// StylePool deduplicates Style records behind small integer ids. Id 0
// always denotes DefaultStyle; two structurally equal styles always get
// the same id.
type StylePool struct {
	byID  []Style
	index map[string]uint32
}

// NewStylePool creates a pool pre-seeded with DefaultStyle at id 0.
func NewStylePool() *StylePool {
	p := &StylePool{index: make(map[string]uint32)}
	id := p.insert(DefaultStyle)
	if id != 0 {
		panic("sheetcalc: default style did not land at id 0")
	}
	return p
}

// GetOrInsert returns the id for style, inserting it if not already
// present. Equal styles always yield the same id.
func (p *StylePool) GetOrInsert(style Style) uint32 {
	k := style.key()
	if id, ok := p.index[k]; ok {
		return id
	}
	return p.insert(style)
}

func (p *StylePool) insert(style Style) uint32 {
	id := uint32(len(p.byID))
	p.byID = append(p.byID, style)
	p.index[style.key()] = id
	return id
}

// Get returns the style for id, or DefaultStyle if id is out of range.
func (p *StylePool) Get(id uint32) Style {
	if int(id) >= len(p.byID) {
		return DefaultStyle
	}
	return p.byID[id]
}

// Len returns the number of distinct styles in the pool, including the
// default.
func (p *StylePool) Len() int { return len(p.byID) }

// All returns the pooled styles in insertion order (id == index), the
// order the XLSX writer emits <cellXfs> in.
func (p *StylePool) All() []Style { return p.byID }
