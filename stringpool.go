package sheetcalc

// SharedString is an immutable, workbook-scoped interned string. Once
// interned, two SharedStrings holding equal text are the same pointer, so
// identity comparison (==) is equality comparison.
type SharedString struct {
	text string
	id   uint32
}

// Text returns the interned string's contents.
func (s *SharedString) Text() string {
	if s == nil {
		return ""
	}
	return s.text
}

// ID returns the shared-string table index assigned on intern, stable
// for the lifetime of the pool (used by the XLSX writer for <si>
// indices).
func (s *SharedString) ID() uint32 { return s.id }

// StringPool interns strings so that equal text shares one allocation and
// may be compared by pointer identity.
type StringPool struct {
	byText []*SharedString
	index  map[string]*SharedString
}

// NewStringPool creates an empty string pool.
func NewStringPool() *StringPool {
	return &StringPool{index: make(map[string]*SharedString)}
}

// Intern returns the SharedString for s, creating and appending a new
// entry on first sight. intern(s1) == intern(s2) iff s1 == s2 as byte
// strings.
func (p *StringPool) Intern(s string) *SharedString {
	if ss, ok := p.index[s]; ok {
		return ss
	}
	ss := &SharedString{text: s, id: uint32(len(p.byText))}
	p.byText = append(p.byText, ss)
	p.index[s] = ss
	return ss
}

// Lookup returns the interned string with a given id, if any.
func (p *StringPool) Lookup(id uint32) (*SharedString, bool) {
	if int(id) >= len(p.byText) {
		return nil, false
	}
	return p.byText[id], true
}

// Len returns the number of distinct interned strings.
func (p *StringPool) Len() int { return len(p.byText) }

// All returns the interned strings in first-seen order, the order the
// XLSX writer emits xl/sharedStrings.xml in: shared-string index <-
// first-seen order.
func (p *StringPool) All() []*SharedString { return p.byText }
