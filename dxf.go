package sheetcalc

// DXF is a differential format: a partial style record attached to a
// conditional-formatting rule or table style. Unlike Style, each
// sub-record is optional — an absent sub-record means "inherit from the
// underlying cell style".
//
// DXF differs from the regular Style schema in three ways:
//  1. NumberFmt is inline and carries both ID and FormatCode, never just
//     an id reference into a shared numFmt table.
//  2. Diagonal borders are not permitted; Border.Vertical/Horizontal are
//     always emitted (even when zero) instead of being DXF-absent.
//  3. On read, an absent sub-record pointer means "inherit", not
//     "default" — so nil-vs-zero-value matters and fields are pointers.
type DXF struct {
	Font       *Font
	Fill       *Fill
	Border     *Border
	Alignment  *Alignment
	NumberFmt  *NumberFormat
	Protection *Protection
}

// Equal compares two DXFs structurally, dereferencing each populated
// sub-record.
func (d DXF) Equal(o DXF) bool {
	return dxfFontEq(d.Font, o.Font) &&
		dxfFillEq(d.Fill, o.Fill) &&
		dxfBorderEq(d.Border, o.Border) &&
		dxfAlignEq(d.Alignment, o.Alignment) &&
		dxfNumFmtEq(d.NumberFmt, o.NumberFmt) &&
		dxfProtEq(d.Protection, o.Protection)
}

func dxfFontEq(a, b *Font) bool {
	if (a == nil) != (b == nil) {
		return false
	}
	return a == nil || a.key() == b.key()
}

func dxfFillEq(a, b *Fill) bool {
	if (a == nil) != (b == nil) {
		return false
	}
	return a == nil || a.key() == b.key()
}

func dxfBorderEq(a, b *Border) bool {
	if (a == nil) != (b == nil) {
		return false
	}
	return a == nil || a.key() == b.key()
}

func dxfAlignEq(a, b *Alignment) bool {
	if (a == nil) != (b == nil) {
		return false
	}
	return a == nil || a.key() == b.key()
}

func dxfNumFmtEq(a, b *NumberFormat) bool {
	if (a == nil) != (b == nil) {
		return false
	}
	return a == nil || a.key() == b.key()
}

func dxfProtEq(a, b *Protection) bool {
	if (a == nil) != (b == nil) {
		return false
	}
	return a == nil || a.key() == b.key()
}

// ApplyTo returns a new Style with every DXF sub-record that is present
// overriding the corresponding field of base, leaving absent sub-records
// untouched (the DXF "inherit" semantics).
func (d DXF) ApplyTo(base Style) Style {
	out := base
	if d.Font != nil {
		out.Font = *d.Font
	}
	if d.Fill != nil {
		out.Fill = *d.Fill
	}
	if d.Border != nil {
		out.Border = *d.Border
	}
	if d.Alignment != nil {
		out.Alignment = *d.Alignment
	}
	if d.NumberFmt != nil {
		out.NumberFmt = *d.NumberFmt
	}
	if d.Protection != nil {
		out.Protection = *d.Protection
	}
	return out
}
