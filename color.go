package sheetcalc

import "fmt"

// ColorKind selects which variant of Color is populated.
type ColorKind uint8

const (
	ColorAuto ColorKind = iota
	ColorRGB
	ColorARGB
	ColorTheme
	ColorIndexed
)

// Color is one of {RGB, ARGB, Theme(index, tint), Indexed(n), Auto}.
type Color struct {
	Kind    ColorKind
	RGB     string // 6 hex digits, no leading '#'
	ARGB    string // 8 hex digits, alpha first
	Theme   int
	Tint    float64
	Indexed int
}

func (c Color) key() string {
	switch c.Kind {
	case ColorRGB:
		return "rgb:" + c.RGB
	case ColorARGB:
		return "argb:" + c.ARGB
	case ColorTheme:
		return fmt.Sprintf("theme:%d:%g", c.Theme, c.Tint)
	case ColorIndexed:
		return fmt.Sprintf("idx:%d", c.Indexed)
	default:
		return "auto"
	}
}

// standardThemeSlots names the twelve <clrScheme> child elements in the
// order OOXML declares them, used to resolve a theme color index without
// applying tint.
var standardThemeSlots = [12]string{
	"dk1", "lt1", "dk2", "lt2",
	"accent1", "accent2", "accent3", "accent4", "accent5", "accent6",
	"hlink", "folHlink",
}

// ThemeSlotName returns the <clrScheme> element name for a theme color
// index (0-11), or "" if idx is out of range.
func ThemeSlotName(idx int) string {
	if idx < 0 || idx >= len(standardThemeSlots) {
		return ""
	}
	return standardThemeSlots[idx]
}

// FillKind selects the Fill variant.
type FillKind uint8

const (
	FillNone FillKind = iota
	FillSolid
	FillPattern
	FillGradient
)

// GradientKind is the OOXML gradient fill type, linear or path.
type GradientKind uint8

const (
	GradientLinear GradientKind = iota
	GradientPath
)

// GradientStop is one stop of a gradient fill.
type GradientStop struct {
	Position float64 // 0.0 - 1.0
	Color    Color
}

// Fill is the cell background: None, Solid(color), Pattern(pattern, fg,
// bg), or Gradient(type, angle, stops).
type Fill struct {
	Kind    FillKind
	Solid   Color
	Pattern string // e.g. "darkGray", "solid", "none"
	FG, BG  Color

	GradientType GradientKind
	Angle        float64
	Stops        []GradientStop
}

func (f Fill) key() string {
	switch f.Kind {
	case FillSolid:
		return "solid:" + f.Solid.key()
	case FillPattern:
		return "pattern:" + f.Pattern + ":" + f.FG.key() + ":" + f.BG.key()
	case FillGradient:
		s := fmt.Sprintf("gradient:%d:%g", f.GradientType, f.Angle)
		for _, st := range f.Stops {
			s += fmt.Sprintf(";%g:%s", st.Position, st.Color.key())
		}
		return s
	default:
		return "none"
	}
}

// Font describes a character-run font record.
type Font struct {
	Name      string
	Size      float64
	Bold      bool
	Italic    bool
	Underline bool
	Strike    bool
	Color     Color
}

func (f Font) key() string {
	return fmt.Sprintf("%s:%g:%t:%t:%t:%t:%s", f.Name, f.Size, f.Bold, f.Italic, f.Underline, f.Strike, f.Color.key())
}

// BorderLine is one edge of a Border.
type BorderLine struct {
	Style string // "thin", "medium", "dashed", ... ("" means absent)
	Color Color
}

func (b BorderLine) key() string { return b.Style + ":" + b.Color.key() }

// Border bundles the five edges OOXML supports on a regular xf: left,
// right, top, bottom, diagonal, plus the vertical/horizontal pseudo-edges
// used only by DXF.
type Border struct {
	Left, Right, Top, Bottom, Diagonal BorderLine
	DiagonalUp, DiagonalDown           bool
	Vertical, Horizontal               BorderLine
}

func (b Border) key() string {
	return b.Left.key() + "|" + b.Right.key() + "|" + b.Top.key() + "|" + b.Bottom.key() + "|" +
		b.Diagonal.key() + "|" + fmt.Sprintf("%t%t", b.DiagonalUp, b.DiagonalDown) + "|" +
		b.Vertical.key() + "|" + b.Horizontal.key()
}

// Alignment is the cell alignment sub-record.
type Alignment struct {
	Horizontal   string // "left","center","right","fill","justify","centerContinuous","distributed",""
	Vertical     string // "top","center","bottom","justify","distributed",""
	WrapText     bool
	ShrinkToFit  bool
	Indent       int
	Rotation     int
	ReadingOrder int
}

func (a Alignment) key() string {
	return fmt.Sprintf("%s:%s:%t:%t:%d:%d:%d", a.Horizontal, a.Vertical, a.WrapText, a.ShrinkToFit, a.Indent, a.Rotation, a.ReadingOrder)
}

// Protection is the cell protection sub-record.
type Protection struct {
	Locked bool
	Hidden bool
}

func (p Protection) key() string { return fmt.Sprintf("%t:%t", p.Locked, p.Hidden) }

// NumberFormat is a number-format record: built-in if ID < 164, custom
// (FormatCode carries the pattern) if ID >= 164.
type NumberFormat struct {
	ID         int
	FormatCode string
}

func (n NumberFormat) key() string { return fmt.Sprintf("%d:%s", n.ID, n.FormatCode) }
