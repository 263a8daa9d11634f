package xlsx

import "github.com/sheetcalc/sheetcalc"

// colorFromXML maps a <color> element to sheetcalc.Color.
func colorFromXML(c *ctColor) sheetcalc.Color {
	if c == nil {
		return sheetcalc.Color{Kind: sheetcalc.ColorAuto}
	}
	switch {
	case c.Theme != nil:
		return sheetcalc.Color{Kind: sheetcalc.ColorTheme, Theme: *c.Theme, Tint: c.Tint}
	case c.Indexed != nil:
		return sheetcalc.Color{Kind: sheetcalc.ColorIndexed, Indexed: *c.Indexed}
	case c.RGB != "":
		if len(c.RGB) == 8 {
			return sheetcalc.Color{Kind: sheetcalc.ColorARGB, ARGB: c.RGB}
		}
		return sheetcalc.Color{Kind: sheetcalc.ColorRGB, RGB: c.RGB}
	default:
		return sheetcalc.Color{Kind: sheetcalc.ColorAuto}
	}
}

func colorToXML(c sheetcalc.Color) *ctColor {
	switch c.Kind {
	case sheetcalc.ColorRGB:
		return &ctColor{RGB: c.RGB}
	case sheetcalc.ColorARGB:
		return &ctColor{RGB: c.ARGB}
	case sheetcalc.ColorTheme:
		theme := c.Theme
		return &ctColor{Theme: &theme, Tint: c.Tint}
	case sheetcalc.ColorIndexed:
		idx := c.Indexed
		return &ctColor{Indexed: &idx}
	default:
		return &ctColor{Auto: true}
	}
}

func fontFromXML(f *ctFont) sheetcalc.Font {
	if f == nil {
		return sheetcalc.Font{}
	}
	out := sheetcalc.Font{Bold: f.B.bool(), Italic: f.I.bool(), Underline: f.U.bool(), Strike: f.Strike.bool()}
	if f.Name != nil {
		out.Name = f.Name.Val
	}
	if f.Sz != nil {
		out.Size = f.Sz.Val
	}
	if f.Color != nil {
		out.Color = colorFromXML(f.Color)
	}
	return out
}

func fontToXML(f sheetcalc.Font) *ctFont {
	out := &ctFont{Name: &ctStrVal{Val: f.Name}, Sz: &ctFloatVal{Val: f.Size}}
	if f.Bold {
		out.B = &ctFlag{}
	}
	if f.Italic {
		out.I = &ctFlag{}
	}
	if f.Underline {
		out.U = &ctFlag{}
	}
	if f.Strike {
		out.Strike = &ctFlag{}
	}
	if f.Color.Kind != sheetcalc.ColorAuto {
		out.Color = colorToXML(f.Color)
	}
	return out
}

func fillFromXML(f *ctFill) sheetcalc.Fill {
	if f == nil {
		return sheetcalc.Fill{Kind: sheetcalc.FillNone}
	}
	if f.GradientFill != nil {
		g := f.GradientFill
		kind := sheetcalc.GradientLinear
		if g.Type == "path" {
			kind = sheetcalc.GradientPath
		}
		stops := make([]sheetcalc.GradientStop, len(g.Stop))
		for i, s := range g.Stop {
			stops[i] = sheetcalc.GradientStop{Position: s.Position, Color: colorFromXML(s.Color)}
		}
		return sheetcalc.Fill{Kind: sheetcalc.FillGradient, GradientType: kind, Angle: g.Degree, Stops: stops}
	}
	if f.PatternFill != nil {
		p := f.PatternFill
		if p.PatternType == "" || p.PatternType == "none" {
			return sheetcalc.Fill{Kind: sheetcalc.FillNone}
		}
		if p.PatternType == "solid" {
			return sheetcalc.Fill{Kind: sheetcalc.FillSolid, Solid: colorFromXML(p.FgColor)}
		}
		return sheetcalc.Fill{Kind: sheetcalc.FillPattern, Pattern: p.PatternType, FG: colorFromXML(p.FgColor), BG: colorFromXML(p.BgColor)}
	}
	return sheetcalc.Fill{Kind: sheetcalc.FillNone}
}

func fillToXML(f sheetcalc.Fill) *ctFill {
	switch f.Kind {
	case sheetcalc.FillSolid:
		return &ctFill{PatternFill: &ctPatternFill{PatternType: "solid", FgColor: colorToXML(f.Solid)}}
	case sheetcalc.FillPattern:
		return &ctFill{PatternFill: &ctPatternFill{PatternType: f.Pattern, FgColor: colorToXML(f.FG), BgColor: colorToXML(f.BG)}}
	case sheetcalc.FillGradient:
		typ := "linear"
		if f.GradientType == sheetcalc.GradientPath {
			typ = "path"
		}
		stops := make([]ctGradStop, len(f.Stops))
		for i, s := range f.Stops {
			stops[i] = ctGradStop{Position: s.Position, Color: colorToXML(s.Color)}
		}
		return &ctFill{GradientFill: &ctGradientFill{Type: typ, Degree: f.Angle, Stop: stops}}
	default:
		return &ctFill{PatternFill: &ctPatternFill{PatternType: "none"}}
	}
}

func borderLineFromXML(b *ctBorderPr) sheetcalc.BorderLine {
	if b == nil {
		return sheetcalc.BorderLine{}
	}
	line := sheetcalc.BorderLine{Style: b.Style}
	if b.Color != nil {
		line.Color = colorFromXML(b.Color)
	}
	return line
}

func borderLineToXML(b sheetcalc.BorderLine) *ctBorderPr {
	if b.Style == "" {
		return &ctBorderPr{}
	}
	return &ctBorderPr{Style: b.Style, Color: colorToXML(b.Color)}
}

func borderFromXML(b *ctBorder) sheetcalc.Border {
	if b == nil {
		return sheetcalc.Border{}
	}
	return sheetcalc.Border{
		Left: borderLineFromXML(b.Left), Right: borderLineFromXML(b.Right),
		Top: borderLineFromXML(b.Top), Bottom: borderLineFromXML(b.Bottom),
		Diagonal: borderLineFromXML(b.Diagonal),
		DiagonalUp: b.DiagonalUp, DiagonalDown: b.DiagonalDown,
		Vertical: borderLineFromXML(b.Vertical), Horizontal: borderLineFromXML(b.Horizontal),
	}
}

// borderToXML renders a regular (non-DXF) border; the vertical/horizontal
// pseudo-edges are DXF-only and are never emitted here.
func borderToXML(b sheetcalc.Border) *ctBorder {
	return &ctBorder{
		DiagonalUp: b.DiagonalUp, DiagonalDown: b.DiagonalDown,
		Left: borderLineToXML(b.Left), Right: borderLineToXML(b.Right),
		Top: borderLineToXML(b.Top), Bottom: borderLineToXML(b.Bottom),
		Diagonal: borderLineToXML(b.Diagonal),
	}
}

// dxfBorderToXML renders a DXF border, always emitting vertical and
// horizontal, and never a diagonal edge: diagonal borders are not
// permitted on a DXF.
func dxfBorderToXML(b sheetcalc.Border) *ctBorder {
	return &ctBorder{
		Left: borderLineToXML(b.Left), Right: borderLineToXML(b.Right),
		Top: borderLineToXML(b.Top), Bottom: borderLineToXML(b.Bottom),
		Vertical: borderLineToXML(b.Vertical), Horizontal: borderLineToXML(b.Horizontal),
	}
}

func alignmentFromXML(a *ctAlignment) sheetcalc.Alignment {
	if a == nil {
		return sheetcalc.Alignment{}
	}
	return sheetcalc.Alignment{
		Horizontal: a.Horizontal, Vertical: a.Vertical,
		WrapText: a.WrapText, ShrinkToFit: a.ShrinkToFit,
		Indent: a.Indent, Rotation: a.TextRotation, ReadingOrder: a.ReadingOrder,
	}
}

func alignmentToXML(a sheetcalc.Alignment) *ctAlignment {
	if a == (sheetcalc.Alignment{}) {
		return nil
	}
	return &ctAlignment{
		Horizontal: a.Horizontal, Vertical: a.Vertical,
		WrapText: a.WrapText, ShrinkToFit: a.ShrinkToFit,
		Indent: a.Indent, TextRotation: a.Rotation, ReadingOrder: a.ReadingOrder,
	}
}

func protectionFromXML(p *ctProtection) sheetcalc.Protection {
	if p == nil {
		return sheetcalc.Protection{}
	}
	return sheetcalc.Protection{Locked: p.Locked, Hidden: p.Hidden}
}

func protectionToXML(p sheetcalc.Protection) *ctProtection {
	if p == (sheetcalc.Protection{}) {
		return nil
	}
	return &ctProtection{Locked: p.Locked, Hidden: p.Hidden}
}

func numFmtFromXML(id int, custom map[int]string) sheetcalc.NumberFormat {
	if code, ok := custom[id]; ok {
		return sheetcalc.NumberFormat{ID: id, FormatCode: code}
	}
	code, _ := builtinNumFmtCode(id)
	return sheetcalc.NumberFormat{ID: id, FormatCode: code}
}

func dxfFromXML(d ctDxf) sheetcalc.DXF {
	out := sheetcalc.DXF{}
	if d.Font != nil {
		f := fontFromXML(d.Font)
		out.Font = &f
	}
	if d.Fill != nil {
		f := fillFromXML(d.Fill)
		out.Fill = &f
	}
	if d.Border != nil {
		b := borderFromXML(d.Border)
		out.Border = &b
	}
	if d.Alignment != nil {
		a := alignmentFromXML(d.Alignment)
		out.Alignment = &a
	}
	if d.Protection != nil {
		p := protectionFromXML(d.Protection)
		out.Protection = &p
	}
	if d.NumFmt != nil {
		out.NumberFmt = &sheetcalc.NumberFormat{ID: d.NumFmt.ID, FormatCode: d.NumFmt.FormatCode}
	}
	return out
}

func dxfToXML(d sheetcalc.DXF) ctDxf {
	out := ctDxf{}
	if d.Font != nil {
		out.Font = fontToXML(*d.Font)
	}
	if d.Fill != nil {
		out.Fill = fillToXML(*d.Fill)
	}
	if d.Border != nil {
		out.Border = dxfBorderToXML(*d.Border)
	}
	if d.Alignment != nil {
		out.Alignment = alignmentToXML(*d.Alignment)
	}
	if d.Protection != nil {
		out.Protection = protectionToXML(*d.Protection)
	}
	if d.NumberFmt != nil {
		out.NumFmt = &ctNumFmt{ID: d.NumberFmt.ID, FormatCode: d.NumberFmt.FormatCode}
	}
	return out
}
