package xlsx

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/klauspost/compress/flate"

	"github.com/sheetcalc/sheetcalc"
)

const nsMain = "http://schemas.openxmlformats.org/spreadsheetml/2006/main"
const nsR = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"
const nsPkgRel = "http://schemas.openxmlformats.org/package/2006/relationships"
const nsCT = "http://schemas.openxmlformats.org/package/2006/content-types"

// Encode implements sheetcalc.Codec, writing every worksheet of b into a
// ZIP package with a fixed part order.
func Encode(w io.Writer, b *sheetcalc.Workbook) error {
	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.DefaultCompression)
	})

	sp := newStylePlan(b.Styles())

	// Assign dxfIds up front, across every sheet's rules, so styles.xml
	// (written before any worksheet part) can carry the complete <dxfs>
	// pool.
	dxf := &dxfPool{}
	cfDxfIDs := make([][]*int, b.SheetCount())
	for i := 0; i < b.SheetCount(); i++ {
		ws, _ := b.WorksheetByIndex(i)
		rules := ws.ConditionalFormats()
		ids := make([]*int, len(rules))
		for j, cf := range rules {
			if cf.Type == sheetcalc.CFCellIs || cf.Type == sheetcalc.CFExpression {
				id := dxf.add(cf.DXF)
				ids[j] = &id
			}
		}
		cfDxfIDs[i] = ids
	}

	commentSheets := make([]int, 0)
	for i := 0; i < b.SheetCount(); i++ {
		ws, _ := b.WorksheetByIndex(i)
		if len(ws.Comments()) > 0 {
			commentSheets = append(commentSheets, i)
		}
	}

	if err := writeXML(zw, "[Content_Types].xml", contentTypes(b, commentSheets)); err != nil {
		return err
	}
	if err := writeXML(zw, "_rels/.rels", rootRels()); err != nil {
		return err
	}
	if err := writeXML(zw, "xl/workbook.xml", workbookXML(b)); err != nil {
		return err
	}
	if err := writeXML(zw, "xl/_rels/workbook.xml.rels", workbookRels(b)); err != nil {
		return err
	}
	if err := writeXML(zw, "xl/sharedStrings.xml", sharedStringsXML(b)); err != nil {
		return err
	}
	if err := writeXML(zw, "xl/styles.xml", sp.stylesXML(dxf)); err != nil {
		return err
	}

	for i := 0; i < b.SheetCount(); i++ {
		ws, _ := b.WorksheetByIndex(i)
		name := fmt.Sprintf("xl/worksheets/sheet%d.xml", i+1)
		if err := writeXML(zw, name, worksheetXML(b, ws, cfDxfIDs[i])); err != nil {
			return err
		}
	}
	for i, sheetIdx := range commentSheets {
		name := fmt.Sprintf("xl/worksheets/_rels/sheet%d.xml.rels", sheetIdx+1)
		if err := writeXML(zw, name, worksheetRels(i+1)); err != nil {
			return err
		}
	}
	for i, sheetIdx := range commentSheets {
		ws, _ := b.WorksheetByIndex(sheetIdx)
		name := fmt.Sprintf("xl/comments%d.xml", i+1)
		if err := writeXML(zw, name, commentsXML(ws)); err != nil {
			return err
		}
	}
	return zw.Close()
}

func writeXML(zw *zip.Writer, name string, v any) error {
	f, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
	if err != nil {
		return sheetcalc.NewOpError(sheetcalc.ErrIO, err)
	}
	if _, err := io.WriteString(f, xml.Header); err != nil {
		return sheetcalc.NewOpError(sheetcalc.ErrIO, err)
	}
	enc := xml.NewEncoder(f)
	if err := enc.Encode(v); err != nil {
		return sheetcalc.NewOpError(sheetcalc.ErrIO, err)
	}
	return nil
}

func contentTypes(b *sheetcalc.Workbook, commentSheets []int) *ctTypes {
	ct := &ctTypes{
		Xmlns: nsCT,
		Defaults: []ctDefault{
			{Extension: "rels", ContentType: "application/vnd.openxmlformats-package.relationships+xml"},
			{Extension: "xml", ContentType: "application/xml"},
		},
		Overrides: []ctOverride{
			{PartName: "/xl/workbook.xml", ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet.main+xml"},
			{PartName: "/xl/styles.xml", ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.styles+xml"},
			{PartName: "/xl/sharedStrings.xml", ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sharedStrings+xml"},
		},
	}
	for i := 0; i < b.SheetCount(); i++ {
		ct.Overrides = append(ct.Overrides, ctOverride{
			PartName:    fmt.Sprintf("/xl/worksheets/sheet%d.xml", i+1),
			ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.worksheet+xml",
		})
	}
	for i := range commentSheets {
		ct.Overrides = append(ct.Overrides, ctOverride{
			PartName:    fmt.Sprintf("/xl/comments%d.xml", i+1),
			ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.comments+xml",
		})
	}
	return ct
}

func rootRels() *relationships {
	return &relationships{Xmlns: nsPkgRel, Rels: []relationship{
		{ID: "rId1", Type: nsR + "/officeDocument", Target: "xl/workbook.xml"},
	}}
}

func workbookXML(b *sheetcalc.Workbook) *cTWorkbook {
	wb := &cTWorkbook{Xmlns: nsMain, XmlnsR: nsR}
	for i := 0; i < b.SheetCount(); i++ {
		ws, _ := b.WorksheetByIndex(i)
		wb.Sheets.Sheet = append(wb.Sheets.Sheet, ctSheet{
			Name: ws.Name(), SheetID: uint32(i + 1), RID: fmt.Sprintf("rId%d", i+1),
		})
	}
	names := b.DefinedNames()
	if len(names) > 0 {
		sort.Strings(names)
		dn := &ctDefinedNames{}
		for _, n := range names {
			ref, _ := b.GetNamedRange(n)
			dn.DefinedName = append(dn.DefinedName, ctDefinedName{Name: n, RefersTo: ref})
		}
		wb.DefinedNames = dn
	}
	calc := b.Calc
	mode := "auto"
	if calc.Mode == sheetcalc.CalcManual {
		mode = "manual"
	}
	wb.CalcPr = &ctCalcPr{
		CalcMode: mode, Iterate: calc.Iterative,
		IterateCount: calc.MaxIterations, IterateDelta: calc.MaxChange,
	}
	return wb
}

func workbookRels(b *sheetcalc.Workbook) *relationships {
	rels := &relationships{Xmlns: nsPkgRel}
	n := b.SheetCount()
	for i := 0; i < n; i++ {
		rels.Rels = append(rels.Rels, relationship{
			ID:     fmt.Sprintf("rId%d", i+1),
			Type:   nsR + "/worksheet",
			Target: fmt.Sprintf("worksheets/sheet%d.xml", i+1),
		})
	}
	rels.Rels = append(rels.Rels,
		relationship{ID: fmt.Sprintf("rId%d", n+1), Type: nsR + "/styles", Target: "styles.xml"},
		relationship{ID: fmt.Sprintf("rId%d", n+2), Type: nsR + "/sharedStrings", Target: "sharedStrings.xml"},
	)
	return rels
}

func sharedStringsXML(b *sheetcalc.Workbook) *ctSst {
	all := b.Strings().All()
	sst := &ctSst{Xmlns: nsMain, Count: len(all), Unique: len(all)}
	for _, s := range all {
		sst.SI = append(sst.SI, ctSI{T: escapeXHex(s.Text())})
	}
	return sst
}

func worksheetRels(commentPartNum int) *relationships {
	return &relationships{Xmlns: nsPkgRel, Rels: []relationship{
		{ID: "rId1", Type: nsR + "/comments", Target: fmt.Sprintf("../comments%d.xml", commentPartNum)},
	}}
}

func commentsXML(ws *sheetcalc.Worksheet) *ctComments {
	authorIdx := make(map[string]int)
	out := &ctComments{Xmlns: nsMain}

	type kv struct {
		addr sheetcalc.CellAddress
		c    sheetcalc.Comment
	}
	items := make([]kv, 0, len(ws.Comments()))
	for addr, c := range ws.Comments() {
		items = append(items, kv{addr, c})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].addr.Row != items[j].addr.Row {
			return items[i].addr.Row < items[j].addr.Row
		}
		return items[i].addr.Col < items[j].addr.Col
	})
	for _, it := range items {
		if _, ok := authorIdx[it.c.Author]; !ok {
			authorIdx[it.c.Author] = len(out.Authors)
			out.Authors = append(out.Authors, it.c.Author)
		}
	}
	for _, it := range items {
		out.CommentList = append(out.CommentList, ctComment{
			Ref: sheetcalc.FormatAddress(it.addr), AuthorID: authorIdx[it.c.Author],
			Text: ctCmtText{T: escapeXHex(it.c.Text)},
		})
	}
	return out
}

// stylePlan collects the de-duplicated font/fill/border/numFmt pools a
// workbook's StylePool resolves to. Pool order is independent of StylePool's own id order: fonts, fills,
// borders and number formats are deduped separately, and the cellXfs
// array is what ties a style id to an index in each pool.
type stylePlan struct {
	fonts   []sheetcalc.Font
	fills   []sheetcalc.Fill
	borders []sheetcalc.Border
	numFmts []sheetcalc.NumberFormat // only the custom (id >= 164) ones

	fontIdx   map[string]int
	fillIdx   map[string]int
	borderIdx map[string]int
	numFmtIdx map[string]int

	xfNumFmt, xfFont, xfFill, xfBorder []int
	xfAlign                            []sheetcalc.Alignment
	xfProtect                          []sheetcalc.Protection
}

func newStylePlan(pool *sheetcalc.StylePool) *stylePlan {
	sp := &stylePlan{
		fontIdx: map[string]int{}, fillIdx: map[string]int{},
		borderIdx: map[string]int{}, numFmtIdx: map[string]int{},
	}
	// Default font/fill/border always occupy index 0, matching the
	// default xf at cellXfs index 0.
	sp.internFont(sheetcalc.Font{})
	sp.internFill(sheetcalc.Fill{})
	sp.internBorder(sheetcalc.Border{})
	for _, st := range pool.All() {
		numFmtID := sp.internNumFmt(st.NumberFmt)
		sp.xfNumFmt = append(sp.xfNumFmt, numFmtID)
		sp.xfFont = append(sp.xfFont, sp.internFont(st.Font))
		sp.xfFill = append(sp.xfFill, sp.internFill(st.Fill))
		sp.xfBorder = append(sp.xfBorder, sp.internBorder(st.Border))
		sp.xfAlign = append(sp.xfAlign, st.Alignment)
		sp.xfProtect = append(sp.xfProtect, st.Protection)
	}
	return sp
}

func (sp *stylePlan) internFont(f sheetcalc.Font) int {
	k := fmt.Sprintf("%s|%g|%t|%t|%t|%t|%v", f.Name, f.Size, f.Bold, f.Italic, f.Underline, f.Strike, f.Color)
	if i, ok := sp.fontIdx[k]; ok {
		return i
	}
	i := len(sp.fonts)
	sp.fonts = append(sp.fonts, f)
	sp.fontIdx[k] = i
	return i
}

func (sp *stylePlan) internFill(f sheetcalc.Fill) int {
	k := fmt.Sprintf("%v|%v|%s|%v|%v|%v|%g|%v", f.Kind, f.Solid, f.Pattern, f.FG, f.BG, f.GradientType, f.Angle, f.Stops)
	if i, ok := sp.fillIdx[k]; ok {
		return i
	}
	i := len(sp.fills)
	sp.fills = append(sp.fills, f)
	sp.fillIdx[k] = i
	return i
}

func (sp *stylePlan) internBorder(b sheetcalc.Border) int {
	k := fmt.Sprintf("%v|%v|%v|%v|%v|%t|%t", b.Left, b.Right, b.Top, b.Bottom, b.Diagonal, b.DiagonalUp, b.DiagonalDown)
	if i, ok := sp.borderIdx[k]; ok {
		return i
	}
	i := len(sp.borders)
	sp.borders = append(sp.borders, b)
	sp.borderIdx[k] = i
	return i
}

func (sp *stylePlan) internNumFmt(n sheetcalc.NumberFormat) int {
	if n.FormatCode == "" {
		return 0
	}
	if id, ok := builtinNumFmtID(n.FormatCode); ok {
		return id
	}
	if id, ok := sp.numFmtIdx[n.FormatCode]; ok {
		return id
	}
	id := firstCustomNumFmtID + len(sp.numFmts)
	sp.numFmts = append(sp.numFmts, sheetcalc.NumberFormat{ID: id, FormatCode: n.FormatCode})
	sp.numFmtIdx[n.FormatCode] = id
	return id
}

func (sp *stylePlan) stylesXML(dxf *dxfPool) *ctStyleSheet {
	out := &ctStyleSheet{Xmlns: nsMain}
	if len(sp.numFmts) > 0 {
		nf := &ctNumFmts{Count: len(sp.numFmts)}
		for _, n := range sp.numFmts {
			nf.NumFmt = append(nf.NumFmt, ctNumFmt{ID: n.ID, FormatCode: n.FormatCode})
		}
		out.NumFmts = nf
	}
	out.Fonts.Count = len(sp.fonts)
	for _, f := range sp.fonts {
		out.Fonts.Font = append(out.Fonts.Font, *fontToXML(f))
	}
	out.Fills.Count = len(sp.fills)
	for _, f := range sp.fills {
		out.Fills.Fill = append(out.Fills.Fill, *fillToXML(f))
	}
	out.Borders.Count = len(sp.borders)
	for _, b := range sp.borders {
		out.Borders.Border = append(out.Borders.Border, *borderToXML(b))
	}
	out.CellXfs.Count = len(sp.xfNumFmt)
	for i := range sp.xfNumFmt {
		out.CellXfs.Xf = append(out.CellXfs.Xf, ctXf{
			NumFmtID: sp.xfNumFmt[i], FontID: sp.xfFont[i], FillID: sp.xfFill[i], BorderID: sp.xfBorder[i],
			ApplyNumFmt: sp.xfNumFmt[i] != 0,
			Alignment:   alignmentToXML(sp.xfAlign[i]),
			Protection:  protectionToXML(sp.xfProtect[i]),
		})
	}
	if len(dxf.entries) > 0 {
		d := &ctDxfs{Count: len(dxf.entries)}
		for _, e := range dxf.entries {
			d.Dxf = append(d.Dxf, dxfToXML(e))
		}
		out.Dxfs = d
	}
	return out
}

// dxfPool assigns sequential dxfId values to DXF records referenced by
// cellIs/expression conditional-formatting rules. Unlike stylePlan it
// does not deduplicate structurally (DXF.Equal is a deep comparison, not
// a hashable key) — every qualifying rule gets its own dxf entry.
type dxfPool struct {
	entries []sheetcalc.DXF
}

func (p *dxfPool) add(d sheetcalc.DXF) int {
	id := len(p.entries)
	p.entries = append(p.entries, d)
	return id
}

func worksheetXML(b *sheetcalc.Workbook, ws *sheetcalc.Worksheet, cfDxfIDs []*int) *ctWorksheet {
	out := &ctWorksheet{Xmlns: nsMain, XmlnsR: nsR}
	if cols := coalesceCols(ws); len(cols) > 0 {
		out.Cols = &ctCols{Col: cols}
	}
	for _, row := range ws.Storage().Rows() {
		cr := ctRow{R: row + 1}
		if m, ok := ws.RowMetaOf(row); ok {
			if m.HeightSet {
				cr.Ht = m.Height
			}
			cr.Hidden = m.Hidden
			cr.Outline = m.Outline
		}
		for _, col := range ws.Storage().ColumnsInRow(row) {
			addr := sheetcalc.CellAddress{Row: row, Col: uint32(col)}
			cr.C = append(cr.C, cellXML(b, ws, addr))
		}
		out.SheetData.Row = append(out.SheetData.Row, cr)
	}
	if merges := ws.MergedRegions(); len(merges) > 0 {
		mc := &ctMergeCells{Count: len(merges)}
		for _, m := range merges {
			mc.Cell = append(mc.Cell, ctMergeCell{Ref: sheetcalc.FormatRange(m.Range)})
		}
		out.MergeCells = mc
	}
	for j, cf := range ws.ConditionalFormats() {
		out.ConditionalFormatting = append(out.ConditionalFormatting, conditionalFormattingXML(cf, cfDxfIDs[j]))
	}
	if dvs := ws.DataValidations(); len(dvs) > 0 {
		dvEl := &ctDataValidations{Count: len(dvs)}
		for _, dv := range dvs {
			dvEl.Validation = append(dvEl.Validation, ctDataValidation{
				Type: string(dv.Type), Operator: string(dv.Operator), Sqref: sheetcalc.FormatRange(dv.Range),
				AllowBlank: dv.AllowBlank, ShowErrorMessage: dv.ShowErrorAlert,
				ErrorTitle: dv.ErrorTitle, Error: dv.ErrorMessage,
				Formula1: dv.Formula1, Formula2: dv.Formula2,
			})
		}
		out.DataValidations = dvEl
	}
	return out
}

func conditionalFormattingXML(cf sheetcalc.ConditionalFormat, dxfID *int) ctConditionalFormatting {
	rule := ctCfRule{Type: string(cf.Type), Operator: string(cf.Operator), Priority: cf.Priority, DxfID: dxfID}
	if cf.Formula1 != "" {
		rule.Formula = append(rule.Formula, cf.Formula1)
	}
	if cf.Formula2 != "" {
		rule.Formula = append(rule.Formula, cf.Formula2)
	}
	return ctConditionalFormatting{Sqref: sheetcalc.FormatRange(cf.Range), CfRule: []ctCfRule{rule}}
}

func cellXML(b *sheetcalc.Workbook, ws *sheetcalc.Worksheet, addr sheetcalc.CellAddress) ctC {
	c := ctC{R: sheetcalc.FormatAddress(addr), S: ws.CellStyleID(addr)}
	rec := ws.GetCell(addr)
	v := rec
	if rec.IsFormula() {
		c.F = &ctF{Text: strings.TrimPrefix(rec.Formula.Text, "=")}
		v = rec.Formula.CachedValue()
	}
	switch v.Kind {
	case sheetcalc.KindNumber:
		c.V = strconv.FormatFloat(v.Num, 'g', -1, 64)
	case sheetcalc.KindBoolean:
		c.T = "b"
		if v.Bool {
			c.V = "1"
		} else {
			c.V = "0"
		}
	case sheetcalc.KindString:
		c.T = "s"
		c.V = strconv.FormatUint(uint64(v.Str.ID()), 10)
	case sheetcalc.KindError:
		c.T = "e"
		c.V = v.Err.String()
	}
	return c
}

// coalesceCols merges contiguous columns sharing identical metadata into
// single <col min= max=> runs.
func coalesceCols(ws *sheetcalc.Worksheet) []ctCol {
	cols := ws.SortedColMeta()
	var out []ctCol
	i := 0
	for i < len(cols) {
		start := cols[i]
		m, _ := ws.ColMetaOf(start)
		j := i + 1
		for j < len(cols) && cols[j] == cols[j-1]+1 {
			nm, _ := ws.ColMetaOf(cols[j])
			if nm != m {
				break
			}
			j++
		}
		width := m.Width
		if !m.WidthSet {
			width = 0
		}
		out = append(out, ctCol{Min: start + 1, Max: cols[j-1] + 1, Width: width, Hidden: m.Hidden, Style: m.StyleID, Outline: m.Outline})
		i = j
	}
	return out
}
