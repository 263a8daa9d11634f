package xlsx

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"

	"github.com/sheetcalc/sheetcalc"
)

// Decode implements sheetcalc.Codec, reading a ZIP/OOXML package into a
// freshly constructed Workbook. Parts are read in the dependency order a
// consumer needs them: workbook.xml and its rels first (to learn sheet
// names/order), then sharedStrings.xml and styles.xml (referenced by
// cell records), then each worksheet part.
func Decode(r io.Reader) (*sheetcalc.Workbook, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, sheetcalc.NewOpError(sheetcalc.ErrIO, err)
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, sheetcalc.NewOpError(sheetcalc.ErrCorruptFile, err)
	}
	files := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		files[f.Name] = f
	}
	if _, ok := files["xl/workbook.xml"]; !ok {
		return nil, sheetcalc.NewOpErrorf(sheetcalc.ErrInvalidFormat, "missing xl/workbook.xml")
	}

	var wb cTWorkbook
	if err := unmarshalPart(files, "xl/workbook.xml", &wb); err != nil {
		return nil, err
	}
	rels, err := readRelationships(files, "xl/_rels/workbook.xml.rels")
	if err != nil {
		return nil, err
	}

	book := sheetcalc.New()

	if err := readSharedStrings(files, book); err != nil {
		return nil, err
	}
	xfStyles, dxfs, err := readStyles(files, book)
	if err != nil {
		return nil, err
	}

	for i, sh := range wb.Sheets.Sheet {
		target, ok := rels[sh.RID]
		if !ok {
			return nil, sheetcalc.NewOpErrorf(sheetcalc.ErrCorruptFile, "sheet %q: unresolved relationship %q", sh.Name, sh.RID).WithPart("xl/_rels/workbook.xml.rels", 0)
		}
		partName := resolveTarget("xl/", target)

		var idx int
		if i == 0 {
			idx = 0
			if err := book.RenameSheet(0, sh.Name); err != nil {
				return nil, sheetcalc.NewOpError(sheetcalc.ErrInvalidFormat, err)
			}
		} else {
			var aerr error
			idx, aerr = book.AddSheet(sh.Name)
			if aerr != nil {
				return nil, sheetcalc.NewOpError(sheetcalc.ErrInvalidFormat, aerr)
			}
		}
		ws, _ := book.WorksheetByIndex(idx)
		if err := readWorksheet(files, partName, book, ws, xfStyles, dxfs); err != nil {
			return nil, err
		}
	}

	if wb.DefinedNames != nil {
		for _, dn := range wb.DefinedNames.DefinedName {
			if dn.LocalSheetID != nil {
				continue // sheet-scoped names are not modeled
			}
			if err := book.DefineName(dn.Name, dn.RefersTo); err != nil {
				return nil, sheetcalc.NewOpError(sheetcalc.ErrInvalidFormat, err)
			}
		}
	}
	if wb.CalcPr != nil {
		calc := book.Calc
		if wb.CalcPr.CalcMode == "manual" {
			calc.Mode = sheetcalc.CalcManual
		} else {
			calc.Mode = sheetcalc.CalcAutomatic
		}
		calc.Iterative = wb.CalcPr.Iterate
		if wb.CalcPr.IterateCount > 0 {
			calc.MaxIterations = wb.CalcPr.IterateCount
		}
		if wb.CalcPr.IterateDelta > 0 {
			calc.MaxChange = wb.CalcPr.IterateDelta
		}
		book.Calc = calc
	}
	return book, nil
}

func unmarshalPart(files map[string]*zip.File, name string, v any) error {
	f, ok := files[name]
	if !ok {
		return sheetcalc.NewOpErrorf(sheetcalc.ErrInvalidFormat, "missing part %q", name)
	}
	rc, err := f.Open()
	if err != nil {
		return sheetcalc.NewOpError(sheetcalc.ErrIO, err).WithPart(name, 0)
	}
	defer rc.Close()
	if err := xml.NewDecoder(rc).Decode(v); err != nil {
		line := 0
		var se *xml.SyntaxError
		if errors.As(err, &se) {
			line = se.Line
		}
		return sheetcalc.NewOpError(sheetcalc.ErrCorruptFile, err).WithPart(name, line)
	}
	return nil
}

func readRelationships(files map[string]*zip.File, name string) (map[string]string, error) {
	out := map[string]string{}
	if _, ok := files[name]; !ok {
		return out, nil
	}
	var rels relationships
	if err := unmarshalPart(files, name, &rels); err != nil {
		return nil, err
	}
	for _, r := range rels.Rels {
		out[r.ID] = r.Target
	}
	return out, nil
}

// resolveTarget joins a package-relative relationship target (which may
// start with "../") against base, producing a package-rooted part name.
func resolveTarget(base, target string) string {
	if strings.HasPrefix(target, "/") {
		return target[1:]
	}
	return path.Clean(path.Join(base, target))
}

func readSharedStrings(files map[string]*zip.File, book *sheetcalc.Workbook) error {
	if _, ok := files["xl/sharedStrings.xml"]; !ok {
		return nil
	}
	var sst ctSst
	if err := unmarshalPart(files, "xl/sharedStrings.xml", &sst); err != nil {
		return err
	}
	for _, si := range sst.SI {
		text := unescapeXHex(si.T)
		if text == "" && len(si.R) > 0 {
			var b strings.Builder
			for _, run := range si.R {
				b.WriteString(unescapeXHex(run.T))
			}
			text = b.String()
		}
		book.Strings().Intern(text)
	}
	return nil
}

// readStyles parses xl/styles.xml and returns, for each cellXfs entry in
// file order, the fully-resolved Style it denotes, plus the <dxfs> pool
// conditional-formatting rules index into.
func readStyles(files map[string]*zip.File, book *sheetcalc.Workbook) ([]sheetcalc.Style, []sheetcalc.DXF, error) {
	if _, ok := files["xl/styles.xml"]; !ok {
		return []sheetcalc.Style{sheetcalc.DefaultStyle}, nil, nil
	}
	var ss ctStyleSheet
	if err := unmarshalPart(files, "xl/styles.xml", &ss); err != nil {
		return nil, nil, err
	}

	customFmts := map[int]string{}
	if ss.NumFmts != nil {
		for _, nf := range ss.NumFmts.NumFmt {
			customFmts[nf.ID] = nf.FormatCode
		}
	}
	fonts := make([]sheetcalc.Font, len(ss.Fonts.Font))
	for i, f := range ss.Fonts.Font {
		fonts[i] = fontFromXML(&f)
	}
	fills := make([]sheetcalc.Fill, len(ss.Fills.Fill))
	for i, f := range ss.Fills.Fill {
		fills[i] = fillFromXML(&f)
	}
	borders := make([]sheetcalc.Border, len(ss.Borders.Border))
	for i, b := range ss.Borders.Border {
		borders[i] = borderFromXML(&b)
	}

	out := make([]sheetcalc.Style, len(ss.CellXfs.Xf))
	for i, xf := range ss.CellXfs.Xf {
		st := sheetcalc.Style{NumberFmt: numFmtFromXML(xf.NumFmtID, customFmts)}
		if xf.FontID >= 0 && xf.FontID < len(fonts) {
			st.Font = fonts[xf.FontID]
		}
		if xf.FillID >= 0 && xf.FillID < len(fills) {
			st.Fill = fills[xf.FillID]
		}
		if xf.BorderID >= 0 && xf.BorderID < len(borders) {
			st.Border = borders[xf.BorderID]
		}
		st.Alignment = alignmentFromXML(xf.Alignment)
		st.Protection = protectionFromXML(xf.Protection)
		out[i] = st
	}
	if len(out) == 0 {
		out = []sheetcalc.Style{sheetcalc.DefaultStyle}
	}

	var dxfs []sheetcalc.DXF
	if ss.Dxfs != nil {
		dxfs = make([]sheetcalc.DXF, len(ss.Dxfs.Dxf))
		for i, d := range ss.Dxfs.Dxf {
			dxfs[i] = dxfFromXML(d)
		}
	}
	return out, dxfs, nil
}

func readWorksheet(files map[string]*zip.File, partName string, book *sheetcalc.Workbook, ws *sheetcalc.Worksheet, xfStyles []sheetcalc.Style, dxfs []sheetcalc.DXF) error {
	var sheet ctWorksheet
	if err := unmarshalPart(files, partName, &sheet); err != nil {
		return err
	}

	if sheet.Cols != nil {
		for _, col := range sheet.Cols.Col {
			for c := col.Min; c <= col.Max; c++ {
				ws.SetColumnWidth(c-1, col.Width)
				ws.HideColumn(c-1, col.Hidden)
			}
		}
	}

	for _, row := range sheet.SheetData.Row {
		r := row.R - 1
		if row.Ht > 0 {
			ws.SetRowHeight(r, row.Ht)
		}
		if row.Hidden {
			ws.HideRow(r, true)
		}
		for _, c := range row.C {
			addr, err := sheetcalc.ParseAddress(c.R)
			if err != nil {
				return sheetcalc.NewOpError(sheetcalc.ErrInvalidFormat, err).WithPart(partName, 0)
			}
			if int(c.S) < len(xfStyles) {
				ws.SetCellStyle(addr, xfStyles[c.S])
			}
			if c.F != nil {
				// The cached <v>/t on a formula cell is not carried
				// over; SetFormula marks the cell dirty so a subsequent
				// recalculation repopulates it.
				if err := ws.SetFormula(addr, "="+c.F.Text); err != nil {
					return sheetcalc.NewOpError(sheetcalc.ErrInvalidFormat, err).WithPart(partName, 0)
				}
				continue
			}
			v, err := cellValue(book, c)
			if err != nil {
				return sheetcalc.NewOpError(sheetcalc.ErrInvalidFormat, err).WithPart(partName, 0)
			}
			if !v.IsEmpty() {
				if err := ws.SetCell(addr, v); err != nil {
					return sheetcalc.NewOpError(sheetcalc.ErrInvalidFormat, err).WithPart(partName, 0)
				}
			}
		}
	}

	if sheet.MergeCells != nil {
		for _, m := range sheet.MergeCells.Cell {
			rng, err := sheetcalc.ParseRange(m.Ref)
			if err != nil {
				return sheetcalc.NewOpError(sheetcalc.ErrInvalidFormat, err).WithPart(partName, 0)
			}
			if err := ws.Merge(rng); err != nil {
				return sheetcalc.NewOpError(sheetcalc.ErrInvalidFormat, err).WithPart(partName, 0)
			}
		}
	}

	for _, cf := range sheet.ConditionalFormatting {
		rng, err := sheetcalc.ParseRange(cf.Sqref)
		if err != nil {
			return sheetcalc.NewOpError(sheetcalc.ErrInvalidFormat, err).WithPart(partName, 0)
		}
		for _, rule := range cf.CfRule {
			out := sheetcalc.ConditionalFormat{
				Range: rng, Priority: rule.Priority,
				Type: sheetcalc.CFType(rule.Type), Operator: sheetcalc.CFOperator(rule.Operator),
			}
			if len(rule.Formula) > 0 {
				out.Formula1 = rule.Formula[0]
			}
			if len(rule.Formula) > 1 {
				out.Formula2 = rule.Formula[1]
			}
			if rule.DxfID != nil && *rule.DxfID < len(dxfs) {
				out.DXF = dxfs[*rule.DxfID]
			}
			ws.SetConditionalFormat(out)
		}
	}

	if sheet.DataValidations != nil {
		for _, dv := range sheet.DataValidations.Validation {
			rng, err := sheetcalc.ParseRange(dv.Sqref)
			if err != nil {
				return sheetcalc.NewOpError(sheetcalc.ErrInvalidFormat, err).WithPart(partName, 0)
			}
			ws.SetDataValidation(sheetcalc.DataValidation{
				Range: rng, Type: sheetcalc.DataValidationType(dv.Type), Operator: sheetcalc.CFOperator(dv.Operator),
				Formula1: dv.Formula1, Formula2: dv.Formula2,
				AllowBlank: dv.AllowBlank, ShowErrorAlert: dv.ShowErrorMessage,
				ErrorTitle: dv.ErrorTitle, ErrorMessage: dv.Error,
			})
		}
	}

	if err := readComments(files, partName, ws); err != nil {
		return err
	}
	return nil
}

func cellValue(book *sheetcalc.Workbook, c ctC) (sheetcalc.Value, error) {
	if c.V == "" && c.T != "s" {
		return sheetcalc.Empty, nil
	}
	switch c.T {
	case "s":
		id, err := strconv.ParseUint(c.V, 10, 32)
		if err != nil {
			return sheetcalc.Value{}, fmt.Errorf("cell %s: bad shared-string index %q: %w", c.R, c.V, err)
		}
		ss, ok := book.Strings().Lookup(uint32(id))
		if !ok {
			return sheetcalc.Value{}, fmt.Errorf("cell %s: shared-string index %d out of range", c.R, id)
		}
		return sheetcalc.StringValue(ss), nil
	case "str":
		return sheetcalc.StringValue(book.Strings().Intern(unescapeXHex(c.V))), nil
	case "b":
		return sheetcalc.BoolValue(c.V == "1"), nil
	case "e":
		kind, ok := sheetcalc.ParseCellError(c.V)
		if !ok {
			return sheetcalc.Value{}, fmt.Errorf("cell %s: unknown error code %q", c.R, c.V)
		}
		return sheetcalc.ErrorValue(kind), nil
	default:
		n, err := strconv.ParseFloat(c.V, 64)
		if err != nil {
			return sheetcalc.Value{}, fmt.Errorf("cell %s: bad numeric value %q: %w", c.R, c.V, err)
		}
		return sheetcalc.NumberValue(n), nil
	}
}

func readComments(files map[string]*zip.File, sheetPartName string, ws *sheetcalc.Worksheet) error {
	dir, base := path.Split(sheetPartName)
	relsName := dir + "_rels/" + base + ".rels"
	if _, ok := files[relsName]; !ok {
		return nil
	}
	rels, err := readRelationships(files, relsName)
	if err != nil {
		return err
	}
	var commentsTarget string
	for _, target := range rels {
		if strings.Contains(target, "comments") {
			commentsTarget = target
			break
		}
	}
	if commentsTarget == "" {
		return nil
	}
	partName := resolveTarget(dir, commentsTarget)
	if _, ok := files[partName]; !ok {
		return nil
	}
	var cm ctComments
	if err := unmarshalPart(files, partName, &cm); err != nil {
		return err
	}
	for _, c := range cm.CommentList {
		addr, err := sheetcalc.ParseAddress(c.Ref)
		if err != nil {
			return sheetcalc.NewOpError(sheetcalc.ErrInvalidFormat, err).WithPart(partName, 0)
		}
		author := ""
		if c.AuthorID >= 0 && c.AuthorID < len(cm.Authors) {
			author = cm.Authors[c.AuthorID]
		}
		ws.SetComment(sheetcalc.Comment{Addr: addr, Author: author, Text: unescapeXHex(c.Text.T)})
	}
	return nil
}
