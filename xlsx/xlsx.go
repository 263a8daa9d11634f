// Package xlsx implements the XLSX/OOXML codec: reading and writing the
// ZIP package of cross-referencing XML parts that make up a .xlsx
// workbook. It registers itself with the sheetcalc package's codec
// table on import, the same self-registration idiom the standard
// library uses for image.RegisterFormat.
package xlsx

import (
	"io"

	"github.com/sheetcalc/sheetcalc"
)

func init() {
	sheetcalc.RegisterCodec(sheetcalc.FormatXLSX, codec{})
}

type codec struct{}

func (codec) Decode(r io.Reader) (*sheetcalc.Workbook, error) { return Decode(r) }
func (codec) Encode(w io.Writer, b *sheetcalc.Workbook) error { return Encode(w, b) }
