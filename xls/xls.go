// Package xls is a stub codec for the legacy BIFF8 (.xls) binary format.
// Full BIFF8 parsing is out of scope; this package exists so that
// sheetcalc.Open/LoadBytes recognize a .xls file and fail with a precise,
// typed error rather than falling through to the XLSX ZIP reader and
// failing with a confusing CorruptFile.
package xls

import (
	"bytes"
	"io"

	"github.com/sheetcalc/sheetcalc"
)

func init() {
	sheetcalc.RegisterCodec(sheetcalc.FormatXLS, codec{})
}

type codec struct{}

func (codec) Decode(r io.Reader) (*sheetcalc.Workbook, error) { return Decode(r) }
func (codec) Encode(w io.Writer, b *sheetcalc.Workbook) error { return Encode(w, b) }

// ole2Signature is the magic byte sequence that opens every Compound File
// Binary (OLE2) document, the container BIFF8 workbooks are stored in.
var ole2Signature = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}

// Decode sniffs the OLE2 compound-file signature and, if present, reports
// UnsupportedVersion: this package recognizes the container format but
// does not parse the BIFF8 records inside it.
func Decode(r io.Reader) (*sheetcalc.Workbook, error) {
	head := make([]byte, len(ole2Signature))
	n, err := io.ReadFull(r, head)
	if err != nil && err != io.ErrUnexpectedEOF {
		return nil, sheetcalc.NewOpError(sheetcalc.ErrIO, err)
	}
	if n == len(ole2Signature) && bytes.Equal(head, ole2Signature) {
		return nil, sheetcalc.NewOpErrorf(sheetcalc.ErrUnsupportedVersion,
			"xls: legacy BIFF8 (.xls) workbooks are not supported, convert to .xlsx first")
	}
	return nil, sheetcalc.NewOpErrorf(sheetcalc.ErrInvalidFormat, "xls: not an OLE2 compound file")
}

// Encode always fails: this codec is read-recognition only.
func Encode(w io.Writer, b *sheetcalc.Workbook) error {
	return sheetcalc.NewOpErrorf(sheetcalc.ErrUnsupportedVersion, "xls: writing legacy BIFF8 workbooks is not supported")
}
