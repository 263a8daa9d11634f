package xls

import (
	"bytes"
	"testing"

	"github.com/sheetcalc/sheetcalc"
)

func TestDecodeOLE2SignatureReportsUnsupportedVersion(t *testing.T) {
	data := append(append([]byte{}, ole2Signature...), make([]byte, 32)...)
	_, err := Decode(bytes.NewReader(data))
	if !sheetcalc.IsOpCode(err, sheetcalc.ErrUnsupportedVersion) {
		t.Fatalf("Decode OLE2 file: err = %v, want ErrUnsupportedVersion", err)
	}
}

func TestDecodeNonOLE2ReportsInvalidFormat(t *testing.T) {
	_, err := Decode(bytes.NewReader([]byte("not an ole2 file")))
	if !sheetcalc.IsOpCode(err, sheetcalc.ErrInvalidFormat) {
		t.Fatalf("Decode garbage: err = %v, want ErrInvalidFormat", err)
	}
}

func TestEncodeUnsupported(t *testing.T) {
	book := sheetcalc.New()
	var buf bytes.Buffer
	if err := Encode(&buf, book); !sheetcalc.IsOpCode(err, sheetcalc.ErrUnsupportedVersion) {
		t.Fatalf("Encode: err = %v, want ErrUnsupportedVersion", err)
	}
}
