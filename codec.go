package sheetcalc

import (
	"bytes"
	"io"
	"os"
	"strings"
)

// Format identifies an on-disk spreadsheet encoding.
type Format int

const (
	FormatXLSX Format = iota
	FormatCSV
	FormatXLS
)

// Codec decodes/encodes a Workbook for one Format. The sheetcalc/xlsx,
// sheetcalc/csv and sheetcalc/xls subpackages each register themselves
// via RegisterCodec at init time (the same self-registration idiom the
// standard library uses for image.RegisterFormat/sql.Register), which
// keeps this root package free of an import cycle back to its own
// codec subpackages.
type Codec interface {
	Decode(r io.Reader) (*Workbook, error)
	Encode(w io.Writer, b *Workbook) error
}

var codecs = map[Format]Codec{}

// RegisterCodec installs the Codec responsible for Format. Called from
// the init() of sheetcalc/xlsx, sheetcalc/csv, and sheetcalc/xls; a
// program that only imports sheetcalc itself has no working codec and
// Open/Save fail with UnsupportedVersion.
func RegisterCodec(f Format, c Codec) { codecs[f] = c }

func formatFromPath(path string) (Format, error) {
	switch strings.ToLower(pathExt(path)) {
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	case ".csv":
		return FormatCSV, nil
	case ".xls":
		return FormatXLS, nil
	default:
		return 0, NewOpErrorf(ErrInvalidFormat, "unrecognized file extension %q", pathExt(path))
	}
}

func pathExt(path string) string {
	i := strings.LastIndexByte(path, '.')
	if i < 0 {
		return ""
	}
	return path[i:]
}

// Open reads path, detecting its format from the file extension (spec
// §6 "open(path)").
func Open(path string) (*Workbook, error) {
	f, err := formatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, NewOpError(ErrIO, err).WithPart(path, 0)
	}
	return LoadBytes(data, f)
}

// LoadBytes decodes a workbook from an in-memory buffer of the given
// format.
func LoadBytes(data []byte, f Format) (*Workbook, error) {
	codec, ok := codecs[f]
	if !ok {
		return nil, NewOpErrorf(ErrUnsupportedVersion, "no codec registered for format %d", f)
	}
	return codec.Decode(bytes.NewReader(data))
}

// Save writes the workbook to path, detecting the target format from
// its extension.
func (b *Workbook) Save(path string) error {
	f, err := formatFromPath(path)
	if err != nil {
		return err
	}
	data, err := b.SaveBytes(f)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return NewOpError(ErrIO, err).WithPart(path, 0)
	}
	return nil
}

// SaveBytes encodes the workbook into an in-memory buffer of the given
// format.
func (b *Workbook) SaveBytes(f Format) ([]byte, error) {
	codec, ok := codecs[f]
	if !ok {
		return nil, NewOpErrorf(ErrUnsupportedVersion, "no codec registered for format %d", f)
	}
	var buf bytes.Buffer
	if err := codec.Encode(&buf, b); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Strings exposes the workbook's shared-string pool for codec use.
func (b *Workbook) Strings() *StringPool { return b.strings }

// Styles exposes the workbook's style pool for codec use.
func (b *Workbook) Styles() *StylePool { return b.styles }

// Graph exposes the workbook's dependency graph for codec use (e.g. to
// mark cells dirty after a bulk load completes).
func (b *Workbook) Graph() *DependencyGraph { return b.graph }
