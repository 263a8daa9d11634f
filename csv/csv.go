// Package csv implements the CSV codec: streaming row read/write with
// configurable delimiter, quote character, and type detection,
// registering itself against the root sheetcalc package's codec
// registry.
package csv

import (
	"bufio"
	"io"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/sheetcalc/sheetcalc"
)

func init() {
	sheetcalc.RegisterCodec(sheetcalc.FormatCSV, codec{})
}

// codec adapts Read/Write to the sheetcalc.Codec interface using the
// package defaults; callers wanting non-default delimiter, quote, or
// charset use Read/Write (or NewReader/NewWriter) directly.
type codec struct{}

func (codec) Decode(r io.Reader) (*sheetcalc.Workbook, error) {
	return Read(r, DefaultReadOptions())
}

func (codec) Encode(w io.Writer, b *sheetcalc.Workbook) error {
	ws, err := b.Worksheet(0)
	if err != nil {
		return err
	}
	return Write(w, ws, DefaultWriteOptions())
}

// TypeDetection selects how a CSV field's text is converted to a Value
// on read.
type TypeDetection int

const (
	// AllStrings stores every field verbatim as a String.
	AllStrings TypeDetection = iota
	// Auto promotes a field to Number if it parses as a finite float64
	// with no surrounding whitespace, else to Boolean if
	// case-insensitively equal to "true"/"false", else String; an
	// ISO-8601 "YYYY-MM-DD" field additionally promotes to Number as an
	// Excel date serial.
	Auto
)

// QuoteStyle selects when Write quotes a field.
type QuoteStyle int

const (
	// QuoteNecessary quotes only fields containing the delimiter, the
	// quote character, or a line break.
	QuoteNecessary QuoteStyle = iota
	// QuoteAlways quotes every field.
	QuoteAlways
	// QuoteNever never quotes, even if the field is ambiguous without it.
	QuoteNever
)

// ReadOptions configures Read/NewReader.
type ReadOptions struct {
	// Delimiter is the field separator. Zero auto-detects it by peeking
	// at the first KB of input and taking the first non-alphanumeric,
	// non-quote, non-underscore rune.
	Delimiter rune
	// Quote is the quote character. Defaults to '"' when zero.
	Quote rune
	// HasHeader, when true, makes Read skip the first record instead of
	// storing it as row 0.
	HasHeader bool
	// Typing selects the per-field conversion strategy.
	Typing TypeDetection
	// Charset names a non-UTF-8 input encoding resolved via
	// golang.org/x/text/encoding/htmlindex; empty or "utf-8" leaves the
	// input untouched.
	Charset string
}

// DefaultReadOptions returns comma-delimited, double-quoted, Auto-typed
// options with no header and UTF-8 input.
func DefaultReadOptions() ReadOptions {
	return ReadOptions{Delimiter: ',', Quote: '"', Typing: Auto}
}

// WriteOptions configures Write/NewWriter.
type WriteOptions struct {
	Delimiter  rune
	Quote      rune
	Quoting    QuoteStyle
	Terminator string // "\n" or "\r\n"
	Charset    string
}

// DefaultWriteOptions returns comma-delimited, double-quoted,
// quote-when-necessary options with "\n" line endings and UTF-8 output.
func DefaultWriteOptions() WriteOptions {
	return WriteOptions{Delimiter: ',', Quote: '"', Quoting: QuoteNecessary, Terminator: "\n"}
}

func getEncoding(charset string) (encoding.Encoding, error) {
	name := strings.ToLower(strings.TrimSpace(charset))
	if name == "" || name == "utf-8" || name == "utf8" {
		return nil, nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, sheetcalc.NewOpErrorf(sheetcalc.ErrInvalidFormat, "%q: %v", charset, err)
	}
	return enc, nil
}

// sniffDelimiter returns the first rune in the peeked prefix that isn't
// a quote, underscore, letter, or digit, taken as the field separator.
func sniffDelimiter(peek []byte) rune {
	for _, r := range string(peek) {
		if r == '"' || r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r) {
			continue
		}
		return r
	}
	return ','
}

// Reader streams CSV records one at a time over a rune scanner, so a
// record's quoted fields may themselves span embedded newlines without
// the whole file being buffered in memory.
type Reader struct {
	br    *bufio.Reader
	delim rune
	quote rune
}

// NewReader wraps r, resolving opts.Charset and auto-detecting
// opts.Delimiter if it is zero.
func NewReader(r io.Reader, opts ReadOptions) (*Reader, error) {
	enc, err := getEncoding(opts.Charset)
	if err != nil {
		return nil, err
	}
	if enc != nil {
		r = enc.NewDecoder().Reader(r)
	}
	br := bufio.NewReaderSize(r, 1<<16)

	delim := opts.Delimiter
	if delim == 0 {
		peek, _ := br.Peek(1024)
		delim = sniffDelimiter(peek)
	}
	quote := opts.Quote
	if quote == 0 {
		quote = '"'
	}
	return &Reader{br: br, delim: delim, quote: quote}, nil
}

// Field is one CSV record's cell, with whether it appeared quoted in the
// source text. A quoted field is always read back as a String — quoting
// is how a source preserves something that looks numeric (a leading
// zero, a quoted "7") as literal text, so Auto typing defers to it.
type Field struct {
	Text   string
	Quoted bool
}

// ReadRecord returns the next CSV record, or io.EOF once the stream is
// exhausted.
func (cr *Reader) ReadRecord() ([]Field, error) {
	var record []Field
	var field strings.Builder
	wasQuoted := false
	sawAny := false
	inQuotes := false
	for {
		ch, _, err := cr.br.ReadRune()
		if err != nil {
			if sawAny || field.Len() > 0 || len(record) > 0 {
				record = append(record, Field{field.String(), wasQuoted})
				return record, nil
			}
			return nil, err
		}
		sawAny = true
		switch {
		case inQuotes:
			if ch == cr.quote {
				next, _, perr := cr.br.ReadRune()
				if perr == nil && next == cr.quote {
					field.WriteRune(cr.quote)
					continue
				}
				if perr == nil {
					cr.br.UnreadRune()
				}
				inQuotes = false
				continue
			}
			field.WriteRune(ch)
		case ch == cr.quote && field.Len() == 0:
			inQuotes = true
			wasQuoted = true
		case ch == cr.delim:
			record = append(record, Field{field.String(), wasQuoted})
			field.Reset()
			wasQuoted = false
		case ch == '\r':
			// swallowed; '\n' (or EOF) ends the record
		case ch == '\n':
			record = append(record, Field{field.String(), wasQuoted})
			return record, nil
		default:
			field.WriteRune(ch)
		}
	}
}

// detectValue converts one field's text to a Value per opts.Typing.
func detectValue(book *sheetcalc.Workbook, f Field, typing TypeDetection) sheetcalc.Value {
	if typing == AllStrings || f.Quoted {
		return sheetcalc.StringValue(book.Strings().Intern(f.Text))
	}
	if n, ok := parseFiniteFloat(f.Text); ok {
		return sheetcalc.NumberValue(n)
	}
	switch strings.ToLower(f.Text) {
	case "true":
		return sheetcalc.BoolValue(true)
	case "false":
		return sheetcalc.BoolValue(false)
	}
	if serial, ok := parseISODate(f.Text); ok {
		return sheetcalc.NumberValue(serial)
	}
	return sheetcalc.StringValue(book.Strings().Intern(f.Text))
}

// parseFiniteFloat accepts only an exact numeric spelling with no
// surrounding whitespace, matching the coercion rule formulas use for
// string-to-number conversion.
func parseFiniteFloat(s string) (float64, bool) {
	if s == "" || strings.TrimSpace(s) != s {
		return 0, false
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// parseISODate recognizes a strict "YYYY-MM-DD" field.
func parseISODate(s string) (float64, bool) {
	if len(s) != 10 || s[4] != '-' || s[7] != '-' {
		return 0, false
	}
	y, err1 := strconv.Atoi(s[0:4])
	m, err2 := strconv.Atoi(s[5:7])
	d, err3 := strconv.Atoi(s[8:10])
	if err1 != nil || err2 != nil || err3 != nil {
		return 0, false
	}
	if m < 1 || m > 12 || d < 1 || d > 31 {
		return 0, false
	}
	return sheetcalc.DateSerial(y, m, d), true
}

// Read decodes an entire CSV stream into a new single-sheet Workbook.
func Read(r io.Reader, opts ReadOptions) (*sheetcalc.Workbook, error) {
	book := sheetcalc.New()
	ws, err := book.Worksheet(0)
	if err != nil {
		return nil, err
	}
	if err := ReadInto(r, ws, opts); err != nil {
		return nil, err
	}
	return book, nil
}

// ReadInto decodes a CSV stream into ws, row 0 being the first (or, if
// opts.HasHeader, the second) record.
func ReadInto(r io.Reader, ws *sheetcalc.Worksheet, opts ReadOptions) error {
	cr, err := NewReader(r, opts)
	if err != nil {
		return err
	}
	book := ws.Book()
	row := uint32(0)
	skippedHeader := !opts.HasHeader
	for {
		record, err := cr.ReadRecord()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return sheetcalc.NewOpError(sheetcalc.ErrIO, err)
		}
		if !skippedHeader {
			skippedHeader = true
			continue
		}
		for col, field := range record {
			if field.Text == "" && !field.Quoted {
				continue
			}
			addr := sheetcalc.CellAddress{Row: row, Col: uint32(col)}
			if err := ws.SetCell(addr, detectValue(book, field, opts.Typing)); err != nil {
				return err
			}
		}
		row++
	}
}

// Writer streams records out one at a time.
type Writer struct {
	w          io.Writer
	delim      rune
	quote      rune
	quoting    QuoteStyle
	terminator string
}

// NewWriter wraps w with opts, resolving opts.Charset for the output
// encoding.
func NewWriter(w io.Writer, opts WriteOptions) (*Writer, error) {
	enc, err := getEncoding(opts.Charset)
	if err != nil {
		return nil, err
	}
	if enc != nil {
		w = enc.NewEncoder().Writer(w)
	}
	delim := opts.Delimiter
	if delim == 0 {
		delim = ','
	}
	quote := opts.Quote
	if quote == 0 {
		quote = '"'
	}
	term := opts.Terminator
	if term == "" {
		term = "\n"
	}
	return &Writer{w: w, delim: delim, quote: quote, quoting: opts.Quoting, terminator: term}, nil
}

// WriteRecord writes one record, quoting each field per the configured
// QuoteStyle.
func (cw *Writer) WriteRecord(fields []string) error {
	var b strings.Builder
	for i, f := range fields {
		if i > 0 {
			b.WriteRune(cw.delim)
		}
		cw.writeField(&b, f)
	}
	b.WriteString(cw.terminator)
	_, err := io.WriteString(cw.w, b.String())
	return err
}

func (cw *Writer) writeField(b *strings.Builder, f string) {
	needsQuote := cw.quoting == QuoteAlways ||
		(cw.quoting != QuoteNever && fieldNeedsQuoting(f, cw.delim, cw.quote))
	if !needsQuote {
		b.WriteString(f)
		return
	}
	b.WriteRune(cw.quote)
	for _, r := range f {
		if r == cw.quote {
			b.WriteRune(cw.quote)
		}
		b.WriteRune(r)
	}
	b.WriteRune(cw.quote)
}

func fieldNeedsQuoting(f string, delim, quote rune) bool {
	return strings.ContainsRune(f, delim) || strings.ContainsRune(f, quote) ||
		strings.ContainsAny(f, "\r\n")
}

// Write encodes one worksheet's used range to w as CSV.
func Write(w io.Writer, ws *sheetcalc.Worksheet, opts WriteOptions) error {
	cw, err := NewWriter(w, opts)
	if err != nil {
		return err
	}
	used, ok := ws.UsedRange()
	if !ok {
		return nil
	}
	for row := used.Start.Row; row <= used.End.Row; row++ {
		fields := make([]string, used.End.Col-used.Start.Col+1)
		for col := used.Start.Col; col <= used.End.Col; col++ {
			addr := sheetcalc.CellAddress{Row: row, Col: col}
			fields[col-used.Start.Col] = cellText(ws.GetCalculatedValue(addr))
		}
		if err := cw.WriteRecord(fields); err != nil {
			return sheetcalc.NewOpError(sheetcalc.ErrIO, err)
		}
	}
	return nil
}

// cellText renders a calculated Value the way a CSV field should look:
// no quoting decisions here, just text (the Writer decides quoting).
func cellText(v sheetcalc.Value) string {
	switch v.Kind {
	case sheetcalc.KindEmpty:
		return ""
	case sheetcalc.KindBoolean:
		if v.Bool {
			return "true"
		}
		return "false"
	case sheetcalc.KindNumber:
		return strconv.FormatFloat(v.Num, 'g', -1, 64)
	case sheetcalc.KindString:
		return v.Str.Text()
	case sheetcalc.KindError:
		return v.Err.String()
	case sheetcalc.KindFormula:
		return cellText(v.Formula.CachedValue())
	default:
		return ""
	}
}
