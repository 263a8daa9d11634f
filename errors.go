package sheetcalc

import (
	"fmt"

	"github.com/pkg/errors"
)

// OpCode identifies the category of an operation error — the
// "operation error" plane, as opposed to cell errors which live inside
// the value model.
type OpCode int

const (
	ErrInternal OpCode = iota
	ErrInvalidReference
	ErrInvalidFormat
	ErrCorruptFile
	ErrUnsupportedVersion
	ErrOutOfBounds
	ErrInvalidArgument
	ErrBufferTooSmall
	ErrIO
	ErrFormulaParse
	ErrCircularReference
	ErrCancelled
)

func (c OpCode) String() string {
	switch c {
	case ErrInvalidReference:
		return "InvalidReference"
	case ErrInvalidFormat:
		return "InvalidFormat"
	case ErrCorruptFile:
		return "CorruptFile"
	case ErrUnsupportedVersion:
		return "UnsupportedVersion"
	case ErrOutOfBounds:
		return "OutOfBounds"
	case ErrInvalidArgument:
		return "InvalidArgument"
	case ErrBufferTooSmall:
		return "BufferTooSmall"
	case ErrIO:
		return "Io"
	case ErrFormulaParse:
		return "FormulaParse"
	case ErrCircularReference:
		return "CircularReference"
	case ErrCancelled:
		return "Cancelled"
	default:
		return "Internal"
	}
}

// OpError is an operation error: something that prevented an API call
// from proceeding, as opposed to a value a formula can produce (CellErrorKind).
type OpError struct {
	Code OpCode
	// Part names the offending XLSX/CSV part or file, when known.
	Part string
	// Line is a 1-based line number within Part, when known (0 if unknown).
	Line int
	Err  error
}

func (e *OpError) Error() string {
	if e.Part != "" {
		if e.Line > 0 {
			return fmt.Sprintf("%s: %s:%d: %v", e.Code, e.Part, e.Line, e.Err)
		}
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Part, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }

// NewOpError builds an OpError, wrapping cause with pkg/errors so a stack
// trace is attached for later diagnosis.
func NewOpError(code OpCode, cause error) *OpError {
	return &OpError{Code: code, Err: errors.WithStack(cause)}
}

// NewOpErrorf builds an OpError from a formatted message.
func NewOpErrorf(code OpCode, format string, args ...any) *OpError {
	return &OpError{Code: code, Err: errors.WithStack(fmt.Errorf(format, args...))}
}

// WithPart annotates an OpError with the offending part name and, if
// non-zero, a line number. Used by the XLSX reader to name the
// offending part and line number when possible.
func (e *OpError) WithPart(part string, line int) *OpError {
	e.Part = part
	e.Line = line
	return e
}

// IsOpCode reports whether err is an *OpError with the given code.
func IsOpCode(err error, code OpCode) bool {
	var oe *OpError
	for err != nil {
		if o, ok := err.(*OpError); ok {
			oe = o
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return oe != nil && oe.Code == code
}
