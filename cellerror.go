package sheetcalc

// CellErrorKind is one of the ten Excel error values a cell can hold.
// Unlike OpError, a CellErrorKind is a plain value that flows through
// arithmetic — it is never raised as a Go error.
type CellErrorKind uint8

const (
	ErrNull CellErrorKind = iota + 1
	ErrDiv0
	ErrValue
	ErrRef
	ErrName
	ErrNum
	ErrNA
	ErrGettingData
	ErrSpill
	ErrCalc
)

var cellErrorText = map[CellErrorKind]string{
	ErrNull:        "#NULL!",
	ErrDiv0:        "#DIV/0!",
	ErrValue:       "#VALUE!",
	ErrRef:         "#REF!",
	ErrName:        "#NAME?",
	ErrNum:         "#NUM!",
	ErrNA:          "#N/A",
	ErrGettingData: "#GETTING_DATA",
	ErrSpill:       "#SPILL!",
	ErrCalc:        "#CALC!",
}

var textToCellError map[string]CellErrorKind

func init() {
	textToCellError = make(map[string]CellErrorKind, len(cellErrorText))
	for k, v := range cellErrorText {
		textToCellError[v] = k
	}
}

func (k CellErrorKind) String() string {
	if s, ok := cellErrorText[k]; ok {
		return s
	}
	return "#ERROR!"
}

// ParseCellError parses an error literal such as "#DIV/0!" into its kind.
// ok is false if s is not one of the ten recognized spellings.
func ParseCellError(s string) (CellErrorKind, bool) {
	k, ok := textToCellError[s]
	return k, ok
}
