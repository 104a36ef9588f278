// Package spreadsheet reads the first worksheet of an xlsx workbook into
// typed cells and writes tabular xlsx reports.
package spreadsheet

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

type CellType int

const (
	CellTypeText CellType = iota
	CellTypeNumeric
	// CellTypeDate is a numeric cell whose number format renders a date.
	// Raw holds the serial; Formatted follows the workbook locale.
	CellTypeDate
)

// Cell is one worksheet cell. Raw is the stored value, Formatted the text
// produced by the cell's number format; either may be empty.
type Cell struct {
	Raw       string
	Type      CellType
	Formatted string
}

// Sheet exposes a worksheet by 1-based row and column. Row 1 is the header.
type Sheet interface {
	Name() string
	Header() []string
	LastRow() int
	Cell(row, col int) Cell
	// Blank reports whether every cell of the row is empty.
	Blank(row int) bool
}

var ErrNoSheets = errors.New("workbook has no worksheets")

// Workbook is a fully loaded first worksheet.
type Workbook struct {
	name      string
	formatted [][]string
	raw       [][]string
	types     map[[2]int]CellType
}

var _ Sheet = (*Workbook)(nil)

// Open reads the first worksheet of the xlsx document in r.
func Open(r io.Reader) (*Workbook, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrNoSheets
	}
	name := sheets[0]

	formatted, err := f.GetRows(name)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", name, err)
	}
	raw, err := f.GetRows(name, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q raw values: %w", name, err)
	}

	wb := &Workbook{
		name:      name,
		formatted: formatted,
		raw:       raw,
		types:     make(map[[2]int]CellType),
	}
	styles := dateStyles{f: f, known: make(map[int]bool)}
	for r, cols := range raw {
		for c, v := range cols {
			if v == "" {
				continue
			}
			axis, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return nil, err
			}
			ct, err := f.GetCellType(name, axis)
			if err != nil {
				return nil, fmt.Errorf("cell %s type: %w", axis, err)
			}
			if !numericCell(ct, v) {
				continue
			}
			kind := CellTypeNumeric
			isDate, err := styles.date(name, axis)
			if err != nil {
				return nil, err
			}
			if isDate {
				kind = CellTypeDate
			}
			wb.types[[2]int{r + 1, c + 1}] = kind
		}
	}
	return wb, nil
}

func numericCell(ct excelize.CellType, raw string) bool {
	switch ct {
	case excelize.CellTypeNumber, excelize.CellTypeDate:
		return true
	case excelize.CellTypeUnset:
		_, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		return err == nil
	default:
		return false
	}
}

// dateStyles caches, per style id, whether the style's number format is a date.
type dateStyles struct {
	f     *excelize.File
	known map[int]bool
}

func (d *dateStyles) date(sheet, axis string) (bool, error) {
	id, err := d.f.GetCellStyle(sheet, axis)
	if err != nil {
		return false, fmt.Errorf("cell %s style: %w", axis, err)
	}
	if v, ok := d.known[id]; ok {
		return v, nil
	}
	v := false
	// Unknown style ids are read as plain numbers.
	if style, err := d.f.GetStyle(id); err == nil {
		v = dateFormat(style.NumFmt, style.CustomNumFmt)
	}
	d.known[id] = v
	return v, nil
}

// dateFormat reports whether a built-in format id or a custom format code
// displays a calendar date. Time-only formats are not dates.
func dateFormat(id int, custom *string) bool {
	if custom != nil {
		return customDateFormat(*custom)
	}
	switch {
	case id >= 14 && id <= 17, id == 22:
		return true
	case id >= 27 && id <= 36, id >= 50 && id <= 58:
		// East Asian locale date formats.
		return true
	default:
		return false
	}
}

// customDateFormat looks for year or day tokens in the first section of a
// format code, ignoring quoted literals, escapes and bracketed modifiers.
func customDateFormat(code string) bool {
	if i := strings.IndexByte(code, ';'); i >= 0 {
		code = code[:i]
	}
	var quoted, bracket, escaped bool
	for _, r := range code {
		switch {
		case escaped:
			escaped = false
		case quoted:
			quoted = r != '"'
		case bracket:
			bracket = r != ']'
		case r == '\\':
			escaped = true
		case r == '"':
			quoted = true
		case r == '[':
			bracket = true
		case r == 'y', r == 'Y', r == 'd', r == 'D':
			return true
		}
	}
	return false
}

func (w *Workbook) Name() string {
	return w.name
}

// Header returns the first row as displayed, or nil for an empty sheet.
func (w *Workbook) Header() []string {
	if len(w.formatted) == 0 {
		return nil
	}
	return append([]string(nil), w.formatted[0]...)
}

func (w *Workbook) LastRow() int {
	return len(w.raw)
}

func (w *Workbook) Cell(row, col int) Cell {
	return Cell{
		Raw:       at(w.raw, row, col),
		Type:      w.types[[2]int{row, col}],
		Formatted: at(w.formatted, row, col),
	}
}

func (w *Workbook) Blank(row int) bool {
	if row < 1 || row > len(w.raw) {
		return true
	}
	for _, v := range w.raw[row-1] {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func at(rows [][]string, row, col int) string {
	if row < 1 || row > len(rows) {
		return ""
	}
	cols := rows[row-1]
	if col < 1 || col > len(cols) {
		return ""
	}
	return cols[col-1]
}
