package services

import (
	"strconv"
	"strings"

	"github.com/iota-uz/hrm-import/pkg/spreadsheet"
)

var errorTokens = map[string]struct{}{
	"#VALUE!": {},
	"#REF!":   {},
	"#N/A":    {},
	"#NAME?":  {},
	"#DIV/0!": {},
	"#NUM!":   {},
	"#NULL!":  {},
}

// Serial bounds for 1900-01-01 through 2100-12-31.
const (
	minDateSerial = 1
	maxDateSerial = 73415
)

// NormalizeCell reduces a spreadsheet cell to the string the validators see.
// Date-formatted cells become YYYY-MM-DD from their serial, since their
// display text depends on the workbook locale. Otherwise formatted text
// wins and unformatted numeric serials become dates.
func NormalizeCell(c spreadsheet.Cell) string {
	raw := strings.TrimSpace(c.Raw)
	if c.Type == spreadsheet.CellTypeDate {
		if d, ok := serialDate(raw); ok {
			return d
		}
	}
	if f := strings.TrimSpace(c.Formatted); f != "" {
		if _, bad := errorTokens[strings.ToUpper(f)]; !bad {
			return f
		}
	}
	if c.Type == spreadsheet.CellTypeNumeric || c.Type == spreadsheet.CellTypeDate {
		if d, ok := serialDate(raw); ok {
			return d
		}
	}
	switch strings.ToLower(raw) {
	case "null", "undefined":
		return ""
	}
	if _, bad := errorTokens[strings.ToUpper(raw)]; bad {
		return ""
	}
	return raw
}

func serialDate(raw string) (string, bool) {
	serial, err := strconv.ParseFloat(raw, 64)
	if err != nil || serial < minDateSerial || serial > maxDateSerial {
		return "", false
	}
	t, ok := DateFromSerial(serial)
	if !ok {
		return "", false
	}
	return FormatDate(t), true
}
