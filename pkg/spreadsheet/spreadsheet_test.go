package spreadsheet_test

import (
	"bytes"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/iota-uz/hrm-import/pkg/spreadsheet"
)

func buildWorkbook(t *testing.T, fill func(f *excelize.File, sheet string)) *bytes.Buffer {
	t.Helper()

	f := excelize.NewFile()
	t.Cleanup(func() { _ = f.Close() })
	fill(f, "Sheet1")
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

func TestOpen_ReadsHeaderAndTypedCells(t *testing.T) {
	t.Parallel()

	joined := time.Date(1990, time.January, 15, 0, 0, 0, 0, time.UTC)
	buf := buildWorkbook(t, func(f *excelize.File, sheet string) {
		require.NoError(t, f.SetSheetRow(sheet, "A1", &[]any{"الاسم", "الراتب", "تاريخ الالتحاق"}))
		require.NoError(t, f.SetSheetRow(sheet, "A2", &[]any{"Ali", 4500, joined}))
		require.NoError(t, f.SetSheetRow(sheet, "A4", &[]any{"Omar"}))
	})

	wb, err := spreadsheet.Open(buf)
	require.NoError(t, err)

	assert.Equal(t, "Sheet1", wb.Name())
	assert.Equal(t, []string{"الاسم", "الراتب", "تاريخ الالتحاق"}, wb.Header())
	assert.Equal(t, 4, wb.LastRow())

	name := wb.Cell(2, 1)
	assert.Equal(t, spreadsheet.CellTypeText, name.Type)
	assert.Equal(t, "Ali", name.Raw)
	assert.Equal(t, "Ali", name.Formatted)

	salary := wb.Cell(2, 2)
	assert.Equal(t, spreadsheet.CellTypeNumeric, salary.Type)
	assert.Equal(t, "4500", salary.Raw)

	date := wb.Cell(2, 3)
	assert.Equal(t, spreadsheet.CellTypeDate, date.Type)
	assert.NotEmpty(t, date.Formatted)
	serial, err := strconv.ParseFloat(date.Raw, 64)
	require.NoError(t, err)
	assert.InDelta(t, 32888, serial, 0.001)

	assert.False(t, wb.Blank(2))
	assert.True(t, wb.Blank(3))
	assert.False(t, wb.Blank(4))
	assert.True(t, wb.Blank(99))
}

func TestOpen_FlagsDateFormattedCells(t *testing.T) {
	t.Parallel()

	ddmmyyyy := "dd/mm/yyyy"
	elapsed := "[h]:mm"
	quoted := `0 "days"`
	buf := buildWorkbook(t, func(f *excelize.File, sheet string) {
		styleOf := func(s *excelize.Style) int {
			id, err := f.NewStyle(s)
			require.NoError(t, err)
			return id
		}
		cells := []struct {
			axis  string
			style int
		}{
			{"A2", styleOf(&excelize.Style{NumFmt: 14})},
			{"B2", styleOf(&excelize.Style{NumFmt: 22})},
			{"C2", styleOf(&excelize.Style{CustomNumFmt: &ddmmyyyy})},
			{"D2", styleOf(&excelize.Style{NumFmt: 20})},
			{"E2", styleOf(&excelize.Style{CustomNumFmt: &elapsed})},
			{"F2", styleOf(&excelize.Style{CustomNumFmt: &quoted})},
			{"G2", styleOf(&excelize.Style{NumFmt: 4})},
		}
		require.NoError(t, f.SetSheetRow(sheet, "A1", &[]any{"a", "b", "c", "d", "e", "f", "g"}))
		for _, c := range cells {
			require.NoError(t, f.SetCellValue(sheet, c.axis, 45720))
			require.NoError(t, f.SetCellStyle(sheet, c.axis, c.axis, c.style))
		}
	})

	wb, err := spreadsheet.Open(buf)
	require.NoError(t, err)

	want := []spreadsheet.CellType{
		spreadsheet.CellTypeDate,
		spreadsheet.CellTypeDate,
		spreadsheet.CellTypeDate,
		spreadsheet.CellTypeNumeric,
		spreadsheet.CellTypeNumeric,
		spreadsheet.CellTypeNumeric,
		spreadsheet.CellTypeNumeric,
	}
	for i, typ := range want {
		cell := wb.Cell(2, i+1)
		assert.Equal(t, typ, cell.Type, "column %d", i+1)
		assert.Equal(t, "45720", cell.Raw, "column %d", i+1)
	}
}

func TestOpen_OutOfRangeCellsAreEmpty(t *testing.T) {
	t.Parallel()

	buf := buildWorkbook(t, func(f *excelize.File, sheet string) {
		require.NoError(t, f.SetSheetRow(sheet, "A1", &[]any{"a"}))
	})

	wb, err := spreadsheet.Open(buf)
	require.NoError(t, err)
	assert.Equal(t, spreadsheet.Cell{}, wb.Cell(5, 5))
	assert.Equal(t, spreadsheet.Cell{}, wb.Cell(0, 1))
}

func TestOpen_RejectsNonWorkbook(t *testing.T) {
	t.Parallel()

	_, err := spreadsheet.Open(bytes.NewBufferString("name,phone\n"))
	require.Error(t, err)
}

func TestWriteTable_RoundTrips(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	err := spreadsheet.WriteTable(&buf, spreadsheet.Table{
		Sheet:       "issues",
		Header:      []string{"row", "field", "message"},
		Rows:        [][]any{{3, "رقم الإقامة", "required"}, {5, "الاسم", "duplicate of row 3"}},
		RightToLeft: true,
	})
	require.NoError(t, err)

	wb, err := spreadsheet.Open(&buf)
	require.NoError(t, err)
	assert.Equal(t, "issues", wb.Name())
	assert.Equal(t, []string{"row", "field", "message"}, wb.Header())
	assert.Equal(t, 3, wb.LastRow())
	assert.Equal(t, spreadsheet.CellTypeNumeric, wb.Cell(2, 1).Type)
	assert.Equal(t, "duplicate of row 3", wb.Cell(3, 3).Formatted)
}
