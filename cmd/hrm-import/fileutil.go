package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/iota-uz/hrm-import/pkg/spreadsheet"
)

// workbookTypes are the detected types handed to the workbook reader. A bare
// zip is accepted because the xlsx marker may sit past the sniffed prefix.
var workbookTypes = []string{
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"application/vnd.ms-excel",
	"application/x-ole-storage",
	"application/zip",
}

// readWorkbook opens the first sheet of an xlsx file no larger than maxSize bytes.
func readWorkbook(path string, maxSize int64) (*spreadsheet.Workbook, error) {
	if strings.TrimSpace(path) == "" {
		return nil, withCode(exitUsage, fmt.Errorf("--file is required"))
	}
	path = filepath.Clean(path)
	info, err := os.Stat(path)
	if err != nil {
		return nil, withCode(exitUsage, fmt.Errorf("stat %s: %w", path, err))
	}
	if info.IsDir() {
		return nil, withCode(exitUsage, fmt.Errorf("%s is a directory", path))
	}
	if maxSize > 0 && info.Size() > maxSize {
		return nil, withCode(exitValidation, fmt.Errorf("%s is %d bytes, limit is %d", path, info.Size(), maxSize))
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, withCode(exitUsage, fmt.Errorf("open %s: %w", path, err))
	}
	defer f.Close()

	mime, err := mimetype.DetectReader(f)
	if err != nil {
		return nil, withCode(exitUsage, fmt.Errorf("read %s: %w", path, err))
	}
	if !mimetype.EqualsAny(mime.String(), workbookTypes...) {
		return nil, withCode(exitValidation, fmt.Errorf("%s is not a spreadsheet (detected %s)", path, mime.String()))
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, withCode(exitUsage, fmt.Errorf("rewind %s: %w", path, err))
	}

	wb, err := spreadsheet.Open(f)
	if errors.Is(err, spreadsheet.ErrNoSheets) {
		return nil, withCode(exitValidation, fmt.Errorf("%s: %w", path, err))
	}
	if err != nil {
		return nil, withCode(exitValidation, fmt.Errorf("read %s: %w", path, err))
	}
	return wb, nil
}

func writeIssueFile(path string, write func(f *os.File) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return withCode(exitDB, fmt.Errorf("mkdir %s: %w", dir, err))
	}
	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return withCode(exitDB, fmt.Errorf("create %s: %w", path, err))
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return withCode(exitDB, fmt.Errorf("write %s: %w", path, err))
	}
	if err := f.Close(); err != nil {
		return withCode(exitDB, fmt.Errorf("close %s: %w", path, err))
	}
	return nil
}
