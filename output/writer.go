package output

import (
	"fmt"
	"path/filepath"
	"strings"

	"timesync/flow"
)

// Writer persists a compare report to a file.
type Writer interface {
	Write(path string, report flow.CompareReport) error
}

// WriterForPath picks a writer from the file extension.
func WriterForPath(path string) (Writer, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return &CSVWriter{}, nil
	case ".xlsx":
		return &ExcelWriter{}, nil
	default:
		return nil, fmt.Errorf("unsupported output format for %s (use .csv or .xlsx)", path)
	}
}

func headerRow(report flow.CompareReport) []string {
	return []string{"Day", "Account", report.SourceName, report.TargetName, "Match"}
}

func matchFlag(match bool) string {
	if match {
		return "v"
	}
	return "x"
}
