package output

import (
	"encoding/csv"
	"fmt"
	"os"

	"timesync/flow"
)

type CSVWriter struct{}

func (w *CSVWriter) Write(path string, report flow.CompareReport) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv output %s: %w", path, err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write(headerRow(report)); err != nil {
		return fmt.Errorf("write csv headers: %w", err)
	}

	for _, row := range report.Rows {
		record := []string{
			row.Day.Format("2006-01-02"),
			row.Account,
			row.SourceHours,
			row.TargetHours,
			matchFlag(row.Match),
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush csv output: %w", err)
	}

	return nil
}
