package output

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"timesync/flow"
)

type ExcelWriter struct{}

func (w *ExcelWriter) Write(path string, report flow.CompareReport) error {
	file := excelize.NewFile()
	defer file.Close()

	sheet := file.GetSheetName(0)

	for col, header := range headerRow(report) {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := file.SetCellValue(sheet, cell, header); err != nil {
			return fmt.Errorf("set excel header %s: %w", cell, err)
		}
	}

	for i, row := range report.Rows {
		values := []string{
			row.Day.Format("2006-01-02"),
			row.Account,
			row.SourceHours,
			row.TargetHours,
			matchFlag(row.Match),
		}
		for col, value := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, i+2)
			if err := file.SetCellValue(sheet, cell, value); err != nil {
				return fmt.Errorf("set excel value %s: %w", cell, err)
			}
		}
	}

	if err := file.SaveAs(path); err != nil {
		return fmt.Errorf("save excel output %s: %w", path, err)
	}

	return nil
}
