package output

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"timesync/flow"
)

func sampleReport() flow.CompareReport {
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.Local)
	return flow.CompareReport{
		SourceName: "worklog",
		TargetName: "listsystem",
		Rows: []flow.CompareRow{
			{Day: day, Account: "X", SourceHours: "3.50", TargetHours: "3.50", Match: true},
			{Day: day, Account: "Y", SourceHours: "2.00", TargetHours: "", Match: false},
		},
	}
}

func TestWriterForPath(t *testing.T) {
	t.Parallel()

	if _, err := WriterForPath("report.csv"); err != nil {
		t.Fatalf("expected csv writer: %v", err)
	}
	if _, err := WriterForPath("report.XLSX"); err != nil {
		t.Fatalf("expected excel writer: %v", err)
	}
	if _, err := WriterForPath("report.txt"); err == nil {
		t.Fatalf("expected error for unsupported extension")
	}
}

func TestCSVWriterWritesReport(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "report.csv")
	if err := (&CSVWriter{}).Write(path, sampleReport()); err != nil {
		t.Fatalf("write csv: %v", err)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open csv: %v", err)
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(records))
	}
	if records[0][2] != "worklog" || records[0][3] != "listsystem" {
		t.Fatalf("expected provider names in headers, got %v", records[0])
	}
	if records[1][4] != "v" || records[2][4] != "x" {
		t.Fatalf("unexpected match flags: %v / %v", records[1], records[2])
	}
	if records[2][3] != "" {
		t.Fatalf("expected empty target hours for missing side, got %q", records[2][3])
	}
}

func TestExcelWriterWritesReport(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "report.xlsx")
	if err := (&ExcelWriter{}).Write(path, sampleReport()); err != nil {
		t.Fatalf("write excel: %v", err)
	}

	file, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("open excel: %v", err)
	}
	defer file.Close()

	sheet := file.GetSheetName(0)
	got, err := file.GetCellValue(sheet, "B2")
	if err != nil {
		t.Fatalf("read cell: %v", err)
	}
	if got != "X" {
		t.Fatalf("expected account X in B2, got %q", got)
	}
	if got, _ := file.GetCellValue(sheet, "E3"); got != "x" {
		t.Fatalf("expected mismatch flag in E3, got %q", got)
	}
}
