package services

import (
	"encoding/csv"
	"io"
	"time"

	"github.com/xuri/excelize/v2"
)

const (
	ExportCSV  = "csv"
	ExportXLSX = "xlsx"
)

// ExportTable is a flat sheet produced by the list exports.
type ExportTable struct {
	Name    string
	Headers []string
	Rows    [][]string
}

func (t *ExportTable) Filename(format string) string {
	if format == ExportXLSX {
		return t.Name + ".xlsx"
	}
	return t.Name + ".csv"
}

func (t *ExportTable) ContentType(format string) string {
	if format == ExportXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv"
}

// Write renders the table as xlsx, or csv for any other format.
func (t *ExportTable) Write(w io.Writer, format string) error {
	if format == ExportXLSX {
		return t.writeExcel(w)
	}
	return t.writeCSV(w)
}

func (t *ExportTable) writeCSV(w io.Writer) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(t.Headers); err != nil {
		return err
	}
	if err := writer.WriteAll(t.Rows); err != nil {
		return err
	}
	return writer.Error()
}

func (t *ExportTable) writeExcel(w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := t.Name
	if len(sheet) > 31 {
		sheet = sheet[:31]
	}
	index, err := f.NewSheet(sheet)
	if err != nil {
		return err
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#D3D3D3"}, Pattern: 1},
	})
	if err != nil {
		return err
	}

	for i, header := range t.Headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, header)
		f.SetCellStyle(sheet, cell, cell, headerStyle)
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheet, col, col, 18)
	}

	for r, row := range t.Rows {
		for c, value := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			f.SetCellValue(sheet, cell, value)
		}
	}

	if sheet != "Sheet1" {
		f.DeleteSheet("Sheet1")
	}
	return f.Write(w)
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}
