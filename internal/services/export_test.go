package services

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleTable() *ExportTable {
	return &ExportTable{
		Name:    "cases",
		Headers: []string{"Number", "State"},
		Rows: [][]string{
			{"VESPL/ENQ/2526/001", "enquiry"},
			{"VESPL/ENQ/2526/002", "order, confirmed"},
		},
	}
}

func TestExportTable_CSV(t *testing.T) {
	table := sampleTable()
	var buf bytes.Buffer
	require.NoError(t, table.Write(&buf, ExportCSV))

	assert.Equal(t, "Number,State\nVESPL/ENQ/2526/001,enquiry\nVESPL/ENQ/2526/002,\"order, confirmed\"\n", buf.String())
	assert.Equal(t, "cases.csv", table.Filename(ExportCSV))
	assert.Equal(t, "text/csv", table.ContentType("anything"))
}

func TestExportTable_XLSX(t *testing.T) {
	table := sampleTable()
	var buf bytes.Buffer
	require.NoError(t, table.Write(&buf, ExportXLSX))
	assert.Equal(t, "cases.xlsx", table.Filename(ExportXLSX))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	v, err := f.GetCellValue("cases", "A1")
	require.NoError(t, err)
	assert.Equal(t, "Number", v)
	v, err = f.GetCellValue("cases", "B3")
	require.NoError(t, err)
	assert.Equal(t, "order, confirmed", v)
}
