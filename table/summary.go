package table

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// DefaultPreviewRows is the number of rows included in a Summary preview.
const DefaultPreviewRows = 5

// Summary describes a decoded table for an operator before sending.
type Summary struct {
	Status   string              `json:"status"`
	RowCount int                 `json:"rowCount"`
	Columns  []string            `json:"columns"`
	Preview  []map[string]string `json:"preview"`
}

// Summarize reports the columns, row count, and the first n rows.
func Summarize(t *Table, n int) *Summary {
	n = min(n, t.Len())
	s := &Summary{
		Status:   "success",
		RowCount: t.Len(),
		Columns:  t.Columns,
		Preview:  make([]map[string]string, n),
	}
	for i := range n {
		s.Preview[i] = t.Records[i].Map()
	}
	return s
}

// SampleColumns are the columns of the sample workbook.
var SampleColumns = []string{"Email", "Name", "Balance"}

var sampleRows = [][]any{
	{"ana@example.com", "Ana", "42"},
	{"bruno@example.com", "Bruno", "17.50"},
	{"chen@example.com", "Chen", "0"},
}

// WriteSample emits an XLSX workbook demonstrating the expected layout: one
// header row naming the merge fields, then one row per recipient.
func WriteSample(w io.Writer) (err error) {
	f := excelize.NewFile()
	defer func() {
		if closeErr := f.Close(); err == nil {
			err = closeErr
		}
	}()

	sheet := f.GetSheetName(0)
	header := make([]any, len(SampleColumns))
	for i, c := range SampleColumns {
		header[i] = c
	}

	if err = f.SetSheetRow(sheet, "A1", &header); err != nil {
		return
	}
	for i, row := range sampleRows {
		cell := fmt.Sprintf("A%d", i+2)
		if err = f.SetSheetRow(sheet, cell, &row); err != nil {
			return
		}
	}
	return f.Write(w)
}
