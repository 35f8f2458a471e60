package table

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/mbland/mailmerge/types"
	"github.com/xuri/excelize/v2"
)

const ErrUnsupportedFormat = types.SentinelError("unsupported table format")

type Format string

const (
	FormatCsv  Format = "csv"
	FormatXlsx Format = "xlsx"
)

// FormatFromFilename picks a decoder based on the file extension.
func FormatFromFilename(name string) (Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		return FormatCsv, nil
	case ".xlsx", ".xlsm":
		return FormatXlsx, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
}

// Decode reads a table whose first row holds the column names.
func Decode(r io.Reader, format Format) (t *Table, err error) {
	var rows [][]string

	switch format {
	case FormatCsv:
		rows, err = readCsv(r)
	case FormatXlsx:
		rows, err = readXlsx(r)
	default:
		err = fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	if err != nil {
		return
	} else if len(rows) == 0 {
		return nil, ErrNoColumns
	}
	return New(rows[0], rows[1:])
}

// DecodeFile is Decode with the format taken from the filename.
func DecodeFile(name string, r io.Reader) (*Table, error) {
	format, err := FormatFromFilename(name)
	if err != nil {
		return nil, err
	}
	t, err := Decode(r, format)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", name, err)
	}
	return t, nil
}

var utf8Bom = []byte{0xef, 0xbb, 0xbf}

// readCsv returns an empty row for every empty line between records, since
// csv.Reader skips them, so row positions match the source lines.
func readCsv(r io.Reader) (rows [][]string, err error) {
	var data []byte
	if data, err = io.ReadAll(r); err != nil {
		return
	}

	cr := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, utf8Bom)))
	cr.FieldsPerRecord = -1
	lastLine := 0

	for {
		var row []string
		if row, err = cr.Read(); err == io.EOF {
			return rows, nil
		} else if err != nil {
			return nil, fmt.Errorf("invalid CSV: %w", err)
		}

		start, _ := cr.FieldPos(0)
		for line := lastLine + 1; line < start && len(rows) != 0; line++ {
			rows = append(rows, []string{})
		}
		last := len(row) - 1
		end, _ := cr.FieldPos(last)
		lastLine = end + strings.Count(row[last], "\n")
		rows = append(rows, row)
	}
}

func readXlsx(r io.Reader) (rows [][]string, err error) {
	var f *excelize.File

	if f, err = excelize.OpenReader(r); err != nil {
		return nil, fmt.Errorf("invalid XLSX: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrNoColumns
	} else if rows, err = f.GetRows(sheets[0]); err != nil {
		err = fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}
	return
}
