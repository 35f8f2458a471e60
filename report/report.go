// Package report serializes a dispatch.Report into a downloadable table with
// one row per recipient.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/mbland/mailmerge/dispatch"
	"github.com/mbland/mailmerge/table"
	"github.com/xuri/excelize/v2"
)

type Format = table.Format

const (
	FormatCsv  = table.FormatCsv
	FormatXlsx = table.FormatXlsx
)

const ReportSheet = "Report"
const SummarySheet = "Summary"

var Columns = []string{
	"Index", "Address", "Status", "Reason", "Detail", "Help", "Unresolved",
}

// Row is the serialized form of one dispatch.Outcome.
type Row struct {
	Index      int
	Address    string
	Status     string
	Reason     string
	Detail     string
	Help       string
	Unresolved string
}

// Error reports a failure to encode or decode a report artifact. It never
// reflects on the outcomes the report contains.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("report %s failed: %s", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// newlines normalizes line breaks, since CSV readers turn "\r\n" inside a
// quoted field into "\n".
var newlines = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// Rows converts the report's outcomes to rows, preserving their order. Line
// breaks in Detail become "\n" so every format reads back the same rows.
func Rows(rep *dispatch.Report) []Row {
	rows := make([]Row, len(rep.Outcomes))
	for i, o := range rep.Outcomes {
		rows[i] = Row{
			Index:      o.Row,
			Address:    o.Address,
			Status:     string(o.Status),
			Reason:     string(o.Reason),
			Detail:     newlines.Replace(o.Detail),
			Help:       o.Help,
			Unresolved: strings.Join(o.Unresolved, ", "),
		}
	}
	return rows
}

func (r Row) values() []string {
	return []string{
		strconv.Itoa(r.Index),
		r.Address,
		r.Status,
		r.Reason,
		r.Detail,
		r.Help,
		r.Unresolved,
	}
}

// Filename returns the conventional artifact name for a run started at
// started, e.g. "email_report_2024-05-01.xlsx".
func Filename(started time.Time, format Format) string {
	return fmt.Sprintf("email_report_%s.%s", started.Format("2006-01-02"), format)
}

// ContentType returns the MIME type of an artifact in format.
func ContentType(format Format) string {
	if format == FormatCsv {
		return "text/csv; charset=utf-8"
	}
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// Write serializes rep to w. Any failure is returned as an *Error.
func Write(w io.Writer, rep *dispatch.Report, format Format) (err error) {
	switch format {
	case FormatCsv:
		err = writeCsv(w, Rows(rep))
	case FormatXlsx:
		err = writeXlsx(w, rep)
	default:
		err = fmt.Errorf("%w: %q", table.ErrUnsupportedFormat, format)
	}
	if err != nil {
		err = &Error{Op: "write", Err: err}
	}
	return
}

func writeCsv(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return err
	}
	for _, row := range rows {
		if err := cw.Write(row.values()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeXlsx(w io.Writer, rep *dispatch.Report) (err error) {
	f := excelize.NewFile()
	defer func() {
		if closeErr := f.Close(); err == nil {
			err = closeErr
		}
	}()

	if err = f.SetSheetName(f.GetSheetName(0), ReportSheet); err != nil {
		return
	} else if err = writeOutcomes(f, Rows(rep)); err != nil {
		return
	} else if err = writeSummary(f, rep); err != nil {
		return
	}
	return f.Write(w)
}

func writeOutcomes(f *excelize.File, rows []Row) (err error) {
	header := make([]any, len(Columns))
	for i, c := range Columns {
		header[i] = c
	}
	if err = f.SetSheetRow(ReportSheet, "A1", &header); err != nil {
		return
	}

	var bold int
	if bold, err = f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
	}); err != nil {
		return
	}
	lastCol, _ := excelize.ColumnNumberToName(len(Columns))
	if err = f.SetCellStyle(ReportSheet, "A1", lastCol+"1", bold); err != nil {
		return
	}

	for i, row := range rows {
		values := row.values()
		cells := make([]any, len(values))
		cells[0] = row.Index
		for j := 1; j < len(values); j++ {
			cells[j] = values[j]
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err = f.SetSheetRow(ReportSheet, cell, &cells); err != nil {
			return
		}
	}
	return f.SetColWidth(ReportSheet, "B", "B", 32)
}

func writeSummary(f *excelize.File, rep *dispatch.Report) (err error) {
	if _, err = f.NewSheet(SummarySheet); err != nil {
		return
	}
	summary := [][]any{
		{"Run ID", rep.RunId.String()},
		{"Status", string(rep.Status)},
		{"Started", rep.Started.Format(time.RFC3339)},
		{"Elapsed", rep.Elapsed.String()},
		{"Total", rep.Total},
		{"Sent", rep.Sent},
		{"Failed", rep.Failed},
		{"Abort reason", rep.AbortMessage()},
	}
	for i, row := range summary {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err = f.SetSheetRow(SummarySheet, cell, &row); err != nil {
			return
		}
	}
	return
}

// Read parses an artifact produced by Write back into rows.
func Read(r io.Reader, format Format) ([]Row, error) {
	t, err := table.Decode(r, format)
	if err != nil {
		return nil, &Error{Op: "read", Err: err}
	}
	for _, c := range Columns {
		if !t.HasColumn(c) {
			err = fmt.Errorf("missing column %q", c)
			return nil, &Error{Op: "read", Err: err}
		}
	}

	rows := make([]Row, len(t.Records))
	for i, rec := range t.Records {
		index, err := strconv.Atoi(rec.Get("Index"))
		if err != nil {
			err = fmt.Errorf("row %d: invalid index: %w", i+1, err)
			return nil, &Error{Op: "read", Err: err}
		}
		rows[i] = Row{
			Index:      index,
			Address:    rec.Get("Address"),
			Status:     rec.Get("Status"),
			Reason:     rec.Get("Reason"),
			Detail:     rec.Get("Detail"),
			Help:       rec.Get("Help"),
			Unresolved: rec.Get("Unresolved"),
		}
	}
	return rows, nil
}
