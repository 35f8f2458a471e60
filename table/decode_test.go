//go:build small_tests || all_tests

package table

import (
	"bytes"
	"strings"
	"testing"

	"github.com/mbland/mailmerge/testutils"
	"github.com/xuri/excelize/v2"
	"gotest.tools/assert"
)

func xlsxFixture(t *testing.T, rows ...[]any) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		assert.NilError(t, err)
		assert.NilError(t, f.SetSheetRow(sheet, cell, &row))
	}
	buf, err := f.WriteToBuffer()
	assert.NilError(t, err)
	return buf
}

func TestFormatFromFilename(t *testing.T) {
	for name, expected := range map[string]Format{
		"recipients.csv":  FormatCsv,
		"Recipients.XLSX": FormatXlsx,
		"macro.xlsm":      FormatXlsx,
	} {
		format, err := FormatFromFilename(name)

		assert.NilError(t, err, name)
		assert.Equal(t, expected, format, name)
	}

	_, err := FormatFromFilename("legacy.xls")
	assert.Assert(t, testutils.ErrorIs(err, ErrUnsupportedFormat))
}

func TestDecodeCsv(t *testing.T) {
	t.Run("Succeeds", func(t *testing.T) {
		input := "\xef\xbb\xbfEmail,Name\nana@foo.com,Ana\n\"bo@foo.com\",\"Bo, Jr.\"\n"

		tbl, err := Decode(strings.NewReader(input), FormatCsv)

		assert.NilError(t, err)
		assert.DeepEqual(t, []string{"Email", "Name"}, tbl.Columns)
		assert.Equal(t, 2, tbl.Len())
		assert.Equal(t, "Bo, Jr.", tbl.Records[1].Get("Name"))
	})

	t.Run("AllowsRaggedRows", func(t *testing.T) {
		tbl, err := Decode(
			strings.NewReader("Email,Name\nana@foo.com\n"), FormatCsv,
		)

		assert.NilError(t, err)
		assert.Equal(t, "", tbl.Records[0].Get("Name"))
	})

	t.Run("IndexCountsBlankAndEmptyLines", func(t *testing.T) {
		input := "Email,Name\nana@foo.com,Ana\n,\n\n" +
			"\"bo@foo.com\",\"Bo\nJr.\"\n\nbruno@foo.com,Bruno\n"

		tbl, err := Decode(strings.NewReader(input), FormatCsv)

		assert.NilError(t, err)
		assert.Equal(t, 3, tbl.Len())
		assert.Equal(t, 0, tbl.Records[0].Index)
		assert.Equal(t, 3, tbl.Records[1].Index)
		assert.Equal(t, "Bo\nJr.", tbl.Records[1].Get("Name"))
		assert.Equal(t, 5, tbl.Records[2].Index)
		assert.Equal(t, "bruno@foo.com", tbl.Records[2].Get("Email"))
	})

	t.Run("FailsOnEmptyInput", func(t *testing.T) {
		_, err := Decode(strings.NewReader(""), FormatCsv)

		assert.Assert(t, testutils.ErrorIs(err, ErrNoColumns))
	})

	t.Run("FailsOnMalformedCsv", func(t *testing.T) {
		_, err := Decode(strings.NewReader("Email\n\"unterminated\n"), FormatCsv)

		assert.ErrorContains(t, err, "invalid CSV: ")
	})

	t.Run("FailsOnUnknownFormat", func(t *testing.T) {
		_, err := Decode(strings.NewReader("Email"), Format("ods"))

		assert.Assert(t, testutils.ErrorIs(err, ErrUnsupportedFormat))
	})
}

func TestDecodeXlsx(t *testing.T) {
	t.Run("Succeeds", func(t *testing.T) {
		buf := xlsxFixture(t,
			[]any{"Email", "Name", "Balance"},
			[]any{"ana@foo.com", "Ana", 42},
			[]any{"bo@foo.com", "Bo"},
		)

		tbl, err := Decode(buf, FormatXlsx)

		assert.NilError(t, err)
		assert.Equal(t, 2, tbl.Len())
		assert.Equal(t, "42", tbl.Records[0].Get("Balance"))
		assert.Equal(t, "", tbl.Records[1].Get("Balance"))
	})

	t.Run("IndexCountsBlankRows", func(t *testing.T) {
		buf := xlsxFixture(t,
			[]any{"Email", "Name"},
			[]any{"ana@foo.com", "Ana"},
			[]any{},
			[]any{"bruno@foo.com", "Bruno"},
		)

		tbl, err := Decode(buf, FormatXlsx)

		assert.NilError(t, err)
		assert.Equal(t, 2, tbl.Len())
		assert.Equal(t, 2, tbl.Records[1].Index)
		assert.Equal(t, "Bruno", tbl.Records[1].Get("Name"))
	})

	t.Run("FailsOnInvalidWorkbook", func(t *testing.T) {
		_, err := Decode(strings.NewReader("not a workbook"), FormatXlsx)

		assert.ErrorContains(t, err, "invalid XLSX: ")
	})

	t.Run("DecodeFileWrapsErrorsWithName", func(t *testing.T) {
		_, err := DecodeFile("people.xlsx", strings.NewReader("nope"))

		assert.ErrorContains(t, err, "failed to decode people.xlsx: ")
	})
}

func TestSummarizeAndSample(t *testing.T) {
	buf := &bytes.Buffer{}
	assert.NilError(t, WriteSample(buf))

	tbl, err := Decode(buf, FormatXlsx)
	assert.NilError(t, err)

	t.Run("SampleHasExpectedColumns", func(t *testing.T) {
		assert.DeepEqual(t, SampleColumns, tbl.Columns)
		assert.Equal(t, 3, tbl.Len())
	})

	t.Run("SummaryLimitsPreview", func(t *testing.T) {
		s := Summarize(tbl, 2)

		assert.Equal(t, "success", s.Status)
		assert.Equal(t, 3, s.RowCount)
		assert.Equal(t, 2, len(s.Preview))
		assert.Equal(t, "Ana", s.Preview[0]["Name"])
	})

	t.Run("SummaryPreviewNeverExceedsRows", func(t *testing.T) {
		s := Summarize(tbl, DefaultPreviewRows)

		assert.Equal(t, 3, len(s.Preview))
	})
}
