//go:build small_tests || all_tests

package table

import (
	"testing"

	"github.com/mbland/mailmerge/testutils"
	"gotest.tools/assert"
	is "gotest.tools/assert/cmp"
)

func TestNew(t *testing.T) {
	columns := []string{"Email", "Name", "Balance"}

	t.Run("Succeeds", func(t *testing.T) {
		tbl, err := New(columns, [][]string{
			{"ana@foo.com", "Ana", "42"},
			{"bruno@foo.com", "Bruno"},
		})

		assert.NilError(t, err)
		assert.Equal(t, 2, tbl.Len())
		assert.DeepEqual(t, columns, tbl.Columns)

		second := tbl.Records[1]
		assert.Equal(t, 1, second.Index)
		assert.Equal(t, "Bruno", second.Get("Name"))
		value, ok := second.Lookup("Balance")
		assert.Assert(t, ok)
		assert.Equal(t, "", value)
	})

	t.Run("SkipsBlankRowsKeepingSourceIndex", func(t *testing.T) {
		tbl, err := New(columns, [][]string{
			{"ana@foo.com"}, {"", " "}, {}, {"bruno@foo.com"},
		})

		assert.NilError(t, err)
		assert.Equal(t, 2, tbl.Len())
		assert.Equal(t, 0, tbl.Records[0].Index)
		assert.Equal(t, 3, tbl.Records[1].Index)
		assert.Equal(t, "bruno@foo.com", tbl.Records[1].Get("Email"))
	})

	t.Run("IgnoresEmptyTrailingCells", func(t *testing.T) {
		tbl, err := New(columns, [][]string{{"a@foo.com", "A", "1", "", ""}})

		assert.NilError(t, err)
		assert.DeepEqual(t, []string{"a@foo.com", "A", "1"}, tbl.Records[0].Values())
	})

	t.Run("FailsOnExtraCells", func(t *testing.T) {
		_, err := New(columns, [][]string{{"a@foo.com", "A", "1", "extra"}})

		assert.Error(t, err, "row 1 has 4 cells, but only 3 columns")
	})

	t.Run("FailsWithoutColumns", func(t *testing.T) {
		_, err := New([]string{}, nil)

		assert.Assert(t, testutils.ErrorIs(err, ErrNoColumns))
	})

	t.Run("FailsOnBlankColumnName", func(t *testing.T) {
		_, err := New([]string{"Email", " "}, nil)

		assert.Assert(t, testutils.ErrorIs(err, ErrInvalidHeader))
		assert.ErrorContains(t, err, "column 2 has no name")
	})

	t.Run("FailsOnDuplicateColumnName", func(t *testing.T) {
		_, err := New([]string{"Email", "Name", "Email"}, nil)

		assert.Assert(t, testutils.ErrorIs(err, ErrInvalidHeader))
		assert.ErrorContains(t, err, `column 3 duplicates column 1: "Email"`)
	})

	t.Run("DoesNotAliasInputs", func(t *testing.T) {
		cols := []string{"Email"}
		row := []string{"a@foo.com"}
		tbl := MustNew(cols, row)

		cols[0] = "Changed"
		row[0] = "changed@foo.com"

		assert.Equal(t, "a@foo.com", tbl.Records[0].Get("Email"))
		assert.Assert(t, tbl.HasColumn("Email"))
	})
}

func TestRecord(t *testing.T) {
	tbl := MustNew([]string{"Email", "Name"}, []string{"ana@foo.com", "Ana"})
	rec := tbl.Records[0]

	t.Run("LookupMissingColumn", func(t *testing.T) {
		value, ok := rec.Lookup("Balance")

		assert.Assert(t, !ok)
		assert.Equal(t, "", value)
	})

	t.Run("ZeroValueHasNoFields", func(t *testing.T) {
		_, ok := Record{}.Lookup("Email")

		assert.Assert(t, !ok)
		assert.Assert(t, is.Nil(Record{}.Columns()))
	})

	t.Run("Map", func(t *testing.T) {
		expected := map[string]string{"Email": "ana@foo.com", "Name": "Ana"}
		assert.DeepEqual(t, expected, rec.Map())
	})

	t.Run("ValuesReturnsCopy", func(t *testing.T) {
		values := rec.Values()
		values[0] = "changed"

		assert.Equal(t, "ana@foo.com", rec.Get("Email"))
	})
}
