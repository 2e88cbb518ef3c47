package table

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func mustTable(t *testing.T, names []string, cols [][]any) *Table {
	t.Helper()
	tbl, err := FromColumns(names, cols)
	assert.NoError(t, err)
	return tbl
}

func TestFromColumns(t *testing.T) {
	t.Run("widens integers to float64", func(t *testing.T) {
		tbl := mustTable(t, []string{"n"}, [][]any{{1, int64(2), 3.5}})
		cells, err := tbl.Column("n")
		assert.NoError(t, err)
		assert.Equal(t, []any{1.0, 2.0, 3.5}, cells)
	})

	t.Run("rejects duplicate column names", func(t *testing.T) {
		_, err := FromColumns([]string{"a", "a"}, [][]any{{1.0}, {2.0}})
		assert.ErrorContains(t, err, "duplicate column name")
	})

	t.Run("rejects ragged columns", func(t *testing.T) {
		_, err := FromColumns([]string{"a", "b"}, [][]any{{1.0, 2.0}, {3.0}})
		assert.ErrorContains(t, err, "has 1 cells, want 2")
	})

	t.Run("rejects empty column name", func(t *testing.T) {
		_, err := FromColumns([]string{""}, [][]any{{1.0}})
		assert.ErrorContains(t, err, "must not be empty")
	})

	t.Run("rejects unsupported cell types", func(t *testing.T) {
		_, err := FromColumns([]string{"a"}, [][]any{{struct{}{}}})
		assert.ErrorContains(t, err, "unsupported cell value")
	})
}

func TestFromRecords(t *testing.T) {
	records := []map[string]any{
		{"name": "A", "points": 5},
		{"name": "B"},
	}

	t.Run("explicit order", func(t *testing.T) {
		tbl, err := FromRecords(records, "name", "points")
		assert.NoError(t, err)
		assert.Equal(t, []string{"name", "points"}, tbl.Columns())
		cell, err := tbl.Cell(1, "points")
		assert.NoError(t, err)
		assert.Nil(t, cell)
	})

	t.Run("inferred order is sorted key union", func(t *testing.T) {
		tbl, err := FromRecords(records)
		assert.NoError(t, err)
		assert.Equal(t, []string{"name", "points"}, tbl.Columns())
	})
}

func TestColumnReturnsCopy(t *testing.T) {
	tbl := mustTable(t, []string{"a"}, [][]any{{1.0, 2.0}})
	cells, err := tbl.Column("a")
	assert.NoError(t, err)
	cells[0] = 99.0

	again, err := tbl.Column("a")
	assert.NoError(t, err)
	assert.Equal(t, 1.0, again[0])
}

func TestMissingColumnSuggestions(t *testing.T) {
	tbl := mustTable(t, []string{"entity_id", "period", "total_points"},
		[][]any{{"a"}, {1.0}, {5.0}})

	tests := []struct {
		name     string
		lookup   string
		wantHint string
	}{
		{"case-insensitive", "Period", `did you mean "period"?`},
		{"underscore-insensitive", "totalpoints", `did you mean "total_points"?`},
		{"abbreviation", "pts", `did you mean "total_points"?`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tbl.Column(tt.lookup)
			assert.ErrorContains(t, err, "table has no column")
			assert.ErrorContains(t, err, tt.wantHint)
		})
	}

	t.Run("no hint when nothing is close", func(t *testing.T) {
		_, err := tbl.Column("zzz")
		assert.ErrorContains(t, err, "available: entity_id, period, total_points")
		assert.NotContains(t, err.Error(), "did you mean")
	})
}

func TestSelect(t *testing.T) {
	tbl := mustTable(t, []string{"a", "b", "c"}, [][]any{{1.0}, {2.0}, {3.0}})

	out, err := tbl.Select("c", "a")
	assert.NoError(t, err)
	assert.Equal(t, []string{"c", "a"}, out.Columns())

	_, err = tbl.Select("a", "a")
	assert.ErrorContains(t, err, "selected twice")

	_, err = tbl.Select("nope")
	assert.ErrorContains(t, err, "no column")
}

func TestFilter(t *testing.T) {
	tbl := mustTable(t, []string{"n"}, [][]any{{1.0, 2.0, 3.0, 4.0}})
	out := tbl.Filter(func(row map[string]any) bool {
		v, _ := AsFloat(row["n"])
		return v > 2
	})
	cells, err := out.Column("n")
	assert.NoError(t, err)
	assert.Equal(t, []any{3.0, 4.0}, cells)
}

func TestSortBy(t *testing.T) {
	tbl := mustTable(t, []string{"name", "score"},
		[][]any{{"a", "b", "c", "d"}, {2.0, nil, 1.0, 2.0}})

	t.Run("ascending with nil first", func(t *testing.T) {
		out, err := tbl.SortBy("score", false)
		assert.NoError(t, err)
		names, _ := out.Column("name")
		assert.Equal(t, []any{"b", "c", "a", "d"}, names)
	})

	t.Run("descending is stable on ties", func(t *testing.T) {
		out, err := tbl.SortBy("score", true)
		assert.NoError(t, err)
		names, _ := out.Column("name")
		assert.Equal(t, []any{"a", "d", "c", "b"}, names)
	})

	t.Run("source table is unchanged", func(t *testing.T) {
		names, _ := tbl.Column("name")
		assert.Equal(t, []any{"a", "b", "c", "d"}, names)
	})
}

func TestHeadTail(t *testing.T) {
	tbl := mustTable(t, []string{"n"}, [][]any{{1.0, 2.0, 3.0}})

	head, _ := tbl.Head(2).Column("n")
	assert.Equal(t, []any{1.0, 2.0}, head)

	tail, _ := tbl.Tail(2).Column("n")
	assert.Equal(t, []any{2.0, 3.0}, tail)

	assert.Equal(t, 3, tbl.Head(10).NumRows())
	assert.Equal(t, 0, tbl.Tail(-1).NumRows())
}

func TestWithColumn(t *testing.T) {
	tbl := mustTable(t, []string{"a"}, [][]any{{1.0, 2.0}})

	t.Run("appends a new column", func(t *testing.T) {
		out, err := tbl.WithColumn("b", []any{3, 4})
		assert.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, out.Columns())
		cells, _ := out.Column("b")
		assert.Equal(t, []any{3.0, 4.0}, cells)
		assert.Equal(t, []string{"a"}, tbl.Columns())
	})

	t.Run("replaces in place", func(t *testing.T) {
		out, err := tbl.WithColumn("a", []any{9.0, 8.0})
		assert.NoError(t, err)
		assert.Equal(t, []string{"a"}, out.Columns())
		cells, _ := out.Column("a")
		assert.Equal(t, []any{9.0, 8.0}, cells)
	})

	t.Run("rejects length mismatch", func(t *testing.T) {
		_, err := tbl.WithColumn("b", []any{1.0})
		assert.ErrorContains(t, err, "want 2")
	})
}

func TestPivot(t *testing.T) {
	tbl := mustTable(t, []string{"entity", "period", "difficulty"},
		[][]any{
			{"X", "X", "Y"},
			{1.0, 2.0, 1.0},
			{3.0, 4.0, 2.0},
		})

	out, err := tbl.Pivot("entity", "period", "difficulty")
	assert.NoError(t, err)
	assert.Equal(t, []string{"entity", "1", "2"}, out.Columns())
	assert.Equal(t, 2, out.NumRows())

	cell, _ := out.Cell(0, "2")
	assert.Equal(t, 4.0, cell)

	missing, _ := out.Cell(1, "2")
	assert.Nil(t, missing)

	t.Run("duplicate combination errors", func(t *testing.T) {
		dup := mustTable(t, []string{"a", "b", "v"},
			[][]any{{"x", "x"}, {1.0, 1.0}, {1.0, 2.0}})
		_, err := dup.Pivot("a", "b", "v")
		assert.ErrorContains(t, err, "duplicate entry")
	})
}

func TestStringPreview(t *testing.T) {
	cells := make([]any, 12)
	for i := range cells {
		cells[i] = float64(i)
	}
	tbl := mustTable(t, []string{"n"}, [][]any{cells})

	s := tbl.String()
	assert.Contains(t, s, "n")
	assert.Contains(t, s, "(showing first 10 of 12 rows)")
}

func TestMarshalJSON(t *testing.T) {
	tbl := mustTable(t, []string{"name", "score"}, [][]any{{"a"}, {2.0}})
	raw, err := json.Marshal(tbl)
	assert.NoError(t, err)
	assert.JSONEq(t, `{"columns":["name","score"],"rows":[["a",2]]}`, string(raw))
}

func TestCellsEqual(t *testing.T) {
	assert.True(t, CellsEqual(3.0, int64(3)))
	assert.True(t, CellsEqual("x", "x"))
	assert.False(t, CellsEqual("3", 3.0))
	assert.False(t, CellsEqual(nil, 0.0))
	assert.True(t, CellsEqual(nil, nil))
}
