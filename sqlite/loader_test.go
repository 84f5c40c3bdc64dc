package sqlite

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/asaidimu/go-pivot/core/aggregate"
	"github.com/asaidimu/go-pivot/core/pivot"
	"github.com/asaidimu/go-pivot/core/schema"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openSalesDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	// Every connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`CREATE TABLE sales (
		region TEXT, cat TEXT, v INTEGER, price REAL, sold_on TEXT, active INTEGER
	)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO sales VALUES
		('N', 'A', 10, 1.5, '2024-01-02', 1),
		('N', 'B', 20, 2.5, '2024-01-03', 0),
		('S', 'A', 5, 3.0, '2024-02-01', 1),
		('S', 'A', NULL, 4.0, 'soon', 0)`)
	require.NoError(t, err)
	return db
}

func TestLoader_LoadTable(t *testing.T) {
	db := openSalesDB(t)
	ds, err := NewLoader(db, nil, nil).LoadTable(context.Background(), "sales")
	require.NoError(t, err)

	assert.Equal(t, []string{"region", "cat", "v", "price", "sold_on", "active"}, ds.ColumnNames())
	require.Equal(t, 4, ds.Len())

	types := map[string]schema.FieldType{}
	for _, c := range ds.Columns() {
		types[c.Name] = c.Type
	}
	assert.Equal(t, schema.FieldTypeString, types["region"])
	assert.Equal(t, schema.FieldTypeInteger, types["v"])
	assert.Equal(t, schema.FieldTypeNumber, types["price"])
	assert.Equal(t, schema.FieldTypeString, types["sold_on"])

	assert.Equal(t, "N", ds.Value(0, "region"))
	assert.Equal(t, int64(10), ds.Value(0, "v"))
	assert.Equal(t, 1.5, ds.Value(0, "price"))
	assert.Nil(t, ds.Value(3, "v"))
}

func TestLoader_ForcedTypes(t *testing.T) {
	db := openSalesDB(t)
	opts := DefaultLoaderOptions()
	opts.Types = map[string]schema.FieldType{
		"active":  schema.FieldTypeBoolean,
		"sold_on": schema.FieldTypeDatetime,
		"v":       schema.FieldTypeNumber,
	}
	ds, err := NewLoader(db, nil, opts).Load(context.Background(), "SELECT v, sold_on, active FROM sales")
	require.NoError(t, err)

	col, ok := ds.Column("active")
	require.True(t, ok)
	assert.Equal(t, schema.FieldTypeBoolean, col.Type)
	assert.Equal(t, true, ds.Value(0, "active"))
	assert.Equal(t, false, ds.Value(1, "active"))

	assert.Equal(t, 10.0, ds.Value(0, "v"))
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), ds.Value(0, "sold_on"))
	assert.Equal(t, "soon", ds.Value(3, "sold_on"))
}

func TestLoader_ArgsAndLimit(t *testing.T) {
	db := openSalesDB(t)

	ds, err := LoadDataset(context.Background(), db, "SELECT * FROM sales WHERE region = ?", "S")
	require.NoError(t, err)
	assert.Equal(t, 2, ds.Len())

	opts := DefaultLoaderOptions()
	opts.MaxRows = 3
	ds, err = NewLoader(db, nil, opts).LoadTable(context.Background(), "sales")
	require.NoError(t, err)
	assert.Equal(t, 3, ds.Len())
}

func TestLoader_Errors(t *testing.T) {
	db := openSalesDB(t)
	_, err := LoadDataset(context.Background(), db, "SELECT * FROM missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to execute query")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = LoadDataset(ctx, db, "SELECT * FROM sales")
	assert.Error(t, err)
}

func TestLoader_EmptyResult(t *testing.T) {
	db := openSalesDB(t)
	ds, err := LoadDataset(context.Background(), db, "SELECT region, v FROM sales WHERE v > 100")
	require.NoError(t, err)
	assert.True(t, ds.IsEmpty())
	assert.Equal(t, []string{"region", "v"}, ds.ColumnNames())
}

func TestLoader_InsideTransaction(t *testing.T) {
	db := openSalesDB(t)
	tx, err := db.Begin()
	require.NoError(t, err)
	defer tx.Rollback()

	_, err = tx.Exec(`INSERT INTO sales VALUES ('E', 'B', 7, 1.0, '2024-03-01', 1)`)
	require.NoError(t, err)

	ds, err := NewLoader(tx, nil, nil).Load(context.Background(), "SELECT region FROM sales WHERE region = 'E'")
	require.NoError(t, err)
	assert.Equal(t, 1, ds.Len())
}

func TestLoader_FeedsPivot(t *testing.T) {
	db := openSalesDB(t)
	ds, err := NewLoader(db, nil, nil).LoadTable(context.Background(), "sales")
	require.NoError(t, err)

	engine, err := pivot.NewPivotEngine(pivot.DefaultEngineOptions())
	require.NoError(t, err)
	res, err := engine.Pivot(ds, "region", "cat", "v", aggregate.Sum)
	require.NoError(t, err)

	assert.Equal(t, []string{"region", "A", "B"}, res.Dataset.ColumnNames())
	assert.Equal(t, []schema.Document{
		{"region": "N", "A": int64(10), "B": int64(20)},
		{"region": "S", "A": int64(5)},
	}, res.Dataset.Rows())
}
