package schema

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// Column describes a named, typed dataset column.
type Column struct {
	Name string    `json:"name"`
	Type FieldType `json:"type"`
}

// Dataset is an ordered sequence of rows with a stable, ordered column list.
// Datasets derived from another dataset (filters, subsets) share row maps with
// their parent; nothing in this module mutates a row once it is in a dataset.
type Dataset struct {
	columns []Column
	index   map[string]int
	rows    []Document
}

// NewDataset builds a dataset from explicit column names and rows. Column
// types are inferred from the row values.
func NewDataset(columns []string, rows []Document) *Dataset {
	cols := make([]Column, len(columns))
	for i, name := range columns {
		cols[i] = Column{Name: name, Type: InferType(rows, name)}
	}
	return NewTypedDataset(cols, rows)
}

// NewTypedDataset builds a dataset whose column types are already known.
func NewTypedDataset(columns []Column, rows []Document) *Dataset {
	ds := &Dataset{
		columns: make([]Column, 0, len(columns)),
		index:   make(map[string]int, len(columns)),
		rows:    rows,
	}
	for _, c := range columns {
		if _, dup := ds.index[c.Name]; dup {
			continue
		}
		ds.index[c.Name] = len(ds.columns)
		ds.columns = append(ds.columns, c)
	}
	if ds.rows == nil {
		ds.rows = []Document{}
	}
	return ds
}

// FromDocuments builds a dataset from rows alone. Column order follows the
// first row in which each column appears, keys within a row sorted by name.
func FromDocuments(rows []Document) *Dataset {
	seen := make(map[string]struct{})
	var names []string
	for _, row := range rows {
		keys := make([]string, 0, len(row))
		for k := range row {
			if _, ok := seen[k]; !ok {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		for _, k := range keys {
			seen[k] = struct{}{}
			names = append(names, k)
		}
	}
	return NewDataset(names, rows)
}

// InferType derives the kind of a column from its non-null values.
func InferType(rows []Document, column string) FieldType {
	kind := FieldTypeUnknown
	for _, row := range rows {
		v, ok := row[column]
		if !ok || IsNull(v) {
			continue
		}
		var k FieldType
		switch {
		case IsInteger(v):
			k = FieldTypeInteger
		case IsNumber(v):
			k = FieldTypeNumber
		case isBool(v):
			k = FieldTypeBoolean
		case isTime(v):
			k = FieldTypeDatetime
		default:
			return FieldTypeString
		}
		switch {
		case kind == FieldTypeUnknown:
			kind = k
		case kind == k:
		case kind.IsNumeric() && k.IsNumeric():
			kind = FieldTypeNumber
		default:
			return FieldTypeString
		}
	}
	return kind
}

func isBool(v any) bool {
	_, ok := v.(bool)
	return ok
}

func isTime(v any) bool {
	switch v.(type) {
	case time.Time, *time.Time:
		return true
	}
	return false
}

// Len returns the number of rows.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.rows)
}

// IsEmpty reports whether the dataset is nil or has no rows.
func (d *Dataset) IsEmpty() bool {
	return d.Len() == 0
}

// Columns returns a copy of the column list.
func (d *Dataset) Columns() []Column {
	out := make([]Column, len(d.columns))
	copy(out, d.columns)
	return out
}

// ColumnNames returns the column names in order.
func (d *Dataset) ColumnNames() []string {
	out := make([]string, len(d.columns))
	for i, c := range d.columns {
		out[i] = c.Name
	}
	return out
}

// Column looks up a column by name.
func (d *Dataset) Column(name string) (Column, bool) {
	i, ok := d.index[name]
	if !ok {
		return Column{}, false
	}
	return d.columns[i], true
}

// HasColumn reports whether the named column is part of the schema.
func (d *Dataset) HasColumn(name string) bool {
	_, ok := d.index[name]
	return ok
}

// Row returns the i-th row.
func (d *Dataset) Row(i int) Document {
	return d.rows[i]
}

// Rows returns the underlying rows. Callers must not modify them.
func (d *Dataset) Rows() []Document {
	return d.rows
}

// Value returns the value of column in row i.
func (d *Dataset) Value(i int, column string) any {
	return d.rows[i][column]
}

// ColumnValues returns every value of a column in row order.
func (d *Dataset) ColumnValues(column string) []any {
	out := make([]any, len(d.rows))
	for i, row := range d.rows {
		out[i] = row[column]
	}
	return out
}

// Filter returns a dataset holding the rows for which keep returns true. The
// first error returned by keep aborts the filter.
func (d *Dataset) Filter(keep func(Document) (bool, error)) (*Dataset, error) {
	rows := make([]Document, 0, len(d.rows))
	for i, row := range d.rows {
		ok, err := keep(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		if ok {
			rows = append(rows, row)
		}
	}
	return d.WithRows(rows), nil
}

// Subset returns a dataset holding the rows at the given indices.
func (d *Dataset) Subset(indices []int) *Dataset {
	rows := make([]Document, len(indices))
	for i, idx := range indices {
		rows[i] = d.rows[idx]
	}
	return d.WithRows(rows)
}

// WithRows returns a dataset sharing this dataset's schema but holding rows.
func (d *Dataset) WithRows(rows []Document) *Dataset {
	if rows == nil {
		rows = []Document{}
	}
	return &Dataset{columns: d.columns, index: d.index, rows: rows}
}

// MarshalJSON encodes the dataset as {"columns": [...], "rows": [...]}.
func (d *Dataset) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Columns []Column   `json:"columns"`
		Rows    []Document `json:"rows"`
	}{d.Columns(), d.Rows()})
}
