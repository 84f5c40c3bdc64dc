// Package sqlite loads SQLite query results into pivot datasets. It scans rows
// into documents, normalises driver values and infers column types, so the
// result can be handed straight to the filter, aggregation and pivot layers.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/asaidimu/go-pivot/core/schema"
	"go.uber.org/zap"
)

// dbRunner abstracts the query methods shared by *sql.DB, *sql.Tx and *sql.Conn.
type dbRunner interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// LoaderOptions tunes how query results become a Dataset.
type LoaderOptions struct {
	// Types forces the type of the named columns. Unlisted columns are inferred.
	Types map[string]schema.FieldType
	// MaxRows stops reading after this many rows. Zero reads everything.
	MaxRows int
	// TimeLayouts are tried, in order, on text cells of datetime columns.
	TimeLayouts []string
}

// DefaultLoaderOptions returns the options used when none are given.
func DefaultLoaderOptions() *LoaderOptions {
	return &LoaderOptions{
		TimeLayouts: []string{time.RFC3339Nano, "2006-01-02 15:04:05", time.DateOnly},
	}
}

// Loader reads datasets from a SQLite database or transaction.
type Loader struct {
	runner  dbRunner
	options *LoaderOptions
	logger  *zap.Logger
}

// NewLoader creates a Loader on top of db, which may be a *sql.DB, *sql.Tx or
// *sql.Conn.
func NewLoader(db dbRunner, logger *zap.Logger, options *LoaderOptions) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	if options == nil {
		options = DefaultLoaderOptions()
	}
	return &Loader{runner: db, options: options, logger: logger}
}

// Load runs query and returns its rows as a Dataset. Column order follows the
// result set.
func (l *Loader) Load(ctx context.Context, query string, args ...any) (*schema.Dataset, error) {
	rows, err := l.runner.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	names, docs, err := l.readRows(rows)
	if err != nil {
		return nil, err
	}

	columns := make([]schema.Column, len(names))
	for i, name := range names {
		typ, forced := l.options.Types[name]
		if !forced {
			typ = schema.InferType(docs, name)
		}
		columns[i] = schema.Column{Name: name, Type: typ}
		if forced {
			l.convertColumn(docs, name, typ)
		}
	}

	l.logger.Debug("Dataset loaded", zap.Int("rows", len(docs)), zap.Strings("columns", names))
	return schema.NewTypedDataset(columns, docs), nil
}

// LoadTable reads every row of table.
func (l *Loader) LoadTable(ctx context.Context, table string) (*schema.Dataset, error) {
	return l.Load(ctx, "SELECT * FROM "+quoteIdentifier(table))
}

// LoadDataset is a shorthand for NewLoader(db, nil, nil).Load.
func LoadDataset(ctx context.Context, db dbRunner, query string, args ...any) (*schema.Dataset, error) {
	return NewLoader(db, nil, nil).Load(ctx, query, args...)
}

// readRows scans every row into a Document. Text arrives from the driver as
// []byte and is turned into string.
func (l *Loader) readRows(rows *sql.Rows) ([]string, []schema.Document, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get columns: %w", err)
	}

	var results []schema.Document
	for rows.Next() {
		if l.options.MaxRows > 0 && len(results) >= l.options.MaxRows {
			l.logger.Warn("Row limit reached, truncating result", zap.Int("maxRows", l.options.MaxRows))
			break
		}
		row := make(schema.Document, len(columns))
		values := make([]any, len(columns))
		scanArgs := make([]any, len(columns))
		for i := range values {
			scanArgs[i] = &values[i]
		}

		if err := rows.Scan(scanArgs...); err != nil {
			return nil, nil, fmt.Errorf("failed to scan row: %w", err)
		}

		for i, col := range columns {
			switch val := values[i].(type) {
			case []byte:
				row[col] = string(val)
			default:
				row[col] = val
			}
		}
		results = append(results, row)
	}

	if err = rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("error after scanning rows: %w", err)
	}
	return columns, results, nil
}

// convertColumn coerces the cells of a forced column. Cells that do not
// convert are left untouched.
func (l *Loader) convertColumn(docs []schema.Document, column string, typ schema.FieldType) {
	for _, doc := range docs {
		val := doc[column]
		if val == nil {
			continue
		}
		switch typ {
		case schema.FieldTypeBoolean:
			if intVal, isInt := val.(int64); isInt {
				doc[column] = intVal != 0
			}
		case schema.FieldTypeInteger:
			if floatVal, isFloat := val.(float64); isFloat {
				doc[column] = int64(floatVal)
			}
		case schema.FieldTypeNumber:
			if intVal, isInt := val.(int64); isInt {
				doc[column] = float64(intVal)
			} else if f, ok := schema.ToFloat64(val); ok {
				doc[column] = f
			}
		case schema.FieldTypeString:
			doc[column] = schema.ToText(val)
		case schema.FieldTypeDatetime:
			if t, ok := l.parseTime(val); ok {
				doc[column] = t
			} else {
				l.logger.Warn("Cell is not a datetime, using raw value", zap.String("column", column), zap.Any("value", val))
			}
		}
	}
}

func (l *Loader) parseTime(val any) (time.Time, bool) {
	switch v := val.(type) {
	case time.Time:
		return v, true
	case int64:
		return time.Unix(v, 0).UTC(), true
	case string:
		for _, layout := range l.options.TimeLayouts {
			if t, err := time.Parse(layout, v); err == nil {
				return t, true
			}
		}
		return schema.ToTime(v)
	}
	return time.Time{}, false
}

// quoteIdentifier quotes a table or column name for use in SQL.
func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
