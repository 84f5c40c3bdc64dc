package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"

	"github.com/asaidimu/go-pivot/core/aggregate"
	"github.com/asaidimu/go-pivot/core/pivot"
	"github.com/asaidimu/go-pivot/core/query"
	"github.com/asaidimu/go-pivot/sqlite"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"go.uber.org/zap"
)

const salesTable = `CREATE TABLE sales (
	region   TEXT NOT NULL,
	city     TEXT,
	category TEXT,
	units    INTEGER,
	revenue  REAL
)`

var salesRows = [][]any{
	{"North", "Oslo", "Hardware", 12, 1450.0},
	{"North", "Oslo", "Software", 4, 980.5},
	{"North", "Bergen", "Hardware", 7, 812.0},
	{"South", "Rome", "Hardware", 3, 300.0},
	{"South", "Rome", "Software", 9, 2205.25},
	{"South", "Naples", "Services", 2, 640.0},
	{"East", "Riga", "Software", 5, 1120.0},
	{"East", "Riga", nil, 1, nil},
}

func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()

	// 1. Seed an in-memory database.
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		logger.Fatal("Failed to open database", zap.Error(err))
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, salesTable); err != nil {
		logger.Fatal("Failed to create table", zap.Error(err))
	}
	for _, row := range salesRows {
		if _, err := db.ExecContext(ctx, "INSERT INTO sales VALUES (?, ?, ?, ?, ?)", row...); err != nil {
			logger.Fatal("Failed to insert row", zap.Error(err))
		}
	}

	// 2. Load it as a dataset.
	loader := sqlite.NewLoader(db, logger, nil)
	sales, err := loader.LoadTable(ctx, "sales")
	if err != nil {
		logger.Fatal("Failed to load sales", zap.Error(err))
	}
	logger.Info("Loaded sales", zap.Int("rows", sales.Len()), zap.Strings("columns", sales.ColumnNames()))

	// 3. A filter session: keep hardware and software rows worth at least 500.
	filters := query.NewFilterManager(logger)
	builder := query.NewFilterBuilder(filters).
		Where("category").In("Hardware", "Software").
		And().Where("revenue").GreaterEqual(500)
	if err := builder.Err(); err != nil {
		logger.Fatal("Failed to build filters", zap.Error(err))
	}
	filtered, issues := filters.ApplyFilters(sales)
	for _, issue := range issues {
		logger.Warn("Filter issue", zap.String("code", issue.Code), zap.String("message", issue.Message))
	}
	logger.Info("Filtered sales", zap.Int("rows", filtered.Len()))

	// 4. Headline figures over the filtered rows.
	totals := aggregate.NewAggregationManager(logger)
	if _, err := totals.AddFunction(aggregate.Sum, "revenue", "revenue_total", nil); err != nil {
		logger.Fatal("Failed to add aggregation", zap.Error(err))
	}
	if _, err := totals.AddFunction(aggregate.Quantile, "units", "units_p90", map[string]any{"q": 0.9}); err != nil {
		logger.Fatal("Failed to add aggregation", zap.Error(err))
	}
	summary, err := totals.ApplyAggregations(filtered)
	if err != nil {
		logger.Fatal("Failed to aggregate", zap.Error(err))
	}
	printJSON("Summary", summary)

	// 5. Pivot the whole table with margins and watch the engine work.
	engine, err := pivot.NewPivotEngine(pivot.EngineOptions{Logger: logger})
	if err != nil {
		logger.Fatal("Failed to create pivot engine", zap.Error(err))
	}
	engine.Subscribe(pivot.StateDone, "demo", func(_ context.Context, event pivot.ExecutionEvent) error {
		logger.Info("Pivot finished",
			zap.String("execution", event.ExecutionID),
			zap.String("path", string(event.Path)),
			zap.Int("rows", event.Rows),
		)
		return nil
	})

	result, err := engine.ExecuteMapping(sales, map[string]any{
		"row_dimensions":    "region",
		"column_dimensions": "category",
		"value_columns":     []string{"units", "revenue"},
		"functions":         []string{"sum", "mean"},
		"filters": map[string]any{
			"units": map[string]any{"type": "greater_than", "value": 1},
		},
		"fill_value":      0,
		"include_margins": true,
		"margins_label":   "Total",
	})
	if err != nil {
		if pivot.IsValidationError(err) {
			logger.Fatal("Pivot request rejected", zap.Error(err))
		}
		logger.Fatal("Pivot failed", zap.Error(err))
	}
	for _, w := range result.Warnings {
		logger.Warn("Pivot warning", zap.String("code", w.Code), zap.String("message", w.Message))
	}
	printJSON("Revenue by region and category", result.Dataset)
}

func printJSON(title string, v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Printf("%s: %v\n", title, err)
		return
	}
	fmt.Printf("--- %s ---\n%s\n", title, data)
}
