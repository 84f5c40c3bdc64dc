// Package schema defines the tabular data model shared by the filtering,
// aggregation and pivot packages: documents, typed columns, datasets and the
// issues used to report non-fatal problems.
package schema

// LogicalOperator for combining conditions.
type LogicalOperator string

const (
	LogicalAnd LogicalOperator = "and" // All conditions must be true
	LogicalOr  LogicalOperator = "or"  // At least one condition must be true
)

// IsValid reports whether the operator is one a filter can be tagged with.
func (o LogicalOperator) IsValid() bool {
	return o == LogicalAnd || o == LogicalOr
}

// FieldType represents the inferred kind of a dataset column.
type FieldType string

const (
	FieldTypeString   FieldType = "string"   // Text data
	FieldTypeNumber   FieldType = "number"   // Floating point data
	FieldTypeInteger  FieldType = "integer"  // Whole numbers
	FieldTypeBoolean  FieldType = "boolean"  // True/false values
	FieldTypeDatetime FieldType = "datetime" // Temporal values
	FieldTypeUnknown  FieldType = "unknown"  // Column holding only nulls
)

// IsNumeric reports whether values of this type take part in arithmetic.
func (t FieldType) IsNumeric() bool {
	return t == FieldTypeNumber || t == FieldTypeInteger
}

// IsTextLike reports whether string predicates make sense on this type.
// Unknown columns are accepted since they hold nothing to contradict it.
func (t FieldType) IsTextLike() bool {
	return t == FieldTypeString || t == FieldTypeUnknown
}

// Severity levels attached to an Issue.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// Issue represents a validation or operational issue.
type Issue struct {
	Code        string `json:"code"`
	Message     string `json:"message"`
	Path        string `json:"path,omitempty"`
	Severity    string `json:"severity,omitempty"` // e.g., "error", "warning"
	Description string `json:"description,omitempty"`
}

// NewWarning builds an Issue with warning severity.
func NewWarning(code, message, path string) Issue {
	return Issue{Code: code, Message: message, Path: path, Severity: SeverityWarning}
}

// NewError builds an Issue with error severity.
func NewError(code, message, path string) Issue {
	return Issue{Code: code, Message: message, Path: path, Severity: SeverityError}
}

// Document is a single row: a mapping from column name to value.
type Document map[string]any
