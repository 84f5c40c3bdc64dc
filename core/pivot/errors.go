package pivot

import (
	"errors"
	"strings"

	"github.com/asaidimu/go-pivot/core/schema"
)

// ErrValidation is matched by every *ValidationError through errors.Is.
var ErrValidation = errors.New("pivot: validation failed")

// Issue codes used by the engine.
const (
	IssueRequestMissing       = "REQUEST_MISSING"
	IssueDatasetEmpty         = "DATASET_EMPTY"
	IssueColumnMissing        = "COLUMN_MISSING"
	IssueFunctionsEmpty       = "FUNCTIONS_EMPTY"
	IssueFunctionInvalid      = "FUNCTION_INVALID"
	IssueValuesEmpty          = "VALUE_COLUMNS_EMPTY"
	IssueFilterInvalid        = "FILTER_INVALID"
	IssueRequestMalformed     = "REQUEST_MALFORMED"
	IssueReshapeElementFailed = "RESHAPE_ELEMENT_FAILED"
	IssueMergeInconsistency   = "MERGE_INCONSISTENCY"
	IssueMarginFailed         = "MARGIN_FAILED"
	IssueDuplicateHeader      = "DUPLICATE_HEADER"
)

// ValidationError is returned when a request cannot be executed against a
// dataset. It is raised before any row is filtered or reduced.
type ValidationError struct {
	Issues []schema.Issue
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Issues))
	for i, issue := range e.Issues {
		msgs[i] = issue.Message
	}
	return ErrValidation.Error() + ": " + strings.Join(msgs, "; ")
}

// Is reports whether target is ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func validationError(code, message, path string) *ValidationError {
	return &ValidationError{Issues: []schema.Issue{schema.NewError(code, message, path)}}
}
