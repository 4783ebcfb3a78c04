package executor

import (
	"fmt"

	"github.com/goliatone/go-sqlsession/statement"
)

// BatchResult is the outcome of one batch group: consecutive updates that
// shared a statement and SQL text.
type BatchResult struct {
	Statement *statement.MappedStatement
	SQL       string
	// Parameters holds the parameter object of every batched execution, in order.
	Parameters []any
	// UpdateCounts holds the affected rows per execution once flushed.
	UpdateCounts []int64
}

// StatementID returns the id of the batched statement.
func (r BatchResult) StatementID() string { return r.Statement.ID }

// BatchError reports the batch group that failed and the groups that
// completed before it.
type BatchError struct {
	// Index is the zero-based position of the failed group.
	Index       int
	StatementID string
	SQL         string
	Successful  []BatchResult
	Err         error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("batch group %d (%s) failed after %d successful groups: %v",
		e.Index, e.StatementID, len(e.Successful), e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }
