package notification

import (
	"errors"
	"fmt"
)

// Sentinel errors. Each message is its error code so boundaries can classify wrapped errors.
var (
	ErrEmptySelection        = errors.New("EMPTY_SELECTION")
	ErrTemplateTooLong       = errors.New("TEMPLATE_TOO_LONG")
	ErrTemplateInvalid       = errors.New("TEMPLATE_INVALID")
	ErrFanoutWriteFailed     = errors.New("FANOUT_WRITE_FAILED")
	ErrFanoutInProgress      = errors.New("FANOUT_IN_PROGRESS")
	ErrReadStateConflict     = errors.New("READ_STATE_CONFLICT")
	ErrAccessDenied          = errors.New("ACCESS_DENIED")
	ErrRecordNotFound        = errors.New("RECORD_NOT_FOUND")
	ErrDeletePartial         = errors.New("DELETE_PARTIAL")
	ErrInvalidTargetRule     = errors.New("INVALID_TARGET_RULE")
	ErrInvalidPeriod         = errors.New("INVALID_PERIOD")
	ErrInvalidCursor         = errors.New("INVALID_CURSOR")
	ErrDirectoryLookupFailed = errors.New("DIRECTORY_LOOKUP_FAILED")
	ErrInboxQueryFailed      = errors.New("INBOX_QUERY_FAILED")
)

// FanoutError reports a send that failed after Committed of Total records were written.
// Committed is non-zero only when the send spanned several sub-batches.
type FanoutError struct {
	BatchID   string
	Committed int
	Total     int
	Err       error
}

func (e *FanoutError) Error() string {
	return fmt.Sprintf("%s: batch %s committed %d of %d records: %v",
		ErrFanoutWriteFailed, e.BatchID, e.Committed, e.Total, e.Err)
}

func (e *FanoutError) Unwrap() []error {
	return []error{ErrFanoutWriteFailed, e.Err}
}

// Partial reports whether some records of the batch are visible despite the failure.
func (e *FanoutError) Partial() bool {
	return e.Committed > 0
}
