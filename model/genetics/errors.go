package genetics

import (
	"errors"
	"fmt"
)

// InsufficientDataError indicates that one of the datasets retained fewer
// valid records than the configured floor. Non-retryable.
type InsufficientDataError struct {
	Records int
	Minimum int
}

func NewInsufficientDataError(records int, minimum int) error {
	return InsufficientDataError{Records: records, Minimum: minimum}
}

func (e InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data: %d < %d", e.Records, e.Minimum)
}

func IsInsufficientDataError(err error) bool {
	var target InsufficientDataError
	return errors.As(err, &target)
}

// InsufficientOverlapError indicates that the two datasets share fewer rsIDs
// than the configured floor. Non-retryable.
type InsufficientOverlapError struct {
	Common int
}

func NewInsufficientOverlapError(common int) error {
	return InsufficientOverlapError{Common: common}
}

func (e InsufficientOverlapError) Error() string {
	return fmt.Sprintf("insufficient overlap: %d", e.Common)
}

func IsInsufficientOverlapError(err error) bool {
	var target InsufficientOverlapError
	return errors.As(err, &target)
}

// MalformedInputError indicates that no records at all could be parsed from
// a dataset. Non-retryable.
type MalformedInputError struct {
	Reason string
}

func NewMalformedInputError(reason string) error {
	return MalformedInputError{Reason: reason}
}

func (e MalformedInputError) Error() string {
	return fmt.Sprintf("malformed input: %s", e.Reason)
}

func IsMalformedInputError(err error) bool {
	var target MalformedInputError
	return errors.As(err, &target)
}

// IsTerminalAnalysisError reports whether the error is one of the
// non-retryable analysis failures, which the processor reports on-chain via
// markAnalysisFailed rather than retrying.
func IsTerminalAnalysisError(err error) bool {
	return IsInsufficientDataError(err) ||
		IsInsufficientOverlapError(err) ||
		IsMalformedInputError(err)
}
