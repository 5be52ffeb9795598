// Package errors provides domain-specific error types and sentinel errors
// for the composer. Every error produced by the card store, the crop
// pipeline and the HTTP layer can be matched with errors.Is against one of
// the sentinels below.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for common scenarios.
// Use errors.Is() to check these errors in your code.
var (
	// ErrNotFound indicates a requested session, card or resource was not found.
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput indicates user provided invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUploadRejected indicates an upload with a wrong MIME type or over the size limit.
	ErrUploadRejected = errors.New("upload rejected")

	// ErrCropFailed indicates a decode or drawing failure during a crop.
	ErrCropFailed = errors.New("crop failed")

	// ErrImageDecode indicates a malformed or unsupported image file.
	ErrImageDecode = errors.New("image decode failed")

	// ErrCanvas indicates the drawing surface could not be prepared.
	ErrCanvas = errors.New("canvas unavailable")

	// ErrStructureEditRejected indicates a structural edit on a follower card,
	// or an attempt to disable the last of the mandatory sections.
	ErrStructureEditRejected = errors.New("structure edit rejected")

	// ErrCapacityExceeded indicates add/copy beyond the card ceiling.
	ErrCapacityExceeded = errors.New("capacity exceeded")

	// ErrValidationFailed indicates unmet required-field constraints at submission.
	ErrValidationFailed = errors.New("validation failed")
)

// IsNotFound reports whether err is ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsInvalidInput reports whether err is ErrInvalidInput.
func IsInvalidInput(err error) bool { return errors.Is(err, ErrInvalidInput) }

// IsUploadRejected reports whether err is ErrUploadRejected.
func IsUploadRejected(err error) bool { return errors.Is(err, ErrUploadRejected) }

// IsCropFailed reports whether err is ErrCropFailed.
func IsCropFailed(err error) bool { return errors.Is(err, ErrCropFailed) }

// IsStructureEditRejected reports whether err is ErrStructureEditRejected.
func IsStructureEditRejected(err error) bool { return errors.Is(err, ErrStructureEditRejected) }

// IsCapacityExceeded reports whether err is ErrCapacityExceeded.
func IsCapacityExceeded(err error) bool { return errors.Is(err, ErrCapacityExceeded) }

// IsValidationFailed reports whether err is ErrValidationFailed.
func IsValidationFailed(err error) bool { return errors.Is(err, ErrValidationFailed) }

// ValidationError represents a single input validation failure.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

// Is lets a ValidationError match ErrInvalidInput.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NewValidationError creates a new validation error.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// ProblemList is the aggregated submission-time validation result.
// It is surfaced as a list so every problem can be fixed in one pass.
type ProblemList struct {
	Problems []string
}

func (e *ProblemList) Error() string {
	return fmt.Sprintf("validation failed: %s", strings.Join(e.Problems, "; "))
}

// Is lets a ProblemList match ErrValidationFailed.
func (e *ProblemList) Is(target error) bool {
	return target == ErrValidationFailed
}

// NewProblemList returns nil when problems is empty.
func NewProblemList(problems []string) error {
	if len(problems) == 0 {
		return nil
	}
	return &ProblemList{Problems: problems}
}

// Problems extracts the validation list from err, if any.
func Problems(err error) []string {
	var pl *ProblemList
	if errors.As(err, &pl) {
		return pl.Problems
	}
	return nil
}
