package errors

import (
	"errors"
	"fmt"
)

// ErrorWrapper tags errors with the module and command that produced them
// and attaches the message shown to the editor user.
type ErrorWrapper struct {
	module    string
	operation string
}

// NewWrapper creates a wrapper for one module/operation pair, such as
// ("carousel", "add_card") or ("imagecrop", "crop").
func NewWrapper(module, operation string) *ErrorWrapper {
	return &ErrorWrapper{module: module, operation: operation}
}

// Wrap attaches userMessage to err. An empty userMessage keeps the message
// of an inner WrappedError, so a lower layer's wording survives when the
// caller has nothing more specific to say. Returns nil if err is nil.
func (w *ErrorWrapper) Wrap(err error, userMessage string) error {
	if err == nil {
		return nil
	}
	if userMessage == "" {
		userMessage, _ = UserMessage(err)
	}
	return &WrappedError{
		Module:      w.module,
		Operation:   w.operation,
		Cause:       err,
		UserMessage: userMessage,
	}
}

// Wrapf is Wrap with a formatted message.
func (w *ErrorWrapper) Wrapf(err error, userMessageFormat string, args ...any) error {
	if err == nil {
		return nil
	}
	return w.Wrap(err, fmt.Sprintf(userMessageFormat, args...))
}

// WrappedError pairs an internal cause with the message shown to the user.
type WrappedError struct {
	Module      string // e.g. "carousel", "imagecrop", "http"
	Operation   string // e.g. "add_card", "crop", "bind"
	Cause       error
	UserMessage string // shown verbatim in the editor
}

func (e *WrappedError) Error() string {
	if e.UserMessage == "" {
		return fmt.Sprintf("[%s:%s] %v", e.Module, e.Operation, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s: %v", e.Module, e.Operation, e.UserMessage, e.Cause)
}

func (e *WrappedError) Unwrap() error {
	return e.Cause
}

// UserMessage returns the outermost non-empty user message in err's chain.
func UserMessage(err error) (string, bool) {
	for err != nil {
		var wrapped *WrappedError
		if !errors.As(err, &wrapped) {
			return "", false
		}
		if wrapped.UserMessage != "" {
			return wrapped.UserMessage, true
		}
		err = wrapped.Cause
	}
	return "", false
}

// GetUserMessage returns the user message of err, or its error string when
// no layer supplied one.
func GetUserMessage(err error) string {
	if err == nil {
		return ""
	}
	if msg, ok := UserMessage(err); ok {
		return msg
	}
	return err.Error()
}

// Origin returns "module.operation" of the innermost WrappedError, naming
// the command that actually failed.
func Origin(err error) string {
	var origin string
	for err != nil {
		var wrapped *WrappedError
		if !errors.As(err, &wrapped) {
			break
		}
		origin = wrapped.Module + "." + wrapped.Operation
		err = wrapped.Cause
	}
	return origin
}
