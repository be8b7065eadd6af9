package errors

import (
	"fmt"
	"runtime/debug"
)

// PanicError is an error produced from a recovered panic.
type PanicError struct {
	// PanicValue is the value passed to panic()
	PanicValue interface{}

	// StackTrace at the point of recovery
	StackTrace string

	// Operation identifies where the panic was recovered
	Operation string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic in %s: %v", e.Operation, e.PanicValue)
}

// String includes the captured stack trace.
func (e *PanicError) String() string {
	return fmt.Sprintf("panic in %s: %v\nStack trace:\n%s",
		e.Operation, e.PanicValue, e.StackTrace)
}

// NewPanicError creates a PanicError for the given operation and panic value.
func NewPanicError(operation string, panicValue interface{}) *PanicError {
	return &PanicError{
		PanicValue: panicValue,
		StackTrace: string(debug.Stack()),
		Operation:  operation,
	}
}

// Recover converts a panic into an error. Use with defer and a named error return:
//
//	func (a *Adapter) Predict(...) (p Prediction, err error) {
//	    defer errors.Recover(&err, "Adapter.Predict")
//	    ...
//	}
//
// An error already assigned to *err is kept as the cause, so Is still finds it.
func Recover(err *error, operation string) {
	r := recover()
	if r == nil {
		return
	}
	if *err != nil {
		*err = Wrapf(*err, "panic in %s: %v", operation, r)
		return
	}
	*err = NewPanicError(operation, r)
}

// SafeExecute runs fn and converts any panic into a PanicError.
func SafeExecute(operation string, fn func() error) (err error) {
	defer Recover(&err, operation)
	return fn()
}

// IsPanicError reports whether err originated from a recovered panic.
func IsPanicError(err error) bool {
	var p *PanicError
	return As(err, &p)
}
