package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorClass says how a caller should react to an error
type ErrorClass int

const (
	// ErrorTransient may succeed if tried again
	ErrorTransient ErrorClass = iota
	// ErrorInvalid is caused by bad input or configuration; retrying will not help
	ErrorInvalid
	// ErrorFatal means the component cannot continue
	ErrorFatal
)

var classNames = map[ErrorClass]string{
	ErrorTransient: "transient",
	ErrorInvalid:   "invalid",
	ErrorFatal:     "fatal",
}

func (ec ErrorClass) String() string {
	if name, ok := classNames[ec]; ok {
		return name
	}
	return "unknown"
}

// ClassifiedError carries an explicit class and where the error arose
type ClassifiedError struct {
	Class     ErrorClass
	Err       error
	Message   string
	Component string
	Operation string
}

func (ce *ClassifiedError) Error() string {
	if ce.Message != "" {
		return ce.Message
	}
	return ce.Err.Error()
}

func (ce *ClassifiedError) Unwrap() error {
	return ce.Err
}

// Wrap adds context in the form "component.method: action failed: err"
func Wrap(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s.%s: %s failed: %w", component, method, action, err)
}

func wrapAs(class ErrorClass, err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrapped := Wrap(err, component, method, action)
	return &ClassifiedError{
		Class:     class,
		Err:       wrapped,
		Message:   wrapped.Error(),
		Component: component,
		Operation: method,
	}
}

// WrapTransient is Wrap marked ErrorTransient
func WrapTransient(err error, component, method, action string) error {
	return wrapAs(ErrorTransient, err, component, method, action)
}

// WrapInvalid is Wrap marked ErrorInvalid
func WrapInvalid(err error, component, method, action string) error {
	return wrapAs(ErrorInvalid, err, component, method, action)
}

// WrapFatal is Wrap marked ErrorFatal
func WrapFatal(err error, component, method, action string) error {
	return wrapAs(ErrorFatal, err, component, method, action)
}

// explicitClass finds the outermost ClassifiedError in the chain
func explicitClass(err error) (ErrorClass, bool) {
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class, true
	}
	return 0, false
}

func isAny(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

var (
	transientErrors = []error{
		ErrTimeout, ErrNoResponders, ErrConnectionLost, ErrNoConnection,
		ErrProviderOffline, ErrCircuitOpen, ErrAuthCooldown, context.DeadlineExceeded,
	}
	fatalErrors   = []error{ErrInvalidConfig, ErrMissingConfig, ErrAuthFailure}
	invalidErrors = []error{
		ErrInvalidData, ErrParsingFailed, ErrUnsupportedValueType,
		ErrVariableNotFound, ErrPermissionViolation,
	}
	// transientHints catch unclassified errors from libraries we do not wrap
	transientHints = []string{"timeout", "connection", "temporary", "unavailable"}
)

// IsTransient reports whether err is worth retrying later
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if class, ok := explicitClass(err); ok {
		return class == ErrorTransient
	}
	if isAny(err, transientErrors) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, hint := range transientHints {
		if strings.Contains(msg, hint) {
			return true
		}
	}
	return false
}

// IsFatal reports whether err should stop the component
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if class, ok := explicitClass(err); ok {
		return class == ErrorFatal
	}
	return isAny(err, fatalErrors)
}

// IsInvalid reports whether err was caused by bad input
func IsInvalid(err error) bool {
	if err == nil {
		return false
	}
	if class, ok := explicitClass(err); ok {
		return class == ErrorInvalid
	}
	return isAny(err, invalidErrors)
}

// Classify returns the class of err. Unknown errors count as transient.
func Classify(err error) ErrorClass {
	switch {
	case IsFatal(err):
		return ErrorFatal
	case IsInvalid(err):
		return ErrorInvalid
	default:
		return ErrorTransient
	}
}
