package modboot

import (
	"errors"
	"fmt"
	"runtime/debug"
	"time"
)

// Bootstrap errors. Every typed error below matches one of these with
// errors.Is.
var (
	ErrDuplicateModule           = errors.New("module already registered")
	ErrModuleLoad                = errors.New("module failed to load")
	ErrInvalidComponent          = errors.New("invalid module component")
	ErrMissingRequiredDependency = errors.New("required dependency not started")
	ErrModuleStartTimeout        = errors.New("module failed to start in the allowed time")
	ErrModuleStart               = errors.New("module failed to start")
	ErrModuleSetUp               = errors.New("module failed to set up")

	ErrEmptyModuleName         = errors.New("module name cannot be empty")
	ErrModuleNotFound          = errors.New("module not found")
	ErrInvalidStateTransition  = errors.New("invalid module state transition")
	ErrApplicationAlreadyRun   = errors.New("application bootstrap already ran")
	ErrLocationNotFound        = errors.New("no component registered for location")
	ErrDuplicateLocation       = errors.New("component location already registered")
	ErrDependencyNotConfigured = errors.New("dependency id not configured")
)

// DuplicateModuleError reports a second declaration using an existing name.
type DuplicateModuleError struct {
	Module string
}

func (e *DuplicateModuleError) Error() string {
	return fmt.Sprintf("%s: %s", ErrDuplicateModule, e.Module)
}

func (e *DuplicateModuleError) Unwrap() error { return ErrDuplicateModule }

// ModuleLoadError reports a location that the loader could not turn into a
// component.
type ModuleLoadError struct {
	Module   string
	Location string
	Err      error
}

func (e *ModuleLoadError) Error() string {
	return fmt.Sprintf("%s module failed to load from %q: %v", e.Module, e.Location, e.Err)
}

func (e *ModuleLoadError) Unwrap() []error { return []error{ErrModuleLoad, e.Err} }

// InvalidComponentError reports a loaded component that does not satisfy the
// component contract, for instance one without a start function.
type InvalidComponentError struct {
	Module string
	Reason string
}

func (e *InvalidComponentError) Error() string {
	return fmt.Sprintf("%s is not a valid module: %s", e.Module, e.Reason)
}

func (e *InvalidComponentError) Unwrap() error { return ErrInvalidComponent }

// MissingRequiredDependencyError reports a required dependency that was not
// started when the dependent module began starting.
type MissingRequiredDependencyError struct {
	Module     string
	Dependency string
	// Target is the module name configured through the <Dependency>Id key.
	// It is empty when the key is not set.
	Target string
}

func (e *MissingRequiredDependencyError) Error() string {
	if e.Target == "" {
		return fmt.Sprintf("%s module requires %s, but %sId is not configured", e.Module, e.Dependency, e.Dependency)
	}
	return fmt.Sprintf("%s module requires %s (module %q), which is not started", e.Module, e.Dependency, e.Target)
}

func (e *MissingRequiredDependencyError) Unwrap() error { return ErrMissingRequiredDependency }

// ModuleStartTimeoutError reports an asynchronous start that did not signal
// completion within the configured timeout.
type ModuleStartTimeoutError struct {
	Module  string
	Timeout time.Duration
}

func (e *ModuleStartTimeoutError) Error() string {
	return fmt.Sprintf("%s module failed to start in the allowed time of %s", e.Module, e.Timeout)
}

func (e *ModuleStartTimeoutError) Unwrap() error { return ErrModuleStartTimeout }

// TimeoutMs returns the timeout in milliseconds.
func (e *ModuleStartTimeoutError) TimeoutMs() int64 {
	return e.Timeout.Milliseconds()
}

// ModuleStartError wraps a failure returned, signalled or panicked by a
// module's start function.
type ModuleStartError struct {
	Module string
	Cause  error
}

func (e *ModuleStartError) Error() string {
	return fmt.Sprintf("%s module failed to start: %v", e.Module, e.Cause)
}

func (e *ModuleStartError) Unwrap() []error { return []error{ErrModuleStart, e.Cause} }

// ModuleSetUpError wraps a failure returned or panicked by a module's SetUp.
type ModuleSetUpError struct {
	Module string
	Cause  error
}

func (e *ModuleSetUpError) Error() string {
	return fmt.Sprintf("%s module failed to set up: %v", e.Module, e.Cause)
}

func (e *ModuleSetUpError) Unwrap() []error { return []error{ErrModuleSetUp, e.Cause} }

// FailedModule returns the name of the module a bootstrap error originates
// from, or "" when err carries none.
func FailedModule(err error) string {
	var named interface{ failedModule() string }
	if errors.As(err, &named) {
		return named.failedModule()
	}
	return ""
}

func (e *DuplicateModuleError) failedModule() string           { return e.Module }
func (e *ModuleLoadError) failedModule() string                { return e.Module }
func (e *InvalidComponentError) failedModule() string          { return e.Module }
func (e *MissingRequiredDependencyError) failedModule() string { return e.Module }
func (e *ModuleStartTimeoutError) failedModule() string        { return e.Module }
func (e *ModuleStartError) failedModule() string               { return e.Module }
func (e *ModuleSetUpError) failedModule() string               { return e.Module }

// PanicError is a panic recovered from module code, with the stack of the
// goroutine that panicked.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap returns the panic value when it is an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// StackTrace returns the stack of the panic behind err, or "" when err does
// not come from a recovered panic.
func StackTrace(err error) string {
	var panicErr *PanicError
	if errors.As(err, &panicErr) {
		return string(panicErr.Stack)
	}
	return ""
}

// panicError converts a recovered panic value into an error. It must be
// called from the deferred function that recovered, so the stack still
// holds the panicking frames.
func panicError(r any) error {
	return &PanicError{Value: r, Stack: debug.Stack()}
}
