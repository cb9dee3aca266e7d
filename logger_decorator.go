package modboot

// ValueInjectionLogger injects fixed key-value pairs in front of the
// arguments of every log call.
type ValueInjectionLogger struct {
	inner        Logger
	injectedArgs []any
}

// NewValueInjectionLogger creates a logger decorating inner with injectedArgs.
func NewValueInjectionLogger(inner Logger, injectedArgs ...any) *ValueInjectionLogger {
	return &ValueInjectionLogger{inner: inner, injectedArgs: injectedArgs}
}

// NewModuleLogger returns a logger whose lines all carry module=<name>.
func NewModuleLogger(inner Logger, moduleName string) *ValueInjectionLogger {
	return NewValueInjectionLogger(inner, "module", moduleName)
}

// Inner returns the wrapped logger.
func (d *ValueInjectionLogger) Inner() Logger {
	return d.inner
}

func (d *ValueInjectionLogger) combineArgs(originalArgs []any) []any {
	if len(d.injectedArgs) == 0 {
		return originalArgs
	}
	if len(originalArgs) == 0 {
		return d.injectedArgs
	}
	combined := make([]any, 0, len(d.injectedArgs)+len(originalArgs))
	combined = append(combined, d.injectedArgs...)
	combined = append(combined, originalArgs...)
	return combined
}

func (d *ValueInjectionLogger) Info(msg string, args ...any) {
	d.inner.Info(msg, d.combineArgs(args)...)
}

func (d *ValueInjectionLogger) Error(msg string, args ...any) {
	d.inner.Error(msg, d.combineArgs(args)...)
}

func (d *ValueInjectionLogger) Warn(msg string, args ...any) {
	d.inner.Warn(msg, d.combineArgs(args)...)
}

func (d *ValueInjectionLogger) Debug(msg string, args ...any) {
	d.inner.Debug(msg, d.combineArgs(args)...)
}
