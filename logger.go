package modboot

// Logger defines the interface for application logging.
// The bootstrap uses structured logging with key-value pairs:
//
//	logger.Info("Module started", "module", "db", "elapsed", d)
//
// *slog.Logger satisfies it directly, as do thin adapters over logrus, zap
// and friends.
type Logger interface {
	// Info logs normal bootstrap events such as module start.
	Info(msg string, args ...any)

	// Error logs failures, including subscriber errors the event bus reports.
	Error(msg string, args ...any)

	// Warn logs unusual but non-fatal conditions.
	Warn(msg string, args ...any)

	// Debug logs detailed diagnostics such as the sync/async start decision.
	Debug(msg string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Debug(string, ...any) {}
