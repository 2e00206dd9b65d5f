// logging.go - structured logging interface for the coroutine runtime.
//
// Package-level configuration for structured logging. This design allows
// external integration with logging frameworks (see logging_logiface.go for
// a logiface-backed Logger) while providing a low-overhead built-in
// implementation for basic usage.
//
// Usage:
//   // Enable structured logging at package initialization
//   corogo.SetStructuredLogger(corogo.NewDefaultLogger(corogo.LevelInfo))
//
// Design Decision: package-level global variable is appropriate here because:
//   - Logging is an infrastructure cross-cutting concern
//   - Every Scheduler in a process shares logging semantics
//   - Zero-allocation configuration at startup
//   - Avoids per-instance logging configuration surface area bloat

package corogo

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

var (
	// Global structured logger for package-level logging functions
	globalLogger struct {
		sync.RWMutex
		logger Logger
	}
)

// SetStructuredLogger sets the global structured logger
func SetStructuredLogger(logger Logger) {
	globalLogger.Lock()
	defer globalLogger.Unlock()
	globalLogger.logger = logger
}

// getGlobalLogger safely retrieves the global logger
func getGlobalLogger() Logger {
	globalLogger.RLock()
	defer globalLogger.RUnlock()
	if globalLogger.logger != nil {
		return globalLogger.logger
	}
	return NewNoOpLogger()
}

// LogLevel represents the severity of a log message
type LogLevel int32

const (
	// LevelDebug for detailed diagnostic information
	LevelDebug LogLevel = iota

	// LevelInfo for general informational messages
	LevelInfo

	// LevelWarn for warning conditions
	LevelWarn

	// LevelError for error conditions
	LevelError
)

// String returns the string representation of the log level
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", l)
	}
}

// LogEntry represents a structured log entry
type LogEntry struct {
	Level       LogLevel
	Category    string // "coroutine", "steal", "reactor", "timer", "readystates"
	SchedulerID int64
	CoroID      int64
	TimerID     int64
	Context     map[string]interface{}
	Message     string
	Err         error
	Timestamp   time.Time
}

// Logger is the structured logging interface
type Logger interface {
	Log(entry LogEntry)
	IsEnabled(level LogLevel) bool
}

// DefaultLogger implements Logger, writing plain structured text to any
// io.Writer (os.Stdout unless overridden via Out).
type DefaultLogger struct {
	level atomic.Int32
	mu    sync.Mutex
	Out   io.Writer // public so tests/callers can redirect output
}

// NewDefaultLogger creates a logger with specified minimum level, writing to
// os.Stdout.
func NewDefaultLogger(level LogLevel) *DefaultLogger {
	l := &DefaultLogger{Out: os.Stdout}
	l.level.Store(int32(level))
	return l
}

// SetLevel dynamically changes the minimum log level
func (l *DefaultLogger) SetLevel(level LogLevel) {
	l.level.Store(int32(level))
}

// IsEnabled checks if the specified level would be logged
func (l *DefaultLogger) IsEnabled(level LogLevel) bool {
	return level >= LogLevel(l.level.Load())
}

// Log writes a structured log entry as plain text.
func (l *DefaultLogger) Log(entry LogEntry) {
	if !l.IsEnabled(entry.Level) {
		return // lazy evaluation: skip formatting entirely below this level
	}

	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	fmt.Fprintf(l.Out, "[%s] [%s] [%-10s] %s",
		entry.Level.String(),
		entry.Timestamp.Format("15:04:05.000"),
		entry.Category,
		entry.Message,
	)
	if entry.SchedulerID != 0 {
		fmt.Fprintf(l.Out, " scheduler=%d", entry.SchedulerID)
	}
	if entry.CoroID != 0 {
		fmt.Fprintf(l.Out, " coro=%d", entry.CoroID)
	}
	if entry.TimerID != 0 {
		fmt.Fprintf(l.Out, " timer=%d", entry.TimerID)
	}
	for k, v := range entry.Context {
		fmt.Fprintf(l.Out, " %s=%v", k, v)
	}
	if entry.Err != nil {
		fmt.Fprintf(l.Out, " err=%v\n", entry.Err)
	} else {
		fmt.Fprintln(l.Out)
	}
}

// NoOpLogger discards every entry; it is the default when no logger is
// configured (see getGlobalLogger).
type NoOpLogger struct{}

func NewNoOpLogger() *NoOpLogger {
	return &NoOpLogger{}
}

func (l *NoOpLogger) Log(entry LogEntry) {
}

func (l *NoOpLogger) IsEnabled(level LogLevel) bool {
	return false
}

// SWarn logs a warning message using the global logger.
func SWarn(category, message string, fields ...map[string]interface{}) {
	logger := getGlobalLogger()
	if !logger.IsEnabled(LevelWarn) {
		return
	}
	logger.Log(LogEntry{
		Level:     LevelWarn,
		Category:  category,
		Message:   message,
		Context:   firstOrNil(fields),
		Timestamp: time.Now(),
	})
}

// SError logs an error message using the global logger.
func SError(category, message string, err error, fields ...map[string]interface{}) {
	logger := getGlobalLogger()
	if !logger.IsEnabled(LevelError) {
		return
	}
	logger.Log(LogEntry{
		Level:     LevelError,
		Category:  category,
		Message:   message,
		Err:       err,
		Context:   firstOrNil(fields),
		Timestamp: time.Now(),
	})
}

func firstOrNil(fields []map[string]interface{}) map[string]interface{} {
	if len(fields) > 0 {
		return fields[0]
	}
	return nil
}

// LogTimerScheduled logs when a timer is scheduled. Called from
// reactor.handleTimer.
func LogTimerScheduled(schedulerID int64, timerID int64, delay time.Duration, description string) {
	logger := getGlobalLogger()
	if !logger.IsEnabled(LevelDebug) {
		return
	}
	logger.Log(LogEntry{
		Level:       LevelDebug,
		Category:    "timer",
		SchedulerID: schedulerID,
		TimerID:     timerID,
		Message:     "timer scheduled",
		Timestamp:   time.Now(),
		Context: map[string]interface{}{
			"delay_ms":    delay.Milliseconds(),
			"description": description,
		},
	})
}

// LogTimerFired logs when a timer fires. lag is how late, relative to its
// scheduled deadline, the reactor got around to firing it. Called from
// reactor.fireTimers.
func LogTimerFired(schedulerID int64, timerID int64, lag time.Duration) {
	logger := getGlobalLogger()
	if !logger.IsEnabled(LevelDebug) {
		return
	}
	logger.Log(LogEntry{
		Level:       LevelDebug,
		Category:    "timer",
		SchedulerID: schedulerID,
		TimerID:     timerID,
		Message:     "timer fired",
		Timestamp:   time.Now(),
		Context: map[string]interface{}{
			"lag_ms": lag.Milliseconds(),
		},
	})
}

// LogTimerCanceled logs when a timer is canceled before firing. Called from
// reactor.handleMsg's cancel branch.
func LogTimerCanceled(schedulerID int64, timerID int64, elapsed time.Duration) {
	logger := getGlobalLogger()
	if !logger.IsEnabled(LevelDebug) {
		return
	}
	logger.Log(LogEntry{
		Level:       LevelDebug,
		Category:    "timer",
		SchedulerID: schedulerID,
		TimerID:     timerID,
		Message:     "timer canceled",
		Timestamp:   time.Now(),
		Context: map[string]interface{}{
			"elapsed_ms": elapsed.Milliseconds(),
		},
	})
}

// LogCoroutineFinished logs when a coroutine's entry function returns
// normally. Called from coroutine.loop.
func LogCoroutineFinished(schedulerID, coroID int64) {
	logger := getGlobalLogger()
	if !logger.IsEnabled(LevelDebug) {
		return
	}
	logger.Log(LogEntry{
		Level:       LevelDebug,
		Category:    "coroutine",
		SchedulerID: schedulerID,
		CoroID:      coroID,
		Message:     "coroutine finished",
		Timestamp:   time.Now(),
	})
}

// LogCoroutinePanicked logs when a coroutine's entry function panics. Called
// from coroutine.loop's recover site.
func LogCoroutinePanicked(schedulerID, coroID int64, panicVal interface{}) {
	logger := getGlobalLogger()
	if !logger.IsEnabled(LevelError) {
		return
	}
	logger.Log(LogEntry{
		Level:       LevelError,
		Category:    "coroutine",
		SchedulerID: schedulerID,
		CoroID:      coroID,
		Message:     "coroutine panicked",
		Timestamp:   time.Now(),
		Context: map[string]interface{}{
			"panic": panicVal,
		},
	})
}

// LogStealAttempt logs a processor's successful steal of work from a peer.
// Called from processor.trySteal.
func LogStealAttempt(schedulerID int64, workerID int, stolen int) {
	logger := getGlobalLogger()
	if !logger.IsEnabled(LevelDebug) {
		return
	}
	logger.Log(LogEntry{
		Level:       LevelDebug,
		Category:    "steal",
		SchedulerID: schedulerID,
		Message:     "work-steal succeeded",
		Timestamp:   time.Now(),
		Context: map[string]interface{}{
			"worker": workerID,
			"stolen": stolen,
		},
	})
}

// LogReactorPollError logs a kernel-poll failure. Called from reactor.run.
func LogReactorPollError(schedulerID int64, err error, critical bool) {
	logger := getGlobalLogger()
	level := LevelWarn
	if critical {
		level = LevelError
	}
	if !logger.IsEnabled(level) {
		return
	}
	logger.Log(LogEntry{
		Level:       level,
		Category:    "reactor",
		SchedulerID: schedulerID,
		Message:     "reactor poll error",
		Err:         err,
		Timestamp:   time.Now(),
		Context: map[string]interface{}{
			"critical": critical,
		},
	})
}
