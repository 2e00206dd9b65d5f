package corogo

import (
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// logifaceLogger adapts this package's Logger interface onto a
// logiface.Logger backed by stumpy, giving applications a structured,
// leveled, field-oriented sink without having to implement Logger
// themselves. Construct with NewLogifaceLogger and pass to WithLogger.
type logifaceLogger struct {
	l *logiface.Logger[*stumpy.Event]
}

// NewLogifaceLogger wraps a logiface.Logger (as constructed via
// stumpy.L.New(...)) as a corogo Logger.
func NewLogifaceLogger(l *logiface.Logger[*stumpy.Event]) Logger {
	return &logifaceLogger{l: l}
}

// NewDefaultLogifaceLogger returns a ready-to-use logiface-backed Logger
// writing JSON lines to stderr via stumpy's default writer.
func NewDefaultLogifaceLogger() Logger {
	return NewLogifaceLogger(stumpy.L.New(stumpy.L.WithStumpy()))
}

func (a *logifaceLogger) IsEnabled(level LogLevel) bool {
	return a.l.Level() >= toLogifaceLevel(level)
}

func (a *logifaceLogger) Log(entry LogEntry) {
	b := a.l.Build(toLogifaceLevel(entry.Level))
	if b == nil {
		return
	}
	b = b.Str("category", entry.Category)
	if entry.SchedulerID != 0 {
		b = b.Int64("scheduler", entry.SchedulerID)
	}
	if entry.CoroID != 0 {
		b = b.Int64("coro", entry.CoroID)
	}
	if entry.TimerID != 0 {
		b = b.Int64("timer", entry.TimerID)
	}
	if entry.Err != nil {
		b = b.Err(entry.Err)
	}
	for k, v := range entry.Context {
		b = b.Any(k, v)
	}
	b.Log(entry.Message)
}

func toLogifaceLevel(l LogLevel) logiface.Level {
	switch l {
	case LevelDebug:
		return logiface.LevelDebug
	case LevelInfo:
		return logiface.LevelInformational
	case LevelWarn:
		return logiface.LevelWarning
	case LevelError:
		return logiface.LevelError
	default:
		return logiface.LevelInformational
	}
}
