// Package logging provides component loggers that prefix every message with
// the component name, e.g. "[engine] Mining round settled".
package logging

import (
	"fmt"
	stdlog "log"
	"os"
	"strings"
	"sync"

	"github.com/mborders/logmatic"
)

// Level is a logging threshold.
type Level int

const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
)

// sink is the part of the logmatic logger the component loggers use.
type sink interface {
	Debug(format string, a ...interface{})
	Info(format string, a ...interface{})
	Warn(format string, a ...interface{})
	Error(format string, a ...interface{})
}

var (
	mu       sync.RWMutex
	level    = LevelInfo
	toStderr bool
	base     = newBase(LevelInfo, false)
)

func newBase(level Level, stderr bool) sink {
	if stderr {
		return stderrSink{level: level, out: stdlog.New(os.Stderr, "", stdlog.LstdFlags)}
	}
	l := logmatic.NewLogger()
	switch level {
	case LevelTrace:
		l.SetLevel(logmatic.TRACE)
	case LevelDebug:
		l.SetLevel(logmatic.DEBUG)
	case LevelWarn:
		l.SetLevel(logmatic.WARN)
	case LevelError:
		l.SetLevel(logmatic.ERROR)
	default:
		l.SetLevel(logmatic.INFO)
	}
	l.ExitOnFatal = true
	return l
}

// ParseLevel maps a config level name to a Level.
func ParseLevel(name string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "trace":
		return LevelTrace, nil
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q", name)
	}
}

// SetLevel reconfigures every component logger.
func SetLevel(name string) error {
	lvl, err := ParseLevel(name)
	if err != nil {
		return err
	}
	mu.Lock()
	level = lvl
	base = newBase(level, toStderr)
	mu.Unlock()
	return nil
}

// UseStderr moves all output to stderr, leaving stdout to a protocol
// stream such as MCP over stdio.
func UseStderr() {
	mu.Lock()
	toStderr = true
	base = newBase(level, true)
	mu.Unlock()
}

// stderrSink is the plain-text sink used when stdout is taken.
type stderrSink struct {
	level Level
	out   *stdlog.Logger
}

func (s stderrSink) emit(l Level, tag, format string, a ...interface{}) {
	if l >= s.level {
		s.out.Printf(tag+" "+format, a...)
	}
}

func (s stderrSink) Debug(format string, a ...interface{}) { s.emit(LevelDebug, "DEBUG", format, a...) }
func (s stderrSink) Info(format string, a ...interface{})  { s.emit(LevelInfo, "INFO", format, a...) }
func (s stderrSink) Warn(format string, a ...interface{})  { s.emit(LevelWarn, "WARN", format, a...) }
func (s stderrSink) Error(format string, a ...interface{}) { s.emit(LevelError, "ERROR", format, a...) }

func current() sink {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

// Logger writes messages for one component.
type Logger struct {
	prefix string
}

// New returns a logger for component.
func New(component string) *Logger {
	return &Logger{prefix: "[" + component + "] "}
}

func (l *Logger) Debugf(format string, args ...interface{}) {
	current().Debug("%s", l.prefix+fmt.Sprintf(format, args...))
}

func (l *Logger) Infof(format string, args ...interface{}) {
	current().Info("%s", l.prefix+fmt.Sprintf(format, args...))
}

func (l *Logger) Warnf(format string, args ...interface{}) {
	current().Warn("%s", l.prefix+fmt.Sprintf(format, args...))
}

func (l *Logger) Errorf(format string, args ...interface{}) {
	current().Error("%s", l.prefix+fmt.Sprintf(format, args...))
}
