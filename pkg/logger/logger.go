package logger

import (
	"fmt"
	"io"
	"log"
	"strings"
	"sync"

	"github.com/fatih/color"
)

// Level represents the severity level of a log message.
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	NoticeLevel
	ErrorLevel
)

// ParseLevel parses "debug", "info", "notice" or "error"
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DebugLevel, nil
	case "info", "":
		return InfoLevel, nil
	case "notice":
		return NoticeLevel, nil
	case "error":
		return ErrorLevel, nil
	}
	return InfoLevel, fmt.Errorf("invalid log level: %s", s)
}

// chain prefixes cycle through this palette in registration order
var palette = []color.Attribute{
	color.FgHiGreen,
	color.FgHiBlue,
	color.FgMagenta,
	color.FgYellow,
	color.FgCyan,
	color.FgRed,
	color.FgBlue,
	color.FgGreen,
}

// Logger is a simple interface for logging messages.
type Logger interface {
	// Info logs an informational message.
	Info(format string, args ...interface{})
	InfoWithChain(chainID uint64, format string, args ...interface{})

	// Error logs an error message.
	Error(format string, args ...interface{})
	ErrorWithChain(chainID uint64, format string, args ...interface{})

	// Debug logs a debug message.
	Debug(format string, args ...interface{})
	DebugWithChain(chainID uint64, format string, args ...interface{})

	// Notice logs a notice message.
	Notice(format string, args ...interface{})
	NoticeWithChain(chainID uint64, format string, args ...interface{})
}

// EmptyLogger is a simple implementation of the Logger interface that does nothing.
type EmptyLogger struct{}

var _ Logger = (*EmptyLogger)(nil)

func (l *EmptyLogger) Info(_ string, _ ...interface{})                      {}
func (l *EmptyLogger) InfoWithChain(_ uint64, _ string, _ ...interface{})   {}
func (l *EmptyLogger) Error(_ string, _ ...interface{})                     {}
func (l *EmptyLogger) ErrorWithChain(_ uint64, _ string, _ ...interface{})  {}
func (l *EmptyLogger) Debug(_ string, _ ...interface{})                     {}
func (l *EmptyLogger) DebugWithChain(_ uint64, _ string, _ ...interface{})  {}
func (l *EmptyLogger) Notice(_ string, _ ...interface{})                    {}
func (l *EmptyLogger) NoticeWithChain(_ uint64, _ string, _ ...interface{}) {}

type chainPrefix struct {
	text  string
	color color.Attribute
}

// StdLogger is a standard implementation of the Logger interface that logs messages to the console.
type StdLogger struct {
	enableColoring bool
	level          Level
	out            *log.Logger
	chains         map[uint64]chainPrefix
	mu             sync.Mutex
}

var _ Logger = (*StdLogger)(nil)

func NewStdLogger(enableColoring bool, level Level) *StdLogger {
	return &StdLogger{
		enableColoring: enableColoring,
		level:          level,
		out:            log.Default(),
		chains:         make(map[uint64]chainPrefix),
	}
}

// SetOutput redirects log lines to w
func (l *StdLogger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.out = log.New(w, "", log.LstdFlags)
}

// RegisterChain sets the prefix printed for a chain ID
func (l *StdLogger) RegisterChain(chainID uint64, name string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	label := fmt.Sprintf("[%s]", strings.ToUpper(name))
	l.chains[chainID] = chainPrefix{
		text:  fmt.Sprintf("%-8s", label),
		color: palette[len(l.chains)%len(palette)],
	}
}

// formatMessage formats the log message with the appropriate log level, chain prefix, and coloring if enabled.
func (l *StdLogger) formatMessage(level Level, chainID *uint64, format string) string {
	var prefix string
	if chainID != nil {
		p, ok := l.chains[*chainID]
		if !ok {
			p = chainPrefix{text: fmt.Sprintf("%-8s", fmt.Sprintf("[%d]", *chainID)), color: color.FgWhite}
		}
		prefix = p.text
		if l.enableColoring {
			prefix = color.New(p.color).Sprint(prefix)
		}
	}

	var levelStr string
	switch level {
	case DebugLevel:
		levelStr = "[DEBUG]  "
	case InfoLevel:
		levelStr = "[INFO]   "
	case NoticeLevel:
		levelStr = "[NOTICE] "
	case ErrorLevel:
		levelStr = "[ERROR]  "
	}

	return levelStr + prefix + format
}

func (l *StdLogger) logf(level Level, chainID *uint64, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.level <= level {
		l.out.Printf(l.formatMessage(level, chainID, format), args...)
	}
}

func (l *StdLogger) Info(format string, args ...interface{}) {
	l.logf(InfoLevel, nil, format, args...)
}

func (l *StdLogger) InfoWithChain(chainID uint64, format string, args ...interface{}) {
	l.logf(InfoLevel, &chainID, format, args...)
}

func (l *StdLogger) Error(format string, args ...interface{}) {
	l.logf(ErrorLevel, nil, format, args...)
}

func (l *StdLogger) ErrorWithChain(chainID uint64, format string, args ...interface{}) {
	l.logf(ErrorLevel, &chainID, format, args...)
}

func (l *StdLogger) Debug(format string, args ...interface{}) {
	l.logf(DebugLevel, nil, format, args...)
}

func (l *StdLogger) DebugWithChain(chainID uint64, format string, args ...interface{}) {
	l.logf(DebugLevel, &chainID, format, args...)
}

func (l *StdLogger) Notice(format string, args ...interface{}) {
	l.logf(NoticeLevel, nil, format, args...)
}

func (l *StdLogger) NoticeWithChain(chainID uint64, format string, args ...interface{}) {
	l.logf(NoticeLevel, &chainID, format, args...)
}
