package logger

import (
	"io"

	"github.com/sirupsen/logrus"
)

// LogrusLogger writes structured JSON entries through logrus. Notice maps to
// logrus' warn level.
type LogrusLogger struct {
	entry *logrus.Entry
}

var _ Logger = (*LogrusLogger)(nil)

// NewLogrusLogger creates a JSON logger writing to out
func NewLogrusLogger(out io.Writer, level Level) *LogrusLogger {
	l := logrus.New()
	l.SetOutput(out)
	l.SetFormatter(&logrus.JSONFormatter{})
	l.SetLevel(toLogrusLevel(level))
	return &LogrusLogger{entry: logrus.NewEntry(l).WithField("service", "gmp-verifier")}
}

func toLogrusLevel(level Level) logrus.Level {
	switch level {
	case DebugLevel:
		return logrus.DebugLevel
	case NoticeLevel:
		return logrus.WarnLevel
	case ErrorLevel:
		return logrus.ErrorLevel
	}
	return logrus.InfoLevel
}

func (l *LogrusLogger) withChain(chainID uint64) *logrus.Entry {
	return l.entry.WithField("chain_id", chainID)
}

func (l *LogrusLogger) Info(format string, args ...interface{}) {
	l.entry.Infof(format, args...)
}

func (l *LogrusLogger) InfoWithChain(chainID uint64, format string, args ...interface{}) {
	l.withChain(chainID).Infof(format, args...)
}

func (l *LogrusLogger) Error(format string, args ...interface{}) {
	l.entry.Errorf(format, args...)
}

func (l *LogrusLogger) ErrorWithChain(chainID uint64, format string, args ...interface{}) {
	l.withChain(chainID).Errorf(format, args...)
}

func (l *LogrusLogger) Debug(format string, args ...interface{}) {
	l.entry.Debugf(format, args...)
}

func (l *LogrusLogger) DebugWithChain(chainID uint64, format string, args ...interface{}) {
	l.withChain(chainID).Debugf(format, args...)
}

func (l *LogrusLogger) Notice(format string, args ...interface{}) {
	l.entry.Warnf(format, args...)
}

func (l *LogrusLogger) NoticeWithChain(chainID uint64, format string, args ...interface{}) {
	l.withChain(chainID).Warnf(format, args...)
}
