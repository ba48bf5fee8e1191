package logger

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"camera-streamer/internal/application"
)

// Формат вывода логов
const (
	FormatText = "text"
	FormatJSON = "json"
)

// LogrusLogger реализация application.Logger поверх logrus
type LogrusLogger struct {
	entry *logrus.Entry
}

// New создает логгер. debugEnabled включает уровень Debug.
func New(out io.Writer, format string, debugEnabled bool) *LogrusLogger {
	if out == nil {
		out = os.Stderr
	}

	base := logrus.New()
	base.SetOutput(out)
	if format == FormatJSON {
		base.SetFormatter(&logrus.JSONFormatter{})
	} else {
		base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	if debugEnabled {
		base.SetLevel(logrus.DebugLevel)
	} else {
		base.SetLevel(logrus.InfoLevel)
	}

	return FromEntry(logrus.NewEntry(base))
}

// FromEntry оборачивает готовую запись logrus
func FromEntry(entry *logrus.Entry) *LogrusLogger {
	return &LogrusLogger{entry: entry}
}

// Info логирует информационное сообщение
func (l *LogrusLogger) Info(msg string, args ...interface{}) {
	l.entry.Infof(msg, args...)
}

// Warn логирует предупреждение
func (l *LogrusLogger) Warn(msg string, args ...interface{}) {
	l.entry.Warnf(msg, args...)
}

// Error логирует сообщение об ошибке
func (l *LogrusLogger) Error(msg string, args ...interface{}) {
	l.entry.Errorf(msg, args...)
}

// Debug логирует отладочное сообщение
func (l *LogrusLogger) Debug(msg string, args ...interface{}) {
	l.entry.Debugf(msg, args...)
}

// WithFields возвращает логгер с дополнительными полями
func (l *LogrusLogger) WithFields(fields application.Fields) application.Logger {
	return &LogrusLogger{entry: l.entry.WithFields(logrus.Fields(fields))}
}

// WithComponent помечает записи именем компонента
func (l *LogrusLogger) WithComponent(name string) application.Logger {
	return l.WithFields(application.Fields{"component": name})
}
