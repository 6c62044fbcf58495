package logging

import "github.com/sirupsen/logrus"

// LogrusLogger is the default Logger implementation, backed by
// sirupsen/logrus instead of the teacher's raw stdlib *log.Logger —
// it's already a direct dependency the teacher ships, and it's the
// more idiomatic pick for a library meant to be embedded by consumers
// who already have their own logrus configuration.
type LogrusLogger struct {
	entry *logrus.Logger
}

// NewDefaultLogger builds the logger used when a consumer does not
// supply their own, the same way the teacher falls back to
// definition.NewDefaultLogger().
func NewDefaultLogger() *LogrusLogger {
	l := logrus.New()
	l.SetLevel(logrus.InfoLevel)
	return &LogrusLogger{entry: l}
}

func (l *LogrusLogger) Info(v ...interface{})                 { l.entry.Info(v...) }
func (l *LogrusLogger) Infof(format string, v ...interface{})  { l.entry.Infof(format, v...) }
func (l *LogrusLogger) Warn(v ...interface{})                 { l.entry.Warn(v...) }
func (l *LogrusLogger) Warnf(format string, v ...interface{}) { l.entry.Warnf(format, v...) }
func (l *LogrusLogger) Error(v ...interface{})                { l.entry.Error(v...) }
func (l *LogrusLogger) Errorf(format string, v ...interface{}) {
	l.entry.Errorf(format, v...)
}
func (l *LogrusLogger) Debug(v ...interface{}) { l.entry.Debug(v...) }
func (l *LogrusLogger) Debugf(format string, v ...interface{}) {
	l.entry.Debugf(format, v...)
}
func (l *LogrusLogger) Fatal(v ...interface{}) { l.entry.Fatal(v...) }
func (l *LogrusLogger) Fatalf(format string, v ...interface{}) {
	l.entry.Fatalf(format, v...)
}
func (l *LogrusLogger) Panic(v ...interface{}) { l.entry.Panic(v...) }
func (l *LogrusLogger) Panicf(format string, v ...interface{}) {
	l.entry.Panicf(format, v...)
}

func (l *LogrusLogger) ToggleDebug(value bool) bool {
	if value {
		l.entry.SetLevel(logrus.DebugLevel)
	} else {
		l.entry.SetLevel(logrus.InfoLevel)
	}
	return value
}
