// Package logging holds the leveled-logger abstraction the core uses
// so a consumer can plug in its own backend without the core knowing
// about it.
package logging

// Logger is the logging surface every component in the core is handed
// at construction. The method set matches the teacher's definition.Logger
// so a consumer already used to that shape can bring their own adapter.
type Logger interface {
	Info(v ...interface{})
	Infof(format string, v ...interface{})
	Warn(v ...interface{})
	Warnf(format string, v ...interface{})
	Error(v ...interface{})
	Errorf(format string, v ...interface{})
	Debug(v ...interface{})
	Debugf(format string, v ...interface{})
	Fatal(v ...interface{})
	Fatalf(format string, v ...interface{})
	Panic(v ...interface{})
	Panicf(format string, v ...interface{})
	ToggleDebug(value bool) bool
}
