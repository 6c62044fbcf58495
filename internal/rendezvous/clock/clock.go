// Package clock wraps benbjohnson/clock so the discovery grace timer
// and the R+R pending-callback timeout can be driven by a fake clock in
// tests instead of sleeping out the real 120s/60s windows. The
// Dispatcher itself always uses the real clock.
package clock

import "github.com/benbjohnson/clock"

type Clock = clock.Clock
type Timer = clock.Timer
type Mock = clock.Mock

// New returns the real wall-clock implementation.
func New() Clock {
	return clock.New()
}

// NewMock returns a fake clock a test can advance manually.
func NewMock() *Mock {
	return clock.NewMock()
}
