package table

import "time"

// Clock supplies the current time and one-shot timers. Tests replace it to
// drive the undo window deterministically.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is the subset of *time.Timer the controller needs.
type Timer interface {
	Stop() bool
}

type systemClock struct{}

// SystemClock is backed by the time package.
var SystemClock Clock = systemClock{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
