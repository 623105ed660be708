package core

import "time"

// Clock supplies the current time. Production code uses NewClock;
// tests inject a synthetic ClockFunc.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a plain function to the Clock interface.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

func NewClock() Clock { return ClockFunc(time.Now) }
