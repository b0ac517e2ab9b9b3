package seatlock

import "time"

// Clock supplies the current time to the lock table and the sweep loop.
// Tests substitute a manual clock so that expiry can be driven without
// sleeping.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

// Now returns time.Now in UTC.
func (SystemClock) Now() time.Time { return time.Now().UTC() }
